package payments

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewTxRef builds a gateway transaction reference. The order and user
// prefixes make refs greppable in gateway dashboards; the random suffix
// keeps retried initializations unique.
func NewTxRef(orderID, userID uuid.UUID) string {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		// crypto/rand failing is unrecoverable; fall back to uuid entropy.
		return fmt.Sprintf("order-%s-%s-%s", shortID(orderID), shortID(userID), shortID(uuid.New()))
	}
	return fmt.Sprintf("order-%s-%s-%s", shortID(orderID), shortID(userID), hex.EncodeToString(suffix))
}

func shortID(id uuid.UUID) string {
	return strings.ReplaceAll(id.String(), "-", "")[:8]
}
