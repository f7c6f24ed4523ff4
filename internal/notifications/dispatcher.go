package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopvana/shopvana-backend/pkg/logger"
)

type queueClient interface {
	LPush(ctx context.Context, key string, values ...any) error
	QueueKey(name string) string
}

// Dispatcher enqueues email jobs. Delivery failures never surface to the
// business flow that triggered the email.
type Dispatcher struct {
	queue  queueClient
	logger *logger.Logger
}

// NewDispatcher builds a Dispatcher.
func NewDispatcher(queue queueClient, logg *logger.Logger) (*Dispatcher, error) {
	if queue == nil {
		return nil, fmt.Errorf("queue client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Dispatcher{queue: queue, logger: logg}, nil
}

// Send pushes the job onto the email queue. Errors are logged and
// swallowed.
func (d *Dispatcher) Send(ctx context.Context, job EmailJob) {
	job.EnqueuedAt = time.Now().UTC()
	payload, err := json.Marshal(job)
	if err != nil {
		d.logger.Error(ctx, "marshal email job", err)
		return
	}
	if err := d.queue.LPush(ctx, d.queue.QueueKey(emailQueue), payload); err != nil {
		d.logger.Error(ctx, "enqueue email job", err)
	}
}
