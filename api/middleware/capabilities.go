package middleware

import (
	"net/http"

	"github.com/shopvana/shopvana-backend/api/responses"
	"github.com/shopvana/shopvana-backend/pkg/authz"
	pkgerrors "github.com/shopvana/shopvana-backend/pkg/errors"
	"github.com/shopvana/shopvana-backend/pkg/logger"
)

// RequireCapability gates a route on the actor's role capabilities.
func RequireCapability(cap authz.Capability, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if !authz.Allowed(RoleFromContext(ctx), IsStaffFromContext(ctx), cap) {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "insufficient permissions"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
