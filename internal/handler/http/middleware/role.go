package middleware

import (
	"fmt"
	"net/http"

	"github.com/cmlabs-hris/attendance-ledger/internal/domain/worker"
	"github.com/cmlabs-hris/attendance-ledger/internal/handler/http/response"
)

// RequirePermission checks if the caller's role grants permission
func RequirePermission(permission worker.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := ActorFrom(r.Context())
			if actor.WorkerID == "" {
				response.Unauthorized(w, "Unauthorized")
				return
			}

			if !actor.Can(permission) {
				response.Forbidden(w, fmt.Sprintf("Insufficient permissions: required '%s', but role is '%s'", permission, actor.Role))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
