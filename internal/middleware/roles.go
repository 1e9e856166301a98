package middleware

import (
	"net/http"
	"slices"

	"github.com/baharkarakas/broker-ledger/internal/api/httpx"
	"github.com/baharkarakas/broker-ledger/internal/models"
)

// RequireRole allows only callers holding one of roles.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a, ok := ActorFrom(r.Context())
			if !ok {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", "authentication required", nil)
				return
			}
			if !slices.Contains(roles, a.Role) {
				httpx.WriteError(w, http.StatusForbidden, "forbidden", "role "+string(a.Role)+" may not call this endpoint", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
