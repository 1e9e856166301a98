package middleware

import (
	"net/http"
	"strings"

	"github.com/baharkarakas/broker-ledger/internal/api/httpx"
	"github.com/baharkarakas/broker-ledger/internal/auth"
	"github.com/baharkarakas/broker-ledger/internal/models"
)

type AuthMiddleware struct {
	TM     *auth.TokenManager
	AppEnv string
}

func NewAuthMiddleware(tm *auth.TokenManager, appEnv string) *AuthMiddleware {
	return &AuthMiddleware{TM: tm, AppEnv: appEnv}
}

// Auth accepts `Bearer <JWT(access)>`. In dev it also accepts
// `Bearer dev-<uid>[:role]`, role defaulting to client.
func (m *AuthMiddleware) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ah := r.Header.Get("Authorization")
		if len(ah) < 7 || !strings.EqualFold(ah[:7], "bearer ") {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", "missing bearer token", nil)
			return
		}
		token := strings.TrimSpace(ah[7:])

		if m.AppEnv == "dev" && strings.HasPrefix(token, "dev-") {
			a, ok := devActor(strings.TrimPrefix(token, "dev-"))
			if !ok {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", "malformed dev token", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), a)))
			return
		}

		if m.TM == nil {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", "invalid access token", nil)
			return
		}
		claims, err := m.TM.ParseAccess(token)
		if err != nil {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", "invalid access token", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), claims.Actor())))
	})
}

func devActor(s string) (models.Actor, bool) {
	uid, rawRole, hasRole := strings.Cut(s, ":")
	if uid == "" {
		return models.Actor{}, false
	}
	role := models.RoleClient
	if hasRole {
		var err error
		if role, err = models.ParseRole(rawRole); err != nil {
			return models.Actor{}, false
		}
	}
	return models.Actor{UserID: uid, Role: role}, true
}
