package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/templui/taskfiles/internal/ctxkeys"
	"github.com/templui/taskfiles/internal/service"
	"github.com/templui/taskfiles/internal/ui"
)

// AuthMiddleware resolves the bearer token into an identity on the request context.
// Requests without a valid token continue anonymously; RequireAuth rejects them.
func AuthMiddleware(authService *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := authService.VerifyJWT(token)
			if err != nil {
				slog.Debug("rejected bearer token", "error", err, "path", r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}

			ctx := ctxkeys.WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth ensures the request carries a verified identity
func RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, ok := ctxkeys.Identity(r.Context())
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="taskfiles"`)
			ui.RenderError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
