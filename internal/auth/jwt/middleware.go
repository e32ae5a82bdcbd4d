package jwt

import (
	"net/http"
	"strings"

	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/httputil"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

// MiddlewareOptions configures the bearer-token middleware
type MiddlewareOptions struct {
	// AllowUserIDHeader accepts X-User-ID when no Authorization header is sent.
	// Only enable in development.
	AllowUserIDHeader bool
}

// Middleware validates bearer tokens and adds user context
func (v *Verifier) Middleware(log *logger.Logger, opts MiddlewareOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				if userID := r.Header.Get("X-User-ID"); opts.AllowUserIDHeader && userID != "" {
					httputil.MarkUser(w, userID)
					next.ServeHTTP(w, r.WithContext(httputil.WithUser(r.Context(), userID, r.Header.Get("X-User-Email"))))
					return
				}
				httputil.Error(w, errors.Unauthorized("missing authorization header"))
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				httputil.Error(w, errors.Unauthorized("invalid authorization header format"))
				return
			}

			claims, err := v.ValidateAccessToken(strings.TrimSpace(parts[1]))
			if err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("token validation failed")
				httputil.Error(w, err)
				return
			}

			httputil.MarkUser(w, claims.IssuingUser())
			next.ServeHTTP(w, r.WithContext(httputil.WithUser(r.Context(), claims.IssuingUser(), claims.Email)))
		})
	}
}
