package middleware

import (
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"flowcanvas-backend/application/ports"
	"flowcanvas-backend/pkg/auth"
	"flowcanvas-backend/pkg/common"
	pkgerrors "flowcanvas-backend/pkg/errors"
)

// Authenticate verifies the bearer token on every request and places
// the resolved identity in the request context. Default-deny: no
// token, no access.
func Authenticate(verifier ports.TokenVerifier, logger *zap.Logger) func(next http.Handler) http.Handler {
	ipLimiter := auth.NewIPRateLimiter(100)
	userLimiter := auth.NewUserRateLimiter(200)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, _ := ipLimiter.Allow(r.Context(), clientIP(r))
			if !allowed {
				common.RespondError(w, pkgerrors.NewRateLimitError("rate limit exceeded"))
				return
			}

			token, err := extractBearerToken(r)
			if err != nil {
				common.RespondError(w, err)
				return
			}

			identity, err := verifier.Verify(r.Context(), token)
			if err != nil {
				logger.Debug("token verification failed", zap.Error(err))
				common.RespondError(w, err)
				return
			}

			allowed, _ = userLimiter.Allow(r.Context(), identity.UserID)
			if !allowed {
				common.RespondError(w, pkgerrors.NewRateLimitError("rate limit exceeded"))
				return
			}

			ctx := auth.SetUserInContext(r.Context(), &auth.UserContext{
				UserID: identity.UserID,
				Email:  identity.Email,
				Roles:  identity.Roles,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractBearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", pkgerrors.NewUnauthorizedError("missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", pkgerrors.NewUnauthorizedError("invalid authorization header format")
	}
	return parts[1], nil
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.Index(forwarded, ","); idx != -1 {
			return strings.TrimSpace(forwarded[:idx])
		}
		return strings.TrimSpace(forwarded)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
