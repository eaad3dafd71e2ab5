package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"attesto/pkg/requestcontext"
)

// AccessTokenCookie is the cookie browsers use to carry the access token when no
// Authorization header is present.
const AccessTokenCookie = "accessToken"

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// tokenFromRequest returns the bearer token from the Authorization header, falling back
// to the access token cookie. The header wins when both are present.
func tokenFromRequest(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			return ""
		}
		return strings.TrimSpace(token)
	}
	if c, err := r.Cookie(AccessTokenCookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

// RequireAccessToken returns middleware that lifts the caller's access token into the
// request context. The token is opaque here: the identity directory is the only party
// that can say who it belongs to, so no validation happens at this layer.
func RequireAccessToken(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := tokenFromRequest(r)
			if token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			ctx = requestcontext.WithAccessToken(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
