package request

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"attesto/pkg/requestcontext"
)

// MaxRequestIDLength bounds a caller-supplied X-Request-ID.
const MaxRequestIDLength = 128

const requestIDHeader = "X-Request-ID"

var requestIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// RequestID propagates the caller's X-Request-ID when it is safe to log, and
// otherwise mints a UUID. The chosen ID is echoed in the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if !isValidRequestID(id) {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(requestcontext.WithRequestID(r.Context(), id)))
	})
}

func isValidRequestID(id string) bool {
	return id != "" && len(id) <= MaxRequestIDLength && requestIDPattern.MatchString(id)
}
