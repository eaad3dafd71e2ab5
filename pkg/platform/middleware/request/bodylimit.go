package request

import (
	"fmt"
	"log/slog"
	"net/http"

	dErrors "attesto/pkg/domain-errors"
	"attesto/pkg/platform/httputil"
	"attesto/pkg/requestcontext"
)

// BodyLimit caps request bodies at maxBytes. A declared Content-Length over the cap
// is answered with 413 before the handler runs. Bodies of unknown length are
// wrapped in http.MaxBytesReader, so reads past the cap fail with
// *http.MaxBytesError and the decoder reports 413.
func BodyLimit(maxBytes int64, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				ctx := r.Context()
				if logger != nil {
					logger.WarnContext(ctx, "request body over limit",
						"content_length", r.ContentLength,
						"limit", maxBytes,
						"path", r.URL.Path,
						"request_id", requestcontext.RequestID(ctx),
					)
				}
				httputil.WriteError(w, dErrors.New(dErrors.CodeTooLarge,
					fmt.Sprintf("request body exceeds %d bytes", maxBytes)))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
