package middleware

import (
	"net/http"
	"runtime/debug"

	"mercator-hq/throttle/pkg/telemetry/logging"
)

// Recovery recovers from panics in downstream handlers, logs the stack and
// returns a 500 without exposing internal details.
func Recovery(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.ErrorContext(r.Context(), "panic in handler",
					"error", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)

				WriteError(w, http.StatusInternalServerError, ErrorDetail{
					Type:      ErrorTypeInternal,
					Message:   "An internal error occurred. Please try again later.",
					RequestID: logging.GetRequestID(r.Context()),
				})
			}()

			next.ServeHTTP(w, r)
		})
	}
}
