package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"dispatchline/internal/httputil"
	"dispatchline/internal/twiml"
)

// Recovery recovers from handler panics. A panic on a voice webhook is
// converted into a spoken apology and hangup - a raw fault would reach the
// caller as dead air, the worst outcome the design must avoid. Non-voice
// routes get a plain 500.
func Recovery(logger *slog.Logger, apology string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered",
						"error", err,
						"path", r.URL.Path,
						"method", r.Method,
						"stack", string(debug.Stack()),
					)

					if strings.HasPrefix(r.URL.Path, "/voice") {
						httputil.RespondTwiML(w, twiml.SayHangup(apology))
						return
					}
					httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
