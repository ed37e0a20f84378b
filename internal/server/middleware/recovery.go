package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"taskvault/backend/internal/server/respond"
)

// Recoverer converts a handler panic into a 500 envelope instead of killing
// the connection. The panic value and stack are logged server-side only.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				slog.Error("panic in handler",
					slog.Any("panic", rec),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				)
				respond.Error(w, nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
