package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/samber/oops"

	"go-account-service/internal/model"
)

// Recovery turns a handler panic into an INTERNAL_ERROR envelope. The panic value
// is logged but never echoed to the client. http.ErrAbortHandler is passed
// through so the server can drop the connection.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			if err, ok := recovered.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(recovered)
			}

			slog.ErrorContext(r.Context(), "handler panic",
				"method", r.Method,
				"route", logPath(r),
				"panic", recovered,
				"stack", string(debug.Stack()),
			)
			w.Header().Set("Connection", "close")
			writeError(w, oops.Code("PANIC").Wrap(model.ErrInternal))
		}()

		next.ServeHTTP(w, r)
	})
}
