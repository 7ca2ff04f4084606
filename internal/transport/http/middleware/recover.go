package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	logctx "github.com/pribylovaa/copilot-auth/internal/pkg/log"
	apierrors "github.com/pribylovaa/copilot-auth/internal/transport/http/errors"
)

var errPanic = errors.New("handler panic")

// Recover превращает panic хендлера в 500/internal. Значение паники и стек
// уходят только в лог. http.ErrAbortHandler пробрасывается дальше, чтобы
// net/http оборвал соединение как обычно.
func Recover() Middleware {
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

				logctx.From(r.Context()).Error("panic",
					slog.String("path", r.URL.Path),
					slog.Any("reason", rec),
					slog.String("stack", string(debug.Stack())),
				)
				apierrors.WriteError(w, r, errPanic)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
