package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	logctx "github.com/pribylovaa/copilot-auth/internal/pkg/log"
)

// Timeout навешивает deadline d на контекст запроса; более ранний
// deadline родителя сохраняется. Если хендлер упёрся в deadline, это
// видно в логе как request_deadline_exceeded. Значение <=0 делает
// мидлвар no-op.
func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))

			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				logctx.From(ctx).Warn("request_deadline_exceeded",
					slog.String("path", r.URL.Path),
					slog.Duration("timeout", d),
				)
			}
		})
	}
}
