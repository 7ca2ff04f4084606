package middleware

import (
	"log/slog"
	"net/http"
	"time"

	logctx "github.com/pribylovaa/copilot-auth/internal/pkg/log"
)

// Logging делает логгер запроса (base + request_id) доступным через
// internal/pkg/log и по завершении пишет запись "http". Ставится после
// RequestID. Ответы 5xx пишутся уровнем Error.
func Logging(base *slog.Logger) Middleware {
	if base == nil {
		base = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := base
			if rid := RequestIDFrom(r.Context()); rid != "" {
				l = l.With(slog.String("request_id", rid))
			}

			sw := newStatusWriter(w)
			started := time.Now()
			next.ServeHTTP(sw, r.WithContext(logctx.Into(r.Context(), l)))

			level := slog.LevelInfo
			if sw.Status() >= http.StatusInternalServerError {
				level = slog.LevelError
			}

			// Query не пишем: в callback-адресах бывают коды и токены.
			l.LogAttrs(r.Context(), level, "http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", sw.Status()),
				slog.Duration("dur", time.Since(started)),
				slog.Int("bytes", sw.count),
			)
		})
	}
}
