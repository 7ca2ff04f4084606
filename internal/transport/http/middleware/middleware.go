// middleware — net/http мидлвары auth-сервиса: восстановление после
// паники, request id, логирование, метрики, дедлайн запроса и проверка
// Bearer access-токена.
package middleware

import "net/http"

// Middleware — стандартный net/http мидлвар.
type Middleware func(http.Handler) http.Handler

// Chain оборачивает h так, что первый мидлвар в списке становится внешним.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
