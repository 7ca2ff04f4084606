package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/copilot-auth/internal/metrics"
	"github.com/pribylovaa/copilot-auth/internal/oauth"
	"github.com/pribylovaa/copilot-auth/internal/transport/http/handlers"
	"github.com/pribylovaa/copilot-auth/internal/transport/http/middleware"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger  *slog.Logger
	Timeout time.Duration
	Metrics *metrics.Metrics
	// Ready — проверка готовности для /healthz; nil — всегда готов.
	Ready    func() bool
	Handlers handlers.Config
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
// idp может быть nil: тогда маршруты /auth/google* не регистрируются.
func NewRouter(svc handlers.AuthService, idp oauth.IdentityProvider, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),            // безопасно ловим паники
		middleware.RequestID(),          // формируем/прокидываем X-Request-Id (до логирования!)
		middleware.Logging(opts.Logger), // кладём request-scoped логгер в контекст и логируем
		middleware.Metrics(opts.Metrics),
	)
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout)) // общий дедлайн запроса
	}

	registerProbes(root, opts)

	h := handlers.New(svc, idp, opts.Handlers)
	registerRoutes(root, h, middleware.AuthBearer(svc))

	return root
}

// registerRoutes — единая точка регистрации всех REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers, gate middleware.Middleware) {
	// auth
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
	r.Post("/auth/refresh", h.Refresh)
	r.Post("/auth/logout", h.Logout)
	r.Post("/auth/validate", h.Validate)
	r.With(gate).Get("/auth/user-info", h.UserInfo)

	// federation
	if h.FederationEnabled() {
		r.Get("/auth/google", h.GoogleLogin)
		r.Get("/auth/google/callback", h.GoogleCallback)
	}

	// internal
	r.Get("/users/{id}/token", h.ProviderTokens)
}

func registerProbes(r chi.Router, opts Options) {
	r.Get("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if opts.Ready == nil || opts.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}
		http.Error(w, "not ready", http.StatusServiceUnavailable)
	})

	r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
}
