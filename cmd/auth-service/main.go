package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pribylovaa/copilot-auth/internal/cache"
	"github.com/pribylovaa/copilot-auth/internal/config"
	"github.com/pribylovaa/copilot-auth/internal/metrics"
	"github.com/pribylovaa/copilot-auth/internal/oauth"
	"github.com/pribylovaa/copilot-auth/internal/service"
	"github.com/pribylovaa/copilot-auth/internal/storage"
	"github.com/pribylovaa/copilot-auth/internal/storage/memory"
	"github.com/pribylovaa/copilot-auth/internal/storage/mongo"
	"github.com/pribylovaa/copilot-auth/internal/storage/postgres"
	"github.com/pribylovaa/copilot-auth/internal/token"
	authhttp "github.com/pribylovaa/copilot-auth/internal/transport/http"
	"github.com/pribylovaa/copilot-auth/internal/transport/http/handlers"
)

// Константы для определения окружения.
const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = config.EnvProd
)

// connectTimeout ограничивает подключение к внешним зависимостям на старте.
const connectTimeout = 10 * time.Second

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting application", "env", cfg.Env)

	// Корневой контекст по сигналам.
	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	if err := run(rootCtx, cfg, log); err != nil {
		log.Error("service_failed", slog.String("err", err.Error()))
		rootCancel()
		os.Exit(1)
	}

	log.Info("service_stopped")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	str, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.Shutdown)
		defer cancel()
		if cerr := str.Close(closeCtx); cerr != nil {
			log.Warn("storage_close_failed", slog.String("err", cerr.Error()))
		}
	}()
	log.Info("storage_connected", slog.String("driver", cfg.Storage.Driver))

	pc, err := openCache(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := pc.Close(); cerr != nil {
			log.Warn("cache_close_failed", slog.String("err", cerr.Error()))
		}
	}()
	log.Info("cache_connected", slog.String("driver", cfg.Cache.Driver))

	codec, err := token.New(cfg.Auth.JWTSecret)
	if err != nil {
		return fmt.Errorf("token codec: %w", err)
	}

	var idp oauth.IdentityProvider
	if cfg.OAuth.Enabled() {
		dctx, cancel := context.WithTimeout(ctx, connectTimeout)
		p, err := oauth.NewOIDCProvider(dctx, oauth.Config{
			Issuer:       cfg.OAuth.Issuer,
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			RedirectURL:  cfg.OAuth.CallbackURL,
			Scopes:       cfg.OAuth.Scopes,
		})
		cancel()
		if err != nil {
			return fmt.Errorf("oidc provider: %w", err)
		}
		idp = p
		log.Info("oidc_provider_ready", slog.String("issuer", cfg.OAuth.Issuer))
	} else {
		log.Warn("oidc_disabled")
	}

	m := metrics.New()
	svc := service.New(str, codec, cfg.Auth,
		service.WithProviderCache(pc, cfg.Cache.TTL),
		service.WithMetrics(m),
	)
	log.Info("service_initialized")

	var ready atomic.Bool

	handler := authhttp.NewRouter(svc, idp, authhttp.Options{
		Logger:  log,
		Timeout: cfg.Timeouts.Request,
		Metrics: m,
		Ready:   ready.Load,
		Handlers: handlers.Config{
			ClientRedirect: cfg.OAuth.ClientRedirect,
			InternalAPIKey: cfg.Internal.APIKey,
			SecureCookies:  cfg.Env == envProd,
		},
	})

	httpAddr := cfg.HTTP.Addr()
	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", httpAddr)
	if err != nil {
		return fmt.Errorf("http listen %s: %w", httpAddr, err)
	}
	log.Info("http_listen_start", slog.String("addr", httpAddr))

	serveErrCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	ready.Store(true)
	log.Info("service_ready")

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown_requested")
	case serveErr = <-serveErrCh:
		if serveErr != nil {
			log.Error("http_serve_failed", slog.String("err", serveErr.Error()))
		}
	}

	ready.Store(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.Shutdown)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_shutdown_incomplete", slog.String("err", err.Error()))
	} else {
		log.Info("http_stopped")
	}

	return serveErr
}

// openStorage подключает хранилище пользователей по драйверу из конфига.
func openStorage(ctx context.Context, cfg config.StorageConfig) (storage.Storage, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	switch cfg.Driver {
	case config.DriverMongo:
		s, err := mongo.New(ctx, cfg.MongoURL)
		if err != nil {
			return nil, fmt.Errorf("mongo storage: %w", err)
		}
		return s, nil
	case config.DriverPostgres:
		s, err := postgres.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("postgres storage: %w", err)
		}
		return s, nil
	case config.DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// openCache подключает кэш токенов провайдера.
func openCache(ctx context.Context, cfg config.CacheConfig) (cache.ProviderTokenCache, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	switch cfg.Driver {
	case config.DriverRedis:
		c, err := cache.NewRedis(ctx, cfg.RedisURL, cfg.KeyPrefix)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		return c, nil
	case config.DriverMemory:
		return cache.NewMemory(nil), nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
}

// setupLogger настраивает slog по окружению.
func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
