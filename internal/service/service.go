// service содержит бизнес-логику auth-сервиса:
// регистрацию и вход по паролю, ротацию refresh-токенов с белым списком,
// проверку access-токенов и вход через внешнего OIDC-провайдера.
//
// Основные аспекты:
//   - Service не хранит состояние запроса; экземпляр безопасен для
//     конкурентного использования, если потокобезопасны storage и cache.
//   - Единственное серверное состояние сессий — белый список refresh-токенов
//     пользователя; все его изменения идут через атомарные операции storage.
//   - Ошибки возвращаются как sentinel-значения ниже и маппятся транспортом
//     на HTTP-статусы (internal/transport/http/errors).
package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/pribylovaa/copilot-auth/internal/cache"
	"github.com/pribylovaa/copilot-auth/internal/config"
	"github.com/pribylovaa/copilot-auth/internal/metrics"
	"github.com/pribylovaa/copilot-auth/internal/storage"
	"github.com/pribylovaa/copilot-auth/internal/token"
)

var (
	// ErrInvalidCredentials — пара логин/пароль неверна или пользователь не найден.
	// Транспорт: HTTP 401, одинаковое тело в обоих случаях.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrTokenInvalid — подпись, алгоритм или формат токена неверны,
	// либо токен не того типа. Транспорт: HTTP 401.
	ErrTokenInvalid = errors.New("token invalid")

	// ErrTokenExpired — срок действия токена истёк. Транспорт: HTTP 401.
	ErrTokenExpired = errors.New("token expired")

	// ErrUserNotFound — владелец токена не найден. Транспорт: HTTP 401.
	ErrUserNotFound = errors.New("user not found")

	// ErrReplaySuspected — предъявлен refresh-токен, которого нет в белом
	// списке. Перед возвратом белый список пользователя очищается.
	// Транспорт: HTTP 401.
	ErrReplaySuspected = errors.New("refresh token replay suspected")

	// ErrUnauthorized — общий отказ проверки access-токена; оборачивается
	// вместе с причиной (ErrTokenExpired/ErrTokenInvalid).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrProviderError — провайдер отклонил вход или вернул неполный профиль.
	// Транспорт: HTTP 502 / редирект с error=provider_error.
	ErrProviderError = errors.New("identity provider error")

	// ErrEmailMissing — провайдер не вернул подтверждённый email.
	ErrEmailMissing = fmt.Errorf("email missing: %w", ErrProviderError)

	// ErrFederationCache — не удалось записать токены провайдера в кэш.
	// Выданный refresh-токен при этом отзывается. Транспорт: HTTP 500.
	ErrFederationCache = errors.New("provider token cache write failed")

	// ErrProviderTokensNotFound — в кэше нет токенов провайдера для пользователя
	// (не было OIDC-входа или истёк TTL). Транспорт: HTTP 404.
	ErrProviderTokensNotFound = errors.New("provider tokens not found")

	// ErrUserExists — email или username уже заняты. Транспорт: HTTP 409.
	ErrUserExists = errors.New("user already exists")

	// ErrInvalidEmail — e-mail имеет некорректный формат.
	// Транспорт: HTTP 400.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrInvalidUsername — username пуст или содержит недопустимые символы.
	// Транспорт: HTTP 400.
	ErrInvalidUsername = errors.New("invalid username")

	// ErrWeakPassword — пароль не удовлетворяет политикам сложности.
	// Транспорт: HTTP 400.
	ErrWeakPassword = errors.New("password is too weak")

	// ErrEmptyPassword — пароль пустой.
	// Транспорт: HTTP 400.
	ErrEmptyPassword = errors.New("password is empty")
)

// Service описывает бизнес-логику auth-сервиса.
type Service struct {
	storage storage.Storage
	codec   *token.Codec
	cfg     config.AuthConfig

	// cache может быть nil: тогда OIDC-вход завершается ErrFederationCache.
	cache    cache.ProviderTokenCache
	cacheTTL time.Duration

	metrics *metrics.Metrics
}

// Option настраивает Service.
type Option func(*Service)

// WithProviderCache подключает кэш токенов провайдера и TTL записей.
func WithProviderCache(c cache.ProviderTokenCache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithMetrics подключает метрики.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New создаёт новый экземпляр Service.
func New(storage storage.Storage, codec *token.Codec, cfg config.AuthConfig, opts ...Option) *Service {
	s := &Service{
		storage: storage,
		codec:   codec,
		cfg:     cfg,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}
