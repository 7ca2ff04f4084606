// config предоставляет структуру конфигурации сервиса и функции
// загрузки из файла/переменных окружения с предсказуемым приоритетом.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// ErrConfig — конфигурация неполна или противоречива; сервис не стартует.
var ErrConfig = errors.New("invalid config")

// EnvProd — окружение, в котором внутренний API обязан быть закрыт ключом.
const EnvProd = "prod"

// Config — корневая конфигурация сервиса.
// Источники значений (по убыванию приоритета):
//  1. явный путь через флаг --config;
//  2. путь в переменной окружения CONFIG_PATH;
//  3. файл local.yaml из рабочей директории;
//  4. переменные окружения (cleanenv).
type Config struct {
	Env      string         `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig     `yaml:"http"`
	Auth     AuthConfig     `yaml:"auth"`
	Storage  StorageConfig  `yaml:"storage"`
	Cache    CacheConfig    `yaml:"cache"`
	OAuth    OAuthConfig    `yaml:"oauth"`
	Internal InternalConfig `yaml:"internal"`
	Timeouts TimeoutConfig  `yaml:"timeouts"`
}

// TimeoutConfig — таймауты сервиса.
type TimeoutConfig struct {
	Request  time.Duration `yaml:"request" env:"REQUEST_TIMEOUT" env-default:"5s"`
	Shutdown time.Duration `yaml:"shutdown" env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// HTTPConfig — сетевые настройки HTTP-сервера.
type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8000"`
}

// Addr возвращает адрес в формате host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// AuthConfig содержит параметры выпуска и валидации токенов.
type AuthConfig struct {
	JWTSecret       string        `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_TTL" env-default:"15m"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" env:"REFRESH_TOKEN_TTL" env-default:"720h"`
}

// Драйверы хранилища пользователей.
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
	DriverRedis    = "redis"
)

// StorageConfig — выбор и подключение хранилища пользователей.
type StorageConfig struct {
	Driver      string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"mongo"`
	MongoURL    string `yaml:"mongo_url" env:"MONGO_URL"`
	PostgresURL string `yaml:"postgres_url" env:"DATABASE_URL"`
}

// CacheConfig — кэш токенов провайдера.
type CacheConfig struct {
	Driver    string        `yaml:"driver" env:"CACHE_DRIVER" env-default:"redis"`
	RedisURL  string        `yaml:"redis_url" env:"REDIS_URL"`
	KeyPrefix string        `yaml:"key_prefix" env:"CACHE_KEY_PREFIX" env-default:"user_id:"`
	TTL       time.Duration `yaml:"ttl" env:"CACHE_TTL" env-default:"1h"`
}

// OAuthConfig — параметры OIDC-провайдера. Пустой ClientID выключает федерацию.
type OAuthConfig struct {
	Issuer         string   `yaml:"issuer" env:"OAUTH_ISSUER" env-default:"https://accounts.google.com"`
	ClientID       string   `yaml:"client_id" env:"GOOGLE_CLIENT_ID"`
	ClientSecret   string   `yaml:"client_secret" env:"GOOGLE_CLIENT_SECRET"`
	CallbackURL    string   `yaml:"callback_url" env:"GOOGLE_CALLBACK_URL"`
	ClientRedirect string   `yaml:"client_redirect" env:"CLIENT_URL" env-default:"http://localhost:8080"`
	Scopes         []string `yaml:"scopes" env:"OAUTH_SCOPES" env-default:"https://www.googleapis.com/auth/calendar.readonly,https://www.googleapis.com/auth/tasks.readonly"`
}

// Enabled сообщает, настроена ли федерация.
func (o OAuthConfig) Enabled() bool { return o.ClientID != "" }

// InternalConfig — доступ внутренних сервисов к кэшу токенов провайдера.
type InternalConfig struct {
	APIKey string `yaml:"api_key" env:"INTERNAL_API_KEY"`
}

// Validate проверяет то, что нельзя выразить тегами cleanenv.
func (c *Config) Validate() error {
	var errs []error

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if c.Auth.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("auth.access_token_ttl must be positive"))
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("auth.refresh_token_ttl must be positive"))
	}

	switch c.Storage.Driver {
	case DriverMongo:
		if c.Storage.MongoURL == "" {
			errs = append(errs, errors.New("storage.mongo_url is required for mongo driver"))
		}
	case DriverPostgres:
		if c.Storage.PostgresURL == "" {
			errs = append(errs, errors.New("storage.postgres_url is required for postgres driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q is unknown", c.Storage.Driver))
	}

	switch c.Cache.Driver {
	case DriverRedis:
		if c.Cache.RedisURL == "" {
			errs = append(errs, errors.New("cache.redis_url is required for redis driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("cache.driver %q is unknown", c.Cache.Driver))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache.ttl must be positive"))
	}

	if c.OAuth.Enabled() && (c.OAuth.ClientSecret == "" || c.OAuth.CallbackURL == "") {
		errs = append(errs, errors.New("oauth.client_secret and oauth.callback_url are required with oauth.client_id"))
	}

	if c.Env == EnvProd && c.Internal.APIKey == "" {
		errs = append(errs, errors.New("internal.api_key is required in prod"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrConfig, errors.Join(errs...))
	}

	return nil
}

// MustLoad — обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load загружает конфигурацию по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
// ВАЖНО: после чтения файла накладываем ENV-переменные поверх значений из YAML.
func Load(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func load(path string) (*Config, error) {
	var cfg Config

	// чтение файла + overlay ENV.
	tryRead := func(p string) (*Config, error) {
		if p == "" {
			return nil, fmt.Errorf("empty config path")
		}

		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file does not exist: %w", err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		return &cfg, nil
	}

	// 1) Явный путь.
	if path != "" {
		c, err := tryRead(path)
		if err != nil {
			return nil, err
		}

		return c, nil
	}

	// 2) CONFIG_PATH.
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		c, err := tryRead(envPath)

		if err != nil {
			return nil, err
		}

		return c, nil
	}

	// 3) ./local.yaml.
	if _, err := os.Stat("local.yaml"); err == nil {
		if err := cleanenv.ReadConfig("local.yaml", &cfg); err != nil {
			return nil, fmt.Errorf("failed to read local.yaml: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		return &cfg, nil
	}

	// 4) Только ENV.
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	return &cfg, nil
}
