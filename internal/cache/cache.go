// cache хранит токены внешнего провайдера (OIDC) по ID пользователя.
// Запись живёт ограниченное время; для внутренних сервисов, которым
// нужен доступ к API провайдера от имени пользователя.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/copilot-auth/internal/models"
)

var (
	// ErrNotFound — записи нет или её TTL истёк.
	ErrNotFound = errors.New("cache: not found")
	// ErrInvalidTTL — ttl должен быть положительным.
	ErrInvalidTTL = errors.New("cache: invalid ttl")
)

// ProviderTokenCache — контракт кэша токенов провайдера.
type ProviderTokenCache interface {
	// Put сохраняет токены на ttl, полностью перезаписывая прежнее значение.
	Put(ctx context.Context, userID uuid.UUID, tokens models.ProviderTokens, ttl time.Duration) error
	// Get возвращает токены или ErrNotFound.
	Get(ctx context.Context, userID uuid.UUID) (models.ProviderTokens, error)
	// Close освобождает ресурсы.
	Close() error
}

// DefaultPrefix — префикс ключа по умолчанию: user_id:<uuid>.
const DefaultPrefix = "user_id:"
