package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/copilot-auth/internal/models"
)

type memEntry struct {
	tokens    models.ProviderTokens
	expiresAt time.Time
}

// Memory — кэш в памяти процесса для env=local и тестов.
type Memory struct {
	mu    sync.Mutex
	items map[uuid.UUID]memEntry
	now   func() time.Time
}

// NewMemory создаёт кэш. now == nil — используется time.Now.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}

	return &Memory{items: make(map[uuid.UUID]memEntry), now: now}
}

func (m *Memory) Put(_ context.Context, userID uuid.UUID, tokens models.ProviderTokens, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("cache.memory.Put: %w", ErrInvalidTTL)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[userID] = memEntry{tokens: tokens, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *Memory) Get(_ context.Context, userID uuid.UUID) (models.ProviderTokens, error) {
	const op = "cache.memory.Get"

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.items[userID]
	if !ok {
		return models.ProviderTokens{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	if !m.now().Before(e.expiresAt) {
		delete(m.items, userID)
		return models.ProviderTokens{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	return e.tokens, nil
}

func (m *Memory) Close() error { return nil }

var (
	_ ProviderTokenCache = (*Memory)(nil)
	_ ProviderTokenCache = (*redisCache)(nil)
)
