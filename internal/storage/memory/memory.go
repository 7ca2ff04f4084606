// memory — хранилище пользователей в памяти процесса.
// Используется в env=local без внешних зависимостей и в тестах.
// Все операции выполняются под одним мьютексом, поэтому чтение белого
// списка, проверка членства и запись нового состояния атомарны.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/copilot-auth/internal/models"
	"github.com/pribylovaa/copilot-auth/internal/storage"
)

// Storage — потокобезопасная реализация storage.Storage.
type Storage struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*models.User
	byEmail map[string]uuid.UUID
	byName  map[string]uuid.UUID
}

// New создаёт пустое хранилище.
func New() *Storage {
	return &Storage{
		byID:    make(map[uuid.UUID]*models.User),
		byEmail: make(map[string]uuid.UUID),
		byName:  make(map[string]uuid.UUID),
	}
}

// Close ничего не делает.
func (s *Storage) Close(context.Context) error { return nil }

// CreateUser сохраняет копию пользователя.
func (s *Storage) CreateUser(_ context.Context, user *models.User) error {
	const op = "storage.memory.CreateUser"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[user.ID]; ok {
		return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}
	if _, ok := s.byEmail[user.Email]; ok {
		return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}
	if _, ok := s.byName[user.Username]; ok {
		return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}

	u := clone(user)
	s.byID[u.ID] = u
	s.byEmail[u.Email] = u.ID
	s.byName[u.Username] = u.ID

	return nil
}

// UserByEmail находит пользователя по email.
func (s *Storage) UserByEmail(_ context.Context, email string) (*models.User, error) {
	const op = "storage.memory.UserByEmail"

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return clone(s.byID[id]), nil
}

// UserByID находит пользователя по ID.
func (s *Storage) UserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	const op = "storage.memory.UserByID"

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return clone(u), nil
}

// UpdateImage обновляет изображение профиля.
func (s *Storage) UpdateImage(_ context.Context, id uuid.UUID, image string) error {
	return s.mutate("storage.memory.UpdateImage", id, func(u *models.User) {
		u.Image = image
	})
}

// AddRefreshToken добавляет токен в белый список.
func (s *Storage) AddRefreshToken(_ context.Context, userID uuid.UUID, token string) error {
	return s.mutate("storage.memory.AddRefreshToken", userID, func(u *models.User) {
		if !u.Whitelisted(token) {
			u.RefreshWhitelist = append(u.RefreshWhitelist, token)
		}
	})
}

// RotateRefreshToken заменяет oldToken на newToken, если oldToken в списке.
func (s *Storage) RotateRefreshToken(_ context.Context, userID uuid.UUID, oldToken, newToken string) (bool, error) {
	var rotated bool

	err := s.mutate("storage.memory.RotateRefreshToken", userID, func(u *models.User) {
		i := slices.Index(u.RefreshWhitelist, oldToken)
		if i < 0 {
			return
		}

		u.RefreshWhitelist = slices.Delete(u.RefreshWhitelist, i, i+1)
		u.RefreshWhitelist = append(u.RefreshWhitelist, newToken)
		rotated = true
	})

	return rotated, err
}

// RemoveRefreshTokens удаляет перечисленные токены.
func (s *Storage) RemoveRefreshTokens(_ context.Context, userID uuid.UUID, tokens ...string) error {
	return s.mutate("storage.memory.RemoveRefreshTokens", userID, func(u *models.User) {
		u.RefreshWhitelist = slices.DeleteFunc(u.RefreshWhitelist, func(t string) bool {
			return slices.Contains(tokens, t)
		})
	})
}

// ClearRefreshTokens очищает белый список.
func (s *Storage) ClearRefreshTokens(_ context.Context, userID uuid.UUID) error {
	return s.mutate("storage.memory.ClearRefreshTokens", userID, func(u *models.User) {
		u.RefreshWhitelist = nil
	})
}

// mutate применяет fn к пользователю под блокировкой хранилища.
func (s *Storage) mutate(op string, id uuid.UUID, fn func(u *models.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	fn(u)
	u.UpdatedAt = time.Now().UTC()

	return nil
}

func clone(u *models.User) *models.User {
	c := *u
	c.RefreshWhitelist = slices.Clone(u.RefreshWhitelist)
	return &c
}

// Проверка на соответствие интерфейсу Storage.
var _ storage.Storage = (*Storage)(nil)
