// storage задаёт контракт хранилища пользователей и их белых списков
// refresh-токенов. Реализации: mongo (основная), postgres, memory.
//
// Все методы, меняющие белый список, атомарны в пределах одного пользователя:
// решение о членстве и запись нового состояния выполняются одной операцией
// хранилища (условный update одного документа/строки или мьютекс).
package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/pribylovaa/copilot-auth/internal/models"
)

var (
	// ErrNotFound — пользователь не найден.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (id/email/username).
	ErrAlreadyExists = errors.New("already exists")
)

// UserStorage выполняет операции над пользователями.
type UserStorage interface {
	// CreateUser сохраняет нового пользователя. Конфликт — ErrAlreadyExists.
	CreateUser(ctx context.Context, user *models.User) error
	// UserByEmail находит пользователя по email (в нижнем регистре).
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// UpdateImage обновляет изображение профиля.
	UpdateImage(ctx context.Context, id uuid.UUID, image string) error
}

// WhitelistStorage управляет белым списком refresh-токенов пользователя.
type WhitelistStorage interface {
	// AddRefreshToken добавляет токен в белый список.
	AddRefreshToken(ctx context.Context, userID uuid.UUID, token string) error
	// RotateRefreshToken атомарно заменяет oldToken на newToken, если oldToken
	// присутствует в белом списке. Возвращает:
	//
	//	(true, nil)  — токен был в списке и заменён;
	//	(false, nil) — токена в списке нет, список не изменён;
	//	(false, ErrNotFound) — пользователь не найден.
	RotateRefreshToken(ctx context.Context, userID uuid.UUID, oldToken, newToken string) (bool, error)
	// RemoveRefreshTokens удаляет перечисленные токены; отсутствующие игнорируются.
	RemoveRefreshTokens(ctx context.Context, userID uuid.UUID, tokens ...string) error
	// ClearRefreshTokens очищает белый список целиком.
	ClearRefreshTokens(ctx context.Context, userID uuid.UUID) error
}

// Storage задает контракт работы с хранилищем.
type Storage interface {
	UserStorage
	WhitelistStorage
	Close(ctx context.Context) error
}
