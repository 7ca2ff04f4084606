package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// User — учётная запись пользователя.
//
// PasswordHash пуст для аккаунтов, созданных только через внешний
// провайдер (OIDC). RefreshWhitelist — набор ещё не использованных
// refresh-токенов пользователя; порядок элементов не важен.
type User struct {
	ID               uuid.UUID
	Email            string
	Username         string
	PasswordHash     string
	Image            string
	RefreshWhitelist []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasPassword сообщает, может ли пользователь входить по паролю.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// Whitelisted проверяет, что refresh-токен присутствует в белом списке.
func (u *User) Whitelisted(token string) bool {
	return slices.Contains(u.RefreshWhitelist, token)
}
