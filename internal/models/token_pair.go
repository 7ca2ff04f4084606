package models

import "time"

// TokenPair — пара токенов, выдаваемая при входе, обновлении и OIDC-логине.
//
// Описание:
//   - AccessToken — короткоживущий JWT для доступа к API;
//   - RefreshToken — долгоживущий JWT, одноразовый; действителен, только пока
//     присутствует в белом списке пользователя;
//   - AccessExpiresAt — момент истечения access-токена (UTC).
//
// Оба токена одной пары несут общий nonce. Пара как единое целое нигде не хранится.
type TokenPair struct {
	// AccessToken — JWT для авторизации запросов.
	AccessToken string
	// RefreshToken — JWT для обновления пары.
	RefreshToken string
	// AccessExpiresAt — время истечения действия access-токена (UTC).
	AccessExpiresAt time.Time
}

// AccessIdentity — данные пользователя, извлечённые из валидного access-токена.
type AccessIdentity struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Image    string `json:"image"`
}
