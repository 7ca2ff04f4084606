// token выпускает и проверяет подписанные JWT (HS256) с ограниченным сроком жизни.
//
// Codec не имеет состояния, кроме секрета и часов, поэтому безопасен
// для конкурентного использования из любого числа горутин.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrConfig — не задан секрет подписи или передан некорректный TTL.
	ErrConfig = errors.New("token codec misconfigured")
	// ErrInvalid — неверная подпись, алгоритм или формат токена.
	ErrInvalid = errors.New("token invalid")
	// ErrExpired — срок действия токена истёк.
	ErrExpired = errors.New("token expired")
)

// Claims — набор полей, переносимых токеном.
//
// Access-токен: {sub, username, email, image, nonce, iat, exp}.
// Refresh-токен: {sub, nonce, iat, exp} — поля профиля остаются пустыми
// и в JSON не попадают.
type Claims struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Image    string `json:"image,omitempty"`
	Nonce    string `json:"nonce"`
	jwt.RegisteredClaims
}

// UserID возвращает идентификатор пользователя из sub.
func (c *Claims) UserID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalid
	}

	return id, nil
}

// HasProfile сообщает, несёт ли токен поля профиля (признак access-токена).
func (c *Claims) HasProfile() bool {
	return c.Email != "" || c.Username != ""
}

// Codec подписывает и проверяет токены общим симметричным секретом.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// Option настраивает Codec.
type Option func(*Codec)

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// New создаёт Codec. Пустой секрет — ErrConfig.
func New(secret string, opts ...Option) (*Codec, error) {
	const op = "token.New"

	if secret == "" {
		return nil, fmt.Errorf("%s: empty secret: %w", op, ErrConfig)
	}

	c := &Codec{
		secret: []byte(secret),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Now возвращает текущее время по часам кодека.
func (c *Codec) Now() time.Time {
	return c.now()
}

// Mint подписывает claims с временем жизни ttl.
// iat/exp выставляются кодеком; ttl == 0 даёт сразу просроченный токен,
// отрицательный ttl — ErrConfig.
func (c *Codec) Mint(claims Claims, ttl time.Duration) (string, error) {
	const op = "token.Mint"

	if ttl < 0 {
		return "", fmt.Errorf("%s: negative ttl: %w", op, ErrConfig)
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("%s: empty subject: %w", op, ErrInvalid)
	}

	now := c.now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// Verify проверяет подпись, алгоритм и срок действия и возвращает claims.
func (c *Codec) Verify(signed string) (*Claims, error) {
	const op = "token.Verify"

	if signed == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalid)
	}

	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(signed, claims,
		func(*jwt.Token) (any, error) {
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%s: %w", op, ErrExpired)
		}

		return nil, fmt.Errorf("%s: %w", op, ErrInvalid)
	}

	if !tok.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalid)
	}

	return claims, nil
}

// NewNonce возвращает случайное значение, связывающее токены одной пары.
func NewNonce() string {
	return uuid.NewString()
}
