package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pribylovaa/copilot-auth/internal/models"
	"github.com/pribylovaa/copilot-auth/internal/storage"
)

const userColumns = `id, email, username, password_hash, image, refresh_whitelist, created_at, updated_at`

// CreateUser создает нового пользователя в БД.
func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	const op = "storage.postgres.CreateUser"

	query := `
		INSERT INTO users(` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	whitelist := user.RefreshWhitelist
	if whitelist == nil {
		whitelist = []string{}
	}

	_, err := s.db.Exec(ctx, query,
		user.ID,
		user.Email,
		user.Username,
		user.PasswordHash,
		user.Image,
		whitelist,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// UserByEmail находит пользователя по email.
func (s *Storage) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.postgres.UserByEmail"

	return s.userBy(ctx, op, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// UserByID находит пользователя по ID.
func (s *Storage) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "storage.postgres.UserByID"

	return s.userBy(ctx, op, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (s *Storage) userBy(ctx context.Context, op, query string, arg any) (*models.User, error) {
	var user models.User
	err := s.db.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.PasswordHash,
		&user.Image,
		&user.RefreshWhitelist,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &user, nil
}

// UpdateImage обновляет изображение профиля.
func (s *Storage) UpdateImage(ctx context.Context, id uuid.UUID, image string) error {
	const op = "storage.postgres.UpdateImage"

	query := `UPDATE users SET image = $2, updated_at = now() WHERE id = $1`

	return s.execOne(ctx, op, query, id, image)
}

// AddRefreshToken добавляет токен в белый список (без дублей).
func (s *Storage) AddRefreshToken(ctx context.Context, userID uuid.UUID, token string) error {
	const op = "storage.postgres.AddRefreshToken"

	query := `
		UPDATE users
		SET refresh_whitelist = CASE
				WHEN $2 = ANY(refresh_whitelist) THEN refresh_whitelist
				ELSE array_append(refresh_whitelist, $2)
			END,
			updated_at = now()
		WHERE id = $1
	`

	return s.execOne(ctx, op, query, userID, token)
}

// RotateRefreshToken атомарно заменяет oldToken на newToken.
// Условие членства стоит в WHERE: конкурентный UPDATE той же строки
// перепроверяет его после снятия блокировки и не находит старый токен.
func (s *Storage) RotateRefreshToken(ctx context.Context, userID uuid.UUID, oldToken, newToken string) (bool, error) {
	const op = "storage.postgres.RotateRefreshToken"

	query := `
		UPDATE users
		SET refresh_whitelist = array_append(array_remove(refresh_whitelist, $2), $3),
			updated_at = now()
		WHERE id = $1 AND $2 = ANY(refresh_whitelist)
	`

	tag, err := s.db.Exec(ctx, query, userID, oldToken, newToken)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if !exists {
		return false, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return false, nil
}

// RemoveRefreshTokens удаляет перечисленные токены.
func (s *Storage) RemoveRefreshTokens(ctx context.Context, userID uuid.UUID, tokens ...string) error {
	const op = "storage.postgres.RemoveRefreshTokens"

	query := `
		UPDATE users
		SET refresh_whitelist = ARRAY(
				SELECT t FROM unnest(refresh_whitelist) AS t
				WHERE t <> ALL($2::text[])
			),
			updated_at = now()
		WHERE id = $1
	`

	if tokens == nil {
		tokens = []string{}
	}

	return s.execOne(ctx, op, query, userID, tokens)
}

// ClearRefreshTokens очищает белый список.
func (s *Storage) ClearRefreshTokens(ctx context.Context, userID uuid.UUID) error {
	const op = "storage.postgres.ClearRefreshTokens"

	query := `UPDATE users SET refresh_whitelist = '{}', updated_at = now() WHERE id = $1`

	return s.execOne(ctx, op, query, userID)
}

// execOne выполняет UPDATE одной строки; ноль затронутых строк - ErrNotFound.
func (s *Storage) execOne(ctx context.Context, op, query string, args ...any) error {
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}
