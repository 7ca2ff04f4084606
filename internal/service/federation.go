package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/copilot-auth/internal/cache"
	"github.com/pribylovaa/copilot-auth/internal/metrics"
	"github.com/pribylovaa/copilot-auth/internal/models"
	"github.com/pribylovaa/copilot-auth/internal/pkg/log"
	"github.com/pribylovaa/copilot-auth/internal/pkg/redact"
	"github.com/pribylovaa/copilot-auth/internal/storage"
)

// FederationCallback превращает проверенный провайдером профиль в локальную
// сессию: находит или создаёт пользователя по email, выдаёт пару тем же путём,
// что и Login, и кладёт токены провайдера в кэш.
//
// Ошибка записи в кэш отзывает только что выданный refresh-токен и
// возвращает ErrFederationCache. При ErrEmailMissing пользователь не создаётся.
func (s *Service) FederationCallback(ctx context.Context, profile *models.ExternalProfile) (*models.TokenPair, uuid.UUID, error) {
	const op = "service.FederationCallback"

	lg := log.From(ctx)

	if profile == nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrProviderError)
	}

	email := normalizeEmail(profile.Email)
	if email == "" {
		lg.Warn("federation_email_missing", slog.String("subject", profile.Subject))
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrEmailMissing)
	}

	user, err := s.resolveFederatedUser(ctx, email, profile.Picture)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	pair, err := s.issuePair(ctx, user, metrics.MethodFederation)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.cacheProviderTokens(ctx, user.ID, profile.Tokens); err != nil {
		s.metrics.CacheWrite(false)

		if rmErr := s.storage.RemoveRefreshTokens(ctx, user.ID, pair.RefreshToken); rmErr != nil {
			lg.Error("federation_refresh_revoke_failed",
				slog.String("user_id", user.ID.String()),
				slog.String("err", rmErr.Error()),
			)
		}

		lg.Error("provider_cache_write_failed",
			slog.String("op", op),
			slog.String("user_id", user.ID.String()),
			slog.String("err", err.Error()),
		)

		return nil, uuid.Nil, fmt.Errorf("%s: %w: %w", op, ErrFederationCache, err)
	}

	s.metrics.CacheWrite(true)
	lg.Info("federation_login",
		slog.String("user_id", user.ID.String()),
		slog.String("email", redact.Email(email)),
	)

	return pair, user.ID, nil
}

// ProviderTokens возвращает закэшированные токены провайдера пользователя.
func (s *Service) ProviderTokens(ctx context.Context, userID uuid.UUID) (models.ProviderTokens, error) {
	const op = "service.ProviderTokens"

	if s.cache == nil {
		return models.ProviderTokens{}, fmt.Errorf("%s: %w", op, ErrProviderTokensNotFound)
	}

	tokens, err := s.cache.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return models.ProviderTokens{}, fmt.Errorf("%s: %w", op, ErrProviderTokensNotFound)
		}

		return models.ProviderTokens{}, fmt.Errorf("%s: %w", op, err)
	}

	return tokens, nil
}

func (s *Service) cacheProviderTokens(ctx context.Context, userID uuid.UUID, tokens models.ProviderTokens) error {
	if s.cache == nil {
		return errors.New("provider token cache is not configured")
	}

	return s.cache.Put(ctx, userID, tokens, s.cacheTTL)
}

// resolveFederatedUser находит пользователя по email или создаёт нового.
// У существующего пользователя обновляется изображение; ошибка обновления
// не прерывает вход.
func (s *Service) resolveFederatedUser(ctx context.Context, email, picture string) (*models.User, error) {
	lg := log.From(ctx)

	user, err := s.storage.UserByEmail(ctx, email)
	switch {
	case err == nil:
		if picture != "" && picture != user.Image {
			if err := s.storage.UpdateImage(ctx, user.ID, picture); err != nil {
				lg.Warn("federation_image_update_failed",
					slog.String("user_id", user.ID.String()),
					slog.String("err", err.Error()),
				)
			} else {
				user.Image = picture
			}
		}

		return user, nil

	case errors.Is(err, storage.ErrNotFound):
		return s.createFederatedUser(ctx, email, picture)

	default:
		return nil, err
	}
}

// createFederatedUser создаёт пользователя без пароля. Username берётся из
// локальной части email, при конфликте — сам email. Если пользователь с тем
// же email появился параллельно, возвращается он.
func (s *Service) createFederatedUser(ctx context.Context, email, picture string) (*models.User, error) {
	candidates := make([]string, 0, 2)
	if name := usernameFromEmail(email); name != "" {
		candidates = append(candidates, name)
	}
	candidates = append(candidates, email)

	now := time.Now().UTC()
	user := &models.User{
		ID:        uuid.New(),
		Email:     email,
		Image:     picture,
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, name := range candidates {
		user.Username = name

		err := s.storage.CreateUser(ctx, user)
		if err == nil {
			log.From(ctx).Info("federation_user_created",
				slog.String("user_id", user.ID.String()),
				slog.String("email", redact.Email(email)),
			)
			return user, nil
		}

		if !errors.Is(err, storage.ErrAlreadyExists) {
			return nil, err
		}

		// Конфликт мог быть по email: пользователя создал параллельный вход.
		existing, lookupErr := s.storage.UserByEmail(ctx, email)
		if lookupErr == nil {
			return existing, nil
		}
		if !errors.Is(lookupErr, storage.ErrNotFound) {
			return nil, lookupErr
		}
	}

	return nil, ErrUserExists
}
