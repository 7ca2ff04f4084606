package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pribylovaa/copilot-auth/internal/metrics"
	"github.com/pribylovaa/copilot-auth/internal/models"
	"github.com/pribylovaa/copilot-auth/internal/pkg/log"
	"github.com/pribylovaa/copilot-auth/internal/pkg/redact"
	"github.com/pribylovaa/copilot-auth/internal/storage"
	"github.com/pribylovaa/copilot-auth/internal/token"
)

// dummyHash сравнивается с паролем, когда пользователя нет или у него нет
// пароля: время ответа не выдаёт существование аккаунта.
var dummyHash = sync.OnceValue(func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), bcrypt.DefaultCost)
	return h
})

// Register регистрирует нового пользователя и сразу выдаёт пару токенов.
func (s *Service) Register(ctx context.Context, email, username, password string) (*models.TokenPair, uuid.UUID, error) {
	const op = "service.Register"

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	name, err := validateUsername(username)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := validatePassword(password); err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Email:        normEmail,
		Username:     name,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrUserExists)
		}

		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("user_registered",
		slog.String("user_id", user.ID.String()),
		slog.String("email", redact.Email(user.Email)),
	)

	pair, err := s.issuePair(ctx, user, metrics.MethodRegister)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	return pair, user.ID, nil
}

// Login выполняет вход по email и паролю. Отсутствующий пользователь,
// аккаунт без пароля и неверный пароль неразличимы для вызывающего.
func (s *Service) Login(ctx context.Context, identifier, password string) (*models.TokenPair, uuid.UUID, error) {
	const op = "service.Login"

	lg := log.From(ctx)
	email := normalizeEmail(identifier)

	if email == "" || password == "" {
		s.metrics.AuthFailed("invalid_credentials")
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	user, err := s.storage.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
			s.metrics.AuthFailed("invalid_credentials")
			lg.Info("login_rejected", slog.String("email", redact.Email(email)))
			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	ok := user.HasPassword()
	if ok {
		ok = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
	} else {
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
	}

	if !ok {
		s.metrics.AuthFailed("invalid_credentials")
		lg.Info("login_rejected", slog.String("email", redact.Email(email)))
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	pair, err := s.issuePair(ctx, user, metrics.MethodLogin)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	return pair, user.ID, nil
}

// Refresh обменивает refresh-токен на новую пару.
//
// Старый токен заменяется новым одной атомарной операцией storage. Если
// старого токена в белом списке нет (уже использован, отозван или подделан),
// белый список очищается целиком и возвращается ErrReplaySuspected.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, uuid.UUID, error) {
	const op = "service.Refresh"

	lg := log.From(ctx)

	userID, err := s.refreshSubject(refreshToken)
	if err != nil {
		s.metrics.AuthFailed("refresh_token")
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.storage.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	pair, err := s.mintPair(user)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	rotated, err := s.storage.RotateRefreshToken(ctx, user.ID, refreshToken, pair.RefreshToken)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	if !rotated {
		s.metrics.ReplayDetected()
		lg.Warn("refresh_replay_detected",
			slog.String("op", op),
			slog.String("user_id", user.ID.String()),
			slog.String("token", redact.Token(refreshToken)),
		)

		if err := s.storage.ClearRefreshTokens(ctx, user.ID); err != nil {
			lg.Error("whitelist_wipe_failed",
				slog.String("op", op),
				slog.String("user_id", user.ID.String()),
				slog.String("err", err.Error()),
			)
			return nil, uuid.Nil, fmt.Errorf("%s: %w: %w", op, ErrReplaySuspected, err)
		}

		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrReplaySuspected)
	}

	s.pruneExpired(ctx, user)
	s.metrics.SessionIssued(metrics.MethodRefresh)

	return pair, user.ID, nil
}

// Logout удаляет refresh-токен из белого списка. Повторный logout тем же
// токеном не ошибка; белый список никогда не очищается целиком.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	const op = "service.Logout"

	lg := log.From(ctx)

	userID, err := s.refreshSubject(refreshToken)
	if err != nil {
		lg.Info("logout_rejected", slog.String("op", op), slog.String("err", err.Error()))
		return fmt.Errorf("%s: %w", op, err)
	}

	ctx, lg = log.With(ctx, slog.String("user_id", userID.String()))

	if err := s.storage.RemoveRefreshTokens(ctx, userID, refreshToken); err != nil {
		lg.Warn("logout_failed", slog.String("op", op), slog.String("err", err.Error()))

		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("logout")

	return nil
}

// VerifyAccess проверяет access-токен и возвращает личность пользователя.
// Любая ошибка оборачивает ErrUnauthorized вместе с причиной.
func (s *Service) VerifyAccess(ctx context.Context, accessToken string) (*models.AccessIdentity, error) {
	const op = "service.VerifyAccess"

	claims, err := s.codec.Verify(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUnauthorized, mapTokenErr(err))
	}

	// Refresh-токен не несёт профиля и как access не принимается.
	if !claims.HasProfile() {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUnauthorized, ErrTokenInvalid)
	}

	if _, err := claims.UserID(); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUnauthorized, ErrTokenInvalid)
	}

	return &models.AccessIdentity{
		UserID:   claims.Subject,
		Username: claims.Username,
		Email:    claims.Email,
		Image:    claims.Image,
	}, nil
}

// refreshSubject проверяет подпись и срок refresh-токена и возвращает ID владельца.
// Токен с полями профиля (access) отклоняется, не затрагивая белый список.
func (s *Service) refreshSubject(refreshToken string) (uuid.UUID, error) {
	claims, err := s.codec.Verify(refreshToken)
	if err != nil {
		return uuid.Nil, mapTokenErr(err)
	}

	if claims.HasProfile() {
		return uuid.Nil, ErrTokenInvalid
	}

	id, err := claims.UserID()
	if err != nil {
		return uuid.Nil, ErrTokenInvalid
	}

	return id, nil
}

// issuePair выпускает пару и добавляет refresh-токен в белый список.
// Общий путь для регистрации, входа по паролю и OIDC-входа.
func (s *Service) issuePair(ctx context.Context, user *models.User, method string) (*models.TokenPair, error) {
	const op = "service.issuePair"

	pair, err := s.mintPair(user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.AddRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.pruneExpired(ctx, user)
	s.metrics.SessionIssued(method)

	return pair, nil
}

// mintPair подписывает access- и refresh-токены с общим nonce.
func (s *Service) mintPair(user *models.User) (*models.TokenPair, error) {
	const op = "service.mintPair"

	nonce := token.NewNonce()
	sub := user.ID.String()

	access := token.Claims{
		Username: user.Username,
		Email:    user.Email,
		Image:    user.Image,
		Nonce:    nonce,
	}
	access.Subject = sub

	accessToken, err := s.codec.Mint(access, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	refresh := token.Claims{Nonce: nonce}
	refresh.Subject = sub

	refreshToken, err := s.codec.Mint(refresh, s.cfg.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.TokenPair{
		AccessToken:     accessToken,
		RefreshToken:    refreshToken,
		AccessExpiresAt: s.codec.Now().UTC().Add(s.cfg.AccessTokenTTL),
	}, nil
}

// pruneExpired удаляет из белого списка токены с истёкшим сроком.
// Работает по снимку user, загруженному до выдачи пары; живые токены
// не трогает. Ошибки только логируются.
func (s *Service) pruneExpired(ctx context.Context, user *models.User) {
	var expired []string
	for _, t := range user.RefreshWhitelist {
		if _, err := s.codec.Verify(t); errors.Is(err, token.ErrExpired) {
			expired = append(expired, t)
		}
	}

	if len(expired) == 0 {
		return
	}

	if err := s.storage.RemoveRefreshTokens(ctx, user.ID, expired...); err != nil {
		log.From(ctx).Warn("whitelist_prune_failed",
			slog.String("user_id", user.ID.String()),
			slog.String("err", err.Error()),
		)
		return
	}

	log.From(ctx).Debug("whitelist_pruned",
		slog.String("user_id", user.ID.String()),
		slog.Int("removed", len(expired)),
	)
}

// mapTokenErr переводит ошибки кодека в ошибки сервиса.
func mapTokenErr(err error) error {
	if errors.Is(err, token.ErrExpired) {
		return ErrTokenExpired
	}

	return ErrTokenInvalid
}

// hashPassword хэширует пароль с помощью bcrypt.
func hashPassword(password string) (string, error) {
	const op = "service.hashPassword"

	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(bytes), nil
}
