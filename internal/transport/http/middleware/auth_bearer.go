package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pribylovaa/copilot-auth/internal/models"
	logctx "github.com/pribylovaa/copilot-auth/internal/pkg/log"
	"github.com/pribylovaa/copilot-auth/internal/service"
	apierrors "github.com/pribylovaa/copilot-auth/internal/transport/http/errors"
)

// AccessVerifier проверяет access-токен. Реализуется *service.Service.
type AccessVerifier interface {
	VerifyAccess(ctx context.Context, accessToken string) (*models.AccessIdentity, error)
}

type identityKey struct{}

// AuthBearer пропускает запрос только с валидным access-токеном в
// Authorization: Bearer. Иначе 401/unauthenticated без причины в теле;
// причина пишется в лог на уровне debug. При успехе личность пользователя
// доступна через IdentityFrom.
func AuthBearer(v AccessVerifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := BearerToken(r)
			if !ok {
				logctx.From(r.Context()).Debug("auth_bearer_missing")
				apierrors.WriteError(w, r, service.ErrUnauthorized)
				return
			}

			id, err := v.VerifyAccess(r.Context(), tok)
			if err != nil {
				logctx.From(r.Context()).Debug("auth_bearer_rejected", slog.String("err", err.Error()))
				apierrors.WriteError(w, r, service.ErrUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken извлекает токен из заголовка Authorization.
// Схема сравнивается без учёта регистра.
func BearerToken(r *http.Request) (string, bool) {
	const prefix = "bearer "

	auth := r.Header.Get("Authorization")
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", false
	}

	tok := strings.TrimSpace(auth[len(prefix):])
	return tok, tok != ""
}

// IdentityFrom возвращает личность, положенную AuthBearer.
func IdentityFrom(ctx context.Context) (*models.AccessIdentity, bool) {
	id, ok := ctx.Value(identityKey{}).(*models.AccessIdentity)
	return id, ok && id != nil
}
