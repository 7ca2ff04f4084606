package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/pribylovaa/copilot-auth/internal/models"
	"github.com/pribylovaa/copilot-auth/internal/oauth"
)

// maxBodyBytes ограничивает размер JSON-тела запроса.
const maxBodyBytes = 1 << 20

// AuthService — операции сервиса, которые нужны HTTP-слою.
// Реализуется *service.Service.
type AuthService interface {
	Register(ctx context.Context, email, username, password string) (*models.TokenPair, uuid.UUID, error)
	Login(ctx context.Context, identifier, password string) (*models.TokenPair, uuid.UUID, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, uuid.UUID, error)
	Logout(ctx context.Context, refreshToken string) error
	VerifyAccess(ctx context.Context, accessToken string) (*models.AccessIdentity, error)
	FederationCallback(ctx context.Context, profile *models.ExternalProfile) (*models.TokenPair, uuid.UUID, error)
	ProviderTokens(ctx context.Context, userID uuid.UUID) (models.ProviderTokens, error)
}

// Config — параметры хендлеров.
type Config struct {
	// ClientRedirect — адрес фронта, куда возвращается OIDC-вход.
	ClientRedirect string
	// InternalAPIKey — если задан, GET /users/{id}/token требует X-Internal-Token.
	InternalAPIKey string
	// SecureCookies выставляет Secure у cookie состояния OIDC.
	SecureCookies bool
}

// Handlers агрегирует зависимости HTTP-хендлеров.
type Handlers struct {
	svc AuthService
	// idp может быть nil: вход через провайдера выключен.
	idp oauth.IdentityProvider
	cfg Config
}

func New(svc AuthService, idp oauth.IdentityProvider, cfg Config) *Handlers {
	return &Handlers{svc: svc, idp: idp, cfg: cfg}
}

// FederationEnabled сообщает, подключён ли внешний провайдер.
func (h *Handlers) FederationEnabled() bool { return h.idp != nil }

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля.
func decodeStrict(w http.ResponseWriter, r *http.Request, value any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(value)
}
