package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apierrors "github.com/pribylovaa/copilot-auth/internal/transport/http/errors"
)

// HeaderInternalToken — заголовок с ключом внутреннего API.
const HeaderInternalToken = "X-Internal-Token"

// ProviderTokens отдаёт закэшированные токены провайдера пользователя
// внутренним сервисам. Формат ответа совпадает со значением в кэше.
func (h *Handlers) ProviderTokens(w http.ResponseWriter, r *http.Request) {
	if h.cfg.InternalAPIKey != "" {
		got := r.Header.Get(HeaderInternalToken)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.cfg.InternalAPIKey)) != 1 {
			apierrors.WriteError(w, r, apierrors.ErrForbidden)
			return
		}
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	tokens, err := h.svc.ProviderTokens(r.Context(), id)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}
