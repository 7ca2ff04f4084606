package handlers

import (
	"net/http"

	"github.com/pribylovaa/copilot-auth/internal/service"
	apierrors "github.com/pribylovaa/copilot-auth/internal/transport/http/errors"
	"github.com/pribylovaa/copilot-auth/internal/transport/http/middleware"
)

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	pair, id, err := h.svc.Register(r.Context(), in.Email, in.UserName, in.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, tokensFrom(pair, id))
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	pair, id, err := h.svc.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokensFrom(pair, id))
}

func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := decodeStrict(w, r, &in); err != nil || in.RefreshToken == "" {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	pair, id, err := h.svc.Refresh(r.Context(), in.RefreshToken)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokensFrom(pair, id))
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := decodeStrict(w, r, &in); err != nil || in.RefreshToken == "" {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	if err := h.svc.Logout(r.Context(), in.RefreshToken); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Status: "success"})
}

// Validate проверяет access-токен из тела (для других сервисов).
func (h *Handlers) Validate(w http.ResponseWriter, r *http.Request) {
	var in validateRequest
	if err := decodeStrict(w, r, &in); err != nil || in.AccessToken == "" {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	id, err := h.svc.VerifyAccess(r.Context(), in.AccessToken)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, id)
}

// UserInfo отдаёт личность вызывающего. Ставится за middleware.AuthBearer.
func (h *Handlers) UserInfo(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, service.ErrUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, userInfoResponse{Status: "success", User: id})
}
