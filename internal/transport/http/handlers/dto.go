package handlers

import (
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/copilot-auth/internal/models"
)

// Имена JSON-полей совпадают с тем, что ожидает фронт.

type registerRequest struct {
	Email    string `json:"email"`
	UserName string `json:"userName"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type validateRequest struct {
	AccessToken string `json:"accessToken"`
}

type tokensResponse struct {
	AccessToken     string    `json:"accessToken"`
	RefreshToken    string    `json:"refreshToken"`
	AccessExpiresAt time.Time `json:"accessExpiresAt"`
	ID              string    `json:"_id"`
}

func tokensFrom(pair *models.TokenPair, id uuid.UUID) tokensResponse {
	return tokensResponse{
		AccessToken:     pair.AccessToken,
		RefreshToken:    pair.RefreshToken,
		AccessExpiresAt: pair.AccessExpiresAt,
		ID:              id.String(),
	}
}

type statusResponse struct {
	Status string `json:"status"`
}

type userInfoResponse struct {
	Status string                 `json:"status"`
	User   *models.AccessIdentity `json:"user"`
}
