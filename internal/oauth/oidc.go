// oauth связывает внешний OIDC-провайдер (Google) с локальной схемой токенов:
// строит URL авторизации, обменивает code на токены и проверяет ID token.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/pribylovaa/copilot-auth/internal/models"
	"github.com/pribylovaa/copilot-auth/internal/pkg/log"
)

var (
	// ErrExchange — провайдер отклонил code или не ответил.
	ErrExchange = errors.New("oauth: code exchange failed")
	// ErrIDToken — ID token отсутствует или не прошёл проверку.
	ErrIDToken = errors.New("oauth: invalid id token")
)

// IdentityProvider — внешний провайдер идентичности.
type IdentityProvider interface {
	// AuthCodeURL возвращает адрес, на который перенаправляется пользователь.
	AuthCodeURL(state string) string
	// CompleteAuth обменивает code на токены провайдера и проверенный профиль.
	CompleteAuth(ctx context.Context, code string) (*models.ExternalProfile, error)
}

// Config — параметры OIDC-клиента.
type Config struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Scopes добавляются к openid, email и profile.
	Scopes []string
}

// OIDCProvider реализует IdentityProvider поверх discovery go-oidc и x/oauth2.
type OIDCProvider struct {
	oauth2Config *oauth2.Config
	verifier     *oidc.IDTokenVerifier
	httpClient   *http.Client
}

// Option настраивает OIDCProvider.
type Option func(*OIDCProvider)

// WithHTTPClient задаёт HTTP-клиент для discovery, JWKS и обмена code.
func WithHTTPClient(c *http.Client) Option {
	return func(p *OIDCProvider) { p.httpClient = c }
}

// NewOIDCProvider выполняет discovery по issuer и готовит oauth2-конфиг и верификатор.
func NewOIDCProvider(ctx context.Context, cfg Config, opts ...Option) (*OIDCProvider, error) {
	const op = "oauth.NewOIDCProvider"

	if cfg.Issuer == "" || cfg.ClientID == "" {
		return nil, fmt.Errorf("%s: issuer and client id are required", op)
	}

	p := &OIDCProvider{httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(p)
	}

	ctx = oidc.ClientContext(ctx, p.httpClient)
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("%s: discovery: %w", op, err)
	}

	scopes := []string{oidc.ScopeOpenID, "email", "profile"}
	for _, s := range cfg.Scopes {
		if s = strings.TrimSpace(s); s != "" && !slices.Contains(scopes, s) {
			scopes = append(scopes, s)
		}
	}

	p.oauth2Config = &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       scopes,
	}
	p.verifier = provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})

	log.From(ctx).Debug("oidc_provider_discovered",
		slog.String("issuer", cfg.Issuer),
		slog.Any("scopes", scopes),
	)

	return p, nil
}

// AuthCodeURL запрашивает offline-доступ и экран согласия, чтобы провайдер
// всегда выдавал refresh token.
func (p *OIDCProvider) AuthCodeURL(state string) string {
	return p.oauth2Config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// idClaims — поля ID token, которые нужны для профиля.
type idClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// CompleteAuth обменивает code и проверяет ID token (подпись, iss, aud, exp).
// Неподтверждённый email в профиль не попадает.
func (p *OIDCProvider) CompleteAuth(ctx context.Context, code string) (*models.ExternalProfile, error) {
	const op = "oauth.CompleteAuth"

	ctx = oidc.ClientContext(ctx, p.httpClient)

	tok, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrExchange, err)
	}

	rawID, _ := tok.Extra("id_token").(string)
	if rawID == "" {
		return nil, fmt.Errorf("%s: %w: id_token missing in token response", op, ErrIDToken)
	}

	idToken, err := p.verifier.Verify(ctx, rawID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrIDToken, err)
	}

	var claims idClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrIDToken, err)
	}

	email := strings.ToLower(strings.TrimSpace(claims.Email))
	if !claims.EmailVerified {
		email = ""
	}

	return &models.ExternalProfile{
		Subject:       idToken.Subject,
		Email:         email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		Picture:       claims.Picture,
		Tokens: models.ProviderTokens{
			AccessToken:  tok.AccessToken,
			RefreshToken: tok.RefreshToken,
		},
	}, nil
}

var _ IdentityProvider = (*OIDCProvider)(nil)
