package models

// ProviderTokens — собственные токены внешнего провайдера (Google),
// которые другие внутренние сервисы используют от имени пользователя.
// JSON-теги совпадают с форматом, который читают потребители кэша.
type ProviderTokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// ExternalProfile — проверенная провайдером личность пользователя
// и токены, полученные при обмене authorization code.
type ExternalProfile struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
	Tokens        ProviderTokens
}
