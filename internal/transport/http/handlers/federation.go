package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	logctx "github.com/pribylovaa/copilot-auth/internal/pkg/log"
	"github.com/pribylovaa/copilot-auth/internal/service"
)

const (
	stateCookie     = "oauth_state"
	stateCookieTTL  = 10 * time.Minute
	stateCookiePath = "/auth/google"
)

// Коды ошибок, которые фронт получает в /login?error=...
const (
	redirectErrProvider = "provider_error"
	redirectErrState    = "invalid_state"
	redirectErrEmail    = "email_missing"
	redirectErrServer   = "server_error"
)

// GoogleLogin начинает вход через провайдера: кладёт случайный state в
// cookie и перенаправляет на страницу согласия.
func (h *Handlers) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := strings.ReplaceAll(uuid.NewString(), "-", "")

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     stateCookiePath,
		MaxAge:   int(stateCookieTTL / time.Second),
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.idp.AuthCodeURL(state), http.StatusFound)
}

// GoogleCallback завершает вход: сверяет state, обменивает code у
// провайдера, выпускает локальную пару и возвращает её фронту редиректом
// на <client>/oidc-login. Любой отказ уводит на <client>/login?error=<code>.
func (h *Handlers) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	lg := logctx.From(r.Context())
	q := r.URL.Query()

	// state одноразовый.
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    "",
		Path:     stateCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	if perr := q.Get("error"); perr != "" {
		lg.Info("oidc_denied", slog.String("provider_error", perr))
		h.redirectLoginError(w, r, redirectErrProvider)
		return
	}

	c, err := r.Cookie(stateCookie)
	if err != nil || c.Value == "" || c.Value != q.Get("state") {
		lg.Warn("oidc_state_mismatch")
		h.redirectLoginError(w, r, redirectErrState)
		return
	}

	code := q.Get("code")
	if code == "" {
		lg.Warn("oidc_code_missing")
		h.redirectLoginError(w, r, redirectErrProvider)
		return
	}

	profile, err := h.idp.CompleteAuth(r.Context(), code)
	if err != nil {
		lg.Warn("oidc_complete_failed", slog.String("err", err.Error()))
		h.redirectLoginError(w, r, redirectErrProvider)
		return
	}

	pair, id, err := h.svc.FederationCallback(r.Context(), profile)
	if err != nil {
		lg.Warn("oidc_federation_failed", slog.String("err", err.Error()))

		switch {
		case errors.Is(err, service.ErrEmailMissing):
			h.redirectLoginError(w, r, redirectErrEmail)
		case errors.Is(err, service.ErrProviderError):
			h.redirectLoginError(w, r, redirectErrProvider)
		default:
			h.redirectLoginError(w, r, redirectErrServer)
		}
		return
	}

	v := url.Values{}
	v.Set("accessToken", pair.AccessToken)
	v.Set("refreshToken", pair.RefreshToken)
	v.Set("_id", id.String())

	http.Redirect(w, r, h.clientURL("/oidc-login")+"?"+v.Encode(), http.StatusFound)
}

func (h *Handlers) redirectLoginError(w http.ResponseWriter, r *http.Request, code string) {
	v := url.Values{}
	v.Set("error", code)
	http.Redirect(w, r, h.clientURL("/login")+"?"+v.Encode(), http.StatusFound)
}

func (h *Handlers) clientURL(path string) string {
	return strings.TrimRight(h.cfg.ClientRedirect, "/") + path
}
