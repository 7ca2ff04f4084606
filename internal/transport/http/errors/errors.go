// errors стандартизирует ответы об ошибках HTTP-слоя auth-сервиса.
// На вход принимает ошибку сервиса (sentinel из internal/service),
// на выход даёт:
//   - корректный HTTP-статус;
//   - краткое безопасное message без утечки деталей.
//
// Все отказы аутентификации (неверные учётные данные, битый или истёкший
// токен, повтор refresh-токена, неизвестный владелец) отдают одинаковое
// тело 401: клиент не узнаёт, какая проверка не прошла.
package errors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pribylovaa/copilot-auth/internal/service"
)

// Нестандартный код часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// Стабильные машиночитаемые коды ошибок.
const (
	CodeInvalidArgument = "invalid_argument"
	CodeUnauthenticated = "unauthenticated"
	CodeForbidden       = "permission_denied"
	CodeNotFound        = "not_found"
	CodeAlreadyExists   = "already_exists"
	CodeProviderError   = "provider_error"
	CodeCanceled        = "canceled"
	CodeDeadline        = "deadline_exceeded"
	CodeInternal        = "internal"
)

var (
	// ErrBadRequest — тело или параметры запроса не разобрались.
	ErrBadRequest = errors.New("bad request")
	// ErrForbidden — не пройдена проверка внутреннего ключа.
	ErrForbidden = errors.New("forbidden")
)

// APIError — единый формат для фронта.
// Code — короткий стабильный код для машиночитаемой обработки на FE.
// Message — безопасное человекочитаемое описание.
// RequestID — прокидывается из X-Request-Id, если есть (для трассировки).
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToHTTP конвертирует ошибку сервиса в HTTP-статус и ответ для фронта.
//
// Поведение:
//   - err == nil — программная ошибка вызова: 500/internal, чтобы не
//     послать "200 OK" с телом ошибки;
//   - известный sentinel — статус по таблице Classify;
//   - прочее — 500/internal без деталей.
func ToHTTP(err error) (int, ErrorResponse) {
	status, code, msg := Classify(err)
	return status, ErrorResponse{Error: APIError{Code: code, Message: msg}}
}

// Classify возвращает HTTP-статус, код и безопасное сообщение для ошибки.
//
//   - учётные данные/токены/replay/неизвестный владелец -> 401
//   - ошибки валидации регистрации и разбора запроса -> 400
//   - занятые email/username -> 409
//   - нет токенов провайдера в кэше -> 404
//   - ошибка провайдера -> 502
//   - отмена клиентом -> 499, дедлайн -> 504
//   - прочее (в т.ч. ErrFederationCache) -> 500
func Classify(err error) (int, string, string) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, CodeInternal, "internal error"

	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrTokenInvalid),
		errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrReplaySuspected),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, CodeUnauthenticated, "unauthenticated"

	case errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrInvalidUsername),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrEmptyPassword),
		errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, CodeInvalidArgument, safeMessage(err)

	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, CodeForbidden, "permission denied"

	case errors.Is(err, service.ErrUserExists):
		return http.StatusConflict, CodeAlreadyExists, "already exists"

	case errors.Is(err, service.ErrProviderTokensNotFound):
		return http.StatusNotFound, CodeNotFound, "not found"

	case errors.Is(err, service.ErrProviderError):
		return http.StatusBadGateway, CodeProviderError, "identity provider error"

	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, CodeCanceled, "canceled"

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, CodeDeadline, "deadline exceeded"

	default:
		return http.StatusInternalServerError, CodeInternal, "internal error"
	}
}

// safeMessage выбирает текст sentinel-ошибки валидации: он не содержит
// пользовательских данных и подсказывает, какое поле исправить.
func safeMessage(err error) string {
	for _, s := range []error{
		service.ErrInvalidEmail,
		service.ErrInvalidUsername,
		service.ErrWeakPassword,
		service.ErrEmptyPassword,
	} {
		if errors.Is(err, s) {
			return s.Error()
		}
	}

	return "invalid argument"
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет корректный статус/тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	// Прокидываем request_id для фронта, чтобы он мог репортить баги с привязкой.
	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
