package service

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 32

	// bcrypt не принимает пароли длиннее 72 байт.
	maxPasswordBytes = 72
)

// normalizeEmail обрезает пробелы и приводит email к нижнему регистру.
func normalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// validateEmail проверяет базовый формат email и возвращает нормализованное значение.
func validateEmail(raw string) (string, error) {
	const op = "service.validateEmail"

	email := normalizeEmail(raw)
	if email == "" {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	return email, nil
}

// validateUsername: 3..32 символа из латиницы, цифр, '.', '_' и '-'.
func validateUsername(raw string) (string, error) {
	const op = "service.validateUsername"

	name := strings.TrimSpace(raw)
	if len(name) < minUsernameLen || len(name) > maxUsernameLen {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidUsername)
	}

	for _, r := range name {
		if !isUsernameRune(r) {
			return "", fmt.Errorf("%s: %w", op, ErrInvalidUsername)
		}
	}

	return name, nil
}

func isUsernameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '_', r == '-':
		return true
	}

	return false
}

// validatePassword проверяет минимальные требования к паролю.
// Политика по умолчанию: длина >= 8 символов и <= 72 байт, хотя бы одна
// строчная, заглавная, цифра и спецсимвол.
func validatePassword(pw string) error {
	const op = "service.validatePassword"

	if len(pw) == 0 {
		return fmt.Errorf("%s: %w", op, ErrEmptyPassword)
	}

	if len([]rune(pw)) < 8 || len(pw) > maxPasswordBytes {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if !(hasLower && hasUpper && hasDigit && hasSpecial) {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	return nil
}

// usernameFromEmail строит username из локальной части email,
// отбрасывая недопустимые символы. Пустая строка — подходящего нет.
func usernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")

	var b strings.Builder
	for _, r := range strings.ToLower(local) {
		if isUsernameRune(r) {
			b.WriteRune(r)
		}
	}

	name := b.String()
	if len(name) > maxUsernameLen {
		name = name[:maxUsernameLen]
	}
	if len(name) < minUsernameLen {
		return ""
	}

	return name
}
