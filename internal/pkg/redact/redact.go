// redact маскирует чувствительные значения перед записью в лог.
package redact

import "strings"

// Email оставляет первые два символа локальной части и домен.
func Email(s string) string {
	local, domain, ok := strings.Cut(s, "@")
	if !ok || strings.Contains(domain, "@") {
		return "***"
	}

	r := []rune(local)
	if len(r) > 2 {
		return string(r[:2]) + "***@" + domain
	}

	return "***@" + domain
}

// Token возвращает последние символы JWT-подписи: их достаточно, чтобы
// сопоставить записи лога, но не чтобы восстановить токен.
func Token(tok string) string {
	const tail = 6

	if len(tok) <= tail*2 {
		return "[REDACTED_TOKEN]"
	}

	return "…" + tok[len(tok)-tail:]
}
