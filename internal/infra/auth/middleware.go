package auth

import (
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// SecretVerifier — то, что middleware нужно от валидатора.
type SecretVerifier interface {
	Verify(provided string) error
}

// DenyFunc пишет ответ об отказе в формате конкретного эндпоинта.
type DenyFunc func(w http.ResponseWriter, status int, msg string)

// NewMiddleware проверяет shared secret строго до чтения тела запроса.
// Секрет не настроен — 500; заголовка нет или он не совпал — 401.
func NewMiddleware(v SecretVerifier, header string, deny DenyFunc, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := v.Verify(r.Header.Get(header))
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, ErrNotConfigured):
				logger.Error("incident log secret not configured")
				deny(w, http.StatusInternalServerError, "Log endpoint not configured")
			default:
				logger.Warn("auth failure", zap.String("path", r.URL.Path), zap.String("remote", r.RemoteAddr))
				deny(w, http.StatusUnauthorized, "Unauthorized")
			}
		})
	}
}
