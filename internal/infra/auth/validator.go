package auth

import (
	"crypto/subtle"
	"errors"
)

var (
	ErrNotConfigured = errors.New("shared secret is not configured")
	ErrUnauthorized  = errors.New("unauthorized")
)

// SecretValidator сверяет заголовок запроса с секретом из конфигурации.
// Сравнение — точное равенство строк, за постоянное время.
type SecretValidator struct {
	secret string
}

func NewSecretValidator(secret string) *SecretValidator {
	return &SecretValidator{secret: secret}
}

// Verify: пустой секрет на сервере — ErrNotConfigured, независимо от того, что прислал клиент.
func (v *SecretValidator) Verify(provided string) error {
	if v.secret == "" {
		return ErrNotConfigured
	}
	if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(v.secret)) != 1 {
		return ErrUnauthorized
	}
	return nil
}
