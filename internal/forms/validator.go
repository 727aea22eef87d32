// Package forms содержит валидацию контактной формы сайта.
// Та же логика гоняется синтетически через /health/form-test, ничего не сохраняя.
package forms

import (
	"regexp"
	"strings"

	"github.com/xela07ax/donewell-adapter/internal/domain"
)

// SubmissionPath — идентификатор пути валидации, который проверяет мониторинг.
const SubmissionPath = "contact_form_v1"

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe = regexp.MustCompile(`^\+?[\d\s()-]+$`)
)

// Validate собирает все нарушения, а не только первое.
func Validate(s domain.ContactSubmission) domain.ValidationResult {
	var errs []string

	if isBlank(s.FirstName) {
		errs = append(errs, "first_name is required")
	}
	if isBlank(s.LastName) {
		errs = append(errs, "last_name is required")
	}

	switch {
	case isBlank(s.Email):
		errs = append(errs, "email is required")
	case !emailRe.MatchString(s.Email):
		errs = append(errs, "email format is invalid")
	}

	if isBlank(s.Message) {
		errs = append(errs, "message is required")
	}

	// Телефон необязателен: проверяем только формат, если он передан
	if s.Phone != "" && !phoneRe.MatchString(s.Phone) {
		errs = append(errs, "phone format is invalid")
	}

	return domain.ValidationResult{
		Valid:  len(errs) == 0,
		Errors: errs,
	}
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
