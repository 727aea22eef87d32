package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/xela07ax/donewell-adapter/internal/domain"
)

// maxBodyBytes — события и формы маленькие, больше не читаем.
const maxBodyBytes = 1 << 20

// decodeBody читает тело целиком и разбирает его как один JSON-документ.
//   - пустое тело эквивалентно {};
//   - не JSON (в том числе мусор после документа) или не объект — ошибка обработки (500);
//   - поле не того типа — ошибка ввода (*domain.ValidationError, 400).
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	err = json.Unmarshal(raw, dst)
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return &domain.ValidationError{Message: fmt.Sprintf("Invalid type for field: %s", typeErr.Field)}
	}
	if err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
