// Package repository описывает хранилище контента так, как его видят health-пробы.
package repository

import (
	"context"
	"errors"
)

// ErrNoRows — выборка пуста. Для проб это успех: пустая таблица не проблема здоровья.
var ErrNoRows = errors.New("repository: no rows")

// ContentStore — хранилище, доступное по сети, с ограничением времени на вызов со стороны вызывающего.
type ContentStore interface {
	// Provider — имя провайдера для диагностических отчетов.
	Provider() string
	// PeekOne читает не более одной записи из таблицы.
	// nil или ErrNoRows — таблица доступна; любая другая ошибка — отказ.
	PeekOne(ctx context.Context, table string) error
}

// IsAvailable сворачивает результат PeekOne в доступность.
func IsAvailable(err error) bool {
	return err == nil || errors.Is(err, ErrNoRows)
}
