package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xela07ax/donewell-adapter/internal/repository"
)

const ProviderName = "postgres"

// ContentRepo проверяет таблицы контента прямым подключением к Postgres.
// Соединение открывается на одну пробу и закрывается до возврата: пула нет.
type ContentRepo struct {
	dsn string
}

// NewContentRepo создает репозиторий; DSN парсится сразу, чтобы ошибка конфига всплыла при старте.
func NewContentRepo(dsn string) (*ContentRepo, error) {
	if _, err := pgx.ParseConfig(dsn); err != nil {
		return nil, fmt.Errorf("postgres: invalid dsn: %w", err)
	}
	return &ContentRepo{dsn: dsn}, nil
}

func (r *ContentRepo) Provider() string {
	return ProviderName
}

// PeekOne читает один id из таблицы. pgx.ErrNoRows превращается в repository.ErrNoRows.
func (r *ContentRepo) PeekOne(ctx context.Context, table string) error {
	conn, err := pgx.Connect(ctx, r.dsn)
	if err != nil {
		return fmt.Errorf("postgres: connect: %w", err)
	}
	defer func() {
		// Закрываем даже если контекст пробы уже отменен
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		conn.Close(closeCtx)
	}()

	query := fmt.Sprintf("SELECT id FROM %s LIMIT 1", pgx.Identifier{table}.Sanitize())

	var id any
	if err := conn.QueryRow(ctx, query).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrNoRows
		}
		return fmt.Errorf("postgres: peek %s: %w", table, err)
	}
	return nil
}
