// Package probe — общий комбинатор для ограниченных по времени операций.
// Все пробы в адаптере собираются через Bounded, а не через собственные таймеры.
package probe

import (
	"context"
	"fmt"
	"time"
)

// Kind — тег результата ограниченной операции.
type Kind int

const (
	Completed Kind = iota
	TimedOut
)

func (k Kind) String() string {
	if k == TimedOut {
		return "timed_out"
	}
	return "completed"
}

// Result — тегированный результат: Completed(Value, Err) или TimedOut.
type Result[T any] struct {
	Kind  Kind
	Value T
	Err   error
}

// OK — операция завершилась вовремя и без ошибки.
func (r Result[T]) OK() bool {
	return r.Kind == Completed && r.Err == nil
}

// Bounded запускает op и ждет не дольше d.
// По истечении времени возвращается сразу, не дожидаясь op: ее контекст отменяется,
// а результат уходит в буферизированный канал и выбрасывается.
func Bounded[T any](ctx context.Context, d time.Duration, op func(ctx context.Context) (T, error)) Result[T] {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan Result[T], 1)
	go func() {
		var res Result[T]
		defer func() {
			// Паника внутри пробы — это просто упавшая проба
			if p := recover(); p != nil {
				res = Result[T]{Kind: Completed, Err: fmt.Errorf("probe panicked: %v", p)}
			}
			done <- res
		}()
		v, err := op(ctx)
		res = Result[T]{Kind: Completed, Value: v, Err: err}
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return Result[T]{Kind: TimedOut, Err: ctx.Err()}
	}
}
