package query

import "context"

// After ждёт сигнала done и только затем выполняет fn.
// Используется, когда загрузка деталей должна идти после загрузки соседнего списка.
func After(ctx context.Context, done <-chan struct{}, fn func(context.Context) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}
	return fn(ctx)
}
