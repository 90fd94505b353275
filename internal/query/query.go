// Package query - загрузка данных для экранов с защитой от устаревших ответов.
//
// Каждый запуск получает номер поколения. Ответ, поколение которого отстаёт
// от последнего выданного, отбрасывается.
package query

import (
	"context"
	"sync"
)

// State - снимок состояния запроса
type State[T any] struct {
	Data       T
	Err        error
	Loading    bool
	Generation uint64
}

// Query - запрос одного экрана. Нулевое значение готово к работе.
type Query[T any] struct {
	mu      sync.Mutex
	gen     uint64
	data    T
	err     error
	loading bool
	loaded  chan struct{}
	done    bool
}

// Begin выдаёт новое поколение и помечает запрос как загружающийся
func (q *Query[T]) Begin() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.gen++
	q.loading = true
	if q.loaded == nil || q.done {
		q.loaded = make(chan struct{})
		q.done = false
	}
	return q.gen
}

// Resolve применяет ответ поколения gen. Возвращает false, если ответ устарел.
func (q *Query[T]) Resolve(gen uint64, data T, err error) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if gen != q.gen {
		return false
	}
	q.data = data
	q.err = err
	q.loading = false
	if q.loaded != nil && !q.done {
		close(q.loaded)
		q.done = true
	}
	return true
}

// Run выполняет fetch в новом поколении.
// applied == false - пока шёл запрос, был выдан более новый, результат отброшен.
func (q *Query[T]) Run(ctx context.Context, fetch func(context.Context) (T, error)) (st State[T], applied bool) {
	gen := q.Begin()
	data, err := fetch(ctx)
	applied = q.Resolve(gen, data, err)
	return q.Snapshot(), applied
}

// Snapshot возвращает текущее состояние
func (q *Query[T]) Snapshot() State[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return State[T]{Data: q.data, Err: q.err, Loading: q.loading, Generation: q.gen}
}

// Generation возвращает последнее выданное поколение
func (q *Query[T]) Generation() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.gen
}

// Current проверяет, что gen - последнее поколение
func (q *Query[T]) Current(gen uint64) bool {
	return q.Generation() == gen
}

// Loaded закрывается, когда завершится последнее выданное поколение.
// До первого Begin канал не закрывается.
func (q *Query[T]) Loaded() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.loaded == nil {
		q.loaded = make(chan struct{})
	}
	return q.loaded
}

// Invalidate делает все выданные поколения устаревшими и сбрасывает данные.
// Ожидающие Loaded освобождаются.
func (q *Query[T]) Invalidate() {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	q.gen++
	q.data = zero
	q.err = nil
	q.loading = false
	if q.loaded != nil && !q.done {
		close(q.loaded)
		q.done = true
	}
}
