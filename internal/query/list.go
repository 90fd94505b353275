package query

import (
	"context"
	"sync"

	"coachbot/clients/coachapi"
)

// Fetcher загружает страницу коллекции с фильтром F
type Fetcher[T, F any] func(ctx context.Context, req coachapi.PageRequest, filter F) (coachapi.Page[T], error)

// ListState - снимок списка для отрисовки
type ListState[T any] struct {
	Data        []T
	Err         error
	Loading     bool
	Page        int
	Pagination  coachapi.Pagination
	NextEnabled bool
	PrevEnabled bool
	Generation  uint64
}

// List - постраничный список с фильтром.
// Смена фильтра возвращает на первую страницу. Кэша между экранами нет:
// после изменения данных экран сам вызывает Refetch.
type List[T, F any] struct {
	q Query[coachapi.Page[T]]

	mu       sync.Mutex
	page     int
	pageSize int
	filter   F
	fetch    Fetcher[T, F]
}

// NewList создаёт список, pageSize <= 0 - размер страницы по умолчанию
func NewList[T, F any](fetch Fetcher[T, F], pageSize int, filter F) *List[T, F] {
	if pageSize <= 0 {
		pageSize = coachapi.DefaultPageSize
	}
	return &List[T, F]{page: 1, pageSize: pageSize, filter: filter, fetch: fetch}
}

// Page возвращает текущую страницу
func (l *List[T, F]) Page() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.page
}

// Filter возвращает текущий фильтр
func (l *List[T, F]) Filter() F {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.filter
}

// SetPage переходит на страницу page и загружает её
func (l *List[T, F]) SetPage(ctx context.Context, page int) (ListState[T], bool) {
	if page < 1 {
		page = 1
	}
	l.mu.Lock()
	l.page = page
	l.mu.Unlock()
	return l.Refetch(ctx)
}

// SetFilter меняет фильтр, сбрасывает страницу на первую и загружает её
func (l *List[T, F]) SetFilter(ctx context.Context, filter F) (ListState[T], bool) {
	l.mu.Lock()
	l.filter = filter
	l.page = 1
	l.mu.Unlock()
	return l.Refetch(ctx)
}

// Refetch перезагружает текущую страницу.
// Второй результат false - ответ устарел и не применён.
func (l *List[T, F]) Refetch(ctx context.Context) (ListState[T], bool) {
	l.mu.Lock()
	req := coachapi.PageRequest{Page: l.page, PageSize: l.pageSize}
	filter := l.filter
	l.mu.Unlock()

	_, applied := l.q.Run(ctx, func(ctx context.Context) (coachapi.Page[T], error) {
		return l.fetch(ctx, req, filter)
	})
	return l.Snapshot(), applied
}

// Snapshot возвращает текущее состояние списка
func (l *List[T, F]) Snapshot() ListState[T] {
	st := l.q.Snapshot()
	page := l.Page()

	p := st.Data.Pagination
	if p.Page == 0 {
		p.Page = page
	}
	return ListState[T]{
		Data:        st.Data.Data,
		Err:         st.Err,
		Loading:     st.Loading,
		Page:        page,
		Pagination:  p,
		NextEnabled: st.Err == nil && p.NextEnabled(len(st.Data.Data)),
		PrevEnabled: p.PrevEnabled(),
		Generation:  st.Generation,
	}
}

// Loaded закрывается, когда завершится последняя загрузка списка
func (l *List[T, F]) Loaded() <-chan struct{} {
	return l.q.Loaded()
}
