package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"coachbot/clients/coachapi"
)

func TestQueryDiscardsStaleResponse(t *testing.T) {
	var q Query[string]

	slow := q.Begin()
	fresh := q.Begin()

	if !q.Resolve(fresh, "fresh", nil) {
		t.Fatal("Resolve(fresh) отброшен")
	}
	if q.Resolve(slow, "slow", nil) {
		t.Fatal("Resolve(slow) применён поверх нового ответа")
	}
	if got := q.Snapshot().Data; got != "fresh" {
		t.Errorf("Data = %q, want fresh", got)
	}
}

func TestQueryRunConcurrent(t *testing.T) {
	var q Query[int]
	release := make(chan struct{})
	started := make(chan struct{})
	result := make(chan bool, 1)

	go func() {
		_, applied := q.Run(context.Background(), func(context.Context) (int, error) {
			close(started)
			<-release
			return 1, nil
		})
		result <- applied
	}()

	<-started
	st, applied := q.Run(context.Background(), func(context.Context) (int, error) { return 2, nil })
	if !applied || st.Data != 2 {
		t.Fatalf("второй Run: applied=%v data=%d", applied, st.Data)
	}
	close(release)
	if <-result {
		t.Error("первый Run применён после второго")
	}
	if got := q.Snapshot().Data; got != 2 {
		t.Errorf("Data = %d, want 2", got)
	}
}

func TestQueryLoaded(t *testing.T) {
	var q Query[int]
	loaded := q.Loaded()

	select {
	case <-loaded:
		t.Fatal("Loaded закрыт до загрузки")
	default:
	}

	gen := q.Begin()
	q.Resolve(gen, 1, errors.New("boom"))

	select {
	case <-loaded:
	case <-time.After(time.Second):
		t.Fatal("Loaded не закрыт после загрузки")
	}
	if q.Snapshot().Err == nil {
		t.Error("ошибка потеряна")
	}
}

func TestQueryInvalidate(t *testing.T) {
	var q Query[int]
	gen := q.Begin()
	q.Invalidate()
	if q.Resolve(gen, 5, nil) {
		t.Error("ответ до Invalidate применён")
	}
	if q.Current(gen) {
		t.Error("Current() после Invalidate")
	}
	select {
	case <-q.Loaded():
	default:
		t.Fatal("Loaded() не закрыт после Invalidate")
	}

	next := q.Begin()
	select {
	case <-q.Loaded():
		t.Fatal("Loaded() закрыт до ответа нового поколения")
	default:
	}
	if !q.Resolve(next, 7, nil) || q.Snapshot().Data != 7 {
		t.Error("новое поколение после Invalidate не применено")
	}
}

type call struct {
	req    coachapi.PageRequest
	filter string
}

func TestListFilterResetsPage(t *testing.T) {
	var calls []call
	fetch := func(_ context.Context, req coachapi.PageRequest, filter string) (coachapi.Page[int], error) {
		calls = append(calls, call{req, filter})
		return coachapi.Page[int]{Data: []int{1}}, nil
	}

	l := NewList[int, string](fetch, 15, "pending")
	l.SetPage(context.Background(), 3)
	st, _ := l.SetFilter(context.Background(), "confirmed")

	if st.Page != 1 {
		t.Errorf("Page = %d после смены фильтра", st.Page)
	}
	last := calls[len(calls)-1]
	if last.req.Page != 1 || last.filter != "confirmed" {
		t.Errorf("последний запрос = %+v", last)
	}
	if calls[0].req.Page != 3 || calls[0].req.PageSize != 15 {
		t.Errorf("первый запрос = %+v", calls[0])
	}
}

func TestListPager(t *testing.T) {
	tests := []struct {
		name     string
		page     coachapi.Page[int]
		setPage  int
		wantNext bool
		wantPrev bool
	}{
		{
			name:     "exactly full last page keeps next",
			page:     coachapi.Page[int]{Data: make([]int, 15), Pagination: coachapi.Pagination{Page: 3, PageSize: 15}},
			setPage:  3,
			wantNext: true,
			wantPrev: true,
		},
		{
			name:     "short first page",
			page:     coachapi.Page[int]{Data: make([]int, 4), Pagination: coachapi.Pagination{Page: 1, PageSize: 15}},
			setPage:  1,
			wantNext: false,
			wantPrev: false,
		},
		{
			name:     "server flag without cursor",
			page:     coachapi.Page[int]{Data: make([]int, 2), Pagination: coachapi.Pagination{HasNextPage: true}},
			setPage:  1,
			wantNext: true,
			wantPrev: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetch := func(context.Context, coachapi.PageRequest, struct{}) (coachapi.Page[int], error) {
				return tt.page, nil
			}
			l := NewList[int, struct{}](fetch, 15, struct{}{})
			st, applied := l.SetPage(context.Background(), tt.setPage)
			if !applied {
				t.Fatal("ответ не применён")
			}
			if st.NextEnabled != tt.wantNext || st.PrevEnabled != tt.wantPrev {
				t.Errorf("next=%v prev=%v, want next=%v prev=%v", st.NextEnabled, st.PrevEnabled, tt.wantNext, tt.wantPrev)
			}
		})
	}
}

func TestListErrorDisablesNext(t *testing.T) {
	fetch := func(context.Context, coachapi.PageRequest, struct{}) (coachapi.Page[int], error) {
		return coachapi.Page[int]{}, errors.New("network")
	}
	l := NewList[int, struct{}](fetch, 15, struct{}{})
	st, _ := l.SetPage(context.Background(), 2)
	if st.Err == nil || st.NextEnabled {
		t.Errorf("st = %+v", st)
	}
	if !st.PrevEnabled {
		t.Error("PrevEnabled на второй странице после ошибки")
	}
}

func TestAfter(t *testing.T) {
	done := make(chan struct{})
	ran := make(chan struct{})

	go func() {
		After(context.Background(), done, func(context.Context) error {
			close(ran)
			return nil
		})
	}()

	select {
	case <-ran:
		t.Fatal("fn выполнена до сигнала")
	case <-time.After(20 * time.Millisecond):
	}
	close(done)
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("fn не выполнена после сигнала")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := After(ctx, make(chan struct{}), func(context.Context) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("After() error = %v", err)
	}
}
