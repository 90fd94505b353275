package coachapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 0, WithHTTPClient(srv.Client()))
}

func TestAPIErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		target error
		msg    string
	}{
		{"not found", http.StatusNotFound, `{"message":"user not found"}`, ErrNotFound, "user not found"},
		{"conflict", http.StatusConflict, `{"error":"overlap"}`, ErrConflict, "overlap"},
		{"unauthorized", http.StatusUnauthorized, ``, ErrUnauthorized, ""},
		{"forbidden", http.StatusForbidden, `not json`, ErrUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := c.GetUser(context.Background(), 1)
			if !errors.Is(err, tt.target) {
				t.Fatalf("GetUser() error = %v, want %v", err, tt.target)
			}
			if got := ServerMessage(err); got != tt.msg {
				t.Errorf("ServerMessage() = %q, want %q", got, tt.msg)
			}
		})
	}
}

func TestRequestHeaders(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("X-Request-ID не задан")
		}
		if r.Method != http.MethodPatch || r.URL.Path != "/users/locale" {
			t.Errorf("запрос %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body["locale"] != "en" {
			t.Errorf("тело = %v, %v", body, err)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := c.WithToken("tok").UpdateLocale(context.Background(), "en"); err != nil {
		t.Fatalf("UpdateLocale() error = %v", err)
	}
	if c.Token() != "" {
		t.Error("WithToken изменил исходный клиент")
	}
}

func TestGetPageDefaults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("page") != "1" || q.Get("page_size") != "15" {
			t.Errorf("query = %v", q)
		}
		if q.Get("status") != "pending" {
			t.Errorf("status = %q", q.Get("status"))
		}
		if q.Has("client_id") || q.Has("from") {
			t.Errorf("пустые фильтры попали в запрос: %v", q)
		}
		w.Write([]byte(`{"data":[{"id":7,"type":"personal","status":"pending"}]}`))
	})

	page, err := c.ProfessionalAppointments(context.Background(), PageRequest{}, AppointmentFilter{Status: StatusPending})
	if err != nil {
		t.Fatalf("ProfessionalAppointments() error = %v", err)
	}
	if len(page.Data) != 1 || page.Data[0].ID != 7 {
		t.Fatalf("data = %+v", page.Data)
	}
	if page.Pagination.Page != 1 || page.Pagination.PageSize != DefaultPageSize {
		t.Errorf("pagination = %+v", page.Pagination)
	}
}

func TestAvailabilityOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/professionals/3/availability" || r.URL.Query().Get("date") != "2024-05-10" {
			t.Errorf("запрос %s?%s", r.URL.Path, r.URL.RawQuery)
		}
		w.Write([]byte(`[
			{"start_time":"2024-05-10T09:00:00","end_time":"2024-05-10T10:00:00","available":true},
			{"start_time":"2024-05-10T10:00:00","end_time":"2024-05-10T11:00:00","available":false}
		]`))
	})

	slots, err := c.Availability(context.Background(), 3, "2024-05-10")
	if err != nil {
		t.Fatalf("Availability() error = %v", err)
	}
	if len(slots) != 2 || !slots[0].Available || slots[1].Available {
		t.Fatalf("slots = %+v", slots)
	}
	if Clock(slots[1].StartTime) != "10:00" {
		t.Errorf("Clock() = %q", Clock(slots[1].StartTime))
	}
}

func TestPaginationButtons(t *testing.T) {
	tests := []struct {
		name     string
		p        Pagination
		returned int
		next     bool
		prev     bool
	}{
		{"first partial page", Pagination{Page: 1, PageSize: 15}, 3, false, false},
		{"first full page", Pagination{Page: 1, PageSize: 15}, 15, true, false},
		{"server says more", Pagination{Page: 1, PageSize: 15, HasNextPage: true}, 2, true, false},
		{"second page", Pagination{Page: 2, PageSize: 15}, 1, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.NextEnabled(tt.returned); got != tt.next {
				t.Errorf("NextEnabled() = %v, want %v", got, tt.next)
			}
			if got := tt.p.PrevEnabled(); got != tt.prev {
				t.Errorf("PrevEnabled() = %v, want %v", got, tt.prev)
			}
		})
	}
}

func TestNewNotification(t *testing.T) {
	chat := int64(42)
	ru := "ru"
	empty := ""
	appt := Appointment{ID: 5, StartTime: "2024-05-10T09:00:00", EndTime: "2024-05-10T10:00:00"}

	tests := []struct {
		name string
		ref  PersonRef
		ok   bool
	}{
		{"full", PersonRef{ChatID: &chat, Locale: &ru}, true},
		{"no chat", PersonRef{Locale: &ru}, false},
		{"no locale", PersonRef{ChatID: &chat}, false},
		{"empty locale", PersonRef{ChatID: &chat, Locale: &empty}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := NewNotification(tt.ref, appt, "Ann")
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && (n.ChatID != 42 || n.Locale != "ru" || n.AppointmentID != 5) {
				t.Errorf("notification = %+v", n)
			}
		})
	}
}

func TestDateString(t *testing.T) {
	ts, err := ParseTimestamp("2024-05-10T23:30:00")
	if err != nil {
		t.Fatal(err)
	}
	if got := DateString(ts); got != "2024-05-10" {
		t.Errorf("DateString() = %q", got)
	}
	if got := JoinDateClock("2024-05-10", "09:00"); got != "2024-05-10T09:00:00" {
		t.Errorf("JoinDateClock() = %q", got)
	}
}
