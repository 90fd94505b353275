package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"coachbot/clients/coachapi"
	"coachbot/internal/i18n"
	"coachbot/internal/validation"
)

func newStore(t *testing.T, h http.HandlerFunc) *Store {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	api := coachapi.NewClient(srv.URL, time.Second, coachapi.WithHTTPClient(srv.Client()))
	return NewStore(api, validation.New(), i18n.LangRussian, nil)
}

func TestResolveNotRegistered(t *testing.T) {
	s := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := s.Resolve(context.Background(), 42)
	if !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("Resolve() error = %v, want ErrNotRegistered", err)
	}
	if got := s.Language(42, "en"); got != i18n.LangEnglish {
		t.Errorf("Language() = %s", got)
	}
}

func TestResolveCachesSession(t *testing.T) {
	var hits int32
	s := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.URL.Path != "/users/42" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"id":1,"first_name":"Ann","role":"professional","locale":"en","token":"tok"}`))
	})

	for i := 0; i < 3; i++ {
		sess, err := s.Resolve(context.Background(), 42)
		if err != nil {
			t.Fatal(err)
		}
		if !sess.IsProfessional() || sess.Lang != i18n.LangEnglish || sess.API().Token() != "tok" {
			t.Errorf("session = %+v", sess)
		}
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("GetUser вызван %d раз", hits)
	}
}

func TestResolveServerError(t *testing.T) {
	s := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := s.Resolve(context.Background(), 1)
	if err == nil || errors.Is(err, ErrNotRegistered) {
		t.Fatalf("Resolve() error = %v", err)
	}
}

func TestRegister(t *testing.T) {
	s := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		var req coachapi.RegisterClientRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.PhoneNumber != "+79991234567" || req.FirstName != "Анна" || req.Locale != "en" {
			t.Errorf("request = %+v", req)
		}
		w.Write([]byte(`{"id":5,"first_name":"Анна","role":"client","token":"t5"}`))
	})

	form := RegistrationForm{FirstName: " анна ", LastName: "Иванова", Phone: "+7 (999) 123-45-67"}
	sess, err := s.Register(context.Background(), 7, form, i18n.LangEnglish)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if sess.Lang != i18n.LangEnglish || sess.IsProfessional() {
		t.Errorf("session = %+v", sess)
	}
	ref := sess.Ref()
	if !ref.Notifiable() || *ref.ChatID != 7 {
		t.Errorf("Ref() = %+v", ref)
	}
}

func TestRegisterValidation(t *testing.T) {
	s := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("запрос к API при неверной форме")
	})

	_, err := s.Register(context.Background(), 7, RegistrationForm{FirstName: "Анна", LastName: "Иванова", Phone: "123"}, i18n.LangRussian)
	var ve validation.ValidationError
	if !errors.As(err, &ve) || ve.Field != "phone_number" {
		t.Fatalf("Register() error = %v", err)
	}
}

func TestSetLocaleBeforeRegistration(t *testing.T) {
	s := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/clients/register" {
			w.Write([]byte(`{"id":5,"first_name":"Ann","role":"client","token":"t"}`))
			return
		}
		t.Errorf("неожиданный запрос %s", r.URL.Path)
	})

	if err := s.SetLocale(context.Background(), 9, i18n.LangEnglish); err != nil {
		t.Fatal(err)
	}
	if got := s.Language(9, "ru"); got != i18n.LangEnglish {
		t.Errorf("Language() = %s", got)
	}
	sess, err := s.Register(context.Background(), 9, RegistrationForm{FirstName: "Ann", LastName: "Lee", Phone: "79991234567"}, s.Language(9, ""))
	if err != nil {
		t.Fatal(err)
	}
	if sess.Lang != i18n.LangEnglish {
		t.Errorf("Lang = %s", sess.Lang)
	}
}

func TestSetLocaleRegistered(t *testing.T) {
	s := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/3":
			w.Write([]byte(`{"id":3,"role":"client","locale":"ru","token":"t3"}`))
		case "/users/locale":
			if r.Header.Get("Authorization") != "Bearer t3" {
				t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
			}
			w.WriteHeader(http.StatusNoContent)
		}
	})

	if _, err := s.Resolve(context.Background(), 3); err != nil {
		t.Fatal(err)
	}
	if err := s.SetLocale(context.Background(), 3, i18n.LangEnglish); err != nil {
		t.Fatal(err)
	}
	sess, _ := s.Peek(3)
	if sess.Lang != i18n.LangEnglish || sess.User.Locale != "en" {
		t.Errorf("session = %+v", sess)
	}
}

func TestSweep(t *testing.T) {
	s := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":1,"role":"client","token":"t"}`))
	})
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.Resolve(context.Background(), 1)
	now = now.Add(2 * time.Hour)
	s.Resolve(context.Background(), 2)

	dropped := s.Sweep(time.Hour)
	if len(dropped) != 1 || dropped[0] != 1 {
		t.Fatalf("Sweep() = %v", dropped)
	}
	if _, ok := s.Peek(1); ok {
		t.Error("сессия 1 не удалена")
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d", s.Len())
	}
}
