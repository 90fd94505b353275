package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

func TestWebhook(t *testing.T) {
	const body = `{"update_id": 7, "message": {"message_id": 1, "chat": {"id": 42, "type": "private"}, "text": "/start"}}`

	tests := []struct {
		name       string
		secret     string
		body       string
		wantStatus int
		wantCalls  int
	}{
		{"valid", "s3cret", body, http.StatusOK, 1},
		{"wrong secret", "nope", body, http.StatusUnauthorized, 0},
		{"broken json", "s3cret", "{", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []tgbotapi.Update
			h := Router(Config{Path: "/hook", Secret: "s3cret"}, func(u tgbotapi.Update) {
				got = append(got, u)
			}, zap.NewNop())

			req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(tt.body))
			req.Header.Set(SecretHeader, tt.secret)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("статус %d, want %d", rec.Code, tt.wantStatus)
			}
			if len(got) != tt.wantCalls {
				t.Fatalf("вызовов обработчика %d, want %d", len(got), tt.wantCalls)
			}
			if tt.wantCalls > 0 {
				if got[0].UpdateID != 7 || got[0].Message == nil || got[0].Message.Chat.ID != 42 {
					t.Errorf("обновление разобрано неверно: %+v", got[0])
				}
			}
		})
	}
}

func TestWebhookWithoutSecret(t *testing.T) {
	calls := 0
	h := Router(Config{}, func(tgbotapi.Update) { calls++ }, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"update_id": 1}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || calls != 1 {
		t.Errorf("статус %d, вызовов %d", rec.Code, calls)
	}
}

func TestHealthz(t *testing.T) {
	h := Router(Config{}, func(tgbotapi.Update) {}, zap.NewNop())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("healthz: %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /webhook: %d", rec.Code)
	}
}

