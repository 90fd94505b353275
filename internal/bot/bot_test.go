package bot

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"coachbot/clients/coachapi"
	"coachbot/internal/booking"
	"coachbot/internal/i18n"
	"coachbot/internal/session"
	"coachbot/internal/validation"
)

const testChat int64 = 42

// fakeAPI запоминает всё, что бот отправил в Telegram
type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	nextID   int
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	f.nextID++
	return tgbotapi.Message{MessageID: 1000 + f.nextID}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

// texts возвращает тексты отправленных и отредактированных сообщений
func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, m.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeAPI) hasText(substr string) bool {
	for _, text := range f.texts() {
		if strings.Contains(text, substr) {
			return true
		}
	}
	return false
}

// buttons возвращает callback_data всех inline-кнопок
func (f *fakeAPI) buttons() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	collect := func(kb *tgbotapi.InlineKeyboardMarkup) {
		if kb == nil {
			return
		}
		for _, row := range kb.InlineKeyboard {
			for _, btn := range row {
				if btn.CallbackData != nil {
					out = append(out, *btn.CallbackData)
				}
			}
		}
	}
	for _, c := range f.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			if kb, ok := m.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup); ok {
				collect(&kb)
			}
		case tgbotapi.EditMessageTextConfig:
			collect(m.ReplyMarkup)
		}
	}
	return out
}

func (f *fakeAPI) hasButton(data string) bool {
	for _, b := range f.buttons() {
		if b == data {
			return true
		}
	}
	return false
}

// answers возвращает тексты ответов на нажатия кнопок
func (f *fakeAPI) answers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.requests {
		if cb, ok := c.(tgbotapi.CallbackConfig); ok {
			out = append(out, cb.Text)
		}
	}
	return out
}

func (f *fakeAPI) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
	f.requests = nil
}

// recorded - запрос, пришедший на тестовый API
type recorded struct {
	method string
	path   string
	body   string
}

type fakeServer struct {
	mu    sync.Mutex
	calls []recorded
	mux   *http.ServeMux
}

func newFakeServer(t *testing.T) (*fakeServer, *httptest.Server) {
	t.Helper()
	fs := &fakeServer{mux: http.NewServeMux()}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		fs.mu.Lock()
		fs.calls = append(fs.calls, recorded{method: r.Method, path: r.URL.Path, body: string(body)})
		fs.mu.Unlock()
		fs.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return fs, srv
}

func (fs *fakeServer) handle(pattern string, status int, body string) {
	fs.mux.HandleFunc(pattern, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
}

func (fs *fakeServer) called(method, path string) (recorded, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, c := range fs.calls {
		if c.method == method && c.path == path {
			return c, true
		}
	}
	return recorded{}, false
}

func (fs *fakeServer) count(method, path string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n := 0
	for _, c := range fs.calls {
		if c.method == method && c.path == path {
			n++
		}
	}
	return n
}

const (
	clientUser = `{"id": 1, "first_name": "Иван", "last_name": "Петров", "role": "client", "chat_id": 42, "locale": "ru", "token": "tok"}`
	coachRef   = `{"id": 7, "first_name": "Анна", "last_name": "Тренер", "chat_id": 77, "locale": "ru"}`
	slotsBody  = `[
		{"start_time": "2026-10-20T09:00:00", "end_time": "2026-10-20T10:00:00", "available": true},
		{"start_time": "2026-10-20T10:00:00", "end_time": "2026-10-20T11:00:00", "available": false},
		{"start_time": "2026-10-20T11:00:00", "end_time": "2026-10-20T12:00:00", "available": true}
	]`
)

func appointmentJSON(id int64, status string) string {
	return fmt.Sprintf(`{"id": %d, "start_time": "2026-10-20T09:00:00", "end_time": "2026-10-20T10:00:00",
		"type": "personal", "status": %q, "clients": [{"id": 1, "first_name": "Иван", "last_name": "Петров"}],
		"professional": %s}`, id, status, coachRef)
}

func newTestBot(t *testing.T, srv *httptest.Server) (*Bot, *fakeAPI) {
	t.Helper()
	tr, err := i18n.New(i18n.LangRussian, nil)
	if err != nil {
		t.Fatalf("i18n.New: %v", err)
	}
	v := validation.New()
	api := coachapi.NewClient(srv.URL, time.Second)
	sessions := session.NewStore(api, v, i18n.LangRussian, nil)
	fake := &fakeAPI{}
	return New(fake, sessions, tr, v, nil, Options{PageSize: 5}), fake
}

func textUpdate(text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		MessageID: 1,
		Chat:      &tgbotapi.Chat{ID: testChat, Type: "private"},
		From:      &tgbotapi.User{ID: testChat, LanguageCode: "ru"},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		cmd, _, _ := strings.Cut(text, " ")
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	}
	return tgbotapi.Update{Message: msg}
}

func callbackUpdate(data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-" + data,
		From:    &tgbotapi.User{ID: testChat, LanguageCode: "ru"},
		Message: &tgbotapi.Message{MessageID: 10, Chat: &tgbotapi.Chat{ID: testChat}},
		Data:    data,
	}}
}

// slotData - callback слота idx в клавиатуре последнего запроса доступности
func slotData(b *Bot, prefix string, idx int) string {
	return fmt.Sprintf("%s:%d:%d", prefix, b.states.availability(testChat).Generation(), idx)
}

func dispatch(t *testing.T, b *Bot, updates ...tgbotapi.Update) {
	t.Helper()
	for _, u := range updates {
		b.HandleUpdate(t.Context(), u)
		b.Wait()
	}
}

func TestStartUnregisteredShowsRoleSelection(t *testing.T) {
	fs, srv := newFakeServer(t)
	fs.handle("GET /users/42", http.StatusNotFound, `{"message": "not found"}`)
	b, fake := newTestBot(t, srv)

	dispatch(t, b, textUpdate("/start"))

	if !fake.hasText("Добро пожаловать") {
		t.Fatalf("нет приветствия: %v", fake.texts())
	}
	for _, data := range []string{"role:client", "role:pro", "lang:ru", "lang:en"} {
		if !fake.hasButton(data) {
			t.Errorf("нет кнопки %q", data)
		}
	}
}

func TestClientRegistration(t *testing.T) {
	fs, srv := newFakeServer(t)
	fs.handle("GET /users/42", http.StatusNotFound, `{}`)
	fs.handle("POST /clients/register", http.StatusOK, clientUser)
	b, fake := newTestBot(t, srv)

	dispatch(t, b, textUpdate("/start"), callbackUpdate("role:client"), textUpdate("и"))
	if !fake.hasText("Имя: от 2 до 50 символов") {
		t.Fatalf("короткое имя принято: %v", fake.texts())
	}
	if got := b.states.step(testChat); got != stepRegFirstName {
		t.Fatalf("шаг %q, want %q", got, stepRegFirstName)
	}

	dispatch(t, b, textUpdate("иван"), textUpdate("Петров"), textUpdate("+7 (900) 123-45-67"))

	call, ok := fs.called(http.MethodPost, "/clients/register")
	if !ok {
		t.Fatal("регистрация не отправлена")
	}
	var req coachapi.RegisterClientRequest
	if err := json.Unmarshal([]byte(call.body), &req); err != nil {
		t.Fatalf("тело регистрации: %v", err)
	}
	if req.FirstName != "Иван" || req.PhoneNumber != "+79001234567" || req.ChatID != testChat || req.Locale != "ru" {
		t.Errorf("регистрация: %+v", req)
	}
	if !fake.hasText("Регистрация завершена, Иван!") {
		t.Errorf("нет подтверждения регистрации: %v", fake.texts())
	}
}

func TestBookingIgnoresStaleSlotKeyboard(t *testing.T) {
	fs, srv := newFakeServer(t)
	fs.handle("GET /users/42", http.StatusOK, clientUser)
	fs.handle("GET /professionals/7/availability", http.StatusOK, slotsBody)
	fs.handle("POST /clients/book_appointment", http.StatusOK, appointmentJSON(9, "pending"))
	fs.handle("POST /notifications/appointment_request", http.StatusNoContent, "")
	b, fake := newTestBot(t, srv)

	dispatch(t, b, textUpdate("/menu"))

	var coach coachapi.PersonRef
	if err := json.Unmarshal([]byte(coachRef), &coach); err != nil {
		t.Fatal(err)
	}
	draft := booking.NewDraft(booking.AutoApply)
	draft.SetProfessional(coach)
	b.states.update(testChat, func(st *chatState) {
		st.booking = &bookingFlow{draft: draft}
		st.calendar = NewCalendarWidget(calBooking, time.Now(), 0)
	})

	// два выбора даты подряд: клавиатура первого устарела
	dispatch(t, b, callbackUpdate("cal:bk:day:2026-10-20"))
	stale := slotData(b, "bk:slot", 0)
	dispatch(t, b, callbackUpdate("cal:bk:day:2026-10-20"))
	if !fake.hasButton(slotData(b, "bk:slot", 1)) {
		t.Fatalf("нет слотов второго запроса: %v", fake.buttons())
	}
	if fake.hasButton(slotData(b, "bk:slot", 2)) {
		t.Error("недоступный слот попал в клавиатуру")
	}

	fake.reset()
	dispatch(t, b, callbackUpdate(stale))
	if got := b.states.step(testChat); got != "" {
		t.Fatalf("устаревшее нажатие сменило шаг на %q", got)
	}
	answers := fake.answers()
	if len(answers) != 1 || answers[0] != "Список времени устарел, выберите снова" {
		t.Fatalf("ответ на устаревшее нажатие: %v", answers)
	}

	dispatch(t, b, callbackUpdate(slotData(b, "bk:slot", 1)))
	if got := b.states.step(testChat); got != stepBookingNote {
		t.Fatalf("шаг %q, want %q", got, stepBookingNote)
	}

	dispatch(t, b, textUpdate("Колено"), callbackUpdate("bk:ok"))

	call, ok := fs.called(http.MethodPost, "/clients/book_appointment")
	if !ok {
		t.Fatal("запись не отправлена")
	}
	var req coachapi.BookRequest
	if err := json.Unmarshal([]byte(call.body), &req); err != nil {
		t.Fatalf("тело записи: %v", err)
	}
	if req.ProfessionalID != 7 || req.Type != coachapi.TypePersonal || req.StartTime != "2026-10-20T11:00:00" || req.Description != "Колено" {
		t.Errorf("запрос записи: %+v", req)
	}
	if fs.count(http.MethodPost, "/notifications/appointment_request") != 1 {
		t.Error("тренер не уведомлён")
	}
	if !fake.hasText("Заявка отправлена") {
		t.Errorf("нет подтверждения: %v", fake.texts())
	}
}

func TestCancelAsksConfirmationThenReason(t *testing.T) {
	fs, srv := newFakeServer(t)
	fs.handle("GET /users/42", http.StatusOK, clientUser)
	fs.handle("GET /appointments/5", http.StatusOK, appointmentJSON(5, "confirmed"))
	fs.handle("PATCH /appointments/5/cancel", http.StatusOK, appointmentJSON(5, "cancelled"))
	fs.handle("POST /notifications/cancellation", http.StatusNoContent, "")
	b, fake := newTestBot(t, srv)

	dispatch(t, b, callbackUpdate("apx:5"))
	if !fake.hasButton("dlg:y:apx:5") || !fake.hasButton("dlg:n") {
		t.Fatalf("нет диалога подтверждения: %v", fake.buttons())
	}
	if fs.count(http.MethodPatch, "/appointments/5/cancel") != 0 {
		t.Fatal("отмена до подтверждения")
	}

	dispatch(t, b, callbackUpdate("dlg:y:apx:5"))
	if got := b.states.step(testChat); got != stepCancelReason {
		t.Fatalf("шаг %q, want %q", got, stepCancelReason)
	}

	// пустая причина не уходит в API
	dispatch(t, b, textUpdate("   "))
	if fs.count(http.MethodPatch, "/appointments/5/cancel") != 0 {
		t.Fatal("пустая причина отправлена")
	}

	dispatch(t, b, textUpdate("Заболел"))
	call, ok := fs.called(http.MethodPatch, "/appointments/5/cancel")
	if !ok {
		t.Fatal("отмена не отправлена")
	}
	if !strings.Contains(call.body, `"cancellation_reason":"Заболел"`) {
		t.Errorf("тело отмены: %s", call.body)
	}
	if fs.count(http.MethodPost, "/notifications/cancellation") != 1 {
		t.Error("тренер не уведомлён об отмене")
	}
	if got := b.states.step(testChat); got != "" {
		t.Errorf("шаг после отмены %q", got)
	}
}

func TestDialogNoDoesNothing(t *testing.T) {
	fs, srv := newFakeServer(t)
	fs.handle("GET /users/42", http.StatusOK, clientUser)
	b, _ := newTestBot(t, srv)

	dispatch(t, b, callbackUpdate("apx:5"), callbackUpdate("dlg:n"))

	if got := b.states.step(testChat); got != "" {
		t.Errorf("шаг %q после отказа", got)
	}
	if fs.count(http.MethodGet, "/appointments/5") != 0 {
		t.Error("запись загружена после отказа")
	}
}

func TestDeepLinkOpensAppointmentAfterList(t *testing.T) {
	fs, srv := newFakeServer(t)
	fs.handle("GET /users/42", http.StatusOK, clientUser)
	fs.handle("GET /clients/appointments", http.StatusOK,
		`{"data": [`+appointmentJSON(5, "confirmed")+`], "pagination": {"page": 1, "page_size": 5, "has_next_page": false}}`)
	fs.handle("GET /appointments/5", http.StatusOK, appointmentJSON(5, "confirmed"))
	b, fake := newTestBot(t, srv)

	dispatch(t, b, textUpdate("/start appointment_5"))

	if fs.count(http.MethodGet, "/clients/appointments") != 1 {
		t.Fatal("список записей не загружен")
	}
	if !fake.hasText("Запись #5") {
		t.Fatalf("карточка записи не открыта: %v", fake.texts())
	}
	if !fake.hasButton("apx:5") {
		t.Error("нет кнопки отмены у подтверждённой записи")
	}
}

func TestNotFoundInviteIsNotAnError(t *testing.T) {
	fs, srv := newFakeServer(t)
	fs.handle("GET /users/42", http.StatusOK, clientUser)
	fs.handle("GET /invites", http.StatusOK, `{"data": [], "pagination": {"page": 1, "page_size": 5}}`)
	fs.handle("GET /invites/3", http.StatusNotFound, `{}`)
	b, fake := newTestBot(t, srv)

	dispatch(t, b, textUpdate("/start invite_3"))

	if !fake.hasText("Приглашение больше недоступно") {
		t.Fatalf("нет сообщения о недоступном приглашении: %v", fake.texts())
	}
	if fake.hasText("Что-то пошло не так") {
		t.Error("404 показан как ошибка")
	}
}

func TestSweepDropsIdleState(t *testing.T) {
	fs, srv := newFakeServer(t)
	fs.handle("GET /users/42", http.StatusOK, clientUser)
	b, _ := newTestBot(t, srv)

	dispatch(t, b, textUpdate("/menu"))
	b.states.setStep(testChat, stepBookingNote)

	b.Sweep(time.Hour)
	if got := b.states.step(testChat); got != stepBookingNote {
		t.Fatalf("активное состояние удалено")
	}

	time.Sleep(5 * time.Millisecond)
	b.Sweep(time.Millisecond)
	if got := b.states.step(testChat); got != "" {
		t.Errorf("шаг %q после очистки", got)
	}
	if fs.count(http.MethodGet, "/users/42") != 1 {
		t.Fatal("сессия загружалась повторно до очистки")
	}
	dispatch(t, b, textUpdate("/menu"))
	if fs.count(http.MethodGet, "/users/42") != 2 {
		t.Error("после очистки сессия не загружена заново")
	}
}
