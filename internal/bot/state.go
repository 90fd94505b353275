package bot

import (
	"sync"
	"time"

	"coachbot/clients/coachapi"
	"coachbot/internal/query"
)

// Шаги, в которых бот ждёт текстовый ввод
const (
	stepRegFirstName     = "reg_first_name"
	stepRegLastName      = "reg_last_name"
	stepRegPhone         = "reg_phone"
	stepSignInPassword   = "signin_password"
	stepBookingNote      = "booking_note"
	stepGroupNote        = "group_note"
	stepUnavailableNote  = "unavailable_note"
	stepCancelReason     = "cancel_reason"
	stepEditDescription  = "edit_description"
	stepPackageCount     = "package_count"
	stepPackageIssuedAt  = "package_issued_at"
	stepPackageExpiresAt = "package_expires_at"
)

// chatState - состояние экранов одного чата.
// Поля меняются только внутри stateStore.update.
type chatState struct {
	step    string
	back    string // экран для кнопки "назад"
	origin  string // последний открытый список
	hint    string // язык клиента Telegram
	link    string // отложенная глубокая ссылка до регистрации
	touched time.Time

	reg      *registrationFlow
	booking  *bookingFlow
	group    *groupFlow
	unavail  *unavailableFlow
	resched  *rescheduleFlow
	cancel   *cancelFlow
	edit     *editFlow
	pkg      *packageFlow
	invite   *inviteFlow
	viewing  *coachapi.Appointment
	subs     map[int64]bool // тренеры, на которых подписан клиент
	calendar *CalendarWidget

	avail *query.Query[[]coachapi.AvailabilitySlot]
	lists map[string]any
}

// resetFlows сбрасывает черновики и ожидание ввода. Списки экранов остаются,
// клавиатуры слотов становятся устаревшими.
func (st *chatState) resetFlows() {
	st.avail.Invalidate()
	st.step = ""
	st.reg = nil
	st.booking = nil
	st.group = nil
	st.unavail = nil
	st.resched = nil
	st.cancel = nil
	st.edit = nil
	st.pkg = nil
	st.invite = nil
	st.calendar = nil
}

// stateStore хранит состояние всех чатов
type stateStore struct {
	mu     sync.Mutex
	states map[int64]*chatState
	now    func() time.Time
}

func newStateStore() *stateStore {
	return &stateStore{states: make(map[int64]*chatState), now: time.Now}
}

func (s *stateStore) get(chatID int64) *chatState {
	st, ok := s.states[chatID]
	if !ok {
		st = &chatState{
			avail: &query.Query[[]coachapi.AvailabilitySlot]{},
			lists: make(map[string]any),
		}
		s.states[chatID] = st
	}
	st.touched = s.now()
	return st
}

// update выполняет fn под блокировкой. Внутри fn нельзя ходить в сеть.
func (s *stateStore) update(chatID int64, fn func(st *chatState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.get(chatID))
}

// step возвращает шаг ожидания ввода
func (s *stateStore) step(chatID int64) string {
	var step string
	s.update(chatID, func(st *chatState) { step = st.step })
	return step
}

func (s *stateStore) setStep(chatID int64, step string) {
	s.update(chatID, func(st *chatState) { st.step = step })
}

// clear сбрасывает все черновики чата
func (s *stateStore) clear(chatID int64) {
	s.update(chatID, func(st *chatState) { st.resetFlows() })
}

// availability возвращает запрос доступности чата
func (s *stateStore) availability(chatID int64) *query.Query[[]coachapi.AvailabilitySlot] {
	var q *query.Query[[]coachapi.AvailabilitySlot]
	s.update(chatID, func(st *chatState) { q = st.avail })
	return q
}

// sweep удаляет состояния, неактивные дольше maxIdle
func (s *stateStore) sweep(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for chatID, st := range s.states {
		if st.touched.Before(cutoff) {
			delete(s.states, chatID)
			n++
		}
	}
	return n
}

// listFor возвращает список экрана key, создавая его при первом обращении
func listFor[T, F any](s *stateStore, chatID int64, key string, create func() *query.List[T, F]) *query.List[T, F] {
	var lst *query.List[T, F]
	s.update(chatID, func(st *chatState) {
		if existing, ok := st.lists[key].(*query.List[T, F]); ok {
			lst = existing
			return
		}
		lst = create()
		st.lists[key] = lst
	})
	return lst
}

// openList создаёт свежий список экрана key, заменяя прежний
func openList[T, F any](s *stateStore, chatID int64, key string, lst *query.List[T, F]) *query.List[T, F] {
	s.update(chatID, func(st *chatState) { st.lists[key] = lst })
	return lst
}

// existingList возвращает список экрана, если он открыт
func existingList[T, F any](s *stateStore, chatID int64, key string) (*query.List[T, F], bool) {
	var lst *query.List[T, F]
	var ok bool
	s.update(chatID, func(st *chatState) { lst, ok = st.lists[key].(*query.List[T, F]) })
	return lst, ok
}

// invalidate сбрасывает список экрана: при следующем открытии он загрузится заново
func (s *stateStore) invalidate(chatID int64, keys ...string) {
	s.update(chatID, func(st *chatState) {
		for _, key := range keys {
			delete(st.lists, key)
		}
	})
}
