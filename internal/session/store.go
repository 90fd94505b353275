// Package session хранит сессии пользователей в памяти, по одной на чат.
// Токен API живёт только здесь и теряется при перезапуске.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"coachbot/clients/coachapi"
	"coachbot/internal/i18n"
	"coachbot/internal/validation"
)

// ErrNotRegistered - пользователь чата ещё не зарегистрирован
var ErrNotRegistered = errors.New("session: пользователь не зарегистрирован")

// Session - авторизованный пользователь чата
type Session struct {
	ChatID int64
	User   coachapi.User
	Lang   i18n.Language
	api    *coachapi.Client
}

// API возвращает клиент API с токеном пользователя
func (s *Session) API() *coachapi.Client {
	return s.api
}

// IsProfessional - сессия тренера
func (s *Session) IsProfessional() bool {
	return s.User.IsProfessional()
}

// Ref возвращает пользователя как PersonRef
func (s *Session) Ref() coachapi.PersonRef {
	chatID := s.ChatID
	locale := string(s.Lang)
	return coachapi.PersonRef{
		ID:        s.User.ID,
		FirstName: s.User.FirstName,
		LastName:  s.User.LastName,
		ChatID:    &chatID,
		Locale:    &locale,
	}
}

// RegistrationForm - форма регистрации клиента
type RegistrationForm struct {
	FirstName string
	LastName  string
	Phone     string
}

// Store - сессии всех чатов
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
	seen     map[int64]time.Time
	langs    map[int64]i18n.Language // язык чатов без сессии

	api      *coachapi.Client
	validate *validation.Validator
	fallback i18n.Language
	log      *zap.Logger
	now      func() time.Time
}

// NewStore создаёт хранилище сессий
func NewStore(api *coachapi.Client, v *validation.Validator, fallback i18n.Language, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		sessions: make(map[int64]*Session),
		seen:     make(map[int64]time.Time),
		langs:    make(map[int64]i18n.Language),
		api:      api,
		validate: v,
		fallback: fallback,
		log:      log,
		now:      time.Now,
	}
}

func (s *Store) put(chatID int64, user coachapi.User) *Session {
	sess := &Session{
		ChatID: chatID,
		User:   user,
		Lang:   i18n.ParseLanguage(user.Locale, s.pendingLanguage(chatID)),
		api:    s.api.WithToken(user.Token),
	}
	s.mu.Lock()
	s.sessions[chatID] = sess
	s.seen[chatID] = s.now()
	delete(s.langs, chatID)
	s.mu.Unlock()
	return sess
}

func (s *Store) pendingLanguage(chatID int64) i18n.Language {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if lang, ok := s.langs[chatID]; ok {
		return lang
	}
	return s.fallback
}

// Peek возвращает сессию без обращения к API
func (s *Store) Peek(chatID int64) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[chatID]
	if ok {
		s.seen[chatID] = s.now()
	}
	return sess, ok
}

// Resolve возвращает сессию чата, при необходимости загружая пользователя из API.
// 404 означает, что пользователь ещё не зарегистрирован: возвращается ErrNotRegistered.
func (s *Store) Resolve(ctx context.Context, chatID int64) (*Session, error) {
	if sess, ok := s.Peek(chatID); ok {
		return sess, nil
	}

	user, err := s.api.GetUser(ctx, chatID)
	if errors.Is(err, coachapi.ErrNotFound) {
		s.mu.Lock()
		s.seen[chatID] = s.now()
		s.mu.Unlock()
		return nil, ErrNotRegistered
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки пользователя: %w", err)
	}

	s.log.Debug("сессия восстановлена", zap.Int64("chat_id", chatID), zap.String("role", string(user.Role)))
	return s.put(chatID, *user), nil
}

// Language - язык чата: из сессии, выбранный до регистрации или подсказка клиента Telegram
func (s *Store) Language(chatID int64, hint string) i18n.Language {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[chatID]; ok {
		return sess.Lang
	}
	if lang, ok := s.langs[chatID]; ok {
		return lang
	}
	return i18n.ParseLanguage(hint, s.fallback)
}

// Register регистрирует клиента
func (s *Store) Register(ctx context.Context, chatID int64, form RegistrationForm, lang i18n.Language) (*Session, error) {
	req := coachapi.RegisterClientRequest{
		FirstName:   validation.NormalizeName(form.FirstName),
		LastName:    validation.NormalizeName(form.LastName),
		PhoneNumber: validation.NormalizePhone(form.Phone),
		ChatID:      chatID,
		Locale:      string(lang),
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	user, err := s.api.RegisterClient(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("ошибка регистрации: %w", err)
	}
	if user.Locale == "" {
		user.Locale = string(lang)
	}
	s.log.Info("клиент зарегистрирован", zap.Int64("chat_id", chatID), zap.Int64("user_id", user.ID))
	return s.put(chatID, *user), nil
}

// SignIn выполняет вход тренера по паролю
func (s *Store) SignIn(ctx context.Context, chatID int64, password string, lang i18n.Language) (*Session, error) {
	req := coachapi.SignInRequest{ChatID: chatID, Password: password, Locale: string(lang)}
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	user, err := s.api.SignInProfessional(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("ошибка входа: %w", err)
	}
	if user.Role == "" {
		user.Role = coachapi.RoleProfessional
	}
	s.log.Info("тренер вошёл", zap.Int64("chat_id", chatID), zap.Int64("user_id", user.ID))
	return s.put(chatID, *user), nil
}

// SetLocale меняет язык. Для зарегистрированных изменение сохраняется в API.
func (s *Store) SetLocale(ctx context.Context, chatID int64, lang i18n.Language) error {
	sess, ok := s.Peek(chatID)
	if !ok {
		s.mu.Lock()
		s.langs[chatID] = lang
		s.seen[chatID] = s.now()
		s.mu.Unlock()
		return nil
	}

	if err := sess.api.UpdateLocale(ctx, string(lang)); err != nil {
		return fmt.Errorf("ошибка смены языка: %w", err)
	}

	updated := *sess
	updated.Lang = lang
	updated.User.Locale = string(lang)
	s.mu.Lock()
	s.sessions[chatID] = &updated
	s.mu.Unlock()
	return nil
}

// Drop удаляет сессию чата
func (s *Store) Drop(chatID int64) {
	s.mu.Lock()
	delete(s.sessions, chatID)
	delete(s.seen, chatID)
	delete(s.langs, chatID)
	s.mu.Unlock()
}

// Sweep удаляет сессии, неактивные дольше maxIdle. Возвращает удалённые чаты.
func (s *Store) Sweep(maxIdle time.Duration) []int64 {
	cutoff := s.now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()

	var dropped []int64
	for chatID, seen := range s.seen {
		if seen.Before(cutoff) {
			delete(s.sessions, chatID)
			delete(s.seen, chatID)
			delete(s.langs, chatID)
			dropped = append(dropped, chatID)
		}
	}
	return dropped
}

// Len - число активных сессий
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
