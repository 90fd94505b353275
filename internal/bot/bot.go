package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"coachbot/internal/booking"
	"coachbot/internal/host"
	"coachbot/internal/i18n"
	"coachbot/internal/session"
	"coachbot/internal/validation"
)

// Options - настройки бота
type Options struct {
	PageSize  int
	SendRate  float64
	SendBurst int
}

// Bot представляет Telegram бота записи на тренировки
type Bot struct {
	api      botAPI
	sessions *session.Store
	tr       *i18n.Translator
	validate *validation.Validator
	log      *zap.Logger
	states   *stateStore
	pageSize int

	wg sync.WaitGroup
}

// New создаёт новый экземпляр бота
func New(api botAPI, sessions *session.Store, tr *i18n.Translator, v *validation.Validator, log *zap.Logger, opts Options) *Bot {
	if log == nil {
		log = zap.NewNop()
	}
	if v == nil {
		v = validation.New()
	}
	var sender botAPI = api
	if opts.SendRate > 0 {
		burst := opts.SendBurst
		if burst < 1 {
			burst = 1
		}
		sender = newThrottledAPI(api, opts.SendRate, burst)
	}
	return &Bot{
		api:      sender,
		sessions: sessions,
		tr:       tr,
		validate: v,
		log:      log,
		states:   newStateStore(),
		pageSize: opts.PageSize,
	}
}

// Run читает обновления из канала до отмены ctx
func (b *Bot) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			b.wg.Wait()
			return
		case update, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate обрабатывает одно обновление.
// Сообщения обрабатываются по порядку, нажатия кнопок - в отдельной горутине.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		callback := update.CallbackQuery
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			defer b.recoverPanic(callbackChat(callback))
			b.handleCallback(ctx, callback)
		}()
	case update.Message != nil:
		var chatID int64
		if chat := update.FromChat(); chat != nil {
			chatID = chat.ID
		}
		defer b.recoverPanic(chatID)
		b.handleMessage(ctx, update.Message)
	}
}

// Wait ждёт завершения обработчиков нажатий
func (b *Bot) Wait() {
	b.wg.Wait()
}

func callbackChat(cq *tgbotapi.CallbackQuery) int64 {
	if cq.Message != nil && cq.Message.Chat != nil {
		return cq.Message.Chat.ID
	}
	if cq.From != nil {
		return cq.From.ID
	}
	return 0
}

func (b *Bot) recoverPanic(chatID int64) {
	if r := recover(); r != nil {
		b.log.Error("паника в обработчике", zap.Int64("chat_id", chatID), zap.Any("panic", r))
	}
}

// Sweep удаляет сессии и состояния чатов, неактивных дольше maxIdle
func (b *Bot) Sweep(maxIdle time.Duration) {
	dropped := b.sessions.Sweep(maxIdle)
	states := b.states.sweep(maxIdle)
	if len(dropped) > 0 || states > 0 {
		b.log.Info("очистка неактивных чатов", zap.Int("sessions", len(dropped)), zap.Int("states", states))
	}
}

// request - контекст одного взаимодействия пользователя
type request struct {
	chatID    int64
	messageID int // сообщение для редактирования, 0 - отправить новое
	sess      *session.Session
	lang      i18n.Language
	bridge    *telegramBridge
}

func (b *Bot) newRequest(chatID int64, messageID int, callbackID, hint string) *request {
	if hint != "" {
		b.states.update(chatID, func(st *chatState) { st.hint = hint })
	}
	r := &request{chatID: chatID, messageID: messageID}
	r.lang = b.lang(chatID)
	r.bridge = &telegramBridge{b: b, chatID: chatID, callbackID: callbackID}
	return r
}

// mutator создаёт исполнитель изменений для пользователя запроса
func (b *Bot) mutator(r *request) *booking.Mutator {
	var bridge host.Bridge = r.bridge
	m := booking.NewMutator(r.sess.API(), bridge, b.tr, r.lang, b.validate, b.log)
	m.Actor = r.sess.User.FullName()
	return m
}

// resolve загружает сессию. Незарегистрированному пользователю показывается выбор роли.
func (b *Bot) resolve(ctx context.Context, r *request) bool {
	sess, err := b.sessions.Resolve(ctx, r.chatID)
	if errors.Is(err, session.ErrNotRegistered) {
		b.showRoleSelection(r)
		return false
	}
	if err != nil {
		b.sendError(r, "error_generic", err)
		return false
	}
	r.sess = sess
	r.lang = sess.Lang
	return true
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.Chat == nil {
		return
	}
	chatID := message.Chat.ID
	hint := ""
	if message.From != nil {
		hint = message.From.LanguageCode
	}
	r := b.newRequest(chatID, 0, "", hint)

	if message.IsCommand() {
		b.handleCommand(ctx, r, message)
		return
	}

	// Шаги регистрации не требуют сессии
	switch b.states.step(chatID) {
	case stepRegFirstName, stepRegLastName, stepRegPhone, stepSignInPassword:
		b.handleRegistrationInput(ctx, r, message)
		return
	}

	if !b.resolve(ctx, r) {
		return
	}
	if b.handleTextInput(ctx, r, message) {
		return
	}
	b.handleMenuButton(ctx, r, strings.TrimSpace(message.Text))
}

func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if callback.Message == nil || callback.Message.Chat == nil {
		return
	}
	chatID := callback.Message.Chat.ID
	hint := ""
	if callback.From != nil {
		hint = callback.From.LanguageCode
	}
	r := b.newRequest(chatID, callback.Message.MessageID, callback.ID, hint)
	defer r.bridge.ack()

	data := callback.Data
	switch {
	case data == "ignore":
		return
	case strings.HasPrefix(data, "role:"), strings.HasPrefix(data, "lang:"):
		b.handleRegistrationCallback(ctx, r, data)
		return
	case data == "dlg:n":
		b.deleteMessage(r.chatID, r.messageID)
		return
	}

	if !b.resolve(ctx, r) {
		return
	}

	switch {
	case strings.HasPrefix(data, "dlg:y:"):
		b.deleteMessage(r.chatID, r.messageID)
		r.messageID = 0
		b.handleConfirmed(ctx, r, strings.TrimPrefix(data, "dlg:y:"))
	case data == "menu":
		b.states.clear(chatID)
		b.deleteMessage(r.chatID, r.messageID)
		b.showMainMenu(r)
	case data == "back":
		b.navigateBack(ctx, r)
	case strings.HasPrefix(data, "set:"):
		b.handleSettingsCallback(ctx, r, data)
	case strings.HasPrefix(data, "cal:"):
		b.handleCalendarCallback(ctx, r, data)
	case strings.HasPrefix(data, "bk:"):
		b.handleBookingCallback(ctx, r, data)
	case strings.HasPrefix(data, "ca:"), strings.HasPrefix(data, "rq:"), strings.HasPrefix(data, "tt:"):
		b.handleListCallback(ctx, r, data)
	case strings.HasPrefix(data, "ap"):
		b.handleAppointmentCallback(ctx, r, data)
	case strings.HasPrefix(data, "rs:"):
		b.handleRescheduleCallback(ctx, r, data)
	case strings.HasPrefix(data, "gv:"):
		b.handleGroupCallback(ctx, r, data)
	case strings.HasPrefix(data, "un:"):
		b.handleUnavailableCallback(ctx, r, data)
	case strings.HasPrefix(data, "pr:"), strings.HasPrefix(data, "cl:"):
		b.handleSubscriptionCallback(ctx, r, data)
	case strings.HasPrefix(data, "ivt:"), data == "ivs":
		b.handleInviteSendCallback(ctx, r, data)
	case strings.HasPrefix(data, "iv:"):
		b.handleInviteCallback(ctx, r, data)
	case strings.HasPrefix(data, "pk:"):
		b.handlePackageCallback(ctx, r, data)
	case strings.HasPrefix(data, "ex:"):
		b.handleExportCallback(ctx, r, data)
	default:
		b.log.Debug("неизвестный callback", zap.String("data", data), zap.Int64("chat_id", chatID))
	}
}

// handleConfirmed продолжает действие после ответа "да" в диалоге подтверждения
func (b *Bot) handleConfirmed(ctx context.Context, r *request, action string) {
	switch {
	case strings.HasPrefix(action, "apx:"):
		b.askCancelReason(ctx, r, parseID(strings.TrimPrefix(action, "apx:")))
	case strings.HasPrefix(action, "iva:"):
		b.acceptInvite(ctx, r, parseID(strings.TrimPrefix(action, "iva:")))
	case strings.HasPrefix(action, "ivd:"):
		b.dismissInvite(ctx, r, parseID(strings.TrimPrefix(action, "ivd:")))
	}
}
