package bot

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"coachbot/clients/coachapi"
	"coachbot/internal/i18n"
	"coachbot/internal/session"
	"coachbot/internal/validation"
)

// registrationFlow - данные регистрации клиента до отправки
type registrationFlow struct {
	form session.RegistrationForm
}

// showRoleSelection предлагает незарегистрированному пользователю выбрать роль и язык
func (b *Bot) showRoleSelection(r *request) {
	var langRow []tgbotapi.InlineKeyboardButton
	for _, lang := range i18n.Languages {
		label := i18n.GetLanguageFlag(lang) + " " + i18n.GetLanguageName(lang)
		langRow = append(langRow, tgbotapi.NewInlineKeyboardButtonData(label, "lang:"+string(lang)))
	}
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.tr.T("btn_role_client", r.lang), "role:client"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.tr.T("btn_role_professional", r.lang), "role:pro"),
		),
		langRow,
	)
	b.render(r, b.tr.T("welcome", r.lang), keyboard)
}

// handleRegistrationCallback - выбор роли и языка до регистрации
func (b *Bot) handleRegistrationCallback(ctx context.Context, r *request, data string) {
	switch data {
	case "role:client":
		b.states.update(r.chatID, func(st *chatState) {
			st.resetFlows()
			st.reg = &registrationFlow{}
			st.step = stepRegFirstName
		})
		b.deleteMessage(r.chatID, r.messageID)
		_, _ = b.send(r.chatID, b.tr.T("reg_enter_first_name", r.lang), tgbotapi.NewRemoveKeyboard(true))

	case "role:pro":
		b.states.update(r.chatID, func(st *chatState) {
			st.resetFlows()
			st.step = stepSignInPassword
		})
		b.deleteMessage(r.chatID, r.messageID)
		_, _ = b.send(r.chatID, b.tr.T("signin_enter_password", r.lang), tgbotapi.NewRemoveKeyboard(true))

	default:
		lang := i18n.ParseLanguage(strings.TrimPrefix(data, "lang:"), b.tr.Fallback())
		// сессия нужна, чтобы язык зарегистрированного пользователя ушёл в API
		if _, err := b.sessions.Resolve(ctx, r.chatID); err != nil && !errors.Is(err, session.ErrNotRegistered) {
			b.showFailure(r, err)
			return
		}
		b.changeLanguage(ctx, r, lang)
	}
}

// handleRegistrationInput обрабатывает шаги регистрации и входа
func (b *Bot) handleRegistrationInput(ctx context.Context, r *request, message *tgbotapi.Message) {
	text := strings.TrimSpace(message.Text)

	switch b.states.step(r.chatID) {
	case stepRegFirstName:
		name := validation.NormalizeName(text)
		if err := b.validate.Var("first_name", name, "required,min=2,max=50"); err != nil {
			b.showFailure(r, err)
			return
		}
		b.states.update(r.chatID, func(st *chatState) {
			if st.reg == nil {
				st.reg = &registrationFlow{}
			}
			st.reg.form.FirstName = name
			st.step = stepRegLastName
		})
		_ = b.sendMessage(r.chatID, b.tr.T("reg_enter_last_name", r.lang))

	case stepRegLastName:
		name := validation.NormalizeName(text)
		if err := b.validate.Var("last_name", name, "required,min=2,max=50"); err != nil {
			b.showFailure(r, err)
			return
		}
		b.states.update(r.chatID, func(st *chatState) {
			if st.reg == nil {
				st.reg = &registrationFlow{}
			}
			st.reg.form.LastName = name
			st.step = stepRegPhone
		})
		keyboard := tgbotapi.NewReplyKeyboard(
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButtonContact(b.tr.T("btn_share_phone", r.lang)),
			),
		)
		keyboard.OneTimeKeyboard = true
		_, _ = b.send(r.chatID, b.tr.T("reg_enter_phone", r.lang), keyboard)

	case stepRegPhone:
		phone := text
		if message.Contact != nil {
			phone = message.Contact.PhoneNumber
		}
		b.completeRegistration(ctx, r, phone)

	case stepSignInPassword:
		// пароль не должен оставаться в истории чата
		b.deleteMessage(r.chatID, message.MessageID)
		b.completeSignIn(ctx, r, text)
	}
}

func (b *Bot) completeRegistration(ctx context.Context, r *request, phone string) {
	var form session.RegistrationForm
	var ok bool
	b.states.update(r.chatID, func(st *chatState) {
		if st.reg != nil {
			form = st.reg.form
			ok = true
		}
	})
	if !ok {
		b.states.clear(r.chatID)
		b.showRoleSelection(r)
		return
	}
	form.Phone = phone

	sess, err := b.sessions.Register(ctx, r.chatID, form, r.lang)
	if err != nil {
		var vErr validation.ValidationError
		if errors.As(err, &vErr) && vErr.Field != "phone_number" {
			// ошибка в имени: регистрация начинается заново
			b.states.update(r.chatID, func(st *chatState) { st.step = stepRegFirstName })
		}
		b.showFailure(r, err)
		return
	}

	b.states.update(r.chatID, func(st *chatState) {
		st.reg = nil
		st.step = ""
	})
	r.sess = sess
	r.lang = sess.Lang
	_, _ = b.send(r.chatID, b.tr.Tf("reg_success", r.lang, sess.User.FirstName), tgbotapi.NewRemoveKeyboard(true))
	b.showMainMenu(r)
	b.openPendingLink(ctx, r)
}

func (b *Bot) completeSignIn(ctx context.Context, r *request, password string) {
	sess, err := b.sessions.SignIn(ctx, r.chatID, password, r.lang)
	if err != nil {
		if errors.Is(err, coachapi.ErrUnauthorized) || errors.Is(err, coachapi.ErrNotFound) {
			b.sendError(r, "signin_wrong_password", err)
			return
		}
		b.showFailure(r, err)
		return
	}

	b.states.clear(r.chatID)
	r.sess = sess
	r.lang = sess.Lang
	_ = b.sendMessage(r.chatID, b.tr.Tf("signin_success", r.lang, sess.User.FirstName))
	b.showMainMenu(r)
	b.openPendingLink(ctx, r)
}
