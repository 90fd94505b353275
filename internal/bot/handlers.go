package bot

import (
	"context"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	commandStart    = "start"
	commandMenu     = "menu"
	commandSettings = "settings"
	commandCancel   = "cancel"
)

// Цели кнопки "назад"
const (
	backClientAppointments = "ca"
	backRequests           = "rq"
	backTimetable          = "tt"
	backProfessionals      = "pr"
	backClients            = "cl"
	backInvites            = "iv"
	backPackages           = "pk"
)

func (b *Bot) handleCommand(ctx context.Context, r *request, message *tgbotapi.Message) {
	switch message.Command() {
	case commandStart:
		b.states.clear(r.chatID)
		payload := strings.TrimSpace(message.CommandArguments())
		if payload != "" {
			b.states.update(r.chatID, func(st *chatState) { st.link = payload })
		}
		if !b.resolve(ctx, r) {
			return
		}
		b.showMainMenu(r)
		b.openPendingLink(ctx, r)

	case commandMenu, commandCancel:
		b.states.clear(r.chatID)
		if !b.resolve(ctx, r) {
			return
		}
		b.showMainMenu(r)

	case commandSettings:
		if !b.resolve(ctx, r) {
			return
		}
		b.showSettings(r)

	default:
		_ = b.sendMessage(r.chatID, b.tr.T("unknown_command", r.lang))
	}
}

// showMainMenu показывает главное меню роли
func (b *Bot) showMainMenu(r *request) {
	b.states.update(r.chatID, func(st *chatState) { st.back = "" })

	button := func(key string) tgbotapi.KeyboardButton {
		return tgbotapi.NewKeyboardButton(b.tr.T(key, r.lang))
	}

	var keyboard tgbotapi.ReplyKeyboardMarkup
	if r.sess.IsProfessional() {
		keyboard = tgbotapi.NewReplyKeyboard(
			tgbotapi.NewKeyboardButtonRow(button("btn_requests"), button("btn_timetable")),
			tgbotapi.NewKeyboardButtonRow(button("btn_group_visit"), button("btn_unavailable")),
			tgbotapi.NewKeyboardButtonRow(button("btn_clients"), button("btn_packages")),
			tgbotapi.NewKeyboardButtonRow(button("btn_export_timetable"), button("btn_export_calendar")),
			tgbotapi.NewKeyboardButtonRow(button("btn_settings")),
		)
	} else {
		keyboard = tgbotapi.NewReplyKeyboard(
			tgbotapi.NewKeyboardButtonRow(button("btn_book"), button("btn_my_appointments")),
			tgbotapi.NewKeyboardButtonRow(button("btn_professionals"), button("btn_invites")),
			tgbotapi.NewKeyboardButtonRow(button("btn_packages"), button("btn_export_calendar")),
			tgbotapi.NewKeyboardButtonRow(button("btn_settings")),
		)
	}

	_, _ = b.send(r.chatID, b.tr.Tf("welcome_name", r.lang, r.sess.User.FirstName), keyboard)
}

// handleMenuButton обрабатывает кнопки главного меню
func (b *Bot) handleMenuButton(ctx context.Context, r *request, text string) {
	is := func(key string) bool { return text == b.tr.T(key, r.lang) }

	b.states.clear(r.chatID)
	pro := r.sess.IsProfessional()

	switch {
	case is("btn_settings"):
		b.showSettings(r)
	case is("btn_packages"):
		b.showPackages(ctx, r, 0, true)
	case is("btn_export_calendar"):
		b.exportCalendar(ctx, r)

	case !pro && is("btn_book"):
		b.startBooking(ctx, r)
	case !pro && is("btn_my_appointments"):
		b.showClientAppointments(ctx, r, true)
	case !pro && is("btn_professionals"):
		b.showProfessionals(ctx, r, true)
	case !pro && is("btn_invites"):
		b.showInvites(ctx, r, true)

	case pro && is("btn_requests"):
		b.showRequests(ctx, r, true)
	case pro && is("btn_timetable"):
		b.startTimetable(r)
	case pro && is("btn_group_visit"):
		b.startGroupVisit(ctx, r)
	case pro && is("btn_unavailable"):
		b.startUnavailable(r)
	case pro && is("btn_clients"):
		b.showClients(ctx, r, true)
	case pro && is("btn_export_timetable"):
		b.exportTimetable(ctx, r)

	default:
		b.showMainMenu(r)
	}
}

// handleTextInput передаёт текст шагу, который ждёт ввода. false - шаг не ждёт текста.
func (b *Bot) handleTextInput(ctx context.Context, r *request, message *tgbotapi.Message) bool {
	text := strings.TrimSpace(message.Text)
	switch b.states.step(r.chatID) {
	case stepBookingNote:
		b.handleBookingNote(ctx, r, text)
	case stepGroupNote:
		b.handleGroupNote(ctx, r, text)
	case stepUnavailableNote:
		b.handleUnavailableNote(ctx, r, text)
	case stepCancelReason:
		b.handleCancelReason(ctx, r, text)
	case stepEditDescription:
		b.handleEditDescription(ctx, r, text)
	case stepPackageCount, stepPackageIssuedAt, stepPackageExpiresAt:
		b.handlePackageInput(ctx, r, text)
	default:
		return false
	}
	return true
}

// navigateBack открывает экран, заданный кнопкой "назад"
func (b *Bot) navigateBack(ctx context.Context, r *request) {
	var target string
	b.states.update(r.chatID, func(st *chatState) {
		target = st.back
		st.resetFlows()
	})

	switch target {
	case backClientAppointments:
		b.showClientAppointments(ctx, r, true)
	case backRequests:
		b.showRequests(ctx, r, true)
	case backTimetable:
		b.showTimetable(ctx, r, true)
	case backProfessionals:
		b.showProfessionals(ctx, r, false)
	case backClients:
		b.showClients(ctx, r, false)
	case backInvites:
		b.showInvites(ctx, r, true)
	case backPackages:
		b.showPackages(ctx, r, 0, true)
	default:
		b.deleteMessage(r.chatID, r.messageID)
		b.showMainMenu(r)
	}
}

// openCalendar показывает календарь сценария flow
func (b *Bot) openCalendar(r *request, flow, prompt string, days int) {
	cal := NewCalendarWidget(flow, time.Now(), days)
	b.states.update(r.chatID, func(st *chatState) { st.calendar = cal })
	b.render(r, prompt, cal.GenerateCalendar(b.tr, r.lang))
}

// handleCalendarCallback листает месяц или передаёт выбранную дату сценарию
func (b *Bot) handleCalendarCallback(ctx context.Context, r *request, data string) {
	parts := strings.SplitN(strings.TrimPrefix(data, "cal:"), ":", 3)
	if len(parts) < 2 {
		return
	}
	flow, action := parts[0], parts[1]

	var active bool
	b.states.update(r.chatID, func(st *chatState) { active = st.calendar != nil && st.calendar.Flow == flow })
	if !active {
		b.sendError(r, "error_session_expired", nil)
		return
	}

	switch action {
	case "prev", "next":
		delta := 1
		if action == "prev" {
			delta = -1
		}
		var keyboard tgbotapi.InlineKeyboardMarkup
		b.states.update(r.chatID, func(st *chatState) {
			st.calendar.Shift(delta)
			keyboard = st.calendar.GenerateCalendar(b.tr, r.lang)
		})
		edit := tgbotapi.NewEditMessageReplyMarkup(r.chatID, r.messageID, keyboard)
		if _, err := b.api.Send(edit); err != nil {
			b.log.Debug("не удалось обновить календарь", zap.Error(err))
		}
	case "day":
		if len(parts) != 3 {
			return
		}
		date := parts[2]
		switch flow {
		case calBooking:
			b.handleBookingDate(ctx, r, date)
		case calGroup:
			b.handleGroupDate(ctx, r, date)
		case calUnavailable:
			b.handleUnavailableDate(ctx, r, date)
		case calReschedule:
			b.handleRescheduleDate(ctx, r, date)
		case calTimetable:
			b.handleTimetableDate(ctx, r, date)
		}
	}
}

// openPendingLink открывает отложенную глубокую ссылку /start invite_<id> или appointment_<id>
func (b *Bot) openPendingLink(ctx context.Context, r *request) {
	var link string
	b.states.update(r.chatID, func(st *chatState) {
		link = st.link
		st.link = ""
	})
	switch {
	case strings.HasPrefix(link, "invite_"):
		b.openInviteLink(ctx, r, parseID(strings.TrimPrefix(link, "invite_")))
	case strings.HasPrefix(link, "appointment_"):
		b.openAppointmentLink(ctx, r, parseID(strings.TrimPrefix(link, "appointment_")))
	case link != "":
		b.log.Debug("неизвестная ссылка", zap.String("link", link))
	}
}
