package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"coachbot/clients/coachapi"
	"coachbot/internal/booking"
	"coachbot/internal/calendar"
	"coachbot/internal/query"
)

// Ключи списков записей
const (
	listClientAppointments = "ca"
	listRequests           = "rq"
	listTimetable          = "tt"
)

type appointmentList = query.List[coachapi.Appointment, coachapi.AppointmentFilter]

var statusTabs = []coachapi.AppointmentStatus{"", coachapi.StatusPending, coachapi.StatusConfirmed, coachapi.StatusCancelled}

// cancelFlow - отмена записи, ждёт причину
type cancelFlow struct {
	appt coachapi.Appointment
}

// editFlow - правка описания записи
type editFlow struct {
	appt coachapi.Appointment
}

func (b *Bot) clientAppointments(r *request) *appointmentList {
	api := r.sess.API()
	return listFor(b.states, r.chatID, listClientAppointments, func() *appointmentList {
		return query.NewList[coachapi.Appointment, coachapi.AppointmentFilter](api.ClientAppointments, b.pageSize, coachapi.AppointmentFilter{})
	})
}

func (b *Bot) requests(r *request) *appointmentList {
	api := r.sess.API()
	return listFor(b.states, r.chatID, listRequests, func() *appointmentList {
		return query.NewList[coachapi.Appointment, coachapi.AppointmentFilter](api.ProfessionalAppointments, b.pageSize, coachapi.AppointmentFilter{Status: coachapi.StatusPending})
	})
}

// showClientAppointments - записи клиента со вкладками статусов
func (b *Bot) showClientAppointments(ctx context.Context, r *request, refetch bool) {
	lst := b.clientAppointments(r)
	if refetch {
		if _, applied := lst.Refetch(ctx); !applied {
			return
		}
	}
	b.renderAppointments(r, listClientAppointments, b.tr.T("appointments_title", r.lang), lst, true)
}

// showRequests - заявки, ждущие подтверждения тренера
func (b *Bot) showRequests(ctx context.Context, r *request, refetch bool) {
	lst := b.requests(r)
	if refetch {
		if _, applied := lst.Refetch(ctx); !applied {
			return
		}
	}
	b.renderAppointments(r, listRequests, b.tr.T("requests_title", r.lang), lst, false)
}

// startTimetable предлагает выбрать дату расписания
func (b *Bot) startTimetable(r *request) {
	b.openCalendar(r, calTimetable, b.tr.T("timetable_select_date", r.lang), 0)
}

func (b *Bot) handleTimetableDate(ctx context.Context, r *request, date string) {
	api := r.sess.API()
	lst := openList(b.states, r.chatID, listTimetable,
		query.NewList[coachapi.Appointment, coachapi.AppointmentFilter](api.ProfessionalAppointments, b.pageSize, coachapi.AppointmentFilter{From: date, To: date}))
	b.states.update(r.chatID, func(st *chatState) { st.calendar = nil })
	if _, applied := lst.Refetch(ctx); !applied {
		return
	}
	b.renderAppointments(r, listTimetable, b.tr.Tf("timetable_title", r.lang, calendar.FormatDate(date)), lst, true)
}

// showTimetable показывает открытое расписание или календарь, если даты ещё нет
func (b *Bot) showTimetable(ctx context.Context, r *request, refetch bool) {
	lst, ok := existingList[coachapi.Appointment, coachapi.AppointmentFilter](b.states, r.chatID, listTimetable)
	if !ok {
		b.startTimetable(r)
		return
	}
	if refetch {
		if _, applied := lst.Refetch(ctx); !applied {
			return
		}
	}
	title := b.tr.Tf("timetable_title", r.lang, calendar.FormatDate(lst.Filter().From))
	b.renderAppointments(r, listTimetable, title, lst, true)
}

// renderAppointments рисует список записей: вкладки статусов, записи, листание
func (b *Bot) renderAppointments(r *request, key, title string, lst *appointmentList, tabs bool) {
	ls := lst.Snapshot()
	b.states.update(r.chatID, func(st *chatState) {
		st.origin = key
		st.back = ""
	})
	if ls.Err != nil {
		b.showRetry(r, ls.Err, fmt.Sprintf("%s:pg:%d", key, ls.Page))
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	if tabs {
		active := lst.Filter().Status
		var tabRow []tgbotapi.InlineKeyboardButton
		for _, status := range statusTabs {
			label := b.tr.T("tab_all", r.lang)
			if status != "" {
				label = b.statusName(status, r.lang)
			}
			if status == active {
				label = "• " + label
			}
			name := string(status)
			if name == "" {
				name = "all"
			}
			tabRow = append(tabRow, tgbotapi.NewInlineKeyboardButtonData(label, key+":tab:"+name))
		}
		rows = append(rows, tabRow)
	}

	for _, a := range ls.Data {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.appointmentLabel(a, r.lang), fmt.Sprintf("ap:%d", a.ID)),
		))
	}
	if pager := b.pagerRow(r, key, ls.Page, ls.PrevEnabled, ls.NextEnabled); len(pager) > 0 {
		rows = append(rows, pager)
	}

	text := title
	if len(ls.Data) == 0 {
		text += "\n\n" + b.tr.T("list_empty", r.lang)
	}
	b.render(r, text, b.withNavigation(r, rows...))
}

// handleListCallback - вкладки и листание списков записей
func (b *Bot) handleListCallback(ctx context.Context, r *request, data string) {
	key, rest, _ := strings.Cut(data, ":")

	var lst *appointmentList
	switch key {
	case listClientAppointments:
		lst = b.clientAppointments(r)
	case listRequests:
		lst = b.requests(r)
	case listTimetable:
		existing, ok := existingList[coachapi.Appointment, coachapi.AppointmentFilter](b.states, r.chatID, listTimetable)
		if !ok {
			b.startTimetable(r)
			return
		}
		lst = existing
	default:
		return
	}

	var applied bool
	switch {
	case strings.HasPrefix(rest, "tab:"):
		status := coachapi.AppointmentStatus(strings.TrimPrefix(rest, "tab:"))
		if status == "all" {
			status = ""
		}
		filter := lst.Filter()
		filter.Status = status
		_, applied = lst.SetFilter(ctx, filter)
	case strings.HasPrefix(rest, "pg:"):
		_, applied = lst.SetPage(ctx, safeInt(strings.TrimPrefix(rest, "pg:")))
	}
	if !applied {
		return
	}

	switch key {
	case listClientAppointments:
		b.showClientAppointments(ctx, r, false)
	case listRequests:
		b.showRequests(ctx, r, false)
	case listTimetable:
		b.showTimetable(ctx, r, false)
	}
}

// handleAppointmentCallback - карточка записи и действия с ней
func (b *Bot) handleAppointmentCallback(ctx context.Context, r *request, data string) {
	action, rest, _ := strings.Cut(data, ":")
	id := parseID(rest)
	if action == "apy" {
		idPart, typ, _ := strings.Cut(rest, ":")
		id = parseID(idPart)
		b.changeAppointmentType(ctx, r, id, coachapi.AppointmentType(typ))
		return
	}

	switch action {
	case "ap":
		b.showAppointment(ctx, r, id)
	case "apc":
		b.confirmAppointment(ctx, r, id)
	case "apx":
		if err := r.bridge.ConfirmDialog(b.tr.T("cancel_confirm_question", r.lang), fmt.Sprintf("apx:%d", id)); err != nil {
			b.showFailure(r, err)
		}
	case "ape":
		b.askDescription(ctx, r, id)
	case "apt":
		b.showTypeChoice(ctx, r, id)
	case "apr":
		b.startReschedule(ctx, r, id)
	case "api":
		b.showInviteTargets(ctx, r, id)
	}
}

// viewing возвращает открытую запись id или загружает её
func (b *Bot) viewing(ctx context.Context, r *request, id int64) (coachapi.Appointment, error) {
	var appt *coachapi.Appointment
	b.states.update(r.chatID, func(st *chatState) {
		if st.viewing != nil && st.viewing.ID == id {
			appt = st.viewing
		}
	})
	if appt != nil {
		return *appt, nil
	}
	loaded, err := r.sess.API().GetAppointment(ctx, id)
	if err != nil {
		return coachapi.Appointment{}, err
	}
	b.states.update(r.chatID, func(st *chatState) { st.viewing = loaded })
	return *loaded, nil
}

// showAppointment загружает и показывает карточку записи
func (b *Bot) showAppointment(ctx context.Context, r *request, id int64) {
	appt, err := r.sess.API().GetAppointment(ctx, id)
	if err != nil {
		b.showRetry(r, err, fmt.Sprintf("ap:%d", id))
		return
	}
	b.renderAppointment(r, *appt)
}

func (b *Bot) renderAppointment(r *request, appt coachapi.Appointment) {
	var origin string
	b.states.update(r.chatID, func(st *chatState) {
		st.viewing = &appt
		origin = st.origin
	})
	if origin != "" {
		r.bridge.ShowBackButton(origin)
	} else {
		r.bridge.HideBackButton()
	}

	button := func(key, data string) []tgbotapi.InlineKeyboardButton {
		return tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(b.tr.T(key, r.lang), data))
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	pro := r.sess.IsProfessional()
	if pro && booking.Confirmable(appt) {
		rows = append(rows, button("btn_confirm", fmt.Sprintf("apc:%d", appt.ID)))
	}
	if pro && booking.Editable(appt) {
		rows = append(rows,
			button("btn_edit_description", fmt.Sprintf("ape:%d", appt.ID)),
			button("btn_edit_type", fmt.Sprintf("apt:%d", appt.ID)),
			button("btn_reschedule", fmt.Sprintf("apr:%d", appt.ID)),
		)
		if appt.Type == coachapi.TypeSplit || appt.Type == coachapi.TypeGroup {
			rows = append(rows, button("btn_invite_clients", fmt.Sprintf("api:%d", appt.ID)))
		}
	}
	if booking.Cancellable(appt) {
		rows = append(rows, button("btn_cancel_appointment", fmt.Sprintf("apx:%d", appt.ID)))
	}
	if appt.Status != coachapi.StatusCancelled {
		rows = append(rows, button("btn_add_to_calendar", fmt.Sprintf("ex:ap:%d", appt.ID)))
	}
	b.render(r, b.formatAppointment(appt, r.lang), b.withNavigation(r, rows...))
}

// afterChange обновляет карточку и сбрасывает списки после изменения записи
func (b *Bot) afterChange(r *request, appt *coachapi.Appointment) {
	b.states.invalidate(r.chatID, listClientAppointments, listRequests)
	b.states.update(r.chatID, func(st *chatState) {
		if lst, ok := st.lists[listTimetable].(*appointmentList); ok {
			// расписание остаётся на выбранной дате, данные перезагрузятся при открытии
			st.lists[listTimetable] = query.NewList[coachapi.Appointment, coachapi.AppointmentFilter](r.sess.API().ProfessionalAppointments, b.pageSize, lst.Filter())
		}
	})
	if appt != nil {
		b.renderAppointment(r, *appt)
	}
}

func (b *Bot) confirmAppointment(ctx context.Context, r *request, id int64) {
	appt, err := b.viewing(ctx, r, id)
	if err != nil {
		b.showFailure(r, err)
		return
	}
	updated, err := b.mutator(r).Confirm(ctx, appt)
	if err != nil {
		b.showFailure(r, err)
		return
	}
	b.afterChange(r, updated)
}

// askCancelReason ждёт причину отмены после подтверждения в диалоге
func (b *Bot) askCancelReason(ctx context.Context, r *request, id int64) {
	appt, err := b.viewing(ctx, r, id)
	if err != nil {
		b.showFailure(r, err)
		return
	}
	b.states.update(r.chatID, func(st *chatState) {
		st.cancel = &cancelFlow{appt: appt}
		st.step = stepCancelReason
	})
	_ = b.sendMessage(r.chatID, b.tr.T("cancel_enter_reason", r.lang))
}

func (b *Bot) handleCancelReason(ctx context.Context, r *request, reason string) {
	var flow *cancelFlow
	b.states.update(r.chatID, func(st *chatState) { flow = st.cancel })
	if flow == nil {
		b.states.clear(r.chatID)
		b.sendError(r, "error_session_expired", nil)
		return
	}

	// вторую сторону уведомляет только клиент
	var counterparty *coachapi.PersonRef
	if !r.sess.IsProfessional() {
		counterparty = flow.appt.Professional
	}

	updated, err := b.mutator(r).Cancel(ctx, flow.appt, reason, counterparty)
	if err != nil {
		// при пустой причине шаг остаётся, пользователь вводит её снова
		b.showFailure(r, err)
		return
	}
	b.states.update(r.chatID, func(st *chatState) {
		st.cancel = nil
		st.step = ""
	})
	_ = b.sendMessage(r.chatID, b.tr.T("appointment_cancelled", r.lang))
	b.afterChange(r, updated)
}

func (b *Bot) askDescription(ctx context.Context, r *request, id int64) {
	appt, err := b.viewing(ctx, r, id)
	if err != nil {
		b.showFailure(r, err)
		return
	}
	b.states.update(r.chatID, func(st *chatState) {
		st.edit = &editFlow{appt: appt}
		st.step = stepEditDescription
	})
	_ = b.sendMessage(r.chatID, b.tr.T("edit_enter_description", r.lang))
}

func (b *Bot) handleEditDescription(ctx context.Context, r *request, text string) {
	var flow *editFlow
	b.states.update(r.chatID, func(st *chatState) { flow = st.edit })
	if flow == nil {
		b.states.clear(r.chatID)
		b.sendError(r, "error_session_expired", nil)
		return
	}
	if err := b.validate.Var("description", text, "max=500"); err != nil {
		b.showFailure(r, err)
		return
	}

	updated, err := b.mutator(r).Update(ctx, flow.appt, booking.Edit{Description: &text})
	if err != nil {
		b.showFailure(r, err)
		return
	}
	b.states.update(r.chatID, func(st *chatState) {
		st.edit = nil
		st.step = ""
	})
	b.afterChange(r, updated)
}

// showTypeChoice предлагает тип по числу участников; применяется он только по нажатию
func (b *Bot) showTypeChoice(ctx context.Context, r *request, id int64) {
	appt, err := b.viewing(ctx, r, id)
	if err != nil {
		b.showFailure(r, err)
		return
	}
	draft := booking.NewDraft(booking.SuggestOnly)
	draft.SetParticipants(appt.Clients)

	text := b.tr.Tf("type_current", r.lang, b.typeName(appt.Type, r.lang), len(appt.Clients))
	var rows [][]tgbotapi.InlineKeyboardButton
	if suggested, ok := draft.Suggested(); ok && suggested != appt.Type {
		text += "\n" + b.tr.Tf("type_suggested", r.lang, b.typeName(suggested, r.lang))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.tr.Tf("btn_accept_suggestion", r.lang, b.typeName(suggested, r.lang)),
				fmt.Sprintf("apy:%d:%s", appt.ID, suggested)),
		))
	}
	var typeRow []tgbotapi.InlineKeyboardButton
	for _, t := range []coachapi.AppointmentType{coachapi.TypePersonal, coachapi.TypeSplit, coachapi.TypeGroup} {
		if t == appt.Type {
			continue
		}
		typeRow = append(typeRow, tgbotapi.NewInlineKeyboardButtonData(b.typeName(t, r.lang), fmt.Sprintf("apy:%d:%s", appt.ID, t)))
	}
	rows = append(rows, typeRow)
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(b.tr.T("btn_back", r.lang), fmt.Sprintf("ap:%d", appt.ID)),
	))
	b.render(r, text, tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows})
}

func (b *Bot) changeAppointmentType(ctx context.Context, r *request, id int64, typ coachapi.AppointmentType) {
	appt, err := b.viewing(ctx, r, id)
	if err != nil {
		b.showFailure(r, err)
		return
	}
	updated, err := b.mutator(r).Update(ctx, appt, booking.Edit{Type: typ})
	if err != nil {
		b.showFailure(r, err)
		return
	}
	b.afterChange(r, updated)
}

// openAppointmentLink открывает запись по ссылке после загрузки списка записей
func (b *Bot) openAppointmentLink(ctx context.Context, r *request, id int64) {
	if id == 0 {
		return
	}
	var lst *appointmentList
	if r.sess.IsProfessional() {
		lst = b.requests(r)
		b.showRequests(ctx, r, true)
	} else {
		lst = b.clientAppointments(r)
		b.showClientAppointments(ctx, r, true)
	}

	details := *r
	details.messageID = 0
	err := query.After(ctx, lst.Loaded(), func(ctx context.Context) error {
		b.showAppointment(ctx, &details, id)
		return nil
	})
	if err != nil {
		b.showFailure(r, err)
	}
}
