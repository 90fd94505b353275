package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"coachbot/clients/coachapi"
	"coachbot/internal/booking"
	"coachbot/internal/calendar"
)

const (
	scheduleDays   = 90
	maxClientPages = 20
	maxClientRows  = 40
)

// groupFlow - создание сплит или групповой тренировки
type groupFlow struct {
	draft       *booking.GroupDraft
	subscribers []coachapi.PersonRef
}

// unavailableFlow - блок недоступного времени
type unavailableFlow struct {
	draft *booking.UnavailableDraft
}

// rescheduleFlow - перенос подтверждённой записи
type rescheduleFlow struct {
	appt coachapi.Appointment
	rng  booking.TimeRange
}

// allClients загружает всех подписчиков тренера постранично
func (b *Bot) allClients(ctx context.Context, api *coachapi.Client) ([]coachapi.PersonRef, error) {
	var out []coachapi.PersonRef
	for page := 1; page <= maxClientPages; page++ {
		p, err := api.ProfessionalClients(ctx, coachapi.PageRequest{Page: page, PageSize: 100})
		if err != nil {
			return nil, err
		}
		out = append(out, p.Data...)
		if !p.Pagination.HasNextPage || len(p.Data) == 0 {
			break
		}
	}
	return out, nil
}

// rangeFlow возвращает интервал активного сценария
func rangeFlow(st *chatState, flow string) *booking.TimeRange {
	switch flow {
	case calGroup:
		if st.group != nil {
			return &st.group.draft.Range
		}
	case calUnavailable:
		if st.unavail != nil {
			return &st.unavail.draft.Range
		}
	case calReschedule:
		if st.resched != nil {
			return &st.resched.rng
		}
	}
	return nil
}

// handleRangeDate загружает собственную доступность тренера и предлагает начало интервала
func (b *Bot) handleRangeDate(ctx context.Context, r *request, flow, date string) {
	var ok bool
	b.states.update(r.chatID, func(st *chatState) {
		if rng := rangeFlow(st, flow); rng != nil {
			rng.SetDate(date)
			ok = true
		}
	})
	if !ok {
		b.sendError(r, "error_session_expired", nil)
		return
	}

	slots, gen, applied, err := b.loadSlots(ctx, r, r.sess.API(), r.sess.User.ID, date)
	if !applied {
		return
	}
	if err != nil {
		b.showRetry(r, err, "cal:"+flow+":day:"+date)
		return
	}

	var starts []coachapi.AvailabilitySlot
	b.states.update(r.chatID, func(st *chatState) {
		if rng := rangeFlow(st, flow); rng != nil {
			rng.SetSlots(slots)
			starts = rng.Starts()
		}
	})

	changeDate := tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(b.tr.T("btn_change_date", r.lang), flow+":cal"),
	)
	if len(starts) == 0 {
		b.render(r, b.tr.Tf("booking_no_slots", r.lang, calendar.FormatDate(date)), b.withNavigation(r, changeDate))
		return
	}
	rows := slotButtons(starts, flow+":s", gen, false)
	rows = append(rows, changeDate)
	b.render(r, b.tr.Tf("range_select_start", r.lang, calendar.FormatDate(date)), b.withNavigation(r, rows...))
}

// pickRangeStart выбирает начало и предлагает конец интервала
func (b *Bot) pickRangeStart(r *request, flow, data string) {
	gen, idx, ok := parseSlotData(data, flow+":s")
	if !ok || !b.slotCurrent(r, gen) {
		return
	}

	var ends []coachapi.AvailabilitySlot
	var err error
	b.states.update(r.chatID, func(st *chatState) {
		rng := rangeFlow(st, flow)
		if rng == nil {
			err = booking.ValidationError{Field: "start_time", Key: "validation_start_time"}
			return
		}
		starts := rng.Starts()
		if idx >= len(starts) {
			err = booking.ValidationError{Field: "start_time", Key: "validation_slot_unavailable"}
			return
		}
		if err = rng.PickStart(starts[idx].StartTime); err == nil {
			ends = rng.Ends()
		}
	})
	if err != nil {
		b.showFailure(r, err)
		return
	}

	rows := slotButtons(ends, flow+":e", gen, true)
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(b.tr.T("btn_change_date", r.lang), flow+":cal"),
	))
	b.render(r, b.tr.T("range_select_end", r.lang), b.withNavigation(r, rows...))
}

// pickRangeEnd закрывает интервал. false - интервал не выбран.
func (b *Bot) pickRangeEnd(r *request, flow, data string) bool {
	gen, idx, ok := parseSlotData(data, flow+":e")
	if !ok || !b.slotCurrent(r, gen) {
		return false
	}

	var err error
	b.states.update(r.chatID, func(st *chatState) {
		rng := rangeFlow(st, flow)
		if rng == nil {
			err = booking.ValidationError{Field: "end_time", Key: "validation_end_time"}
			return
		}
		ends := rng.Ends()
		if idx >= len(ends) {
			err = booking.ValidationError{Field: "end_time", Key: "validation_slot_unavailable"}
			return
		}
		err = rng.PickEnd(ends[idx].EndTime)
	})
	if err != nil {
		b.showFailure(r, err)
		return false
	}
	return true
}

// Групповые тренировки

func (b *Bot) startGroupVisit(ctx context.Context, r *request) {
	subscribers, err := b.allClients(ctx, r.sess.API())
	if err != nil {
		b.showFailure(r, err)
		return
	}
	notifiable := 0
	for _, s := range subscribers {
		if s.Notifiable() {
			notifiable++
		}
	}
	if notifiable < 2 {
		_ = b.sendMessage(r.chatID, b.tr.T("group_not_enough_clients", r.lang))
		return
	}

	b.states.update(r.chatID, func(st *chatState) {
		st.resetFlows()
		st.group = &groupFlow{draft: booking.NewGroupDraft(coachapi.TypeGroup, booking.AutoApply), subscribers: subscribers}
	})
	b.openCalendar(r, calGroup, b.tr.T("group_select_date", r.lang), scheduleDays)
}

func (b *Bot) handleGroupDate(ctx context.Context, r *request, date string) {
	b.handleRangeDate(ctx, r, calGroup, date)
}

func (b *Bot) handleGroupCallback(ctx context.Context, r *request, data string) {
	var active bool
	b.states.update(r.chatID, func(st *chatState) { active = st.group != nil })
	if !active {
		b.sendError(r, "error_session_expired", nil)
		return
	}

	switch {
	case data == "gv:cal":
		b.openCalendar(r, calGroup, b.tr.T("group_select_date", r.lang), scheduleDays)
	case strings.HasPrefix(data, "gv:s:"):
		b.pickRangeStart(r, calGroup, data)
	case strings.HasPrefix(data, "gv:e:"):
		if b.pickRangeEnd(r, calGroup, data) {
			b.renderGroupParticipants(r)
		}
	case data == "gv:all":
		b.states.update(r.chatID, func(st *chatState) {
			st.group.draft.SelectAll()
			st.group.draft.Resuggest(st.group.subscribers)
		})
		b.renderGroupParticipants(r)
	case strings.HasPrefix(data, "gv:t:"):
		id := parseID(strings.TrimPrefix(data, "gv:t:"))
		b.states.update(r.chatID, func(st *chatState) {
			st.group.draft.Toggle(id)
			st.group.draft.Resuggest(st.group.subscribers)
		})
		b.renderGroupParticipants(r)
	case strings.HasPrefix(data, "gv:ty:"):
		typ := coachapi.AppointmentType(strings.TrimPrefix(data, "gv:ty:"))
		b.states.update(r.chatID, func(st *chatState) {
			st.group.draft.ChooseType(typ)
		})
		b.renderGroupParticipants(r)
	case data == "gv:next":
		var err error
		b.states.update(r.chatID, func(st *chatState) {
			if err = st.group.draft.Validate(st.group.subscribers); err == nil {
				st.step = stepGroupNote
			}
		})
		if err != nil {
			b.showFailure(r, err)
			return
		}
		b.render(r, b.tr.T("group_enter_note", r.lang), b.withNavigation(r, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.tr.T("btn_skip", r.lang), "gv:skip"),
		)))
	case data == "gv:skip":
		b.states.setStep(r.chatID, "")
		b.showGroupConfirm(r)
	case data == "gv:ok":
		b.submitGroup(ctx, r)
	}
}

func (b *Bot) renderGroupParticipants(r *request) {
	var text string
	var rows [][]tgbotapi.InlineKeyboardButton
	b.states.update(r.chatID, func(st *chatState) {
		g := st.group
		if g == nil {
			return
		}
		start, end := g.draft.Range.Bounds()
		count := len(g.draft.Participants(g.subscribers))
		text = b.tr.Tf("group_participants", r.lang, timeRange(start, end), b.typeName(g.draft.Type(), r.lang), count)

		allLabel := b.tr.T("btn_select_all", r.lang)
		if g.draft.AllSelected() {
			allLabel = "✅ " + allLabel
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(allLabel, "gv:all")))

		shown := 0
		for _, s := range g.subscribers {
			if shown >= maxClientRows {
				break
			}
			shown++
			if !s.Notifiable() {
				rows = append(rows, tgbotapi.NewInlineKeyboardRow(
					tgbotapi.NewInlineKeyboardButtonData("🚫 "+s.FullName(), "ignore")))
				continue
			}
			label := "▫️ " + s.FullName()
			if g.draft.AllSelected() || g.draft.IsSelected(s.ID) {
				label = "✅ " + s.FullName()
			}
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("gv:t:%d", s.ID))))
		}

		var typeRow []tgbotapi.InlineKeyboardButton
		for _, t := range []coachapi.AppointmentType{coachapi.TypeSplit, coachapi.TypeGroup} {
			label := b.typeName(t, r.lang)
			if g.draft.Type() == t {
				label = "• " + label
			}
			typeRow = append(typeRow, tgbotapi.NewInlineKeyboardButtonData(label, "gv:ty:"+string(t)))
		}
		rows = append(rows, typeRow)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.tr.T("btn_next", r.lang), "gv:next")))
	})
	if text == "" {
		b.sendError(r, "error_session_expired", nil)
		return
	}
	b.render(r, text, b.withNavigation(r, rows...))
}

func (b *Bot) handleGroupNote(ctx context.Context, r *request, text string) {
	b.states.update(r.chatID, func(st *chatState) {
		if st.group != nil {
			st.group.draft.SetDescription(text)
		}
		st.step = ""
	})
	b.showGroupConfirm(r)
}

func (b *Bot) showGroupConfirm(r *request) {
	var text string
	b.states.update(r.chatID, func(st *chatState) {
		if g := st.group; g != nil {
			start, end := g.draft.Range.Bounds()
			text = b.tr.Tf("group_confirm", r.lang, timeRange(start, end), b.typeName(g.draft.Type(), r.lang),
				clientNames(g.draft.Participants(g.subscribers)))
		}
	})
	if text == "" {
		b.sendError(r, "error_session_expired", nil)
		return
	}
	b.render(r, text, b.withNavigation(r, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(b.tr.T("btn_confirm", r.lang), "gv:ok"),
	)))
}

func (b *Bot) submitGroup(ctx context.Context, r *request) {
	var draft *booking.GroupDraft
	var subscribers []coachapi.PersonRef
	b.states.update(r.chatID, func(st *chatState) {
		if st.group != nil {
			draft = st.group.draft.Clone()
			subscribers = append([]coachapi.PersonRef(nil), st.group.subscribers...)
		}
	})
	if draft == nil {
		b.sendError(r, "error_session_expired", nil)
		return
	}
	_, err := b.mutator(r).CreateGroup(ctx, draft, subscribers, func(appt *coachapi.Appointment) {
		b.states.clear(r.chatID)
		b.states.invalidate(r.chatID, listRequests, listTimetable)
		b.render(r, b.tr.Tf("group_created", r.lang, timeRange(appt.StartTime, appt.EndTime)), b.withNavigation(r))
	})
	if err != nil {
		b.showFailure(r, err)
	}
}

// Недоступное время

func (b *Bot) startUnavailable(r *request) {
	b.states.update(r.chatID, func(st *chatState) {
		st.resetFlows()
		st.unavail = &unavailableFlow{draft: &booking.UnavailableDraft{}}
	})
	b.openCalendar(r, calUnavailable, b.tr.T("unavailable_select_date", r.lang), scheduleDays)
}

func (b *Bot) handleUnavailableDate(ctx context.Context, r *request, date string) {
	b.handleRangeDate(ctx, r, calUnavailable, date)
}

func (b *Bot) handleUnavailableCallback(ctx context.Context, r *request, data string) {
	var active bool
	b.states.update(r.chatID, func(st *chatState) { active = st.unavail != nil })
	if !active {
		b.sendError(r, "error_session_expired", nil)
		return
	}

	switch {
	case data == "un:cal":
		b.openCalendar(r, calUnavailable, b.tr.T("unavailable_select_date", r.lang), scheduleDays)
	case strings.HasPrefix(data, "un:s:"):
		b.pickRangeStart(r, calUnavailable, data)
	case strings.HasPrefix(data, "un:e:"):
		if !b.pickRangeEnd(r, calUnavailable, data) {
			return
		}
		b.states.setStep(r.chatID, stepUnavailableNote)
		b.render(r, b.tr.T("unavailable_enter_note", r.lang), b.withNavigation(r, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.tr.T("btn_skip", r.lang), "un:skip"),
		)))
	case data == "un:skip":
		b.states.setStep(r.chatID, "")
		b.showUnavailableConfirm(r)
	case data == "un:ok":
		b.submitUnavailable(ctx, r)
	}
}

func (b *Bot) handleUnavailableNote(ctx context.Context, r *request, text string) {
	b.states.update(r.chatID, func(st *chatState) {
		if st.unavail != nil {
			st.unavail.draft.SetDescription(text)
		}
		st.step = ""
	})
	b.showUnavailableConfirm(r)
}

func (b *Bot) showUnavailableConfirm(r *request) {
	var text string
	b.states.update(r.chatID, func(st *chatState) {
		if st.unavail != nil {
			start, end := st.unavail.draft.Range.Bounds()
			text = b.tr.Tf("unavailable_confirm", r.lang, timeRange(start, end))
		}
	})
	if text == "" {
		b.sendError(r, "error_session_expired", nil)
		return
	}
	b.render(r, text, b.withNavigation(r, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(b.tr.T("btn_confirm", r.lang), "un:ok"),
	)))
}

func (b *Bot) submitUnavailable(ctx context.Context, r *request) {
	var draft *booking.UnavailableDraft
	b.states.update(r.chatID, func(st *chatState) {
		if st.unavail != nil {
			draft = st.unavail.draft.Clone()
		}
	})
	if draft == nil {
		b.sendError(r, "error_session_expired", nil)
		return
	}
	_, err := b.mutator(r).CreateUnavailable(ctx, draft, func(appt *coachapi.Appointment) {
		b.states.clear(r.chatID)
		b.states.invalidate(r.chatID, listTimetable)
		b.render(r, b.tr.Tf("unavailable_created", r.lang, timeRange(appt.StartTime, appt.EndTime)), b.withNavigation(r))
	})
	if err != nil {
		b.showFailure(r, err)
	}
}

// Перенос записи

func (b *Bot) startReschedule(ctx context.Context, r *request, id int64) {
	appt, err := b.viewing(ctx, r, id)
	if err != nil {
		b.showFailure(r, err)
		return
	}
	if !booking.Editable(appt) {
		b.sendError(r, "error_invalid_transition", nil)
		return
	}
	b.states.update(r.chatID, func(st *chatState) {
		st.resched = &rescheduleFlow{appt: appt}
	})
	b.openCalendar(r, calReschedule, b.tr.T("reschedule_select_date", r.lang), scheduleDays)
}

func (b *Bot) handleRescheduleDate(ctx context.Context, r *request, date string) {
	b.handleRangeDate(ctx, r, calReschedule, date)
}

func (b *Bot) handleRescheduleCallback(ctx context.Context, r *request, data string) {
	var flow *rescheduleFlow
	b.states.update(r.chatID, func(st *chatState) { flow = st.resched })
	if flow == nil {
		b.sendError(r, "error_session_expired", nil)
		return
	}

	switch {
	case data == "rs:cal":
		b.openCalendar(r, calReschedule, b.tr.T("reschedule_select_date", r.lang), scheduleDays)
	case strings.HasPrefix(data, "rs:s:"):
		b.pickRangeStart(r, calReschedule, data)
	case strings.HasPrefix(data, "rs:e:"):
		if !b.pickRangeEnd(r, calReschedule, data) {
			return
		}
		var appt coachapi.Appointment
		var start, end string
		b.states.update(r.chatID, func(st *chatState) {
			if st.resched != nil {
				appt = st.resched.appt
				start, end = st.resched.rng.Bounds()
			}
		})
		updated, err := b.mutator(r).Update(ctx, appt, booking.Edit{StartTime: start, EndTime: end})
		if err != nil {
			b.showFailure(r, err)
			return
		}
		b.states.update(r.chatID, func(st *chatState) {
			st.resched = nil
			st.calendar = nil
		})
		b.afterChange(r, updated)
	}
}
