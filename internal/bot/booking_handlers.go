package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"coachbot/clients/coachapi"
	"coachbot/internal/booking"
	"coachbot/internal/calendar"
	"coachbot/internal/query"
)

const (
	listBookingPros = "bk:pros"
	bookingDays     = 60
)

// bookingFlow - запись клиента к тренеру
type bookingFlow struct {
	draft *booking.Draft
	slots []coachapi.AvailabilitySlot // выбираемые слоты на дату черновика
}

// startBooking начинает запись: выбор тренера
func (b *Bot) startBooking(ctx context.Context, r *request) {
	draft := booking.NewDraft(booking.AutoApply)
	draft.SetParticipants([]coachapi.PersonRef{r.sess.Ref()})

	b.states.update(r.chatID, func(st *chatState) {
		st.resetFlows()
		st.booking = &bookingFlow{draft: draft}
	})

	api := r.sess.API()
	lst := openList(b.states, r.chatID, listBookingPros, query.NewList[coachapi.PersonRef, struct{}](
		func(ctx context.Context, req coachapi.PageRequest, _ struct{}) (coachapi.Page[coachapi.PersonRef], error) {
			return api.ListProfessionals(ctx, req)
		}, b.pageSize, struct{}{}))
	lst.Refetch(ctx)
	b.renderBookingPros(r, lst.Snapshot())
}

func (b *Bot) renderBookingPros(r *request, ls query.ListState[coachapi.PersonRef]) {
	if ls.Err != nil {
		b.showRetry(r, ls.Err, fmt.Sprintf("%s:pg:%d", "bk", ls.Page))
		return
	}
	if len(ls.Data) == 0 {
		b.render(r, b.tr.T("booking_no_professionals", r.lang), b.withNavigation(r))
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, p := range ls.Data {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👤 "+p.FullName(), fmt.Sprintf("bk:pro:%d", p.ID)),
		))
	}
	if pager := b.pagerRow(r, "bk", ls.Page, ls.PrevEnabled, ls.NextEnabled); len(pager) > 0 {
		rows = append(rows, pager)
	}
	b.render(r, b.tr.T("booking_select_professional", r.lang), b.withNavigation(r, rows...))
}

// handleBookingCallback обрабатывает кнопки записи
func (b *Bot) handleBookingCallback(ctx context.Context, r *request, data string) {
	var flow *bookingFlow
	b.states.update(r.chatID, func(st *chatState) { flow = st.booking })
	if flow == nil {
		b.sendError(r, "error_session_expired", nil)
		return
	}

	switch {
	case strings.HasPrefix(data, "bk:pg:"):
		lst, ok := existingList[coachapi.PersonRef, struct{}](b.states, r.chatID, listBookingPros)
		if !ok {
			b.startBooking(ctx, r)
			return
		}
		ls, applied := lst.SetPage(ctx, safeInt(strings.TrimPrefix(data, "bk:pg:")))
		if applied {
			b.renderBookingPros(r, ls)
		}

	case strings.HasPrefix(data, "bk:pro:"):
		b.selectBookingProfessional(r, parseID(strings.TrimPrefix(data, "bk:pro:")))

	case data == "bk:cal":
		b.openBookingCalendar(r)

	case strings.HasPrefix(data, "bk:slot:"):
		b.selectBookingSlot(r, data)

	case data == "bk:skip":
		b.states.setStep(r.chatID, "")
		b.showBookingConfirm(r)

	case data == "bk:ok":
		b.submitBooking(ctx, r)
	}
}

func (b *Bot) selectBookingProfessional(r *request, id int64) {
	lst, ok := existingList[coachapi.PersonRef, struct{}](b.states, r.chatID, listBookingPros)
	if !ok {
		b.sendError(r, "error_session_expired", nil)
		return
	}
	var pro *coachapi.PersonRef
	for _, p := range lst.Snapshot().Data {
		if p.ID == id {
			p := p
			pro = &p
			break
		}
	}
	if pro == nil {
		b.sendError(r, "error_not_found", nil)
		return
	}

	b.states.update(r.chatID, func(st *chatState) {
		if st.booking != nil {
			st.booking.draft.SetProfessional(*pro)
			st.booking.slots = nil
			st.avail.Invalidate()
		}
	})
	b.openBookingCalendar(r)
}

func (b *Bot) openBookingCalendar(r *request) {
	var name string
	b.states.update(r.chatID, func(st *chatState) {
		if st.booking != nil && st.booking.draft.Professional() != nil {
			name = st.booking.draft.Professional().FullName()
		}
	})
	b.openCalendar(r, calBooking, b.tr.Tf("booking_select_date", r.lang, name), bookingDays)
}

// loadSlots загружает доступность тренера на дату.
// applied == false - пока шёл запрос, был запрошен более новый; отрисовывать нечего.
func (b *Bot) loadSlots(ctx context.Context, r *request, api *coachapi.Client, professionalID int64, date string) (slots []coachapi.AvailabilitySlot, gen uint64, applied bool, err error) {
	q := b.states.availability(r.chatID)
	st, applied := q.Run(ctx, func(ctx context.Context) ([]coachapi.AvailabilitySlot, error) {
		return api.Availability(ctx, professionalID, date)
	})
	if !applied {
		b.log.Debug("ответ доступности устарел", zap.Int64("chat_id", r.chatID), zap.String("date", date))
	}
	return st.Data, st.Generation, applied, st.Err
}

// slotCurrent проверяет, что клавиатура слотов отрисована последним запросом доступности
func (b *Bot) slotCurrent(r *request, gen uint64) bool {
	if b.states.availability(r.chatID).Current(gen) {
		return true
	}
	r.bridge.answer(b.tr.T("slots_outdated", r.lang))
	return false
}

func (b *Bot) handleBookingDate(ctx context.Context, r *request, date string) {
	var proID int64
	b.states.update(r.chatID, func(st *chatState) {
		if st.booking == nil {
			return
		}
		st.booking.draft.SetDate(date)
		st.booking.slots = nil
		if p := st.booking.draft.Professional(); p != nil {
			proID = p.ID
		}
	})
	if proID == 0 {
		b.sendError(r, "error_session_expired", nil)
		return
	}

	all, gen, applied, err := b.loadSlots(ctx, r, r.sess.API(), proID, date)
	if !applied {
		return
	}
	if err != nil {
		b.showRetry(r, err, "cal:"+calBooking+":day:"+date)
		return
	}

	slots := booking.Selectable(all)
	b.states.update(r.chatID, func(st *chatState) {
		if st.booking != nil {
			st.booking.slots = slots
		}
	})

	changeDate := tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(b.tr.T("btn_change_date", r.lang), "bk:cal"),
	)
	if len(slots) == 0 {
		b.render(r, b.tr.Tf("booking_no_slots", r.lang, calendar.FormatDate(date)), b.withNavigation(r, changeDate))
		return
	}
	rows := slotButtons(slots, "bk:slot", gen, false)
	rows = append(rows, changeDate)
	b.render(r, b.tr.Tf("booking_select_time", r.lang, calendar.FormatDate(date)), b.withNavigation(r, rows...))
}

func (b *Bot) selectBookingSlot(r *request, data string) {
	gen, idx, ok := parseSlotData(data, "bk:slot")
	if !ok || !b.slotCurrent(r, gen) {
		return
	}

	var err error
	b.states.update(r.chatID, func(st *chatState) {
		if st.booking == nil || idx >= len(st.booking.slots) {
			err = booking.ValidationError{Field: "slot", Key: "validation_slot"}
			return
		}
		if err = st.booking.draft.SetSlot(st.booking.slots[idx]); err == nil {
			st.step = stepBookingNote
		}
	})
	if err != nil {
		b.showFailure(r, err)
		return
	}

	keyboard := b.withNavigation(r, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(b.tr.T("btn_skip", r.lang), "bk:skip"),
	))
	b.render(r, b.tr.T("booking_enter_note", r.lang), keyboard)
}

func (b *Bot) handleBookingNote(ctx context.Context, r *request, text string) {
	b.states.update(r.chatID, func(st *chatState) {
		if st.booking != nil {
			st.booking.draft.SetDescription(text)
		}
		st.step = ""
	})
	b.showBookingConfirm(r)
}

// showBookingConfirm показывает сводку черновика и кнопку подтверждения
func (b *Bot) showBookingConfirm(r *request) {
	var text string
	var ready bool
	b.states.update(r.chatID, func(st *chatState) {
		if st.booking == nil {
			return
		}
		d := st.booking.draft
		ready = d.CanConfirm()
		text = b.formatDraft(d, r)
	})
	if text == "" {
		b.sendError(r, "error_session_expired", nil)
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	if ready {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.tr.T("btn_confirm", r.lang), "bk:ok"),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(b.tr.T("btn_change_date", r.lang), "bk:cal"),
	))
	b.render(r, text, b.withNavigation(r, rows...))
}

func (b *Bot) formatDraft(d *booking.Draft, r *request) string {
	var sb strings.Builder
	sb.WriteString(b.tr.T("booking_confirm_title", r.lang))
	sb.WriteString("\n\n")
	if p := d.Professional(); p != nil {
		sb.WriteString(b.tr.Tf("appointment_professional", r.lang, p.FullName()))
		sb.WriteString("\n")
	}
	if s := d.Slot(); s != nil {
		start := booking.Stamp(d.Date(), s.StartTime)
		end := booking.Stamp(d.Date(), s.EndTime)
		sb.WriteString(b.tr.Tf("appointment_time", r.lang, timeRange(start, end)))
		sb.WriteString("\n")
	}
	if d.Type() != "" {
		sb.WriteString(b.tr.Tf("appointment_type", r.lang, b.typeName(d.Type(), r.lang)))
		sb.WriteString("\n")
	}
	if d.Description() != "" {
		sb.WriteString(b.tr.Tf("appointment_description", r.lang, d.Description()))
	}
	return strings.TrimSpace(sb.String())
}

func (b *Bot) submitBooking(ctx context.Context, r *request) {
	var draft *booking.Draft
	b.states.update(r.chatID, func(st *chatState) {
		if st.booking != nil {
			draft = st.booking.draft.Clone()
		}
	})
	if draft == nil {
		b.sendError(r, "error_session_expired", nil)
		return
	}

	_, err := b.mutator(r).Create(ctx, draft, func(appt *coachapi.Appointment) {
		b.states.clear(r.chatID)
		b.render(r, b.tr.Tf("booking_created", r.lang, timeRange(appt.StartTime, appt.EndTime)), b.withNavigation(r))
		b.states.invalidate(r.chatID, listClientAppointments)
	})
	if err != nil {
		b.showFailure(r, err)
	}
}
