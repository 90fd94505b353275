package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"coachbot/clients/coachapi"
	"coachbot/internal/calendar"
	"coachbot/internal/excel"
)

const (
	exportPageSize  = 100
	maxExportPages  = 20
	reminderMinutes = 60
	timetableDays   = 7
)

type appointmentFetch func(ctx context.Context, req coachapi.PageRequest) (coachapi.Page[coachapi.Appointment], error)

// allAppointments загружает записи постранично, не больше maxExportPages страниц.
// truncated - после последней загруженной страницы записи ещё есть.
func allAppointments(ctx context.Context, fetch appointmentFetch) (out []coachapi.Appointment, truncated bool, err error) {
	for page := 1; page <= maxExportPages; page++ {
		p, err := fetch(ctx, coachapi.PageRequest{Page: page, PageSize: exportPageSize})
		if err != nil {
			return nil, false, err
		}
		out = append(out, p.Data...)
		if len(p.Data) == 0 || (!p.Pagination.HasNextPage && len(p.Data) < exportPageSize) {
			return out, false, nil
		}
	}
	return out, true, nil
}

// handleExportCallback - выгрузка одной записи и повтор выгрузок
func (b *Bot) handleExportCallback(ctx context.Context, r *request, data string) {
	switch data {
	case "ex:cal":
		b.exportCalendar(ctx, r)
		return
	case "ex:tt":
		if r.sess.IsProfessional() {
			b.exportTimetable(ctx, r)
		}
		return
	}
	if !strings.HasPrefix(data, "ex:ap:") {
		return
	}
	appt, err := b.viewing(ctx, r, parseID(strings.TrimPrefix(data, "ex:ap:")))
	if err != nil {
		b.showFailure(r, err)
		return
	}
	event, err := calendar.FromAppointment(appt, b.eventSummary(r, appt), reminderMinutes)
	if err != nil {
		b.sendError(r, "error_generic", err)
		return
	}
	b.sendDocument(r, fmt.Sprintf("appointment_%d.ics", appt.ID), []byte(calendar.GenerateICS(event)), "")
}

// exportCalendar отправляет предстоящие подтверждённые записи файлом .ics
func (b *Bot) exportCalendar(ctx context.Context, r *request) {
	api := r.sess.API()
	filter := coachapi.AppointmentFilter{Status: coachapi.StatusConfirmed, From: coachapi.DateString(time.Now())}
	list := api.ClientAppointments
	if r.sess.IsProfessional() {
		list = api.ProfessionalAppointments
	}

	appts, truncated, err := allAppointments(ctx, func(ctx context.Context, req coachapi.PageRequest) (coachapi.Page[coachapi.Appointment], error) {
		return list(ctx, req, filter)
	})
	if err != nil {
		b.showRetry(r, err, "ex:cal")
		return
	}
	if len(appts) == 0 {
		_ = b.sendMessage(r.chatID, b.tr.T("export_empty", r.lang))
		return
	}

	events := make([]calendar.Event, 0, len(appts))
	for _, a := range appts {
		event, err := calendar.FromAppointment(a, b.eventSummary(r, a), reminderMinutes)
		if err != nil {
			b.log.Warn("запись пропущена при выгрузке", zap.Int64("appointment_id", a.ID), zap.Error(err))
			continue
		}
		events = append(events, event)
	}

	ics := calendar.GenerateMultipleICS(b.tr.T("ics_calendar_name", r.lang), events)
	caption := b.tr.Tf("export_calendar_caption", r.lang, len(events))
	if truncated {
		caption += "\n" + b.tr.Tf("export_truncated", r.lang, len(appts))
	}
	b.sendDocument(r, "appointments.ics", []byte(ics), caption)
}

// eventSummary - заголовок события: тип и вторая сторона
func (b *Bot) eventSummary(r *request, a coachapi.Appointment) string {
	summary := b.typeName(a.Type, r.lang)
	switch {
	case !r.sess.IsProfessional() && a.Professional != nil:
		summary += " · " + a.Professional.FullName()
	case r.sess.IsProfessional() && len(a.Clients) > 0:
		summary += " · " + clientNames(a.Clients)
	}
	return summary
}

// exportTimetable отправляет расписание тренера на неделю файлом .xlsx
func (b *Bot) exportTimetable(ctx context.Context, r *request) {
	now := time.Now()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
	to := from.AddDate(0, 0, timetableDays-1)

	api := r.sess.API()
	filter := coachapi.AppointmentFilter{From: coachapi.DateString(from), To: coachapi.DateString(to)}
	appts, truncated, err := allAppointments(ctx, func(ctx context.Context, req coachapi.PageRequest) (coachapi.Page[coachapi.Appointment], error) {
		return api.ProfessionalAppointments(ctx, req, filter)
	})
	if err != nil {
		b.showRetry(r, err, "ex:tt")
		return
	}

	data, err := excel.WriteTimetable(from, to, appts, b.excelLabels(r))
	if err != nil {
		b.sendError(r, "error_generic", err)
		return
	}
	name := fmt.Sprintf("timetable_%s.xlsx", coachapi.DateString(from))
	caption := b.tr.Tf("export_timetable_caption", r.lang, from.Format("02.01"), to.Format("02.01.2006"))
	if truncated {
		caption += "\n" + b.tr.Tf("export_truncated", r.lang, len(appts))
	}
	b.sendDocument(r, name, data, caption)
}

func (b *Bot) excelLabels(r *request) excel.Labels {
	types := map[coachapi.AppointmentType]string{}
	for _, t := range []coachapi.AppointmentType{coachapi.TypePersonal, coachapi.TypeSplit, coachapi.TypeGroup, coachapi.TypeUnavailable} {
		types[t] = b.typeName(t, r.lang)
	}
	statuses := map[coachapi.AppointmentStatus]string{}
	for _, s := range []coachapi.AppointmentStatus{coachapi.StatusPending, coachapi.StatusConfirmed, coachapi.StatusCancelled} {
		statuses[s] = b.statusName(s, r.lang)
	}
	return excel.Labels{
		Title:       b.tr.T("xlsx_title", r.lang),
		Date:        b.tr.T("xlsx_date", r.lang),
		Time:        b.tr.T("xlsx_time", r.lang),
		Type:        b.tr.T("xlsx_type", r.lang),
		Status:      b.tr.T("xlsx_status", r.lang),
		Clients:     b.tr.T("xlsx_clients", r.lang),
		Description: b.tr.T("xlsx_description", r.lang),
		Total:       b.tr.T("xlsx_total", r.lang),
		Types:       types,
		Statuses:    statuses,
	}
}

func (b *Bot) sendDocument(r *request, name string, data []byte, caption string) {
	doc := tgbotapi.NewDocument(r.chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	doc.Caption = caption
	if _, err := b.api.Send(doc); err != nil {
		b.log.Warn("не удалось отправить файл", zap.Int64("chat_id", r.chatID), zap.String("name", name), zap.Error(err))
		b.sendError(r, "error_generic", nil)
		return
	}
	r.bridge.NotifySuccess()
}
