package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"coachbot/clients/coachapi"
)

// Event представляет событие календаря
type Event struct {
	UID         string
	Summary     string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	Reminder    int // минут до события
	Cancelled   bool
}

// uidNamespace - пространство имён UID событий, чтобы повторный экспорт обновлял те же события
var uidNamespace = uuid.MustParse("6f1c2d3e-8a7b-4c5d-9e0f-1a2b3c4d5e6f")

// AppointmentUID возвращает стабильный UID события записи
func AppointmentUID(id int64) string {
	return uuid.NewSHA1(uidNamespace, []byte(fmt.Sprintf("appointment-%d", id))).String() + "@coachbot"
}

// FromAppointment строит событие из записи. summary - заголовок на языке пользователя.
func FromAppointment(a coachapi.Appointment, summary string, reminder int) (Event, error) {
	start, err := coachapi.ParseTimestamp(a.StartTime)
	if err != nil {
		return Event{}, err
	}
	end, err := coachapi.ParseTimestamp(a.EndTime)
	if err != nil {
		return Event{}, err
	}
	return Event{
		UID:         AppointmentUID(a.ID),
		Summary:     summary,
		Description: a.Description,
		StartTime:   start,
		EndTime:     end,
		Reminder:    reminder,
		Cancelled:   a.Status == coachapi.StatusCancelled,
	}, nil
}

// GenerateICS генерирует содержимое .ics файла для события
func GenerateICS(event Event) string {
	return GenerateMultipleICS("", []Event{event})
}

// GenerateMultipleICS генерирует .ics файл с несколькими событиями
func GenerateMultipleICS(calName string, events []Event) string {
	var sb strings.Builder
	stamp := formatICSTime(time.Now())

	sb.WriteString("BEGIN:VCALENDAR\r\n")
	sb.WriteString("VERSION:2.0\r\n")
	sb.WriteString("PRODID:-//CoachBot//Appointments//RU\r\n")
	sb.WriteString("CALSCALE:GREGORIAN\r\n")
	sb.WriteString("METHOD:PUBLISH\r\n")
	if calName != "" {
		sb.WriteString(fmt.Sprintf("X-WR-CALNAME:%s\r\n", escapeICS(calName)))
	}

	for _, event := range events {
		writeEvent(&sb, event, stamp)
	}

	sb.WriteString("END:VCALENDAR\r\n")
	return sb.String()
}

func writeEvent(sb *strings.Builder, event Event, stamp string) {
	uid := event.UID
	if uid == "" {
		uid = uuid.NewString() + "@coachbot"
	}

	sb.WriteString("BEGIN:VEVENT\r\n")
	sb.WriteString(fmt.Sprintf("UID:%s\r\n", uid))
	sb.WriteString(fmt.Sprintf("DTSTAMP:%s\r\n", stamp))
	sb.WriteString(fmt.Sprintf("DTSTART:%s\r\n", formatICSTime(event.StartTime)))
	sb.WriteString(fmt.Sprintf("DTEND:%s\r\n", formatICSTime(event.EndTime)))
	sb.WriteString(fmt.Sprintf("SUMMARY:%s\r\n", escapeICS(event.Summary)))

	if event.Description != "" {
		sb.WriteString(fmt.Sprintf("DESCRIPTION:%s\r\n", escapeICS(event.Description)))
	}
	if event.Cancelled {
		sb.WriteString("STATUS:CANCELLED\r\n")
	} else {
		sb.WriteString("STATUS:CONFIRMED\r\n")
	}

	// Напоминание
	if event.Reminder > 0 && !event.Cancelled {
		sb.WriteString("BEGIN:VALARM\r\n")
		sb.WriteString("ACTION:DISPLAY\r\n")
		sb.WriteString(fmt.Sprintf("TRIGGER:-PT%dM\r\n", event.Reminder))
		sb.WriteString(fmt.Sprintf("DESCRIPTION:%s\r\n", escapeICS(event.Summary)))
		sb.WriteString("END:VALARM\r\n")
	}

	sb.WriteString("END:VEVENT\r\n")
}

// formatICSTime форматирует время в формат iCalendar
func formatICSTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// escapeICS экранирует специальные символы для iCalendar
func escapeICS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

// ParseDate парсит дату в формате ДД.ММ.ГГГГ и возвращает YYYY-MM-DD
func ParseDate(dateStr string) (string, error) {
	t, err := time.ParseInLocation("02.01.2006", strings.TrimSpace(dateStr), time.Local)
	if err != nil {
		return "", fmt.Errorf("неверный формат даты, используйте ДД.ММ.ГГГГ")
	}
	return coachapi.DateString(t), nil
}

// FormatDate переводит YYYY-MM-DD или время из API в ДД.ММ.ГГГГ
func FormatDate(s string) string {
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		if t, err = coachapi.ParseTimestamp(s); err != nil {
			return s
		}
	}
	return t.Format("02.01.2006")
}
