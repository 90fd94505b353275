package bot

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"coachbot/clients/coachapi"
	"coachbot/internal/i18n"
)

// Сценарии, в которых открывается календарь
const (
	calBooking     = "bk"
	calGroup       = "gv"
	calUnavailable = "un"
	calReschedule  = "rs"
	calTimetable   = "tt"
)

// CalendarWidget визуальный календарь для Telegram
type CalendarWidget struct {
	Flow    string
	Year    int
	Month   time.Month
	MinDate time.Time // нулевое значение - без ограничения
	MaxDate time.Time
}

// NewCalendarWidget создаёт календарь на текущий месяц с выбором дат от сегодня до +days дней.
// days <= 0 - даты не ограничены.
func NewCalendarWidget(flow string, now time.Time, days int) *CalendarWidget {
	c := &CalendarWidget{Flow: flow, Year: now.Year(), Month: now.Month()}
	if days > 0 {
		c.MinDate = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		c.MaxDate = c.MinDate.AddDate(0, 0, days)
	}
	return c
}

// Shift листает месяц на delta
func (c *CalendarWidget) Shift(delta int) {
	first := time.Date(c.Year, c.Month, 1, 0, 0, 0, 0, time.Local).AddDate(0, delta, 0)
	c.Year = first.Year()
	c.Month = first.Month()
}

// Selectable проверяет, что дату можно выбрать
func (c *CalendarWidget) Selectable(day time.Time) bool {
	if !c.MinDate.IsZero() && day.Before(c.MinDate) {
		return false
	}
	if !c.MaxDate.IsZero() && day.After(c.MaxDate) {
		return false
	}
	return true
}

// GenerateCalendar создаёт inline-клавиатуру с календарём
func (c *CalendarWidget) GenerateCalendar(tr *i18n.Translator, lang i18n.Language) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	prefix := "cal:" + c.Flow + ":"

	// Заголовок: < Январь 2026 >
	monthName := tr.T(fmt.Sprintf("month_%d", int(c.Month)), lang)
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("◀", prefix+"prev"),
		tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%s %d", monthName, c.Year), "ignore"),
		tgbotapi.NewInlineKeyboardButtonData("▶", prefix+"next"),
	})

	var weekdayRow []tgbotapi.InlineKeyboardButton
	for _, wd := range strings.Split(tr.T("weekdays_short", lang), ",") {
		weekdayRow = append(weekdayRow, tgbotapi.NewInlineKeyboardButtonData(strings.TrimSpace(wd), "ignore"))
	}
	rows = append(rows, weekdayRow)

	firstDay := time.Date(c.Year, c.Month, 1, 0, 0, 0, 0, time.Local)
	// Понедельник = 0, ... Воскресенье = 6
	startWeekday := (int(firstDay.Weekday()) + 6) % 7
	daysInMonth := firstDay.AddDate(0, 1, -1).Day()

	day := 1
	for week := 0; week < 6 && day <= daysInMonth; week++ {
		var dayRow []tgbotapi.InlineKeyboardButton
		for weekday := 0; weekday < 7; weekday++ {
			if (week == 0 && weekday < startWeekday) || day > daysInMonth {
				dayRow = append(dayRow, tgbotapi.NewInlineKeyboardButtonData(" ", "ignore"))
				continue
			}
			current := time.Date(c.Year, c.Month, day, 0, 0, 0, 0, time.Local)
			text := fmt.Sprintf("%d", day)
			data := prefix + "day:" + coachapi.DateString(current)
			if !c.Selectable(current) {
				text = "·"
				data = "ignore"
			}
			dayRow = append(dayRow, tgbotapi.NewInlineKeyboardButtonData(text, data))
			day++
		}
		rows = append(rows, dayRow)
	}

	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData(tr.T("btn_cancel", lang), "menu"),
	})
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// slotButtons раскладывает слоты по 3 в ряд. Данные кнопки: prefix:gen:index.
// ends == true - подпись по концу слота.
func slotButtons(slots []coachapi.AvailabilitySlot, prefix string, gen uint64, ends bool) [][]tgbotapi.InlineKeyboardButton {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i := 0; i < len(slots); i += 3 {
		var row []tgbotapi.InlineKeyboardButton
		for j := i; j < i+3 && j < len(slots); j++ {
			label := "🕐 " + coachapi.Clock(slots[j].StartTime)
			if ends {
				label = "→ " + coachapi.Clock(slots[j].EndTime)
			}
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("%s:%d:%d", prefix, gen, j)))
		}
		rows = append(rows, row)
	}
	return rows
}

// parseSlotData разбирает gen и index из данных кнопки слота
func parseSlotData(data, prefix string) (gen uint64, index int, ok bool) {
	parts := strings.Split(strings.TrimPrefix(data, prefix+":"), ":")
	if len(parts) != 2 {
		return 0, 0, false
	}
	if _, err := fmt.Sscan(parts[0], &gen); err != nil {
		return 0, 0, false
	}
	if _, err := fmt.Sscan(parts[1], &index); err != nil || index < 0 {
		return 0, 0, false
	}
	return gen, index, true
}
