package booking

import (
	"time"

	"coachbot/clients/coachapi"
)

// Selectable оставляет только доступные слоты в порядке сервера
func Selectable(slots []coachapi.AvailabilitySlot) []coachapi.AvailabilitySlot {
	out := make([]coachapi.AvailabilitySlot, 0, len(slots))
	for _, s := range slots {
		if s.Available {
			out = append(out, s)
		}
	}
	return out
}

// sameInstant сравнивает времена из API; неразборчивые строки сравниваются как есть
func sameInstant(a, b string) bool {
	ta, errA := coachapi.ParseTimestamp(a)
	tb, errB := coachapi.ParseTimestamp(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return ta.Equal(tb)
}

// EndCandidates возвращает слоты, концом которых можно закрыть интервал от start.
// Идёт от слота с началом start вперёд, пока слоты доступны и идут без разрывов.
func EndCandidates(slots []coachapi.AvailabilitySlot, start string) []coachapi.AvailabilitySlot {
	first := -1
	for i, s := range slots {
		if s.Available && sameInstant(s.StartTime, start) {
			first = i
			break
		}
	}
	if first < 0 {
		return nil
	}

	out := []coachapi.AvailabilitySlot{slots[first]}
	for j := first + 1; j < len(slots); j++ {
		if !slots[j].Available || !sameInstant(slots[j].StartTime, slots[j-1].EndTime) {
			break
		}
		out = append(out, slots[j])
	}
	return out
}

// findSlot ищет доступный слот с началом start
func findSlot(slots []coachapi.AvailabilitySlot, start string) (coachapi.AvailabilitySlot, bool) {
	for _, s := range slots {
		if s.Available && sameInstant(s.StartTime, start) {
			return s, true
		}
	}
	return coachapi.AvailabilitySlot{}, false
}

// Stamp приводит время слота к ISO-8601 с датой.
// Слоты с временем без даты дополняются датой date.
func Stamp(date, value string) string {
	t, err := coachapi.ParseTimestamp(value)
	if err != nil {
		return value
	}
	if t.Year() == 0 {
		return coachapi.JoinDateClock(date, t.Format("15:04"))
	}
	return t.Format("2006-01-02T15:04:05")
}

// TimeRange - двухшаговый выбор интервала: начало, затем конец
type TimeRange struct {
	Date  string
	slots []coachapi.AvailabilitySlot
	start *coachapi.AvailabilitySlot
	end   *coachapi.AvailabilitySlot
}

// clone копирует интервал вместе со слотами
func (r TimeRange) clone() TimeRange {
	c := r
	c.slots = append([]coachapi.AvailabilitySlot(nil), r.slots...)
	if r.start != nil {
		s := *r.start
		c.start = &s
	}
	if r.end != nil {
		e := *r.end
		c.end = &e
	}
	return c
}

// SetDate меняет дату и сбрасывает слоты и выбранный интервал
func (r *TimeRange) SetDate(date string) {
	r.Date = date
	r.slots = nil
	r.start = nil
	r.end = nil
}

// SetSlots запоминает ответ доступности и сбрасывает выбор
func (r *TimeRange) SetSlots(slots []coachapi.AvailabilitySlot) {
	r.slots = slots
	r.start = nil
	r.end = nil
}

// Starts - слоты, с которых можно начать интервал
func (r *TimeRange) Starts() []coachapi.AvailabilitySlot {
	return Selectable(r.slots)
}

// PickStart выбирает начало и сбрасывает конец
func (r *TimeRange) PickStart(start string) error {
	slot, ok := findSlot(r.slots, start)
	if !ok {
		return ValidationError{Field: "start_time", Key: "validation_slot_unavailable"}
	}
	r.start = &slot
	r.end = nil
	return nil
}

// Ends - кандидаты на конец для выбранного начала
func (r *TimeRange) Ends() []coachapi.AvailabilitySlot {
	if r.start == nil {
		return nil
	}
	return EndCandidates(r.slots, r.start.StartTime)
}

// PickEnd выбирает слот, конец которого закрывает интервал
func (r *TimeRange) PickEnd(end string) error {
	for _, s := range r.Ends() {
		if sameInstant(s.EndTime, end) {
			slot := s
			r.end = &slot
			return nil
		}
	}
	return ValidationError{Field: "end_time", Key: "validation_slot_unavailable"}
}

// Complete - выбраны и начало, и конец
func (r *TimeRange) Complete() bool {
	return r.start != nil && r.end != nil
}

// Bounds возвращает начало и конец интервала в ISO-8601
func (r *TimeRange) Bounds() (start, end string) {
	if r.start != nil {
		start = Stamp(r.Date, r.start.StartTime)
	}
	if r.end != nil {
		end = Stamp(r.Date, r.end.EndTime)
	}
	return start, end
}

// Duration - длительность выбранного интервала
func (r *TimeRange) Duration() time.Duration {
	start, end := r.Bounds()
	ts, err1 := coachapi.ParseTimestamp(start)
	te, err2 := coachapi.ParseTimestamp(end)
	if err1 != nil || err2 != nil {
		return 0
	}
	return te.Sub(ts)
}

func (r *TimeRange) validate() error {
	if r.Date == "" {
		return ValidationError{Field: "date", Key: "validation_date"}
	}
	if r.start == nil {
		return ValidationError{Field: "start_time", Key: "validation_start_time"}
	}
	if r.end == nil {
		return ValidationError{Field: "end_time", Key: "validation_end_time"}
	}
	return nil
}
