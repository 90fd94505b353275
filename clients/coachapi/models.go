package coachapi

import (
	"fmt"
	"strings"
	"time"
)

// Role роль пользователя платформы
type Role string

const (
	RoleClient       Role = "client"
	RoleProfessional Role = "professional"
)

// AppointmentType тип визита
type AppointmentType string

const (
	TypePersonal    AppointmentType = "personal"
	TypeSplit       AppointmentType = "split"
	TypeGroup       AppointmentType = "group"
	TypeUnavailable AppointmentType = "unavailable"
)

// AppointmentStatus статус записи
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// User - авторизованный пользователь сессии
type User struct {
	ID          int64   `json:"id"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	Role        Role    `json:"role"`
	ChatID      *int64  `json:"chat_id,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
	Locale      string  `json:"locale"`
	Token       string  `json:"token,omitempty"`
}

// FullName возвращает имя и фамилию
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// IsProfessional проверяет роль тренера
func (u User) IsProfessional() bool {
	return u.Role == RoleProfessional
}

// PersonRef - проекция клиента или тренера для списков и приглашений.
// ChatID и Locale могут отсутствовать.
type PersonRef struct {
	ID        int64   `json:"id"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	ChatID    *int64  `json:"chat_id,omitempty"`
	Locale    *string `json:"locale,omitempty"`
}

// FullName возвращает имя и фамилию
func (p PersonRef) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Notifiable сообщает, можно ли адресовать человеку уведомление.
// Нужны оба поля: chat_id и locale.
func (p PersonRef) Notifiable() bool {
	return p.ChatID != nil && p.Locale != nil && *p.Locale != ""
}

// AvailabilitySlot - интервал времени тренера на дату
type AvailabilitySlot struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Available bool   `json:"available"`
}

// Start разбирает начало слота
func (s AvailabilitySlot) Start() (time.Time, error) {
	return ParseTimestamp(s.StartTime)
}

// End разбирает конец слота
func (s AvailabilitySlot) End() (time.Time, error) {
	return ParseTimestamp(s.EndTime)
}

// Appointment - запись на тренировку
type Appointment struct {
	ID           int64             `json:"id"`
	StartTime    string            `json:"start_time"`
	EndTime      string            `json:"end_time"`
	Type         AppointmentType   `json:"type"`
	Description  string            `json:"description,omitempty"`
	Clients      []PersonRef       `json:"clients"`
	Status       AppointmentStatus `json:"status"`
	Professional *PersonRef        `json:"professional,omitempty"`
}

// Package - пакет оплаченных тренировок
type Package struct {
	ID                 int64         `json:"id"`
	IssuedAt           string        `json:"issued_at"`
	ExpiresAt          string        `json:"expires_at"`
	AppointmentsNumber int           `json:"appointments_number"`
	Appointments       []Appointment `json:"appointments"`
	Client             PersonRef     `json:"client"`
	Professional       PersonRef     `json:"professional"`
}

// Exhausted - квота пакета выбрана
func (p Package) Exhausted() bool {
	return len(p.Appointments) >= p.AppointmentsNumber
}

// Remaining возвращает остаток тренировок в пакете
func (p Package) Remaining() int {
	if left := p.AppointmentsNumber - len(p.Appointments); left > 0 {
		return left
	}
	return 0
}

// Invite - приглашение клиента на сплит или групповую тренировку
type Invite struct {
	ID               int64           `json:"id"`
	AppointmentID    int64           `json:"appointment_id"`
	StartTime        string          `json:"start_time"`
	EndTime          string          `json:"end_time"`
	Description      string          `json:"description"`
	Type             AppointmentType `json:"type"`
	ProfessionalName string          `json:"professional_name"`
}

// Pagination - курсор постраничной выдачи, page начинается с 1
type Pagination struct {
	Page        int  `json:"page"`
	PageSize    int  `json:"page_size"`
	HasNextPage bool `json:"has_next_page"`
}

// NextEnabled решает, показывать ли кнопку "дальше".
// Последняя полная страница тоже включает кнопку: так ведёт себя сервер-независимая эвристика.
func (p Pagination) NextEnabled(returned int) bool {
	return p.HasNextPage || p.Page > 1 || (p.PageSize > 0 && returned >= p.PageSize)
}

// PrevEnabled решает, показывать ли кнопку "назад"
func (p Pagination) PrevEnabled() bool {
	return p.Page > 1
}

// Page - страница коллекции
type Page[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"15:04:05",
	"15:04",
}

// ParseTimestamp разбирает ISO-8601 время из API.
// Время без зоны считается локальным временем тренера.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("неизвестный формат времени: %q", s)
}

// Clock возвращает ЧЧ:ММ для времени из API, либо исходную строку
func Clock(s string) string {
	t, err := ParseTimestamp(s)
	if err != nil {
		return s
	}
	return t.Format("15:04")
}

// DateString строит YYYY-MM-DD из локальных компонент даты,
// чтобы смещение UTC не сдвигало календарный день.
func DateString(t time.Time) string {
	return fmt.Sprintf("%04d-%02d-%02d", t.Year(), int(t.Month()), t.Day())
}

// JoinDateClock склеивает дату YYYY-MM-DD и время ЧЧ:ММ в ISO-8601 без зоны
func JoinDateClock(date, clock string) string {
	return date + "T" + clock + ":00"
}
