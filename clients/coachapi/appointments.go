package coachapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// BookRequest - запись клиента к тренеру
type BookRequest struct {
	ProfessionalID int64           `json:"professional_id" validate:"required"`
	StartTime      string          `json:"start_time" validate:"required"`
	EndTime        string          `json:"end_time" validate:"required"`
	Type           AppointmentType `json:"type" validate:"required,oneof=personal split group"`
	Description    string          `json:"description,omitempty" validate:"max=500"`
}

// CancelRequest - отмена с причиной
type CancelRequest struct {
	CancellationReason string `json:"cancellation_reason"`
}

// UpdateRequest - правка подтверждённой записи. Пустые поля не меняются.
type UpdateRequest struct {
	Description *string         `json:"description,omitempty"`
	Type        AppointmentType `json:"type,omitempty"`
	ClientIDs   []int64         `json:"client_ids,omitempty"`
	StartTime   string          `json:"start_time,omitempty"`
	EndTime     string          `json:"end_time,omitempty"`
}

// GroupVisitRequest - создание сплит/групповой тренировки тренером
type GroupVisitRequest struct {
	StartTime   string          `json:"start_time" validate:"required"`
	EndTime     string          `json:"end_time" validate:"required"`
	Type        AppointmentType `json:"type" validate:"required,oneof=split group"`
	Description string          `json:"description,omitempty" validate:"max=500"`
	ClientIDs   []int64         `json:"client_ids" validate:"required,min=2"`
}

// UnavailableRequest - блок недоступного времени
type UnavailableRequest struct {
	StartTime   string `json:"start_time" validate:"required"`
	EndTime     string `json:"end_time" validate:"required"`
	Description string `json:"description,omitempty" validate:"max=500"`
}

// AppointmentFilter - фильтры списков записей
type AppointmentFilter struct {
	Status   AppointmentStatus
	ClientID int64
	From     string
	To       string
}

func (f AppointmentFilter) values() url.Values {
	q := url.Values{}
	q.Set("status", string(f.Status))
	if f.ClientID > 0 {
		q.Set("client_id", fmt.Sprint(f.ClientID))
	}
	q.Set("from", f.From)
	q.Set("to", f.To)
	return q
}

// BookAppointment создаёт запись клиента
func (c *Client) BookAppointment(ctx context.Context, req BookRequest) (*Appointment, error) {
	var appt Appointment
	if err := c.do(ctx, http.MethodPost, "/clients/book_appointment", nil, req, &appt); err != nil {
		return nil, err
	}
	return &appt, nil
}

// ClientAppointments - записи клиента
func (c *Client) ClientAppointments(ctx context.Context, r PageRequest, f AppointmentFilter) (Page[Appointment], error) {
	return getPage[Appointment](ctx, c, "/clients/appointments", r, f.values())
}

// ProfessionalAppointments - записи тренера
func (c *Client) ProfessionalAppointments(ctx context.Context, r PageRequest, f AppointmentFilter) (Page[Appointment], error) {
	return getPage[Appointment](ctx, c, "/professionals/appointments", r, f.values())
}

// GetAppointment возвращает запись по ID
func (c *Client) GetAppointment(ctx context.Context, id int64) (*Appointment, error) {
	var appt Appointment
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/appointments/%d", id), nil, nil, &appt); err != nil {
		return nil, err
	}
	return &appt, nil
}

// ConfirmAppointment подтверждает ожидающую запись. Конфликт времени приходит как 409.
func (c *Client) ConfirmAppointment(ctx context.Context, id int64) (*Appointment, error) {
	var appt Appointment
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/appointments/%d/confirm", id), nil, nil, &appt); err != nil {
		return nil, err
	}
	return &appt, nil
}

// CancelAppointment отменяет запись
func (c *Client) CancelAppointment(ctx context.Context, id int64, reason string) (*Appointment, error) {
	var appt Appointment
	path := fmt.Sprintf("/appointments/%d/cancel", id)
	if err := c.do(ctx, http.MethodPatch, path, nil, CancelRequest{CancellationReason: reason}, &appt); err != nil {
		return nil, err
	}
	return &appt, nil
}

// UpdateAppointment меняет описание, тип, участников или время записи
func (c *Client) UpdateAppointment(ctx context.Context, id int64, req UpdateRequest) (*Appointment, error) {
	var appt Appointment
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/appointments/%d", id), nil, req, &appt); err != nil {
		return nil, err
	}
	return &appt, nil
}

// CreateGroupVisit создаёт сплит или групповую тренировку
func (c *Client) CreateGroupVisit(ctx context.Context, req GroupVisitRequest) (*Appointment, error) {
	var appt Appointment
	if err := c.do(ctx, http.MethodPost, "/professionals/group_visits", nil, req, &appt); err != nil {
		return nil, err
	}
	return &appt, nil
}

// CreateUnavailable создаёт блок недоступного времени
func (c *Client) CreateUnavailable(ctx context.Context, req UnavailableRequest) (*Appointment, error) {
	var appt Appointment
	if err := c.do(ctx, http.MethodPost, "/professionals/unavailable", nil, req, &appt); err != nil {
		return nil, err
	}
	return &appt, nil
}
