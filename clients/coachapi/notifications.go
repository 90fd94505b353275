package coachapi

import (
	"context"
	"net/http"
)

// Notification - адресат и содержание уведомления.
// Строится только для PersonRef.Notifiable().
type Notification struct {
	ChatID        int64  `json:"chat_id"`
	Locale        string `json:"locale"`
	AppointmentID int64  `json:"appointment_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	FromName      string `json:"from_name"`
	Reason        string `json:"reason,omitempty"`
}

// NewNotification строит уведомление для адресата.
// ok == false, если у адресата нет chat_id или locale.
func NewNotification(to PersonRef, appt Appointment, fromName string) (Notification, bool) {
	if !to.Notifiable() {
		return Notification{}, false
	}
	return Notification{
		ChatID:        *to.ChatID,
		Locale:        *to.Locale,
		AppointmentID: appt.ID,
		StartTime:     appt.StartTime,
		EndTime:       appt.EndTime,
		FromName:      fromName,
	}, true
}

// NotifyAppointmentRequest сообщает тренеру о новой заявке
func (c *Client) NotifyAppointmentRequest(ctx context.Context, n Notification) error {
	return c.do(ctx, http.MethodPost, "/notifications/appointment_request", nil, n, nil)
}

// NotifyCancellation сообщает второй стороне об отмене
func (c *Client) NotifyCancellation(ctx context.Context, n Notification) error {
	return c.do(ctx, http.MethodPost, "/notifications/cancellation", nil, n, nil)
}
