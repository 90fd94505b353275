package coachapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// ListProfessionals возвращает страницу тренеров
func (c *Client) ListProfessionals(ctx context.Context, r PageRequest) (Page[PersonRef], error) {
	return getPage[PersonRef](ctx, c, "/professionals", r, nil)
}

// Availability возвращает слоты тренера на дату YYYY-MM-DD в порядке сервера
func (c *Client) Availability(ctx context.Context, professionalID int64, date string) ([]AvailabilitySlot, error) {
	q := url.Values{}
	q.Set("date", date)
	var slots []AvailabilitySlot
	path := fmt.Sprintf("/professionals/%d/availability", professionalID)
	if err := c.do(ctx, http.MethodGet, path, q, nil, &slots); err != nil {
		return nil, err
	}
	return slots, nil
}

// Subscribe подписывает клиента на тренера
func (c *Client) Subscribe(ctx context.Context, professionalID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/professionals/%d/subscribe", professionalID), nil, nil, nil)
}

// Unsubscribe отменяет подписку
func (c *Client) Unsubscribe(ctx context.Context, professionalID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/professionals/%d/subscribe", professionalID), nil, nil, nil)
}

// ProfessionalClients - подписчики текущего тренера
func (c *Client) ProfessionalClients(ctx context.Context, r PageRequest) (Page[PersonRef], error) {
	return getPage[PersonRef](ctx, c, "/professionals/subscriptions", r, nil)
}

// ClientSubscriptions - тренеры, на которых подписан клиент
func (c *Client) ClientSubscriptions(ctx context.Context, clientID int64) ([]PersonRef, error) {
	var refs []PersonRef
	path := fmt.Sprintf("/professionals/%d/subscriptions", clientID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &refs); err != nil {
		return nil, err
	}
	return refs, nil
}
