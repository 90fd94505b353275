package coachapi

import (
	"context"
	"fmt"
	"net/http"
)

// ListInvites - приглашения текущего клиента
func (c *Client) ListInvites(ctx context.Context, r PageRequest) (Page[Invite], error) {
	return getPage[Invite](ctx, c, "/invites", r, nil)
}

// GetInvite возвращает приглашение. ErrNotFound - приглашение уже недоступно.
func (c *Client) GetInvite(ctx context.Context, id int64) (*Invite, error) {
	var inv Invite
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/invites/%d", id), nil, nil, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// AcceptInvite принимает приглашение
func (c *Client) AcceptInvite(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/invites/%d/accept", id), nil, nil, nil)
}

// DeleteInvite отклоняет приглашение
func (c *Client) DeleteInvite(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/invites/%d", id), nil, nil, nil)
}

// MissingInviteUsers - подписчики, которых ещё не приглашали на запись
func (c *Client) MissingInviteUsers(ctx context.Context, appointmentID int64) ([]PersonRef, error) {
	var refs []PersonRef
	path := fmt.Sprintf("/appointments/%d/invites/missing", appointmentID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &refs); err != nil {
		return nil, err
	}
	return refs, nil
}

// PendingInviteUsers - приглашённые, но ещё не ответившие
func (c *Client) PendingInviteUsers(ctx context.Context, appointmentID int64) ([]PersonRef, error) {
	var refs []PersonRef
	path := fmt.Sprintf("/appointments/%d/invites/pending", appointmentID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &refs); err != nil {
		return nil, err
	}
	return refs, nil
}

// SendInvites приглашает клиентов на запись
func (c *Client) SendInvites(ctx context.Context, appointmentID int64, clientIDs []int64) error {
	body := map[string][]int64{"client_ids": clientIDs}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/appointments/%d/invites", appointmentID), nil, body, nil)
}
