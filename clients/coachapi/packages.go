package coachapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// CreatePackageRequest - выдача пакета клиенту
type CreatePackageRequest struct {
	ClientID           int64  `json:"client_id" validate:"required"`
	AppointmentsNumber int    `json:"appointments_number" validate:"required,min=1,max=100"`
	IssuedAt           string `json:"issued_at" validate:"required,date"`
	ExpiresAt          string `json:"expires_at" validate:"required,date"`
}

// ListPackages - пакеты; clientID > 0 сужает выдачу тренера до клиента
func (c *Client) ListPackages(ctx context.Context, r PageRequest, clientID int64) (Page[Package], error) {
	extra := url.Values{}
	if clientID > 0 {
		extra.Set("client_id", fmt.Sprint(clientID))
	}
	return getPage[Package](ctx, c, "/packages", r, extra)
}

// CreatePackage создаёт пакет
func (c *Client) CreatePackage(ctx context.Context, req CreatePackageRequest) (*Package, error) {
	var pkg Package
	if err := c.do(ctx, http.MethodPost, "/packages", nil, req, &pkg); err != nil {
		return nil, err
	}
	return &pkg, nil
}

// GetPackage возвращает пакет по ID
func (c *Client) GetPackage(ctx context.Context, id int64) (*Package, error) {
	var pkg Package
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/packages/%d", id), nil, nil, &pkg); err != nil {
		return nil, err
	}
	return &pkg, nil
}
