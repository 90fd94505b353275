package coachapi

import (
	"context"
	"fmt"
	"net/http"
)

// RegisterClientRequest - регистрация клиента
type RegisterClientRequest struct {
	FirstName   string `json:"first_name" validate:"required,min=2,max=50"`
	LastName    string `json:"last_name" validate:"required,min=2,max=50"`
	PhoneNumber string `json:"phone_number" validate:"required,phone"`
	ChatID      int64  `json:"chat_id" validate:"required"`
	Locale      string `json:"locale" validate:"required,oneof=en ru"`
}

// SignInRequest - вход тренера
type SignInRequest struct {
	ChatID   int64  `json:"chat_id" validate:"required"`
	Password string `json:"password" validate:"required,min=4"`
	Locale   string `json:"locale" validate:"omitempty,oneof=en ru"`
}

// GetUser находит пользователя по идентификатору чата.
// 404 возвращается как ErrNotFound: пользователь ещё не зарегистрирован.
func (c *Client) GetUser(ctx context.Context, chatID int64) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/users/%d", chatID), nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// RegisterClient регистрирует клиента и возвращает пользователя с токеном
func (c *Client) RegisterClient(ctx context.Context, req RegisterClientRequest) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodPost, "/clients/register", nil, req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SignInProfessional выполняет вход тренера
func (c *Client) SignInProfessional(ctx context.Context, req SignInRequest) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodPost, "/professionals/sign_in", nil, req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateLocale меняет язык пользователя
func (c *Client) UpdateLocale(ctx context.Context, locale string) error {
	body := map[string]string{"locale": locale}
	return c.do(ctx, http.MethodPatch, "/users/locale", nil, body, nil)
}
