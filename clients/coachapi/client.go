package coachapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	DefaultTimeout  = 15 * time.Second
	DefaultPageSize = 15
)

// Ошибки, которые вызывающий код различает через errors.Is
var (
	ErrNotFound     = errors.New("coachapi: not found")
	ErrConflict     = errors.New("coachapi: conflict")
	ErrUnauthorized = errors.New("coachapi: unauthorized")
)

// APIError - ответ API с кодом вне 2xx
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("coachapi: статус %d", e.StatusCode)
	}
	return fmt.Sprintf("coachapi: статус %d: %s", e.StatusCode, e.Message)
}

// Is сопоставляет код ответа с сигнальными ошибками
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}

// ServerMessage возвращает текст ошибки от сервера, если он есть
func ServerMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

// Client - клиент REST API платформы.
// Токен привязан к экземпляру: для запросов пользователя используйте WithToken.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
	log        *zap.Logger
}

// Option настраивает клиент
type Option func(*Client)

// WithHTTPClient подменяет http.Client (тесты, прокси)
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger задаёт логгер запросов
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient создаёт клиент API. Транспорт обёрнут otelhttp.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithToken возвращает копию клиента с bearer-токеном пользователя
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// Token возвращает текущий токен
func (c *Client) Token() string {
	return c.token
}

// do выполняет запрос и декодирует JSON-ответ в out (если out != nil)
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("ошибка сериализации: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ошибка запроса %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	c.log.Debug("api request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", requestID),
		zap.Duration("duration", time.Since(started)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("ошибка парсинга ответа: %w", err)
	}
	return nil
}

// errorMessage достаёт message или error из тела ошибки
func errorMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}

// PageRequest - параметры постраничного запроса
type PageRequest struct {
	Page     int
	PageSize int
}

func (r PageRequest) normalized() PageRequest {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PageSize < 1 {
		r.PageSize = DefaultPageSize
	}
	return r
}

func (r PageRequest) values() url.Values {
	q := url.Values{}
	q.Set("page", fmt.Sprint(r.Page))
	q.Set("page_size", fmt.Sprint(r.PageSize))
	return q
}

// fillPage подставляет курсор запроса, если сервер его не вернул
func fillPage[T any](p *Page[T], r PageRequest) {
	if p.Pagination.Page == 0 {
		p.Pagination.Page = r.Page
	}
	if p.Pagination.PageSize == 0 {
		p.Pagination.PageSize = r.PageSize
	}
}

// getPage выполняет GET постраничной коллекции
func getPage[T any](ctx context.Context, c *Client, path string, r PageRequest, extra url.Values) (Page[T], error) {
	r = r.normalized()
	q := r.values()
	for k, vs := range extra {
		for _, v := range vs {
			if v != "" {
				q.Add(k, v)
			}
		}
	}
	var page Page[T]
	if err := c.do(ctx, http.MethodGet, path, q, nil, &page); err != nil {
		return Page[T]{}, err
	}
	fillPage(&page, r)
	return page, nil
}
