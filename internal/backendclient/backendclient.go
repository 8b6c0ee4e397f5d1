package backendclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/iurnickita/sellerdesk/internal/backendclient/config"
	"github.com/iurnickita/sellerdesk/internal/model"
)

var (
	// ErrUnexpectedShape means the upstream broke the response contract.
	ErrUnexpectedShape = errors.New("unexpected response shape")
	ErrUnavailable     = errors.New("backend temporarily unavailable")
)

// TransportError is a non-2xx answer of the upstream API.
type TransportError struct {
	StatusCode int
	Message    string
}

func (e *TransportError) Error() string {
	return e.Message
}

// JSON запрос смены статуса
type StatusChangeRequest struct {
	OrderIDs           []string `json:"-"`
	NewStatus          string   `json:"newStatus"`
	NewSubStatus       string   `json:"newSubStatus,omitempty"`
	MarketplaceTokenID int64    `json:"marketplaceTokenId,omitempty"`
}

func (r StatusChangeRequest) MarshalJSON() ([]byte, error) {
	type alias StatusChangeRequest
	return json.Marshal(struct {
		OrderIDs []any `json:"orderIds"`
		alias
	}{OrderIDs: orderIDValues(r.OrderIDs), alias: alias(r)})
}

type Client interface {
	LegalEntities(ctx context.Context) ([]model.LegalEntity, error)
	Orders(ctx context.Context, mp model.Marketplace, legalEntityID int64, includeUnconfirmed bool) ([]model.Order, error)
	ChangeStatus(ctx context.Context, mp model.Marketplace, req StatusChangeRequest) error
	AddToSupply(ctx context.Context, supplyID string, orderIDs []string) error
	// Fetch downloads a binary document; relative URLs go to the document host.
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type client struct {
	cfg     config.Config
	api     *resty.Client
	docs    *resty.Client
	breaker *gobreaker.CircuitBreaker[*resty.Response]
	zaplog  *zap.Logger
}

func NewClient(cfg config.Config, zaplog *zap.Logger) Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.DocumentBaseURL == "" {
		cfg.DocumentBaseURL = cfg.BaseURL
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	if zaplog == nil {
		zaplog = zap.NewNop()
	}

	api := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		api.SetAuthToken(cfg.Token)
	}

	breaker := gobreaker.NewCircuitBreaker[*resty.Response](gobreaker.Settings{
		Name:    "backend-api",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			zaplog.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &client{
		cfg:     cfg,
		api:     api,
		docs:    resty.New().SetTimeout(cfg.Timeout),
		breaker: breaker,
		zaplog:  zaplog,
	}
}

// send executes an API request through the breaker; only transport failures
// and 5xx answers count against it.
func (c *client) send(req *resty.Request, method, path string) (*resty.Response, error) {
	resp, err := c.breaker.Execute(func() (*resty.Response, error) {
		resp, err := req.Execute(method, path)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return resp, transportError(resp)
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrUnavailable
		}
		c.zaplog.Warn("backend request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, transportError(resp)
	}
	return resp, nil
}

func (c *client) LegalEntities(ctx context.Context) ([]model.LegalEntity, error) {
	resp, err := c.send(c.api.R().SetContext(ctx), http.MethodGet, "/api/legal-entities")
	if err != nil {
		return nil, err
	}
	var entities []model.LegalEntity
	if err := json.Unmarshal(resp.Body(), &entities); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}
	return entities, nil
}

func (c *client) Orders(ctx context.Context, mp model.Marketplace, legalEntityID int64, includeUnconfirmed bool) ([]model.Order, error) {
	req := c.api.R().
		SetContext(ctx).
		SetQueryParam("legalEntityId", fmt.Sprint(legalEntityID))
	// неподтверждённые сборочные задания есть только у Wildberries
	if mp == model.MarketplaceWildberries && includeUnconfirmed {
		req.SetQueryParam("includeUnconfirmed", "true")
	}
	resp, err := c.send(req, http.MethodGet, "/api/"+string(mp)+"/orders")
	if err != nil {
		return nil, err
	}

	records, err := decodeOrders(resp.Body())
	if err != nil {
		return nil, err
	}
	orders := make([]model.Order, 0, len(records))
	for _, raw := range records {
		orders = append(orders, model.NormalizeOrder(mp, raw))
	}
	return orders, nil
}

// decodeOrders accepts a bare array or an object wrapping it under "orders".
func decodeOrders(body []byte) ([]map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}

	var list []any
	switch v := payload.(type) {
	case []any:
		list = v
	case map[string]any:
		inner, ok := v["orders"].([]any)
		if !ok {
			return nil, fmt.Errorf("%w: no orders array", ErrUnexpectedShape)
		}
		list = inner
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedShape, payload)
	}

	records := make([]map[string]any, 0, len(list))
	for i, item := range list {
		raw, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: order #%d is %T", ErrUnexpectedShape, i, item)
		}
		records = append(records, raw)
	}
	return records, nil
}

func (c *client) ChangeStatus(ctx context.Context, mp model.Marketplace, req StatusChangeRequest) error {
	r := c.api.R().SetContext(ctx).SetBody(req)
	_, err := c.send(r, http.MethodPost, "/api/"+string(mp)+"/orders/status")
	return err
}

func (c *client) AddToSupply(ctx context.Context, supplyID string, orderIDs []string) error {
	r := c.api.R().
		SetContext(ctx).
		SetPathParam("supplyId", supplyID).
		SetBody(map[string]any{"orderIds": orderIDValues(orderIDs)})
	_, err := c.send(r, http.MethodPost, "/api/wildberries/supplies/{supplyId}/orders")
	return err
}

func (c *client) Fetch(ctx context.Context, url string) ([]byte, error) {
	req := c.docs.R().SetContext(ctx)
	target := c.resolve(url)
	// токен уходит только на свой хост
	if c.cfg.Token != "" && c.cfg.DocumentBaseURL != "" &&
		strings.HasPrefix(target, strings.TrimRight(c.cfg.DocumentBaseURL, "/")+"/") {
		req.SetAuthToken(c.cfg.Token)
	}
	resp, err := req.Get(target)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("document request status: %d", resp.StatusCode())
	}
	return resp.Body(), nil
}

func (c *client) resolve(url string) string {
	switch {
	case strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "https://"):
		return url
	case strings.HasPrefix(url, "//"):
		return "https:" + url
	default:
		return strings.TrimRight(c.cfg.DocumentBaseURL, "/") + "/" + strings.TrimLeft(url, "/")
	}
}

var numericID = regexp.MustCompile(`^[0-9]{1,18}$`)

// orderIDValues sends numeric ids as JSON numbers, the rest as strings.
func orderIDValues(ids []string) []any {
	res := make([]any, 0, len(ids))
	for _, id := range ids {
		if numericID.MatchString(id) {
			res = append(res, json.Number(id))
		} else {
			res = append(res, id)
		}
	}
	return res
}

// transportError prefers a structured message, then the raw text, then a
// generic fallback.
func transportError(resp *resty.Response) *TransportError {
	return &TransportError{
		StatusCode: resp.StatusCode(),
		Message:    errorMessage(resp.Body(), resp.StatusCode()),
	}
}

const maxMessageRunes = 500

func errorMessage(body []byte, status int) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, key := range []string{"message", "error", "detail"} {
			if s, ok := payload[key].(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && !strings.HasPrefix(text, "{") {
		return truncateRunes(text, maxMessageRunes)
	}
	return fmt.Sprintf("request failed with status %d", status)
}

// truncateRunes cuts s to at most n characters without splitting a rune.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
