// Package yookassa is a minimal client for the YooKassa payments API and
// its partner OAuth endpoints.
package yookassa

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

	"github.com/shopspring/decimal"

	"github.com/Lapkipomoshi/help-paw-backend/internal/observability"
)

// ErrUnavailable covers network failures and provider 5xx answers.
var ErrUnavailable = errors.New("payment provider unavailable")

// APIError is a 4xx answer from the provider.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("yookassa: status %d: %s", e.Status, e.Body)
}

// Payment statuses.
const (
	StatusPending           = "pending"
	StatusWaitingForCapture = "waiting_for_capture"
	StatusSucceeded         = "succeeded"
	StatusCanceled          = "canceled"
)

// Amount is a money value in the provider's string format.
type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// RUB formats d with two decimals in roubles.
func RUB(d decimal.Decimal) Amount {
	return Amount{Value: d.StringFixed(2), Currency: "RUB"}
}

// Decimal parses the amount value.
func (a Amount) Decimal() (decimal.Decimal, error) {
	return decimal.NewFromString(a.Value)
}

type Confirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

// PaymentRequest is the body of POST /payments.
type PaymentRequest struct {
	Amount       Amount            `json:"amount"`
	Confirmation Confirmation      `json:"confirmation"`
	Capture      bool              `json:"capture"`
	Description  string            `json:"description,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Test         bool              `json:"test,omitempty"`
}

// Payment is the provider's payment object.
type Payment struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Paid         bool              `json:"paid"`
	Amount       Amount            `json:"amount"`
	Confirmation *Confirmation     `json:"confirmation,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	Description  string            `json:"description,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Test         bool              `json:"test"`
}

// ConfirmationURL returns the redirect URL or "".
func (p *Payment) ConfirmationURL() string {
	if p == nil || p.Confirmation == nil {
		return ""
	}
	return p.Confirmation.ConfirmationURL
}

// Token is an OAuth access token issued to the platform for a shop.
type Token struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Options configure a Client.
type Options struct {
	APIBase      string
	OAuthBase    string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// Client talks to the provider. Calls are not retried.
type Client struct {
	opts Options
	http *http.Client
}

// New returns a Client with the configured timeout.
func New(o Options) *Client {
	o.APIBase = strings.TrimRight(o.APIBase, "/")
	o.OAuthBase = strings.TrimRight(o.OAuthBase, "/")
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	return &Client{opts: o, http: &http.Client{Timeout: o.Timeout}}
}

// CreatePayment creates a payment on behalf of the shop owning token.
func (c *Client) CreatePayment(ctx context.Context, token, idemKey string, in PaymentRequest) (*Payment, error) {
	var out Payment
	err := c.doJSON(ctx, "create_payment", http.MethodPost, c.opts.APIBase+"/payments", token, idemKey, in, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPayment fetches the current state of a payment.
func (c *Client) GetPayment(ctx context.Context, token, id string) (*Payment, error) {
	var out Payment
	err := c.doJSON(ctx, "get_payment", http.MethodGet, c.opts.APIBase+"/payments/"+url.PathEscape(id), token, "", nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AddWebhook subscribes url to event for the shop owning token.
func (c *Client) AddWebhook(ctx context.Context, token, idemKey, event, target string) error {
	body := map[string]string{"event": event, "url": target}
	return c.doJSON(ctx, "add_webhook", http.MethodPost, c.opts.APIBase+"/webhooks", token, idemKey, body, nil)
}

// AuthorizeURL is the partner-program link a shop owner follows to grant
// access. state comes back on the callback untouched.
func (c *Client) AuthorizeURL(state string) string {
	q := url.Values{}
	q.Set("client_id", c.opts.ClientID)
	q.Set("response_type", "code")
	q.Set("state", state)
	return c.opts.OAuthBase + "/authorize?" + q.Encode()
}

// ExchangeCode trades an authorization code for a shop token.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.OAuthBase+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.opts.ClientID, c.opts.ClientSecret)

	var out Token
	if err := c.do("exchange_code", req, &out); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, &APIError{Status: http.StatusOK, Body: "empty access_token"}
	}
	return &out, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, endpoint, token, idemKey string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", op, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idemKey != "" {
		req.Header.Set("Idempotence-Key", idemKey)
	}
	return c.do(op, req, out)
}

func (c *Client) do(op string, req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		observability.ProviderRequests.WithLabelValues(op, "unavailable").Inc()
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	switch {
	case resp.StatusCode >= 500:
		observability.ProviderRequests.WithLabelValues(op, "unavailable").Inc()
		return fmt.Errorf("%w: %s: status %d", ErrUnavailable, op, resp.StatusCode)
	case resp.StatusCode >= 400:
		observability.ProviderRequests.WithLabelValues(op, "client_error").Inc()
		return &APIError{Status: resp.StatusCode, Body: string(raw)}
	}
	observability.ProviderRequests.WithLabelValues(op, "ok").Inc()
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s: decode: %v", ErrUnavailable, op, err)
	}
	return nil
}
