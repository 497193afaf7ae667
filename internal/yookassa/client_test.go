package yookassa

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lapkipomoshi/help-paw-backend/internal/observability"
)

func newClient(srv *httptest.Server) *Client {
	return New(Options{
		APIBase: srv.URL + "/v3/", OAuthBase: srv.URL + "/oauth/v2",
		ClientID: "cid", ClientSecret: "secret", Timeout: time.Second,
	})
}

func TestCreatePayment(t *testing.T) {
	var got PaymentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/payments", r.URL.Path)
		assert.Equal(t, "Bearer shop-token", r.Header.Get("Authorization"))
		assert.Equal(t, "idem-1", r.Header.Get("Idempotence-Key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"id":"pay-1","status":"pending","paid":false,
			"amount":{"value":"150.50","currency":"RUB"},
			"confirmation":{"type":"redirect","confirmation_url":"https://pay.test/c"},
			"created_at":"2025-03-01T10:00:00.000Z","test":true}`)
	}))
	defer srv.Close()

	before := testutil.ToFloat64(observability.ProviderRequests.WithLabelValues("create_payment", "ok"))
	p, err := newClient(srv).CreatePayment(context.Background(), "shop-token", "idem-1", PaymentRequest{
		Amount:       RUB(decimal.RequireFromString("150.5")),
		Confirmation: Confirmation{Type: "redirect", ReturnURL: "https://lapkipomoshi.ru/shelters/s1/about"},
		Capture:      true,
		Metadata:     map[string]string{"shelter_id": "s1"},
		Test:         true,
	})
	require.NoError(t, err)
	assert.Equal(t, "pay-1", p.ID)
	assert.Equal(t, "https://pay.test/c", p.ConfirmationURL())
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), p.CreatedAt.UTC())
	assert.Equal(t, "150.50", got.Amount.Value)
	assert.Equal(t, "RUB", got.Amount.Currency)
	assert.True(t, got.Capture)
	assert.True(t, got.Test)
	assert.Equal(t, before+1, testutil.ToFloat64(observability.ProviderRequests.WithLabelValues("create_payment", "ok")))
}

func TestCreatePayment_Failures(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusBadRequest)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(int(status.Load()))
		_, _ = io.WriteString(w, `{"type":"error","code":"invalid_request"}`)
	}))
	defer srv.Close()
	c := newClient(srv)

	_, err := c.CreatePayment(context.Background(), "t", "k", PaymentRequest{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.Body, "invalid_request")

	status.Store(http.StatusServiceUnavailable)
	_, err = c.CreatePayment(context.Background(), "t", "k", PaymentRequest{})
	assert.ErrorIs(t, err, ErrUnavailable)

	srv.Close()
	_, err = c.CreatePayment(context.Background(), "t", "k", PaymentRequest{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestGetPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v3/payments/pay-9", r.URL.Path)
		_, _ = io.WriteString(w, `{"id":"pay-9","status":"succeeded","paid":true,"amount":{"value":"10.00","currency":"RUB"}}`)
	}))
	defer srv.Close()

	p, err := newClient(srv).GetPayment(context.Background(), "t", "pay-9")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, p.Status)
	amt, err := p.Amount.Decimal()
	require.NoError(t, err)
	assert.True(t, amt.Equal(decimal.NewFromInt(10)))
}

func TestAddWebhook(t *testing.T) {
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/webhooks", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = io.WriteString(w, `{"id":"wh-1"}`)
	}))
	defer srv.Close()

	require.NoError(t, newClient(srv).AddWebhook(context.Background(), "t", "k", EventPaymentSucceeded, "https://x.test/hook"))
	assert.Equal(t, EventPaymentSucceeded, body["event"])
	assert.Equal(t, "https://x.test/hook", body["url"])
}

func TestExchangeCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/oauth/v2/token", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "cid", user)
		assert.Equal(t, "secret", pass)
		assert.NoError(t, r.ParseForm())
		if r.PostForm.Get("code") != "good" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_grant"}`)
			return
		}
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		_, _ = io.WriteString(w, `{"access_token":"shop-token","expires_in":3600}`)
	}))
	defer srv.Close()
	c := newClient(srv)

	tok, err := c.ExchangeCode(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "shop-token", tok.AccessToken)
	assert.EqualValues(t, 3600, tok.ExpiresIn)

	_, err = c.ExchangeCode(context.Background(), "bad")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Contains(t, apiErr.Body, "invalid_grant")
}

func TestAuthorizeURL(t *testing.T) {
	c := New(Options{OAuthBase: "https://yookassa.ru/oauth/v2/", ClientID: "cid"})
	u, err := url.Parse(c.AuthorizeURL("st&ate"))
	require.NoError(t, err)
	assert.Equal(t, "/oauth/v2/authorize", u.Path)
	assert.Equal(t, "cid", u.Query().Get("client_id"))
	assert.Equal(t, "code", u.Query().Get("response_type"))
	assert.Equal(t, "st&ate", u.Query().Get("state"))
}

func TestParseNotification(t *testing.T) {
	n, err := ParseNotification([]byte(`{"type":"notification","event":"payment.succeeded",
		"object":{"id":"pay-1","status":"succeeded","paid":true,"amount":{"value":"5.00","currency":"RUB"}}}`))
	require.NoError(t, err)
	assert.Equal(t, EventPaymentSucceeded, n.Event)
	assert.Equal(t, "pay-1", n.Object.ID)

	for _, raw := range []string{`not json`, `{"object":{"id":"x"}}`, `{"event":"payment.succeeded","object":{}}`} {
		_, err := ParseNotification([]byte(raw))
		assert.ErrorIs(t, err, ErrMalformed, raw)
	}
}
