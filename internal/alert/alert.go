// Package alert notifies operators about unhandled errors.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Reporter delivers an error report. Implementations must not block the
// caller for long and must be safe for concurrent use.
type Reporter interface {
	Report(ctx context.Context, err error, fields map[string]string)
}

// LogReporter writes reports to the global zerolog logger.
type LogReporter struct{}

func (LogReporter) Report(_ context.Context, err error, fields map[string]string) {
	ev := log.Error().Err(err)
	for k, v := range fields {
		ev = ev.Str(k, v)
	}
	ev.Msg("alert")
}

// maxTelegramText is the Bot API limit for a single message.
const maxTelegramText = 4096

// Telegram posts reports to a chat through the Bot API.
type Telegram struct {
	APIBase string
	Token   string
	ChatID  string
	HTTP    *http.Client
}

// NewTelegram returns a Telegram reporter with the given request timeout.
func NewTelegram(apiBase, token, chatID string, timeout time.Duration) *Telegram {
	return &Telegram{
		APIBase: strings.TrimRight(apiBase, "/"),
		Token:   token,
		ChatID:  chatID,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Report sends the message and logs delivery failures. It never returns an
// error to the caller.
func (t *Telegram) Report(ctx context.Context, err error, fields map[string]string) {
	if sendErr := t.Send(ctx, Format(err, fields)); sendErr != nil {
		log.Warn().Err(sendErr).AnErr("original", err).Msg("telegram alert not delivered")
	}
}

// Send posts text to the configured chat.
func (t *Telegram) Send(ctx context.Context, text string) error {
	if len(text) > maxTelegramText {
		text = text[:maxTelegramText-3] + "..."
	}
	body, _ := json.Marshal(map[string]string{"chat_id": t.ChatID, "text": text})
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.APIBase, t.Token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram: status %d: %s", resp.StatusCode, b)
	}
	return nil
}

// Format renders an error and its fields as plain text, fields sorted by key.
func Format(err error, fields map[string]string) string {
	var b strings.Builder
	b.WriteString("help-paw error")
	if err != nil {
		b.WriteString(": ")
		b.WriteString(err.Error())
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%s: %s", k, fields[k])
	}
	return b.String()
}

// Async wraps r so reports are delivered on a separate goroutine with a
// detached context.
type Async struct {
	Next    Reporter
	Timeout time.Duration
}

func (a Async) Report(ctx context.Context, err error, fields map[string]string) {
	go func() {
		c, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Timeout)
		defer cancel()
		a.Next.Report(c, err, fields)
	}()
}
