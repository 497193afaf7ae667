package yookassa

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Notification events handled by the platform.
const (
	EventPaymentSucceeded         = "payment.succeeded"
	EventPaymentCanceled          = "payment.canceled"
	EventPaymentWaitingForCapture = "payment.waiting_for_capture"
)

// ErrMalformed is returned for notification bodies that are not valid JSON
// or lack the event name or object id.
var ErrMalformed = errors.New("malformed notification")

// Notification is the webhook envelope.
type Notification struct {
	Type   string  `json:"type"`
	Event  string  `json:"event"`
	Object Payment `json:"object"`
}

// ParseNotification decodes a webhook body.
func ParseNotification(raw []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if n.Event == "" {
		return nil, fmt.Errorf("%w: missing event", ErrMalformed)
	}
	if n.Object.ID == "" {
		return nil, fmt.Errorf("%w: missing object.id", ErrMalformed)
	}
	return &n, nil
}
