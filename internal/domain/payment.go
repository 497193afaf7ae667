package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Donation mirrors a provider payment. A row exists while the payment is
// pending (IsSuccessful=false) and after it succeeded; canceled payments are
// deleted.
type Donation struct {
	ID           string          `json:"id"            gorm:"type:char(36);primaryKey"`
	ExternalID   string          `json:"external_id"   gorm:"type:varchar(64);not null;uniqueIndex"`
	ShelterID    *string         `json:"shelter_id"    gorm:"type:char(36);index"`
	UserID       *string         `json:"user_id"       gorm:"type:char(36);index"`
	Amount       decimal.Decimal `json:"amount"        gorm:"type:numeric(12,2);not null"`
	IsSuccessful bool            `json:"is_successful" gorm:"not null;index"`
	CreatedAt    time.Time       `json:"created_at"`

	Shelter *Shelter `json:"-" gorm:"foreignKey:ShelterID;references:ID;constraint:OnDelete:SET NULL"`
	User    *User    `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:SET NULL"`
}

func (Donation) TableName() string { return "donations" }

// YookassaOAuthToken is the partner-program credential of a shelter. One row
// per shelter; re-authorization replaces it in place.
type YookassaOAuthToken struct {
	ID        string    `json:"-"          gorm:"type:char(36);primaryKey"`
	ShelterID string    `json:"shelter_id" gorm:"type:char(36);not null;uniqueIndex"`
	Token     string    `json:"-"          gorm:"type:text;not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Shelter *Shelter `json:"-" gorm:"foreignKey:ShelterID;references:ID;constraint:OnDelete:CASCADE"`
}

func (YookassaOAuthToken) TableName() string { return "yookassa_oauth_tokens" }

// IsExpired reports whether the token is no longer usable at now.
func (t YookassaOAuthToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Webhook processing outcomes stored on WebhookEvent.
const (
	WebhookReceived  = "received"
	WebhookMalformed = "malformed"
	WebhookIgnored   = "ignored"
	WebhookUnknown   = "unknown_payment"
	WebhookApplied   = "applied"
	WebhookDuplicate = "duplicate"
	WebhookMismatch  = "mismatch"
	WebhookFailed    = "failed"
)

// WebhookEvent archives a raw provider notification so it can be replayed by
// hand.
type WebhookEvent struct {
	ID         string         `json:"id"          gorm:"type:char(36);primaryKey"`
	Event      string         `json:"event"       gorm:"type:varchar(64);index"`
	ObjectID   string         `json:"object_id"   gorm:"type:varchar(64);index"`
	Payload    datatypes.JSON `json:"payload"`
	RawBody    string         `json:"raw_body"    gorm:"type:text"`
	Outcome    string         `json:"outcome"     gorm:"type:varchar(32);not null"`
	ReceivedAt time.Time      `json:"received_at" gorm:"not null;index"`
}

func (WebhookEvent) TableName() string { return "webhook_events" }
