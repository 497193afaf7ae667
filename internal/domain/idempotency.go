package domain

import "time"

// Idempotency records the result of a donation request keyed by
// (actor, shelter_id, key) so a retried POST returns the same confirmation URL
// instead of creating a second provider payment. Actor is the user id, or
// "ip:<addr>" for anonymous donors.
type Idempotency struct {
	ID              string    `gorm:"type:char(36);primaryKey"`
	Actor           string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_actor_shelter_key,priority:1"`
	ShelterID       string    `gorm:"type:char(36);not null;uniqueIndex:ux_actor_shelter_key,priority:2"`
	Key             string    `gorm:"type:varchar(200);not null;uniqueIndex:ux_actor_shelter_key,priority:3"`
	DonationID      string    `gorm:"type:char(36);not null"`
	ConfirmationURL string    `gorm:"type:varchar(1024);not null"`
	CreatedAt       time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt       time.Time `gorm:"not null;index"`
}

func (Idempotency) TableName() string { return "idempotency" }
