package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Lapkipomoshi/help-paw-backend/internal/domain"
)

// CreateDonation inserts a pending donation keyed by the provider payment id.
func CreateDonation(ctx context.Context, db *gorm.DB, d *domain.Donation) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if err := db.WithContext(ctx).Omit("Shelter", "User").Create(d).Error; err != nil {
		return wrapDuplicate(err)
	}
	return nil
}

func GetDonationByExternalID(ctx context.Context, db *gorm.DB, externalID string) (*domain.Donation, error) {
	var d domain.Donation
	if err := db.WithContext(ctx).Where("external_id = ?", externalID).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// MarkDonationSucceeded flips a pending donation to successful and stores the
// confirmed amount. It reports whether a row changed; a second delivery of
// the same event changes nothing.
func MarkDonationSucceeded(ctx context.Context, db *gorm.DB, externalID string, amount decimal.Decimal) (bool, error) {
	res := db.WithContext(ctx).Model(&domain.Donation{}).
		Where("external_id = ? AND is_successful = ?", externalID, false).
		Updates(map[string]any{"is_successful": true, "amount": amount})
	return res.RowsAffected > 0, res.Error
}

// DeletePendingDonation removes a donation that never succeeded.
func DeletePendingDonation(ctx context.Context, db *gorm.DB, externalID string) (bool, error) {
	res := db.WithContext(ctx).
		Where("external_id = ? AND is_successful = ?", externalID, false).
		Delete(&domain.Donation{})
	return res.RowsAffected > 0, res.Error
}

// ListUserDonations pages through a user's successful donations, newest first.
func ListUserDonations(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Donation, int64, error) {
	q := db.WithContext(ctx).Model(&domain.Donation{}).
		Where("user_id = ? AND is_successful = ?", userID, true)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []domain.Donation
	err := q.Order("created_at desc, id").Offset(offset).Limit(limit).Find(&out).Error
	return out, total, err
}

// --- provider tokens ---

func GetShelterToken(ctx context.Context, db *gorm.DB, shelterID string) (*domain.YookassaOAuthToken, error) {
	var t domain.YookassaOAuthToken
	if err := db.WithContext(ctx).Where("shelter_id = ?", shelterID).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// UpsertShelterToken stores the shelter's token in one statement, replacing
// token and expiry on conflict. The stored row is returned, so on conflict
// ID and CreatedAt are those of the original token.
func UpsertShelterToken(ctx context.Context, db *gorm.DB, shelterID, token string, expiresAt time.Time) (*domain.YookassaOAuthToken, error) {
	now := time.Now().UTC()
	t := &domain.YookassaOAuthToken{
		ID:        uuid.NewString(),
		ShelterID: shelterID,
		Token:     token,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := db.WithContext(ctx).
		Omit("Shelter").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "shelter_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"token", "expires_at", "updated_at"}),
		}).
		Create(t).Error
	if err != nil {
		return nil, err
	}
	return GetShelterToken(ctx, db, shelterID)
}

// --- webhook archive ---

func CreateWebhookEvent(ctx context.Context, db *gorm.DB, ev *domain.WebhookEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(ev).Error
}

func SetWebhookOutcome(ctx context.Context, db *gorm.DB, id, outcome string) error {
	return db.WithContext(ctx).Model(&domain.WebhookEvent{}).Where("id = ?", id).Update("outcome", outcome).Error
}
