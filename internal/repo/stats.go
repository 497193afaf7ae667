// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides aggregate queries: per-shelter task
// statistics for urgency classification, computed shelter counters, and
// lightweight list metadata used for ETag generation in the HTTP layer.
package repo

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Lapkipomoshi/help-paw-backend/internal/domain"
)

// TaskStats counts a shelter's active (unfinished) tasks.
type TaskStats struct {
	ActiveEmergency int64
	ActiveRegular   int64
}

// ActiveTaskStats aggregates active tasks per shelter in one grouped query.
// Shelters without active tasks are absent from the map. A non-empty
// shelterIDs restricts the aggregation.
func ActiveTaskStats(ctx context.Context, db *gorm.DB, shelterIDs ...string) (map[string]TaskStats, error) {
	var rows []struct {
		ShelterID   string
		IsEmergency bool
		N           int64
	}
	q := db.WithContext(ctx).Model(&domain.Task{}).
		Select("shelter_id, is_emergency, COUNT(*) AS n").
		Where("is_finished = ?", false)
	if len(shelterIDs) > 0 {
		q = q.Where("shelter_id IN ?", shelterIDs)
	}
	if err := q.Group("shelter_id, is_emergency").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]TaskStats)
	for _, r := range rows {
		s := out[r.ShelterID]
		if r.IsEmergency {
			s.ActiveEmergency += r.N
		} else {
			s.ActiveRegular += r.N
		}
		out[r.ShelterID] = s
	}
	return out, nil
}

// ApprovedShelterIDs lists ids of every approved shelter.
func ApprovedShelterIDs(ctx context.Context, db *gorm.DB) ([]string, error) {
	var ids []string
	err := db.WithContext(ctx).Model(&domain.Shelter{}).Where("is_approved = ?", true).Pluck("id", &ids).Error
	return ids, err
}

// SubscribedShelters is a subquery of shelter ids favourited by userID.
func SubscribedShelters(db *gorm.DB, userID string) *gorm.DB {
	return db.Model(&domain.Subscription{}).Select("shelter_id").Where("user_id = ?", userID)
}

// HelpedShelters is a subquery of shelter ids that received a successful
// donation from userID.
func HelpedShelters(db *gorm.DB, userID string) *gorm.DB {
	return db.Model(&domain.Donation{}).
		Select("shelter_id").
		Where("user_id = ? AND is_successful = ? AND shelter_id IS NOT NULL", userID, true)
}

// ShelterCounters are the computed fields of a shelter detail view.
type ShelterCounters struct {
	MoneyCollected decimal.Decimal
	AnimalsAdopted int64
	CountPets      int64
	CountNews      int64
	CountVacancies int64
	CountTasks     int64
}

// CountShelter computes the read-time counters for shelterID. Pets and tasks
// count only those not adopted / not finished; vacancies only open ones.
func CountShelter(ctx context.Context, db *gorm.DB, shelterID string) (ShelterCounters, error) {
	var c ShelterCounters
	q := db.WithContext(ctx)

	var sum struct{ Total decimal.Decimal }
	if err := q.Model(&domain.Donation{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("shelter_id = ? AND is_successful = ?", shelterID, true).
		Scan(&sum).Error; err != nil {
		return c, err
	}
	c.MoneyCollected = sum.Total.Round(2)

	counts := []struct {
		dst   *int64
		model any
		where string
		args  []any
	}{
		{&c.AnimalsAdopted, &domain.Pet{}, "shelter_id = ? AND is_adopted = ?", []any{shelterID, true}},
		{&c.CountPets, &domain.Pet{}, "shelter_id = ? AND is_adopted = ?", []any{shelterID, false}},
		{&c.CountNews, &domain.News{}, "shelter_id = ?", []any{shelterID}},
		{&c.CountVacancies, &domain.Vacancy{}, "shelter_id = ? AND is_closed = ?", []any{shelterID, false}},
		{&c.CountTasks, &domain.Task{}, "shelter_id = ? AND is_finished = ?", []any{shelterID, false}},
	}
	for _, k := range counts {
		if err := q.Model(k.model).Where(k.where, k.args...).Count(k.dst).Error; err != nil {
			return c, err
		}
	}
	return c, nil
}

// MessagesStats returns the number of messages in chatID and the greatest
// UpdatedAt among them (nil when empty).
func MessagesStats(ctx context.Context, db *gorm.DB, chatID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Message{}).Where("chat_id = ?", chatID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
