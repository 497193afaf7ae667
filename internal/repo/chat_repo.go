// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Chat model.
//
// A chat links one user with one shelter; the pair is unique. Participants
// are the user and the shelter's owner.
//
// Error semantics:
//   - When a chat is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - A concurrent insert of the same pair surfaces as ErrDuplicate.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Lapkipomoshi/help-paw-backend/internal/domain"
)

// CreateChat inserts a Chat for (shelterID, userID). A unique violation is
// returned as ErrDuplicate so callers can re-read the existing row.
func CreateChat(ctx context.Context, db *gorm.DB, shelterID, userID string) (*domain.Chat, error) {
	now := time.Now().UTC()
	c := &domain.Chat{
		ID:        uuid.NewString(),
		ShelterID: shelterID,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, wrapDuplicate(err)
	}
	return c, nil
}

// FindChat fetches the chat between shelterID and userID.
func FindChat(ctx context.Context, db *gorm.DB, shelterID, userID string) (*domain.Chat, error) {
	var c domain.Chat
	err := db.WithContext(ctx).
		Where("shelter_id = ? AND user_id = ?", shelterID, userID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetChat fetches a chat by id with its shelter loaded so callers can check
// shelter ownership.
func GetChat(ctx context.Context, db *gorm.DB, id string) (*domain.Chat, error) {
	var c domain.Chat
	if err := db.WithContext(ctx).Preload("Shelter").Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListUserChatsPage returns chats in which userID is the visitor, most
// recently active first.
func ListUserChatsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Chat, int64, error) {
	return listChats(ctx, db.WithContext(ctx).Where("user_id = ?", userID), offset, limit)
}

// ListShelterChatsPage returns chats opened with shelterID.
func ListShelterChatsPage(ctx context.Context, db *gorm.DB, shelterID string, offset, limit int) ([]domain.Chat, int64, error) {
	return listChats(ctx, db.WithContext(ctx).Where("shelter_id = ?", shelterID), offset, limit)
}

func listChats(_ context.Context, q *gorm.DB, offset, limit int) ([]domain.Chat, int64, error) {
	var total int64
	if err := q.Model(&domain.Chat{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []domain.Chat
	err := q.Preload("Shelter").
		Order("updated_at desc, id").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, total, err
}

// TouchChat bumps updated_at so the chat sorts to the top of listings.
func TouchChat(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	return db.WithContext(ctx).Model(&domain.Chat{}).Where("id = ?", id).Update("updated_at", at).Error
}

// DeleteChat removes a chat; its messages cascade.
func DeleteChat(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Chat{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
