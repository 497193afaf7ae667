// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Lapkipomoshi/help-paw-backend/internal/domain"
)

// CreateMessage inserts a new unread, unedited message stamped with at.
func CreateMessage(ctx context.Context, db *gorm.DB, chatID, authorID, text string, at time.Time) (*domain.Message, error) {
	m := &domain.Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		AuthorID:  authorID,
		Text:      text,
		PubDate:   at,
		UpdatedAt: at,
	}
	return m, db.WithContext(ctx).Create(m).Error
}

// ListMessagesPage returns a page ordered newest first (pub_date DESC, id DESC).
func ListMessagesPage(ctx context.Context, db *gorm.DB, chatID string, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("pub_date DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(ctx context.Context, db *gorm.DB, chatID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw("SELECT COUNT(*) FROM messages WHERE chat_id = ?", chatID).Scan(&total).Error
	return total, err
}

// GetChatMessage fetches a message by ID within chatID.
func GetChatMessage(ctx context.Context, db *gorm.DB, chatID, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("id = ? AND chat_id = ?", id, chatID).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// EditMessage replaces the text and marks the message edited.
func EditMessage(ctx context.Context, db *gorm.DB, id, text string) error {
	res := db.WithContext(ctx).Model(&domain.Message{}).Where("id = ?", id).
		Updates(map[string]any{"text": text, "is_edited": true, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func DeleteMessage(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Message{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkChatRead flags every unread message in chatID not written by readerID.
// It returns the number of messages updated.
func MarkChatRead(ctx context.Context, db *gorm.DB, chatID, readerID string) (int64, error) {
	res := db.WithContext(ctx).Model(&domain.Message{}).
		Where("chat_id = ? AND author_id <> ? AND is_readed = ?", chatID, readerID, false).
		Update("is_readed", true)
	return res.RowsAffected, res.Error
}
