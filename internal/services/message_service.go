// Package services – MessageService
//
// This file implements MessageService, which owns the lifecycle of chat
// messages: sending, listing newest first, author-only edit and delete, and
// read receipts. Every change is pushed to the chat's realtime subscribers
// after it is committed.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/Lapkipomoshi/help-paw-backend/internal/access"
	"github.com/Lapkipomoshi/help-paw-backend/internal/domain"
	"github.com/Lapkipomoshi/help-paw-backend/internal/realtime"
	"github.com/Lapkipomoshi/help-paw-backend/internal/repo"
)

// MessageService coordinates message persistence and realtime fan-out.
type MessageService struct {
	DB    *gorm.DB
	Chats *ChatService
	Hub   realtime.Publisher
}

// ChatStats summarizes a chat for conditional GETs.
type ChatStats struct {
	Count        int64
	LastModified *time.Time
}

// Send stores a message from the actor and publishes it.
func (s *MessageService) Send(ctx context.Context, a *access.Actor, chatID, text string) (*domain.Message, error) {
	ctx, span := otel.Tracer("services/MessageService").Start(ctx, "Send",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.String("user.id", actorID(a)),
		),
	)
	defer span.End()

	if _, err := s.Chats.Get(ctx, a, chatID); err != nil {
		return nil, err
	}
	text, err := messageText(text)
	if err != nil {
		return nil, err
	}

	var m *domain.Message
	now := time.Now().UTC()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if m, err = repo.CreateMessage(ctx, tx, chatID, a.ID, text, now); err != nil {
			return err
		}
		return repo.TouchChat(ctx, tx, chatID, now)
	})
	if err != nil {
		return nil, err
	}
	s.publish(chatID, realtime.EventMessageNew, m)
	return m, nil
}

// ListPage returns a page of messages, newest first.
func (s *MessageService) ListPage(ctx context.Context, a *access.Actor, chatID string, p PageRequest) (*Page[domain.Message], error) {
	ctx, span := otel.Tracer("services/MessageService").Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.Int("page", p.Page),
			attribute.Int("page_size", p.Size),
		),
	)
	defer span.End()

	if _, err := s.Chats.Get(ctx, a, chatID); err != nil {
		return nil, err
	}
	total, err := repo.CountMessages(ctx, s.DB, chatID)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return emptyPage[domain.Message](), nil
	}
	offset, limit := p.bounds()
	items, err := repo.ListMessagesPage(ctx, s.DB, chatID, offset, limit)
	if err != nil {
		return nil, err
	}
	return newPage(items, total), nil
}

// Stats returns the message count and last change time of a chat.
func (s *MessageService) Stats(ctx context.Context, a *access.Actor, chatID string) (ChatStats, error) {
	if _, err := s.Chats.Get(ctx, a, chatID); err != nil {
		return ChatStats{}, err
	}
	n, last, err := repo.MessagesStats(ctx, s.DB, chatID)
	return ChatStats{Count: n, LastModified: last}, err
}

// Edit replaces the text of the actor's own message.
func (s *MessageService) Edit(ctx context.Context, a *access.Actor, chatID, msgID, text string) (*domain.Message, error) {
	m, err := s.authored(ctx, a, chatID, msgID, access.Update)
	if err != nil {
		return nil, err
	}
	text, err = messageText(text)
	if err != nil {
		return nil, err
	}
	if err := repo.EditMessage(ctx, s.DB, m.ID, text); err != nil {
		return nil, missing(err, "message")
	}
	m, err = repo.GetChatMessage(ctx, s.DB, chatID, msgID)
	if err != nil {
		return nil, missing(err, "message")
	}
	s.publish(chatID, realtime.EventMessageEdited, m)
	return m, nil
}

// Delete removes the actor's own message.
func (s *MessageService) Delete(ctx context.Context, a *access.Actor, chatID, msgID string) error {
	m, err := s.authored(ctx, a, chatID, msgID, access.Delete)
	if err != nil {
		return err
	}
	if err := repo.DeleteMessage(ctx, s.DB, m.ID); err != nil {
		return missing(err, "message")
	}
	s.publish(chatID, realtime.EventMessageDeleted, map[string]string{"id": m.ID})
	return nil
}

// MarkRead flags the other participant's messages as read and returns how
// many changed.
func (s *MessageService) MarkRead(ctx context.Context, a *access.Actor, chatID string) (int64, error) {
	if _, err := s.Chats.Get(ctx, a, chatID); err != nil {
		return 0, err
	}
	return repo.MarkChatRead(ctx, s.DB, chatID, a.ID)
}

// authored loads a message of a chat the actor participates in and checks
// that the actor wrote it.
func (s *MessageService) authored(ctx context.Context, a *access.Actor, chatID, msgID string, act access.Action) (*domain.Message, error) {
	if _, err := s.Chats.Get(ctx, a, chatID); err != nil {
		return nil, err
	}
	m, err := repo.GetChatMessage(ctx, s.DB, chatID, msgID)
	if err != nil {
		return nil, missing(err, "message")
	}
	if err := access.CheckObject(access.IsAuthor, a, act, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *MessageService) publish(chatID, event string, data any) {
	if s.Hub != nil {
		s.Hub.Publish(chatID, event, data)
	}
}

func messageText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", invalidField("text", "required")
	}
	if utf8.RuneCountInString(text) > domain.MaxMessageRunes {
		return "", invalidField("text", fmt.Sprintf("must be at most %d characters", domain.MaxMessageRunes))
	}
	return text, nil
}
