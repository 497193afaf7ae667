// Package services – ChatService
//
// This file implements the ChatService, which manages conversations between a
// user and a shelter. A chat is created on first contact and reused after
// that; only its two participants (the user and the shelter's owner) may see
// or delete it.
package services

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/Lapkipomoshi/help-paw-backend/internal/access"
	"github.com/Lapkipomoshi/help-paw-backend/internal/domain"
	"github.com/Lapkipomoshi/help-paw-backend/internal/repo"
)

// ChatRepo defines the repository contract required by ChatService.
type ChatRepo interface {
	// CreateChat inserts the chat for the pair; a concurrent duplicate
	// surfaces as repo.ErrDuplicate.
	CreateChat(ctx context.Context, db *gorm.DB, shelterID, userID string) (*domain.Chat, error)

	// FindChat fetches the chat for the pair.
	FindChat(ctx context.Context, db *gorm.DB, shelterID, userID string) (*domain.Chat, error)

	// GetChat fetches a chat by ID with its shelter loaded.
	GetChat(ctx context.Context, db *gorm.DB, id string) (*domain.Chat, error)

	// ListUserChatsPage returns a page of chats opened by the user.
	ListUserChatsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Chat, int64, error)

	// ListShelterChatsPage returns a page of chats opened with the shelter.
	ListShelterChatsPage(ctx context.Context, db *gorm.DB, shelterID string, offset, limit int) ([]domain.Chat, int64, error)

	// DeleteChat removes the chat and its messages.
	DeleteChat(ctx context.Context, db *gorm.DB, id string) error
}

// ChatService provides chat-level operations: get-or-create, listing,
// participant lookup and deletion.
type ChatService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the chat repository used by this service.
	Repo ChatRepo
}

// NewChatService constructs a ChatService.
func NewChatService(db *gorm.DB, r ChatRepo) *ChatService {
	return &ChatService{DB: db, Repo: r}
}

// Start returns the actor's chat with the shelter, creating it on first
// contact. created reports whether a new chat was inserted.
func (s *ChatService) Start(ctx context.Context, a *access.Actor, shelterID string) (chat *domain.Chat, created bool, err error) {
	ctx, span := otel.Tracer("services/ChatService").Start(ctx, "Start",
		trace.WithAttributes(
			attribute.String("shelter.id", shelterID),
			attribute.String("user.id", actorID(a)),
		),
	)
	defer span.End()

	if !a.Authenticated() {
		return nil, false, ErrUnauthenticated
	}
	sh, err := approvedShelter(ctx, s.DB, shelterID)
	if err != nil {
		return nil, false, err
	}
	if a.Is(sh.OwnerID) {
		return nil, false, invalid(CodeNoChatWithOwn, "cannot start a chat with your own shelter")
	}

	c, err := s.Repo.FindChat(ctx, s.DB, shelterID, a.ID)
	if err == nil {
		return c, false, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, false, err
	}
	c, err = s.Repo.CreateChat(ctx, s.DB, shelterID, a.ID)
	if errors.Is(err, repo.ErrDuplicate) {
		// Lost the race to a concurrent first message.
		c, err = s.Repo.FindChat(ctx, s.DB, shelterID, a.ID)
		return c, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

// ListMine returns a page of chats the actor opened with shelters.
func (s *ChatService) ListMine(ctx context.Context, a *access.Actor, p PageRequest) (*Page[domain.Chat], error) {
	if !a.Authenticated() {
		return nil, ErrUnauthenticated
	}
	offset, limit := p.bounds()
	items, total, err := s.Repo.ListUserChatsPage(ctx, s.DB, a.ID, offset, limit)
	if err != nil {
		return nil, err
	}
	return newPage(items, total), nil
}

// ListShelter returns a page of chats users opened with the actor's shelter.
func (s *ChatService) ListShelter(ctx context.Context, a *access.Actor, p PageRequest) (*Page[domain.Chat], error) {
	sh, err := ownShelter(ctx, s.DB, a)
	if err != nil {
		return nil, err
	}
	offset, limit := p.bounds()
	items, total, err := s.Repo.ListShelterChatsPage(ctx, s.DB, sh.ID, offset, limit)
	if err != nil {
		return nil, err
	}
	return newPage(items, total), nil
}

// Get returns a chat the actor participates in.
func (s *ChatService) Get(ctx context.Context, a *access.Actor, id string) (*domain.Chat, error) {
	if !a.Authenticated() {
		return nil, ErrUnauthenticated
	}
	c, err := s.Repo.GetChat(ctx, s.DB, id)
	if err != nil {
		return nil, missing(err, "chat")
	}
	if !isParticipant(a, c) {
		return nil, ErrForbidden
	}
	return c, nil
}

// Delete removes a chat the actor participates in.
func (s *ChatService) Delete(ctx context.Context, a *access.Actor, id string) error {
	if _, err := s.Get(ctx, a, id); err != nil {
		return err
	}
	return missing(s.Repo.DeleteChat(ctx, s.DB, id), "chat")
}

func isParticipant(a *access.Actor, c *domain.Chat) bool {
	if a.Is(c.UserID) {
		return true
	}
	return c.Shelter != nil && a.Is(c.Shelter.OwnerID)
}
