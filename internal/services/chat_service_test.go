package services

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/Lapkipomoshi/help-paw-backend/internal/domain"
	"github.com/Lapkipomoshi/help-paw-backend/internal/repo"
)

// ----- Repos -----

// dbChats forwards to the repo package.
type dbChats struct{}

func (dbChats) CreateChat(ctx context.Context, db *gorm.DB, shelterID, userID string) (*domain.Chat, error) {
	return repo.CreateChat(ctx, db, shelterID, userID)
}

func (dbChats) FindChat(ctx context.Context, db *gorm.DB, shelterID, userID string) (*domain.Chat, error) {
	return repo.FindChat(ctx, db, shelterID, userID)
}

func (dbChats) GetChat(ctx context.Context, db *gorm.DB, id string) (*domain.Chat, error) {
	return repo.GetChat(ctx, db, id)
}

func (dbChats) ListUserChatsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Chat, int64, error) {
	return repo.ListUserChatsPage(ctx, db, userID, offset, limit)
}

func (dbChats) ListShelterChatsPage(ctx context.Context, db *gorm.DB, shelterID string, offset, limit int) ([]domain.Chat, int64, error) {
	return repo.ListShelterChatsPage(ctx, db, shelterID, offset, limit)
}

func (dbChats) DeleteChat(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeleteChat(ctx, db, id)
}

// racingChats simulates a concurrent first message: the initial lookup
// misses, the insert collides, and the re-read finds the winner's chat.
type racingChats struct {
	dbChats
	winner    *domain.Chat
	findCalls int
	created   bool
}

func (r *racingChats) FindChat(context.Context, *gorm.DB, string, string) (*domain.Chat, error) {
	r.findCalls++
	if r.findCalls == 1 {
		return nil, repo.ErrNotFound
	}
	return r.winner, nil
}

func (r *racingChats) CreateChat(context.Context, *gorm.DB, string, string) (*domain.Chat, error) {
	r.created = true
	return nil, &repo.DuplicateError{Column: "shelter_id"}
}

// ----- Tests -----

func TestChatStart_CreatesOnceThenReuses(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	sh, _ := newShelter(t, db, "Paws", "4000000001", true)
	_, u := newUser(t, db, "visitor", domain.RoleUser)
	svc := NewChatService(db, dbChats{})

	c, created, err := svc.Start(ctx, u, sh.ID)
	if err != nil || !created {
		t.Fatalf("Start = %v, %v", created, err)
	}
	if c.ShelterID != sh.ID || c.UserID != u.ID {
		t.Fatalf("chat = %+v", c)
	}
	again, created, err := svc.Start(ctx, u, sh.ID)
	if err != nil || created || again.ID != c.ID {
		t.Fatalf("second Start = %+v %v %v", again, created, err)
	}
}

func TestChatStart_Rejections(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	sh, owner := newShelter(t, db, "Paws", "4000000002", true)
	hidden, _ := newShelter(t, db, "Hidden", "4000000003", false)
	_, u := newUser(t, db, "visitor", domain.RoleUser)
	svc := NewChatService(db, dbChats{})

	if _, _, err := svc.Start(ctx, owner, sh.ID); validationCode(err) != CodeNoChatWithOwn {
		t.Fatalf("chat with own shelter: %v", err)
	}
	if _, _, err := svc.Start(ctx, u, hidden.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("chat with unapproved shelter: %v", err)
	}
	if _, _, err := svc.Start(ctx, nil, sh.ID); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("anonymous chat: %v", err)
	}
}

func TestChatStart_LostRaceReturnsExisting(t *testing.T) {
	db := newTestDB(t)
	sh, _ := newShelter(t, db, "Paws", "4000000004", true)
	_, u := newUser(t, db, "visitor", domain.RoleUser)
	r := &racingChats{winner: &domain.Chat{ID: "winner", ShelterID: sh.ID, UserID: u.ID}}
	svc := NewChatService(db, r)

	c, created, err := svc.Start(context.Background(), u, sh.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if created || c.ID != "winner" || !r.created || r.findCalls != 2 {
		t.Fatalf("race handling: chat=%+v created=%v insert=%v finds=%d", c, created, r.created, r.findCalls)
	}
}

func TestChat_ParticipantsOnly(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	sh, owner := newShelter(t, db, "Paws", "4000000005", true)
	_, u := newUser(t, db, "visitor", domain.RoleUser)
	_, stranger := newUser(t, db, "stranger", domain.RoleUser)
	svc := NewChatService(db, dbChats{})

	c, _, err := svc.Start(ctx, u, sh.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := svc.Get(ctx, owner, c.ID); err != nil {
		t.Fatalf("shelter owner Get: %v", err)
	}
	if _, err := svc.Get(ctx, stranger, c.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger Get: %v", err)
	}
	if _, err := svc.Get(ctx, u, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing chat: %v", err)
	}

	mine, err := svc.ListMine(ctx, u, PageRequest{})
	if err != nil || mine.Count != 1 {
		t.Fatalf("ListMine = %+v, %v", mine, err)
	}
	inbox, err := svc.ListShelter(ctx, owner, PageRequest{})
	if err != nil || inbox.Count != 1 || inbox.Results[0].ID != c.ID {
		t.Fatalf("ListShelter = %+v, %v", inbox, err)
	}
	if _, err := svc.ListShelter(ctx, u, PageRequest{}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("visitor listed shelter inbox: %v", err)
	}

	if err := svc.Delete(ctx, stranger, c.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger Delete: %v", err)
	}
	if err := svc.Delete(ctx, owner, c.ID); err != nil {
		t.Fatalf("owner Delete: %v", err)
	}
	if _, err := svc.Get(ctx, u, c.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted chat: %v", err)
	}
}
