package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:domain_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Enforce FKs so cascades actually execute.
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := db.AutoMigrate(
		&User{}, &AnimalType{}, &Shelter{}, &Subscription{}, &Pet{}, &Task{}, &Vacancy{},
		&Image{}, &News{}, &HelpArticle{}, &FAQ{}, &Chat{}, &Message{},
		&Donation{}, &YookassaOAuthToken{}, &WebhookEvent{}, &Idempotency{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedOwnerAndShelter(t *testing.T, db *gorm.DB) (User, Shelter) {
	t.Helper()
	u := User{ID: "00000000-0000-0000-0000-000000000001", Email: "o@x.io", Username: "owner", PasswordHash: "x", Role: RoleShelterOwner}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	s := Shelter{
		ID: "00000000-0000-0000-0000-0000000000a1", OwnerID: u.ID, LegalOwnerName: "Ivan",
		TIN: "1234567890", Name: "Paws", Address: "Moscow", PhoneNumber: "+79990000000",
		WorkingFromHour: 9, WorkingToHour: 18, Email: "paws@x.io",
	}
	if err := db.Create(&s).Error; err != nil {
		t.Fatalf("create shelter: %v", err)
	}
	return u, s
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		User{}.TableName():               "users",
		Shelter{}.TableName():            "shelters",
		Chat{}.TableName():               "chats",
		Message{}.TableName():            "messages",
		Donation{}.TableName():           "donations",
		YookassaOAuthToken{}.TableName(): "yookassa_oauth_tokens",
		Idempotency{}.TableName():        "idempotency",
		News{}.TableName():               "news",
		HelpArticle{}.TableName():        "help_articles",
	}
	for got, want := range cases {
		if got != want {
			t.Errorf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestMigrations_Indexes(t *testing.T) {
	db := newDomainDB(t)
	m := db.Migrator()
	if !m.HasIndex(&Chat{}, "ux_chat_shelter_user") {
		t.Fatalf("expected ux_chat_shelter_user on chats")
	}
	if !m.HasIndex(&Message{}, "idx_chat_msgs") {
		t.Fatalf("expected idx_chat_msgs on messages")
	}
	if !m.HasIndex(&Idempotency{}, "ux_actor_shelter_key") {
		t.Fatalf("expected ux_actor_shelter_key on idempotency")
	}
	if !m.HasTable("news_images") || !m.HasTable("help_article_images") || !m.HasTable("shelter_animal_types") {
		t.Fatalf("join tables missing")
	}
}

func TestShelter_OnePerOwner(t *testing.T) {
	db := newDomainDB(t)
	u, _ := seedOwnerAndShelter(t, db)

	dup := Shelter{
		ID: "00000000-0000-0000-0000-0000000000a2", OwnerID: u.ID, LegalOwnerName: "Ivan",
		TIN: "0987654321", Name: "Other", Address: "Moscow", PhoneNumber: "+79990000001",
		WorkingFromHour: 9, WorkingToHour: 18, Email: "other@x.io",
	}
	if err := db.Create(&dup).Error; err == nil {
		t.Fatalf("expected unique violation on owner_id")
	}
}

func TestDonation_ShelterDeleteSetsNull(t *testing.T) {
	db := newDomainDB(t)
	_, s := seedOwnerAndShelter(t, db)

	sid := s.ID
	d := Donation{ID: "00000000-0000-0000-0000-0000000000d1", ExternalID: "ext-1", ShelterID: &sid, Amount: decimal.NewFromInt(100), CreatedAt: time.Now().UTC()}
	if err := db.Create(&d).Error; err != nil {
		t.Fatalf("create donation: %v", err)
	}
	if err := db.Delete(&Shelter{}, "id = ?", s.ID).Error; err != nil {
		t.Fatalf("delete shelter: %v", err)
	}
	var got Donation
	if err := db.First(&got, "id = ?", d.ID).Error; err != nil {
		t.Fatalf("donation should survive: %v", err)
	}
	if got.ShelterID != nil {
		t.Fatalf("shelter_id = %v; want NULL", *got.ShelterID)
	}
	if !got.Amount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("amount = %s", got.Amount)
	}
}

func TestDonation_ExternalIDUnique(t *testing.T) {
	db := newDomainDB(t)
	a := Donation{ID: "00000000-0000-0000-0000-0000000000d1", ExternalID: "ext-1", Amount: decimal.NewFromInt(1)}
	b := Donation{ID: "00000000-0000-0000-0000-0000000000d2", ExternalID: "ext-1", Amount: decimal.NewFromInt(2)}
	if err := db.Create(&a).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := db.Create(&b).Error; err == nil {
		t.Fatalf("expected unique violation on external_id")
	}
}

func TestToken_IsExpired(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tok := YookassaOAuthToken{ExpiresAt: now}
	if tok.IsExpired(now) {
		t.Fatalf("token expiring exactly now is still valid")
	}
	if !tok.IsExpired(now.Add(time.Second)) {
		t.Fatalf("token should be expired one second later")
	}
}

func TestMessage_CascadeOnChatDelete(t *testing.T) {
	db := newDomainDB(t)
	owner, s := seedOwnerAndShelter(t, db)
	u := User{ID: "00000000-0000-0000-0000-000000000002", Email: "u@x.io", Username: "user", PasswordHash: "x"}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	c := Chat{ID: "00000000-0000-0000-0000-0000000000c1", ShelterID: s.ID, UserID: u.ID}
	if err := db.Create(&c).Error; err != nil {
		t.Fatalf("create chat: %v", err)
	}
	m := Message{ID: "00000000-0000-0000-0000-0000000000e1", ChatID: c.ID, AuthorID: owner.ID, Text: "hi", PubDate: time.Now().UTC()}
	if err := db.Create(&m).Error; err != nil {
		t.Fatalf("create message: %v", err)
	}
	if m.AuthoredBy() != owner.ID {
		t.Fatalf("AuthoredBy = %q", m.AuthoredBy())
	}
	if err := db.Delete(&Chat{}, "id = ?", c.ID).Error; err != nil {
		t.Fatalf("delete chat: %v", err)
	}
	var n int64
	db.Model(&Message{}).Where("chat_id = ?", c.ID).Count(&n)
	if n != 0 {
		t.Fatalf("messages should cascade, got %d", n)
	}
}
