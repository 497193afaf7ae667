package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Lapkipomoshi/help-paw-backend/internal/access"
	"github.com/Lapkipomoshi/help-paw-backend/internal/domain"
	"github.com/Lapkipomoshi/help-paw-backend/internal/repo"
)

// newTestDB opens a private in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s_%d?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"), time.Now().UnixNano())
	db, err := repo.OpenSQLite(dsn, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newUser(t *testing.T, db *gorm.DB, name string, role domain.Role) (*domain.User, *access.Actor) {
	t.Helper()
	u := &domain.User{Email: name + "@example.com", Username: name, PasswordHash: "x", Role: role, IsActive: true}
	if err := repo.CreateUser(context.Background(), db, u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u, &access.Actor{ID: u.ID, Role: role}
}

// newShelter seeds a user promoted to shelter owner together with their
// shelter.
func newShelter(t *testing.T, db *gorm.DB, name, tin string, approved bool) (*domain.Shelter, *access.Actor) {
	t.Helper()
	_, owner := newUser(t, db, strings.ToLower(name)+"_owner", domain.RoleShelterOwner)
	sh := &domain.Shelter{
		OwnerID:         owner.ID,
		IsApproved:      approved,
		LegalOwnerName:  "Owner",
		TIN:             tin,
		Name:            name,
		Address:         "Moscow, " + name,
		PhoneNumber:     "+79990000000",
		WorkingFromHour: 9,
		WorkingToHour:   18,
		Email:           strings.ToLower(name) + "@shelter.test",
	}
	if err := repo.CreateShelter(context.Background(), db, sh); err != nil {
		t.Fatalf("seed shelter: %v", err)
	}
	return sh, owner
}

func seedAnimalTypes(t *testing.T, db *gorm.DB, slugs ...string) {
	t.Helper()
	for _, s := range slugs {
		if err := repo.CreateAnimalType(context.Background(), db, &domain.AnimalType{Slug: s, Name: strings.ToUpper(s[:1]) + s[1:]}); err != nil {
			t.Fatalf("seed animal type: %v", err)
		}
	}
}

var staff = &access.Actor{ID: "00000000-0000-0000-0000-0000000000aa", Role: domain.RoleAdmin}

// validationCode returns the code of a *ValidationError, or "".
func validationCode(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}

// fieldError returns the message for field of a *ValidationError, or "".
func fieldError(err error, field string) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields[field]
	}
	return ""
}
