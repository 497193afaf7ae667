package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Lapkipomoshi/help-paw-backend/internal/domain"
)

func TestCreateShelter_OnePerOwner(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	owner := seedUser(t, db, "owner")
	seedShelter(t, db, owner, "Alpha", "1111111111", true)

	err := CreateShelter(ctx, db, &domain.Shelter{
		OwnerID: owner.ID, LegalOwnerName: "x", TIN: "2222222222", Name: "Beta",
		Address: "a", PhoneNumber: "+79990000000", WorkingToHour: 1, Email: "b@b.test",
	})
	var dup *DuplicateError
	if !errors.As(err, &dup) || dup.Column != "owner_id" {
		t.Fatalf("expected duplicate owner_id, got %v", err)
	}

	ok, err := ShelterExistsForOwner(ctx, db, owner.ID)
	if err != nil || !ok {
		t.Fatalf("ShelterExistsForOwner = %v, %v", ok, err)
	}
}

func TestUpdateShelter_ReplacesAnimalTypes(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	for _, at := range []domain.AnimalType{{Slug: "cats", Name: "Cats"}, {Slug: "dogs", Name: "Dogs"}} {
		at := at
		if err := CreateAnimalType(ctx, db, &at); err != nil {
			t.Fatalf("CreateAnimalType: %v", err)
		}
	}
	s := seedShelter(t, db, seedUser(t, db, "o"), "Alpha", "1111111111", true)

	types, err := AnimalTypesBySlugs(ctx, db, []string{"dogs", "cats", "birds"})
	if err != nil || len(types) != 2 {
		t.Fatalf("AnimalTypesBySlugs = %v, %v", types, err)
	}
	s.Description = "updated"
	if err := UpdateShelter(ctx, db, s, types); err != nil {
		t.Fatalf("UpdateShelter: %v", err)
	}
	got, err := GetShelter(ctx, db, s.ID)
	if err != nil {
		t.Fatalf("GetShelter: %v", err)
	}
	if got.Description != "updated" || len(got.AnimalTypes) != 2 {
		t.Fatalf("unexpected shelter after update: %+v", got)
	}

	if err := UpdateShelter(ctx, db, got, types[:1]); err != nil {
		t.Fatalf("UpdateShelter: %v", err)
	}
	got, _ = GetShelter(ctx, db, s.ID)
	if len(got.AnimalTypes) != 1 || got.AnimalTypes[0].Slug != "cats" {
		t.Fatalf("animal types not replaced: %+v", got.AnimalTypes)
	}
}

func TestApproveAndDeleteShelter(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	s := seedShelter(t, db, seedUser(t, db, "o"), "Alpha", "1111111111", false)

	if err := SetShelterApproved(ctx, db, s.ID, true); err != nil {
		t.Fatalf("SetShelterApproved: %v", err)
	}
	ids, _ := ApprovedShelterIDs(ctx, db)
	if len(ids) != 1 || ids[0] != s.ID {
		t.Fatalf("ApprovedShelterIDs = %v", ids)
	}
	if err := SetShelterApproved(ctx, db, "missing", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := CreatePet(ctx, db, &domain.Pet{ShelterID: s.ID, Name: "Rex", AnimalType: "dogs", Sex: domain.SexMale}); err != nil {
		t.Fatalf("CreatePet: %v", err)
	}
	if err := DeleteShelter(ctx, db, s.ID); err != nil {
		t.Fatalf("DeleteShelter: %v", err)
	}
	var pets int64
	db.Model(&domain.Pet{}).Count(&pets)
	if pets != 0 {
		t.Fatalf("pets should cascade, got %d", pets)
	}
	if err := DeleteShelter(ctx, db, s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestSubscriptions_Idempotent(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "fan")
	a := seedShelter(t, db, seedUser(t, db, "o1"), "Alpha", "1111111111", true)
	b := seedShelter(t, db, seedUser(t, db, "o2"), "Beta", "2222222222", true)

	for i := 0; i < 2; i++ {
		if err := AddSubscription(ctx, db, u.ID, a.ID); err != nil {
			t.Fatalf("AddSubscription #%d: %v", i, err)
		}
	}
	subs, err := SubscribedShelterIDs(ctx, db, u.ID, []string{a.ID, b.ID})
	if err != nil || !subs[a.ID] || subs[b.ID] {
		t.Fatalf("SubscribedShelterIDs = %v, %v", subs, err)
	}
	if err := RemoveSubscription(ctx, db, u.ID, a.ID); err != nil {
		t.Fatalf("RemoveSubscription: %v", err)
	}
	if err := RemoveSubscription(ctx, db, u.ID, a.ID); err != nil {
		t.Fatalf("RemoveSubscription twice: %v", err)
	}
	subs, _ = SubscribedShelterIDs(ctx, db, u.ID, []string{a.ID})
	if subs[a.ID] {
		t.Fatalf("subscription should be gone")
	}
}

func TestListSheltersPage_AndRandom(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	seedShelter(t, db, seedUser(t, db, "o1"), "Beta", "2222222222", true)
	seedShelter(t, db, seedUser(t, db, "o2"), "Alpha", "1111111111", true)
	seedShelter(t, db, seedUser(t, db, "o3"), "Gamma", "3333333333", false)

	q := db.Model(&domain.Shelter{}).Where("is_approved = ?", true)
	items, total, err := ListSheltersPage(ctx, q, 0, 1)
	if err != nil || total != 2 || len(items) != 1 || items[0].Name != "Alpha" {
		t.Fatalf("ListSheltersPage = %v, %d, %v", items, total, err)
	}

	random, err := RandomApprovedShelters(ctx, db, 6)
	if err != nil || len(random) != 2 {
		t.Fatalf("RandomApprovedShelters = %v, %v", random, err)
	}
}

func TestUserDonationsSum(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	u := seedUser(t, db, "donor")

	if err := AddUserDonations(ctx, db, u.ID, decimal.RequireFromString("10.50")); err != nil {
		t.Fatalf("AddUserDonations: %v", err)
	}
	if err := AddUserDonations(ctx, db, u.ID, decimal.RequireFromString("2.25")); err != nil {
		t.Fatalf("AddUserDonations: %v", err)
	}
	got, err := GetUserByEmail(ctx, db, "DONOR@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if !got.DonationsSum.Equal(decimal.RequireFromString("12.75")) {
		t.Fatalf("DonationsSum = %s", got.DonationsSum)
	}
	if err := SetUserRole(ctx, db, u.ID, domain.RoleModerator); err != nil {
		t.Fatalf("SetUserRole: %v", err)
	}
	if err := SetUserRole(ctx, db, "missing", domain.RoleUser); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
