package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/Lapkipomoshi/help-paw-backend/internal/access"
	"github.com/Lapkipomoshi/help-paw-backend/internal/domain"
	"github.com/Lapkipomoshi/help-paw-backend/internal/filter"
	"github.com/Lapkipomoshi/help-paw-backend/internal/geocode"
	"github.com/Lapkipomoshi/help-paw-backend/internal/repo"
)

// DefaultOnMainLimit is the size of the main-page shelter sample.
const DefaultOnMainLimit = 6

// RemovalResult tells what removing an owner's shelter did.
type RemovalResult string

const (
	// Unapproved: the shelter was approved and is now hidden pending review.
	Unapproved RemovalResult = "unapproved"
	// Deleted: the shelter was removed and its owner demoted.
	Deleted RemovalResult = "deleted"
)

// ShelterInput is the writable field set of a shelter.
type ShelterInput struct {
	LegalOwnerName  string   `json:"legal_owner_name"`
	TIN             string   `json:"tin"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	AnimalTypes     []string `json:"animal_types"`
	LogoURL         string   `json:"logo"`
	ProfileImageURL string   `json:"profile_image"`
	Address         string   `json:"address"`
	PhoneNumber     string   `json:"phone_number"`
	WorkingFromHour int      `json:"working_from_hour"`
	WorkingToHour   int      `json:"working_to_hour"`
	Email           string   `json:"email"`
	WebSite         string   `json:"web_site"`
	VKPage          string   `json:"vk_page"`
	OKPage          string   `json:"ok_page"`
	Telegram        string   `json:"telegram"`
}

// ShelterListItem is the short list shape of a shelter.
type ShelterListItem struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Address         string        `json:"address"`
	WorkingFromHour int           `json:"working_from_hour"`
	WorkingToHour   int           `json:"working_to_hour"`
	Logo            string        `json:"logo"`
	ProfileImage    string        `json:"profile_image"`
	Longitude       *float64      `json:"longitude"`
	Latitude        *float64      `json:"latitude"`
	Warnings        domain.Bucket `json:"warnings"`
	IsFavourite     bool          `json:"is_favourite"`
}

// ShelterDetail is the full read shape with counters computed at read time.
type ShelterDetail struct {
	domain.Shelter
	MoneyCollected decimal.Decimal `json:"money_collected"`
	AnimalsAdopted int64           `json:"animals_adopted"`
	CountPets      int64           `json:"count_pets"`
	CountNews      int64           `json:"count_news"`
	CountVacancies int64           `json:"count_vacancies"`
	CountTasks     int64           `json:"count_tasks"`
	Warnings       domain.Bucket   `json:"warnings"`
	IsFavourite    bool            `json:"is_favourite"`
}

// ShelterService manages shelters, favourites and animal types.
type ShelterService struct {
	DB       *gorm.DB
	Geocoder geocode.Geocoder
	Filter   *filter.Engine
}

func (s *ShelterService) engine() *filter.Engine {
	if s.Filter == nil {
		return filter.New(nil)
	}
	return s.Filter
}

// Register creates an unapproved shelter owned by the actor and promotes
// the actor to shelter owner in the same transaction.
func (s *ShelterService) Register(ctx context.Context, a *access.Actor, in ShelterInput) (*domain.Shelter, error) {
	ctx, span := otel.Tracer("services/ShelterService").Start(ctx, "Register",
		trace.WithAttributes(attribute.String("user.id", actorID(a))))
	defer span.End()

	if !a.Authenticated() {
		return nil, ErrUnauthenticated
	}
	if !a.Role.IsOrdinary() {
		return nil, invalid(CodeAlreadyOwner, "only a regular user can register a shelter")
	}
	exists, err := repo.ShelterExistsForOwner(ctx, s.DB, a.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, invalid(CodeAlreadyOwner, "user already owns a shelter")
	}

	in = trimShelterInput(in)
	if err := validateShelter(in); err != nil {
		return nil, err
	}
	types, err := s.animalTypes(ctx, in.AnimalTypes)
	if err != nil {
		return nil, err
	}
	point, err := s.locate(ctx, in.Address)
	if err != nil {
		return nil, err
	}

	sh := &domain.Shelter{OwnerID: a.ID, AnimalTypes: types}
	applyShelterInput(sh, in)
	setPoint(sh, point)

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateShelter(ctx, tx, sh); err != nil {
			return err
		}
		return repo.SetUserRole(ctx, tx, a.ID, domain.RoleShelterOwner)
	})
	if err != nil {
		var dup *repo.DuplicateError
		if errors.As(err, &dup) && dup.Column == "owner_id" {
			return nil, fmt.Errorf("register shelter: %w", ErrConflict)
		}
		return nil, duplicateField(err)
	}
	span.SetAttributes(attribute.String("shelter.id", sh.ID))
	log.Info().Str("shelter_id", sh.ID).Str("owner_id", a.ID).Msg("shelter registered")
	return sh, nil
}

// RemoveOwn hides an approved shelter, or deletes an unapproved one and
// demotes its owner.
func (s *ShelterService) RemoveOwn(ctx context.Context, a *access.Actor) (RemovalResult, error) {
	sh, err := ownShelter(ctx, s.DB, a)
	if err != nil {
		return "", err
	}
	var res RemovalResult
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if sh.IsApproved {
			res = Unapproved
			return repo.SetShelterApproved(ctx, tx, sh.ID, false)
		}
		res = Deleted
		return deleteAndDemote(ctx, tx, sh)
	})
	if err != nil {
		return "", err
	}
	log.Info().Str("shelter_id", sh.ID).Str("result", string(res)).Msg("shelter removed by owner")
	return res, nil
}

// Delete hard-deletes a shelter and demotes its owner. Staff only.
func (s *ShelterService) Delete(ctx context.Context, a *access.Actor, id string) error {
	if err := access.Check(access.StaffOnly, a, access.Delete); err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sh, err := repo.GetShelter(ctx, tx, id)
		if errors.Is(err, repo.ErrNotFound) {
			return notFound("shelter")
		}
		if err != nil {
			return err
		}
		return deleteAndDemote(ctx, tx, sh)
	})
}

// Approve publishes a shelter. Staff only.
func (s *ShelterService) Approve(ctx context.Context, a *access.Actor, id string) error {
	if err := access.Check(access.StaffOnly, a, access.Update); err != nil {
		return err
	}
	err := repo.SetShelterApproved(ctx, s.DB, id, true)
	if errors.Is(err, repo.ErrNotFound) {
		return notFound("shelter")
	}
	return err
}

// UpdateOwn replaces the writable fields of the actor's shelter. The address
// is geocoded again only when it changed.
func (s *ShelterService) UpdateOwn(ctx context.Context, a *access.Actor, in ShelterInput) (*domain.Shelter, error) {
	ctx, span := otel.Tracer("services/ShelterService").Start(ctx, "UpdateOwn")
	defer span.End()

	sh, err := ownShelter(ctx, s.DB, a)
	if err != nil {
		return nil, err
	}
	in = trimShelterInput(in)
	if err := validateShelter(in); err != nil {
		return nil, err
	}
	types, err := s.animalTypes(ctx, in.AnimalTypes)
	if err != nil {
		return nil, err
	}
	if in.Address != sh.Address {
		point, err := s.locate(ctx, in.Address)
		if err != nil {
			return nil, err
		}
		setPoint(sh, point)
	}
	applyShelterInput(sh, in)
	if err := repo.UpdateShelter(ctx, s.DB, sh, types); err != nil {
		return nil, duplicateField(err)
	}
	return sh, nil
}

// List returns a page of approved shelters matching opts.
func (s *ShelterService) List(ctx context.Context, a *access.Actor, opts filter.ShelterOptions, p PageRequest) (*Page[ShelterListItem], error) {
	ctx, span := otel.Tracer("services/ShelterService").Start(ctx, "List")
	defer span.End()

	q, empty, err := s.engine().Apply(ctx, s.DB, a, opts)
	if err != nil {
		return nil, err
	}
	if empty {
		return emptyPage[ShelterListItem](), nil
	}
	offset, limit := p.bounds()
	shelters, total, err := repo.ListSheltersPage(ctx, q, offset, limit)
	if err != nil {
		return nil, err
	}
	items, err := s.listItems(ctx, a, shelters)
	if err != nil {
		return nil, err
	}
	return newPage(items, total), nil
}

// OnMain returns a random sample of approved shelters.
func (s *ShelterService) OnMain(ctx context.Context, a *access.Actor, limit int) ([]ShelterListItem, error) {
	if limit <= 0 {
		limit = DefaultOnMainLimit
	}
	shelters, err := repo.RandomApprovedShelters(ctx, s.DB, limit)
	if err != nil {
		return nil, err
	}
	return s.listItems(ctx, a, shelters)
}

// Get returns the detail view. Unapproved shelters are visible only to
// their owner and staff.
func (s *ShelterService) Get(ctx context.Context, a *access.Actor, id string) (*ShelterDetail, error) {
	sh, err := repo.GetShelter(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, notFound("shelter")
	}
	if err != nil {
		return nil, err
	}
	if !sh.IsApproved && !a.Is(sh.OwnerID) && !(a.Authenticated() && a.Role.IsStaff()) {
		return nil, notFound("shelter")
	}
	return s.detail(ctx, a, sh)
}

// Own returns the detail view of the actor's shelter.
func (s *ShelterService) Own(ctx context.Context, a *access.Actor) (*ShelterDetail, error) {
	sh, err := ownShelter(ctx, s.DB, a)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, a, sh)
}

// AddFavourite marks an approved shelter as a favourite of the actor.
func (s *ShelterService) AddFavourite(ctx context.Context, a *access.Actor, id string) error {
	if !a.Authenticated() {
		return ErrUnauthenticated
	}
	if _, err := approvedShelter(ctx, s.DB, id); err != nil {
		return err
	}
	return repo.AddSubscription(ctx, s.DB, a.ID, id)
}

// RemoveFavourite drops the favourite mark; a missing mark is not an error.
func (s *ShelterService) RemoveFavourite(ctx context.Context, a *access.Actor, id string) error {
	if !a.Authenticated() {
		return ErrUnauthenticated
	}
	return repo.RemoveSubscription(ctx, s.DB, a.ID, id)
}

// AnimalTypes lists every animal type.
func (s *ShelterService) AnimalTypes(ctx context.Context) ([]domain.AnimalType, error) {
	out, err := repo.ListAnimalTypes(ctx, s.DB)
	if out == nil {
		out = []domain.AnimalType{}
	}
	return out, err
}

// CreateAnimalType adds an animal type. The name is stored title-cased.
func (s *ShelterService) CreateAnimalType(ctx context.Context, a *access.Actor, slug, name string) (*domain.AnimalType, error) {
	if err := access.Check(access.StaffOnly, a, access.Create); err != nil {
		return nil, err
	}
	slug = strings.ToLower(strings.TrimSpace(slug))
	name = strings.TrimSpace(name)
	f := fieldErrors{}
	if required(f, "slug", slug) {
		matches(f, "slug", slug, slugRE, "lowercase letters, digits, - and _ only")
		maxRunes(f, "slug", slug, 20)
	}
	if required(f, "name", name) {
		maxRunes(f, "name", name, 15)
	}
	if err := f.err(); err != nil {
		return nil, err
	}
	t := &domain.AnimalType{Slug: slug, Name: cases.Title(language.Russian).String(name)}
	if err := repo.CreateAnimalType(ctx, s.DB, t); err != nil {
		return nil, duplicateField(err)
	}
	return t, nil
}

func (s *ShelterService) detail(ctx context.Context, a *access.Actor, sh *domain.Shelter) (*ShelterDetail, error) {
	c, err := repo.CountShelter(ctx, s.DB, sh.ID)
	if err != nil {
		return nil, err
	}
	buckets, err := s.engine().Buckets(ctx, s.DB, sh.ID)
	if err != nil {
		return nil, err
	}
	fav, err := repo.SubscribedShelterIDs(ctx, s.DB, actorID(a), []string{sh.ID})
	if err != nil {
		return nil, err
	}
	if sh.AnimalTypes == nil {
		sh.AnimalTypes = []domain.AnimalType{}
	}
	return &ShelterDetail{
		Shelter:        *sh,
		MoneyCollected: c.MoneyCollected,
		AnimalsAdopted: c.AnimalsAdopted,
		CountPets:      c.CountPets,
		CountNews:      c.CountNews,
		CountVacancies: c.CountVacancies,
		CountTasks:     c.CountTasks,
		Warnings:       buckets[sh.ID],
		IsFavourite:    fav[sh.ID],
	}, nil
}

func (s *ShelterService) listItems(ctx context.Context, a *access.Actor, shelters []domain.Shelter) ([]ShelterListItem, error) {
	ids := make([]string, len(shelters))
	for i, sh := range shelters {
		ids[i] = sh.ID
	}
	buckets, err := s.engine().Buckets(ctx, s.DB, ids...)
	if err != nil {
		return nil, err
	}
	fav, err := repo.SubscribedShelterIDs(ctx, s.DB, actorID(a), ids)
	if err != nil {
		return nil, err
	}
	out := make([]ShelterListItem, len(shelters))
	for i, sh := range shelters {
		out[i] = ShelterListItem{
			ID:              sh.ID,
			Name:            sh.Name,
			Address:         sh.Address,
			WorkingFromHour: sh.WorkingFromHour,
			WorkingToHour:   sh.WorkingToHour,
			Logo:            sh.LogoURL,
			ProfileImage:    sh.ProfileImageURL,
			Longitude:       sh.Longitude,
			Latitude:        sh.Latitude,
			Warnings:        buckets[sh.ID],
			IsFavourite:     fav[sh.ID],
		}
	}
	return out, nil
}

func (s *ShelterService) animalTypes(ctx context.Context, slugs []string) ([]domain.AnimalType, error) {
	types, err := repo.AnimalTypesBySlugs(ctx, s.DB, slugs)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(types))
	for _, t := range types {
		known[t.Slug] = true
	}
	for _, slug := range slugs {
		if !known[slug] {
			return nil, invalidField("animal_types", fmt.Sprintf("unknown animal type %q", slug))
		}
	}
	return types, nil
}

// locate geocodes address; an unconfigured geocoder leaves coordinates empty.
func (s *ShelterService) locate(ctx context.Context, address string) (*geocode.Point, error) {
	if s.Geocoder == nil {
		return nil, nil
	}
	p, err := s.Geocoder.Lookup(ctx, address)
	if err != nil {
		log.Warn().Err(err).Str("address", address).Msg("geocoding failed")
		trace.SpanFromContext(ctx).RecordError(err)
		return nil, fmt.Errorf("geocode: %w", ErrUnavailable)
	}
	return p, nil
}

func validateShelter(in ShelterInput) error {
	f := fieldErrors{}
	if required(f, "legal_owner_name", in.LegalOwnerName) {
		maxRunes(f, "legal_owner_name", in.LegalOwnerName, 60)
	}
	if required(f, "tin", in.TIN) {
		matches(f, "tin", in.TIN, tinRE, "must be 10 digits")
	}
	if required(f, "name", in.Name) {
		maxRunes(f, "name", in.Name, 60)
	}
	if required(f, "address", in.Address) {
		maxRunes(f, "address", in.Address, 255)
	}
	if required(f, "phone_number", in.PhoneNumber) {
		matches(f, "phone_number", in.PhoneNumber, phoneRE, "must look like +7XXXXXXXXXX")
	}
	if required(f, "email", in.Email) && !validEmail(in.Email) {
		f.add("email", "invalid email")
	}
	if in.WorkingFromHour < 0 || in.WorkingFromHour > 23 {
		f.add("working_from_hour", "must be between 0 and 23")
	}
	if in.WorkingToHour < 0 || in.WorkingToHour > 23 {
		f.add("working_to_hour", "must be between 0 and 23")
	}
	if in.WorkingFromHour >= in.WorkingToHour {
		f.add("working_to_hour", "must be later than working_from_hour")
	}
	maxRunes(f, "web_site", in.WebSite, 255)
	matches(f, "vk_page", in.VKPage, vkRE, "must start with https://vk.com/")
	matches(f, "ok_page", in.OKPage, okRE, "must start with https://ok.ru/")
	matches(f, "telegram", in.Telegram, telegramRE, "must start with https://t.me/")
	return f.err()
}

func trimShelterInput(in ShelterInput) ShelterInput {
	for _, p := range []*string{
		&in.LegalOwnerName, &in.TIN, &in.Name, &in.Address, &in.PhoneNumber,
		&in.WebSite, &in.VKPage, &in.OKPage, &in.Telegram, &in.LogoURL, &in.ProfileImageURL,
	} {
		*p = strings.TrimSpace(*p)
	}
	in.Email = normalizeEmail(in.Email)
	return in
}

func applyShelterInput(sh *domain.Shelter, in ShelterInput) {
	sh.LegalOwnerName = in.LegalOwnerName
	sh.TIN = in.TIN
	sh.Name = in.Name
	sh.Description = in.Description
	sh.LogoURL = in.LogoURL
	sh.ProfileImageURL = in.ProfileImageURL
	sh.Address = in.Address
	sh.PhoneNumber = in.PhoneNumber
	sh.WorkingFromHour = in.WorkingFromHour
	sh.WorkingToHour = in.WorkingToHour
	sh.Email = in.Email
	sh.WebSite = in.WebSite
	sh.VKPage = in.VKPage
	sh.OKPage = in.OKPage
	sh.Telegram = in.Telegram
}

func setPoint(sh *domain.Shelter, p *geocode.Point) {
	if p == nil {
		sh.Longitude, sh.Latitude = nil, nil
		return
	}
	lon, lat := p.Longitude, p.Latitude
	sh.Longitude, sh.Latitude = &lon, &lat
}

func deleteAndDemote(ctx context.Context, tx *gorm.DB, sh *domain.Shelter) error {
	if err := repo.DeleteShelter(ctx, tx, sh.ID); err != nil {
		return err
	}
	err := repo.SetUserRole(ctx, tx, sh.OwnerID, domain.RoleUser)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	return err
}

// ownShelter resolves the shelter owned by the actor.
func ownShelter(ctx context.Context, db *gorm.DB, a *access.Actor) (*domain.Shelter, error) {
	if err := access.Check(access.IsShelterOwner, a, access.Read); err != nil {
		return nil, err
	}
	sh, err := repo.GetShelterByOwner(ctx, db, a.ID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, notFound("shelter")
	}
	return sh, err
}

// approvedShelter loads a published shelter.
func approvedShelter(ctx context.Context, db *gorm.DB, id string) (*domain.Shelter, error) {
	sh, err := repo.GetShelter(ctx, db, id)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && !sh.IsApproved) {
		return nil, notFound("shelter")
	}
	return sh, err
}

func actorID(a *access.Actor) string {
	if !a.Authenticated() {
		return ""
	}
	return a.ID
}
