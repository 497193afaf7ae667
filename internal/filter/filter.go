// Package filter narrows the public shelter collection according to query
// parameters and the requesting actor.
package filter

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/Lapkipomoshi/help-paw-backend/internal/access"
	"github.com/Lapkipomoshi/help-paw-backend/internal/domain"
	"github.com/Lapkipomoshi/help-paw-backend/internal/repo"
)

// UrgencyStrategy classifies a shelter's task statistics into a bucket.
type UrgencyStrategy interface {
	Classify(repo.TaskStats) domain.Bucket
}

// TaskUrgency is the default strategy: red when an emergency task is open,
// yellow when only regular tasks are open, green otherwise.
type TaskUrgency struct{}

func (TaskUrgency) Classify(s repo.TaskStats) domain.Bucket {
	switch {
	case s.ActiveEmergency > 0:
		return domain.BucketRed
	case s.ActiveRegular > 0:
		return domain.BucketYellow
	default:
		return domain.BucketGreen
	}
}

// ShelterOptions are the parsed shelter list filters. Nil pointers and empty
// strings mean "not filtered".
type ShelterOptions struct {
	Warnings    *domain.Bucket
	IsFavourite *bool
	IsHelped    *bool
	Search      string
	AnimalType  string
}

// ParseError names the offending query parameter.
type ParseError struct {
	Param string
	Value string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid value %q for %s", e.Value, e.Param)
}

// ParseShelterOptions reads the recognised parameters from q.
func ParseShelterOptions(q url.Values) (ShelterOptions, error) {
	var opts ShelterOptions
	if v := strings.TrimSpace(q.Get("warnings")); v != "" {
		b, err := domain.ParseBucket(v)
		if err != nil {
			return opts, &ParseError{Param: "warnings", Value: v}
		}
		opts.Warnings = &b
	}
	for _, p := range []struct {
		name string
		dst  **bool
	}{{"is_favourite", &opts.IsFavourite}, {"is_helped", &opts.IsHelped}} {
		v := strings.TrimSpace(q.Get(p.name))
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, &ParseError{Param: p.name, Value: v}
		}
		*p.dst = &b
	}
	opts.Search = strings.TrimSpace(q.Get("search"))
	opts.AnimalType = strings.ToLower(strings.TrimSpace(q.Get("animal_type")))
	return opts, nil
}

// PetOptions are the public pet catalogue filters.
type PetOptions struct {
	AnimalType string
	Search     string
}

// ParsePetOptions reads animal_type and search from q.
func ParsePetOptions(q url.Values) PetOptions {
	return PetOptions{
		AnimalType: strings.ToLower(strings.TrimSpace(q.Get("animal_type"))),
		Search:     strings.TrimSpace(q.Get("search")),
	}
}

// Query turns the options into a repo query.
func (o PetOptions) Query() repo.PetQuery {
	pq := repo.PetQuery{AnimalType: o.AnimalType}
	if o.Search != "" {
		pq.NameLike = Contains(o.Search)
	}
	return pq
}

// Contains builds a case-insensitive substring LIKE pattern for s, escaped
// with '\'. Match it against a LOWER(...) column.
func Contains(s string) string {
	return "%" + escapeLike(cases.Lower(language.Und).String(s)) + "%"
}

// Engine applies ShelterOptions to a GORM query.
type Engine struct {
	Urgency UrgencyStrategy
}

// New returns an Engine using s, or TaskUrgency when s is nil.
func New(s UrgencyStrategy) *Engine {
	if s == nil {
		s = TaskUrgency{}
	}
	return &Engine{Urgency: s}
}

// Apply builds the filtered query over approved shelters. empty is true when
// the filters can be decided to match nothing without querying, for example
// favourites requested by an anonymous actor.
func (e *Engine) Apply(ctx context.Context, db *gorm.DB, actor *access.Actor, opts ShelterOptions) (*gorm.DB, bool, error) {
	q := db.WithContext(ctx).Model(&domain.Shelter{}).Where("shelters.is_approved = ?", true)

	if opts.IsFavourite != nil {
		if !actor.Authenticated() {
			return q, true, nil
		}
		sub := repo.SubscribedShelters(db.WithContext(ctx), actor.ID)
		if *opts.IsFavourite {
			q = q.Where("shelters.id IN (?)", sub)
		} else {
			q = q.Where("shelters.id NOT IN (?)", sub)
		}
	}

	if opts.IsHelped != nil {
		if !actor.Authenticated() {
			return q, true, nil
		}
		sub := repo.HelpedShelters(db.WithContext(ctx), actor.ID)
		if *opts.IsHelped {
			q = q.Where("shelters.id IN (?)", sub)
		} else {
			q = q.Where("shelters.id NOT IN (?)", sub)
		}
	}

	if opts.Search != "" {
		like := Contains(opts.Search)
		q = q.Where("(LOWER(shelters.name) LIKE ? ESCAPE '\\' OR LOWER(shelters.address) LIKE ? ESCAPE '\\')", like, like)
	}

	if opts.AnimalType != "" {
		q = q.Where("shelters.id IN (?)",
			db.WithContext(ctx).Table("shelter_animal_types").
				Select("shelter_id").
				Where("animal_type_slug = ?", opts.AnimalType))
	}

	if opts.Warnings != nil {
		ids, err := e.idsInBucket(ctx, db, *opts.Warnings)
		if err != nil {
			return nil, false, err
		}
		if len(ids) == 0 {
			return q, true, nil
		}
		q = q.Where("shelters.id IN ?", ids)
	}
	return q, false, nil
}

// idsInBucket classifies every approved shelter and returns those in b.
func (e *Engine) idsInBucket(ctx context.Context, db *gorm.DB, b domain.Bucket) ([]string, error) {
	all, err := repo.ApprovedShelterIDs(ctx, db)
	if err != nil {
		return nil, err
	}
	stats, err := repo.ActiveTaskStats(ctx, db)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, id := range all {
		if e.Urgency.Classify(stats[id]) == b {
			out = append(out, id)
		}
	}
	return out, nil
}

// Buckets computes the warnings field for each of ids.
func (e *Engine) Buckets(ctx context.Context, db *gorm.DB, ids ...string) (map[string]domain.Bucket, error) {
	out := make(map[string]domain.Bucket, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	stats, err := repo.ActiveTaskStats(ctx, db, ids...)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = e.Urgency.Classify(stats[id])
	}
	return out, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
