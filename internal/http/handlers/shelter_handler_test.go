package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lapkipomoshi/help-paw-backend/internal/access"
	"github.com/Lapkipomoshi/help-paw-backend/internal/domain"
	"github.com/Lapkipomoshi/help-paw-backend/internal/filter"
	"github.com/Lapkipomoshi/help-paw-backend/internal/services"
)

func TestListShelters_ParsesFiltersAndPaging(t *testing.T) {
	var (
		gotOpts filter.ShelterOptions
		gotPage services.PageRequest
		gotWho  *access.Actor
	)
	h := New(Services{Shelters: stubShelters{
		list: func(_ context.Context, a *access.Actor, opts filter.ShelterOptions, p services.PageRequest) (*services.Page[services.ShelterListItem], error) {
			gotOpts, gotPage, gotWho = opts, p, a
			return &services.Page[services.ShelterListItem]{Count: 1, Results: []services.ShelterListItem{{ID: "s1", Name: "Лапки"}}}, nil
		},
	}})
	r := newTestEngine(t)
	r.GET("/shelters", h.ListShelters)

	w := do(r, http.MethodGet, "/shelters?is_favourite=true&warnings=red&search=%20paws%20&page=2&page_size=5", "", testActorHeader, "u1:user")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.NotNil(t, gotOpts.IsFavourite)
	assert.True(t, *gotOpts.IsFavourite)
	require.NotNil(t, gotOpts.Warnings)
	assert.Equal(t, domain.BucketRed, *gotOpts.Warnings)
	assert.Equal(t, "paws", gotOpts.Search)
	assert.Equal(t, services.PageRequest{Page: 2, Size: 5}, gotPage)
	assert.Equal(t, "u1", gotWho.ID)

	var page services.Page[services.ShelterListItem]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.EqualValues(t, 1, page.Count)
	assert.Equal(t, "s1", page.Results[0].ID)
}

func TestListShelters_BadFilterIs400(t *testing.T) {
	h := New(Services{Shelters: stubShelters{}})
	r := newTestEngine(t)
	r.GET("/shelters", h.ListShelters)

	w := do(r, http.MethodGet, "/shelters?is_helped=perhaps", "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ErrCodeInvalidQuery, resp.Code)
	assert.Contains(t, resp.Fields, "is_helped")
}

func TestSheltersOnMain_DefaultLimit(t *testing.T) {
	var got []int
	h := New(Services{Shelters: stubShelters{
		onMain: func(_ context.Context, _ *access.Actor, limit int) ([]services.ShelterListItem, error) {
			got = append(got, limit)
			return []services.ShelterListItem{}, nil
		},
	}})
	r := newTestEngine(t)
	r.GET("/shelters/on-main", h.SheltersOnMain)

	require.Equal(t, http.StatusOK, do(r, http.MethodGet, "/shelters/on-main", "").Code)
	require.Equal(t, http.StatusOK, do(r, http.MethodGet, "/shelters/on-main?limit=3", "").Code)
	assert.Equal(t, []int{services.DefaultOnMainLimit, 3}, got)
}

func TestDeleteMyShelter_ReportsResult(t *testing.T) {
	h := New(Services{Shelters: stubShelters{
		removeOwn: func(context.Context, *access.Actor) (services.RemovalResult, error) {
			return services.Unapproved, nil
		},
	}})
	r := newTestEngine(t)
	r.DELETE("/my-shelter", h.DeleteMyShelter)

	w := do(r, http.MethodDelete, "/my-shelter", "", testActorHeader, "o1:shelter_owner")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"result":"unapproved"}`, w.Body.String())
}

func TestAddFavourite_NoContentAndErrors(t *testing.T) {
	h := New(Services{Shelters: stubShelters{
		addFav: func(_ context.Context, a *access.Actor, id string) error {
			if !a.Authenticated() {
				return access.ErrUnauthenticated
			}
			if id != "s1" {
				return &services.NotFoundError{Resource: "shelter"}
			}
			return nil
		},
	}})
	r := newTestEngine(t)
	r.POST("/shelters/:id/favourite", h.AddFavourite)

	assert.Equal(t, http.StatusNoContent, do(r, http.MethodPost, "/shelters/s1/favourite", "", testActorHeader, "u1:user").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/shelters/nope/favourite", "", testActorHeader, "u1:user").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/shelters/s1/favourite", "").Code)
}

func TestCreateAnimalType_BindsBody(t *testing.T) {
	h := New(Services{Shelters: stubShelters{
		createType: func(_ context.Context, _ *access.Actor, slug, name string) (*domain.AnimalType, error) {
			return &domain.AnimalType{Slug: slug, Name: name}, nil
		},
	}})
	r := newTestEngine(t)
	r.POST("/animal-types", h.CreateAnimalType)

	w := do(r, http.MethodPost, "/animal-types", `{"slug":"cats","name":"Кошки"}`, testActorHeader, "a1:admin")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"cats"`)

	w = do(r, http.MethodPost, "/animal-types", `{not json`, testActorHeader, "a1:admin")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdoptPet_ReturnsNewFlag(t *testing.T) {
	state := false
	h := New(Services{Pets: stubPets{
		toggle: func(context.Context, *access.Actor, string) (bool, error) {
			state = !state
			return state, nil
		},
	}})
	r := newTestEngine(t)
	r.POST("/my-shelter/pets/:id/adopt", h.AdoptPet)

	w := do(r, http.MethodPost, "/my-shelter/pets/p1/adopt", "", testActorHeader, "o1:shelter_owner")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"is_adopted":true}`, w.Body.String())

	w = do(r, http.MethodPost, "/my-shelter/pets/p1/adopt", "", testActorHeader, "o1:shelter_owner")
	assert.JSONEq(t, `{"is_adopted":false}`, w.Body.String())
}

func TestListPets_PassesCatalogueFilters(t *testing.T) {
	var gotOpts filter.PetOptions
	var gotPage services.PageRequest
	h := New(Services{Pets: stubPets{
		list: func(_ context.Context, opts filter.PetOptions, p services.PageRequest) (*services.Page[domain.Pet], error) {
			gotOpts, gotPage = opts, p
			return &services.Page[domain.Pet]{Count: 1, Results: []domain.Pet{{ID: "p1", Name: "Murka"}}}, nil
		},
	}})
	r := newTestEngine(t)
	r.GET("/pets", h.ListPets)

	w := do(r, http.MethodGet, "/pets?animal_type=%20Cats%20&search=%20mur%20&page=2&page_size=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, filter.PetOptions{AnimalType: "cats", Search: "mur"}, gotOpts)
	assert.Equal(t, services.PageRequest{Page: 2, Size: 5}, gotPage)
	assert.Contains(t, w.Body.String(), `"count":1`)
	assert.Contains(t, w.Body.String(), `"name":"Murka"`)
}
