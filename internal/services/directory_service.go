package services

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Lapkipomoshi/help-paw-backend/internal/access"
	"github.com/Lapkipomoshi/help-paw-backend/internal/domain"
	"github.com/Lapkipomoshi/help-paw-backend/internal/filter"
	"github.com/Lapkipomoshi/help-paw-backend/internal/repo"
)

// PetInput is the writable field set of a pet.
type PetInput struct {
	Name          string     `json:"name"`
	AnimalType    string     `json:"animal_type"`
	Sex           string     `json:"sex"`
	BirthDate     *time.Time `json:"birth_date"`
	About         string     `json:"about"`
	Breed         string     `json:"breed"`
	AdmissionDate *time.Time `json:"admission_date"`
	PhotoURL      string     `json:"photo"`
}

// PetService manages shelter pets.
type PetService struct {
	DB *gorm.DB
}

// ListForShelter lists the pets of an approved shelter that are still
// waiting for a home.
func (s *PetService) ListForShelter(ctx context.Context, shelterID string, p PageRequest) (*Page[domain.Pet], error) {
	if _, err := approvedShelter(ctx, s.DB, shelterID); err != nil {
		return nil, err
	}
	offset, limit := p.bounds()
	pets, total, err := repo.ListShelterPets(ctx, s.DB, shelterID, false, offset, limit)
	if err != nil {
		return nil, err
	}
	return newPage(pets, total), nil
}

// List is the public catalogue: pets awaiting adoption across approved
// shelters, optionally narrowed by animal type and name.
func (s *PetService) List(ctx context.Context, opts filter.PetOptions, p PageRequest) (*Page[domain.Pet], error) {
	offset, limit := p.bounds()
	pets, total, err := repo.ListPets(ctx, s.DB, opts.Query(), offset, limit)
	if err != nil {
		return nil, err
	}
	return newPage(pets, total), nil
}

// ListOwn lists every pet of the actor's shelter, adopted ones included.
func (s *PetService) ListOwn(ctx context.Context, a *access.Actor, p PageRequest) (*Page[domain.Pet], error) {
	sh, err := ownShelter(ctx, s.DB, a)
	if err != nil {
		return nil, err
	}
	offset, limit := p.bounds()
	pets, total, err := repo.ListShelterPets(ctx, s.DB, sh.ID, true, offset, limit)
	if err != nil {
		return nil, err
	}
	return newPage(pets, total), nil
}

func (s *PetService) Get(ctx context.Context, id string) (*domain.Pet, error) {
	p, err := repo.GetPet(ctx, s.DB, id)
	return p, missing(err, "pet")
}

func (s *PetService) Create(ctx context.Context, a *access.Actor, in PetInput) (*domain.Pet, error) {
	sh, err := ownShelter(ctx, s.DB, a)
	if err != nil {
		return nil, err
	}
	if err := s.validate(ctx, &in); err != nil {
		return nil, err
	}
	p := &domain.Pet{ShelterID: sh.ID}
	applyPetInput(p, in)
	if err := repo.CreatePet(ctx, s.DB, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PetService) Update(ctx context.Context, a *access.Actor, id string, in PetInput) (*domain.Pet, error) {
	sh, err := ownShelter(ctx, s.DB, a)
	if err != nil {
		return nil, err
	}
	p, err := repo.GetShelterPet(ctx, s.DB, sh.ID, id)
	if err != nil {
		return nil, missing(err, "pet")
	}
	if err := s.validate(ctx, &in); err != nil {
		return nil, err
	}
	applyPetInput(p, in)
	if err := repo.SavePet(ctx, s.DB, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ToggleAdopted negates the adoption flag and returns the new value.
func (s *PetService) ToggleAdopted(ctx context.Context, a *access.Actor, id string) (bool, error) {
	sh, err := ownShelter(ctx, s.DB, a)
	if err != nil {
		return false, err
	}
	adopted, err := repo.TogglePetAdopted(ctx, s.DB, sh.ID, id)
	return adopted, missing(err, "pet")
}

func (s *PetService) Delete(ctx context.Context, a *access.Actor, id string) error {
	sh, err := ownShelter(ctx, s.DB, a)
	if err != nil {
		return err
	}
	return missing(repo.DeletePet(ctx, s.DB, sh.ID, id), "pet")
}

func (s *PetService) validate(ctx context.Context, in *PetInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.AnimalType = strings.TrimSpace(in.AnimalType)
	in.Sex = strings.ToLower(strings.TrimSpace(in.Sex))
	f := fieldErrors{}
	if required(f, "name", in.Name) {
		maxRunes(f, "name", in.Name, 30)
	}
	maxRunes(f, "breed", in.Breed, 50)
	switch in.Sex {
	case domain.SexMale, domain.SexFemale, domain.SexOther:
	default:
		f.add("sex", "must be one of male, female, other")
	}
	now := time.Now().UTC()
	if in.BirthDate != nil && in.BirthDate.After(now) {
		f.add("birth_date", "must not be in the future")
	}
	if in.AdmissionDate != nil && in.AdmissionDate.After(now) {
		f.add("admission_date", "must not be in the future")
	}
	if required(f, "animal_type", in.AnimalType) {
		types, err := repo.AnimalTypesBySlugs(ctx, s.DB, []string{in.AnimalType})
		if err != nil {
			return err
		}
		if len(types) == 0 {
			f.add("animal_type", "unknown animal type")
		}
	}
	return f.err()
}

func applyPetInput(p *domain.Pet, in PetInput) {
	p.Name = in.Name
	p.AnimalType = in.AnimalType
	p.Sex = in.Sex
	p.BirthDate = in.BirthDate
	p.About = in.About
	p.Breed = strings.TrimSpace(in.Breed)
	p.AdmissionDate = in.AdmissionDate
	p.PhotoURL = strings.TrimSpace(in.PhotoURL)
}

// TaskInput is the writable field set of a task.
type TaskInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsEmergency bool   `json:"is_emergency"`
}

func (in *TaskInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	f := fieldErrors{}
	if required(f, "name", in.Name) {
		maxRunes(f, "name", in.Name, 50)
	}
	return f.err()
}

// TaskService manages shelter tasks.
type TaskService struct {
	DB *gorm.DB
}

// ListForShelter lists an approved shelter's tasks, active ones first.
func (s *TaskService) ListForShelter(ctx context.Context, shelterID string) ([]domain.Task, error) {
	if _, err := approvedShelter(ctx, s.DB, shelterID); err != nil {
		return nil, err
	}
	return tasksOrEmpty(repo.ListShelterTasks(ctx, s.DB, shelterID))
}

func (s *TaskService) ListOwn(ctx context.Context, a *access.Actor) ([]domain.Task, error) {
	sh, err := ownShelter(ctx, s.DB, a)
	if err != nil {
		return nil, err
	}
	return tasksOrEmpty(repo.ListShelterTasks(ctx, s.DB, sh.ID))
}

func (s *TaskService) Create(ctx context.Context, a *access.Actor, in TaskInput) (*domain.Task, error) {
	sh, err := ownShelter(ctx, s.DB, a)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	t := &domain.Task{ShelterID: sh.ID, Name: in.Name, Description: in.Description, IsEmergency: in.IsEmergency}
	if err := repo.CreateTask(ctx, s.DB, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TaskService) Update(ctx context.Context, a *access.Actor, id string, in TaskInput) (*domain.Task, error) {
	sh, err := ownShelter(ctx, s.DB, a)
	if err != nil {
		return nil, err
	}
	t, err := repo.GetShelterTask(ctx, s.DB, sh.ID, id)
	if err != nil {
		return nil, missing(err, "task")
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	t.Name, t.Description, t.IsEmergency = in.Name, in.Description, in.IsEmergency
	if err := repo.SaveTask(ctx, s.DB, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ToggleFinished negates the finished flag and returns the new value.
func (s *TaskService) ToggleFinished(ctx context.Context, a *access.Actor, id string) (bool, error) {
	sh, err := ownShelter(ctx, s.DB, a)
	if err != nil {
		return false, err
	}
	done, err := repo.ToggleTaskFinished(ctx, s.DB, sh.ID, id)
	return done, missing(err, "task")
}

func (s *TaskService) Delete(ctx context.Context, a *access.Actor, id string) error {
	sh, err := ownShelter(ctx, s.DB, a)
	if err != nil {
		return err
	}
	return missing(repo.DeleteTask(ctx, s.DB, sh.ID, id), "task")
}

func tasksOrEmpty(ts []domain.Task, err error) ([]domain.Task, error) {
	if err != nil {
		return nil, err
	}
	if ts == nil {
		ts = []domain.Task{}
	}
	return ts, nil
}

// VacancyInput is the writable field set of a vacancy.
type VacancyInput struct {
	Position    string `json:"position"`
	Description string `json:"description"`
	Salary      int    `json:"salary"`
	IsNDFL      bool   `json:"is_ndfl"`
	Education   string `json:"education"`
	Schedule    string `json:"schedule"`
}

func (in *VacancyInput) validate() error {
	in.Position = strings.TrimSpace(in.Position)
	f := fieldErrors{}
	if required(f, "position", in.Position) {
		maxRunes(f, "position", in.Position, 50)
	}
	if in.Salary < 0 {
		f.add("salary", "must not be negative")
	}
	maxRunes(f, "education", in.Education, 50)
	maxRunes(f, "schedule", in.Schedule, 50)
	return f.err()
}

func (in VacancyInput) apply(v *domain.Vacancy) {
	v.Position = in.Position
	v.Description = in.Description
	v.Salary = in.Salary
	v.IsNDFL = in.IsNDFL
	v.Education = strings.TrimSpace(in.Education)
	v.Schedule = strings.TrimSpace(in.Schedule)
}

// VacancyService manages platform and shelter vacancies. Listings hide
// closed vacancies.
type VacancyService struct {
	DB *gorm.DB
}

// List returns every open vacancy.
func (s *VacancyService) List(ctx context.Context, p PageRequest) (*Page[domain.Vacancy], error) {
	return s.list(ctx, repo.VacancyScope{}, p)
}

// Platform returns open vacancies of the platform itself.
func (s *VacancyService) Platform(ctx context.Context, p PageRequest) (*Page[domain.Vacancy], error) {
	return s.list(ctx, repo.VacancyScope{PlatformOnly: true}, p)
}

// ForShelter returns the open vacancies of an approved shelter.
func (s *VacancyService) ForShelter(ctx context.Context, shelterID string, p PageRequest) (*Page[domain.Vacancy], error) {
	if _, err := approvedShelter(ctx, s.DB, shelterID); err != nil {
		return nil, err
	}
	return s.list(ctx, repo.VacancyScope{ShelterID: shelterID}, p)
}

// ListOwn returns the actor's shelter vacancies, closed ones included.
func (s *VacancyService) ListOwn(ctx context.Context, a *access.Actor, p PageRequest) (*Page[domain.Vacancy], error) {
	sh, err := ownShelter(ctx, s.DB, a)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, repo.VacancyScope{ShelterID: sh.ID, WithClosed: true}, p)
}

func (s *VacancyService) Get(ctx context.Context, id string) (*domain.Vacancy, error) {
	v, err := repo.GetVacancy(ctx, s.DB, id)
	return v, missing(err, "vacancy")
}

// CreatePlatform adds a platform vacancy. Staff only.
func (s *VacancyService) CreatePlatform(ctx context.Context, a *access.Actor, in VacancyInput) (*domain.Vacancy, error) {
	if err := access.Check(access.StaffOnly, a, access.Create); err != nil {
		return nil, err
	}
	return s.create(ctx, nil, in)
}

// UpdatePlatform edits a platform vacancy. Staff only.
func (s *VacancyService) UpdatePlatform(ctx context.Context, a *access.Actor, id string, in VacancyInput) (*domain.Vacancy, error) {
	if err := access.Check(access.StaffOnly, a, access.Update); err != nil {
		return nil, err
	}
	return s.update(ctx, "", id, in)
}

// DeletePlatform removes a platform vacancy. Staff only.
func (s *VacancyService) DeletePlatform(ctx context.Context, a *access.Actor, id string) error {
	if err := access.Check(access.StaffOnly, a, access.Delete); err != nil {
		return err
	}
	return missing(repo.DeleteVacancy(ctx, s.DB, "", id), "vacancy")
}

// ToggleClosed negates the closed flag of any vacancy. Staff only.
func (s *VacancyService) ToggleClosed(ctx context.Context, a *access.Actor, id string) (bool, error) {
	if err := access.Check(access.StaffOnly, a, access.Update); err != nil {
		return false, err
	}
	closed, err := repo.ToggleVacancyClosed(ctx, s.DB, id)
	return closed, missing(err, "vacancy")
}

func (s *VacancyService) CreateOwn(ctx context.Context, a *access.Actor, in VacancyInput) (*domain.Vacancy, error) {
	sh, err := ownShelter(ctx, s.DB, a)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, &sh.ID, in)
}

func (s *VacancyService) UpdateOwn(ctx context.Context, a *access.Actor, id string, in VacancyInput) (*domain.Vacancy, error) {
	sh, err := ownShelter(ctx, s.DB, a)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, sh.ID, id, in)
}

func (s *VacancyService) DeleteOwn(ctx context.Context, a *access.Actor, id string) error {
	sh, err := ownShelter(ctx, s.DB, a)
	if err != nil {
		return err
	}
	return missing(repo.DeleteVacancy(ctx, s.DB, sh.ID, id), "vacancy")
}

func (s *VacancyService) list(ctx context.Context, scope repo.VacancyScope, p PageRequest) (*Page[domain.Vacancy], error) {
	offset, limit := p.bounds()
	vs, total, err := repo.ListVacancies(ctx, s.DB, scope, offset, limit)
	if err != nil {
		return nil, err
	}
	return newPage(vs, total), nil
}

func (s *VacancyService) create(ctx context.Context, shelterID *string, in VacancyInput) (*domain.Vacancy, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	v := &domain.Vacancy{ShelterID: shelterID}
	in.apply(v)
	if err := repo.CreateVacancy(ctx, s.DB, v); err != nil {
		return nil, err
	}
	return v, nil
}

// update edits vacancy id within shelterID, or among platform vacancies
// when shelterID is empty.
func (s *VacancyService) update(ctx context.Context, shelterID, id string, in VacancyInput) (*domain.Vacancy, error) {
	v, err := repo.GetVacancy(ctx, s.DB, id)
	if err != nil {
		return nil, missing(err, "vacancy")
	}
	if (shelterID == "" && v.ShelterID != nil) || (shelterID != "" && (v.ShelterID == nil || *v.ShelterID != shelterID)) {
		return nil, notFound("vacancy")
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	in.apply(v)
	if err := repo.SaveVacancy(ctx, s.DB, v); err != nil {
		return nil, err
	}
	return v, nil
}
