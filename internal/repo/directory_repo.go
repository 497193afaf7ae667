package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Lapkipomoshi/help-paw-backend/internal/domain"
)

// --- pets ---

func CreatePet(ctx context.Context, db *gorm.DB, p *domain.Pet) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return db.WithContext(ctx).Create(p).Error
}

func GetPet(ctx context.Context, db *gorm.DB, id string) (*domain.Pet, error) {
	var p domain.Pet
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// GetShelterPet fetches a pet only if it belongs to shelterID.
func GetShelterPet(ctx context.Context, db *gorm.DB, shelterID, id string) (*domain.Pet, error) {
	var p domain.Pet
	if err := db.WithContext(ctx).Where("id = ? AND shelter_id = ?", id, shelterID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// ListShelterPets pages through a shelter's pets. Adopted pets are skipped
// unless includeAdopted is set.
func ListShelterPets(ctx context.Context, db *gorm.DB, shelterID string, includeAdopted bool, offset, limit int) ([]domain.Pet, int64, error) {
	q := db.WithContext(ctx).Model(&domain.Pet{}).Where("shelter_id = ?", shelterID)
	if !includeAdopted {
		q = q.Where("is_adopted = ?", false)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []domain.Pet
	err := q.Order("created_at desc, id").Offset(offset).Limit(limit).Find(&out).Error
	return out, total, err
}

// PetQuery narrows the public pet catalogue. NameLike is a ready LIKE
// pattern matched against the lower-cased name with '\' as escape.
type PetQuery struct {
	AnimalType string
	NameLike   string
}

// ListPets pages through pets awaiting adoption in approved shelters.
func ListPets(ctx context.Context, db *gorm.DB, pq PetQuery, offset, limit int) ([]domain.Pet, int64, error) {
	q := db.WithContext(ctx).Model(&domain.Pet{}).
		Joins("JOIN shelters ON shelters.id = pets.shelter_id AND shelters.is_approved = ?", true).
		Where("pets.is_adopted = ?", false)
	if pq.AnimalType != "" {
		q = q.Where("pets.animal_type = ?", pq.AnimalType)
	}
	if pq.NameLike != "" {
		q = q.Where("LOWER(pets.name) LIKE ? ESCAPE '\\'", pq.NameLike)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []domain.Pet
	err := q.Select("pets.*").Order("pets.created_at desc, pets.id").Offset(offset).Limit(limit).Find(&out).Error
	return out, total, err
}

func SavePet(ctx context.Context, db *gorm.DB, p *domain.Pet) error {
	p.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).Omit("Shelter", "IsAdopted", "CreatedAt").Save(p).Error
}

// TogglePetAdopted negates is_adopted in a single statement and returns the
// stored value.
func TogglePetAdopted(ctx context.Context, db *gorm.DB, shelterID, id string) (bool, error) {
	var adopted bool
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Pet{}).
			Where("id = ? AND shelter_id = ?", id, shelterID).
			Updates(map[string]any{"is_adopted": gorm.Expr("NOT is_adopted"), "updated_at": time.Now().UTC()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Model(&domain.Pet{}).Select("is_adopted").Where("id = ?", id).Row().Scan(&adopted)
	})
	return adopted, err
}

func DeletePet(ctx context.Context, db *gorm.DB, shelterID, id string) error {
	return deleteScoped(ctx, db, &domain.Pet{}, shelterID, id)
}

// --- tasks ---

func CreateTask(ctx context.Context, db *gorm.DB, t *domain.Task) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return db.WithContext(ctx).Create(t).Error
}

func GetShelterTask(ctx context.Context, db *gorm.DB, shelterID, id string) (*domain.Task, error) {
	var t domain.Task
	if err := db.WithContext(ctx).Where("id = ? AND shelter_id = ?", id, shelterID).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// ListShelterTasks returns active tasks first, emergencies on top.
func ListShelterTasks(ctx context.Context, db *gorm.DB, shelterID string) ([]domain.Task, error) {
	var out []domain.Task
	err := db.WithContext(ctx).
		Where("shelter_id = ?", shelterID).
		Order("is_finished asc, is_emergency desc, created_at desc").
		Find(&out).Error
	return out, err
}

func SaveTask(ctx context.Context, db *gorm.DB, t *domain.Task) error {
	t.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).Omit("Shelter", "IsFinished", "CreatedAt").Save(t).Error
}

// ToggleTaskFinished negates is_finished and returns the stored value.
func ToggleTaskFinished(ctx context.Context, db *gorm.DB, shelterID, id string) (bool, error) {
	var finished bool
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Task{}).
			Where("id = ? AND shelter_id = ?", id, shelterID).
			Updates(map[string]any{"is_finished": gorm.Expr("NOT is_finished"), "updated_at": time.Now().UTC()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Model(&domain.Task{}).Select("is_finished").Where("id = ?", id).Row().Scan(&finished)
	})
	return finished, err
}

func DeleteTask(ctx context.Context, db *gorm.DB, shelterID, id string) error {
	return deleteScoped(ctx, db, &domain.Task{}, shelterID, id)
}

// --- vacancies ---

// VacancyScope narrows vacancy listings.
type VacancyScope struct {
	ShelterID    string // only this shelter's vacancies
	PlatformOnly bool   // shelter_id IS NULL
	WithClosed   bool
}

func CreateVacancy(ctx context.Context, db *gorm.DB, v *domain.Vacancy) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return db.WithContext(ctx).Create(v).Error
}

func GetVacancy(ctx context.Context, db *gorm.DB, id string) (*domain.Vacancy, error) {
	var v domain.Vacancy
	if err := db.WithContext(ctx).Where("id = ?", id).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func ListVacancies(ctx context.Context, db *gorm.DB, scope VacancyScope, offset, limit int) ([]domain.Vacancy, int64, error) {
	q := db.WithContext(ctx).Model(&domain.Vacancy{})
	switch {
	case scope.ShelterID != "":
		q = q.Where("shelter_id = ?", scope.ShelterID)
	case scope.PlatformOnly:
		q = q.Where("shelter_id IS NULL")
	}
	if !scope.WithClosed {
		q = q.Where("is_closed = ?", false)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []domain.Vacancy
	err := q.Order("pub_date desc, id").Offset(offset).Limit(limit).Find(&out).Error
	return out, total, err
}

func SaveVacancy(ctx context.Context, db *gorm.DB, v *domain.Vacancy) error {
	return db.WithContext(ctx).Omit("Shelter", "PubDate", "ShelterID").Save(v).Error
}

// ToggleVacancyClosed negates is_closed and returns the stored value.
func ToggleVacancyClosed(ctx context.Context, db *gorm.DB, id string) (bool, error) {
	var closed bool
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Vacancy{}).Where("id = ?", id).
			Update("is_closed", gorm.Expr("NOT is_closed"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Model(&domain.Vacancy{}).Select("is_closed").Where("id = ?", id).Row().Scan(&closed)
	})
	return closed, err
}

// DeleteVacancy removes a vacancy. An empty shelterID targets platform
// vacancies only.
func DeleteVacancy(ctx context.Context, db *gorm.DB, shelterID, id string) error {
	q := db.WithContext(ctx).Where("id = ?", id)
	if shelterID == "" {
		q = q.Where("shelter_id IS NULL")
	} else {
		q = q.Where("shelter_id = ?", shelterID)
	}
	res := q.Delete(&domain.Vacancy{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func deleteScoped(ctx context.Context, db *gorm.DB, model any, shelterID, id string) error {
	res := db.WithContext(ctx).Where("id = ? AND shelter_id = ?", id, shelterID).Delete(model)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
