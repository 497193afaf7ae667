package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Lapkipomoshi/help-paw-backend/internal/domain"
)

// CreateShelter inserts s together with its animal type links.
func CreateShelter(ctx context.Context, db *gorm.DB, s *domain.Shelter) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if err := db.WithContext(ctx).Omit("Owner").Create(s).Error; err != nil {
		return wrapDuplicate(err)
	}
	return nil
}

// GetShelter loads a shelter with its animal types.
func GetShelter(ctx context.Context, db *gorm.DB, id string) (*domain.Shelter, error) {
	var s domain.Shelter
	if err := db.WithContext(ctx).Preload("AnimalTypes").Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// GetShelterByOwner loads the shelter owned by ownerID.
func GetShelterByOwner(ctx context.Context, db *gorm.DB, ownerID string) (*domain.Shelter, error) {
	var s domain.Shelter
	if err := db.WithContext(ctx).Preload("AnimalTypes").Where("owner_id = ?", ownerID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// GetShelterByTIN finds a shelter by tax id.
func GetShelterByTIN(ctx context.Context, db *gorm.DB, tin string) (*domain.Shelter, error) {
	var s domain.Shelter
	if err := db.WithContext(ctx).Where("tin = ?", tin).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// ShelterExistsForOwner reports whether ownerID already owns a shelter.
func ShelterExistsForOwner(ctx context.Context, db *gorm.DB, ownerID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Shelter{}).Where("owner_id = ?", ownerID).Count(&n).Error
	return n > 0, err
}

// UpdateShelter saves the scalar columns of s and replaces its animal types
// when types is non-nil.
func UpdateShelter(ctx context.Context, db *gorm.DB, s *domain.Shelter, types []domain.AnimalType) error {
	s.UpdatedAt = time.Now().UTC()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(s).Omit("AnimalTypes", "Owner", "OwnerID", "IsApproved", "CreatedAt").Save(s).Error; err != nil {
			return wrapDuplicate(err)
		}
		if types != nil {
			if err := tx.Model(s).Association("AnimalTypes").Replace(types); err != nil {
				return err
			}
			s.AnimalTypes = types
		}
		return nil
	})
	return err
}

// SetShelterApproved flips the moderation flag.
func SetShelterApproved(ctx context.Context, db *gorm.DB, id string, approved bool) error {
	res := db.WithContext(ctx).Model(&domain.Shelter{}).Where("id = ?", id).
		Updates(map[string]any{"is_approved": approved, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteShelter hard-deletes a shelter; dependent rows cascade.
func DeleteShelter(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Select(clause.Associations).Delete(&domain.Shelter{ID: id})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSheltersPage returns a page of shelters from q (already filtered),
// ordered by name.
func ListSheltersPage(ctx context.Context, q *gorm.DB, offset, limit int) ([]domain.Shelter, int64, error) {
	var total int64
	if err := q.WithContext(ctx).Model(&domain.Shelter{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Shelter{}, 0, nil
	}
	var out []domain.Shelter
	err := q.WithContext(ctx).Order("name asc").Offset(offset).Limit(limit).Find(&out).Error
	return out, total, err
}

// RandomApprovedShelters returns up to limit approved shelters in random order.
func RandomApprovedShelters(ctx context.Context, db *gorm.DB, limit int) ([]domain.Shelter, error) {
	var out []domain.Shelter
	err := db.WithContext(ctx).
		Where("is_approved = ?", true).
		Order("RANDOM()").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// AnimalTypesBySlugs resolves slugs, returning the ones that exist.
func AnimalTypesBySlugs(ctx context.Context, db *gorm.DB, slugs []string) ([]domain.AnimalType, error) {
	out := []domain.AnimalType{}
	if len(slugs) == 0 {
		return out, nil
	}
	err := db.WithContext(ctx).Where("slug IN ?", slugs).Order("slug").Find(&out).Error
	return out, err
}

// ListAnimalTypes returns every animal type ordered by name.
func ListAnimalTypes(ctx context.Context, db *gorm.DB) ([]domain.AnimalType, error) {
	var out []domain.AnimalType
	err := db.WithContext(ctx).Order("name").Find(&out).Error
	return out, err
}

// CreateAnimalType inserts a new animal type.
func CreateAnimalType(ctx context.Context, db *gorm.DB, t *domain.AnimalType) error {
	if err := db.WithContext(ctx).Create(t).Error; err != nil {
		return wrapDuplicate(err)
	}
	return nil
}

// AddSubscription marks shelterID as a favourite of userID (idempotent).
func AddSubscription(ctx context.Context, db *gorm.DB, userID, shelterID string) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.Subscription{UserID: userID, ShelterID: shelterID, CreatedAt: time.Now().UTC()}).Error
}

// RemoveSubscription removes the favourite mark (idempotent).
func RemoveSubscription(ctx context.Context, db *gorm.DB, userID, shelterID string) error {
	return db.WithContext(ctx).
		Where("user_id = ? AND shelter_id = ?", userID, shelterID).
		Delete(&domain.Subscription{}).Error
}

// SubscribedShelterIDs returns the subset of shelterIDs favourited by userID.
func SubscribedShelterIDs(ctx context.Context, db *gorm.DB, userID string, shelterIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(shelterIDs))
	if userID == "" || len(shelterIDs) == 0 {
		return out, nil
	}
	var ids []string
	err := db.WithContext(ctx).Model(&domain.Subscription{}).
		Where("user_id = ? AND shelter_id IN ?", userID, shelterIDs).
		Pluck("shelter_id", &ids).Error
	for _, id := range ids {
		out[id] = true
	}
	return out, err
}
