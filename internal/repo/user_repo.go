package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Lapkipomoshi/help-paw-backend/internal/domain"
)

// CreateUser inserts u, assigning a UUID when missing. Unique violations on
// email/username are returned as ErrDuplicate wrapped around the driver error.
func CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = domain.RoleUser
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		return wrapDuplicate(err)
	}
	return nil
}

// GetUser fetches a user by id or returns ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByEmail fetches a user by case-insensitive email.
func GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUserFields applies a column→value map to user id.
func UpdateUserFields(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	res := db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return wrapDuplicate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetUserRole changes the role of user id.
func SetUserRole(ctx context.Context, db *gorm.DB, id string, role domain.Role) error {
	return UpdateUserFields(ctx, db, id, map[string]any{"role": role, "updated_at": time.Now().UTC()})
}

// AddUserDonations increments the user's running donation total.
func AddUserDonations(ctx context.Context, db *gorm.DB, id string, amount decimal.Decimal) error {
	return db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Update("donations_sum", gorm.Expr("donations_sum + ?", amount)).Error
}

func wrapDuplicate(err error) error {
	if IsDuplicate(err) {
		return &DuplicateError{Column: DuplicateColumn(err), Err: err}
	}
	return err
}

// DuplicateError is a unique violation with the column when known. It
// matches ErrDuplicate under errors.Is.
type DuplicateError struct {
	Column string
	Err    error
}

func (e *DuplicateError) Error() string {
	if e.Column != "" {
		return "duplicate " + e.Column
	}
	return "duplicate"
}

func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicate }

func (e *DuplicateError) Unwrap() error { return e.Err }
