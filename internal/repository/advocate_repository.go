package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"referral-engine/internal/models"
)

// CreateAdvocate creates a new advocate profile
func (r *Repository) CreateAdvocate(ctx context.Context, advocate *models.Advocate) error {
	return r.db.WithContext(ctx).Create(advocate).Error
}

// GetAdvocateByID retrieves an advocate by ID
func (r *Repository) GetAdvocateByID(ctx context.Context, id uuid.UUID) (*models.Advocate, error) {
	var advocate models.Advocate
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&advocate).Error; err != nil {
		return nil, notFound(err)
	}
	return &advocate, nil
}

// GetAdvocateByUserID retrieves the advocate profile owned by an account
func (r *Repository) GetAdvocateByUserID(ctx context.Context, userID uint) (*models.Advocate, error) {
	var advocate models.Advocate
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&advocate).Error; err != nil {
		return nil, notFound(err)
	}
	return &advocate, nil
}

// GetAdvocateByHandle retrieves an advocate by public handle
func (r *Repository) GetAdvocateByHandle(ctx context.Context, handle string) (*models.Advocate, error) {
	var advocate models.Advocate
	if err := r.db.WithContext(ctx).Where("handle = ?", handle).First(&advocate).Error; err != nil {
		return nil, notFound(err)
	}
	return &advocate, nil
}

// LockAdvocate reads an advocate holding a row lock until the transaction ends
func (r *Repository) LockAdvocate(ctx context.Context, id uuid.UUID) (*models.Advocate, error) {
	var advocate models.Advocate
	if err := r.forUpdate(ctx).Where("id = ?", id).First(&advocate).Error; err != nil {
		return nil, notFound(err)
	}
	return &advocate, nil
}

// ReserveHandle inserts the handle reservation unless the handle is already
// taken. It reports false on collision.
func (r *Repository) ReserveHandle(ctx context.Context, handle string, advocateID uuid.UUID, now time.Time) (bool, error) {
	reservation := models.HandleReservation{
		Handle:     handle,
		AdvocateID: advocateID,
		CreatedAt:  now,
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&reservation)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// AssignHandle stores handle on an advocate that has none yet
func (r *Repository) AssignHandle(ctx context.Context, advocateID uuid.UUID, handle string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Advocate{}).
		Where("id = ? AND handle IS NULL", advocateID).
		Update("handle", handle)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// SetReferralCount overwrites the cached reward counter
func (r *Repository) SetReferralCount(ctx context.Context, advocateID uuid.UUID, count int64) error {
	return r.db.WithContext(ctx).
		Model(&models.Advocate{}).
		Where("id = ?", advocateID).
		Update("referral_count", count).Error
}

// CreateUser creates an account row. Accounts are owned by the identity
// service; this exists for seeding and tests.
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetUserEmail returns the stored account email
func (r *Repository) GetUserEmail(ctx context.Context, userID uint) (string, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Select("id", "email").Where("id = ?", userID).First(&user).Error; err != nil {
		return "", notFound(err)
	}
	return user.Email, nil
}

// GetUsersByIDs loads accounts keyed by id
func (r *Repository) GetUsersByIDs(ctx context.Context, ids []uint) (map[uint]models.User, error) {
	out := make(map[uint]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var users []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}
