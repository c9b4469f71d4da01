package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"referral-engine/internal/models"
)

// CreateReferral inserts a referral row
func (r *Repository) CreateReferral(ctx context.Context, referral *models.Referral) error {
	return r.db.WithContext(ctx).Create(referral).Error
}

// SaveReferral writes every column of an existing referral
func (r *Repository) SaveReferral(ctx context.Context, referral *models.Referral) error {
	return r.db.WithContext(ctx).Save(referral).Error
}

// GetReferralByID retrieves a referral by ID
func (r *Repository) GetReferralByID(ctx context.Context, id uuid.UUID) (*models.Referral, error) {
	var referral models.Referral
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&referral).Error; err != nil {
		return nil, notFound(err)
	}
	return &referral, nil
}

// LockReferral reads a referral holding a row lock until the transaction ends
func (r *Repository) LockReferral(ctx context.Context, id uuid.UUID) (*models.Referral, error) {
	var referral models.Referral
	if err := r.forUpdate(ctx).Where("id = ?", id).First(&referral).Error; err != nil {
		return nil, notFound(err)
	}
	return &referral, nil
}

// GetReferralByInviteeUserID retrieves the single referral of an invitee account
func (r *Repository) GetReferralByInviteeUserID(ctx context.Context, userID uint) (*models.Referral, error) {
	var referral models.Referral
	if err := r.db.WithContext(ctx).Where("invitee_user_id = ?", userID).First(&referral).Error; err != nil {
		return nil, notFound(err)
	}
	return &referral, nil
}

// GetReferralByInviteeProfileID retrieves the referral linked to an invitee profile
func (r *Repository) GetReferralByInviteeProfileID(ctx context.Context, profileID uuid.UUID) (*models.Referral, error) {
	var referral models.Referral
	err := r.db.WithContext(ctx).
		Where("invitee_profile_id = ?", profileID).
		Order("created_at DESC").
		First(&referral).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &referral, nil
}

// CountReferralsSince counts referrals created by referrerID after since
func (r *Repository) CountReferralsSince(ctx context.Context, referrerID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Referral{}).
		Where("referrer_id = ? AND created_at > ?", referrerID, since).
		Count(&count).Error
	return count, err
}

// OldestOpenInvite finds the referrer's oldest unclaimed pending invite that
// has not expired at now, locking it for the caller's transaction.
func (r *Repository) OldestOpenInvite(ctx context.Context, referrerID uuid.UUID, now time.Time) (*models.Referral, error) {
	var referral models.Referral
	err := r.forUpdate(ctx).
		Where("referrer_id = ? AND status = ? AND invitee_user_id IS NULL AND expires_at >= ?",
			referrerID, models.ReferralStatusPending, now).
		Order("created_at ASC").
		First(&referral).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &referral, nil
}

// ListReferralsByReferrer returns the referrer's referrals, newest first.
// A limit of zero returns all of them.
func (r *Repository) ListReferralsByReferrer(ctx context.Context, referrerID uuid.UUID, limit int) ([]models.Referral, error) {
	var referrals []models.Referral
	query := r.db.WithContext(ctx).
		Where("referrer_id = ?", referrerID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&referrals).Error; err != nil {
		return nil, err
	}
	return referrals, nil
}

// CountExpiredReferrals counts rows still in status whose expiry passed before now
func (r *Repository) CountExpiredReferrals(ctx context.Context, status models.ReferralStatus, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Referral{}).
		Where("status = ? AND expires_at < ?", status, now).
		Count(&count).Error
	return count, err
}
