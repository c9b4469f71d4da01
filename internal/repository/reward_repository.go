package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"referral-engine/internal/models"
)

// CreateReward inserts a reward row
func (r *Repository) CreateReward(ctx context.Context, reward *models.Reward) error {
	return r.db.WithContext(ctx).Create(reward).Error
}

// SaveReward writes every column of an existing reward
func (r *Repository) SaveReward(ctx context.Context, reward *models.Reward) error {
	return r.db.WithContext(ctx).Save(reward).Error
}

// GetRewardByID retrieves a reward by ID
func (r *Repository) GetRewardByID(ctx context.Context, id uuid.UUID) (*models.Reward, error) {
	var reward models.Reward
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&reward).Error; err != nil {
		return nil, notFound(err)
	}
	return &reward, nil
}

// LockReward reads a reward holding a row lock until the transaction ends
func (r *Repository) LockReward(ctx context.Context, id uuid.UUID) (*models.Reward, error) {
	var reward models.Reward
	if err := r.forUpdate(ctx).Where("id = ?", id).First(&reward).Error; err != nil {
		return nil, notFound(err)
	}
	return &reward, nil
}

// CountRewardsEarnedBetween counts non-revoked rewards earned in [from, to]
func (r *Repository) CountRewardsEarnedBetween(ctx context.Context, profileID uuid.UUID, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Reward{}).
		Where("profile_id = ? AND revoked = ? AND earned_at >= ? AND earned_at <= ?", profileID, false, from, to).
		Count(&count).Error
	return count, err
}

// CountActiveRewards counts every non-revoked reward of a profile
func (r *Repository) CountActiveRewards(ctx context.Context, profileID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Reward{}).
		Where("profile_id = ? AND revoked = ?", profileID, false).
		Count(&count).Error
	return count, err
}

// ListRewardsByProfile returns all rewards of a profile, newest first
func (r *Repository) ListRewardsByProfile(ctx context.Context, profileID uuid.UUID) ([]models.Reward, error) {
	var rewards []models.Reward
	err := r.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Order("earned_at DESC").
		Find(&rewards).Error
	if err != nil {
		return nil, err
	}
	return rewards, nil
}

// ListRedeemableRewards returns rewards that are neither redeemed, revoked nor expired at now
func (r *Repository) ListRedeemableRewards(ctx context.Context, profileID uuid.UUID, now time.Time) ([]models.Reward, error) {
	var rewards []models.Reward
	err := r.db.WithContext(ctx).
		Where("profile_id = ? AND redeemed = ? AND revoked = ? AND expires_at >= ?", profileID, false, false, now).
		Order("expires_at ASC").
		Find(&rewards).Error
	if err != nil {
		return nil, err
	}
	return rewards, nil
}

// CreateNotification inserts an in-app notification
func (r *Repository) CreateNotification(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

// ListNotifications returns a profile's notifications, newest first
func (r *Repository) ListNotifications(ctx context.Context, profileID uuid.UUID, limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	query := r.db.WithContext(ctx).Where("profile_id = ?", profileID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&notifications).Error; err != nil {
		return nil, err
	}
	return notifications, nil
}
