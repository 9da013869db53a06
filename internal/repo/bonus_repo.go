// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Bonus model.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-loyalty-backend/internal/domain"
)

// CreateBonus inserts an unused bonus. The (user_id, milestone) unique index
// makes a second bonus for the same decade fail with ErrDuplicate.
func CreateBonus(ctx context.Context, db *gorm.DB, b *domain.Bonus) error {
	if b.Kind == "" {
		b.Kind = domain.BonusKindFreeVisit
	}
	b.Used = false
	b.UsedAt = nil
	if err := db.WithContext(ctx).Omit("User").Create(b).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// CountUnusedBonuses returns how many redeemable bonuses userID holds.
func CountUnusedBonuses(ctx context.Context, db *gorm.DB, userID uint64) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Bonus{}).
		Where("user_id = ? AND used = ?", userID, false).
		Count(&total).Error
	return total, err
}

// ListBonuses returns a user's bonuses, most recently earned first.
func ListBonuses(ctx context.Context, db *gorm.DB, userID uint64) ([]domain.Bonus, error) {
	out := []domain.Bonus{}
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("earned_at desc, id desc").
		Find(&out).Error
	return out, err
}

// MarkBonusUsed flips an unused bonus to used in one conditional UPDATE.
// It reports true only when this call performed the transition; a missing
// or already-used bonus yields false with no error.
func MarkBonusUsed(ctx context.Context, db *gorm.DB, id uint64, at time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Bonus{}).
		Where("id = ? AND used = ?", id, false).
		Updates(map[string]any{"used": true, "used_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
