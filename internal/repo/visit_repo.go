// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Visit model.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-loyalty-backend/internal/domain"
)

// CreateVisit appends a visit row. The (user_id, visit_day) unique index
// turns a same-day repeat into ErrDuplicate; an unknown user becomes
// ErrMissingParent when foreign keys are enforced.
func CreateVisit(ctx context.Context, db *gorm.DB, v *domain.Visit) error {
	err := db.WithContext(ctx).Omit("User").Create(v).Error
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return ErrDuplicate
	case isForeignKeyViolation(err):
		return ErrMissingParent
	default:
		return err
	}
}

// CountVisits returns the total number of visits recorded for userID.
func CountVisits(ctx context.Context, db *gorm.DB, userID uint64) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Visit{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListVisits returns a user's visits, most recent first.
func ListVisits(ctx context.Context, db *gorm.DB, userID uint64) ([]domain.Visit, error) {
	out := []domain.Visit{}
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("occurred_at desc, id desc").
		Find(&out).Error
	return out, err
}

// latestVisitPerUser selects only the newest visit row of each user in
// userIDs. The pick happens in a correlated subquery so the time column keeps
// its declared type; MAX(occurred_at) comes back as TEXT from SQLite.
func latestVisitPerUser(ctx context.Context, db *gorm.DB, userIDs []uint64) *gorm.DB {
	return db.WithContext(ctx).
		Where("user_id IN ?", userIDs).
		Where(`id = (SELECT w.id FROM visits w WHERE w.user_id = visits.user_id
			ORDER BY w.occurred_at DESC, w.id DESC LIMIT 1)`)
}

// LastVisits returns the most recent visit for each of userIDs, one row per
// user. Users with no visits are absent from the result.
func LastVisits(ctx context.Context, db *gorm.DB, userIDs []uint64) (map[uint64]domain.Visit, error) {
	out := make(map[uint64]domain.Visit, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var rows []domain.Visit
	if err := latestVisitPerUser(ctx, db, userIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, v := range rows {
		out[v.UserID] = v
	}
	return out, nil
}
