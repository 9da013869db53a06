// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the aggregate queries behind the admin
// customer list.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-loyalty-backend/internal/domain"
)

// userCounts is the scan target for the per-user aggregate query.
type userCounts struct {
	UserID      uint64
	VisitCount  int64
	UnusedBonus int64
}

// ListUserStats returns a page of users (newest first) with their visit
// count, unused bonus count and last visit time.
//
// It runs three lightweight queries: the user page, the grouped counts for
// that page, and the latest visit per user (avoid MAX() -> TEXT in SQLite).
func ListUserStats(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.UserStats, error) {
	users, err := ListUsersPage(ctx, db, offset, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.UserStats, 0, len(users))
	if len(users) == 0 {
		return out, nil
	}

	ids := make([]uint64, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}

	var counts []userCounts
	err = db.WithContext(ctx).Raw(`
		SELECT u.id AS user_id,
		       (SELECT COUNT(*) FROM visits v WHERE v.user_id = u.id) AS visit_count,
		       (SELECT COUNT(*) FROM bonuses b WHERE b.user_id = u.id AND b.used = ?) AS unused_bonus
		FROM users u
		WHERE u.id IN ?`, false, ids).
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	byID := make(map[uint64]userCounts, len(counts))
	for _, c := range counts {
		byID[c.UserID] = c
	}

	last, err := LastVisits(ctx, db, ids)
	if err != nil {
		return nil, err
	}

	for _, u := range users {
		st := domain.UserStats{
			User:        u,
			VisitCount:  byID[u.ID].VisitCount,
			UnusedBonus: byID[u.ID].UnusedBonus,
		}
		if v, ok := last[u.ID]; ok {
			at := v.OccurredAt
			st.LastVisitAt = &at
		}
		out = append(out, st)
	}
	return out, nil
}
