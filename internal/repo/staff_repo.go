// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the staff roster.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-loyalty-backend/internal/domain"
)

// CreateStaff inserts a roster entry and fills its ID.
func CreateStaff(ctx context.Context, db *gorm.DB, s *domain.StaffMember) error {
	return db.WithContext(ctx).Create(s).Error
}

// GetStaff fetches a roster entry by id or returns ErrNotFound.
func GetStaff(ctx context.Context, db *gorm.DB, id uint64) (*domain.StaffMember, error) {
	var s domain.StaffMember
	if err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// ListStaff returns the roster ordered by name. With onShiftOnly, only
// members currently on shift are returned.
func ListStaff(ctx context.Context, db *gorm.DB, onShiftOnly bool) ([]domain.StaffMember, error) {
	out := []domain.StaffMember{}
	q := db.WithContext(ctx).Order("name asc, id asc")
	if onShiftOnly {
		q = q.Where("on_shift = ?", true)
	}
	err := q.Find(&out).Error
	return out, err
}

// SetStaffOnShift updates the on-shift flag and returns the updated row.
func SetStaffOnShift(ctx context.Context, db *gorm.DB, id uint64, onShift bool) (*domain.StaffMember, error) {
	res := db.WithContext(ctx).
		Model(&domain.StaffMember{}).
		Where("id = ?", id).
		Update("on_shift", onShift)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return GetStaff(ctx, db, id)
}

// DeleteStaff removes a roster entry and returns the deleted row so the
// caller can clean up its photo.
func DeleteStaff(ctx context.Context, db *gorm.DB, id uint64) (*domain.StaffMember, error) {
	s, err := GetStaff(ctx, db, id)
	if err != nil {
		return nil, err
	}
	res := db.WithContext(ctx).Delete(&domain.StaffMember{}, id)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s, nil
}
