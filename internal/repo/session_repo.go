// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for admin bearer
// sessions issued by the login endpoint.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-loyalty-backend/internal/domain"
)

// CreateAdminSession inserts a session with a fresh random token valid for ttl.
func CreateAdminSession(ctx context.Context, db *gorm.DB, now time.Time, ttl time.Duration) (*domain.AdminSession, error) {
	rec := &domain.AdminSession{
		Token:     uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// GetAdminSession returns a non-expired session or ErrNotFound.
func GetAdminSession(ctx context.Context, db *gorm.DB, token string, now time.Time) (*domain.AdminSession, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrNotFound
	}
	var rec domain.AdminSession
	err := db.WithContext(ctx).
		Where("token = ? AND expires_at > ?", token, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeleteAdminSession removes a session. Deleting an unknown token is ErrNotFound.
func DeleteAdminSession(ctx context.Context, db *gorm.DB, token string) error {
	res := db.WithContext(ctx).Where("token = ?", token).Delete(&domain.AdminSession{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgeExpiredSessions deletes every session whose expiry is at or before now.
func PurgeExpiredSessions(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.AdminSession{})
	return res.RowsAffected, res.Error
}
