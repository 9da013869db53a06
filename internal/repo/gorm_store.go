// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file adapts the free repository functions to the
// method-set contracts consumed by the services package.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-loyalty-backend/internal/domain"
)

// txKey carries the transaction-bound *gorm.DB through a context.
type txKey struct{}

// GormStore is the relational storage adapter (SQLite or PostgreSQL).
// It is safe for concurrent use; the database is the serialization point.
type GormStore struct {
	DB *gorm.DB
}

// NewGormStore wraps db.
func NewGormStore(db *gorm.DB) *GormStore { return &GormStore{DB: db} }

// conn returns the transaction bound to ctx by InTx, or the base handle.
func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return s.DB
}

// InTx runs fn inside a database transaction. Store calls made with the ctx
// passed to fn join that transaction; nested calls reuse it.
func (s *GormStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// CreateUser proxies CreateUser.
func (s *GormStore) CreateUser(ctx context.Context, u *domain.User) error {
	return CreateUser(ctx, s.conn(ctx), u)
}

// GetUser proxies GetUser.
func (s *GormStore) GetUser(ctx context.Context, id uint64) (*domain.User, error) {
	return GetUser(ctx, s.conn(ctx), id)
}

// GetUserByExternalID proxies GetUserByExternalID.
func (s *GormStore) GetUserByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	return GetUserByExternalID(ctx, s.conn(ctx), externalID)
}

// CreateVisit proxies CreateVisit.
func (s *GormStore) CreateVisit(ctx context.Context, v *domain.Visit) error {
	return CreateVisit(ctx, s.conn(ctx), v)
}

// CountVisits proxies CountVisits.
func (s *GormStore) CountVisits(ctx context.Context, userID uint64) (int64, error) {
	return CountVisits(ctx, s.conn(ctx), userID)
}

// ListVisits proxies ListVisits.
func (s *GormStore) ListVisits(ctx context.Context, userID uint64) ([]domain.Visit, error) {
	return ListVisits(ctx, s.conn(ctx), userID)
}

// CreateBonus proxies CreateBonus.
func (s *GormStore) CreateBonus(ctx context.Context, b *domain.Bonus) error {
	return CreateBonus(ctx, s.conn(ctx), b)
}

// CountUnusedBonuses proxies CountUnusedBonuses.
func (s *GormStore) CountUnusedBonuses(ctx context.Context, userID uint64) (int64, error) {
	return CountUnusedBonuses(ctx, s.conn(ctx), userID)
}

// ListBonuses proxies ListBonuses.
func (s *GormStore) ListBonuses(ctx context.Context, userID uint64) ([]domain.Bonus, error) {
	return ListBonuses(ctx, s.conn(ctx), userID)
}

// MarkBonusUsed proxies MarkBonusUsed.
func (s *GormStore) MarkBonusUsed(ctx context.Context, id uint64, at time.Time) (bool, error) {
	return MarkBonusUsed(ctx, s.conn(ctx), id, at)
}

// CountUsers proxies CountUsers.
func (s *GormStore) CountUsers(ctx context.Context) (int64, error) {
	return CountUsers(ctx, s.conn(ctx))
}

// ListUserStats proxies ListUserStats.
func (s *GormStore) ListUserStats(ctx context.Context, offset, limit int) ([]domain.UserStats, error) {
	return ListUserStats(ctx, s.conn(ctx), offset, limit)
}

// CreateAdminSession proxies CreateAdminSession.
func (s *GormStore) CreateAdminSession(ctx context.Context, now time.Time, ttl time.Duration) (*domain.AdminSession, error) {
	return CreateAdminSession(ctx, s.conn(ctx), now, ttl)
}

// GetAdminSession proxies GetAdminSession.
func (s *GormStore) GetAdminSession(ctx context.Context, token string, now time.Time) (*domain.AdminSession, error) {
	return GetAdminSession(ctx, s.conn(ctx), token, now)
}

// DeleteAdminSession proxies DeleteAdminSession.
func (s *GormStore) DeleteAdminSession(ctx context.Context, token string) error {
	return DeleteAdminSession(ctx, s.conn(ctx), token)
}

// PurgeExpiredSessions proxies PurgeExpiredSessions.
func (s *GormStore) PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	return PurgeExpiredSessions(ctx, s.conn(ctx), now)
}

// CreateStaff proxies CreateStaff.
func (s *GormStore) CreateStaff(ctx context.Context, m *domain.StaffMember) error {
	return CreateStaff(ctx, s.conn(ctx), m)
}

// ListStaff proxies ListStaff.
func (s *GormStore) ListStaff(ctx context.Context, onShiftOnly bool) ([]domain.StaffMember, error) {
	return ListStaff(ctx, s.conn(ctx), onShiftOnly)
}

// SetStaffOnShift proxies SetStaffOnShift.
func (s *GormStore) SetStaffOnShift(ctx context.Context, id uint64, onShift bool) (*domain.StaffMember, error) {
	return SetStaffOnShift(ctx, s.conn(ctx), id, onShift)
}

// DeleteStaff proxies DeleteStaff.
func (s *GormStore) DeleteStaff(ctx context.Context, id uint64) (*domain.StaffMember, error) {
	return DeleteStaff(ctx, s.conn(ctx), id)
}
