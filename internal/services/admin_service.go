// Package services – AdminService
//
// This file implements the admin surface: static-credential login issuing
// expiring bearer sessions, session checks for the auth middleware, and the
// customer listing with visit and bonus statistics.
package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/tbourn/go-loyalty-backend/internal/domain"
	"github.com/tbourn/go-loyalty-backend/internal/repo"
)

// DefaultSessionTTL is how long an admin bearer token stays valid.
const DefaultSessionTTL = 24 * time.Hour

const (
	defaultUsersPageSize = 50
	maxUsersPageSize     = 200
)

// AdminRepo is the persistence contract behind AdminService.
type AdminRepo interface {
	CreateAdminSession(ctx context.Context, now time.Time, ttl time.Duration) (*domain.AdminSession, error)
	GetAdminSession(ctx context.Context, token string, now time.Time) (*domain.AdminSession, error)
	DeleteAdminSession(ctx context.Context, token string) error
	PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	GetUser(ctx context.Context, id uint64) (*domain.User, error)
	CountUsers(ctx context.Context) (int64, error)
	ListUserStats(ctx context.Context, offset, limit int) ([]domain.UserStats, error)
	ListVisits(ctx context.Context, userID uint64) ([]domain.Visit, error)
}

// AdminService authenticates the venue administrator and serves the
// read-only customer views.
type AdminService struct {
	Repo       AdminRepo
	SessionTTL time.Duration
	Now        func() time.Time

	login        string
	passwordHash []byte
}

// NewAdminService hashes password once at startup. An empty password
// disables login entirely.
func NewAdminService(r AdminRepo, login, password string, ttl time.Duration) (*AdminService, error) {
	s := &AdminService{Repo: r, SessionTTL: ttl, login: login}
	if password != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		s.passwordHash = h
	}
	return s, nil
}

func (s *AdminService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *AdminService) ttl() time.Duration {
	if s.SessionTTL > 0 {
		return s.SessionTTL
	}
	return DefaultSessionTTL
}

// Login checks the credentials and issues a new session.
// Both the login and the password are always compared so a wrong login
// costs the same as a wrong password.
func (s *AdminService) Login(ctx context.Context, login, password string) (*domain.AdminSession, error) {
	ctx, span := otel.Tracer("services/AdminService").Start(ctx, "Login")
	defer span.End()

	if len(s.passwordHash) == 0 {
		return nil, ErrInvalidCredentials
	}
	loginOK := subtle.ConstantTimeCompare([]byte(login), []byte(s.login)) == 1
	passOK := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)) == nil
	if !loginOK || !passOK {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	if n, err := s.Repo.PurgeExpiredSessions(ctx, now); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("purge expired admin sessions")
	} else if n > 0 {
		zerolog.Ctx(ctx).Debug().Int64("purged", n).Msg("expired admin sessions removed")
	}
	return s.Repo.CreateAdminSession(ctx, now, s.ttl())
}

// Authenticate returns the live session for token or ErrSessionNotFound.
func (s *AdminService) Authenticate(ctx context.Context, token string) (*domain.AdminSession, error) {
	sess, err := s.Repo.GetAdminSession(ctx, token, s.now())
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	return sess, err
}

// Logout revokes token.
func (s *AdminService) Logout(ctx context.Context, token string) error {
	err := s.Repo.DeleteAdminSession(ctx, token)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrSessionNotFound
	}
	return err
}

// ListUsers returns a page of customers (newest first) with their stats and
// the total number of customers. Page is 1-based; out-of-range sizes are
// clamped.
func (s *AdminService) ListUsers(ctx context.Context, page, pageSize int) ([]domain.UserStats, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultUsersPageSize
	}
	if pageSize > maxUsersPageSize {
		pageSize = maxUsersPageSize
	}

	ctx, span := otel.Tracer("services/AdminService").Start(ctx, "ListUsers",
		trace.WithAttributes(
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	total, err := s.Repo.CountUsers(ctx)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.Repo.ListUserStats(ctx, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// UserVisits returns one customer's visit history, most recent first.
func (s *AdminService) UserVisits(ctx context.Context, userID uint64) ([]domain.Visit, error) {
	if _, err := s.Repo.GetUser(ctx, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.Repo.ListVisits(ctx, userID)
}
