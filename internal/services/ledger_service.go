// Package services – LedgerService
//
// This file implements LedgerService, the component that owns users, visits
// and bonuses. It enforces the venue code, the one-visit-per-calendar-day
// rule and the every-tenth-visit bonus, and performs redemption as a single
// conditional write.
//
// Observability: public methods are OpenTelemetry-instrumented and the visit
// and redemption outcomes feed Prometheus counters.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-loyalty-backend/internal/domain"
	"github.com/tbourn/go-loyalty-backend/internal/repo"
	"github.com/tbourn/go-loyalty-backend/internal/utils"
)

// BonusEvery is the number of visits that earns one free-visit bonus.
const BonusEvery = 10

// LedgerRepo is the persistence contract behind the ledger. Calls made with
// the context handed to InTx's callback run in the same transaction.
//
// Implementations report missing rows as repo.ErrNotFound, unique-key
// collisions as repo.ErrDuplicate and unknown parents as repo.ErrMissingParent.
type LedgerRepo interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error

	CreateUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, id uint64) (*domain.User, error)
	GetUserByExternalID(ctx context.Context, externalID string) (*domain.User, error)

	CreateVisit(ctx context.Context, v *domain.Visit) error
	CountVisits(ctx context.Context, userID uint64) (int64, error)
	ListVisits(ctx context.Context, userID uint64) ([]domain.Visit, error)

	CreateBonus(ctx context.Context, b *domain.Bonus) error
	CountUnusedBonuses(ctx context.Context, userID uint64) (int64, error)
	ListBonuses(ctx context.Context, userID uint64) ([]domain.Bonus, error)
	MarkBonusUsed(ctx context.Context, id uint64, at time.Time) (bool, error)
}

// Registration carries the identity fields accepted by RegisterUser.
type Registration struct {
	ExternalID  string
	DisplayName string
	Username    string
	FirstName   string
	LastName    string
}

// VisitResult is the outcome of a successful RecordVisit.
type VisitResult struct {
	VisitCount        int64 `json:"visit_count"`
	BonusEarned       bool  `json:"bonus_earned"`
	VisitsToNextBonus int64 `json:"visits_to_next_bonus"`
}

// UserSummary is a user with its derived counters.
type UserSummary struct {
	User             domain.User
	VisitCount       int64
	UnusedBonusCount int64
	VisitsToBonus    int64
}

// LedgerService implements the loyalty use-cases over a LedgerRepo.
type LedgerService struct {
	Repo LedgerRepo

	// VenueCode is the exact string a visit must present.
	VenueCode string

	// Location defines the calendar day of a visit. Nil means UTC.
	Location *time.Location

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// VisitsToBonus returns how many visits remain until the next bonus.
// It is BonusEvery (not 0) right after a bonus is earned, and at count 0.
func VisitsToBonus(count int64) int64 {
	return BonusEvery - count%BonusEvery
}

func (s *LedgerService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *LedgerService) location() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.UTC
}

// visitDay is the calendar date of t in the venue time zone.
func (s *LedgerService) visitDay(t time.Time) string {
	return t.In(s.location()).Format(domain.DayLayout)
}

// RegisterUser returns the user for r.ExternalID, creating it on first sight.
// An existing user is returned unchanged. A blank external id is
// ErrInvalidInput.
func (s *LedgerService) RegisterUser(ctx context.Context, r Registration) (*domain.User, error) {
	ctx, span := otel.Tracer("services/LedgerService").Start(ctx, "RegisterUser")
	defer span.End()

	ext := strings.TrimSpace(r.ExternalID)
	if ext == "" {
		return nil, ErrInvalidInput
	}

	u, err := s.Repo.GetUserByExternalID(ctx, ext)
	if err == nil {
		span.SetAttributes(attribute.Int64("user.id", int64(u.ID)))
		return u, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	u = &domain.User{
		ExternalID:  ext,
		DisplayName: displayNameFor(r),
		Username:    cleanName(r.Username),
		FirstName:   cleanName(r.FirstName),
		LastName:    cleanName(r.LastName),
		CreatedAt:   s.now(),
	}
	if err := s.Repo.CreateUser(ctx, u); err != nil {
		// Lost a race with a concurrent registration of the same identity.
		if errors.Is(err, repo.ErrDuplicate) {
			return s.Repo.GetUserByExternalID(ctx, ext)
		}
		return nil, err
	}
	span.SetAttributes(attribute.Int64("user.id", int64(u.ID)))
	return u, nil
}

// RecordVisit appends a visit for userID and awards a bonus when the new
// total is a positive multiple of BonusEvery. The visit and the bonus are
// written in one transaction.
//
// Errors: ErrInvalidCode for a wrong code (no row written), ErrUserNotFound,
// ErrDuplicateVisit for a second visit on the same venue calendar day.
func (s *LedgerService) RecordVisit(ctx context.Context, userID uint64, code string) (*VisitResult, error) {
	ctx, span := otel.Tracer("services/LedgerService").Start(ctx, "RecordVisit",
		trace.WithAttributes(attribute.Int64("user.id", int64(userID))),
	)
	defer span.End()

	if code != s.VenueCode {
		visitsRejected.WithLabelValues("invalid_code").Inc()
		return nil, ErrInvalidCode
	}

	if !utils.ValidID(userID) {
		visitsRejected.WithLabelValues("unknown_user").Inc()
		return nil, ErrUserNotFound
	}

	at := s.now()
	var res VisitResult
	err := s.Repo.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.Repo.GetUser(ctx, userID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		v := &domain.Visit{
			UserID:     userID,
			VisitDay:   s.visitDay(at),
			OccurredAt: at,
			Code:       code,
		}
		if err := s.Repo.CreateVisit(ctx, v); err != nil {
			switch {
			case errors.Is(err, repo.ErrDuplicate):
				return ErrDuplicateVisit
			case errors.Is(err, repo.ErrMissingParent):
				return ErrUserNotFound
			}
			return fmt.Errorf("create visit: %w", err)
		}

		count, err := s.Repo.CountVisits(ctx, userID)
		if err != nil {
			return fmt.Errorf("count visits: %w", err)
		}
		res.VisitCount = count
		res.VisitsToNextBonus = VisitsToBonus(count)

		if count > 0 && count%BonusEvery == 0 {
			b := &domain.Bonus{
				UserID:    userID,
				Milestone: count,
				Kind:      domain.BonusKindFreeVisit,
				EarnedAt:  at,
			}
			if err := s.Repo.CreateBonus(ctx, b); err != nil {
				return fmt.Errorf("award bonus: %w", err)
			}
			res.BonusEarned = true
		}
		return nil
	})
	switch {
	case errors.Is(err, ErrUserNotFound):
		visitsRejected.WithLabelValues("unknown_user").Inc()
		return nil, err
	case errors.Is(err, ErrDuplicateVisit):
		visitsRejected.WithLabelValues("duplicate_day").Inc()
		return nil, err
	case err != nil:
		span.RecordError(err)
		return nil, err
	}

	visitsRecorded.Inc()
	if res.BonusEarned {
		bonusesEarned.Inc()
	}
	span.SetAttributes(
		attribute.Int64("visit.count", res.VisitCount),
		attribute.Bool("bonus.earned", res.BonusEarned),
	)
	return &res, nil
}

// GetUserSummary returns the user with its visit and unused bonus counts.
func (s *LedgerService) GetUserSummary(ctx context.Context, userID uint64) (*UserSummary, error) {
	ctx, span := otel.Tracer("services/LedgerService").Start(ctx, "GetUserSummary",
		trace.WithAttributes(attribute.Int64("user.id", int64(userID))),
	)
	defer span.End()

	if !utils.ValidID(userID) {
		return nil, ErrUserNotFound
	}
	u, err := s.Repo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	visits, err := s.Repo.CountVisits(ctx, userID)
	if err != nil {
		return nil, err
	}
	unused, err := s.Repo.CountUnusedBonuses(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &UserSummary{
		User:             *u,
		VisitCount:       visits,
		UnusedBonusCount: unused,
		VisitsToBonus:    VisitsToBonus(visits),
	}, nil
}

// ListVisits returns the user's visits, most recent first. Unknown users
// yield an empty list.
func (s *LedgerService) ListVisits(ctx context.Context, userID uint64) ([]domain.Visit, error) {
	ctx, span := otel.Tracer("services/LedgerService").Start(ctx, "ListVisits",
		trace.WithAttributes(attribute.Int64("user.id", int64(userID))),
	)
	defer span.End()
	if !utils.ValidID(userID) {
		return []domain.Visit{}, nil
	}
	return s.Repo.ListVisits(ctx, userID)
}

// ListBonuses returns the user's bonuses, most recently earned first.
func (s *LedgerService) ListBonuses(ctx context.Context, userID uint64) ([]domain.Bonus, error) {
	ctx, span := otel.Tracer("services/LedgerService").Start(ctx, "ListBonuses",
		trace.WithAttributes(attribute.Int64("user.id", int64(userID))),
	)
	defer span.End()
	if !utils.ValidID(userID) {
		return []domain.Bonus{}, nil
	}
	return s.Repo.ListBonuses(ctx, userID)
}

// RedeemBonus marks bonusID used. It returns true only for the call that
// performed the transition; a missing or already-used bonus returns false
// without changing anything.
func (s *LedgerService) RedeemBonus(ctx context.Context, bonusID uint64) (bool, error) {
	ctx, span := otel.Tracer("services/LedgerService").Start(ctx, "RedeemBonus",
		trace.WithAttributes(attribute.Int64("bonus.id", int64(bonusID))),
	)
	defer span.End()

	if !utils.ValidID(bonusID) {
		bonusRedemptions.WithLabelValues("rejected").Inc()
		return false, nil
	}
	ok, err := s.Repo.MarkBonusUsed(ctx, bonusID, s.now())
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	if ok {
		bonusRedemptions.WithLabelValues("redeemed").Inc()
	} else {
		bonusRedemptions.WithLabelValues("rejected").Inc()
	}
	return ok, nil
}
