// Package handlers provides HTTP handler implementations for the public API.
//
// This file declares the service contracts the handlers consume and the
// Handlers type that binds them. Handlers are transport-thin: they validate
// input, call application services, and translate results (and service
// sentinel errors) into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-loyalty-backend/internal/domain"
	"github.com/tbourn/go-loyalty-backend/internal/http/middleware"
	"github.com/tbourn/go-loyalty-backend/internal/services"
	"github.com/tbourn/go-loyalty-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// LedgerService defines the customer-facing loyalty operations.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type LedgerService interface {
	// RegisterUser returns the user for an external identity, creating it once.
	RegisterUser(ctx context.Context, r services.Registration) (*domain.User, error)
	// RecordVisit appends today's visit and awards a bonus every tenth visit.
	RecordVisit(ctx context.Context, userID uint64, code string) (*services.VisitResult, error)
	// GetUserSummary returns the user with visit and bonus counters.
	GetUserSummary(ctx context.Context, userID uint64) (*services.UserSummary, error)
	// ListVisits returns a user's visits, most recent first.
	ListVisits(ctx context.Context, userID uint64) ([]domain.Visit, error)
	// ListBonuses returns a user's bonuses, most recent first.
	ListBonuses(ctx context.Context, userID uint64) ([]domain.Bonus, error)
	// RedeemBonus marks an unused bonus as used; false when nothing changed.
	RedeemBonus(ctx context.Context, bonusID uint64) (bool, error)
}

// AdminService defines session and reporting operations for the admin panel.
type AdminService interface {
	Login(ctx context.Context, login, password string) (*domain.AdminSession, error)
	Authenticate(ctx context.Context, token string) (*domain.AdminSession, error)
	Logout(ctx context.Context, token string) error
	ListUsers(ctx context.Context, page, pageSize int) ([]domain.UserStats, int64, error)
	UserVisits(ctx context.Context, userID uint64) ([]domain.Visit, error)
}

// StaffService defines roster operations.
type StaffService interface {
	Create(ctx context.Context, in services.NewStaffMember, photo io.Reader) (*domain.StaffMember, error)
	ListOnShift(ctx context.Context) ([]domain.StaffMember, error)
	ListAll(ctx context.Context) ([]domain.StaffMember, error)
	SetOnShift(ctx context.Context, id uint64, onShift bool) (*domain.StaffMember, error)
	Delete(ctx context.Context, id uint64) error
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints of the loyalty API.
type Handlers struct {
	ledger    LedgerService
	admin     AdminService
	staff     StaffService
	venueCode string
}

// New constructs a Handlers bound to the given services. venueCode is the
// payload encoded by the QR endpoints.
func New(ledger LedgerService, admin AdminService, staff StaffService, venueCode string) *Handlers {
	return &Handlers{ledger: ledger, admin: admin, staff: staff, venueCode: venueCode}
}

// SessionLookup adapts AdminService.Authenticate to middleware.RequireAdmin.
func (h *Handlers) SessionLookup() middleware.SessionLookup {
	return func(ctx context.Context, token string) (bool, error) {
		_, err := h.admin.Authenticate(ctx, token)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, services.ErrSessionNotFound):
			return false, nil
		default:
			return false, err
		}
	}
}

//
// Helpers
//

// pathID parses the named path parameter as a storage id, writing a 400
// when it is not a positive integer.
func pathID(c *gin.Context, name string) (uint64, bool) {
	id, err := utils.ParseID(c.Param(name))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 50
		maxPageSize     = 200
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}
