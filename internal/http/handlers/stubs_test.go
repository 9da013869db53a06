package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-loyalty-backend/internal/domain"
	"github.com/tbourn/go-loyalty-backend/internal/services"
)

// ---------- flexible service stubs ----------

type stubLedger struct {
	register func(context.Context, services.Registration) (*domain.User, error)
	visit    func(context.Context, uint64, string) (*services.VisitResult, error)
	summary  func(context.Context, uint64) (*services.UserSummary, error)
	visits   func(context.Context, uint64) ([]domain.Visit, error)
	bonuses  func(context.Context, uint64) ([]domain.Bonus, error)
	redeem   func(context.Context, uint64) (bool, error)
}

func (s stubLedger) RegisterUser(ctx context.Context, r services.Registration) (*domain.User, error) {
	if s.register != nil {
		return s.register(ctx, r)
	}
	return &domain.User{ID: 1, ExternalID: r.ExternalID, DisplayName: "User"}, nil
}

func (s stubLedger) RecordVisit(ctx context.Context, id uint64, code string) (*services.VisitResult, error) {
	if s.visit != nil {
		return s.visit(ctx, id, code)
	}
	return &services.VisitResult{VisitCount: 1, VisitsToNextBonus: 9}, nil
}

func (s stubLedger) GetUserSummary(ctx context.Context, id uint64) (*services.UserSummary, error) {
	if s.summary != nil {
		return s.summary(ctx, id)
	}
	return &services.UserSummary{User: domain.User{ID: id}, VisitsToBonus: 10}, nil
}

func (s stubLedger) ListVisits(ctx context.Context, id uint64) ([]domain.Visit, error) {
	if s.visits != nil {
		return s.visits(ctx, id)
	}
	return nil, nil
}

func (s stubLedger) ListBonuses(ctx context.Context, id uint64) ([]domain.Bonus, error) {
	if s.bonuses != nil {
		return s.bonuses(ctx, id)
	}
	return nil, nil
}

func (s stubLedger) RedeemBonus(ctx context.Context, id uint64) (bool, error) {
	if s.redeem != nil {
		return s.redeem(ctx, id)
	}
	return false, nil
}

type stubAdmin struct {
	login      func(context.Context, string, string) (*domain.AdminSession, error)
	auth       func(context.Context, string) (*domain.AdminSession, error)
	logout     func(context.Context, string) error
	listUsers  func(context.Context, int, int) ([]domain.UserStats, int64, error)
	userVisits func(context.Context, uint64) ([]domain.Visit, error)
}

func (s stubAdmin) Login(ctx context.Context, l, p string) (*domain.AdminSession, error) {
	if s.login != nil {
		return s.login(ctx, l, p)
	}
	return nil, services.ErrInvalidCredentials
}

func (s stubAdmin) Authenticate(ctx context.Context, tok string) (*domain.AdminSession, error) {
	if s.auth != nil {
		return s.auth(ctx, tok)
	}
	return nil, services.ErrSessionNotFound
}

func (s stubAdmin) Logout(ctx context.Context, tok string) error {
	if s.logout != nil {
		return s.logout(ctx, tok)
	}
	return nil
}

func (s stubAdmin) ListUsers(ctx context.Context, page, size int) ([]domain.UserStats, int64, error) {
	if s.listUsers != nil {
		return s.listUsers(ctx, page, size)
	}
	return nil, 0, nil
}

func (s stubAdmin) UserVisits(ctx context.Context, id uint64) ([]domain.Visit, error) {
	if s.userVisits != nil {
		return s.userVisits(ctx, id)
	}
	return nil, nil
}

type stubStaff struct {
	create   func(context.Context, services.NewStaffMember, io.Reader) (*domain.StaffMember, error)
	onShift  func(context.Context) ([]domain.StaffMember, error)
	all      func(context.Context) ([]domain.StaffMember, error)
	setShift func(context.Context, uint64, bool) (*domain.StaffMember, error)
	del      func(context.Context, uint64) error
}

func (s stubStaff) Create(ctx context.Context, in services.NewStaffMember, photo io.Reader) (*domain.StaffMember, error) {
	if s.create != nil {
		return s.create(ctx, in, photo)
	}
	return &domain.StaffMember{ID: 1, Name: in.Name}, nil
}

func (s stubStaff) ListOnShift(ctx context.Context) ([]domain.StaffMember, error) {
	if s.onShift != nil {
		return s.onShift(ctx)
	}
	return nil, nil
}

func (s stubStaff) ListAll(ctx context.Context) ([]domain.StaffMember, error) {
	if s.all != nil {
		return s.all(ctx)
	}
	return nil, nil
}

func (s stubStaff) SetOnShift(ctx context.Context, id uint64, on bool) (*domain.StaffMember, error) {
	if s.setShift != nil {
		return s.setShift(ctx, id, on)
	}
	return &domain.StaffMember{ID: id, OnShift: on}, nil
}

func (s stubStaff) Delete(ctx context.Context, id uint64) error {
	if s.del != nil {
		return s.del(ctx, id)
	}
	return nil
}

// ---------- router helpers ----------

const testVenueCode = "HOOKAH_PLACE_QR"

// newTestRouter mounts every handler on a bare engine (no auth middleware;
// admin routes stash a token the way RequireAdmin would).
func newTestRouter(l stubLedger, a stubAdmin, s stubStaff) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(l, a, s, testVenueCode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-test")
		c.Next()
	})

	r.POST("/user", h.RegisterUser)
	r.GET("/user/:id", h.GetUser)
	r.POST("/visit", h.RecordVisit)
	r.GET("/visits/:userId", h.ListVisits)
	r.GET("/bonuses/:userId", h.ListBonuses)
	r.POST("/bonus/use/:id", h.RedeemBonus)
	r.GET("/qr-code", h.GetQRCode)
	r.GET("/qr-code.png", h.GetQRCodePNG)
	r.GET("/staff/on-shift", h.ListOnShift)

	r.POST("/admin/login", h.AdminLogin)
	admin := r.Group("/admin", func(c *gin.Context) {
		if tok := c.GetHeader("X-Test-Token"); tok != "" {
			c.Set("admin.token", tok)
		}
		c.Next()
	})
	admin.POST("/logout", h.AdminLogout)
	admin.GET("/users", h.AdminListUsers)
	admin.GET("/users/:id/visits", h.AdminUserVisits)
	admin.GET("/staff", h.AdminListStaff)
	admin.POST("/staff", h.AdminCreateStaff)
	admin.PUT("/staff/:id/shift", h.AdminSetShift)
	admin.DELETE("/staff/:id", h.AdminDeleteStaff)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	if rdr != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeErr(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return er
}
