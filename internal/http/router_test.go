package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-loyalty-backend/internal/config"
	"github.com/tbourn/go-loyalty-backend/internal/repo"
	"github.com/tbourn/go-loyalty-backend/internal/storage"
)

const testVenueCode = "HOOKAH_PLACE_QR"

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		APIBasePath: "/api",
		Venue:       config.VenueConfig{Code: testVenueCode, TimeZone: "UTC", Location: time.UTC},
		Admin:       config.AdminConfig{Login: "admin", Password: "pw", SessionTTL: time.Hour},
		Photos: config.PhotoConfig{
			Store:    config.PhotoLocal,
			Dir:      t.TempDir(),
			BaseURL:  "/photos",
			MaxBytes: 64 << 10,
		},
		OTEL: config.OTELConfig{ServiceName: "test-svc"},
	}
}

// newTestEngine wires the full router over the in-memory store.
func newTestEngine(t *testing.T, cfg config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	photos, err := storage.NewLocalStore(cfg.Photos.Dir, cfg.Photos.BaseURL)
	if err != nil {
		t.Fatalf("photo store: %v", err)
	}
	r := gin.New()
	if err := RegisterRoutes(r, Deps{Store: repo.NewMemoryStore(), Photos: photos}, cfg); err != nil {
		t.Fatalf("RegisterRoutes: %v", err)
	}
	return r
}

func do(t *testing.T, r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("json: %v body=%s", err, w.Body.String())
	}
	return v
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r := newTestEngine(t, testConfig(t))

	// /health works
	w := do(t, r, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	// CORS (AllowAllOrigins) → header "*"
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing X-Request-ID")
	}

	// /metrics is wired
	w = do(t, r, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404
	if w := do(t, r, http.MethodGet, "/nope", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	// NoMethod → 405 (POST /health)
	if w := do(t, r, http.MethodPost, "/health", "", nil); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}

	// Swagger is off by default
	if w := do(t, r, http.MethodGet, "/swagger/index.html", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("swagger should be disabled, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := testConfig(t)
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	r := newTestEngine(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected ACAO for foreign origin: %q", got)
	}
}

func TestRegisterRoutes_SwaggerEnabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.SwaggerEnabled = true
	r := newTestEngine(t, cfg)

	w := do(t, r, http.MethodGet, "/swagger/doc.json", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /swagger/doc.json = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "/bonus/use/{id}") {
		t.Fatalf("doc.json does not describe the API")
	}
}

func TestRegisterRoutes_RequiresStore(t *testing.T) {
	if err := RegisterRoutes(gin.New(), Deps{}, testConfig(t)); err == nil {
		t.Fatalf("expected error without a store")
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(8, map[string]int64{"/big": 64}))
	read := func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	}
	r.POST("/small", read)
	r.POST("/big", read)

	cases := []struct {
		path string
		size int
		want int
	}{
		{"/small", 8, http.StatusOK},
		{"/small", 9, http.StatusRequestEntityTooLarge},
		{"/big", 32, http.StatusOK},
		{"/big", 65, http.StatusRequestEntityTooLarge},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, tc.path, bytes.NewReader(make([]byte, tc.size)))
		r.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Fatalf("%s size=%d: got %d want %d", tc.path, tc.size, w.Code, tc.want)
		}
	}
}

func Test_photoBodyLimit(t *testing.T) {
	if got := photoBodyLimit(0); got != defaultBodyLimit {
		t.Fatalf("zero: %d", got)
	}
	if got := photoBodyLimit(5 << 20); got != 5<<20+defaultBodyLimit {
		t.Fatalf("5MiB: %d", got)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		prefix string
		path   string
	}{
		{"", "/ping"},
		{"/", "/ping"},
		{"/api", "/api/ping"},
	}
	for _, tc := range cases {
		r := gin.New()
		groupWithPrefix(r, tc.prefix).GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("prefix %q: GET %s = %d", tc.prefix, tc.path, w.Code)
		}
	}
}

func TestPipeline_LoyaltyFlow(t *testing.T) {
	r := newTestEngine(t, testConfig(t))

	// register twice: same id
	w := do(t, r, http.MethodPost, "/api/user", "", map[string]any{"external_id": 555, "display_name": "Alice"})
	if w.Code != http.StatusOK {
		t.Fatalf("register status=%d body=%s", w.Code, w.Body.String())
	}
	reg := decode[struct {
		UserID uint64 `json:"user_id"`
	}](t, w)
	w = do(t, r, http.MethodPost, "/api/user", "", map[string]any{"external_id": "555"})
	if again := decode[struct {
		UserID uint64 `json:"user_id"`
	}](t, w); again.UserID != reg.UserID {
		t.Fatalf("re-register gave %d, want %d", again.UserID, reg.UserID)
	}

	// wrong code
	w = do(t, r, http.MethodPost, "/api/visit", "", map[string]any{"user_id": reg.UserID, "code": "WRONG"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("wrong code status=%d", w.Code)
	}

	// first visit, then duplicate on the same day
	w = do(t, r, http.MethodPost, "/api/visit", "", map[string]any{"user_id": reg.UserID, "code": testVenueCode})
	if w.Code != http.StatusOK {
		t.Fatalf("visit status=%d body=%s", w.Code, w.Body.String())
	}
	res := decode[map[string]any](t, w)
	if res["visit_count"].(float64) != 1 || res["bonus_earned"].(bool) || res["visits_to_next_bonus"].(float64) != 9 {
		t.Fatalf("visit result = %v", res)
	}
	w = do(t, r, http.MethodPost, "/api/visit", "", map[string]any{"user_id": reg.UserID, "qr_code": testVenueCode})
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "duplicate_visit") {
		t.Fatalf("duplicate status=%d body=%s", w.Code, w.Body.String())
	}

	// profile
	w = do(t, r, http.MethodGet, fmt.Sprintf("/api/user/%d", reg.UserID), "", nil)
	prof := decode[map[string]any](t, w)
	if w.Code != http.StatusOK || prof["visits_to_bonus"].(float64) != 9 || len(prof["visits"].([]any)) != 1 {
		t.Fatalf("profile status=%d body=%v", w.Code, prof)
	}
	if w := do(t, r, http.MethodGet, "/api/user/999", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown user status=%d", w.Code)
	}

	// no bonuses yet; redeeming an unknown one fails softly
	if w := do(t, r, http.MethodGet, fmt.Sprintf("/api/bonuses/%d", reg.UserID), "", nil); w.Body.String() != "[]" {
		t.Fatalf("bonuses body=%s", w.Body.String())
	}
	w = do(t, r, http.MethodPost, "/api/bonus/use/1", "", nil)
	if w.Code != http.StatusBadRequest || decode[map[string]any](t, w)["success"] != false {
		t.Fatalf("redeem unknown status=%d body=%s", w.Code, w.Body.String())
	}

	// qr code
	w = do(t, r, http.MethodGet, "/api/qr-code", "", nil)
	if qr := decode[map[string]string](t, w); qr["qr_data"] != testVenueCode {
		t.Fatalf("qr = %v", qr)
	}
}

func TestPipeline_AdminAndStaff(t *testing.T) {
	r := newTestEngine(t, testConfig(t))

	// admin routes require a session
	if w := do(t, r, http.MethodGet, "/api/admin/users", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token status=%d", w.Code)
	}
	if w := do(t, r, http.MethodGet, "/api/admin/users", "not-a-session", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token status=%d", w.Code)
	}
	if w := do(t, r, http.MethodPost, "/api/admin/login", "", map[string]string{"login": "admin", "password": "nope"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad password status=%d", w.Code)
	}

	w := do(t, r, http.MethodPost, "/api/admin/login", "", map[string]string{"login": "admin", "password": "pw"})
	if w.Code != http.StatusOK {
		t.Fatalf("login status=%d body=%s", w.Code, w.Body.String())
	}
	tok := decode[map[string]any](t, w)["token"].(string)

	do(t, r, http.MethodPost, "/api/user", "", map[string]any{"external_id": "1"})
	w = do(t, r, http.MethodGet, "/api/admin/users", tok, nil)
	if w.Code != http.StatusOK || w.Header().Get("X-Total-Count") != "1" {
		t.Fatalf("users status=%d total=%q", w.Code, w.Header().Get("X-Total-Count"))
	}
	// query token works too
	if w := do(t, r, http.MethodGet, "/api/admin/users/1/visits?token="+tok, "", nil); w.Code != http.StatusOK {
		t.Fatalf("query token status=%d", w.Code)
	}

	// staff with a photo; the QR PNG doubles as a valid image
	png := do(t, r, http.MethodGet, "/api/qr-code.png", "", nil).Body.Bytes()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("name", "Maria")
	_ = mw.WriteField("on_shift", "true")
	fw, _ := mw.CreateFormFile("photo", "maria.png")
	_, _ = fw.Write(png)
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/admin/staff", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+tok)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create staff status=%d body=%s", w.Code, w.Body.String())
	}
	staff := decode[map[string]any](t, w)
	photoURL, _ := staff["photo_url"].(string)
	if !strings.HasPrefix(photoURL, "/photos/staff/") {
		t.Fatalf("photo_url = %q", photoURL)
	}

	// served from the local photo dir
	w = do(t, r, http.MethodGet, photoURL, "", nil)
	if w.Code != http.StatusOK || !bytes.Equal(w.Body.Bytes(), png) {
		t.Fatalf("photo fetch status=%d len=%d", w.Code, w.Body.Len())
	}

	w = do(t, r, http.MethodGet, "/api/staff/on-shift", "", nil)
	if list := decode[[]map[string]any](t, w); len(list) != 1 || list[0]["name"] != "Maria" {
		t.Fatalf("on-shift = %v", list)
	}
	id := int(staff["id"].(float64))
	if w := do(t, r, http.MethodPut, fmt.Sprintf("/api/admin/staff/%d/shift", id), tok, map[string]bool{"on_shift": false}); w.Code != http.StatusOK {
		t.Fatalf("shift status=%d", w.Code)
	}
	if w := do(t, r, http.MethodGet, "/api/staff/on-shift", "", nil); w.Body.String() != "[]" {
		t.Fatalf("on-shift after toggle = %s", w.Body.String())
	}
	if w := do(t, r, http.MethodDelete, fmt.Sprintf("/api/admin/staff/%d", id), tok, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", w.Code)
	}

	// logout revokes the token
	if w := do(t, r, http.MethodPost, "/api/admin/logout", tok, nil); w.Code != http.StatusNoContent {
		t.Fatalf("logout status=%d", w.Code)
	}
	if w := do(t, r, http.MethodGet, "/api/admin/staff", tok, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("revoked token status=%d", w.Code)
	}
}
