// Package httpapi wires the HTTP transport (Gin) to the loyalty services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, CORS, security headers, and admin authentication.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "github.com/tbourn/go-loyalty-backend/docs"
	"github.com/tbourn/go-loyalty-backend/internal/config"
	"github.com/tbourn/go-loyalty-backend/internal/http/handlers"
	"github.com/tbourn/go-loyalty-backend/internal/http/middleware"
	"github.com/tbourn/go-loyalty-backend/internal/services"
	"github.com/tbourn/go-loyalty-backend/internal/storage"
)

// defaultBodyLimit caps every request body unless a route overrides it.
const defaultBodyLimit int64 = 1 << 20

// Store is everything the services need from persistence. Both
// repo.GormStore and repo.MemoryStore satisfy it.
type Store interface {
	services.LedgerRepo
	services.AdminRepo
	services.StaffRepo
}

// Deps are the long-lived dependencies built by cmd/server.
type Deps struct {
	Store  Store
	Photos storage.PhotoStore
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), compression, CORS
// and security headers, health, metrics and docs endpoints, and then mounts
// the public and admin API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII and token scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter (per-route overrides for photo uploads)
//  6. Metrics
//  7. Gzip
//  8. CORS and Security headers
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) error {
	if deps.Store == nil {
		return errors.New("httpapi: store is required")
	}
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-Admin-Token"},
		MaskQuery:   []string{"password"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Body size limits
	api := strings.TrimRight(cfg.APIBasePath, "/")
	r.Use(limitBody(defaultBodyLimit, map[string]int64{
		api + "/admin/staff": photoBodyLimit(cfg.Photos.MaxBytes),
	}))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Compression (images are already compressed)
	r.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedPaths([]string{"/metrics"}),
		gzip.WithExcludedExtensions([]string{".png", ".jpg", ".jpeg", ".gif", ".webp"}),
	))

	// 8) CORS posture (safe defaults: allow all if none configured)
	corsHeaders := []string{"Origin", "Content-Type", "Accept", middleware.HeaderAuthorization}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (the Telegram webview sends none).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     corsHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "X-Total-Count", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     corsHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "X-Total-Count", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	images := []string{api + "/qr-code.png"}
	if strings.HasPrefix(cfg.Photos.BaseURL, "/") {
		images = append(images, cfg.Photos.BaseURL)
	}
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:      cfg.Security.EnableHSTS,
		HSTSMaxAge:      cfg.Security.HSTSMaxAge,
		EnablePolicy:    true,
		NoStorePrefixes: []string{api + "/admin"},
		ImagePrefixes:   images,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Locally stored staff photos
	if cfg.Photos.Store == config.PhotoLocal && strings.HasPrefix(cfg.Photos.BaseURL, "/") && cfg.Photos.Dir != "" {
		r.Static(cfg.Photos.BaseURL, cfg.Photos.Dir)
	}

	h, err := buildHandlers(deps, cfg)
	if err != nil {
		return err
	}

	// Public API
	pub := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Users
		pub.POST("/user", h.RegisterUser)
		pub.GET("/user/:id", h.GetUser)

		// Visits and bonuses
		pub.POST("/visit", h.RecordVisit)
		pub.GET("/visits/:userId", h.ListVisits)
		pub.GET("/bonuses/:userId", h.ListBonuses)
		pub.POST("/bonus/use/:id", h.RedeemBonus)

		// Venue
		pub.GET("/qr-code", h.GetQRCode)
		pub.GET("/qr-code.png", h.GetQRCodePNG)
		pub.GET("/staff/on-shift", h.ListOnShift)

		pub.POST("/admin/login", h.AdminLogin)
	}

	// Admin API
	admin := pub.Group("/admin", middleware.RequireAdmin(h.SessionLookup()))
	{
		admin.POST("/logout", h.AdminLogout)
		admin.GET("/users", h.AdminListUsers)
		admin.GET("/users/:id/visits", h.AdminUserVisits)
		admin.GET("/staff", h.AdminListStaff)
		admin.POST("/staff", h.AdminCreateStaff)
		admin.PUT("/staff/:id/shift", h.AdminSetShift)
		admin.DELETE("/staff/:id", h.AdminDeleteStaff)
	}
	return nil
}

// buildHandlers does the dependency injection: services ← store/photos.
func buildHandlers(deps Deps, cfg config.Config) (*handlers.Handlers, error) {
	ledger := &services.LedgerService{
		Repo:      deps.Store,
		VenueCode: cfg.Venue.Code,
		Location:  cfg.Venue.Location,
	}
	admin, err := services.NewAdminService(deps.Store, cfg.Admin.Login, cfg.Admin.Password, cfg.Admin.SessionTTL)
	if err != nil {
		return nil, err
	}
	staff := &services.StaffService{
		Repo:          deps.Store,
		Photos:        deps.Photos,
		MaxPhotoBytes: cfg.Photos.MaxBytes,
	}
	return handlers.New(ledger, admin, staff, cfg.Venue.Code), nil
}

// photoBodyLimit leaves room for the multipart envelope around the photo.
func photoBodyLimit(maxPhoto int64) int64 {
	if maxPhoto <= 0 {
		return defaultBodyLimit
	}
	return maxPhoto + defaultBodyLimit
}

// limitBody returns a Gin middleware that caps the request body size to
// maxBytes using http.MaxBytesReader, or to the override registered for the
// matched route pattern. Requests exceeding the cap cause downstream body
// reads to error.
func limitBody(maxBytes int64, perRoute map[string]int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := maxBytes
		if n, ok := perRoute[c.FullPath()]; ok {
			limit = n
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
