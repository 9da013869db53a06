// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, storage backends, venue rules, admin
// credentials, photo storage and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // VENUE_TIMEZONE must resolve on minimal images
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Photo store backends.
const (
	PhotoLocal = "local"
	PhotoS3    = "s3"
)

// bonusEvery is the visit interval that earns a bonus. It is not tunable;
// BONUS_EVERY is only accepted when it repeats this value.
const bonusEvery = 10

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-loyalty-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// StoreConfig selects and locates the ledger storage.
type StoreConfig struct {
	Driver      string // STORE_DRIVER: sqlite|postgres|memory
	DBPath      string // DB_PATH (sqlite)
	DatabaseURL string // DATABASE_URL (postgres)
}

// VenueConfig holds the venue rules.
type VenueConfig struct {
	Code     string         // VENUE_CODE, the string encoded in the entrance QR
	TimeZone string         // VENUE_TIMEZONE (IANA name)
	Location *time.Location // resolved TimeZone
}

// AdminConfig holds the static admin credentials. An empty password
// disables admin login.
type AdminConfig struct {
	Login      string
	Password   string
	SessionTTL time.Duration
}

// S3Config locates an S3-compatible bucket for staff photos.
type S3Config struct {
	Endpoint      string // S3_ENDPOINT, empty for AWS
	Bucket        string
	Region        string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string // S3_PUBLIC_BASE_URL, optional CDN/base for photo URLs
}

// PhotoConfig selects where staff photos are stored.
type PhotoConfig struct {
	Store    string // PHOTO_STORE: local|s3
	Dir      string // PHOTO_DIR (local)
	BaseURL  string // PHOTO_BASE_URL (local), also the route serving PHOTO_DIR
	MaxBytes int64  // MAX_PHOTO_BYTES
	S3       S3Config
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	Store  StoreConfig
	Venue  VenueConfig
	Admin  AdminConfig
	Photos PhotoConfig

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api")),

		// App
		Store: StoreConfig{
			Driver:      strings.ToLower(getenv("STORE_DRIVER", DriverSQLite)),
			DBPath:      getenv("DB_PATH", "loyalty.db"),
			DatabaseURL: getenv("DATABASE_URL", ""),
		},
		Venue: VenueConfig{
			Code:     getenv("VENUE_CODE", "HOOKAH_PLACE_QR"),
			TimeZone: getenv("VENUE_TIMEZONE", "UTC"),
		},
		Admin: AdminConfig{
			Login:      getenv("ADMIN_LOGIN", "admin"),
			Password:   getenv("ADMIN_PASSWORD", ""),
			SessionTTL: getdur("ADMIN_SESSION_TTL", 24*time.Hour),
		},
		Photos: PhotoConfig{
			Store:    strings.ToLower(getenv("PHOTO_STORE", PhotoLocal)),
			Dir:      getenv("PHOTO_DIR", "uploads"),
			BaseURL:  strings.TrimRight(getenv("PHOTO_BASE_URL", "/photos"), "/"),
			MaxBytes: int64(getint("MAX_PHOTO_BYTES", 5<<20)),
			S3: S3Config{
				Endpoint:      getenv("S3_ENDPOINT", ""),
				Bucket:        getenv("S3_BUCKET", ""),
				Region:        getenv("S3_REGION", "us-east-1"),
				AccessKey:     getenv("S3_ACCESS_KEY", ""),
				SecretKey:     getenv("S3_SECRET_KEY", ""),
				PublicBaseURL: getenv("S3_PUBLIC_BASE_URL", ""),
			},
		},

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-loyalty-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.Store.Driver == "postgresql" {
		cfg.Store.Driver = DriverPostgres
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}

	switch cfg.Store.Driver {
	case DriverSQLite:
		if strings.TrimSpace(cfg.Store.DBPath) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case DriverPostgres:
		if strings.TrimSpace(cfg.Store.DatabaseURL) == "" {
			return cfg, errors.New("DATABASE_URL is required for STORE_DRIVER=postgres")
		}
	case DriverMemory:
	default:
		return cfg, errors.New("STORE_DRIVER must be one of: sqlite, postgres, memory")
	}

	if strings.TrimSpace(cfg.Venue.Code) == "" {
		return cfg, errors.New("VENUE_CODE must not be empty")
	}
	loc, err := time.LoadLocation(cfg.Venue.TimeZone)
	if err != nil {
		return cfg, fmt.Errorf("VENUE_TIMEZONE: %w", err)
	}
	cfg.Venue.Location = loc
	if v, ok := os.LookupEnv("BONUS_EVERY"); ok && v != "" && v != strconv.Itoa(bonusEvery) {
		return cfg, fmt.Errorf("BONUS_EVERY is fixed at %d", bonusEvery)
	}

	if cfg.Admin.SessionTTL <= 0 {
		return cfg, errors.New("ADMIN_SESSION_TTL must be > 0")
	}

	if cfg.Photos.MaxBytes <= 0 {
		return cfg, errors.New("MAX_PHOTO_BYTES must be > 0")
	}
	switch cfg.Photos.Store {
	case PhotoLocal:
		if strings.TrimSpace(cfg.Photos.Dir) == "" {
			return cfg, errors.New("PHOTO_DIR must not be empty")
		}
	case PhotoS3:
		if cfg.Photos.S3.Bucket == "" {
			return cfg, errors.New("S3_BUCKET is required for PHOTO_STORE=s3")
		}
	default:
		return cfg, errors.New("PHOTO_STORE must be one of: local, s3")
	}

	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
