package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

// Keep deployment env out of the tests.
func TestMain(m *testing.M) {
	for _, k := range []string{
		"PORT", "LOG_LEVEL", "GIN_MODE", "API_BASE_PATH",
		"STORE_DRIVER", "DB_PATH", "DATABASE_URL",
		"VENUE_CODE", "VENUE_TIMEZONE", "BONUS_EVERY",
		"ADMIN_LOGIN", "ADMIN_PASSWORD", "ADMIN_SESSION_TTL",
		"PHOTO_STORE", "PHOTO_DIR", "PHOTO_BASE_URL", "MAX_PHOTO_BYTES", "S3_BUCKET",
		"CORS_ALLOWED_ORIGINS", "ENABLE_HSTS", "OTEL_ENABLED", "OTEL_TRACES_SAMPLER_ARG",
	} {
		os.Unsetenv(k)
	}
	os.Exit(m.Run())
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" || cfg.GinMode != "release" || cfg.LogLevel != "info" || cfg.APIBasePath != "/api" {
		t.Fatalf("server defaults: %+v", cfg)
	}
	if cfg.Store.Driver != DriverSQLite || cfg.Store.DBPath != "loyalty.db" {
		t.Fatalf("store defaults: %+v", cfg.Store)
	}
	if cfg.Venue.Code != "HOOKAH_PLACE_QR" || cfg.Venue.Location != time.UTC {
		t.Fatalf("venue defaults: %+v", cfg.Venue)
	}
	// login stays disabled until a password is configured
	if cfg.Admin.Login != "admin" || cfg.Admin.Password != "" || cfg.Admin.SessionTTL != 24*time.Hour {
		t.Fatalf("admin defaults: %+v", cfg.Admin)
	}
	if cfg.Photos.Store != PhotoLocal || cfg.Photos.Dir != "uploads" || cfg.Photos.BaseURL != "/photos" || cfg.Photos.MaxBytes != 5<<20 {
		t.Fatalf("photo defaults: %+v", cfg.Photos)
	}
	if cfg.CORS.AllowedOrigins != nil || cfg.Security.EnableHSTS || cfg.OTEL.Enabled {
		t.Fatalf("protection defaults: cors=%v hsts=%v otel=%v", cfg.CORS.AllowedOrigins, cfg.Security.EnableHSTS, cfg.OTEL.Enabled)
	}
}

func TestLoad_Overrides(t *testing.T) {
	env := map[string]string{
		"PORT":                        "9090",
		"READ_TIMEOUT":                "2s",
		"GIN_MODE":                    "weird",
		"LOG_LEVEL":                   "WARNING",
		"LOG_PRETTY":                  "yes",
		"SWAGGER_ENABLED":             "on",
		"API_BASE_PATH":               "loyalty/v1/",
		"STORE_DRIVER":                "PostgreSQL",
		"DATABASE_URL":                "postgres://u:p@db/loyalty",
		"VENUE_CODE":                  "MY_BAR",
		"VENUE_TIMEZONE":              "Europe/Moscow",
		"BONUS_EVERY":                 "10",
		"ADMIN_LOGIN":                 "boss",
		"ADMIN_PASSWORD":              "pw",
		"ADMIN_SESSION_TTL":           "not-a-duration",
		"PHOTO_STORE":                 "S3",
		"PHOTO_BASE_URL":              "/media/",
		"S3_BUCKET":                   "staff-photos",
		"S3_ENDPOINT":                 "http://minio:9000",
		"S3_PUBLIC_BASE_URL":          "https://cdn.example.com/staff",
		"MAX_PHOTO_BYTES":             "1024",
		"CORS_ALLOWED_ORIGINS":        " https://web.telegram.org , , https://bar.example ",
		"ENABLE_HSTS":                 "TRUE",
		"HSTS_MAX_AGE":                "24h",
		"OTEL_ENABLED":                "1",
		"OTEL_EXPORTER_OTLP_INSECURE": "0",
		"OTEL_SERVICE_NAME":           "loyalty-bar",
		"OTEL_TRACES_SAMPLER_ARG":     "0.75",
	}
	for k, v := range env {
		t.Setenv(k, v)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	checks := []struct {
		name string
		ok   bool
	}{
		{"port", cfg.Port == "9090"},
		{"read timeout", cfg.ReadTimeout == 2*time.Second},
		{"gin mode falls back to release", cfg.GinMode == "release"},
		{"warning becomes warn", cfg.LogLevel == "warn"},
		{"pretty logs", cfg.LogPretty},
		{"swagger", cfg.SwaggerEnabled},
		{"base path normalized", cfg.APIBasePath == "/loyalty/v1"},
		{"postgresql alias", cfg.Store.Driver == DriverPostgres},
		{"database url", cfg.Store.DatabaseURL == "postgres://u:p@db/loyalty"},
		{"venue code", cfg.Venue.Code == "MY_BAR"},
		{"venue location", cfg.Venue.Location != nil && cfg.Venue.Location.String() == "Europe/Moscow"},
		{"admin", cfg.Admin.Login == "boss" && cfg.Admin.Password == "pw"},
		{"bad ttl keeps default", cfg.Admin.SessionTTL == 24*time.Hour},
		{"photo store lowercased", cfg.Photos.Store == PhotoS3},
		{"photo base url trimmed", cfg.Photos.BaseURL == "/media"},
		{"s3", cfg.Photos.S3.Bucket == "staff-photos" && cfg.Photos.S3.Endpoint == "http://minio:9000"},
		{"s3 public base", cfg.Photos.S3.PublicBaseURL == "https://cdn.example.com/staff"},
		{"photo size", cfg.Photos.MaxBytes == 1024},
		{"cors", reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://web.telegram.org", "https://bar.example"})},
		{"hsts", cfg.Security.EnableHSTS && cfg.Security.HSTSMaxAge == 24*time.Hour},
		{"otel", cfg.OTEL.Enabled && !cfg.OTEL.Insecure && cfg.OTEL.ServiceName == "loyalty-bar" && cfg.OTEL.SampleRatio == 0.75},
	}
	for _, c := range checks {
		if !c.ok {
			t.Errorf("%s: %+v", c.name, cfg)
		}
	}
}

func TestLoad_Rejects(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"log level", map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		{"blank port", map[string]string{"PORT": "   "}, "PORT must not be empty"},
		{"zero timeout", map[string]string{"WRITE_TIMEOUT": "0s"}, "timeouts must be positive"},
		{"header bytes", map[string]string{"MAX_HEADER_BYTES": "0"}, "MAX_HEADER_BYTES"},
		{"blank sqlite path", map[string]string{"DB_PATH": "  "}, "DB_PATH"},
		{"unknown driver", map[string]string{"STORE_DRIVER": "mongo"}, "STORE_DRIVER"},
		{"postgres without url", map[string]string{"STORE_DRIVER": "postgres"}, "DATABASE_URL"},
		{"blank venue code", map[string]string{"VENUE_CODE": "  "}, "VENUE_CODE"},
		{"unknown zone", map[string]string{"VENUE_TIMEZONE": "Mars/Olympus"}, "VENUE_TIMEZONE"},
		{"bonus interval", map[string]string{"BONUS_EVERY": "5"}, "BONUS_EVERY"},
		{"session ttl", map[string]string{"ADMIN_SESSION_TTL": "-1h"}, "ADMIN_SESSION_TTL"},
		{"photo size", map[string]string{"MAX_PHOTO_BYTES": "0"}, "MAX_PHOTO_BYTES"},
		{"photo store", map[string]string{"PHOTO_STORE": "ftp"}, "PHOTO_STORE"},
		{"blank photo dir", map[string]string{"PHOTO_DIR": " "}, "PHOTO_DIR"},
		{"s3 without bucket", map[string]string{"PHOTO_STORE": "s3"}, "S3_BUCKET"},
		{"hsts age", map[string]string{"HSTS_MAX_AGE": "-1s"}, "HSTS_MAX_AGE"},
		{"sample ratio", map[string]string{"OTEL_TRACES_SAMPLER_ARG": "1.5"}, "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v; want mention of %q", err, tc.want)
			}
		})
	}

	t.Run("memory ignores DB_PATH", func(t *testing.T) {
		t.Setenv("STORE_DRIVER", "memory")
		t.Setenv("DB_PATH", " ")
		if _, err := Load(); err != nil {
			t.Fatalf("Load: %v", err)
		}
	})
}

func TestMustLoad(t *testing.T) {
	if cfg := MustLoad(); cfg.Venue.Location == nil {
		t.Fatal("MustLoad returned an unresolved venue location")
	}

	t.Setenv("VENUE_TIMEZONE", "Nowhere/Town")
	defer func() {
		if recover() == nil {
			t.Fatal("MustLoad did not panic on an invalid zone")
		}
	}()
	MustLoad()
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("T_EMPTY", "")
	t.Setenv("T_STR", "val")
	t.Setenv("T_FLOAT", "0.5")
	t.Setenv("T_INT", "42")
	t.Setenv("T_DUR", "150ms")
	t.Setenv("T_BAD", "nope")

	if getenv("T_EMPTY", "d") != "d" || getenv("T_STR", "d") != "val" || getenv("T_UNSET", "d") != "d" {
		t.Fatal("getenv")
	}
	if getfloat("T_FLOAT", 0) != 0.5 || getfloat("T_BAD", 1.5) != 1.5 {
		t.Fatal("getfloat")
	}
	if getint("T_INT", 0) != 42 || getint("T_BAD", 7) != 7 {
		t.Fatal("getint")
	}
	if getdur("T_DUR", 0) != 150*time.Millisecond || getdur("T_BAD", time.Second) != time.Second {
		t.Fatal("getdur")
	}
}

func TestGetbool(t *testing.T) {
	cases := []struct {
		val  string
		def  bool
		want bool
	}{
		{"1", false, true},
		{"TRUE", false, true},
		{" yes ", false, true},
		{"Y", false, true},
		{"On", false, true},
		{"0", true, false},
		{"false", true, false},
		{" no ", true, false},
		{"N", true, false},
		{"off", true, false},
		{"", true, true},
		{"", false, false},
		{"maybe", true, true},
	}
	for _, tc := range cases {
		t.Setenv("T_BOOL", tc.val)
		if got := getbool("T_BOOL", tc.def); got != tc.want {
			t.Fatalf("getbool(%q, %v) = %v; want %v", tc.val, tc.def, got, tc.want)
		}
	}
}

func TestSplitCSV(t *testing.T) {
	cases := map[string][]string{
		"":                    nil,
		" , ,":                {},
		"https://a.example":   {"https://a.example"},
		" a, ,b ,  c  ,":      {"a", "b", "c"},
		"https://x.io,y.io/z": {"https://x.io", "y.io/z"},
	}
	for in, want := range cases {
		if got := splitCSV(in); !reflect.DeepEqual(got, want) {
			t.Fatalf("splitCSV(%q) = %#v; want %#v", in, got, want)
		}
	}
}

func TestNormalizeBasePath(t *testing.T) {
	cases := map[string]string{
		"":          "/",
		" / ":       "/",
		"api":       "/api",
		"/api/":     "/api",
		"/api/v1//": "/api/v1",
	}
	for in, want := range cases {
		if got := normalizeBasePath(in); got != want {
			t.Fatalf("normalizeBasePath(%q) = %q; want %q", in, got, want)
		}
	}
}
