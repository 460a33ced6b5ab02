package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	// Act
	cfg, err := Parse(map[string]string{})

	// Assert
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.BasePath != "/api/auth" {
		t.Errorf("http defaults = %q %q", cfg.HTTPAddr, cfg.BasePath)
	}
	if cfg.DatabaseDriver != DriverSQLite || cfg.SQLitePath != "tether.db" {
		t.Errorf("database defaults = %q %q", cfg.DatabaseDriver, cfg.SQLitePath)
	}
	if cfg.CacheTTL != 5*time.Minute || cfg.CacheMaxSize != 500 {
		t.Errorf("cache defaults = %v %d", cfg.CacheTTL, cfg.CacheMaxSize)
	}
	if cfg.PasswordHasher != HasherArgon2 || cfg.PasswordSalt != "salt" {
		t.Errorf("hasher defaults = %q %q", cfg.PasswordHasher, cfg.PasswordSalt)
	}
	if cfg.AppleRedirectURL != "/auth/callback" || cfg.AppleErrorURL != "/login" {
		t.Errorf("apple redirect defaults = %q %q", cfg.AppleRedirectURL, cfg.AppleErrorURL)
	}
	if cfg.AppleKeysTTL != time.Hour || cfg.IdentityHTTPTimeout != 5*time.Second {
		t.Errorf("identity defaults = %v %v", cfg.AppleKeysTTL, cfg.IdentityHTTPTimeout)
	}
	if !cfg.MetricsEnabled {
		t.Error("metrics should be enabled by default")
	}
}

func TestParse_Lists(t *testing.T) {
	cfg, err := Parse(map[string]string{
		"GOOGLE_CLIENT_IDS": "web.apps.googleusercontent.com,ios.apps.googleusercontent.com",
		"APPLE_AUDIENCES":   "com.example.app",
	})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	wantGoogle := []string{"web.apps.googleusercontent.com", "ios.apps.googleusercontent.com"}
	if !reflect.DeepEqual(cfg.GoogleClientIDs, wantGoogle) {
		t.Errorf("GoogleClientIDs = %v, want %v", cfg.GoogleClientIDs, wantGoogle)
	}
	if !reflect.DeepEqual(cfg.AppleAudiences, []string{"com.example.app"}) {
		t.Errorf("AppleAudiences = %v", cfg.AppleAudiences)
	}
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr error
	}{
		{"postgres needs url", map[string]string{"DATABASE_DRIVER": "postgres"}, ErrInvalidConfig},
		{"postgres with url", map[string]string{"DATABASE_DRIVER": "postgres", "DATABASE_URL": "postgres://localhost/tether"}, nil},
		{"memory", map[string]string{"DATABASE_DRIVER": "memory"}, nil},
		{"unknown driver", map[string]string{"DATABASE_DRIVER": "mongo"}, ErrInvalidConfig},
		{"unknown hasher", map[string]string{"PASSWORD_HASHER": "md5"}, ErrInvalidConfig},
		{"legacy hasher", map[string]string{"PASSWORD_HASHER": "sha256"}, nil},
		{"zero timeout", map[string]string{"IDENTITY_HTTP_TIMEOUT": "0s"}, ErrInvalidConfig},
		{"bad duration", map[string]string{"CACHE_TTL": "soon"}, ErrParsingConfig},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Parse(test.env)
			if !errors.Is(err, test.wantErr) {
				t.Errorf("Parse() error = %v, want %v", err, test.wantErr)
			}
		})
	}
}

func TestLoad_DotEnv(t *testing.T) {
	// Arrange
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("DATABASE_DRIVER=memory\nLOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// godotenv never overrides variables that are already set
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("DATABASE_DRIVER", "")
	os.Unsetenv("DATABASE_DRIVER")

	// Act
	cfg, err := Load(path)

	// Assert
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DatabaseDriver != DriverMemory {
		t.Errorf("DatabaseDriver = %q, want memory", cfg.DatabaseDriver)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want the pre-set warn", cfg.LogLevel)
	}
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "memory")

	if _, err := Load(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("Load() error = %v", err)
	}
}
