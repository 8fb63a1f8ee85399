package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearPortalEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"PORTAL_USERNAME", "PORTAL_PASSWORD", "MEDICOVER_USER", "MEDICOVER_PASS"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearPortalEnv(t)
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("POLL_CYCLES", "")
	t.Setenv("POLL_INTERVAL", "")
	t.Setenv("LEDGER_BACKEND", "")
	t.Setenv("PORTAL_LOGIN_URL", "")
	cfg := Load()
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.PollCycles != 4 {
		t.Fatalf("expected 4 poll cycles by default, got %d", cfg.PollCycles)
	}
	if cfg.PollInterval != time.Minute {
		t.Fatalf("expected 60s interval, got %s", cfg.PollInterval)
	}
	if cfg.LedgerBackend != "file" {
		t.Fatalf("expected file ledger by default, got %s", cfg.LedgerBackend)
	}
	if cfg.LedgerThreshold != 3 {
		t.Fatalf("expected threshold 3, got %d", cfg.LedgerThreshold)
	}
	if cfg.LoginBaseURL != "https://login-online24.medicover.pl" {
		t.Fatalf("unexpected login url %s", cfg.LoginBaseURL)
	}
	if cfg.HTTPTimeout != 30*time.Second {
		t.Fatalf("expected explicit http timeout, got %s", cfg.HTTPTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearPortalEnv(t)
	t.Setenv("PORTAL_USERNAME", "123456")
	t.Setenv("PORTAL_PASSWORD", "secret")
	t.Setenv("POLL_CYCLES", "2")
	t.Setenv("POLL_INTERVAL", "5m")
	t.Setenv("LEDGER_BACKEND", " Redis ")
	t.Setenv("PORTAL_API_URL", "https://api.example.test/")
	t.Setenv("EXCLUDE_TODAY", "true")
	cfg := Load()
	if cfg.PortalUsername != "123456" || cfg.PortalPassword != "secret" {
		t.Fatalf("expected credentials override, got %q/%q", cfg.PortalUsername, cfg.PortalPassword)
	}
	if cfg.PollCycles != 2 {
		t.Fatalf("expected cycles override, got %d", cfg.PollCycles)
	}
	if cfg.PollInterval != 5*time.Minute {
		t.Fatalf("expected interval override, got %s", cfg.PollInterval)
	}
	if cfg.LedgerBackend != "redis" {
		t.Fatalf("expected normalized backend, got %q", cfg.LedgerBackend)
	}
	if cfg.APIBaseURL != "https://api.example.test" {
		t.Fatalf("expected trailing slash trimmed, got %s", cfg.APIBaseURL)
	}
	if !cfg.ExcludeToday {
		t.Fatalf("expected exclude today enabled")
	}
}

func TestLegacyCredentialNames(t *testing.T) {
	clearPortalEnv(t)
	t.Setenv("MEDICOVER_USER", "legacy")
	t.Setenv("MEDICOVER_PASS", "pw")
	cfg := Load()
	if cfg.PortalUsername != "legacy" || cfg.PortalPassword != "pw" {
		t.Fatalf("expected legacy names to be honoured, got %q/%q", cfg.PortalUsername, cfg.PortalPassword)
	}
}

func TestPasswordWhitespaceIsKept(t *testing.T) {
	clearPortalEnv(t)
	t.Setenv("PORTAL_USERNAME", " 123456 ")
	t.Setenv("PORTAL_PASSWORD", " pass word ")
	cfg := Load()
	if cfg.PortalUsername != "123456" {
		t.Fatalf("expected trimmed username, got %q", cfg.PortalUsername)
	}
	if cfg.PortalPassword != " pass word " {
		t.Fatalf("expected password as set, got %q", cfg.PortalPassword)
	}

	t.Setenv("PORTAL_PASSWORD", "   ")
	t.Setenv("MEDICOVER_PASS", "fallback")
	if got := Load().PortalPassword; got != "fallback" {
		t.Fatalf("expected blank password to fall through to alias, got %q", got)
	}
}

func TestValidate(t *testing.T) {
	clearPortalEnv(t)
	cfg := Load()
	if err := cfg.Validate(); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected missing credentials error, got %v", err)
	}

	cfg.PortalUsername = "user"
	cfg.PortalPassword = "pass"
	cfg.LedgerBackend = "file"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cfg.LedgerBackend = "postgres"
	cfg.DatabaseURL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected postgres without DATABASE_URL to fail")
	}

	cfg.LedgerBackend = "dynamodb"
	cfg.LedgerTable = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected dynamodb without LEDGER_TABLE to fail")
	}
	cfg.LedgerTable = "slotwatch_ledger"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected dynamodb with table to pass, got %v", err)
	}

	cfg.LedgerBackend = "mongo"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected unknown backend to fail")
	}
}

func TestLoadDotEnv(t *testing.T) {
	t.Run("missing file is ignored", func(t *testing.T) {
		if err := LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
	})

	t.Run("values are loaded without overriding", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(path, []byte("SLOTWATCH_TEST_A=from-file\nSLOTWATCH_TEST_B=from-file\n"), 0o600); err != nil {
			t.Fatalf("write env file: %v", err)
		}
		t.Setenv("SLOTWATCH_TEST_A", "")
		os.Unsetenv("SLOTWATCH_TEST_A")
		t.Setenv("SLOTWATCH_TEST_B", "preset")

		if err := LoadDotEnv(path); err != nil {
			t.Fatalf("load: %v", err)
		}
		if got := os.Getenv("SLOTWATCH_TEST_A"); got != "from-file" {
			t.Fatalf("expected value from file, got %q", got)
		}
		if got := os.Getenv("SLOTWATCH_TEST_B"); got != "preset" {
			t.Fatalf("expected preset value kept, got %q", got)
		}
	})
}
