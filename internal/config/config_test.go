package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shiftcal/internal/pattern"
)

const sampleYAML = `
listen: ":9090"
timezone: Europe/Berlin
shift_types:
  - id: rot4
    name: Four-day rotation
    cycle_length: 4
    pattern: [M, A, N, L]
    times:
      M: {start: "06:00", end: "14:00"}
      A: {start: "14:00", end: "22:00"}
      N: {start: "22:00", end: "06:00"}
teams:
  - team: A
    shift_type_id: rot4
    anchor_date: 2024-01-01
subscriptions:
  - url: https://example.org/a.ics
    team: A
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != defaultListen || len(cfg.Teams) != 1 {
		t.Errorf("default config = %+v", cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o, want 600", perm)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if err := again.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
	if again.Teams[0].AnchorDate.String() != "2024-01-01" {
		t.Errorf("anchor round trip = %s", again.Teams[0].AnchorDate)
	}
	if w := again.ShiftTypes[0].Times["N"]; w.Start.String() != "22:00" || !w.Overnight() {
		t.Errorf("night window round trip = %+v", w)
	}
}

func TestLoadParsesYAMLAndNormalizes(t *testing.T) {
	cfg, err := Load(writeFile(t, "config.yaml", sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":9090" || cfg.Timezone != "Europe/Berlin" {
		t.Errorf("listen/timezone = %q/%q", cfg.Listen, cfg.Timezone)
	}
	if cfg.Store.Driver != "sqlite3" || cfg.Store.DSN != "shiftcal.db" {
		t.Errorf("store defaults = %+v", cfg.Store)
	}
	if sub := cfg.Subscriptions[0]; sub.ID != "sub-1" || sub.Refresh != defaultRefresh {
		t.Errorf("subscription defaults = %+v", sub)
	}
	if got := cfg.ShiftTypes[0].Pattern; strings.Join(got, "") != "MANL" {
		t.Errorf("pattern = %v", got)
	}

	repo, err := cfg.Repository()
	if err != nil {
		t.Fatalf("Repository: %v", err)
	}
	if len(repo.Teams()) != 1 {
		t.Errorf("teams = %v", repo.Teams())
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	if _, err := Load(writeFile(t, "bad.yaml", "teams: [")); err == nil {
		t.Error("expected parse error")
	}
	if _, err := Load(""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
		wantMsg string
	}{
		{
			name:    "bad pattern length",
			mutate:  func(c *Config) { c.ShiftTypes[0].CycleLength = 5 },
			wantErr: pattern.ErrInvalidPatternConfig,
		},
		{
			name:    "unknown timezone",
			mutate:  func(c *Config) { c.Timezone = "Mars/Olympus" },
			wantMsg: "timezone",
		},
		{
			name:    "subscription for unknown team",
			mutate:  func(c *Config) { c.Subscriptions = []SubscriptionConfig{{ID: "s", URL: "http://x", Team: "Z"}} },
			wantErr: pattern.ErrUnknownTeam,
		},
		{
			name:    "incomplete basic auth",
			mutate:  func(c *Config) { c.BasicAuth = &BasicAuthConfig{Username: "admin"} },
			wantMsg: "basic_auth",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("err = %q, want it to mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("SHIFTCAL_LISTEN", ":7000")
	t.Setenv("SHIFTCAL_STORE_DRIVER", "pgx")
	t.Setenv("SHIFTCAL_STORE_DSN", "postgres://localhost/shifts")
	t.Setenv("SHIFTCAL_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Listen != ":7000" || cfg.Store.Driver != "pgx" || cfg.Store.DSN != "postgres://localhost/shifts" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	if cfg.Timezone != defaultTimezone {
		t.Errorf("timezone changed without override: %q", cfg.Timezone)
	}
}

func TestApplyEnvReadsDotenv(t *testing.T) {
	t.Cleanup(func() { os.Unsetenv("SHIFTCAL_REDIS_ADDR") })
	dotenv := writeFile(t, ".env", "SHIFTCAL_REDIS_ADDR=redis.internal:6379\n")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(dotenv); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Cache.RedisAddr != "redis.internal:6379" {
		t.Errorf("redis addr = %q", cfg.Cache.RedisAddr)
	}
}
