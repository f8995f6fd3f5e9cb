package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"shiftcal/internal/model"
	"shiftcal/internal/pattern"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions. Environment overrides live in env.go.

// LogConfig controls the package-level logger.
type LogConfig struct {
	// Level is one of "debug", "info", "error".
	Level string `yaml:"level" json:"level"`
	// Format is "text" or "json".
	Format string `yaml:"format" json:"format"`
}

// StoreConfig selects the shift record database.
type StoreConfig struct {
	// Driver is "sqlite3" or "pgx".
	Driver string `yaml:"driver" json:"driver"`
	DSN    string `yaml:"dsn" json:"dsn"`
	// QueryTimeoutSeconds bounds every single query.
	QueryTimeoutSeconds int `yaml:"query_timeout_seconds" json:"query_timeout_seconds"`
}

// CacheConfig controls the HTTP response cache for generated months.
type CacheConfig struct {
	TTLSeconds int `yaml:"ttl_seconds" json:"ttl_seconds"`
	// RedisAddr, if set, shares the cache through Redis instead of memory.
	RedisAddr string `yaml:"redis_addr,omitempty" json:"redis_addr,omitempty"`
}

// SubscriptionConfig describes an ICS source imported on a schedule.
type SubscriptionConfig struct {
	// ID is an internal identifier used for logging.
	ID  string `yaml:"id" json:"id"`
	URL string `yaml:"url" json:"url"`
	// Team receives the imported records.
	Team string `yaml:"team" json:"team"`
	// Refresh is a cron-style schedule string (e.g. "*/30 * * * *").
	Refresh string `yaml:"refresh" json:"refresh"`
}

// ImportConfig bounds recurring-event expansion and locates the fetch cache.
type ImportConfig struct {
	HorizonDays  int    `yaml:"horizon_days" json:"horizon_days"`
	BackfillDays int    `yaml:"backfill_days" json:"backfill_days"`
	CacheDir     string `yaml:"cache_dir" json:"cache_dir"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	// PasswordHash is a bcrypt hash of the password.
	PasswordHash string `yaml:"password_hash" json:"password_hash"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone shift wall-clock times belong to
	// (e.g. "Europe/Berlin").
	Timezone string `yaml:"timezone" json:"timezone"`

	// CalendarName is written as X-WR-CALNAME on exported calendars.
	CalendarName string `yaml:"calendar_name" json:"calendar_name"`

	// UIDDomain is the right-hand side of exported event UIDs.
	UIDDomain string `yaml:"uid_domain" json:"uid_domain"`

	Log   LogConfig   `yaml:"log" json:"log"`
	Store StoreConfig `yaml:"store" json:"store"`
	Cache CacheConfig `yaml:"cache" json:"cache"`

	ShiftTypes []model.ShiftTypeDefinition `yaml:"shift_types" json:"shift_types"`
	Teams      []model.TeamAssignment      `yaml:"teams" json:"teams"`

	Subscriptions []SubscriptionConfig `yaml:"subscriptions" json:"subscriptions"`
	Import        ImportConfig         `yaml:"import" json:"import"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen       = "127.0.0.1:8080"
	defaultTimezone     = "UTC"
	defaultStoreDriver  = "sqlite3"
	defaultStoreDSN     = "shiftcal.db"
	defaultQueryTimeout = 10
	defaultCacheTTL     = 300
	defaultHorizonDays  = 365
	defaultRefresh      = "*/30 * * * *"
)

// DefaultConfig returns an in-memory default configuration with a sample
// four-day rotation so a fresh install serves something useful.
func DefaultConfig() *Config {
	cfg := &Config{
		ShiftTypes: []model.ShiftTypeDefinition{{
			ID:          "rot4",
			Name:        "Four-day rotation",
			CycleLength: 4,
			Pattern:     []string{"M", "A", "N", model.FreeDayCode},
			Times: map[string]model.TimeWindow{
				"M": {Start: model.Clock{Hour: 6}, End: model.Clock{Hour: 14}},
				"A": {Start: model.Clock{Hour: 14}, End: model.Clock{Hour: 22}},
				"N": {Start: model.Clock{Hour: 22}, End: model.Clock{Hour: 6}},
			},
		}},
		Teams: []model.TeamAssignment{{
			Team:        "A",
			ShiftTypeID: "rot4",
			AnchorDate:  model.NewDate(2024, time.January, 1),
		}},
	}
	cfg.Normalize()
	return cfg
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.CalendarName == "" {
		c.CalendarName = "Shifts"
	}
	if c.UIDDomain == "" {
		c.UIDDomain = "shiftcal.local"
	}

	switch c.Log.Level {
	case "debug", "info", "error":
	default:
		c.Log.Level = "info"
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		c.Log.Format = "text"
	}

	if c.Store.Driver == "" {
		c.Store.Driver = defaultStoreDriver
	}
	if c.Store.DSN == "" && c.Store.Driver == defaultStoreDriver {
		c.Store.DSN = defaultStoreDSN
	}
	if c.Store.QueryTimeoutSeconds <= 0 {
		c.Store.QueryTimeoutSeconds = defaultQueryTimeout
	}

	if c.Cache.TTLSeconds <= 0 {
		c.Cache.TTLSeconds = defaultCacheTTL
	}

	if c.Import.HorizonDays <= 0 {
		c.Import.HorizonDays = defaultHorizonDays
	}
	if c.Import.BackfillDays < 0 {
		c.Import.BackfillDays = 0
	}

	if c.ShiftTypes == nil {
		c.ShiftTypes = []model.ShiftTypeDefinition{}
	}
	if c.Teams == nil {
		c.Teams = []model.TeamAssignment{}
	}
	if c.Subscriptions == nil {
		c.Subscriptions = []SubscriptionConfig{}
	}
	for i := range c.Subscriptions {
		if c.Subscriptions[i].Refresh == "" {
			c.Subscriptions[i].Refresh = defaultRefresh
		}
		if c.Subscriptions[i].ID == "" {
			c.Subscriptions[i].ID = fmt.Sprintf("sub-%d", i+1)
		}
	}
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// QueryTimeout is Store.QueryTimeoutSeconds as a duration.
func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.Store.QueryTimeoutSeconds) * time.Second
}

// CacheTTL is Cache.TTLSeconds as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// Repository builds the validated shift schedule repository. Invalid shift
// types or team assignments surface here, wrapping
// pattern.ErrInvalidPatternConfig.
func (c *Config) Repository() (*pattern.StaticRepository, error) {
	return pattern.NewStaticRepository(c.ShiftTypes, c.Teams)
}

// Validate checks everything that would otherwise fail later at startup.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	repo, err := c.Repository()
	if err != nil {
		return err
	}
	for _, sub := range c.Subscriptions {
		if sub.URL == "" {
			return fmt.Errorf("config: subscription %s: url is empty", sub.ID)
		}
		if _, err := repo.Team(sub.Team); err != nil {
			return fmt.Errorf("config: subscription %s: %w", sub.ID, err)
		}
	}
	if c.BasicAuth != nil && (c.BasicAuth.Username == "" || c.BasicAuth.PasswordHash == "") {
		return errors.New("config: basic_auth needs username and password_hash")
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically via a temp file + rename, with the
// parent directory at 0700 and the file at 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".shiftcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
