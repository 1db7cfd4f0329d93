package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ICSConfig describes a subscribed ICS feed shown next to backend events.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// BasicAuthConfig protects every route except /health. PasswordHash is an
// argon2id hash produced by the hash-password command.
type BasicAuthConfig struct {
	Username     string `yaml:"username" json:"username"`
	PasswordHash string `yaml:"password_hash" json:"-"`
}

// SessionConfig controls the session cookies.
type SessionConfig struct {
	SecureCookies bool `yaml:"secure_cookies" json:"secure_cookies"`
	MaxAgeDays    int  `yaml:"max_age_days" json:"max_age_days"`
}

// MaxAge returns the cookie lifetime.
func (s SessionConfig) MaxAge() time.Duration {
	return time.Duration(s.MaxAgeDays) * 24 * time.Hour
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// PublicURL is how browsers reach this server. It builds the OAuth
	// redirect target handed to the backend.
	PublicURL string `yaml:"public_url" json:"public_url"`

	// BackendURL is the root of the backend API.
	BackendURL string `yaml:"backend_url" json:"backend_url"`

	// Timezone is the IANA zone used to place events on calendar days.
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is the schedule of ICS feed refreshes (e.g. "*/15 * * * *").
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// DisplayCap is the number of summaries shown per day cell.
	DisplayCap int `yaml:"display_cap" json:"display_cap"`

	// EventsCacheSeconds is how long backend events are reused per token.
	EventsCacheSeconds int `yaml:"events_cache_seconds" json:"events_cache_seconds"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// CacheDir holds the ICS disk cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	ICS []ICSConfig `yaml:"ics" json:"ics"`

	Session SessionConfig `yaml:"session" json:"session"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen      = "127.0.0.1:8080"
	defaultTimezone    = "Asia/Seoul"
	defaultRefreshCron = "*/15 * * * *"
	defaultDisplayCap  = 2
	defaultCacheTTL    = 60
	defaultMaxAgeDays  = 30
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:             defaultListen,
		PublicURL:          "http://" + defaultListen,
		BackendURL:         "http://127.0.0.1:3000/api",
		Timezone:           defaultTimezone,
		RefreshCron:        defaultRefreshCron,
		DisplayCap:         defaultDisplayCap,
		EventsCacheSeconds: defaultCacheTTL,
		LogLevel:           "info",
		CacheDir:           "cache",
		ICS:                []ICSConfig{},
		Session:            SessionConfig{MaxAgeDays: defaultMaxAgeDays},
	}
}

// Normalize fills in missing or zero values so partially-filled configs
// still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.PublicURL == "" {
		c.PublicURL = "http://" + c.Listen
	}
	c.PublicURL = strings.TrimRight(c.PublicURL, "/")
	c.BackendURL = strings.TrimRight(c.BackendURL, "/")
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.DisplayCap <= 0 {
		c.DisplayCap = defaultDisplayCap
	}
	if c.EventsCacheSeconds < 0 {
		c.EventsCacheSeconds = 0
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = "info"
	}
	if c.Session.MaxAgeDays <= 0 {
		c.Session.MaxAgeDays = defaultMaxAgeDays
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	for i := range c.ICS {
		if c.ICS[i].ID == "" {
			c.ICS[i].ID = fmt.Sprintf("ics-%d", i+1)
		}
		if c.ICS[i].Name == "" {
			c.ICS[i].Name = c.ICS[i].ID
		}
	}
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	if u, err := url.Parse(c.BackendURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Errorf("backend_url %q must be an http(s) URL", c.BackendURL))
	}
	seen := make(map[string]bool, len(c.ICS))
	for _, src := range c.ICS {
		if src.URL == "" {
			errs = append(errs, fmt.Errorf("ics %q: url is empty", src.ID))
		}
		if seen[src.ID] {
			errs = append(errs, fmt.Errorf("ics %q: duplicate id", src.ID))
		}
		seen[src.ID] = true
	}
	if c.BasicAuth != nil && (c.BasicAuth.Username == "" || c.BasicAuth.PasswordHash == "") {
		errs = append(errs, errors.New("basic_auth needs username and password_hash"))
	}
	return errors.Join(errs...)
}

// Location returns the configured display zone, or time.Local when it
// cannot be loaded.
func (c *Config) Location() *time.Location {
	if loc, err := time.LoadLocation(c.Timezone); err == nil {
		return loc
	}
	return time.Local
}

// EventsCacheTTL returns how long backend events are cached per token.
func (c *Config) EventsCacheTTL() time.Duration {
	return time.Duration(c.EventsCacheSeconds) * time.Second
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is read and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
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

// Save writes the configuration atomically via a temp file and rename, with
// 0600 permissions.
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

	tmp, err := os.CreateTemp(dir, ".kalena-config-*.tmp")
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

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
