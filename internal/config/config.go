package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendFile     = "file"
	BackendSupabase = "supabase"
	BackendGit      = "git"
)

// Environment overrides applied by Load.
const (
	EnvSupabaseKey = "HACKCAL_SUPABASE_KEY"
	EnvListen      = "HACKCAL_LISTEN"
)

// FeedConfig describes an external ICS feed whose events are listed
// alongside submitted hackathons.
type FeedConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for de-dup, slugs and logging.
	ID string `yaml:"id" json:"id"`
	// Name is the platform label the imported events are grouped under.
	Name string `yaml:"name" json:"name"`
}

// SupabaseConfig points at the hosted table store.
type SupabaseConfig struct {
	// URL is the project URL, e.g. "https://xyz.supabase.co".
	URL    string `yaml:"url" json:"url"`
	APIKey string `yaml:"api_key" json:"-"`
	Table  string `yaml:"table" json:"table"`
}

// GitConfig places the listings file in a local git repository that
// records every change as a commit.
type GitConfig struct {
	Dir         string `yaml:"dir" json:"dir"`
	AuthorName  string `yaml:"author_name" json:"author_name"`
	AuthorEmail string `yaml:"author_email" json:"author_email"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	// Backend is "file" (default), "git" or "supabase".
	Backend  string         `yaml:"backend" json:"backend"`
	File     string         `yaml:"file" json:"file"`
	Git      GitConfig      `yaml:"git" json:"git"`
	Supabase SupabaseConfig `yaml:"supabase" json:"supabase"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// AdminConfig enables the approval API. PasswordHash is an Argon2id hash
// produced by `hackcal hash-password`.
type AdminConfig struct {
	Username     string `yaml:"username" json:"username"`
	PasswordHash string `yaml:"password_hash" json:"-"`
}

// SnapshotConfig controls periodic PNG captures of the timeline page.
type SnapshotConfig struct {
	// Cron is a cron-style schedule; empty disables the snapshot job.
	Cron   string `yaml:"cron" json:"cron"`
	Output string `yaml:"output" json:"output"`
	Width  int    `yaml:"width" json:"width"`
	Height int    `yaml:"height" json:"height"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the site and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone that decides what "today" is.
	Timezone string `yaml:"timezone" json:"timezone"`

	Log   LogConfig   `yaml:"log" json:"log"`
	Store StoreConfig `yaml:"store" json:"store"`

	// RefreshCron is a cron-style schedule string (e.g. "*/30 * * * *")
	// for re-fetching external feeds.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HorizonDays bounds how far ahead recurring feed events are expanded.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	Feeds []FeedConfig `yaml:"feeds" json:"feeds"`

	// CacheDir keeps the last good body of every feed.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// CategoryStyles maps a platform label to a style token used by the
	// timeline renderer. Platforms without an entry use DefaultStyle.
	CategoryStyles map[string]string `yaml:"category_styles" json:"category_styles"`
	DefaultStyle   string            `yaml:"default_style" json:"default_style"`

	// Admin, if set with both fields, enables the approval endpoints.
	Admin *AdminConfig `yaml:"admin,omitempty" json:"admin,omitempty"`

	Snapshot SnapshotConfig `yaml:"snapshot" json:"snapshot"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		Timezone:    "UTC",
		Log:         LogConfig{Level: "info", Format: "text"},
		Store:       StoreConfig{Backend: BackendFile, File: "hackathons.json"},
		RefreshCron: "*/30 * * * *",
		HorizonDays: 180,
		Feeds:       []FeedConfig{},
		CacheDir:    "./var/ics-cache",
		CategoryStyles: map[string]string{
			"DoraHacks": "orange",
			"ETHGlobal": "indigo",
			"Devfolio":  "blue",
		},
		DefaultStyle: "gray",
		Snapshot: SnapshotConfig{
			Output: "timeline.png",
			Width:  1600,
			Height: 900,
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	switch c.Store.Backend {
	case BackendFile, BackendGit, BackendSupabase:
	default:
		// Unknown or empty backend; the file store needs no credentials.
		c.Store.Backend = BackendFile
	}
	if c.Store.File == "" {
		c.Store.File = "hackathons.json"
	}
	if c.Store.Git.Dir == "" {
		c.Store.Git.Dir = "./var/hackathons-repo"
	}
	if c.Store.Git.AuthorName == "" {
		c.Store.Git.AuthorName = "hackcal"
	}
	if c.Store.Supabase.Table == "" {
		c.Store.Supabase.Table = "hackathons"
	}

	if c.RefreshCron == "" {
		c.RefreshCron = "*/30 * * * *"
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = 180
	}
	if c.Feeds == nil {
		c.Feeds = []FeedConfig{}
	}
	if c.CacheDir == "" {
		c.CacheDir = "./var/ics-cache"
	}
	if c.CategoryStyles == nil {
		c.CategoryStyles = map[string]string{}
	}
	if c.DefaultStyle == "" {
		c.DefaultStyle = "gray"
	}
	if c.Snapshot.Output == "" {
		c.Snapshot.Output = "timeline.png"
	}
	if c.Snapshot.Width <= 0 {
		c.Snapshot.Width = 1600
	}
	if c.Snapshot.Height <= 0 {
		c.Snapshot.Height = 900
	}
}

// AdminEnabled reports whether admin credentials are configured.
func (c *Config) AdminEnabled() bool {
	return c.Admin != nil && c.Admin.Username != "" && c.Admin.PasswordHash != ""
}

// Style returns the style token for a platform label.
func (c *Config) Style(category string) string {
	if s, ok := c.CategoryStyles[category]; ok && s != "" {
		return s
	}
	return c.DefaultStyle
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
//
// In both cases HACKCAL_SUPABASE_KEY and HACKCAL_LISTEN override the file.
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
				// Even if save fails, return cfg with error so caller can decide.
				applyEnv(cfg)
				return cfg, err
			}
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	applyEnv(&cfg)

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvSupabaseKey); v != "" {
		cfg.Store.Supabase.APIKey = v
	}
	if v := os.Getenv(EnvListen); v != "" {
		cfg.Listen = v
	}
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
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

	tmp, err := os.CreateTemp(dir, ".hackcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
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

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
