// Package config loads and validates the scraper configuration file.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/artie-scraper/artie/pkg/logging"
)

// Config is the full scraper configuration.
type Config struct {
	RomsPath string `mapstructure:"roms_path"`
	CacheDir string `mapstructure:"cache_dir"`

	Credentials CredentialsConfig `mapstructure:"credentials"`

	// Threads is the user-side worker ceiling; the server may negotiate
	// it further down at run time.
	Threads int `mapstructure:"threads"`

	// Regions is the media region priority list, first match wins.
	Regions []string `mapstructure:"regions"`

	// Systems maps ROM directory names under RomsPath to ScreenScraper
	// system identifiers.
	Systems map[string]string `mapstructure:"systems"`

	Content ContentConfig `mapstructure:"content"`
	Log     LogConfig     `mapstructure:"log"`

	// MetricsAddr, when set, exposes Prometheus metrics on that address.
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// CredentialsConfig holds the four-part API authentication set. The dev
// fields are base64-encoded in the file.
type CredentialsConfig struct {
	DevID       string `mapstructure:"dev_id"`
	DevPassword string `mapstructure:"dev_password"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
}

// ContentConfig selects which artwork slots to scrape and how.
type ContentConfig struct {
	Box      MediaSlot    `mapstructure:"box"`
	Preview  MediaSlot    `mapstructure:"preview"`
	Synopsis SynopsisSlot `mapstructure:"synopsis"`
}

// MediaSlot configures one artwork download slot.
type MediaSlot struct {
	Enabled bool   `mapstructure:"enabled"`
	Type    string `mapstructure:"type"`
	Width   int    `mapstructure:"width"`
	Height  int    `mapstructure:"height"`
}

// SynopsisSlot configures synopsis text extraction.
type SynopsisSlot struct {
	Enabled bool   `mapstructure:"enabled"`
	Lang    string `mapstructure:"lang"`
}

// LogConfig configures logging output and rotation.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	Pretty     bool   `mapstructure:"pretty"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

const (
	defaultThreads = 10
	maxThreads     = 20
)

// Load reads and validates the configuration file. JSON and TOML are
// both accepted; the format is inferred from the file extension.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absCache, err := filepath.Abs(cfg.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("resolving cache dir: %w", err)
	}
	cfg.CacheDir = absCache

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cache_dir", "./cache")
	v.SetDefault("threads", defaultThreads)
	v.SetDefault("regions", []string{"us", "ame", "wor"})
	v.SetDefault("content.box.type", "box-2D")
	v.SetDefault("content.box.width", 320)
	v.SetDefault("content.box.height", 240)
	v.SetDefault("content.preview.type", "ss")
	v.SetDefault("content.preview.width", 640)
	v.SetDefault("content.preview.height", 480)
	v.SetDefault("content.synopsis.lang", "en")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 14)
}

func applyDefaults(cfg *Config) {
	if cfg.Threads < 1 {
		cfg.Threads = defaultThreads
	}
	if cfg.Threads > maxThreads {
		cfg.Threads = maxThreads
	}
	if len(cfg.Regions) == 0 {
		cfg.Regions = []string{"us", "ame", "wor"}
	}
}

// Validate checks the invariants the rest of the program relies on.
func (c *Config) Validate() error {
	if c.RomsPath == "" {
		return fmt.Errorf("roms_path is required")
	}
	if c.Credentials.DevID == "" || c.Credentials.DevPassword == "" {
		return fmt.Errorf("credentials.dev_id and credentials.dev_password are required")
	}
	if c.Credentials.Username == "" || c.Credentials.Password == "" {
		return fmt.Errorf("credentials.username and credentials.password are required")
	}
	if c.Content.Box.Enabled && c.Content.Box.Type == "" {
		return fmt.Errorf("content.box.type is required when box is enabled")
	}
	if c.Content.Preview.Enabled && c.Content.Preview.Type == "" {
		return fmt.Errorf("content.preview.type is required when preview is enabled")
	}
	return nil
}

// LoggingConfig converts the log section into the logging package's
// configuration.
func (c *Config) LoggingConfig() logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = logging.LogLevel(c.Log.Level)
	lc.Pretty = c.Log.Pretty
	lc.FilePath = c.Log.FilePath
	if c.Log.MaxSizeMB > 0 {
		lc.MaxSizeMB = c.Log.MaxSizeMB
	}
	if c.Log.MaxBackups > 0 {
		lc.MaxBackups = c.Log.MaxBackups
	}
	if c.Log.MaxAgeDays > 0 {
		lc.MaxAgeDays = c.Log.MaxAgeDays
	}
	return lc
}
