package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/promoclaim/internal/flagx"
)

// Config holds runtime settings for the claimer.
type Config struct {
	// DataDir is the resolved, existing data directory.
	DataDir string
	// DataDirFlag and CustomDataPath feed ResolveDataDir.
	DataDirFlag    string
	CustomDataPath string

	MaxConcurrency int
	SiteProfile    string
	Headless       bool
	Auto           bool
	BrowserPath    string

	LogLevel   string
	LogFormat  string
	Passphrase string

	SessionTTL        time.Duration
	ExpiryWarnDays    int
	ItemPause         time.Duration
	LoginPoll         time.Duration
	LoginTimeout      time.Duration
	EnrollTimeout     time.Duration
	CheckoutAttempts  int
	CheckoutPoll      time.Duration
	ReclickEvery      int
	ConfirmTimeout    time.Duration
	StepTimeout       time.Duration
	RecentLogCapacity int

	NotificationDomains []string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.MaxConcurrency = 3
	c.LogLevel = "info"
	c.LogFormat = "text"
	c.SessionTTL = 30 * 24 * time.Hour
	c.ExpiryWarnDays = 3
	c.ItemPause = 3 * time.Second
	c.LoginPoll = 2 * time.Second
	c.LoginTimeout = 5 * time.Minute
	c.EnrollTimeout = 5 * time.Minute
	c.CheckoutAttempts = 20
	c.CheckoutPoll = time.Second
	c.ReclickEvery = 5
	c.ConfirmTimeout = 30 * time.Second
	c.StepTimeout = 45 * time.Second
	c.RecentLogCapacity = 1000
	c.NotificationDomains = []string{"epicgames.com", "sentry.io"}
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON, the environment and command-line flags, and finally resolves the data
// directory. Later sources take precedence over earlier ones.
func LoadConfig() (*Config, error) {
	return load(os.Args[1:], flagx.ConfigPath(os.Args[1:]))
}

func load(args []string, jsonPath string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJson(cfg, jsonPath); err != nil {
		return nil, err
	}
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	parseEnv(cfg)
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if cfg.MaxConcurrency < 1 {
		return nil, fmt.Errorf("max concurrency must be positive, got %d", cfg.MaxConcurrency)
	}

	home, _ := os.UserHomeDir()
	dir, err := ResolveDataDir(cfg.DataDirFlag, os.Getenv(EnvDataDir), cfg.CustomDataPath, home)
	if err != nil {
		return nil, err
	}
	cfg.DataDir = dir
	return cfg, nil
}

func (c *Config) AccountsFile() string { return filepath.Join(c.DataDir, "accounts.json") }
func (c *Config) KeyFile() string      { return filepath.Join(c.DataDir, "key.key") }
func (c *Config) SaltFile() string     { return filepath.Join(c.DataDir, "key.salt") }
func (c *Config) SessionsDir() string  { return filepath.Join(c.DataDir, "sessions") }
func (c *Config) LedgerFile() string   { return filepath.Join(c.DataDir, "claimed_history.json") }
func (c *Config) ProfilesDir() string  { return filepath.Join(c.DataDir, "profiles") }

func (c *Config) ScreenshotsDir() string {
	return filepath.Join(c.DataDir, "screenshots")
}
