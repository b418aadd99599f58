// Package config loads and validates prospector configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/linkedin-prospector/internal/browser"
	"github.com/JakeFAU/linkedin-prospector/internal/connect"
	"github.com/JakeFAU/linkedin-prospector/internal/crawler"
	"github.com/JakeFAU/linkedin-prospector/internal/session"
)

// AppName names the default data directory and config file.
const AppName = "linkedin-prospector"

// Config captures every knob loaded via Viper.
type Config struct {
	DataDir string           `mapstructure:"data_dir"`
	Server  ServerConfig     `mapstructure:"server"`
	Logging LoggingConfig    `mapstructure:"logging"`
	Browser BrowserConfig    `mapstructure:"browser"`
	Crawler CrawlerConfig    `mapstructure:"crawler"`
	Connect connect.Settings `mapstructure:"connect"`
	Session SessionConfig    `mapstructure:"session"`
	Enrich  EnrichConfig     `mapstructure:"enrich"`
}

// ServerConfig controls the loopback ops server.
type ServerConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features and file retention.
type LoggingConfig struct {
	Development   bool `mapstructure:"development"`
	RetentionDays int  `mapstructure:"retention_days"`
}

// BrowserConfig shapes the Chrome instance behind every browser operation.
type BrowserConfig struct {
	UserAgent         string `mapstructure:"user_agent"`
	NavTimeoutSeconds int    `mapstructure:"nav_timeout_seconds"`
	Headless          bool   `mapstructure:"headless"`
	ChromePath        string `mapstructure:"chrome_path"`
}

// CrawlerConfig governs pacing, retries and debug snapshots.
type CrawlerConfig struct {
	DefaultDelaySeconds  float64        `mapstructure:"default_delay_seconds"`
	SalesNavDelaySeconds float64        `mapstructure:"sales_nav_delay_seconds"`
	BlockWaitSeconds     float64        `mapstructure:"block_wait_seconds"`
	MaxRetries           int            `mapstructure:"max_retries"`
	SaveDebugHTML        bool           `mapstructure:"save_debug_html"`
	MaxSnapshotBytes     int64          `mapstructure:"max_snapshot_bytes"`
	Skeleton             SkeletonConfig `mapstructure:"skeleton"`
}

// SkeletonConfig mirrors crawler.SkeletonRule.
type SkeletonConfig struct {
	URLFragment     string   `mapstructure:"url_fragment"`
	LoaderMarkers   []string `mapstructure:"loader_markers"`
	ResultMarkers   []string `mapstructure:"result_markers"`
	ResultSelectors []string `mapstructure:"result_selectors"`
}

// SessionConfig schedules health checks and bounds interactive login.
type SessionConfig struct {
	CheckSchedule       string `mapstructure:"check_schedule"`
	LoginTimeoutSeconds int    `mapstructure:"login_timeout_seconds"`
}

// EnrichConfig shapes profile enrichment.
type EnrichConfig struct {
	MaxPosts       int  `mapstructure:"max_posts"`
	IncludeDetails bool `mapstructure:"include_details"`
}

// Paths are the derived locations under DataDir.
type Paths struct {
	Profile     string
	Database    string
	CrawlData   string
	DebugHTML   string
	Logs        string
	Enrichments string
}

// legacyEnv maps keys to the environment names older installs used. The
// PROSPECTOR_ form still wins when both are set.
var legacyEnv = map[string]string{
	"logging.retention_days":      "WSP_LOG_RETENTION_DAYS",
	"crawler.save_debug_html":     "WS_PROSPECTOR_SAVE_DEBUG_HTML",
	"connect.daily_limit":         "LI_CONNECT_DAILY_LIMIT",
	"connect.min_delay_seconds":   "LI_CONNECT_MIN_DELAY_SECONDS",
	"connect.max_delay_seconds":   "LI_CONNECT_MAX_DELAY_SECONDS",
	"connect.business_hours_only": "LI_CONNECT_BUSINESS_HOURS_ONLY",
	"connect.biz_start_hour":      "LI_CONNECT_BIZ_START_HOUR",
	"connect.biz_end_hour":        "LI_CONNECT_BIZ_END_HOUR",
}

// Load builds a Config from defaults, an optional file and the environment.
// With an empty path it looks for prospector.{yaml,json,toml} in the working
// directory and the user config directory, and carries on without one.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PROSPECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	for key, legacy := range legacyEnv {
		envKey := "PROSPECTOR_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, legacy); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("prospector")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, AppName))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Connect = cfg.Connect.Normalize()
	if cfg.Logging.RetentionDays < 1 {
		cfg.Logging.RetentionDays = 1
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultDataDir is the per-user data directory, or ./data when the user
// config directory cannot be resolved.
func DefaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "data"
	}
	return filepath.Join(dir, AppName)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.api_key", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.retention_days", 14)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.nav_timeout_seconds", int(browser.DefaultNavigationTimeout/time.Second))
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.chrome_path", "")
	v.SetDefault("crawler.default_delay_seconds", crawler.DefaultDelay.Seconds())
	v.SetDefault("crawler.sales_nav_delay_seconds", crawler.DefaultSalesNavDelay.Seconds())
	v.SetDefault("crawler.block_wait_seconds", crawler.DefaultBlockWait.Seconds())
	v.SetDefault("crawler.max_retries", crawler.DefaultMaxRetries)
	v.SetDefault("crawler.save_debug_html", true)
	v.SetDefault("crawler.max_snapshot_bytes", 5<<20)
	rule := crawler.DefaultSkeletonRule()
	v.SetDefault("crawler.skeleton.url_fragment", rule.URLFragment)
	v.SetDefault("crawler.skeleton.loader_markers", rule.LoaderMarkers)
	v.SetDefault("crawler.skeleton.result_markers", rule.ResultMarkers)
	v.SetDefault("crawler.skeleton.result_selectors", rule.ResultSelectors)
	defaults := connect.DefaultSettings()
	v.SetDefault("connect.daily_limit", defaults.DailyLimit)
	v.SetDefault("connect.min_delay_seconds", defaults.MinDelaySeconds)
	v.SetDefault("connect.max_delay_seconds", defaults.MaxDelaySeconds)
	v.SetDefault("connect.business_hours_only", defaults.BusinessHoursOnly)
	v.SetDefault("connect.biz_start_hour", defaults.BizStartHour)
	v.SetDefault("connect.biz_end_hour", defaults.BizEndHour)
	v.SetDefault("session.check_schedule", session.DefaultCheckSchedule)
	v.SetDefault("session.login_timeout_seconds", int(session.DefaultLoginTimeout/time.Second))
	v.SetDefault("enrich.max_posts", 5)
	v.SetDefault("enrich.include_details", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Browser.NavTimeoutSeconds <= 0 {
		return fmt.Errorf("browser.nav_timeout_seconds must be > 0")
	}
	if c.Session.LoginTimeoutSeconds <= 0 {
		return fmt.Errorf("session.login_timeout_seconds must be > 0")
	}
	if c.Enrich.MaxPosts < 1 {
		return fmt.Errorf("enrich.max_posts must be >= 1")
	}
	if c.Crawler.MaxSnapshotBytes < 0 {
		return fmt.Errorf("crawler.max_snapshot_bytes must be >= 0")
	}
	return c.CrawlerConfig().Validate()
}

// Addr is the ops server listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// Paths derives the data layout under DataDir.
func (c Config) Paths() Paths {
	return Paths{
		Profile:     filepath.Join(c.DataDir, "sessions"),
		Database:    filepath.Join(c.DataDir, "leads.db"),
		CrawlData:   filepath.Join(c.DataDir, "crawldata"),
		DebugHTML:   filepath.Join(c.DataDir, "debug_html"),
		Logs:        filepath.Join(c.DataDir, "logs"),
		Enrichments: filepath.Join(c.DataDir, "enrichments"),
	}
}

// EnsureDirs creates the data directory layout.
func (c Config) EnsureDirs() error {
	p := c.Paths()
	for _, dir := range []string{c.DataDir, p.Profile, p.CrawlData, p.DebugHTML, p.Logs, p.Enrichments} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// CrawlerConfig converts the crawler section for the engine.
func (c Config) CrawlerConfig() crawler.Config {
	return crawler.Config{
		Headless:      c.Browser.Headless,
		DefaultDelay:  seconds(c.Crawler.DefaultDelaySeconds),
		SalesNavDelay: seconds(c.Crawler.SalesNavDelaySeconds),
		BlockWait:     seconds(c.Crawler.BlockWaitSeconds),
		MaxRetries:    c.Crawler.MaxRetries,
		Skeleton: crawler.SkeletonRule{
			URLFragment:     c.Crawler.Skeleton.URLFragment,
			LoaderMarkers:   c.Crawler.Skeleton.LoaderMarkers,
			ResultMarkers:   c.Crawler.Skeleton.ResultMarkers,
			ResultSelectors: c.Crawler.Skeleton.ResultSelectors,
		},
	}
}

// BrowserConfig converts the browser section for the launcher.
func (c Config) BrowserConfig() browser.Config {
	return browser.Config{
		ProfileDir:        c.Paths().Profile,
		ExecPath:          c.Browser.ChromePath,
		UserAgent:         c.Browser.UserAgent,
		NavigationTimeout: time.Duration(c.Browser.NavTimeoutSeconds) * time.Second,
	}
}

// LoginTimeout bounds interactive login.
func (c Config) LoginTimeout() time.Duration {
	return time.Duration(c.Session.LoginTimeoutSeconds) * time.Second
}

// Retention is how long log files are kept.
func (c Config) Retention() time.Duration {
	return time.Duration(c.Logging.RetentionDays) * 24 * time.Hour
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
