// Package config loads and validates the harvester configuration. All values
// originate from Viper so runs can be configured via YAML file, environment
// variables (HARVESTER_ prefix), or CLI flags; the Config struct itself is
// decoupled from Viper so components stay testable.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// HeadlessMode selects when the dynamic (headless browser) renderer is used.
type HeadlessMode string

// Headless rendering modes. Auto renders statically first and pays the
// browser cost only when the SPA detector trips.
const (
	HeadlessNever  HeadlessMode = "false"
	HeadlessAlways HeadlessMode = "true"
	HeadlessAuto   HeadlessMode = "auto"
)

// Target is a named set of entry URLs, so recurring crawls can be launched
// by name instead of pasting URLs.
type Target struct {
	Name string   `mapstructure:"name" json:"name"`
	URLs []string `mapstructure:"urls" json:"urls"`
}

// SiteProfile carries per-domain selector hints: domain knowledge that
// overrides the generic extraction heuristics.
type SiteProfile struct {
	Domain              string   `mapstructure:"domain" json:"domain"`
	DetailLinkSelectors []string `mapstructure:"detail_link_selectors" json:"detail_link_selectors,omitempty"`
	TitleSelectors      []string `mapstructure:"title_selectors" json:"title_selectors,omitempty"`
	ContentSelectors    []string `mapstructure:"content_selectors" json:"content_selectors,omitempty"`
}

// Config captures every knob that influences a crawl run. It is immutable
// per run; a snapshot is embedded in each checkpoint.
type Config struct {
	MaxDepth         int           `json:"max_depth"`
	MaxPages         int           `json:"max_pages"`
	RequestDelay     time.Duration `json:"request_delay"`
	Concurrency      int           `json:"concurrency"`
	Timeout          time.Duration `json:"timeout"`
	MaxRetries       int           `json:"max_retries"`
	RetryDelay       time.Duration `json:"retry_delay"`
	StayInDomain     bool          `json:"stay_in_domain"`
	AllowedDomains   []string      `json:"allowed_domains,omitempty"`
	UseHeadless      HeadlessMode  `json:"use_headless"`
	RespectRobotsTxt bool          `json:"respect_robots_txt"`
	UserAgent        string        `json:"user_agent"`
	DryRun           bool          `json:"dry_run"`

	CheckpointDir      string        `json:"checkpoint_dir"`
	CheckpointInterval time.Duration `json:"checkpoint_interval"`
	CacheSize          int           `json:"cache_size"`
	CacheTTL           time.Duration `json:"cache_ttl"`
	CachePath          string        `json:"cache_path"`
	MaxLinksPerPage    int           `json:"max_links_per_page"`

	DatabaseURL string        `json:"-"`
	StatusAddr  string        `json:"status_addr,omitempty"`
	Development bool          `json:"development"`
	Profiles    []SiteProfile `json:"profiles,omitempty"`
	Targets     []Target      `json:"targets,omitempty"`
}

const defaultUserAgent = "HojokinHarvester/1.0 (+https://github.com/hojonavi/hojokin-harvester)"

// SetDefaults registers defaults for every key so a bare environment still
// produces a valid configuration.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("crawler.max_depth", 3)
	v.SetDefault("crawler.max_pages", 100)
	v.SetDefault("crawler.request_delay", "1s")
	v.SetDefault("crawler.concurrency", 2)
	v.SetDefault("crawler.timeout", "30s")
	v.SetDefault("crawler.max_retries", 3)
	v.SetDefault("crawler.retry_delay", "1s")
	v.SetDefault("crawler.stay_in_domain", true)
	v.SetDefault("crawler.allowed_domains", []string{})
	v.SetDefault("crawler.use_headless", string(HeadlessAuto))
	v.SetDefault("crawler.respect_robots", true)
	v.SetDefault("crawler.user_agent", defaultUserAgent)
	v.SetDefault("crawler.dry_run", false)
	v.SetDefault("crawler.max_links_per_page", 100)

	v.SetDefault("checkpoint.dir", "data/checkpoints")
	v.SetDefault("checkpoint.interval", "1m")

	v.SetDefault("cache.size", 500)
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.path", "data/cache/pages.json")

	v.SetDefault("database.url", "")
	v.SetDefault("server.status_addr", "")
	v.SetDefault("logging.development", false)
}

// Init wires the search paths and environment handling on the given Viper.
func Init(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("harvester")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/harvester/")
		v.AddConfigPath("$HOME/.harvester")
	}
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Load constructs a Config from Viper and validates it.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		MaxDepth:         v.GetInt("crawler.max_depth"),
		MaxPages:         v.GetInt("crawler.max_pages"),
		RequestDelay:     v.GetDuration("crawler.request_delay"),
		Concurrency:      v.GetInt("crawler.concurrency"),
		Timeout:          v.GetDuration("crawler.timeout"),
		MaxRetries:       v.GetInt("crawler.max_retries"),
		RetryDelay:       v.GetDuration("crawler.retry_delay"),
		StayInDomain:     v.GetBool("crawler.stay_in_domain"),
		AllowedDomains:   v.GetStringSlice("crawler.allowed_domains"),
		UseHeadless:      HeadlessMode(v.GetString("crawler.use_headless")),
		RespectRobotsTxt: v.GetBool("crawler.respect_robots"),
		UserAgent:        v.GetString("crawler.user_agent"),
		DryRun:           v.GetBool("crawler.dry_run"),
		MaxLinksPerPage:  v.GetInt("crawler.max_links_per_page"),

		CheckpointDir:      v.GetString("checkpoint.dir"),
		CheckpointInterval: v.GetDuration("checkpoint.interval"),
		CacheSize:          v.GetInt("cache.size"),
		CacheTTL:           v.GetDuration("cache.ttl"),
		CachePath:          v.GetString("cache.path"),

		DatabaseURL: v.GetString("database.url"),
		StatusAddr:  v.GetString("server.status_addr"),
		Development: v.GetBool("logging.development"),
	}
	if err := v.UnmarshalKey("sites", &cfg.Profiles); err != nil {
		return Config{}, fmt.Errorf("parse site profiles: %w", err)
	}
	if err := v.UnmarshalKey("targets", &cfg.Targets); err != nil {
		return Config{}, fmt.Errorf("parse targets: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if c.MaxDepth < 0 {
		return fmt.Errorf("crawler.max_depth must be >= 0")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("crawler.max_pages must be > 0")
	}
	if c.RequestDelay <= 0 {
		return fmt.Errorf("crawler.request_delay must be > 0")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("crawler.timeout must be > 0")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("crawler.max_retries must be >= 0")
	}
	if c.RetryDelay <= 0 {
		return fmt.Errorf("crawler.retry_delay must be > 0")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("crawler.user_agent must be set")
	}
	switch c.UseHeadless {
	case HeadlessNever, HeadlessAlways, HeadlessAuto:
	default:
		return fmt.Errorf("crawler.use_headless must be true, false, or auto")
	}
	return nil
}

// TargetByName returns the named crawl target, if configured.
func (c Config) TargetByName(name string) (Target, bool) {
	for _, t := range c.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return Target{}, false
}

// ProfileFor returns the site profile matching host, if any.
func (c Config) ProfileFor(host string) (SiteProfile, bool) {
	host = strings.ToLower(host)
	for _, p := range c.Profiles {
		domain := strings.ToLower(p.Domain)
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return p, true
		}
	}
	return SiteProfile{}, false
}
