package monitor

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/docwatch/fetch"
)

// Config configures the monitor service. Secrets (bot token, chat id)
// come from the environment, never from the file.
type Config struct {
	Storage  StorageConfig  `yaml:"storage"`
	Fetcher  FetcherConfig  `yaml:"fetcher"`
	Reports  ReportsConfig  `yaml:"reports"`
	Telegram TelegramConfig `yaml:"telegram"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	// Interval between cycles when running as a daemon.
	IntervalMinutes int `yaml:"interval_minutes"`
}

// StorageConfig locates the two independent persistence roots.
type StorageConfig struct {
	SnapshotDB string `yaml:"snapshot_db"`
	ReportsDir string `yaml:"reports_dir"`
}

// FetcherConfig tunes the HTTP fetcher. DelayMs is a pointer so an
// explicit 0 (no pause between requests) is distinct from the field
// being absent, which gets the default.
type FetcherConfig struct {
	Concurrency    int  `yaml:"concurrency"`
	DelayMs        *int `yaml:"delay_between_requests_ms"`
	TimeoutSeconds int  `yaml:"timeout_seconds"`
	Retries        int  `yaml:"retry_count"`
	MaxBytes       int  `yaml:"max_bytes"`
}

// ReportsConfig controls report publication.
type ReportsConfig struct {
	// BaseURL is where the reports tree is served (e.g. a Pages site).
	BaseURL string `yaml:"base_url"`
}

// TelegramConfig enables the Telegram sink. The token and chat id are
// read from TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID.
type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"-"`
	ChatID  string `yaml:"-"`
}

// Configured reports whether the sink can actually send.
func (t *TelegramConfig) Configured() bool {
	return t.Enabled && t.Token != "" && t.ChatID != ""
}

// WebhookConfig enables the webhook sink.
type WebhookConfig struct {
	URL string `yaml:"url"`
}

func (c *Config) defaults() {
	if c.Storage.SnapshotDB == "" {
		c.Storage.SnapshotDB = "data/snapshots.db"
	}
	if c.Storage.ReportsDir == "" {
		c.Storage.ReportsDir = "reports"
	}
	if c.Fetcher.Concurrency <= 0 {
		c.Fetcher.Concurrency = 5
	}
	if c.Fetcher.DelayMs == nil || *c.Fetcher.DelayMs < 0 {
		ms := 500
		c.Fetcher.DelayMs = &ms
	}
	if c.Fetcher.TimeoutSeconds <= 0 {
		c.Fetcher.TimeoutSeconds = 30
	}
	if c.Fetcher.Retries <= 0 {
		c.Fetcher.Retries = 3
	}
	if c.IntervalMinutes <= 0 {
		c.IntervalMinutes = 60
	}
}

// FetchConfig converts the YAML tuning into the fetcher's config.
func (c *Config) FetchConfig() fetch.Config {
	delay := 500 * time.Millisecond
	if c.Fetcher.DelayMs != nil {
		delay = time.Duration(*c.Fetcher.DelayMs) * time.Millisecond
	}
	return fetch.Config{
		Timeout:     time.Duration(c.Fetcher.TimeoutSeconds) * time.Second,
		MaxBytes:    int64(c.Fetcher.MaxBytes),
		Concurrency: c.Fetcher.Concurrency,
		Delay:       delay,
		Retries:     c.Fetcher.Retries,
	}
}

// LoadConfig reads the YAML config file, applies defaults, and pulls
// secrets from the environment.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.defaults()

	cfg.Telegram.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.Telegram.ChatID = os.Getenv("TELEGRAM_CHAT_ID")

	return &cfg, nil
}

// Source is one tracked documentation site: a URL template plus the page
// slugs to watch under it.
type Source struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	URLTemplate string   `yaml:"url_template"`
	Pages       []string `yaml:"pages"`
}

// PageURL expands the template for one page slug.
func (s *Source) PageURL(slug string) string {
	return strings.ReplaceAll(s.URLTemplate, "{slug}", slug)
}

// LoadSources reads the tracked-source list from YAML.
func LoadSources(path string) ([]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sources: read %s: %w", path, err)
	}

	var doc struct {
		Sources []Source `yaml:"sources"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("sources: parse %s: %w", path, err)
	}

	for i, src := range doc.Sources {
		if src.ID == "" {
			return nil, fmt.Errorf("sources: entry %d has no id", i)
		}
		if src.URLTemplate == "" {
			return nil, fmt.Errorf("sources: %s has no url_template", src.ID)
		}
		if !strings.Contains(src.URLTemplate, "{slug}") {
			return nil, fmt.Errorf("sources: %s url_template has no {slug} placeholder", src.ID)
		}
	}
	return doc.Sources, nil
}
