package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/postwright/postwright/pkg/logger"
	"github.com/postwright/postwright/pkg/models"
)

// Config holds all postwright configuration.
type Config struct {
	Listen       string             `yaml:"listen"`
	DBPath       string             `yaml:"db_path"`
	ArtifactsDir string             `yaml:"artifacts_dir"`
	TempDir      string             `yaml:"temp_dir"`
	JobTimeout   time.Duration      `yaml:"job_timeout"`
	Log          logger.Config      `yaml:"log"`
	Providers    []ProviderConfig   `yaml:"providers"`
	Router       RouterConfig       `yaml:"router"`
	Pricing      PricingConfig      `yaml:"pricing"`
	Budget       BudgetConfig       `yaml:"budget"`
	Cache        CacheConfig        `yaml:"cache"`
	Audit        models.AuditConfig `yaml:"audit"`
	Downloader   DownloaderConfig   `yaml:"downloader"`
	Notify       NotifyConfig       `yaml:"notify"`
	Sentry       SentryConfig       `yaml:"sentry"`
}

// ProviderConfig defines an AI provider account.
// Type is "gemini" or "openai".
type ProviderConfig struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	APIKey string `yaml:"api_key"`
	URL    string `yaml:"url"`
	// RPM caps requests per minute. Zero means unlimited.
	RPM int `yaml:"rpm"`
}

// Capabilities a route can serve.
const (
	CapabilityText          = "text"
	CapabilityImage         = "image"
	CapabilityTranscription = "transcription"
)

// RouterConfig maps capabilities, optionally per job kind, to providers.
type RouterConfig struct {
	Routes []RouteConfig `yaml:"routes"`
}

// RouteConfig selects the provider and model for a capability. An empty Job
// applies to every job kind.
type RouteConfig struct {
	Capability string `yaml:"capability"`
	Job        string `yaml:"job"`
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
}

// PricingConfig prices provider calls and seeds job estimates.
type PricingConfig struct {
	Text                   []models.ModelPricing `yaml:"text"`
	DefaultTextPer1K       float64               `yaml:"default_text_per_1k"`
	ImagePerCall           float64               `yaml:"image_per_call"`
	TranscriptionPerMinute float64               `yaml:"transcription_per_minute"`
	Estimates              map[string]float64    `yaml:"estimates"`
}

// BudgetConfig controls budget gating.
type BudgetConfig struct {
	MonthlyLimit   float64 `yaml:"monthly_limit"`
	AlertThreshold float64 `yaml:"alert_threshold"`
	// DailyLimit overrides monthly_limit/30 when positive.
	DailyLimit     float64 `yaml:"daily_limit"`
	DailyBuffer    float64 `yaml:"daily_buffer"`
	AverageJobCost float64 `yaml:"average_job_cost"`
	// Reserve switches from advisory checks to reservations.
	Reserve  bool   `yaml:"reserve"`
	RedisURL string `yaml:"redis_url"`
}

// CacheConfig controls the text generation cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
}

// DownloaderConfig controls reel downloads.
type DownloaderConfig struct {
	Binary    string        `yaml:"binary"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxSizeMB int           `yaml:"max_size_mb"`
}

// NotifyConfig controls budget alert delivery.
type NotifyConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig identifies the bot and chat for alerts.
type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

// SentryConfig enables error tracking when DSN is set.
type SentryConfig struct {
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen:       ":3000",
		DBPath:       "postwright.db",
		ArtifactsDir: "artifacts",
		JobTimeout:   5 * time.Minute,
		Log: logger.Config{
			Level:  "info",
			Format: "json",
		},
		Providers: []ProviderConfig{
			{Name: "gemini", Type: "gemini"},
			{Name: "openai", Type: "openai"},
		},
		Pricing: PricingConfig{
			Text: []models.ModelPricing{
				{Model: "gemini-2.5-flash", PromptCost: 0.0003, CompletionCost: 0.0025},
				{Model: "gpt-4o-mini", PromptCost: 0.005, CompletionCost: 0.015},
				{Model: "gpt-4", PromptCost: 0.03, CompletionCost: 0.06},
				{Model: "gpt-3.5-turbo", PromptCost: 0.0005, CompletionCost: 0.0015},
			},
			DefaultTextPer1K:       0.002,
			ImagePerCall:           0.04,
			TranscriptionPerMinute: 0.006,
			Estimates: map[string]float64{
				string(models.JobTextGeneration): 0.003,
				string(models.JobReelAnalysis):   0.008,
				string(models.JobInfographic):    0.04,
				string(models.JobImprove):        0.05,
				string(models.JobPostAnalysis):   0.02,
				string(models.JobVideoUpload):    0.02,
			},
		},
		Budget: BudgetConfig{
			MonthlyLimit:   10.00,
			AlertThreshold: 8.00,
			DailyBuffer:    1.5,
			AverageJobCost: 0.10,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     24 * time.Hour,
		},
		Audit: models.AuditConfig{
			RetentionDays: 90,
			MaxDetailSize: 4096,
		},
		Downloader: DownloaderConfig{
			Binary:    "yt-dlp",
			Timeout:   2 * time.Minute,
			MaxSizeMB: 25,
		},
		Sentry: SentryConfig{
			Environment: "production",
		},
	}
}

// Load reads a YAML config file, expands environment variables and applies
// environment overrides. An empty path yields the defaults plus overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}

		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if cfg.Audit.DBPath == "" {
		cfg.Audit.DBPath = cfg.DBPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects inconsistent settings.
func (c *Config) Validate() error {
	// Zero is rejected rather than read as "no spend": the budget policy
	// treats a zero limit as unset.
	if c.Budget.MonthlyLimit <= 0 {
		return fmt.Errorf("budget.monthly_limit must be positive")
	}
	if c.Budget.AlertThreshold < 0 || c.Budget.AlertThreshold > c.Budget.MonthlyLimit {
		return fmt.Errorf("budget.alert_threshold must be between 0 and monthly_limit")
	}
	if c.Budget.DailyLimit < 0 {
		return fmt.Errorf("budget.daily_limit must not be negative")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	seen := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if p.Type != "gemini" && p.Type != "openai" {
			return fmt.Errorf("provider %q: unknown type %q", p.Name, p.Type)
		}
		if seen[p.Name] {
			return fmt.Errorf("provider %q defined twice", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// Provider returns the provider with the given name.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

// envOverrides lists the variables that override file settings. Unset
// variables leave the pointers nil.
type envOverrides struct {
	Listen         *string  `envconfig:"LISTEN_ADDR"`
	DBPath         *string  `envconfig:"DB_PATH"`
	MonthlyBudget  *float64 `envconfig:"MONTHLY_BUDGET_LIMIT"`
	AlertThreshold *float64 `envconfig:"ALERT_THRESHOLD"`
	DailyLimit     *float64 `envconfig:"DAILY_BUDGET_LIMIT"`
	GeminiKey      *string  `envconfig:"GEMINI_API_KEY"`
	OpenAIKey      *string  `envconfig:"OPENAI_API_KEY"`
	TextProvider   *string  `envconfig:"TEXT_PROVIDER"`
	LogLevel       *string  `envconfig:"LOG_LEVEL"`
	TelegramToken  *string  `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChat   *int64   `envconfig:"TELEGRAM_CHAT_ID"`
	SentryDSN      *string  `envconfig:"SENTRY_DSN"`
	RedisURL       *string  `envconfig:"REDIS_URL"`
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("env overrides: %w", err)
	}

	setString(&c.Listen, env.Listen)
	setString(&c.DBPath, env.DBPath)
	setString(&c.Log.Level, env.LogLevel)
	setString(&c.Notify.Telegram.Token, env.TelegramToken)
	setString(&c.Sentry.DSN, env.SentryDSN)
	setString(&c.Budget.RedisURL, env.RedisURL)
	if env.MonthlyBudget != nil {
		c.Budget.MonthlyLimit = *env.MonthlyBudget
	}
	if env.AlertThreshold != nil {
		c.Budget.AlertThreshold = *env.AlertThreshold
	}
	if env.DailyLimit != nil {
		c.Budget.DailyLimit = *env.DailyLimit
	}
	if env.TelegramChat != nil {
		c.Notify.Telegram.ChatID = *env.TelegramChat
	}
	if env.GeminiKey != nil {
		c.setProviderKey("gemini", *env.GeminiKey)
	}
	if env.OpenAIKey != nil {
		c.setProviderKey("openai", *env.OpenAIKey)
	}
	if env.TextProvider != nil && *env.TextProvider != "" {
		c.Router.Routes = append([]RouteConfig{{Capability: CapabilityText, Provider: *env.TextProvider}}, c.Router.Routes...)
	}
	return nil
}

// setProviderKey fills the key of every provider of type typ that has none,
// adding a provider when none of that type exists.
func (c *Config) setProviderKey(typ, key string) {
	found := false
	for i := range c.Providers {
		if c.Providers[i].Type != typ {
			continue
		}
		found = true
		if c.Providers[i].APIKey == "" {
			c.Providers[i].APIKey = key
		}
	}
	if !found {
		c.Providers = append(c.Providers, ProviderConfig{Name: typ, Type: typ, APIKey: key})
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
