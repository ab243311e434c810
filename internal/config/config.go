package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"
	configPathEnv   = "NEWSLETTERHUB_CONFIG"

	portEnv          = "PORT"
	baseURLEnv       = "BASE_URL"
	databaseDSNEnv   = "DATABASE_DSN"
	smtpHostEnv      = "SMTP_HOST"
	smtpPortEnv      = "SMTP_PORT"
	smtpUsernameEnv  = "SMTP_USERNAME"
	smtpPasswordEnv  = "SMTP_PASSWORD"
	smtpFromEnv      = "SMTP_FROM_ADDRESS"
	resendAPIKeyEnv  = "RESEND_API_KEY"
	summarizerKeyEnv = "SUMMARIZER_API_KEY"
)

// Config holds high-level settings required across the application.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	SMTP       SMTPConfig       `yaml:"smtp"`
	Resend     ResendConfig     `yaml:"resend"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Logging    LoggingConfig    `yaml:"logging"`
	Sites      []SiteConfig     `yaml:"sites"`
}

// ServerConfig describes the HTTP listener and the public link base used
// inside generated emails.
type ServerConfig struct {
	Addr                string `yaml:"addr"`
	BaseURL             string `yaml:"baseUrl"`
	FallbackRedirectURL string `yaml:"fallbackRedirectUrl"`
}

// DatabaseConfig describes Postgres connection details. An empty DSN selects
// the in-memory stores (development mode).
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// SchedulerConfig defines when the newsletter pipeline should run.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// SMTPConfig wires the development/default email transport. Empty credentials
// switch the sender into simulated dev-mode delivery.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// ResendConfig selects the Resend API transport when an API key is present.
type ResendConfig struct {
	APIKey string `yaml:"apiKey"`
	From   string `yaml:"from"`
}

// SummarizerConfig defines how to contact an OpenAI-compatible API. An empty
// APIKey selects the mock summarizer.
type SummarizerConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Model        string `yaml:"model"`
	APIKey       string `yaml:"apiKey"`
	SystemPrompt string `yaml:"systemPrompt"`
}

// PipelineConfig bounds one newsletter issue and paces the send loop.
type PipelineConfig struct {
	MaxInterests        int `yaml:"maxInterests"`
	ArticlesPerInterest int `yaml:"articlesPerInterest"`
	MaxArticlesPerIssue int `yaml:"maxArticlesPerIssue"`
	PauseBetweenSendsMs int `yaml:"pauseBetweenSendsMs"`
}

// Pause converts the configured inter-subscriber delay to a duration.
func (p PipelineConfig) Pause() time.Duration {
	return time.Duration(p.PauseBetweenSendsMs) * time.Millisecond
}

// LoggingConfig controls slog verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SiteConfig describes a single scrapeable site with its scanner strategy and
// the interest topics it serves.
type SiteConfig struct {
	Name    string   `yaml:"name"`
	Scanner string   `yaml:"scanner"`
	URL     string   `yaml:"url"`
	Topics  []string `yaml:"topics"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if len(cfg.Sites) == 0 {
		cfg.Sites = defaultConfig().Sites
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(portEnv); v != "" {
		c.Server.Addr = ":" + v
	}

	if v := os.Getenv(baseURLEnv); v != "" {
		c.Server.BaseURL = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(smtpHostEnv); v != "" {
		c.SMTP.Host = v
	}

	if v := os.Getenv(smtpPortEnv); v != "" {
		c.SMTP.Port = v
	}

	if v := os.Getenv(smtpUsernameEnv); v != "" {
		c.SMTP.Username = v
		if c.SMTP.From == "" {
			c.SMTP.From = v
		}
	}

	if v := os.Getenv(smtpPasswordEnv); v != "" {
		c.SMTP.Password = v
	}

	if v := os.Getenv(smtpFromEnv); v != "" {
		c.SMTP.From = v
	}

	if v := os.Getenv(resendAPIKeyEnv); v != "" {
		c.Resend.APIKey = v
	}

	if v := os.Getenv(summarizerKeyEnv); v != "" {
		c.Summarizer.APIKey = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}
	if override.Server.BaseURL != "" {
		base.Server.BaseURL = override.Server.BaseURL
	}
	if override.Server.FallbackRedirectURL != "" {
		base.Server.FallbackRedirectURL = override.Server.FallbackRedirectURL
	}

	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.SMTP.Host != "" {
		base.SMTP.Host = override.SMTP.Host
	}
	if override.SMTP.Port != "" {
		base.SMTP.Port = override.SMTP.Port
	}
	if override.SMTP.Username != "" {
		base.SMTP.Username = override.SMTP.Username
	}
	if override.SMTP.Password != "" {
		base.SMTP.Password = override.SMTP.Password
	}
	if override.SMTP.From != "" {
		base.SMTP.From = override.SMTP.From
	}

	if override.Resend.APIKey != "" {
		base.Resend.APIKey = override.Resend.APIKey
	}
	if override.Resend.From != "" {
		base.Resend.From = override.Resend.From
	}

	if override.Summarizer.Endpoint != "" {
		base.Summarizer.Endpoint = override.Summarizer.Endpoint
	}
	if override.Summarizer.Model != "" {
		base.Summarizer.Model = override.Summarizer.Model
	}
	if override.Summarizer.APIKey != "" {
		base.Summarizer.APIKey = override.Summarizer.APIKey
	}
	if override.Summarizer.SystemPrompt != "" {
		base.Summarizer.SystemPrompt = override.Summarizer.SystemPrompt
	}

	if override.Pipeline.MaxInterests > 0 {
		base.Pipeline.MaxInterests = override.Pipeline.MaxInterests
	}
	if override.Pipeline.ArticlesPerInterest > 0 {
		base.Pipeline.ArticlesPerInterest = override.Pipeline.ArticlesPerInterest
	}
	if override.Pipeline.MaxArticlesPerIssue > 0 {
		base.Pipeline.MaxArticlesPerIssue = override.Pipeline.MaxArticlesPerIssue
	}
	if override.Pipeline.PauseBetweenSendsMs > 0 {
		base.Pipeline.PauseBetweenSendsMs = override.Pipeline.PauseBetweenSendsMs
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if len(override.Sites) > 0 {
		base.Sites = override.Sites
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Server: ServerConfig{
			Addr:                ":8000",
			BaseURL:             "http://localhost:8000",
			FallbackRedirectURL: "http://localhost:8000",
		},
		Database:  DatabaseConfig{DSN: ""},
		Scheduler: SchedulerConfig{CronExpression: "0 8 * * *", Timezone: defaultTimezone, location: tz},
		SMTP: SMTPConfig{
			Host: "smtp.gmail.com",
			Port: "587",
		},
		Summarizer: SummarizerConfig{
			Endpoint:     "https://api.openai.com/v1/chat/completions",
			Model:        "gpt-4o-mini",
			SystemPrompt: "You summarize news articles in one short sentence.",
		},
		Pipeline: PipelineConfig{
			MaxInterests:        3,
			ArticlesPerInterest: 2,
			MaxArticlesPerIssue: 5,
			PauseBetweenSendsMs: 500,
		},
		Logging: LoggingConfig{Level: "info"},
		Sites: []SiteConfig{
			{
				Name:    "techcrunch",
				Scanner: "headline",
				URL:     "https://techcrunch.com/",
				Topics:  []string{"tech", "ai"},
			},
			{
				Name:    "theverge",
				Scanner: "headline",
				URL:     "https://www.theverge.com/",
				Topics:  []string{"tech"},
			},
			{
				Name:    "arstechnica",
				Scanner: "headline",
				URL:     "https://arstechnica.com/",
				Topics:  []string{"tech", "science"},
			},
		},
	}
}
