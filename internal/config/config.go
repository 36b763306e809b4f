package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"

	configPathEnv      = "CIVIC_SCANNER_CONFIG"
	databaseBackendEnv = "DATABASE_BACKEND"
	databasePathEnv    = "DATABASE_PATH"
	httpAddrEnv        = "HTTP_ADDR"
	logLevelEnv        = "LOG_LEVEL"
	llmProviderEnv     = "LLM_PROVIDER"
	llmAPIKeyEnv       = "LLM_API_KEY"
	llmModelEnv        = "LLM_MODEL"
	llmFallbackEnv     = "LLM_FALLBACK_MODEL"
	telegramTokenEnv   = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv  = "TELEGRAM_CHAT_ID"

	// SourceURLsEnv lists comma-separated seed pages used when no site matches a location.
	SourceURLsEnv = "CIVIC_SOURCE_URLS"
)

// Supported LLM providers.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Supported feed backends.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// providerKeyEnv lists the provider-specific credential variables.
var providerKeyEnv = map[string]string{
	ProviderGemini:    "GOOGLE_API_KEY",
	ProviderOpenAI:    "OPENAI_API_KEY",
	ProviderAnthropic: "ANTHROPIC_API_KEY",
}

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	HTTP          HTTPConfig         `yaml:"http"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Fetch         FetchConfig        `yaml:"fetch"`
	Discovery     DiscoveryConfig    `yaml:"discovery"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	LLM           LLMConfig          `yaml:"llm"`
	Notifications NotificationConfig `yaml:"notifications"`
	Sites         []SiteConfig       `yaml:"sites"`
}

// LoggingConfig selects slog level and handler format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig selects the feed backend and SQLite file.
type DatabaseConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	MaxUploadBytes  int64         `yaml:"maxUploadBytes"`
}

// SchedulerConfig defines when scheduled runs happen.
type SchedulerConfig struct {
	Enabled        bool           `yaml:"enabled"`
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

// FetchConfig bounds outbound HTTP retrieval.
type FetchConfig struct {
	Timeout           time.Duration `yaml:"timeout"`
	UserAgent         string        `yaml:"userAgent"`
	MaxBodyBytes      int64         `yaml:"maxBodyBytes"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
	RespectRobots     bool          `yaml:"respectRobots"`
}

// DiscoveryConfig limits the link crawl.
type DiscoveryConfig struct {
	LimitPerSite int      `yaml:"limitPerSite"`
	MaxSites     int      `yaml:"maxSites"`
	SourceURLs   []string `yaml:"sourceUrls"`
}

// PipelineConfig controls per-run processing.
type PipelineConfig struct {
	Concurrency   int    `yaml:"concurrency"`
	DefaultUserID string `yaml:"defaultUserId"`
}

// LLMConfig defines how to contact the summarization model.
type LLMConfig struct {
	Provider      string        `yaml:"provider"`
	Endpoint      string        `yaml:"endpoint"`
	APIKey        string        `yaml:"apiKey"`
	Model         string        `yaml:"model"`
	FallbackModel string        `yaml:"fallbackModel"`
	SystemPrompt  string        `yaml:"systemPrompt"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxTokens     int           `yaml:"maxTokens"`
	MaxInputChars int           `yaml:"maxInputChars"`
	ExcerptChars  int           `yaml:"excerptChars"`
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled reports whether both token and chat are present.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// SiteConfig describes a municipality's seed pages and scanner strategy.
type SiteConfig struct {
	Name    string   `yaml:"name"`
	Scanner string   `yaml:"scanner"`
	City    string   `yaml:"city"`
	Region  string   `yaml:"region"`
	Country string   `yaml:"country"`
	Seeds   []string `yaml:"seeds"`
}

// Load reads .env and the YAML file named by CIVIC_SCANNER_CONFIG (if
// present) and applies environment overrides.
func Load() Config {
	return LoadFile("")
}

// LoadFile is Load with an explicit YAML path; an empty path falls back to
// CIVIC_SCANNER_CONFIG.
func LoadFile(path string) Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: cannot load .env: %v", err)
	}

	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
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

	return cfg
}

// Validate reports misconfiguration that must stop the service from starting.
func (c Config) Validate() error {
	var errs []error

	if _, ok := providerKeyEnv[c.LLM.Provider]; !ok {
		errs = append(errs, fmt.Errorf("llm.provider %q is not supported", c.LLM.Provider))
	}
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		errs = append(errs, errors.New("llm.apiKey is required (set LLM_API_KEY or the provider key)"))
	}
	if c.LLM.Model == "" {
		errs = append(errs, errors.New("llm.model is required"))
	}
	if c.Database.Backend != BackendSQLite && c.Database.Backend != BackendMemory {
		errs = append(errs, fmt.Errorf("database.backend %q is not supported", c.Database.Backend))
	}
	if c.Database.Backend == BackendSQLite && c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required for sqlite"))
	}
	if c.Pipeline.Concurrency < 1 {
		errs = append(errs, errors.New("pipeline.concurrency must be positive"))
	}
	if c.Discovery.LimitPerSite < 1 || c.Discovery.MaxSites < 1 {
		errs = append(errs, errors.New("discovery limits must be positive"))
	}

	return errors.Join(errs...)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseBackendEnv); v != "" {
		c.Database.Backend = v
	}
	if v := os.Getenv(databasePathEnv); v != "" {
		c.Database.Path = v
	}

	if v := os.Getenv(SourceURLsEnv); strings.TrimSpace(v) != "" {
		c.Discovery.SourceURLs = splitList(v)
	}

	if v := os.Getenv(httpAddrEnv); v != "" {
		c.HTTP.Addr = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(llmProviderEnv); v != "" {
		c.LLM.Provider = strings.ToLower(v)
	}
	if v := os.Getenv(llmModelEnv); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv(llmFallbackEnv); v != "" {
		c.LLM.FallbackModel = v
	}
	if v := os.Getenv(llmAPIKeyEnv); v != "" {
		c.LLM.APIKey = v
	} else if c.LLM.APIKey == "" {
		if name, ok := providerKeyEnv[c.LLM.Provider]; ok {
			c.LLM.APIKey = os.Getenv(name)
		}
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

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Database.Backend != "" {
		base.Database.Backend = override.Database.Backend
	}
	if override.Database.Path != "" {
		base.Database.Path = override.Database.Path
	}

	if override.HTTP.Addr != "" {
		base.HTTP.Addr = override.HTTP.Addr
	}
	if override.HTTP.ShutdownTimeout > 0 {
		base.HTTP.ShutdownTimeout = override.HTTP.ShutdownTimeout
	}
	if override.HTTP.MaxUploadBytes > 0 {
		base.HTTP.MaxUploadBytes = override.HTTP.MaxUploadBytes
	}

	if override.Scheduler.Enabled {
		base.Scheduler.Enabled = true
	}
	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Fetch.Timeout > 0 {
		base.Fetch.Timeout = override.Fetch.Timeout
	}
	if override.Fetch.UserAgent != "" {
		base.Fetch.UserAgent = override.Fetch.UserAgent
	}
	if override.Fetch.MaxBodyBytes > 0 {
		base.Fetch.MaxBodyBytes = override.Fetch.MaxBodyBytes
	}
	if override.Fetch.RequestsPerSecond > 0 {
		base.Fetch.RequestsPerSecond = override.Fetch.RequestsPerSecond
	}
	if override.Fetch.RespectRobots {
		base.Fetch.RespectRobots = true
	}

	if override.Discovery.LimitPerSite > 0 {
		base.Discovery.LimitPerSite = override.Discovery.LimitPerSite
	}
	if override.Discovery.MaxSites > 0 {
		base.Discovery.MaxSites = override.Discovery.MaxSites
	}

	if len(override.Discovery.SourceURLs) > 0 {
		base.Discovery.SourceURLs = override.Discovery.SourceURLs
	}

	if override.Pipeline.Concurrency > 0 {
		base.Pipeline.Concurrency = override.Pipeline.Concurrency
	}
	if override.Pipeline.DefaultUserID != "" {
		base.Pipeline.DefaultUserID = override.Pipeline.DefaultUserID
	}

	if override.LLM.Provider != "" {
		base.LLM.Provider = strings.ToLower(override.LLM.Provider)
	}
	if override.LLM.Endpoint != "" {
		base.LLM.Endpoint = override.LLM.Endpoint
	}
	if override.LLM.APIKey != "" {
		base.LLM.APIKey = override.LLM.APIKey
	}
	if override.LLM.Model != "" {
		base.LLM.Model = override.LLM.Model
	}
	if override.LLM.FallbackModel != "" {
		base.LLM.FallbackModel = override.LLM.FallbackModel
	}
	if override.LLM.SystemPrompt != "" {
		base.LLM.SystemPrompt = override.LLM.SystemPrompt
	}
	if override.LLM.Timeout > 0 {
		base.LLM.Timeout = override.LLM.Timeout
	}
	if override.LLM.MaxTokens > 0 {
		base.LLM.MaxTokens = override.LLM.MaxTokens
	}
	if override.LLM.MaxInputChars > 0 {
		base.LLM.MaxInputChars = override.LLM.MaxInputChars
	}
	if override.LLM.ExcerptChars > 0 {
		base.LLM.ExcerptChars = override.LLM.ExcerptChars
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	if len(override.Sites) > 0 {
		base.Sites = override.Sites
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{Backend: BackendSQLite, Path: "civic.db"},
		HTTP: HTTPConfig{
			Addr:            ":8000",
			ShutdownTimeout: 10 * time.Second,
			MaxUploadBytes:  25 << 20,
		},
		Scheduler: SchedulerConfig{CronExpression: "0 6 * * *", Timezone: defaultTimezone, location: tz},
		Fetch: FetchConfig{
			Timeout:           30 * time.Second,
			UserAgent:         "CivicScanner/1.0",
			MaxBodyBytes:      50 << 20,
			RequestsPerSecond: 2,
		},
		Discovery: DiscoveryConfig{LimitPerSite: 10, MaxSites: 5},
		Pipeline:  PipelineConfig{Concurrency: 4, DefaultUserID: "demo"},
		LLM: LLMConfig{
			Provider:      ProviderGemini,
			Model:         "gemini-1.5-pro",
			FallbackModel: "gemini-1.5-flash",
			Timeout:       60 * time.Second,
			MaxTokens:     2048,
			MaxInputChars: 100_000,
			ExcerptChars:  4000,
		},
		Sites: []SiteConfig{
			{
				Name:    "orlando",
				Scanner: "links",
				City:    "Orlando",
				Region:  "FL",
				Country: "US",
				Seeds: []string{
					"https://www.orlando.gov/Our-Government/Mayor-City-Council/City-Council-Meetings",
				},
			},
			{
				Name:    "orange-county",
				Scanner: "links",
				City:    "Orlando",
				Region:  "FL",
				Country: "US",
				Seeds: []string{
					"https://www.orangecountyfl.net/OpenGovernment/BoardofCountyCommissioners/Agenda.aspx",
				},
			},
		},
	}
}
