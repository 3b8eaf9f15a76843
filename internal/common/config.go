// -----------------------------------------------------------------------
// Configuration - TOML file loading with environment variable overrides
// Precedence: defaults < config files < environment < command-line flags
// -----------------------------------------------------------------------

package common

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/ternarybob/jobhound/internal/interfaces"
)

// Config is the root configuration for the jobhound service.
type Config struct {
	Environment string            `toml:"environment"`
	Server      ServerConfig      `toml:"server"`
	Badger      BadgerConfig      `toml:"badger"`
	Logging     LoggingConfig     `toml:"logging"`
	Crawler     CrawlerConfig     `toml:"crawler"`
	Browser     BrowserConfig     `toml:"browser"`
	Discovery   DiscoveryConfig   `toml:"discovery"`
	Claude      ClaudeConfig      `toml:"claude"`
	Gemini      GeminiConfig      `toml:"gemini"`
	Matcher     MatcherConfig     `toml:"matcher"`
	Maintenance MaintenanceConfig `toml:"maintenance"`
	Scheduler   SchedulerConfig   `toml:"scheduler"`
	WebSocket   WebSocketConfig   `toml:"websocket"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port" validate:"min=1,max=65535"`
}

// BadgerConfig contains BadgerDB storage settings
type BadgerConfig struct {
	// Path is the directory for the Badger data files
	Path string `toml:"path"`
	// ResetOnStartup wipes the store on boot (development only)
	ResetOnStartup bool `toml:"reset_on_startup"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string   `toml:"level" validate:"oneof=trace debug info warn error"`
	Format string   `toml:"format"`
	Output []string `toml:"output"`
}

// CrawlerConfig contains fetch and crawl policy settings
type CrawlerConfig struct {
	UserAgent string `toml:"user_agent"`
	// RotateUserAgents enables a rotating desktop UA pool for plain fetches
	RotateUserAgents bool `toml:"rotate_user_agents"`
	// Workers is the per-stage worker pool size
	Workers int `toml:"workers" validate:"min=1,max=64"`
	// RequestTimeout bounds a single plain HTTP fetch
	RequestTimeout string `toml:"request_timeout"`
	// RenderTimeout bounds a single rendered fetch
	RenderTimeout string `toml:"render_timeout"`
	// CompanyTimeout is the advisory budget for one company's crawl
	CompanyTimeout string `toml:"company_timeout"`
	// CrawlIntervalHours marks a company stale after this many hours
	CrawlIntervalHours int `toml:"crawl_interval_hours" validate:"min=1"`
	// BatchSize is the number of eligible companies selected per crawl pass
	BatchSize int `toml:"batch_size" validate:"min=1"`
	// HostRate / HostBurst are the token-bucket defaults per registrable host
	HostRate  float64 `toml:"host_rate"`
	HostBurst int     `toml:"host_burst"`
	// ATSRate / ATSBurst override the defaults for known ATS vendor APIs
	ATSRate  float64 `toml:"ats_rate"`
	ATSBurst int     `toml:"ats_burst"`
	// MaxRetries bounds fetch attempts for transport and 5xx failures
	MaxRetries int `toml:"max_retries" validate:"min=0,max=10"`
	// RetryBaseDelay is the initial backoff delay
	RetryBaseDelay string `toml:"retry_base_delay"`
	// RetryAfterCap caps how long a 429 Retry-After header is honored
	RetryAfterCap string `toml:"retry_after_cap"`
	// FollowRobotsTxt honors robots.txt for non-API endpoints
	FollowRobotsTxt bool `toml:"follow_robots_txt"`
	// RobotsCacheTTL controls how long a host's robots.txt is cached
	RobotsCacheTTL string `toml:"robots_cache_ttl"`
	// SnapshotRetentionDays bounds snapshot garbage collection
	SnapshotRetentionDays int `toml:"snapshot_retention_days"`
}

// BrowserConfig contains headless browser pool settings
type BrowserConfig struct {
	// PoolSize is the number of browser instances kept warm
	PoolSize int  `toml:"pool_size" validate:"min=1,max=20"`
	Headless bool `toml:"headless"`
}

// DiscoveryConfig contains company discovery settings
type DiscoveryConfig struct {
	// Sources lists the enabled discovery source names
	Sources []string `toml:"sources"`
	// SeedFile is the YAML company seed list path
	SeedFile string `toml:"seed_file"`
	// RetryCap bounds processing attempts per queue item
	RetryCap int `toml:"retry_cap" validate:"min=1,max=10"`
	// TargetCountries limits intake; empty means no geography filter
	TargetCountries []string `toml:"target_countries"`

	GitHub GitHubDiscoveryConfig `toml:"github"`
	IMAP   IMAPDiscoveryConfig   `toml:"imap"`
}

// GitHubDiscoveryConfig configures the github_orgs discovery source
type GitHubDiscoveryConfig struct {
	Token string `toml:"token"`
	// Orgs is an optional explicit organization list
	Orgs []string `toml:"orgs"`
	// MinPublicRepos filters out inactive organizations
	MinPublicRepos int `toml:"min_public_repos"`
}

// IMAPDiscoveryConfig configures the email_alerts discovery source
type IMAPDiscoveryConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	UseTLS   bool   `toml:"use_tls"`
	// SubjectFilter selects job-alert messages; empty takes all unread
	SubjectFilter string `toml:"subject_filter"`
}

// ClaudeConfig contains Anthropic LLM settings for the fallback extractor
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens" validate:"min=1"`
	Temperature float32 `toml:"temperature"`
	Timeout     string  `toml:"timeout"`
	// ExcerptLimit caps the page excerpt fed to the model, in characters
	ExcerptLimit int `toml:"excerpt_limit" validate:"min=1000"`
}

// GeminiConfig contains Google embedding settings
type GeminiConfig struct {
	APIKey         string `toml:"api_key"`
	EmbeddingModel string `toml:"embedding_model"`
	// EmbeddingDim is the output dimensionality requested from the model
	EmbeddingDim int `toml:"embedding_dim" validate:"min=1"`
	// BatchSize is the number of texts embedded per API call
	BatchSize int    `toml:"batch_size" validate:"min=1,max=100"`
	Timeout   string `toml:"timeout"`
}

// MatcherConfig contains match retrieval and scoring settings
type MatcherConfig struct {
	// TopK bounds the vector candidate set per match run
	TopK int `toml:"top_k" validate:"min=1"`
	// MinSimilarity drops vector candidates below this cosine similarity
	MinSimilarity float64 `toml:"min_similarity" validate:"gte=0,lte=1"`
	// ScoreThreshold drops scored matches below this value before persistence
	ScoreThreshold float64 `toml:"score_threshold" validate:"gte=0,lte=1"`
	// Timeout bounds one candidate's match run
	Timeout string `toml:"timeout"`
}

// MaintenanceConfig contains catalog re-verification settings
type MaintenanceConfig struct {
	// VerifyRefreshDays is the re-verification window per company
	VerifyRefreshDays int `toml:"verify_refresh_days" validate:"min=1"`
	// NotFoundStreak deactivates a company after this many consecutive
	// not_found results on its careers URL
	NotFoundStreak int `toml:"not_found_streak" validate:"min=1"`
	// SnapshotRetentionDays prunes crawl snapshots older than the window,
	// keeping the newest per URL. 0 disables pruning.
	SnapshotRetentionDays int `toml:"snapshot_retention_days" validate:"min=0"`
	// ReportDir, when set, receives a PDF summary per maintenance run
	ReportDir string `toml:"report_dir"`
}

// SchedulerConfig contains periodic pipeline settings
type SchedulerConfig struct {
	Enabled       bool `toml:"enabled"`
	AutoStart     bool `toml:"auto_start"`
	IntervalHours int  `toml:"interval_hours" validate:"min=1"`
}

// WebSocketConfig contains log/status streaming settings
type WebSocketConfig struct {
	// MinLevel filters log events below this level from the stream
	MinLevel string `toml:"min_level"`
	// ExcludePatterns drops log lines containing any of these substrings
	ExcludePatterns []string `toml:"exclude_patterns"`
	// ThrottleIntervals maps message type to minimum broadcast interval
	ThrottleIntervals map[string]string `toml:"throttle_intervals"`
}

// NewDefaultConfig returns a config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "localhost",
			Port: 8085,
		},
		Badger: BadgerConfig{
			Path:           "./data/jobhound",
			ResetOnStartup: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		Crawler: CrawlerConfig{
			UserAgent:             "JobhoundBot/1.0 (+https://jobhound.dev/bot)",
			RotateUserAgents:      false,
			Workers:               8,
			RequestTimeout:        "30s",
			RenderTimeout:         "60s",
			CompanyTimeout:        "120s",
			CrawlIntervalHours:    24,
			BatchSize:             500,
			HostRate:              1.0, // req/s for unknown hosts
			HostBurst:             2,
			ATSRate:               5.0, // req/s for ATS vendor APIs
			ATSBurst:              10,
			MaxRetries:            3,
			RetryBaseDelay:        "500ms",
			RetryAfterCap:         "120s",
			FollowRobotsTxt:       true,
			RobotsCacheTTL:        "24h",
			SnapshotRetentionDays: 30,
		},
		Browser: BrowserConfig{
			PoolSize: 2,
			Headless: true,
		},
		Discovery: DiscoveryConfig{
			Sources:  []string{"seed_file"},
			SeedFile: "./data/companies.yaml",
			RetryCap: 3,
			GitHub: GitHubDiscoveryConfig{
				MinPublicRepos: 5,
			},
			IMAP: IMAPDiscoveryConfig{
				Port:          993,
				UseTLS:        true,
				SubjectFilter: "job alert",
			},
		},
		Claude: ClaudeConfig{
			Model:        "claude-sonnet-4-5",
			MaxTokens:    8192,
			Temperature:  0.0,
			Timeout:      "120s",
			ExcerptLimit: 30000,
		},
		Gemini: GeminiConfig{
			EmbeddingModel: "text-embedding-004",
			EmbeddingDim:   384,
			BatchSize:      32,
			Timeout:        "60s",
		},
		Matcher: MatcherConfig{
			TopK:           200,
			MinSimilarity:  0.5,
			ScoreThreshold: 0.4,
			Timeout:        "10s",
		},
		Maintenance: MaintenanceConfig{
			VerifyRefreshDays:     7,
			NotFoundStreak:        2,
			SnapshotRetentionDays: 30,
		},
		Scheduler: SchedulerConfig{
			Enabled:       true,
			AutoStart:     false,
			IntervalHours: 6,
		},
		WebSocket: WebSocketConfig{
			MinLevel:        "info",
			ExcludePatterns: []string{},
			ThrottleIntervals: map[string]string{
				"progress": "200ms",
				"log":      "100ms",
				"status":   "1s",
			},
		},
	}
}

// LoadFromFile loads configuration from a single TOML file over defaults
func LoadFromFile(path string) (*Config, error) {
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration by merging TOML files in order over
// defaults, then applying environment variable overrides. Missing files are
// skipped so the service starts with defaults when no config exists.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate checks the config against its struct validation tags
func (c *Config) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// applyEnvOverrides applies JOBHOUND_* environment variables over file values
func applyEnvOverrides(config *Config) {
	// Environment
	if v := os.Getenv("JOBHOUND_ENVIRONMENT"); v != "" {
		config.Environment = v
	}

	// Server
	if v := os.Getenv("JOBHOUND_SERVER_HOST"); v != "" {
		config.Server.Host = v
	}
	if v := os.Getenv("JOBHOUND_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}

	// Badger
	if v := os.Getenv("JOBHOUND_BADGER_PATH"); v != "" {
		config.Badger.Path = v
	}
	if v := os.Getenv("JOBHOUND_BADGER_RESET_ON_STARTUP"); v != "" {
		config.Badger.ResetOnStartup = parseBool(v)
	}

	// Logging
	if v := os.Getenv("JOBHOUND_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("JOBHOUND_LOG_OUTPUT"); v != "" {
		config.Logging.Output = splitAndTrim(v)
	}

	// Crawler
	if v := os.Getenv("JOBHOUND_CRAWL_USER_AGENT"); v != "" {
		config.Crawler.UserAgent = v
	}
	if v := os.Getenv("JOBHOUND_CRAWL_ROTATE_USER_AGENTS"); v != "" {
		config.Crawler.RotateUserAgents = parseBool(v)
	}
	if v := os.Getenv("JOBHOUND_MAX_CONCURRENT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Crawler.Workers = n
		}
	}
	if v := os.Getenv("JOBHOUND_CRAWL_REQUEST_TIMEOUT"); v != "" {
		if _, err := time.ParseDuration(v); err == nil {
			config.Crawler.RequestTimeout = v
		}
	}
	if v := os.Getenv("JOBHOUND_CRAWL_RENDER_TIMEOUT"); v != "" {
		if _, err := time.ParseDuration(v); err == nil {
			config.Crawler.RenderTimeout = v
		}
	}
	if v := os.Getenv("JOBHOUND_CRAWL_INTERVAL_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Crawler.CrawlIntervalHours = n
		}
	}
	if v := os.Getenv("JOBHOUND_CRAWL_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Crawler.BatchSize = n
		}
	}
	if v := os.Getenv("JOBHOUND_CRAWL_HOST_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Crawler.HostRate = f
		}
	}
	if v := os.Getenv("JOBHOUND_CRAWL_ATS_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Crawler.ATSRate = f
		}
	}
	if v := os.Getenv("JOBHOUND_CRAWL_FOLLOW_ROBOTS"); v != "" {
		config.Crawler.FollowRobotsTxt = parseBool(v)
	}

	// Browser
	if v := os.Getenv("JOBHOUND_BROWSER_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Browser.PoolSize = n
		}
	}
	if v := os.Getenv("JOBHOUND_BROWSER_HEADLESS"); v != "" {
		config.Browser.Headless = parseBool(v)
	}

	// Discovery
	if v := os.Getenv("JOBHOUND_DISCOVERY_SOURCES"); v != "" {
		config.Discovery.Sources = splitAndTrim(v)
	}
	if v := os.Getenv("JOBHOUND_DISCOVERY_SEED_FILE"); v != "" {
		config.Discovery.SeedFile = v
	}
	if v := os.Getenv("JOBHOUND_GITHUB_TOKEN"); v != "" {
		config.Discovery.GitHub.Token = v
	}
	if v := os.Getenv("JOBHOUND_IMAP_HOST"); v != "" {
		config.Discovery.IMAP.Host = v
	}
	if v := os.Getenv("JOBHOUND_IMAP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Discovery.IMAP.Port = n
		}
	}
	if v := os.Getenv("JOBHOUND_IMAP_USERNAME"); v != "" {
		config.Discovery.IMAP.Username = v
	}
	if v := os.Getenv("JOBHOUND_IMAP_PASSWORD"); v != "" {
		config.Discovery.IMAP.Password = v
	}

	// Claude
	if v := os.Getenv("JOBHOUND_CLAUDE_API_KEY"); v != "" {
		config.Claude.APIKey = v
	} else if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		// Standard Anthropic env var works as a fallback
		config.Claude.APIKey = v
	}
	if v := os.Getenv("JOBHOUND_LLM_MODEL"); v != "" {
		config.Claude.Model = v
	}
	if v := os.Getenv("JOBHOUND_CLAUDE_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Claude.MaxTokens = n
		}
	}
	if v := os.Getenv("JOBHOUND_CLAUDE_EXCERPT_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Claude.ExcerptLimit = n
		}
	}

	// Gemini
	if v := os.Getenv("JOBHOUND_GEMINI_API_KEY"); v != "" {
		config.Gemini.APIKey = v
	} else if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		config.Gemini.APIKey = v
	}
	if v := os.Getenv("JOBHOUND_EMBEDDING_MODEL"); v != "" {
		config.Gemini.EmbeddingModel = v
	}
	if v := os.Getenv("JOBHOUND_EMBEDDING_DIM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Gemini.EmbeddingDim = n
		}
	}
	if v := os.Getenv("JOBHOUND_EMBEDDING_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Gemini.BatchSize = n
		}
	}

	// Matcher
	if v := os.Getenv("JOBHOUND_MATCH_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Matcher.TopK = n
		}
	}
	if v := os.Getenv("JOBHOUND_MATCH_MIN_SIMILARITY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Matcher.MinSimilarity = f
		}
	}
	if v := os.Getenv("JOBHOUND_MATCH_SCORE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Matcher.ScoreThreshold = f
		}
	}

	// Maintenance
	if v := os.Getenv("JOBHOUND_VERIFY_REFRESH_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Maintenance.VerifyRefreshDays = n
		}
	}
	if v := os.Getenv("JOBHOUND_SNAPSHOT_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Maintenance.SnapshotRetentionDays = n
		}
	}
	if v := os.Getenv("JOBHOUND_MAINTENANCE_REPORT_DIR"); v != "" {
		config.Maintenance.ReportDir = v
	}

	// Scheduler
	if v := os.Getenv("JOBHOUND_SCHEDULER_ENABLED"); v != "" {
		config.Scheduler.Enabled = parseBool(v)
	}
	if v := os.Getenv("JOBHOUND_SCHEDULER_AUTO_START"); v != "" {
		config.Scheduler.AutoStart = parseBool(v)
	}
	if v := os.Getenv("JOBHOUND_SCHEDULER_INTERVAL_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Scheduler.IntervalHours = n
		}
	}
}

// ApplyFlagOverrides applies command-line flag values over config values.
// Flags have the highest precedence.
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// ResolveAPIKey resolves an API key by name with environment variable
// priority, then the KV store, then the config file fallback.
func ResolveAPIKey(ctx context.Context, kvStorage interfaces.KeyValueStorage, name string, configFallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"gemini_api_key": {"JOBHOUND_GEMINI_API_KEY", "GEMINI_API_KEY"},
		"claude_api_key": {"JOBHOUND_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
		"github_token":   {"JOBHOUND_GITHUB_TOKEN"},
	}

	if envVarNames, ok := keyToEnvMapping[name]; ok {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	if kvStorage != nil {
		apiKey, err := kvStorage.Get(ctx, name)
		if err == nil && apiKey != "" {
			return apiKey, nil
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key %s not found in environment, KV store, or config", name)
}

// IsProduction reports whether the service runs with production policies
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Environment)
	return env == "production" || env == "prod"
}

// ParseDurationOr parses a duration string with a fallback default
func ParseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func splitAndTrim(v string) []string {
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
