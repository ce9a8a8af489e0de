package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Scan      ScanConfig      `mapstructure:"scan"`
	Intel     IntelConfig     `mapstructure:"intel"`
	AI        AIConfig        `mapstructure:"ai"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Version     string `mapstructure:"version"`
	Debug       bool   `mapstructure:"debug"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type RedisConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	TimeFormat string `mapstructure:"time_format"`
}

// ScanConfig tunes the scan pipeline
type ScanConfig struct {
	MaxURLs                int           `mapstructure:"max_urls"`
	MaxContentBytes        int           `mapstructure:"max_content_bytes"`
	MaxBatchSize           int           `mapstructure:"max_batch_size"`
	IntelCacheTTL          time.Duration `mapstructure:"intel_cache_ttl"`
	ShortCircuitConfidence float64       `mapstructure:"short_circuit_confidence"`
}

// IntelConfig holds per-checker threat intelligence configuration
type IntelConfig struct {
	SafeBrowsing CheckerConfig   `mapstructure:"safebrowsing"`
	VirusTotal   CheckerConfig   `mapstructure:"virustotal"`
	URLhaus      CheckerConfig   `mapstructure:"urlhaus"`
	DomainAge    DomainAgeConfig `mapstructure:"domainage"`
}

type CheckerConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	APIURL  string        `mapstructure:"api_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type DomainAgeConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	MinAgeDays int           `mapstructure:"min_age_days"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// AIConfig holds the LLM classifier configuration
type AIConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Provider        string        `mapstructure:"provider"` // "anthropic" or "openai"
	AnthropicAPIKey string        `mapstructure:"anthropic_api_key"`
	OpenAIAPIKey    string        `mapstructure:"openai_api_key"`
	Model           string        `mapstructure:"model"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Temperature     float64       `mapstructure:"temperature"`
	Timeout         time.Duration `mapstructure:"timeout"`
	DailyQuota      int64         `mapstructure:"daily_quota"`
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/smells-phishy")
	}

	v.SetEnvPrefix("SMELLSPHISHY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind nested env vars explicitly (viper doesn't auto-bind nested struct fields)
	v.BindEnv("redis.host", "SMELLSPHISHY_REDIS_HOST")
	v.BindEnv("redis.port", "SMELLSPHISHY_REDIS_PORT")
	v.BindEnv("redis.password", "SMELLSPHISHY_REDIS_PASSWORD")
	v.BindEnv("intel.safebrowsing.api_key", "SMELLSPHISHY_INTEL_SAFEBROWSING_API_KEY")
	v.BindEnv("intel.virustotal.api_key", "SMELLSPHISHY_INTEL_VIRUSTOTAL_API_KEY")
	v.BindEnv("ai.anthropic_api_key", "SMELLSPHISHY_AI_ANTHROPIC_API_KEY")
	v.BindEnv("ai.openai_api_key", "SMELLSPHISHY_AI_OPENAI_API_KEY")
	v.BindEnv("ai.daily_quota", "SMELLSPHISHY_AI_DAILY_QUOTA")
	v.BindEnv("app.environment", "SMELLSPHISHY_APP_ENVIRONMENT")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// LoadDefault loads configuration with default path
func LoadDefault() (*Config, error) {
	return Load("")
}

func (c *Config) applyDefaults() {
	if c.Scan.MaxURLs == 0 {
		c.Scan.MaxURLs = 10
	}
	if c.Scan.MaxContentBytes == 0 {
		c.Scan.MaxContentBytes = 64 * 1024
	}
	if c.Scan.MaxBatchSize == 0 {
		c.Scan.MaxBatchSize = 20
	}
	if c.Scan.IntelCacheTTL == 0 {
		c.Scan.IntelCacheTTL = 30 * time.Minute
	}
	if c.Scan.ShortCircuitConfidence == 0 {
		c.Scan.ShortCircuitConfidence = 0.9
	}
	if c.AI.DailyQuota == 0 {
		c.AI.DailyQuota = 500
	}
}
