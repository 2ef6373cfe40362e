package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Gateway    GatewayConfig    `mapstructure:"gateway"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Jobs       JobsConfig       `mapstructure:"jobs"`
}

type JobsConfig struct {
	Queue                string        `mapstructure:"queue"`
	Concurrency          int           `mapstructure:"concurrency"`
	OverdueCheckInterval time.Duration `mapstructure:"overdue_check_interval"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

type RedisConfig struct {
	URL         string        `mapstructure:"url"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	UseInMemory bool          `mapstructure:"use_in_memory"`
}

type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

type GatewayConfig struct {
	MaxRequestsPerMinute int           `mapstructure:"max_requests_per_minute"`
	MaxTokensPerMinute   int           `mapstructure:"max_tokens_per_minute"`
	MaxAcquireTries      int           `mapstructure:"max_acquire_tries"`
	UpstreamTimeout      time.Duration `mapstructure:"upstream_timeout"`
	BreakerMaxFailures   int           `mapstructure:"breaker_max_failures"`
	BreakerResetTimeout  time.Duration `mapstructure:"breaker_reset_timeout"`
}

type ClassifierConfig struct {
	AttentionThreshold float64 `mapstructure:"attention_threshold"`
}

type NotifyConfig struct {
	TelegramToken string              `mapstructure:"telegram_token"`
	Recipients    map[string][]string `mapstructure:"recipients"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	dbName := strings.TrimPrefix(u.Path, "/")

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   dbName,
		SSLMode:  "disable",
	}, nil
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", false)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.cache_ttl", time.Hour)
	v.SetDefault("redis.use_in_memory", false)
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 300)
	v.SetDefault("openai.temperature", 0.2)
	v.SetDefault("gateway.max_requests_per_minute", 60)
	v.SetDefault("gateway.max_tokens_per_minute", 90000)
	v.SetDefault("gateway.max_acquire_tries", 5)
	v.SetDefault("gateway.upstream_timeout", 30*time.Second)
	v.SetDefault("gateway.breaker_max_failures", 5)
	v.SetDefault("gateway.breaker_reset_timeout", time.Minute)
	v.SetDefault("classifier.attention_threshold", -0.7)
	v.SetDefault("jobs.queue", "guest_messages")
	v.SetDefault("jobs.concurrency", 4)
	v.SetDefault("jobs.overdue_check_interval", time.Minute)

	// Enable environment variable support
	v.AutomaticEnv()

	// Read the config file
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %v", err)
		}
		config.Database = dbConfig
	}

	// Get other environment variables
	if redisURL := v.GetString("REDIS_URL"); redisURL != "" {
		config.Redis.URL = redisURL
	}

	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}

	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Notify.TelegramToken = token
	}

	return &config, nil
}
