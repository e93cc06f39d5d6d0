package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Survey    SurveyConfig    `mapstructure:"survey"`
	Results   ResultsConfig   `mapstructure:"results"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port               string        `mapstructure:"port"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	CORSAllowedOrigins []string      `mapstructure:"cors_allowed_origins"`
	// TrustedProxies lists IPs or CIDRs whose X-Forwarded-For/X-Real-IP are honoured
	TrustedProxies     []string      `mapstructure:"trusted_proxies"`
}

type MongoConfig struct {
	URI      string        `mapstructure:"uri"`
	Database string        `mapstructure:"database"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AuthConfig struct {
	JWTSecret         string        `mapstructure:"jwt_secret"`
	TokenTTL          time.Duration `mapstructure:"token_ttl"`
	AdminUsername     string        `mapstructure:"admin_username"`
	AdminPasswordHash string        `mapstructure:"admin_password_hash"` // bcrypt
}

type ResultsConfig struct {
	LocalIndexCap     int           `mapstructure:"local_index_cap"`
	CodeAttempts      int           `mapstructure:"code_attempts"`
	RecommendCount    int           `mapstructure:"recommend_count"`
	DashboardCacheTTL time.Duration `mapstructure:"dashboard_cache_ttl"`
	ListMax           int           `mapstructure:"list_max"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	Burst             int `mapstructure:"burst"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.cors_allowed_origins", []string{"*"})
	v.SetDefault("server.trusted_proxies", []string{})

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "majorcompass")
	v.SetDefault("mongo.timeout", 5*time.Second)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.jwt_secret", "dev-secret-change-in-production")
	v.SetDefault("auth.token_ttl", 12*time.Hour)
	v.SetDefault("auth.admin_username", "admin")
	v.SetDefault("auth.admin_password_hash", "")

	d := DefaultSurveyConfig()
	v.SetDefault("survey.autosave_interval", d.AutosaveInterval)
	v.SetDefault("survey.idle_eviction", d.IdleEviction)
	v.SetDefault("survey.snapshot_ttl", d.SnapshotTTL)
	v.SetDefault("survey.watchdog_window", d.WatchdogWindow)
	v.SetDefault("survey.advance_delay", d.AdvanceDelay)
	v.SetDefault("survey.handoff_key", d.HandoffKey)
	v.SetDefault("survey.device_salt", d.DeviceSalt)

	v.SetDefault("results.local_index_cap", 200)
	v.SetDefault("results.code_attempts", 10)
	v.SetDefault("results.recommend_count", 5)
	v.SetDefault("results.dashboard_cache_ttl", 30*time.Second)
	v.SetDefault("results.list_max", 500)

	v.SetDefault("rate_limit.requests_per_minute", 30)
	v.SetDefault("rate_limit.burst", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "logs/majorcompass.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
}

// Load reads configuration from path (or ./config.yaml when path is empty),
// then applies MAJORCOMPASS_* and the well-known unprefixed env vars.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("MAJORCOMPASS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindings := map[string]string{
		"mongo.uri":                   "MONGO_URI",
		"redis.addr":                  "REDIS_ADDR",
		"auth.jwt_secret":             "JWT_SECRET",
		"auth.admin_username":         "ADMIN_USERNAME",
		"auth.admin_password_hash":    "ADMIN_PASSWORD_HASH",
		"server.port":                 "PORT",
		"survey.handoff_key":          "HANDOFF_KEY",
		"survey.device_salt":          "DEVICE_SALT",
		"server.cors_allowed_origins": "CORS_ALLOWED_ORIGINS",
		"server.trusted_proxies":      "TRUSTED_PROXIES",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, "MAJORCOMPASS_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the service cannot run with
func (c *Config) Validate() error {
	if c.Results.LocalIndexCap <= 0 {
		return fmt.Errorf("results.local_index_cap must be positive")
	}
	if c.Results.CodeAttempts <= 0 {
		return fmt.Errorf("results.code_attempts must be positive")
	}
	if c.Survey.AutosaveInterval <= 0 {
		return fmt.Errorf("survey.autosave_interval must be positive")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Survey.DeviceSalt == "" {
		return fmt.Errorf("survey.device_salt is required")
	}
	return nil
}
