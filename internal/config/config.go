package config

import (
	"bytes"
	_ "embed"
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	HTTP       HTTPConfig      `mapstructure:"http"`
	Log        LogConfig       `mapstructure:"log"`
	Auth       AuthConfig      `mapstructure:"auth"`
	MySQL      DatabaseConfig  `mapstructure:"mysql"`
	ClickHouse DatabaseConfig  `mapstructure:"clickhouse"`
	Redis      RedisConfig     `mapstructure:"redis"`
	Kafka      KafkaConfig     `mapstructure:"kafka"`
	Audit      AuditConfig     `mapstructure:"audit"`
	RateLimit  RateLimitConfig `mapstructure:"rate_limit"`
	Store      StoreConfig     `mapstructure:"store"`
	Archive    ArchiveConfig   `mapstructure:"archive"`
}

// ---- Leaf structs ----

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type AuthConfig struct {
	LoginPassword string        `mapstructure:"login_password"`
	AdminPassword string        `mapstructure:"admin_password"`
	CookieSecure  bool          `mapstructure:"cookie_secure"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	Topic          string   `mapstructure:"topic"`
	GroupID        string   `mapstructure:"group_id"`
	MinBytes       int      `mapstructure:"min_bytes"`
	MaxBytes       int      `mapstructure:"max_bytes"`
	CommitInterval int      `mapstructure:"commit_interval_ms"`
}

type AuditConfig struct {
	BatchSize int           `mapstructure:"batch_size"`
	BatchWait time.Duration `mapstructure:"batch_wait"`
}

type RateLimitConfig struct {
	Attempts int           `mapstructure:"attempts"`
	Window   time.Duration `mapstructure:"window"`
}

type StoreConfig struct {
	BreakerThreshold int           `mapstructure:"breaker_threshold"`
	BreakerOpenFor   time.Duration `mapstructure:"breaker_open_for"`
}

type ArchiveConfig struct {
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
}

// short environment names accepted next to the MONOZIP_* ones
var envAliases = map[string]string{
	"auth.login_password": "LOGIN_PASSWORD",
	"auth.admin_password": "ADMIN_PASSWORD",
	"auth.cookie_secure":  "COOKIE_SECURE",
	"mysql.dsn":           "MYSQL_DSN",
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides (MONOZIP_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			// an absent --config file is the same as no file
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return Config{}, err
			}
		}
	}

	// env override (MONOZIP_HTTP_ADDR, MONOZIP_AUTH_ADMIN_PASSWORD, ...)
	v.SetEnvPrefix("MONOZIP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, alias := range envAliases {
		envName := "MONOZIP_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envName, alias); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ValidateServe checks what `serve` cannot run without.
func (c Config) ValidateServe() error {
	if c.Auth.LoginPassword == "" {
		return errors.New("auth.login_password (LOGIN_PASSWORD) is required")
	}
	if c.Auth.AdminPassword == "" {
		return errors.New("auth.admin_password (ADMIN_PASSWORD) is required")
	}
	if c.Archive.MaxUploadBytes <= 0 {
		return errors.New("archive.max_upload_bytes must be positive")
	}
	return nil
}
