package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yaml"

type ServerConfig struct {
	Port              int           `yaml:"port"`
	BaseURL           string        `yaml:"base_url"`
	Maintenance       bool          `yaml:"maintenance"`
	AllowRegistration bool          `yaml:"allow_registration"`
	MediaRoot         string        `yaml:"media_root"`
	MaxUploadMB       int64         `yaml:"max_upload_mb"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

type JWTConfig struct {
	Secret     string        `yaml:"secret"`
	AccessTTL  time.Duration `yaml:"access_ttl"`
	RefreshTTL time.Duration `yaml:"refresh_ttl"`
}

type EmailConfig struct {
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPUser     string `yaml:"smtp_user"`
	SMTPPassword string `yaml:"smtp_password"`
	FromEmail    string `yaml:"from_email"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Env   string `yaml:"env"`
}

type Config struct {
	Server   ServerConfig `yaml:"server"`
	Database struct {
		DSN string `yaml:"url"`
	} `yaml:"database"`
	JWT   JWTConfig   `yaml:"jwt"`
	Email EmailConfig `yaml:"email"`
	Redis RedisConfig `yaml:"redis"`
	Log   LogConfig   `yaml:"log"`
}

// Defaults returns the configuration used for every key the file leaves out.
func Defaults() Config {
	var cfg Config
	cfg.Server = ServerConfig{
		Port:              8080,
		BaseURL:           "http://localhost:8080",
		AllowRegistration: true,
		MediaRoot:         "./media",
		MaxUploadMB:       10,
		ShutdownTimeout:   10 * time.Second,
	}
	cfg.JWT = JWTConfig{AccessTTL: 15 * time.Minute, RefreshTTL: 7 * 24 * time.Hour}
	cfg.Email.SMTPPort = 587
	cfg.Redis.Addr = "localhost:6379"
	cfg.Log = LogConfig{Level: "info", Env: "production"}
	return cfg
}

// LoadConfig reads config/config.yaml and panics when it cannot be used.
func LoadConfig() *Config {
	cfg, err := Load(DefaultPath)
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}
	return cfg
}

// Load decodes the YAML file at path over the defaults, then applies .env and
// CMS_* environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	_ = godotenv.Load()
	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var missing []string
	if c.Database.DSN == "" {
		missing = append(missing, "database.url")
	}
	if c.JWT.Secret == "" {
		missing = append(missing, "jwt.secret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing %s", strings.Join(missing, ", "))
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("config: invalid server.port %d", c.Server.Port)
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func (c *Config) MaxUploadBytes() int64 {
	return c.Server.MaxUploadMB << 20
}

func applyEnvOverrides(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix("CMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("database.url", "CMS_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("jwt.secret", "CMS_JWT_SECRET", "JWT_SECRET")
	_ = v.BindEnv("email.smtp_password", "CMS_EMAIL_SMTP_PASSWORD", "SMTP_PASSWORD")
	_ = v.BindEnv("redis.addr", "CMS_REDIS_ADDR", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "CMS_REDIS_PASSWORD", "REDIS_PASSWORD")

	overrideString(v, "database.url", &cfg.Database.DSN)
	overrideString(v, "jwt.secret", &cfg.JWT.Secret)
	overrideDuration(v, "jwt.access_ttl", &cfg.JWT.AccessTTL)
	overrideDuration(v, "jwt.refresh_ttl", &cfg.JWT.RefreshTTL)

	overrideInt(v, "server.port", &cfg.Server.Port)
	overrideString(v, "server.base_url", &cfg.Server.BaseURL)
	overrideBool(v, "server.maintenance", &cfg.Server.Maintenance)
	overrideBool(v, "server.allow_registration", &cfg.Server.AllowRegistration)
	overrideString(v, "server.media_root", &cfg.Server.MediaRoot)
	if s := v.GetString("server.max_upload_mb"); s != "" {
		cfg.Server.MaxUploadMB = v.GetInt64("server.max_upload_mb")
	}

	overrideString(v, "email.smtp_host", &cfg.Email.SMTPHost)
	overrideInt(v, "email.smtp_port", &cfg.Email.SMTPPort)
	overrideString(v, "email.smtp_user", &cfg.Email.SMTPUser)
	overrideString(v, "email.smtp_password", &cfg.Email.SMTPPassword)
	overrideString(v, "email.from_email", &cfg.Email.FromEmail)

	overrideBool(v, "redis.enabled", &cfg.Redis.Enabled)
	overrideString(v, "redis.addr", &cfg.Redis.Addr)
	overrideString(v, "redis.password", &cfg.Redis.Password)
	overrideInt(v, "redis.db", &cfg.Redis.DB)

	overrideString(v, "log.level", &cfg.Log.Level)
	overrideString(v, "log.env", &cfg.Log.Env)
}

func overrideString(v *viper.Viper, key string, dst *string) {
	if s := v.GetString(key); s != "" {
		*dst = s
	}
}

func overrideInt(v *viper.Viper, key string, dst *int) {
	if s := v.GetString(key); s != "" {
		*dst = v.GetInt(key)
	}
}

func overrideBool(v *viper.Viper, key string, dst *bool) {
	if s := v.GetString(key); s != "" {
		*dst = v.GetBool(key)
	}
}

func overrideDuration(v *viper.Viper, key string, dst *time.Duration) {
	if s := v.GetString(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			*dst = d
		}
	}
}
