package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	SMTP      SMTPConfig
	Mailer    MailerConfig
	Scheduler SchedulerConfig
	Artifacts ArtifactsConfig
	JWT       JWTConfig
}

type ServerConfig struct {
	Port    int
	Env     string // "development", "production"
	BaseURL string
}

type DatabaseConfig struct {
	Host    string
	Port    string
	Name    string
	User    string
	Pass    string
	Charset string
}

type RedisConfig struct {
	Addr string
	Pass string
	DB   int
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// MailerConfig selects the transport: "smtp" or "provider".
type MailerConfig struct {
	Driver          string
	ProviderBaseURL string
	ProviderAPIKey  string
}

type SchedulerConfig struct {
	Workers     int
	RunTimeout  time.Duration
	MailRetries int
	MailBackoff time.Duration
	LockTTL     time.Duration
}

type ArtifactsConfig struct {
	Dir string
	TTL time.Duration
}

type JWTConfig struct {
	Secret string
}

// Load reads configuration from .env file and environment variables.
func Load() (*Config, error) {
	// Load .env file (ignore error if missing)
	_ = godotenv.Load()

	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("APP_PORT", 8080)
	viper.SetDefault("APP_ENV", "production")
	viper.SetDefault("APP_BASE_URL", "http://localhost:8080")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "3306")
	viper.SetDefault("DB_CHARSET", "utf8mb4")
	viper.SetDefault("REDIS_ADDR", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("SMTP_PORT", 587)
	viper.SetDefault("MAIL_DRIVER", "smtp")
	viper.SetDefault("SCHEDULER_WORKERS", 5)
	viper.SetDefault("SCHEDULER_RUN_TIMEOUT", "2m")
	viper.SetDefault("SCHEDULER_MAIL_RETRIES", 3)
	viper.SetDefault("SCHEDULER_MAIL_BACKOFF", "2s")
	viper.SetDefault("SCHEDULER_LOCK_TTL", "10m")
	viper.SetDefault("ARTIFACTS_DIR", "./artifacts")
	viper.SetDefault("ARTIFACTS_TTL", "24h")

	cfg := &Config{
		Server: ServerConfig{
			Port:    viper.GetInt("APP_PORT"),
			Env:     viper.GetString("APP_ENV"),
			BaseURL: viper.GetString("APP_BASE_URL"),
		},
		Database: DatabaseConfig{
			Host:    viper.GetString("DB_HOST"),
			Port:    viper.GetString("DB_PORT"),
			Name:    viper.GetString("DB_NAME"),
			User:    viper.GetString("DB_USER"),
			Pass:    viper.GetString("DB_PASS"),
			Charset: viper.GetString("DB_CHARSET"),
		},
		Redis: RedisConfig{
			Addr: viper.GetString("REDIS_ADDR"),
			Pass: viper.GetString("REDIS_PASS"),
			DB:   viper.GetInt("REDIS_DB"),
		},
		SMTP: SMTPConfig{
			Host:     viper.GetString("SMTP_HOST"),
			Port:     viper.GetInt("SMTP_PORT"),
			Username: viper.GetString("SMTP_USER"),
			Password: viper.GetString("SMTP_PASS"),
			From:     viper.GetString("SMTP_FROM"),
		},
		Mailer: MailerConfig{
			Driver:          viper.GetString("MAIL_DRIVER"),
			ProviderBaseURL: viper.GetString("MAIL_PROVIDER_URL"),
			ProviderAPIKey:  viper.GetString("MAIL_PROVIDER_KEY"),
		},
		Scheduler: SchedulerConfig{
			Workers:     viper.GetInt("SCHEDULER_WORKERS"),
			RunTimeout:  durationOr("SCHEDULER_RUN_TIMEOUT", 2*time.Minute),
			MailRetries: viper.GetInt("SCHEDULER_MAIL_RETRIES"),
			MailBackoff: durationOr("SCHEDULER_MAIL_BACKOFF", 2*time.Second),
			LockTTL:     durationOr("SCHEDULER_LOCK_TTL", 10*time.Minute),
		},
		Artifacts: ArtifactsConfig{
			Dir: viper.GetString("ARTIFACTS_DIR"),
			TTL: durationOr("ARTIFACTS_TTL", 24*time.Hour),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("JWT_SECRET"),
		},
	}
	return cfg, nil
}

func durationOr(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(viper.GetString(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
