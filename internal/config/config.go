package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Email    EmailConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Media    MediaConfig
	Payment  PaymentConfig
	Admin    AdminConfig
}

type ServerConfig struct {
	Port            string
	PublicBaseURL   string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers []string
	GroupID string
	Topics  TopicConfig
	Enabled bool
}

type TopicConfig struct {
	BookingCreated   string
	BookingConfirmed string
	BookingCheckedIn string
	BookingCancelled string
}

// All returns every topic the service produces to.
func (t TopicConfig) All() []string {
	return []string{t.BookingCreated, t.BookingConfirmed, t.BookingCheckedIn, t.BookingCancelled}
}

type DatabaseConfig struct {
	DSN           string
	MaxOpenConns  int
	MaxIdleConns  int
	MaxLifetime   time.Duration
	ConnRetries   int
	MigrationsDir string
	AutoMigrate   bool
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	From         string
}

type AuthConfig struct {
	JWTSecret  string
	TokenTTL   time.Duration
	CookieName string
}

type MediaConfig struct {
	Root           string
	MaxUploadBytes int64
}

type PaymentConfig struct {
	WebhookSecret       string
	WebhookReplayTTL    time.Duration
	StripeSecretKey     string
	StripeWebhookSecret string
	StripeCurrency      string
}

type AdminConfig struct {
	Username           string
	Email              string
	Password           string
	ProvisionOnStartup bool
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", ":8080"),
			PublicBaseURL:   getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
			ReadTimeout:     getEnvDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 5*time.Second),
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", "localhost"),
			SMTPPort:     getEnv("SMTP_PORT", "1025"),
			SMTPUsername: os.Getenv("SMTP_USERNAME"),
			SMTPPassword: os.Getenv("SMTP_PASSWORD"),
			From:         getEnv("SMTP_FROM", "tickets@qrentry.local"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Database: DatabaseConfig{
			DSN:           os.Getenv("POSTGRES_DSN"),
			MaxOpenConns:  getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:   time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
			ConnRetries:   getEnvInt("DB_CONN_RETRIES", 5),
			MigrationsDir: getEnv("MIGRATIONS_DIR", "./migrations"),
			AutoMigrate:   getEnvBool("DB_AUTO_MIGRATE", false),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			GroupID: getEnv("KAFKA_GROUP_ID", "qrentry-notifier"),
			Enabled: getEnvBool("KAFKA_ENABLED", true),
			Topics: TopicConfig{
				BookingCreated:   getEnv("KAFKA_TOPIC_BOOKING_CREATED", "qrentry.booking.created"),
				BookingConfirmed: getEnv("KAFKA_TOPIC_BOOKING_CONFIRMED", "qrentry.booking.confirmed"),
				BookingCheckedIn: getEnv("KAFKA_TOPIC_BOOKING_CHECKED_IN", "qrentry.booking.checked_in"),
				BookingCancelled: getEnv("KAFKA_TOPIC_BOOKING_CANCELLED", "qrentry.booking.cancelled"),
			},
		},
		Auth: AuthConfig{
			JWTSecret:  os.Getenv("JWT_SECRET"),
			TokenTTL:   getEnvDuration("JWT_TTL", 24*time.Hour),
			CookieName: getEnv("SESSION_COOKIE_NAME", "qrentry_session"),
		},
		Media: MediaConfig{
			Root:           getEnv("MEDIA_ROOT", "./media"),
			MaxUploadBytes: int64(getEnvInt("MEDIA_MAX_UPLOAD_BYTES", 5<<20)),
		},
		Payment: PaymentConfig{
			WebhookSecret:       os.Getenv("PAYMENT_WEBHOOK_SECRET"),
			WebhookReplayTTL:    getEnvDuration("PAYMENT_WEBHOOK_REPLAY_TTL", 24*time.Hour),
			StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
			StripeCurrency:      getEnv("STRIPE_CURRENCY", "inr"),
		},
		Admin: AdminConfig{
			Username:           getEnv("ADMIN_USERNAME", "admin"),
			Email:              getEnv("ADMIN_EMAIL", "admin@example.com"),
			Password:           os.Getenv("ADMIN_PASSWORD"),
			ProvisionOnStartup: getEnvBool("ADMIN_PROVISION_ON_STARTUP", false),
		},
	}
}

// Validate reports settings the API server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("POSTGRES_DSN not set"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET not set"))
	}
	if c.Media.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MEDIA_MAX_UPLOAD_BYTES must be positive"))
	}
	if c.Admin.ProvisionOnStartup && c.Admin.Password == "" {
		errs = append(errs, errors.New("ADMIN_PASSWORD required when ADMIN_PROVISION_ON_STARTUP is set"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping empty entries.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
