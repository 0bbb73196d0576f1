package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"leadomation/models"
	"leadomation/utils"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	DB        *gorm.DB
	AppConfig Config
	envLoaded bool
)

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// SenderConfig is the identity used when a profile has no sender settings.
type SenderConfig struct {
	FromName  string `json:"from_name"`
	FromEmail string `json:"from_email"`
	ReplyTo   string `json:"reply_to"`
}

type SMTPConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"-"`
}

type Config struct {
	Environment string `json:"environment"`
	LogLevel    string `json:"log_level"`
	ServerPort  string `json:"server_port"`
	AppURL      string `json:"app_url"`

	DBHost         string `json:"db_host"`
	DBPort         string `json:"db_port"`
	DBUser         string `json:"db_user"`
	DBPassword     string `json:"-"`
	DBName         string `json:"db_name"`
	DBSSLMode      string `json:"db_ssl_mode"`
	DBMaxIdleConns int    `json:"db_max_idle_conns"`
	DBMaxOpenConns int    `json:"db_max_open_conns"`

	CronSecret        string `json:"-"`
	SupabaseJWTSecret string `json:"-"`
	SentryDSN         string `json:"-"`

	SendGridAPIKey string       `json:"-"`
	SMTP           SMTPConfig   `json:"smtp"`
	Sender         SenderConfig `json:"sender"`
	TrackingURL    string       `json:"tracking_url"`

	Redis            RedisConfig `json:"redis"`
	RateLimitTrigger int         `json:"rate_limit_trigger"`

	SchedulerEnabled     bool          `json:"scheduler_enabled"`
	SequenceCron         string        `json:"sequence_cron"`
	LifecycleCron        string        `json:"lifecycle_cron"`
	SequenceBatchSize    int           `json:"sequence_batch_size"`
	SequenceClaimTTL     time.Duration `json:"sequence_claim_ttl"`
	LifecycleCatchupDays int           `json:"lifecycle_catchup_days"`
	JobTimeout           time.Duration `json:"job_timeout"`
}

func init() {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()
	envLoaded = true
}

func LoadConfig() error {
	AppConfig = Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		ServerPort:  getEnv("SERVER_PORT", "5000"),
		AppURL:      getEnv("APP_URL", "https://app.leadomation.co.uk"),

		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "postgres"),
		DBSSLMode:      getEnv("DB_SSL_MODE", "require"),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 20),

		CronSecret:        getEnv("CRON_SECRET", ""),
		SupabaseJWTSecret: getEnv("SUPABASE_JWT_SECRET", ""),
		SentryDSN:         getEnv("SENTRY_DSN", ""),

		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
		},
		Sender: SenderConfig{
			FromName:  getEnv("DEFAULT_FROM_NAME", "Leadomation"),
			FromEmail: getEnv("DEFAULT_FROM_EMAIL", "hello@leadomation.co.uk"),
			ReplyTo:   getEnv("DEFAULT_REPLY_TO", ""),
		},
		TrackingURL: getEnv("TRACKING_BASE_URL", ""),

		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		RateLimitTrigger: getEnvAsInt("RATE_LIMIT_TRIGGER", 30),

		SchedulerEnabled:     getEnvAsBool("SCHEDULER_ENABLED", true),
		SequenceCron:         getEnv("SEQUENCE_CRON", "*/5 * * * *"),
		LifecycleCron:        getEnv("LIFECYCLE_CRON", "0 9 * * *"),
		SequenceBatchSize:    getEnvAsInt("SEQUENCE_BATCH_SIZE", 50),
		SequenceClaimTTL:     getEnvAsDuration("SEQUENCE_CLAIM_TTL", 10*time.Minute),
		LifecycleCatchupDays: getEnvAsInt("LIFECYCLE_CATCHUP_DAYS", 0),
		JobTimeout:           getEnvAsDuration("JOB_TIMEOUT", 5*time.Minute),
	}

	// Validate required configurations
	if AppConfig.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if AppConfig.SequenceBatchSize <= 0 {
		return fmt.Errorf("SEQUENCE_BATCH_SIZE must be positive")
	}
	if AppConfig.Environment == "production" {
		if AppConfig.CronSecret == "" && AppConfig.SupabaseJWTSecret == "" {
			return fmt.Errorf("CRON_SECRET or SUPABASE_JWT_SECRET is required in production")
		}
		if AppConfig.SendGridAPIKey == "" && AppConfig.SMTP.Host == "" {
			return fmt.Errorf("SENDGRID_API_KEY or SMTP_HOST is required in production")
		}
	}

	logConfig()
	return nil
}

func ConnectDB() error {
	logrus.Info("Attempting to connect to database...")

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBUser,
		AppConfig.DBPassword,
		AppConfig.DBName,
		AppConfig.DBSSLMode,
	)
	logrus.WithField("dsn", maskPassword(dsn)).Debug("Using connection string")

	gormCfg := &gorm.Config{}
	if AppConfig.Environment == "production" {
		gormCfg.Logger = gormlogger.Default.LogMode(gormlogger.Warn)
	}

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), gormCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get DB instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(AppConfig.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(AppConfig.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	logrus.Info("✅ Successfully connected to the database")
	logrus.Info("🔄 Starting database migration...")
	if err := models.Migrate(DB); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	logrus.Info("✅ Database migration completed")
	return nil
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	if !envLoaded && fallback == "" {
		logrus.Warnf("⚠️ Environment variable %s not found and no fallback provided", key)
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var value int
	_, err := fmt.Sscanf(valueStr, "%d", &value)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsBool(key string, fallback bool) bool {
	switch strings.ToLower(getEnv(key, "")) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	d, err := time.ParseDuration(valueStr)
	if err != nil {
		return fallback
	}
	return d
}

func maskPassword(dsn string) string {
	const passwordMarker = "password="
	startIdx := strings.Index(dsn, passwordMarker)
	if startIdx == -1 {
		return dsn
	}

	startIdx += len(passwordMarker)
	endIdx := strings.IndexAny(dsn[startIdx:], " ")
	if endIdx == -1 {
		return dsn[:startIdx] + "*****"
	}
	return dsn[:startIdx] + "*****" + dsn[startIdx+endIdx:]
}

func logConfig() {
	logrus.WithFields(logrus.Fields{
		"environment": AppConfig.Environment,
		"server_port": AppConfig.ServerPort,
		"database": fmt.Sprintf("%s@%s:%s/%s",
			AppConfig.DBUser,
			AppConfig.DBHost,
			AppConfig.DBPort,
			AppConfig.DBName),
		"sendgrid":      AppConfig.SendGridAPIKey != "",
		"smtp":          AppConfig.SMTP.Host != "",
		"redis":         AppConfig.Redis.Enabled,
		"scheduler":     AppConfig.SchedulerEnabled,
		"sequence_cron": AppConfig.SequenceCron,
		"batch_size":    AppConfig.SequenceBatchSize,
	}).Info("🔧 Loaded configuration")
}

// SenderIdentity is the fallback identity for outgoing email.
func (c Config) SenderIdentity() models.SenderIdentity {
	return models.SenderIdentity{
		FromName:  c.Sender.FromName,
		FromEmail: c.Sender.FromEmail,
		ReplyTo:   c.Sender.ReplyTo,
	}
}

func (c Config) MailerConfig() utils.MailerConfig {
	return utils.MailerConfig{
		SendGridAPIKey: c.SendGridAPIKey,
		SMTPHost:       c.SMTP.Host,
		SMTPPort:       c.SMTP.Port,
		SMTPUsername:   c.SMTP.Username,
		SMTPPassword:   c.SMTP.Password,
	}
}

// ConnectRedis returns a client for the configured Redis, or nil when
// Redis is disabled.
func ConnectRedis(ctx context.Context) (*redis.Client, error) {
	if !AppConfig.Redis.Enabled {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     AppConfig.Redis.Address,
		Password: AppConfig.Redis.Password,
		DB:       AppConfig.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	logrus.WithField("address", AppConfig.Redis.Address).Info("✅ Connected to Redis")
	return client, nil
}
