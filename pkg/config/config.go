package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Mongo      MongoConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Attendance AttendanceConfig
	LLM        LLMConfig
	Mail       MailConfig
	Storage    StorageConfig
	Dashboard  DashboardConfig
	Realtime   RealtimeConfig
	CORS       CORSConfig
	Log        LogConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

// MongoConfig points at the document store holding AI chat transcripts.
type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Issuer            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
	ResetExpiration   time.Duration
}

// AttendanceConfig tunes the QR check-in flow.
type AttendanceConfig struct {
	TokenSecret string
	TokenTTL    time.Duration
	QRSize      int
}

// LLMConfig configures the upstream model used by the AI assistant.
type LLMConfig struct {
	BaseURL       string
	APIKey        string
	Model         string
	Timeout       time.Duration
	SystemPrompt  string
	HistoryWindow int
	Temperature   float64
	MaxTokens     int
}

// MailConfig configures transactional email delivery.
type MailConfig struct {
	SendgridAPIKey   string
	FromName         string
	FromAddress      string
	ResetPasswordURL string
	SignupURL        string
	WorkerRetries    int
}

// StorageConfig controls uploaded submission files.
type StorageConfig struct {
	UploadDir        string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	MaxFileSizeBytes int64
}

// DashboardConfig governs dashboard cache tuning.
type DashboardConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// RealtimeConfig tunes websocket connections.
type RealtimeConfig struct {
	AllowedOrigins []string
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	SendBuffer     int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Mongo = MongoConfig{
		URI:            v.GetString("MONGO_URI"),
		Database:       v.GetString("MONGO_DATABASE"),
		ConnectTimeout: parseDuration(v.GetString("MONGO_CONNECT_TIMEOUT"), 10*time.Second),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Issuer:            v.GetString("JWT_ISSUER"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
		ResetExpiration:   parseDuration(v.GetString("PASSWORD_RESET_EXPIRATION"), time.Hour),
	}

	qrSize := v.GetInt("ATTENDANCE_QR_SIZE")
	if qrSize <= 0 {
		qrSize = 256
	}
	cfg.Attendance = AttendanceConfig{
		TokenSecret: v.GetString("ATTENDANCE_TOKEN_SECRET"),
		TokenTTL:    parseDuration(v.GetString("ATTENDANCE_TOKEN_TTL"), 30*time.Second),
		QRSize:      qrSize,
	}

	cfg.LLM = LLMConfig{
		BaseURL:       v.GetString("LLM_BASE_URL"),
		APIKey:        v.GetString("LLM_API_KEY"),
		Model:         v.GetString("LLM_MODEL"),
		Timeout:       parseDuration(v.GetString("LLM_TIMEOUT"), 30*time.Second),
		SystemPrompt:  v.GetString("LLM_SYSTEM_PROMPT"),
		HistoryWindow: v.GetInt("LLM_HISTORY_WINDOW"),
		Temperature:   v.GetFloat64("LLM_TEMPERATURE"),
		MaxTokens:     v.GetInt("LLM_MAX_TOKENS"),
	}

	cfg.Mail = MailConfig{
		SendgridAPIKey:   v.GetString("SENDGRID_API_KEY"),
		FromName:         v.GetString("MAIL_FROM_NAME"),
		FromAddress:      v.GetString("MAIL_FROM_ADDRESS"),
		ResetPasswordURL: v.GetString("MAIL_RESET_PASSWORD_URL"),
		SignupURL:        v.GetString("MAIL_SIGNUP_URL"),
		WorkerRetries:    v.GetInt("MAIL_WORKER_RETRIES"),
	}

	maxUpload := v.GetInt64("UPLOAD_MAX_FILE_SIZE")
	if maxUpload <= 0 {
		maxUpload = 10 * 1024 * 1024
	}
	cfg.Storage = StorageConfig{
		UploadDir:        v.GetString("UPLOAD_DIR"),
		SignedURLSecret:  v.GetString("UPLOAD_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("UPLOAD_SIGNED_URL_TTL"), 15*time.Minute),
		MaxFileSizeBytes: maxUpload,
	}

	cfg.Dashboard = DashboardConfig{
		CacheEnabled: v.GetBool("DASHBOARD_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Realtime = RealtimeConfig{
		AllowedOrigins: splitAndTrim(v.GetString("WS_ALLOWED_ORIGINS")),
		WriteTimeout:   parseDuration(v.GetString("WS_WRITE_TIMEOUT"), 10*time.Second),
		PingInterval:   parseDuration(v.GetString("WS_PING_INTERVAL"), 30*time.Second),
		SendBuffer:     v.GetInt("WS_SEND_BUFFER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "smart_classroom")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "smart_classroom")
	v.SetDefault("MONGO_CONNECT_TIMEOUT", "10s")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "smart-classroom-api")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")
	v.SetDefault("PASSWORD_RESET_EXPIRATION", "1h")

	v.SetDefault("ATTENDANCE_TOKEN_SECRET", "dev_attendance_secret")
	v.SetDefault("ATTENDANCE_TOKEN_TTL", "30s")
	v.SetDefault("ATTENDANCE_QR_SIZE", 256)

	v.SetDefault("LLM_BASE_URL", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("LLM_API_KEY", "")
	v.SetDefault("LLM_MODEL", "gemini-1.5-flash")
	v.SetDefault("LLM_TIMEOUT", "30s")
	v.SetDefault("LLM_SYSTEM_PROMPT", "You are a helpful classroom assistant. Explain concepts clearly and encourage students to think for themselves.")
	v.SetDefault("LLM_HISTORY_WINDOW", 20)
	v.SetDefault("LLM_TEMPERATURE", 0.7)
	v.SetDefault("LLM_MAX_TOKENS", 1024)

	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("MAIL_FROM_NAME", "Smart Classroom")
	v.SetDefault("MAIL_FROM_ADDRESS", "no-reply@smartclassroom.local")
	v.SetDefault("MAIL_RESET_PASSWORD_URL", "http://localhost:5173/reset-password")
	v.SetDefault("MAIL_SIGNUP_URL", "http://localhost:5173/register")
	v.SetDefault("MAIL_WORKER_RETRIES", 3)

	v.SetDefault("UPLOAD_DIR", "./uploads")
	v.SetDefault("UPLOAD_SIGNED_URL_SECRET", "dev_upload_secret")
	v.SetDefault("UPLOAD_SIGNED_URL_TTL", "15m")
	v.SetDefault("UPLOAD_MAX_FILE_SIZE", 10*1024*1024)

	v.SetDefault("DASHBOARD_CACHE_ENABLED", true)
	v.SetDefault("DASHBOARD_CACHE_TTL", "5m")

	v.SetDefault("WS_ALLOWED_ORIGINS", "")
	v.SetDefault("WS_WRITE_TIMEOUT", "10s")
	v.SetDefault("WS_PING_INTERVAL", "30s")
	v.SetDefault("WS_SEND_BUFFER", 32)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
