package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jobhive/jobhive-api/pkg/token"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Log       LogConfig
	OAuth     OAuthConfig
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
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds the signing secret and token lifetimes. Lifetimes use the
// compact "<integer><unit>" shape with unit s, m, h or d.
type JWTConfig struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	ResetTTL   time.Duration
	// ResetBaseURL is the frontend page the emailed reset link points at.
	ResetBaseURL string
}

// RateLimitBucket is one endpoint class budget: max requests per window.
type RateLimitBucket struct {
	Window time.Duration
	Max    int
}

// RateLimitConfig defines independent budgets per endpoint class. When
// UseRedis is set the counters live in Redis and are shared across
// instances; otherwise they are process-local and approximate.
type RateLimitConfig struct {
	UseRedis bool
	Auth     RateLimitBucket
	API      RateLimitBucket
	Search   RateLimitBucket
	Upload   RateLimitBucket
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// OAuthConfig holds the optional outbound Google sign-in settings. Empty
// values leave the integration unconfigured.
type OAuthConfig struct {
	GoogleClientID    string
	GoogleRedirectURL string
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
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

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
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:       v.GetString("JWT_SECRET"),
		Issuer:       v.GetString("JWT_ISSUER"),
		AccessTTL:    parseTTL(v.GetString("JWT_ACCESS_TTL"), 15*time.Minute),
		RefreshTTL:   parseTTL(v.GetString("JWT_REFRESH_TTL"), 7*24*time.Hour),
		ResetTTL:     parseTTL(v.GetString("PASSWORD_RESET_TTL"), time.Hour),
		ResetBaseURL: v.GetString("PASSWORD_RESET_URL"),
	}

	cfg.RateLimit = RateLimitConfig{
		UseRedis: v.GetBool("RATE_LIMIT_USE_REDIS"),
		Auth: RateLimitBucket{
			Window: parseTTL(v.GetString("RATE_LIMIT_AUTH_WINDOW"), time.Minute),
			Max:    v.GetInt("RATE_LIMIT_AUTH_MAX"),
		},
		API: RateLimitBucket{
			Window: parseTTL(v.GetString("RATE_LIMIT_API_WINDOW"), time.Minute),
			Max:    v.GetInt("RATE_LIMIT_API_MAX"),
		},
		Search: RateLimitBucket{
			Window: parseTTL(v.GetString("RATE_LIMIT_SEARCH_WINDOW"), time.Minute),
			Max:    v.GetInt("RATE_LIMIT_SEARCH_MAX"),
		},
		Upload: RateLimitBucket{
			Window: parseTTL(v.GetString("RATE_LIMIT_UPLOAD_WINDOW"), time.Minute),
			Max:    v.GetInt("RATE_LIMIT_UPLOAD_MAX"),
		},
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.OAuth = OAuthConfig{
		GoogleClientID:    v.GetString("GOOGLE_OAUTH_CLIENT_ID"),
		GoogleRedirectURL: v.GetString("GOOGLE_OAUTH_REDIRECT_URL"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "jobhive")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "jobhive-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "7d")
	v.SetDefault("PASSWORD_RESET_TTL", "1h")
	v.SetDefault("PASSWORD_RESET_URL", "http://localhost:3000/reset-password")

	v.SetDefault("RATE_LIMIT_USE_REDIS", false)
	v.SetDefault("RATE_LIMIT_AUTH_WINDOW", "60s")
	v.SetDefault("RATE_LIMIT_AUTH_MAX", 5)
	v.SetDefault("RATE_LIMIT_API_WINDOW", "60s")
	v.SetDefault("RATE_LIMIT_API_MAX", 120)
	v.SetDefault("RATE_LIMIT_SEARCH_WINDOW", "60s")
	v.SetDefault("RATE_LIMIT_SEARCH_MAX", 30)
	v.SetDefault("RATE_LIMIT_UPLOAD_WINDOW", "60s")
	v.SetDefault("RATE_LIMIT_UPLOAD_MAX", 10)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("GOOGLE_OAUTH_CLIENT_ID", "")
	v.SetDefault("GOOGLE_OAUTH_REDIRECT_URL", "")
}

func parseTTL(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := token.ParseTTL(raw)
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
