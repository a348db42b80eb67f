package config

import (
	"errors"
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

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	RateLimit RateLimitConfig
	Untis     UntisConfig
	ExamFeed  ExamFeedConfig
	Mappings  MappingsConfig
	Cache     CacheConfig
	Sync      SyncConfig
	Refresh   RefreshConfig
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
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// RateLimitConfig bounds request throughput per client.
type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

// UntisConfig describes the WebUntis JSON-RPC upstream.
type UntisConfig struct {
	BaseURL     string
	School      string
	Username    string
	Password    string
	TOTPSecret  string
	ElementID   int
	ElementType int
	Timeout     time.Duration
}

// ExamFeedConfig describes the school-published exam source.
type ExamFeedConfig struct {
	URL     string
	Timeout time.Duration
}

// MappingsConfig points at the subject/room mapping sources.
type MappingsConfig struct {
	CoursesJSONPath string
	CoursesTxtPath  string
	RoomsJSONPath   string
}

// CacheConfig holds per-source TTLs for remote data.
type CacheConfig struct {
	LessonTTL   time.Duration
	VacationTTL time.Duration
	ExamTTL     time.Duration
}

// SyncConfig tunes the profile sync coordinator.
type SyncConfig struct {
	Enabled     bool
	Debounce    time.Duration
	UpstreamURL string
	Timeout     time.Duration
}

// RefreshConfig controls the periodic warm-cache refresh job.
type RefreshConfig struct {
	Enabled bool
	Spec    string
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
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.RateLimit = RateLimitConfig{
		Enabled: v.GetBool("RATE_LIMIT_ENABLED"),
		RPS:     v.GetFloat64("RATE_LIMIT_RPS"),
		Burst:   v.GetInt("RATE_LIMIT_BURST"),
	}

	cfg.Untis = UntisConfig{
		BaseURL:     v.GetString("UNTIS_BASE"),
		School:      v.GetString("UNTIS_SCHOOL"),
		Username:    v.GetString("UNTIS_USER"),
		Password:    v.GetString("UNTIS_PASS"),
		TOTPSecret:  v.GetString("UNTIS_TOTP_SECRET"),
		ElementID:   v.GetInt("UNTIS_ELEMENT_ID"),
		ElementType: v.GetInt("UNTIS_ELEMENT_TYPE"),
		Timeout:     parseDuration(v.GetString("UNTIS_TIMEOUT"), 25*time.Second),
	}

	cfg.ExamFeed = ExamFeedConfig{
		URL:     v.GetString("EXAM_FEED_URL"),
		Timeout: parseDuration(v.GetString("EXAM_FEED_TIMEOUT"), 10*time.Second),
	}

	cfg.Mappings = MappingsConfig{
		CoursesJSONPath: v.GetString("COURSE_MAPPING_JSON"),
		CoursesTxtPath:  v.GetString("COURSE_MAPPING_TXT"),
		RoomsJSONPath:   v.GetString("ROOM_MAPPING_JSON"),
	}

	cfg.Cache = CacheConfig{
		LessonTTL:   parseDuration(v.GetString("LESSON_CACHE_TTL"), 5*time.Minute),
		VacationTTL: parseDuration(v.GetString("VACATION_CACHE_TTL"), time.Minute),
		ExamTTL:     parseDuration(v.GetString("EXAM_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Sync = SyncConfig{
		Enabled:     v.GetBool("PROFILE_SYNC_ENABLED"),
		Debounce:    parseDuration(v.GetString("PROFILE_SYNC_DEBOUNCE"), 400*time.Millisecond),
		UpstreamURL: v.GetString("PROFILE_SYNC_URL"),
		Timeout:     parseDuration(v.GetString("PROFILE_SYNC_TIMEOUT"), 10*time.Second),
	}

	cfg.Refresh = RefreshConfig{
		Enabled: v.GetBool("REFRESH_ENABLED"),
		Spec:    v.GetString("REFRESH_CRON"),
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
	v.SetDefault("DB_NAME", "stundenplan")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "stundenplan-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("RATE_LIMIT_ENABLED", false)
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)

	v.SetDefault("UNTIS_BASE", "")
	v.SetDefault("UNTIS_SCHOOL", "")
	v.SetDefault("UNTIS_USER", "")
	v.SetDefault("UNTIS_PASS", "")
	v.SetDefault("UNTIS_TOTP_SECRET", "")
	v.SetDefault("UNTIS_ELEMENT_ID", 0)
	v.SetDefault("UNTIS_ELEMENT_TYPE", 5)
	v.SetDefault("UNTIS_TIMEOUT", "25s")

	v.SetDefault("EXAM_FEED_URL", "")
	v.SetDefault("EXAM_FEED_TIMEOUT", "10s")

	v.SetDefault("COURSE_MAPPING_JSON", "./data/course_mapping.json")
	v.SetDefault("COURSE_MAPPING_TXT", "./data/course_mapping.txt")
	v.SetDefault("ROOM_MAPPING_JSON", "./data/rooms_mapping.json")

	v.SetDefault("LESSON_CACHE_TTL", "5m")
	v.SetDefault("VACATION_CACHE_TTL", "1m")
	v.SetDefault("EXAM_CACHE_TTL", "5m")

	v.SetDefault("PROFILE_SYNC_ENABLED", false)
	v.SetDefault("PROFILE_SYNC_DEBOUNCE", "400ms")
	v.SetDefault("PROFILE_SYNC_URL", "")
	v.SetDefault("PROFILE_SYNC_TIMEOUT", "10s")

	v.SetDefault("REFRESH_ENABLED", false)
	v.SetDefault("REFRESH_CRON", "@every 5m")
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
