package infra

import (
	"os"
	"strconv"
	"strings"
	"time"

	"studio/internal/domain"
)

// Config represents application configuration loaded from environment variables.
// Provider credentials are read eagerly but only validated by their accessors,
// so a missing key fails the first operation that needs it, not startup.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	RedisURL    string

	SupabaseURL            string
	SupabaseServiceRoleKey string
	SupabaseJWTSecret      string
	AppHost                string

	TikTokAPIKey       string
	TikTokAPISecret    string
	InstagramAppID     string
	InstagramAppSecret string

	GeminiAPIKey        string
	GeminiModel         string
	GeminiBaseURL       string
	OpenAIAPIKey        string
	OpenAIRealtimeModel string
	OpenAIBaseURL       string
	CreatomateAPIKey    string
	RunwayAPIKey        string
	StabilityAPIKey     string
	PexelsAPIKey        string

	StorageDriver        string
	StorageEndpoint      string
	StorageAccessKey     string
	StorageSecretKey     string
	StorageRegion        string
	StorageBucket        string
	StorageUseSSL        bool
	StoragePublicBaseURL string
	StoragePath          string

	CORSAllowedOrigins     []string
	HTTPReadTimeout        time.Duration
	HTTPWriteTimeout       time.Duration
	HTTPIdleTimeout        time.Duration
	RateLimitPerMin        int
	PollMaxConsecutiveErrs int
	TokenRefreshInterval   time.Duration
	CartTTL                time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),

		SupabaseURL:            strings.TrimRight(os.Getenv("NEXT_PUBLIC_SUPABASE_URL"), "/"),
		SupabaseServiceRoleKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseJWTSecret:      os.Getenv("SUPABASE_JWT_SECRET"),
		AppHost:                strings.TrimRight(os.Getenv("NEXT_PUBLIC_APP_HOST"), "/"),

		TikTokAPIKey:       os.Getenv("TIKTOK_API_KEY"),
		TikTokAPISecret:    os.Getenv("TIKTOK_API_SECRET"),
		InstagramAppID:     os.Getenv("INSTAGRAM_APP_ID"),
		InstagramAppSecret: os.Getenv("INSTAGRAM_APP_SECRET"),

		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiBaseURL:       getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIRealtimeModel: getEnv("OPENAI_REALTIME_MODEL", "gpt-4o-realtime-preview"),
		OpenAIBaseURL:       getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		CreatomateAPIKey:    os.Getenv("CREATOMATE_API_KEY"),
		RunwayAPIKey:        os.Getenv("RUNWAY_API_KEY"),
		StabilityAPIKey:     os.Getenv("STABILITY_API_KEY"),
		PexelsAPIKey:        os.Getenv("PEXELS_API_KEY"),

		StorageDriver:        strings.ToLower(getEnv("STORAGE_DRIVER", "minio")),
		StorageEndpoint:      os.Getenv("STORAGE_ENDPOINT"),
		StorageAccessKey:     os.Getenv("STORAGE_ACCESS_KEY"),
		StorageSecretKey:     os.Getenv("STORAGE_SECRET_KEY"),
		StorageRegion:        getEnv("STORAGE_REGION", "us-east-1"),
		StorageBucket:        getEnv("STORAGE_BUCKET", "social-media-assets"),
		StorageUseSSL:        getEnvBool("STORAGE_USE_SSL", true),
		StoragePublicBaseURL: strings.TrimRight(os.Getenv("STORAGE_PUBLIC_BASE_URL"), "/"),
		StoragePath:          getEnv("STORAGE_PATH", "./storage"),

		CORSAllowedOrigins:     splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		HTTPReadTimeout:        time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:       time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:        time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:        getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		PollMaxConsecutiveErrs: getEnvInt("POLL_MAX_CONSECUTIVE_ERRORS", 3),
		TokenRefreshInterval:   time.Second * time.Duration(getEnvInt("TOKEN_REFRESH_INTERVAL_SECONDS", 300)),
		CartTTL:                time.Hour * time.Duration(getEnvInt("CART_TTL_HOURS", 24*7)),
	}

	if cfg.DatabaseURL == "" {
		return nil, domain.MissingConfig("DATABASE_URL")
	}
	if cfg.AppHost == "" {
		cfg.AppHost = "http://localhost:" + cfg.Port
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{cfg.AppHost}
	}

	return cfg, nil
}

// TikTokCredentials returns the client key and secret or a configuration error.
func (c *Config) TikTokCredentials() (string, string, error) {
	if err := require("TIKTOK_API_KEY", c.TikTokAPIKey); err != nil {
		return "", "", err
	}
	if err := require("TIKTOK_API_SECRET", c.TikTokAPISecret); err != nil {
		return "", "", err
	}
	return c.TikTokAPIKey, c.TikTokAPISecret, nil
}

// InstagramCredentials returns the Facebook app id and secret or a configuration error.
func (c *Config) InstagramCredentials() (string, string, error) {
	if err := require("INSTAGRAM_APP_ID", c.InstagramAppID); err != nil {
		return "", "", err
	}
	if err := require("INSTAGRAM_APP_SECRET", c.InstagramAppSecret); err != nil {
		return "", "", err
	}
	return c.InstagramAppID, c.InstagramAppSecret, nil
}

// Supabase returns the project URL and service-role key.
func (c *Config) Supabase() (string, string, error) {
	if err := require("NEXT_PUBLIC_SUPABASE_URL", c.SupabaseURL); err != nil {
		return "", "", err
	}
	if err := require("SUPABASE_SERVICE_ROLE_KEY", c.SupabaseServiceRoleKey); err != nil {
		return "", "", err
	}
	return c.SupabaseURL, c.SupabaseServiceRoleKey, nil
}

// RedirectURL builds the OAuth callback URL served by this API for a platform.
func (c *Config) RedirectURL(platform domain.Platform) (string, error) {
	if err := require("NEXT_PUBLIC_APP_HOST", c.AppHost); err != nil {
		return "", err
	}
	return c.AppHost + "/v1/oauth/" + string(platform) + "/callback", nil
}

// Secret returns a named credential or a configuration error naming the variable.
func (c *Config) Secret(name string) (string, error) {
	var v string
	switch name {
	case "GEMINI_API_KEY":
		v = c.GeminiAPIKey
	case "OPENAI_API_KEY":
		v = c.OpenAIAPIKey
	case "CREATOMATE_API_KEY":
		v = c.CreatomateAPIKey
	case "RUNWAY_API_KEY":
		v = c.RunwayAPIKey
	case "STABILITY_API_KEY":
		v = c.StabilityAPIKey
	case "PEXELS_API_KEY":
		v = c.PexelsAPIKey
	case "SUPABASE_JWT_SECRET":
		v = c.SupabaseJWTSecret
	default:
		v = os.Getenv(name)
	}
	if err := require(name, v); err != nil {
		return "", err
	}
	return v, nil
}

func require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return domain.MissingConfig(name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
