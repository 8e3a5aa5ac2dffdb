package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port               string
	Env                string
	LogLevel           string
	CORSAllowedOrigins []string
	RateLimitPerMinute int

	// Auth
	EdgeAPIKey string

	// LLM providers
	LLMProvider           string
	LLMModel              string
	LLMTemperature        float64
	LLMMaxTokens          int
	LLMConcurrentRequests int
	OpenAIAPIKey          string
	AnthropicAPIKey       string
	GeminiAPIKey          string

	// Generation
	GenerationTimeout  time.Duration
	GenerationCacheTTL time.Duration
	CrewExtended       bool
	WorkerCount        int

	// Shopify
	ShopifyShopName    string
	ShopifyAccessToken string
	ShopifyBlogID      string
	ShopifyAPIVersion  string

	// Optional backing stores
	RedisURL    string
	DatabaseURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                  getEnvOrDefault("PORT", "8000"),
		Env:                   getEnvOrDefault("ENV", "production"),
		LogLevel:              getEnvOrDefault("LOG_LEVEL", "info"),
		CORSAllowedOrigins:    getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitPerMinute:    getEnvAsIntOrDefault("RATE_LIMIT_PER_MINUTE", 30),
		EdgeAPIKey:            mustGetEnv("EDGE_API_KEY"),
		LLMProvider:           strings.ToLower(getEnvOrDefault("LLM_PROVIDER", "openai")),
		LLMModel:              getEnvOrDefault("LLM_MODEL", ""),
		LLMTemperature:        getEnvAsFloatOrDefault("LLM_TEMPERATURE", 0.7),
		LLMMaxTokens:          getEnvAsIntOrDefault("LLM_MAX_TOKENS", 4096),
		LLMConcurrentRequests: getEnvAsIntOrDefault("LLM_CONCURRENT_REQUESTS", 3),
		OpenAIAPIKey:          mustGetEnv("OPENAI_API_KEY"),
		AnthropicAPIKey:       getEnvOrDefault("ANTHROPIC_API_KEY", ""),
		GeminiAPIKey:          getEnvOrDefault("GEMINI_API_KEY", ""),
		GenerationTimeout:     getEnvAsDurationOrDefault("GENERATION_TIMEOUT", 5*time.Minute),
		GenerationCacheTTL:    getEnvAsDurationOrDefault("GENERATION_CACHE_TTL", 0),
		CrewExtended:          getEnvAsBool("CREW_EXTENDED", false),
		WorkerCount:           getEnvAsIntOrDefault("WORKER_COUNT", 2),
		ShopifyShopName:       getEnvOrDefault("SHOPIFY_SHOP_NAME", ""),
		ShopifyAccessToken:    getEnvOrDefault("SHOPIFY_ACCESS_TOKEN", ""),
		ShopifyBlogID:         getEnvOrDefault("SHOPIFY_BLOG_ID", ""),
		ShopifyAPIVersion:     getEnvOrDefault("SHOPIFY_API_VERSION", "2024-07"),
		RedisURL:              getEnvOrDefault("REDIS_URL", ""),
		DatabaseURL:           getEnvOrDefault("DATABASE_URL", ""),
	}

	if cfg.LLMConcurrentRequests < 1 {
		cfg.LLMConcurrentRequests = 1
	}
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}

	return cfg
}

// ShopifyEnabled reports whether both Shopify credentials are present.
func (c *Config) ShopifyEnabled() bool {
	return c.ShopifyShopName != "" && c.ShopifyAccessToken != ""
}

// IsDevelopment switches logging to the console encoder.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func mustGetEnv(key string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsFloatOrDefault(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvAsBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvAsList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
