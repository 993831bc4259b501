package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	AppName      string
	Env          string
	Host         string
	Port         int
	DatabasePath string

	JWTSecret          string
	AccessTokenMinutes int

	CORSOrigins []string
	Debug       bool

	DefaultPageSize  int
	MaxPageSize      int
	SubscriberBuffer int
	WSIdleSeconds    int
}

func Load() (*Config, error) {
	cfg := &Config{
		AppName:      getEnv("APP_NAME", "Chirper API"),
		Env:          getEnv("APP_ENV", "development"),
		Host:         getEnv("HTTP_HOST", "0.0.0.0"),
		Port:         getEnvAsInt("HTTP_PORT", 8000),
		DatabasePath: getEnv("SQLITE_PATH", "chirper.db"),

		JWTSecret:          os.Getenv("JWT_SECRET"),
		AccessTokenMinutes: getEnvAsInt("ACCESS_TOKEN_EXPIRE_MINUTES", 60*24),

		Debug: getEnvAsBool("DEBUG", true),

		DefaultPageSize:  getEnvAsInt("DEFAULT_PAGE_SIZE", 20),
		MaxPageSize:      getEnvAsInt("MAX_PAGE_SIZE", 100),
		SubscriberBuffer: getEnvAsInt("SUBSCRIBER_BUFFER", 64),
		WSIdleSeconds:    getEnvAsInt("WS_IDLE_SECONDS", 300),
	}

	cors := getEnv("CORS_ORIGINS", "")
	if cors != "" {
		parts := strings.Split(cors, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		cfg.CORSOrigins = parts
	} else {
		cfg.CORSOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvAsBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
