package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	JWTSecret string

	RedisAddr    string
	RedisChannel string

	LogMode     string
	OtelEnabled bool

	// LenientTextMatch keeps the "submission contains an accepted answer"
	// fallback for fill-in-the-blank and short-answer questions.
	LenientTextMatch bool
	StreakLocation   *time.Location

	CORSAllowedOrigins []string

	// DotEnvLoaded reports whether a .env file was read.
	DotEnvLoaded bool
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	dotEnv := godotenv.Load() == nil

	loc, err := time.LoadLocation(getEnv("STREAK_TIMEZONE", "UTC"))
	if err != nil {
		return nil, err
	}

	return &Config{
		DotEnvLoaded: dotEnv,

		Port: getEnv("PORT", "8080"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "learnquest"),
		DBPassword: getEnv("DB_PASSWORD", "learnquest"),
		DBName:     getEnv("DB_NAME", "learnquest"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret: getEnv("JWT_SECRET", "learnquest-dev-signing-key"),

		RedisAddr:    getEnv("REDIS_ADDR", ""),
		RedisChannel: getEnv("REDIS_CHANNEL", "learnquest.events"),

		LogMode:     getEnv("LOG_MODE", "dev"),
		OtelEnabled: getBool("OTEL_ENABLED", false),

		LenientTextMatch: getBool("SCORING_LENIENT_TEXT_MATCH", true),
		StreakLocation:   loc,

		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return b
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
