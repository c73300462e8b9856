package config

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"assessment-system/pkg/database"
)

type Config struct {
	HTTPAddr    string
	DB          database.Config
	RedisAddr   string
	JWTSecret   string
	CORSOrigins []string

	// AdvanceDelay is how long a revealed quiz answer is shown.
	AdvanceDelay time.Duration
	// AttemptRetention keeps completed attempts readable after they finish.
	AttemptRetention time.Duration
	LeaderboardTTL   time.Duration
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}
	return FromEnv()
}

func FromEnv() (*Config, error) {
	cfg := &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		DB: database.Config{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			DBName:   os.Getenv("DB_NAME"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		CORSOrigins:      csv(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8081")),
		AdvanceDelay:     getDuration("QUIZ_ADVANCE_DELAY", time.Second),
		AttemptRetention: getDuration("ATTEMPT_RETENTION", 10*time.Minute),
		LeaderboardTTL:   getDuration("LEADERBOARD_TTL", time.Minute),
	}

	if cfg.DB.User == "" {
		return nil, errors.New("DB_USER is required")
	}
	if cfg.DB.DBName == "" {
		return nil, errors.New("DB_NAME is required")
	}
	return cfg, nil
}

// RequireJWT reports an error unless a signing secret is configured. Only
// the server signs tokens; the command line tools skip it.
func (c *Config) RequireJWT() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	return nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("Warning: invalid %s %q, using %s", key, v, def)
		return def
	}
	return d
}

func csv(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
