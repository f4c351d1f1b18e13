package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable the server reads from the environment.
type Config struct {
	Port          string
	AdminSecret   string
	DatabaseURL   string
	AllowedOrigin string

	DrawInterval      time.Duration
	ServiceFee        float64
	MinStake          int
	MaxStake          int
	MinWithdrawal     int
	MaxPlayers        int
	InactivityTimeout time.Duration
	AdminStaleAfter   time.Duration
	ChatHistoryLimit  int
}

// Load reads .env (if present) and the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[INFO] No .env file found, reading environment variables")
	}

	cfg := Config{
		Port:          getEnv("PORT", "4000"),
		AdminSecret:   os.Getenv("ADMIN_SECRET"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		AllowedOrigin: getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),

		DrawInterval:      getEnvDuration("DRAW_INTERVAL", 7*time.Second),
		ServiceFee:        getEnvFloat("SERVICE_FEE", 0.03),
		MinStake:          getEnvInt("MIN_STAKE", 10),
		MaxStake:          getEnvInt("MAX_STAKE", 1000),
		MinWithdrawal:     getEnvInt("MIN_WITHDRAWAL", 25),
		MaxPlayers:        getEnvInt("MAX_PLAYERS", 90),
		InactivityTimeout: getEnvDuration("INACTIVITY_TIMEOUT", 30*time.Minute),
		AdminStaleAfter:   getEnvDuration("ADMIN_STALE_AFTER", 5*time.Minute),
		ChatHistoryLimit:  getEnvInt("CHAT_HISTORY_LIMIT", 100),
	}

	if cfg.AdminSecret == "" {
		log.Fatal("[FATAL] ADMIN_SECRET is required in .env or environment")
	}

	return cfg
}

// Origins splits the configured CORS origin list.
func (c Config) Origins() []string {
	parts := strings.Split(c.AllowedOrigin, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("[WARN] invalid %s=%q, using %d", key, v, fallback)
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Printf("[WARN] invalid %s=%q, using %g", key, v, fallback)
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("[WARN] invalid %s=%q, using %s", key, v, fallback)
	}
	return fallback
}
