package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// 평점 저장소 종류
const (
	RatingStoreMemory   = "memory"
	RatingStorePostgres = "postgres"
	RatingStoreRedis    = "redis"
)

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT
	JWTSecret     string
	JWTExpiration time.Duration

	// CORS
	CORSAllowedOrigins []string

	// Matchmaking
	RatingStore        string
	AIFallbackTimeout  time.Duration
	PairingInterval    time.Duration
	AIOpponentName     string
	MatchEventsChannel string

	// WebSocket 연결당 inbound 메시지 제한
	WSMessageRate  int64
	WSMessageBurst int64
}

func Load() (*Config, error) {
	// .env 파일 로드 (있는 경우)
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", ""),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		JWTExpiration:      parseDuration(getEnv("JWT_EXPIRATION", "24h"), 24*time.Hour),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		RatingStore:        strings.ToLower(getEnv("RATING_STORE", RatingStoreMemory)),
		AIFallbackTimeout:  parseDuration(getEnv("AI_FALLBACK_TIMEOUT", "8s"), 8*time.Second),
		PairingInterval:    parseDuration(getEnv("PAIRING_INTERVAL", "250ms"), 250*time.Millisecond),
		AIOpponentName:     getEnv("AI_OPPONENT_NAME", "Lingo Bot"),
		MatchEventsChannel: getEnv("MATCH_EVENTS_CHANNEL", "matchmaking:events"),
		WSMessageRate:      getEnvInt("WS_MESSAGE_RATE", 5),
		WSMessageBurst:     getEnvInt("WS_MESSAGE_BURST", 10),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 설정 조합 검증
func (c *Config) Validate() error {
	switch c.RatingStore {
	case RatingStoreMemory:
	case RatingStorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("RATING_STORE=postgres requires DATABASE_URL")
		}
	case RatingStoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("RATING_STORE=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown RATING_STORE %q", c.RatingStore)
	}

	if c.PairingInterval <= 0 {
		return fmt.Errorf("PAIRING_INTERVAL must be positive")
	}
	// AI 대체가 없으면 상대가 오지 않는 버킷에서 대기가 끝나지 않는다
	if c.AIFallbackTimeout <= 0 {
		return fmt.Errorf("AI_FALLBACK_TIMEOUT must be positive")
	}
	if c.Env == "production" && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}
	return n
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
