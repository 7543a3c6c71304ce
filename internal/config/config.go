package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port string
	Env  string // "dev" | "production"

	MongoURI string
	MongoDB  string

	JWTSecret      string
	SessionTTLDays int

	GoogleClientID     string
	GitHubClientID     string
	GitHubClientSecret string
	OAuthRedirectURL   string

	RedisAddr       string
	RateLimitPerMin int
	StatsCacheTTL   int // minutes

	AMQPURL string
}

func Load() Config {
	return Config{
		Port:            getenv("APP_PORT", "8080"),
		Env:             getenv("ENV", "dev"),
		MongoURI:        getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:         getenv("MONGO_DB", "comptracker"),
		JWTSecret:       getenv("JWT", "default_secret_key"),
		SessionTTLDays:  atoi(getenv("SESSION_TTL_DAYS", "7")),
		RedisAddr:       getenv("REDIS_ADDR", ""),
		RateLimitPerMin: atoi(getenv("RATE_LIMIT_PER_MIN", "30")),
		StatsCacheTTL:   atoi(getenv("STATS_CACHE_TTL_MIN", "15")),
		AMQPURL:         getenv("AMQP_URL", ""),

		GoogleClientID:     getenv("GOOGLE_CLIENT_ID", ""),
		GitHubClientID:     getenv("GITHUB_CLIENT_ID", ""),
		GitHubClientSecret: getenv("GITHUB_CLIENT_SECRET", ""),
		OAuthRedirectURL:   getenv("OAUTH_REDIRECT_URL", "http://localhost:5173"),
	}
}

func (c Config) Production() bool { return c.Env == "production" }

func atoi(s string) int {
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return 0
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
