package config

import (
	"os"
)

type Config struct {
	Port      string
	DBPath    string
	OpenAIKey string
	LogLevel  string
}

func envOr(k, fallback string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return fallback
}

// Load reads configuration from the environment. OPENAI_API_KEY is optional;
// without it the optimization commentary tool is disabled.
func Load() Config {
	return Config{
		Port:      envOr("PORT", "8001"),
		DBPath:    envOr("DB_PATH", "data/usage.db"),
		OpenAIKey: os.Getenv("OPENAI_API_KEY"),
		LogLevel:  envOr("LOG_LEVEL", "info"),
	}
}
