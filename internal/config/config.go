package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const DefaultAPIURL = "https://foodguard-api.akbarfikri.my.id"

type Config struct {
	APIURL         string
	ListenAddr     string
	DBPath         string
	PhotoPath      string
	PredictBackend string
	OllamaHost     string
	OllamaModel    string
	ClaudeAPIKey   string
	ClaudeModel    string
	DisplayTZ      string
	TokenSecret    string
	SessionSecret  string
	HTTPTimeout    time.Duration
	SugarLimit     float64
	LogLevel       string
	LogFile        string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		APIURL:         getEnv("FOODGUARD_API_URL", DefaultAPIURL),
		ListenAddr:     getEnv("LISTEN_ADDR", ":8080"),
		DBPath:         getEnv("DB_PATH", "/data/foodguard.db"),
		PhotoPath:      getEnv("PHOTO_LOCAL_PATH", "/data/photos"),
		PredictBackend: getEnv("PREDICT_BACKEND", "foodguard"),
		OllamaHost:     getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OllamaModel:    getEnv("OLLAMA_MODEL", "llava"),
		ClaudeAPIKey:   getEnv("CLAUDE_API_KEY", ""),
		ClaudeModel:    getEnv("CLAUDE_MODEL", "claude-3-5-sonnet-20241022"),
		DisplayTZ:      getEnv("DISPLAY_TZ", "Asia/Jakarta"),
		TokenSecret:    getEnv("TOKEN_SECRET", "foodguard-dev-token-secret"),
		SessionSecret:  getEnv("SESSION_SECRET", "foodguard-dev-session-secret"),
		HTTPTimeout:    durationEnv("HTTP_TIMEOUT", 0),
		SugarLimit:     floatEnv("SUGAR_LIMIT_GRAMS", 25),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFile:        getEnv("LOG_FILE", ""),
	}
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	val, exists := os.LookupEnv(key)
	if !exists || val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		slog.Warn("invalid duration, using fallback", "key", key, "error", err, "fallback", fallback)
		return fallback
	}
	return d
}

func floatEnv(key string, fallback float64) float64 {
	val, exists := os.LookupEnv(key)
	if !exists || val == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		slog.Warn("invalid number, using fallback", "key", key, "error", err, "fallback", fallback)
		return fallback
	}
	return f
}
