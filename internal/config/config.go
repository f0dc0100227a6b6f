package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr       string
	RedisURL   string
	Channel    string
	DataDir    string
	ExportDir  string
	HistoryDir string
	CORSOrigin string
	// Meilisearch - optional, search falls back to a local scan when empty
	MeiliURL       string
	MeiliMasterKey string
	// Gemini - empty disables AI assistance (a canned reply is used instead)
	GeminiAPIKey string
	GeminiModel  string
	// Daily - empty means room URLs are fabricated instead of provisioned
	DailyAPIKey    string
	DailyAPIURL    string
	DailyDomain    string
	HistoryEnabled bool
	AssistTimeout  time.Duration
	// HistoryWindow bounds how many recent messages are sent to the AI
	HistoryWindow int
}

func Load() Config {
	return Config{
		Addr:           getenv("API_ADDR", ":8788"),
		RedisURL:       getenv("CONARRATOR_REDIS_URL", "redis://localhost:6379/0"),
		Channel:        getenv("CONARRATOR_CHANNEL", "conarrator:room:v1"),
		DataDir:        getenv("CONARRATOR_DATA_DIR", "./data/project"),
		ExportDir:      getenv("CONARRATOR_EXPORT_DIR", "./data/exports"),
		HistoryDir:     getenv("CONARRATOR_HISTORY_DIR", "./data/history"),
		CORSOrigin:     getenv("CONARRATOR_CORS_ORIGIN", "*"),
		MeiliURL:       getenv("MEILI_URL", ""),
		MeiliMasterKey: getenv("MEILI_MASTER_KEY", ""),
		GeminiAPIKey:   getenv("GEMINI_API_KEY", ""),
		GeminiModel:    getenv("GEMINI_MODEL", "gemini-2.5-flash"),
		DailyAPIKey:    getenv("DAILY_API_KEY", ""),
		DailyAPIURL:    getenv("DAILY_API_URL", "https://api.daily.co/v1"),
		DailyDomain:    getenv("DAILY_DOMAIN", "co-narrator"),
		HistoryEnabled: getenvBool("CONARRATOR_HISTORY_ENABLED", true),
		AssistTimeout:  time.Duration(getenvInt("CONARRATOR_ASSIST_TIMEOUT_SECONDS", 60)) * time.Second,
		HistoryWindow:  getenvInt("CONARRATOR_HISTORY_WINDOW", 20),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
