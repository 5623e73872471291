package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Queue    QueueConfig
	Cache    CacheConfig
	Tutoring TutoringConfig
	Stages   StageConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	ClientURL          string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type QueueConfig struct {
	ForceInProcess bool
	SubmitDelayMs  int
	MaxConcurrent  int
	RateLimit      int
	RateWindowSec  int
}

type CacheConfig struct {
	ResultTTLMinutes    int
	CleanupIntervalMins int
}

type TutoringConfig struct {
	SessionMaxAgeMinutes int
	CleanupIntervalMins  int
}

type StageConfig struct {
	RendererBaseURL string
	NarratorBaseURL string
	TutorBaseURL    string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			ClientURL:          getEnv("CLIENT_URL", "http://localhost:5173"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Queue: QueueConfig{
			ForceInProcess: getEnvAsBool("QUEUE_FORCE_INPROCESS", false),
			SubmitDelayMs:  getEnvAsInt("QUEUE_SUBMIT_DELAY_MS", 100),
			MaxConcurrent:  getEnvAsInt("WORKER_MAX_CONCURRENT", 2),
			RateLimit:      getEnvAsInt("WORKER_RATE_LIMIT", 10),
			RateWindowSec:  getEnvAsInt("WORKER_RATE_WINDOW_SEC", 60),
		},
		Cache: CacheConfig{
			ResultTTLMinutes:    getEnvAsInt("RESULT_CACHE_TTL_MIN", 60),
			CleanupIntervalMins: getEnvAsInt("RESULT_CACHE_CLEANUP_MIN", 10),
		},
		Tutoring: TutoringConfig{
			SessionMaxAgeMinutes: getEnvAsInt("TUTOR_SESSION_MAX_AGE_MIN", 60),
			CleanupIntervalMins:  getEnvAsInt("TUTOR_CLEANUP_INTERVAL_MIN", 10),
		},
		Stages: StageConfig{
			RendererBaseURL: getEnv("RENDERER_BASE_URL", "http://localhost:8100"),
			NarratorBaseURL: getEnv("NARRATOR_BASE_URL", "http://localhost:8101"),
			TutorBaseURL:    getEnv("TUTOR_BASE_URL", "http://localhost:8102"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// SubmitDelay is the artificial delay between submission and execution start
// in the in-process backend.
func (q QueueConfig) SubmitDelay() time.Duration {
	return time.Duration(q.SubmitDelayMs) * time.Millisecond
}

func (q QueueConfig) RateWindow() time.Duration {
	return time.Duration(q.RateWindowSec) * time.Second
}
