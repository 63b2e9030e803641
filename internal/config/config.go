package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; only DATABASE_URL and
// TELEGRAM_BOT_TOKEN are required.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Database
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// Cache backend
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Cache TTLs, differentiated by data volatility: per-video detail is
	// effectively immutable once completed (long TTL), list and aggregate
	// keys churn with every finished video (short TTL).
	SummaryTTL time.Duration
	RecentTTL  time.Duration
	StatsTTL   time.Duration

	// Messaging gateway
	TelegramToken   string
	TelegramTimeout time.Duration
	// Minimum delay between consecutive sends within one fan-out job,
	// keeping the bot under Telegram's throughput ceiling.
	SendInterval time.Duration

	// Stage collaborators
	MediaBaseURL      string
	TranscriberURL    string
	SummarizerURL     string
	SummarizerAPIKey  string
	SummarizerModel   string
	AcquireTimeout    time.Duration
	TranscribeTimeout time.Duration
	SummarizeTimeout  time.Duration

	// Skip policy: videos longer than this are skipped after acquisition.
	MaxVideoDuration time.Duration

	// Workers and queue
	Workers       int
	QueueCapacity int

	// Retry: index 0 = first retry delay, etc.; attempts beyond the table
	// reuse the last entry. MaxAttempts bounds retries per video.
	RetryBackoff []time.Duration
	MaxAttempts  int

	// Background poll intervals
	RetryInterval time.Duration
	SweepInterval time.Duration
	// Only completed summaries older than this are swept back onto the
	// queue, so the sweep never races a distribute job enqueued normally.
	SweepMinAge time.Duration
	// Non-terminal videos with no retry scheduled and no update for this
	// long are treated as stranded (crash mid-stage, dropped enqueue) and
	// put back on the queue. Must comfortably exceed the slowest stage
	// timeout so in-flight work is never double-enqueued.
	StaleVideoAge time.Duration
}

func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	botToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	if botToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DatabaseURL: dbURL,
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 25)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 5)),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getInt("REDIS_DB", 0),

		SummaryTTL: getDuration("CACHE_SUMMARY_TTL", time.Hour),
		RecentTTL:  getDuration("CACHE_RECENT_TTL", time.Minute),
		StatsTTL:   getDuration("CACHE_STATS_TTL", 30*time.Second),

		TelegramToken:   botToken,
		TelegramTimeout: getDuration("TELEGRAM_TIMEOUT", 10*time.Second),
		SendInterval:    getDuration("SEND_INTERVAL", 100*time.Millisecond),

		MediaBaseURL:      getEnv("MEDIA_BASE_URL", "http://localhost:8081"),
		TranscriberURL:    getEnv("TRANSCRIBER_URL", "http://localhost:8082"),
		SummarizerURL:     getEnv("SUMMARIZER_URL", "https://api.openai.com/v1/chat/completions"),
		SummarizerAPIKey:  getEnv("SUMMARIZER_API_KEY", ""),
		SummarizerModel:   getEnv("SUMMARIZER_MODEL", "gpt-4o-mini"),
		AcquireTimeout:    getDuration("ACQUIRE_TIMEOUT", 5*time.Minute),
		TranscribeTimeout: getDuration("TRANSCRIBE_TIMEOUT", 10*time.Minute),
		SummarizeTimeout:  getDuration("SUMMARIZE_TIMEOUT", 2*time.Minute),

		MaxVideoDuration: getDuration("MAX_VIDEO_DURATION", time.Hour),

		Workers:       getInt("WORKERS", 5),
		QueueCapacity: getInt("QUEUE_CAPACITY", 5000),

		RetryBackoff: []time.Duration{
			getDuration("RETRY_BACKOFF_1", 5*time.Second),
			getDuration("RETRY_BACKOFF_2", 30*time.Second),
			getDuration("RETRY_BACKOFF_3", 120*time.Second),
		},
		MaxAttempts: getInt("MAX_ATTEMPTS", 3),

		RetryInterval: getDuration("RETRY_INTERVAL", 10*time.Second),
		SweepInterval: getDuration("SWEEP_INTERVAL", time.Minute),
		SweepMinAge:   getDuration("SWEEP_MIN_AGE", 2*time.Minute),
		StaleVideoAge: getDuration("STALE_VIDEO_AGE", 15*time.Minute),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
