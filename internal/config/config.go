package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Auth
	APIToken string

	// Library
	LibraryRoot string

	// Swipe
	SwipeCommitThreshold  float64
	SwipeVisibleThreshold float64
	ComboLevelStep        int
	ComboMaxLevel         int

	// Workflow
	CardSortingAlbumEnabled bool
	TodayQuota              int

	// Scan
	ScanInterval time.Duration

	// Mutation
	MutationInterval      time.Duration
	MutationMaxConcurrent int

	// Retention
	TrashRetentionDays int
	EventRetentionDays int

	// Import
	ImportTimeout time.Duration
	ImportMaxSize int64

	// Thumbnail
	ThumbnailMaxEntries int

	// Rate Limit
	RateLimitGeneral int
	RateLimitHeavy   int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.APIToken = os.Getenv("API_TOKEN")
	if cfg.APIToken == "" {
		missing = append(missing, "API_TOKEN")
	}

	cfg.LibraryRoot = os.Getenv("LIBRARY_ROOT")
	if cfg.LibraryRoot == "" {
		missing = append(missing, "LIBRARY_ROOT")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.SwipeCommitThreshold = getEnvFloat("SWIPE_COMMIT_THRESHOLD", 0.55)
	cfg.SwipeVisibleThreshold = getEnvFloat("SWIPE_VISIBLE_THRESHOLD", 0.1)
	cfg.ComboLevelStep = getEnvInt("COMBO_LEVEL_STEP", 5)
	cfg.ComboMaxLevel = getEnvInt("COMBO_MAX_LEVEL", 4)
	cfg.CardSortingAlbumEnabled = getEnvBool("CARD_SORTING_ALBUM_ENABLED", false)
	cfg.TodayQuota = getEnvInt("TODAY_QUOTA", 0)
	cfg.ScanInterval = getEnvDuration("SCAN_INTERVAL", 5*time.Minute)
	cfg.MutationInterval = getEnvDuration("MUTATION_INTERVAL", 30*time.Second)
	cfg.MutationMaxConcurrent = getEnvInt("MUTATION_MAX_CONCURRENT", 4)
	cfg.TrashRetentionDays = getEnvInt("TRASH_RETENTION_DAYS", 30)
	cfg.EventRetentionDays = getEnvInt("EVENT_RETENTION_DAYS", 180)
	cfg.ImportTimeout = getEnvDuration("IMPORT_TIMEOUT", 15*time.Second)
	cfg.ImportMaxSize = getEnvInt64("IMPORT_MAX_SIZE", 26214400)
	cfg.ThumbnailMaxEntries = getEnvInt("THUMBNAIL_MAX_ENTRIES", 256)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 240)
	cfg.RateLimitHeavy = getEnvInt("RATE_LIMIT_HEAVY", 6)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
