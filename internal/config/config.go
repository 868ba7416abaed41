package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DatabaseURL string

	// Redis (shared active-job set, visible across worker processes)
	RedisURL string

	// Queue
	PollInterval time.Duration

	// Asset directories
	StylesDir  string // source clips, one .mp4 per style
	AudioDir   string // audio assets, arbitrary file types, scanned recursively
	FontsDir   string // local font assets (read-only)
	LogoDir    string // logo/signature image assets
	OutputsDir string

	// Cache
	CacheDir           string
	FontCacheDir       string // downloaded fonts, shared across worker processes
	FontCatalogFile    string
	VideoInfoCacheFile string
	StyleSkipsFile     string

	// Fonts
	GoogleFontsAPIKey string
	DefaultFont       string // fallback when a family cannot be resolved

	// Rendering
	MinOutputFPS float64 // slow-motion candidates below this are rejected

	// Cleanup
	OutputRetentionHours   int
	CleanupIntervalMinutes int
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	stylesDir := getEnv("STYLES_DIR", "source/videos/styles")
	fontsDir := getEnv("FONTS_DIR", "source/fonts")
	cacheDir := getEnv("CACHE_DIR", "cache")

	cfg := &Config{
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379"),
		PollInterval: time.Duration(getEnvInt("QUEUE_POLL_SECONDS", 5)) * time.Second,

		StylesDir:  stylesDir,
		AudioDir:   getEnv("AUDIO_DIR", "source/audio"),
		FontsDir:   fontsDir,
		LogoDir:    getEnv("LOGO_DIR", "source/logo"),
		OutputsDir: getEnv("OUTPUTS_DIR", "outputs"),

		CacheDir:           cacheDir,
		FontCacheDir:       getEnv("FONT_CACHE_DIR", filepath.Join(fontsDir, "google")),
		FontCatalogFile:    filepath.Join(cacheDir, "google_fonts_cache.json"),
		VideoInfoCacheFile: filepath.Join(cacheDir, "video_info_cache.json"),
		StyleSkipsFile:     filepath.Join(stylesDir, "style_skips.json"),

		GoogleFontsAPIKey: getEnv("GOOGLE_FONTS_API_KEY", ""),
		DefaultFont:       getEnv("DEFAULT_FONT", filepath.Join(fontsDir, "arial.ttf")),

		MinOutputFPS: getEnvFloat("MIN_OUTPUT_FPS", 24.0),

		OutputRetentionHours:   getEnvInt("OUTPUT_RETENTION_HOURS", 24),
		CleanupIntervalMinutes: getEnvInt("CLEANUP_INTERVAL_MINUTES", 60),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

// EnsureDirectories creates every directory the renderer depends on.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.StylesDir,
		c.AudioDir,
		c.FontsDir,
		c.LogoDir,
		c.OutputsDir,
		c.CacheDir,
		c.FontCacheDir,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}
