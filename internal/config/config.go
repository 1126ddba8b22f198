// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/photoswiper/swiper/internal/datecache"
	"github.com/photoswiper/swiper/internal/scan"
)

// ReferenceDateLayout is the accepted format for SWIPER_REFERENCE_DATE.
const ReferenceDateLayout = "2006-01-02"

// Config holds all swiper configuration.
type Config struct {
	// Review
	Recursive     bool
	Random        bool
	OnThisDay     bool
	ReferenceDate time.Time // zero means today
	Extensions    []string

	// Date cache
	CacheDriver        string
	CacheDSN           string
	CacheMemoryEntries int

	// Trash (empty means the XDG default)
	TrashDir string

	// Preview (empty path disables writing)
	PreviewPath   string
	PreviewWidth  int
	PreviewHeight int

	// Logging
	LogLevel  string
	LogFormat string
	LogFile   string // empty means stderr

	// Metrics (empty disables the listener)
	MetricsAddr string
}

// Load reads .env if present, then environment variables with defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Recursive:          envBool("SWIPER_RECURSIVE", true),
		Random:             envBool("SWIPER_RANDOM", false),
		OnThisDay:          envBool("SWIPER_ON_THIS_DAY", false),
		Extensions:         envList("SWIPER_EXTENSIONS", scan.DefaultExtensions),
		CacheDriver:        envOr("SWIPER_CACHE_DRIVER", datecache.DriverSQLite),
		CacheDSN:           envOr("SWIPER_CACHE_DSN", defaultCacheDSN()),
		CacheMemoryEntries: envInt("SWIPER_CACHE_MEMORY_ENTRIES", 4096),
		TrashDir:           envOr("SWIPER_TRASH_DIR", ""),
		PreviewPath:        envOr("SWIPER_PREVIEW_PATH", ""),
		PreviewWidth:       envInt("SWIPER_PREVIEW_WIDTH", 860),
		PreviewHeight:      envInt("SWIPER_PREVIEW_HEIGHT", 560),
		LogLevel:           envOr("LOG_LEVEL", "info"),
		LogFormat:          envOr("LOG_FORMAT", "console"),
		LogFile:            envOr("LOG_FILE", ""),
		MetricsAddr:        envOr("METRICS_ADDR", ""),
	}

	ref, err := ParseReferenceDate(os.Getenv("SWIPER_REFERENCE_DATE"))
	if err != nil {
		return nil, err
	}
	cfg.ReferenceDate = ref

	driver, err := datecache.NormalizeDriver(cfg.CacheDriver)
	if err != nil {
		return nil, fmt.Errorf("SWIPER_CACHE_DRIVER: %w", err)
	}
	cfg.CacheDriver = driver

	return cfg, nil
}

// ParseReferenceDate parses a YYYY-MM-DD date in local time. An empty
// string yields the zero time.
func ParseReferenceDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(ReferenceDateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid reference date %q (want YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}

func defaultCacheDSN() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "swiper", "dates.db")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return append([]string(nil), fallback...)
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), fallback...)
	}
	return out
}
