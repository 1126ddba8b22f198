package config

import (
	"reflect"
	"testing"
	"time"

	"github.com/photoswiper/swiper/internal/datecache"
	"github.com/photoswiper/swiper/internal/scan"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"SWIPER_RECURSIVE", "SWIPER_RANDOM", "SWIPER_ON_THIS_DAY", "SWIPER_REFERENCE_DATE",
		"SWIPER_EXTENSIONS", "SWIPER_CACHE_DRIVER", "SWIPER_CACHE_DSN", "LOG_LEVEL", "LOG_FILE", "METRICS_ADDR",
	} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Recursive || cfg.Random || cfg.OnThisDay {
		t.Errorf("unexpected mode defaults: %+v", cfg)
	}
	if !cfg.ReferenceDate.IsZero() {
		t.Errorf("ReferenceDate = %v, want zero", cfg.ReferenceDate)
	}
	if !reflect.DeepEqual(cfg.Extensions, scan.DefaultExtensions) {
		t.Errorf("Extensions = %v", cfg.Extensions)
	}
	if cfg.CacheDriver != datecache.DriverSQLite || cfg.CacheDSN == "" {
		t.Errorf("cache = %q %q", cfg.CacheDriver, cfg.CacheDSN)
	}
	if cfg.PreviewWidth != 860 || cfg.PreviewHeight != 560 {
		t.Errorf("preview = %dx%d", cfg.PreviewWidth, cfg.PreviewHeight)
	}
	if cfg.LogLevel != "info" || cfg.LogFile != "" || cfg.MetricsAddr != "" {
		t.Errorf("log level %q, log file %q, metrics %q", cfg.LogLevel, cfg.LogFile, cfg.MetricsAddr)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SWIPER_RECURSIVE", "false")
	t.Setenv("SWIPER_RANDOM", "1")
	t.Setenv("SWIPER_ON_THIS_DAY", "true")
	t.Setenv("SWIPER_REFERENCE_DATE", "2024-03-15")
	t.Setenv("SWIPER_EXTENSIONS", "jpg, .png,,")
	t.Setenv("SWIPER_CACHE_DRIVER", "postgresql")
	t.Setenv("SWIPER_CACHE_MEMORY_ENTRIES", "not-a-number")
	t.Setenv("LOG_FILE", "/var/log/swiper.log")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Recursive || !cfg.Random || !cfg.OnThisDay {
		t.Errorf("modes = %+v", cfg)
	}
	if y, m, d := cfg.ReferenceDate.Date(); y != 2024 || m != time.March || d != 15 {
		t.Errorf("ReferenceDate = %v", cfg.ReferenceDate)
	}
	if want := []string{"jpg", ".png"}; !reflect.DeepEqual(cfg.Extensions, want) {
		t.Errorf("Extensions = %v, want %v", cfg.Extensions, want)
	}
	if cfg.CacheDriver != datecache.DriverPostgres {
		t.Errorf("CacheDriver = %q", cfg.CacheDriver)
	}
	if cfg.CacheMemoryEntries != 4096 {
		t.Errorf("malformed int should fall back, got %d", cfg.CacheMemoryEntries)
	}
	if cfg.LogFile != "/var/log/swiper.log" {
		t.Errorf("LogFile = %q", cfg.LogFile)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("SWIPER_REFERENCE_DATE", "15/03/2024")
	if _, err := Load(); err == nil {
		t.Error("expected error for malformed reference date")
	}

	t.Setenv("SWIPER_REFERENCE_DATE", "")
	t.Setenv("SWIPER_CACHE_DRIVER", "mysql")
	if _, err := Load(); err == nil {
		t.Error("expected error for unknown cache driver")
	}
}
