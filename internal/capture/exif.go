// Package capture extracts the best-known capture date of a photo.
package capture

import (
	"os"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"go.uber.org/zap"

	"github.com/photoswiper/swiper/internal/logging"
)

// Extractor returns the capture date of a file, or nil when the file cannot
// be read at all.
type Extractor interface {
	Extract(path string) *time.Time
}

// Func adapts a plain function to Extractor.
type Func func(path string) *time.Time

// Extract calls f(path).
func (f Func) Extract(path string) *time.Time { return f(path) }

// EXIF reads DateTimeOriginal (then DateTime) from embedded EXIF and falls
// back to the file modification time.
type EXIF struct{}

// Extract implements Extractor.
func (EXIF) Extract(path string) *time.Time {
	return Extract(path)
}

// Extract returns the capture date for path. Missing or malformed metadata
// is an expected case and falls back to the modification time; nil means
// the file itself is inaccessible.
func Extract(path string) *time.Time {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return nil
	}

	if dt, ok := exifDate(f); ok {
		return &dt
	}

	mt := info.ModTime()
	logging.Debug("capture: no EXIF date, using mtime",
		zap.String("path", path), zap.Time("mtime", mt))
	return &mt
}

// exifDate reads the EXIF date. goexif reports sub-IFD failures as
// non-critical errors alongside a usable result.
func exifDate(f *os.File) (time.Time, bool) {
	x, err := exif.Decode(f)
	if x == nil || (err != nil && exif.IsCriticalError(err)) {
		return time.Time{}, false
	}
	dt, err := x.DateTime()
	if err != nil || dt.IsZero() {
		return time.Time{}, false
	}
	return dt, true
}
