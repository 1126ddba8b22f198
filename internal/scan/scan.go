// Package scan enumerates candidate image files under a root directory.
package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/photoswiper/swiper/internal/logging"
	"github.com/photoswiper/swiper/internal/metrics"
)

// DefaultExtensions are the image formats offered for review.
var DefaultExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp", ".tiff", ".tif",
	".ico", ".heic", ".heif", ".jfif", ".ppm", ".pgm", ".pbm", ".pnm",
	".svg",
	// RAW formats
	".raw", ".cr2", ".nef", ".arw", ".dng", ".orf",
}

// progressEvery is how many directory entries pass between Progress calls.
const progressEvery = 256

// ScanError reports that the root could not be enumerated.
type ScanError struct {
	Root string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Root, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

// Progress is reported incrementally while a scan runs.
type Progress struct {
	Visited int  // directory entries examined
	Matched int  // candidate files found so far (before dedup)
	Done    bool // final report
}

// Options controls a scan.
type Options struct {
	Recursive  bool
	Extensions []string // nil means DefaultExtensions
	Progress   func(Progress)
}

// NormalizeExtensions lower-cases extensions and ensures a leading dot.
// Empty items are dropped.
func NormalizeExtensions(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = true
	}
	return set
}

// Matches reports whether path has one of the allowed extensions,
// compared case-insensitively.
func Matches(path string, allowed map[string]bool) bool {
	return allowed[strings.ToLower(filepath.Ext(path))]
}

// Build returns the canonical candidate set under root: absolute paths of
// regular files with an allowed extension, deduplicated and sorted
// lexicographically. An empty result is not an error.
func Build(root string, opts Options) ([]string, error) {
	start := time.Now()

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &ScanError{Root: root, Err: err}
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, &ScanError{Root: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &ScanError{Root: root, Err: fmt.Errorf("not a directory")}
	}

	exts := opts.Extensions
	if exts == nil {
		exts = DefaultExtensions
	}
	w := &walker{
		allowed:  NormalizeExtensions(exts),
		seen:     make(map[string]struct{}),
		progress: opts.Progress,
	}

	if opts.Recursive {
		err = w.walkTree(abs)
	} else {
		err = w.walkFlat(abs)
	}
	if err != nil {
		return nil, &ScanError{Root: root, Err: err}
	}

	files := make([]string, 0, len(w.seen))
	for p := range w.seen {
		files = append(files, p)
	}
	sort.Strings(files)

	w.report(true)
	metrics.RecordScan(time.Since(start), len(files))
	logging.Debug("scan complete",
		zap.String("root", abs),
		zap.Bool("recursive", opts.Recursive),
		zap.Int("files", len(files)),
		zap.Duration("duration", time.Since(start)))
	return files, nil
}

type walker struct {
	allowed  map[string]bool
	seen     map[string]struct{}
	progress func(Progress)
	visited  int
	matched  int
}

func (w *walker) walkFlat(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, d := range entries {
		w.visit(filepath.Join(dir, d.Name()), d)
	}
	return nil
}

func (w *walker) walkTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logging.Warn("scan: skipping unreadable entry", zap.String("path", path), zap.Error(err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}
		w.visit(path, d)
		return nil
	})
}

func (w *walker) visit(path string, d fs.DirEntry) {
	w.visited++
	if w.visited%progressEvery == 0 {
		w.report(false)
	}
	if !Matches(path, w.allowed) || !isRegular(path, d) {
		return
	}
	w.matched++
	w.seen[path] = struct{}{}
}

func (w *walker) report(done bool) {
	if w.progress != nil {
		w.progress(Progress{Visited: w.visited, Matched: w.matched, Done: done})
	}
}

// isRegular accepts regular files and symlinks that resolve to one.
func isRegular(path string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
