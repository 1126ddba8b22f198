// Package main provides a CLI tool for managing the swiper date cache.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/photoswiper/swiper/internal/capture"
	"github.com/photoswiper/swiper/internal/config"
	"github.com/photoswiper/swiper/internal/datecache"
	"github.com/photoswiper/swiper/internal/logging"
	"github.com/photoswiper/swiper/internal/scan"
	"github.com/photoswiper/swiper/internal/trash"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	driver := flag.String("driver", cfg.CacheDriver, "Cache driver (sqlite3, postgres)")
	dsn := flag.String("dsn", cfg.CacheDSN, "Cache DSN or sqlite file")
	trashDir := flag.String("trash", cfg.TrashDir, "Trash directory (for the trash command)")
	concurrent := flag.Int("concurrent", 4, "Concurrent extractions (for warm)")
	recursive := flag.Bool("recursive", cfg.Recursive, "Include subfolders (for warm)")

	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, OutputPath: cfg.LogFile}); err != nil {
		fmt.Fprintf(os.Stderr, "Logging init error: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	cmd := args[0]
	cmdArgs := args[1:]

	if cmd == "help" {
		printUsage()
		return
	}
	if cmd == "trash" {
		cmdTrash(*trashDir)
		return
	}

	s, err := datecache.Open(*driver, *dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening cache: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	ctx := context.Background()

	switch cmd {
	case "list", "ls":
		cmdList(ctx, s)
	case "stats":
		cmdStats(ctx, s, *dsn)
	case "get":
		cmdGet(ctx, s, cmdArgs)
	case "evict", "rm":
		cmdEvict(ctx, s, cmdArgs)
	case "prune":
		cmdPrune(ctx, s)
	case "warm":
		cmdWarm(ctx, s, cfg, *recursive, *concurrent, cmdArgs)
	case "json":
		cmdJSON(ctx, s, *dsn)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Swiper Date Cache CLI

Usage: cache-cli [flags] <command> [args]

Flags:
  -driver <name>     Cache driver: sqlite3 or postgres (default: sqlite3)
  -dsn <dsn>         Cache DSN or sqlite file (default: user cache dir)
  -trash <dir>       Trash directory (default: XDG trash)
  -concurrent <n>    Concurrent extractions for warm (default: 4)
  -recursive         Include subfolders for warm

Commands:
  list, ls           List all cached capture dates
  stats              Show cache statistics
  get <path>         Show the cached entry for a file
  evict, rm <path>   Remove a file's entry
  prune              Remove entries for files that no longer exist
  warm <folder>      Extract and cache dates for every image in a folder
  json               Export cache entries as JSON
  trash              List files in the trash
  help               Show this help message

Examples:
  cache-cli stats
  cache-cli get ~/Pictures/IMG_0001.jpg
  cache-cli -driver postgres -dsn postgres://localhost/swiper list
  cache-cli -recursive warm ~/Pictures`)
}

func cmdList(ctx context.Context, s *datecache.SQLStore) {
	entries, corrupt, err := s.List(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing cache: %v\n", err)
		os.Exit(1)
	}
	if len(entries) == 0 {
		fmt.Println("Cache is empty")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tTAKEN\tSIZE\tMODIFIED")
	fmt.Fprintln(w, "----\t-----\t----\t--------")

	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			e.Path,
			formatTaken(e.Taken),
			formatSize(e.Size),
			formatTime(time.Unix(0, e.ModTime)))
	}
	w.Flush()

	if corrupt > 0 {
		fmt.Printf("\n%d unreadable rows skipped\n", corrupt)
	}
}

func cmdStats(ctx context.Context, s *datecache.SQLStore, dsn string) {
	entries, corrupt, err := s.List(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading cache: %v\n", err)
		os.Exit(1)
	}

	var undated, missing int
	var size int64
	var oldest, newest time.Time
	for _, e := range entries {
		size += e.Size
		if _, err := os.Stat(e.Path); err != nil {
			missing++
		}
		if e.Taken == nil {
			undated++
			continue
		}
		if oldest.IsZero() || e.Taken.Before(oldest) {
			oldest = *e.Taken
		}
		if e.Taken.After(newest) {
			newest = *e.Taken
		}
	}

	fmt.Println("Cache Statistics")
	fmt.Println("----------------")
	fmt.Printf("Driver:       %s\n", s.Driver())
	fmt.Printf("Location:     %s\n", dsn)
	fmt.Printf("Entries:      %d\n", len(entries))
	fmt.Printf("Undated:      %d\n", undated)
	fmt.Printf("Corrupt:      %d\n", corrupt)
	fmt.Printf("Missing:      %d\n", missing)
	fmt.Printf("Files total:  %s\n", formatSize(size))
	fmt.Printf("Oldest:       %s\n", formatTime(oldest))
	fmt.Printf("Newest:       %s\n", formatTime(newest))
}

func cmdGet(ctx context.Context, s *datecache.SQLStore, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: cache-cli get <path>")
		os.Exit(1)
	}

	path := absPath(args[0])
	e, err := s.Get(ctx, path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading entry: %v\n", err)
		os.Exit(1)
	}
	if e == nil {
		fmt.Printf("Not cached: %s\n", path)
		return
	}

	fmt.Printf("Path:      %s\n", e.Path)
	fmt.Printf("Taken:     %s\n", formatTaken(e.Taken))
	fmt.Printf("Size:      %s\n", formatSize(e.Size))
	fmt.Printf("Modified:  %s\n", formatTime(time.Unix(0, e.ModTime)))
	if info, err := os.Stat(path); err != nil {
		fmt.Println("Status:    file missing")
	} else if !e.ValidFor(info.ModTime().UnixNano()) {
		fmt.Println("Status:    stale (file changed since extraction)")
	} else {
		fmt.Println("Status:    valid")
	}
}

func cmdEvict(ctx context.Context, s *datecache.SQLStore, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: cache-cli evict <path>")
		os.Exit(1)
	}

	path := absPath(args[0])
	if err := s.Delete(ctx, path); err != nil {
		fmt.Fprintf(os.Stderr, "Error evicting entry: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Evicted: %s\n", path)
}

func cmdPrune(ctx context.Context, s *datecache.SQLStore) {
	n, err := s.Prune(ctx, func(path string) bool {
		_, err := os.Stat(path)
		return err == nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error pruning cache: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Pruned %d entries\n", n)
}

// cmdWarm fills the cache for every candidate under a folder so the first
// on-this-day pass does not have to extract.
func cmdWarm(ctx context.Context, s *datecache.SQLStore, cfg *config.Config, recursive bool, concurrent int, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: cache-cli warm <folder>")
		os.Exit(1)
	}
	if concurrent < 1 {
		concurrent = 1
	}

	files, err := scan.Build(args[0], scan.Options{Recursive: recursive, Extensions: cfg.Extensions})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error scanning folder: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Println("No images found")
		return
	}

	c, err := datecache.New(s, capture.EXIF{}, cfg.CacheMemoryEntries)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating cache: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Warming %d files with %d workers...\n", len(files), concurrent)
	start := time.Now()

	work := make(chan string)
	var wg sync.WaitGroup
	var mu sync.Mutex
	dated := 0
	for i := 0; i < concurrent; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range work {
				if c.Lookup(ctx, path) != nil {
					mu.Lock()
					dated++
					mu.Unlock()
				}
			}
		}()
	}
	for _, f := range files {
		work <- f
	}
	close(work)
	wg.Wait()

	fmt.Printf("Warm complete: %d files, %d dated, %s\n", len(files), dated, time.Since(start).Round(time.Millisecond))
	if c.Degraded() {
		fmt.Println("Warning: cache store reported errors; some entries were not saved")
	}
}

type jsonEntry struct {
	Path     string `json:"path"`
	Taken    string `json:"taken,omitempty"`
	Size     int64  `json:"size"`
	Modified string `json:"modified"`
}

func cmdJSON(ctx context.Context, s *datecache.SQLStore, dsn string) {
	entries, corrupt, err := s.List(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing cache: %v\n", err)
		os.Exit(1)
	}

	data := struct {
		Driver   string      `json:"driver"`
		Location string      `json:"location"`
		Count    int         `json:"count"`
		Corrupt  int         `json:"corrupt"`
		Entries  []jsonEntry `json:"entries"`
	}{
		Driver:   s.Driver(),
		Location: dsn,
		Count:    len(entries),
		Corrupt:  corrupt,
	}

	for _, e := range entries {
		je := jsonEntry{
			Path:     e.Path,
			Size:     e.Size,
			Modified: time.Unix(0, e.ModTime).Format(time.RFC3339Nano),
		}
		if e.Taken != nil {
			je.Taken = e.Taken.Format(time.RFC3339)
		}
		data.Entries = append(data.Entries, je)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}

func cmdTrash(dir string) {
	bin, err := trash.Open(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening trash: %v\n", err)
		os.Exit(1)
	}
	items, err := bin.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing trash: %v\n", err)
		os.Exit(1)
	}
	if len(items) == 0 {
		fmt.Println("Trash is empty")
		return
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].DeletedAt.After(items[j].DeletedAt)
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ORIGINAL PATH\tDELETED\tNAME")
	fmt.Fprintln(w, "-------------\t-------\t----")
	for _, it := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\n", it.OriginalPath, formatTime(it.DeletedAt), it.Name)
	}
	w.Flush()
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func formatTaken(t *time.Time) string {
	if t == nil {
		return "unknown"
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format("2006-01-02 15:04:05")
}
