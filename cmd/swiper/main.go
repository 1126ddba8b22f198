// Swiper
//
// Terminal photo reviewer:
// - keep or soft-delete each image in a folder, one at a time
// - single-level undo through the trash directory
// - sequential, random and "on this day" ordering
// - capture dates cached in sqlite (or postgres)
// - Prometheus metrics & structured logging (zap)
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/photoswiper/swiper/internal/capture"
	"github.com/photoswiper/swiper/internal/config"
	"github.com/photoswiper/swiper/internal/datecache"
	"github.com/photoswiper/swiper/internal/events"
	"github.com/photoswiper/swiper/internal/logging"
	"github.com/photoswiper/swiper/internal/metrics"
	"github.com/photoswiper/swiper/internal/ordering"
	"github.com/photoswiper/swiper/internal/organizer"
	"github.com/photoswiper/swiper/internal/preview"
	"github.com/photoswiper/swiper/internal/review"
	"github.com/photoswiper/swiper/internal/scan"
	"github.com/photoswiper/swiper/internal/trash"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	recursive := flag.Bool("recursive", cfg.Recursive, "Include subfolders")
	random := flag.Bool("random", cfg.Random, "Review in random order")
	onThisDay := flag.Bool("on-this-day", cfg.OnThisDay, "Only photos taken on this day in past years")
	date := flag.String("date", "", "Reference date for -on-this-day (YYYY-MM-DD, default today)")
	trashDir := flag.String("trash", cfg.TrashDir, "Trash directory (default: XDG trash)")
	cacheDriver := flag.String("cache-driver", cfg.CacheDriver, "Date cache driver (sqlite3, postgres)")
	cacheDSN := flag.String("cache-dsn", cfg.CacheDSN, "Date cache DSN or sqlite file")
	previewPath := flag.String("preview", cfg.PreviewPath, "Write the current image as JPEG to this path")
	metricsAddr := flag.String("metrics", cfg.MetricsAddr, "Serve Prometheus metrics on this address")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.Parse()

	if *date != "" {
		ref, err := config.ParseReferenceDate(*date)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(2)
		}
		cfg.ReferenceDate = ref
	}

	if err := logging.Init(logging.Config{
		Level:      *logLevel,
		Format:     cfg.LogFormat,
		OutputPath: cfg.LogFile,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "logging init error: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Date cache. A store that cannot be opened degrades to uncached
	// extraction.
	var store datecache.Store
	sqlStore, err := datecache.Open(*cacheDriver, *cacheDSN)
	if err != nil {
		logging.Warn("date cache unavailable, continuing without it",
			zap.String("driver", *cacheDriver), zap.Error(err))
	} else {
		store = sqlStore
		defer sqlStore.Close()
	}
	dates, err := datecache.New(store, capture.EXIF{}, cfg.CacheMemoryEntries)
	if err != nil {
		logging.Fatal("date cache init failed", zap.Error(err))
	}

	bin, err := trash.Open(*trashDir)
	if err != nil {
		logging.Fatal("trash init failed", zap.Error(err))
	}
	logging.Info("trash ready", zap.String("dir", bin.Root()))

	broadcaster := events.NewBroadcaster()
	feed := broadcaster.Subscribe()
	go logEvents(feed)
	defer broadcaster.Unsubscribe(feed)

	session := review.New(bin, dates,
		review.WithProbe(preview.Probe),
		review.WithEvents(broadcaster))

	orderer := ordering.New(dates, nil)
	orderer.Progress = func(done, total int) {
		if done%500 == 0 || done == total {
			fmt.Fprintf(os.Stderr, "\rReading dates %d/%d", done, total)
			if done == total {
				fmt.Fprintln(os.Stderr)
			}
		}
	}

	org := organizer.New(organizer.Options{
		Recursive:     *recursive,
		Random:        *random,
		OnThisDay:     *onThisDay,
		ReferenceDate: cfg.ReferenceDate,
		Extensions:    cfg.Extensions,
		ScanProgress: func(p scan.Progress) {
			if !p.Done {
				fmt.Fprintf(os.Stderr, "\rScanning... %d found", p.Matched)
			} else if p.Visited >= 256 {
				fmt.Fprintln(os.Stderr)
			}
		},
	}, session, orderer)

	if *metricsAddr != "" {
		metricsServer := &http.Server{
			Addr:    *metricsAddr,
			Handler: metrics.Handler(),
		}
		go func() {
			logging.Info("metrics server listening", zap.String("addr", *metricsAddr))
			if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
				logging.Error("metrics server error", zap.Error(err))
			}
		}()
		defer metricsServer.Close()
	}

	ui := &terminal{
		out:         os.Stdout,
		org:         org,
		session:     session,
		previewPath: *previewPath,
		previewW:    cfg.PreviewWidth,
		previewH:    cfg.PreviewHeight,
	}

	if root := flag.Arg(0); root != "" {
		ui.open(ctx, root)
	} else {
		fmt.Fprintln(ui.out, "Open a folder with: o <folder>")
	}
	ui.help()

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	for {
		fmt.Fprint(ui.out, "> ")
		select {
		case <-ctx.Done():
			fmt.Fprintln(ui.out)
			return
		case line, ok := <-lines:
			if !ok || !ui.handle(ctx, line) {
				return
			}
		}
	}
}

func logEvents(feed <-chan events.Event) {
	for ev := range feed {
		logging.Debug("session event",
			zap.String("type", ev.Type),
			zap.String("path", ev.Path),
			zap.Int("position", ev.Position),
			zap.Int("total", ev.Total))
	}
}

// terminal maps typed keys to session transitions and renders snapshots.
type terminal struct {
	out         io.Writer
	org         *organizer.Organizer
	session     *review.Session
	previewPath string
	previewW    int
	previewH    int
}

// handle runs one command line. It returns false when the user quits.
func (t *terminal) handle(ctx context.Context, line string) bool {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "":
		return true
	case "q", "delete":
		snap, err := t.session.Delete(ctx)
		if err != nil {
			fmt.Fprintf(t.out, "Error: %v\n", err)
			return true
		}
		t.render(snap)
	case "w", "keep":
		t.render(t.session.Keep())
	case "n", "next", "\x1b[C":
		t.render(t.session.Advance())
	case "p", "prev", "\x1b[D":
		t.render(t.session.Retreat())
	case "u", "undo", "\b", "\x7f":
		t.undo(ctx)
	case "r", "random":
		t.toggleRandom(ctx)
	case "t", "today":
		t.toggleOnThisDay(ctx, arg)
	case "o", "open":
		if arg == "" {
			fmt.Fprintln(t.out, "Usage: o <folder>")
			return true
		}
		t.open(ctx, arg)
	case "l", "reload":
		res, err := t.org.Reload(ctx)
		if err != nil {
			fmt.Fprintf(t.out, "Error: %v\n", err)
			return true
		}
		t.report(res)
	case "s", "status":
		t.status()
	case "v", "verbosity":
		t.verbosity(arg)
	case "h", "help", "?":
		t.help()
	case "x", "exit", "quit":
		t.status()
		return false
	default:
		fmt.Fprintf(t.out, "Unknown command: %s (h for help)\n", cmd)
	}
	return true
}

func (t *terminal) open(ctx context.Context, root string) {
	res, err := t.org.Open(ctx, root)
	if err != nil {
		var se *scan.ScanError
		if errors.As(err, &se) {
			fmt.Fprintf(t.out, "Could not read folder %s: %v\n", se.Root, se.Err)
		} else {
			fmt.Fprintf(t.out, "Error: %v\n", err)
		}
		return
	}
	t.report(res)
}

func (t *terminal) toggleRandom(ctx context.Context) {
	if t.org.Root() == "" {
		fmt.Fprintln(t.out, "Open a folder first")
		return
	}
	t.report(t.org.SetRandom(ctx, !t.org.Options().Random))
}

func (t *terminal) verbosity(arg string) {
	if arg != "" {
		if err := logging.SetLevel(arg); err != nil {
			fmt.Fprintf(t.out, "Error: %v\n", err)
			return
		}
	}
	fmt.Fprintf(t.out, "Log level: %s\n", logging.Level())
}

func (t *terminal) toggleOnThisDay(ctx context.Context, arg string) {
	opts := t.org.Options()
	on := !opts.OnThisDay
	ref := opts.ReferenceDate
	if arg != "" {
		parsed, err := config.ParseReferenceDate(arg)
		if err != nil {
			fmt.Fprintf(t.out, "Error: %v\n", err)
			return
		}
		on, ref = true, parsed
	}
	if t.org.Root() == "" {
		fmt.Fprintln(t.out, "Open a folder first")
		return
	}
	t.report(t.org.SetOnThisDay(ctx, on, ref))
}

func (t *terminal) undo(ctx context.Context) {
	before := t.session.Snapshot()
	if !before.CanUndo {
		fmt.Fprintln(t.out, "Nothing to undo")
		return
	}
	snap, err := t.session.Undo(ctx)
	if err != nil {
		fmt.Fprintf(t.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(t.out, "Restored: %s\n", before.UndoPath)
	t.render(snap)
}

func (t *terminal) report(res organizer.Result) {
	switch res.Outcome {
	case ordering.OutcomeNoFiles:
		fmt.Fprintln(t.out, "No images found in the selected folder")
		return
	case ordering.OutcomeNoMatches:
		ref := t.org.Options().ReferenceDate
		if ref.IsZero() {
			ref = time.Now()
		}
		fmt.Fprintf(t.out, "No photos taken on this day (%s) in %d images\n", ref.Format("January 2"), res.Found)
		return
	}
	switch res.Mode {
	case ordering.OnThisDay:
		fmt.Fprintf(t.out, "%d of %d images were taken on this day\n", res.Snapshot.Total, res.Found)
	case ordering.Random:
		fmt.Fprintf(t.out, "%d images, shuffled\n", res.Found)
	default:
		fmt.Fprintf(t.out, "%d images\n", res.Found)
	}
	t.render(res.Snapshot)
}

func (t *terminal) render(snap review.Snapshot) {
	switch snap.State {
	case review.Empty:
		fmt.Fprintln(t.out, "No images loaded")
		return
	case review.Complete:
		fmt.Fprintln(t.out, "All images have been reviewed!")
		fmt.Fprintf(t.out, "Processed: %d | Deleted: %d | Space saved: %.2f MB\n",
			snap.Stats.Processed, snap.Stats.Deleted, snap.Stats.SpaceSavedMB)
		return
	}

	fmt.Fprintf(t.out, "Image %d of %d: %s\n", snap.Position, snap.Total, snap.Current)
	fmt.Fprintf(t.out, "Processed: %d | Deleted: %d | Space saved: %.2f MB\n",
		snap.Stats.Processed, snap.Stats.Deleted, snap.Stats.SpaceSavedMB)

	if t.previewPath != "" && preview.Decodable(snap.Current) {
		img, err := preview.Render(snap.Current, t.previewW, t.previewH)
		if err != nil {
			logging.Warn("preview failed", zap.String("path", snap.Current), zap.Error(err))
			return
		}
		if err := preview.WriteJPEG(img, t.previewPath); err != nil {
			logging.Warn("preview write failed", zap.String("path", t.previewPath), zap.Error(err))
		}
	}
}

func (t *terminal) status() {
	snap := t.session.Snapshot()
	opts := t.org.Options()
	mode := ordering.Policy{Random: opts.Random, OnThisDay: opts.OnThisDay}.Mode()
	fmt.Fprintf(t.out, "Folder: %s | Mode: %s | Recursive: %v\n", t.org.Root(), mode, opts.Recursive)
	fmt.Fprintln(t.out, snap.String())
	if snap.CanUndo {
		fmt.Fprintf(t.out, "Undo available: %s\n", snap.UndoPath)
	}
	if len(snap.Skipped) > 0 {
		fmt.Fprintf(t.out, "Skipped %d unreadable images\n", len(snap.Skipped))
	}
}

func (t *terminal) help() {
	fmt.Fprintln(t.out, `Keys:
  q  delete (to trash)    w  keep
  n  next                 p  previous
  u  undo last delete     r  toggle random order
  t [YYYY-MM-DD]          toggle on-this-day filter
  o <folder>  open        l  reload folder
  v [level]  log level    s  status
  x  exit`)
}
