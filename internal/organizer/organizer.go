// Package organizer ties folder scanning, ordering and the review session
// together.
package organizer

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/photoswiper/swiper/internal/logging"
	"github.com/photoswiper/swiper/internal/ordering"
	"github.com/photoswiper/swiper/internal/review"
	"github.com/photoswiper/swiper/internal/scan"
)

// ErrNoFolder is returned by Reload before any folder has been opened.
var ErrNoFolder = errors.New("organizer: no folder opened")

// Options are the user-facing review settings.
type Options struct {
	Recursive     bool
	Random        bool
	OnThisDay     bool
	ReferenceDate time.Time // zero means today
	Extensions    []string  // nil means scan.DefaultExtensions
	ScanProgress  func(scan.Progress)
}

// Result describes the outcome of loading a queue.
type Result struct {
	Outcome  ordering.Outcome
	Mode     ordering.Mode
	Found    int // candidates in the folder before filtering
	Snapshot review.Snapshot
}

// Organizer owns the canonical file set for the open folder and reloads the
// session whenever the ordering policy changes.
type Organizer struct {
	opts     Options
	session  *review.Session
	orderer  *ordering.Orderer
	root     string
	baseline []string
}

// New creates an Organizer driving session.
func New(opts Options, session *review.Session, orderer *ordering.Orderer) *Organizer {
	return &Organizer{opts: opts, session: session, orderer: orderer}
}

// Options returns the current settings.
func (o *Organizer) Options() Options { return o.opts }

// Root returns the open folder, or "" if none.
func (o *Organizer) Root() string { return o.root }

// Open scans root and loads the ordered queue. On a scan failure the
// session is emptied and a *scan.ScanError is returned.
func (o *Organizer) Open(ctx context.Context, root string) (Result, error) {
	files, err := scan.Build(root, scan.Options{
		Recursive:  o.opts.Recursive,
		Extensions: o.opts.Extensions,
		Progress:   o.opts.ScanProgress,
	})
	if err != nil {
		o.root = ""
		o.baseline = nil
		snap := o.session.Load(nil)
		logging.Error("organizer: scan failed", zap.String("root", root), zap.Error(err))
		return Result{Outcome: ordering.OutcomeNoFiles, Snapshot: snap}, err
	}
	o.root = root
	o.baseline = files
	logging.Info("organizer: folder opened",
		zap.String("root", root),
		zap.Int("files", len(files)),
		zap.Bool("recursive", o.opts.Recursive))
	return o.apply(ctx), nil
}

// Reload rescans the open folder.
func (o *Organizer) Reload(ctx context.Context) (Result, error) {
	if o.root == "" {
		return Result{}, ErrNoFolder
	}
	return o.Open(ctx, o.root)
}

// SetRandom toggles random order and reloads the session. Turning it on
// always draws a fresh shuffle.
func (o *Organizer) SetRandom(ctx context.Context, on bool) Result {
	o.opts.Random = on
	return o.apply(ctx)
}

// SetOnThisDay toggles the on-this-day filter and reloads the session. A
// zero ref means today.
func (o *Organizer) SetOnThisDay(ctx context.Context, on bool, ref time.Time) Result {
	o.opts.OnThisDay = on
	o.opts.ReferenceDate = ref
	return o.apply(ctx)
}

// apply reorders the canonical baseline and loads it.
func (o *Organizer) apply(ctx context.Context) Result {
	res := o.orderer.Apply(ctx, o.baseline, ordering.Policy{
		Random:    o.opts.Random,
		OnThisDay: o.opts.OnThisDay,
		Reference: o.opts.ReferenceDate,
	})
	snap := o.session.Load(res.Files)
	logging.Debug("organizer: queue loaded",
		zap.Stringer("mode", res.Mode),
		zap.Stringer("outcome", res.Outcome),
		zap.Int("queued", len(res.Files)))
	return Result{
		Outcome:  res.Outcome,
		Mode:     res.Mode,
		Found:    len(o.baseline),
		Snapshot: snap,
	}
}
