// Package review holds the state machine for one pass over a photo queue.
package review

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/photoswiper/swiper/internal/events"
	"github.com/photoswiper/swiper/internal/logging"
	"github.com/photoswiper/swiper/internal/metrics"
)

const bytesPerMB = 1024 * 1024

// State is the lifecycle position of a session.
type State int

const (
	Empty State = iota
	Active
	Complete
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Complete:
		return "complete"
	default:
		return "empty"
	}
}

// Stats are the running totals for the loaded queue.
type Stats struct {
	Processed    int     `json:"processed"`
	Deleted      int     `json:"deleted"`
	SpaceSavedMB float64 `json:"space_saved_mb"`
}

// PendingUndo is the single most recent deletion that can be reverted.
type PendingUndo struct {
	Path   string
	SizeMB float64
}

// Snapshot is a read-only projection of the session for rendering.
type Snapshot struct {
	State    State    `json:"state"`
	Current  string   `json:"current,omitempty"`
	Cursor   int      `json:"cursor"`
	Position int      `json:"position"` // 1-based, 0 when nothing is shown
	Total    int      `json:"total"`
	Stats    Stats    `json:"stats"`
	CanUndo  bool     `json:"can_undo"`
	UndoPath string   `json:"undo_path,omitempty"`
	Skipped  []string `json:"skipped,omitempty"`
}

// Gateway moves files to and from a recoverable holding area.
type Gateway interface {
	Remove(path string) error
	Restore(path string) error
}

// DateIndex is the part of the date cache a session keeps consistent.
type DateIndex interface {
	Invalidate(ctx context.Context, path string)
	Refresh(ctx context.Context, path string) *time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithProbe sets a check run on each entry before it is shown. Entries that
// fail are skipped and not probed again until the next Load.
func WithProbe(probe func(path string) error) Option {
	return func(s *Session) { s.probe = probe }
}

// WithEvents publishes every transition to b.
func WithEvents(b *events.Broadcaster) Option {
	return func(s *Session) { s.events = b }
}

// WithExists replaces the file existence check.
func WithExists(exists func(path string) bool) Option {
	return func(s *Session) { s.exists = exists }
}

// Session owns the queue, cursor, stats and pending undo for one review.
// Operations are serialized; each one either commits fully or leaves the
// session unchanged.
type Session struct {
	mu      sync.Mutex
	gateway Gateway
	dates   DateIndex
	probe   func(string) error
	exists  func(string) bool
	events  *events.Broadcaster

	queue   []string
	cursor  int
	stats   Stats
	pending *PendingUndo
	skipped []string
	bad     map[string]struct{}
}

// New creates an empty session. dates may be nil.
func New(gateway Gateway, dates DateIndex, opts ...Option) *Session {
	s := &Session{
		gateway: gateway,
		dates:   dates,
		exists:  fileExists,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Load replaces the queue, clears stats and pending undo, and positions the
// cursor on the first displayable entry.
func (s *Session) Load(queue []string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queue = append([]string(nil), queue...)
	s.cursor = 0
	s.stats = Stats{}
	s.pending = nil
	s.skipped = nil
	s.bad = make(map[string]struct{})
	metrics.SetQueueLength(len(s.queue))
	metrics.SetSpaceSaved(0)

	if len(s.queue) > 0 {
		s.cursor = s.seekForward(0)
	}
	s.publish(events.EventLoaded, s.current(), 0)
	if len(s.queue) > 0 && s.state() == Complete {
		s.publish(events.EventCompleted, "", 0)
	}
	return s.snapshot()
}

// Advance moves past the current entry without deleting it.
func (s *Session) Advance() Snapshot {
	return s.advance("next", events.EventNext)
}

// Keep is Advance reported as an explicit keep decision.
func (s *Session) Keep() Snapshot {
	return s.advance("keep", events.EventKept)
}

func (s *Session) advance(action, eventType string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state() != Active {
		return s.snapshot()
	}
	path := s.queue[s.cursor]
	s.stats.Processed++
	s.cursor = s.seekForward(s.cursor + 1)

	metrics.RecordDecision(action)
	s.publish(eventType, path, 0)
	s.afterMove()
	return s.snapshot()
}

// Retreat moves back to the nearest earlier displayable entry. It is a
// no-op when there is none. Stats are not changed.
func (s *Session) Retreat() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state() == Empty {
		return s.snapshot()
	}
	for i := s.cursor - 1; i >= 0; i-- {
		if s.displayable(i) {
			s.cursor = i
			metrics.RecordDecision("previous")
			s.publish(events.EventPrevious, s.queue[i], 0)
			break
		}
	}
	return s.snapshot()
}

// Delete moves the current file to the trash and advances. On gateway
// failure nothing changes and a *TrashError is returned.
func (s *Session) Delete(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state() != Active {
		return s.snapshot(), nil
	}
	path := s.queue[s.cursor]

	info, err := os.Stat(path)
	if err != nil {
		return s.snapshot(), &TrashError{Op: "delete", Path: path, Err: err}
	}
	if err := s.gateway.Remove(path); err != nil {
		logging.Warn("review: delete failed", zap.String("path", path), zap.Error(err))
		return s.snapshot(), &TrashError{Op: "delete", Path: path, Err: err}
	}
	if s.dates != nil {
		s.dates.Invalidate(ctx, path)
	}

	sizeMB := float64(info.Size()) / bytesPerMB
	s.pending = &PendingUndo{Path: path, SizeMB: sizeMB}
	s.stats.Processed++
	s.stats.Deleted++
	s.stats.SpaceSavedMB += sizeMB
	s.cursor = s.seekForward(s.cursor + 1)

	metrics.RecordDecision("delete")
	metrics.SetSpaceSaved(s.stats.SpaceSavedMB)
	s.publish(events.EventDeleted, path, info.Size())
	s.afterMove()
	return s.snapshot(), nil
}

// Undo restores the most recently deleted file. With nothing pending it is
// a no-op. On failure the pending record is kept so the path is not lost.
func (s *Session) Undo(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil {
		return s.snapshot(), nil
	}
	p := *s.pending
	if err := s.gateway.Restore(p.Path); err != nil {
		logging.Warn("review: undo failed", zap.String("path", p.Path), zap.Error(err))
		return s.snapshot(), &TrashError{Op: "undo", Path: p.Path, Err: err}
	}
	if s.dates != nil {
		s.dates.Refresh(ctx, p.Path)
	}

	s.stats.Processed--
	s.stats.Deleted--
	s.stats.SpaceSavedMB -= p.SizeMB
	s.pending = nil

	metrics.RecordDecision("undo")
	metrics.SetSpaceSaved(s.stats.SpaceSavedMB)
	s.publish(events.EventRestored, p.Path, 0)
	return s.snapshot(), nil
}

// Snapshot returns the current projection.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state()
}

func (s *Session) state() State {
	switch {
	case len(s.queue) == 0:
		return Empty
	case s.cursor >= len(s.queue):
		return Complete
	default:
		return Active
	}
}

func (s *Session) current() string {
	if s.state() != Active {
		return ""
	}
	return s.queue[s.cursor]
}

func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		State:   s.state(),
		Current: s.current(),
		Cursor:  s.cursor,
		Total:   len(s.queue),
		Stats:   s.stats,
	}
	if snap.State == Active {
		snap.Position = s.cursor + 1
	}
	if s.pending != nil {
		snap.CanUndo = true
		snap.UndoPath = s.pending.Path
	}
	if len(s.skipped) > 0 {
		snap.Skipped = append([]string(nil), s.skipped...)
	}
	return snap
}

// seekForward returns the first displayable index at or after from, or
// len(queue) when none remain.
func (s *Session) seekForward(from int) int {
	for i := from; i < len(s.queue); i++ {
		if s.displayable(i) {
			return i
		}
	}
	return len(s.queue)
}

func (s *Session) displayable(i int) bool {
	path := s.queue[i]
	if !s.exists(path) {
		return false
	}
	if s.probe == nil {
		return true
	}
	if _, ok := s.bad[path]; ok {
		return false
	}
	if err := s.probe(path); err != nil {
		s.bad[path] = struct{}{}
		logging.Warn("review: skipping unreadable image", zap.String("path", path), zap.Error(err))
		s.skipped = append(s.skipped, path)
		s.publish(events.EventSkipped, path, 0)
		return false
	}
	return true
}

func (s *Session) afterMove() {
	if s.state() == Complete {
		s.publish(events.EventCompleted, "", 0)
	}
}

func (s *Session) publish(eventType, path string, size int64) {
	if s.events == nil {
		return
	}
	ev := events.Event{
		Type:  eventType,
		Path:  path,
		Total: len(s.queue),
		Size:  size,
	}
	if s.state() == Active {
		ev.Position = s.cursor + 1
	}
	s.events.Publish(ev)
}

// String renders a one-line status.
func (s Snapshot) String() string {
	switch s.State {
	case Empty:
		return "no images loaded"
	case Complete:
		return fmt.Sprintf("all %d reviewed; processed %d, deleted %d, saved %.2f MB",
			s.Total, s.Stats.Processed, s.Stats.Deleted, s.Stats.SpaceSavedMB)
	default:
		return fmt.Sprintf("image %d of %d; processed %d, deleted %d, saved %.2f MB",
			s.Position, s.Total, s.Stats.Processed, s.Stats.Deleted, s.Stats.SpaceSavedMB)
	}
}
