// Package ordering turns a canonical candidate set into a review order.
package ordering

import (
	"context"
	"math/rand"
	"sort"
	"time"
)

// Mode is the effective ordering mode.
type Mode int

const (
	Sequential Mode = iota
	Random
	OnThisDay
)

func (m Mode) String() string {
	switch m {
	case Random:
		return "random"
	case OnThisDay:
		return "on-this-day"
	default:
		return "sequential"
	}
}

// Outcome distinguishes an empty folder from an empty filter result.
type Outcome int

const (
	OutcomeReady Outcome = iota
	OutcomeNoFiles
	OutcomeNoMatches
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoFiles:
		return "no-files"
	case OutcomeNoMatches:
		return "no-matches"
	default:
		return "ready"
	}
}

// Policy is the requested ordering. OnThisDay takes precedence over Random.
type Policy struct {
	Random    bool
	OnThisDay bool
	Reference time.Time // zero means today
}

// Mode returns the effective mode of p.
func (p Policy) Mode() Mode {
	switch {
	case p.OnThisDay:
		return OnThisDay
	case p.Random:
		return Random
	default:
		return Sequential
	}
}

// DateLookup resolves capture dates, typically a *datecache.Cache.
type DateLookup interface {
	Lookup(ctx context.Context, path string) *time.Time
}

// Result is an ordered queue ready to load into a session.
type Result struct {
	Files   []string
	Mode    Mode
	Outcome Outcome
}

// Orderer applies policies. It is not safe for concurrent use because it
// owns its random source.
type Orderer struct {
	dates DateLookup
	rng   *rand.Rand
	now   func() time.Time

	// Progress, if set, is called after each candidate during the
	// on-this-day filter pass.
	Progress func(done, total int)
}

// New creates an Orderer. A nil rng is seeded from the clock.
func New(dates DateLookup, rng *rand.Rand) *Orderer {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Orderer{dates: dates, rng: rng, now: time.Now}
}

// Apply orders baseline according to p. The baseline is never modified;
// every call starts from it, so switching modes never compounds.
func (o *Orderer) Apply(ctx context.Context, baseline []string, p Policy) Result {
	mode := p.Mode()
	if len(baseline) == 0 {
		return Result{Mode: mode, Outcome: OutcomeNoFiles}
	}

	var files []string
	switch mode {
	case OnThisDay:
		ref := p.Reference
		if ref.IsZero() {
			ref = o.now()
		}
		files = o.onThisDay(ctx, baseline, ref)
		if len(files) == 0 {
			return Result{Mode: mode, Outcome: OutcomeNoMatches}
		}
	case Random:
		files = Shuffle(baseline, o.rng)
	default:
		files = append([]string(nil), baseline...)
	}
	return Result{Files: files, Mode: mode, Outcome: OutcomeReady}
}

// Shuffle returns a uniformly shuffled copy of files.
func Shuffle(files []string, rng *rand.Rand) []string {
	out := append([]string(nil), files...)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

type dated struct {
	path  string
	taken time.Time
}

// onThisDay keeps files whose capture month and day equal ref's, oldest
// first. Files without a known date are dropped.
func (o *Orderer) onThisDay(ctx context.Context, baseline []string, ref time.Time) []string {
	var survivors []dated
	for i, path := range baseline {
		if taken := o.lookup(ctx, path); taken != nil && SameDay(*taken, ref) {
			survivors = append(survivors, dated{path: path, taken: *taken})
		}
		if o.Progress != nil {
			o.Progress(i+1, len(baseline))
		}
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		return survivors[i].taken.Before(survivors[j].taken)
	})

	files := make([]string, len(survivors))
	for i, s := range survivors {
		files[i] = s.path
	}
	return files
}

func (o *Orderer) lookup(ctx context.Context, path string) *time.Time {
	if o.dates == nil {
		return nil
	}
	return o.dates.Lookup(ctx, path)
}

// SameDay reports whether a and b fall on the same month and day, in any
// year. Each time is read in its own location.
func SameDay(a, b time.Time) bool {
	return a.Month() == b.Month() && a.Day() == b.Day()
}
