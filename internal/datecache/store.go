// Package datecache keeps a durable, modification-time validated cache of
// photo capture dates so repeated scans avoid re-reading metadata.
package datecache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable is returned by Open when the database cannot be reached.
	ErrUnavailable = errors.New("datecache: durable store unavailable")

	// ErrCorruptEntry marks a stored row that cannot be decoded.
	ErrCorruptEntry = errors.New("datecache: corrupt entry")
)

// Entry is one cached row.
type Entry struct {
	Path    string     `json:"path"`
	Taken   *time.Time `json:"taken,omitempty"`
	Size    int64      `json:"size"`
	ModTime int64      `json:"mod_time"` // unix nanoseconds
}

// ValidFor reports whether the entry still describes a file whose current
// modification time is modTime.
func (e *Entry) ValidFor(modTime int64) bool {
	return e != nil && e.ModTime == modTime
}

// Store is the durable side of the cache.
type Store interface {
	// Get returns the entry for path, or nil and no error on a miss.
	Get(ctx context.Context, path string) (*Entry, error)

	// Put upserts an entry.
	Put(ctx context.Context, e *Entry) error

	// Delete removes the entry for path. Deleting a missing row is not an error.
	Delete(ctx context.Context, path string) error

	// Close releases the underlying connection.
	Close() error
}
