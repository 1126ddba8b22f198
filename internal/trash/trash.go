// Package trash moves files into a freedesktop.org-style trash directory
// and restores them.
package trash

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-ini/ini"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/photoswiper/swiper/internal/logging"
	"github.com/photoswiper/swiper/internal/metrics"
)

const (
	infoSection = "Trash Info"
	infoSuffix  = ".trashinfo"
	dateLayout  = "2006-01-02T15:04:05"
)

var (
	// ErrNotInTrash is returned by Restore when no entry exists for a path.
	ErrNotInTrash = errors.New("trash: no trashed file for path")

	// ErrDestinationExists is returned by Restore when something already
	// occupies the original location.
	ErrDestinationExists = errors.New("trash: destination already exists")
)

// Item is one trashed file.
type Item struct {
	Name         string    // name under files/
	OriginalPath string    // absolute path the file was removed from
	DeletedAt    time.Time // local time, second resolution
	infoModTime  time.Time
}

// Bin is a trash directory with files/ and info/ subdirectories.
type Bin struct {
	root string
	now  func() time.Time
}

// DefaultRoot returns $XDG_DATA_HOME/Trash, or ~/.local/share/Trash.
func DefaultRoot() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "Trash")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "swiper-trash")
	}
	return filepath.Join(home, ".local", "share", "Trash")
}

// Open prepares the trash directory at root, creating it if needed.
func Open(root string) (*Bin, error) {
	if root == "" {
		root = DefaultRoot()
	}
	for _, sub := range []string{"files", "info"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0700); err != nil {
			return nil, fmt.Errorf("create trash dir: %w", err)
		}
	}
	return &Bin{root: root, now: time.Now}, nil
}

// Root returns the trash directory.
func (b *Bin) Root() string { return b.root }

func (b *Bin) filesDir() string { return filepath.Join(b.root, "files") }
func (b *Bin) infoDir() string  { return filepath.Join(b.root, "info") }

// Remove moves path into the trash. Either the file ends up in files/ with
// its .trashinfo written, or nothing changes.
func (b *Bin) Remove(path string) (err error) {
	defer func() { metrics.RecordTrashOperation("remove", err == nil) }()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	info, err := os.Lstat(abs)
	if err != nil {
		return fmt.Errorf("trash %s: %w", abs, err)
	}
	if info.IsDir() {
		return fmt.Errorf("trash %s: is a directory", abs)
	}

	name, infoFile, err := b.reserve(abs)
	if err != nil {
		return err
	}
	dst := filepath.Join(b.filesDir(), name)

	if err := move(abs, dst); err != nil {
		os.Remove(infoFile)
		return fmt.Errorf("trash %s: %w", abs, err)
	}

	logging.Debug("trash: removed", zap.String("path", abs), zap.String("name", name))
	return nil
}

// reserve creates a unique .trashinfo for abs and returns the chosen name.
func (b *Bin) reserve(abs string) (string, string, error) {
	base := filepath.Base(abs)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	body := fmt.Sprintf("[%s]\nPath=%s\nDeletionDate=%s\n",
		infoSection, escapePath(abs), b.now().Format(dateLayout))

	for attempt := 0; attempt < 5; attempt++ {
		name := base
		if attempt > 0 {
			name = stem + "." + uuid.NewString()[:8] + ext
		}
		infoFile := filepath.Join(b.infoDir(), name+infoSuffix)
		f, err := os.OpenFile(infoFile, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", "", fmt.Errorf("write trash info: %w", err)
		}
		if _, err := f.WriteString(body); err != nil {
			f.Close()
			os.Remove(infoFile)
			return "", "", fmt.Errorf("write trash info: %w", err)
		}
		if err := f.Close(); err != nil {
			os.Remove(infoFile)
			return "", "", fmt.Errorf("write trash info: %w", err)
		}
		if _, err := os.Lstat(filepath.Join(b.filesDir(), name)); err == nil {
			// Orphaned payload without info; pick another name.
			os.Remove(infoFile)
			continue
		}
		return name, infoFile, nil
	}
	return "", "", fmt.Errorf("trash %s: could not allocate a unique name", abs)
}

// Restore moves the most recently trashed copy of path back into place.
// It never overwrites an existing file.
func (b *Bin) Restore(path string) (err error) {
	defer func() { metrics.RecordTrashOperation("restore", err == nil) }()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	items, err := b.List()
	if err != nil {
		return err
	}

	var match *Item
	for i := range items {
		it := &items[i]
		if it.OriginalPath != abs {
			continue
		}
		if match == nil || newer(it, match) {
			match = it
		}
	}
	if match == nil {
		return fmt.Errorf("restore %s: %w", abs, ErrNotInTrash)
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return fmt.Errorf("restore %s: %w", abs, err)
	}
	src := filepath.Join(b.filesDir(), match.Name)
	if err := moveNoReplace(src, abs); err != nil {
		return fmt.Errorf("restore %s: %w", abs, err)
	}
	if err := os.Remove(filepath.Join(b.infoDir(), match.Name+infoSuffix)); err != nil {
		logging.Warn("trash: restored but info file remains", zap.String("path", abs), zap.Error(err))
	}

	logging.Debug("trash: restored", zap.String("path", abs), zap.String("name", match.Name))
	return nil
}

func newer(a, b *Item) bool {
	if !a.DeletedAt.Equal(b.DeletedAt) {
		return a.DeletedAt.After(b.DeletedAt)
	}
	return a.infoModTime.After(b.infoModTime)
}

// List returns every trashed item with a readable .trashinfo, newest first.
func (b *Bin) List() ([]Item, error) {
	entries, err := os.ReadDir(b.infoDir())
	if err != nil {
		return nil, fmt.Errorf("list trash: %w", err)
	}

	var items []Item
	for _, d := range entries {
		if d.IsDir() || !strings.HasSuffix(d.Name(), infoSuffix) {
			continue
		}
		it, err := readInfo(filepath.Join(b.infoDir(), d.Name()))
		if err != nil {
			logging.Debug("trash: unreadable info file", zap.String("file", d.Name()), zap.Error(err))
			continue
		}
		it.Name = strings.TrimSuffix(d.Name(), infoSuffix)
		if info, err := d.Info(); err == nil {
			it.infoModTime = info.ModTime()
		}
		items = append(items, it)
	}
	sort.SliceStable(items, func(i, j int) bool { return newer(&items[i], &items[j]) })
	return items, nil
}

func readInfo(path string) (Item, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, path)
	if err != nil {
		return Item{}, err
	}
	sec, err := cfg.GetSection(infoSection)
	if err != nil {
		return Item{}, err
	}
	raw := sec.Key("Path").String()
	if raw == "" {
		return Item{}, fmt.Errorf("missing Path")
	}
	orig, err := url.PathUnescape(raw)
	if err != nil {
		return Item{}, err
	}
	var deleted time.Time
	if s := sec.Key("DeletionDate").String(); s != "" {
		deleted, _ = time.ParseInLocation(dateLayout, s, time.Local)
	}
	return Item{OriginalPath: orig, DeletedAt: deleted}, nil
}

func escapePath(p string) string {
	return (&url.URL{Path: p}).EscapedPath()
}

// move renames src to dst, copying across filesystems when needed.
func move(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil || !isCrossDevice(err) {
		return err
	}
	if err := copyFile(src, dst); err != nil {
		os.Remove(dst)
		return err
	}
	if err := os.Remove(src); err != nil {
		os.Remove(dst)
		return err
	}
	return nil
}

// moveNoReplace is move that fails with ErrDestinationExists instead of
// replacing dst.
func moveNoReplace(src, dst string) error {
	err := renameNoReplace(src, dst)
	if err == nil || !isCrossDevice(err) {
		return err
	}
	if err := copyFileExclusive(src, dst); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		os.Remove(dst)
		return err
	}
	return nil
}

func copyFile(src, dst string) error {
	return copyWithFlags(src, dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
}

func copyFileExclusive(src, dst string) error {
	err := copyWithFlags(src, dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL)
	if errors.Is(err, os.ErrExist) {
		return ErrDestinationExists
	}
	return err
}

func copyWithFlags(src, dst string, flags int) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, flags, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

// renameChecked refuses to replace an existing dst. Not atomic.
func renameChecked(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return ErrDestinationExists
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return os.Rename(src, dst)
}
