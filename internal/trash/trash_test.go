package trash

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newBin(t *testing.T) *Bin {
	t.Helper()
	b, err := Open(filepath.Join(t.TempDir(), "Trash"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return b
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestRemoveAndRestore(t *testing.T) {
	b := newBin(t)
	path := filepath.Join(t.TempDir(), "holiday photo.jpg")
	writeFile(t, path, "pixels")
	mtime := time.Date(2019, 6, 1, 10, 0, 0, 0, time.UTC)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	if err := b.Remove(path); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("file still present after Remove")
	}

	items, err := b.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].OriginalPath != path {
		t.Fatalf("List = %+v", items)
	}
	raw, err := os.ReadFile(filepath.Join(b.Root(), "info", items[0].Name+infoSuffix))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "[Trash Info]") || !strings.Contains(string(raw), "holiday%20photo.jpg") {
		t.Errorf("unexpected trashinfo:\n%s", raw)
	}

	if err := b.Restore(path); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "pixels" {
		t.Fatalf("restored content = %q, %v", data, err)
	}
	info, _ := os.Stat(path)
	if !info.ModTime().Equal(mtime) {
		t.Errorf("restore changed mtime: %v", info.ModTime())
	}
	if items, _ := b.List(); len(items) != 0 {
		t.Errorf("trash not empty after restore: %+v", items)
	}
}

func TestRemoveSameNameTwice(t *testing.T) {
	b := newBin(t)
	dir := t.TempDir()
	first := filepath.Join(dir, "a", "img.jpg")
	second := filepath.Join(dir, "b", "img.jpg")
	writeFile(t, first, "one")
	writeFile(t, second, "two")

	if err := b.Remove(first); err != nil {
		t.Fatal(err)
	}
	if err := b.Remove(second); err != nil {
		t.Fatal(err)
	}
	items, _ := b.List()
	if len(items) != 2 || items[0].Name == items[1].Name {
		t.Fatalf("expected two distinct trash names, got %+v", items)
	}

	if err := b.Restore(second); err != nil {
		t.Fatal(err)
	}
	if data, _ := os.ReadFile(second); string(data) != "two" {
		t.Errorf("restored wrong payload: %q", data)
	}
	if _, err := os.Stat(first); !os.IsNotExist(err) {
		t.Error("restoring one path must not restore the other")
	}
}

func TestRestorePicksMostRecent(t *testing.T) {
	b := newBin(t)
	path := filepath.Join(t.TempDir(), "x.jpg")

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local)
	b.now = func() time.Time { return clock }
	writeFile(t, path, "old")
	if err := b.Remove(path); err != nil {
		t.Fatal(err)
	}

	clock = clock.Add(time.Hour)
	writeFile(t, path, "new")
	if err := b.Remove(path); err != nil {
		t.Fatal(err)
	}

	if err := b.Restore(path); err != nil {
		t.Fatal(err)
	}
	if data, _ := os.ReadFile(path); string(data) != "new" {
		t.Errorf("expected most recent removal restored, got %q", data)
	}
}

func TestRestoreNotInTrash(t *testing.T) {
	b := newBin(t)
	err := b.Restore(filepath.Join(t.TempDir(), "never.jpg"))
	if !errors.Is(err, ErrNotInTrash) {
		t.Fatalf("expected ErrNotInTrash, got %v", err)
	}
}

func TestRestoreDoesNotOverwrite(t *testing.T) {
	b := newBin(t)
	path := filepath.Join(t.TempDir(), "keep.jpg")
	writeFile(t, path, "trashed")
	if err := b.Remove(path); err != nil {
		t.Fatal(err)
	}
	writeFile(t, path, "replacement")

	err := b.Restore(path)
	if !errors.Is(err, ErrDestinationExists) {
		t.Fatalf("expected ErrDestinationExists, got %v", err)
	}
	if data, _ := os.ReadFile(path); string(data) != "replacement" {
		t.Errorf("existing file was clobbered: %q", data)
	}
	if items, _ := b.List(); len(items) != 1 {
		t.Error("trash entry must survive a failed restore")
	}
}

func TestRestoreRecreatesParent(t *testing.T) {
	b := newBin(t)
	dir := filepath.Join(t.TempDir(), "album")
	path := filepath.Join(dir, "p.jpg")
	writeFile(t, path, "x")
	if err := b.Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(dir); err != nil {
		t.Fatal(err)
	}
	if err := b.Restore(path); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("file not restored: %v", err)
	}
}

func TestRemoveMissingFileLeavesNoInfo(t *testing.T) {
	b := newBin(t)
	if err := b.Remove(filepath.Join(t.TempDir(), "ghost.jpg")); err == nil {
		t.Fatal("expected error for missing file")
	}
	entries, _ := os.ReadDir(filepath.Join(b.Root(), "info"))
	if len(entries) != 0 {
		t.Errorf("stray info files: %v", entries)
	}
}

func TestRemoveDirectoryRejected(t *testing.T) {
	b := newBin(t)
	if err := b.Remove(t.TempDir()); err == nil {
		t.Fatal("expected error when trashing a directory")
	}
}

func TestListSkipsUnreadableInfo(t *testing.T) {
	b := newBin(t)
	writeFile(t, filepath.Join(b.Root(), "info", "junk.trashinfo"), "no section here")
	items, err := b.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Errorf("expected junk info to be skipped, got %+v", items)
	}
}
