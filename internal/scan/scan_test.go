package scan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestBuildFlatCanonicalOrder(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"c.png", "a.jpg", "b.jpg", "notes.txt", "sub/d.jpg"} {
		touch(t, filepath.Join(dir, n))
	}

	got, err := Build(dir, Options{Recursive: false})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := []string{
		filepath.Join(dir, "a.jpg"),
		filepath.Join(dir, "b.jpg"),
		filepath.Join(dir, "c.png"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Build = %v, want %v", got, want)
	}
}

func TestBuildRecursive(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"a.jpg", "sub/b.JPG", "sub/deeper/c.Png", "sub/skip.doc"} {
		touch(t, filepath.Join(dir, n))
	}

	got, err := Build(dir, Options{Recursive: true})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := []string{
		filepath.Join(dir, "a.jpg"),
		filepath.Join(dir, "sub/b.JPG"),
		filepath.Join(dir, "sub/deeper/c.Png"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Build = %v, want %v", got, want)
	}
}

func TestBuildCustomExtensionsDeduplicated(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.jpg"))
	touch(t, filepath.Join(dir, "b.gif"))

	// The same extension listed in several spellings matches once.
	got, err := Build(dir, Options{Extensions: []string{"jpg", ".JPG", " .jpg "}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || filepath.Base(got[0]) != "a.jpg" {
		t.Errorf("Build = %v, want [a.jpg]", got)
	}
}

func TestBuildSkipsDirectoriesNamedLikeImages(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "album.jpg"), 0755); err != nil {
		t.Fatal(err)
	}
	got, err := Build(dir, Options{Recursive: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected no files, got %v", got)
	}
}

func TestBuildEmptyIsNotAnError(t *testing.T) {
	got, err := Build(t.TempDir(), Options{Recursive: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
}

func TestBuildMissingRoot(t *testing.T) {
	_, err := Build(filepath.Join(t.TempDir(), "nope"), Options{})
	var se *ScanError
	if !errors.As(err, &se) {
		t.Fatalf("expected *ScanError, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ScanError should unwrap to ErrNotExist: %v", err)
	}
}

func TestBuildRootIsFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "a.jpg")
	touch(t, f)
	var se *ScanError
	if _, err := Build(f, Options{}); !errors.As(err, &se) {
		t.Fatalf("expected *ScanError, got %v", err)
	}
}

func TestBuildReportsProgress(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < progressEvery+10; i++ {
		touch(t, filepath.Join(dir, fmt.Sprintf("img-%03d.jpg", i)))
	}

	var reports []Progress
	files, err := Build(dir, Options{Progress: func(p Progress) { reports = append(reports, p) }})
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) < 2 {
		t.Fatalf("expected incremental and final reports, got %d", len(reports))
	}
	last := reports[len(reports)-1]
	if !last.Done || last.Matched != len(files) {
		t.Errorf("final report %+v, files %d", last, len(files))
	}
	if reports[0].Done {
		t.Error("first report should be incremental")
	}
}

func TestMatches(t *testing.T) {
	allowed := NormalizeExtensions([]string{"jpg", ".HEIC"})
	cases := map[string]bool{
		"/a/b.jpg":  true,
		"/a/b.JPG":  true,
		"/a/b.heic": true,
		"/a/b.png":  false,
		"/a/jpg":    false,
	}
	for p, want := range cases {
		if got := Matches(p, allowed); got != want {
			t.Errorf("Matches(%q) = %v, want %v", p, got, want)
		}
	}
}
