package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/photoswiper/swiper/internal/logging"
	"github.com/photoswiper/swiper/internal/ordering"
	"github.com/photoswiper/swiper/internal/organizer"
	"github.com/photoswiper/swiper/internal/review"
)

type noTrash struct{}

func (noTrash) Remove(string) error  { return nil }
func (noTrash) Restore(string) error { return nil }

func newTerminal(out *bytes.Buffer) *terminal {
	session := review.New(noTrash{}, nil)
	org := organizer.New(organizer.Options{}, session, ordering.New(nil, nil))
	return &terminal{out: out, org: org, session: session}
}

func TestRandomNeedsOpenFolder(t *testing.T) {
	var out bytes.Buffer
	ui := newTerminal(&out)

	if !ui.handle(context.Background(), "r") {
		t.Fatal("r should not quit")
	}
	if !strings.Contains(out.String(), "Open a folder first") {
		t.Errorf("output = %q", out.String())
	}
	if ui.org.Options().Random {
		t.Error("random toggled with no folder open")
	}
}

func TestRandomAfterOpen(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	var out bytes.Buffer
	ui := newTerminal(&out)
	ui.handle(context.Background(), "o "+dir)
	out.Reset()

	ui.handle(context.Background(), "r")
	if !ui.org.Options().Random {
		t.Error("random not enabled")
	}
	if !strings.Contains(out.String(), "3 images, shuffled") {
		t.Errorf("output = %q", out.String())
	}
}

func TestVerbosityCommand(t *testing.T) {
	before := logging.Level()
	defer logging.SetLevel(before)

	var out bytes.Buffer
	ui := newTerminal(&out)

	ui.handle(context.Background(), "v debug")
	if logging.Level() != "debug" || !strings.Contains(out.String(), "Log level: debug") {
		t.Errorf("level %q, output %q", logging.Level(), out.String())
	}

	out.Reset()
	ui.handle(context.Background(), "v shouty")
	if logging.Level() != "debug" || !strings.HasPrefix(out.String(), "Error:") {
		t.Errorf("bad level: level %q, output %q", logging.Level(), out.String())
	}
}
