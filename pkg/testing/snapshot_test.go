package testing

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-drift/fiber/pkg/fiber"
	"github.com/go-drift/fiber/pkg/testing/internal/testbed"
)

func TestCaptureSnapshot_Tree(t *testing.T) {
	r := NewRendererWithT(t)
	r.Render(fiber.H(testbed.Counter, fiber.Props{"initial": 2}))

	snap := r.CaptureSnapshot()
	if snap.Tree == nil || snap.Tree.Type != "#root" {
		t.Fatalf("expected container at the root, got %+v", snap.Tree)
	}
	if len(snap.Tree.Children) != 1 {
		t.Fatalf("expected one child, got %d", len(snap.Tree.Children))
	}
	button := snap.Tree.Children[0]
	if button.Type != "button" || button.Props["onClick"] != "<func>" {
		t.Errorf("unexpected button node %+v", button)
	}
	if len(button.Children) != 1 || button.Children[0].Text != "2" {
		t.Errorf("expected text child '2', got %+v", button.Children)
	}
	if len(snap.Ops) == 0 {
		t.Error("expected mount ops in snapshot")
	}
	if snap.Fingerprint == "" {
		t.Error("expected fingerprint")
	}
}

func TestSnapshot_Diff_Equal(t *testing.T) {
	r := NewRendererWithT(t)
	r.Render(fiber.H("div", nil, "same"))

	a := r.CaptureSnapshot()
	b := r.CaptureSnapshot()

	if diff := a.Diff(b); diff != "" {
		t.Errorf("expected no diff for identical snapshots, got:\n%s", diff)
	}
}

func TestSnapshot_Diff_Different(t *testing.T) {
	r := NewRendererWithT(t)

	r.Render(fiber.H("div", nil, "first"))
	a := r.CaptureTree()

	r.Render(fiber.H("div", nil, "second"))
	b := r.CaptureTree()

	diff := b.Diff(a)
	if diff == "" {
		t.Fatal("expected diff for different snapshots")
	}
	if !strings.HasPrefix(diff, "--- expected\n+++ actual\n") {
		t.Errorf("expected a unified diff header, got:\n%s", diff)
	}
	if !strings.Contains(diff, `"text": "first"`) || !strings.Contains(diff, `"text": "second"`) {
		t.Errorf("diff does not show the text change:\n%s", diff)
	}
}

func TestSnapshot_UpdateAndMatch(t *testing.T) {
	r := NewRendererWithT(t)
	r.Render(fiber.H(testbed.List, fiber.Props{"items": []string{"x", "y"}}))

	snap := r.CaptureSnapshot()

	dir := t.TempDir()
	path := filepath.Join(dir, "testdata", "list.snapshot.json")

	if err := snap.UpdateFile(path); err != nil {
		t.Fatalf("UpdateFile failed: %v", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatal("snapshot file should exist after UpdateFile")
	}

	// MatchesFile should pass now
	snap.MatchesFile(t, path)
}

func TestSnapshot_MatchesFile_MissingFile(t *testing.T) {
	t.Setenv(UpdateSnapshotsEnv, "")
	r := NewRendererWithT(t)
	r.Render(fiber.H("div", nil))
	snap := r.CaptureSnapshot()

	failed := false
	sub := &fatalRecorder{name: t.Name(), onFatal: func() { failed = true }}
	snap.MatchesFile(sub, filepath.Join(t.TempDir(), "missing.json"))

	if !failed {
		t.Error("expected MatchesFile to fail for missing file")
	}
}

func TestSnapshot_MatchesFile_Mismatch(t *testing.T) {
	t.Setenv(UpdateSnapshotsEnv, "")
	r := NewRendererWithT(t)

	r.Render(fiber.H("div", fiber.Props{"id": "a"}))
	first := r.CaptureTree()

	path := filepath.Join(t.TempDir(), "snap.json")
	if err := first.UpdateFile(path); err != nil {
		t.Fatal(err)
	}

	r.Render(fiber.H("div", fiber.Props{"id": "b"}))
	second := r.CaptureTree()

	errored := false
	sub := &errorRecorder{name: t.Name(), onError: func() { errored = true }}
	second.MatchesFile(sub, path)

	if !errored {
		t.Error("expected MatchesFile to report error for mismatch")
	}
}

func TestSnapshot_UpdateMode(t *testing.T) {
	r := NewRendererWithT(t)
	r.Render(fiber.H("div", nil))
	snap := r.CaptureSnapshot()

	path := filepath.Join(t.TempDir(), "update.snapshot.json")

	t.Setenv(UpdateSnapshotsEnv, "1")
	snap.MatchesFile(t, path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("snapshot file should be created in update mode")
	}
}

// fatalRecorder intercepts Fatalf calls for testing MatchesFile failures.
type fatalRecorder struct {
	name    string
	onFatal func()
}

func (r *fatalRecorder) Fatalf(format string, args ...any) { r.onFatal() }
func (r *fatalRecorder) Errorf(format string, args ...any) {}
func (r *fatalRecorder) Helper()                           {}
func (r *fatalRecorder) Name() string                      { return r.name }

// errorRecorder intercepts Errorf calls for testing MatchesFile mismatches.
type errorRecorder struct {
	name    string
	onError func()
}

func (r *errorRecorder) Fatalf(format string, args ...any) {}
func (r *errorRecorder) Errorf(format string, args ...any) { r.onError() }
func (r *errorRecorder) Helper()                           {}
func (r *errorRecorder) Name() string                      { return r.name }
