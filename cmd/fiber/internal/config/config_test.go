package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joeycumines/logiface"

	"github.com/go-drift/fiber/pkg/scheduler"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestResolveDefaults(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "go.mod", "module example.com/acme/widgets/v2\n\ngo 1.24\n")

	res, err := Resolve(root)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.ModulePath != "example.com/acme/widgets/v2" {
		t.Errorf("ModulePath = %q", res.ModulePath)
	}
	if res.ProjectName != "widgets" {
		t.Errorf("ProjectName = %q, want widgets (major version suffix dropped)", res.ProjectName)
	}
	if res.LogLevel != logiface.LevelWarning {
		t.Errorf("LogLevel = %v, want warning", res.LogLevel)
	}
	if res.FrameInterval != scheduler.DefaultFrameInterval {
		t.Errorf("FrameInterval = %v", res.FrameInterval)
	}
	if res.Verbose {
		t.Error("Verbose should default to false")
	}
}

func TestResolveWithoutGoMod(t *testing.T) {
	root := filepath.Join(t.TempDir(), "playground")
	if err := os.Mkdir(root, 0o755); err != nil {
		t.Fatal(err)
	}
	res, err := Resolve(root)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.ModulePath != "" {
		t.Errorf("ModulePath = %q, want empty", res.ModulePath)
	}
	if res.ProjectName != "playground" {
		t.Errorf("ProjectName = %q, want playground", res.ProjectName)
	}
}

func TestResolveFromFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "go.mod", "module example.com/app\n")
	writeFile(t, root, FileName, `
project:
  name: Dashboard
log:
  level: debug
scheduler:
  frame_interval: 16ms
errors:
  verbose: true
`)

	res, err := Resolve(root)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.ProjectName != "Dashboard" {
		t.Errorf("ProjectName = %q", res.ProjectName)
	}
	if res.LogLevel != logiface.LevelDebug {
		t.Errorf("LogLevel = %v", res.LogLevel)
	}
	if res.FrameInterval != 16*time.Millisecond {
		t.Errorf("FrameInterval = %v", res.FrameInterval)
	}
	if !res.Verbose {
		t.Error("Verbose = false")
	}
}

func TestResolveRejectsBadValues(t *testing.T) {
	tests := []struct {
		name, yaml string
	}{
		{"bad level", "log:\n  level: loud\n"},
		{"bad interval", "scheduler:\n  frame_interval: soon\n"},
		{"negative interval", "scheduler:\n  frame_interval: -1ms\n"},
		{"bad yaml", "log: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeFile(t, root, FileName, tt.yaml)
			if _, err := Resolve(root); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "go.mod", "module example.com/app\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	if got := FindProjectRoot(nested); got != root {
		t.Errorf("FindProjectRoot = %q, want %q", got, root)
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]logiface.Level{
		"":         logiface.LevelWarning,
		"ERR":      logiface.LevelError,
		" info ":   logiface.LevelInformational,
		"trace":    logiface.LevelTrace,
		"disabled": logiface.LevelDisabled,
	} {
		got, err := ParseLevel(in)
		if err != nil {
			t.Errorf("ParseLevel(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
