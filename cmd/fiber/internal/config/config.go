// Package config resolves the optional fiber.yaml next to a Go module.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joeycumines/logiface"
	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
	"gopkg.in/yaml.v3"

	"github.com/go-drift/fiber/pkg/scheduler"
)

// FileName is the name of the optional configuration file.
const FileName = "fiber.yaml"

// Config represents the optional fiber.yaml configuration.
type Config struct {
	Project   ProjectConfig   `yaml:"project"`
	Log       LogConfig       `yaml:"log"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Errors    ErrorsConfig    `yaml:"errors"`
}

// ProjectConfig names the project in CLI output.
type ProjectConfig struct {
	Name string `yaml:"name,omitempty"`
}

// LogConfig controls the CLI logger.
type LogConfig struct {
	// Level is a syslog keyword (err, warning, info, debug, trace) or
	// "disabled".
	Level string `yaml:"level,omitempty"`
}

// SchedulerConfig controls time slicing.
type SchedulerConfig struct {
	// FrameInterval is a time.ParseDuration string such as "5ms".
	FrameInterval string `yaml:"frame_interval,omitempty"`
}

// ErrorsConfig controls error reporting.
type ErrorsConfig struct {
	Verbose bool `yaml:"verbose,omitempty"`
}

// Resolved contains resolved configuration values.
type Resolved struct {
	Root          string
	ModulePath    string
	ProjectName   string
	LogLevel      logiface.Level
	FrameInterval time.Duration
	Verbose       bool
}

// LoadOptional reads fiber.yaml from dir if present.
func LoadOptional(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
	}
	return &cfg, nil
}

// Resolve loads fiber.yaml (if present) from dir and fills in defaults. A
// missing go.mod is not an error; the project is then named after dir.
func Resolve(dir string) (*Resolved, error) {
	modulePath, err := modulePath(dir)
	if err != nil {
		return nil, err
	}

	cfg, err := LoadOptional(dir)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(cfg.Project.Name)
	if name == "" {
		name = defaultProjectName(modulePath, dir)
	}

	level, err := ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	interval := scheduler.DefaultFrameInterval
	if s := strings.TrimSpace(cfg.Scheduler.FrameInterval); s != "" {
		interval, err = time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid scheduler.frame_interval %q: %w", s, err)
		}
		if interval <= 0 {
			return nil, fmt.Errorf("invalid scheduler.frame_interval %q: must be positive", s)
		}
	}

	return &Resolved{
		Root:          dir,
		ModulePath:    modulePath,
		ProjectName:   name,
		LogLevel:      level,
		FrameInterval: interval,
		Verbose:       cfg.Errors.Verbose,
	}, nil
}

// FindProjectRoot walks up from start to the nearest directory with a
// go.mod, returning start itself when there is none.
func FindProjectRoot(start string) string {
	dir := start
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}

// ParseLevel maps a level keyword to a logiface level. The empty string is
// "warning".
func ParseLevel(s string) (logiface.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return logiface.LevelWarning, nil
	case "disabled", "off", "none":
		return logiface.LevelDisabled, nil
	case "emerg", "emergency":
		return logiface.LevelEmergency, nil
	case "alert":
		return logiface.LevelAlert, nil
	case "crit", "critical":
		return logiface.LevelCritical, nil
	case "err", "error":
		return logiface.LevelError, nil
	case "warning", "warn":
		return logiface.LevelWarning, nil
	case "notice":
		return logiface.LevelNotice, nil
	case "info", "informational":
		return logiface.LevelInformational, nil
	case "debug":
		return logiface.LevelDebug, nil
	case "trace":
		return logiface.LevelTrace, nil
	default:
		return logiface.LevelDisabled, fmt.Errorf("unknown log level %q", s)
	}
}

func modulePath(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read go.mod: %w", err)
	}
	path := modfile.ModulePath(data)
	if path == "" {
		return "", fmt.Errorf("could not determine module path from go.mod")
	}
	return path, nil
}

func defaultProjectName(modulePath, dir string) string {
	base := filepath.Base(dir)
	if modName, _, ok := module.SplitPathVersion(modulePath); ok && modName != "" {
		parts := strings.Split(modName, "/")
		base = parts[len(parts)-1]
	}
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "fiber"
	}
	return base
}
