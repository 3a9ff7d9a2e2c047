// Command fiber plays render scenarios through the reconciler and reports
// what the host saw.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/urfave/cli/v3"

	"github.com/go-drift/fiber/cmd/fiber/internal/config"
)

const (
	dirKey      = "dir"
	logLevelKey = "log-level"
)

func main() {
	cmd := &cli.Command{
		Name:  "fiber",
		Usage: "Inspect the fiber reconciler",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  dirKey,
				Usage: "Project directory holding fiber.yaml",
				Value: ".",
			},
			&cli.StringFlag{
				Name:  logLevelKey,
				Usage: "Log level, overriding fiber.yaml (err, warning, info, debug, trace)",
			},
		},
		Commands: []*cli.Command{
			runCommand(),
			lanesCommand(),
			benchCommand(),
		},
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

// env is what every subcommand needs from the global flags.
type env struct {
	cfg    *config.Resolved
	logger *logiface.Logger[logiface.Event]
}

func loadEnv(cmd *cli.Command) (*env, error) {
	dir, err := filepath.Abs(cmd.String(dirKey))
	if err != nil {
		return nil, err
	}
	cfg, err := config.Resolve(config.FindProjectRoot(dir))
	if err != nil {
		return nil, err
	}
	if s := cmd.String(logLevelKey); s != "" {
		level, err := config.ParseLevel(s)
		if err != nil {
			return nil, fmt.Errorf("--%s: %w", logLevelKey, err)
		}
		cfg.LogLevel = level
	}
	return &env{cfg: cfg, logger: newLogger(cfg.LogLevel)}, nil
}

func newLogger(level logiface.Level) *logiface.Logger[logiface.Event] {
	if level == logiface.LevelDisabled {
		return nil
	}
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(os.Stderr)),
		stumpy.L.WithLevel(level),
	).Logger()
}
