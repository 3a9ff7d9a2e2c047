package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"

	"github.com/go-drift/fiber/cmd/fiber/internal/scenario"
	fibererrors "github.com/go-drift/fiber/pkg/errors"
)

const opsKey = "ops"

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Play a scenario and print the host tree after each step",
		ArgsUsage: "<scenario.yaml>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  opsKey,
				Usage: "Print the host operations of each step",
				Value: true,
			},
		},
		Action: runScenario,
	}
}

func runScenario(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() != 1 {
		return errors.New("run expects exactly one scenario file")
	}
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	sc, err := scenario.Load(cmd.Args().First())
	if err != nil {
		return err
	}

	results, err := scenario.Run(ctx, sc, scenario.Options{
		Logger:        e.logger,
		FrameInterval: e.cfg.FrameInterval,
	})
	if name := sc.Name; name != "" {
		fmt.Fprintf(os.Stdout, "%s (%s)\n\n", name, e.cfg.ProjectName)
	}
	for _, res := range results {
		printStep(os.Stdout, res, cmd.Bool(opsKey), e.cfg.Verbose)
	}
	return err
}

func printStep(w io.Writer, res scenario.StepResult, ops, verbose bool) {
	fmt.Fprintf(w, "== %s [%s, lanes %v, %v]\n", res.Name, res.Priority, res.Lane, res.Elapsed.Round(time.Microsecond))
	fmt.Fprint(w, res.Tree)

	if ops && len(res.Ops) > 0 {
		tbl := table.NewWriter()
		tbl.SetOutputMirror(w)
		tbl.AppendHeader(table.Row{"#", "op", "target", "parent", "before", "detail"})
		for i, op := range res.Ops {
			tbl.AppendRow(table.Row{i + 1, op.Kind, op.Target, op.Parent, op.Before, opDetail(op.Old, op.New, op.Err)})
		}
		tbl.Render()
	}

	for _, se := range res.Errors {
		fmt.Fprintf(w, "%s error: %v\n", se.Kind, se.Err)
		if !verbose {
			continue
		}
		var re *fibererrors.RenderError
		if errors.As(se.Err, &re) && re.StackTrace != "" {
			fmt.Fprintln(w, re.StackTrace)
		}
	}
	fmt.Fprintln(w)
}

func opDetail(from, to string, err error) string {
	var s string
	switch {
	case from != "":
		s = fmt.Sprintf("%q -> %q", from, to)
	case to != "":
		s = fmt.Sprintf("%q", to)
	}
	if err != nil {
		if s != "" {
			s += " "
		}
		s += "failed: " + err.Error()
	}
	return s
}
