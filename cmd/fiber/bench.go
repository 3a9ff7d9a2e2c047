package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"

	"github.com/go-drift/fiber/pkg/fiber"
	"github.com/go-drift/fiber/pkg/hosttree"
	"github.com/go-drift/fiber/pkg/scheduler"
)

const (
	nodesKey      = "nodes"
	iterationsKey = "iterations"
)

func benchCommand() *cli.Command {
	return &cli.Command{
		Name:  "bench",
		Usage: "Time mount, update and reorder of a list on the in-memory host",
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:  nodesKey,
				Usage: "Number of list items",
				Value: 1_000,
			},
			&cli.UintFlag{
				Name:  iterationsKey,
				Usage: "Iterations per benchmark",
				Value: 100,
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			nodes, iters := int(cmd.Uint(nodesKey)), int(cmd.Uint(iterationsKey))
			if nodes <= 0 || iters <= 0 {
				return errors.New("bench needs at least one node and one iteration")
			}
			results, err := runBenchmarks(nodes, iters, e.cfg.FrameInterval)
			if err != nil {
				return err
			}
			printBenchmarks(os.Stdout, fmt.Sprintf("%s items", humanize.Comma(int64(nodes))), results)
			return nil
		},
	}
}

// benchHarness drives a reconciler on a virtual clock so timings measure
// reconciler work, not scheduler sleeps.
type benchHarness struct {
	host  *hosttree.Host
	vhost *scheduler.VirtualHost
	rec   *fiber.Reconciler
	root  *fiber.FiberRoot
}

func newBenchHarness(frameInterval time.Duration) *benchHarness {
	b := &benchHarness{host: hosttree.New(), vhost: scheduler.NewVirtualHost()}
	sched := scheduler.New(b.vhost, scheduler.WithFrameInterval(frameInterval))
	b.rec = fiber.NewReconciler(b.host, sched, fiber.Options{})
	b.root = b.rec.CreateContainer(b.host.Container())
	return b
}

func (b *benchHarness) settle() {
	for {
		if b.host.FlushMicrotasks()+b.vhost.FlushUntilIdle() == 0 {
			return
		}
	}
}

func (b *benchHarness) render(node fiber.Node) error {
	err := b.rec.FlushSync(func() { b.rec.UpdateContainer(node, b.root) })
	b.settle()
	return err
}

func (b *benchHarness) transition(node fiber.Node) {
	b.rec.StartTransition(func() { b.rec.UpdateContainer(node, b.root) })
	b.settle()
}

func list(n int, label string, reversed bool) fiber.Node {
	items := make([]fiber.Node, n)
	for i := range items {
		id := i
		if reversed {
			id = n - 1 - i
		}
		items[i] = fiber.H("li", fiber.Props{"key": id}, label, strconv.Itoa(id))
	}
	return fiber.H("ul", nil, items...)
}

type benchResult struct {
	name   string
	ops    int
	allocs uint64
	stats  *tachymeter.Metrics
}

type benchCase struct {
	name string
	// setup runs untimed before each iteration.
	setup func(b *benchHarness) error
	run   func(b *benchHarness) error
}

func benchCases(nodes int) []benchCase {
	mounted := func(b *benchHarness) error { return b.render(list(nodes, "item ", false)) }
	return []benchCase{
		{
			name:  "mount",
			setup: func(*benchHarness) error { return nil },
			run:   mounted,
		},
		{
			name:  "update text",
			setup: mounted,
			run:   func(b *benchHarness) error { return b.render(list(nodes, "row ", false)) },
		},
		{
			name:  "reverse keyed",
			setup: mounted,
			run:   func(b *benchHarness) error { return b.render(list(nodes, "item ", true)) },
		},
		{
			name:  "transition update",
			setup: mounted,
			run: func(b *benchHarness) error {
				b.transition(list(nodes, "row ", false))
				return nil
			},
		},
		{
			name:  "unmount",
			setup: mounted,
			run:   func(b *benchHarness) error { return b.render(nil) },
		},
	}
}

func runBenchmarks(nodes, iters int, frameInterval time.Duration) ([]benchResult, error) {
	var results []benchResult
	for _, bc := range benchCases(nodes) {
		tach := tachymeter.New(&tachymeter.Config{Size: iters})
		var ops int
		var allocs uint64
		for i := 0; i < iters; i++ {
			b := newBenchHarness(frameInterval)
			if err := bc.setup(b); err != nil {
				return nil, fmt.Errorf("%s setup: %w", bc.name, err)
			}
			b.host.ClearOps()

			var before, after runtime.MemStats
			runtime.ReadMemStats(&before)
			start := time.Now()
			err := bc.run(b)
			tach.AddTime(time.Since(start))
			runtime.ReadMemStats(&after)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", bc.name, err)
			}
			allocs += after.TotalAlloc - before.TotalAlloc
			ops = len(b.host.Ops())
		}
		results = append(results, benchResult{
			name:   bc.name,
			ops:    ops,
			allocs: allocs / uint64(iters),
			stats:  tach.Calc(),
		})
	}
	return results, nil
}

func printBenchmarks(w io.Writer, title string, results []benchResult) {
	tbl := table.NewWriter()
	tbl.SetTitle(title)
	tbl.SetOutputMirror(w)
	tbl.AppendHeader(table.Row{"benchmark", "host ops", "alloc/op", "avg", "min", "p75", "p99", "max"})
	for _, r := range results {
		tbl.AppendRow(table.Row{
			r.name,
			humanize.Comma(int64(r.ops)),
			humanize.Bytes(r.allocs),
			r.stats.Time.Avg,
			r.stats.Time.Min,
			r.stats.Time.P75,
			r.stats.Time.P99,
			r.stats.Time.Max,
		})
	}
	tbl.Render()
}
