package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-drift/fiber/cmd/fiber/internal/scenario"
	"github.com/go-drift/fiber/pkg/hosttree"
	"github.com/go-drift/fiber/pkg/lanes"
)

func TestPrintStep(t *testing.T) {
	var buf bytes.Buffer
	printStep(&buf, scenario.StepResult{
		Name:     "mount",
		Priority: scenario.PrioritySync,
		Lane:     lanes.SyncLane,
		Tree:     "#root\n  p\n",
		Ops: []hosttree.Op{
			{Kind: hosttree.OpCreate, Target: "p#2"},
			{Kind: hosttree.OpAppend, Target: "p#2", Parent: "#root#1", Err: hosttree.ErrInjected},
		},
		Errors:  []scenario.StepError{{Kind: scenario.ErrorRecoverable, Err: errors.New("append failed")}},
		Elapsed: 1500 * time.Microsecond,
	}, true, false)

	out := buf.String()
	for _, want := range []string{
		"== mount [sync, lanes Sync, 1.5ms]\n#root\n  p\n",
		"create",
		"#root#1",
		"failed: hosttree: injected failure",
		"recoverable error: append failed\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintStepWithoutOps(t *testing.T) {
	var buf bytes.Buffer
	printStep(&buf, scenario.StepResult{
		Name: "quiet",
		Tree: "#root\n",
		Ops:  []hosttree.Op{{Kind: hosttree.OpCreate, Target: "p#2"}},
	}, false, false)
	if strings.Contains(buf.String(), "p#2") {
		t.Errorf("ops printed although disabled:\n%s", buf.String())
	}
}

func TestOpDetail(t *testing.T) {
	tests := []struct {
		from, to string
		err      error
		want     string
	}{
		{"", "", nil, ""},
		{"", "hi", nil, `"hi"`},
		{"a", "b", nil, `"a" -> "b"`},
		{"", "", errors.New("nope"), "failed: nope"},
		{"", "hi", errors.New("nope"), `"hi" failed: nope`},
	}
	for _, tt := range tests {
		if got := opDetail(tt.from, tt.to, tt.err); got != tt.want {
			t.Errorf("opDetail(%q, %q, %v) = %q, want %q", tt.from, tt.to, tt.err, got, tt.want)
		}
	}
}

func TestPrintLanes(t *testing.T) {
	var buf bytes.Buffer
	printLanes(&buf, lanes.SyncLane|lanes.TransitionLane1|lanes.IdleLane)
	out := buf.String()
	for _, want := range []string{"Sync", "Transition1", "Idle", "discrete", "never"} {
		if !strings.Contains(out, want) {
			t.Errorf("lane table missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Retry1") {
		t.Errorf("lane table shows lanes outside the mask:\n%s", out)
	}
}

func TestRunBenchmarks(t *testing.T) {
	results, err := runBenchmarks(5, 2, time.Millisecond)
	if err != nil {
		t.Fatalf("runBenchmarks: %v", err)
	}
	want := []string{"mount", "update text", "reverse keyed", "transition update", "unmount"}
	if len(results) != len(want) {
		t.Fatalf("got %d results, want %d", len(results), len(want))
	}
	for i, r := range results {
		if r.name != want[i] {
			t.Errorf("results[%d].name = %q, want %q", i, r.name, want[i])
		}
		if r.ops == 0 {
			t.Errorf("%s: no host operations recorded", r.name)
		}
		if r.stats.Count != 2 {
			t.Errorf("%s: %d samples, want 2", r.name, r.stats.Count)
		}
	}

	var buf bytes.Buffer
	printBenchmarks(&buf, "5 items", results)
	if !strings.Contains(buf.String(), "reverse keyed") {
		t.Errorf("benchmark table missing rows:\n%s", buf.String())
	}
}
