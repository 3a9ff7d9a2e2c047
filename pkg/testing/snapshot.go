package testing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strconv"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"

	"github.com/go-drift/fiber/pkg/hosttree"
)

// UpdateSnapshotsEnv is the environment variable that, set to "1", makes
// MatchesFile rewrite golden files instead of comparing against them.
const UpdateSnapshotsEnv = "FIBER_UPDATE_SNAPSHOTS"

// TestingT is the subset of *testing.T used by MatchesFile, allowing
// test doubles to intercept failures.
type TestingT interface {
	Helper()
	Fatalf(format string, args ...any)
	Errorf(format string, args ...any)
	Name() string
}

// Snapshot captures the host tree and the op log that produced it.
type Snapshot struct {
	Tree        *SnapshotNode `json:"tree"`
	Ops         []string      `json:"ops,omitempty"`
	Fingerprint string        `json:"fingerprint"`
}

// SnapshotNode represents a node in the serialized host tree.
type SnapshotNode struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	Props    map[string]any  `json:"props,omitempty"`
	Children []*SnapshotNode `json:"children,omitempty"`
}

// CaptureSnapshot captures the current host tree and op log.
func (r *Renderer) CaptureSnapshot() *Snapshot {
	return &Snapshot{
		Tree:        captureNode(r.host.Container()),
		Ops:         r.OpStrings(),
		Fingerprint: strconv.FormatUint(r.host.Fingerprint(), 16),
	}
}

// CaptureTree captures the host tree without the op log.
func (r *Renderer) CaptureTree() *Snapshot {
	s := r.CaptureSnapshot()
	s.Ops = nil
	return s
}

// MatchesFile compares this snapshot against a golden file. On mismatch it
// reports a diff and instructions for updating. When FIBER_UPDATE_SNAPSHOTS=1
// is set, the file is silently updated instead.
func (s *Snapshot) MatchesFile(t TestingT, path string) {
	t.Helper()

	if os.Getenv(UpdateSnapshotsEnv) == "1" {
		if err := s.UpdateFile(path); err != nil {
			t.Fatalf("failed to update snapshot: %v", err)
		}
		return
	}

	expected, err := loadSnapshot(path)
	if err != nil {
		if os.IsNotExist(err) {
			t.Fatalf("snapshot file missing: %s\n\nTo create: %s=1 go test -run %s", path, UpdateSnapshotsEnv, t.Name())
			return
		}
		t.Fatalf("failed to load snapshot: %v", err)
		return
	}

	if diff := s.Diff(expected); diff != "" {
		t.Errorf("snapshot mismatch: %s\n%s\n\nTo update: %s=1 go test -run %s", path, diff, UpdateSnapshotsEnv, t.Name())
	}
}

// UpdateFile writes this snapshot to the given path, creating directories
// as needed.
func (s *Snapshot) UpdateFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := marshalSnapshot(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Diff returns a unified diff from other to this snapshot. Returns empty
// string if equal.
func (s *Snapshot) Diff(other *Snapshot) string {
	a, _ := marshalSnapshot(other)
	b, _ := marshalSnapshot(s)
	if bytes.Equal(a, b) {
		return ""
	}
	expected, actual := string(a), string(b)
	edits := myers.ComputeEdits(span.URIFromPath("expected"), expected, actual)
	return fmt.Sprint(gotextdiff.ToUnified("expected", "actual", expected, edits))
}

// --- Internal ---

func captureNode(n *hosttree.Node) *SnapshotNode {
	sn := &SnapshotNode{Type: n.Type, Text: n.Text}
	if len(n.Props) > 0 {
		sn.Props = make(map[string]any, len(n.Props))
		for _, k := range slices.Sorted(maps.Keys(n.Props)) {
			sn.Props[k] = snapshotValue(n.Props[k])
		}
	}
	for _, c := range n.Children {
		sn.Children = append(sn.Children, captureNode(c))
	}
	return sn
}

// snapshotValue keeps JSON scalars and formats everything else as a string,
// so that a snapshot reads back from JSON unchanged.
func snapshotValue(v any) any {
	switch p := v.(type) {
	case nil, bool, string:
		return p
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return p
	case fmt.Stringer:
		return p.String()
	}
	if reflect.TypeOf(v).Kind() == reflect.Func {
		return "<func>"
	}
	return fmt.Sprint(v)
}

func loadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("invalid snapshot JSON: %w", err)
	}
	return &snap, nil
}

func marshalSnapshot(s *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
