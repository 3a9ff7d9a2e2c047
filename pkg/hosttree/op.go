package hosttree

import (
	"strconv"
	"strings"
)

// OpKind names a host operation.
type OpKind string

const (
	OpCreate           OpKind = "create"
	OpCreateText       OpKind = "createText"
	OpAppendInitial    OpKind = "appendInitial"
	OpAppend           OpKind = "append"
	OpInsertBefore     OpKind = "insertBefore"
	OpRemove           OpKind = "remove"
	OpCommitUpdate     OpKind = "commitUpdate"
	OpCommitTextUpdate OpKind = "commitTextUpdate"
	OpResetText        OpKind = "resetText"
)

// Op is one entry of the op log. Nodes are named by type and id, for
// example "div#3".
type Op struct {
	Kind   OpKind
	Target string
	Parent string
	Before string
	Old    string
	New    string
	// Err is the injected failure, if the op failed.
	Err error
}

func (o Op) String() string {
	var sb strings.Builder
	sb.WriteString(string(o.Kind))
	sb.WriteByte(' ')
	if o.Parent != "" {
		sb.WriteString(o.Parent)
		sb.WriteString(" > ")
	}
	sb.WriteString(o.Target)
	if o.Before != "" {
		sb.WriteString(" before ")
		sb.WriteString(o.Before)
	}
	switch o.Kind {
	case OpCreateText:
		sb.WriteByte(' ')
		sb.WriteString(strconv.Quote(o.New))
	case OpCommitTextUpdate:
		sb.WriteByte(' ')
		sb.WriteString(strconv.Quote(o.Old))
		sb.WriteString(" -> ")
		sb.WriteString(strconv.Quote(o.New))
	}
	if o.Err != nil {
		sb.WriteString(" (failed: ")
		sb.WriteString(o.Err.Error())
		sb.WriteByte(')')
	}
	return sb.String()
}

// Strings formats each op with Op.String.
func Strings(ops []Op) []string {
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = op.String()
	}
	return out
}
