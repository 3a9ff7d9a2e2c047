package fiber

// Instance is a host node created by a HostConfig.
type Instance any

// HostConfig is the host environment the reconciler mutates.
//
// Methods returning an error are called during commit (or, for the Create
// methods, during the complete phase). Commit-time failures are reported and
// the commit moves on to the next sibling.
type HostConfig interface {
	CreateInstance(typ string, props Props) (Instance, error)
	CreateTextInstance(text string) (Instance, error)
	// AppendInitialChild attaches child to a parent that is not yet mounted.
	AppendInitialChild(parent, child Instance) error

	AppendChild(parent, child Instance) error
	InsertBefore(parent, child, before Instance) error
	RemoveChild(parent, child Instance) error
	CommitUpdate(inst Instance, typ string, oldProps, newProps Props) error
	CommitTextUpdate(inst Instance, oldText, newText string) error
	ResetTextContent(inst Instance) error

	// ShouldSetTextContent reports whether the host renders the children of
	// typ itself, in which case no HostText fibers are created for them.
	ShouldSetTextContent(typ string, props Props) bool

	// ScheduleMicrotask runs fn after the current task, before the next one.
	ScheduleMicrotask(fn func())

	// SupportsMutation reports whether the host accepts in-place mutation of
	// mounted nodes. When it does not, the reconciler still creates and
	// builds detached instances but never calls AppendChild, InsertBefore,
	// RemoveChild, CommitUpdate, CommitTextUpdate or ResetTextContent.
	SupportsMutation() bool
}

// detachedHost drops every mutation of mounted nodes. It wraps hosts that do
// not support mutation.
type detachedHost struct {
	HostConfig
}

func (detachedHost) AppendChild(_, _ Instance) error { return nil }
func (detachedHost) InsertBefore(_, _, _ Instance) error { return nil }
func (detachedHost) RemoveChild(_, _ Instance) error { return nil }
func (detachedHost) CommitUpdate(Instance, string, Props, Props) error { return nil }
func (detachedHost) CommitTextUpdate(Instance, string, string) error { return nil }
func (detachedHost) ResetTextContent(Instance) error { return nil }

// HostRef receives the host instance of a host element after it mounts, and
// nil when it unmounts.
type HostRef interface {
	SetInstance(inst Instance)
}

// RefFunc adapts a function to HostRef.
type RefFunc func(inst Instance)

func (f RefFunc) SetInstance(inst Instance) { f(inst) }

// RefObject is a mutable box that survives re-renders. It doubles as a
// HostRef when T can hold the host instance.
type RefObject[T any] struct {
	Current T
}

func (r *RefObject[T]) SetInstance(inst Instance) {
	v, _ := inst.(T)
	r.Current = v
}
