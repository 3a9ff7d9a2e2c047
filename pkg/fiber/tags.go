package fiber

// WorkTag identifies the kind of a fiber.
type WorkTag uint8

const (
	FunctionComponent WorkTag = iota
	HostRoot
	HostComponent
	HostText
	FragmentTag
	SuspenseComponent
	ErrorBoundary
	ContextProvider
)

func (t WorkTag) String() string {
	switch t {
	case FunctionComponent:
		return "FunctionComponent"
	case HostRoot:
		return "HostRoot"
	case HostComponent:
		return "HostComponent"
	case HostText:
		return "HostText"
	case FragmentTag:
		return "Fragment"
	case SuspenseComponent:
		return "Suspense"
	case ErrorBoundary:
		return "ErrorBoundary"
	case ContextProvider:
		return "ContextProvider"
	default:
		return "Unknown"
	}
}

// Flags is the set of pending effects on a fiber.
type Flags uint32

const (
	NoFlags       Flags = 0
	PerformedWork Flags = 1 << 0
	Placement     Flags = 1 << 1
	UpdateEffect  Flags = 1 << 2
	ChildDeletion Flags = 1 << 4
	ContentReset  Flags = 1 << 5
	Callback      Flags = 1 << 6
	DidCapture    Flags = 1 << 7
	Ref           Flags = 1 << 9
	Snapshot      Flags = 1 << 10
	Passive       Flags = 1 << 11

	// HostEffectMask covers the flags that survive an unwind.
	HostEffectMask Flags = 1<<15 - 1

	Incomplete    Flags = 1 << 15
	ShouldCapture Flags = 1 << 16
	Forked        Flags = 1 << 20

	// Static flags describe a fiber rather than a single render and are
	// copied onto every clone.
	RefStatic     Flags = 1 << 21
	LayoutStatic  Flags = 1 << 22
	PassiveStatic Flags = 1 << 23
)

const (
	BeforeMutationMask = Snapshot | ChildDeletion
	MutationMask       = Placement | UpdateEffect | ChildDeletion | ContentReset | Ref
	LayoutMask         = UpdateEffect | Callback | Ref
	PassiveMask        = Passive | ChildDeletion
	StaticMask         = RefStatic | LayoutStatic | PassiveStatic
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{PerformedWork, "PerformedWork"},
	{Placement, "Placement"},
	{UpdateEffect, "Update"},
	{ChildDeletion, "ChildDeletion"},
	{ContentReset, "ContentReset"},
	{Callback, "Callback"},
	{DidCapture, "DidCapture"},
	{Ref, "Ref"},
	{Snapshot, "Snapshot"},
	{Passive, "Passive"},
	{Incomplete, "Incomplete"},
	{ShouldCapture, "ShouldCapture"},
	{Forked, "Forked"},
	{RefStatic, "RefStatic"},
	{LayoutStatic, "LayoutStatic"},
	{PassiveStatic, "PassiveStatic"},
}

func (f Flags) String() string {
	if f == NoFlags {
		return "NoFlags"
	}
	s := ""
	for _, n := range flagNames {
		if f&n.flag != 0 {
			if s != "" {
				s += "|"
			}
			s += n.name
		}
	}
	return s
}
