package scheduler

import "time"

// Priority is the urgency band of a scheduled task.
type Priority int

const (
	NoPriority Priority = iota
	ImmediatePriority
	UserBlockingPriority
	NormalPriority
	LowPriority
	IdlePriority
)

const (
	immediateTimeout    = -1 * time.Millisecond
	userBlockingTimeout = 250 * time.Millisecond
	normalTimeout       = 5 * time.Second
	lowTimeout          = 10 * time.Second
	// Never times out, but stays small enough that start+timeout cannot overflow.
	idleTimeout = 1073741823 * time.Millisecond
)

// Timeout returns how long a task of this priority may wait before it is
// considered expired.
func (p Priority) Timeout() time.Duration {
	switch p {
	case ImmediatePriority:
		return immediateTimeout
	case UserBlockingPriority:
		return userBlockingTimeout
	case IdlePriority:
		return idleTimeout
	case LowPriority:
		return lowTimeout
	default:
		return normalTimeout
	}
}

func (p Priority) String() string {
	switch p {
	case NoPriority:
		return "none"
	case ImmediatePriority:
		return "immediate"
	case UserBlockingPriority:
		return "user-blocking"
	case NormalPriority:
		return "normal"
	case LowPriority:
		return "low"
	case IdlePriority:
		return "idle"
	default:
		return "unknown"
	}
}
