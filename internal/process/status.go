package process

// Status is the lifecycle state of a Run.
type Status int

const (
	// StatusPending means the process has not been started.
	StatusPending Status = iota
	// StatusRunning means the process is running.
	StatusRunning
	// StatusCompleted means the run resolved to Completed.
	StatusCompleted
	// StatusFailed means the run resolved to Failed.
	StatusFailed
	// StatusAborted means Abort was called. Set before the process exits so
	// the exit handler cannot override it.
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusAborted
}
