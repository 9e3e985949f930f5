package engine

// Status is the lifecycle status of a session.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusPaused     Status = "paused"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusError      Status = "error"
)

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusError:
		return true
	}
	return false
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusPaused, StatusCompleted, StatusCancelled, StatusError:
		return true
	}
	return false
}

// command names used in transition errors and logs.
const (
	opStart  = "start"
	opPause  = "pause"
	opResume = "resume"
	opEnd    = "end"
)

// allowed lists the statuses each command may be issued from.
var allowed = map[string][]Status{
	opStart:  {StatusPending},
	opPause:  {StatusInProgress},
	opResume: {StatusPaused},
	opEnd:    {StatusPending, StatusInProgress, StatusPaused},
}

// canApply reports whether op is permitted from s.
func canApply(op string, s Status) bool {
	for _, from := range allowed[op] {
		if s == from {
			return true
		}
	}
	return false
}
