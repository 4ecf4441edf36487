package pendingaction

import (
	"encoding/json"
	"time"
)

const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusDead       = "dead"
)

const (
	ActionClockIn    = "clock_in"
	ActionClockOut   = "clock_out"
	ActionBreakStart = "break_start"
	ActionBreakEnd   = "break_end"
)

const DefaultMaxRetries = 5

// PendingAction is a clock mutation that was applied locally but could not
// reach the upstream HR service. It is replayed FIFO and deleted on success;
// after max_retries failed replays it is parked as dead and surfaced to the
// operator instead of retried forever.
type PendingAction struct {
	ID             string
	EmployeeID     string
	ActionType     string
	AttendanceDate string
	OccurredAt     time.Time
	Payload        json.RawMessage
	RetryCount     int
	MaxRetries     int
	NextRetryAt    time.Time
	Status         string
	LastError      *string
	CreatedAt      time.Time
}

func ValidActionType(t string) bool {
	switch t {
	case ActionClockIn, ActionClockOut, ActionBreakStart, ActionBreakEnd:
		return true
	default:
		return false
	}
}
