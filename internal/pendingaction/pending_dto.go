package pendingaction

type PendingActionResponse struct {
	ID             string  `json:"id"`
	EmployeeID     string  `json:"employee_id"`
	ActionType     string  `json:"action_type"`
	AttendanceDate string  `json:"attendance_date"`
	OccurredAt     string  `json:"occurred_at"`
	RetryCount     int     `json:"retry_count"`
	MaxRetries     int     `json:"max_retries"`
	Status         string  `json:"status"`
	LastError      *string `json:"last_error,omitempty"`
}

type SyncStatusResponse struct {
	Pending           int64                   `json:"pending"`
	Dead              int64                   `json:"dead"`
	DeadletterEntries []PendingActionResponse `json:"deadletter_entries"`
}
