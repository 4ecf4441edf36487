package events

import "time"

const AttendanceDayClosedTopic = "timeclock.attendance.day.closed.v1"

// AttendanceDayClosedEvent is published when an employee clocks out. The
// timesheet projection consumes it to accumulate worked hours per pay period.
type AttendanceDayClosedEvent struct {
	EventType      string    `json:"event_type"`
	AttendanceID   string    `json:"attendance_id"`
	EmployeeID     string    `json:"employee_id"`
	CompanyID      string    `json:"company_id"`
	AttendanceDate string    `json:"attendance_date"`
	TotalHours     float64   `json:"total_hours"`
	OvertimeHours  float64   `json:"overtime_hours"`
	OccurredAt     time.Time `json:"occurred_at"`
}
