package attendance

// ClockActionRequest covers all four clock mutations. Timestamp is optional;
// when absent the server clock is used.
type ClockActionRequest struct {
	Timestamp *string `json:"timestamp"`
	Notes     *string `json:"notes"`
}

type AttendanceResponse struct {
	ID             string  `json:"id"`
	CompanyID      string  `json:"company_id"`
	EmployeeID     string  `json:"employee_id"`
	EmployeeName   string  `json:"employee_name,omitempty"`
	AttendanceDate string  `json:"attendance_date"`
	CheckIn        string  `json:"check_in"`
	CheckOut       *string `json:"check_out,omitempty"`
	BreakStart     *string `json:"break_start,omitempty"`
	BreakEnd       *string `json:"break_end,omitempty"`
	Status         string  `json:"status"`
	TotalHours     float64 `json:"total_hours"`
	OvertimeHours  float64 `json:"overtime_hours"`
	SyncState      string  `json:"sync_state"`
	Notes          *string `json:"notes,omitempty"`
}

// TodayResponse is the live view backing a running clock display. PendingSync
// is the queue depth feeding the "N pending sync" indicator.
type TodayResponse struct {
	Attendance   *AttendanceResponse `json:"attendance"`
	IsClockedIn  bool                `json:"is_clocked_in"`
	IsOnBreak    bool                `json:"is_on_break"`
	CurrentHours float64             `json:"current_hours"`
	PendingSync  int64               `json:"pending_sync"`
}
