package attendance

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Day statuses
const (
	StatusPresent  = "PRESENT"
	StatusAbsent   = "ABSENT"
	StatusLate     = "LATE"
	StatusHalfDay  = "HALF_DAY"
	StatusSick     = "SICK"
	StatusVacation = "VACATION"
	StatusHoliday  = "HOLIDAY"
)

// Reconciliation states against the upstream HR system
const (
	SyncLocal    = "LOCAL"
	SyncSynced   = "SYNCED"
	SyncConflict = "CONFLICT"
)

// AttendanceDay is one employee's clock record for one calendar date. The
// unique index on (employee_id, attendance_date) is what makes concurrent
// clock-ins from two sessions safe: the second insert loses.
type AttendanceDay struct {
	ID             uuid.UUID      `gorm:"column:id;type:uuid;primaryKey;default:gen_random_uuid()"`
	CompanyID      uuid.UUID      `gorm:"column:company_id;type:uuid;not null;index"`
	EmployeeID     uuid.UUID      `gorm:"column:employee_id;type:uuid;not null;uniqueIndex:uq_employee_day"`
	AttendanceDate time.Time      `gorm:"column:attendance_date;type:date;not null;uniqueIndex:uq_employee_day"`
	CheckIn        time.Time      `gorm:"column:check_in;type:timestamptz;not null"`
	CheckOut       *time.Time     `gorm:"column:check_out;type:timestamptz"`
	BreakStart     *time.Time     `gorm:"column:break_start;type:timestamptz"`
	BreakEnd       *time.Time     `gorm:"column:break_end;type:timestamptz"`
	Status         string         `gorm:"column:status;type:varchar(20);not null;default:PRESENT"`
	TotalHours     float64        `gorm:"column:total_hours;not null;default:0"`
	OvertimeHours  float64        `gorm:"column:overtime_hours;not null;default:0"`
	SyncState      string         `gorm:"column:sync_state;type:varchar(20);not null;default:LOCAL"`
	Notes          *string        `gorm:"column:notes;type:text"`
	CreatedAt      time.Time      `gorm:"column:created_at"`
	UpdatedAt      time.Time      `gorm:"column:updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"column:deleted_at;index"`
	Employee       *EmployeeRef   `gorm:"foreignKey:EmployeeID;references:ID"`
}

func (AttendanceDay) TableName() string {
	return "attendance_days"
}

// IsClockedIn holds iff check-in is set and check-out is not.
func (a *AttendanceDay) IsClockedIn() bool {
	return !a.CheckIn.IsZero() && a.CheckOut == nil
}

// IsOnBreak holds iff a break is open; only meaningful while clocked in.
func (a *AttendanceDay) IsOnBreak() bool {
	return a.BreakStart != nil && a.BreakEnd == nil
}

// LastEventAt returns the newest recorded timestamp of the day. New events
// must not be older than this.
func (a *AttendanceDay) LastEventAt() time.Time {
	last := a.CheckIn
	for _, t := range []*time.Time{a.BreakStart, a.BreakEnd, a.CheckOut} {
		if t != nil && t.After(last) {
			last = *t
		}
	}
	return last
}

type EmployeeRef struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	FullName string    `gorm:"column:full_name"`
}

func (EmployeeRef) TableName() string {
	return "employees"
}
