package timesheet

import (
	"time"

	"github.com/google/uuid"
)

// Summary is a per-employee per-month rollup of closed attendance days,
// maintained by the day-closed consumer and read by payroll.
type Summary struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey;default:gen_random_uuid()"`
	CompanyID     uuid.UUID `gorm:"column:company_id;type:uuid;not null;uniqueIndex:uq_timesheet_month"`
	EmployeeID    uuid.UUID `gorm:"column:employee_id;type:uuid;not null;uniqueIndex:uq_timesheet_month"`
	Month         string    `gorm:"column:month;type:varchar(7);not null;uniqueIndex:uq_timesheet_month"`
	WorkedHours   float64   `gorm:"column:worked_hours;not null;default:0"`
	OvertimeHours float64   `gorm:"column:overtime_hours;not null;default:0"`
	DaysPresent   int       `gorm:"column:days_present;not null;default:0"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (Summary) TableName() string {
	return "timesheet_summaries"
}
