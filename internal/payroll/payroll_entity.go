package payroll

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Payroll struct {
	ID         uuid.UUID    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CompanyID  uuid.UUID    `gorm:"type:uuid;not null;index:idx_company_status"`
	EmployeeID uuid.UUID    `gorm:"type:uuid;not null;index:idx_employee_period,unique"`
	Employee   *EmployeeRef `gorm:"foreignKey:EmployeeID;references:ID"`

	PeriodStart time.Time `gorm:"type:date;not null;index:idx_employee_period,unique"`
	PeriodEnd   time.Time `gorm:"type:date;not null;index:idx_employee_period,unique"`

	// Amounts are stored in the smallest currency unit to avoid float error.
	GrossPay   int64 `gorm:"type:bigint;not null;default:0"`
	Deductions int64 `gorm:"type:bigint;not null;default:0"`
	NetPay     int64 `gorm:"type:bigint;not null;default:0"`

	Status        string     `gorm:"type:varchar(20);not null;default:'DRAFT';index:idx_company_status"`
	PaymentDate   *time.Time `gorm:"index"`
	PaymentMethod *string    `gorm:"type:varchar(40)"`
	CreatedBy     uuid.UUID  `gorm:"type:uuid;not null"`
	ApprovedBy    *uuid.UUID `gorm:"type:uuid"`
	ApprovedAt    *time.Time `gorm:"index"`

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`

	Items []PayrollItem `gorm:"foreignKey:PayrollID"`
}

// PayrollItem is one pay line. Position preserves operator entry order.
type PayrollItem struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PayrollID   uuid.UUID `gorm:"type:uuid;not null;index"`
	CompanyID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Position    int       `gorm:"type:int;not null;default:0"`
	ItemType    string    `gorm:"type:varchar(20);not null;index"`
	Description string    `gorm:"type:varchar(120);not null"`
	Amount      int64     `gorm:"type:bigint;not null;default:0"`
	Taxable     bool      `gorm:"not null;default:false"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type EmployeeRef struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	FullName string    `gorm:"column:full_name"`
}

func (EmployeeRef) TableName() string {
	return "employees"
}
