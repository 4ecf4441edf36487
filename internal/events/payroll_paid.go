package events

import "time"

const PayrollPaidTopic = "timeclock.payroll.paid.v1"

type PayrollPaidEvent struct {
	EventType   string    `json:"event_type"`
	PayrollID   string    `json:"payroll_id"`
	EmployeeID  string    `json:"employee_id"`
	CompanyID   string    `json:"company_id"`
	PeriodStart string    `json:"period_start"`
	PeriodEnd   string    `json:"period_end"`
	NetPay      int64     `json:"net_pay"`
	OccurredAt  time.Time `json:"occurred_at"`
}
