package payroll

type PayrollItemRequest struct {
	Type        string `json:"type" binding:"required,oneof=SALARY OVERTIME BONUS COMMISSION ALLOWANCE DEDUCTION"`
	Description string `json:"description" binding:"required"`
	Amount      int64  `json:"amount" binding:"gte=0"`
	Taxable     bool   `json:"taxable"`
}

type CreatePayrollRequest struct {
	EmployeeID  string               `json:"employee_id" binding:"required,uuid"`
	PeriodStart string               `json:"period_start" binding:"required"`
	PeriodEnd   string               `json:"period_end" binding:"required"`
	Items       []PayrollItemRequest `json:"items" binding:"required,min=1,dive"`
}

type UpdatePayrollRequest struct {
	PeriodStart string               `json:"period_start" binding:"required"`
	PeriodEnd   string               `json:"period_end" binding:"required"`
	Items       []PayrollItemRequest `json:"items" binding:"required,min=1,dive"`
}

type ChangeStatusRequest struct {
	Status        string  `json:"status" binding:"required,oneof=APPROVED PAID CANCELLED"`
	PaymentDate   *string `json:"payment_date"`
	PaymentMethod *string `json:"payment_method"`
}

type GetPayrollsFilterRequest struct {
	Status     string `form:"status"`
	EmployeeID string `form:"employee_id"`
}

type PayrollItemResponse struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Amount      int64  `json:"amount"`
	Taxable     bool   `json:"taxable"`
}

type PayrollResponse struct {
	ID            string                `json:"id"`
	CompanyID     string                `json:"company_id"`
	EmployeeID    string                `json:"employee_id"`
	EmployeeName  string                `json:"employee_name,omitempty"`
	PeriodStart   string                `json:"period_start"`
	PeriodEnd     string                `json:"period_end"`
	Items         []PayrollItemResponse `json:"items"`
	GrossPay      int64                 `json:"gross_pay"`
	Deductions    int64                 `json:"deductions"`
	NetPay        int64                 `json:"net_pay"`
	Status        string                `json:"status"`
	PaymentDate   *string               `json:"payment_date,omitempty"`
	PaymentMethod *string               `json:"payment_method,omitempty"`
	CreatedBy     string                `json:"created_by"`
	ApprovedBy    *string               `json:"approved_by,omitempty"`
	ApprovedAt    *string               `json:"approved_at,omitempty"`
}

type WorkedHoursResponse struct {
	EmployeeID    string  `json:"employee_id"`
	Month         string  `json:"month"`
	WorkedHours   float64 `json:"worked_hours"`
	OvertimeHours float64 `json:"overtime_hours"`
	DaysPresent   int     `json:"days_present"`
}
