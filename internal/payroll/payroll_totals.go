package payroll

// Item types
const (
	ItemSalary     = "SALARY"
	ItemOvertime   = "OVERTIME"
	ItemBonus      = "BONUS"
	ItemCommission = "COMMISSION"
	ItemAllowance  = "ALLOWANCE"
	ItemDeduction  = "DEDUCTION"
)

// Statuses
const (
	StatusDraft     = "DRAFT"
	StatusApproved  = "APPROVED"
	StatusPaid      = "PAID"
	StatusCancelled = "CANCELLED"
)

type Totals struct {
	GrossPay   int64
	Deductions int64
	NetPay     int64
}

// ComputeTotals derives the stored aggregates from the item list. Gross pay
// deliberately sums every item INCLUDING deduction lines; that is the
// established business rule here, so net = gross - deductions, not
// gross - 2*deductions. Totals are recomputed whenever items change and are
// never accepted from the client.
func ComputeTotals(items []PayrollItem) Totals {
	var t Totals
	for _, item := range items {
		t.GrossPay += item.Amount
		if item.ItemType == ItemDeduction {
			t.Deductions += item.Amount
		}
	}
	t.NetPay = t.GrossPay - t.Deductions
	return t
}

func ValidItemType(t string) bool {
	switch t {
	case ItemSalary, ItemOvertime, ItemBonus, ItemCommission, ItemAllowance, ItemDeduction:
		return true
	default:
		return false
	}
}

// isAllowedStatusTransition encodes the forward-only lifecycle:
// DRAFT -> APPROVED -> PAID, with CANCELLED reachable from any non-terminal
// state. PAID and CANCELLED are terminal.
func isAllowedStatusTransition(currentStatus, targetStatus string) bool {
	switch currentStatus {
	case StatusDraft:
		return targetStatus == StatusApproved || targetStatus == StatusCancelled
	case StatusApproved:
		return targetStatus == StatusPaid || targetStatus == StatusCancelled
	default:
		return false
	}
}
