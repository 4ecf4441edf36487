package timesheet

import (
	"context"

	"gorm.io/gorm"
)

//go:generate mockgen -destination=mock/timesheet_repo_mock.go -package=mock . Repository
type Repository interface {
	FoldClosedDay(ctx context.Context, companyID, employeeID, month, attendanceID string, workedHours, overtimeHours float64) error
	FindByEmployeeAndMonth(ctx context.Context, companyID, employeeID, month string) (*Summary, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// FoldClosedDay folds one closed attendance day into the month rollup,
// idempotently per attendance id: a redelivered event or a day that was
// revoked and closed again adjusts the summary by the delta instead of
// counting the day twice. timesheet_days records each day's last folded
// contribution; timesheet_summaries is the rollup payroll reads.
func (r *repository) FoldClosedDay(ctx context.Context, companyID, employeeID, month, attendanceID string, workedHours, overtimeHours float64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prev struct {
			WorkedHours   float64
			OvertimeHours float64
		}
		res := tx.Raw(`
			SELECT worked_hours, overtime_hours
			FROM timesheet_days
			WHERE attendance_id = ?
			FOR UPDATE
		`, attendanceID).Scan(&prev)
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			if err := tx.Exec(`
				INSERT INTO timesheet_days (attendance_id, company_id, employee_id, month, worked_hours, overtime_hours, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, now(), now())
			`, attendanceID, companyID, employeeID, month, workedHours, overtimeHours).Error; err != nil {
				return err
			}
			return tx.Exec(`
				INSERT INTO timesheet_summaries (company_id, employee_id, month, worked_hours, overtime_hours, days_present, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, 1, now(), now())
				ON CONFLICT (company_id, employee_id, month) DO UPDATE
				SET worked_hours = timesheet_summaries.worked_hours + EXCLUDED.worked_hours,
					overtime_hours = timesheet_summaries.overtime_hours + EXCLUDED.overtime_hours,
					days_present = timesheet_summaries.days_present + 1,
					updated_at = now()
			`, companyID, employeeID, month, workedHours, overtimeHours).Error
		}

		// Already folded once: apply the delta, day count unchanged.
		if err := tx.Exec(`
			UPDATE timesheet_days
			SET worked_hours = ?, overtime_hours = ?, updated_at = now()
			WHERE attendance_id = ?
		`, workedHours, overtimeHours, attendanceID).Error; err != nil {
			return err
		}
		return tx.Exec(`
			UPDATE timesheet_summaries
			SET worked_hours = worked_hours + ?,
				overtime_hours = overtime_hours + ?,
				updated_at = now()
			WHERE company_id = ? AND employee_id = ? AND month = ?
		`, workedHours-prev.WorkedHours, overtimeHours-prev.OvertimeHours, companyID, employeeID, month).Error
	})
}

func (r *repository) FindByEmployeeAndMonth(ctx context.Context, companyID, employeeID, month string) (*Summary, error) {
	var s Summary
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Where("employee_id = ?", employeeID).
		Where("month = ?", month).
		First(&s).Error
	return &s, err
}
