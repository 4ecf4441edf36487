package payroll

import (
	"context"
	"database/sql"
	"time"

	"gorm.io/gorm"

	"go-timeclock/internal/shared/connection"
)

type PayrollQueryFilter struct {
	Status     string
	EmployeeID string
}

//go:generate mockgen -source=payroll_repo.go -destination=mock/payroll_repo_mock.go -package=mock
type Repository interface {
	WithTx(tx *sql.Tx) Repository
	Create(ctx context.Context, p *Payroll) error
	FindAllByCompany(ctx context.Context, companyID string, filter PayrollQueryFilter) ([]Payroll, error)
	FindByIDAndCompany(ctx context.Context, companyID, id string) (*Payroll, error)
	ReplaceItems(ctx context.Context, companyID, payrollID string, items []PayrollItem) error
	Update(ctx context.Context, p *Payroll) error
	Delete(ctx context.Context, companyID, id string) error
	EmployeeBelongsToCompany(ctx context.Context, companyID, employeeID string) (bool, error)
	HasOverlappingPeriod(ctx context.Context, companyID, employeeID string, periodStart, periodEnd time.Time, excludePayrollID *string) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// WithTx returns a repository whose statements run on the caller's
// transaction, so service-level rollbacks undo repository writes too.
func (r *repository) WithTx(tx *sql.Tx) Repository {
	return &repository{db: connection.GormOverTx(r.db, tx)}
}

func (r *repository) Create(ctx context.Context, p *Payroll) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *repository) FindAllByCompany(ctx context.Context, companyID string, filter PayrollQueryFilter) ([]Payroll, error) {
	var rows []Payroll
	q := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("company_id = ?", companyID)

	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.EmployeeID != "" {
		q = q.Where("employee_id = ?", filter.EmployeeID)
	}

	err := q.Order("period_start DESC").Find(&rows).Error
	return rows, err
}

func (r *repository) FindByIDAndCompany(ctx context.Context, companyID, id string) (*Payroll, error) {
	var p Payroll
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("company_id = ?", companyID).
		Where("id = ?", id).
		First(&p).Error
	return &p, err
}

func (r *repository) ReplaceItems(ctx context.Context, companyID, payrollID string, items []PayrollItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("company_id = ?", companyID).
			Where("payroll_id = ?", payrollID).
			Delete(&PayrollItem{}).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		return tx.Create(&items).Error
	})
}

func (r *repository) Update(ctx context.Context, p *Payroll) error {
	return r.db.WithContext(ctx).Omit("Items").Save(p).Error
}

func (r *repository) Delete(ctx context.Context, companyID, id string) error {
	return r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Where("id = ?", id).
		Delete(&Payroll{}).Error
}

func (r *repository) EmployeeBelongsToCompany(ctx context.Context, companyID, employeeID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("employees").
		Where("company_id = ?", companyID).
		Where("id = ?", employeeID).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) HasOverlappingPeriod(ctx context.Context, companyID, employeeID string, periodStart, periodEnd time.Time, excludePayrollID *string) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).
		Model(&Payroll{}).
		Where("company_id = ?", companyID).
		Where("employee_id = ?", employeeID).
		Where("status <> ?", StatusCancelled).
		Where("period_start <= ? AND period_end >= ?",
			periodEnd.Format("2006-01-02"), periodStart.Format("2006-01-02"))

	if excludePayrollID != nil {
		q = q.Where("id <> ?", *excludePayrollID)
	}

	err := q.Count(&count).Error
	return count > 0, err
}
