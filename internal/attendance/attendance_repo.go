package attendance

import (
	"context"
	"database/sql"
	"time"

	"gorm.io/gorm"

	"go-timeclock/internal/shared/connection"
)

//go:generate mockgen -source=attendance_repo.go -destination=mock/attendance_repo_mock.go -package=mock
type Repository interface {
	WithTx(tx *sql.Tx) Repository
	Create(ctx context.Context, a *AttendanceDay) error
	FindByEmployeeAndDate(ctx context.Context, companyID, employeeID string, date time.Time) (*AttendanceDay, error)
	FindByIDAndCompany(ctx context.Context, companyID, id string) (*AttendanceDay, error)
	FindAllByCompany(ctx context.Context, companyID string) ([]AttendanceDay, error)
	FindAllByCompanyAndEmployee(ctx context.Context, companyID, employeeID string) ([]AttendanceDay, error)
	Update(ctx context.Context, a *AttendanceDay) error
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

func (r *repository) Create(ctx context.Context, a *AttendanceDay) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *repository) FindByEmployeeAndDate(ctx context.Context, companyID, employeeID string, date time.Time) (*AttendanceDay, error) {
	var a AttendanceDay
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Where("employee_id = ?", employeeID).
		Where("attendance_date = ?", date.Format("2006-01-02")).
		First(&a).Error
	return &a, err
}

func (r *repository) FindByIDAndCompany(ctx context.Context, companyID, id string) (*AttendanceDay, error) {
	var a AttendanceDay
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Where("id = ?", id).
		First(&a).Error
	return &a, err
}

func (r *repository) FindAllByCompany(ctx context.Context, companyID string) ([]AttendanceDay, error) {
	var rows []AttendanceDay
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("attendance_date DESC, check_in DESC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) FindAllByCompanyAndEmployee(ctx context.Context, companyID, employeeID string) ([]AttendanceDay, error) {
	var rows []AttendanceDay
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Where("employee_id = ?", employeeID).
		Order("attendance_date DESC, check_in DESC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) Update(ctx context.Context, a *AttendanceDay) error {
	return r.db.WithContext(ctx).Save(a).Error
}
