package timesheet

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockRepo(t *testing.T) (Repository, sqlmock.Sqlmock) {
	conn, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), &gorm.Config{})
	assert.NoError(t, err)

	return NewRepository(db), mock
}

func TestRepository_FoldClosedDay_FirstFoldCountsTheDay(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT worked_hours, overtime_hours\s+FROM timesheet_days`).
		WillReturnRows(sqlmock.NewRows([]string{"worked_hours", "overtime_hours"}))
	mock.ExpectExec(`INSERT INTO timesheet_days`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO timesheet_summaries`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.FoldClosedDay(context.Background(),
		uuid.New().String(), uuid.New().String(), "2026-03", uuid.New().String(),
		7.5, 0)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_FoldClosedDay_RefoldAdjustsByDelta(t *testing.T) {
	repo, mock := newMockRepo(t)

	companyID := uuid.New().String()
	employeeID := uuid.New().String()
	attendanceID := uuid.New().String()

	// The day already contributed 8.0h; closing it again at 7.5h must shift
	// the rollup by -0.5h and leave days_present alone.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT worked_hours, overtime_hours\s+FROM timesheet_days`).
		WillReturnRows(sqlmock.NewRows([]string{"worked_hours", "overtime_hours"}).
			AddRow(8.0, 0.0))
	mock.ExpectExec(`UPDATE timesheet_days`).
		WithArgs(7.5, 0.0, attendanceID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE timesheet_summaries`).
		WithArgs(-0.5, 0.0, companyID, employeeID, "2026-03").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.FoldClosedDay(context.Background(),
		companyID, employeeID, "2026-03", attendanceID,
		7.5, 0)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
