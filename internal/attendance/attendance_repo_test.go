package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestRepository_WithTxRunsOnCallerTransaction(t *testing.T) {
	poolConn, poolMock, err := sqlmock.New()
	assert.NoError(t, err)
	defer poolConn.Close()

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: poolConn}), &gorm.Config{})
	assert.NoError(t, err)

	txConn, txMock, err := sqlmock.New()
	assert.NoError(t, err)
	defer txConn.Close()

	txMock.ExpectBegin()
	txMock.ExpectExec(`UPDATE "attendance_days" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	txMock.ExpectCommit()

	tx, err := txConn.Begin()
	assert.NoError(t, err)

	day := &AttendanceDay{
		ID:             uuid.New(),
		CompanyID:      uuid.New(),
		EmployeeID:     uuid.New(),
		AttendanceDate: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		CheckIn:        time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		Status:         StatusPresent,
		SyncState:      SyncLocal,
	}

	repo := NewRepository(gormDB)
	assert.NoError(t, repo.WithTx(tx).Update(context.Background(), day))

	assert.NoError(t, tx.Commit())
	assert.NoError(t, txMock.ExpectationsWereMet())

	// The pool connection never saw the statement.
	assert.NoError(t, poolMock.ExpectationsWereMet())
}
