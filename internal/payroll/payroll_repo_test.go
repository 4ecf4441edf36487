package payroll

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
	txMock.ExpectQuery(`SELECT count\(\*\) FROM "payrolls"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	txMock.ExpectRollback()

	tx, err := txConn.Begin()
	assert.NoError(t, err)

	repo := NewRepository(gormDB)
	overlap, err := repo.WithTx(tx).HasOverlappingPeriod(context.Background(),
		uuid.New().String(), uuid.New().String(),
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		nil,
	)
	assert.NoError(t, err)
	assert.True(t, overlap)

	assert.NoError(t, tx.Rollback())
	assert.NoError(t, txMock.ExpectationsWereMet())

	// The pool connection never saw the statement.
	assert.NoError(t, poolMock.ExpectationsWereMet())
}
