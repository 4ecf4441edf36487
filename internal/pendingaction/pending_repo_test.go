package pendingaction

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRepository_ListDueHoldsBackEmployeesWithBlockedOlderEntries(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	id := uuid.New().String()
	employeeID := uuid.New().String()

	// The employee-barrier subquery is part of the FIFO contract: an entry
	// only lists when no older entry of the same employee is claimed or
	// backing off.
	mock.ExpectQuery(`NOT EXISTS`).
		WithArgs(StatusPending, StatusInProgress, 10).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "employee_id", "action_type", "attendance_date", "occurred_at",
			"payload", "retry_count", "max_retries", "next_retry_at", "status",
			"last_error", "created_at",
		}).AddRow(
			id, employeeID, ActionClockIn, "2026-03-02", now,
			[]byte(`{}`), 0, DefaultMaxRetries, now, StatusPending,
			nil, now,
		))

	repo := NewRepository(db)
	actions, err := repo.ListDue(context.Background(), 10)

	assert.NoError(t, err)
	assert.Len(t, actions, 1)
	assert.Equal(t, id, actions[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ReclaimStaleReturnsClaimsToQueue(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE pending_actions`).
		WithArgs(StatusPending, StatusInProgress, int64(300)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	repo := NewRepository(db)
	n, err := repo.ReclaimStale(context.Background(), 5*time.Minute)

	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
