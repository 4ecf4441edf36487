package pendingaction

import (
	"context"
	"database/sql"
	"time"
)

//go:generate mockgen -source=pending_repo.go -destination=mock/pending_repo_mock.go -package=mock
type Repository interface {
	WithTx(tx *sql.Tx) Repository
	Enqueue(ctx context.Context, action PendingAction) error
	ListDue(ctx context.Context, limit int) ([]PendingAction, error)
	Claim(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, reason string) error
	ReclaimStale(ctx context.Context, olderThan time.Duration) (int64, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
	ListDead(ctx context.Context, limit int) ([]PendingAction, error)
}

type repository struct {
	db *sql.DB
	tx *sql.Tx
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *sql.Tx) Repository {
	return &repository{db: r.db, tx: tx}
}

func (r *repository) Enqueue(ctx context.Context, action PendingAction) error {
	query := `
        INSERT INTO pending_actions (
            id, employee_id, action_type, attendance_date, occurred_at,
            payload, retry_count, max_retries, next_retry_at, status
        ) VALUES ($1, $2, $3, $4, $5, $6, 0, $7, NOW(), $8)
    `

	maxRetries := action.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	exec := r.execer()
	_, err := exec.ExecContext(
		ctx, query,
		action.ID, action.EmployeeID, action.ActionType, action.AttendanceDate,
		action.OccurredAt, action.Payload, maxRetries, StatusPending,
	)
	return err
}

// ListDue returns replayable entries oldest first. FIFO order is what keeps
// a day's clock events causally ordered on the upstream side, so while an
// employee's oldest entry is claimed elsewhere or backing off, their younger
// entries stay hidden too.
func (r *repository) ListDue(ctx context.Context, limit int) ([]PendingAction, error) {
	query := `
SELECT
	p.id::text,
	p.employee_id::text,
	p.action_type,
	p.attendance_date,
	p.occurred_at,
	p.payload,
	p.retry_count,
	p.max_retries,
	COALESCE(p.next_retry_at, p.created_at),
	p.status,
	p.last_error,
	p.created_at
FROM pending_actions p
WHERE p.status = $1
	AND (p.next_retry_at IS NULL OR p.next_retry_at <= NOW())
	AND NOT EXISTS (
		SELECT 1 FROM pending_actions q
		WHERE q.employee_id = p.employee_id
			AND q.created_at < p.created_at
			AND (q.status = $2
				OR (q.status = $1 AND q.next_retry_at > NOW()))
	)
ORDER BY p.created_at ASC
LIMIT $3
`

	rows, err := r.db.QueryContext(ctx, query, StatusPending, StatusInProgress, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanActions(rows, limit)
}

// Claim flips a pending entry to in_progress. It returns false when another
// drainer got there first, so one entry is never replayed twice concurrently.
func (r *repository) Claim(ctx context.Context, id string) (bool, error) {
	query := `
UPDATE pending_actions
SET status = $2, updated_at = NOW()
WHERE id = $1 AND status = $3
`
	res, err := r.db.ExecContext(ctx, query, id, StatusInProgress, StatusPending)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM pending_actions WHERE id = $1`, id)
	return err
}

// MarkFailed releases a claimed entry back to the queue with a backoff, or
// parks it as dead once the retry budget is spent.
func (r *repository) MarkFailed(ctx context.Context, id string, reason string) error {
	query := `
UPDATE pending_actions
SET
	retry_count = retry_count + 1,
	last_error = LEFT($2, 500),
	status = CASE WHEN retry_count + 1 > max_retries THEN $3 ELSE $4 END,
	next_retry_at = NOW() + (LEAST(retry_count + 1, 10) * INTERVAL '15 seconds'),
	updated_at = NOW()
WHERE id = $1
`
	_, err := r.db.ExecContext(ctx, query, id, reason, StatusDead, StatusPending)
	return err
}

// ReclaimStale returns in_progress entries abandoned by a crashed drainer to
// the queue, so every entry is eventually replayed or dead-lettered.
func (r *repository) ReclaimStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
UPDATE pending_actions
SET status = $1, updated_at = NOW()
WHERE status = $2
	AND updated_at < NOW() - ($3 * INTERVAL '1 second')
`
	res, err := r.db.ExecContext(ctx, query, StatusPending, StatusInProgress, int64(olderThan.Seconds()))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *repository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM pending_actions GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int64{}
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *repository) ListDead(ctx context.Context, limit int) ([]PendingAction, error) {
	query := `
SELECT
	id::text,
	employee_id::text,
	action_type,
	attendance_date,
	occurred_at,
	payload,
	retry_count,
	max_retries,
	COALESCE(next_retry_at, created_at),
	status,
	last_error,
	created_at
FROM pending_actions
WHERE status = $1
ORDER BY created_at ASC
LIMIT $2
`
	rows, err := r.db.QueryContext(ctx, query, StatusDead, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanActions(rows, limit)
}

func scanActions(rows *sql.Rows, capacity int) ([]PendingAction, error) {
	actions := make([]PendingAction, 0, capacity)
	for rows.Next() {
		var a PendingAction
		var lastErr sql.NullString
		if err := rows.Scan(
			&a.ID,
			&a.EmployeeID,
			&a.ActionType,
			&a.AttendanceDate,
			&a.OccurredAt,
			&a.Payload,
			&a.RetryCount,
			&a.MaxRetries,
			&a.NextRetryAt,
			&a.Status,
			&lastErr,
			&a.CreatedAt,
		); err != nil {
			return nil, err
		}
		if lastErr.Valid {
			a.LastError = &lastErr.String
		}
		actions = append(actions, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return actions, nil
}

func (r *repository) execer() interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
} {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}
