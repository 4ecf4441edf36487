package attendance

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	attendanceerrors "go-timeclock/internal/attendance/errors"
	"go-timeclock/internal/messaging/kafka"
	"go-timeclock/internal/pendingaction"
	"go-timeclock/internal/shared/apperror"
	"go-timeclock/internal/upstream"
)

type fakeRepo struct {
	saved *AttendanceDay
}

func (f *fakeRepo) WithTx(tx *sql.Tx) Repository { return f }
func (f *fakeRepo) Create(ctx context.Context, a *AttendanceDay) error {
	copied := *a
	f.saved = &copied
	return nil
}
func (f *fakeRepo) FindByEmployeeAndDate(ctx context.Context, companyID, employeeID string, date time.Time) (*AttendanceDay, error) {
	if f.saved == nil {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *f.saved
	return &copied, nil
}
func (f *fakeRepo) FindByIDAndCompany(ctx context.Context, companyID, id string) (*AttendanceDay, error) {
	if f.saved == nil || f.saved.ID.String() != id {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *f.saved
	return &copied, nil
}
func (f *fakeRepo) FindAllByCompany(ctx context.Context, companyID string) ([]AttendanceDay, error) {
	if f.saved == nil {
		return nil, nil
	}
	return []AttendanceDay{*f.saved}, nil
}
func (f *fakeRepo) FindAllByCompanyAndEmployee(ctx context.Context, companyID, employeeID string) ([]AttendanceDay, error) {
	return f.FindAllByCompany(ctx, companyID)
}
func (f *fakeRepo) Update(ctx context.Context, a *AttendanceDay) error {
	copied := *a
	f.saved = &copied
	return nil
}

type fakePendingRepo struct {
	enqueued []pendingaction.PendingAction
}

func (f *fakePendingRepo) WithTx(tx *sql.Tx) pendingaction.Repository { return f }
func (f *fakePendingRepo) Enqueue(ctx context.Context, a pendingaction.PendingAction) error {
	f.enqueued = append(f.enqueued, a)
	return nil
}
func (f *fakePendingRepo) ListDue(ctx context.Context, limit int) ([]pendingaction.PendingAction, error) {
	return f.enqueued, nil
}
func (f *fakePendingRepo) Claim(ctx context.Context, id string) (bool, error) { return true, nil }
func (f *fakePendingRepo) Delete(ctx context.Context, id string) error        { return nil }
func (f *fakePendingRepo) MarkFailed(ctx context.Context, id, reason string) error {
	return nil
}
func (f *fakePendingRepo) ReclaimStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	return 0, nil
}
func (f *fakePendingRepo) CountByStatus(ctx context.Context) (map[string]int64, error) {
	return map[string]int64{pendingaction.StatusPending: int64(len(f.enqueued))}, nil
}
func (f *fakePendingRepo) ListDead(ctx context.Context, limit int) ([]pendingaction.PendingAction, error) {
	return nil, nil
}

type fakeUpstream struct {
	pushErr   error
	revokeErr error
	pushed    []upstream.AttendanceAction
}

func (f *fakeUpstream) PushAttendanceAction(ctx context.Context, a upstream.AttendanceAction) error {
	f.pushed = append(f.pushed, a)
	return f.pushErr
}
func (f *fakeUpstream) RevokeAttendance(ctx context.Context, attendanceID string) error {
	return f.revokeErr
}
func (f *fakeUpstream) SubmitPayroll(ctx context.Context, sub upstream.PayrollSubmission) error {
	return nil
}

type fakeOutbox struct {
	created []kafka.OutboxEvent
}

func (f *fakeOutbox) WithTx(tx *sql.Tx) kafka.OutboxRepository { return f }
func (f *fakeOutbox) Create(ctx context.Context, e kafka.OutboxEvent) error {
	f.created = append(f.created, e)
	return nil
}
func (f *fakeOutbox) ListPending(ctx context.Context, limit int) ([]kafka.OutboxEvent, error) {
	return nil, nil
}
func (f *fakeOutbox) MarkSent(ctx context.Context, id string) error           { return nil }
func (f *fakeOutbox) MarkFailed(ctx context.Context, id, reason string) error { return nil }

func strPtr(v string) *string { return &v }

func TestService_FullDaySequence(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	companyID := uuid.New().String()
	employeeID := uuid.New().String()
	ctx := context.Background()

	repo := &fakeRepo{}
	pending := &fakePendingRepo{}
	client := &fakeUpstream{}
	outbox := &fakeOutbox{}

	svc := NewService(db, repo, pending, outbox, client, time.Nanosecond)

	mock.ExpectBegin()
	mock.ExpectCommit()
	inResp, err := svc.ClockIn(ctx, companyID, employeeID, ClockActionRequest{Timestamp: strPtr("2026-03-02T09:00:00Z")})
	assert.NoError(t, err)
	assert.Equal(t, StatusPresent, inResp.Status)
	assert.Equal(t, SyncSynced, inResp.SyncState)

	mock.ExpectBegin()
	mock.ExpectCommit()
	bsResp, err := svc.BreakStart(ctx, companyID, employeeID, ClockActionRequest{Timestamp: strPtr("2026-03-02T12:00:00Z")})
	assert.NoError(t, err)
	assert.NotNil(t, bsResp.BreakStart)

	mock.ExpectBegin()
	mock.ExpectCommit()
	_, err = svc.BreakEnd(ctx, companyID, employeeID, ClockActionRequest{Timestamp: strPtr("2026-03-02T12:30:00Z")})
	assert.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()
	outResp, err := svc.ClockOut(ctx, companyID, employeeID, ClockActionRequest{Timestamp: strPtr("2026-03-02T17:00:00Z")})
	assert.NoError(t, err)
	assert.NotNil(t, outResp.CheckOut)
	assert.InDelta(t, 7.5, outResp.TotalHours, 0.0001)
	assert.Equal(t, 0.0, outResp.OvertimeHours)

	// Closing the day writes exactly one outbox event.
	assert.Len(t, outbox.created, 1)
	assert.Equal(t, "attendance.day.closed", outbox.created[0].EventType)

	assert.Len(t, client.pushed, 4)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_ClockIn_Duplicate(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	companyID := uuid.New().String()
	employeeID := uuid.New().String()
	ctx := context.Background()

	repo := &fakeRepo{}
	svc := NewService(db, repo, &fakePendingRepo{}, nil, &fakeUpstream{}, time.Nanosecond)

	mock.ExpectBegin()
	mock.ExpectCommit()
	_, err := svc.ClockIn(ctx, companyID, employeeID, ClockActionRequest{Timestamp: strPtr("2026-03-02T08:00:00Z")})
	assert.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err = svc.ClockIn(ctx, companyID, employeeID, ClockActionRequest{Timestamp: strPtr("2026-03-02T08:05:00Z")})
	assert.ErrorIs(t, err, attendanceerrors.ErrAlreadyClockedIn)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_ClockIn_LateAfterGrace(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	svc := NewService(db, &fakeRepo{}, &fakePendingRepo{}, nil, &fakeUpstream{}, time.Nanosecond)

	mock.ExpectBegin()
	mock.ExpectCommit()
	resp, err := svc.ClockIn(context.Background(), uuid.New().String(), uuid.New().String(),
		ClockActionRequest{Timestamp: strPtr("2026-03-02T09:16:00Z")})
	assert.NoError(t, err)
	assert.Equal(t, StatusLate, resp.Status)
}

func TestService_BreakStart_RequiresClockIn(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	svc := NewService(db, &fakeRepo{}, &fakePendingRepo{}, nil, &fakeUpstream{}, time.Nanosecond)

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err := svc.BreakStart(context.Background(), uuid.New().String(), uuid.New().String(),
		ClockActionRequest{Timestamp: strPtr("2026-03-02T12:00:00Z")})
	assert.ErrorIs(t, err, attendanceerrors.ErrNotClockedIn)
}

func TestService_SecondBreakRejected(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	companyID := uuid.New().String()
	employeeID := uuid.New().String()
	ctx := context.Background()

	svc := NewService(db, &fakeRepo{}, &fakePendingRepo{}, nil, &fakeUpstream{}, time.Nanosecond)

	mock.ExpectBegin()
	mock.ExpectCommit()
	_, err := svc.ClockIn(ctx, companyID, employeeID, ClockActionRequest{Timestamp: strPtr("2026-03-02T09:00:00Z")})
	assert.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()
	_, err = svc.BreakStart(ctx, companyID, employeeID, ClockActionRequest{Timestamp: strPtr("2026-03-02T12:00:00Z")})
	assert.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()
	_, err = svc.BreakEnd(ctx, companyID, employeeID, ClockActionRequest{Timestamp: strPtr("2026-03-02T12:30:00Z")})
	assert.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err = svc.BreakStart(ctx, companyID, employeeID, ClockActionRequest{Timestamp: strPtr("2026-03-02T15:00:00Z")})
	assert.ErrorIs(t, err, attendanceerrors.ErrBreakAlreadyTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_OutOfOrderTimestampRejected(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	companyID := uuid.New().String()
	employeeID := uuid.New().String()
	ctx := context.Background()

	svc := NewService(db, &fakeRepo{}, &fakePendingRepo{}, nil, &fakeUpstream{}, time.Nanosecond)

	mock.ExpectBegin()
	mock.ExpectCommit()
	_, err := svc.ClockIn(ctx, companyID, employeeID, ClockActionRequest{Timestamp: strPtr("2026-03-02T09:00:00Z")})
	assert.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err = svc.ClockOut(ctx, companyID, employeeID, ClockActionRequest{Timestamp: strPtr("2026-03-02T08:30:00Z")})
	assert.ErrorIs(t, err, attendanceerrors.ErrTimestampOutOfOrder)
}

func TestService_Cooldown_SecondActionRejected(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	companyID := uuid.New().String()
	employeeID := uuid.New().String()
	ctx := context.Background()

	svc := NewService(db, &fakeRepo{}, &fakePendingRepo{}, nil, &fakeUpstream{}, time.Hour)

	mock.ExpectBegin()
	mock.ExpectCommit()
	_, err := svc.ClockIn(ctx, companyID, employeeID, ClockActionRequest{Timestamp: strPtr("2026-03-02T09:00:00Z")})
	assert.NoError(t, err)

	// Repeating the same action type inside the window is throttled before
	// any transaction opens.
	_, err = svc.ClockIn(ctx, companyID, employeeID, ClockActionRequest{Timestamp: strPtr("2026-03-02T09:00:05Z")})
	assert.Error(t, err)

	var appErr *apperror.AppError
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperror.CodeRateLimited, appErr.Code)
	assert.Equal(t, 429, appErr.HTTPStatus)

	// A different action type has its own window.
	mock.ExpectBegin()
	mock.ExpectCommit()
	_, err = svc.ClockOut(ctx, companyID, employeeID, ClockActionRequest{Timestamp: strPtr("2026-03-02T17:00:00Z")})
	assert.NoError(t, err)

	// A different employee is not throttled by the first one's cooldown.
	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err = svc.ClockIn(ctx, companyID, uuid.New().String(), ClockActionRequest{Timestamp: strPtr("2026-03-02T09:00:00Z")})
	assert.ErrorIs(t, err, attendanceerrors.ErrAlreadyClockedIn)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_OfflineFallbackQueuesAction(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	companyID := uuid.New().String()
	employeeID := uuid.New().String()
	ctx := context.Background()

	pending := &fakePendingRepo{}
	client := &fakeUpstream{pushErr: upstream.ErrUnavailable}
	svc := NewService(db, &fakeRepo{}, pending, nil, client, time.Nanosecond)

	mock.ExpectBegin()
	mock.ExpectCommit()
	resp, err := svc.ClockIn(ctx, companyID, employeeID, ClockActionRequest{Timestamp: strPtr("2026-03-02T09:00:00Z")})
	assert.NoError(t, err)
	assert.Equal(t, SyncLocal, resp.SyncState)

	assert.Len(t, pending.enqueued, 1)
	assert.Equal(t, pendingaction.ActionClockIn, pending.enqueued[0].ActionType)
	assert.Equal(t, employeeID, pending.enqueued[0].EmployeeID)
	assert.Equal(t, "2026-03-02", pending.enqueued[0].AttendanceDate)

	// The queue depth shows up on the live view.
	svcImpl := svc.(*service)
	svcImpl.nowFn = func() time.Time { return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) }
	today, err := svcImpl.GetToday(ctx, companyID, employeeID)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), today.PendingSync)
}

func TestService_DuplicateUpstreamTreatedAsSynced(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	pending := &fakePendingRepo{}
	client := &fakeUpstream{pushErr: upstream.ErrDuplicate}
	svc := NewService(db, &fakeRepo{}, pending, nil, client, time.Nanosecond)

	mock.ExpectBegin()
	mock.ExpectCommit()
	resp, err := svc.ClockIn(context.Background(), uuid.New().String(), uuid.New().String(),
		ClockActionRequest{Timestamp: strPtr("2026-03-02T09:00:00Z")})
	assert.NoError(t, err)
	assert.Equal(t, SyncSynced, resp.SyncState)
	assert.Empty(t, pending.enqueued)
}

func TestService_UpstreamRejectionMarksConflict(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	repo := &fakeRepo{}
	client := &fakeUpstream{pushErr: upstream.ErrRejected}
	svc := NewService(db, repo, &fakePendingRepo{}, nil, client, time.Nanosecond)

	mock.ExpectBegin()
	mock.ExpectCommit()
	_, err := svc.ClockIn(context.Background(), uuid.New().String(), uuid.New().String(),
		ClockActionRequest{Timestamp: strPtr("2026-03-02T09:00:00Z")})
	assert.ErrorIs(t, err, upstream.ErrRejected)
	assert.Equal(t, SyncConflict, repo.saved.SyncState)
}

func TestService_RevokeClockOut(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	companyID := uuid.New().String()
	employeeID := uuid.New().String()
	ctx := context.Background()

	repo := &fakeRepo{}
	svc := NewService(db, repo, &fakePendingRepo{}, nil, &fakeUpstream{}, time.Nanosecond)

	mock.ExpectBegin()
	mock.ExpectCommit()
	_, err := svc.ClockIn(ctx, companyID, employeeID, ClockActionRequest{Timestamp: strPtr("2026-03-02T09:00:00Z")})
	assert.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()
	_, err = svc.ClockOut(ctx, companyID, employeeID, ClockActionRequest{Timestamp: strPtr("2026-03-02T17:00:00Z")})
	assert.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()
	resp, err := svc.RevokeClockOut(ctx, companyID, repo.saved.ID.String())
	assert.NoError(t, err)
	assert.Nil(t, resp.CheckOut)
	assert.Equal(t, 0.0, resp.TotalHours)

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err = svc.RevokeClockOut(ctx, companyID, repo.saved.ID.String())
	assert.ErrorIs(t, err, attendanceerrors.ErrNoClockOutToRevoke)
}

func TestService_GetToday_ComputesLiveHours(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	companyID := uuid.New().String()
	employeeID := uuid.New().String()
	ctx := context.Background()

	repo := &fakeRepo{}
	svc := NewService(db, repo, &fakePendingRepo{}, nil, &fakeUpstream{}, time.Nanosecond).(*service)

	now := time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC)
	svc.nowFn = func() time.Time { return now }

	mock.ExpectBegin()
	mock.ExpectCommit()
	_, err := svc.ClockIn(ctx, companyID, employeeID, ClockActionRequest{Timestamp: strPtr("2026-03-02T09:00:00Z")})
	assert.NoError(t, err)

	today, err := svc.GetToday(ctx, companyID, employeeID)
	assert.NoError(t, err)
	assert.True(t, today.IsClockedIn)
	assert.False(t, today.IsOnBreak)
	assert.InDelta(t, 4.0, today.CurrentHours, 0.0001)
}

func TestService_GetToday_NoRecord(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer db.Close()

	svc := NewService(db, &fakeRepo{}, &fakePendingRepo{}, nil, &fakeUpstream{}, time.Nanosecond)

	today, err := svc.GetToday(context.Background(), uuid.New().String(), uuid.New().String())
	assert.NoError(t, err)
	assert.Nil(t, today.Attendance)
	assert.False(t, today.IsClockedIn)
}
