package attendance

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	attendanceerrors "go-timeclock/internal/attendance/errors"
	"go-timeclock/internal/events"
	"go-timeclock/internal/messaging/kafka"
	"go-timeclock/internal/pendingaction"
	"go-timeclock/internal/shared/contextutil"
	"go-timeclock/internal/upstream"
)

const DefaultCooldown = 30 * time.Second

//go:generate mockgen -source=attendance_service.go -destination=mock/attendance_service_mock.go -package=mock
type Service interface {
	ClockIn(ctx context.Context, companyID, employeeID string, req ClockActionRequest) (AttendanceResponse, error)
	ClockOut(ctx context.Context, companyID, employeeID string, req ClockActionRequest) (AttendanceResponse, error)
	BreakStart(ctx context.Context, companyID, employeeID string, req ClockActionRequest) (AttendanceResponse, error)
	BreakEnd(ctx context.Context, companyID, employeeID string, req ClockActionRequest) (AttendanceResponse, error)
	RevokeClockOut(ctx context.Context, companyID, id string) (AttendanceResponse, error)
	GetToday(ctx context.Context, companyID, employeeID string) (TodayResponse, error)
	GetAll(ctx context.Context, companyID, actorID string, canReadAll bool) ([]AttendanceResponse, error)
}

type service struct {
	db       *sql.DB
	repo     Repository
	pending  pendingaction.Repository
	outbox   kafka.OutboxRepository
	client   upstream.Client
	logger   *zap.Logger
	cooldown time.Duration
	nowFn    func() time.Time

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewService(
	db *sql.DB,
	repo Repository,
	pending pendingaction.Repository,
	outbox kafka.OutboxRepository,
	client upstream.Client,
	cooldown time.Duration,
	logger ...*zap.Logger,
) Service {
	l := zap.L().Named("attendance.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("attendance.service")
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &service{
		db:       db,
		repo:     repo,
		pending:  pending,
		outbox:   outbox,
		client:   client,
		logger:   l,
		cooldown: cooldown,
		nowFn:    func() time.Time { return time.Now().UTC() },
		limiters: make(map[string]*rate.Limiter),
	}
}

// checkCooldown guards against rapid repeat submissions of the same action
// type per employee; distinct actions (ending a break right after starting
// it) have their own windows. One token per cooldown window; the reservation
// delay becomes the wait hint.
func (s *service) checkCooldown(employeeID, actionType string) error {
	key := employeeID + ":" + actionType

	s.mu.Lock()
	limiter, ok := s.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(s.cooldown), 1)
		s.limiters[key] = limiter
	}
	s.mu.Unlock()

	reservation := limiter.Reserve()
	if wait := reservation.Delay(); wait > 0 {
		reservation.Cancel()
		return attendanceerrors.RateLimited(wait.Seconds())
	}
	return nil
}

func (s *service) resolveEventTime(req ClockActionRequest) (time.Time, error) {
	if req.Timestamp == nil || *req.Timestamp == "" {
		return s.nowFn(), nil
	}
	t, err := time.Parse(time.RFC3339, *req.Timestamp)
	if err != nil {
		return time.Time{}, attendanceerrors.ErrInvalidTimestamp
	}
	return t.UTC(), nil
}

func validateIDs(companyID, employeeID string) error {
	if _, err := uuid.Parse(companyID); err != nil {
		return attendanceerrors.ErrInvalidCompanyID
	}
	if _, err := uuid.Parse(employeeID); err != nil {
		return attendanceerrors.ErrInvalidEmployeeID
	}
	return nil
}

func isUniqueDayViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func (s *service) ClockIn(ctx context.Context, companyID, employeeID string, req ClockActionRequest) (AttendanceResponse, error) {
	if err := validateIDs(companyID, employeeID); err != nil {
		return AttendanceResponse{}, err
	}
	if err := s.checkCooldown(employeeID, pendingaction.ActionClockIn); err != nil {
		return AttendanceResponse{}, err
	}
	eventTime, err := s.resolveEventTime(req)
	if err != nil {
		return AttendanceResponse{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return AttendanceResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)
	today := eventTime.Truncate(24 * time.Hour)

	existing, err := qtx.FindByEmployeeAndDate(ctx, companyID, employeeID, today)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return AttendanceResponse{}, err
	}
	if err == nil && existing != nil {
		return AttendanceResponse{}, attendanceerrors.ErrAlreadyClockedIn
	}

	status := StatusPresent
	if eventTime.Hour() > 9 || (eventTime.Hour() == 9 && eventTime.Minute() > 15) {
		status = StatusLate
	}

	row := &AttendanceDay{
		ID:             uuid.New(),
		CompanyID:      uuid.MustParse(companyID),
		EmployeeID:     uuid.MustParse(employeeID),
		AttendanceDate: today,
		CheckIn:        eventTime,
		Status:         status,
		SyncState:      SyncLocal,
		Notes:          req.Notes,
	}

	if err := qtx.Create(ctx, row); err != nil {
		// The unique (employee_id, attendance_date) index is the
		// conditional write that loses the multi-session race cleanly.
		if isUniqueDayViolation(err) {
			return AttendanceResponse{}, attendanceerrors.ErrAlreadyClockedIn
		}
		return AttendanceResponse{}, err
	}
	if err := tx.Commit(); err != nil {
		return AttendanceResponse{}, err
	}

	if err := s.syncOrQueue(ctx, row, pendingaction.ActionClockIn, eventTime); err != nil {
		return AttendanceResponse{}, err
	}
	return mapToResponse(*row), nil
}

func (s *service) BreakStart(ctx context.Context, companyID, employeeID string, req ClockActionRequest) (AttendanceResponse, error) {
	return s.mutateToday(ctx, companyID, employeeID, req, pendingaction.ActionBreakStart,
		func(row *AttendanceDay, eventTime time.Time) error {
			if !row.IsClockedIn() {
				return attendanceerrors.ErrNotClockedIn
			}
			if row.IsOnBreak() {
				return attendanceerrors.ErrAlreadyOnBreak
			}
			// The day records a single break pair; a second break is
			// rejected rather than silently merged into the first.
			if row.BreakEnd != nil {
				return attendanceerrors.ErrBreakAlreadyTaken
			}
			row.BreakStart = &eventTime
			return nil
		})
}

func (s *service) BreakEnd(ctx context.Context, companyID, employeeID string, req ClockActionRequest) (AttendanceResponse, error) {
	return s.mutateToday(ctx, companyID, employeeID, req, pendingaction.ActionBreakEnd,
		func(row *AttendanceDay, eventTime time.Time) error {
			if !row.IsClockedIn() {
				return attendanceerrors.ErrNotClockedIn
			}
			if !row.IsOnBreak() {
				return attendanceerrors.ErrNotOnBreak
			}
			row.BreakEnd = &eventTime
			return nil
		})
}

func (s *service) ClockOut(ctx context.Context, companyID, employeeID string, req ClockActionRequest) (AttendanceResponse, error) {
	return s.mutateToday(ctx, companyID, employeeID, req, pendingaction.ActionClockOut,
		func(row *AttendanceDay, eventTime time.Time) error {
			if !row.IsClockedIn() {
				if row.CheckOut != nil {
					return attendanceerrors.ErrAlreadyClockedOut
				}
				return attendanceerrors.ErrNotClockedIn
			}
			// Clocking out mid-break closes the break at the same instant,
			// so no worked time before the break is lost.
			if row.IsOnBreak() {
				row.BreakEnd = &eventTime
			}
			row.CheckOut = &eventTime
			row.TotalHours = ComputeCurrentHours(row.CheckIn, row.BreakStart, row.BreakEnd, eventTime)
			row.OvertimeHours = OvertimeHours(row.TotalHours)
			if row.TotalHours < 4 && row.Status != StatusLate {
				row.Status = StatusHalfDay
			}
			return nil
		})
}

// mutateToday runs the shared transition plumbing: cooldown, timestamp
// resolution and ordering check, transactional update, day-closed outbox
// event, then upstream sync with offline fallback.
func (s *service) mutateToday(
	ctx context.Context,
	companyID, employeeID string,
	req ClockActionRequest,
	actionType string,
	transition func(row *AttendanceDay, eventTime time.Time) error,
) (AttendanceResponse, error) {
	if err := validateIDs(companyID, employeeID); err != nil {
		return AttendanceResponse{}, err
	}
	if err := s.checkCooldown(employeeID, actionType); err != nil {
		return AttendanceResponse{}, err
	}
	eventTime, err := s.resolveEventTime(req)
	if err != nil {
		return AttendanceResponse{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return AttendanceResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)
	today := eventTime.Truncate(24 * time.Hour)

	row, err := qtx.FindByEmployeeAndDate(ctx, companyID, employeeID, today)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return AttendanceResponse{}, attendanceerrors.ErrNotClockedIn
		}
		return AttendanceResponse{}, err
	}

	// Transitions are ordered by accepted events, not by the client's wall
	// clock; an older timestamp cannot rewrite history.
	if eventTime.Before(row.LastEventAt()) {
		return AttendanceResponse{}, attendanceerrors.ErrTimestampOutOfOrder
	}

	if err := transition(row, eventTime); err != nil {
		return AttendanceResponse{}, err
	}
	if req.Notes != nil {
		row.Notes = req.Notes
	}

	if err := qtx.Update(ctx, row); err != nil {
		return AttendanceResponse{}, err
	}

	if actionType == pendingaction.ActionClockOut && s.outbox != nil {
		if err := s.emitDayClosed(ctx, tx, row, eventTime); err != nil {
			return AttendanceResponse{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return AttendanceResponse{}, err
	}

	if err := s.syncOrQueue(ctx, row, actionType, eventTime); err != nil {
		return AttendanceResponse{}, err
	}
	return mapToResponse(*row), nil
}

// syncOrQueue reconciles a committed local transition with the upstream HR
// service. Unreachable upstream degrades to the durable queue; an active
// rejection marks the day conflicted and surfaces.
func (s *service) syncOrQueue(ctx context.Context, row *AttendanceDay, actionType string, eventTime time.Time) error {
	log := contextutil.GetLogger(ctx, s.logger)
	actionID := uuid.New().String()

	err := s.client.PushAttendanceAction(ctx, upstream.AttendanceAction{
		ActionID:   actionID,
		EmployeeID: row.EmployeeID.String(),
		ActionType: actionType,
		Date:       row.AttendanceDate.Format("2006-01-02"),
		OccurredAt: eventTime,
	})

	switch {
	case err == nil, upstream.IsDuplicate(err):
		row.SyncState = SyncSynced
	case upstream.IsUnavailable(err):
		payload, marshalErr := json.Marshal(upstream.AttendanceAction{
			ActionID:   actionID,
			EmployeeID: row.EmployeeID.String(),
			ActionType: actionType,
			Date:       row.AttendanceDate.Format("2006-01-02"),
			OccurredAt: eventTime,
		})
		if marshalErr != nil {
			return marshalErr
		}
		if enqueueErr := s.pending.Enqueue(ctx, pendingaction.PendingAction{
			ID:             actionID,
			EmployeeID:     row.EmployeeID.String(),
			ActionType:     actionType,
			AttendanceDate: row.AttendanceDate.Format("2006-01-02"),
			OccurredAt:     eventTime,
			Payload:        payload,
		}); enqueueErr != nil {
			return enqueueErr
		}
		log.Warn("attendance action applied offline, queued for replay",
			zap.String("action_id", actionID),
			zap.String("action_type", actionType),
			zap.String("employee_id", row.EmployeeID.String()),
		)
		row.SyncState = SyncLocal
	default:
		row.SyncState = SyncConflict
		if updateErr := s.repo.Update(ctx, row); updateErr != nil {
			log.Error("persist conflict sync state failed", zap.Error(updateErr))
		}
		return err
	}

	if updateErr := s.repo.Update(ctx, row); updateErr != nil {
		log.Error("persist sync state failed", zap.Error(updateErr))
	}
	return nil
}

func (s *service) emitDayClosed(ctx context.Context, tx *sql.Tx, row *AttendanceDay, eventTime time.Time) error {
	event := events.AttendanceDayClosedEvent{
		EventType:      "attendance.day.closed",
		AttendanceID:   row.ID.String(),
		EmployeeID:     row.EmployeeID.String(),
		CompanyID:      row.CompanyID.String(),
		AttendanceDate: row.AttendanceDate.Format("2006-01-02"),
		TotalHours:     row.TotalHours,
		OvertimeHours:  row.OvertimeHours,
		OccurredAt:     eventTime,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return s.outbox.WithTx(tx).Create(ctx, kafka.OutboxEvent{
		ID:            uuid.New().String(),
		RequestID:     contextutil.GetRequestID(ctx),
		AggregateType: "attendance_day",
		AggregateID:   row.ID.String(),
		EventType:     event.EventType,
		Topic:         events.AttendanceDayClosedTopic,
		Payload:       payload,
		Status:        kafka.OutboxStatusPending,
	})
}

// RevokeClockOut clears the clock-out of a closed day, returning the employee
// to the working state. Route-level policy restricts this to HR/admin roles.
func (s *service) RevokeClockOut(ctx context.Context, companyID, id string) (AttendanceResponse, error) {
	if _, err := uuid.Parse(companyID); err != nil {
		return AttendanceResponse{}, attendanceerrors.ErrInvalidCompanyID
	}
	if _, err := uuid.Parse(id); err != nil {
		return AttendanceResponse{}, attendanceerrors.ErrAttendanceNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return AttendanceResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	row, err := qtx.FindByIDAndCompany(ctx, companyID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return AttendanceResponse{}, attendanceerrors.ErrAttendanceNotFound
		}
		return AttendanceResponse{}, err
	}
	if row.CheckOut == nil {
		return AttendanceResponse{}, attendanceerrors.ErrNoClockOutToRevoke
	}

	row.CheckOut = nil
	row.TotalHours = 0
	row.OvertimeHours = 0
	row.SyncState = SyncLocal

	if err := qtx.Update(ctx, row); err != nil {
		return AttendanceResponse{}, err
	}
	if err := tx.Commit(); err != nil {
		return AttendanceResponse{}, err
	}

	if err := s.client.RevokeAttendance(ctx, row.ID.String()); err != nil {
		if upstream.IsUnavailable(err) {
			contextutil.GetLogger(ctx, s.logger).Warn("revoke not propagated upstream yet",
				zap.String("attendance_id", row.ID.String()), zap.Error(err))
		} else {
			return AttendanceResponse{}, err
		}
	} else {
		row.SyncState = SyncSynced
		_ = s.repo.Update(ctx, row)
	}

	return mapToResponse(*row), nil
}

func (s *service) GetToday(ctx context.Context, companyID, employeeID string) (TodayResponse, error) {
	if err := validateIDs(companyID, employeeID); err != nil {
		return TodayResponse{}, err
	}

	now := s.nowFn()
	today := now.Truncate(24 * time.Hour)

	pendingSync, err := s.pendingDepth(ctx)
	if err != nil {
		return TodayResponse{}, err
	}

	row, err := s.repo.FindByEmployeeAndDate(ctx, companyID, employeeID, today)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return TodayResponse{PendingSync: pendingSync}, nil
		}
		return TodayResponse{}, err
	}

	resp := mapToResponse(*row)
	result := TodayResponse{
		Attendance:  &resp,
		IsClockedIn: row.IsClockedIn(),
		IsOnBreak:   row.IsOnBreak(),
		PendingSync: pendingSync,
	}
	if row.IsClockedIn() {
		result.CurrentHours = ComputeCurrentHours(row.CheckIn, row.BreakStart, row.BreakEnd, now)
	} else {
		result.CurrentHours = row.TotalHours
	}
	return result, nil
}

func (s *service) pendingDepth(ctx context.Context) (int64, error) {
	counts, err := s.pending.CountByStatus(ctx)
	if err != nil {
		return 0, err
	}
	return counts[pendingaction.StatusPending] + counts[pendingaction.StatusInProgress], nil
}

func (s *service) GetAll(ctx context.Context, companyID, actorID string, canReadAll bool) ([]AttendanceResponse, error) {
	var (
		rows []AttendanceDay
		err  error
	)
	if canReadAll {
		rows, err = s.repo.FindAllByCompany(ctx, companyID)
	} else {
		if _, parseErr := uuid.Parse(actorID); parseErr != nil {
			return nil, attendanceerrors.ErrInvalidEmployeeID
		}
		rows, err = s.repo.FindAllByCompanyAndEmployee(ctx, companyID, actorID)
	}
	if err != nil {
		return nil, err
	}
	res := make([]AttendanceResponse, len(rows))
	for i, r := range rows {
		res[i] = mapToResponse(r)
	}
	return res, nil
}

func mapToResponse(a AttendanceDay) AttendanceResponse {
	resp := AttendanceResponse{
		ID:             a.ID.String(),
		CompanyID:      a.CompanyID.String(),
		EmployeeID:     a.EmployeeID.String(),
		AttendanceDate: a.AttendanceDate.Format("2006-01-02"),
		CheckIn:        a.CheckIn.Format(time.RFC3339),
		Status:         a.Status,
		TotalHours:     a.TotalHours,
		OvertimeHours:  a.OvertimeHours,
		SyncState:      a.SyncState,
		Notes:          a.Notes,
	}
	if a.Employee != nil {
		resp.EmployeeName = a.Employee.FullName
	}
	if a.CheckOut != nil {
		v := a.CheckOut.Format(time.RFC3339)
		resp.CheckOut = &v
	}
	if a.BreakStart != nil {
		v := a.BreakStart.Format(time.RFC3339)
		resp.BreakStart = &v
	}
	if a.BreakEnd != nil {
		v := a.BreakEnd.Format(time.RFC3339)
		resp.BreakEnd = &v
	}
	return resp
}
