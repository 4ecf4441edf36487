package payroll

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"go-timeclock/internal/messaging/kafka"
	payrollerrors "go-timeclock/internal/payroll/errors"
	"go-timeclock/internal/timesheet"
	"go-timeclock/internal/upstream"
)

type fakePayrollRepo struct {
	stored  *Payroll
	belongs bool
	overlap bool
}

func (f *fakePayrollRepo) WithTx(tx *sql.Tx) Repository { return f }
func (f *fakePayrollRepo) Create(ctx context.Context, p *Payroll) error {
	copied := *p
	f.stored = &copied
	return nil
}
func (f *fakePayrollRepo) FindAllByCompany(ctx context.Context, companyID string, filter PayrollQueryFilter) ([]Payroll, error) {
	if f.stored == nil {
		return nil, nil
	}
	if filter.Status != "" && f.stored.Status != filter.Status {
		return nil, nil
	}
	return []Payroll{*f.stored}, nil
}
func (f *fakePayrollRepo) FindByIDAndCompany(ctx context.Context, companyID, id string) (*Payroll, error) {
	if f.stored == nil || f.stored.ID.String() != id {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *f.stored
	return &copied, nil
}
func (f *fakePayrollRepo) ReplaceItems(ctx context.Context, companyID, payrollID string, items []PayrollItem) error {
	f.stored.Items = items
	return nil
}
func (f *fakePayrollRepo) Update(ctx context.Context, p *Payroll) error {
	copied := *p
	copied.Items = f.stored.Items
	f.stored = &copied
	return nil
}
func (f *fakePayrollRepo) Delete(ctx context.Context, companyID, id string) error {
	f.stored = nil
	return nil
}
func (f *fakePayrollRepo) EmployeeBelongsToCompany(ctx context.Context, companyID, employeeID string) (bool, error) {
	return f.belongs, nil
}
func (f *fakePayrollRepo) HasOverlappingPeriod(ctx context.Context, companyID, employeeID string, periodStart, periodEnd time.Time, excludePayrollID *string) (bool, error) {
	return f.overlap, nil
}

type fakeTimesheets struct {
	summary *timesheet.Summary
}

func (f *fakeTimesheets) FoldClosedDay(ctx context.Context, companyID, employeeID, month, attendanceID string, workedHours, overtimeHours float64) error {
	return nil
}
func (f *fakeTimesheets) FindByEmployeeAndMonth(ctx context.Context, companyID, employeeID, month string) (*timesheet.Summary, error) {
	if f.summary == nil || f.summary.Month != month {
		return nil, gorm.ErrRecordNotFound
	}
	return f.summary, nil
}

type fakeSubmitClient struct {
	submitErr error
	submitted []upstream.PayrollSubmission
}

func (f *fakeSubmitClient) PushAttendanceAction(ctx context.Context, a upstream.AttendanceAction) error {
	return nil
}
func (f *fakeSubmitClient) RevokeAttendance(ctx context.Context, attendanceID string) error {
	return nil
}
func (f *fakeSubmitClient) SubmitPayroll(ctx context.Context, sub upstream.PayrollSubmission) error {
	f.submitted = append(f.submitted, sub)
	return f.submitErr
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

func validCreateRequest(employeeID string) CreatePayrollRequest {
	return CreatePayrollRequest{
		EmployeeID:  employeeID,
		PeriodStart: "2026-03-01",
		PeriodEnd:   "2026-03-31",
		Items: []PayrollItemRequest{
			{Type: ItemSalary, Description: "Base salary", Amount: 4500, Taxable: true},
			{Type: ItemOvertime, Description: "Overtime", Amount: 450, Taxable: true},
			{Type: ItemAllowance, Description: "Transport", Amount: 300},
			{Type: ItemDeduction, Description: "Income tax", Amount: 900},
		},
	}
}

func TestService_Create_ComputesTotalsServerSide(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	repo := &fakePayrollRepo{belongs: true}
	client := &fakeSubmitClient{}
	svc := NewService(db, repo, &fakeOutbox{}, &fakeTimesheets{}, client)

	mock.ExpectBegin()
	mock.ExpectCommit()

	resp, err := svc.Create(context.Background(), uuid.New().String(), uuid.New().String(),
		validCreateRequest(uuid.New().String()))
	assert.NoError(t, err)

	assert.Equal(t, StatusDraft, resp.Status)
	assert.Equal(t, int64(6150), resp.GrossPay)
	assert.Equal(t, int64(900), resp.Deductions)
	assert.Equal(t, int64(5250), resp.NetPay)
	assert.Len(t, resp.Items, 4)

	// The draft is pushed to the HR system of record before commit.
	assert.Len(t, client.submitted, 1)
	assert.Equal(t, int64(5250), client.submitted[0].NetPay)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Create_EmptyItemsRejected(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer db.Close()

	svc := NewService(db, &fakePayrollRepo{belongs: true}, &fakeOutbox{}, &fakeTimesheets{}, &fakeSubmitClient{})

	req := validCreateRequest(uuid.New().String())
	req.Items = nil

	_, err := svc.Create(context.Background(), uuid.New().String(), uuid.New().String(), req)
	assert.ErrorIs(t, err, payrollerrors.ErrEmptyItems)
}

func TestService_Create_InvalidPeriodRejected(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer db.Close()

	svc := NewService(db, &fakePayrollRepo{belongs: true}, &fakeOutbox{}, &fakeTimesheets{}, &fakeSubmitClient{})

	req := validCreateRequest(uuid.New().String())
	req.PeriodStart = "2026-03-31"
	req.PeriodEnd = "2026-03-01"

	_, err := svc.Create(context.Background(), uuid.New().String(), uuid.New().String(), req)
	assert.ErrorIs(t, err, payrollerrors.ErrInvalidDateRange)
}

func TestService_Create_OverlapRejected(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	repo := &fakePayrollRepo{belongs: true, overlap: true}
	svc := NewService(db, repo, &fakeOutbox{}, &fakeTimesheets{}, &fakeSubmitClient{})

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), uuid.New().String(), uuid.New().String(),
		validCreateRequest(uuid.New().String()))
	assert.ErrorIs(t, err, payrollerrors.ErrPayrollOverlap)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Create_UpstreamFailureRollsBack(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	repo := &fakePayrollRepo{belongs: true}
	client := &fakeSubmitClient{submitErr: upstream.ErrUnavailable}
	svc := NewService(db, repo, &fakeOutbox{}, &fakeTimesheets{}, client)

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), uuid.New().String(), uuid.New().String(),
		validCreateRequest(uuid.New().String()))
	assert.ErrorIs(t, err, upstream.ErrUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_ChangeStatus_ApproveThenPay(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	companyID := uuid.New().String()
	actorID := uuid.New().String()
	ctx := context.Background()

	repo := &fakePayrollRepo{belongs: true}
	outbox := &fakeOutbox{}
	svc := NewService(db, repo, outbox, &fakeTimesheets{}, &fakeSubmitClient{})

	mock.ExpectBegin()
	mock.ExpectCommit()
	created, err := svc.Create(ctx, companyID, actorID, validCreateRequest(uuid.New().String()))
	assert.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()
	approved, err := svc.ChangeStatus(ctx, companyID, actorID, created.ID, ChangeStatusRequest{Status: StatusApproved})
	assert.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)
	assert.NotNil(t, approved.ApprovedBy)
	assert.NotNil(t, approved.ApprovedAt)
	assert.Empty(t, outbox.created)

	paymentDate := "2026-04-05"
	method := "BANK_TRANSFER"
	mock.ExpectBegin()
	mock.ExpectCommit()
	paid, err := svc.ChangeStatus(ctx, companyID, actorID, created.ID, ChangeStatusRequest{
		Status:        StatusPaid,
		PaymentDate:   &paymentDate,
		PaymentMethod: &method,
	})
	assert.NoError(t, err)
	assert.Equal(t, StatusPaid, paid.Status)
	assert.Equal(t, paymentDate, *paid.PaymentDate)

	assert.Len(t, outbox.created, 1)
	assert.Equal(t, "payroll.paid", outbox.created[0].EventType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_ChangeStatus_PaidRequiresPaymentDate(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	companyID := uuid.New().String()
	actorID := uuid.New().String()
	ctx := context.Background()

	repo := &fakePayrollRepo{belongs: true}
	svc := NewService(db, repo, &fakeOutbox{}, &fakeTimesheets{}, &fakeSubmitClient{})

	mock.ExpectBegin()
	mock.ExpectCommit()
	created, err := svc.Create(ctx, companyID, actorID, validCreateRequest(uuid.New().String()))
	assert.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()
	_, err = svc.ChangeStatus(ctx, companyID, actorID, created.ID, ChangeStatusRequest{Status: StatusApproved})
	assert.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err = svc.ChangeStatus(ctx, companyID, actorID, created.ID, ChangeStatusRequest{Status: StatusPaid})
	assert.ErrorIs(t, err, payrollerrors.ErrPaymentDateRequired)
}

func TestService_ChangeStatus_TerminalStatesLocked(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	companyID := uuid.New().String()
	actorID := uuid.New().String()
	ctx := context.Background()

	repo := &fakePayrollRepo{belongs: true}
	svc := NewService(db, repo, &fakeOutbox{}, &fakeTimesheets{}, &fakeSubmitClient{})

	mock.ExpectBegin()
	mock.ExpectCommit()
	created, err := svc.Create(ctx, companyID, actorID, validCreateRequest(uuid.New().String()))
	assert.NoError(t, err)

	// DRAFT cannot jump straight to PAID.
	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err = svc.ChangeStatus(ctx, companyID, actorID, created.ID, ChangeStatusRequest{Status: StatusPaid})
	assert.ErrorIs(t, err, payrollerrors.ErrInvalidStatusTransition)

	mock.ExpectBegin()
	mock.ExpectCommit()
	_, err = svc.ChangeStatus(ctx, companyID, actorID, created.ID, ChangeStatusRequest{Status: StatusCancelled})
	assert.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err = svc.ChangeStatus(ctx, companyID, actorID, created.ID, ChangeStatusRequest{Status: StatusApproved})
	assert.ErrorIs(t, err, payrollerrors.ErrInvalidStatusTransition)
}

func TestService_Update_OnlyDraftOrApproved(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	companyID := uuid.New().String()
	actorID := uuid.New().String()
	ctx := context.Background()

	repo := &fakePayrollRepo{belongs: true}
	svc := NewService(db, repo, &fakeOutbox{}, &fakeTimesheets{}, &fakeSubmitClient{})

	mock.ExpectBegin()
	mock.ExpectCommit()
	created, err := svc.Create(ctx, companyID, actorID, validCreateRequest(uuid.New().String()))
	assert.NoError(t, err)

	update := UpdatePayrollRequest{
		PeriodStart: "2026-03-01",
		PeriodEnd:   "2026-03-31",
		Items: []PayrollItemRequest{
			{Type: ItemSalary, Description: "Base salary", Amount: 5000, Taxable: true},
		},
	}

	mock.ExpectBegin()
	mock.ExpectCommit()
	updated, err := svc.Update(ctx, companyID, created.ID, update)
	assert.NoError(t, err)
	assert.Equal(t, int64(5000), updated.GrossPay)
	assert.Equal(t, int64(5000), updated.NetPay)

	mock.ExpectBegin()
	mock.ExpectCommit()
	_, err = svc.ChangeStatus(ctx, companyID, actorID, created.ID, ChangeStatusRequest{Status: StatusCancelled})
	assert.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err = svc.Update(ctx, companyID, created.ID, update)
	assert.ErrorIs(t, err, payrollerrors.ErrEditOnlyDraftOrApproved)
}

func TestService_Delete_OnlyDraft(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	companyID := uuid.New().String()
	actorID := uuid.New().String()
	ctx := context.Background()

	repo := &fakePayrollRepo{belongs: true}
	svc := NewService(db, repo, &fakeOutbox{}, &fakeTimesheets{}, &fakeSubmitClient{})

	mock.ExpectBegin()
	mock.ExpectCommit()
	created, err := svc.Create(ctx, companyID, actorID, validCreateRequest(uuid.New().String()))
	assert.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()
	_, err = svc.ChangeStatus(ctx, companyID, actorID, created.ID, ChangeStatusRequest{Status: StatusApproved})
	assert.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()
	err = svc.Delete(ctx, companyID, created.ID)
	assert.ErrorIs(t, err, payrollerrors.ErrDeleteOnlyDraft)
	assert.NotNil(t, repo.stored)
}

func TestService_GetByID_NotFound(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer db.Close()

	svc := NewService(db, &fakePayrollRepo{}, &fakeOutbox{}, &fakeTimesheets{}, &fakeSubmitClient{})

	_, err := svc.GetByID(context.Background(), uuid.New().String(), uuid.New().String())
	assert.ErrorIs(t, err, payrollerrors.ErrPayrollNotFound)
}

func TestService_WorkedHours(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer db.Close()

	employeeID := uuid.New().String()
	sheets := &fakeTimesheets{summary: &timesheet.Summary{
		Month:         "2026-03",
		WorkedHours:   152.5,
		OvertimeHours: 6.5,
		DaysPresent:   20,
	}}
	svc := NewService(db, &fakePayrollRepo{}, &fakeOutbox{}, sheets, &fakeSubmitClient{})

	resp, err := svc.WorkedHours(context.Background(), uuid.New().String(), employeeID, "2026-03")
	assert.NoError(t, err)
	assert.Equal(t, 152.5, resp.WorkedHours)
	assert.Equal(t, 6.5, resp.OvertimeHours)
	assert.Equal(t, 20, resp.DaysPresent)

	_, err = svc.WorkedHours(context.Background(), uuid.New().String(), employeeID, "03-2026")
	assert.ErrorIs(t, err, payrollerrors.ErrInvalidPeriodFormat)

	// No closed days yet reads as an all-zero month, not an error.
	empty, err := svc.WorkedHours(context.Background(), uuid.New().String(), employeeID, "2026-04")
	assert.NoError(t, err)
	assert.Equal(t, 0.0, empty.WorkedHours)
}
