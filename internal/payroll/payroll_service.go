package payroll

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"go-timeclock/internal/events"
	"go-timeclock/internal/messaging/kafka"
	payrollerrors "go-timeclock/internal/payroll/errors"
	"go-timeclock/internal/shared/contextutil"
	"go-timeclock/internal/timesheet"
	"go-timeclock/internal/upstream"
)

//go:generate mockgen -source=payroll_service.go -destination=mock/payroll_service_mock.go -package=mock
type Service interface {
	Create(ctx context.Context, companyID, actorID string, req CreatePayrollRequest) (PayrollResponse, error)
	GetAll(ctx context.Context, companyID string, filter GetPayrollsFilterRequest) ([]PayrollResponse, error)
	GetByID(ctx context.Context, companyID, id string) (PayrollResponse, error)
	Update(ctx context.Context, companyID, id string, req UpdatePayrollRequest) (PayrollResponse, error)
	ChangeStatus(ctx context.Context, companyID, actorID, id string, req ChangeStatusRequest) (PayrollResponse, error)
	Delete(ctx context.Context, companyID, id string) error
	WorkedHours(ctx context.Context, companyID, employeeID, month string) (WorkedHoursResponse, error)
}

type service struct {
	db         *sql.DB
	repo       Repository
	outbox     kafka.OutboxRepository
	timesheets timesheet.Repository
	client     upstream.Client
	logger     *zap.Logger
}

func NewService(
	db *sql.DB,
	repo Repository,
	outbox kafka.OutboxRepository,
	timesheets timesheet.Repository,
	client upstream.Client,
	logger ...*zap.Logger,
) Service {
	l := zap.L().Named("payroll.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("payroll.service")
	}
	return &service{
		db:         db,
		repo:       repo,
		outbox:     outbox,
		timesheets: timesheets,
		client:     client,
		logger:     l,
	}
}

func (s *service) Create(ctx context.Context, companyID, actorID string, req CreatePayrollRequest) (PayrollResponse, error) {
	companyUUID, err := uuid.Parse(companyID)
	if err != nil {
		return PayrollResponse{}, payrollerrors.ErrInvalidCompanyID
	}
	createdByUUID, err := uuid.Parse(actorID)
	if err != nil {
		return PayrollResponse{}, payrollerrors.ErrInvalidActorID
	}
	employeeUUID, err := uuid.Parse(req.EmployeeID)
	if err != nil {
		return PayrollResponse{}, payrollerrors.ErrInvalidEmployeeID
	}
	periodStart, periodEnd, err := parsePeriod(req.PeriodStart, req.PeriodEnd)
	if err != nil {
		return PayrollResponse{}, err
	}
	items, err := buildItems(companyUUID, req.Items)
	if err != nil {
		return PayrollResponse{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return PayrollResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	belongs, err := qtx.EmployeeBelongsToCompany(ctx, companyID, req.EmployeeID)
	if err != nil {
		return PayrollResponse{}, err
	}
	if !belongs {
		return PayrollResponse{}, payrollerrors.ErrEmployeeNotInCompany
	}

	overlap, err := qtx.HasOverlappingPeriod(ctx, companyID, req.EmployeeID, periodStart, periodEnd, nil)
	if err != nil {
		return PayrollResponse{}, err
	}
	if overlap {
		return PayrollResponse{}, payrollerrors.ErrPayrollOverlap
	}

	totals := ComputeTotals(items)

	payroll := &Payroll{
		ID:          uuid.New(),
		CompanyID:   companyUUID,
		EmployeeID:  employeeUUID,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		GrossPay:    totals.GrossPay,
		Deductions:  totals.Deductions,
		NetPay:      totals.NetPay,
		Status:      StatusDraft,
		CreatedBy:   createdByUUID,
	}
	for i := range items {
		items[i].PayrollID = payroll.ID
	}
	payroll.Items = items

	if err := qtx.Create(ctx, payroll); err != nil {
		return PayrollResponse{}, err
	}

	// Payroll is never queued offline: an unreachable upstream rolls the
	// whole creation back and surfaces to the operator.
	if err := s.submitUpstream(ctx, payroll); err != nil {
		return PayrollResponse{}, err
	}

	if err := tx.Commit(); err != nil {
		return PayrollResponse{}, err
	}

	return mapToResponse(*payroll), nil
}

func (s *service) GetAll(ctx context.Context, companyID string, filter GetPayrollsFilterRequest) ([]PayrollResponse, error) {
	if filter.Status != "" {
		switch filter.Status {
		case StatusDraft, StatusApproved, StatusPaid, StatusCancelled:
		default:
			return nil, payrollerrors.ErrInvalidStatusFilter
		}
	}

	payrolls, err := s.repo.FindAllByCompany(ctx, companyID, PayrollQueryFilter{
		Status:     filter.Status,
		EmployeeID: filter.EmployeeID,
	})
	if err != nil {
		return nil, err
	}

	return mapToListResponse(payrolls), nil
}

func (s *service) GetByID(ctx context.Context, companyID, id string) (PayrollResponse, error) {
	payroll, err := s.repo.FindByIDAndCompany(ctx, companyID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return PayrollResponse{}, payrollerrors.ErrPayrollNotFound
		}
		return PayrollResponse{}, err
	}

	return mapToResponse(*payroll), nil
}

func (s *service) Update(ctx context.Context, companyID, id string, req UpdatePayrollRequest) (PayrollResponse, error) {
	companyUUID, err := uuid.Parse(companyID)
	if err != nil {
		return PayrollResponse{}, payrollerrors.ErrInvalidCompanyID
	}
	periodStart, periodEnd, err := parsePeriod(req.PeriodStart, req.PeriodEnd)
	if err != nil {
		return PayrollResponse{}, err
	}
	items, err := buildItems(companyUUID, req.Items)
	if err != nil {
		return PayrollResponse{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return PayrollResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	payroll, err := qtx.FindByIDAndCompany(ctx, companyID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return PayrollResponse{}, payrollerrors.ErrPayrollNotFound
		}
		return PayrollResponse{}, err
	}

	// PAID and CANCELLED records are immutable.
	if payroll.Status != StatusDraft && payroll.Status != StatusApproved {
		return PayrollResponse{}, payrollerrors.ErrEditOnlyDraftOrApproved
	}

	overlap, err := qtx.HasOverlappingPeriod(ctx, companyID, payroll.EmployeeID.String(), periodStart, periodEnd, &id)
	if err != nil {
		return PayrollResponse{}, err
	}
	if overlap {
		return PayrollResponse{}, payrollerrors.ErrPayrollOverlap
	}

	totals := ComputeTotals(items)

	payroll.PeriodStart = periodStart
	payroll.PeriodEnd = periodEnd
	payroll.GrossPay = totals.GrossPay
	payroll.Deductions = totals.Deductions
	payroll.NetPay = totals.NetPay

	for i := range items {
		items[i].PayrollID = payroll.ID
	}

	if err := qtx.ReplaceItems(ctx, companyID, id, items); err != nil {
		return PayrollResponse{}, err
	}
	if err := qtx.Update(ctx, payroll); err != nil {
		return PayrollResponse{}, err
	}

	payroll.Items = items
	if err := s.submitUpstream(ctx, payroll); err != nil {
		return PayrollResponse{}, err
	}

	if err := tx.Commit(); err != nil {
		return PayrollResponse{}, err
	}

	return mapToResponse(*payroll), nil
}

func (s *service) ChangeStatus(ctx context.Context, companyID, actorID, id string, req ChangeStatusRequest) (PayrollResponse, error) {
	actorUUID, err := uuid.Parse(actorID)
	if err != nil {
		return PayrollResponse{}, payrollerrors.ErrInvalidActorID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return PayrollResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	payroll, err := qtx.FindByIDAndCompany(ctx, companyID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return PayrollResponse{}, payrollerrors.ErrPayrollNotFound
		}
		return PayrollResponse{}, err
	}

	if !isAllowedStatusTransition(payroll.Status, req.Status) {
		return PayrollResponse{}, payrollerrors.ErrInvalidStatusTransition
	}

	now := time.Now().UTC()

	switch req.Status {
	case StatusApproved:
		payroll.ApprovedBy = &actorUUID
		payroll.ApprovedAt = &now
	case StatusPaid:
		// payment_date may arrive with the transition or already be set;
		// PAID without it is rejected.
		if req.PaymentDate != nil && *req.PaymentDate != "" {
			paymentDate, err := parseDate(*req.PaymentDate)
			if err != nil {
				return PayrollResponse{}, err
			}
			payroll.PaymentDate = &paymentDate
		}
		if payroll.PaymentDate == nil {
			return PayrollResponse{}, payrollerrors.ErrPaymentDateRequired
		}
		if req.PaymentMethod != nil && *req.PaymentMethod != "" {
			payroll.PaymentMethod = req.PaymentMethod
		}
	}
	payroll.Status = req.Status

	if err := qtx.Update(ctx, payroll); err != nil {
		return PayrollResponse{}, err
	}

	if req.Status == StatusPaid && s.outbox != nil {
		if err := s.emitPaid(ctx, tx, payroll, now); err != nil {
			return PayrollResponse{}, err
		}
	}

	if err := s.submitUpstream(ctx, payroll); err != nil {
		return PayrollResponse{}, err
	}

	if err := tx.Commit(); err != nil {
		return PayrollResponse{}, err
	}

	contextutil.GetLogger(ctx, s.logger).Info("payroll status changed",
		zap.String("payroll_id", payroll.ID.String()),
		zap.String("status", payroll.Status),
	)

	return mapToResponse(*payroll), nil
}

func (s *service) Delete(ctx context.Context, companyID, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	payroll, err := qtx.FindByIDAndCompany(ctx, companyID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return payrollerrors.ErrPayrollNotFound
		}
		return err
	}
	if payroll.Status != StatusDraft {
		return payrollerrors.ErrDeleteOnlyDraft
	}

	if err := qtx.Delete(ctx, companyID, id); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *service) WorkedHours(ctx context.Context, companyID, employeeID, month string) (WorkedHoursResponse, error) {
	if _, err := uuid.Parse(employeeID); err != nil {
		return WorkedHoursResponse{}, payrollerrors.ErrInvalidEmployeeID
	}
	if _, err := time.Parse("2006-01", month); err != nil {
		return WorkedHoursResponse{}, payrollerrors.ErrInvalidPeriodFormat
	}

	summary, err := s.timesheets.FindByEmployeeAndMonth(ctx, companyID, employeeID, month)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return WorkedHoursResponse{EmployeeID: employeeID, Month: month}, nil
		}
		return WorkedHoursResponse{}, err
	}

	return WorkedHoursResponse{
		EmployeeID:    employeeID,
		Month:         month,
		WorkedHours:   summary.WorkedHours,
		OvertimeHours: summary.OvertimeHours,
		DaysPresent:   summary.DaysPresent,
	}, nil
}

func (s *service) submitUpstream(ctx context.Context, payroll *Payroll) error {
	itemsPayload, err := json.Marshal(mapItems(payroll.Items))
	if err != nil {
		return err
	}

	sub := upstream.PayrollSubmission{
		PayrollID:   payroll.ID.String(),
		EmployeeID:  payroll.EmployeeID.String(),
		PeriodStart: payroll.PeriodStart.Format("2006-01-02"),
		PeriodEnd:   payroll.PeriodEnd.Format("2006-01-02"),
		GrossPay:    payroll.GrossPay,
		Deductions:  payroll.Deductions,
		NetPay:      payroll.NetPay,
		Status:      payroll.Status,
		Items:       itemsPayload,
	}
	if payroll.PaymentDate != nil {
		v := payroll.PaymentDate.Format("2006-01-02")
		sub.PaymentDate = &v
	}

	return s.client.SubmitPayroll(ctx, sub)
}

func (s *service) emitPaid(ctx context.Context, tx *sql.Tx, payroll *Payroll, now time.Time) error {
	event := events.PayrollPaidEvent{
		EventType:   "payroll.paid",
		PayrollID:   payroll.ID.String(),
		EmployeeID:  payroll.EmployeeID.String(),
		CompanyID:   payroll.CompanyID.String(),
		PeriodStart: payroll.PeriodStart.Format("2006-01-02"),
		PeriodEnd:   payroll.PeriodEnd.Format("2006-01-02"),
		NetPay:      payroll.NetPay,
		OccurredAt:  now,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return s.outbox.WithTx(tx).Create(ctx, kafka.OutboxEvent{
		ID:            uuid.New().String(),
		RequestID:     contextutil.GetRequestID(ctx),
		AggregateType: "payroll",
		AggregateID:   payroll.ID.String(),
		EventType:     event.EventType,
		Topic:         events.PayrollPaidTopic,
		Payload:       payload,
		Status:        kafka.OutboxStatusPending,
	})
}

func parsePeriod(start, end string) (time.Time, time.Time, error) {
	periodStart, err := parseDate(start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	periodEnd, err := parseDate(end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if periodStart.After(periodEnd) {
		return time.Time{}, time.Time{}, payrollerrors.ErrInvalidDateRange
	}
	return periodStart, periodEnd, nil
}

func parseDate(v string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, payrollerrors.ErrInvalidDateFormat
	}
	return t, nil
}

func buildItems(companyID uuid.UUID, reqs []PayrollItemRequest) ([]PayrollItem, error) {
	if len(reqs) == 0 {
		return nil, payrollerrors.ErrEmptyItems
	}

	items := make([]PayrollItem, len(reqs))
	for i, req := range reqs {
		if !ValidItemType(req.Type) {
			return nil, payrollerrors.ErrInvalidItemType
		}
		if req.Amount < 0 {
			return nil, payrollerrors.ErrNegativeAmount
		}
		items[i] = PayrollItem{
			ID:          uuid.New(),
			CompanyID:   companyID,
			Position:    i,
			ItemType:    req.Type,
			Description: req.Description,
			Amount:      req.Amount,
			Taxable:     req.Taxable,
		}
	}
	return items, nil
}

func mapItems(items []PayrollItem) []PayrollItemResponse {
	resp := make([]PayrollItemResponse, len(items))
	for i, item := range items {
		resp[i] = PayrollItemResponse{
			Type:        item.ItemType,
			Description: item.Description,
			Amount:      item.Amount,
			Taxable:     item.Taxable,
		}
	}
	return resp
}

func mapToResponse(payroll Payroll) PayrollResponse {
	resp := PayrollResponse{
		ID:          payroll.ID.String(),
		CompanyID:   payroll.CompanyID.String(),
		EmployeeID:  payroll.EmployeeID.String(),
		PeriodStart: payroll.PeriodStart.Format("2006-01-02"),
		PeriodEnd:   payroll.PeriodEnd.Format("2006-01-02"),
		Items:       mapItems(payroll.Items),
		GrossPay:    payroll.GrossPay,
		Deductions:  payroll.Deductions,
		NetPay:      payroll.NetPay,
		Status:      payroll.Status,
		CreatedBy:   payroll.CreatedBy.String(),
	}

	if payroll.Employee != nil {
		resp.EmployeeName = payroll.Employee.FullName
	}
	if payroll.PaymentDate != nil {
		v := payroll.PaymentDate.Format("2006-01-02")
		resp.PaymentDate = &v
	}
	resp.PaymentMethod = payroll.PaymentMethod
	if payroll.ApprovedBy != nil {
		v := payroll.ApprovedBy.String()
		resp.ApprovedBy = &v
	}
	if payroll.ApprovedAt != nil {
		v := payroll.ApprovedAt.Format(time.RFC3339)
		resp.ApprovedAt = &v
	}

	return resp
}

func mapToListResponse(payrolls []Payroll) []PayrollResponse {
	resp := make([]PayrollResponse, len(payrolls))
	for i, payroll := range payrolls {
		resp[i] = mapToResponse(payroll)
	}
	return resp
}
