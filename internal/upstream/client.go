// Package upstream talks to the HR system of record. Local state is always
// committed first; this client only reconciles it with the remote side.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go-timeclock/internal/shared/apperror"
)

const defaultTimeout = 30 * time.Second

var (
	// ErrUnavailable covers connectivity failures and timeouts. Attendance
	// callers degrade to the offline queue on this error.
	ErrUnavailable = apperror.New(
		apperror.CodeUpstreamUnavailable,
		"upstream HR service is unreachable",
		http.StatusServiceUnavailable,
	)
	// ErrDuplicate means the upstream already applied this action. Replays
	// treat it as success.
	ErrDuplicate = apperror.New(
		apperror.CodeConflict,
		"action already applied upstream",
		http.StatusConflict,
	)
	ErrRejected = apperror.New(
		apperror.CodeUpstreamRejected,
		"upstream HR service rejected the request",
		http.StatusConflict,
	)
)

// AttendanceAction is the replayable unit pushed upstream for clock events.
type AttendanceAction struct {
	ActionID   string    `json:"action_id"`
	EmployeeID string    `json:"employee_id"`
	ActionType string    `json:"action_type"`
	Date       string    `json:"date"`
	OccurredAt time.Time `json:"occurred_at"`
}

type PayrollSubmission struct {
	PayrollID   string          `json:"payroll_id"`
	EmployeeID  string          `json:"employee_id"`
	PeriodStart string          `json:"period_start"`
	PeriodEnd   string          `json:"period_end"`
	GrossPay    int64           `json:"gross_pay"`
	Deductions  int64           `json:"deductions"`
	NetPay      int64           `json:"net_pay"`
	Status      string          `json:"status"`
	PaymentDate *string         `json:"payment_date,omitempty"`
	Items       json.RawMessage `json:"items"`
}

//go:generate mockgen -source=client.go -destination=mock/client_mock.go -package=mock
type Client interface {
	PushAttendanceAction(ctx context.Context, action AttendanceAction) error
	RevokeAttendance(ctx context.Context, attendanceID string) error
	SubmitPayroll(ctx context.Context, sub PayrollSubmission) error
}

type httpClient struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &httpClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *httpClient) PushAttendanceAction(ctx context.Context, action AttendanceAction) error {
	return c.post(ctx, "/attendance/actions", action.ActionID, action)
}

func (c *httpClient) RevokeAttendance(ctx context.Context, attendanceID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.baseURL+"/attendance/"+attendanceID+"/clock-out", nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeUpstreamUnavailable,
			ErrUnavailable.Message, http.StatusServiceUnavailable)
	}
	defer resp.Body.Close()

	return classifyStatus(resp)
}

func (c *httpClient) SubmitPayroll(ctx context.Context, sub PayrollSubmission) error {
	return c.post(ctx, "/payrolls", sub.PayrollID, sub)
}

func (c *httpClient) post(ctx context.Context, path, idempotencyKey string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// Network failures and timeouts are indistinguishable to the caller.
		return apperror.Wrap(err, apperror.CodeUpstreamUnavailable,
			ErrUnavailable.Message, http.StatusServiceUnavailable)
	}
	defer resp.Body.Close()

	return classifyStatus(resp)
}

func classifyStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusConflict:
		if isDuplicateBody(resp.Body) {
			return ErrDuplicate
		}
		return ErrRejected
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests:
		return apperror.Wrap(
			fmt.Errorf("upstream returned status %d", resp.StatusCode),
			apperror.CodeUpstreamUnavailable,
			ErrUnavailable.Message,
			http.StatusServiceUnavailable,
		)
	default:
		return apperror.Wrap(
			fmt.Errorf("upstream returned status %d", resp.StatusCode),
			apperror.CodeUpstreamRejected,
			ErrRejected.Message,
			http.StatusConflict,
		)
	}
}

func isDuplicateBody(r io.Reader) bool {
	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return false
	}
	return body.Code == "DUPLICATE_ACTION"
}

// IsUnavailable reports whether err is the transient connectivity class.
func IsUnavailable(err error) bool {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Code == apperror.CodeUpstreamUnavailable
	}
	return false
}

// IsDuplicate reports whether the upstream already applied the action.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}
