package attendanceerrors

import (
	"fmt"
	"net/http"

	"go-timeclock/internal/shared/apperror"
)

var (
	ErrInvalidCompanyID = apperror.New(
		apperror.CodeInvalidInput,
		"invalid company id",
		http.StatusBadRequest,
	)
	ErrInvalidEmployeeID = apperror.New(
		apperror.CodeInvalidInput,
		"invalid employee id",
		http.StatusBadRequest,
	)
	ErrInvalidTimestamp = apperror.New(
		apperror.CodeInvalidInput,
		"invalid timestamp, expected RFC3339",
		http.StatusBadRequest,
	)
	ErrTimestampOutOfOrder = apperror.New(
		apperror.CodeInvalidInput,
		"timestamp is earlier than the last recorded event of the day",
		http.StatusBadRequest,
	)
	ErrAlreadyClockedIn = apperror.New(
		apperror.CodeConflict,
		"already clocked in for today",
		http.StatusConflict,
	)
	ErrNotClockedIn = apperror.New(
		apperror.CodeInvalidState,
		"not clocked in",
		http.StatusConflict,
	)
	ErrAlreadyClockedOut = apperror.New(
		apperror.CodeInvalidState,
		"already clocked out for today",
		http.StatusConflict,
	)
	ErrAlreadyOnBreak = apperror.New(
		apperror.CodeInvalidState,
		"a break is already open",
		http.StatusConflict,
	)
	ErrNotOnBreak = apperror.New(
		apperror.CodeInvalidState,
		"no open break to end",
		http.StatusConflict,
	)
	ErrBreakAlreadyTaken = apperror.New(
		apperror.CodeInvalidState,
		"the day's break was already taken",
		http.StatusConflict,
	)
	ErrAttendanceNotFound = apperror.New(
		apperror.CodeNotFound,
		"attendance record not found",
		http.StatusNotFound,
	)
	ErrNoClockOutToRevoke = apperror.New(
		apperror.CodeInvalidState,
		"attendance day has no clock-out to revoke",
		http.StatusConflict,
	)
)

// RateLimited carries the wait hint for a clock action inside the cooldown
// window.
func RateLimited(wait float64) *apperror.AppError {
	return apperror.New(
		apperror.CodeRateLimited,
		fmt.Sprintf("please wait %.0f seconds before the next clock action", wait),
		http.StatusTooManyRequests,
	)
}
