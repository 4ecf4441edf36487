package consumer

import (
	"context"
	"encoding/json"
	"strings"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"go-timeclock/internal/events"
	"go-timeclock/internal/timesheet"
)

// ConsumeAttendanceDayClosed folds day-closed events into the monthly
// timesheet rollups. The message is committed only after the rollup lands.
func ConsumeAttendanceDayClosed(
	ctx context.Context,
	reader *kafkago.Reader,
	timesheetRepo timesheet.Repository,
	logger *zap.Logger,
) {
	log := logger.Named("kafka.consumer.attendance_day_closed")
	log.Info("attendance day-closed consumer started")

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("attendance day-closed consumer stopped")
				return
			}
			log.Error("fetch day-closed message failed", zap.Error(err))
			continue
		}

		var event events.AttendanceDayClosedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Error("decode day-closed event failed", zap.Error(err))
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		month := monthOf(event.AttendanceDate)
		if month == "" {
			log.Error("day-closed event has malformed date",
				zap.String("attendance_date", event.AttendanceDate))
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		err = timesheetRepo.FoldClosedDay(ctx,
			event.CompanyID, event.EmployeeID, month, event.AttendanceID,
			event.TotalHours, event.OvertimeHours,
		)
		if err != nil {
			log.Error("fold day-closed event into timesheet failed",
				zap.String("attendance_id", event.AttendanceID),
				zap.String("employee_id", event.EmployeeID),
				zap.Error(err),
			)
			continue
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit day-closed message failed", zap.Error(err))
			continue
		}

		log.Info("timesheet updated from day-closed event",
			zap.String("employee_id", event.EmployeeID),
			zap.String("month", month),
			zap.Float64("total_hours", event.TotalHours),
		)
	}
}

// monthOf extracts "YYYY-MM" from a "YYYY-MM-DD" date.
func monthOf(date string) string {
	if len(date) < 7 || strings.Count(date[:7], "-") != 1 {
		return ""
	}
	return date[:7]
}
