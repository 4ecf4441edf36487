package pendingaction

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"go-timeclock/internal/upstream"
)

const (
	drainBatchSize = 50

	// In-progress entries untouched this long belong to a crashed drainer
	// and go back to the queue.
	staleClaimAge = 5 * time.Minute
)

type DrainResult struct {
	Replayed int `json:"replayed"`
	Retried  int `json:"retried"`
	Dead     int `json:"dead"`
}

// Drainer replays queued actions against the upstream HR service. The
// periodic worker and the explicit /sync/drain endpoint share one Drainer,
// and the singleflight group plus the in_progress claim guarantee an entry
// is never replayed by two callers at once.
type Drainer struct {
	repo   Repository
	client upstream.Client
	sf     singleflight.Group
	logger *zap.Logger
}

func NewDrainer(repo Repository, client upstream.Client, logger ...*zap.Logger) *Drainer {
	l := zap.L().Named("pendingaction.drainer")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("pendingaction.drainer")
	}
	return &Drainer{repo: repo, client: client, logger: l}
}

// Run polls the queue until ctx is cancelled.
func (d *Drainer) Run(ctx context.Context, pollInterval time.Duration) {
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	d.logger.Info("pending action drainer started", zap.Duration("poll_interval", pollInterval))

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("pending action drainer stopped")
			return
		case <-ticker.C:
			if _, err := d.Drain(ctx); err != nil {
				d.logger.Error("drain pending actions failed", zap.Error(err))
			}
		}
	}
}

// Drain replays due entries strictly oldest first and returns a summary.
func (d *Drainer) Drain(ctx context.Context) (DrainResult, error) {
	var result DrainResult

	if n, err := d.repo.ReclaimStale(ctx, staleClaimAge); err != nil {
		d.logger.Error("reclaim stale claims failed", zap.Error(err))
	} else if n > 0 {
		d.logger.Warn("reclaimed stale in-progress actions", zap.Int64("count", n))
	}

	actions, err := d.repo.ListDue(ctx, drainBatchSize)
	if err != nil {
		return result, err
	}
	if len(actions) == 0 {
		return result, nil
	}

	d.logger.Info("draining pending actions", zap.Int("count", len(actions)))

	// Once one of an employee's entries does not replay, the rest of their
	// batch is held back: a younger action must never reach upstream before
	// the older one it causally follows.
	blocked := make(map[string]struct{})

	for _, action := range actions {
		if _, ok := blocked[action.EmployeeID]; ok {
			continue
		}

		outcome, err, _ := d.sf.Do(action.ID, func() (any, error) {
			return d.replay(ctx, action), nil
		})
		if err != nil {
			blocked[action.EmployeeID] = struct{}{}
			continue
		}

		switch outcome.(string) {
		case "replayed":
			result.Replayed++
		case "retried":
			result.Retried++
			blocked[action.EmployeeID] = struct{}{}
		case "dead":
			result.Dead++
			blocked[action.EmployeeID] = struct{}{}
		default:
			blocked[action.EmployeeID] = struct{}{}
		}
	}

	return result, nil
}

func (d *Drainer) replay(ctx context.Context, action PendingAction) string {
	claimed, err := d.repo.Claim(ctx, action.ID)
	if err != nil {
		d.logger.Error("claim pending action failed",
			zap.String("action_id", action.ID), zap.Error(err))
		return "skipped"
	}
	if !claimed {
		// Another drainer already owns this entry.
		return "skipped"
	}

	err = d.client.PushAttendanceAction(ctx, upstream.AttendanceAction{
		ActionID:   action.ID,
		EmployeeID: action.EmployeeID,
		ActionType: action.ActionType,
		Date:       action.AttendanceDate,
		OccurredAt: action.OccurredAt,
	})

	// A duplicate rejection means a previous replay landed before we saw the
	// acknowledgement. The action is done either way.
	if err == nil || upstream.IsDuplicate(err) {
		if delErr := d.repo.Delete(ctx, action.ID); delErr != nil {
			d.logger.Error("delete replayed action failed",
				zap.String("action_id", action.ID), zap.Error(delErr))
		}
		d.logger.Info("pending action replayed",
			zap.String("action_id", action.ID),
			zap.String("action_type", action.ActionType),
			zap.String("employee_id", action.EmployeeID),
		)
		return "replayed"
	}

	if markErr := d.repo.MarkFailed(ctx, action.ID, err.Error()); markErr != nil {
		d.logger.Error("mark pending action failed",
			zap.String("action_id", action.ID), zap.Error(markErr))
		return "skipped"
	}

	if action.RetryCount+1 > action.MaxRetries {
		d.logger.Warn("pending action moved to dead letter",
			zap.String("action_id", action.ID),
			zap.String("action_type", action.ActionType),
			zap.Int("retry_count", action.RetryCount+1),
		)
		return "dead"
	}

	d.logger.Warn("pending action replay failed, will retry",
		zap.String("action_id", action.ID),
		zap.Int("retry_count", action.RetryCount+1),
		zap.Error(err),
	)
	return "retried"
}
