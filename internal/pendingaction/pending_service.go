package pendingaction

import (
	"context"
	"time"
)

//go:generate mockgen -source=pending_service.go -destination=mock/pending_service_mock.go -package=mock
type Service interface {
	Status(ctx context.Context) (SyncStatusResponse, error)
	Drain(ctx context.Context) (DrainResult, error)
}

type service struct {
	repo    Repository
	drainer *Drainer
}

func NewService(repo Repository, drainer *Drainer) Service {
	return &service{repo: repo, drainer: drainer}
}

func (s *service) Status(ctx context.Context) (SyncStatusResponse, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return SyncStatusResponse{}, err
	}

	dead, err := s.repo.ListDead(ctx, 20)
	if err != nil {
		return SyncStatusResponse{}, err
	}

	resp := SyncStatusResponse{
		Pending:           counts[StatusPending] + counts[StatusInProgress],
		Dead:              counts[StatusDead],
		DeadletterEntries: make([]PendingActionResponse, len(dead)),
	}
	for i, a := range dead {
		resp.DeadletterEntries[i] = mapToResponse(a)
	}
	return resp, nil
}

func (s *service) Drain(ctx context.Context) (DrainResult, error) {
	return s.drainer.Drain(ctx)
}

func mapToResponse(a PendingAction) PendingActionResponse {
	resp := PendingActionResponse{
		ID:             a.ID,
		EmployeeID:     a.EmployeeID,
		ActionType:     a.ActionType,
		AttendanceDate: a.AttendanceDate,
		OccurredAt:     a.OccurredAt.Format(time.RFC3339),
		RetryCount:     a.RetryCount,
		MaxRetries:     a.MaxRetries,
		Status:         a.Status,
		LastError:      a.LastError,
	}
	return resp
}
