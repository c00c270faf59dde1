package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/polling-app/internal/core/ports"
)

// DefaultSweepGrace keeps the sweep away from polls whose options are still
// being inserted.
const DefaultSweepGrace = 10 * time.Minute

type sweepService struct {
	repo  ports.PollRepository
	cache ports.PollCache
	now   func() time.Time
}

func NewSweepService(repo ports.PollRepository, cache ports.PollCache) ports.SweepService {
	return &sweepService{
		repo:  repo,
		cache: cache,
		now:   time.Now,
	}
}

// SweepOrphans removes polls left without options by a failed creation.
func (s *sweepService) SweepOrphans(ctx context.Context, input ports.SweepInput) (ports.SweepReport, error) {
	var report ports.SweepReport

	grace := input.Grace
	if grace <= 0 {
		grace = DefaultSweepGrace
	}

	ids, err := s.repo.ListOrphanPolls(ctx, s.now().Add(-grace))
	if err != nil {
		return report, fmt.Errorf("failed to list orphan polls: %w", err)
	}
	report.Found = len(ids)

	if input.DryRun || len(ids) == 0 {
		for _, id := range ids {
			slog.Info("orphan poll found", "poll_id", id, "dry_run", input.DryRun)
		}
		return report, nil
	}

	var wg sync.WaitGroup
	errChan := make(chan error, len(ids))

	for _, id := range ids {
		wg.Add(1)
		go func(pID uuid.UUID) {
			defer wg.Done()
			if err := s.repo.DeletePoll(ctx, pID); err != nil {
				errChan <- fmt.Errorf("failed to delete orphan poll %s: %w", pID, err)
				return
			}
			slog.Info("orphan poll deleted", "poll_id", pID)
		}(id)
	}

	wg.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}
	report.Failed = len(errs)
	report.Deleted = report.Found - report.Failed

	if report.Deleted > 0 && s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			slog.Warn("failed to invalidate poll cache", "error", err)
		}
	}

	return report, errors.Join(errs...)
}
