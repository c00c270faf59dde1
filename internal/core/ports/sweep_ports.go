package ports

import (
	"context"
	"time"
)

type SweepInput struct {
	Grace  time.Duration
	DryRun bool
}

type SweepReport struct {
	Found   int
	Deleted int
	Failed  int
}

type SweepService interface {
	SweepOrphans(ctx context.Context, input SweepInput) (SweepReport, error)
}
