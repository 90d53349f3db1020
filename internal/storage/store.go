package storage

import (
	"context"

	"fishschool/internal/model"
)

// Store persists benchmark timing records.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	// ListRuns returns matching runs, oldest first.
	ListRuns(ctx context.Context, filter model.RunFilter) ([]model.RunRecord, error)
	SaveSweep(ctx context.Context, sweep model.SweepRecord) error
	GetSweep(ctx context.Context, id string) (model.SweepRecord, bool, error)
	ListSweeps(ctx context.Context) ([]model.SweepRecord, error)
}
