// Package store persists run history so surveillance outcomes can be
// audited after the fact.
package store

import (
	"context"

	"github.com/northquay/surveil-cli/internal/model"
)

// Store defines the persistence interface for batch runs.
type Store interface {
	CreateRun(ctx context.Context, runDate string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, summary model.RunSummary, artifact []byte) error
	FailRun(ctx context.Context, runID, reason string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	Migrate(ctx context.Context) error
	Close() error
}
