package storage

import (
	"github.com/cuemby/converge/pkg/types"
)

// Store defines the interface for the run journal
type Store interface {
	// SaveRun stores a run; saving the same ID again replaces it
	SaveRun(run *types.Run) error

	// GetRun returns the run with the given ID or an error wrapping
	// types.ErrNotFound
	GetRun(id string) (*types.Run, error)

	// ListRuns returns the newest runs first; limit <= 0 returns all
	ListRuns(limit int) ([]*types.Run, error)

	// PruneRuns deletes all but the newest keep runs
	PruneRuns(keep int) (int, error)

	Close() error
}
