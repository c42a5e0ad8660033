// Package ledger records completed split runs so their outputs can be found later.
package ledger

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/bdougie/vidsplit/internal/models"
)

// Run is one completed split-and-combine invocation
type Run struct {
	ID         string             `json:"id"`
	Prefix     string             `json:"prefix"`
	Format     string             `json:"format"`
	Frames     int                `json:"frames"`
	SplitNum   int                `json:"split_num"`
	FrameRate  float64            `json:"frame_rate"`
	SaveOutput bool               `json:"save_output"`
	Parts      []models.Partition `json:"parts"`
	Filenames  []string           `json:"filenames"`
	CreatedAt  time.Time          `json:"created_at"`
}

// Ledger defines the interface for storing run records
type Ledger interface {
	// AddRun records a completed run
	AddRun(ctx context.Context, run Run) error

	// Runs returns up to limit runs, newest first
	Runs(ctx context.Context, limit int) ([]Run, error)

	// Flush ensures all pending runs are saved
	Flush() error
}

// NewRun builds a run record with a fresh ID
func NewRun(spec models.SplitSpec, frames int, parts []models.Partition, env *models.Envelope) Run {
	return Run{
		ID:         ulid.Make().String(),
		Prefix:     spec.FilenamePrefix,
		Format:     spec.Format,
		Frames:     frames,
		SplitNum:   spec.SplitNum,
		FrameRate:  spec.FrameRate,
		SaveOutput: spec.SaveOutput,
		Parts:      parts,
		Filenames:  append([]string{}, env.Filenames()...),
		CreatedAt:  time.Now().UTC(),
	}
}

// Nop discards every run
type Nop struct{}

// AddRun does nothing
func (Nop) AddRun(context.Context, Run) error { return nil }

// Runs returns nothing
func (Nop) Runs(context.Context, int) ([]Run, error) { return nil, nil }

// Flush does nothing
func (Nop) Flush() error { return nil }
