package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FileName is the ledger file written inside the output directory
const FileName = "split_runs.json"

// DefaultBatchSize is the number of runs buffered before a write
const DefaultBatchSize = 10

// FileLedger buffers runs and appends them to a JSON file
type FileLedger struct {
	mu        sync.Mutex
	pending   []Run
	path      string
	batchSize int
}

// NewFileLedger creates a ledger writing to dir/split_runs.json
func NewFileLedger(dir string, batchSize int) *FileLedger {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &FileLedger{
		path:      filepath.Join(dir, FileName),
		batchSize: batchSize,
	}
}

// Path returns the ledger file path
func (l *FileLedger) Path() string {
	return l.path
}

// AddRun adds a run to the batch and flushes if the batch is full
func (l *FileLedger) AddRun(ctx context.Context, run Run) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = append(l.pending, run)

	// Write to disk when batch is full
	if len(l.pending) >= l.batchSize {
		return l.flush()
	}
	return nil
}

// Flush writes all pending runs to disk
func (l *FileLedger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flush()
}

// Runs returns saved and pending runs, newest first
func (l *FileLedger) Runs(ctx context.Context, limit int) ([]Run, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	runs, err := l.read()
	if err != nil {
		return nil, err
	}
	runs = append(runs, l.pending...)

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// Internal flush implementation
func (l *FileLedger) flush() error {
	if len(l.pending) == 0 {
		return nil
	}

	existing, err := l.read()
	if err != nil {
		return err
	}
	all := append(existing, l.pending...)

	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for ledger: %w", err)
	}

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode runs: %w", err)
	}

	// Replace atomically
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("failed to replace ledger: %w", err)
	}

	l.pending = nil // Clear the batch
	return nil
}

func (l *FileLedger) read() ([]Run, error) {
	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	var runs []Run
	if err := json.Unmarshal(data, &runs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal existing runs: %w", err)
	}
	return runs, nil
}
