package splitter

import (
	"errors"
	"fmt"
)

// Validation errors. Both are raised before any partition is dispatched.
var (
	// ErrInputType means the batch is not a supported frame tensor.
	ErrInputType = errors.New("input must be a frame tensor")

	// ErrInputRange means a split parameter is out of range.
	ErrInputRange = errors.New("input out of range")
)

// RangeError reports a split count larger than the available frames
type RangeError struct {
	BatchSize int
	SplitNum  int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("frame count (%d) cannot be smaller than split count (%d)", e.BatchSize, e.SplitNum)
}

func (e *RangeError) Unwrap() error { return ErrInputRange }

// FieldError reports a single invalid SplitSpec field
type FieldError struct {
	Field  string
	Value  any
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrInputRange }
