package splitter

import (
	"fmt"
	"math"

	"github.com/bdougie/vidsplit/internal/models"
)

// MaxLoopCount is the largest accepted loop count
const MaxLoopCount = 100

// Plan lays out splitNum contiguous partitions over batchSize frames. The
// first batchSize%splitNum partitions get one extra frame.
func Plan(batchSize, splitNum int, prefix string) ([]models.Partition, error) {
	if splitNum < 1 {
		return nil, &FieldError{Field: "split_num", Value: splitNum, Reason: "must be at least 1"}
	}
	if batchSize < splitNum {
		return nil, &RangeError{BatchSize: batchSize, SplitNum: splitNum}
	}

	framesPerSplit := batchSize / splitNum
	remainder := batchSize % splitNum

	parts := make([]models.Partition, 0, splitNum)
	start := 0
	for i := 0; i < splitNum; i++ {
		n := framesPerSplit
		if i < remainder {
			n++
		}
		parts = append(parts, models.Partition{
			Index:          i,
			Start:          start,
			End:            start + n,
			FilenamePrefix: PartPrefix(prefix, i),
		})
		start += n
	}
	return parts, nil
}

// PartPrefix returns the filename prefix of the 0-indexed partition i
func PartPrefix(prefix string, i int) string {
	return fmt.Sprintf("%s_part%02d", prefix, i+1)
}

// Validate checks the SplitSpec fields that do not depend on the batch
func Validate(spec models.SplitSpec) error {
	if spec.SplitNum < 1 {
		return &FieldError{Field: "split_num", Value: spec.SplitNum, Reason: "must be at least 1"}
	}
	if !(spec.FrameRate > 0) || math.IsInf(spec.FrameRate, 0) {
		return &FieldError{Field: "frame_rate", Value: spec.FrameRate, Reason: "must be positive and finite"}
	}
	if spec.LoopCount < 0 || spec.LoopCount > MaxLoopCount {
		return &FieldError{Field: "loop_count", Value: spec.LoopCount, Reason: fmt.Sprintf("must be within [0, %d]", MaxLoopCount)}
	}
	if spec.Format == "" {
		return &FieldError{Field: "format", Value: spec.Format, Reason: "must not be empty"}
	}
	return nil
}
