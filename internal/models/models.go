package models

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
)

// SplitSpec holds the parameters of one split-and-combine invocation
type SplitSpec struct {
	SplitNum       int     `json:"split_num" yaml:"split_num"`
	FrameRate      float64 `json:"frame_rate" yaml:"frame_rate"`
	LoopCount      int     `json:"loop_count" yaml:"loop_count"`
	FilenamePrefix string  `json:"filename_prefix" yaml:"filename_prefix"`
	Format         string  `json:"format" yaml:"format"`
	PingPong       bool    `json:"pingpong" yaml:"pingpong"`
	SaveOutput     bool    `json:"save_output" yaml:"save_output"`
}

// Partition is a contiguous half-open range [Start, End) of a frame batch
type Partition struct {
	Index          int    `json:"index"`
	Start          int    `json:"start"`
	End            int    `json:"end"`
	FilenamePrefix string `json:"filename_prefix"`
}

// Len returns the number of frames in the partition
func (p Partition) Len() int {
	return p.End - p.Start
}

// Audio is a decoded audio track. Samples are interleaved float32 in [-1, 1].
type Audio struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// VAE decodes latent batches into image tensors
type VAE interface {
	Decode(ctx context.Context, latents *Tensor) (*Tensor, error)
}

// MetaBatch links several encoder calls into one output. The encoder keeps
// its output open until Expected frames have been written under ID.
type MetaBatch struct {
	ID       string
	Expected int

	mu      sync.Mutex
	written int
}

// NewMetaBatch creates a meta batch expecting the given number of frames
func NewMetaBatch(expected int) *MetaBatch {
	return &MetaBatch{
		ID:       ulid.Make().String(),
		Expected: expected,
	}
}

// Advance records n written frames and reports whether the batch is complete
func (m *MetaBatch) Advance(n int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written += n
	return m.written >= m.Expected
}

// Written returns the number of frames recorded so far
func (m *MetaBatch) Written() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written
}

// SideInputs are forwarded verbatim to every encoder call
type SideInputs struct {
	Audio         *Audio
	VAE           VAE
	MetaBatch     *MetaBatch
	Prompt        map[string]any
	ExtraInfo     map[string]any
	UniqueID      string
	FormatWidgets map[string]any
}

// EncodeRequest is a single encoder call: one partition plus shared parameters
type EncodeRequest struct {
	Images  FrameBatch
	Latents FrameBatch

	FrameRate      float64
	LoopCount      int
	FilenamePrefix string
	Format         string
	PingPong       bool
	SaveOutput     bool

	SideInputs
}
