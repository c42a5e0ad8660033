package splitter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bdougie/vidsplit/internal/models"
)

// Encoder turns one partition into an encoded artifact
type Encoder interface {
	Encode(ctx context.Context, req *models.EncodeRequest) (*models.Envelope, error)
}

// Inputs is one split-and-combine invocation. Images and Latents carry raw
// host values; a non-nil Latents replaces Images.
type Inputs struct {
	Images  any
	Latents any
	Spec    models.SplitSpec
	Side    models.SideInputs
}

// Splitter partitions a frame batch and dispatches each part to an Encoder
type Splitter struct {
	encoder Encoder
	logger  *slog.Logger
}

// New creates a Splitter around the given encoder
func New(encoder Encoder, logger *slog.Logger) *Splitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Splitter{
		encoder: encoder,
		logger:  logger,
	}
}

// SplitAndCombine splits the batch into Spec.SplitNum contiguous parts,
// encodes each part in order and concatenates the results. An encoder error
// is returned unchanged and aborts the remaining parts; no partial result is
// returned.
func (s *Splitter) SplitAndCombine(ctx context.Context, in Inputs) (*models.Envelope, error) {
	batch, latent, err := selectBatch(in)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		s.logger.Debug("no frames supplied, nothing to encode")
		return emptyResult(in.Spec.SaveOutput), nil
	}

	if err := Validate(in.Spec); err != nil {
		return nil, err
	}
	if batch.Len() == 0 {
		s.logger.Debug("empty frame batch, nothing to encode")
		return emptyResult(in.Spec.SaveOutput), nil
	}

	parts, err := Plan(batch.Len(), in.Spec.SplitNum, in.Spec.FilenamePrefix)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("planned split",
		"frames", batch.Len(),
		"parts", len(parts),
		"latent", latent,
	)

	out := emptyResult(in.Spec.SaveOutput)
	for _, part := range parts {
		req := newRequest(in, batch.Slice(part.Start, part.End), latent, part)

		s.logger.Info("encoding part",
			"part", part.Index+1,
			"of", len(parts),
			"frames", part.Len(),
			"prefix", part.FilenamePrefix,
		)

		env, err := s.encoder.Encode(ctx, req)
		if err != nil {
			s.logger.Error("encoding part failed", "part", part.Index+1, "error", err)
			return nil, err
		}

		out.Result.Filenames = append(out.Result.Filenames, env.Filenames()...)
		out.UI.Previews = append(out.UI.Previews, env.Previews()...)
	}

	s.logger.Info("split complete",
		"parts", len(parts),
		"files", len(out.Result.Filenames),
	)
	return out, nil
}

// selectBatch picks latents over images and checks the container type.
// A nil batch with a nil error means no frames were supplied.
func selectBatch(in Inputs) (models.FrameBatch, bool, error) {
	raw, latent := in.Images, false
	if !isAbsent(in.Latents) {
		raw, latent = in.Latents, true
	}
	if isAbsent(raw) {
		return nil, latent, nil
	}

	tensor, ok := raw.(*models.Tensor)
	if !ok {
		return nil, latent, fmt.Errorf("%w, got %T", ErrInputType, raw)
	}
	if err := tensor.Validate(); err != nil {
		return nil, latent, fmt.Errorf("%w: %v", ErrInputType, err)
	}
	return tensor, latent, nil
}

func isAbsent(v any) bool {
	if v == nil {
		return true
	}
	t, ok := v.(*models.Tensor)
	return ok && t == nil
}

func newRequest(in Inputs, frames models.FrameBatch, latent bool, part models.Partition) *models.EncodeRequest {
	req := &models.EncodeRequest{
		FrameRate:      in.Spec.FrameRate,
		LoopCount:      in.Spec.LoopCount,
		FilenamePrefix: part.FilenamePrefix,
		Format:         in.Spec.Format,
		PingPong:       in.Spec.PingPong,
		SaveOutput:     in.Spec.SaveOutput,
		SideInputs:     in.Side,
	}
	if latent {
		req.Latents = frames
	} else {
		req.Images = frames
	}
	return req
}

func emptyResult(saveOutput bool) *models.Envelope {
	return &models.Envelope{
		Result: &models.Output{SaveOutput: saveOutput, Filenames: []string{}},
		UI:     &models.UI{Previews: []models.Preview{}},
	}
}
