// Package encoder turns frame batches into video and GIF files with ffmpeg.
package encoder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/bdougie/vidsplit/internal/formats"
	"github.com/bdougie/vidsplit/internal/models"
)

// Preview types
const (
	TypeOutput = "output"
	TypeTemp   = "temp"
)

var (
	// ErrUnknownFormat is returned for a format missing from the catalog
	ErrUnknownFormat = errors.New("unknown format")

	// ErrNoFrames is returned when a request carries neither images nor latents
	ErrNoFrames = errors.New("no frames to encode")
)

// Options configures an FFmpegEncoder
type Options struct {
	FFmpegPath string
	OutputDir  string
	TempDir    string
	Catalog    formats.Catalog
	Verbose    bool
}

// FFmpegEncoder encodes frame batches by piping raw frames to ffmpeg.
// Calls sharing a MetaBatch are written into a single output.
type FFmpegEncoder struct {
	opts   Options
	runner Runner
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// New creates an encoder that runs ffmpeg as a subprocess
func New(opts Options, logger *slog.Logger) *FFmpegEncoder {
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if len(opts.Catalog.Formats) == 0 {
		opts.Catalog = formats.Builtin()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegEncoder{
		opts:     opts,
		runner:   ExecRunner{},
		logger:   logger,
		sessions: make(map[string]*session),
	}
}

// WithRunner replaces the command runner
func (e *FFmpegEncoder) WithRunner(r Runner) *FFmpegEncoder {
	e.runner = r
	return e
}

// Encode writes one partition to {prefix}_{NNNNN}.{ext} plus a PNG of its
// first frame. With a MetaBatch the output is only finished, and reported,
// by the call that completes the meta batch.
func (e *FFmpegEncoder) Encode(ctx context.Context, req *models.EncodeRequest) (*models.Envelope, error) {
	format, ok := e.opts.Catalog.Lookup(req.Format)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, req.Format)
	}
	out, err := render(format, req.FormatWidgets)
	if err != nil {
		return nil, err
	}

	frames, err := e.decodeFrames(ctx, req)
	if err != nil {
		return nil, err
	}
	if frames.Len() == 0 {
		return &models.Envelope{}, nil
	}

	if req.MetaBatch != nil {
		return e.encodeLinked(ctx, req, out, frames)
	}

	target, err := e.newTarget(req, out.format, frames)
	if err != nil {
		return nil, err
	}

	order := frameOrder(frames.Len(), req.PingPong)
	j, cleanup, err := e.newJob(req, out, frames, target, len(order))
	if err != nil {
		return nil, err
	}
	defer cleanup()

	e.logger.Debug("running ffmpeg", "output", target.videoPath, "frames", len(order))

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(writeFrames(pw, frames, order))
	}()

	err = e.runner.Run(ctx, buildArgs(j), pr)
	pr.CloseWithError(io.ErrClosedPipe)
	if err != nil {
		return nil, err
	}

	return target.envelope(req), nil
}

// decodeFrames returns the image tensor to encode, decoding latents when present
func (e *FFmpegEncoder) decodeFrames(ctx context.Context, req *models.EncodeRequest) (*models.Tensor, error) {
	if req.Latents != nil {
		latents, ok := req.Latents.(*models.Tensor)
		if !ok {
			return nil, fmt.Errorf("latents must be a tensor, got %T", req.Latents)
		}
		if req.VAE == nil {
			return nil, fmt.Errorf("latents require a VAE to decode")
		}
		images, err := req.VAE.Decode(ctx, latents)
		if err != nil {
			return nil, fmt.Errorf("failed to decode latents: %w", err)
		}
		return images, nil
	}

	if req.Images == nil {
		return nil, ErrNoFrames
	}
	images, ok := req.Images.(*models.Tensor)
	if !ok {
		return nil, fmt.Errorf("images must be a tensor, got %T", req.Images)
	}
	return images, nil
}

// target is where one encode writes its files
type target struct {
	dir       string
	subfolder string
	kind      string
	format    string
	frameRate float64
	pngPath   string
	videoPath string
}

func (e *FFmpegEncoder) newTarget(req *models.EncodeRequest, format formats.Format, frames *models.Tensor) (*target, error) {
	root, kind := e.opts.TempDir, TypeTemp
	if req.SaveOutput {
		root, kind = e.opts.OutputDir, TypeOutput
	}

	subfolder := filepath.Dir(req.FilenamePrefix)
	if subfolder == "." {
		subfolder = ""
	}
	base := filepath.Base(req.FilenamePrefix)
	dir := filepath.Join(root, subfolder)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory '%s': %w", dir, err)
	}

	counter, err := nextCounter(dir, base)
	if err != nil {
		return nil, err
	}

	t := &target{
		dir:       dir,
		subfolder: subfolder,
		kind:      kind,
		format:    format.Name,
		frameRate: req.FrameRate,
		pngPath:   filepath.Join(dir, outputName(base, counter, "png")),
		videoPath: filepath.Join(dir, outputName(base, counter, format.Extension)),
	}

	first, err := frames.Frame(0)
	if err != nil {
		return nil, err
	}
	if err := savePNG(t.pngPath, first); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *target) envelope(req *models.EncodeRequest) *models.Envelope {
	return &models.Envelope{
		Result: &models.Output{
			SaveOutput: req.SaveOutput,
			Filenames:  []string{t.pngPath, t.videoPath},
		},
		UI: &models.UI{
			Previews: []models.Preview{{
				Filename:  filepath.Base(t.videoPath),
				Subfolder: t.subfolder,
				Type:      t.kind,
				Format:    t.format,
				FrameRate: t.frameRate,
				FullPath:  t.videoPath,
			}},
		},
	}
}

// rendered is a format with its widget placeholders filled in
type rendered struct {
	format    formats.Format
	args      []string
	audioArgs []string
}

// render fills the format's placeholders. Encode calls it before any file
// is written.
func render(format formats.Format, widgets map[string]any) (rendered, error) {
	args, audioArgs, err := format.Render(widgets)
	if err != nil {
		return rendered{}, err
	}
	return rendered{format: format, args: args, audioArgs: audioArgs}, nil
}

// newJob writes the audio track if needed. The returned cleanup removes
// temporary files.
func (e *FFmpegEncoder) newJob(req *models.EncodeRequest, out rendered, frames *models.Tensor, t *target, passFrames int) (job, func(), error) {
	cleanup := func() {}

	h, w, _, err := frames.Dims()
	if err != nil {
		return job{}, cleanup, err
	}

	j := job{
		ffmpeg:    e.opts.FFmpegPath,
		format:    out.format,
		args:      out.args,
		audioArgs: out.audioArgs,
		width:     w,
		height:    h,
		frameRate: req.FrameRate,
		loopCount: req.LoopCount,
		frames:    passFrames,
		output:    t.videoPath,
		verbose:   e.opts.Verbose,
	}

	j.comment, err = metadataComment(req)
	if err != nil {
		return job{}, cleanup, err
	}

	if req.Audio != nil && len(out.audioArgs) > 0 {
		audioPath := t.videoPath + ".wav"
		if err := writeWAV(audioPath, req.Audio); err != nil {
			return job{}, cleanup, err
		}
		j.audioPath = audioPath
		cleanup = func() {
			if err := os.Remove(audioPath); err != nil && !os.IsNotExist(err) {
				e.logger.Warn("failed to remove temporary audio", "path", audioPath, "error", err)
			}
		}
	}
	return j, cleanup, nil
}

func metadataComment(req *models.EncodeRequest) (string, error) {
	if len(req.Prompt) == 0 && len(req.ExtraInfo) == 0 {
		return "", nil
	}
	meta := map[string]any{}
	if len(req.Prompt) > 0 {
		meta["prompt"] = req.Prompt
	}
	for k, v := range req.ExtraInfo {
		meta[k] = v
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(data), nil
}

// frameOrder lists the frame indices to write. Ping-pong appends the
// frames in reverse without repeating the first or last.
func frameOrder(n int, pingpong bool) []int {
	order := make([]int, 0, 2*n)
	for i := 0; i < n; i++ {
		order = append(order, i)
	}
	if pingpong {
		for i := n - 2; i > 0; i-- {
			order = append(order, i)
		}
	}
	return order
}

// writeFrames streams frames as packed RGBA
func writeFrames(w io.Writer, frames *models.Tensor, order []int) error {
	for _, i := range order {
		img, err := frames.Frame(i)
		if err != nil {
			return err
		}
		if _, err := w.Write(img.Pix); err != nil {
			return fmt.Errorf("failed to write frame %d: %w", i, err)
		}
	}
	return nil
}
