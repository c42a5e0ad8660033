package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bdougie/vidsplit/internal/config"
	"github.com/bdougie/vidsplit/internal/frames"
	"github.com/bdougie/vidsplit/internal/ledger"
	"github.com/bdougie/vidsplit/internal/models"
	"github.com/bdougie/vidsplit/internal/node"
	"github.com/bdougie/vidsplit/internal/splitter"
)

type splitOptions struct {
	framesDir  string
	videoPath  string
	extractFPS float64
	audioPath  string
	asJSON     bool
	noLedger   bool
	verbose    bool
	widgets    map[string]string
}

// widgetFlags maps CLI flags to node inputs. Only flags the user set are
// forwarded so the node's configured defaults apply otherwise.
var widgetFlags = map[string]string{
	"split":       "split_num",
	"fps":         "frame_rate",
	"loop":        "loop_count",
	"prefix":      "filename_prefix",
	"format":      "format",
	"pingpong":    "pingpong",
	"save-output": "save_output",
}

func newSplitCmd(a *app) *cobra.Command {
	var opts splitOptions

	cmd := &cobra.Command{
		Use:   "split",
		Short: "Split a frame batch into parts and encode each one",
		Example: `  # Split a directory of frames into three GIFs
  vidsplit split --frames ./frames --split 3

  # Extract frames from a video and encode two mp4 parts with audio
  vidsplit split --video clip.mp4 --split 2 --format video/mp4 --audio clip.mp4

  # Override a preset's widget
  vidsplit split --frames ./frames --format video/h264-mp4 --widget crf=23`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runSplit(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.framesDir, "frames", "", "directory of PNG or JPEG frames")
	f.StringVar(&opts.videoPath, "video", "", "video file to extract frames from")
	f.Float64Var(&opts.extractFPS, "extract-fps", 0, "frame rate used when extracting from --video (0 keeps the source rate)")
	f.StringVar(&opts.audioPath, "audio", "", "audio file muxed into every part")
	f.BoolVar(&opts.asJSON, "json", false, "print the result envelope as JSON")
	f.BoolVar(&opts.noLedger, "no-ledger", false, "do not record the run")
	f.BoolVar(&opts.verbose, "verbose", false, "show ffmpeg output")
	f.StringToStringVar(&opts.widgets, "widget", nil, "format widget value as name=value (repeatable)")

	// Help shows built-in defaults; config values apply when a flag is unset
	d := config.Default().Defaults
	f.Int("split", d.SplitNum, "number of parts")
	f.Float64("fps", d.FrameRate, "output frame rate")
	f.Int("loop", d.LoopCount, "loop count")
	f.String("prefix", d.FilenamePrefix, "output filename prefix")
	f.String("format", d.Format, "output format")
	f.Bool("pingpong", d.PingPong, "play each part forward then backward")
	f.Bool("save-output", d.SaveOutput, "write to the output directory instead of the temp directory")

	cmd.MarkFlagsMutuallyExclusive("frames", "video")
	cmd.MarkFlagsOneRequired("frames", "video")
	return cmd
}

func (a *app) runSplit(cmd *cobra.Command, opts splitOptions) error {
	ctx := cmd.Context()

	framesDir := opts.framesDir
	if opts.videoPath != "" {
		a.logger.Info("extracting frames", "video", opts.videoPath)
		dir, err := frames.Extract(ctx, a.cfg.FFmpegPath, opts.videoPath, a.cfg.TempDir, opts.extractFPS)
		if err != nil {
			return err
		}
		framesDir = dir
	}

	batch, err := frames.LoadDir(ctx, framesDir, a.cfg.Workers)
	if err != nil {
		return err
	}
	a.logger.Info("frames loaded", "dir", framesDir, "count", batch.Len())

	p, err := a.pipeline(opts.verbose)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.encoder.Close(); err != nil {
			a.logger.Error("failed to close encoder", "error", err)
		}
	}()

	inputs := map[string]any{"images": batch}
	schema := p.node.Schema()
	for name, v := range opts.widgets {
		if _, taken := schema.Lookup(name); taken {
			return fmt.Errorf("--widget %s: %q is a node input, use its own flag", name, name)
		}
		inputs[name] = v
	}
	for flag, input := range widgetFlags {
		if !cmd.Flags().Changed(flag) {
			continue
		}
		v, err := flagValue(cmd, flag)
		if err != nil {
			return err
		}
		inputs[input] = v
	}
	if opts.audioPath != "" {
		audio, err := frames.LoadAudio(ctx, a.cfg.FFmpegPath, opts.audioPath)
		if err != nil {
			return err
		}
		inputs["audio"] = audio
	}

	in, err := p.node.Coerce(inputs)
	if err != nil {
		return err
	}
	for name := range opts.widgets {
		if _, ok := in.Side.FormatWidgets[name]; !ok {
			a.logger.Warn("widget not used by format", "widget", name, "format", in.Spec.Format)
		}
	}

	l, release, err := a.openLedger(ctx, opts.noLedger)
	if err != nil {
		return err
	}
	defer release()

	env, err := p.registry.Invoke(ctx, node.SplitCombineID, inputs)
	if err != nil {
		return err
	}

	if err := a.record(ctx, l, in.Spec, batch, env); err != nil {
		return err
	}
	return printEnvelope(cmd, env, opts.asJSON)
}

func (a *app) record(ctx context.Context, l ledger.Ledger, spec models.SplitSpec, batch *models.Tensor, env *models.Envelope) error {
	parts, err := splitter.Plan(batch.Len(), spec.SplitNum, spec.FilenamePrefix)
	if err != nil {
		return err
	}

	run := ledger.NewRun(spec, batch.Len(), parts, env)
	if err := l.AddRun(ctx, run); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	a.logger.Debug("run recorded", "id", run.ID)
	return nil
}

func flagValue(cmd *cobra.Command, name string) (any, error) {
	f := cmd.Flags()
	switch f.Lookup(name).Value.Type() {
	case "int":
		return f.GetInt(name)
	case "float64":
		return f.GetFloat64(name)
	case "bool":
		return f.GetBool(name)
	default:
		return f.GetString(name)
	}
}

func printEnvelope(cmd *cobra.Command, env *models.Envelope, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(env)
	}

	names := env.Filenames()
	if len(names) == 0 {
		fmt.Fprintln(out, "No frames to encode.")
		return nil
	}
	for _, name := range names {
		fmt.Fprintln(out, name)
	}
	return nil
}
