// Package node exposes the splitter to a host as a named, schema-described
// operation that takes loosely typed inputs.
package node

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/bdougie/vidsplit/internal/formats"
	"github.com/bdougie/vidsplit/internal/models"
	"github.com/bdougie/vidsplit/internal/splitter"
)

// SplitCombineID is the stable identifier of the split-and-combine node
const SplitCombineID = "VideoSplitCombine"

// Input limits
const (
	MaxSplitNum  = 100
	MinFrameRate = 1
)

// SplitCombine is the split-and-combine node
type SplitCombine struct {
	splitter *splitter.Splitter
	catalog  formats.Catalog
	defaults models.SplitSpec
}

// NewSplitCombine creates the node. defaults fill inputs the host omits.
func NewSplitCombine(s *splitter.Splitter, catalog formats.Catalog, defaults models.SplitSpec) *SplitCombine {
	return &SplitCombine{
		splitter: s,
		catalog:  catalog,
		defaults: defaults,
	}
}

// ID returns SplitCombineID
func (n *SplitCombine) ID() string { return SplitCombineID }

// Schema declares the node's inputs and outputs
func (n *SplitCombine) Schema() Schema {
	names := n.catalog.Names()
	defaultFormat := n.defaults.Format
	if _, ok := n.catalog.Lookup(defaultFormat); !ok && len(names) > 0 {
		defaultFormat = names[0]
	}

	widgets := make(map[string][]formats.Widget)
	for _, f := range n.catalog.Formats {
		if len(f.Widgets) > 0 {
			widgets[f.Name] = f.Widgets
		}
	}

	return Schema{
		ID:       SplitCombineID,
		Category: "MyUtils",
		Function: "split_and_combine",
		Required: []Input{
			{Name: "images", Type: TypeImage},
			{Name: "split_num", Type: formats.WidgetInt, Default: n.defaults.SplitNum, Min: bound(1), Max: bound(MaxSplitNum), Step: 1},
			{Name: "frame_rate", Type: formats.WidgetFloat, Default: n.defaults.FrameRate, Min: bound(MinFrameRate), Step: 1},
			{Name: "loop_count", Type: formats.WidgetInt, Default: n.defaults.LoopCount, Min: bound(0), Max: bound(splitter.MaxLoopCount), Step: 1},
			{Name: "filename_prefix", Type: formats.WidgetString, Default: n.defaults.FilenamePrefix},
			{Name: "format", Type: formats.WidgetCombo, Default: defaultFormat, Options: names},
			{Name: "pingpong", Type: formats.WidgetBool, Default: n.defaults.PingPong},
			{Name: "save_output", Type: formats.WidgetBool, Default: n.defaults.SaveOutput},
		},
		Optional: []Input{
			{Name: "audio", Type: TypeAudio},
			{Name: "meta_batch", Type: TypeMetaBatch},
			{Name: "vae", Type: TypeVAE},
			{Name: "latents", Type: TypeLatent},
		},
		Hidden: []Input{
			{Name: "prompt", Type: TypePrompt},
			{Name: "extra_pnginfo", Type: TypeExtraInfo},
			{Name: "unique_id", Type: TypeUniqueID},
		},
		ReturnTypes:   []string{TypeFilenames},
		ReturnNames:   []string{"Filenames"},
		OutputNode:    true,
		FormatWidgets: widgets,
	}
}

// Invoke coerces raw host inputs and runs the splitter
func (n *SplitCombine) Invoke(ctx context.Context, inputs map[string]any) (*models.Envelope, error) {
	in, err := n.Coerce(inputs)
	if err != nil {
		return nil, err
	}
	return n.splitter.SplitAndCombine(ctx, in)
}

// Coerce turns raw host inputs into splitter inputs, applying defaults and
// the declared widget ranges.
func (n *SplitCombine) Coerce(inputs map[string]any) (splitter.Inputs, error) {
	spec := n.defaults
	var err error

	if spec.SplitNum, err = intInput(inputs, "split_num", spec.SplitNum, 1, MaxSplitNum); err != nil {
		return splitter.Inputs{}, err
	}
	if spec.FrameRate, err = floatInput(inputs, "frame_rate", spec.FrameRate, MinFrameRate); err != nil {
		return splitter.Inputs{}, err
	}
	if spec.LoopCount, err = intInput(inputs, "loop_count", spec.LoopCount, 0, splitter.MaxLoopCount); err != nil {
		return splitter.Inputs{}, err
	}
	if spec.FilenamePrefix, err = stringInput(inputs, "filename_prefix", spec.FilenamePrefix); err != nil {
		return splitter.Inputs{}, err
	}
	if spec.Format, err = stringInput(inputs, "format", spec.Format); err != nil {
		return splitter.Inputs{}, err
	}
	format, ok := n.catalog.Lookup(spec.Format)
	if !ok {
		return splitter.Inputs{}, &splitter.FieldError{Field: "format", Value: spec.Format, Reason: fmt.Sprintf("must be one of %v", n.catalog.Names())}
	}
	if spec.PingPong, err = boolInput(inputs, "pingpong", spec.PingPong); err != nil {
		return splitter.Inputs{}, err
	}
	if spec.SaveOutput, err = boolInput(inputs, "save_output", spec.SaveOutput); err != nil {
		return splitter.Inputs{}, err
	}

	side, err := sideInputs(inputs, format)
	if err != nil {
		return splitter.Inputs{}, err
	}

	return splitter.Inputs{
		Images:  inputs["images"],
		Latents: inputs["latents"],
		Spec:    spec,
		Side:    side,
	}, nil
}

func sideInputs(inputs map[string]any, format formats.Format) (models.SideInputs, error) {
	var side models.SideInputs

	if v, ok := present(inputs, "audio"); ok {
		a, ok := v.(*models.Audio)
		if !ok {
			return side, typeError("audio", v)
		}
		side.Audio = a
	}
	if v, ok := present(inputs, "vae"); ok {
		vae, ok := v.(models.VAE)
		if !ok {
			return side, typeError("vae", v)
		}
		side.VAE = vae
	}
	if v, ok := present(inputs, "meta_batch"); ok {
		m, ok := v.(*models.MetaBatch)
		if !ok {
			return side, typeError("meta_batch", v)
		}
		side.MetaBatch = m
	}
	if v, ok := present(inputs, "prompt"); ok {
		m, ok := v.(map[string]any)
		if !ok {
			return side, typeError("prompt", v)
		}
		side.Prompt = m
	}
	if v, ok := present(inputs, "extra_pnginfo"); ok {
		m, ok := v.(map[string]any)
		if !ok {
			return side, typeError("extra_pnginfo", v)
		}
		side.ExtraInfo = m
	}
	if v, ok := present(inputs, "unique_id"); ok {
		side.UniqueID = fmt.Sprint(v)
	}

	// Only the selected format's widgets are forwarded
	for _, w := range format.Widgets {
		if v, ok := present(inputs, w.Name); ok {
			if err := w.Validate(v); err != nil {
				return side, &splitter.FieldError{Field: w.Name, Value: v, Reason: err.Error()}
			}
			if side.FormatWidgets == nil {
				side.FormatWidgets = make(map[string]any, len(format.Widgets))
			}
			side.FormatWidgets[w.Name] = v
		}
	}
	return side, nil
}

func present(inputs map[string]any, name string) (any, bool) {
	v, ok := inputs[name]
	return v, ok && v != nil
}

func typeError(name string, v any) error {
	return fmt.Errorf("%w: %s has type %T", splitter.ErrInputType, name, v)
}

func intInput(inputs map[string]any, name string, def, min, max int) (int, error) {
	v, ok := present(inputs, name)
	if !ok {
		return def, nil
	}

	f, err := number(v)
	if err != nil || f != math.Trunc(f) {
		return 0, typeError(name, v)
	}
	n := int(f)
	if n < min || n > max {
		return 0, &splitter.FieldError{Field: name, Value: n, Reason: fmt.Sprintf("must be within [%d, %d]", min, max)}
	}
	return n, nil
}

func floatInput(inputs map[string]any, name string, def, min float64) (float64, error) {
	v, ok := present(inputs, name)
	if !ok {
		return def, nil
	}

	f, err := number(v)
	if err != nil {
		return 0, typeError(name, v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < min {
		return 0, &splitter.FieldError{Field: name, Value: f, Reason: fmt.Sprintf("must be a finite number of at least %v", min)}
	}
	return f, nil
}

func stringInput(inputs map[string]any, name, def string) (string, error) {
	v, ok := present(inputs, name)
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", typeError(name, v)
	}
	return s, nil
}

func boolInput(inputs map[string]any, name string, def bool) (bool, error) {
	v, ok := present(inputs, name)
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, typeError(name, v)
	}
	return b, nil
}

func number(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	case string:
		return strconv.ParseFloat(n, 64)
	}
	return 0, fmt.Errorf("%T is not a number", v)
}
