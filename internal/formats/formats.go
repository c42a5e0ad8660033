// Package formats describes the encode targets the encoder understands and
// the extra widgets each one exposes to callers.
package formats

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Widget types, named the way the host schema names them
const (
	WidgetInt    = "INT"
	WidgetFloat  = "FLOAT"
	WidgetString = "STRING"
	WidgetBool   = "BOOLEAN"
	WidgetCombo  = "COMBO"
)

// Widget is one extra configuration input of a format
type Widget struct {
	Name    string   `yaml:"name" json:"name"`
	Type    string   `yaml:"type" json:"type"`
	Default any      `yaml:"default" json:"default,omitempty"`
	Min     *float64 `yaml:"min" json:"min,omitempty"`
	Max     *float64 `yaml:"max" json:"max,omitempty"`
	Options []string `yaml:"options" json:"options,omitempty"`
}

// Format is an encode target. Args and AudioArgs are ffmpeg output
// arguments; "{name}" placeholders are replaced by widget values.
type Format struct {
	Name      string   `yaml:"name" json:"name"`
	Extension string   `yaml:"extension" json:"extension"`
	Args      []string `yaml:"args" json:"args"`
	AudioArgs []string `yaml:"audio_args" json:"audio_args,omitempty"`
	Filter    string   `yaml:"filter" json:"filter,omitempty"`
	LoopFlag  bool     `yaml:"loop_flag" json:"loop_flag"`
	Widgets   []Widget `yaml:"widgets" json:"widgets,omitempty"`
}

// Catalog is the set of formats available to callers, in presentation order
type Catalog struct {
	Source  string
	Formats []Format
}

// Names returns the format names in order
func (c Catalog) Names() []string {
	names := make([]string, len(c.Formats))
	for i, f := range c.Formats {
		names[i] = f.Name
	}
	return names
}

// Lookup finds a format by name
func (c Catalog) Lookup(name string) (Format, bool) {
	for _, f := range c.Formats {
		if f.Name == name {
			return f, true
		}
	}
	return Format{}, false
}

// Builtin returns the minimal catalog used when no presets are available
func Builtin() Catalog {
	return Catalog{
		Source: "builtin",
		Formats: []Format{
			gifFormat(),
			{
				Name:      "video/webm",
				Extension: "webm",
				Args:      []string{"-c:v", "libvpx-vp9", "-crf", "20", "-b:v", "0", "-pix_fmt", "yuv420p"},
				AudioArgs: []string{"-c:a", "libopus"},
			},
			{
				Name:      "video/mp4",
				Extension: "mp4",
				Args:      []string{"-c:v", "libx264", "-crf", "19", "-pix_fmt", "yuv420p", "-movflags", "+faststart"},
				AudioArgs: []string{"-c:a", "aac"},
			},
		},
	}
}

func gifFormat() Format {
	return Format{
		Name:      "image/gif",
		Extension: "gif",
		Filter:    "split[a][b];[a]palettegen[p];[b][p]paletteuse",
		LoopFlag:  true,
	}
}

// Validate checks a format definition for missing fields and bad widgets
func (f Format) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("format name is required")
	}
	if f.Extension == "" {
		return fmt.Errorf("format %s: extension is required", f.Name)
	}
	seen := make(map[string]bool, len(f.Widgets))
	for _, w := range f.Widgets {
		if w.Name == "" {
			return fmt.Errorf("format %s: widget name is required", f.Name)
		}
		if seen[w.Name] {
			return fmt.Errorf("format %s: duplicate widget %q", f.Name, w.Name)
		}
		seen[w.Name] = true
		switch w.Type {
		case WidgetInt, WidgetFloat, WidgetString, WidgetBool:
		case WidgetCombo:
			if len(w.Options) == 0 {
				return fmt.Errorf("format %s: combo widget %q has no options", f.Name, w.Name)
			}
		default:
			return fmt.Errorf("format %s: widget %q has unknown type %q", f.Name, w.Name, w.Type)
		}
	}
	return nil
}

// Render returns the video and audio output arguments with widget
// placeholders filled from values, falling back to widget defaults.
func (f Format) Render(values map[string]any) (args, audioArgs []string, err error) {
	resolved := make(map[string]string, len(f.Widgets))
	for _, w := range f.Widgets {
		v, ok := values[w.Name]
		if !ok {
			v = w.Default
		}
		s, err := w.format(v)
		if err != nil {
			return nil, nil, fmt.Errorf("format %s: %w", f.Name, err)
		}
		resolved[w.Name] = s
	}

	return substitute(f.Args, resolved), substitute(f.AudioArgs, resolved), nil
}

func substitute(args []string, values map[string]string) []string {
	if len(args) == 0 {
		return nil
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", values[k])
	}
	r := strings.NewReplacer(pairs...)

	out := make([]string, len(args))
	for i, a := range args {
		out[i] = r.Replace(a)
	}
	return out
}

// Validate reports whether v is an acceptable value for the widget
func (w Widget) Validate(v any) error {
	_, err := w.format(v)
	return err
}

// format checks v against the widget and renders it as an ffmpeg argument
func (w Widget) format(v any) (string, error) {
	if v == nil {
		return "", fmt.Errorf("widget %q has no value and no default", w.Name)
	}

	switch w.Type {
	case WidgetInt, WidgetFloat:
		n, err := toFloat(v)
		if err != nil {
			return "", fmt.Errorf("widget %q: %w", w.Name, err)
		}
		if w.Type == WidgetInt && n != math.Trunc(n) {
			return "", fmt.Errorf("widget %q: %v is not an integer", w.Name, v)
		}
		if w.Min != nil && n < *w.Min {
			return "", fmt.Errorf("widget %q: %v is below minimum %v", w.Name, v, *w.Min)
		}
		if w.Max != nil && n > *w.Max {
			return "", fmt.Errorf("widget %q: %v is above maximum %v", w.Name, v, *w.Max)
		}
		if w.Type == WidgetInt {
			return strconv.FormatInt(int64(n), 10), nil
		}
		return strconv.FormatFloat(n, 'f', -1, 64), nil
	case WidgetBool:
		b, ok := v.(bool)
		if s, isString := v.(string); isString {
			parsed, err := strconv.ParseBool(s)
			b, ok = parsed, err == nil
		}
		if !ok {
			return "", fmt.Errorf("widget %q: %v is not a boolean", w.Name, v)
		}
		return strconv.FormatBool(b), nil
	case WidgetCombo:
		s := fmt.Sprint(v)
		for _, o := range w.Options {
			if o == s {
				return s, nil
			}
		}
		return "", fmt.Errorf("widget %q: %q is not one of %v", w.Name, s, w.Options)
	default:
		return fmt.Sprint(v), nil
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	}
	return 0, fmt.Errorf("%v (%T) is not a number", v, v)
}
