package formats

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNoPresets is returned when a preset directory holds no format files
var ErrNoPresets = errors.New("no format presets found")

// Discoverer supplies a format catalog
type Discoverer interface {
	Discover() (Catalog, error)
}

// DiscovererFunc adapts a function to Discoverer
type DiscovererFunc func() (Catalog, error)

// Discover calls f
func (f DiscovererFunc) Discover() (Catalog, error) { return f() }

// DirDiscoverer loads format presets from *.yaml files in a directory. GIF
// is always offered first since it needs no preset.
type DirDiscoverer struct {
	Dir string
}

// NewDirDiscoverer creates a discoverer for the given preset directory
func NewDirDiscoverer(dir string) *DirDiscoverer {
	return &DirDiscoverer{Dir: dir}
}

// Discover reads every preset file in the directory in name order
func (d *DirDiscoverer) Discover() (Catalog, error) {
	if d.Dir == "" {
		return Catalog{}, fmt.Errorf("format preset directory not set")
	}

	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		return Catalog{}, fmt.Errorf("failed to read format presets '%s': %w", d.Dir, err)
	}

	var files []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return Catalog{}, fmt.Errorf("%w in '%s'", ErrNoPresets, d.Dir)
	}
	sort.Strings(files)

	catalog := Catalog{Source: d.Dir, Formats: []Format{gifFormat()}}
	for _, name := range files {
		f, err := loadPreset(filepath.Join(d.Dir, name))
		if err != nil {
			return Catalog{}, err
		}
		if _, dup := catalog.Lookup(f.Name); dup {
			return Catalog{}, fmt.Errorf("duplicate format %q in '%s'", f.Name, name)
		}
		catalog.Formats = append(catalog.Formats, f)
	}
	return catalog, nil
}

func loadPreset(path string) (Format, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Format{}, fmt.Errorf("failed to read format preset '%s': %w", path, err)
	}

	var f Format
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Format{}, fmt.Errorf("failed to parse format preset '%s': %w", path, err)
	}
	if f.Name == "" {
		// h264-mp4.yaml becomes video/h264-mp4
		f.Name = "video/" + strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := f.Validate(); err != nil {
		return Format{}, fmt.Errorf("invalid format preset '%s': %w", path, err)
	}
	return f, nil
}

// Resolve returns the first catalog a discoverer supplies. When every
// discoverer fails it falls back to Builtin.
func Resolve(logger *slog.Logger, discoverers ...Discoverer) Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	for _, d := range discoverers {
		if d == nil {
			continue
		}
		catalog, err := d.Discover()
		if err != nil {
			logger.Warn("format discovery failed, trying next source", "error", err)
			continue
		}
		logger.Debug("formats discovered", "source", catalog.Source, "count", len(catalog.Formats))
		return catalog
	}

	logger.Info("using builtin formats")
	return Builtin()
}
