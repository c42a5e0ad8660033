// Package frames loads image sequences into frame tensors.
package frames

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/bdougie/vidsplit/internal/models"
)

// DefaultWorkers is the decode concurrency when none is configured
const DefaultWorkers = 4

var frameExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// LoadDir decodes every PNG or JPEG in dir, in file name order, into a
// [B, H, W, 3] tensor. All frames must share the first frame's size.
func LoadDir(ctx context.Context, dir string, workers int) (*models.Tensor, error) {
	names, err := listFrames(dir)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no frames found in directory '%s'", dir)
	}

	first, err := decode(filepath.Join(dir, names[0]))
	if err != nil {
		return nil, err
	}
	bounds := first.Bounds()
	tensor := models.NewTensor(len(names), bounds.Dy(), bounds.Dx(), 3)
	if err := tensor.SetFrame(0, first); err != nil {
		return nil, err
	}

	if workers <= 0 {
		workers = DefaultWorkers
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 1; i < len(names); i++ {
		path := filepath.Join(dir, names[i])
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := decode(path)
			if err != nil {
				return err
			}
			// Each goroutine owns a disjoint frame of the tensor
			if err := tensor.SetFrame(i, img); err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(path), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tensor, nil
}

func listFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frames directory '%s': %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && frameExts[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame '%s': %w", path, err)
	}
	return img, nil
}
