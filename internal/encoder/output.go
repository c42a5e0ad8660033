package encoder

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"regexp"
	"strconv"

	"github.com/bdougie/vidsplit/internal/models"
)

// nextCounter returns the first free output number for base in dir. Files
// are named {base}_{NNNNN}.{ext}; numbering starts at 1.
func nextCounter(dir, base string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 1, nil
		}
		return 0, fmt.Errorf("failed to read output directory '%s': %w", dir, err)
	}

	re := regexp.MustCompile("^" + regexp.QuoteMeta(base) + `_(\d{5,})\.`)
	highest := 0
	for _, e := range entries {
		m := re.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > highest {
			highest = n
		}
	}
	return highest + 1, nil
}

func outputName(base string, counter int, ext string) string {
	return fmt.Sprintf("%s_%05d.%s", base, counter, ext)
}

// savePNG writes img to path
func savePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create preview image: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("failed to encode preview image: %w", err)
	}
	return f.Close()
}

// writeWAV writes audio as 16-bit PCM
func writeWAV(path string, a *models.Audio) error {
	if a.SampleRate <= 0 || a.Channels <= 0 {
		return fmt.Errorf("invalid audio: %d Hz, %d channels", a.SampleRate, a.Channels)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create audio file: %w", err)
	}
	defer f.Close()

	const bitsPerSample = 16
	dataSize := uint32(len(a.Samples) * 2)
	blockAlign := uint16(a.Channels * bitsPerSample / 8)

	w := bufio.NewWriter(f)
	header := []any{
		[4]byte{'R', 'I', 'F', 'F'},
		uint32(36 + dataSize),
		[4]byte{'W', 'A', 'V', 'E'},
		[4]byte{'f', 'm', 't', ' '},
		uint32(16),
		uint16(1), // PCM
		uint16(a.Channels),
		uint32(a.SampleRate),
		uint32(a.SampleRate) * uint32(blockAlign),
		blockAlign,
		uint16(bitsPerSample),
		[4]byte{'d', 'a', 't', 'a'},
		dataSize,
	}
	for _, v := range header {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("failed to write audio header: %w", err)
		}
	}

	for _, s := range a.Samples {
		v := math.Max(-1, math.Min(1, float64(s)))
		if err := binary.Write(w, binary.LittleEndian, int16(v*math.MaxInt16)); err != nil {
			return fmt.Errorf("failed to write audio samples: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write audio file: %w", err)
	}
	return f.Close()
}
