package frames

import (
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFrame(t *testing.T, dir, name string, w, h int, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	f, err := os.Create(filepath.Join(dir, name))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 6; i++ {
		writeFrame(t, dir, fmt.Sprintf("frame_%05d.png", i+1), 3, 2, color.RGBA{R: uint8(i * 40), A: 255})
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0o755))

	tensor, err := LoadDir(context.Background(), dir, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{6, 2, 3, 3}, tensor.Shape)

	for i := 0; i < 6; i++ {
		img, err := tensor.Frame(i)
		require.NoError(t, err)
		assert.Equal(t, uint8(i*40), img.RGBAAt(2, 1).R, "frame %d out of order", i)
	}
}

func TestLoadDir_Errors(t *testing.T) {
	t.Run("Missing", func(t *testing.T) {
		_, err := LoadDir(context.Background(), filepath.Join(t.TempDir(), "nope"), 0)
		assert.Error(t, err)
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := LoadDir(context.Background(), t.TempDir(), 0)
		assert.ErrorContains(t, err, "no frames found")
	})

	t.Run("SizeMismatch", func(t *testing.T) {
		dir := t.TempDir()
		writeFrame(t, dir, "a.png", 4, 4, color.RGBA{A: 255})
		writeFrame(t, dir, "b.png", 2, 2, color.RGBA{A: 255})
		_, err := LoadDir(context.Background(), dir, 1)
		assert.ErrorContains(t, err, "b.png")
	})

	t.Run("Corrupt", func(t *testing.T) {
		dir := t.TempDir()
		writeFrame(t, dir, "a.png", 2, 2, color.RGBA{A: 255})
		require.NoError(t, os.WriteFile(filepath.Join(dir, "b.jpg"), []byte("not a jpeg"), 0o644))
		_, err := LoadDir(context.Background(), dir, 1)
		assert.ErrorContains(t, err, "failed to decode")
	})

	t.Run("Cancelled", func(t *testing.T) {
		dir := t.TempDir()
		writeFrame(t, dir, "a.png", 2, 2, color.RGBA{A: 255})
		writeFrame(t, dir, "b.png", 2, 2, color.RGBA{A: 255})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := LoadDir(ctx, dir, 1)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestExtract(t *testing.T) {
	t.Run("MissingVideo", func(t *testing.T) {
		_, err := Extract(context.Background(), "ffmpeg", filepath.Join(t.TempDir(), "none.mp4"), t.TempDir(), 0)
		assert.ErrorContains(t, err, "does not exist")
	})

	t.Run("ReusesExistingFrames", func(t *testing.T) {
		src := t.TempDir()
		video := filepath.Join(src, "clip.mp4")
		require.NoError(t, os.WriteFile(video, []byte("fake"), 0o644))

		out := t.TempDir()
		frameDir := filepath.Join(out, "clip")
		require.NoError(t, os.Mkdir(frameDir, 0o755))
		writeFrame(t, frameDir, "frame_00001.png", 2, 2, color.RGBA{A: 255})

		// a bogus ffmpeg path proves extraction was skipped
		got, err := Extract(context.Background(), "/nonexistent/ffmpeg", video, out, 0)
		require.NoError(t, err)
		assert.Equal(t, frameDir, got)
	})
}

func TestDecodeF32LE(t *testing.T) {
	raw := make([]byte, 12)
	for i, v := range []float32{0.25, -1, 0.5} {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}
	audio := decodeF32LE(raw)
	assert.Equal(t, []float32{0.25, -1, 0.5}, audio.Samples)
	assert.Equal(t, AudioSampleRate, audio.SampleRate)
	assert.Equal(t, AudioChannels, audio.Channels)
}

func TestLoadAudio_Missing(t *testing.T) {
	_, err := LoadAudio(context.Background(), "", filepath.Join(t.TempDir(), "none.wav"))
	assert.Error(t, err)
}
