package encoder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/vidsplit/internal/formats"
	"github.com/bdougie/vidsplit/internal/models"
)

// fakeRunner drains stdin and writes the byte count to the output file
type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string
	bytes []int
	fail  error
}

func (f *fakeRunner) Run(_ context.Context, args []string, stdin io.Reader) error {
	n, err := io.Copy(io.Discard, stdin)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.calls = append(f.calls, args)
	f.bytes = append(f.bytes, int(n))
	f.mu.Unlock()

	if f.fail != nil {
		return f.fail
	}
	return os.WriteFile(args[len(args)-1], []byte("video"), 0o644)
}

type fakeVAE struct{ calls int }

func (v *fakeVAE) Decode(_ context.Context, latents *models.Tensor) (*models.Tensor, error) {
	v.calls++
	return models.NewTensor(latents.Len(), 2, 2, 3), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEncoder(t *testing.T, r Runner) (*FFmpegEncoder, string, string) {
	t.Helper()
	out, tmp := t.TempDir(), t.TempDir()
	enc := New(Options{OutputDir: out, TempDir: tmp}, testLogger()).WithRunner(r)
	return enc, out, tmp
}

func request(frames int) *models.EncodeRequest {
	return &models.EncodeRequest{
		Images:         models.NewTensor(frames, 2, 2, 3),
		FrameRate:      8,
		FilenamePrefix: "clip_part01",
		Format:         "video/mp4",
		SaveOutput:     true,
	}
}

const frameBytes = 2 * 2 * 4

func TestEncode_WritesOutput(t *testing.T) {
	runner := &fakeRunner{}
	enc, out, _ := newTestEncoder(t, runner)

	env, err := enc.Encode(context.Background(), request(3))
	require.NoError(t, err)

	wantPNG := filepath.Join(out, "clip_part01_00001.png")
	wantMP4 := filepath.Join(out, "clip_part01_00001.mp4")
	require.NotNil(t, env.Result)
	assert.True(t, env.Result.SaveOutput)
	assert.Equal(t, []string{wantPNG, wantMP4}, env.Result.Filenames)
	assert.FileExists(t, wantPNG)
	assert.FileExists(t, wantMP4)

	require.NotNil(t, env.UI)
	require.Len(t, env.UI.Previews, 1)
	assert.Equal(t, models.Preview{
		Filename:  "clip_part01_00001.mp4",
		Type:      TypeOutput,
		Format:    "video/mp4",
		FrameRate: 8,
		FullPath:  wantMP4,
	}, env.UI.Previews[0])

	require.Len(t, runner.calls, 1)
	assert.Equal(t, 3*frameBytes, runner.bytes[0])
	args := strings.Join(runner.calls[0], " ")
	assert.Contains(t, args, "-f rawvideo -pix_fmt rgba -s 2x2 -r 8 -i -")
	assert.Contains(t, args, "-c:v libx264")
}

func TestEncode_CounterAdvances(t *testing.T) {
	enc, out, _ := newTestEncoder(t, &fakeRunner{})

	_, err := enc.Encode(context.Background(), request(1))
	require.NoError(t, err)
	env, err := enc.Encode(context.Background(), request(1))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(out, "clip_part01_00002.mp4"), env.Result.Filenames[1])
}

func TestEncode_TempAndSubfolder(t *testing.T) {
	enc, _, tmp := newTestEncoder(t, &fakeRunner{})
	req := request(2)
	req.SaveOutput = false
	req.FilenamePrefix = "runs/clip_part02"
	req.Format = "image/gif"

	env, err := enc.Encode(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, env.Result.SaveOutput)
	assert.Equal(t, filepath.Join(tmp, "runs", "clip_part02_00001.gif"), env.Result.Filenames[1])
	assert.Equal(t, "runs", env.UI.Previews[0].Subfolder)
	assert.Equal(t, TypeTemp, env.UI.Previews[0].Type)
}

func TestEncode_PingPong(t *testing.T) {
	runner := &fakeRunner{}
	enc, _, _ := newTestEncoder(t, runner)
	req := request(4)
	req.PingPong = true

	_, err := enc.Encode(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 6*frameBytes, runner.bytes[0])
}

func TestEncode_Audio(t *testing.T) {
	runner := &fakeRunner{}
	enc, out, _ := newTestEncoder(t, runner)
	req := request(2)
	req.Audio = &models.Audio{Samples: []float32{0, 0.5, -0.5, 1}, SampleRate: 8000, Channels: 2}

	_, err := enc.Encode(context.Background(), req)
	require.NoError(t, err)

	args := runner.calls[0]
	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-map 0:v -map 1:a -c:a aac -shortest")
	assert.NoFileExists(t, filepath.Join(out, "clip_part01_00001.mp4.wav"), "temporary audio must be removed")
}

func TestEncode_Latents(t *testing.T) {
	runner := &fakeRunner{}
	enc, _, _ := newTestEncoder(t, runner)
	vae := &fakeVAE{}

	req := request(0)
	req.Images = nil
	req.Latents = models.NewTensor(3, 4, 1, 1)
	req.VAE = vae

	_, err := enc.Encode(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, vae.calls)
	assert.Equal(t, 3*frameBytes, runner.bytes[0])

	req.VAE = nil
	_, err = enc.Encode(context.Background(), req)
	assert.ErrorContains(t, err, "require a VAE")
}

func TestEncode_Errors(t *testing.T) {
	t.Run("UnknownFormat", func(t *testing.T) {
		enc, _, _ := newTestEncoder(t, &fakeRunner{})
		req := request(1)
		req.Format = "video/avi"
		_, err := enc.Encode(context.Background(), req)
		assert.ErrorIs(t, err, ErrUnknownFormat)
	})

	t.Run("NoFrames", func(t *testing.T) {
		enc, _, _ := newTestEncoder(t, &fakeRunner{})
		req := request(1)
		req.Images = nil
		_, err := enc.Encode(context.Background(), req)
		assert.ErrorIs(t, err, ErrNoFrames)
	})

	t.Run("RunnerFails", func(t *testing.T) {
		boom := errors.New("ffmpeg failed")
		enc, _, _ := newTestEncoder(t, &fakeRunner{fail: boom})
		_, err := enc.Encode(context.Background(), request(2))
		assert.ErrorIs(t, err, boom)
	})

	t.Run("BadWidget", func(t *testing.T) {
		catalog := formats.Catalog{Formats: []formats.Format{{
			Name:      "video/custom",
			Extension: "mkv",
			Args:      []string{"-crf", "{crf}"},
			Widgets:   []formats.Widget{{Name: "crf", Type: formats.WidgetInt, Default: 19}},
		}}}
		for _, meta := range []*models.MetaBatch{nil, models.NewMetaBatch(1)} {
			out := t.TempDir()
			runner := &fakeRunner{}
			enc := New(Options{OutputDir: out, Catalog: catalog}, testLogger()).WithRunner(runner)
			req := request(1)
			req.Format = "video/custom"
			req.FormatWidgets = map[string]any{"crf": "high"}
			req.MetaBatch = meta
			_, err := enc.Encode(context.Background(), req)
			assert.ErrorContains(t, err, "video/custom")

			entries, err := os.ReadDir(out)
			require.NoError(t, err)
			assert.Empty(t, entries, "nothing may be written for a rejected widget")
			assert.Empty(t, runner.calls)
			assert.Empty(t, enc.sessions)
		}
	})
}

func TestEncode_MetaBatch(t *testing.T) {
	runner := &fakeRunner{}
	enc, out, _ := newTestEncoder(t, runner)
	meta := models.NewMetaBatch(5)

	first := request(3)
	first.MetaBatch = meta
	env, err := enc.Encode(context.Background(), first)
	require.NoError(t, err)
	assert.Empty(t, env.Filenames())
	assert.Empty(t, env.Previews())

	second := request(2)
	second.FilenamePrefix = "clip_part02"
	second.MetaBatch = meta
	env, err = enc.Encode(context.Background(), second)
	require.NoError(t, err)

	// the session keeps the name chosen by the opening call
	assert.Equal(t, filepath.Join(out, "clip_part01_00001.mp4"), env.Result.Filenames[1])
	require.Len(t, runner.calls, 1)
	assert.Equal(t, 5*frameBytes, runner.bytes[0])
	assert.Empty(t, enc.sessions)
}

func TestEncode_MetaBatchErrors(t *testing.T) {
	t.Run("PingPong", func(t *testing.T) {
		enc, _, _ := newTestEncoder(t, &fakeRunner{})
		req := request(2)
		req.PingPong = true
		req.MetaBatch = models.NewMetaBatch(4)
		_, err := enc.Encode(context.Background(), req)
		assert.ErrorIs(t, err, ErrPingPongLinked)
	})

	t.Run("RunnerFails", func(t *testing.T) {
		boom := errors.New("disk full")
		enc, _, _ := newTestEncoder(t, &fakeRunner{fail: boom})
		req := request(2)
		req.MetaBatch = models.NewMetaBatch(2)
		_, err := enc.Encode(context.Background(), req)
		assert.ErrorIs(t, err, boom)
		assert.Empty(t, enc.sessions)
	})

	t.Run("CloseAbortsOpenSessions", func(t *testing.T) {
		enc, _, _ := newTestEncoder(t, &fakeRunner{})
		req := request(1)
		req.MetaBatch = models.NewMetaBatch(10)
		_, err := enc.Encode(context.Background(), req)
		require.NoError(t, err)
		require.Len(t, enc.sessions, 1)

		assert.Error(t, enc.Close())
		assert.Empty(t, enc.sessions)
	})
}
