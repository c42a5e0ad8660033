package node

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/vidsplit/internal/formats"
	"github.com/bdougie/vidsplit/internal/models"
	"github.com/bdougie/vidsplit/internal/splitter"
)

type recordingEncoder struct {
	requests []*models.EncodeRequest
	err      error
}

func (r *recordingEncoder) Encode(_ context.Context, req *models.EncodeRequest) (*models.Envelope, error) {
	r.requests = append(r.requests, req)
	if r.err != nil {
		return nil, r.err
	}
	name := req.FilenamePrefix + "_00001.gif"
	return &models.Envelope{
		Result: &models.Output{SaveOutput: req.SaveOutput, Filenames: []string{name}},
		UI:     &models.UI{Previews: []models.Preview{{Filename: name}}},
	}, nil
}

func defaults() models.SplitSpec {
	return models.SplitSpec{
		SplitNum:       1,
		FrameRate:      8,
		FilenamePrefix: "SplitVideo",
		Format:         "image/gif",
		SaveOutput:     true,
	}
}

func catalog() formats.Catalog {
	c := formats.Builtin()
	c.Formats = append(c.Formats, formats.Format{
		Name:      "video/h265-mp4",
		Extension: "mp4",
		Args:      []string{"-c:v", "libx265", "-crf", "{crf}"},
		Widgets: []formats.Widget{
			{Name: "crf", Type: formats.WidgetInt, Default: 22, Min: bound(0), Max: bound(51)},
		},
	})
	return c
}

func newNode(enc splitter.Encoder) *SplitCombine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSplitCombine(splitter.New(enc, logger), catalog(), defaults())
}

func TestSchema(t *testing.T) {
	s := newNode(&recordingEncoder{}).Schema()

	assert.Equal(t, SplitCombineID, s.ID)
	assert.Equal(t, "MyUtils", s.Category)
	assert.Equal(t, []string{TypeFilenames}, s.ReturnTypes)
	assert.Equal(t, []string{"Filenames"}, s.ReturnNames)
	assert.True(t, s.OutputNode)

	split, ok := s.Lookup("split_num")
	require.True(t, ok)
	assert.Equal(t, 1, split.Default)
	assert.Equal(t, 1.0, *split.Min)
	assert.Equal(t, float64(MaxSplitNum), *split.Max)

	loop, ok := s.Lookup("loop_count")
	require.True(t, ok)
	assert.Equal(t, float64(splitter.MaxLoopCount), *loop.Max)

	format, ok := s.Lookup("format")
	require.True(t, ok)
	assert.Equal(t, "image/gif", format.Default)
	assert.Contains(t, format.Options, "video/h265-mp4")

	_, ok = s.Lookup("unique_id")
	assert.True(t, ok)
	assert.Contains(t, s.FormatWidgets, "video/h265-mp4")
	assert.NotContains(t, s.FormatWidgets, "image/gif")
}

func TestInvoke_Splits(t *testing.T) {
	enc := &recordingEncoder{}
	n := newNode(enc)

	env, err := n.Invoke(context.Background(), map[string]any{
		"images":          models.NewTensor(10, 2, 2, 3),
		"split_num":       3.0,
		"frame_rate":      12,
		"filename_prefix": "clip",
		"unique_id":       7,
	})
	require.NoError(t, err)

	require.Len(t, enc.requests, 3)
	assert.Equal(t, "clip_part01", enc.requests[0].FilenamePrefix)
	assert.Equal(t, 4, enc.requests[0].Images.Len())
	assert.Equal(t, 12.0, enc.requests[1].FrameRate)
	assert.Equal(t, "7", enc.requests[2].UniqueID)
	assert.Equal(t, []string{"clip_part01_00001.gif", "clip_part02_00001.gif", "clip_part03_00001.gif"}, env.Filenames())
	assert.Len(t, env.Previews(), 3)
}

func TestInvoke_DefaultsApply(t *testing.T) {
	enc := &recordingEncoder{}
	_, err := newNode(enc).Invoke(context.Background(), map[string]any{
		"images": models.NewTensor(2, 1, 1, 3),
	})
	require.NoError(t, err)

	require.Len(t, enc.requests, 1)
	req := enc.requests[0]
	assert.Equal(t, "SplitVideo_part01", req.FilenamePrefix)
	assert.Equal(t, "image/gif", req.Format)
	assert.Equal(t, 8.0, req.FrameRate)
	assert.True(t, req.SaveOutput)
}

func TestInvoke_FormatWidgets(t *testing.T) {
	enc := &recordingEncoder{}
	_, err := newNode(enc).Invoke(context.Background(), map[string]any{
		"images": models.NewTensor(1, 1, 1, 3),
		"format": "video/h265-mp4",
		"crf":    28,
		"other":  "ignored",
	})
	require.NoError(t, err)

	require.Len(t, enc.requests, 1)
	assert.Equal(t, map[string]any{"crf": 28}, enc.requests[0].FormatWidgets)
}

func TestInvoke_InputErrors(t *testing.T) {
	tests := []struct {
		name   string
		inputs map[string]any
		target error
	}{
		{"split below min", map[string]any{"split_num": 0}, splitter.ErrInputRange},
		{"split above max", map[string]any{"split_num": 101}, splitter.ErrInputRange},
		{"fractional split", map[string]any{"split_num": 2.5}, splitter.ErrInputType},
		{"loop above max", map[string]any{"loop_count": 101}, splitter.ErrInputRange},
		{"frame rate below min", map[string]any{"frame_rate": 0.5}, splitter.ErrInputRange},
		{"frame rate infinite", map[string]any{"frame_rate": math.Inf(1)}, splitter.ErrInputRange},
		{"frame rate NaN", map[string]any{"frame_rate": math.NaN()}, splitter.ErrInputRange},
		{"unknown format", map[string]any{"format": "video/avi"}, splitter.ErrInputRange},
		{"prefix not string", map[string]any{"filename_prefix": 3}, splitter.ErrInputType},
		{"pingpong not bool", map[string]any{"pingpong": "yes"}, splitter.ErrInputType},
		{"audio wrong type", map[string]any{"audio": []float32{0}}, splitter.ErrInputType},
		{"images wrong type", map[string]any{"images": []int{1, 2}}, splitter.ErrInputType},
		{"widget above max", map[string]any{"format": "video/h265-mp4", "crf": 999}, splitter.ErrInputRange},
		{"widget not a number", map[string]any{"format": "video/h265-mp4", "crf": "high"}, splitter.ErrInputRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := &recordingEncoder{}
			inputs := map[string]any{"images": models.NewTensor(4, 1, 1, 3)}
			for k, v := range tt.inputs {
				inputs[k] = v
			}

			env, err := newNode(enc).Invoke(context.Background(), inputs)
			assert.ErrorIs(t, err, tt.target)
			assert.Nil(t, env)
			assert.Empty(t, enc.requests)
		})
	}
}

func TestInvoke_SplitExceedsFrames(t *testing.T) {
	enc := &recordingEncoder{}
	_, err := newNode(enc).Invoke(context.Background(), map[string]any{
		"images":    models.NewTensor(2, 1, 1, 3),
		"split_num": 3,
	})

	var rangeErr *splitter.RangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, 2, rangeErr.BatchSize)
	assert.Empty(t, enc.requests)
}

func TestInvoke_EncoderErrorPassesThrough(t *testing.T) {
	boom := errors.New("ffmpeg exited 1")
	_, err := newNode(&recordingEncoder{err: boom}).Invoke(context.Background(), map[string]any{
		"images": models.NewTensor(3, 1, 1, 3),
	})
	assert.Same(t, boom, err)
}

func TestRegistry(t *testing.T) {
	n := newNode(&recordingEncoder{})

	reg, err := NewRegistry(n)
	require.NoError(t, err)
	assert.Equal(t, []string{SplitCombineID}, reg.IDs())

	got, ok := reg.Get(" " + SplitCombineID + " ")
	require.True(t, ok)
	assert.Same(t, n, got)

	env, err := reg.Invoke(context.Background(), SplitCombineID, map[string]any{})
	require.NoError(t, err)
	assert.Empty(t, env.Filenames())

	_, err = reg.Invoke(context.Background(), "Missing", nil)
	assert.ErrorContains(t, err, "unknown node")

	_, err = NewRegistry(n, n)
	assert.ErrorContains(t, err, "duplicate node")

	_, err = NewRegistry(nil)
	assert.Error(t, err)
}
