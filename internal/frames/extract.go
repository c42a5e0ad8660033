package frames

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bdougie/vidsplit/internal/models"
)

// Extract decodes a video into numbered PNG frames under outputDir/<video name>
// and returns that directory. A directory that already holds frames is reused.
// A zero fps keeps the source frame rate.
func Extract(ctx context.Context, ffmpegPath, videoPath, outputDir string, fps float64) (string, error) {
	// Check if video file exists
	if _, err := os.Stat(videoPath); os.IsNotExist(err) {
		return "", fmt.Errorf("video file does not exist at path: '%s'", videoPath)
	}

	// Create a subfolder with the video's name
	videoName := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	frameDirPath := filepath.Join(outputDir, videoName)

	// Check if frames already exist in the subfolder
	if names, err := listFrames(frameDirPath); err == nil && len(names) > 0 {
		return frameDirPath, nil
	}

	if err := os.MkdirAll(frameDirPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create frame directory '%s': %w", frameDirPath, err)
	}

	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	args := []string{"-hide_banner", "-nostdin", "-y", "-i", videoPath}
	if fps > 0 {
		args = append(args, "-vf", "fps="+strconv.FormatFloat(fps, 'f', -1, 64))
	}
	args = append(args, filepath.Join(frameDirPath, "frame_%05d.png"))

	// Capture output for better error reporting
	output, err := exec.CommandContext(ctx, ffmpegPath, args...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("ffmpeg failed: %w\nOutput: %s", err, string(output))
	}

	return frameDirPath, nil
}

// Audio decode parameters
const (
	AudioSampleRate = 44100
	AudioChannels   = 2
)

// LoadAudio decodes any audio file ffmpeg understands into interleaved
// float32 samples.
func LoadAudio(ctx context.Context, ffmpegPath, audioPath string) (*models.Audio, error) {
	if _, err := os.Stat(audioPath); err != nil {
		return nil, fmt.Errorf("audio file not readable at path: '%s': %w", audioPath, err)
	}
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}

	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-hide_banner", "-nostdin", "-loglevel", "error",
		"-i", audioPath,
		"-f", "f32le",
		"-ac", strconv.Itoa(AudioChannels),
		"-ar", strconv.Itoa(AudioSampleRate),
		"-",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	raw, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w\nOutput: %s", err, stderr.String())
	}

	return decodeF32LE(raw), nil
}

func decodeF32LE(raw []byte) *models.Audio {
	samples := make([]float32, len(raw)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return &models.Audio{
		Samples:    samples,
		SampleRate: AudioSampleRate,
		Channels:   AudioChannels,
	}
}
