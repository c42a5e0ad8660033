package encoder

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bdougie/vidsplit/internal/formats"
)

// job is everything needed to build one ffmpeg command line
type job struct {
	ffmpeg    string
	format    formats.Format
	args      []string
	audioArgs []string

	width, height int
	frameRate     float64
	loopCount     int
	// frames is the number of frames in one pass, used by the loop filter
	frames int

	audioPath string
	comment   string
	output    string
	verbose   bool
}

// buildArgs assembles the ffmpeg argument slice. Raw RGBA frames are read
// from stdin.
func buildArgs(j job) []string {
	args := make([]string, 0, 48)

	// --- Preamble ---
	args = append(args, j.ffmpeg, "-hide_banner", "-y")
	if j.verbose {
		args = append(args, "-loglevel", "info")
	} else {
		args = append(args, "-loglevel", "error")
	}

	// --- Inputs ---
	args = append(args,
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", j.width, j.height),
		"-r", strconv.FormatFloat(j.frameRate, 'f', -1, 64),
		"-i", "-",
	)
	withAudio := j.audioPath != "" && len(j.audioArgs) > 0
	if withAudio {
		args = append(args, "-i", j.audioPath)
	}

	// --- Filters ---
	var filters []string
	if j.loopCount > 0 && !j.format.LoopFlag {
		filters = append(filters, fmt.Sprintf("loop=loop=%d:size=%d:start=0", j.loopCount, j.frames))
	}
	if j.format.Filter != "" {
		filters = append(filters, j.format.Filter)
	}
	if len(filters) > 0 {
		args = append(args, "-vf", strings.Join(filters, ","))
	}
	if j.format.LoopFlag {
		args = append(args, "-loop", strconv.Itoa(j.loopCount))
	}

	// --- Codec ---
	args = append(args, j.args...)
	if withAudio {
		args = append(args, "-map", "0:v", "-map", "1:a")
		args = append(args, j.audioArgs...)
		args = append(args, "-shortest")
	}

	// --- Metadata ---
	if j.comment != "" && !j.format.LoopFlag {
		args = append(args, "-metadata", "comment="+j.comment)
	}

	// --- Output ---
	args = append(args, j.output)
	return args
}
