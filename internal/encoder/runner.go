package encoder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Runner executes one ffmpeg command line, feeding stdin to the process
type Runner interface {
	Run(ctx context.Context, args []string, stdin io.Reader) error
}

// ExecRunner runs commands as subprocesses
type ExecRunner struct {
	// Stderr, when set, also receives the process's stderr as it is produced
	Stderr io.Writer
}

// Run starts args[0] with the remaining arguments and waits for it to exit
func (r ExecRunner) Run(ctx context.Context, args []string, stdin io.Reader) error {
	if len(args) == 0 {
		return fmt.Errorf("empty command")
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdin = stdin

	var stderr bytes.Buffer
	if r.Stderr != nil {
		cmd.Stderr = io.MultiWriter(&stderr, r.Stderr)
	} else {
		cmd.Stderr = &stderr
	}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w\nOutput: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
