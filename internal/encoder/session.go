package encoder

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/bdougie/vidsplit/internal/models"
)

// ErrPingPongLinked is returned for ping-pong requests that are part of a meta batch
var ErrPingPongLinked = errors.New("pingpong is not supported with a meta batch")

// session is an ffmpeg process fed by several Encode calls
type session struct {
	pw      *io.PipeWriter
	done    chan error
	target  *target
	cleanup func()
}

// encodeLinked appends frames to the meta batch's session, opening it on
// the first call. The session runs under the context of the call that
// opened it.
func (e *FFmpegEncoder) encodeLinked(ctx context.Context, req *models.EncodeRequest, out rendered, frames *models.Tensor) (*models.Envelope, error) {
	if req.PingPong {
		return nil, ErrPingPongLinked
	}
	meta := req.MetaBatch

	e.mu.Lock()
	s, ok := e.sessions[meta.ID]
	if !ok {
		var err error
		s, err = e.startSession(ctx, req, out, frames)
		if err != nil {
			e.mu.Unlock()
			return nil, err
		}
		e.sessions[meta.ID] = s
	}
	e.mu.Unlock()

	if err := writeFrames(s.pw, frames, frameOrder(frames.Len(), false)); err != nil {
		return nil, e.abort(meta.ID, s, err)
	}

	if !meta.Advance(frames.Len()) {
		e.logger.Debug("meta batch pending", "id", meta.ID, "written", meta.Written(), "expected", meta.Expected)
		return &models.Envelope{}, nil
	}

	e.forget(meta.ID)
	s.pw.Close()
	err := <-s.done
	s.cleanup()
	if err != nil {
		return nil, err
	}
	return s.target.envelope(req), nil
}

func (e *FFmpegEncoder) startSession(ctx context.Context, req *models.EncodeRequest, out rendered, frames *models.Tensor) (*session, error) {
	t, err := e.newTarget(req, out.format, frames)
	if err != nil {
		return nil, err
	}

	passFrames := req.MetaBatch.Expected
	if passFrames <= 0 {
		return nil, fmt.Errorf("meta batch %s expects no frames", req.MetaBatch.ID)
	}
	j, cleanup, err := e.newJob(req, out, frames, t, passFrames)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("opening ffmpeg session", "id", req.MetaBatch.ID, "output", t.videoPath)

	pr, pw := io.Pipe()
	s := &session{
		pw:      pw,
		done:    make(chan error, 1),
		target:  t,
		cleanup: cleanup,
	}
	args := buildArgs(j)
	go func() {
		err := e.runner.Run(ctx, args, pr)
		if err != nil {
			pr.CloseWithError(err)
		} else {
			pr.CloseWithError(io.ErrClosedPipe)
		}
		s.done <- err
	}()
	return s, nil
}

// abort tears down a failed session and prefers the process error over the
// write error that exposed it.
func (e *FFmpegEncoder) abort(id string, s *session, writeErr error) error {
	e.forget(id)
	s.pw.CloseWithError(writeErr)
	runErr := <-s.done
	s.cleanup()
	if runErr != nil {
		return runErr
	}
	return writeErr
}

func (e *FFmpegEncoder) forget(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sessions, id)
}

// Close aborts every open session
func (e *FFmpegEncoder) Close() error {
	e.mu.Lock()
	open := e.sessions
	e.sessions = make(map[string]*session)
	e.mu.Unlock()

	var errs []error
	for id, s := range open {
		s.pw.CloseWithError(fmt.Errorf("encoder closed before meta batch %s completed", id))
		if err := <-s.done; err != nil {
			errs = append(errs, err)
		}
		s.cleanup()
	}
	return errors.Join(errs...)
}
