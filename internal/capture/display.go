package capture

import (
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"
	"sync"
)

// DisplaySource grabs the desktop via an ffmpeg x11grab child process
// emitting raw RGBA frames over a pipe. The stream ends (Done closes)
// when the process exits, which also covers the user killing the grab
// externally.
type DisplaySource struct {
	bounds image.Rectangle

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdout io.ReadCloser
	frame  *image.RGBA
	done   chan struct{}
	closed bool
}

// NewDisplaySource starts grabbing the given display (e.g. ":0.0") at the
// given resolution.
func NewDisplaySource(ctx context.Context, display string, width, height int) (*DisplaySource, error) {
	args := []string{
		"-f", "x11grab",
		"-video_size", fmt.Sprintf("%dx%d", width, height),
		"-i", display,
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	}
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("display grab start error: %w", err)
	}

	s := &DisplaySource{
		bounds: image.Rect(0, 0, width, height),
		cmd:    cmd,
		stdout: stdout,
		frame:  image.NewRGBA(image.Rect(0, 0, width, height)),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// DisplayFactory wraps NewDisplaySource as a SourceFactory.
func DisplayFactory(display string, width, height int) SourceFactory {
	return func(ctx context.Context) (Source, error) {
		src, err := NewDisplaySource(ctx, display, width, height)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
}

func (s *DisplaySource) readLoop() {
	frameSize := s.bounds.Dx() * s.bounds.Dy() * 4
	buf := make([]byte, frameSize)
	for {
		if _, err := io.ReadFull(s.stdout, buf); err != nil {
			break
		}
		s.mu.Lock()
		copy(s.frame.Pix, buf)
		s.mu.Unlock()
	}
	s.cmd.Wait()

	s.mu.Lock()
	alreadyClosed := s.closed
	s.closed = true
	s.mu.Unlock()
	if !alreadyClosed {
		close(s.done)
	}
}

// Frame returns a copy of the most recent grabbed frame.
func (s *DisplaySource) Frame() (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("display stream ended")
	}
	out := image.NewRGBA(s.bounds)
	copy(out.Pix, s.frame.Pix)
	return out, nil
}

func (s *DisplaySource) Bounds() image.Rectangle { return s.bounds }

func (s *DisplaySource) Done() <-chan struct{} { return s.done }

// Close stops the grab process. Safe to call more than once.
func (s *DisplaySource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	// Killing the process unblocks readLoop, which marks closed and
	// signals done.
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	return nil
}
