package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os/exec"
	"sync"
)

// Encoder turns a stream of RGBA frames into a video file. Start fixes the
// geometry; frames must match it.
type Encoder interface {
	Start(ctx context.Context, width, height, fps int, outPath string) error
	WriteFrame(img *image.RGBA) error
	// Stop finalizes the container. Must be safe to call without Start and
	// more than once.
	Stop() error
}

// FFmpegEncoder pipes raw RGBA frames into ffmpeg over stdin, avoiding any
// intermediate disk I/O, and lets ffmpeg own the container muxing.
type FFmpegEncoder struct {
	// Quality is the CRF handed to libx264; 0 picks a default.
	Quality int

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	log     bytes.Buffer
	started bool
}

func (e *FFmpegEncoder) Start(ctx context.Context, width, height, fps int, outPath string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return fmt.Errorf("encoder already started")
	}

	quality := e.Quality
	if quality == 0 {
		quality = 23
	}

	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", width, height),
		"-framerate", fmt.Sprintf("%d", fps),
		"-i", "-",
		"-c:v", "libx264",
		"-crf", fmt.Sprintf("%d", quality),
		"-preset", "medium",
		"-pix_fmt", "yuv420p",
		outPath,
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stdout = &e.log
	cmd.Stderr = &e.log

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start error: %w", err)
	}

	e.cmd = cmd
	e.stdin = stdin
	e.started = true
	return nil
}

func (e *FFmpegEncoder) WriteFrame(img *image.RGBA) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return fmt.Errorf("encoder not started")
	}
	return writeRawRGBA(e.stdin, img)
}

func (e *FFmpegEncoder) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return nil
	}
	e.started = false
	e.stdin.Close()
	if err := e.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg wait error: %w, output: %s", err, e.log.String())
	}
	return nil
}

// writeRawRGBA emits the pixel buffer, re-laying it out when the stride or
// origin is non-standard.
func writeRawRGBA(w io.Writer, img *image.RGBA) error {
	bounds := img.Bounds()
	if img.Stride != bounds.Dx()*4 || bounds.Min.X != 0 || bounds.Min.Y != 0 {
		tight := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(tight, tight.Bounds(), img, bounds.Min, draw.Src)
		img = tight
	}
	_, err := w.Write(img.Pix)
	return err
}
