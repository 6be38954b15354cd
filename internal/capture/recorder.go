// Package capture records a sub-region of a shared display stream into a
// downloadable video file. The recorder is a small state machine whose
// teardown discipline is the point: every acquired resource (the stream,
// the encoder, the repaint loop, the elapsed-time ticker) is released on
// every exit path, exactly once.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	xdraw "golang.org/x/image/draw"
)

// State is the recorder's lifecycle phase.
type State string

const (
	StateIdle      State = "idle"
	StateAcquiring State = "acquiring"
	StateRecording State = "recording"
)

// How long a user-facing error message stays up before auto-clearing.
const errorDisplayDuration = 4 * time.Second

// ErrBusy is returned by Start while a recording is in flight.
var ErrBusy = errors.New("recording already in progress")

// Options fixes a recorder's environment.
type Options struct {
	// Viewport is the on-screen viewport the region coordinates are
	// relative to.
	Viewport image.Rectangle
	// Region reports the target element's current on-screen rectangle.
	Region RegionFunc
	// FPS is the encoding frame rate.
	FPS int
	// OutDir receives finalized recordings.
	OutDir string
}

// Recorder composes a moving sub-rectangle of the display stream onto an
// off-screen canvas and encodes it. One recording at a time.
type Recorder struct {
	log     zerolog.Logger
	acquire SourceFactory
	newEnc  func() Encoder
	opts    Options

	mu      sync.Mutex
	state   State
	userErr string
	errWipe *time.Timer
	elapsed int
	outPath string

	// Per-recording resources, owned between Start and teardown.
	src      Source
	enc      Encoder
	cancel   context.CancelFunc
	teardown *sync.Once
}

// NewRecorder wires a recorder. newEnc is called once per recording so
// encoder state never leaks across runs.
func NewRecorder(log zerolog.Logger, acquire SourceFactory, newEnc func() Encoder, opts Options) *Recorder {
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	return &Recorder{
		log:     log.With().Str("component", "capture").Logger(),
		acquire: acquire,
		newEnc:  newEnc,
		opts:    opts,
		state:   StateIdle,
	}
}

// State returns the current phase.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Elapsed is the whole seconds recorded so far.
func (r *Recorder) Elapsed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elapsed
}

// UserError returns the transient user-facing message, empty when none is
// showing.
func (r *Recorder) UserError() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.userErr
}

// OutputPath is the finalized file of the last completed recording.
func (r *Recorder) OutputPath() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outPath
}

// Start acquires the display stream and begins recording. Denied
// permission or any acquisition failure posts a transient message and
// leaves the recorder idle; capture may be retried immediately.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.state != StateIdle {
		r.mu.Unlock()
		return ErrBusy
	}
	r.state = StateAcquiring
	r.elapsed = 0
	r.mu.Unlock()

	src, err := r.acquire(ctx)
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			r.postError("Permission denied. Please allow screen sharing to record.")
		} else {
			r.postError("Failed to start recording. Please try again.")
		}
		r.log.Warn().Err(err).Msg("display acquisition failed")
		return err
	}

	if err := r.begin(ctx, src); err != nil {
		src.Close()
		r.postError("Failed to start recording. Please try again.")
		r.log.Warn().Err(err).Msg("recording setup failed")
		return err
	}
	return nil
}

func (r *Recorder) begin(ctx context.Context, src Source) error {
	// Scale between the stream's native resolution and the viewport: the
	// shared surface is usually captured at a different pixel density than
	// the page is laid out in.
	stream := src.Bounds()
	scaleX := float64(stream.Dx()) / float64(r.opts.Viewport.Dx())
	scaleY := float64(stream.Dy()) / float64(r.opts.Viewport.Dy())

	region := r.opts.Region()
	canvasW := evenDim(int(float64(region.Dx()) * scaleX))
	canvasH := evenDim(int(float64(region.Dy()) * scaleY))
	if canvasW <= 0 || canvasH <= 0 {
		return fmt.Errorf("capture region is empty")
	}

	if err := os.MkdirAll(r.opts.OutDir, 0755); err != nil {
		return err
	}
	outPath := filepath.Join(r.opts.OutDir,
		fmt.Sprintf("adframe-recording-%s.mp4", time.Now().Format("2006-01-02_15-04-05")))

	enc := r.newEnc()
	runCtx, cancel := context.WithCancel(context.Background())
	if err := enc.Start(runCtx, canvasW, canvasH, r.opts.FPS, outPath); err != nil {
		cancel()
		return err
	}

	r.mu.Lock()
	r.state = StateRecording
	r.src = src
	r.enc = enc
	r.cancel = cancel
	r.teardown = &sync.Once{}
	r.outPath = outPath
	r.mu.Unlock()

	go r.repaintLoop(runCtx, src, enc, scaleX, scaleY, canvasW, canvasH)
	go r.elapsedLoop(runCtx)
	go func() {
		// External stop: the user revoked the share via the platform UI.
		select {
		case <-src.Done():
			r.Stop()
		case <-runCtx.Done():
		}
	}()

	r.log.Info().Str("output", outPath).Int("fps", r.opts.FPS).
		Int("width", canvasW).Int("height", canvasH).Msg("recording started")
	return nil
}

// repaintLoop re-reads the element rectangle every frame and reprojects
// that sub-rectangle of the live stream onto the canvas at stream scale.
func (r *Recorder) repaintLoop(ctx context.Context, src Source, enc Encoder, scaleX, scaleY float64, canvasW, canvasH int) {
	ticker := time.NewTicker(time.Second / time.Duration(r.opts.FPS))
	defer ticker.Stop()

	canvas := image.NewRGBA(image.Rect(0, 0, canvasW, canvasH))
	black := image.Black

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame, err := src.Frame()
			if err != nil {
				return
			}
			cur := r.opts.Region()
			sub := image.Rect(
				int(float64(cur.Min.X)*scaleX),
				int(float64(cur.Min.Y)*scaleY),
				int(float64(cur.Max.X)*scaleX),
				int(float64(cur.Max.Y)*scaleY),
			).Intersect(frame.Bounds())

			xdraw.Draw(canvas, canvas.Bounds(), black, image.Point{}, xdraw.Src)
			if !sub.Empty() {
				xdraw.ApproxBiLinear.Scale(canvas, canvas.Bounds(), frame, sub, xdraw.Src, nil)
			}
			if err := enc.WriteFrame(canvas); err != nil {
				r.log.Warn().Err(err).Msg("frame encode failed, stopping")
				go r.Stop()
				return
			}
		}
	}
}

func (r *Recorder) elapsedLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.mu.Lock()
			r.elapsed++
			r.mu.Unlock()
		}
	}
}

// Stop finalizes the recording and releases everything. Calling it when
// nothing is recording, or calling it twice, is a safe no-op: teardown
// runs exactly once per recording.
func (r *Recorder) Stop() {
	r.mu.Lock()
	once := r.teardown
	src := r.src
	enc := r.enc
	cancel := r.cancel
	out := r.outPath
	r.mu.Unlock()

	if once == nil {
		return
	}
	once.Do(func() {
		// Encoder first, so the file finalizes with the frames written so
		// far; then the loops, then the stream.
		if err := enc.Stop(); err != nil {
			r.log.Warn().Err(err).Msg("encoder finalize failed")
		}
		cancel()
		if err := src.Close(); err != nil {
			r.log.Warn().Err(err).Msg("stream close failed")
		}

		r.mu.Lock()
		r.state = StateIdle
		r.src = nil
		r.enc = nil
		r.cancel = nil
		r.teardown = nil
		r.mu.Unlock()

		r.log.Info().Str("output", out).Msg("recording finalized")
	})
}

// postError shows a transient user-facing message and returns the
// recorder to idle. The message auto-clears after a few seconds.
func (r *Recorder) postError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StateIdle
	r.userErr = msg
	if r.errWipe != nil {
		r.errWipe.Stop()
	}
	r.errWipe = time.AfterFunc(errorDisplayDuration, func() {
		r.mu.Lock()
		r.userErr = ""
		r.mu.Unlock()
	})
}

func evenDim(v int) int {
	if v%2 != 0 {
		return v + 1
	}
	return v
}
