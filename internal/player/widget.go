package player

import (
	"errors"
	"sync"
	"time"
)

// WidgetState mirrors the embed widget's playback states.
type WidgetState int

const (
	StateUnstarted WidgetState = iota
	StatePlaying
	StatePaused
	StateEnded
)

// Events carries the widget's lifecycle callbacks. Any field may be nil.
type Events struct {
	OnReady       func()
	OnStateChange func(WidgetState)
	OnError       func(error)
}

func (e Events) ready() {
	if e.OnReady != nil {
		e.OnReady()
	}
}

func (e Events) stateChange(s WidgetState) {
	if e.OnStateChange != nil {
		e.OnStateChange(s)
	}
}

// Widget is the contract of one external video-embed instance. Every
// method may fail or no-op when called before the widget is ready or
// after Destroy; callers must treat that as normal.
type Widget interface {
	Play() error
	Pause() error
	Mute() error
	Unmute() error
	CurrentTime() (float64, error)
	Duration() (float64, error)
	LoadMedia(videoID string, startSeconds float64) error
	Destroy() error
}

// Factory creates a widget for a resolved video ID. The adapter owns the
// returned instance exclusively.
type Factory func(videoID string, startSeconds float64, ev Events) (Widget, error)

// ErrDestroyed is returned by widget calls after teardown.
var ErrDestroyed = errors.New("widget destroyed")

// SimWidget is a wall-clock stand-in for the browser embed: its position
// advances in real time while playing and it emits Ended when the media
// length elapses. It backs headless previews and tests; the browser-side
// iframe plugs in behind the same interface.
type SimWidget struct {
	mu        sync.Mutex
	ev        Events
	now       func() time.Time
	pos       float64
	length    float64
	playing   bool
	destroyed bool
	lastTick  time.Time
	ended     bool
}

// SimOption tweaks a SimWidget, mainly for tests.
type SimOption func(*SimWidget)

// WithClock substitutes the time source.
func WithClock(now func() time.Time) SimOption {
	return func(w *SimWidget) { w.now = now }
}

// WithLength sets the simulated natural media length in seconds.
func WithLength(seconds float64) SimOption {
	return func(w *SimWidget) { w.length = seconds }
}

// NewSimWidget builds a simulated widget cued at startSeconds and signals
// ready immediately.
func NewSimWidget(startSeconds float64, ev Events, opts ...SimOption) *SimWidget {
	w := &SimWidget{
		ev:     ev,
		now:    time.Now,
		pos:    startSeconds,
		length: 600,
	}
	for _, o := range opts {
		o(w)
	}
	w.lastTick = w.now()
	ev.ready()
	return w
}

// SimFactory returns a Factory producing SimWidgets with the given
// options.
func SimFactory(opts ...SimOption) Factory {
	return func(videoID string, startSeconds float64, ev Events) (Widget, error) {
		return NewSimWidget(startSeconds, ev, opts...), nil
	}
}

// tick advances the simulated playhead. Emits Ended at most once per
// loaded media.
func (w *SimWidget) tick() {
	now := w.now()
	if w.playing {
		w.pos += now.Sub(w.lastTick).Seconds()
	}
	w.lastTick = now
	if w.playing && w.length > 0 && w.pos >= w.length && !w.ended {
		w.ended = true
		w.playing = false
		w.pos = w.length
		ev := w.ev
		w.mu.Unlock()
		ev.stateChange(StateEnded)
		w.mu.Lock()
	}
}

func (w *SimWidget) Play() error {
	w.mu.Lock()
	if w.destroyed {
		w.mu.Unlock()
		return ErrDestroyed
	}
	w.tick()
	changed := !w.playing && !w.ended
	if changed {
		w.playing = true
	}
	ev := w.ev
	w.mu.Unlock()
	if changed {
		ev.stateChange(StatePlaying)
	}
	return nil
}

func (w *SimWidget) Pause() error {
	w.mu.Lock()
	if w.destroyed {
		w.mu.Unlock()
		return ErrDestroyed
	}
	w.tick()
	changed := w.playing
	w.playing = false
	ev := w.ev
	w.mu.Unlock()
	if changed {
		ev.stateChange(StatePaused)
	}
	return nil
}

func (w *SimWidget) Mute() error   { return w.guard() }
func (w *SimWidget) Unmute() error { return w.guard() }

func (w *SimWidget) guard() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return ErrDestroyed
	}
	return nil
}

func (w *SimWidget) CurrentTime() (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return 0, ErrDestroyed
	}
	w.tick()
	return w.pos, nil
}

func (w *SimWidget) Duration() (float64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return 0, ErrDestroyed
	}
	return w.length, nil
}

// LoadMedia cues new media without recreating the instance, mirroring the
// embed widget's loadVideoById.
func (w *SimWidget) LoadMedia(videoID string, startSeconds float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed {
		return ErrDestroyed
	}
	w.pos = startSeconds
	w.ended = false
	w.lastTick = w.now()
	return nil
}

func (w *SimWidget) Destroy() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.destroyed = true
	w.playing = false
	return nil
}
