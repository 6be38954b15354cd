// Package player bridges the external video-embed widget into the
// playback controller's vocabulary and polls playback position to enforce
// what the widget itself cannot.
package player

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/chalupamike/adframe/internal/scene"
)

// DefaultPollInterval is how often the adapter samples the widget's
// playback position.
const DefaultPollInterval = 100 * time.Millisecond

// Callbacks is the controller-facing vocabulary the adapter translates
// widget events into. OnEnded doubles as the error path: a widget error is
// treated as scene end so one bad scene never blocks the pod.
type Callbacks struct {
	OnReady func()
	OnPlay  func()
	OnPause func()
	OnEnded func(sceneID string)
}

// Adapter wraps one widget instance. It owns the instance exclusively:
// nothing else may reach into it. All widget calls are guarded so that
// anything arriving after Close is a safe no-op.
type Adapter struct {
	log     zerolog.Logger
	factory Factory
	cb      Callbacks
	poll    time.Duration

	mu          sync.Mutex
	widget      Widget
	sc          scene.Scene
	loaded      bool // media resolved and handed to the widget
	elapsed     float64
	cutoffFired bool
	closed      bool

	done chan struct{}
}

// NewAdapter starts an adapter with no media loaded. The position-poll
// loop runs until Close.
func NewAdapter(log zerolog.Logger, factory Factory, cb Callbacks, poll time.Duration) *Adapter {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	a := &Adapter{
		log:     log.With().Str("component", "player").Logger(),
		factory: factory,
		cb:      cb,
		poll:    poll,
		done:    make(chan struct{}),
	}
	go a.pollLoop()
	return a
}

// LoadScene makes the given scene the active one. The widget instance is
// reused via LoadMedia when one already exists; it is only rebuilt when
// none exists yet (or after Close, which discards it for good). Returns
// ErrUnresolvable when the media reference cannot be parsed; the adapter
// stays usable and the scene stays navigable.
func (a *Adapter) LoadScene(sc scene.Scene) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.sc = sc
	a.elapsed = 0
	a.cutoffFired = false
	a.loaded = false

	videoID, err := ResolveVideoID(sc.MediaRef)
	if err != nil {
		a.log.Warn().Str("scene", sc.ID).Str("mediaRef", sc.MediaRef).Msg("media reference did not resolve")
		return err
	}

	if a.widget == nil {
		ev := Events{
			OnReady:       a.onReady,
			OnStateChange: a.onStateChange,
			OnError:       a.onError,
		}
		w, err := a.factory(videoID, sc.StartTime, ev)
		if err != nil {
			a.log.Warn().Err(err).Str("scene", sc.ID).Msg("widget creation failed")
			return err
		}
		a.widget = w
	} else if err := a.widget.LoadMedia(videoID, sc.StartTime); err != nil {
		a.log.Warn().Err(err).Str("scene", sc.ID).Msg("widget load failed")
		return err
	}
	a.loaded = true
	return nil
}

// Sync pushes the controller's play/mute intent at the widget. Failures
// are swallowed: the widget may simply not be ready yet.
func (a *Adapter) Sync(playing, muted bool) {
	a.mu.Lock()
	w := a.widget
	ok := a.loaded && !a.closed
	a.mu.Unlock()
	if !ok || w == nil {
		return
	}
	if muted {
		_ = w.Mute()
	} else {
		_ = w.Unmute()
	}
	if playing {
		_ = w.Play()
	} else {
		_ = w.Pause()
	}
}

// Elapsed is the latest sampled elapsed-in-scene figure: playback position
// minus the scene's start offset, never negative.
func (a *Adapter) Elapsed() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.elapsed
}

// Close tears the adapter down: the poll loop stops and the widget is
// destroyed. Widget destruction is wrapped so a failing destroy never
// prevents the timer cleanup. Safe to call more than once.
func (a *Adapter) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	w := a.widget
	a.widget = nil
	a.loaded = false
	close(a.done)
	a.mu.Unlock()

	if w != nil {
		if err := w.Destroy(); err != nil {
			a.log.Warn().Err(err).Msg("widget destroy failed")
		}
	}
}

func (a *Adapter) pollLoop() {
	ticker := time.NewTicker(a.poll)
	defer ticker.Stop()
	for {
		select {
		case <-a.done:
			return
		case <-ticker.C:
			a.sample()
		}
	}
}

// sample reads the widget position, publishes elapsed-in-scene, and
// enforces a CONTENT scene's duration cutoff, which the widget has no
// native support for. The cutoff fires at most once per loaded scene.
func (a *Adapter) sample() {
	a.mu.Lock()
	w := a.widget
	sc := a.sc
	ok := a.loaded && !a.closed
	a.mu.Unlock()
	if !ok || w == nil {
		return
	}

	pos, err := w.CurrentTime()
	if err != nil {
		return
	}
	elapsed := pos - sc.StartTime
	if elapsed < 0 {
		elapsed = 0
	}

	fireCutoff := false
	a.mu.Lock()
	// The scene may have changed while we were sampling; only publish if
	// this is still the active one.
	if a.sc.ID == sc.ID && !a.closed {
		a.elapsed = elapsed
		if sc.Type == scene.TypeContent && sc.ContentDuration > 0 &&
			elapsed >= sc.ContentDuration && !a.cutoffFired {
			a.cutoffFired = true
			fireCutoff = true
		}
	}
	a.mu.Unlock()

	if fireCutoff && a.cb.OnEnded != nil {
		a.log.Debug().Str("scene", sc.ID).Float64("elapsed", elapsed).Msg("content duration cutoff reached")
		a.cb.OnEnded(sc.ID)
	}
}

// currentSceneID reads the active scene at call time, so event handlers
// never report a stale identity.
func (a *Adapter) currentSceneID() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.sc.ID == "" {
		return "", false
	}
	return a.sc.ID, true
}

func (a *Adapter) onReady() {
	if a.cb.OnReady != nil {
		a.cb.OnReady()
	}
}

func (a *Adapter) onStateChange(s WidgetState) {
	switch s {
	case StatePlaying:
		if a.cb.OnPlay != nil {
			a.cb.OnPlay()
		}
	case StatePaused:
		if a.cb.OnPause != nil {
			a.cb.OnPause()
		}
	case StateEnded:
		if id, ok := a.currentSceneID(); ok && a.cb.OnEnded != nil {
			a.cb.OnEnded(id)
		}
	}
}

// onError falls back to advancing the sequence, the same as a natural
// scene end.
func (a *Adapter) onError(err error) {
	id, ok := a.currentSceneID()
	if !ok {
		return
	}
	a.log.Warn().Err(err).Str("scene", id).Msg("widget error, advancing")
	if a.cb.OnEnded != nil {
		a.cb.OnEnded(id)
	}
}
