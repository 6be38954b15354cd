package player

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/chalupamike/adframe/internal/playback"
)

// Supervisor keeps one adapter aligned with the controller. It rebuilds
// the adapter (discard and recreate, not reuse) whenever the controller's
// player generation bumps, since reset and replay demand clean internal
// widget state, and otherwise reuses the instance across scene changes.
type Supervisor struct {
	log     zerolog.Logger
	ctrl    *playback.Controller
	factory Factory
	poll    time.Duration

	mu         sync.Mutex
	adapter    *Adapter
	generation uint64
	sceneID    string
	closed     bool
}

// NewSupervisor binds the controller to a widget factory. Call Sync after
// every controller mutation.
func NewSupervisor(log zerolog.Logger, ctrl *playback.Controller, factory Factory, poll time.Duration) *Supervisor {
	return &Supervisor{
		log:     log.With().Str("component", "supervisor").Logger(),
		ctrl:    ctrl,
		factory: factory,
		poll:    poll,
	}
}

// Sync reconciles the adapter with a fresh controller snapshot taken at
// call time.
func (s *Supervisor) Sync() {
	snap := s.ctrl.Snapshot()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	if s.adapter == nil || snap.Generation != s.generation {
		old := s.adapter
		s.adapter = NewAdapter(s.log, s.factory, Callbacks{
			OnPlay:  s.ctrl.Play,
			OnPause: s.ctrl.Pause,
			OnEnded: s.onEnded,
		}, s.poll)
		s.generation = snap.Generation
		s.sceneID = ""
		s.mu.Unlock()
		if old != nil {
			old.Close()
		}
		s.mu.Lock()
	}

	a := s.adapter
	load := false
	if sc, ok := snap.CurrentScene(); ok && !snap.Finished && sc.ID != s.sceneID {
		s.sceneID = sc.ID
		load = true
	}
	s.mu.Unlock()

	if load {
		if sc, ok := snap.CurrentScene(); ok {
			// Resolution failures leave the scene navigable with nothing
			// rendered; LoadScene already logged them.
			_ = a.LoadScene(sc)
		}
	}
	a.Sync(snap.Playing && !snap.Finished, snap.Muted)
}

// onEnded feeds a scene-end signal through the controller, then re-syncs
// so the next scene loads.
func (s *Supervisor) onEnded(sceneID string) {
	s.ctrl.Advance(sceneID)
	s.Sync()
}

// Elapsed exposes the live elapsed-in-scene figure for the analyzer's
// countdown displays.
func (s *Supervisor) Elapsed() float64 {
	s.mu.Lock()
	a := s.adapter
	s.mu.Unlock()
	if a == nil {
		return 0
	}
	return a.Elapsed()
}

// Close tears down the current adapter.
func (s *Supervisor) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	a := s.adapter
	s.adapter = nil
	s.mu.Unlock()
	if a != nil {
		a.Close()
	}
}
