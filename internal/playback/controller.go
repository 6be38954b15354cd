// Package playback owns the preview session state machine: which scene is
// active, whether it is playing, and the transition rules the pod analyzer
// and player adapter feed into.
package playback

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/chalupamike/adframe/internal/pod"
	"github.com/chalupamike/adframe/internal/scene"
)

// Snapshot is a consistent view of the session at one instant. Callbacks
// always read state through a fresh snapshot taken at call time, never
// through a captured copy that may be stale.
type Snapshot struct {
	Scenes     scene.List
	Current    int
	Playing    bool
	Muted      bool
	Finished   bool
	Generation uint64
}

// CurrentScene returns the active scene, if any.
func (s Snapshot) CurrentScene() (scene.Scene, bool) {
	return s.Scenes.At(s.Current)
}

// Controller is the playback state machine. It persists for the life of
// the session; Reset and Replay return it to the first scene rather than
// recreating it.
type Controller struct {
	log zerolog.Logger

	mu       sync.Mutex
	scenes   scene.List
	current  int
	playing  bool
	muted    bool
	finished bool

	// lastAdvanced guards Advance against duplicate scene-end signals: the
	// adapter may report "ended" more than once per scene.
	lastAdvanced int

	// generation increments whenever the embed widget must be discarded
	// and rebuilt (reset/replay). The adapter supervisor watches it.
	generation uint64
}

// NewController starts a session over the given scenes, paused at index 0
// and muted, matching a fresh preview.
func NewController(log zerolog.Logger, scenes scene.List) *Controller {
	return &Controller{
		log:          log.With().Str("component", "playback").Logger(),
		scenes:       scenes,
		muted:        true,
		lastAdvanced: -1,
	}
}

// Snapshot returns the current session state. The index is clamped here:
// list edits never move it directly, so it may point past the end until
// the next read.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Scenes:     c.scenes,
		Current:    c.scenes.Clamp(c.current),
		Playing:    c.playing,
		Muted:      c.muted,
		Finished:   c.finished,
		Generation: c.generation,
	}
}

// PodInfo derives pod timing facts for the current position.
func (c *Controller) PodInfo() pod.Info {
	s := c.Snapshot()
	return pod.Analyze(s.Scenes, s.Current)
}

// HasNextSkippable reports whether a later ad in the current pod carries
// the skip point. Always false once finished.
func (c *Controller) HasNextSkippable() bool {
	s := c.Snapshot()
	if s.Finished {
		return false
	}
	return pod.HasNextSkippable(s.Scenes, s.Current)
}

// Play resumes playback. No-op when already playing.
func (c *Controller) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playing = true
}

// Pause suspends playback. No-op when already paused.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playing = false
}

// SetMuted toggles the mute flag.
func (c *Controller) SetMuted(muted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.muted = muted
}

// Advance handles a scene-end signal. The signal is ignored unless it
// names the currently active scene, and each index advances at most once
// no matter how many end signals arrive. Returns whether the signal moved
// the session.
func (c *Controller) Advance(sceneID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return false
	}
	cur := c.scenes.Clamp(c.current)
	sc, ok := c.scenes.At(cur)
	if !ok || sc.ID != sceneID {
		return false
	}
	if c.lastAdvanced == cur {
		return false
	}
	c.lastAdvanced = cur

	if cur >= len(c.scenes)-1 {
		c.finishLocked()
		return true
	}
	c.current = cur + 1
	c.log.Debug().Int("index", c.current).Msg("advanced to next scene")
	return true
}

// SkipPod jumps past every contiguous ad after the current scene, landing
// on the first non-ad scene or finishing the session if none remains.
func (c *Controller) SkipPod() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return
	}
	c.lastAdvanced = -1
	next := c.scenes.Clamp(c.current) + 1
	for next < len(c.scenes) && c.scenes[next].IsAd() {
		next++
	}
	if next < len(c.scenes) {
		c.current = next
		c.log.Debug().Int("index", next).Msg("skipped ad pod")
		return
	}
	c.finishLocked()
}

// Prev steps back one scene; no-op at the first scene.
func (c *Controller) Prev() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastAdvanced = -1
	cur := c.scenes.Clamp(c.current)
	if cur > 0 {
		c.current = cur - 1
	}
}

// Next steps forward one scene; at the last scene it finishes instead of
// running out of bounds.
func (c *Controller) Next() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return
	}
	c.lastAdvanced = -1
	cur := c.scenes.Clamp(c.current)
	if cur < len(c.scenes)-1 {
		c.current = cur + 1
		return
	}
	c.finishLocked()
}

// Reset returns to the first scene, paused, and forces a fresh widget.
func (c *Controller) Reset() {
	c.restart(false)
}

// Replay returns to the first scene and resumes playing, also with a
// fresh widget.
func (c *Controller) Replay() {
	c.restart(true)
}

func (c *Controller) restart(playing bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = 0
	c.finished = false
	c.playing = playing
	c.lastAdvanced = -1
	c.generation++
	c.log.Debug().Bool("playing", playing).Uint64("generation", c.generation).Msg("session restarted")
}

func (c *Controller) finishLocked() {
	c.finished = true
	c.playing = false
	c.log.Debug().Msg("sequence finished")
}

// Scenes returns the current authored list.
func (c *Controller) Scenes() scene.List {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scenes
}

// SetScenes swaps in an edited list. The current index is deliberately
// left alone; Snapshot clamps it if the list shrank. Any list edit clears
// the advance guard: it tracks an index, and edits may re-point that index
// at a scene that has not ended yet.
func (c *Controller) SetScenes(l scene.List) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scenes = l
	c.lastAdvanced = -1
}

// AddScene appends a scene to the sequence.
func (c *Controller) AddScene(s scene.Scene) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scenes = c.scenes.Add(s)
	c.lastAdvanced = -1
}

// UpdateScene replaces a scene wholesale by ID.
func (c *Controller) UpdateScene(s scene.Scene) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	updated, err := c.scenes.Update(s)
	if err != nil {
		return err
	}
	c.scenes = updated
	c.lastAdvanced = -1
	return nil
}

// RemoveScene drops a scene by ID.
func (c *Controller) RemoveScene(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scenes = c.scenes.Remove(id)
	c.lastAdvanced = -1
}

// MoveScene reorders the sequence.
func (c *Controller) MoveScene(from, to int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	moved, err := c.scenes.Move(from, to)
	if err != nil {
		return err
	}
	c.scenes = moved
	c.lastAdvanced = -1
	return nil
}
