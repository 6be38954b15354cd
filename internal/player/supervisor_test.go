package player

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chalupamike/adframe/internal/playback"
	"github.com/chalupamike/adframe/internal/scene"
)

func supervisorScenes() scene.List {
	return scene.List{
		{ID: "s1", Type: scene.TypeContent, MediaRef: "https://youtu.be/abcdefghijk"},
		{ID: "s2", Type: scene.TypeContent, MediaRef: "https://youtu.be/abcdefghijl"},
	}
}

func newTestSupervisor(t *testing.T) (*Supervisor, *playback.Controller) {
	t.Helper()
	ctrl := playback.NewController(zerolog.Nop(), supervisorScenes())
	sup := NewSupervisor(zerolog.Nop(), ctrl, SimFactory(), time.Hour)
	t.Cleanup(sup.Close)
	return sup, ctrl
}

func (s *Supervisor) currentAdapter() *Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adapter
}

func TestSupervisorLoadsCurrentScene(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	sup.Sync()
	require.NotNil(t, sup.currentAdapter())
	assert.Equal(t, "s1", sup.sceneID)
}

func TestSupervisorFollowsNavigation(t *testing.T) {
	sup, ctrl := newTestSupervisor(t)
	sup.Sync()
	first := sup.currentAdapter()

	ctrl.Next()
	sup.Sync()
	assert.Same(t, first, sup.currentAdapter(), "scene change reuses the adapter")
	assert.Equal(t, "s2", sup.sceneID)
}

func TestSupervisorRebuildsOnRestart(t *testing.T) {
	sup, ctrl := newTestSupervisor(t)
	sup.Sync()
	first := sup.currentAdapter()

	ctrl.Reset()
	sup.Sync()
	rebuilt := sup.currentAdapter()
	require.NotNil(t, rebuilt)
	assert.NotSame(t, first, rebuilt, "restart discards the widget wholesale")

	ctrl.Replay()
	sup.Sync()
	assert.NotSame(t, rebuilt, sup.currentAdapter())
}

func TestSupervisorEndedAdvancesAndLoadsNext(t *testing.T) {
	sup, ctrl := newTestSupervisor(t)
	sup.Sync()

	sup.onEnded("s1")
	assert.Equal(t, 1, ctrl.Snapshot().Current)
	assert.Equal(t, "s2", sup.sceneID)

	// A straggler end signal for the old scene changes nothing.
	sup.onEnded("s1")
	assert.Equal(t, 1, ctrl.Snapshot().Current)
}

func TestSupervisorEndedAtLastSceneFinishes(t *testing.T) {
	sup, ctrl := newTestSupervisor(t)
	sup.Sync()
	sup.onEnded("s1")
	sup.onEnded("s2")
	assert.True(t, ctrl.Snapshot().Finished)
}

// TestAdBreakSkipWalkthrough plays a full ad break end to end: a
// non-skippable opener, a skippable ad carrying the pod's skip point, and
// the content the skip lands on. The skip gate stays shut through the
// whole first ad and opens five seconds into the second.
func TestAdBreakSkipWalkthrough(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	scenes := scene.List{
		{ID: "ad1", Type: scene.TypeAd, AdFormat: scene.FormatNonSkippableBrand,
			Duration: 10, MediaRef: "https://youtu.be/abcdefghijk"},
		{ID: "ad2", Type: scene.TypeAd, AdFormat: scene.FormatSkippableBrand,
			Duration: 15, SkipOffset: 5, MediaRef: "https://youtu.be/abcdefghijl"},
		{ID: "main", Type: scene.TypeContent, MediaRef: "https://youtu.be/abcdefghijm"},
	}
	ctrl := playback.NewController(zerolog.Nop(), scenes)
	sup := NewSupervisor(zerolog.Nop(), ctrl,
		SimFactory(WithClock(clock.Now), WithLength(600)), time.Hour)
	t.Cleanup(sup.Close)

	ctrl.Play()
	sup.Sync()

	// Opening ad: no skip control of its own, but a later skippable ad
	// turns the affordance into "Next". The countdown runs through the
	// full opener plus the second ad's skip offset.
	info := ctrl.PodInfo()
	require.False(t, scenes[0].AdFormat.Skippable())
	assert.True(t, ctrl.HasNextSkippable())
	assert.Equal(t, 1, info.Index)
	assert.Equal(t, 2, info.Total)
	assert.False(t, info.IsLastSkippable)
	assert.Equal(t, 15.0, info.TotalSkipDuration)
	assert.Equal(t, 5.0, info.RemainingSkipDuration)

	// All ten seconds of the opener elapse with the gate still shut.
	clock.advance(10 * time.Second)
	sup.currentAdapter().sample()
	assert.Equal(t, 10.0, sup.Elapsed())
	assert.False(t, ctrl.PodInfo().IsLastSkippable)

	// Natural end of the opener lands on the skippable ad.
	sup.onEnded("ad1")
	require.Equal(t, 1, ctrl.Snapshot().Current)
	info = ctrl.PodInfo()
	assert.Equal(t, 2, info.Index)
	assert.True(t, info.IsLastSkippable)
	assert.Equal(t, 0.0, info.RemainingSkipDuration)
	assert.False(t, ctrl.HasNextSkippable())

	// Two seconds in the gate is still shut; at five it opens.
	clock.advance(2 * time.Second)
	sup.currentAdapter().sample()
	assert.Less(t, sup.Elapsed(), scenes[1].EffectiveSkipOffset())

	clock.advance(3 * time.Second)
	sup.currentAdapter().sample()
	assert.GreaterOrEqual(t, sup.Elapsed(), scenes[1].EffectiveSkipOffset())

	// Skipping jumps past the rest of the pod onto the content scene.
	ctrl.SkipPod()
	sup.Sync()
	snap := ctrl.Snapshot()
	require.Equal(t, 2, snap.Current)
	sc, ok := snap.CurrentScene()
	require.True(t, ok)
	assert.Equal(t, "main", sc.ID)
	assert.False(t, snap.Finished)
	assert.Zero(t, ctrl.PodInfo().Total, "content scene has no pod")
}

func TestSupervisorCloseStopsSync(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	sup.Sync()
	sup.Close()
	assert.Nil(t, sup.currentAdapter())
	assert.Equal(t, 0.0, sup.Elapsed())
	sup.Sync() // must not rebuild after close
	assert.Nil(t, sup.currentAdapter())
	sup.Close() // idempotent
}
