// Package pod derives ad-pod facts from the scene list. Everything here is
// a pure function of (scenes, currentIndex): no caching, no hidden state,
// recomputed on every tick so it can never go stale across list edits.
package pod

import "github.com/chalupamike/adframe/internal/scene"

// Info is the full set of timing/skip facts for the pod containing the
// current scene. A zero Info is returned when the current scene is not an
// ad.
type Info struct {
	// Index is the 1-based position of the current ad within its pod;
	// Total is the pod's ad count.
	Index int
	Total int

	// Start and LastAdIndex are the pod's bounds in the scene list.
	Start       int
	LastAdIndex int

	// TargetIndex is the ad whose skip point gates the rest of the pod:
	// the last skippable ad, or the last ad when none is skippable.
	TargetIndex  int
	HasSkippable bool

	// IsLastSkippable reports that the current scene is the skip target.
	IsLastSkippable bool

	// TotalSkipDuration sums effective durations from the pod start to the
	// target's skip point. RemainingSkipDuration is the same sum restricted
	// to the scenes after the current one; the current scene's own live
	// remainder is tracked separately from elapsed-time polling.
	TotalSkipDuration     float64
	RemainingSkipDuration float64

	// TotalPodRemaining sums full (non-truncated) durations of the ads
	// after the current one, through the pod's hard end. Drives the
	// non-skippable countdown, which shows time to the end of the whole
	// pod rather than to any skip point.
	TotalPodRemaining float64
}

// Analyze computes pod facts for the scene at current. Calling it twice
// with identical inputs yields identical output.
func Analyze(scenes scene.List, current int) Info {
	cur, ok := scenes.At(current)
	if !ok || !cur.IsAd() {
		return Info{}
	}

	start := current
	for start > 0 && scenes[start-1].IsAd() {
		start--
	}
	last := current
	for last+1 < len(scenes) && scenes[last+1].IsAd() {
		last++
	}

	target := -1
	for i := start; i <= last; i++ {
		if scenes[i].AdFormat.Skippable() {
			target = i
		}
	}
	hasSkippable := target != -1
	if !hasSkippable {
		target = last
	}

	info := Info{
		Start:           start,
		LastAdIndex:     last,
		TargetIndex:     target,
		HasSkippable:    hasSkippable,
		IsLastSkippable: hasSkippable && current == target,
	}

	for i := start; i <= target; i++ {
		info.TotalSkipDuration += contribution(scenes[i], i == target)
	}
	for i := current + 1; i <= target; i++ {
		info.RemainingSkipDuration += contribution(scenes[i], i == target)
	}
	for i := current + 1; i <= last; i++ {
		info.TotalPodRemaining += scenes[i].EffectiveDuration()
	}

	for i := start; i <= last; i++ {
		info.Total++
		if i == current {
			info.Index = info.Total
		}
	}
	return info
}

// contribution is a scene's share of the skip countdown: full effective
// duration everywhere except at the skip target, where only the skip
// offset counts. A non-skippable target has no skip point and plays out
// in full.
func contribution(s scene.Scene, atTarget bool) float64 {
	if atTarget && s.AdFormat != scene.FormatNonSkippableBrand {
		return s.EffectiveSkipOffset()
	}
	return s.EffectiveDuration()
}

// HasNextSkippable reports whether a later ad in the current pod is
// skippable. When true, the current scene's skip control renders as "Next"
// and only advances one scene; the later ad carries the real skip point.
func HasNextSkippable(scenes scene.List, current int) bool {
	for i := current + 1; i < len(scenes) && scenes[i].IsAd(); i++ {
		if scenes[i].AdFormat.Skippable() {
			return true
		}
	}
	return false
}
