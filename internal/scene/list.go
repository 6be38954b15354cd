package scene

import "fmt"

// List is the authored scene sequence. Order is significant: it determines
// playback order and pod grouping. Every operation returns a new slice so
// that readers holding the previous value keep a consistent snapshot.
type List []Scene

// Default is the list a fresh session starts with: a single skippable ad.
func Default() List {
	s := New(TypeAd, "https://www.youtube.com/watch?v=Dr5b_venGHQ")
	s.AdFormat = FormatSkippableBrand
	s.SkipOffset = DefaultSkipOffset
	return List{s}
}

// Add appends a scene.
func (l List) Add(s Scene) List {
	out := make(List, len(l), len(l)+1)
	copy(out, l)
	return append(out, s)
}

// Update replaces the scene with the same ID wholesale. Unknown IDs error
// rather than silently appending.
func (l List) Update(s Scene) (List, error) {
	for i := range l {
		if l[i].ID == s.ID {
			out := make(List, len(l))
			copy(out, l)
			out[i] = s
			return out, nil
		}
	}
	return nil, fmt.Errorf("scene %s not found", s.ID)
}

// Remove drops the scene with the given ID; removing an unknown ID is a
// no-op returning the original list.
func (l List) Remove(id string) List {
	for i := range l {
		if l[i].ID == id {
			out := make(List, 0, len(l)-1)
			out = append(out, l[:i]...)
			return append(out, l[i+1:]...)
		}
	}
	return l
}

// Move reorders the scene at from to position to.
func (l List) Move(from, to int) (List, error) {
	if from < 0 || from >= len(l) || to < 0 || to >= len(l) {
		return nil, fmt.Errorf("move %d -> %d out of range (len %d)", from, to, len(l))
	}
	out := make(List, 0, len(l))
	out = append(out, l...)
	s := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append(List{s}, out[to:]...)...)
	return out, nil
}

// Clamp maps an index into the valid range for this list. An empty list
// clamps to 0.
func (l List) Clamp(i int) int {
	if len(l) == 0 || i < 0 {
		return 0
	}
	if i >= len(l) {
		return len(l) - 1
	}
	return i
}

// At returns the scene at i, reporting whether i is in range.
func (l List) At(i int) (Scene, bool) {
	if i < 0 || i >= len(l) {
		return Scene{}, false
	}
	return l[i], true
}

// Validate checks every scene in order.
func (l List) Validate() error {
	for i, s := range l {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("scene %d: %w", i, err)
		}
	}
	return nil
}
