package player

import (
	"errors"
	"regexp"
)

// ErrUnresolvable means a scene's media reference could not be parsed into
// a playable video ID. The scene stays navigable; it just renders nothing.
var ErrUnresolvable = errors.New("media reference does not resolve to a video id")

var videoIDPattern = regexp.MustCompile(`(?:youtu\.be/|v/|u/\w/|embed/|shorts/|watch\?v=|&v=|\?v=)([^#&?/]+)`)

// ResolveVideoID extracts the 11-character video ID from a URL-like media
// reference, best effort.
func ResolveVideoID(mediaRef string) (string, error) {
	if mediaRef == "" {
		return "", ErrUnresolvable
	}
	m := videoIDPattern.FindStringSubmatch(mediaRef)
	if m == nil || len(m[1]) != 11 {
		return "", ErrUnresolvable
	}
	return m[1], nil
}
