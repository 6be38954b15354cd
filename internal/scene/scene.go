package scene

import (
	"fmt"

	"github.com/google/uuid"
)

// Type distinguishes regular content from inserted ads.
type Type string

const (
	TypeContent Type = "CONTENT"
	TypeAd      Type = "AD"
)

// AdFormat describes how an ad scene presents itself and whether it
// exposes a skip control.
type AdFormat string

const (
	FormatNonSkippableBrand    AdFormat = "NON_SKIPPABLE_BRAND"
	FormatSkippableBrand       AdFormat = "SKIPPABLE_BRAND"
	FormatSkippablePerformance AdFormat = "SKIPPABLE_PERFORMANCE"
	FormatSqueezebackQR        AdFormat = "SQUEEZEBACK_QR"
)

const (
	// DefaultDuration is assumed when a scene carries no explicit length.
	DefaultDuration = 15.0
	// DefaultSkipOffset is the watch time required before skip unlocks.
	DefaultSkipOffset = 5.0
)

// Skippable reports whether the format ever renders a skip control.
func (f AdFormat) Skippable() bool {
	switch f {
	case FormatSkippableBrand, FormatSkippablePerformance, FormatSqueezebackQR:
		return true
	}
	return false
}

func (f AdFormat) valid() bool {
	switch f {
	case FormatNonSkippableBrand, FormatSkippableBrand, FormatSkippablePerformance, FormatSqueezebackQR:
		return true
	}
	return false
}

// Scene is one playable unit in the authored sequence. Scenes are value
// objects: updates replace the whole record keyed by ID, never mutate it
// in place, so concurrent readers never observe a torn update.
type Scene struct {
	ID        string  `yaml:"id"`
	Type      Type    `yaml:"type"`
	MediaRef  string  `yaml:"mediaRef"`
	StartTime float64 `yaml:"startTime,omitempty"`

	// Duration forces a scene length in seconds; 0 means unset.
	Duration float64 `yaml:"duration,omitempty"`
	// ContentDuration cuts a CONTENT scene off after this many seconds of
	// playback past StartTime. The embed widget has no native trim, so the
	// player adapter enforces it.
	ContentDuration float64 `yaml:"contentDuration,omitempty"`

	AdFormat   AdFormat `yaml:"adFormat,omitempty"`
	SkipOffset float64  `yaml:"skipOffset,omitempty"`

	// Presentation-only fields, carried through untouched.
	AdvertiserName    string `yaml:"advertiserName,omitempty"`
	AdvertiserLogoURL string `yaml:"advertiserLogoUrl,omitempty"`
	Headline          string `yaml:"headline,omitempty"`
	CTAText           string `yaml:"ctaText,omitempty"`
	DisplayURL        string `yaml:"displayUrl,omitempty"`
}

// New creates a scene with a fresh identity. IDs are never reused.
func New(t Type, mediaRef string) Scene {
	return Scene{
		ID:       uuid.NewString(),
		Type:     t,
		MediaRef: mediaRef,
	}
}

// Validate checks type/field pairing. It deliberately does not reject
// malformed media references; the player adapter degrades gracefully on
// those.
func (s Scene) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("scene has no id")
	}
	switch s.Type {
	case TypeAd:
		if s.AdFormat == "" {
			return fmt.Errorf("ad scene %s has no format", s.ID)
		}
		if !s.AdFormat.valid() {
			return fmt.Errorf("ad scene %s has unknown format %q", s.ID, s.AdFormat)
		}
		if s.ContentDuration != 0 {
			return fmt.Errorf("ad scene %s must not set contentDuration", s.ID)
		}
	case TypeContent:
		if s.AdFormat != "" {
			return fmt.Errorf("content scene %s must not set adFormat", s.ID)
		}
	default:
		return fmt.Errorf("scene %s has unknown type %q", s.ID, s.Type)
	}
	if s.StartTime < 0 {
		return fmt.Errorf("scene %s has negative startTime", s.ID)
	}
	if s.Duration < 0 || s.ContentDuration < 0 || s.SkipOffset < 0 {
		return fmt.Errorf("scene %s has negative duration fields", s.ID)
	}
	return nil
}

// EffectiveDuration is the scene length the timing engine works with:
// explicit duration, then the content cutoff, then the format default.
func (s Scene) EffectiveDuration() float64 {
	if s.Duration > 0 {
		return s.Duration
	}
	if s.ContentDuration > 0 {
		return s.ContentDuration
	}
	return DefaultDuration
}

// EffectiveSkipOffset is the watch time gating the skip control.
func (s Scene) EffectiveSkipOffset() float64 {
	if s.SkipOffset > 0 {
		return s.SkipOffset
	}
	return DefaultSkipOffset
}

// IsAd is a convenience for pod scans.
func (s Scene) IsAd() bool { return s.Type == TypeAd }
