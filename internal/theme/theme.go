// Package theme derives a background gradient from an advertiser logo by
// downsampling it to a single pixel. Pure presentation: any failure falls
// back to the fixed default colors.
package theme

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"net/http"
	"time"

	xdraw "golang.org/x/image/draw"
)

// Default gradient used when no logo is set or anything goes wrong.
const (
	DefaultTop    = "#082833"
	DefaultBottom = "#020A0D"
)

// Gradient is a top/bottom CSS color pair.
type Gradient struct {
	Top    string `json:"top"`
	Bottom string `json:"bottom"`
}

// DefaultGradient is the fixed fallback theme.
func DefaultGradient() Gradient {
	return Gradient{Top: DefaultTop, Bottom: DefaultBottom}
}

// FromLogo averages the logo into one pixel and spreads its hue over a
// dark gradient.
func FromLogo(img image.Image) Gradient {
	px := image.NewRGBA(image.Rect(0, 0, 1, 1))
	xdraw.ApproxBiLinear.Scale(px, px.Bounds(), img, img.Bounds(), xdraw.Src, nil)

	r := float64(px.Pix[0]) / 255
	g := float64(px.Pix[1]) / 255
	b := float64(px.Pix[2]) / 255
	h, s := hueSat(r, g, b)

	return Gradient{
		Top:    fmt.Sprintf("hsl(%.0f, %.0f%%, 12%%)", h, math.Min(100, s*1.2)),
		Bottom: fmt.Sprintf("hsl(%.0f, %.0f%%, 4%%)", h, math.Min(100, s*1.5)),
	}
}

// Fetch downloads and decodes a logo, returning the derived gradient or
// the default on any failure.
func Fetch(ctx context.Context, logoURL string) Gradient {
	if logoURL == "" {
		return DefaultGradient()
	}
	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, logoURL, nil)
	if err != nil {
		return DefaultGradient()
	}
	resp, err := client.Do(req)
	if err != nil {
		return DefaultGradient()
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return DefaultGradient()
	}
	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return DefaultGradient()
	}
	return FromLogo(img)
}

// hueSat converts normalized RGB to HSL hue (degrees) and saturation
// (percent). Lightness is ignored; the gradient fixes its own.
func hueSat(r, g, b float64) (float64, float64) {
	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	l := (max + min) / 2

	if max == min {
		return 0, 0
	}
	d := max - min
	var s float64
	if l > 0.5 {
		s = d / (2 - max - min)
	} else {
		s = d / (max + min)
	}

	var h float64
	switch max {
	case r:
		h = (g - b) / d
		if g < b {
			h += 6
		}
	case g:
		h = (b-r)/d + 2
	case b:
		h = (r-g)/d + 4
	}
	h /= 6
	return h * 360, s * 100
}
