// Package qr renders a target URL into the square boolean matrix the
// squeezeback overlay draws from.
package qr

import (
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

const fallbackTarget = "https://www.youtube.com"

// Matrix encodes the target with the highest error-correction level, so
// the overlay can punch a logo hole in the middle and stay scannable.
// An empty target falls back to a neutral URL; a scheme is prepended when
// missing.
func Matrix(target string) ([][]bool, error) {
	if target == "" {
		target = fallbackTarget
	} else if !strings.HasPrefix(target, "http") {
		target = "https://" + target
	}
	code, err := qrcode.New(target, qrcode.Highest)
	if err != nil {
		return nil, err
	}
	return code.Bitmap(), nil
}
