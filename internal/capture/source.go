package capture

import (
	"context"
	"errors"
	"image"
)

// ErrPermissionDenied means the user declined the screen share. Surfaced
// as a transient message; the session is otherwise unaffected and capture
// may be retried immediately.
var ErrPermissionDenied = errors.New("screen capture permission denied")

// Source is an acquired display stream. Frame returns the most recent
// frame at the stream's native resolution; Done is closed when the stream
// ends without an explicit Close, e.g. the user revoking the share from
// the platform's own UI.
type Source interface {
	Frame() (*image.RGBA, error)
	Bounds() image.Rectangle
	Done() <-chan struct{}
	Close() error
}

// SourceFactory acquires a display stream, possibly prompting the user.
type SourceFactory func(ctx context.Context) (Source, error)

// RegionFunc reports the on-screen rectangle of the element being
// recorded, in viewport coordinates. It is re-read every frame so resizes
// and scrolls are tolerated.
type RegionFunc func() image.Rectangle
