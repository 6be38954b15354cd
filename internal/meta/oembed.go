// Package meta looks up display metadata for media references. Everything
// here is best-effort: failures produce placeholders and never reach the
// playback path.
package meta

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

const (
	oembedEndpoint = "https://www.youtube.com/oembed"
	// PlaceholderTitle is shown when the lookup fails or times out.
	PlaceholderTitle = "Untitled video"
	// PlaceholderThumbnail substitutes for broken thumbnail images.
	PlaceholderThumbnail = "/assets/thumb-placeholder.png"
)

// Client queries the oEmbed endpoint with a bounded timeout.
type Client struct {
	log  zerolog.Logger
	http *http.Client
	base string
}

// NewClient builds a metadata client. An empty base uses the public
// endpoint.
func NewClient(log zerolog.Logger, base string) *Client {
	if base == "" {
		base = oembedEndpoint
	}
	return &Client{
		log:  log.With().Str("component", "meta").Logger(),
		http: &http.Client{Timeout: 5 * time.Second},
		base: base,
	}
}

// Title resolves a human-readable title for a media URL. Never fails:
// any error yields the placeholder.
func (c *Client) Title(ctx context.Context, mediaURL string) string {
	q := url.Values{}
	q.Set("url", mediaURL)
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"?"+q.Encode(), nil)
	if err != nil {
		return PlaceholderTitle
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("url", mediaURL).Msg("metadata lookup failed")
		return PlaceholderTitle
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.log.Debug().Int("status", resp.StatusCode).Str("url", mediaURL).Msg("metadata lookup rejected")
		return PlaceholderTitle
	}

	var payload struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || payload.Title == "" {
		return PlaceholderTitle
	}
	return payload.Title
}

// ThumbnailURL builds the static thumbnail location for a resolved video
// ID. The caller substitutes PlaceholderThumbnail on image load failure.
func ThumbnailURL(videoID string) string {
	return fmt.Sprintf("https://img.youtube.com/vi/%s/maxresdefault.jpg", videoID)
}
