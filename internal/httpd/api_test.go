package httpd

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chalupamike/adframe/internal/capture"
	"github.com/chalupamike/adframe/internal/meta"
	"github.com/chalupamike/adframe/internal/playback"
	"github.com/chalupamike/adframe/internal/player"
	"github.com/chalupamike/adframe/internal/scene"
)

type stubSource struct {
	bounds image.Rectangle
	done   chan struct{}
}

func (s *stubSource) Frame() (*image.RGBA, error) { return image.NewRGBA(s.bounds), nil }
func (s *stubSource) Bounds() image.Rectangle     { return s.bounds }
func (s *stubSource) Done() <-chan struct{}       { return s.done }
func (s *stubSource) Close() error                { return nil }

type stubEncoder struct{}

func (e *stubEncoder) Start(ctx context.Context, width, height, fps int, outPath string) error {
	return nil
}
func (e *stubEncoder) WriteFrame(img *image.RGBA) error { return nil }
func (e *stubEncoder) Stop() error                      { return nil }

type apiFixture struct {
	server *httptest.Server
	ctrl   *playback.Controller
	sup    *player.Supervisor
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	log := zerolog.Nop()

	scenes := scene.List{
		{ID: "c1", Type: scene.TypeContent, MediaRef: "https://youtu.be/abcdefghijk"},
		{ID: "a1", Type: scene.TypeAd, AdFormat: scene.FormatSkippableBrand,
			MediaRef: "https://youtu.be/abcdefghijl", Duration: 15, SkipOffset: 5},
	}
	ctrl := playback.NewController(log, scenes)
	sup := player.NewSupervisor(log, ctrl, player.SimFactory(), time.Hour)
	t.Cleanup(sup.Close)
	sup.Sync()

	staticRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(staticRoot, "index.html"), []byte("spa"), 0644))

	newRecorder := func(opts capture.Options) *capture.Recorder {
		acquire := func(ctx context.Context) (capture.Source, error) {
			return &stubSource{bounds: image.Rect(0, 0, 800, 600), done: make(chan struct{})}, nil
		}
		opts.FPS = 100
		return capture.NewRecorder(log, acquire, func() capture.Encoder { return &stubEncoder{} }, opts)
	}

	srv := NewServer(log, ctrl, sup, meta.NewClient(log, ""), newRecorder,
		t.TempDir(), filepath.Join(t.TempDir(), "preset.yaml"), staticRoot)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &apiFixture{server: ts, ctrl: ctrl, sup: sup}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)
	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	out := map[string]json.RawMessage{}
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func decodeSession(t *testing.T, raw map[string]json.RawMessage) sessionJSON {
	t.Helper()
	data, err := json.Marshal(raw)
	require.NoError(t, err)
	var s sessionJSON
	require.NoError(t, json.Unmarshal(data, &s))
	return s
}

func TestSessionEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	resp, raw := f.do(t, http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	s := decodeSession(t, raw)
	assert.Len(t, s.Scenes, 2)
	assert.Equal(t, 0, s.Current)
	assert.True(t, s.Muted)
	assert.False(t, s.Playing)
}

func TestPlaybackCommands(t *testing.T) {
	f := newAPIFixture(t)

	resp, raw := f.do(t, http.MethodPost, "/api/session/play", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decodeSession(t, raw).Playing)

	_, raw = f.do(t, http.MethodPost, "/api/session/pause", nil)
	assert.False(t, decodeSession(t, raw).Playing)

	_, raw = f.do(t, http.MethodPost, "/api/session/next", nil)
	s := decodeSession(t, raw)
	assert.Equal(t, 1, s.Current)
	assert.Equal(t, 1, s.Pod.Index, "second scene opens an ad pod")

	_, raw = f.do(t, http.MethodPost, "/api/session/next", nil)
	assert.True(t, decodeSession(t, raw).Finished)

	_, raw = f.do(t, http.MethodPost, "/api/session/replay", nil)
	s = decodeSession(t, raw)
	assert.Equal(t, 0, s.Current)
	assert.True(t, s.Playing)
	assert.False(t, s.Finished)
}

func TestMuteEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	resp, raw := f.do(t, http.MethodPost, "/api/session/mute", map[string]bool{"muted": false})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decodeSession(t, raw).Muted)
}

func TestAdvanceEndpointIsGuarded(t *testing.T) {
	f := newAPIFixture(t)
	_, raw := f.do(t, http.MethodPost, "/api/session/advance", map[string]string{"sceneId": "c1"})
	assert.Equal(t, 1, decodeSession(t, raw).Current)

	// Stale signal for the previous scene changes nothing.
	_, raw = f.do(t, http.MethodPost, "/api/session/advance", map[string]string{"sceneId": "c1"})
	assert.Equal(t, 1, decodeSession(t, raw).Current)
}

func TestSceneCRUD(t *testing.T) {
	f := newAPIFixture(t)

	resp, raw := f.do(t, http.MethodPost, "/api/scenes/", sceneJSON{
		Type:     string(scene.TypeAd),
		MediaRef: "https://youtu.be/abcdefghijm",
		AdFormat: string(scene.FormatSqueezebackQR),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created sceneJSON
	require.NoError(t, json.Unmarshal(raw["id"], &created.ID))
	require.NotEmpty(t, created.ID)

	resp, _ = f.do(t, http.MethodPut, "/api/scenes/"+created.ID, sceneJSON{
		Type:     string(scene.TypeAd),
		MediaRef: "https://youtu.be/abcdefghijm",
		AdFormat: string(scene.FormatSkippableBrand),
		Headline: "edited",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPut, "/api/scenes/ghost", sceneJSON{
		Type: string(scene.TypeContent), MediaRef: "x",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, raw = f.do(t, http.MethodDelete, "/api/scenes/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeSession(t, raw).Scenes, 2)
}

func TestSceneValidationRejected(t *testing.T) {
	f := newAPIFixture(t)
	resp, _ := f.do(t, http.MethodPost, "/api/scenes/", sceneJSON{
		Type:     string(scene.TypeAd),
		MediaRef: "https://youtu.be/abcdefghijm",
		// no adFormat
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReorderEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	resp, raw := f.do(t, http.MethodPost, "/api/scenes/reorder", map[string]int{"from": 0, "to": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	s := decodeSession(t, raw)
	assert.Equal(t, "a1", s.Scenes[0].ID)

	resp, _ = f.do(t, http.MethodPost, "/api/scenes/reorder", map[string]int{"from": 0, "to": 9})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPresetSaveLoadRoundTrip(t *testing.T) {
	f := newAPIFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/api/preset/save", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Mutate the session, then restore from disk.
	f.do(t, http.MethodDelete, "/api/scenes/c1", nil)
	resp, raw := f.do(t, http.MethodPost, "/api/preset/load", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	s := decodeSession(t, raw)
	assert.Len(t, s.Scenes, 2)
	assert.Equal(t, 0, s.Current)
}

func TestQREndpoint(t *testing.T) {
	f := newAPIFixture(t)
	resp, raw := f.do(t, http.MethodGet, "/api/qr?target=example.com", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var matrix [][]bool
	require.NoError(t, json.Unmarshal(raw["matrix"], &matrix))
	assert.NotEmpty(t, matrix)
	assert.Equal(t, len(matrix), len(matrix[0]), "matrix is square")
}

func TestCaptureLifecycle(t *testing.T) {
	f := newAPIFixture(t)

	body := map[string]rectJSON{
		"viewport": {Width: 800, Height: 600},
		"region":   {X: 10, Y: 10, Width: 400, Height: 300},
	}
	resp, raw := f.do(t, http.MethodPost, "/api/capture/start", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var state string
	require.NoError(t, json.Unmarshal(raw["state"], &state))
	assert.Equal(t, string(capture.StateRecording), state)

	resp, _ = f.do(t, http.MethodPost, "/api/capture/region", rectJSON{X: 20, Y: 20, Width: 400, Height: 300})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/capture/start", body)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, raw = f.do(t, http.MethodPost, "/api/capture/stop", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(raw["state"], &state))
	assert.Equal(t, string(capture.StateIdle), state)
}

func TestCaptureRejectsEmptyGeometry(t *testing.T) {
	f := newAPIFixture(t)
	resp, _ := f.do(t, http.MethodPost, "/api/capture/start", map[string]rectJSON{
		"viewport": {Width: 0, Height: 0},
		"region":   {Width: 0, Height: 0},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnknownPathFallsThroughToStatic(t *testing.T) {
	f := newAPIFixture(t)
	resp, err := f.server.Client().Get(f.server.URL + "/some/client/route")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
