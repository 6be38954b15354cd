// Package httpd exposes the preview session over HTTP: a JSON control
// API for the frontend plus the static shim that serves the built pages.
package httpd

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/chalupamike/adframe/internal/capture"
	"github.com/chalupamike/adframe/internal/meta"
	"github.com/chalupamike/adframe/internal/playback"
	"github.com/chalupamike/adframe/internal/player"
	"github.com/chalupamike/adframe/internal/qr"
	"github.com/chalupamike/adframe/internal/scene"
	"github.com/chalupamike/adframe/internal/system"
	"github.com/chalupamike/adframe/internal/theme"
)

// Server wires the session components behind a chi router.
type Server struct {
	log  zerolog.Logger
	ctrl *playback.Controller
	sup  *player.Supervisor
	meta *meta.Client

	newRecorder func(opts capture.Options) *capture.Recorder
	outDir      string
	presetPath  string

	static http.Handler

	mu       sync.Mutex
	rec      *capture.Recorder
	viewport image.Rectangle
	region   image.Rectangle
}

// NewServer assembles the HTTP surface. newRecorder is called once per
// capture so each recording gets fresh encoder state.
func NewServer(log zerolog.Logger, ctrl *playback.Controller, sup *player.Supervisor,
	metaClient *meta.Client, newRecorder func(opts capture.Options) *capture.Recorder,
	outDir, presetPath, staticRoot string) *Server {
	return &Server{
		log:         log.With().Str("component", "httpd").Logger(),
		ctrl:        ctrl,
		sup:         sup,
		meta:        metaClient,
		newRecorder: newRecorder,
		outDir:      outDir,
		presetPath:  presetPath,
		static:      NewStaticHandler(log, staticRoot),
	}
}

// Router builds the route tree. Unmatched paths fall through to the
// static shim.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Route("/session", func(r chi.Router) {
			r.Get("/", s.handleSession)
			r.Get("/pod", s.handlePod)
			r.Post("/play", s.command(s.ctrl.Play))
			r.Post("/pause", s.command(s.ctrl.Pause))
			r.Post("/next", s.command(s.ctrl.Next))
			r.Post("/prev", s.command(s.ctrl.Prev))
			r.Post("/skip", s.command(s.ctrl.SkipPod))
			r.Post("/reset", s.command(s.ctrl.Reset))
			r.Post("/replay", s.command(s.ctrl.Replay))
			r.Post("/mute", s.handleMute)
			r.Post("/advance", s.handleAdvance)
		})

		r.Route("/scenes", func(r chi.Router) {
			r.Get("/", s.handleListScenes)
			r.Post("/", s.handleAddScene)
			r.Put("/{id}", s.handleUpdateScene)
			r.Delete("/{id}", s.handleRemoveScene)
			r.Post("/reorder", s.handleReorder)
		})

		r.Post("/preset/save", s.handlePresetSave)
		r.Post("/preset/load", s.handlePresetLoad)

		r.Get("/metadata", s.handleMetadata)
		r.Get("/qr", s.handleQR)
		r.Get("/theme", s.handleTheme)

		r.Route("/capture", func(r chi.Router) {
			r.Post("/start", s.handleCaptureStart)
			r.Post("/stop", s.handleCaptureStop)
			r.Post("/region", s.handleCaptureRegion)
			r.Get("/status", s.handleCaptureStatus)
		})
		r.Get("/recordings/latest", s.handleLatestRecording)
	})

	r.NotFound(s.static.ServeHTTP)
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

// command wraps a controller mutation and re-syncs the player.
func (s *Server) command(fn func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fn()
		s.sup.Sync()
		s.writeSession(w)
	}
}

type rectJSON struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r rectJSON) rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

type sceneJSON struct {
	ID                string  `json:"id"`
	Type              string  `json:"type"`
	MediaRef          string  `json:"mediaRef"`
	StartTime         float64 `json:"startTime,omitempty"`
	Duration          float64 `json:"duration,omitempty"`
	ContentDuration   float64 `json:"contentDuration,omitempty"`
	AdFormat          string  `json:"adFormat,omitempty"`
	SkipOffset        float64 `json:"skipOffset,omitempty"`
	AdvertiserName    string  `json:"advertiserName,omitempty"`
	AdvertiserLogoURL string  `json:"advertiserLogoUrl,omitempty"`
	Headline          string  `json:"headline,omitempty"`
	CTAText           string  `json:"ctaText,omitempty"`
	DisplayURL        string  `json:"displayUrl,omitempty"`
}

func toSceneJSON(s scene.Scene) sceneJSON {
	return sceneJSON{
		ID:                s.ID,
		Type:              string(s.Type),
		MediaRef:          s.MediaRef,
		StartTime:         s.StartTime,
		Duration:          s.Duration,
		ContentDuration:   s.ContentDuration,
		AdFormat:          string(s.AdFormat),
		SkipOffset:        s.SkipOffset,
		AdvertiserName:    s.AdvertiserName,
		AdvertiserLogoURL: s.AdvertiserLogoURL,
		Headline:          s.Headline,
		CTAText:           s.CTAText,
		DisplayURL:        s.DisplayURL,
	}
}

func (j sceneJSON) scene() scene.Scene {
	return scene.Scene{
		ID:                j.ID,
		Type:              scene.Type(j.Type),
		MediaRef:          j.MediaRef,
		StartTime:         j.StartTime,
		Duration:          j.Duration,
		ContentDuration:   j.ContentDuration,
		AdFormat:          scene.AdFormat(j.AdFormat),
		SkipOffset:        j.SkipOffset,
		AdvertiserName:    j.AdvertiserName,
		AdvertiserLogoURL: j.AdvertiserLogoURL,
		Headline:          j.Headline,
		CTAText:           j.CTAText,
		DisplayURL:        j.DisplayURL,
	}
}

type podJSON struct {
	Index                 int     `json:"index"`
	Total                 int     `json:"total"`
	HasSkippable          bool    `json:"hasSkippable"`
	IsLastSkippable       bool    `json:"isLastSkippable"`
	TotalSkipDuration     float64 `json:"totalSkipDuration"`
	RemainingSkipDuration float64 `json:"remainingSkipDuration"`
	TotalPodRemaining     float64 `json:"totalPodDurationRemaining"`
}

type sessionJSON struct {
	Scenes           []sceneJSON `json:"scenes"`
	Current          int         `json:"current"`
	Playing          bool        `json:"playing"`
	Muted            bool        `json:"muted"`
	Finished         bool        `json:"finished"`
	Elapsed          float64     `json:"elapsed"`
	Pod              podJSON     `json:"pod"`
	HasNextSkippable bool        `json:"hasNextSkippable"`
}

func (s *Server) writeSession(w http.ResponseWriter) {
	snap := s.ctrl.Snapshot()
	info := s.ctrl.PodInfo()

	out := sessionJSON{
		Scenes:   make([]sceneJSON, len(snap.Scenes)),
		Current:  snap.Current,
		Playing:  snap.Playing,
		Muted:    snap.Muted,
		Finished: snap.Finished,
		Elapsed:  s.sup.Elapsed(),
		Pod: podJSON{
			Index:                 info.Index,
			Total:                 info.Total,
			HasSkippable:          info.HasSkippable,
			IsLastSkippable:       info.IsLastSkippable,
			TotalSkipDuration:     info.TotalSkipDuration,
			RemainingSkipDuration: info.RemainingSkipDuration,
			TotalPodRemaining:     info.TotalPodRemaining,
		},
		HasNextSkippable: s.ctrl.HasNextSkippable(),
	}
	for i, sc := range snap.Scenes {
		out.Scenes[i] = toSceneJSON(sc)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	s.writeSession(w)
}

func (s *Server) handlePod(w http.ResponseWriter, r *http.Request) {
	info := s.ctrl.PodInfo()
	writeJSON(w, http.StatusOK, podJSON{
		Index:                 info.Index,
		Total:                 info.Total,
		HasSkippable:          info.HasSkippable,
		IsLastSkippable:       info.IsLastSkippable,
		TotalSkipDuration:     info.TotalSkipDuration,
		RemainingSkipDuration: info.RemainingSkipDuration,
		TotalPodRemaining:     info.TotalPodRemaining,
	})
}

func (s *Server) handleMute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Muted bool `json:"muted"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid body")
		return
	}
	s.ctrl.SetMuted(req.Muted)
	s.sup.Sync()
	s.writeSession(w)
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SceneID string `json:"sceneId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid body")
		return
	}
	s.ctrl.Advance(req.SceneID)
	s.sup.Sync()
	s.writeSession(w)
}

func (s *Server) handleListScenes(w http.ResponseWriter, r *http.Request) {
	scenes := s.ctrl.Scenes()
	out := make([]sceneJSON, len(scenes))
	for i, sc := range scenes {
		out[i] = toSceneJSON(sc)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddScene(w http.ResponseWriter, r *http.Request) {
	var req sceneJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid body")
		return
	}
	sc := scene.New(scene.Type(req.Type), req.MediaRef)
	req.ID = sc.ID
	sc = req.scene()
	if err := sc.Validate(); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	s.ctrl.AddScene(sc)
	s.sup.Sync()
	writeJSON(w, http.StatusCreated, toSceneJSON(sc))
}

func (s *Server) handleUpdateScene(w http.ResponseWriter, r *http.Request) {
	var req sceneJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid body")
		return
	}
	req.ID = chi.URLParam(r, "id")
	sc := req.scene()
	if err := sc.Validate(); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.ctrl.UpdateScene(sc); err != nil {
		writeErr(w, http.StatusNotFound, err.Error())
		return
	}
	s.sup.Sync()
	writeJSON(w, http.StatusOK, toSceneJSON(sc))
}

func (s *Server) handleRemoveScene(w http.ResponseWriter, r *http.Request) {
	s.ctrl.RemoveScene(chi.URLParam(r, "id"))
	s.sup.Sync()
	s.writeSession(w)
}

func (s *Server) handleReorder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From int `json:"from"`
		To   int `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := s.ctrl.MoveScene(req.From, req.To); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	s.sup.Sync()
	s.writeSession(w)
}

func (s *Server) handlePresetSave(w http.ResponseWriter, r *http.Request) {
	if s.presetPath == "" {
		writeErr(w, http.StatusConflict, "no preset path configured")
		return
	}
	if err := scene.WritePreset(s.ctrl.Scenes(), s.presetPath); err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": s.presetPath})
}

func (s *Server) handlePresetLoad(w http.ResponseWriter, r *http.Request) {
	if s.presetPath == "" {
		writeErr(w, http.StatusConflict, "no preset path configured")
		return
	}
	scenes, err := scene.ReadPreset(s.presetPath)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.ctrl.SetScenes(scenes)
	s.ctrl.Reset()
	s.sup.Sync()
	s.writeSession(w)
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	mediaURL := r.URL.Query().Get("url")
	if mediaURL == "" {
		writeErr(w, http.StatusBadRequest, "url parameter required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 6*time.Second)
	defer cancel()

	thumb := meta.PlaceholderThumbnail
	if id, err := player.ResolveVideoID(mediaURL); err == nil {
		thumb = meta.ThumbnailURL(id)
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"title":        s.meta.Title(ctx, mediaURL),
		"thumbnailUrl": thumb,
	})
}

func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	matrix, err := qr.Matrix(r.URL.Query().Get("target"))
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"matrix": matrix})
}

func (s *Server) handleTheme(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 6*time.Second)
	defer cancel()
	writeJSON(w, http.StatusOK, theme.Fetch(ctx, r.URL.Query().Get("logo")))
}

func (s *Server) handleCaptureStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Viewport rectJSON `json:"viewport"`
		Region   rectJSON `json:"region"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid body")
		return
	}
	viewport := req.Viewport.rect()
	region := req.Region.rect()
	if viewport.Dx() <= 0 || viewport.Dy() <= 0 || region.Empty() {
		writeErr(w, http.StatusBadRequest, "viewport and region must be non-empty")
		return
	}

	if err := system.CheckRecordingHeadroom(s.outDir); err != nil {
		writeErr(w, http.StatusInsufficientStorage, err.Error())
		return
	}

	s.mu.Lock()
	if s.rec != nil && s.rec.State() != capture.StateIdle {
		s.mu.Unlock()
		writeErr(w, http.StatusConflict, "recording already in progress")
		return
	}
	s.viewport = viewport
	s.region = region
	rec := s.newRecorder(capture.Options{
		Viewport: viewport,
		Region:   s.currentRegion,
		OutDir:   s.outDir,
	})
	s.rec = rec
	s.mu.Unlock()

	// The grab must outlive this request; the recorder owns its lifetime.
	if err := rec.Start(context.Background()); err != nil {
		s.captureStatus(w)
		return
	}
	s.captureStatus(w)
}

func (s *Server) handleCaptureStop(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	rec := s.rec
	s.mu.Unlock()
	if rec != nil {
		rec.Stop()
	}
	s.captureStatus(w)
}

// handleCaptureRegion tracks the element rectangle as the page relays out
// mid-recording. The repaint loop reads it on every frame.
func (s *Server) handleCaptureRegion(w http.ResponseWriter, r *http.Request) {
	var req rectJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid body")
		return
	}
	s.mu.Lock()
	s.region = req.rect()
	s.mu.Unlock()
	s.captureStatus(w)
}

func (s *Server) handleCaptureStatus(w http.ResponseWriter, r *http.Request) {
	s.captureStatus(w)
}

func (s *Server) currentRegion() image.Rectangle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.region
}

func (s *Server) captureStatus(w http.ResponseWriter) {
	s.mu.Lock()
	rec := s.rec
	s.mu.Unlock()

	out := struct {
		State      string `json:"state"`
		Elapsed    int    `json:"elapsed"`
		Error      string `json:"error,omitempty"`
		OutputPath string `json:"outputPath,omitempty"`
	}{State: string(capture.StateIdle)}

	if rec != nil {
		out.State = string(rec.State())
		out.Elapsed = rec.Elapsed()
		out.Error = rec.UserError()
		out.OutputPath = rec.OutputPath()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLatestRecording(w http.ResponseWriter, r *http.Request) {
	path, err := system.FindLatestRecording(s.outDir)
	if err != nil {
		writeErr(w, http.StatusNotFound, err.Error())
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
