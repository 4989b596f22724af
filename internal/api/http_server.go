package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/abelzeko/radar-loop/internal/entities"
	"github.com/abelzeko/radar-loop/internal/integration"
	"github.com/abelzeko/radar-loop/internal/playback"
	"github.com/abelzeko/radar-loop/internal/timeline"
	"github.com/abelzeko/radar-loop/internal/usecases"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ImageSource returns preloaded frame images
type ImageSource interface {
	Image(locator string) (integration.CachedImage, bool)
}

// Server is the HTTP viewer of the radar loop
type Server struct {
	useCase *usecases.RadarUseCase
	images  ImageSource
	hub     *FrameHub
	mux     *http.ServeMux
}

// NewServer wires the viewer routes
func NewServer(useCase *usecases.RadarUseCase, images ImageSource, hub *FrameHub) *Server {
	s := &Server{useCase: useCase, images: images, hub: hub, mux: http.NewServeMux()}

	s.mux.HandleFunc("GET /{$}", s.handlePage)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/state", s.handleState)
	s.mux.HandleFunc("GET /api/regions", s.handleRegions)
	s.mux.HandleFunc("POST /api/region", s.handleRegion)
	s.mux.HandleFunc("POST /api/center", s.handleCenter)
	s.mux.HandleFunc("POST /api/wind", s.handleWind)
	s.mux.HandleFunc("POST /api/speed", s.handleSpeed)
	s.mux.HandleFunc("POST /api/play", s.handlePlay)
	s.mux.HandleFunc("POST /api/seek", s.handleSeek)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.HandleFunc("GET /frames/{index}", s.handleFrame)
	s.mux.Handle("GET /ws", hub)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// frameID names the image behind a locator. Every region, option or scan
// change yields a different id, so browser caches never mix frames up.
func frameID(frame entities.FrameDescriptor) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(frame.Locator)).String()
}

func frameImagePath(index int, frame entities.FrameDescriptor) string {
	return fmt.Sprintf("/frames/%d?id=%s", index, frameID(frame))
}

// StateResponse is the JSON form of a loop snapshot
type StateResponse struct {
	Region       string          `json:"region"`
	RegionName   string          `json:"region_name"`
	Center       bool            `json:"center"`
	WindVector   bool            `json:"wind_vector"`
	Running      bool            `json:"running"`
	Cursor       int             `json:"cursor"`
	PeriodMillis int             `json:"period_ms"`
	Frames       []FrameResponse `json:"frames"`
	SyncedAt     time.Time       `json:"synced_at"`
	LocalClock   bool            `json:"local_clock"`
}

// FrameResponse is the JSON form of one frame
type FrameResponse struct {
	Index     int       `json:"index"`
	Locator   string    `json:"locator"`
	Image     string    `json:"image"`
	Timestamp time.Time `json:"timestamp"`
	Label     string    `json:"label"`
}

func newStateResponse(view usecases.View) StateResponse {
	resp := StateResponse{
		Region:       view.Region.Key,
		RegionName:   view.Region.Name,
		Center:       view.Center,
		WindVector:   view.WindVector,
		Running:      view.State.Running,
		Cursor:       view.State.Cursor,
		PeriodMillis: view.State.PeriodMillis,
		Frames:       make([]FrameResponse, len(view.Frames)),
		SyncedAt:     view.SyncedAt,
		LocalClock:   view.Fallback,
	}
	for i, f := range view.Frames {
		resp.Frames[i] = FrameResponse{
			Index:     i,
			Locator:   f.Locator,
			Image:     frameImagePath(i, f),
			Timestamp: f.Timestamp,
			Label:     timeline.FormatDisplay(f.Timestamp),
		}
	}
	return resp
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newStateResponse(s.useCase.Snapshot()))
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	type region struct {
		Key                  string `json:"key"`
		Name                 string `json:"name"`
		FrameIntervalMinutes int    `json:"interval_minutes"`
		FrameCount           int    `json:"frames"`
	}
	var out []region
	for _, p := range entities.Regions() {
		out = append(out, region{Key: p.Key, Name: p.Name, FrameIntervalMinutes: p.FrameIntervalMinutes, FrameCount: p.FrameCount})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRegion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Region string `json:"region"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.useCase.SelectRegion(r.Context(), req.Region); err != nil {
		writeError(w, err)
		return
	}
	s.handleState(w, r)
}

func (s *Server) handleCenter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.useCase.SetCenter(r.Context(), req.Enabled); err != nil {
		writeError(w, err)
		return
	}
	s.handleState(w, r)
}

func (s *Server) handleWind(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.useCase.SetWindVector(r.Context(), req.Enabled); err != nil {
		writeError(w, err)
		return
	}
	s.handleState(w, r)
}

// handleSpeed accepts either an absolute period or a delta in milliseconds
func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PeriodMillis *int `json:"period_ms"`
		Delta        int  `json:"delta"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	switch {
	case req.PeriodMillis != nil:
		s.useCase.SetPeriod(*req.PeriodMillis)
	case req.Delta < 0:
		s.useCase.Faster()
	case req.Delta > 0:
		s.useCase.Slower()
	}
	s.handleState(w, r)
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	if _, err := s.useCase.TogglePlay(); err != nil {
		writeError(w, err)
		return
	}
	s.handleState(w, r)
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index int `json:"index"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.useCase.Seek(req.Index); err != nil {
		writeError(w, err)
		return
	}
	s.handleState(w, r)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.useCase.Refresh(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	s.handleState(w, r)
}

// handleFrame serves the preloaded image of a frame, or redirects to the image server
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	frames := s.useCase.Snapshot().Frames
	if err != nil || index < 0 || index >= len(frames) {
		http.NotFound(w, r)
		return
	}

	// an id from an older timeline no longer names this index
	id := r.URL.Query().Get("id")
	if id != "" && id != frameID(frames[index]) {
		http.NotFound(w, r)
		return
	}

	locator := frames[index].Locator
	if id == "" {
		w.Header().Set("Cache-Control", "no-store")
	} else {
		w.Header().Set("Cache-Control", "public, max-age=300")
	}
	if s.images != nil {
		if img, ok := s.images.Image(locator); ok {
			if img.ContentType != "" {
				w.Header().Set("Content-Type", img.ContentType)
			}
			_, _ = w.Write(img.Data)
			return
		}
	}
	http.Redirect(w, r, locator, http.StatusFound)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 4096)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, usecases.ErrUnknownRegion), errors.Is(err, playback.ErrFrameOutOfRange):
		status = http.StatusBadRequest
	case errors.Is(err, timeline.ErrInvalidProfile), errors.Is(err, playback.ErrEmptyTimeline):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		log.Printf("Error handling request: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
