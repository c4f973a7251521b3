package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hweng-dev/adsplice/internal/proxypool"
	"github.com/hweng-dev/adsplice/internal/usecase"
)

// maxPlaylistBytes bounds how much playlist text is read from an origin
// or a request body. Media playlists are small; anything bigger is junk.
const maxPlaylistBytes = 4 << 20

// ProcessPlaylistRequest is the body of POST /v1/playlist/process, for
// callers that already hold the playlist text.
type ProcessPlaylistRequest struct {
	Playlist            string `json:"playlist"`
	BaseURL             string `json:"base_url"`
	SkipFormatDetection bool   `json:"skip_format_detection"`
}

// ProcessPlaylistResponse carries the rewritten playlist plus
// processing stats.
type ProcessPlaylistResponse struct {
	Playlist              string  `json:"playlist"`
	DurationSeconds       float64 `json:"duration_seconds"`
	SegmentCount          int     `json:"segment_count"`
	AdsInjected           int     `json:"ads_injected"`
	ForeignAdsStripped    int     `json:"foreign_ads_stripped"`
	DetectedFormat        string  `json:"detected_format"`
	UsedTranscodedVariant bool    `json:"used_transcoded_variant"`
}

// PlaylistHandler handles playlist rewriting HTTP requests.
type PlaylistHandler struct {
	svc          usecase.PlaylistService
	pool         *proxypool.Pool
	fetchTimeout time.Duration
}

// NewPlaylistHandler creates a new PlaylistHandler.
func NewPlaylistHandler(svc usecase.PlaylistService, pool *proxypool.Pool, fetchTimeout time.Duration) *PlaylistHandler {
	if fetchTimeout <= 0 {
		fetchTimeout = 15 * time.Second
	}
	return &PlaylistHandler{svc: svc, pool: pool, fetchTimeout: fetchTimeout}
}

// Get handles GET /v1/playlist?src=<url>: fetch the source playlist
// through the egress pool, rewrite it, and return playlist text.
func (h *PlaylistHandler) Get(w http.ResponseWriter, r *http.Request) {
	src := r.URL.Query().Get("src")
	if !validUpstreamURL(src) {
		Error(w, http.StatusBadRequest, "invalid_src", "src must be an absolute http(s) URL")
		return
	}

	playlist, err := h.fetchPlaylist(r, src)
	if err != nil {
		Error(w, http.StatusBadGateway, "upstream_fetch_failed", "Failed to fetch source playlist")
		return
	}

	output, err := h.svc.Process(r.Context(), usecase.ProcessInput{
		Playlist: playlist,
		BaseURL:  src,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("X-Adsplice-Ads-Injected", strconv.Itoa(output.AdsInjected))
	w.Header().Set("X-Adsplice-Foreign-Ads-Stripped", strconv.Itoa(output.ForeignAdsStripped))
	w.Header().Set("X-Adsplice-Detected-Format", output.DetectedFormat.Key())
	w.Header().Set("X-Adsplice-Transcoded-Variant", strconv.FormatBool(output.UsedTranscodedVariant))
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, output.Playlist)
}

// Process handles POST /v1/playlist/process.
func (h *PlaylistHandler) Process(w http.ResponseWriter, r *http.Request) {
	var req ProcessPlaylistRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxPlaylistBytes)).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	if req.Playlist == "" {
		Error(w, http.StatusBadRequest, "invalid_playlist", "Playlist text is required")
		return
	}
	if !validUpstreamURL(req.BaseURL) {
		Error(w, http.StatusBadRequest, "invalid_base_url", "base_url must be an absolute http(s) URL")
		return
	}

	output, err := h.svc.Process(r.Context(), usecase.ProcessInput{
		Playlist:            req.Playlist,
		BaseURL:             req.BaseURL,
		SkipFormatDetection: req.SkipFormatDetection,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusOK, ProcessPlaylistResponse{
		Playlist:              output.Playlist,
		DurationSeconds:       output.DurationSeconds,
		SegmentCount:          output.SegmentCount,
		AdsInjected:           output.AdsInjected,
		ForeignAdsStripped:    output.ForeignAdsStripped,
		DetectedFormat:        output.DetectedFormat.Key(),
		UsedTranscodedVariant: output.UsedTranscodedVariant,
	})
}

func (h *PlaylistHandler) fetchPlaylist(r *http.Request, src string) (string, error) {
	client, report := h.pool.ClientFor("playlist", h.fetchTimeout)

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, src, nil)
	if err != nil {
		return "", err
	}

	resp, err := client.Do(req)
	if err != nil {
		report(err)
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("upstream returned %d", resp.StatusCode)
		report(err)
		return "", err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPlaylistBytes))
	report(err)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (h *PlaylistHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, usecase.ErrEmptyPlaylist):
		Error(w, http.StatusBadRequest, "empty_playlist", "Source playlist has no usable lines")
	default:
		Error(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

func validUpstreamURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
