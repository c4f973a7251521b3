package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/url"
	"path"
	"sync"

	"github.com/google/uuid"

	"github.com/hweng-dev/adsplice/internal/adengine"
	"github.com/hweng-dev/adsplice/internal/domain/model"
	"github.com/hweng-dev/adsplice/internal/domain/repository"
	"github.com/hweng-dev/adsplice/internal/hls"
	"github.com/hweng-dev/adsplice/internal/infrastructure/metrics"
	"github.com/hweng-dev/adsplice/internal/probe"
)

var (
	// ErrEmptyPlaylist is returned when the source playlist has no usable lines.
	ErrEmptyPlaylist = errors.New("empty playlist")
)

// Strip sanity bound: a leading unencrypted block larger than this is
// assumed to be content, not a foreign pre-roll ad.
const defaultStripMaxSegments = 20

// defaultSegmentsToSkip is how many leading content segments are dropped
// when a pre-roll of our own is injected, compensating the viewer for
// the added ad time.
const defaultSegmentsToSkip = 3

// ProcessInput contains the input parameters for processing a playlist.
type ProcessInput struct {
	// Playlist is the raw source playlist text.
	Playlist string
	// BaseURL is the URL the playlist was fetched from; relative
	// references resolve against it.
	BaseURL string
	// SkipFormatDetection bypasses the source probe and uses the
	// default format.
	SkipFormatDetection bool
}

// PlaylistService defines the playlist processing operation: strip
// foreign ads, compute and assign ad slots, splice them in, absolutize
// and proxy URLs.
type PlaylistService interface {
	Process(ctx context.Context, input ProcessInput) (*model.ProcessedPlaylist, error)
}

type playlistService struct {
	settings repository.Settings
	catalog  repository.AdCatalog
	engine   *adengine.Engine
	prober   probe.Prober
	variants VariantService
	queue    repository.MessageQueue

	publicBaseURL string

	mu  sync.Mutex
	rng *rand.Rand
}

// NewPlaylistService creates a new PlaylistService instance.
// queue may be nil; variant pre-warm publishing is then skipped.
// A nil rng gets a time-seeded one; tests pass a fixed seed.
func NewPlaylistService(
	settings repository.Settings,
	catalog repository.AdCatalog,
	engine *adengine.Engine,
	prober probe.Prober,
	variants VariantService,
	queue repository.MessageQueue,
	publicBaseURL string,
	rng *rand.Rand,
) PlaylistService {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &playlistService{
		settings:      settings,
		catalog:       catalog,
		engine:        engine,
		prober:        prober,
		variants:      variants,
		queue:         queue,
		publicBaseURL: publicBaseURL,
		rng:           rng,
	}
}

// Process rewrites one source playlist.
func (s *playlistService) Process(ctx context.Context, input ProcessInput) (*model.ProcessedPlaylist, error) {
	lines := hls.Lines(input.Playlist)
	if len(lines) == 0 {
		metrics.PlaylistsProcessedTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		return nil, ErrEmptyPlaylist
	}

	stripMax := s.settings.GetInt(ctx, repository.KeyStripMaxSegments, defaultStripMaxSegments)
	lines, stripped := hls.StripForeignAds(lines, stripMax)
	if stripped > 0 {
		metrics.ForeignAdsStrippedTotal.Add(float64(stripped))
		slog.Debug("stripped foreign pre-roll ads", "segments", stripped)
	}

	duration := hls.TotalDuration(lines)

	placements := s.planAds(ctx, duration)

	rewriter, err := s.buildRewriter(ctx, input.BaseURL)
	if err != nil {
		metrics.PlaylistsProcessedTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		return nil, err
	}

	// Probing is only worth the fetch when an ad will actually be
	// spliced in.
	format := model.DefaultFormat
	if hasAssignment(placements) {
		format = s.detectFormat(ctx, lines, rewriter, input.SkipFormatDetection)
	}

	creatives, variants, usedVariant := s.prepareCreatives(ctx, placements, format)

	skip := 0
	if hasAssignedPreroll(placements) {
		skip = s.settings.GetInt(ctx, repository.KeySegmentsToSkip, defaultSegmentsToSkip)
	}

	result := hls.Rewrite(lines, hls.RewriteOptions{
		URLs:           rewriter,
		Placements:     placements,
		AdURL:          s.adURLFunc(creatives, variants),
		SegmentsToSkip: skip,
	})

	for _, p := range placements {
		if p.Injected() {
			metrics.AdsInjectedTotal.WithLabelValues(string(p.Role)).Inc()
		}
	}
	metrics.PlaylistsProcessedTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()

	return &model.ProcessedPlaylist{
		Playlist:              result.Playlist,
		DurationSeconds:       duration,
		SegmentCount:          result.ContentSegments,
		AdsInjected:           result.AdsInjected,
		ForeignAdsStripped:    stripped,
		DetectedFormat:        format,
		UsedTranscodedVariant: usedVariant,
	}, nil
}

// planAds computes ad slots from the effective policy and assigns
// creatives to them. Assignment failures degrade to unassigned slots,
// never to a failed request.
func (s *playlistService) planAds(ctx context.Context, duration float64) []*model.AdPlacement {
	if !s.settings.GetBool(ctx, repository.KeyAdsEnabled, true) {
		return nil
	}

	placements := adengine.ComputePlacements(duration, s.loadPolicy(ctx))
	if len(placements) == 0 {
		return nil
	}

	if err := s.engine.AssignCreatives(ctx, placements); err != nil {
		slog.Warn("creative assignment failed, slots left unassigned", "error", err)
	}
	return placements
}

// loadPolicy resolves the ad policy from the settings source, falling
// back per key to the built-in defaults.
func (s *playlistService) loadPolicy(ctx context.Context) adengine.Policy {
	def := adengine.DefaultPolicy()
	return adengine.Policy{
		AlwaysPreroll:         s.settings.GetBool(ctx, repository.KeyAlwaysPreroll, def.AlwaysPreroll),
		PrerollEnabled:        s.settings.GetBool(ctx, repository.KeyPrerollEnabled, def.PrerollEnabled),
		MidrollEnabled:        s.settings.GetBool(ctx, repository.KeyMidrollEnabled, def.MidrollEnabled),
		PostrollEnabled:       s.settings.GetBool(ctx, repository.KeyPostrollEnabled, def.PostrollEnabled),
		MidrollInterval:       s.settings.GetFloat(ctx, repository.KeyMidrollInterval, def.MidrollInterval),
		MaxAdsPerVideo:        s.settings.GetInt(ctx, repository.KeyMaxAdsPerVideo, def.MaxAdsPerVideo),
		MinDurationForMidroll: s.settings.GetFloat(ctx, repository.KeyMinDurationForMidroll, def.MinDurationForMidroll),
	}
}

// buildRewriter resolves the URL rewriting mode from settings.
// A cors mode without a configured proxy URL degrades to passthrough.
func (s *playlistService) buildRewriter(ctx context.Context, baseURL string) (*hls.URLRewriter, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid playlist base URL %q", baseURL)
	}

	mode := hls.ParseProxyMode(s.settings.Get(ctx, repository.KeyProxySegmentMode, string(hls.ProxyModePassthrough)))

	corsPrefix := ""
	if mode == hls.ProxyModeCORS {
		if s.settings.GetBool(ctx, repository.KeyCORSProxyEnabled, false) {
			corsPrefix = s.settings.Get(ctx, repository.KeyCORSProxyURL, "")
		}
		if corsPrefix == "" {
			mode = hls.ProxyModePassthrough
		}
	}

	ownHost := ""
	if own, err := url.Parse(s.publicBaseURL); err == nil {
		ownHost = own.Host
	}

	return &hls.URLRewriter{
		Base:          base,
		Mode:          mode,
		CORSPrefix:    corsPrefix,
		ProxyEndpoint: s.publicBaseURL + "/v1/proxy",
		OwnHost:       ownHost,
	}, nil
}

// detectFormat probes the first content segment for the source's
// encoding profile. The segment URL goes through the same rewrite the
// client-facing playlist gets, so the prober samples the exact bytes a
// player would fetch. Every failure falls back to the default format.
func (s *playlistService) detectFormat(ctx context.Context, lines []string, rewriter *hls.URLRewriter, skip bool) model.VideoFormat {
	if skip {
		return model.DefaultFormat
	}

	first := hls.FirstSegmentURI(lines)
	if first == "" {
		return model.DefaultFormat
	}

	segURL := rewriter.Rewrite(first)

	format, err := s.prober.Probe(ctx, segURL)
	if err != nil {
		slog.Debug("source format probe failed, using default format",
			"segment_url", segURL,
			"error", err,
		)
		return model.DefaultFormat
	}
	return *format
}

// prepareCreatives loads the creative record for every assigned slot
// and, when the source format differs from the default, ensures a
// matching variant per creative. A failed variant falls back to the
// creative's original segments and queues a pre-warm task.
func (s *playlistService) prepareCreatives(
	ctx context.Context,
	placements []*model.AdPlacement,
	format model.VideoFormat,
) (map[string]*model.AdCreative, map[string]*model.AdVariant, bool) {
	creatives := make(map[string]*model.AdCreative)
	variants := make(map[string]*model.AdVariant)
	usedVariant := false

	for _, p := range placements {
		if !p.Assigned() {
			continue
		}
		if _, ok := creatives[p.CreativeID]; ok {
			continue
		}

		creative, err := s.catalog.GetByID(ctx, p.CreativeID)
		if err != nil {
			slog.Warn("assigned creative not loadable", "creative_id", p.CreativeID, "error", err)
			continue
		}
		creatives[creative.ID] = creative

		// The default format is what creatives are pre-encoded for;
		// only divergent sources need a transcoded variant. A creative
		// without pre-encoded segments always needs one.
		if format.IsDefault() && len(creative.SegmentKeys) > 0 {
			continue
		}

		variant, err := s.variants.EnsureVariant(ctx, creative, format)
		if err != nil {
			slog.Warn("variant not available, falling back to original segments",
				"creative_id", creative.ID,
				"format", format.Key(),
				"error", err,
			)
			s.publishPrewarm(ctx, creative.ID, format)
			continue
		}

		variants[creative.ID] = variant
		usedVariant = true
	}

	return creatives, variants, usedVariant
}

// publishPrewarm queues a background variant build so the next request
// for this (creative, format) pair finds it ready. Best effort.
func (s *playlistService) publishPrewarm(ctx context.Context, creativeID string, format model.VideoFormat) {
	if s.queue == nil {
		return
	}

	task := repository.PrewarmTask{
		TaskID:     uuid.New(),
		CreativeID: creativeID,
		Format:     format,
	}
	if err := s.queue.PublishPrewarmTask(ctx, task); err != nil {
		slog.Warn("failed to publish prewarm task",
			"creative_id", creativeID,
			"format", format.Key(),
			"error", err,
		)
	}
}

// adURLFunc builds the resolver the splicer calls for each due slot.
// Preference order: transcoded variant segment, then a pre-encoded
// original segment. A creative with neither yields no injection.
func (s *playlistService) adURLFunc(
	creatives map[string]*model.AdCreative,
	variants map[string]*model.AdVariant,
) hls.AdURLFunc {
	return func(p *model.AdPlacement) (string, bool) {
		creative, ok := creatives[p.CreativeID]
		if !ok {
			return "", false
		}

		if variant, ok := variants[creative.ID]; ok && len(variant.Segments) > 0 {
			seg := variant.Segments[s.intn(len(variant.Segments))]
			return s.adSegmentURL(creative.ID, variant.FormatKey, seg), true
		}

		if len(creative.SegmentKeys) > 0 {
			seg := path.Base(creative.SegmentKeys[s.intn(len(creative.SegmentKeys))])
			return s.adSegmentURL(creative.ID, "orig", seg), true
		}

		return "", false
	}
}

// adSegmentURL is the client-facing URL of one ad segment, served by
// this service.
func (s *playlistService) adSegmentURL(creativeID, variant, segment string) string {
	return fmt.Sprintf("%s/v1/ads/%s/%s/%s",
		s.publicBaseURL,
		url.PathEscape(creativeID),
		url.PathEscape(variant),
		url.PathEscape(segment),
	)
}

func (s *playlistService) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

func hasAssignment(placements []*model.AdPlacement) bool {
	for _, p := range placements {
		if p.Assigned() {
			return true
		}
	}
	return false
}

func hasAssignedPreroll(placements []*model.AdPlacement) bool {
	for _, p := range placements {
		if p.Role == model.RolePreroll && p.Assigned() {
			return true
		}
	}
	return false
}
