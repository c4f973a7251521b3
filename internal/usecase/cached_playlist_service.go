package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hweng-dev/adsplice/internal/domain/model"
	"github.com/hweng-dev/adsplice/internal/infrastructure/cache"
	"github.com/hweng-dev/adsplice/internal/infrastructure/metrics"
)

// CachedPlaylistServiceConfig holds configuration for CachedPlaylistService.
type CachedPlaylistServiceConfig struct {
	// CacheTTL is the TTL for processed playlists. Kept short: live
	// playlists change as the origin rolls its window.
	CacheTTL time.Duration
}

// DefaultCachedPlaylistServiceConfig returns the default configuration.
func DefaultCachedPlaylistServiceConfig() CachedPlaylistServiceConfig {
	return CachedPlaylistServiceConfig{
		CacheTTL: 60 * time.Second,
	}
}

// cachedPlaylistService wraps PlaylistService with caching capabilities.
// It implements the decorator pattern to add caching without modifying
// the original service. Entries are keyed by a digest of the playlist
// body and rewrite parameters, so identical requests within the TTL
// share one processing run.
type cachedPlaylistService struct {
	delegate PlaylistService
	cache    cache.PlaylistCache
	sfGroup  singleflight.Group

	cacheTTL time.Duration
}

// NewCachedPlaylistService creates a new CachedPlaylistService wrapping
// the provided PlaylistService.
func NewCachedPlaylistService(
	delegate PlaylistService,
	playlistCache cache.PlaylistCache,
	cfg CachedPlaylistServiceConfig,
) PlaylistService {
	return &cachedPlaylistService{
		delegate: delegate,
		cache:    playlistCache,
		cacheTTL: cfg.CacheTTL,
	}
}

// Process returns a cached result when one exists, otherwise delegates.
// Uses singleflight to prevent cache stampede on concurrent requests
// for the same playlist.
func (s *cachedPlaylistService) Process(ctx context.Context, input ProcessInput) (*model.ProcessedPlaylist, error) {
	digest := requestDigest(input)

	result, err, shared := s.sfGroup.Do(digest, func() (any, error) {
		return s.processWithCache(ctx, digest, input)
	})

	if shared {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightGroupPlaylist, metrics.SingleflightShared).Inc()
	} else {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightGroupPlaylist, metrics.SingleflightInitiated).Inc()
	}

	if err != nil {
		return nil, err
	}
	return result.(*model.ProcessedPlaylist), nil
}

// processWithCache implements the cache-aside pattern.
func (s *cachedPlaylistService) processWithCache(ctx context.Context, digest string, input ProcessInput) (*model.ProcessedPlaylist, error) {
	playlist, err := s.cache.Get(ctx, digest)
	if err != nil {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusError).Inc()
		slog.Warn("playlist cache get failed, processing directly", "error", err)
	}

	if playlist != nil {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusHit).Inc()
		return playlist, nil
	}
	if err == nil {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusMiss).Inc()
	}

	playlist, err = s.delegate.Process(ctx, input)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, digest, playlist, s.cacheTTL); err != nil {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpSet, metrics.CacheStatusError).Inc()
		slog.Warn("failed to cache processed playlist", "error", err)
	} else {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpSet, metrics.CacheStatusSuccess).Inc()
	}

	return playlist, nil
}

// requestDigest identifies one processing request: same playlist body,
// base URL, and probe flag means same output within the TTL.
func requestDigest(input ProcessInput) string {
	h := sha256.New()
	h.Write([]byte(input.Playlist))
	h.Write([]byte{0})
	h.Write([]byte(input.BaseURL))
	h.Write([]byte{0})
	if input.SkipFormatDetection {
		h.Write([]byte{1})
	}
	return hex.EncodeToString(h.Sum(nil))
}
