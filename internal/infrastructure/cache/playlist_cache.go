package cache

import (
	"context"
	"time"

	"github.com/hweng-dev/adsplice/internal/domain/model"
)

// PlaylistCache defines the interface for caching processed playlists.
// Entries are keyed by a request digest covering the playlist body and
// the rewrite parameters, so any change in either produces a fresh entry.
// Implementations should handle serialization/deserialization transparently.
type PlaylistCache interface {
	// Get retrieves a processed playlist from cache by digest.
	// Returns nil, nil if the digest is not found in cache (cache miss).
	Get(ctx context.Context, digest string) (*model.ProcessedPlaylist, error)

	// Set stores a processed playlist in cache with the specified TTL.
	Set(ctx context.Context, digest string, playlist *model.ProcessedPlaylist, ttl time.Duration) error

	// Delete removes a processed playlist from cache by digest.
	// Returns nil if the entry was not in cache.
	Delete(ctx context.Context, digest string) error
}
