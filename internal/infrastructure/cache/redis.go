package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hweng-dev/adsplice/internal/domain/model"
)

const (
	// playlistCacheKeyPrefix is the prefix for processed-playlist keys in Redis.
	playlistCacheKeyPrefix = "playlist:"
)

// playlistJSON is the JSON representation of a ProcessedPlaylist for caching.
// Using explicit struct avoids coupling to domain model's JSON tags.
type playlistJSON struct {
	Playlist              string  `json:"playlist"`
	DurationSeconds       float64 `json:"duration_seconds"`
	SegmentCount          int     `json:"segment_count"`
	AdsInjected           int     `json:"ads_injected"`
	ForeignAdsStripped    int     `json:"foreign_ads_stripped"`
	FormatFPS             int     `json:"format_fps"`
	FormatWidth           int     `json:"format_width"`
	FormatHeight          int     `json:"format_height"`
	UsedTranscodedVariant bool    `json:"used_transcoded_variant"`
}

// RedisPlaylistCache implements PlaylistCache using Redis as the backing store.
type RedisPlaylistCache struct {
	client *redis.Client
}

// NewRedisPlaylistCache creates a new Redis-backed playlist cache.
func NewRedisPlaylistCache(client *redis.Client) *RedisPlaylistCache {
	return &RedisPlaylistCache{
		client: client,
	}
}

// Get retrieves a processed playlist from Redis cache.
// Returns nil, nil on cache miss.
func (c *RedisPlaylistCache) Get(ctx context.Context, digest string) (*model.ProcessedPlaylist, error) {
	key := c.buildKey(digest)

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	playlist, err := c.deserialize(data)
	if err != nil {
		return nil, fmt.Errorf("deserialize playlist: %w", err)
	}

	return playlist, nil
}

// Set stores a processed playlist in Redis cache with the specified TTL.
func (c *RedisPlaylistCache) Set(ctx context.Context, digest string, playlist *model.ProcessedPlaylist, ttl time.Duration) error {
	key := c.buildKey(digest)

	data, err := c.serialize(playlist)
	if err != nil {
		return fmt.Errorf("serialize playlist: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Delete removes a processed playlist from Redis cache.
func (c *RedisPlaylistCache) Delete(ctx context.Context, digest string) error {
	key := c.buildKey(digest)

	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}

	return nil
}

// buildKey constructs the Redis key for a playlist digest.
func (c *RedisPlaylistCache) buildKey(digest string) string {
	return playlistCacheKeyPrefix + digest
}

// serialize converts a ProcessedPlaylist to JSON bytes.
func (c *RedisPlaylistCache) serialize(playlist *model.ProcessedPlaylist) ([]byte, error) {
	p := playlistJSON{
		Playlist:              playlist.Playlist,
		DurationSeconds:       playlist.DurationSeconds,
		SegmentCount:          playlist.SegmentCount,
		AdsInjected:           playlist.AdsInjected,
		ForeignAdsStripped:    playlist.ForeignAdsStripped,
		FormatFPS:             playlist.DetectedFormat.FPS,
		FormatWidth:           playlist.DetectedFormat.Width,
		FormatHeight:          playlist.DetectedFormat.Height,
		UsedTranscodedVariant: playlist.UsedTranscodedVariant,
	}
	return json.Marshal(p)
}

// deserialize converts JSON bytes to a ProcessedPlaylist.
func (c *RedisPlaylistCache) deserialize(data []byte) (*model.ProcessedPlaylist, error) {
	var p playlistJSON
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}

	return &model.ProcessedPlaylist{
		Playlist:              p.Playlist,
		DurationSeconds:       p.DurationSeconds,
		SegmentCount:          p.SegmentCount,
		AdsInjected:           p.AdsInjected,
		ForeignAdsStripped:    p.ForeignAdsStripped,
		DetectedFormat:        model.VideoFormat{FPS: p.FormatFPS, Width: p.FormatWidth, Height: p.FormatHeight},
		UsedTranscodedVariant: p.UsedTranscodedVariant,
	}, nil
}

// Compile-time verification that RedisPlaylistCache implements PlaylistCache.
var _ PlaylistCache = (*RedisPlaylistCache)(nil)
