package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/hweng-dev/adsplice/internal/domain/model"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return client, cleanup
}

func testPlaylist() *model.ProcessedPlaylist {
	return &model.ProcessedPlaylist{
		Playlist:              "#EXTM3U\n#EXTINF:3.000,\nhttp://origin/0.ts\n#EXT-X-ENDLIST\n",
		DurationSeconds:       3,
		SegmentCount:          1,
		AdsInjected:           1,
		ForeignAdsStripped:    2,
		DetectedFormat:        model.VideoFormat{FPS: 25, Width: 1920, Height: 1080},
		UsedTranscodedVariant: true,
	}
}

func TestRedisPlaylistCache_Get_CacheHit(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	cache := NewRedisPlaylistCache(client)
	ctx := context.Background()

	playlist := testPlaylist()
	digest := "0f52a9"

	err := cache.Set(ctx, digest, playlist, 5*time.Minute)
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := cache.Get(ctx, digest)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got == nil {
		t.Fatal("expected playlist, got nil")
	}

	// Verify fields
	if got.Playlist != playlist.Playlist {
		t.Errorf("Playlist = %q, want %q", got.Playlist, playlist.Playlist)
	}
	if got.DurationSeconds != playlist.DurationSeconds {
		t.Errorf("DurationSeconds = %v, want %v", got.DurationSeconds, playlist.DurationSeconds)
	}
	if got.SegmentCount != playlist.SegmentCount {
		t.Errorf("SegmentCount = %v, want %v", got.SegmentCount, playlist.SegmentCount)
	}
	if got.AdsInjected != playlist.AdsInjected {
		t.Errorf("AdsInjected = %v, want %v", got.AdsInjected, playlist.AdsInjected)
	}
	if got.ForeignAdsStripped != playlist.ForeignAdsStripped {
		t.Errorf("ForeignAdsStripped = %v, want %v", got.ForeignAdsStripped, playlist.ForeignAdsStripped)
	}
	if got.DetectedFormat != playlist.DetectedFormat {
		t.Errorf("DetectedFormat = %+v, want %+v", got.DetectedFormat, playlist.DetectedFormat)
	}
	if !got.UsedTranscodedVariant {
		t.Error("UsedTranscodedVariant = false, want true")
	}
}

func TestRedisPlaylistCache_Get_CacheMiss(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	cache := NewRedisPlaylistCache(client)
	ctx := context.Background()

	got, err := cache.Get(ctx, "unknown-digest")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got != nil {
		t.Errorf("expected nil for cache miss, got %v", got)
	}
}

func TestRedisPlaylistCache_Delete(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	cache := NewRedisPlaylistCache(client)
	ctx := context.Background()

	digest := "0f52a9"
	if err := cache.Set(ctx, digest, testPlaylist(), 5*time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if err := cache.Delete(ctx, digest); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	got, err := cache.Get(ctx, digest)
	if err != nil {
		t.Fatalf("Get after delete failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil after delete, got %v", got)
	}
}

func TestRedisPlaylistCache_Delete_NonExistent(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	cache := NewRedisPlaylistCache(client)
	ctx := context.Background()

	// Deleting an absent entry is not an error
	if err := cache.Delete(ctx, "never-set"); err != nil {
		t.Errorf("Delete of non-existent entry failed: %v", err)
	}
}

func TestRedisPlaylistCache_TTLExpiry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cache := NewRedisPlaylistCache(client)
	ctx := context.Background()

	digest := "0f52a9"
	if err := cache.Set(ctx, digest, testPlaylist(), 60*time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	mr.FastForward(61 * time.Second)

	got, err := cache.Get(ctx, digest)
	if err != nil {
		t.Fatalf("Get after expiry failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil after TTL expiry, got %v", got)
	}
}

func TestRedisPlaylistCache_buildKey(t *testing.T) {
	cache := NewRedisPlaylistCache(nil)

	got := cache.buildKey("abc123")
	want := "playlist:abc123"
	if got != want {
		t.Errorf("buildKey() = %v, want %v", got, want)
	}
}
