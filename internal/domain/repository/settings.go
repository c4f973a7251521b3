package repository

import "context"

// Setting keys resolved through the Settings source. Values live in the
// collaborator-owned settings table; every lookup carries its own default.
const (
	KeyAdsEnabled            = "ads.enabled"
	KeyAlwaysPreroll         = "ads.always_preroll"
	KeyPrerollEnabled        = "ads.preroll_enabled"
	KeyMidrollEnabled        = "ads.midroll_enabled"
	KeyPostrollEnabled       = "ads.postroll_enabled"
	KeyMidrollInterval       = "ads.midroll_interval"
	KeyMaxAdsPerVideo        = "ads.max_per_video"
	KeyMinDurationForMidroll = "ads.min_duration_for_midroll"
	KeySegmentsToSkip        = "ads.segments_to_skip"
	KeyStripMaxSegments      = "ads.strip_max_segments"
	KeyProxySegmentMode      = "proxy.segment_mode"
	KeyCORSProxyEnabled      = "proxy.cors_enabled"
	KeyCORSProxyURL          = "proxy.cors_url"
)

// Settings resolves named configuration keys to values.
// Every accessor fails soft: missing keys, unparseable values, and lookup
// errors all resolve to the caller-supplied fallback.
type Settings interface {
	Get(ctx context.Context, key, fallback string) string
	GetInt(ctx context.Context, key string, fallback int) int
	GetFloat(ctx context.Context, key string, fallback float64) float64
	GetBool(ctx context.Context, key string, fallback bool) bool
}
