package model

// ProcessedPlaylist is the outcome of rewriting one source playlist.
type ProcessedPlaylist struct {
	Playlist              string
	DurationSeconds       float64
	SegmentCount          int
	AdsInjected           int
	ForeignAdsStripped    int
	DetectedFormat        VideoFormat
	UsedTranscodedVariant bool
}
