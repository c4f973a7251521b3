package model

import "fmt"

// VideoFormat describes the encoding profile of a video stream.
// It is an immutable value type; two formats are equivalent only when
// all three fields match exactly.
type VideoFormat struct {
	FPS    int `json:"fps"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DefaultFormat is the fallback profile used when probing the source
// stream fails or is skipped.
var DefaultFormat = VideoFormat{FPS: 30, Width: 1280, Height: 720}

// Key returns the canonical string encoding of the format triple.
// It is used as the cache and lookup key for transcoded ad variants.
func (f VideoFormat) Key() string {
	return fmt.Sprintf("%dx%d@%d", f.Width, f.Height, f.FPS)
}

// IsDefault reports whether the format equals DefaultFormat in every field.
func (f VideoFormat) IsDefault() bool {
	return f == DefaultFormat
}

// IsZero reports whether the format carries no information.
func (f VideoFormat) IsZero() bool {
	return f == VideoFormat{}
}

// GOPLength returns the keyframe interval for a 3-second HLS segment,
// so every segment starts on a keyframe.
func (f VideoFormat) GOPLength() int {
	return f.FPS * 3
}
