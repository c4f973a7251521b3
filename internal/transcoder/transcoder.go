package transcoder

import (
	"context"

	"github.com/hweng-dev/adsplice/internal/domain/model"
)

// EncodeInput describes the source media for one variant encode.
// Exactly one of Path or ConcatListPath is set: Path points at a single
// media file, ConcatListPath at an ffmpeg concat list joining the
// creative's original ordered segments. A concat list preserves container
// framing, unlike literal byte concatenation.
type EncodeInput struct {
	Path           string
	ConcatListPath string
}

// EncodeOutput contains the result of a variant encode.
type EncodeOutput struct {
	// SegmentPaths contains paths to all generated .ts segment files,
	// in playback order.
	SegmentPaths []string
}

// Encoder defines the interface for producing a format-matched HLS
// rendition of an ad creative. Implementations should handle conversion
// of the source media into 3-second segments encoded to the target
// format so the rendition splices cleanly into the content stream.
type Encoder interface {
	// EncodeVariant transcodes the input into an HLS rendition matching
	// target, writing segment files into outputDir.
	//
	// The output directory must exist before calling this method.
	EncodeVariant(ctx context.Context, input EncodeInput, outputDir string, target model.VideoFormat) (*EncodeOutput, error)
}
