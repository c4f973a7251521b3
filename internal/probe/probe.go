// Package probe determines the encoding profile of a live media stream
// by sampling one segment.
package probe

import (
	"context"

	"github.com/hweng-dev/adsplice/internal/domain/model"
)

// Prober extracts the video format of a media segment. Implementations
// must treat every failure (fetch, timeout, demux, no video stream) as a
// normal outcome: an error return, never a panic. Callers fall back to
// model.DefaultFormat.
type Prober interface {
	Probe(ctx context.Context, segmentURL string) (*model.VideoFormat, error)
}
