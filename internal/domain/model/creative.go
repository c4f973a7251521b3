package model

import "time"

// AdCreative is an advertisement asset from the ad catalog. The catalog
// owns these records; this core reads them only.
type AdCreative struct {
	ID           string
	Weight       int  // positive; relative draw weight
	ForceDisplay bool // when set, this creative is assigned to every slot
	MediaKey     string   // object-storage key of the original media file
	SegmentKeys  []string // object-storage keys of pre-encoded HLS segments
	Enabled      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasSource reports whether the creative has any usable source media.
func (c *AdCreative) HasSource() bool {
	return c.MediaKey != "" || len(c.SegmentKeys) > 0
}

// AdVariant is an HLS rendition of a creative encoded to match a target
// format. Variants are created at most once per (creative, format key)
// pair and never mutated afterwards.
type AdVariant struct {
	CreativeID string
	FormatKey  string
	Segments   []string // ordered segment filenames within the variant directory
}
