package model

import "errors"

// PlacementRole identifies where an ad slot sits relative to the content.
type PlacementRole string

const (
	RolePreroll  PlacementRole = "pre-roll"
	RoleMidroll  PlacementRole = "mid-roll"
	RolePostroll PlacementRole = "post-roll"
)

// ErrAlreadyInjected is returned when a placement is marked injected twice.
var ErrAlreadyInjected = errors.New("placement already injected")

// AdPlacement is one computed ad slot for a single playlist-processing
// call. Placements are never persisted; their lifetime is the call.
type AdPlacement struct {
	Index      int
	Offset     float64 // seconds from the start of the content
	Percentage float64 // Offset / duration * 100
	Role       PlacementRole
	CreativeID string // empty when no creative was assigned

	injected bool
}

// Assigned reports whether a creative has been assigned to this slot.
func (p *AdPlacement) Assigned() bool {
	return p.CreativeID != ""
}

// Injected reports whether the slot has been spliced into the output.
func (p *AdPlacement) Injected() bool {
	return p.injected
}

// MarkInjected transitions the placement to injected. The transition
// happens exactly once; a second call returns ErrAlreadyInjected.
func (p *AdPlacement) MarkInjected() error {
	if p.injected {
		return ErrAlreadyInjected
	}
	p.injected = true
	return nil
}
