// Package adengine computes ad injection points for a playlist of known
// duration and assigns creatives to them.
package adengine

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/hweng-dev/adsplice/internal/domain/model"
	"github.com/hweng-dev/adsplice/internal/domain/repository"
)

// Policy is the placement policy for one processing call, resolved from
// the settings source by the caller.
type Policy struct {
	AlwaysPreroll         bool
	PrerollEnabled        bool
	MidrollEnabled        bool
	PostrollEnabled       bool
	MidrollInterval       float64 // seconds between mid-rolls
	MaxAdsPerVideo        int
	MinDurationForMidroll float64 // seconds
}

// DefaultPolicy returns the policy used when the settings source has no
// overrides.
func DefaultPolicy() Policy {
	return Policy{
		AlwaysPreroll:         true,
		PrerollEnabled:        true,
		MidrollEnabled:        false,
		PostrollEnabled:       false,
		MidrollInterval:       600,
		MaxAdsPerVideo:        5,
		MinDurationForMidroll: 1200,
	}
}

// ComputePlacements emits the ordered ad slots for a video of the given
// duration. Ordinal indices follow emission order; percentages are
// non-decreasing. Pure computation, no catalog involved.
func ComputePlacements(durationSeconds float64, policy Policy) []*model.AdPlacement {
	var placements []*model.AdPlacement

	add := func(offset float64, role model.PlacementRole) {
		pct := 0.0
		if durationSeconds > 0 && role != model.RolePreroll {
			pct = offset / durationSeconds * 100
		}
		placements = append(placements, &model.AdPlacement{
			Index:      len(placements),
			Offset:     offset,
			Percentage: pct,
			Role:       role,
		})
	}

	if policy.AlwaysPreroll && policy.PrerollEnabled {
		add(0, model.RolePreroll)
	}

	if policy.MidrollEnabled && durationSeconds >= policy.MinDurationForMidroll && policy.MidrollInterval > 0 {
		for offset := policy.MidrollInterval; offset < durationSeconds; offset += policy.MidrollInterval {
			if len(placements) >= policy.MaxAdsPerVideo {
				break
			}
			add(offset, model.RoleMidroll)
		}
	}

	if policy.PostrollEnabled && durationSeconds > 0 {
		add(durationSeconds, model.RolePostroll)
	}

	return placements
}

// Engine assigns creatives from the ad catalog to computed placements.
type Engine struct {
	catalog repository.AdCatalog

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates an Engine with the given random source. A nil rng gets a
// time-seeded one; tests pass a fixed seed for deterministic draws.
func New(catalog repository.AdCatalog, rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Engine{catalog: catalog, rng: rng}
}

// AssignCreatives fetches the active catalog and assigns a creative to
// every placement. An empty catalog leaves all placements unassigned,
// which downstream treats as "no ads to inject". A force_display
// creative overrides weighting for every slot.
func (e *Engine) AssignCreatives(ctx context.Context, placements []*model.AdPlacement) error {
	if len(placements) == 0 {
		return nil
	}

	creatives, err := e.catalog.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active creatives: %w", err)
	}
	if len(creatives) == 0 {
		slog.Debug("ad catalog empty, placements left unassigned")
		return nil
	}

	for _, c := range creatives {
		if c.ForceDisplay {
			for _, p := range placements {
				p.CreativeID = c.ID
			}
			return nil
		}
	}

	for _, p := range placements {
		if c := e.drawWeighted(creatives); c != nil {
			p.CreativeID = c.ID
		}
	}
	return nil
}

// drawWeighted performs cumulative-weight selection: uniform over
// [0, totalWeight), scanning creatives in catalog order.
func (e *Engine) drawWeighted(creatives []*model.AdCreative) *model.AdCreative {
	total := 0
	for _, c := range creatives {
		if c.Weight > 0 {
			total += c.Weight
		}
	}
	if total <= 0 {
		return nil
	}

	e.mu.Lock()
	n := e.rng.Intn(total)
	e.mu.Unlock()

	for _, c := range creatives {
		if c.Weight <= 0 {
			continue
		}
		if n < c.Weight {
			return c
		}
		n -= c.Weight
	}
	return creatives[len(creatives)-1]
}
