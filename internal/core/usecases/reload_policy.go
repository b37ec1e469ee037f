package usecases

import (
	"math"

	"github.com/samirrijal/pedalnav/internal/core/domain"
)

// DefaultTriggerShrink is the fraction of each dimension the trigger zone
// gives up on every edge.
const DefaultTriggerShrink = 0.10

// ExtendedBounds grows visible by its own height north and south and its own
// width east and west, clamped to valid coordinates.
func ExtendedBounds(visible domain.BoundingBox) domain.BoundingBox {
	h, w := visible.Height(), visible.Width()
	return domain.BoundingBox{
		South: math.Max(visible.South-h, -90),
		West:  math.Max(visible.West-w, -180),
		North: math.Min(visible.North+h, 90),
		East:  math.Min(visible.East+w, 180),
	}
}

// TriggerBounds shrinks loaded inward by fraction of each dimension per edge.
func TriggerBounds(loaded domain.BoundingBox, fraction float64) domain.BoundingBox {
	dh, dw := loaded.Height()*fraction, loaded.Width()*fraction
	return domain.BoundingBox{
		South: loaded.South + dh,
		West:  loaded.West + dw,
		North: loaded.North - dh,
		East:  loaded.East - dw,
	}
}

// ShouldReload reports whether visible escapes the trigger zone. A nil
// trigger means nothing was loaded yet.
func ShouldReload(visible domain.BoundingBox, trigger *domain.BoundingBox) bool {
	if trigger == nil {
		return true
	}
	return visible.South < trigger.South ||
		visible.North > trigger.North ||
		visible.West < trigger.West ||
		visible.East > trigger.East
}

// BoundsReloadPolicy remembers the last successfully loaded window.
// Single-writer: owned by a session's event loop.
type BoundsReloadPolicy struct {
	shrink  float64
	loaded  *domain.BoundingBox
	trigger *domain.BoundingBox
}

// NewBoundsReloadPolicy creates a policy with no loaded window.
func NewBoundsReloadPolicy(shrink float64) *BoundsReloadPolicy {
	if shrink <= 0 || shrink >= 0.5 {
		shrink = DefaultTriggerShrink
	}
	return &BoundsReloadPolicy{shrink: shrink}
}

// ShouldReload checks visible against the current trigger zone.
func (p *BoundsReloadPolicy) ShouldReload(visible domain.BoundingBox) bool {
	return ShouldReload(visible, p.trigger)
}

// FetchWindow returns the area to load for visible.
func (p *BoundsReloadPolicy) FetchWindow(visible domain.BoundingBox) domain.BoundingBox {
	return ExtendedBounds(visible)
}

// MarkLoaded replaces the loaded window and recomputes the trigger zone.
// Call only after a successful fetch; failures leave the previous window.
func (p *BoundsReloadPolicy) MarkLoaded(window domain.BoundingBox) {
	trigger := TriggerBounds(window, p.shrink)
	p.loaded = &window
	p.trigger = &trigger
}

// Loaded returns the last loaded window, or nil.
func (p *BoundsReloadPolicy) Loaded() *domain.BoundingBox {
	if p.loaded == nil {
		return nil
	}
	b := *p.loaded
	return &b
}

// Trigger returns the current trigger zone, or nil.
func (p *BoundsReloadPolicy) Trigger() *domain.BoundingBox {
	if p.trigger == nil {
		return nil
	}
	b := *p.trigger
	return &b
}
