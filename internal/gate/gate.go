// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package gate

import (
	"github.com/wneessen/aprs-relay/internal/aprs"
	"github.com/wneessen/aprs-relay/internal/geo"
	"github.com/wneessen/aprs-relay/internal/roster"
)

// DefaultMinDistance is the minimum movement in meters for an update to be reported.
const DefaultMinDistance = 20.0

// Verdict classifies the outcome of a gate evaluation.
type Verdict int

const (
	// VerdictFirstSighting accepts the first position of a callsign unconditionally.
	VerdictFirstSighting Verdict = iota
	// VerdictMoved accepts a position at least the minimum distance away from the last report.
	VerdictMoved
	// VerdictNoPosition drops beacons without a position payload.
	VerdictNoPosition
	// VerdictBelowThreshold suppresses a position too close to the last report.
	VerdictBelowThreshold
	// VerdictDistanceError suppresses a position for which no distance could be computed.
	VerdictDistanceError
)

func (v Verdict) String() string {
	switch v {
	case VerdictFirstSighting:
		return "first-sighting"
	case VerdictMoved:
		return "moved"
	case VerdictNoPosition:
		return "no-position"
	case VerdictBelowThreshold:
		return "below-threshold"
	case VerdictDistanceError:
		return "distance-error"
	default:
		return "unknown"
	}
}

// KeyFunc derives the cache key for a matched beacon.
type KeyFunc func(sub roster.Subscription, beacon aprs.Beacon) string

// CallsignKey keys the cache by the sender's base callsign, so all SSIDs of a station share
// one last reported position.
func CallsignKey(_ roster.Subscription, beacon aprs.Beacon) string {
	return beacon.Source.Callsign
}

// ResourceKey keys the cache by the subscription's resource id.
func ResourceKey(sub roster.Subscription, _ aprs.Beacon) string {
	return sub.ResourceID
}

// DistanceFunc computes the distance in meters between two positions.
type DistanceFunc func(from, to geo.Position) (float64, error)

// Decision is the result of evaluating a beacon. Distance is only meaningful for
// VerdictMoved and VerdictBelowThreshold.
type Decision struct {
	Verdict  Verdict
	Position geo.Position
	Distance float64
	Err      error
}

// Accepted reports whether the update should be forwarded.
func (d Decision) Accepted() bool {
	return d.Verdict == VerdictFirstSighting || d.Verdict == VerdictMoved
}

// Gate suppresses insignificant movement. It compares each position with the last reported,
// not the last seen, position of the callsign.
type Gate struct {
	cache       *Cache
	distance    DistanceFunc
	key         KeyFunc
	minDistance float64
}

// Option configures a Gate.
type Option func(*Gate)

// WithCache makes the Gate use the given cache instead of an empty one.
func WithCache(cache *Cache) Option {
	return func(g *Gate) {
		g.cache = cache
	}
}

// WithKeyFunc changes how cache entries are keyed. The default is CallsignKey.
func WithKeyFunc(fn KeyFunc) Option {
	return func(g *Gate) {
		g.key = fn
	}
}

// WithDistanceFunc replaces the great-circle distance computation.
func WithDistanceFunc(fn DistanceFunc) Option {
	return func(g *Gate) {
		g.distance = fn
	}
}

// New returns a Gate suppressing movements shorter than minDistance meters. A non-positive
// minDistance falls back to DefaultMinDistance.
func New(minDistance float64, opts ...Option) *Gate {
	if minDistance <= 0 {
		minDistance = DefaultMinDistance
	}
	gate := &Gate{
		minDistance: minDistance,
		distance:    geo.Distance,
		key:         CallsignKey,
	}
	for _, opt := range opts {
		opt(gate)
	}
	if gate.cache == nil {
		gate.cache = NewCache()
	}
	return gate
}

// Evaluate decides whether the beacon of a matched subscription is forwarded. The cache is
// only written for accepted decisions.
func (g *Gate) Evaluate(sub roster.Subscription, beacon aprs.Beacon) Decision {
	if beacon.Position == nil {
		return Decision{Verdict: VerdictNoPosition}
	}

	key := g.key(sub, beacon)
	current := *beacon.Position
	last, ok := g.cache.Get(key)
	if !ok {
		g.cache.Set(key, current)
		return Decision{Verdict: VerdictFirstSighting, Position: current}
	}

	dist, err := g.distance(last, current)
	if err != nil {
		return Decision{Verdict: VerdictDistanceError, Position: current, Err: err}
	}
	if dist < g.minDistance {
		return Decision{Verdict: VerdictBelowThreshold, Position: current, Distance: dist}
	}

	g.cache.Set(key, current)
	return Decision{Verdict: VerdictMoved, Position: current, Distance: dist}
}

// MinDistance returns the configured suppression threshold in meters.
func (g *Gate) MinDistance() float64 {
	return g.minDistance
}

// Cache returns the cache owned by the gate.
func (g *Gate) Cache() *Cache {
	return g.cache
}
