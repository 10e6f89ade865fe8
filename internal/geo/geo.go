// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/golang/geo/s2"
)

// EarthRadius is the mean earth radius in meters used for great-circle distances.
const EarthRadius = 6371000.0

// ErrInvalidCoordinate is returned when a distance cannot be computed for a coordinate pair.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Position represents a geographic position in decimal degrees.
type Position struct {
	Lat float64
	Lon float64
}

// Valid checks if the position is finite and within the EPSG:4326 bounds.
func (p Position) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// LatString returns the latitude in its shortest exact decimal representation.
func (p Position) LatString() string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64)
}

// LonString returns the longitude in its shortest exact decimal representation.
func (p Position) LonString() string {
	return strconv.FormatFloat(p.Lon, 'f', -1, 64)
}

func (p Position) String() string {
	return p.LatString() + "," + p.LonString()
}

// Distance returns the great-circle distance between two positions in meters. The distance
// is computed on the unit sphere by s2 and scaled by EarthRadius.
func Distance(from, to Position) (float64, error) {
	if !from.Valid() {
		return 0, fmt.Errorf("%w: %s", ErrInvalidCoordinate, from)
	}
	if !to.Valid() {
		return 0, fmt.Errorf("%w: %s", ErrInvalidCoordinate, to)
	}

	p0 := s2.LatLngFromDegrees(from.Lat, from.Lon)
	p1 := s2.LatLngFromDegrees(to.Lat, to.Lon)
	meters := p0.Distance(p1).Radians() * EarthRadius
	if math.IsNaN(meters) || math.IsInf(meters, 0) {
		return 0, fmt.Errorf("%w: distance between %s and %s is not finite", ErrInvalidCoordinate,
			from, to)
	}

	return meters, nil
}
