// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package aprs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wneessen/aprs-relay/internal/geo"
)

const (
	uncompressedLen = 19
	compressedLen   = 13
	base91Lat       = 380926.0
	base91Lon       = 190463.0
)

// decodePosition decodes an uncompressed or compressed position report body into the beacon.
func decodePosition(beacon *Beacon, body string) error {
	if body == "" {
		return fmt.Errorf("%w: empty position body", ErrInvalidPosition)
	}

	var (
		pos geo.Position
		err error
	)
	if c := body[0]; (c >= '0' && c <= '9') || c == ' ' {
		pos, err = decodeUncompressed(beacon, body)
	} else {
		pos, err = decodeCompressed(beacon, body)
	}
	if err != nil {
		return err
	}
	if !pos.Valid() {
		return fmt.Errorf("%w: coordinates out of range: %s", ErrInvalidPosition, pos)
	}

	beacon.Position = &pos
	return nil
}

// decodeUncompressed handles the "DDMM.hhN/DDDMM.hhW$" layout.
func decodeUncompressed(beacon *Beacon, body string) (geo.Position, error) {
	var pos geo.Position
	if len(body) < uncompressedLen {
		return pos, fmt.Errorf("%w: uncompressed position too short", ErrInvalidPosition)
	}

	lat, err := parseLatitude(body[0:8])
	if err != nil {
		return pos, err
	}
	lon, err := parseLongitude(body[9:18])
	if err != nil {
		return pos, err
	}

	pos.Lat, pos.Lon = lat, lon
	beacon.Symbol = Symbol{Table: body[8], Code: body[18]}
	beacon.Comment = body[uncompressedLen:]
	return pos, nil
}

// decodeCompressed handles the base-91 "/YYYYXXXX$csT" layout.
func decodeCompressed(beacon *Beacon, body string) (geo.Position, error) {
	var pos geo.Position
	if len(body) < compressedLen {
		return pos, fmt.Errorf("%w: compressed position too short", ErrInvalidPosition)
	}
	if !isCompressedTable(body[0]) {
		return pos, fmt.Errorf("%w: invalid symbol table %q", ErrInvalidPosition, body[0])
	}

	y, err := decodeBase91(body[1:5])
	if err != nil {
		return pos, err
	}
	x, err := decodeBase91(body[5:9])
	if err != nil {
		return pos, err
	}

	pos.Lat = 90 - float64(y)/base91Lat
	pos.Lon = -180 + float64(x)/base91Lon
	beacon.Symbol = Symbol{Table: body[0], Code: body[9]}
	beacon.Compressed = true
	beacon.Comment = body[compressedLen:]
	return pos, nil
}

// parseLatitude parses "DDMM.hhN". Position ambiguity spaces count as zeros.
func parseLatitude(field string) (float64, error) {
	field = strings.ReplaceAll(field, " ", "0")
	if field[4] != '.' {
		return 0, fmt.Errorf("%w: malformed latitude %q", ErrInvalidPosition, field)
	}
	deg, err := strconv.Atoi(field[0:2])
	if err != nil {
		return 0, fmt.Errorf("%w: malformed latitude degrees %q", ErrInvalidPosition, field)
	}
	minutes, err := strconv.ParseFloat(field[2:7], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed latitude minutes %q", ErrInvalidPosition, field)
	}
	if deg < 0 || deg > 90 || minutes < 0 || minutes >= 60 {
		return 0, fmt.Errorf("%w: latitude out of range %q", ErrInvalidPosition, field)
	}

	lat := float64(deg) + minutes/60
	switch field[7] {
	case 'N', 'n':
	case 'S', 's':
		lat = -lat
	default:
		return 0, fmt.Errorf("%w: invalid latitude hemisphere %q", ErrInvalidPosition, field[7])
	}
	return lat, nil
}

// parseLongitude parses "DDDMM.hhW". Position ambiguity spaces count as zeros.
func parseLongitude(field string) (float64, error) {
	field = strings.ReplaceAll(field, " ", "0")
	if field[5] != '.' {
		return 0, fmt.Errorf("%w: malformed longitude %q", ErrInvalidPosition, field)
	}
	deg, err := strconv.Atoi(field[0:3])
	if err != nil {
		return 0, fmt.Errorf("%w: malformed longitude degrees %q", ErrInvalidPosition, field)
	}
	minutes, err := strconv.ParseFloat(field[3:8], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed longitude minutes %q", ErrInvalidPosition, field)
	}
	if deg < 0 || deg > 180 || minutes < 0 || minutes >= 60 {
		return 0, fmt.Errorf("%w: longitude out of range %q", ErrInvalidPosition, field)
	}

	lon := float64(deg) + minutes/60
	switch field[8] {
	case 'E', 'e':
	case 'W', 'w':
		lon = -lon
	default:
		return 0, fmt.Errorf("%w: invalid longitude hemisphere %q", ErrInvalidPosition, field[8])
	}
	return lon, nil
}

func decodeBase91(field string) (int, error) {
	value := 0
	for i := 0; i < len(field); i++ {
		c := field[i]
		if c < '!' || c > '{' {
			return 0, fmt.Errorf("%w: invalid base91 character %q", ErrInvalidPosition, c)
		}
		value = value*91 + int(c-'!')
	}
	return value, nil
}

// isCompressedTable reports whether c is a valid symbol table identifier for compressed
// positions: '/', '\', 'A'-'Z' or the overlay characters 'a'-'j'.
func isCompressedTable(c byte) bool {
	return c == '/' || c == '\\' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'j')
}
