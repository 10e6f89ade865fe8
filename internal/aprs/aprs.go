// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package aprs decodes APRS-IS text frames (TNC2 monitor format) into beacons.
package aprs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wneessen/aprs-relay/internal/geo"
	"github.com/wneessen/aprs-relay/internal/vartype"
)

const (
	maxCallsignLen = 9
	maxSSIDLen     = 2
	timestampLen   = 7
)

var (
	// ErrInvalidFrame is returned when a line does not follow the SRC>DEST,PATH:PAYLOAD layout.
	ErrInvalidFrame = errors.New("invalid APRS frame")

	// ErrInvalidCallsign is returned when the sender identity of a frame is malformed.
	ErrInvalidCallsign = errors.New("invalid callsign")

	// ErrInvalidPosition is returned when a position payload cannot be decoded.
	ErrInvalidPosition = errors.New("invalid position")
)

// Kind identifies the payload type of a beacon, derived from the APRS data type identifier.
type Kind int

const (
	KindUnknown Kind = iota
	KindPosition
	KindMessage
	KindStatus
	KindObject
	KindItem
	KindMicE
	KindTelemetry
	KindWeather
	KindQuery
	KindUserDefined
	KindThirdParty
)

var kindNames = map[Kind]string{
	KindUnknown:     "unknown",
	KindPosition:    "position",
	KindMessage:     "message",
	KindStatus:      "status",
	KindObject:      "object",
	KindItem:        "item",
	KindMicE:        "mic-e",
	KindTelemetry:   "telemetry",
	KindWeather:     "weather",
	KindQuery:       "query",
	KindUserDefined: "user-defined",
	KindThirdParty:  "third-party",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Identity is the sender of a beacon: a base callsign and an optional SSID suffix.
type Identity struct {
	Callsign string
	SSID     vartype.VarString
}

func (i Identity) String() string {
	if !i.SSID.IsSet() {
		return i.Callsign
	}
	return i.Callsign + "-" + i.SSID.Value()
}

// Symbol is the APRS map symbol reported with a position.
type Symbol struct {
	Table byte
	Code  byte
}

// Beacon is a single decoded APRS frame. Position is only set for position-bearing kinds.
type Beacon struct {
	Source      Identity
	Destination string
	Path        []string
	Kind        Kind
	Position    *geo.Position
	Symbol      Symbol
	Timestamp   string
	Compressed  bool
	Comment     string
}

// Decoder turns one line of feed text into a Beacon.
type Decoder interface {
	Decode(line string) (Beacon, error)
}

// TextDecoder decodes the APRS-IS text representation of a frame.
type TextDecoder struct{}

// Decode implements the Decoder interface for TextDecoder.
func (TextDecoder) Decode(line string) (Beacon, error) {
	return Decode(line)
}

// Decode parses a single APRS-IS line of the form SRC[-SSID]>DEST[,PATH...]:PAYLOAD.
func Decode(line string) (Beacon, error) {
	var beacon Beacon
	line = strings.TrimRight(line, "\r\n")

	header, payload, ok := strings.Cut(line, ":")
	if !ok || header == "" {
		return beacon, fmt.Errorf("%w: missing header separator", ErrInvalidFrame)
	}
	if payload == "" {
		return beacon, fmt.Errorf("%w: empty payload", ErrInvalidFrame)
	}
	source, route, ok := strings.Cut(header, ">")
	if !ok {
		return beacon, fmt.Errorf("%w: missing destination separator", ErrInvalidFrame)
	}
	hops := strings.Split(route, ",")
	if hops[0] == "" {
		return beacon, fmt.Errorf("%w: empty destination", ErrInvalidFrame)
	}

	identity, err := ParseIdentity(source)
	if err != nil {
		return beacon, err
	}
	beacon.Source = identity
	beacon.Destination = hops[0]
	beacon.Path = hops[1:]

	switch payload[0] {
	case '!', '=':
		beacon.Kind = KindPosition
		err = decodePosition(&beacon, payload[1:])
	case '/', '@':
		beacon.Kind = KindPosition
		if len(payload) < 1+timestampLen {
			return beacon, fmt.Errorf("%w: timestamp too short", ErrInvalidPosition)
		}
		beacon.Timestamp = payload[1 : 1+timestampLen]
		err = decodePosition(&beacon, payload[1+timestampLen:])
	case ':':
		beacon.Kind = KindMessage
	case '>':
		beacon.Kind = KindStatus
	case ';':
		beacon.Kind = KindObject
	case ')':
		beacon.Kind = KindItem
	case '`', '\'':
		beacon.Kind = KindMicE
	case 'T':
		beacon.Kind = KindTelemetry
	case '_':
		beacon.Kind = KindWeather
	case '?':
		beacon.Kind = KindQuery
	case '{':
		beacon.Kind = KindUserDefined
	case '}':
		beacon.Kind = KindThirdParty
	default:
		beacon.Kind = KindUnknown
	}
	if err != nil {
		return beacon, err
	}
	if beacon.Kind != KindPosition {
		beacon.Comment = payload[1:]
	}

	return beacon, nil
}

// ParseIdentity splits a sender field like "N0CALL-9" into callsign and SSID.
func ParseIdentity(source string) (Identity, error) {
	var identity Identity
	call, ssid, hasSSID := strings.Cut(source, "-")
	if call == "" || len(call) > maxCallsignLen || !isAlnum(call) {
		return identity, fmt.Errorf("%w: %q", ErrInvalidCallsign, source)
	}
	identity.Callsign = call
	if hasSSID {
		if ssid == "" || len(ssid) > maxSSIDLen || !isAlnum(ssid) {
			return identity, fmt.Errorf("%w: invalid SSID in %q", ErrInvalidCallsign, source)
		}
		identity.SSID.Set(ssid)
	}
	return identity, nil
}

func isAlnum(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'A' || c > 'Z') && (c < 'a' || c > 'z') {
			return false
		}
	}
	return true
}
