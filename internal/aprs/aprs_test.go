// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package aprs

import (
	"errors"
	"math"
	"testing"
)

const coordTolerance = 1e-5

func TestDecode(t *testing.T) {
	t.Run("position reports are decoded", func(t *testing.T) {
		tests := []struct {
			name       string
			line       string
			call       string
			ssid       string
			lat        float64
			lon        float64
			compressed bool
			comment    string
		}{
			{
				"uncompressed without timestamp",
				"N0CALL-9>APRS,TCPIP*,qAC,T2TEST:!4200.00N/07600.00W>mobile\r\n",
				"N0CALL", "9", 42.0, -76.0, false, "mobile",
			},
			{
				"uncompressed with messaging",
				"N0CALL>APRS:=4903.50N/07201.75W-Test 001234",
				"N0CALL", "", 49.058333, -72.029166, false, "Test 001234",
			},
			{
				"uncompressed with timestamp",
				"K9FGT-7>APDR16,WIDE1-1:@092345z4903.50N/07201.75W>",
				"K9FGT", "7", 49.058333, -72.029166, false, "",
			},
			{
				"southern and eastern hemisphere",
				"VK2ABC>APRS:!3352.00S/15112.00E-",
				"VK2ABC", "", -33.866666, 151.2, false, "",
			},
			{
				"position ambiguity",
				"N0CALL>APRS:!42  .  N/076  .  W-",
				"N0CALL", "", 42.0, -76.0, false, "",
			},
			{
				"compressed without timestamp",
				"N0CALL-5>APRS:=/5L!!<*e7>7P[",
				"N0CALL", "5", 49.5, -72.75, true, "",
			},
			{
				"compressed with timestamp",
				"N0CALL>APRS:/092345z/5L!!<*e7>7P[rolling",
				"N0CALL", "", 49.5, -72.75, true, "rolling",
			},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				beacon, err := Decode(tc.line)
				if err != nil {
					t.Fatalf("failed to decode beacon: %s", err)
				}
				if beacon.Kind != KindPosition {
					t.Errorf("expected kind to be %s, got %s", KindPosition, beacon.Kind)
				}
				if beacon.Source.Callsign != tc.call {
					t.Errorf("expected callsign to be %s, got %s", tc.call, beacon.Source.Callsign)
				}
				if tc.ssid == "" && beacon.Source.SSID.IsSet() {
					t.Errorf("expected no SSID, got %s", beacon.Source.SSID.Value())
				}
				if tc.ssid != "" && beacon.Source.SSID.Value() != tc.ssid {
					t.Errorf("expected SSID to be %s, got %s", tc.ssid, beacon.Source.SSID.Value())
				}
				if beacon.Position == nil {
					t.Fatal("expected position to be set")
				}
				if math.Abs(beacon.Position.Lat-tc.lat) > coordTolerance {
					t.Errorf("expected latitude to be %f, got %f", tc.lat, beacon.Position.Lat)
				}
				if math.Abs(beacon.Position.Lon-tc.lon) > coordTolerance {
					t.Errorf("expected longitude to be %f, got %f", tc.lon, beacon.Position.Lon)
				}
				if beacon.Compressed != tc.compressed {
					t.Errorf("expected compressed to be %t", tc.compressed)
				}
				if beacon.Comment != tc.comment {
					t.Errorf("expected comment to be %q, got %q", tc.comment, beacon.Comment)
				}
			})
		}
	})
	t.Run("route is split into destination and path", func(t *testing.T) {
		beacon, err := Decode("N0CALL-9>APRS,TCPIP*,qAC,T2TEST:!4200.00N/07600.00W>")
		if err != nil {
			t.Fatalf("failed to decode beacon: %s", err)
		}
		if beacon.Destination != "APRS" {
			t.Errorf("expected destination to be APRS, got %s", beacon.Destination)
		}
		if len(beacon.Path) != 3 || beacon.Path[0] != "TCPIP*" || beacon.Path[2] != "T2TEST" {
			t.Errorf("unexpected path: %v", beacon.Path)
		}
		if beacon.Symbol.Table != '/' || beacon.Symbol.Code != '>' {
			t.Errorf("unexpected symbol: %c%c", beacon.Symbol.Table, beacon.Symbol.Code)
		}
	})
	t.Run("non-position kinds carry no position", func(t *testing.T) {
		tests := []struct {
			name string
			line string
			kind Kind
		}{
			{"message", "N0CALL>APRS::K9FGT    :hello{01", KindMessage},
			{"status", "N0CALL>APRS:>on the road", KindStatus},
			{"object", "N0CALL>APRS:;LEADER   *092345z4903.50N/07201.75W>", KindObject},
			{"item", "N0CALL>APRS:)AID #2!4903.50N/07201.75WA", KindItem},
			{"mic-e", "N0CALL>T2SP0W:`c9Ol#>/]\"4(}=", KindMicE},
			{"telemetry", "N0CALL>APRS:T#005,199,000,255,073,123,01101001", KindTelemetry},
			{"weather", "N0CALL>APRS:_10090556c220s004g005t077", KindWeather},
			{"query", "N0CALL>APRS:?APRS?", KindQuery},
			{"unknown", "N0CALL>APRS:xyz", KindUnknown},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				beacon, err := Decode(tc.line)
				if err != nil {
					t.Fatalf("failed to decode beacon: %s", err)
				}
				if beacon.Kind != tc.kind {
					t.Errorf("expected kind to be %s, got %s", tc.kind, beacon.Kind)
				}
				if beacon.Position != nil {
					t.Errorf("expected no position for kind %s", beacon.Kind)
				}
			})
		}
	})
	t.Run("malformed frames fail", func(t *testing.T) {
		tests := []struct {
			name string
			line string
			want error
		}{
			{"empty line", "", ErrInvalidFrame},
			{"no payload separator", "N0CALL>APRS", ErrInvalidFrame},
			{"empty payload", "N0CALL>APRS:", ErrInvalidFrame},
			{"no destination separator", "N0CALL:!4200.00N/07600.00W>", ErrInvalidFrame},
			{"empty destination", "N0CALL>,WIDE1-1:!4200.00N/07600.00W>", ErrInvalidFrame},
			{"empty callsign", ">APRS:!4200.00N/07600.00W>", ErrInvalidCallsign},
			{"callsign too long", "N0CALLTOOLONG>APRS:!4200.00N/07600.00W>", ErrInvalidCallsign},
			{"empty ssid", "N0CALL->APRS:!4200.00N/07600.00W>", ErrInvalidCallsign},
			{"ssid too long", "N0CALL-123>APRS:!4200.00N/07600.00W>", ErrInvalidCallsign},
			{"truncated position", "N0CALL>APRS:!4200.00N/0760", ErrInvalidPosition},
			{"empty position", "N0CALL>APRS:!", ErrInvalidPosition},
			{"truncated timestamp", "N0CALL>APRS:@0923", ErrInvalidPosition},
			{"bad hemisphere", "N0CALL>APRS:!4200.00X/07600.00W>", ErrInvalidPosition},
			{"minutes out of range", "N0CALL>APRS:!4275.00N/07600.00W>", ErrInvalidPosition},
			{"latitude beyond pole", "N0CALL>APRS:!9130.00N/07600.00W>", ErrInvalidPosition},
			{"missing decimal point", "N0CALL>APRS:!42000.0N/07600.00W>", ErrInvalidPosition},
			{"bad compressed table", "N0CALL>APRS:!~5L!!<*e7>7P[", ErrInvalidPosition},
			{"bad base91 character", "N0CALL>APRS:!/5L! <*e7>7P[", ErrInvalidPosition},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				_, err := Decode(tc.line)
				if err == nil {
					t.Fatal("expected decode to fail")
				}
				if !errors.Is(err, tc.want) {
					t.Errorf("expected error to be %s, got %s", tc.want, err)
				}
			})
		}
	})
}

func TestParseIdentity(t *testing.T) {
	identity, err := ParseIdentity("N0CALL-9")
	if err != nil {
		t.Fatalf("failed to parse identity: %s", err)
	}
	if identity.String() != "N0CALL-9" {
		t.Errorf("expected identity string to be N0CALL-9, got %s", identity)
	}
	identity, err = ParseIdentity("N0CALL")
	if err != nil {
		t.Fatalf("failed to parse identity: %s", err)
	}
	if identity.SSID.IsSet() {
		t.Error("expected identity without SSID")
	}
	if identity.String() != "N0CALL" {
		t.Errorf("expected identity string to be N0CALL, got %s", identity)
	}
}

func TestKind_String(t *testing.T) {
	if KindPosition.String() != "position" {
		t.Errorf("expected position, got %s", KindPosition)
	}
	if Kind(99).String() != "kind(99)" {
		t.Errorf("expected kind(99), got %s", Kind(99))
	}
}

func TestTextDecoder_Decode(t *testing.T) {
	var decoder Decoder = TextDecoder{}
	beacon, err := decoder.Decode("N0CALL>APRS:!4200.00N/07600.00W>")
	if err != nil {
		t.Fatalf("failed to decode beacon: %s", err)
	}
	if beacon.Position == nil {
		t.Fatal("expected position to be set")
	}
}
