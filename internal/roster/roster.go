// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package roster

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/wneessen/aprs-relay/internal/aprs"
	"github.com/wneessen/aprs-relay/internal/vartype"
)

var (
	// ErrEmptyRoster is returned when a roster file contains no subscriptions.
	ErrEmptyRoster = errors.New("roster contains no subscriptions")

	// ErrInvalidSubscription is returned when a roster entry is missing required fields.
	ErrInvalidSubscription = errors.New("invalid subscription")

	// ErrUnsupportedFormat is returned for roster files with an unknown extension.
	ErrUnsupportedFormat = errors.New("unsupported roster file format")
)

// Subscription identifies one watched station and the downstream resource its updates map to.
type Subscription struct {
	Callsign   string
	SSID       vartype.VarString
	ResourceID string
}

// Matches reports whether the identity satisfies the subscription. An unset subscription SSID
// matches any SSID, a set one requires the identity to carry the same SSID.
func (s Subscription) Matches(identity aprs.Identity) bool {
	if s.Callsign != identity.Callsign {
		return false
	}
	return !s.SSID.IsSet() || s.SSID.Equal(identity.SSID)
}

func (s Subscription) String() string {
	if !s.SSID.IsSet() {
		return s.Callsign + " -> " + s.ResourceID
	}
	return s.Callsign + "-" + s.SSID.Value() + " -> " + s.ResourceID
}

// Roster is the ordered, read-only list of subscriptions. Order determines match precedence.
type Roster struct {
	subs []Subscription
}

// New returns a Roster holding a copy of the given subscriptions.
func New(subs []Subscription) *Roster {
	roster := &Roster{subs: make([]Subscription, len(subs))}
	copy(roster.subs, subs)
	return roster
}

// Match returns the first subscription in roster order that the identity satisfies.
func (r *Roster) Match(identity aprs.Identity) (Subscription, bool) {
	for _, sub := range r.subs {
		if sub.Matches(identity) {
			return sub, true
		}
	}
	return Subscription{}, false
}

// Len returns the number of subscriptions in the roster.
func (r *Roster) Len() int {
	return len(r.subs)
}

// entry is the on-disk representation of a subscription.
type entry struct {
	Callsign   string  `json:"callsign" yaml:"callsign"`
	SSID       *string `json:"ssid" yaml:"ssid"`
	ResourceID string  `json:"resourceId" yaml:"resourceId"`
}

// Load reads a roster file. JSON files may contain comments and trailing commas, YAML files
// are supported via the .yaml and .yml extensions.
func Load(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster file: %w", err)
	}

	var entries []entry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		if err = json.Unmarshal(jsonc.ToJSON(data), &entries); err != nil {
			return nil, fmt.Errorf("failed to parse JSON roster: %w", err)
		}
	case ".yaml", ".yml":
		if err = yaml.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("failed to parse YAML roster: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}

	subs := make([]Subscription, 0, len(entries))
	for i, e := range entries {
		sub, err := e.subscription()
		if err != nil {
			return nil, fmt.Errorf("roster entry %d: %w", i, err)
		}
		subs = append(subs, sub)
	}
	if len(subs) == 0 {
		return nil, ErrEmptyRoster
	}

	return New(subs), nil
}

func (e entry) subscription() (Subscription, error) {
	sub := Subscription{
		Callsign:   strings.TrimSpace(e.Callsign),
		ResourceID: strings.TrimSpace(e.ResourceID),
	}
	if sub.Callsign == "" {
		return sub, fmt.Errorf("%w: callsign is required", ErrInvalidSubscription)
	}
	if sub.ResourceID == "" {
		return sub, fmt.Errorf("%w: resourceId is required for %s", ErrInvalidSubscription, sub.Callsign)
	}
	if e.SSID != nil && strings.TrimSpace(*e.SSID) != "" {
		sub.SSID.Set(strings.TrimSpace(*e.SSID))
	}
	return sub, nil
}
