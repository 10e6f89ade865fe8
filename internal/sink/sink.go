// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package sink delivers accepted location updates to downstream systems.
package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wneessen/aprs-relay/internal/geo"
)

// Update is an accepted location update for a downstream resource.
type Update struct {
	ResourceID string
	Position   geo.Position
}

// Payload is the JSON body delivered to a sink. Coordinates are encoded as strings.
type Payload struct {
	ID  string `json:"id"`
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Payload returns the wire representation of the update.
func (u Update) Payload() Payload {
	return Payload{
		ID:  u.ResourceID,
		Lat: u.Position.LatString(),
		Lon: u.Position.LonString(),
	}
}

// MarshalPayload returns the JSON encoded payload of the update.
func (u Update) MarshalPayload() ([]byte, error) {
	data, err := json.Marshal(u.Payload())
	if err != nil {
		return nil, fmt.Errorf("failed to encode update payload: %w", err)
	}
	return data, nil
}

// Forwarder delivers an update to a downstream sink. A returned error means the update was
// not delivered.
type Forwarder interface {
	Name() string
	Forward(ctx context.Context, update Update) error
}

// StatusError is returned by sinks that answer with a status code, like HTTP.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sink responded with status %d: %s", e.Code, e.Err)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// Permanent reports whether retrying the request cannot succeed. Client errors are permanent,
// except for request timeouts and rate limiting.
func (e *StatusError) Permanent() bool {
	return e.Code >= 400 && e.Code < 500 && e.Code != 408 && e.Code != 429
}
