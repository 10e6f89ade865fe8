// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package gate

import (
	"github.com/wneessen/aprs-relay/internal/geo"
)

// Cache holds the last reported position per key (the callsign by default). An entry exists only
// after an update for that key has been accepted, and it always holds the most recently accepted
// position. The cache is not safe for concurrent use; it is owned by a single Gate.
type Cache struct {
	entries map[string]geo.Position
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]geo.Position)}
}

// Get returns the last reported position for the key.
func (c *Cache) Get(key string) (geo.Position, bool) {
	pos, ok := c.entries[key]
	return pos, ok
}

// Set stores pos as the last reported position for the key.
func (c *Cache) Set(key string, pos geo.Position) {
	c.entries[key] = pos
}

// Len returns the number of keys with a reported position.
func (c *Cache) Len() int {
	return len(c.entries)
}
