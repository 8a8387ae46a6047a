package domain

import (
	"encoding/json"

	"github.com/paulmach/orb/maptile"
)

// Store is the client-resident cache (BoltDB).
// Every method lazily opens the store; a store that cannot be opened
// returns an error wrapping ErrStorageUnavailable. Stale or missing
// entries are reported as nil results, never as errors.
type Store interface {
	Init() error

	// === Businesses / Events ===
	CacheCollection(coll Collection, records []Record, loc *Coordinates) error
	GetCollection(coll Collection, loc *Coordinates) ([]Record, error)

	// === User location (singleton, 24h) ===
	CacheUserLocation(loc UserLocation) error
	GetUserLocation() (*UserLocation, error)

	// === Search cache (1h) ===
	CacheSearchResults(query string, results []json.RawMessage, loc *Coordinates) error
	GetSearchResults(query string, loc *Coordinates) (*SearchEntry, error)

	// === Map tiles ===
	CacheMapTile(tile maptile.Tile, data []byte) error
	GetMapTile(tile maptile.Tile) (*MapTile, error)

	// === Maintenance ===
	PruneExpired() (int, error)
	Stats() (Stats, error)

	Close() error
}
