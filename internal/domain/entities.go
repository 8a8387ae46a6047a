package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Collection names a cached record collection
type Collection string

const (
	CollectionBusinesses Collection = "businesses"
	CollectionEvents     Collection = "events"
)

// Valid reports whether c is one of the record collections
func (c Collection) Valid() bool {
	return c == CollectionBusinesses || c == CollectionEvents
}

// Singular returns the display noun for one record of the collection
func (c Collection) Singular() string {
	switch c {
	case CollectionBusinesses:
		return "business"
	case CollectionEvents:
		return "event"
	default:
		return string(c)
	}
}

// GlobalLocationHash tags records cached without a known user location.
const GlobalLocationHash = "global"

// Record is a business or event as stored in the local cache.
// Everything except ID, CachedAt and LocationHash is opaque payload and
// survives a round trip through the cache untouched.
type Record struct {
	ID           string
	CachedAt     int64  // Unix ms, refreshed on every write
	LocationHash string // "lat,lng" at 3 decimals, or GlobalLocationHash
	Fields       map[string]json.RawMessage
}

// NewRecord builds a record from arbitrary payload values.
func NewRecord(id string, fields map[string]any) (Record, error) {
	r := Record{ID: id, Fields: make(map[string]json.RawMessage, len(fields))}
	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return Record{}, fmt.Errorf("field %q: %w", k, err)
		}
		r.Fields[k] = raw
	}
	return r, nil
}

// Field decodes a payload field into dest. Returns false if absent or mistyped.
func (r Record) Field(key string, dest any) bool {
	raw, ok := r.Fields[key]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

// DisplayName returns the best human label: name, then title, then ID.
func (r Record) DisplayName() string {
	var s string
	if r.Field("name", &s) && s != "" {
		return s
	}
	if r.Field("title", &s) && s != "" {
		return s
	}
	return r.ID
}

func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+3)
	for k, v := range r.Fields {
		out[k] = v
	}
	out["id"] = r.ID
	if r.CachedAt != 0 {
		out["cachedAt"] = r.CachedAt
	}
	if r.LocationHash != "" {
		out["locationHash"] = r.LocationHash
	}
	return json.Marshal(out)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*r = Record{}
	if raw, ok := fields["id"]; ok {
		id, err := decodeID(raw)
		if err != nil {
			return err
		}
		r.ID = id
		delete(fields, "id")
	} else if raw, ok := fields["_id"]; ok {
		// Document-store payloads carry _id; keep it in the payload too
		id, err := decodeID(raw)
		if err != nil {
			return err
		}
		r.ID = id
	}
	if raw, ok := fields["cachedAt"]; ok {
		if err := json.Unmarshal(raw, &r.CachedAt); err != nil {
			return fmt.Errorf("cachedAt: %w", err)
		}
		delete(fields, "cachedAt")
	}
	if raw, ok := fields["locationHash"]; ok {
		if err := json.Unmarshal(raw, &r.LocationHash); err != nil {
			return fmt.Errorf("locationHash: %w", err)
		}
		delete(fields, "locationHash")
	}
	r.Fields = fields
	return nil
}

// decodeID accepts string or numeric identifiers
func decodeID(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("record id: %w", err)
	}
	return n.String(), nil
}

// IDs returns the identifiers of records in order
func IDs(records []Record) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids
}

// Coordinates is a WGS84 point
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// UserLocationKey is the fixed key of the singleton location row.
const UserLocationKey = "current"

// UserLocation is the device's last known position
type UserLocation struct {
	Lat       float64  `json:"lat"`
	Lng       float64  `json:"lng"`
	Accuracy  *float64 `json:"accuracy,omitempty"` // Meters
	Timestamp int64    `json:"timestamp"`          // Unix ms
}

func (l UserLocation) Coordinates() Coordinates {
	return Coordinates{Lat: l.Lat, Lng: l.Lng}
}

// SearchEntry is a cached search response
type SearchEntry struct {
	Key          string            `json:"key"`
	Query        string            `json:"query"`
	Results      []json.RawMessage `json:"results"`
	LocationHash string            `json:"locationHash"`
	CachedAt     int64             `json:"cachedAt"`
}

// MapTile is a cached map tile keyed by "z/x/y"
type MapTile struct {
	Key      string `json:"key"`
	Data     []byte `json:"data"`
	CachedAt int64  `json:"cachedAt"`
}

// Stats holds per-collection record counts
type Stats struct {
	Businesses int `json:"businesses"`
	Events     int `json:"events"`
	Searches   int `json:"searches"`
	Tiles      int `json:"tiles"`
}

// Filters narrows a directory fetch
type Filters struct {
	Category    string
	Near        *Coordinates
	RadiusMiles float64
	Limit       int
}

// SearchResponse is the external search contract output
type SearchResponse struct {
	Results     []json.RawMessage `json:"results"`
	Suggestions []string          `json:"suggestions"`
	Total       int               `json:"total"`
}

// NotificationPreferences are the user's notification choices.
type NotificationPreferences struct {
	Enabled         bool `mapstructure:"enabled" json:"enabled"`
	NewBusinesses   bool `mapstructure:"new_businesses" json:"newBusinesses"`
	NewEvents       bool `mapstructure:"new_events" json:"newEvents"`
	BusinessUpdates bool `mapstructure:"business_updates" json:"businessUpdates"`
	EventUpdates    bool `mapstructure:"event_updates" json:"eventUpdates"`
	NearbyAlerts    bool `mapstructure:"nearby_alerts" json:"nearbyAlerts"`
}

// DefaultNotificationPreferences is the first-run preference set.
// Content-update notifications are off until the user opts in.
func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{
		Enabled:       true,
		NewBusinesses: true,
		NewEvents:     true,
		NearbyAlerts:  true,
	}
}

// PreferencesUpdate is a partial preference change; nil fields are kept.
type PreferencesUpdate struct {
	Enabled         *bool
	NewBusinesses   *bool
	NewEvents       *bool
	BusinessUpdates *bool
	EventUpdates    *bool
	NearbyAlerts    *bool
}

// Apply merges u into p
func (u PreferencesUpdate) Apply(p NotificationPreferences) NotificationPreferences {
	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	set(&p.Enabled, u.Enabled)
	set(&p.NewBusinesses, u.NewBusinesses)
	set(&p.NewEvents, u.NewEvents)
	set(&p.BusinessUpdates, u.BusinessUpdates)
	set(&p.EventUpdates, u.EventUpdates)
	set(&p.NearbyAlerts, u.NearbyAlerts)
	return p
}

// Permission mirrors the platform notification permission primitive
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// ParsePermission maps a persisted value back to a Permission
func ParsePermission(s string) Permission {
	switch Permission(s) {
	case PermissionGranted, PermissionDenied:
		return Permission(s)
	default:
		return PermissionDefault
	}
}

// Notification is a user-facing notification payload
type Notification struct {
	Title string
	Body  string
	Icon  string
	Tag   string
	Data  map[string]string
}

// PushSubscription is the handle returned by a push registration
type PushSubscription struct {
	ID        string
	Endpoint  string
	Token     string
	PublicKey string
	CreatedAt time.Time
}
