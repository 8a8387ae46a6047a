package store

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mmcdole/nearby/internal/domain"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"golang.org/x/text/cases"
)

const metersPerMile = 1609.344

// LocationHash quantizes loc to 3 decimal places (~111 m buckets).
// A nil location hashes to domain.GlobalLocationHash.
func LocationHash(loc *domain.Coordinates) string {
	if loc == nil {
		return domain.GlobalLocationHash
	}
	return fmt.Sprintf("%.3f,%.3f", loc.Lat, loc.Lng)
}

// parseLocationHash decodes a "lat,lng" hash
func parseLocationHash(hash string) (domain.Coordinates, bool) {
	latStr, lngStr, ok := strings.Cut(hash, ",")
	if !ok {
		return domain.Coordinates{}, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return domain.Coordinates{}, false
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return domain.Coordinates{}, false
	}
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return domain.Coordinates{}, false
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return domain.Coordinates{}, false
	}
	return domain.Coordinates{Lat: lat, Lng: lng}, true
}

// DistanceMiles is the great-circle distance between a and b
func DistanceMiles(a, b domain.Coordinates) float64 {
	// orb points are (lng, lat)
	return geo.DistanceHaversine(orb.Point{a.Lng, a.Lat}, orb.Point{b.Lng, b.Lat}) / metersPerMile
}

// inRange reports whether a record tagged with hash should be served to loc.
// Global and malformed hashes are always in range.
func inRange(hash string, loc domain.Coordinates, radiusMiles float64) bool {
	if hash == domain.GlobalLocationHash {
		return true
	}
	at, ok := parseLocationHash(hash)
	if !ok {
		return true
	}
	return DistanceMiles(at, loc) <= radiusMiles
}

// normalizeQuery case-folds and collapses whitespace.
// Casers are stateful, so each call gets its own.
func normalizeQuery(query string) string {
	return cases.Fold().String(strings.Join(strings.Fields(query), " "))
}

// searchKey builds the composite search cache key
func searchKey(query string, loc *domain.Coordinates) string {
	return normalizeQuery(query) + "_" + LocationHash(loc)
}
