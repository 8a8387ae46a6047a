// Package loader sequences cache reads, directory fetches, change
// notification and cache writes for the screens that list businesses and
// events. Cache and notification failures never reach the caller.
package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmcdole/nearby/internal/domain"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// Loader coordinates the local store with the directory client
type Loader struct {
	store    domain.Store
	client   domain.DirectoryClient
	notifier domain.ChangeNotifier
	logger   *slog.Logger
	now      func() time.Time
}

// Options configures a Loader
type Options struct {
	Logger *slog.Logger
	Now    func() time.Time
}

// New creates a loader. client and notifier may be nil, which makes the
// loader cache-only and silent respectively.
func New(store domain.Store, client domain.DirectoryClient, notifier domain.ChangeNotifier, opts Options) *Loader {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Loader{
		store:    store,
		client:   client,
		notifier: notifier,
		logger:   opts.Logger,
		now:      opts.Now,
	}
}

// Request describes one collection load
type Request struct {
	Kind    domain.Collection
	Filters domain.Filters

	// Location overrides the cached user location
	Location *domain.Coordinates

	// Offline skips the network entirely
	Offline bool
}

// Result is what a screen renders
type Result struct {
	Records   []domain.Record
	FromCache bool

	// FetchErr is set when a fetch was attempted and failed
	FetchErr error
}

// Load returns the collection for the request. The cached snapshot is read
// first; when online the fresh fetch is diffed against it, announced, and
// written back. A failed fetch returns the cached snapshot. Nothing is
// announced when the snapshot could not be read.
func (l *Loader) Load(ctx context.Context, req Request) (Result, error) {
	if !req.Kind.Valid() {
		return Result{}, fmt.Errorf("unknown collection %q", req.Kind)
	}

	loc := l.location(req.Location)

	cached, err := l.store.GetCollection(req.Kind, loc)
	cacheOK := err == nil
	if !cacheOK {
		l.logger.Warn("failed to read cache", "error", err, "kind", req.Kind)
		cached = nil
	}

	if req.Offline || l.client == nil {
		l.logger.Debug("serving cached collection", "kind", req.Kind, "count", len(cached))
		return Result{Records: cached, FromCache: true}, nil
	}

	filters := req.Filters
	if filters.Near == nil {
		filters.Near = loc
	}

	fresh, err := l.fetch(ctx, req.Kind, filters)
	if err != nil {
		l.logger.Warn("fetch failed, serving cache", "error", err, "kind", req.Kind, "cached", len(cached))
		return Result{Records: cached, FromCache: true, FetchErr: err}, nil
	}

	// Without a readable snapshot every record would look new
	if l.notifier != nil && cacheOK {
		l.notifier.CompareAndNotify(ctx, cached, fresh, req.Kind)
	}

	if err := l.store.CacheCollection(req.Kind, fresh, loc); err != nil {
		l.logger.Error("failed to cache collection", "error", err, "kind", req.Kind)
	}

	l.logger.Debug("loaded collection", "kind", req.Kind, "count", len(fresh), "cached", len(cached))
	return Result{Records: fresh}, nil
}

func (l *Loader) fetch(ctx context.Context, kind domain.Collection, f domain.Filters) ([]domain.Record, error) {
	switch kind {
	case domain.CollectionBusinesses:
		return l.client.FetchBusinesses(ctx, f)
	case domain.CollectionEvents:
		return l.client.FetchEvents(ctx, f)
	default:
		return nil, fmt.Errorf("unknown collection %q", kind)
	}
}

// location resolves an explicit location, falling back to the cached one
func (l *Loader) location(explicit *domain.Coordinates) *domain.Coordinates {
	if explicit != nil {
		return explicit
	}
	current, err := l.store.GetUserLocation()
	if err != nil {
		l.logger.Warn("failed to read cached location", "error", err)
		return nil
	}
	if current == nil {
		return nil
	}
	c := current.Coordinates()
	return &c
}

// UpdateLocation records the device position
func (l *Loader) UpdateLocation(ctx context.Context, c domain.Coordinates, accuracy *float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.store.CacheUserLocation(domain.UserLocation{
		Lat:       c.Lat,
		Lng:       c.Lng,
		Accuracy:  accuracy,
		Timestamp: l.now().UnixMilli(),
	})
}

// CurrentLocation returns the cached position, or nil when unknown or stale
func (l *Loader) CurrentLocation(ctx context.Context) (*domain.UserLocation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.store.GetUserLocation()
}

// TileResult is a map tile and where it came from
type TileResult struct {
	Tile      maptile.Tile
	Data      []byte
	FromCache bool
}

// Tile returns the tile covering c at zoom, fetching and caching it on a miss
func (l *Loader) Tile(ctx context.Context, c domain.Coordinates, zoom maptile.Zoom, offline bool) (TileResult, error) {
	tile := maptile.At(orb.Point{c.Lng, c.Lat}, zoom)

	cached, err := l.store.GetMapTile(tile)
	if err != nil {
		l.logger.Warn("failed to read tile cache", "error", err, "tile", tile)
	}
	if cached != nil {
		return TileResult{Tile: tile, Data: cached.Data, FromCache: true}, nil
	}

	if offline || l.client == nil {
		return TileResult{Tile: tile}, fmt.Errorf("tile %d/%d/%d not cached: %w", tile.Z, tile.X, tile.Y, domain.ErrServerOffline)
	}

	data, err := l.client.FetchTile(ctx, uint32(tile.Z), tile.X, tile.Y)
	if err != nil {
		return TileResult{Tile: tile}, err
	}

	if err := l.store.CacheMapTile(tile, data); err != nil {
		l.logger.Error("failed to cache tile", "error", err, "tile", tile)
	}
	return TileResult{Tile: tile, Data: data}, nil
}

// marshalRecords encodes records as opaque search results
func marshalRecords(records []domain.Record) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(records))
	for _, r := range records {
		raw, err := json.Marshal(r)
		if err != nil {
			continue
		}
		out = append(out, raw)
	}
	return out
}

// isOffline reports whether err means the directory could not be reached
func isOffline(err error) bool {
	return errors.Is(err, domain.ErrServerOffline) || errors.Is(err, context.DeadlineExceeded)
}
