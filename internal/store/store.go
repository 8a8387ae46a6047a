package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mmcdole/nearby/internal/domain"
	"github.com/paulmach/orb/maptile"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketBusinesses    = []byte("businesses")
	bucketEvents        = []byte("events")
	bucketUserLocations = []byte("user_locations")
	bucketSearchCache   = []byte("search_cache")
	bucketMapTiles      = []byte("map_tiles")

	allBuckets = [][]byte{bucketBusinesses, bucketEvents, bucketUserLocations, bucketSearchCache, bucketMapTiles}

	// Buckets whose values carry cachedAt and are subject to retention
	expiringBuckets = [][]byte{bucketBusinesses, bucketEvents, bucketSearchCache, bucketMapTiles}
)

const (
	dbFileName = "nearby.db"

	DefaultRadiusMiles = 10.0
	LocationMaxAge     = 24 * time.Hour
	SearchMaxAge       = time.Hour
	RetentionWindow    = 7 * 24 * time.Hour

	openTimeout = 1 * time.Second
)

// Options tunes a Store. Zero values select the defaults.
type Options struct {
	RadiusMiles float64
	Now         func() time.Time
	Logger      *slog.Logger
}

// Store implements domain.Store using BoltDB, one bucket per collection.
type Store struct {
	dir         string
	radiusMiles float64
	now         func() time.Time
	logger      *slog.Logger

	mu sync.Mutex // Guards db lifecycle
	db *bolt.DB
}

// New returns an unopened store rooted at dir. The database is opened by
// Init or lazily by the first operation.
func New(dir string, opts Options) *Store {
	if opts.RadiusMiles <= 0 {
		opts.RadiusMiles = DefaultRadiusMiles
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Store{
		dir:         dir,
		radiusMiles: opts.RadiusMiles,
		now:         opts.Now,
		logger:      opts.Logger,
	}
}

// Init opens the database and creates all buckets. Calling it on an open
// store is a no-op.
func (s *Store) Init() error {
	_, err := s.handle()
	return err
}

func (s *Store) handle() (*bolt.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db, nil
	}

	db, err := s.open()
	if err != nil {
		s.logger.Warn("local store unavailable", "dir", s.dir, "error", err)
		return nil, err
	}
	s.db = db
	return db, nil
}

func (s *Store) open() (*bolt.DB, error) {
	if s.dir == "" {
		return nil, fmt.Errorf("%w: no cache directory configured", domain.ErrStorageUnavailable)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, unavailable("create cache directory", err)
	}

	dbPath := filepath.Join(s.dir, dbFileName)
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, unavailable("open bolt db", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, unavailable("create buckets", err)
	}

	s.logger.Debug("opened local store", "path", dbPath)
	return db, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorageUnavailable, err)
}

// Close releases the database. The store may be re-opened afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// === Generic helpers ===

func (s *Store) get(bucket []byte, key string, dest interface{}) (bool, error) {
	db, err := s.handle()
	if err != nil {
		return false, err
	}

	var data []byte
	err = db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucket).Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil {
		return false, unavailable("read "+string(bucket), err)
	}
	if data == nil {
		return false, nil
	}

	if err := json.Unmarshal(data, dest); err != nil {
		// Undecodable entries behave as misses
		s.logger.Warn("corrupt cache entry", "bucket", string(bucket), "key", key, "error", err)
		return false, nil
	}
	return true, nil
}

func (s *Store) set(bucket []byte, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	db, err := s.handle()
	if err != nil {
		return err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
	if err != nil {
		return unavailable("write "+string(bucket), err)
	}
	return nil
}

func (s *Store) age(cachedAt int64) time.Duration {
	return s.now().Sub(time.UnixMilli(cachedAt))
}

// === Businesses / Events ===

func collectionBucket(coll domain.Collection) ([]byte, error) {
	switch coll {
	case domain.CollectionBusinesses:
		return bucketBusinesses, nil
	case domain.CollectionEvents:
		return bucketEvents, nil
	default:
		return nil, fmt.Errorf("unknown collection %q", coll)
	}
}

// CacheCollection stamps every record with one shared cachedAt and
// location hash, then upserts them by ID.
func (s *Store) CacheCollection(coll domain.Collection, records []domain.Record, loc *domain.Coordinates) error {
	bucket, err := collectionBucket(coll)
	if err != nil {
		return err
	}

	db, err := s.handle()
	if err != nil {
		return err
	}

	cachedAt := s.now().UnixMilli()
	hash := LocationHash(loc)
	written := 0

	err = db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		for _, r := range records {
			if r.ID == "" {
				s.logger.Warn("skipping record without id", "collection", coll)
				continue
			}
			r.CachedAt = cachedAt
			r.LocationHash = hash

			data, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("encode %s: %w", r.ID, err)
			}
			if err := b.Put([]byte(r.ID), data); err != nil {
				return err
			}
			written++
		}
		return nil
	})
	if err != nil {
		return unavailable("write "+string(coll), err)
	}

	s.logger.Debug("cached collection", "collection", coll, "count", written, "locationHash", hash)
	return nil
}

// GetCollection returns all records of coll. With loc set, only records
// tagged global, malformed, or within the radius of loc are returned.
func (s *Store) GetCollection(coll domain.Collection, loc *domain.Coordinates) ([]domain.Record, error) {
	bucket, err := collectionBucket(coll)
	if err != nil {
		return nil, err
	}

	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	var records []domain.Record
	err = db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).ForEach(func(k, v []byte) error {
			var r domain.Record
			if err := json.Unmarshal(v, &r); err != nil {
				s.logger.Warn("corrupt cache entry", "bucket", string(bucket), "key", string(k), "error", err)
				return nil
			}
			if loc != nil && !inRange(r.LocationHash, *loc, s.radiusMiles) {
				return nil
			}
			records = append(records, r)
			return nil
		})
	})
	if err != nil {
		return nil, unavailable("read "+string(coll), err)
	}
	return records, nil
}

// === User location ===

func (s *Store) CacheUserLocation(loc domain.UserLocation) error {
	if loc.Timestamp == 0 {
		loc.Timestamp = s.now().UnixMilli()
	}
	return s.set(bucketUserLocations, domain.UserLocationKey, loc)
}

// GetUserLocation returns nil when no location is cached or it is older
// than LocationMaxAge.
func (s *Store) GetUserLocation() (*domain.UserLocation, error) {
	var loc domain.UserLocation
	ok, err := s.get(bucketUserLocations, domain.UserLocationKey, &loc)
	if err != nil || !ok {
		return nil, err
	}
	if s.age(loc.Timestamp) > LocationMaxAge {
		s.logger.Debug("cached location stale", "timestamp", loc.Timestamp)
		return nil, nil
	}
	return &loc, nil
}

// === Search cache ===

func (s *Store) CacheSearchResults(query string, results []json.RawMessage, loc *domain.Coordinates) error {
	key := searchKey(query, loc)
	entry := domain.SearchEntry{
		Key:          key,
		Query:        query,
		Results:      results,
		LocationHash: LocationHash(loc),
		CachedAt:     s.now().UnixMilli(),
	}
	return s.set(bucketSearchCache, key, entry)
}

// GetSearchResults returns nil when the query was never cached for loc or
// the entry is older than SearchMaxAge.
func (s *Store) GetSearchResults(query string, loc *domain.Coordinates) (*domain.SearchEntry, error) {
	key := searchKey(query, loc)
	var entry domain.SearchEntry
	ok, err := s.get(bucketSearchCache, key, &entry)
	if err != nil || !ok {
		return nil, err
	}
	if s.age(entry.CachedAt) > SearchMaxAge {
		s.logger.Debug("search cache stale", "key", key)
		return nil, nil
	}
	return &entry, nil
}

// === Map tiles ===

func tileKey(tile maptile.Tile) string {
	return fmt.Sprintf("%d/%d/%d", tile.Z, tile.X, tile.Y)
}

func (s *Store) CacheMapTile(tile maptile.Tile, data []byte) error {
	key := tileKey(tile)
	return s.set(bucketMapTiles, key, domain.MapTile{
		Key:      key,
		Data:     data,
		CachedAt: s.now().UnixMilli(),
	})
}

// GetMapTile returns nil for tiles never cached or past the retention window.
func (s *Store) GetMapTile(tile maptile.Tile) (*domain.MapTile, error) {
	var t domain.MapTile
	ok, err := s.get(bucketMapTiles, tileKey(tile), &t)
	if err != nil || !ok {
		return nil, err
	}
	if s.age(t.CachedAt) > RetentionWindow {
		return nil, nil
	}
	return &t, nil
}

// === Maintenance ===

// PruneExpired deletes entries older than RetentionWindow from every
// collection that tracks cachedAt. Returns the number of deleted entries.
func (s *Store) PruneExpired() (int, error) {
	db, err := s.handle()
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-RetentionWindow).UnixMilli()
	removed := 0

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range expiringBuckets {
			b := tx.Bucket(bucket)

			// Collect first; deleting under a live cursor skips keys
			var expired [][]byte
			err := b.ForEach(func(k, v []byte) error {
				var stamp struct {
					CachedAt int64 `json:"cachedAt"`
				}
				if err := json.Unmarshal(v, &stamp); err != nil || stamp.CachedAt < cutoff {
					expired = append(expired, append([]byte(nil), k...))
				}
				return nil
			})
			if err != nil {
				return err
			}

			for _, k := range expired {
				if err := b.Delete(k); err != nil {
					return err
				}
			}
			removed += len(expired)
		}
		return nil
	})
	if err != nil {
		return 0, unavailable("prune", err)
	}

	if removed > 0 {
		s.logger.Info("pruned expired cache entries", "count", removed)
	}
	return removed, nil
}

// Stats returns per-collection entry counts
func (s *Store) Stats() (domain.Stats, error) {
	db, err := s.handle()
	if err != nil {
		return domain.Stats{}, err
	}

	var stats domain.Stats
	err = db.View(func(tx *bolt.Tx) error {
		stats.Businesses = tx.Bucket(bucketBusinesses).Stats().KeyN
		stats.Events = tx.Bucket(bucketEvents).Stats().KeyN
		stats.Searches = tx.Bucket(bucketSearchCache).Stats().KeyN
		stats.Tiles = tx.Bucket(bucketMapTiles).Stats().KeyN
		return nil
	})
	if err != nil {
		return domain.Stats{}, unavailable("stats", err)
	}
	return stats, nil
}

// RunPruner calls PruneExpired immediately and then on every interval
// until ctx is done.
func (s *Store) RunPruner(ctx context.Context, interval time.Duration) {
	prune := func() {
		if _, err := s.PruneExpired(); err != nil {
			s.logger.Warn("prune failed", "error", err)
		}
	}

	prune()
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

var _ domain.Store = (*Store)(nil)
