// Package refcache caches mechanism records and target relations in Redis.
//
// Both lists are stored together as one JSON snapshot per ChEMBL version so
// a resolver never sees records from one release and relations from another.
// Redis failures are logged and the wrapped source is used instead.
package refcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fyrsmithlabs/dtiset/internal/dataset"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// KeyPrefix prefixes every snapshot key.
const KeyPrefix = "dtiset:mechanisms:"

// snapshotVersion is bumped when the snapshot encoding changes.
const snapshotVersion = 1

// Source is the mechanism source being cached.
type Source interface {
	Mechanisms(ctx context.Context) ([]dataset.MechanismRecord, error)
	TargetRelations(ctx context.Context) ([]dataset.TargetRelation, error)
}

// Store is the subset of redis.Cmdable the cache uses.
type Store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// Cache decorates a Source with a Redis snapshot. It is safe for concurrent
// use; the snapshot is resolved at most once per Cache.
type Cache struct {
	inner  Source
	store  Store
	key    string
	ttl    time.Duration
	logger *zap.Logger

	mu   sync.Mutex
	snap *snapshot
}

// New returns a Cache over inner keyed by chemblVersion. A nil store
// disables caching.
func New(inner Source, store Store, chemblVersion string, ttl time.Duration, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		inner:  inner,
		store:  store,
		key:    Key(chemblVersion),
		ttl:    ttl,
		logger: logger.Named("refcache"),
	}
}

// Key returns the snapshot key for a ChEMBL version.
func Key(chemblVersion string) string {
	return KeyPrefix + chemblVersion
}

// Connect parses a redis:// URL and verifies the server responds.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return client, nil
}

// Mechanisms returns the cached mechanism records.
func (c *Cache) Mechanisms(ctx context.Context) ([]dataset.MechanismRecord, error) {
	snap, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	return snap.records(), nil
}

// TargetRelations returns the cached target relations.
func (c *Cache) TargetRelations(ctx context.Context) ([]dataset.TargetRelation, error) {
	snap, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	return snap.relations(), nil
}

func (c *Cache) load(ctx context.Context) (*snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snap != nil {
		return c.snap, nil
	}

	if snap, ok := c.get(ctx); ok {
		c.snap = snap
		return snap, nil
	}

	records, err := c.inner.Mechanisms(ctx)
	if err != nil {
		return nil, err
	}
	relations, err := c.inner.TargetRelations(ctx)
	if err != nil {
		return nil, err
	}

	snap := newSnapshot(records, relations)
	c.put(ctx, snap)
	c.snap = snap
	return snap, nil
}

// get reads the snapshot from Redis. Misses and failures both report false.
func (c *Cache) get(ctx context.Context) (*snapshot, bool) {
	if c.store == nil {
		return nil, false
	}

	data, err := c.store.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.logger.Debug("snapshot miss", zap.String("key", c.key))
		return nil, false
	}
	if err != nil {
		c.logger.Warn("reading snapshot failed, using source", zap.String("key", c.key), zap.Error(err))
		return nil, false
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		c.logger.Warn("decoding snapshot failed, using source", zap.String("key", c.key), zap.Error(err))
		return nil, false
	}
	if snap.Version != snapshotVersion {
		c.logger.Info("snapshot version changed, refreshing",
			zap.String("key", c.key),
			zap.Int("cached", snap.Version),
			zap.Int("current", snapshotVersion),
		)
		return nil, false
	}

	c.logger.Info("snapshot hit",
		zap.String("key", c.key),
		zap.Int("mechanisms", len(snap.Mechanisms)),
		zap.Int("relations", len(snap.Relations)),
		zap.Time("created_at", snap.CreatedAt),
	)
	return &snap, true
}

func (c *Cache) put(ctx context.Context, snap *snapshot) {
	if c.store == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		c.logger.Warn("encoding snapshot failed", zap.Error(err))
		return
	}
	if err := c.store.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("writing snapshot failed", zap.String("key", c.key), zap.Error(err))
		return
	}
	c.logger.Info("snapshot stored", zap.String("key", c.key), zap.Duration("ttl", c.ttl))
}
