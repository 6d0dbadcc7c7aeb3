package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/reforesta/planner/backend-go/internal/metrics"
)

// OpenRedis returns a client for addr, or nil when addr is empty.
func OpenRedis(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

// Cached keeps the latest snapshot of each project in Redis in front of
// another Store. Redis failures are logged and fall through to the
// underlying store.
type Cached struct {
	Store
	rc  *redis.Client
	ttl time.Duration
	log *slog.Logger
}

func NewCached(s Store, rc *redis.Client, ttl time.Duration, log *slog.Logger) *Cached {
	if log == nil {
		log = slog.Default()
	}
	return &Cached{Store: s, rc: rc, ttl: ttl, log: log}
}

func snapshotKey(projectID string) string { return "snapshot:" + projectID }

func (c *Cached) LatestSnapshot(ctx context.Context, projectID string) (Snapshot, error) {
	key := snapshotKey(projectID)
	raw, err := c.rc.Get(ctx, key).Bytes()
	if err == nil {
		var snap Snapshot
		if err := json.Unmarshal(raw, &snap); err == nil {
			metrics.CacheHitsTotal.Inc()
			return snap, nil
		}
		c.log.Warn("cached snapshot unreadable", "project", projectID)
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warn("snapshot cache get", "error", err, "project", projectID)
	}

	metrics.CacheMissesTotal.Inc()
	snap, err := c.Store.LatestSnapshot(ctx, projectID)
	if err != nil {
		return Snapshot{}, err
	}
	c.put(ctx, snap)
	return snap, nil
}

func (c *Cached) SaveSnapshot(ctx context.Context, id, projectID string, doc []byte) (Snapshot, error) {
	snap, err := c.Store.SaveSnapshot(ctx, id, projectID, doc)
	if err != nil {
		return Snapshot{}, err
	}
	c.put(ctx, snap)
	return snap, nil
}

func (c *Cached) DeleteProject(ctx context.Context, id string) error {
	if err := c.rc.Del(ctx, snapshotKey(id)).Err(); err != nil {
		c.log.Warn("snapshot cache del", "error", err, "project", id)
	}
	return c.Store.DeleteProject(ctx, id)
}

func (c *Cached) Close() error {
	err := c.Store.Close()
	if cerr := c.rc.Close(); err == nil {
		err = cerr
	}
	return err
}

func (c *Cached) put(ctx context.Context, snap Snapshot) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := c.rc.Set(ctx, snapshotKey(snap.ProjectID), raw, c.ttl).Err(); err != nil {
		c.log.Warn("snapshot cache set", "error", err, "project", snap.ProjectID)
	}
}
