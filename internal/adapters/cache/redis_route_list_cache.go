package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"logiflow-service/internal/domain"
	"logiflow-service/internal/platform/obs"
	"logiflow-service/internal/ports"
)

const defaultSnapshotTTL = 10 * time.Minute

// RedisRouteListCache is a read-through snapshot cache in front of a
// RouteListRepository. The backing store stays authoritative: writes go to it
// first and the snapshot is refreshed afterwards. Redis failures degrade to
// the backing store and are only logged.
type RedisRouteListCache struct {
	Client *redis.Client
	Next   ports.RouteListRepository
	TTL    time.Duration
	Prefix string
}

func NewRedisRouteListCache(client *redis.Client, next ports.RouteListRepository) *RedisRouteListCache {
	return &RedisRouteListCache{
		Client: client,
		Next:   next,
		TTL:    defaultSnapshotTTL,
		Prefix: "routes:",
	}
}

func (c *RedisRouteListCache) key(routeKey string) string {
	return c.Prefix + routeKey
}

func (c *RedisRouteListCache) Load(
	ctx context.Context,
	routeKey string,
) (_ []domain.DeliveryRecord, _ bool, err error) {
	defer obs.Time(ctx, "routes.cache.Load")(&err)

	raw, err := c.Client.Get(ctx, c.key(routeKey)).Bytes()
	switch {
	case err == nil:
		list, derr := decodeSnapshot(raw)
		if derr == nil {
			return list, true, nil
		}
		slog.Warn("route cache: dropping undecodable snapshot", "route_key", routeKey, "err", derr)
		_ = c.Client.Del(ctx, c.key(routeKey)).Err()
	case !errors.Is(err, redis.Nil):
		slog.Warn("route cache: get failed", "route_key", routeKey, "err", err)
	}

	list, ok, err := c.Next.Load(ctx, routeKey)
	if err != nil || !ok {
		return list, ok, err
	}

	c.store(ctx, routeKey, list)
	return list, true, nil
}

func (c *RedisRouteListCache) Save(
	ctx context.Context,
	routeKey string,
	list []domain.DeliveryRecord,
) (err error) {
	defer obs.Time(ctx, "routes.cache.Save")(&err)

	if err := c.Next.Save(ctx, routeKey, list); err != nil {
		// The stored list is unknown now; never serve the old snapshot.
		_ = c.Client.Del(ctx, c.key(routeKey)).Err()
		return err
	}

	c.store(ctx, routeKey, list)
	return nil
}

func (c *RedisRouteListCache) store(ctx context.Context, routeKey string, list []domain.DeliveryRecord) {
	raw, err := encodeSnapshot(list)
	if err != nil {
		slog.Warn("route cache: encode snapshot", "route_key", routeKey, "err", err)
		return
	}
	if err := c.Client.Set(ctx, c.key(routeKey), raw, c.TTL).Err(); err != nil {
		slog.Warn("route cache: set failed", "route_key", routeKey, "err", err)
	}
}

// Snapshots reuse the JSON field names so both encodings describe the same record.
func encodeSnapshot(list []domain.DeliveryRecord) ([]byte, error) {
	if list == nil {
		list = []domain.DeliveryRecord{}
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(list); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeSnapshot(raw []byte) ([]domain.DeliveryRecord, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(raw))
	dec.SetCustomStructTag("json")

	list := []domain.DeliveryRecord{}
	if err := dec.Decode(&list); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return list, nil
}
