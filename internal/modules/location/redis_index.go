// README: Driver position index backed by Redis GEO. Revisions live in a hash
// beside the GEO set so that replicas sharing the key never regress a driver.
package location

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/unrecano/taxi24/internal/modules/driver"
	"github.com/unrecano/taxi24/internal/types"
)

const DefaultGeoKey = "taxi24:drivers:geo"

// Redis measures with a slightly larger earth radius and stores positions as
// 52-bit geohashes, so searches are widened to keep every true match.
const (
	radiusSlack    = 1.01
	radiusSlackAbs = 0.01 // km
)

// KEYS: geo set, revision hash. ARGV: id, lng, lat, rev.
var upsertScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[2], ARGV[1])
if cur and tonumber(cur) > tonumber(ARGV[4]) then
	return 0
end
redis.call('GEOADD', KEYS[1], ARGV[2], ARGV[3], ARGV[1])
redis.call('HSET', KEYS[2], ARGV[1], ARGV[4])
return 1
`)

// KEYS: watermark. ARGV: rev.
var markScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if (not cur) or tonumber(ARGV[1]) > tonumber(cur) then
	redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

type RedisIndex struct {
	redis   *redis.Client
	key     string
	revKey  string
	markKey string
}

var _ driver.Index = (*RedisIndex)(nil)

func NewRedisIndex(client *redis.Client, key string) *RedisIndex {
	if key == "" {
		key = DefaultGeoKey
	}
	return &RedisIndex{
		redis:   client,
		key:     key,
		revKey:  key + ":rev",
		markKey: key + ":synced",
	}
}

func (x *RedisIndex) Upsert(ctx context.Context, id types.ID, p types.Point, rev int64) error {
	err := upsertScript.Run(ctx, x.redis, []string{x.key, x.revKey}, string(id), p.Lng, p.Lat, rev).Err()
	if err != nil {
		return fmt.Errorf("geoadd %s: %w", id, err)
	}
	return nil
}

func (x *RedisIndex) MarkSynced(ctx context.Context, rev int64) error {
	if err := markScript.Run(ctx, x.redis, []string{x.markKey}, rev).Err(); err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	return nil
}

// Candidates returns the ids stored within a slightly widened radius of p,
// nearest first, together with the watermark read in the same transaction.
func (x *RedisIndex) Candidates(ctx context.Context, p types.Point, radiusKm float64) (driver.Hits, error) {
	var (
		search *redis.StringSliceCmd
		mark   *redis.StringCmd
	)
	_, err := x.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		search = pipe.GeoSearch(ctx, x.key, &redis.GeoSearchQuery{
			Longitude:  p.Lng,
			Latitude:   p.Lat,
			Radius:     radiusKm*radiusSlack + radiusSlackAbs,
			RadiusUnit: "km",
			Sort:       "ASC",
		})
		mark = pipe.Get(ctx, x.markKey)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return driver.Hits{}, fmt.Errorf("geosearch: %w", err)
	}

	results, err := search.Result()
	if err != nil {
		return driver.Hits{}, fmt.Errorf("geosearch: %w", err)
	}
	hits := driver.Hits{IDs: make([]types.ID, len(results))}
	for i, r := range results {
		hits.IDs[i] = types.ID(r)
	}

	watermark, err := mark.Int64()
	switch {
	case errors.Is(err, redis.Nil):
		return hits, nil
	case err != nil:
		return driver.Hits{}, fmt.Errorf("read watermark: %w", err)
	}
	hits.Watermark = watermark
	hits.Synced = true
	return hits, nil
}
