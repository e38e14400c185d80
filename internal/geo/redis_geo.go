package geo

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Mrigank923/Voy/internal/models"
)

// RedisGeo mirrors the in-process index into Redis GEO commands so other
// processes (analytics, the consumer's readiness probe, future shards) can
// see the live fleet. It is written by the consumer, not by the engine's hot
// path.
type RedisGeo struct {
	client *redis.Client
	key    string
}

func NewRedisGeo(addr, password, key string) *RedisGeo {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisGeo{client: c, key: key}
}

func (r *RedisGeo) Upsert(ctx context.Context, e Entry) error {
	if _, err := r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{
		Longitude: e.Loc.Lon,
		Latitude:  e.Loc.Lat,
		Name:      e.DriverID,
	}).Result(); err != nil {
		return err
	}
	return r.client.HSet(ctx, metaKey(e.DriverID), map[string]interface{}{
		"class":   string(e.Class),
		"updated": e.UpdatedAt.Format(time.RFC3339Nano),
	}).Err()
}

func (r *RedisGeo) Remove(ctx context.Context, driverID string) error {
	if err := r.client.ZRem(ctx, r.key, driverID).Err(); err != nil {
		return err
	}
	return r.client.Del(ctx, metaKey(driverID)).Err()
}

// Nearby returns driver IDs within radiusM of p, nearest first.
func (r *RedisGeo) Nearby(ctx context.Context, p models.Coord, radiusM float64, limit int) ([]string, error) {
	return r.client.GeoSearch(ctx, r.key, &redis.GeoSearchQuery{
		Longitude:  p.Lon,
		Latitude:   p.Lat,
		Radius:     radiusM,
		RadiusUnit: "m",
		Sort:       "ASC",
		Count:      limit,
	}).Result()
}

func (r *RedisGeo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisGeo) Close() error { return r.client.Close() }

func metaKey(id string) string { return "driver:meta:" + id }
