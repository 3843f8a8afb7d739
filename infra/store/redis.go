package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kilianp07/fleetpulse/core/model"
	"github.com/kilianp07/fleetpulse/core/vehiclestate"
)

// maxGeoLatitude is the polar limit of Redis geo indexes.
const maxGeoLatitude = 85.05112878

// RedisConfig configures the Redis connection.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Prefix   string `json:"prefix"`
	// TTLSeconds expires vehicles that stop reporting; 0 keeps them forever.
	TTLSeconds int `json:"ttl_seconds"`
}

// RedisStore keeps the latest vehicle states in Redis. Each vehicle is a JSON
// string under <prefix>:vehicle:<id>, the ids live in the <prefix>:vehicles
// set and positions of valid vehicles in the <prefix>:geo index. Vehicles
// beyond the polar limit of GEOADD are stored but not indexed.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var (
	_ vehiclestate.Store   = (*RedisStore)(nil)
	_ vehiclestate.Locator = (*RedisStore)(nil)
)

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "fleetpulse"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: time.Duration(cfg.TTLSeconds) * time.Second}, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) vehicleKey(id string) string { return fmt.Sprintf("%s:vehicle:%s", r.prefix, id) }
func (r *RedisStore) indexKey() string            { return r.prefix + ":vehicles" }
func (r *RedisStore) geoKey() string              { return r.prefix + ":geo" }

// Upsert writes every state in a single pipeline.
func (r *RedisStore) Upsert(ctx context.Context, runID string, at time.Time, recs []model.AnnotatedRecord) error {
	pipe := r.client.Pipeline()
	n := 0
	for _, rec := range recs {
		if rec.ID == "" {
			continue
		}
		st := vehiclestate.State{VehicleID: rec.ID, RunID: runID, UpdatedAt: at, Record: rec}
		data, err := json.Marshal(st)
		if err != nil {
			return fmt.Errorf("failed to marshal state: %w", err)
		}
		pipe.Set(ctx, r.vehicleKey(rec.ID), data, r.ttl)
		pipe.SAdd(ctx, r.indexKey(), rec.ID)
		if rec.Valid() && math.Abs(rec.Latitude) <= maxGeoLatitude {
			pipe.GeoAdd(ctx, r.geoKey(), &redis.GeoLocation{
				Name:      rec.ID,
				Longitude: rec.Longitude,
				Latitude:  rec.Latitude,
			})
		} else {
			pipe.ZRem(ctx, r.geoKey(), rec.ID)
		}
		n++
	}
	if n == 0 {
		return nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (vehiclestate.State, bool, error) {
	data, err := r.client.Get(ctx, r.vehicleKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return vehiclestate.State{}, false, nil
	}
	if err != nil {
		return vehiclestate.State{}, false, fmt.Errorf("redis get state failed: %w", err)
	}
	var st vehiclestate.State
	if err := json.Unmarshal(data, &st); err != nil {
		return vehiclestate.State{}, false, fmt.Errorf("decode state %s: %w", id, err)
	}
	return st, true, nil
}

// List reads every indexed vehicle. Ids whose key expired are pruned from the
// index and the geo index.
func (r *RedisStore) List(ctx context.Context, f vehiclestate.Filter) ([]vehiclestate.State, error) {
	ids, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list vehicles failed: %w", err)
	}
	if len(ids) == 0 {
		return []vehiclestate.State{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.vehicleKey(id)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget failed: %w", err)
	}
	res := make([]vehiclestate.State, 0, len(vals))
	var stale []any
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var st vehiclestate.State
		if err := json.Unmarshal([]byte(s), &st); err != nil {
			return nil, fmt.Errorf("decode state %s: %w", ids[i], err)
		}
		if f.Match(st) {
			res = append(res, st)
		}
	}
	if len(stale) > 0 {
		r.client.SRem(ctx, r.indexKey(), stale...)
		r.client.ZRem(ctx, r.geoKey(), stale...)
	}
	vehiclestate.SortByID(res)
	return res, nil
}

// Nearby returns the ids of valid vehicles within radiusKm of pos, nearest first.
func (r *RedisStore) Nearby(ctx context.Context, pos model.Position, radiusKm float64) ([]string, error) {
	locs, err := r.client.GeoSearch(ctx, r.geoKey(), &redis.GeoSearchQuery{
		Longitude:  pos.Lon,
		Latitude:   pos.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis geosearch failed: %w", err)
	}
	if r.ttl <= 0 || len(locs) == 0 {
		return locs, nil
	}
	return r.dropExpired(ctx, locs)
}

// dropExpired removes ids whose vehicle key has expired, pruning them from the
// geo index as it goes.
func (r *RedisStore) dropExpired(ctx context.Context, ids []string) ([]string, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.vehicleKey(id)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget failed: %w", err)
	}
	live := make([]string, 0, len(ids))
	var stale []any
	for i, v := range vals {
		if v == nil {
			stale = append(stale, ids[i])
			continue
		}
		live = append(live, ids[i])
	}
	if len(stale) > 0 {
		r.client.ZRem(ctx, r.geoKey(), stale...)
		r.client.SRem(ctx, r.indexKey(), stale...)
	}
	return live, nil
}
