// README: Courier position store backed by Redis GEO and a last-seen hash.
package dispatch

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"wali/internal/types"
)

const (
	courierGeoKey  = "dispatch:couriers"
	courierSeenKey = "dispatch:couriers:seen"
)

type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

func (s *Store) SetPosition(ctx context.Context, c Courier) error {
	pipe := s.redis.TxPipeline()
	pipe.GeoAdd(ctx, courierGeoKey, &redis.GeoLocation{
		Name:      string(c.ID),
		Longitude: c.Position.Lng,
		Latitude:  c.Position.Lat,
	})
	pipe.HSet(ctx, courierSeenKey, string(c.ID), c.SeenAt.Unix())
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) Remove(ctx context.Context, id types.ID) error {
	pipe := s.redis.TxPipeline()
	pipe.ZRem(ctx, courierGeoKey, string(id))
	pipe.HDel(ctx, courierSeenKey, string(id))
	_, err := pipe.Exec(ctx)
	return err
}

// Nearby returns up to limit couriers within radiusKm of p, nearest first.
func (s *Store) Nearby(ctx context.Context, p types.Point, radiusKm float64, limit int) ([]Courier, error) {
	locs, err := s.redis.GeoSearchLocation(ctx, courierGeoKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  p.Lng,
			Latitude:   p.Lat,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
			Count:      limit,
		},
		WithCoord: true,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("dispatch: geo search: %w", err)
	}
	if len(locs) == 0 {
		return nil, nil
	}

	names := make([]string, len(locs))
	for i, l := range locs {
		names[i] = l.Name
	}
	seen, err := s.redis.HMGet(ctx, courierSeenKey, names...).Result()
	if err != nil {
		return nil, fmt.Errorf("dispatch: read last seen: %w", err)
	}

	out := make([]Courier, len(locs))
	for i, l := range locs {
		out[i] = Courier{
			ID:       types.ID(l.Name),
			Position: types.Point{Lat: l.Latitude, Lng: l.Longitude},
			SeenAt:   parseUnix(seen[i]),
		}
	}
	return out, nil
}

func parseUnix(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(n, 0).UTC()
}
