// README: Read-through order cache backed by Redis.
package order

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"wali/internal/types"
)

const cacheKeyPrefix = "order:"

// setIfNewer keeps the cached entry when it already holds a later version.
// KEYS[1] key, ARGV[1] payload, ARGV[2] version, ARGV[3] ttl in ms.
var setIfNewer = redis.NewScript(`
local cur = redis.call("GET", KEYS[1])
if cur then
  local ok, decoded = pcall(cjson.decode, cur)
  if ok and type(decoded) == "table" and tonumber(decoded.version) and tonumber(decoded.version) > tonumber(ARGV[2]) then
    return 0
  end
end
if tonumber(ARGV[3]) > 0 then
  redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
else
  redis.call("SET", KEYS[1], ARGV[1])
end
return 1
`)

type RedisCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisCache(redis *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{redis: redis, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, id types.ID) (*Order, bool, error) {
	raw, err := c.redis.Get(ctx, cacheKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var o Order
	if err := json.Unmarshal(raw, &o); err != nil {
		// drop the unreadable entry so the next read repopulates it
		_ = c.redis.Del(ctx, cacheKey(id)).Err()
		return nil, false, err
	}
	return &o, true, nil
}

func (c *RedisCache) Set(ctx context.Context, o *Order) error {
	raw, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return setIfNewer.Run(ctx, c.redis, []string{cacheKey(o.ID)}, raw, o.Version, c.ttl.Milliseconds()).Err()
}

func cacheKey(id types.ID) string {
	return cacheKeyPrefix + string(id)
}
