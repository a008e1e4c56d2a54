package embedding

import (
	"context"
	"encoding/binary"
	"math"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCache is the optional distributed cache backend, used instead of
// the in-process LRU when REDIS_ADDR is set. On any Redis error a read
// reports a miss and a write is dropped, so a Redis outage degrades to
// recomputation rather than failing the encode path; there is no fallback
// to the LRU.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache builds a Redis-backed Cache using the given connection
// options and key TTL.
func NewRedisCache(addr, password string, db int, ttl time.Duration) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]float32, bool) {
	raw, err := c.client.Get(ctx, "embedding:"+key).Bytes()
	if err != nil {
		return nil, false
	}
	return decodeFloat32Slice(raw), true
}

func (c *RedisCache) Set(ctx context.Context, key string, vector []float32) {
	c.client.Set(ctx, "embedding:"+key, encodeFloat32Slice(vector), c.ttl)
}

// Close releases the underlying Redis connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func encodeFloat32Slice(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.BigEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeFloat32Slice(raw []byte) []float32 {
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.BigEndian.Uint32(raw[i*4 : i*4+4]))
	}
	return out
}
