package store

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPrefix = "canvas:store:"

// Redis keeps each value in a hash next to its size and modification time.
// Every key lives under a prefix so several users can share one database.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

var _ Store = (*Redis)(nil)

// Info describes a stored value without loading it.
type Info struct {
	Modified time.Time
	Size     int64
}

func NewRedis(rdb *redis.Client) *Redis {
	return NewRedisPrefix(rdb, redisPrefix)
}

func NewRedisPrefix(rdb *redis.Client, prefix string) *Redis {
	return &Redis{rdb: rdb, prefix: prefix}
}

func (r *Redis) Put(ctx context.Context, key string, value []byte) error {
	hashmap := map[string]any{
		"modified": time.Now().Unix(),
		"data":     base64.RawURLEncoding.EncodeToString(value),
		"size":     len(value),
	}

	if err := r.rdb.HSet(ctx, r.prefix+key, hashmap).Err(); err != nil {
		return fmt.Errorf("store %v: %w", key, err)
	}

	return nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	res, err := r.rdb.HGet(ctx, r.prefix+key, "data").Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	return base64.RawURLEncoding.DecodeString(res)
}

func (r *Redis) Stat(ctx context.Context, key string) (Info, error) {
	info := Info{}

	res, err := r.rdb.HMGet(ctx, r.prefix+key, "modified", "size").Result()
	if err != nil {
		return info, err
	}

	modified, ok := res[0].(string)
	if !ok {
		return info, ErrNotFound
	}

	size, ok := res[1].(string)
	if !ok {
		return info, ErrNotFound
	}

	unix, err := strconv.ParseInt(modified, 10, 64)
	if err != nil {
		return info, fmt.Errorf("stat %v: %w", key, err)
	}

	info.Modified = time.Unix(unix, 0)
	if info.Size, err = strconv.ParseInt(size, 10, 64); err != nil {
		return info, fmt.Errorf("stat %v: %w", key, err)
	}

	return info, nil
}

func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.rdb.Exists(ctx, r.prefix+key).Result()
	return n > 0, err
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, r.prefix+key).Err()
}

// List returns the keys starting with prefix, or only prefix itself when it
// exists and recursive is false.
func (r *Redis) List(ctx context.Context, prefix string, recursive bool) ([]string, error) {
	pattern := r.prefix + prefix
	if recursive {
		pattern += "*"
	}

	keys, err := r.rdb.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, err
	}

	for i, key := range keys {
		keys[i] = strings.TrimPrefix(key, r.prefix)
	}

	return keys, nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
