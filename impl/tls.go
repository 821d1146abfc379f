package impl

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/caddyserver/certmagic"
	"github.com/libdns/porkbun"
	"github.com/redis/go-redis/v9"

	"manualpilot/canvas/internal/store"
)

const (
	certPrefix = "canvas:tls:"
	lockPrefix = "canvas:tls-lock:"
)

// certStorage hands certmagic the same redis hashes the canvas store uses, so
// every relay instance serves one certificate. Locks go through redislock.
type certStorage struct {
	keys   *store.Redis
	locker *redislock.Client
	held   sync.Map
}

var _ certmagic.Storage = (*certStorage)(nil)

func newCertStorage(rdb *redis.Client) *certStorage {
	return &certStorage{
		keys:   store.NewRedisPrefix(rdb, certPrefix),
		locker: redislock.New(rdb),
	}
}

// certmagic only understands fs.ErrNotExist for missing keys.
func notExist(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fs.ErrNotExist
	}
	return err
}

func (c *certStorage) Lock(ctx context.Context, name string) error {
	lock, err := c.locker.Obtain(ctx, lockPrefix+name, time.Minute, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(time.Second),
	})
	if err != nil {
		return fmt.Errorf("lock %v: %w", name, err)
	}

	c.held.Store(name, lock)
	return nil
}

func (c *certStorage) Unlock(ctx context.Context, name string) error {
	lock, ok := c.held.LoadAndDelete(name)
	if !ok {
		return fmt.Errorf("unlock %v: not held", name)
	}

	return lock.(*redislock.Lock).Release(ctx)
}

func (c *certStorage) Store(ctx context.Context, key string, value []byte) error {
	return c.keys.Put(ctx, key, value)
}

func (c *certStorage) Load(ctx context.Context, key string) ([]byte, error) {
	b, err := c.keys.Get(ctx, key)
	return b, notExist(err)
}

func (c *certStorage) Delete(ctx context.Context, key string) error {
	return c.keys.Delete(ctx, key)
}

func (c *certStorage) Exists(ctx context.Context, key string) bool {
	ok, err := c.keys.Exists(ctx, key)
	return err == nil && ok
}

func (c *certStorage) List(ctx context.Context, prefix string, recursive bool) ([]string, error) {
	return c.keys.List(ctx, prefix, recursive)
}

func (c *certStorage) Stat(ctx context.Context, key string) (certmagic.KeyInfo, error) {
	info, err := c.keys.Stat(ctx, key)
	if err != nil {
		return certmagic.KeyInfo{}, notExist(err)
	}

	return certmagic.KeyInfo{
		Key:        key,
		Modified:   info.Modified,
		Size:       info.Size,
		IsTerminal: true,
	}, nil
}

// TLSConfig obtains a certificate for domain with a DNS-01 challenge against
// porkbun and keeps it in redis.
func TLSConfig(domain, apiKey, apiSecret string, rdb *redis.Client) (*tls.Config, error) {
	certmagic.DefaultACME.DNS01Solver = &certmagic.DNS01Solver{
		DNSProvider: &porkbun.Provider{
			APIKey:       apiKey,
			APISecretKey: apiSecret,
		},
	}

	certmagic.Default.Storage = newCertStorage(rdb)

	return certmagic.TLS([]string{domain})
}
