package store

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var bucket = []byte("canvas")

// Bolt stores values in a single bbolt bucket.
type Bolt struct {
	db *bbolt.DB
}

var _ Store = (*Bolt)(nil)

func OpenBolt(path string) (*Bolt, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open %v: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Bolt{db: db}, nil
}

func (b *Bolt) Put(ctx context.Context, key string, value []byte) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), value)
	})
}

func (b *Bolt) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucket).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}

		// v is only valid inside the transaction
		value = append([]byte(nil), v...)
		return nil
	})

	return value, err
}

func (b *Bolt) Close() error {
	return b.db.Close()
}
