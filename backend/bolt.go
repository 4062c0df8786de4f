package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"go.etcd.io/bbolt"
)

var objectsBucket = []byte("objects")

// Bolt implements Backend on a single bbolt database file. It suits local
// development where the cache record and a handful of images fit in one file.
type Bolt struct {
	db      *bbolt.DB
	baseURL string
}

// OpenBolt opens (or creates) the database at path.
func OpenBolt(path, baseURL string) (*Bolt, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(objectsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &Bolt{db: db, baseURL: baseURL}, nil
}

// Close closes the database.
func (b *Bolt) Close() error {
	return b.db.Close()
}

// Write stores data at key in a single transaction.
func (b *Bolt) Write(ctx context.Context, key string, r io.Reader, _ ...WriteOption) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading data: %w", err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(objectsBucket).Put([]byte(key), data)
	})
}

// Read returns a copy of the value at key; bbolt memory is only valid inside
// the transaction.
func (b *Bolt) Read(ctx context.Context, key string) (io.ReadCloser, error) {
	var data []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(objectsBucket).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		data = bytes.Clone(v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes key. Deleting a missing key is not an error.
func (b *Bolt) Delete(ctx context.Context, key string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(objectsBucket).Delete([]byte(key))
	})
}

// URL returns the served address of key.
func (b *Bolt) URL(key string) string {
	return joinURL(b.baseURL, key)
}

var _ Backend = (*Bolt)(nil)
