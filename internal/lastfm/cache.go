// Resonate - Music Track Recommendation Service
// Copyright 2026 Eve Rolfe (everolfe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/everolfe/resonate

package lastfm

import (
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/everolfe/resonate/internal/models"
)

// Cache stores provider responses in Badger with a TTL. An empty path
// opens an in-memory store, which is the default and also what tests
// use.
type Cache struct {
	db  *badger.DB
	ttl time.Duration
}

// NewCache opens the cache at path. TTL of zero disables expiry.
func NewCache(path string, ttl time.Duration, logger zerolog.Logger) (*Cache, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(nil).
		WithIndexCacheSize(16 << 20)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open provider cache: %w", err)
	}
	logger.Debug().Str("path", path).Dur("ttl", ttl).Msg("provider cache opened")
	return &Cache{db: db, ttl: ttl}, nil
}

// Get returns the cached descriptor for key, or false on miss or decode
// failure.
func (c *Cache) Get(key string) (*models.TrackDescriptor, bool) {
	var d models.TrackDescriptor
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &d)
		})
	})
	if err != nil {
		return nil, false
	}
	return &d, true
}

// Put stores a descriptor under key with the cache TTL.
func (c *Cache) Put(key string, d *models.TrackDescriptor) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), data)
		if c.ttl > 0 {
			entry = entry.WithTTL(c.ttl)
		}
		return txn.SetEntry(entry)
	})
}

// Close releases the underlying store.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	if err := c.db.Close(); err != nil && !errors.Is(err, badger.ErrDBClosed) {
		return err
	}
	return nil
}
