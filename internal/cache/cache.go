// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

// Package cache provides the content-addressed recommendation cache: a
// deterministic fingerprint over provider, mode and profile summary maps
// to a previously computed result set with a TTL.
//
// Storage is two-tiered: a short-lived in-process LRU absorbs bursts of
// identical lookups, backed by a durable badger store that survives
// restarts. Expiry is lazy on both tiers; no background sweep runs.
package cache

import (
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"github.com/resonarr/resonarr/internal/metrics"
	"github.com/resonarr/resonarr/internal/models"
)

const keyPrefix = "rec:"

// Options tune the in-process front tier.
type Options struct {
	// FrontSize is the LRU capacity. Default 256.
	FrontSize int

	// FrontTTL bounds how long a front entry is served without
	// consulting the durable tier. Default 30s.
	FrontTTL time.Duration
}

// Cache is the recommendation result cache. Safe for concurrent use.
type Cache struct {
	front  *lru.LRU[string, []models.Recommendation]
	db     *badger.DB
	logger zerolog.Logger
}

// New creates a cache on top of an open badger DB.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func New(db *badger.DB, opts Options, logger zerolog.Logger) *Cache {
	if opts.FrontSize <= 0 {
		opts.FrontSize = 256
	}
	if opts.FrontTTL <= 0 {
		opts.FrontTTL = 30 * time.Second
	}
	return &Cache{
		front:  lru.NewLRU[string, []models.Recommendation](opts.FrontSize, nil, opts.FrontTTL),
		db:     db,
		logger: logger.With().Str("component", "cache").Logger(),
	}
}

// TryGet returns the cached result set for a fingerprint, if present and
// unexpired. Cached items are returned verbatim; they were validated and
// enriched before being stored.
func (c *Cache) TryGet(fingerprint string) ([]models.Recommendation, bool) {
	if items, ok := c.front.Get(fingerprint); ok {
		metrics.CacheHits.WithLabelValues("memory").Inc()
		return items, true
	}

	var items []models.Recommendation
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + fingerprint))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &items)
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			c.logger.Warn().Err(err).Str("fingerprint", fingerprint).Msg("cache read failed")
		}
		metrics.CacheMisses.Inc()
		return nil, false
	}

	c.front.Add(fingerprint, items)
	metrics.CacheHits.WithLabelValues("disk").Inc()
	return items, true
}

// Set stores a result set under a fingerprint with the given TTL. Entries
// are replaced wholesale and evicted lazily by the store on expiry.
func (c *Cache) Set(fingerprint string, items []models.Recommendation, ttl time.Duration) error {
	val, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(keyPrefix+fingerprint), val).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}

	c.front.Add(fingerprint, items)
	c.logger.Debug().
		Str("fingerprint", fingerprint).
		Int("items", len(items)).
		Dur("ttl", ttl).
		Msg("cache entry written")
	return nil
}

// Invalidate drops one fingerprint from both tiers.
func (c *Cache) Invalidate(fingerprint string) error {
	c.front.Remove(fingerprint)
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + fingerprint))
	})
}
