// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

// Package reviewqueue persists borderline recommendations awaiting human
// disposition. Accepted items are drained into the next fetch; items
// marked never form a permanent negative-constraint set.
package reviewqueue

import (
	"errors"
	"fmt"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/resonarr/resonarr/internal/models"
)

const keyPrefix = "review:"

// ErrNotFound is returned when no queued item has the given ID.
var ErrNotFound = errors.New("review item not found")

// ErrInvalidStatus is returned for an unknown disposition.
var ErrInvalidStatus = errors.New("invalid review status")

// Queue is the badger-backed review queue for borderline recommendations.
// It implements validation.ReviewSink.
type Queue struct {
	db     *badger.DB
	logger zerolog.Logger
	now    func() time.Time
	newID  func() string
}

// NewQueue creates a review queue on the shared badger store.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewQueue(db *badger.DB, logger zerolog.Logger) *Queue {
	return &Queue{
		db:     db,
		logger: logger.With().Str("component", "reviewqueue").Logger(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Enqueue stores a borderline item as pending and returns its queue ID.
// Re-queueing an item that is already pending for the same reason returns
// the existing ID instead of growing the queue.
func (q *Queue) Enqueue(item models.Recommendation, reason string) (string, error) {
	existing, err := q.findPending(item.Key())
	if err != nil {
		return "", err
	}
	if existing != nil {
		return existing.ID, nil
	}

	now := q.now().UTC()
	queued := models.ReviewQueueItem{
		ID:             q.newID(),
		Recommendation: item,
		Reason:         reason,
		Status:         models.ReviewPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := q.put(queued); err != nil {
		return "", err
	}

	q.logger.Debug().
		Str("id", queued.ID).
		Str("item", item.String()).
		Str("reason", reason).
		Msg("queued for review")
	return queued.ID, nil
}

// MarkAccepted flips an item to accepted. Part of the ReviewSink contract;
// the fail-open promotion path calls this for items it pulls back.
func (q *Queue) MarkAccepted(id string) error {
	return q.SetStatus(id, models.ReviewAccepted)
}

// SetStatus transitions an item to the given disposition.
func (q *Queue) SetStatus(id string, status models.ReviewStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	item, err := q.Get(id)
	if err != nil {
		return err
	}
	item.Status = status
	item.UpdatedAt = q.now().UTC()
	return q.put(*item)
}

// Get returns a single queued item by ID.
func (q *Queue) Get(id string) (*models.ReviewQueueItem, error) {
	var item models.ReviewQueueItem
	err := q.db.View(func(txn *badger.Txn) error {
		entry, err := txn.Get([]byte(keyPrefix + id))
		if err != nil {
			return err
		}
		return entry.Value(func(val []byte) error {
			return json.Unmarshal(val, &item)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("review get: %w", err)
	}
	return &item, nil
}

// List returns queued items with the given status, oldest first. An empty
// status returns everything.
func (q *Queue) List(status models.ReviewStatus) ([]models.ReviewQueueItem, error) {
	var items []models.ReviewQueueItem
	err := q.scan(func(item models.ReviewQueueItem) {
		if status == "" || item.Status == status {
			items = append(items, item)
		}
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

// DrainAccepted removes all accepted items and returns their
// recommendations, for merging into the next fetch's result set.
func (q *Queue) DrainAccepted() ([]models.Recommendation, error) {
	accepted, err := q.List(models.ReviewAccepted)
	if err != nil {
		return nil, err
	}

	recs := make([]models.Recommendation, 0, len(accepted))
	err = q.db.Update(func(txn *badger.Txn) error {
		for _, item := range accepted {
			if err := txn.Delete([]byte(keyPrefix + item.ID)); err != nil {
				return err
			}
			recs = append(recs, item.Recommendation)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("review drain: %w", err)
	}

	if len(recs) > 0 {
		q.logger.Info().Int("count", len(recs)).Msg("drained accepted review items")
	}
	return recs, nil
}

// NeverKeys returns the permanent negative-constraint set: the Key() of
// every item marked never, for exclusion from future batches.
func (q *Queue) NeverKeys() (map[string]struct{}, error) {
	keys := make(map[string]struct{})
	err := q.scan(func(item models.ReviewQueueItem) {
		if item.Status == models.ReviewNever {
			keys[item.Recommendation.Key()] = struct{}{}
		}
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// PendingCount reports the current queue depth for metrics.
func (q *Queue) PendingCount() (int, error) {
	n := 0
	err := q.scan(func(item models.ReviewQueueItem) {
		if item.Status == models.ReviewPending {
			n++
		}
	})
	return n, err
}

func (q *Queue) findPending(key string) (*models.ReviewQueueItem, error) {
	var found *models.ReviewQueueItem
	err := q.scan(func(item models.ReviewQueueItem) {
		if found == nil && item.Status == models.ReviewPending && item.Recommendation.Key() == key {
			found = &item
		}
	})
	return found, err
}

func (q *Queue) put(item models.ReviewQueueItem) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("review marshal: %w", err)
	}
	err = q.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+item.ID), payload)
	})
	if err != nil {
		return fmt.Errorf("review put: %w", err)
	}
	return nil
}

func (q *Queue) scan(fn func(models.ReviewQueueItem)) error {
	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var item models.ReviewQueueItem
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &item)
			})
			if err != nil {
				return err
			}
			fn(item)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("review scan: %w", err)
	}
	return nil
}
