// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

package cache

import (
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

// OpenStore opens the shared badger store used by the recommendation
// cache and the review queue. An empty dir opens an in-memory store,
// which tests rely on.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func OpenStore(dir string, logger zerolog.Logger) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(badgerLogger{logger.With().Str("component", "badger").Logger()})
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return db, nil
}

// badgerLogger adapts badger's logger interface onto zerolog.
type badgerLogger struct {
	l zerolog.Logger
}

func (b badgerLogger) Errorf(format string, args ...any)   { b.l.Error().Msgf(format, args...) }
func (b badgerLogger) Warningf(format string, args ...any) { b.l.Warn().Msgf(format, args...) }
func (b badgerLogger) Infof(format string, args ...any)    { b.l.Debug().Msgf(format, args...) }
func (b badgerLogger) Debugf(format string, args ...any)   { b.l.Debug().Msgf(format, args...) }
