// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

package library

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"github.com/resonarr/resonarr/internal/models"
)

// defaultParallelThreshold is the combined entity count at which style
// aggregation switches from the sequential to the parallel path.
const defaultParallelThreshold = 64

// taggedEntity pairs a tag-index entity key with its extracted tags.
// Extraction happens on the calling goroutine before any fan-out because
// the underlying host metadata is lazily materialized and not safe for
// concurrent first access.
type taggedEntity struct {
	key  string
	tags []string
}

// buildStyleContext produces the per-entity style-tag index. The parallel
// and sequential paths must produce identical contexts for the same input;
// parallelism is a performance optimization, not a behavior change.
func (a *Analyzer) buildStyleContext(ctx context.Context, artists []models.Artist, albums []models.Album) *models.StyleContext {
	sc, entities := extractEntityTags(artists, albums)

	if len(entities) < a.parallelThreshold {
		aggregateSequential(sc, entities)
	} else {
		a.aggregateParallel(ctx, sc, entities)
	}

	sc.Finalize()
	return sc
}

// extractEntityTags runs per-entity tag extraction single-threaded and
// resolves album fallback against the completed artist-tag snapshot, so
// the aggregation phase never reads a mutable shared map.
func extractEntityTags(artists []models.Artist, albums []models.Album) (*models.StyleContext, []taggedEntity) {
	sc := models.NewStyleContext()
	entities := make([]taggedEntity, 0, len(artists)+len(albums))

	for i := range artists {
		tags := extractArtistGenres(&artists[i])
		sort.Strings(tags)
		sc.ArtistTags[artists[i].ID] = tags
		entities = append(entities, taggedEntity{key: models.ArtistKey(artists[i].ID), tags: tags})
	}

	// Artist tags are complete here; album fallback reads that snapshot.
	for i := range albums {
		tags := extractAlbumGenres(&albums[i])
		if len(tags) == 0 {
			tags = sc.ArtistTags[albums[i].ArtistID]
		}
		sorted := make([]string, len(tags))
		copy(sorted, tags)
		sort.Strings(sorted)
		sc.AlbumTags[albums[i].ID] = sorted
		entities = append(entities, taggedEntity{key: models.AlbumKey(albums[i].ID), tags: sorted})
	}

	return sc, entities
}

// aggregateSequential accumulates tag coverage and the tag index in one pass.
func aggregateSequential(sc *models.StyleContext, entities []taggedEntity) {
	for _, e := range entities {
		for _, tag := range e.tags {
			sc.Coverage[tag]++
			sc.TagIndex[tag] = append(sc.TagIndex[tag], e.key)
		}
	}
}

// aggregateParallel fans the pure set aggregation out across workers.
// Each worker accumulates into thread-local maps and merges into the
// shared maps once per partition, under one lock per shared map.
func (a *Analyzer) aggregateParallel(ctx context.Context, sc *models.StyleContext, entities []taggedEntity) {
	workers := runtime.NumCPU()
	if workers > len(entities) {
		workers = len(entities)
	}
	chunk := (len(entities) + workers - 1) / workers

	var (
		coverageMu sync.Mutex
		indexMu    sync.Mutex
		wg         sync.WaitGroup
	)

	for start := 0; start < len(entities); start += chunk {
		end := start + chunk
		if end > len(entities) {
			end = len(entities)
		}

		wg.Add(1)
		go func(part []taggedEntity) {
			defer wg.Done()

			localCoverage := make(map[string]int)
			localIndex := make(map[string][]string)
			for _, e := range part {
				if ctx.Err() != nil {
					break
				}
				for _, tag := range e.tags {
					localCoverage[tag]++
					localIndex[tag] = append(localIndex[tag], e.key)
				}
			}

			coverageMu.Lock()
			for tag, n := range localCoverage {
				sc.Coverage[tag] += n
			}
			coverageMu.Unlock()

			indexMu.Lock()
			for tag, keys := range localIndex {
				sc.TagIndex[tag] = append(sc.TagIndex[tag], keys...)
			}
			indexMu.Unlock()
		}(entities[start:end])
	}

	wg.Wait()
}
