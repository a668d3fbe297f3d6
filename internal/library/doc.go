// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

// Package library analyzes the user's music collection into a statistical
// LibraryProfile: ranked genre histogram, top artists, temporal patterns,
// collection-depth classification, entropy-based genre diversity, and a
// per-entity style-tag index (StyleContext).
//
// Profiles are cached for a fixed TTL and rebuilt lazily. Analysis never
// fails the fetch workflow: collection read errors degrade to a fixed
// fallback profile.
package library
