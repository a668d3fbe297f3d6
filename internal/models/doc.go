// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

// Package models defines the shared value types of the recommendation
// pipeline: candidate recommendations, library entities, the derived
// library profile and style context, and review queue items.
//
// The package has no dependencies on other internal packages so that
// every pipeline stage can exchange values without import cycles.
package models
