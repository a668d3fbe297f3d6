// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

// Package validation filters raw provider output into accepted
// recommendations. It has three stages:
//
//   - payload parsing: sanitize the model's text response and check it
//     against a JSON schema before unmarshalling
//   - batch validation: drop malformed items (missing artist, missing
//     album when albums are required, rejection-pattern matches) and
//     clamp confidence into [0, 1]
//   - safety gating: minimum-confidence and required-identifier gates,
//     with review-queue routing and artist-only fail-open promotion
//
// Validation never raises for malformed candidate data; bad items are
// filtered with a recorded reason.
package validation
