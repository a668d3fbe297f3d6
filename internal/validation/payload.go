// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

package validation

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/resonarr/resonarr/internal/models"
)

// SanitizerVersion is bumped whenever sanitization or filtering logic
// changes, so previously cached result sets are invalidated.
const SanitizerVersion = 2

// recommendationSchema constrains one provider response element.
const recommendationSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["artist"],
    "properties": {
      "artist": {"type": "string", "minLength": 1},
      "album": {"type": "string"},
      "year": {"type": "integer"},
      "genre": {"type": "string"},
      "confidence": {"type": "number"},
      "reason": {"type": "string"},
      "artist_mbid": {"type": "string"},
      "album_mbid": {"type": "string"}
    }
  }
}`

var payloadSchema = jsonschema.MustCompileString("recommendations.json", recommendationSchema)

// ParsePayload sanitizes a raw model response and returns the decoded
// recommendation list. Models often wrap JSON in markdown fences or lead
// with prose; everything outside the outermost array is discarded.
func ParsePayload(raw string) ([]models.Recommendation, error) {
	doc := sanitizePayload(raw)
	if doc == "" {
		return nil, fmt.Errorf("no JSON array in provider response")
	}

	var generic any
	if err := json.Unmarshal([]byte(doc), &generic); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}
	if err := payloadSchema.Validate(generic); err != nil {
		return nil, fmt.Errorf("provider response schema: %w", err)
	}

	var items []models.Recommendation
	if err := json.Unmarshal([]byte(doc), &items); err != nil {
		return nil, fmt.Errorf("decode recommendations: %w", err)
	}
	return items, nil
}

// sanitizePayload strips markdown fences and any prose surrounding the
// outermost JSON array.
func sanitizePayload(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
