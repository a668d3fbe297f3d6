// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

// Package prompt renders a library profile and fetch settings into a
// backend-agnostic natural-language request. Library entities are sampled
// under a token budget so large collections do not blow the context
// window of smaller models.
package prompt

import (
	"fmt"
	"strings"

	"github.com/resonarr/resonarr/internal/models"
)

// Rough chars-per-token heuristic used for budget accounting.
const charsPerToken = 4

// Builder renders recommendation prompts.
type Builder struct {
	// TokenBudget caps the approximate prompt size. Zero means the
	// default budget.
	TokenBudget int
}

// DefaultTokenBudget bounds the rendered prompt for typical chat models.
const DefaultTokenBudget = 2000

// Request carries everything the builder needs for one rendering.
type Request struct {
	Profile    *models.LibraryProfile
	Mode       models.Mode
	Count      int
	ArtistOnly bool

	// Exclude lists artists or "artist - album" pairs the backend must
	// steer away from: library content plus already-accepted items.
	Exclude []string
}

// NewBuilder creates a prompt builder with the default token budget.
func NewBuilder() *Builder {
	return &Builder{TokenBudget: DefaultTokenBudget}
}

// Build renders the natural-language request. The output instructs the
// backend to answer with a strict JSON array so responses stay parseable
// across vendors.
func (b *Builder) Build(req Request) string {
	budget := b.TokenBudget
	if budget <= 0 {
		budget = DefaultTokenBudget
	}

	var sb strings.Builder
	if req.ArtistOnly {
		fmt.Fprintf(&sb, "Recommend exactly %d music artists", req.Count)
	} else {
		fmt.Fprintf(&sb, "Recommend exactly %d music albums", req.Count)
	}
	sb.WriteString(" for a listener with the collection described below.\n\n")

	b.writeModeInstruction(&sb, req.Mode)
	b.writeProfile(&sb, req.Profile, budget)
	b.writeExclusions(&sb, req.Exclude, budget)
	b.writeOutputContract(&sb, req.ArtistOnly)

	return sb.String()
}

func (b *Builder) writeModeInstruction(sb *strings.Builder, mode models.Mode) {
	switch mode {
	case models.ModeSimilar:
		sb.WriteString("Stay close to the listener's established taste.\n")
	case models.ModeAdjacent:
		sb.WriteString("Favor artists adjacent to the listener's taste: related scenes, collaborators, shared labels.\n")
	case models.ModeExploratory:
		sb.WriteString("Be adventurous: introduce styles the listener does not already own, while staying plausible given their taste.\n")
	}
}

// writeProfile emits the collection summary, spending at most half of the
// remaining budget on entity lists.
func (b *Builder) writeProfile(sb *strings.Builder, profile *models.LibraryProfile, budget int) {
	if profile == nil {
		return
	}

	fmt.Fprintf(sb, "\nCollection: %d artists, %d albums.\n", profile.TotalArtists, profile.TotalAlbums)

	if era, ok := profile.Metadata[models.MetaEra].(string); ok && era != "Unknown" {
		fmt.Fprintf(sb, "Era focus: %s.\n", era)
	}
	if style, ok := profile.Metadata[models.MetaCollectionStyle].(string); ok {
		fmt.Fprintf(sb, "Collector style: %s.\n", style)
	}
	if div, ok := profile.Metadata[models.MetaGenreDiversity].(float64); ok {
		fmt.Fprintf(sb, "Genre diversity: %.2f of 1.00.\n", div)
	}

	if len(profile.TopGenres) > 0 {
		names := make([]string, 0, len(profile.TopGenres))
		for _, g := range profile.TopGenres {
			names = append(names, g.Name)
		}
		fmt.Fprintf(sb, "Top genres: %s.\n", strings.Join(names, ", "))
	}

	entityBudget := (budget*charsPerToken - sb.Len()) / 2
	if artists := sampleList(profile.TopArtists, entityBudget); len(artists) > 0 {
		fmt.Fprintf(sb, "Representative artists: %s.\n", strings.Join(artists, ", "))
	}
	if profile.Styles != nil && len(profile.Styles.Dominant) > 0 {
		fmt.Fprintf(sb, "Dominant style tags: %s.\n", strings.Join(profile.Styles.Dominant, ", "))
	}
	if len(profile.RecentlyAdded) > 0 {
		fmt.Fprintf(sb, "Recently added: %s.\n", strings.Join(profile.RecentlyAdded, ", "))
	}
}

// writeExclusions emits the do-not-repeat list, truncated to the budget.
func (b *Builder) writeExclusions(sb *strings.Builder, exclude []string, budget int) {
	if len(exclude) == 0 {
		return
	}
	remaining := budget*charsPerToken - sb.Len()
	sampled := sampleList(exclude, remaining)
	if len(sampled) == 0 {
		return
	}
	fmt.Fprintf(sb, "\nDo not recommend any of the following, the listener already has or refused them:\n%s\n",
		strings.Join(sampled, "; "))
}

func (b *Builder) writeOutputContract(sb *strings.Builder, artistOnly bool) {
	sb.WriteString("\nRespond with only a JSON array, no prose. Each element must have:\n")
	if artistOnly {
		sb.WriteString(`{"artist": string, "genre": string, "confidence": number 0..1, "reason": string}`)
	} else {
		sb.WriteString(`{"artist": string, "album": string, "year": number, "genre": string, "confidence": number 0..1, "reason": string}`)
	}
	sb.WriteString("\nOrder by confidence descending.\n")
}

// sampleList takes items from the front of the list until the character
// budget is spent. The input order already ranks by importance.
func sampleList(items []string, charBudget int) []string {
	if charBudget <= 0 {
		return nil
	}
	var out []string
	used := 0
	for _, item := range items {
		cost := len(item) + 2
		if used+cost > charBudget {
			break
		}
		out = append(out, item)
		used += cost
	}
	return out
}
