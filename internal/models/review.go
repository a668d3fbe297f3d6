// Resonarr - AI-Powered Music Recommendations for Your Library
// Copyright 2026 Resonarr Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resonarr/resonarr

package models

import "time"

// ReviewStatus is the disposition of a queued borderline recommendation.
type ReviewStatus string

const (
	// ReviewPending awaits human disposition.
	ReviewPending ReviewStatus = "pending"
	// ReviewAccepted items are merged into the next fetch's result set.
	ReviewAccepted ReviewStatus = "accepted"
	// ReviewRejected items are discarded but may be suggested again.
	ReviewRejected ReviewStatus = "rejected"
	// ReviewNever is a permanent negative constraint.
	ReviewNever ReviewStatus = "never"
)

// Valid reports whether the status is a known value.
func (s ReviewStatus) Valid() bool {
	switch s {
	case ReviewPending, ReviewAccepted, ReviewRejected, ReviewNever:
		return true
	}
	return false
}

// ReviewQueueItem is a borderline recommendation held pending disposition.
// Status transitions are the only permitted mutation.
type ReviewQueueItem struct {
	ID             string         `json:"id"`
	Recommendation Recommendation `json:"recommendation"`

	// Reason records which gate the item failed.
	Reason string `json:"reason"`

	Status    ReviewStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}
