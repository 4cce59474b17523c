// Package store persists the small pieces of per-user state that outlive an
// aggregation pass: last-seen markers and the set of already charged events.
package store

import (
	"context"
	"time"
)

// MarkerStore records, per notification base id, the newest source version
// the user has already seen.
type MarkerStore interface {
	LastSeen(ctx context.Context, baseID string) (time.Time, bool, error)
	// MarkSeen advances the marker; it never moves it backwards.
	MarkSeen(ctx context.Context, baseID string, at time.Time) error
}

// ChargedSet remembers which candidate status events a user already paid for.
type ChargedSet interface {
	IsCharged(ctx context.Context, userID, eventID string) (bool, error)
	MarkCharged(ctx context.Context, userID, eventID string) error
}
