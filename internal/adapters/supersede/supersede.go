// Package supersede reconciles a freshly derived, versioned notification
// with the copies of it already present in the previous aggregate.
package supersede

import (
	"context"
	"sort"
	"time"

	"notification-engine/internal/common/logger"
	"notification-engine/internal/models"
	"notification-engine/internal/store"
)

type Resolver struct {
	markers store.MarkerStore
	logger  logger.Logger
	now     func() time.Time
}

func NewResolver(markers store.MarkerStore, log logger.Logger) *Resolver {
	return &Resolver{
		markers: markers,
		logger:  logger.Component(log, "supersede"),
		now:     time.Now,
	}
}

// WithClock replaces the clock used to stamp new generations.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// Resolve returns the notifications to emit for fresh, which must carry its
// BaseID and SourceUpdatedAt.
//
//   - No prior copy: fresh is emitted at generation 0, already read when the
//     last-seen marker covers its source version.
//   - The newest prior copy is older than fresh: that copy is kept unchanged
//     and fresh is added unread under a new generation. Older generations are
//     dropped, so at most two copies share a base id.
//   - Otherwise the prior copies are re-emitted unchanged.
func (r *Resolver) Resolve(ctx context.Context, prev []models.Notification, fresh models.Notification) []models.Notification {
	copies := PriorCopies(prev, fresh.BaseID)

	if len(copies) == 0 {
		fresh = fresh.WithGeneration(0)
		fresh.Read = r.seen(ctx, fresh)
		return []models.Notification{fresh}
	}

	latest := copies[len(copies)-1]
	if latest.SourceUpdatedAt.Before(fresh.SourceUpdatedAt) {
		gen := r.now().UnixMilli()
		if gen <= latest.Generation {
			gen = latest.Generation + 1
		}
		fresh = fresh.WithGeneration(gen)
		fresh.Read = false
		return []models.Notification{latest, fresh}
	}

	return copies
}

func (r *Resolver) seen(ctx context.Context, n models.Notification) bool {
	at, ok, err := r.markers.LastSeen(ctx, n.BaseID)
	if err != nil {
		r.logger.Warn("failed to read last-seen marker", map[string]interface{}{
			"baseId": n.BaseID,
			"error":  err,
		})
		return false
	}
	return ok && !at.Before(n.SourceUpdatedAt.Truncate(store.MarkerPrecision))
}

// PriorCopies returns the entries of prev with the given base id, oldest
// generation first.
func PriorCopies(prev []models.Notification, baseID string) []models.Notification {
	var out []models.Notification
	for _, n := range prev {
		if n.BaseID == baseID {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Generation < out[j].Generation
	})
	return out
}
