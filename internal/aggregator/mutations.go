package aggregator

import (
	"context"
	"time"

	apperrors "notification-engine/internal/common/errors"
	"notification-engine/internal/common/metrics"
	"notification-engine/internal/events"
	"notification-engine/internal/models"
)

// MarkRead marks one notification read. For versioned entries the last-seen
// marker is written first; if that write fails the local change still
// happens and the persistence error is returned.
func (a *Aggregator) MarkRead(ctx context.Context, id string) error {
	n, userID, err := a.lookup(id)
	if err != nil {
		return err
	}

	persistErr := a.persistMarker(ctx, n)

	a.mu.Lock()
	if a.userID != userID {
		a.mu.Unlock()
		return persistErr
	}
	key := n.InstanceKey()
	a.readKeys[key] = instanceOf(n)
	for i := range a.state.Notifications {
		if a.state.Notifications[i].InstanceKey() == key {
			a.state.Notifications[i].Read = true
		}
	}
	e := a.changeEventLocked(events.TypeMarkedRead, id)
	a.mu.Unlock()

	a.publish(e)
	return persistErr
}

// Delete removes a notification for the rest of the session.
func (a *Aggregator) Delete(ctx context.Context, id string) error {
	n, userID, err := a.lookup(id)
	if err != nil {
		return err
	}

	persistErr := a.persistMarker(ctx, n)

	a.mu.Lock()
	if a.userID != userID {
		a.mu.Unlock()
		return persistErr
	}
	key := n.InstanceKey()
	a.deleted[key] = instanceOf(n)
	kept := a.state.Notifications[:0]
	for _, other := range a.state.Notifications {
		if other.InstanceKey() != key {
			kept = append(kept, other)
		}
	}
	a.state.Notifications = kept
	e := a.changeEventLocked(events.TypeDeleted, id)
	a.mu.Unlock()

	a.publish(e)
	return persistErr
}

// MarkAllRead marks every notification read. Markers for all unread
// versioned entries are written before the local change; the first
// persistence failure is returned.
func (a *Aggregator) MarkAllRead(ctx context.Context) error {
	a.mu.Lock()
	userID := a.userID
	if userID == "" {
		a.mu.Unlock()
		return ErrNoIdentity
	}
	pending := make([]models.Notification, 0)
	for _, n := range a.state.Notifications {
		if !n.Read {
			pending = append(pending, n)
		}
	}
	a.mu.Unlock()

	var firstErr error
	for _, n := range pending {
		if err := a.persistMarker(ctx, n); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	a.mu.Lock()
	if a.userID != userID {
		a.mu.Unlock()
		return firstErr
	}
	for _, n := range pending {
		a.readKeys[n.InstanceKey()] = instanceOf(n)
	}
	for i := range a.state.Notifications {
		a.state.Notifications[i].Read = true
	}
	e := a.changeEventLocked(events.TypeAllRead, "")
	a.mu.Unlock()

	a.publish(e)
	return firstErr
}

func (a *Aggregator) lookup(id string) (models.Notification, string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.userID == "" {
		return models.Notification{}, "", ErrNoIdentity
	}
	for _, n := range a.state.Notifications {
		if n.ID == id {
			return n, a.userID, nil
		}
	}
	return models.Notification{}, "", ErrNotFound
}

func (a *Aggregator) persistMarker(ctx context.Context, n models.Notification) error {
	if !n.Supersedable() || a.markers == nil {
		return nil
	}
	if err := a.markers.MarkSeen(ctx, n.BaseID, n.SourceUpdatedAt); err != nil {
		a.logger.Warn("failed to persist last-seen marker", map[string]interface{}{
			"baseId": n.BaseID,
			"error":  err,
		})
		return apperrors.NewMarkerPersistFailedError(n.BaseID, err)
	}
	return nil
}

func (a *Aggregator) changeEventLocked(t events.Type, id string) events.AggregateChanged {
	unread := UnreadCount(a.state.Notifications)
	metrics.UnreadNotifications.Set(float64(unread))
	return events.AggregateChanged{
		Type:           t,
		UserID:         a.userID,
		NotificationID: id,
		Total:          len(a.state.Notifications),
		Unread:         unread,
		LoadFailed:     a.state.LoadFailed,
		At:             time.Now().UTC(),
	}
}
