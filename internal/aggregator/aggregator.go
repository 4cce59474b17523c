// Package aggregator owns a user's notification list. It runs every source
// once per pass, merges their output and applies the session's read and
// delete history on top.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	apperrors "notification-engine/internal/common/errors"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/common/metrics"
	"notification-engine/internal/common/observability"
	"notification-engine/internal/events"
	"notification-engine/internal/models"
	"notification-engine/internal/store"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

var (
	ErrNotFound      = errors.New("NOTIFICATION_NOT_FOUND")
	ErrPassDiscarded = errors.New("PASS_DISCARDED")
	ErrNoIdentity    = errors.New("NO_IDENTITY")
)

const (
	outcomeComplete  = "complete"
	outcomeDegraded  = "degraded"
	outcomeFailed    = "failed"
	outcomeDiscarded = "discarded"
)

// Source contributes notifications to a pass. prev is the aggregate as it
// stood when the pass began; a source only looks at its own entries.
type Source interface {
	Name() string
	Run(ctx context.Context, userID string, prev []models.Notification) ([]models.Notification, error)
}

// State is a snapshot of the aggregate.
type State struct {
	UserID        string
	Notifications []models.Notification
	LoadFailed    bool
	RefreshedAt   time.Time
}

type Aggregator struct {
	config  *Config
	sources []Source
	markers store.MarkerStore
	bus     events.Publisher
	obs     *observability.Observability
	tracer  trace.Tracer
	logger  logger.Logger
	group   singleflight.Group

	mu       sync.Mutex
	userID   string
	epoch    uint64
	cancel   context.CancelFunc
	state    State
	readKeys map[string]instance
	deleted  map[string]instance
}

// instance is the version a read or delete was made against.
type instance struct {
	baseID       string
	supersedable bool
	version      time.Time
}

func instanceOf(n models.Notification) instance {
	return instance{baseID: n.BaseID, supersedable: n.Supersedable(), version: n.SourceUpdatedAt}
}

func New(config *Config, sources []Source, markers store.MarkerStore, bus events.Publisher, log logger.Logger) *Aggregator {
	if config == nil {
		config = LoadConfig()
	}
	return &Aggregator{
		config:   config,
		sources:  sources,
		markers:  markers,
		bus:      bus,
		tracer:   observability.Tracer("notification-engine/aggregator"),
		logger:   logger.Component(log, "aggregator"),
		readKeys: make(map[string]instance),
		deleted:  make(map[string]instance),
	}
}

// WithObservability attaches otel pass metrics.
func (a *Aggregator) WithObservability(obs *observability.Observability) *Aggregator {
	a.obs = obs
	return a
}

func (a *Aggregator) WithTracer(tracer trace.Tracer) *Aggregator {
	a.tracer = tracer
	return a
}

// Refresh runs a pass for userID and returns the resulting list. Concurrent
// calls for the same user share one pass. A pass overtaken by a different
// identity yields nil.
func (a *Aggregator) Refresh(ctx context.Context, userID string) []models.Notification {
	st, err := a.RefreshState(ctx, userID)
	if err != nil {
		return nil
	}
	return st.Notifications
}

// RefreshState is Refresh with the full snapshot and the reason a pass
// produced nothing for this caller.
func (a *Aggregator) RefreshState(ctx context.Context, userID string) (State, error) {
	if userID == "" {
		return State{}, ErrNoIdentity
	}

	epoch := a.switchIdentity(userID)
	key := userID + "#" + strconv.FormatUint(epoch, 10)

	ch := a.group.DoChan(key, func() (interface{}, error) {
		return a.pass(userID, epoch)
	})

	select {
	case <-ctx.Done():
		return State{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return State{}, res.Err
		}
		return copyState(res.Val.(State)), nil
	}
}

// State returns a copy of the current aggregate.
func (a *Aggregator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return copyState(a.state)
}

// Clear drops the identity and every piece of session state, cancelling any
// pass in flight.
func (a *Aggregator) Clear() {
	a.mu.Lock()
	previous := a.userID
	a.resetLocked("")
	a.mu.Unlock()

	if previous != "" {
		a.publish(events.AggregateChanged{Type: events.TypeIdentityReset, UserID: previous})
	}
}

func (a *Aggregator) switchIdentity(userID string) uint64 {
	a.mu.Lock()
	if a.userID == userID {
		epoch := a.epoch
		a.mu.Unlock()
		return epoch
	}
	previous := a.userID
	a.resetLocked(userID)
	epoch := a.epoch
	a.mu.Unlock()

	a.logger.Info("identity changed", map[string]interface{}{
		"previousUserId": previous,
		"userId":         userID,
	})
	a.publish(events.AggregateChanged{Type: events.TypeIdentityReset, UserID: userID})
	return epoch
}

func (a *Aggregator) resetLocked(userID string) {
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.epoch++
	a.userID = userID
	a.state = State{UserID: userID}
	a.readKeys = make(map[string]instance)
	a.deleted = make(map[string]instance)
}

func (a *Aggregator) pass(userID string, epoch uint64) (State, error) {
	a.mu.Lock()
	if a.epoch != epoch {
		a.mu.Unlock()
		return State{}, ErrPassDiscarded
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.config.PassTimeout)
	a.cancel = cancel
	prev := cloneList(a.state.Notifications)
	a.mu.Unlock()
	defer cancel()

	start := time.Now()
	ctx, span := a.tracer.Start(ctx, "aggregator.pass", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	log := a.logger.WithFields(map[string]interface{}{"userId": userID})

	list, failed := a.collect(ctx, log, userID, prev)
	loadFailed := failed == len(a.sources) && len(a.sources) > 0

	outcome := outcomeComplete
	switch {
	case loadFailed:
		outcome = outcomeFailed
		log.Error("all notification sources failed", map[string]interface{}{
			"error": apperrors.NewAggregationFailedError(userID),
		})
	case failed > 0:
		outcome = outcomeDegraded
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		log.Warn("pass deadline reached", map[string]interface{}{
			"error": apperrors.NewPassTimeoutError(userID),
		})
	}

	a.mu.Lock()
	if a.epoch != epoch {
		a.mu.Unlock()
		a.finishPass(ctx, span, outcomeDiscarded, start)
		log.Info("discarding pass result for previous identity", nil)
		return State{}, ErrPassDiscarded
	}
	a.cancel = nil
	a.state = State{
		UserID:        userID,
		Notifications: a.overlayLocked(list),
		LoadFailed:    loadFailed,
		RefreshedAt:   time.Now().UTC(),
	}
	st := copyState(a.state)
	a.mu.Unlock()

	a.finishPass(ctx, span, outcome, start)

	unread := UnreadCount(st.Notifications)
	metrics.UnreadNotifications.Set(float64(unread))

	eventType := events.TypeRefreshed
	if loadFailed {
		eventType = events.TypeLoadFailed
	}
	a.publish(events.AggregateChanged{
		Type:       eventType,
		UserID:     userID,
		Total:      len(st.Notifications),
		Unread:     unread,
		LoadFailed: loadFailed,
	})

	log.Debug("pass complete", map[string]interface{}{
		"total":    len(st.Notifications),
		"unread":   unread,
		"outcome":  outcome,
		"duration": time.Since(start).String(),
	})
	return st, nil
}

func (a *Aggregator) finishPass(ctx context.Context, span trace.Span, outcome string, start time.Time) {
	elapsed := time.Since(start)
	metrics.AggregationPasses.WithLabelValues(outcome).Inc()
	metrics.AggregationPassDuration.Observe(elapsed.Seconds())
	a.obs.RecordPass(ctx, outcome, elapsed)

	span.SetAttributes(attribute.String("outcome", outcome))
	if outcome == outcomeFailed {
		span.SetStatus(codes.Error, "all sources failed")
	}
}

// collect runs every source concurrently. Sources that failed are run again
// one at a time; a source that succeeded is never run twice in a pass. It
// returns the merged list and how many sources failed in the final attempt.
func (a *Aggregator) collect(ctx context.Context, log logger.Logger, userID string, prev []models.Notification) ([]models.Notification, int) {
	results := make([][]models.Notification, len(a.sources))
	errs := make([]error, len(a.sources))

	var wg sync.WaitGroup
	for i, src := range a.sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			results[i], errs[i] = a.runSource(ctx, src, userID, prev)
		}(i, src)
	}
	wg.Wait()

	if !anyFailed(errs, a.sources, log, "parallel") {
		return merge(ctx, a.obs, a.sources, results), 0
	}

	log.Warn("parallel pass failed, retrying failed sources sequentially", nil)

	failed := 0
	for i, src := range a.sources {
		if errs[i] == nil {
			continue
		}
		results[i], errs[i] = a.runSource(ctx, src, userID, prev)
		if errs[i] != nil {
			failed++
			results[i] = nil
			metrics.SourceFailures.WithLabelValues(src.Name(), "sequential").Inc()
			log.Warn("source failed, contributing nothing", map[string]interface{}{
				"source": src.Name(),
				"error":  errs[i],
			})
		}
	}
	return merge(ctx, a.obs, a.sources, results), failed
}

func (a *Aggregator) runSource(ctx context.Context, src Source, userID string, prev []models.Notification) (out []models.Notification, err error) {
	ctx, span := a.tracer.Start(ctx, "source."+src.Name())
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("source %s panicked: %v", src.Name(), r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	return src.Run(ctx, userID, prev)
}

func anyFailed(errs []error, sources []Source, log logger.Logger, phase string) bool {
	failed := false
	for i, err := range errs {
		if err == nil {
			continue
		}
		failed = true
		metrics.SourceFailures.WithLabelValues(sources[i].Name(), phase).Inc()
		log.Warn("source failed", map[string]interface{}{
			"source": sources[i].Name(),
			"phase":  phase,
			"error":  err,
		})
	}
	return failed
}

func merge(ctx context.Context, obs *observability.Observability, sources []Source, results [][]models.Notification) []models.Notification {
	total := 0
	for _, r := range results {
		total += len(r)
	}
	out := make([]models.Notification, 0, total)
	for i, r := range results {
		obs.RecordEmitted(ctx, sources[i].Name(), len(r))
		out = append(out, r...)
	}
	return out
}

// overlayLocked drops deleted instances and re-applies reads made during
// the session, including those made while the pass was running. Session
// entries for versions that list has moved past are pruned.
func (a *Aggregator) overlayLocked(list []models.Notification) []models.Notification {
	present := make(map[string]struct{}, len(list))
	latest := make(map[string]time.Time)
	out := make([]models.Notification, 0, len(list))
	for _, n := range list {
		key := n.InstanceKey()
		present[key] = struct{}{}
		if n.Supersedable() && n.SourceUpdatedAt.After(latest[n.BaseID]) {
			latest[n.BaseID] = n.SourceUpdatedAt
		}
		if _, gone := a.deleted[key]; gone {
			continue
		}
		if _, seen := a.readKeys[key]; seen {
			n.Read = true
		}
		out = append(out, n)
	}

	pruneSession(a.readKeys, present, latest)
	pruneSession(a.deleted, present, latest)
	return out
}

// pruneSession removes entries for versioned instances that are absent from
// the pass while a newer version of the same record is present. Sources
// only move versions forward, so such an instance cannot be emitted again.
func pruneSession(entries map[string]instance, present map[string]struct{}, latest map[string]time.Time) {
	for key, inst := range entries {
		if !inst.supersedable {
			continue
		}
		if _, ok := present[key]; ok {
			continue
		}
		if newest, ok := latest[inst.baseID]; ok && inst.version.Before(newest) {
			delete(entries, key)
		}
	}
}

func (a *Aggregator) publish(e events.AggregateChanged) {
	if a.bus == nil {
		return
	}
	a.bus.Publish(e)
}

func copyState(st State) State {
	st.Notifications = cloneList(st.Notifications)
	return st
}

func cloneList(list []models.Notification) []models.Notification {
	if list == nil {
		return nil
	}
	out := make([]models.Notification, len(list))
	copy(out, list)
	return out
}
