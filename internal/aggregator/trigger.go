package aggregator

import (
	"context"
	"sync"
	"time"

	"notification-engine/internal/common/logger"
	"notification-engine/internal/models"

	"github.com/go-co-op/gocron/v2"
)

// Refresher is the part of the aggregator a trigger drives.
type Refresher interface {
	Refresh(ctx context.Context, userID string) []models.Notification
}

// Trigger turns identity changes and refresh requests into passes. Fire
// never blocks: requests arriving while the queue is full are dropped, as
// the pass they would start is already pending or running.
type Trigger struct {
	refresher Refresher
	requests  chan string
	interval  time.Duration
	logger    logger.Logger

	mu      sync.Mutex
	current string
	wg      sync.WaitGroup
}

func NewTrigger(refresher Refresher, interval time.Duration, log logger.Logger) *Trigger {
	return &Trigger{
		refresher: refresher,
		requests:  make(chan string, 8),
		interval:  interval,
		logger:    logger.Component(log, "trigger"),
	}
}

func (t *Trigger) Fire(userID string) bool {
	select {
	case t.requests <- userID:
		return true
	default:
		t.logger.Debug("refresh request dropped", map[string]interface{}{"userId": userID})
		return false
	}
}

// Run serves requests until ctx is done. With a positive interval a
// scheduler re-fires the last identity seen.
func (t *Trigger) Run(ctx context.Context) {
	if t.interval > 0 {
		scheduler, err := t.schedule()
		if err != nil {
			t.logger.Error("failed to schedule periodic refresh", map[string]interface{}{"error": err})
		} else {
			defer func() {
				if err := scheduler.Shutdown(); err != nil {
					t.logger.Warn("scheduler shutdown failed", map[string]interface{}{"error": err})
				}
			}()
		}
	}

	for {
		select {
		case <-ctx.Done():
			t.wg.Wait()
			return
		case userID := <-t.requests:
			t.mu.Lock()
			t.current = userID
			t.mu.Unlock()
			t.start(ctx, userID)
		}
	}
}

func (t *Trigger) schedule() (gocron.Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(t.interval),
		gocron.NewTask(t.fireCurrent),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return nil, err
	}

	scheduler.Start()
	return scheduler, nil
}

func (t *Trigger) fireCurrent() {
	t.mu.Lock()
	userID := t.current
	t.mu.Unlock()
	if userID != "" {
		t.Fire(userID)
	}
}

func (t *Trigger) start(ctx context.Context, userID string) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.refresher.Refresh(ctx, userID)
	}()
}
