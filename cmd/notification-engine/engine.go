package main

import (
	"context"
	"fmt"
	"time"

	adminstatus "notification-engine/internal/adapters/admin-status"
	"notification-engine/internal/adapters/recommendation"
	statuschange "notification-engine/internal/adapters/status-change"
	"notification-engine/internal/adapters/supersede"
	"notification-engine/internal/aggregator"
	"notification-engine/internal/api"
	awsclient "notification-engine/internal/common/aws"
	"notification-engine/internal/common/config"
	"notification-engine/internal/common/database"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/common/observability"
	"notification-engine/internal/events"
	"notification-engine/internal/ledger"
	"notification-engine/internal/matching"
	"notification-engine/internal/repository"
	"notification-engine/internal/store"

	"go.uber.org/zap"
)

// engine is the wired service: connections, sources and the aggregator.
type engine struct {
	cfg        *config.Config
	pg         *database.PostgresClient
	redis      *database.RedisClient
	es         *database.ElasticsearchClient
	bus        *events.Bus
	aggregator *aggregator.Aggregator
	obs        *observability.Observability
	tracing    *observability.Tracing
	closers    []func()
}

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func buildEngine(ctx context.Context, cfg *config.Config, zapLog *zap.Logger) (*engine, error) {
	log := logger.NewZapAdapter(zapLog)
	e := &engine{cfg: cfg}

	tracing, err := observability.NewTracing(cfg.Observability.JaegerEndpoint)
	if err != nil {
		return nil, err
	}
	e.tracing = tracing

	obs, err := observability.New(cfg.Observability.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	e.obs = obs

	err = retryWithBackoff(func() error {
		var err error
		e.pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return e.pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, func() { _ = e.pg.Close() })
	zapLog.Info("PostgreSQL connected successfully")

	err = retryWithBackoff(func() error {
		var err error
		e.es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return e.es.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		e.close()
		return nil, err
	}
	zapLog.Info("Elasticsearch connected successfully")

	e.redis = database.NewRedis(cfg.Database.Redis)
	e.closers = append(e.closers, func() { _ = e.redis.Close() })
	err = retryWithBackoff(func() error {
		return e.redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		e.close()
		return nil, err
	}
	zapLog.Info("Redis connected successfully")

	n := cfg.Notifications
	markers := store.NewRedisMarkerStore(e.redis.Client, time.Duration(n.MarkerTTLHours)*time.Hour)
	charged := store.NewRedisChargedSet(e.redis.Client)
	records := repository.NewPostgres(e.pg.DB)
	candidates := repository.NewCandidateIndex(e.es.Client, n.CandidateIndex, n.CandidatePageSize)
	resolver := supersede.NewResolver(markers, log)

	gate := ledger.NewGate(&ledger.Config{Cost: n.StatusChangeCost, Timeout: 5 * time.Second},
		e.pg.DB, charged, log)

	recommendationConfig := recommendation.LoadConfig()
	recommendationConfig.Window = time.Duration(n.RecommendationWindowHours) * time.Hour

	sources := []aggregator.Source{
		adminstatus.NewAdapter(nil, records, resolver, log),
		recommendation.NewAdapter(recommendationConfig, records, candidates, records,
			matching.NewScorer(n.MatchThreshold), resolver, log),
		statuschange.NewAdapter(nil, records, gate, log),
	}

	e.bus = events.NewBus(log)
	e.aggregator = aggregator.New(&aggregator.Config{PassTimeout: config.GetDuration(n.PassTimeout)},
		sources, markers, e.bus, log).
		WithObservability(obs)

	return e, nil
}

// forwardEvents relays bus events to SNS when a topic is configured.
func (e *engine) forwardEvents(ctx context.Context, log logger.Logger) error {
	n := e.cfg.Notifications
	if n.SNSTopicARN == "" {
		return nil
	}

	client, err := awsclient.NewSNSClient(ctx, n.AWS.Region, n.SNSTopicARN)
	if err != nil {
		return err
	}

	ch, unsubscribe := e.bus.Subscribe(64)
	e.closers = append(e.closers, unsubscribe)
	go events.NewSNSForwarder(client, client.TopicARN(), log).Run(ctx, ch)
	return nil
}

func (e *engine) readinessChecks() map[string]api.Check {
	return map[string]api.Check{
		"postgres":      e.pg.Ping,
		"redis":         e.redis.Ping,
		"elasticsearch": e.es.Ping,
	}
}

func (e *engine) shutdown(ctx context.Context) {
	e.close()
	_ = e.obs.Shutdown(ctx)
	_ = e.tracing.Shutdown(ctx)
}

func (e *engine) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}
