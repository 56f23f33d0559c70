package di

import (
	"context"
	"fmt"
	"time"

	"GreyPulse/internal/domain/repository"
	"GreyPulse/internal/handler/api"
	internalrepo "GreyPulse/internal/repository"
	"GreyPulse/internal/scheduler"
	"GreyPulse/internal/service/ratelimit"
	"GreyPulse/internal/service/reliability"
	"GreyPulse/internal/service/sources"
	"GreyPulse/internal/services/analytics"
	"GreyPulse/internal/usecase"
	"GreyPulse/pkg/cache"
	pkgch "GreyPulse/pkg/clickhouse"
	"GreyPulse/pkg/config"
	pkgkafka "GreyPulse/pkg/kafka"
	applogger "GreyPulse/pkg/logger"
	"GreyPulse/pkg/metrics"
	"GreyPulse/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the
// database exists.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database,
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideReadingStore creates the ClickHouse reading store and its table.
func ProvideReadingStore(ch *pkgch.Client, log *applogger.Logger) (repository.ReadingStore, error) {
	store := internalrepo.NewCHReadingStore(ch, log)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("reading store init: %w", err)
	}
	return store, nil
}

// ProvideKafkaProducer creates the shared Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideBroadcaster creates the Kafka broadcaster for readings and alerts.
func ProvideBroadcaster(producer *pkgkafka.Producer, cfg *config.Config) repository.Broadcaster {
	return internalrepo.NewKafkaBroadcaster(producer, cfg.Kafka.ReadingsTopic, cfg.Kafka.AlertsTopic)
}

// ProvideKafkaConsumer creates the control-topic consumer.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideCache creates the latest-reading cache: memory-fronted Redis
// when Redis is enabled, pure memory otherwise.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(), nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return cache.NewLayeredCache(rc), nil
}

// ProvideMetrics creates the Prometheus recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideReliabilityTracker seeds per-source reliability priors.
func ProvideReliabilityTracker(cfg *config.Config) *reliability.Tracker {
	priors := make(map[string]float64, len(cfg.Sources))
	for _, s := range cfg.Sources {
		priors[s.Name] = s.ReliabilityPrior
	}
	return reliability.New(priors)
}

// ProvideSources builds the configured source clients.
func ProvideSources(cfg *config.Config, log *applogger.Logger) ([]repository.SourceClient, error) {
	return sources.Build(cfg.Sources, ratelimit.New(), log)
}

// ProvideAggregator creates the consensus aggregator.
func ProvideAggregator(cfg *config.Config, rel *reliability.Tracker) *usecase.Aggregator {
	return usecase.NewAggregator(cfg.Sources, rel)
}

// ProvideEnricher creates the indicator enricher.
func ProvideEnricher(cfg *config.Config) *analytics.Enricher {
	return analytics.NewEnricher(analytics.EnricherConfig{
		MinDelta:         cfg.Analytics.MinDelta,
		ShortSMAWindow:   cfg.Analytics.ShortSMAWindow,
		LongSMAWindow:    cfg.Analytics.LongSMAWindow,
		RSIPeriod:        cfg.Analytics.RSIPeriod,
		MomentumLookback: cfg.Analytics.MomentumLookback,
	})
}

// ProvideDetector creates the pattern and anomaly detector.
func ProvideDetector(cfg *config.Config) *analytics.Detector {
	return analytics.NewDetector(analytics.DetectorConfig{
		PriceZScore:  cfg.Analytics.PriceZScore,
		VolumeZScore: cfg.Analytics.VolumeZScore,
	})
}

// ProvideBaselineCalc creates the rolling baseline calculator.
func ProvideBaselineCalc(cfg *config.Config) *usecase.BaselineCalc {
	return usecase.NewBaselineCalc(cfg.Analytics.BaselineWindow)
}

// ProvideAlertEvaluator creates the alert evaluator with system thresholds.
func ProvideAlertEvaluator(cfg *config.Config) *usecase.AlertEvaluator {
	return usecase.NewAlertEvaluator(usecase.AlertConfig{
		VolatilityPct:   cfg.Analytics.VolatilityPct,
		RapidChangePct:  cfg.Analytics.RapidChangePct,
		VolumeSpikeMult: cfg.Analytics.VolumeSpikeMult,
	})
}

// ProvideCycleRunner assembles the per-cycle pipeline.
func ProvideCycleRunner(
	srcs []repository.SourceClient,
	rel *reliability.Tracker,
	agg *usecase.Aggregator,
	enricher *analytics.Enricher,
	detector *analytics.Detector,
	baseline *usecase.BaselineCalc,
	alerts *usecase.AlertEvaluator,
	store repository.ReadingStore,
	cacheSvc cache.Service,
	bcast repository.Broadcaster,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.CycleRunner {
	return usecase.NewCycleRunner(srcs, rel, agg, enricher, detector, baseline, alerts, store, cacheSvc, bcast, m, log)
}

// ProvideScheduler creates the tracking scheduler. Untracked instruments
// release their thresholds, reliability records, and cached reading.
func ProvideScheduler(
	cfg *config.Config,
	runner *usecase.CycleRunner,
	alerts *usecase.AlertEvaluator,
	rel *reliability.Tracker,
	cacheSvc cache.Service,
	log *applogger.Logger,
) *scheduler.Scheduler {
	return scheduler.New(scheduler.FromAppConfig(cfg), runner, log,
		scheduler.WithUntrackHook(alerts.DropThresholds),
		scheduler.WithUntrackHook(rel.Forget),
		scheduler.WithUntrackHook(func(id string) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = cacheSvc.Delete(ctx, "latest:"+id)
		}),
	)
}

// ProvideControlHandler creates the control-topic command handler.
func ProvideControlHandler(cfg *config.Config, sched *scheduler.Scheduler, log *applogger.Logger) *usecase.ControlHandler {
	return usecase.NewControlHandler(cfg.Kafka.ControlTopic, sched, log)
}

// ProvideTrackingHandler creates the HTTP handler.
func ProvideTrackingHandler(
	log *applogger.Logger,
	sched *scheduler.Scheduler,
	runner *usecase.CycleRunner,
	alerts *usecase.AlertEvaluator,
) *api.TrackingHandler {
	return api.NewTrackingHandler(log, sched, runner, alerts)
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	sched *scheduler.Scheduler,
	consumer *pkgkafka.Consumer,
	control *usecase.ControlHandler,
	handler *api.TrackingHandler,
	srcs []repository.SourceClient,
	store repository.ReadingStore,
	bcast repository.Broadcaster,
	cacheSvc cache.Service,
	ch *pkgch.Client,
) *server.App {
	return server.New(cfg, log, sched, consumer, control, handler, srcs, store, bcast, cacheSvc, ch)
}
