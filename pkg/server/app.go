package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"GreyPulse/internal/domain/models"
	"GreyPulse/internal/domain/repository"
	"GreyPulse/internal/handler/api"
	"GreyPulse/internal/scheduler"
	"GreyPulse/internal/usecase"
	"GreyPulse/pkg/cache"
	pkgch "GreyPulse/pkg/clickhouse"
	"GreyPulse/pkg/config"
	xhttp "GreyPulse/pkg/http"
	pkgkafka "GreyPulse/pkg/kafka"
	applogger "GreyPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// App owns the application lifecycle: seed the tracking universe, start
// the scheduler, the control consumer, and the HTTP surface, then shut
// everything down in reverse order on SIGINT/SIGTERM.
type App struct {
	cfg      *config.Config
	log      *applogger.Logger
	sched    *scheduler.Scheduler
	consumer *pkgkafka.Consumer
	control  *usecase.ControlHandler
	handler  *api.TrackingHandler
	srcs     []repository.SourceClient
	store    repository.ReadingStore
	bcast    repository.Broadcaster
	cache    cache.Service
	ch       *pkgch.Client

	httpServer *xhttp.Server
}

// New creates the application.
func New(
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
) *App {
	return &App{
		cfg:      cfg,
		log:      log,
		sched:    sched,
		consumer: consumer,
		control:  control,
		handler:  handler,
		srcs:     srcs,
		store:    store,
		bcast:    bcast,
		cache:    cacheSvc,
		ch:       ch,
	}
}

// Run starts everything and blocks until interrupted.
func (a *App) Run() error {
	a.seedUniverse()

	a.handler.SetHealthCheck(a.healthz)
	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	a.sched.Start()

	if a.consumer != nil && a.control != nil {
		a.consumer.RegisterHandler(a.control)
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer start error", applogger.Error(err))
		} else {
			a.log.Info("control consumer started",
				applogger.String("topic", a.control.Topic()))
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("engine running",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.Int("sources", len(a.srcs)),
		applogger.Int("instruments", len(a.cfg.Instruments)))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// seedUniverse tracks the instruments declared in configuration.
func (a *App) seedUniverse() {
	for _, ic := range a.cfg.Instruments {
		inst := models.TrackedInstrument{
			ID:         ic.ID,
			Symbol:     ic.Symbol,
			Status:     models.InstrumentStatus(ic.Status),
			IssuePrice: ic.IssuePrice,
			BandLow:    ic.BandLow,
			BandHigh:   ic.BandHigh,
		}
		if err := a.sched.Track(inst); err != nil {
			a.log.Warn("seed instrument skipped",
				applogger.String("instrument", ic.ID), applogger.Error(err))
		}
	}
}

func (a *App) healthz(c echo.Context) error {
	ctx := c.Request().Context()
	status := map[string]string{"status": "ok", "clickhouse": "ok"}
	code := 200
	if err := a.store.Health(ctx); err != nil {
		status["status"] = "degraded"
		status["clickhouse"] = err.Error()
		code = 503
	}
	return c.JSON(code, status)
}

// shutdown stops intake first, then drains the scheduler, then closes
// the outbound and storage clients.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	a.sched.Stop()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
		}
	}

	for _, src := range a.srcs {
		if err := src.Close(); err != nil {
			a.log.Warn("source close error",
				applogger.String("source", src.Name()), applogger.Error(err))
		}
	}

	if err := a.bcast.Close(); err != nil {
		a.log.Warn("broadcaster close error", applogger.Error(err))
	}
	if err := a.cache.Close(); err != nil {
		a.log.Warn("cache close error", applogger.Error(err))
	}
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
