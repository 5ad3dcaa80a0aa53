// Package app wires the configuration into a running dispatch service.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	apidispatch "github.com/haulcommand/dispatchd/api/dispatch"
	"github.com/haulcommand/dispatchd/config"
	"github.com/haulcommand/dispatchd/core/dispatch"
	"github.com/haulcommand/dispatchd/core/intel"
	coremetrics "github.com/haulcommand/dispatchd/core/metrics"
	"github.com/haulcommand/dispatchd/core/notify"
	"github.com/haulcommand/dispatchd/infra/logger"
	"github.com/haulcommand/dispatchd/infra/metrics"
	"github.com/haulcommand/dispatchd/infra/mqtt"
	"github.com/haulcommand/dispatchd/infra/postgres"
	"github.com/haulcommand/dispatchd/infra/redis"
	"github.com/haulcommand/dispatchd/internal/eventbus"
)

// Service orchestrates the dispatcher, estimator and HTTP surface.
type Service struct {
	Dispatcher *dispatch.Dispatcher
	Estimator  *intel.Estimator

	store *postgres.Store
	queue *redis.Queue
	mqtt  *mqtt.Notifier
	bus   eventbus.EventBus
	log   logger.Logger

	apiAddr     string
	apiToken    string
	promEnabled bool
	promPort    string
}

// New creates a Service from the configuration.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	st, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	svc := &Service{
		store:       st,
		log:         logg,
		apiAddr:     cfg.API.Addr,
		apiToken:    cfg.API.AuthToken,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promPort:    cfg.Metrics.PrometheusPort,
	}

	var notifier notify.Notifier = notify.Nop{}
	switch cfg.Notifier.Backend {
	case "redis":
		queue, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			svc.closeAll()
			return nil, fmt.Errorf("redis: %w", err)
		}
		svc.queue = queue
		notifier = queue
	case "mqtt":
		client, err := mqtt.NewNotifier(cfg.MQTT)
		if err != nil {
			svc.closeAll()
			return nil, fmt.Errorf("mqtt: %w", err)
		}
		svc.mqtt = client
		notifier = client
	}

	var sink coremetrics.Sink = coremetrics.NopSink{}
	if cfg.Metrics.PrometheusEnabled {
		promSink, err := metrics.NewPromSink()
		if err != nil {
			svc.closeAll()
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sink = promSink
	}

	bus := eventbus.New()
	svc.bus = bus

	dispatcher, err := dispatch.NewDispatcher(cfg.Dispatch, dispatch.Stores{
		Loads:     st,
		Supply:    st,
		Blocklist: st,
		Offers:    st,
		Intel:     st,
		SLA:       st,
		Events:    st,
	}, notifier, sink, bus, logger.New("dispatcher"))
	if err != nil {
		svc.closeAll()
		return nil, fmt.Errorf("dispatcher: %w", err)
	}
	svc.Dispatcher = dispatcher

	estimator, err := intel.NewEstimator(cfg.Intel, st, st, st, st, st, logger.New("estimator"))
	if err != nil {
		svc.closeAll()
		return nil, fmt.Errorf("estimator: %w", err)
	}
	estimator.SetBus(bus)
	svc.Estimator = estimator

	return svc, nil
}

// Run starts the HTTP surface and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if err := s.store.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/dispatch", apidispatch.NewDispatchHandler(s.Dispatcher, s.apiToken))
	mux.Handle("/api/intel/refresh", apidispatch.NewIntelRefreshHandler(s.Estimator, s.apiToken))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: s.apiAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", s.apiAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Errorf("http shutdown: %v", err)
	}
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.closeAll()
	return nil
}

func (s *Service) closeAll() {
	if s.bus != nil {
		s.bus.Close()
	}
	if s.queue != nil {
		if err := s.queue.Close(); err != nil {
			s.log.Errorf("redis close: %v", err)
		}
	}
	if s.mqtt != nil {
		s.mqtt.Disconnect()
	}
	if s.store != nil {
		s.store.Close()
	}
}
