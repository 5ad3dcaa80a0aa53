// Package metrics provides the Prometheus implementation of the core
// metrics sink plus the /metrics HTTP server.
package metrics

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	coremetrics "github.com/haulcommand/dispatchd/core/metrics"
)

// PromSink records wave outcomes in Prometheus metrics.
type PromSink struct {
	waves  *prometheus.CounterVec
	offers *prometheus.CounterVec
	fill   prometheus.Histogram
}

// NewPromSink registers wave metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	waves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wave_results_total",
		Help: "Dispatch waves recorded by corridor and wave number",
	}, []string{"corridor", "wave"})
	offers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wave_offers_total",
		Help: "Offers created per corridor",
	}, []string{"corridor"})
	fill := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "wave_fill_probability_60m",
		Help:    "Predicted 60-minute fill probability at dispatch time",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})

	if err := reg.Register(waves); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			waves = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(offers); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			offers = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(fill); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			fill = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}
	return &PromSink{waves: waves, offers: offers, fill: fill}, nil
}

// RecordWave implements the core metrics sink.
func (s *PromSink) RecordWave(rec coremetrics.WaveRecord) error {
	corridor := rec.Corridor
	if corridor == "" {
		corridor = "unknown"
	}
	s.waves.WithLabelValues(corridor, strconv.Itoa(rec.Wave)).Inc()
	s.offers.WithLabelValues(corridor).Add(float64(rec.OffersCreated))
	s.fill.Observe(rec.FillProbability60m)
	return nil
}

// StartPromServer starts an HTTP server exposing Prometheus metrics on the
// given address. The server runs until the provided context is canceled. A
// dedicated ServeMux is used to avoid interfering with other handlers.
func StartPromServer(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("prom server shutdown: %v", err)
		}
		cancel()
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
