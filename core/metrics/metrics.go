// Package metrics defines the observability sink contract for dispatch
// waves, decoupled from any concrete backend.
package metrics

import "time"

// WaveRecord captures one completed dispatch wave.
type WaveRecord struct {
	LoadID                string
	Wave                  int
	WaveSize              int
	OffersCreated         int
	CandidatesConsidered  int
	CandidatesFilteredOut int
	Corridor              string
	FillProbability60m    float64
	Confidence            float64
	DispatchTime          time.Time
}

// Sink records wave outcomes for observability. Failures must never affect
// the dispatch path.
type Sink interface {
	RecordWave(rec WaveRecord) error
}

// NopSink discards all records.
type NopSink struct{}

func (NopSink) RecordWave(WaveRecord) error { return nil }

// Config selects the metrics backends to enable.
type Config struct {
	PrometheusEnabled bool   `json:"prometheus_enabled"`
	PrometheusPort    string `json:"prometheus_port"`
}
