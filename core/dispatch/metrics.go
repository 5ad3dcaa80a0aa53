package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	wavesDispatched     *prometheus.CounterVec
	offersCreated       prometheus.Counter
	waveSizeHist        prometheus.Histogram
	emptyWaves          prometheus.Counter
	sideChannelFailures *prometheus.CounterVec
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, prometheus.Counter, prometheus.Histogram, prometheus.Counter, *prometheus.CounterVec) {
	waves := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_waves_total",
			Help: "Number of dispatch waves executed",
		},
		[]string{"wave"},
	)
	offers := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_offers_created_total",
			Help: "Number of match offers persisted",
		},
	)
	sizes := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_wave_size",
			Help:    "Computed wave sizes",
			Buckets: []float64{3, 5, 8, 12, 16, 20, 25},
		},
	)
	empty := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_empty_waves_total",
			Help: "Waves that found no eligible candidates",
		},
	)
	side := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_side_channel_failures_total",
			Help: "Swallowed failures on non-fatal side channels",
		},
		[]string{"channel"},
	)
	return waves, offers, sizes, empty, side
}

func init() {
	wavesDispatched, offersCreated, waveSizeHist, emptyWaves, sideChannelFailures = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(wavesDispatched, offersCreated, waveSizeHist, emptyWaves, sideChannelFailures)
}

// ResetMetrics reinitializes the collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	wavesDispatched, offersCreated, waveSizeHist, emptyWaves, sideChannelFailures = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
