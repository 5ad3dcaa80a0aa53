package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/haulcommand/dispatchd/core/metrics"
)

func TestPromSink_RecordWave(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	err = sink.RecordWave(coremetrics.WaveRecord{
		LoadID:             "ld-1",
		Wave:               1,
		WaveSize:           8,
		OffersCreated:      5,
		Corridor:           "TX-OK",
		FillProbability60m: 0.42,
		DispatchTime:       time.Now(),
	})
	require.NoError(t, err)

	require.Equal(t, 1.0, testutil.ToFloat64(sink.waves.WithLabelValues("TX-OK", "1")))
	require.Equal(t, 5.0, testutil.ToFloat64(sink.offers.WithLabelValues("TX-OK")))
}

func TestPromSink_UnknownCorridor(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordWave(coremetrics.WaveRecord{Wave: 2, OffersCreated: 1}))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.waves.WithLabelValues("unknown", "2")))
}

func TestPromSink_DoubleRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	_, err = NewPromSinkWithRegistry(reg)
	require.NoError(t, err, "re-registration must reuse existing collectors")
}
