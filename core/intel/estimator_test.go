package intel

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/haulcommand/dispatchd/core/model"
	"github.com/haulcommand/dispatchd/core/store"
)

type fakeLoads struct {
	loads map[string]model.Load
	err   error
}

func (f *fakeLoads) OpenLoad(_ context.Context, id string) (model.Load, error) {
	if f.err != nil {
		return model.Load{}, f.err
	}
	ld, ok := f.loads[id]
	if !ok {
		return model.Load{}, store.ErrNotFound
	}
	return ld, nil
}

func (f *fakeLoads) OpenLoads(_ context.Context, limit int) ([]model.Load, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []model.Load
	for _, ld := range f.loads {
		if len(out) >= limit {
			break
		}
		out = append(out, ld)
	}
	return out, nil
}

type fakeBuckets struct {
	agg model.BucketAggregate
	err error
}

func (f *fakeBuckets) SmoothedRates(context.Context, string) (model.BucketAggregate, error) {
	if f.err != nil {
		return model.BucketAggregate{}, f.err
	}
	return f.agg, nil
}

type fakeLanes struct{ n int }

func (f *fakeLanes) LaneMatches90d(context.Context, string) (int, error) { return f.n, nil }

type fakeIntelStore struct {
	upserts map[string]model.LoadIntel
	failFor map[string]bool
}

func (f *fakeIntelStore) Intel(_ context.Context, id string) (model.LoadIntel, error) {
	it, ok := f.upserts[id]
	if !ok {
		return model.LoadIntel{}, store.ErrNotFound
	}
	return it, nil
}

func (f *fakeIntelStore) Upsert(_ context.Context, it model.LoadIntel) error {
	if f.failFor[it.LoadID] {
		return fmt.Errorf("simulated upsert failure")
	}
	if f.upserts == nil {
		f.upserts = map[string]model.LoadIntel{}
	}
	f.upserts[it.LoadID] = it
	return nil
}

func f64(v float64) *float64 { return &v }

func testLoad(id string, createdAt time.Time) model.Load {
	return model.Load{
		ID:               id,
		BrokerID:         "br-1",
		LaneKey:          "TX-OK",
		GeoKey:           "TX",
		SimilarBucketKey: "TX-OK:oversize",
		RateAmount:       f64(1500),
		CreatedAt:        createdAt,
		Status:           model.LoadOpen,
	}
}

func newTestEstimator(t *testing.T, buckets *fakeBuckets, lanes *fakeLanes, intelStore *fakeIntelStore, loads *fakeLoads) *Estimator {
	t.Helper()
	if loads == nil {
		loads = &fakeLoads{loads: map[string]model.Load{}}
	}
	e, err := NewEstimator(DefaultConfig(), loads, buckets, lanes, intelStore, nil, nil)
	if err != nil {
		t.Fatalf("NewEstimator: %v", err)
	}
	return e
}

func checkProb(t *testing.T, name string, v float64) {
	t.Helper()
	if v < 0 || v > 1 {
		t.Errorf("%s = %v outside [0,1]", name, v)
	}
}

func TestComputeOne_ClampingAndBandOrdering(t *testing.T) {
	buckets := &fakeBuckets{agg: model.BucketAggregate{
		BucketKey:            "TX-OK:oversize",
		SmoothedOfferRate:    0.9,
		SmoothedViewRate:     0.8,
		SmoothedAcceptRate:   0.7,
		NLoads:               40,
		EffectiveSupplyCount: 20,
	}}
	e := newTestEstimator(t, buckets, &fakeLanes{n: 12}, &fakeIntelStore{}, nil)

	now := time.Now().UTC()
	ld := testLoad("ld-1", now.Add(-2*time.Hour))
	ld.UrgencyRaw = f64(0.9)
	ld.ComplexityRaw = f64(3)
	ld.LeadTimeHoursRaw = f64(48)

	it, err := e.ComputeOne(context.Background(), ld, now)
	if err != nil {
		t.Fatalf("ComputeOne: %v", err)
	}

	for _, h := range []struct {
		name string
		p    model.StageProbs
	}{{"60m", it.Horizon60m}, {"4h", it.Horizon4h}, {"24h", it.Horizon24h}} {
		checkProb(t, h.name+".offer", h.p.Offer)
		checkProb(t, h.name+".view", h.p.View)
		checkProb(t, h.name+".accept", h.p.Accept)
		checkProb(t, h.name+".fill", h.p.Fill)
	}
	checkProb(t, "confidence", it.Confidence)
	checkProb(t, "p_low", it.PLow60m)
	checkProb(t, "p_high", it.PHigh60m)
	checkProb(t, "hard_fill", it.HardFillRiskScore01)

	if it.PLow60m > it.Horizon60m.Fill || it.Horizon60m.Fill > it.PHigh60m {
		t.Fatalf("band ordering violated: %v <= %v <= %v", it.PLow60m, it.Horizon60m.Fill, it.PHigh60m)
	}
}

func TestComputeOne_ColdStart(t *testing.T) {
	// No bucket history, no lane matches, posted just now.
	buckets := &fakeBuckets{err: store.ErrNotFound}
	e := newTestEstimator(t, buckets, &fakeLanes{n: 0}, &fakeIntelStore{}, nil)

	now := time.Now().UTC()
	it, err := e.ComputeOne(context.Background(), testLoad("ld-cold", now), now)
	if err != nil {
		t.Fatalf("ComputeOne: %v", err)
	}
	if it.Confidence != 0 {
		t.Fatalf("cold-start confidence should be 0 with zero samples, got %v", it.Confidence)
	}
	// Wide-band branch applies below the 0.5 confidence threshold.
	half := it.PHigh60m - it.Horizon60m.Fill
	if want := 0.20 * (1 - it.Confidence); half > want+1e-9 {
		t.Fatalf("band half-width %v exceeds wide branch %v", half, want)
	}
	if it.FillSpeedLabel != model.SpeedUnknown {
		t.Fatalf("cold-start speed label %q, want %q", it.FillSpeedLabel, model.SpeedUnknown)
	}
	// Zero supply strangles the offer stage entirely.
	if it.Horizon60m.Fill != 0 {
		t.Fatalf("zero supply should zero fill probability, got %v", it.Horizon60m.Fill)
	}
}

func TestConfidence_DecaysWithElapsedTime(t *testing.T) {
	prev := Confidence(30, 10, 0, 0.1)
	for _, h := range []float64{1, 4, 12, 24, 48} {
		c := Confidence(30, 10, h, 0.1)
		if c >= prev {
			t.Fatalf("confidence must strictly decrease with staleness: %v at %vh >= %v", c, h, prev)
		}
		prev = c
	}
}

func TestConfidence_RewardsSamples(t *testing.T) {
	if Confidence(100, 50, 1, 0.1) <= Confidence(2, 0, 1, 0.1) {
		t.Fatalf("more samples must raise confidence")
	}
}

func TestHardFillLabel_Thresholds(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{0.1, model.RiskLow}, {0.25, model.RiskMedium}, {0.49, model.RiskMedium},
		{0.5, model.RiskHigh}, {0.74, model.RiskHigh}, {0.75, model.RiskCritical}, {0.99, model.RiskCritical},
	}
	for _, c := range cases {
		if got := HardFillLabel(c.score); got != c.want {
			t.Errorf("HardFillLabel(%v) = %q, want %q", c.score, got, c.want)
		}
	}
}

func TestComputeOne_TopFactorsCount(t *testing.T) {
	buckets := &fakeBuckets{agg: model.BucketAggregate{
		SmoothedOfferRate: 0.75, SmoothedViewRate: 0.6, SmoothedAcceptRate: 0.4,
		EffectiveSupplyCount: 50, NLoads: 10,
	}}
	e := newTestEstimator(t, buckets, &fakeLanes{n: 3}, &fakeIntelStore{}, nil)
	now := time.Now().UTC()
	ld := testLoad("ld-1", now)
	ld.ComplexityRaw = f64(2)
	it, err := e.ComputeOne(context.Background(), ld, now)
	if err != nil {
		t.Fatalf("ComputeOne: %v", err)
	}
	if len(it.TopFactors) != 3 {
		t.Fatalf("expected 3 top factors, got %d", len(it.TopFactors))
	}
	// Deep supply (factor ~0.91) should be the most decisive signal here.
	if it.TopFactors[0].Label != "Available supply" || it.TopFactors[0].Direction != "up" {
		t.Fatalf("unexpected leading factor %+v", it.TopFactors[0])
	}
}

func TestRefresh_PartialFailureContinues(t *testing.T) {
	now := time.Now().UTC()
	loads := &fakeLoads{loads: map[string]model.Load{
		"ld-ok1": testLoad("ld-ok1", now),
		"ld-bad": testLoad("ld-bad", now),
		"ld-ok2": testLoad("ld-ok2", now),
	}}
	intelStore := &fakeIntelStore{failFor: map[string]bool{"ld-bad": true}}
	e := newTestEstimator(t, &fakeBuckets{err: store.ErrNotFound}, &fakeLanes{}, intelStore, loads)

	res, err := e.Refresh(context.Background(), "", 100)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if res.Processed != 2 || res.Errors != 1 {
		t.Fatalf("expected 2 processed / 1 error, got %d / %d", res.Processed, res.Errors)
	}
	if _, ok := intelStore.upserts["ld-ok1"]; !ok {
		t.Fatalf("successful loads must still be upserted")
	}
}

func TestRefresh_SingleLoad(t *testing.T) {
	now := time.Now().UTC()
	loads := &fakeLoads{loads: map[string]model.Load{"ld-1": testLoad("ld-1", now)}}
	intelStore := &fakeIntelStore{}
	e := newTestEstimator(t, &fakeBuckets{err: store.ErrNotFound}, &fakeLanes{}, intelStore, loads)

	res, err := e.Refresh(context.Background(), "ld-1", 0)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if res.Processed != 1 || res.BatchSize != DefaultConfig().DefaultBatchSize {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, ok := intelStore.upserts["ld-1"]; !ok {
		t.Fatalf("snapshot not upserted")
	}
}

func TestRefresh_StorageFailureSurfaces(t *testing.T) {
	loads := &fakeLoads{err: errors.New("connection refused")}
	e := newTestEstimator(t, &fakeBuckets{}, &fakeLanes{}, &fakeIntelStore{}, loads)
	if _, err := e.Refresh(context.Background(), "", 10); err == nil {
		t.Fatalf("primary read failure must surface as an error")
	}
}
