// Package intel computes per-load fill intelligence: stage probabilities at
// multiple horizons, confidence under sparse data, uncertainty bands,
// hard-fill risk and market-value classification. Snapshots are upserted,
// one row per load.
package intel

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/haulcommand/dispatchd/core/events"
	"github.com/haulcommand/dispatchd/core/geo"
	"github.com/haulcommand/dispatchd/core/logger"
	"github.com/haulcommand/dispatchd/core/model"
	"github.com/haulcommand/dispatchd/core/store"
	"github.com/haulcommand/dispatchd/internal/eventbus"
)

// Result summarises one refresh invocation.
type Result struct {
	Processed int       `json:"processed"`
	Errors    int       `json:"errors"`
	BatchSize int       `json:"batch_size"`
	RanAt     time.Time `json:"ran_at"`
}

// Estimator produces and refreshes load intelligence snapshots.
type Estimator struct {
	cfg        Config
	loads      store.LoadReader
	buckets    store.BucketReader
	lanes      store.LaneMatchCounter
	intel      store.IntelStore
	classifier store.ValueClassifier
	bus        eventbus.EventBus
	log        logger.Logger
}

// NewEstimator wires an estimator. The classifier may be nil, in which case
// value classification is reported as unknown and treated as neutral.
func NewEstimator(cfg Config, loads store.LoadReader, buckets store.BucketReader, lanes store.LaneMatchCounter, intelStore store.IntelStore, classifier store.ValueClassifier, log logger.Logger) (*Estimator, error) {
	if loads == nil || buckets == nil || intelStore == nil {
		return nil, fmt.Errorf("intel: nil store provided to NewEstimator")
	}
	cfg.SetDefaults()
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Estimator{
		cfg:        cfg,
		loads:      loads,
		buckets:    buckets,
		lanes:      lanes,
		intel:      intelStore,
		classifier: classifier,
		log:        log,
	}, nil
}

// SetBus attaches an event bus; each successful snapshot refresh is then
// published as an IntelEvent.
func (e *Estimator) SetBus(bus eventbus.EventBus) { e.bus = bus }

// Refresh recomputes intelligence for one load, or a bounded batch of open
// loads when loadID is empty. Per-load failures are counted and logged but
// never abort the batch.
func (e *Estimator) Refresh(ctx context.Context, loadID string, batchSize int) (Result, error) {
	if batchSize <= 0 {
		batchSize = e.cfg.DefaultBatchSize
	}
	res := Result{BatchSize: batchSize, RanAt: time.Now().UTC()}

	var (
		loads []model.Load
		err   error
	)
	if loadID != "" {
		var ld model.Load
		ld, err = e.loads.OpenLoad(ctx, loadID)
		if err == nil {
			loads = []model.Load{ld}
		}
	} else {
		loads, err = e.loads.OpenLoads(ctx, batchSize)
	}
	if err != nil {
		return res, fmt.Errorf("fetch open loads: %w", err)
	}

	now := time.Now().UTC()
	for _, ld := range loads {
		snapshot, cerr := e.ComputeOne(ctx, ld, now)
		if cerr == nil {
			cerr = e.intel.Upsert(ctx, snapshot)
		}
		if cerr != nil {
			e.log.Errorf("intel refresh failed for load %s: %v", ld.ID, cerr)
			res.Errors++
			continue
		}
		res.Processed++
		if e.bus != nil {
			e.bus.Publish(events.IntelEvent{
				LoadID:     ld.ID,
				Fill60m:    snapshot.Horizon60m.Fill,
				Confidence: snapshot.Confidence,
			})
		}
	}
	return res, nil
}

// ComputeOne derives the full intelligence snapshot for a single load.
func (e *Estimator) ComputeOne(ctx context.Context, ld model.Load, now time.Time) (model.LoadIntel, error) {
	postedAt := ld.CreatedAt
	if postedAt.IsZero() {
		postedAt = now
	}
	elapsedHours := now.Sub(postedAt).Hours()
	if elapsedHours < 0 {
		elapsedHours = 0
	}

	bucket, err := e.buckets.SmoothedRates(ctx, ld.BucketKey())
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return model.LoadIntel{}, fmt.Errorf("bucket rates: %w", err)
		}
		bucket = model.BucketAggregate{
			SmoothedOfferRate:  e.cfg.DefaultOfferRate,
			SmoothedViewRate:   e.cfg.DefaultViewRate,
			SmoothedAcceptRate: e.cfg.DefaultAcceptRate,
		}
	}

	nLane := 0
	if e.lanes != nil {
		if n, lerr := e.lanes.LaneMatches90d(ctx, ld.LaneKey); lerr != nil {
			e.log.Warnf("lane match count for %s: %v", ld.LaneKey, lerr)
		} else {
			nLane = n
		}
	}

	urgency := 0.5
	if ld.UrgencyRaw != nil {
		urgency = *ld.UrgencyRaw
	}
	complexityRaw := 0.0
	if ld.ComplexityRaw != nil {
		complexityRaw = *ld.ComplexityRaw
	}
	complexityPenalty := geo.Clamp01(1 - complexityRaw*0.08)

	leadTimeAdj := 0.8
	if ld.LeadTimeHoursRaw != nil {
		leadTimeAdj = geo.Clamp01(1 - math.Max(0, *ld.LeadTimeHoursRaw-24)*0.01)
	}

	supply := bucket.EffectiveSupplyCount
	supplyFactor := geo.Clamp01(float64(supply) / float64(supply+5))

	baseOffer := bucket.SmoothedOfferRate * supplyFactor
	baseView := bucket.SmoothedViewRate
	baseAccept := bucket.SmoothedAcceptRate * geo.Clamp01(1+urgency*0.2)

	// 60-minute horizon: primary display, tightest supply pressure.
	h60 := model.StageProbs{
		Offer:  geo.Clamp01(baseOffer * leadTimeAdj * complexityPenalty),
		View:   geo.Clamp01(baseView * (1 - elapsedHours*0.005)),
		Accept: geo.Clamp01(baseAccept * urgency),
	}
	h60.Fill = geo.Clamp01(h60.Offer * h60.View * h60.Accept)

	// 4-hour horizon relaxes supply pressure, decays view/accept freshness.
	h4 := model.StageProbs{
		Offer:  geo.Clamp01(baseOffer * math.Min(1, supplyFactor*1.3)),
		View:   geo.Clamp01(baseView * 0.95),
		Accept: geo.Clamp01(baseAccept * 0.9),
	}
	h4.Fill = geo.Clamp01(h4.Offer * h4.View * h4.Accept)

	h24 := model.StageProbs{
		Offer:  geo.Clamp01(math.Min(0.95, baseOffer*1.5)),
		View:   geo.Clamp01(baseView * 0.85),
		Accept: geo.Clamp01(baseAccept * 0.80),
	}
	h24.Fill = geo.Clamp01(h24.Offer * h24.View * h24.Accept)

	confidence := Confidence(bucket.NLoads, nLane, elapsedHours, e.cfg.FreshnessDecayRate)

	// Wider bands when confidence is low so sparse-data loads are visibly
	// less trustworthy.
	half := 0.08 * (1 - confidence)
	if confidence < 0.5 {
		half = 0.20 * (1 - confidence)
	}
	pLow := geo.Clamp01(h60.Fill - half)
	pHigh := geo.Clamp01(h60.Fill + half)

	value := store.Value{Color: "unknown"}
	if e.classifier != nil {
		if v, verr := e.classifier.ClassifyValue(ctx, ld.RateAmount, ld.GeoKey); verr != nil {
			e.log.Warnf("value classification for load %s: %v", ld.ID, verr)
		} else {
			value = v
		}
	}
	valueScore := 0.5
	if value.Score01 != nil {
		valueScore = *value.Score01
	}

	brokerTrust := 0.7
	if ld.BrokerTrust01 != nil {
		brokerTrust = *ld.BrokerTrust01
	}

	// Penalty terms normalised so higher always means harder to fill.
	xLeadTime := geo.Clamp01(1 - leadTimeAdj)
	xSupply := geo.Clamp01(1 - supplyFactor)
	xRate := geo.Clamp01(1 - valueScore)
	xComplexity := geo.Clamp01(complexityRaw / 5)
	xBrokerTrust := geo.Clamp01(1 - brokerTrust)

	w := e.cfg.HardFill
	rawRisk := w.LeadTime*xLeadTime + w.Supply*xSupply + w.Rate*xRate +
		w.Complexity*xComplexity + w.BrokerTrust*xBrokerTrust
	riskScore := geo.Clamp01(sigmoid((rawRisk - 0.5) * e.cfg.SigmoidSteepness))

	medianOffer := bucket.MedianTimeToOfferMin
	if medianOffer <= 0 {
		medianOffer = 15
	}
	medianAccept := bucket.MedianTimeToAcceptMin
	if medianAccept <= 0 {
		medianAccept = 20
	}

	ratio := 0.0
	if supply > 0 {
		ratio = float64(supply) / 12
	}

	return model.LoadIntel{
		LoadID:     ld.ID,
		ComputedAt: now,

		LaneKey:          ld.LaneKey,
		GeoKey:           ld.GeoKey,
		SimilarBucketKey: ld.BucketKey(),

		Horizon60m: h60,
		Horizon4h:  h4,
		Horizon24h: h24,

		Confidence: confidence,
		PLow60m:    pLow,
		PHigh60m:   pHigh,

		TrialsSimilar30d:     bucket.NLoads,
		MatchesLane90d:       nLane,
		AvailableSupplyCount: supply,
		SupplyDemandRatio:    ratio,

		ValueColor:   value.Color,
		ValueScore01: value.Score01,

		HardFillRiskScore01: riskScore,
		HardFillLabel:       HardFillLabel(riskScore),

		FillSpeedLabel:   FillSpeedLabel(h60.Fill, confidence),
		LoadQualityGrade: qualityGrade(h60.Fill, confidence),

		ExpectedTimeToFirstOfferMin: medianOffer,
		ExpectedTimeToAcceptMin:     medianAccept,
		ExpectedTimeToFillMin:       medianOffer + medianAccept,

		TopFactors: topFactors(supplyFactor, valueScore, urgency, leadTimeAdj, complexityPenalty),
	}, nil
}

// Confidence combines sample-size evidence with a freshness decay. It rewards
// historical evidence and decays toward zero over roughly one day without
// fresh samples.
func Confidence(nSimilar, nLane int, elapsedHours, decayRate float64) float64 {
	sampleConfidence := geo.Clamp01(
		float64(nSimilar)/math.Max(1, float64(nSimilar+10))*0.6 +
			float64(nLane)/math.Max(1, float64(nLane+5))*0.4)
	freshness := math.Exp(-decayRate * elapsedHours)
	return geo.Clamp01(sampleConfidence * freshness)
}

// HardFillLabel buckets a risk score into its display label.
func HardFillLabel(score float64) string {
	switch {
	case score >= 0.75:
		return model.RiskCritical
	case score >= 0.50:
		return model.RiskHigh
	case score >= 0.25:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

// FillSpeedLabel maps the 60-minute fill probability to a display label.
// Below the confidence floor the prediction is not shown as a speed at all.
func FillSpeedLabel(fill60m, confidence float64) string {
	switch {
	case confidence < 0.20:
		return model.SpeedUnknown
	case fill60m >= 0.70:
		return model.SpeedFast
	case fill60m >= 0.45:
		return model.SpeedModerate
	default:
		return model.SpeedSlow
	}
}

func qualityGrade(fill60m, confidence float64) string {
	switch {
	case fill60m >= 0.70 && confidence >= 0.50:
		return "A"
	case fill60m >= 0.50:
		return "B"
	case fill60m >= 0.30:
		return "C"
	default:
		return "D"
	}
}

// topFactors ranks the adjustment signals by how far they deviate from the
// neutral 0.5 and keeps the three most decisive, each tagged up or down.
func topFactors(supplyFactor, valueScore, urgency, leadTimeAdj, complexityPenalty float64) []model.TopFactor {
	factors := []model.TopFactor{
		{Label: "Available supply", Value: supplyFactor, Direction: direction(supplyFactor > 0.5)},
		{Label: "Rate competitiveness", Value: valueScore, Direction: direction(valueScore > 0.5)},
		{Label: "Urgency", Value: urgency, Direction: direction(urgency > 0.5)},
		{Label: "Lead time", Value: leadTimeAdj, Direction: direction(leadTimeAdj > 0.7)},
		{Label: "Requirement complexity", Value: complexityPenalty, Direction: direction(complexityPenalty > 0.7)},
	}
	sort.SliceStable(factors, func(i, j int) bool {
		return math.Abs(factors[i].Value-0.5) > math.Abs(factors[j].Value-0.5)
	})
	return factors[:3]
}

func direction(up bool) string {
	if up {
		return "up"
	}
	return "down"
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }
