package match

import (
	"sort"

	"github.com/haulcommand/dispatchd/core/geo"
	"github.com/haulcommand/dispatchd/core/model"
)

// ScoreWeights tunes the composite candidate score. Weights must sum to 1.0
// so a candidate maxing every sub-score scores exactly 1.0.
type ScoreWeights struct {
	AcceptRate    float64 `json:"accept_rate"`
	ResponseSpeed float64 `json:"response_speed"`
	Trust         float64 `json:"trust"`
	Distance      float64 `json:"distance"`
	RateFit       float64 `json:"rate_fit"`
	Compliance    float64 `json:"compliance"`
}

// DefaultScoreWeights returns the production weight set.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		AcceptRate:    0.30,
		ResponseSpeed: 0.20,
		Trust:         0.20,
		Distance:      0.15,
		RateFit:       0.10,
		Compliance:    0.05,
	}
}

// Sum returns the total of all weights.
func (w ScoreWeights) Sum() float64 {
	return w.AcceptRate + w.ResponseSpeed + w.Trust + w.Distance + w.RateFit + w.Compliance
}

// ScoredCandidate pairs a filtered candidate with its composite score.
type ScoredCandidate struct {
	Candidate
	Score float64
}

// Score computes the composite [0,1] ranking score for one candidate. Every
// sub-score is clamped before weighting. The result orders candidates within
// a wave; it is not a calibrated probability.
func Score(load model.Load, c Candidate, w ScoreWeights) float64 {
	e := c.Escort

	// Accept-rate proxy: trust-derived, cold-start default 0.4 when the
	// escort has no reputation yet.
	acceptRate := 0.4
	if e.TrustBase != nil && *e.TrustBase > 0 {
		acceptRate = geo.Clamp01(*e.TrustBase / 100)
	}

	radius := e.Radius()
	if radius < 1 {
		radius = 1
	}
	responseSpeed := geo.Clamp01(1 - c.DistanceMiles/radius)

	trustBase := 50.0
	if e.TrustBase != nil {
		trustBase = *e.TrustBase
	}
	trust := geo.Clamp01(trustBase / 100)

	distance := geo.Clamp01(1 - c.DistanceMiles/500)

	// Neutral default when either side has no stated rate.
	rateFit := 0.7
	if e.MinRatePreference != nil && *e.MinRatePreference > 0 &&
		load.RateAmount != nil && *load.RateAmount > 0 {
		minRate := *e.MinRatePreference
		if minRate < 1 {
			minRate = 1
		}
		rateFit = geo.Clamp01(*load.RateAmount / minRate)
	}

	compliance := 0.5
	if e.FullyVerified() {
		compliance = 1.0
	}

	return w.AcceptRate*acceptRate +
		w.ResponseSpeed*responseSpeed +
		w.Trust*trust +
		w.Distance*distance +
		w.RateFit*rateFit +
		w.Compliance*compliance
}

// Rank scores every candidate and returns them sorted by score descending.
// Ties break on escort id so ranking stays deterministic.
func Rank(load model.Load, cands []Candidate, w ScoreWeights) []ScoredCandidate {
	scored := make([]ScoredCandidate, 0, len(cands))
	for _, c := range cands {
		scored = append(scored, ScoredCandidate{Candidate: c, Score: Score(load, c, w)})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Escort.EscortID < scored[j].Escort.EscortID
	})
	return scored
}
