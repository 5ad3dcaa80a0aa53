package match

import (
	"math"
	"testing"

	"github.com/haulcommand/dispatchd/core/model"
)

func TestDefaultScoreWeights_SumToOne(t *testing.T) {
	if s := DefaultScoreWeights().Sum(); math.Abs(s-1.0) > 1e-9 {
		t.Fatalf("weights sum %v, want 1.0", s)
	}
}

func TestScore_PerfectCandidateIsOne(t *testing.T) {
	ld := openLoad()
	ld.RateAmount = f64(2000)
	c := Candidate{
		Escort: model.Escort{
			EscortID:          "e1",
			TrustBase:         f64(100),
			InsuranceStatus:   model.StatusVerified,
			ComplianceStatus:  model.StatusVerified,
			MinRatePreference: f64(1000),
		},
		DistanceMiles: 0,
	}
	got := Score(ld, c, DefaultScoreWeights())
	if math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("perfect candidate score %v, want 1.0", got)
	}
}

func TestScore_ColdStartDefaults(t *testing.T) {
	ld := openLoad()
	ld.RateAmount = nil
	c := Candidate{
		Escort: model.Escort{
			EscortID:         "fresh",
			InsuranceStatus:  model.StatusVerified,
			ComplianceStatus: model.StatusPending,
		},
		DistanceMiles: 75,
	}
	w := DefaultScoreWeights()
	got := Score(ld, c, w)

	// accept 0.4, response 1-75/150=0.5, trust 0.5, distance 1-75/500=0.85,
	// rate 0.7 neutral, compliance 0.5 (not fully verified).
	want := w.AcceptRate*0.4 + w.ResponseSpeed*0.5 + w.Trust*0.5 +
		w.Distance*0.85 + w.RateFit*0.7 + w.Compliance*0.5
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("cold-start score %v, want %v", got, want)
	}
}

func TestScore_BoundedByOne(t *testing.T) {
	ld := openLoad()
	ld.RateAmount = f64(99999)
	c := Candidate{
		Escort: model.Escort{
			EscortID:          "e1",
			TrustBase:         f64(500),
			InsuranceStatus:   model.StatusVerified,
			ComplianceStatus:  model.StatusVerified,
			MinRatePreference: f64(1),
		},
		DistanceMiles: 0,
	}
	if got := Score(ld, c, DefaultScoreWeights()); got > 1.0+1e-9 {
		t.Fatalf("sub-score clamping failed, composite %v > 1", got)
	}
}

func TestRank_OrdersByScoreDescending(t *testing.T) {
	ld := openLoad()
	strong := eligibleEscort("strong")
	strong.TrustBase = f64(95)
	weak := eligibleEscort("weak")
	weak.TrustBase = f64(20)

	cands := []Candidate{
		{Escort: weak, DistanceMiles: 100},
		{Escort: strong, DistanceMiles: 10},
	}
	ranked := Rank(ld, cands, DefaultScoreWeights())
	if ranked[0].Escort.EscortID != "strong" {
		t.Fatalf("expected strong escort ranked first, got %s", ranked[0].Escort.EscortID)
	}
	if ranked[0].Score <= ranked[1].Score {
		t.Fatalf("scores not descending: %v then %v", ranked[0].Score, ranked[1].Score)
	}
}

func TestRank_TieBreaksOnEscortID(t *testing.T) {
	ld := openLoad()
	a := Candidate{Escort: eligibleEscort("aaa"), DistanceMiles: 50}
	b := Candidate{Escort: eligibleEscort("bbb"), DistanceMiles: 50}
	ranked := Rank(ld, []Candidate{b, a}, DefaultScoreWeights())
	if ranked[0].Escort.EscortID != "aaa" {
		t.Fatalf("equal scores must order by escort id, got %s first", ranked[0].Escort.EscortID)
	}
}
