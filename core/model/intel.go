package model

import "time"

// Hard-fill risk labels ordered by severity.
const (
	RiskLow      = "Low"
	RiskMedium   = "Medium"
	RiskHigh     = "High"
	RiskCritical = "Critical"
)

// Fill-speed labels shown to brokers.
const (
	SpeedUnknown  = "Unknown"
	SpeedFast     = "Fast-fill"
	SpeedModerate = "Moderate"
	SpeedSlow     = "Slow mover"
)

// TopFactor is one of the ranked signals explaining a prediction.
type TopFactor struct {
	Label     string  `json:"label"`
	Value     float64 `json:"value"`
	Direction string  `json:"direction"`
}

// StageProbs holds the offer/view/accept stage probabilities and their
// product for one time horizon. All fields are clamped to [0,1].
type StageProbs struct {
	Offer  float64
	View   float64
	Accept float64
	Fill   float64
}

// LoadIntel is the computed intelligence snapshot for a load. One row per
// load, overwritten on every estimator run.
type LoadIntel struct {
	LoadID     string
	ComputedAt time.Time

	LaneKey          string
	GeoKey           string
	SimilarBucketKey string

	Horizon60m StageProbs
	Horizon4h  StageProbs
	Horizon24h StageProbs

	Confidence float64
	PLow60m    float64
	PHigh60m   float64

	TrialsSimilar30d     int
	MatchesLane90d       int
	AvailableSupplyCount int
	SupplyDemandRatio    float64

	ValueColor   string
	ValueScore01 *float64

	HardFillRiskScore01 float64
	HardFillLabel       string

	FillSpeedLabel   string
	LoadQualityGrade string

	ExpectedTimeToFirstOfferMin float64
	ExpectedTimeToAcceptMin     float64
	ExpectedTimeToFillMin       float64

	TopFactors []TopFactor
}

// BucketAggregate carries the Bayesian-smoothed historical rates for a
// similarity bucket, read from the smoothed-bucket-rates view.
type BucketAggregate struct {
	BucketKey             string
	SmoothedOfferRate     float64
	SmoothedViewRate      float64
	SmoothedAcceptRate    float64
	NLoads                int
	EffectiveSupplyCount  int
	MedianTimeToOfferMin  float64
	MedianTimeToAcceptMin float64
}
