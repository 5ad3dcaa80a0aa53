package model

import (
	"fmt"
	"time"
)

// LoadStatus reflects the externally driven lifecycle of a posted load.
type LoadStatus string

const (
	LoadOpen      LoadStatus = "open"
	LoadMatched   LoadStatus = "matched"
	LoadExpired   LoadStatus = "expired"
	LoadCancelled LoadStatus = "cancelled"
)

// EscortRequirements captures which escort capabilities a load demands.
type EscortRequirements struct {
	HighPole       bool `json:"high_pole"`
	LeadRequired   bool `json:"lead_required"`
	PoliceRequired bool `json:"police_required"`
	Count          int  `json:"count"`
}

// Load is an oversize transportation job needing escort coverage, as exposed
// by the open-loads read contract. Optional columns are pointers so absent
// signals can be told apart from zero values.
type Load struct {
	ID       string
	BrokerID string

	OriginLat   *float64
	OriginLng   *float64
	OriginState string
	DestLat     *float64
	DestLng     *float64
	DestState   string

	PickupEarliest *time.Time
	PickupLatest   *time.Time

	RateAmount *float64
	EstMiles   *float64

	Requirements EscortRequirements

	// Similarity keys used to borrow statistical strength across loads.
	LaneKey          string
	GeoKey           string
	SimilarBucketKey string

	// Raw prediction signals carried by the enriched view.
	UrgencyRaw       *float64
	ComplexityRaw    *float64
	LeadTimeHoursRaw *float64
	BrokerTrust01    *float64

	CreatedAt time.Time
	Status    LoadStatus
}

// Corridor returns the "originState-destState" corridor identity, or an
// empty string when either state is unknown.
func (l Load) Corridor() string {
	if l.OriginState == "" || l.DestState == "" {
		return ""
	}
	return fmt.Sprintf("%s-%s", l.OriginState, l.DestState)
}

// EscortsRequired returns the requirement count, defaulting to one.
func (l Load) EscortsRequired() int {
	if l.Requirements.Count > 0 {
		return l.Requirements.Count
	}
	return 1
}

// BucketKey returns the similarity bucket key, falling back to the lane key
// and finally to "global" so a prior lookup always has a key to match.
func (l Load) BucketKey() string {
	if l.SimilarBucketKey != "" {
		return l.SimilarBucketKey
	}
	if l.LaneKey != "" {
		return l.LaneKey
	}
	return "global"
}
