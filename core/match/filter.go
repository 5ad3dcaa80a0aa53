// Package match implements structural eligibility filtering and candidate
// scoring for escort supply against an open load.
package match

import (
	"github.com/haulcommand/dispatchd/core/geo"
	"github.com/haulcommand/dispatchd/core/model"
)

// Candidate is an escort that passed every must-pass filter, paired with its
// distance to the load origin.
type Candidate struct {
	Escort        model.Escort
	DistanceMiles float64
}

// Filter returns the subset of the supply pool structurally eligible to
// receive an offer for the load. Filters apply in a fixed cheapest-first
// order and short-circuit:
//
//  1. blocklist (bidirectional, against the posting broker)
//  2. already offered in this wave (idempotency on retry)
//  3. compliance: insurance verified; compliance verified or pending
//  4. capability match against load requirements
//  5. location presence on both sides
//  6. haversine distance within the escort's effective radius
//  7. availability window end not before load pickup start
//  8. load rate not below the escort's minimum
//
// Pure and deterministic: no side effects, output order follows input order.
func Filter(load model.Load, pool []model.Escort, blocked, alreadyOffered map[string]bool) []Candidate {
	var out []Candidate
	for _, e := range pool {
		if blocked[e.EscortID] {
			continue
		}
		if alreadyOffered[e.EscortID] {
			continue
		}
		if e.InsuranceStatus != model.StatusVerified {
			continue
		}
		if e.ComplianceStatus != model.StatusVerified && e.ComplianceStatus != model.StatusPending {
			continue
		}
		if !capable(load.Requirements, e) {
			continue
		}
		if e.Lat == nil || e.Lng == nil || load.OriginLat == nil || load.OriginLng == nil {
			continue
		}
		dist := geo.DistanceMiles(*e.Lat, *e.Lng, *load.OriginLat, *load.OriginLng)
		if dist > e.Radius() {
			continue
		}
		if e.WindowStart != nil && e.WindowEnd != nil && load.PickupEarliest != nil {
			if e.WindowEnd.Before(*load.PickupEarliest) {
				continue
			}
		}
		if e.MinRatePreference != nil && *e.MinRatePreference > 0 &&
			load.RateAmount != nil && *load.RateAmount > 0 &&
			*load.RateAmount < *e.MinRatePreference {
			continue
		}
		out = append(out, Candidate{Escort: e, DistanceMiles: dist})
	}
	return out
}

func capable(req model.EscortRequirements, e model.Escort) bool {
	if req.HighPole && !e.HighPole {
		return false
	}
	if req.LeadRequired && e.VehicleType != model.VehicleLead && e.VehicleType != model.VehicleHighPole {
		return false
	}
	if req.PoliceRequired && e.VehicleType != model.VehiclePoliceCoord {
		return false
	}
	return true
}
