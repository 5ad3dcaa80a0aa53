package model

import "time"

// Vehicle types advertised by escort operators.
const (
	VehicleLead        = "lead"
	VehicleChase       = "chase"
	VehicleHighPole    = "high_pole"
	VehiclePoliceCoord = "police_coord"
)

// Verification states for insurance and compliance.
const (
	StatusVerified = "verified"
	StatusPending  = "pending"
)

// DefaultRadiusMiles is the service radius applied when an escort has not
// configured one.
const DefaultRadiusMiles = 150.0

// Escort is a candidate operator's current dispatchable state as exposed by
// the active-supply read contract. Updated externally by presence and profile
// changes; read-only to the matching core.
type Escort struct {
	EscortID string

	Lat *float64
	Lng *float64

	VehicleType string
	HighPole    bool

	InsuranceStatus  string
	ComplianceStatus string

	// TrustBase is the 0-100 reputation score. Nil means no history yet.
	TrustBase *float64

	MinRatePreference    *float64
	EffectiveRadiusMiles *float64

	WindowStart *time.Time
	WindowEnd   *time.Time
}

// Radius returns the effective service radius in miles.
func (e Escort) Radius() float64 {
	if e.EffectiveRadiusMiles != nil && *e.EffectiveRadiusMiles > 0 {
		return *e.EffectiveRadiusMiles
	}
	return DefaultRadiusMiles
}

// FullyVerified reports whether both insurance and compliance checks passed.
func (e Escort) FullyVerified() bool {
	return e.InsuranceStatus == StatusVerified && e.ComplianceStatus == StatusVerified
}
