package model

import "time"

// OfferStatus tracks the lifecycle of a match offer. Rows are never deleted;
// they only transition status, forming an append-only audit trail.
type OfferStatus string

const (
	OfferOffered  OfferStatus = "offered"
	OfferViewed   OfferStatus = "viewed"
	OfferAccepted OfferStatus = "accepted"
	OfferDeclined OfferStatus = "declined"
	OfferExpired  OfferStatus = "expired"
)

// NonTerminalStatuses are the offer states that still count against the
// one-active-offer-per-(load,escort) invariant.
var NonTerminalStatuses = []OfferStatus{OfferOffered, OfferViewed, OfferAccepted}

// OfferReason is the scoring rationale snapshot persisted with each offer.
type OfferReason struct {
	Score         float64 `json:"score"`
	DistanceMiles int     `json:"distance_miles"`
	Wave          int     `json:"wave"`
}

// MatchOffer is one escort's time-boxed invitation to accept a load within a
// specific wave.
type MatchOffer struct {
	ID          string
	LoadID      string
	BrokerID    string
	EscortID    string
	Rank        int
	Wave        int
	Reason      OfferReason
	OfferedRate *float64
	OfferedAt   time.Time
	ExpiresAt   time.Time
	Status      OfferStatus
}
