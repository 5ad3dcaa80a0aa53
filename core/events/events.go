// Package events defines the typed events published on the internal bus
// during dispatch and intelligence runs.
package events

// BroadcastEvent is published after a wave finishes persisting offers.
type BroadcastEvent struct {
	LoadID        string
	Wave          int
	OffersCreated int
	Corridor      string
}

// OfferEvent is published once per persisted offer.
type OfferEvent struct {
	LoadID   string
	EscortID string
	Rank     int
	Wave     int
	Score    float64
}

// IntelEvent is published when a load's intelligence snapshot is refreshed.
type IntelEvent struct {
	LoadID     string
	Fill60m    float64
	Confidence float64
}
