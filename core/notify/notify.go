// Package notify defines the push-notification contract used by the wave
// dispatcher. Delivery itself is an external collaborator; the dispatcher
// only queues intents and swallows individual failures.
package notify

import (
	"context"
	"fmt"
	"strconv"

	"github.com/haulcommand/dispatchd/core/model"
)

// OfferNotification is the payload queued for one offered escort.
type OfferNotification struct {
	EscortID string  `json:"escort_id"`
	LoadID   string  `json:"load_id"`
	Title    string  `json:"title"`
	Body     string  `json:"body"`
	DeepLink string  `json:"deep_link"`
	Wave     int     `json:"wave"`
	Rank     int     `json:"rank"`
	Rate     float64 `json:"rate,omitempty"`
}

// Notifier queues an offer notification for delivery. Implementations may
// fail; the dispatch path logs and continues.
type Notifier interface {
	NotifyOffer(ctx context.Context, n OfferNotification) error
}

// Nop discards notifications. Default for tests and one-shot CLI runs.
type Nop struct{}

func (Nop) NotifyOffer(context.Context, OfferNotification) error { return nil }

// Build assembles the notification payload for an offer the way the mobile
// app expects it: "123mi TX→OK • $1500" plus a deep link into the offer.
func Build(load model.Load, offer model.MatchOffer) OfferNotification {
	n := OfferNotification{
		EscortID: offer.EscortID,
		LoadID:   load.ID,
		Title:    "Load Offer",
		Body:     body(load),
		DeepLink: "haulcommand://offers/" + load.ID,
		Wave:     offer.Wave,
		Rank:     offer.Rank,
	}
	if load.RateAmount != nil {
		n.Rate = *load.RateAmount
	}
	return n
}

func body(load model.Load) string {
	miles := "?"
	if load.EstMiles != nil {
		miles = strconv.Itoa(int(*load.EstMiles))
	}
	rate := "?"
	if load.RateAmount != nil {
		rate = strconv.FormatFloat(*load.RateAmount, 'f', -1, 64)
	}
	return fmt.Sprintf("%smi %s→%s • $%s", miles, load.OriginState, load.DestState, rate)
}
