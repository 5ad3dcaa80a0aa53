// Package store defines the read and write contracts the matching core
// expects from the persistence collaborator. The core never assumes a
// specific relational backend, only that these shapes are satisfiable.
package store

import (
	"context"
	"errors"

	"github.com/haulcommand/dispatchd/core/model"
)

// ErrNotFound is returned when a single-row lookup matches nothing.
var ErrNotFound = errors.New("store: not found")

// LoadReader exposes the open-loads enriched view.
type LoadReader interface {
	// OpenLoad returns the load if it exists and is open, ErrNotFound otherwise.
	OpenLoad(ctx context.Context, loadID string) (model.Load, error)
	// OpenLoads returns up to limit open loads for batch estimation.
	OpenLoads(ctx context.Context, limit int) ([]model.Load, error)
}

// SupplyReader exposes the active escort supply view.
type SupplyReader interface {
	ActiveSupply(ctx context.Context) ([]model.Escort, error)
}

// BlocklistReader resolves bidirectional block relationships for a broker.
type BlocklistReader interface {
	// BlockedIDs returns every user id with a block relationship against the
	// broker, in either direction, excluding the broker itself.
	BlockedIDs(ctx context.Context, brokerID string) (map[string]bool, error)
}

// OfferStore persists match offers and answers idempotency queries.
type OfferStore interface {
	// OfferedEscorts returns escort ids holding a non-terminal offer for the
	// load in the given wave.
	OfferedEscorts(ctx context.Context, loadID string, wave int) (map[string]bool, error)
	CreateOffers(ctx context.Context, offers []model.MatchOffer) error
}

// IntelStore reads and upserts per-load intelligence snapshots.
type IntelStore interface {
	// Intel returns the latest snapshot, ErrNotFound when none was computed yet.
	Intel(ctx context.Context, loadID string) (model.LoadIntel, error)
	Upsert(ctx context.Context, intel model.LoadIntel) error
}

// BucketReader exposes the smoothed bucket rates view.
type BucketReader interface {
	// SmoothedRates returns the aggregate for the bucket key, ErrNotFound when
	// the bucket has no history.
	SmoothedRates(ctx context.Context, bucketKey string) (model.BucketAggregate, error)
}

// LaneMatchCounter counts recent matches used as lane-level evidence.
type LaneMatchCounter interface {
	LaneMatches90d(ctx context.Context, laneKey string) (int, error)
}

// SLALog tracks per-load dispatch SLA milestones.
type SLALog interface {
	// MarkFirstOffer records the first-offer timestamp and offer count, only
	// if no first offer was recorded before.
	MarkFirstOffer(ctx context.Context, loadID string, offersSent int) error
}

// MarketEvent is the append-only broadcast signal fed into the data spine.
type MarketEvent struct {
	EventType  string
	ActorID    string
	EntityID   string
	CorridorID string
	Payload    map[string]any
}

// EventSink ingests market signal events. Implementations may fail; callers
// on the dispatch path must treat failures as non-fatal.
type EventSink interface {
	IngestEvent(ctx context.Context, ev MarketEvent) error
}

// Value is the market-value classification returned by the pricing
// collaborator. Score01 is nil when the market has no comparable data.
type Value struct {
	Color   string
	Score01 *float64
}

// ValueClassifier compares a load's rate against the market. Treated as a
// black-box collaborator.
type ValueClassifier interface {
	ClassifyValue(ctx context.Context, rateAmount *float64, geoKey string) (Value, error)
}
