// Package dispatch executes broadcast waves: it prunes the supply pool,
// ranks the survivors, sizes the wave from the load's intelligence snapshot
// and persists time-boxed offers.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/haulcommand/dispatchd/core/events"
	"github.com/haulcommand/dispatchd/core/logger"
	"github.com/haulcommand/dispatchd/core/match"
	"github.com/haulcommand/dispatchd/core/metrics"
	"github.com/haulcommand/dispatchd/core/model"
	"github.com/haulcommand/dispatchd/core/notify"
	"github.com/haulcommand/dispatchd/core/store"
	"github.com/haulcommand/dispatchd/internal/eventbus"
)

var (
	// ErrMissingLoadID signals an invalid request.
	ErrMissingLoadID = errors.New("dispatch: missing load_id")
	// ErrLoadNotFound signals the load does not exist or is not open.
	ErrLoadNotFound = errors.New("dispatch: load not found or not open")
)

// Defaults applied when a load has no intelligence snapshot yet.
const (
	defaultFillProbability = 0.5
	defaultConfidence      = 0.3
)

const reasonNoCandidates = "No eligible candidates in this wave"

// Request asks for exactly one dispatch wave.
type Request struct {
	LoadID string `json:"load_id"`
	Wave   int    `json:"wave"`
	// Force is accepted for API compatibility but has no effect on core
	// logic.
	Force bool `json:"force"`
}

// Result reports the outcome of one wave. An empty candidate set is a
// successful outcome with a Reason, not an error.
type Result struct {
	OK                    bool       `json:"ok"`
	OffersCreated         int        `json:"offers_created"`
	Wave                  int        `json:"wave"`
	WaveSize              int        `json:"wave_size"`
	ExpiresAt             *time.Time `json:"expires_at,omitempty"`
	TTLSeconds            int        `json:"ttl_seconds,omitempty"`
	CandidatesConsidered  int        `json:"candidates_considered"`
	CandidatesFilteredOut int        `json:"candidates_filtered_out"`
	Reason                string     `json:"reason,omitempty"`
}

// Stores bundles the persistence contracts the dispatcher consumes.
type Stores struct {
	Loads     store.LoadReader
	Supply    store.SupplyReader
	Blocklist store.BlocklistReader
	Offers    store.OfferStore
	Intel     store.IntelStore
	SLA       store.SLALog
	Events    store.EventSink
}

// Dispatcher executes dispatch waves. Stateless between invocations; safe
// for concurrent use provided the offer store enforces uniqueness on
// (load_id, escort_id, wave).
type Dispatcher struct {
	cfg      Config
	stores   Stores
	notifier notify.Notifier
	sink     metrics.Sink
	bus      eventbus.EventBus
	log      logger.Logger
	now      func() time.Time
}

// NewDispatcher wires a wave dispatcher. Notifier, sink and bus may be nil;
// side channels then default to no-ops.
func NewDispatcher(cfg Config, stores Stores, notifier notify.Notifier, sink metrics.Sink, bus eventbus.EventBus, log logger.Logger) (*Dispatcher, error) {
	if stores.Loads == nil || stores.Supply == nil || stores.Blocklist == nil || stores.Offers == nil {
		return nil, fmt.Errorf("dispatch: nil store provided to NewDispatcher")
	}
	cfg.SetDefaults()
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Dispatcher{
		cfg:      cfg,
		stores:   stores,
		notifier: notifier,
		sink:     sink,
		bus:      bus,
		log:      log,
		now:      time.Now,
	}, nil
}

// SetClock overrides the time source. Intended for tests.
func (d *Dispatcher) SetClock(now func() time.Time) { d.now = now }

// Dispatch runs one wave for the requested load.
//
//nolint:gocyclo
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Result, error) {
	if req.LoadID == "" {
		return Result{}, ErrMissingLoadID
	}
	wave := req.Wave
	if wave < 1 {
		wave = 1
	}

	load, err := d.stores.Loads.OpenLoad(ctx, req.LoadID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Result{}, ErrLoadNotFound
		}
		return Result{}, fmt.Errorf("read load: %w", err)
	}

	pFill, confidence := d.intelSnapshot(ctx, req.LoadID)
	waveSize := d.cfg.WaveSize(pFill, confidence)
	ttl := d.cfg.TTL(wave)
	now := d.now().UTC()
	expiresAt := now.Add(ttl)

	blocked, err := d.stores.Blocklist.BlockedIDs(ctx, load.BrokerID)
	if err != nil {
		return Result{}, fmt.Errorf("read blocklist: %w", err)
	}
	offered, err := d.stores.Offers.OfferedEscorts(ctx, req.LoadID, wave)
	if err != nil {
		return Result{}, fmt.Errorf("read existing offers: %w", err)
	}
	pool, err := d.stores.Supply.ActiveSupply(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("read supply: %w", err)
	}

	candidates := match.Filter(load, pool, blocked, offered)
	scored := match.Rank(load, candidates, d.cfg.Weights)

	considered := len(scored) + len(offered)
	filteredOut := len(pool) - len(scored) - len(offered)
	if filteredOut < 0 {
		filteredOut = 0
	}

	res := Result{
		OK:                    true,
		Wave:                  wave,
		WaveSize:              waveSize,
		CandidatesConsidered:  considered,
		CandidatesFilteredOut: filteredOut,
	}

	if len(scored) == 0 {
		emptyWaves.Inc()
		d.log.Infof("wave %d for load %s: no eligible candidates (pool %d)", wave, load.ID, len(pool))
		res.Reason = reasonNoCandidates
		return res, nil
	}
	if len(scored) > waveSize {
		scored = scored[:waveSize]
	}

	offers := make([]model.MatchOffer, 0, len(scored))
	for i, sc := range scored {
		offers = append(offers, model.MatchOffer{
			ID:       uuid.NewString(),
			LoadID:   load.ID,
			BrokerID: load.BrokerID,
			EscortID: sc.Escort.EscortID,
			Rank:     i + 1,
			Wave:     wave,
			Reason: model.OfferReason{
				Score:         sc.Score,
				DistanceMiles: int(math.Round(sc.DistanceMiles)),
				Wave:          wave,
			},
			OfferedRate: load.RateAmount,
			OfferedAt:   now,
			ExpiresAt:   expiresAt,
			Status:      model.OfferOffered,
		})
	}
	if err := d.stores.Offers.CreateOffers(ctx, offers); err != nil {
		return Result{}, fmt.Errorf("persist offers: %w", err)
	}

	res.OffersCreated = len(offers)
	res.ExpiresAt = &expiresAt
	res.TTLSeconds = int(ttl.Seconds())

	d.emitBroadcast(ctx, load, wave, res)
	d.notifyOffers(ctx, load, offers)
	d.markFirstOffer(ctx, load.ID, len(offers))

	wavesDispatched.WithLabelValues(strconv.Itoa(wave)).Inc()
	offersCreated.Add(float64(len(offers)))
	waveSizeHist.Observe(float64(waveSize))

	if err := d.sink.RecordWave(metrics.WaveRecord{
		LoadID:                load.ID,
		Wave:                  wave,
		WaveSize:              waveSize,
		OffersCreated:         len(offers),
		CandidatesConsidered:  considered,
		CandidatesFilteredOut: filteredOut,
		Corridor:              load.Corridor(),
		FillProbability60m:    pFill,
		Confidence:            confidence,
		DispatchTime:          now,
	}); err != nil {
		d.log.Errorf("wave metrics error: %v", err)
	}

	if d.bus != nil {
		d.bus.Publish(events.BroadcastEvent{
			LoadID:        load.ID,
			Wave:          wave,
			OffersCreated: len(offers),
			Corridor:      load.Corridor(),
		})
	}

	d.log.Infof("wave %d for load %s: %d offers (size %d, ttl %s)", wave, load.ID, len(offers), waveSize, ttl)
	return res, nil
}

// intelSnapshot reads the latest intelligence for wave sizing, falling back
// to neutral defaults when no snapshot exists yet.
func (d *Dispatcher) intelSnapshot(ctx context.Context, loadID string) (pFill, confidence float64) {
	pFill, confidence = defaultFillProbability, defaultConfidence
	if d.stores.Intel == nil {
		return
	}
	it, err := d.stores.Intel.Intel(ctx, loadID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			d.log.Warnf("intel read for load %s: %v", loadID, err)
		}
		return
	}
	return it.Horizon60m.Fill, it.Confidence
}

// emitBroadcast feeds the market-signal data spine. Failures are swallowed:
// the analytics pipeline must never break dispatch.
func (d *Dispatcher) emitBroadcast(ctx context.Context, load model.Load, wave int, res Result) {
	if d.stores.Events == nil {
		return
	}
	ev := store.MarketEvent{
		EventType:  "job_broadcasted",
		ActorID:    load.BrokerID,
		EntityID:   load.ID,
		CorridorID: load.Corridor(),
		Payload: map[string]any{
			"wave":                  wave,
			"offers_sent":           res.OffersCreated,
			"candidates_considered": res.CandidatesConsidered,
			"origin_state":          load.OriginState,
			"dest_state":            load.DestState,
			"escorts_required":      load.EscortsRequired(),
		},
	}
	if load.EstMiles != nil {
		ev.Payload["est_miles"] = *load.EstMiles
	}
	if load.RateAmount != nil {
		ev.Payload["rate_amount"] = *load.RateAmount
	}
	if err := d.stores.Events.IngestEvent(ctx, ev); err != nil {
		sideChannelFailures.WithLabelValues("market_signal").Inc()
		d.log.Warnf("market signal ingest for load %s: %v", load.ID, err)
	}
}

// notifyOffers queues one push notification per offered escort. Individual
// failures are logged and never fail the wave.
func (d *Dispatcher) notifyOffers(ctx context.Context, load model.Load, offers []model.MatchOffer) {
	for _, offer := range offers {
		if err := d.notifier.NotifyOffer(ctx, notify.Build(load, offer)); err != nil {
			sideChannelFailures.WithLabelValues("push_notification").Inc()
			d.log.Warnf("notify escort %s for load %s: %v", offer.EscortID, load.ID, err)
		}
		if d.bus != nil {
			d.bus.Publish(events.OfferEvent{
				LoadID:   load.ID,
				EscortID: offer.EscortID,
				Rank:     offer.Rank,
				Wave:     offer.Wave,
				Score:    offer.Reason.Score,
			})
		}
	}
}

// markFirstOffer records the SLA milestone. The store only sets it when it
// was previously unset, keeping the operation idempotent across waves.
func (d *Dispatcher) markFirstOffer(ctx context.Context, loadID string, offersSent int) {
	if d.stores.SLA == nil {
		return
	}
	if err := d.stores.SLA.MarkFirstOffer(ctx, loadID, offersSent); err != nil {
		sideChannelFailures.WithLabelValues("sla_log").Inc()
		d.log.Warnf("sla first-offer mark for load %s: %v", loadID, err)
	}
}
