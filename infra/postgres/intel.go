package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/haulcommand/dispatchd/core/model"
	"github.com/haulcommand/dispatchd/core/store"
)

// Intel implements store.IntelStore.
func (s *Store) Intel(ctx context.Context, loadID string) (model.LoadIntel, error) {
	var (
		it          model.LoadIntel
		factorsJSON []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT load_id, computed_at, lane_key, geo_key, similar_bucket_key,
		       p_offer_60m, p_view_60m, p_accept_60m, fill_probability_60m,
		       p_offer_4h, p_view_4h, p_accept_4h, fill_probability_4h,
		       p_offer_24h, p_view_24h, p_accept_24h, fill_probability_24h,
		       confidence, p_low_60m, p_high_60m,
		       trials_similar_30d, matches_lane_90d,
		       available_supply_count, supply_demand_ratio,
		       carvenum_value_color, carvenum_value_score_01,
		       hard_fill_risk_score_01, hard_fill_label,
		       fill_speed_label, load_quality_grade,
		       expected_time_to_first_offer_min, expected_time_to_accept_min,
		       expected_time_to_fill_min, explanation_top_factors
		FROM load_intel WHERE load_id = $1`, loadID).Scan(
		&it.LoadID, &it.ComputedAt, &it.LaneKey, &it.GeoKey, &it.SimilarBucketKey,
		&it.Horizon60m.Offer, &it.Horizon60m.View, &it.Horizon60m.Accept, &it.Horizon60m.Fill,
		&it.Horizon4h.Offer, &it.Horizon4h.View, &it.Horizon4h.Accept, &it.Horizon4h.Fill,
		&it.Horizon24h.Offer, &it.Horizon24h.View, &it.Horizon24h.Accept, &it.Horizon24h.Fill,
		&it.Confidence, &it.PLow60m, &it.PHigh60m,
		&it.TrialsSimilar30d, &it.MatchesLane90d,
		&it.AvailableSupplyCount, &it.SupplyDemandRatio,
		&it.ValueColor, &it.ValueScore01,
		&it.HardFillRiskScore01, &it.HardFillLabel,
		&it.FillSpeedLabel, &it.LoadQualityGrade,
		&it.ExpectedTimeToFirstOfferMin, &it.ExpectedTimeToAcceptMin,
		&it.ExpectedTimeToFillMin, &factorsJSON,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.LoadIntel{}, store.ErrNotFound
	}
	if err != nil {
		return model.LoadIntel{}, fmt.Errorf("query load intel: %w", err)
	}
	if len(factorsJSON) > 0 {
		if err := json.Unmarshal(factorsJSON, &it.TopFactors); err != nil {
			return model.LoadIntel{}, fmt.Errorf("decode top factors: %w", err)
		}
	}
	return it, nil
}

// Upsert implements store.IntelStore. One row per load, overwrite semantics.
func (s *Store) Upsert(ctx context.Context, it model.LoadIntel) error {
	factors, err := json.Marshal(it.TopFactors)
	if err != nil {
		return fmt.Errorf("encode top factors: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO load_intel
			(load_id, computed_at, lane_key, geo_key, similar_bucket_key,
			 p_offer_60m, p_view_60m, p_accept_60m, fill_probability_60m,
			 p_offer_4h, p_view_4h, p_accept_4h, fill_probability_4h,
			 p_offer_24h, p_view_24h, p_accept_24h, fill_probability_24h,
			 confidence, p_low_60m, p_high_60m,
			 trials_similar_30d, matches_lane_90d,
			 available_supply_count, supply_demand_ratio,
			 carvenum_value_color, carvenum_value_score_01,
			 hard_fill_risk_score_01, hard_fill_label,
			 fill_speed_label, load_quality_grade,
			 expected_time_to_first_offer_min, expected_time_to_accept_min,
			 expected_time_to_fill_min, explanation_top_factors)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,
		        $18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32,$33,$34)
		ON CONFLICT (load_id) DO UPDATE SET
			computed_at = EXCLUDED.computed_at,
			lane_key = EXCLUDED.lane_key,
			geo_key = EXCLUDED.geo_key,
			similar_bucket_key = EXCLUDED.similar_bucket_key,
			p_offer_60m = EXCLUDED.p_offer_60m,
			p_view_60m = EXCLUDED.p_view_60m,
			p_accept_60m = EXCLUDED.p_accept_60m,
			fill_probability_60m = EXCLUDED.fill_probability_60m,
			p_offer_4h = EXCLUDED.p_offer_4h,
			p_view_4h = EXCLUDED.p_view_4h,
			p_accept_4h = EXCLUDED.p_accept_4h,
			fill_probability_4h = EXCLUDED.fill_probability_4h,
			p_offer_24h = EXCLUDED.p_offer_24h,
			p_view_24h = EXCLUDED.p_view_24h,
			p_accept_24h = EXCLUDED.p_accept_24h,
			fill_probability_24h = EXCLUDED.fill_probability_24h,
			confidence = EXCLUDED.confidence,
			p_low_60m = EXCLUDED.p_low_60m,
			p_high_60m = EXCLUDED.p_high_60m,
			trials_similar_30d = EXCLUDED.trials_similar_30d,
			matches_lane_90d = EXCLUDED.matches_lane_90d,
			available_supply_count = EXCLUDED.available_supply_count,
			supply_demand_ratio = EXCLUDED.supply_demand_ratio,
			carvenum_value_color = EXCLUDED.carvenum_value_color,
			carvenum_value_score_01 = EXCLUDED.carvenum_value_score_01,
			hard_fill_risk_score_01 = EXCLUDED.hard_fill_risk_score_01,
			hard_fill_label = EXCLUDED.hard_fill_label,
			fill_speed_label = EXCLUDED.fill_speed_label,
			load_quality_grade = EXCLUDED.load_quality_grade,
			expected_time_to_first_offer_min = EXCLUDED.expected_time_to_first_offer_min,
			expected_time_to_accept_min = EXCLUDED.expected_time_to_accept_min,
			expected_time_to_fill_min = EXCLUDED.expected_time_to_fill_min,
			explanation_top_factors = EXCLUDED.explanation_top_factors`,
		it.LoadID, it.ComputedAt, it.LaneKey, it.GeoKey, it.SimilarBucketKey,
		it.Horizon60m.Offer, it.Horizon60m.View, it.Horizon60m.Accept, it.Horizon60m.Fill,
		it.Horizon4h.Offer, it.Horizon4h.View, it.Horizon4h.Accept, it.Horizon4h.Fill,
		it.Horizon24h.Offer, it.Horizon24h.View, it.Horizon24h.Accept, it.Horizon24h.Fill,
		it.Confidence, it.PLow60m, it.PHigh60m,
		it.TrialsSimilar30d, it.MatchesLane90d,
		it.AvailableSupplyCount, it.SupplyDemandRatio,
		it.ValueColor, it.ValueScore01,
		it.HardFillRiskScore01, it.HardFillLabel,
		it.FillSpeedLabel, it.LoadQualityGrade,
		it.ExpectedTimeToFirstOfferMin, it.ExpectedTimeToAcceptMin,
		it.ExpectedTimeToFillMin, factors,
	)
	if err != nil {
		return fmt.Errorf("upsert load intel: %w", err)
	}
	return nil
}

// SmoothedRates implements store.BucketReader.
func (s *Store) SmoothedRates(ctx context.Context, bucketKey string) (model.BucketAggregate, error) {
	var agg model.BucketAggregate
	err := s.pool.QueryRow(ctx, `
		SELECT similar_bucket_key, smoothed_offer_rate, smoothed_view_rate,
		       smoothed_accept_rate, n_loads, effective_supply_count,
		       median_time_to_offer_min, median_time_to_accept_min
		FROM v_smoothed_bucket_rates WHERE similar_bucket_key = $1`, bucketKey).Scan(
		&agg.BucketKey, &agg.SmoothedOfferRate, &agg.SmoothedViewRate,
		&agg.SmoothedAcceptRate, &agg.NLoads, &agg.EffectiveSupplyCount,
		&agg.MedianTimeToOfferMin, &agg.MedianTimeToAcceptMin,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.BucketAggregate{}, store.ErrNotFound
	}
	if err != nil {
		return model.BucketAggregate{}, fmt.Errorf("query bucket rates: %w", err)
	}
	return agg, nil
}

// LaneMatches90d implements store.LaneMatchCounter.
func (s *Store) LaneMatches90d(ctx context.Context, laneKey string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM matches
		WHERE lane_key = $1 AND created_at >= now() - interval '90 days'`, laneKey).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count lane matches: %w", err)
	}
	return n, nil
}

// IngestEvent implements store.EventSink via the ingest_event database
// function feeding the market data spine.
func (s *Store) IngestEvent(ctx context.Context, ev store.MarketEvent) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("encode event payload: %w", err)
	}
	var corridor *string
	if ev.CorridorID != "" {
		corridor = &ev.CorridorID
	}
	_, err = s.pool.Exec(ctx,
		`SELECT ingest_event($1, $2, $3, $4, $5)`,
		ev.EventType, ev.ActorID, ev.EntityID, payload, corridor)
	if err != nil {
		return fmt.Errorf("ingest event: %w", err)
	}
	return nil
}

// ClassifyValue implements store.ValueClassifier via the market pricing
// comparison function. Absence of comparable data yields an unknown color.
func (s *Store) ClassifyValue(ctx context.Context, rateAmount *float64, geoKey string) (store.Value, error) {
	var v store.Value
	err := s.pool.QueryRow(ctx,
		`SELECT value_color, value_score_01 FROM compute_carvenum_value($1, $2)`,
		rateAmount, geoKey).Scan(&v.Color, &v.Score01)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Value{Color: "unknown"}, nil
	}
	if err != nil {
		return store.Value{}, fmt.Errorf("classify value: %w", err)
	}
	return v, nil
}
