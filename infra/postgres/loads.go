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

const loadColumns = `
	load_id, broker_id,
	origin_lat, origin_lng, origin_state,
	dest_lat, dest_lng, dest_state,
	pickup_earliest_at, pickup_latest_at,
	rate_amount, est_miles,
	escort_requirements_json,
	lane_key, geo_key, similar_bucket_key,
	urgency_numeric_raw, requirement_complexity_raw,
	lead_time_hours_raw, broker_trust_score_01,
	created_at, status`

// OpenLoad implements store.LoadReader.
func (s *Store) OpenLoad(ctx context.Context, loadID string) (model.Load, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+loadColumns+` FROM v_open_loads_enriched WHERE load_id = $1`, loadID)
	ld, err := scanLoad(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Load{}, store.ErrNotFound
	}
	return ld, err
}

// OpenLoads implements store.LoadReader.
func (s *Store) OpenLoads(ctx context.Context, limit int) ([]model.Load, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+loadColumns+` FROM v_open_loads_enriched ORDER BY created_at LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query open loads: %w", err)
	}
	defer rows.Close()

	var out []model.Load
	for rows.Next() {
		ld, err := scanLoad(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ld)
	}
	return out, rows.Err()
}

func scanLoad(row pgx.Row) (model.Load, error) {
	var (
		ld      model.Load
		reqJSON []byte
	)
	err := row.Scan(
		&ld.ID, &ld.BrokerID,
		&ld.OriginLat, &ld.OriginLng, &ld.OriginState,
		&ld.DestLat, &ld.DestLng, &ld.DestState,
		&ld.PickupEarliest, &ld.PickupLatest,
		&ld.RateAmount, &ld.EstMiles,
		&reqJSON,
		&ld.LaneKey, &ld.GeoKey, &ld.SimilarBucketKey,
		&ld.UrgencyRaw, &ld.ComplexityRaw,
		&ld.LeadTimeHoursRaw, &ld.BrokerTrust01,
		&ld.CreatedAt, &ld.Status,
	)
	if err != nil {
		return model.Load{}, err
	}
	if len(reqJSON) > 0 {
		if err := json.Unmarshal(reqJSON, &ld.Requirements); err != nil {
			return model.Load{}, fmt.Errorf("decode escort requirements: %w", err)
		}
	}
	return ld, nil
}

type escortCapabilities struct {
	HighPole bool `json:"high_pole"`
}

// ActiveSupply implements store.SupplyReader.
func (s *Store) ActiveSupply(ctx context.Context) ([]model.Escort, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT escort_id, lat, lng, vehicle_type, capabilities_json,
		       insurance_status, compliance_status, trust_base,
		       min_rate_preference, effective_radius_miles,
		       window_start, window_end
		FROM v_active_escort_supply`)
	if err != nil {
		return nil, fmt.Errorf("query active supply: %w", err)
	}
	defer rows.Close()

	var out []model.Escort
	for rows.Next() {
		var (
			e       model.Escort
			capJSON []byte
		)
		if err := rows.Scan(
			&e.EscortID, &e.Lat, &e.Lng, &e.VehicleType, &capJSON,
			&e.InsuranceStatus, &e.ComplianceStatus, &e.TrustBase,
			&e.MinRatePreference, &e.EffectiveRadiusMiles,
			&e.WindowStart, &e.WindowEnd,
		); err != nil {
			return nil, err
		}
		if len(capJSON) > 0 {
			var caps escortCapabilities
			if err := json.Unmarshal(capJSON, &caps); err != nil {
				return nil, fmt.Errorf("decode capabilities for %s: %w", e.EscortID, err)
			}
			e.HighPole = caps.HighPole
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// BlockedIDs implements store.BlocklistReader. Blocks apply in both
// directions; the broker itself is never in the returned set.
func (s *Store) BlockedIDs(ctx context.Context, brokerID string) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT blocker_user_id, blocked_user_id
		FROM escort_blocklists
		WHERE blocker_user_id = $1 OR blocked_user_id = $1`, brokerID)
	if err != nil {
		return nil, fmt.Errorf("query blocklist: %w", err)
	}
	defer rows.Close()

	blocked := map[string]bool{}
	for rows.Next() {
		var blocker, target string
		if err := rows.Scan(&blocker, &target); err != nil {
			return nil, err
		}
		blocked[blocker] = true
		blocked[target] = true
	}
	delete(blocked, brokerID)
	return blocked, rows.Err()
}
