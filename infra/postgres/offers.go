package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/haulcommand/dispatchd/core/model"
)

// OfferedEscorts implements store.OfferStore.
func (s *Store) OfferedEscorts(ctx context.Context, loadID string, wave int) (map[string]bool, error) {
	statuses := make([]string, 0, len(model.NonTerminalStatuses))
	for _, st := range model.NonTerminalStatuses {
		statuses = append(statuses, string(st))
	}
	rows, err := s.pool.Query(ctx, `
		SELECT escort_id FROM match_offers
		WHERE load_id = $1 AND wave = $2 AND status = ANY($3)`,
		loadID, wave, statuses)
	if err != nil {
		return nil, fmt.Errorf("query existing offers: %w", err)
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

// CreateOffers implements store.OfferStore. Offers are inserted in one batch;
// the unique (load_id, escort_id, wave) index rejects concurrent duplicates.
func (s *Store) CreateOffers(ctx context.Context, offers []model.MatchOffer) error {
	if len(offers) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, o := range offers {
		reason, err := json.Marshal(o.Reason)
		if err != nil {
			return fmt.Errorf("encode offer reason: %w", err)
		}
		batch.Queue(`
			INSERT INTO match_offers
				(id, load_id, broker_id, escort_id, offer_rank, wave,
				 offer_reason_json, offered_rate, offered_at, expires_at, status)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			o.ID, o.LoadID, o.BrokerID, o.EscortID, o.Rank, o.Wave,
			reason, o.OfferedRate, o.OfferedAt, o.ExpiresAt, string(o.Status))
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range offers {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert offer: %w", err)
		}
	}
	return nil
}

// MarkFirstOffer implements store.SLALog. The IS NULL guard makes the write
// idempotent: only the first wave that sends offers sets the timestamp.
func (s *Store) MarkFirstOffer(ctx context.Context, loadID string, offersSent int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE boost_sla_log
		SET first_offer_at = now(), total_offers_sent = $2
		WHERE load_id = $1 AND first_offer_at IS NULL`,
		loadID, offersSent)
	if err != nil {
		return fmt.Errorf("mark first offer: %w", err)
	}
	return nil
}
