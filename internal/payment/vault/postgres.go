package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"ridepay/internal/common/database"
	"ridepay/internal/payment"
)

// Postgres keeps saved cards in the saved_cards table.
type Postgres struct {
	db     *database.DB
	logger *slog.Logger
}

var (
	_ Vault    = (*Postgres)(nil)
	_ Appender = (*Postgres)(nil)
)

// NewPostgres creates a Postgres-backed vault.
func NewPostgres(db *database.DB, logger *slog.Logger) *Postgres {
	return &Postgres{db: db, logger: logger}
}

// Cards implements Vault.
func (p *Postgres) Cards(ctx context.Context, owner string) ([]payment.SavedCard, error) {
	rows, err := p.db.Query(ctx, `
		SELECT id, registration_id, masked_number, brand, holder, expiry_month, expiry_year, billing
		FROM saved_cards
		WHERE owner_id = $1
		ORDER BY position`, owner)
	if err != nil {
		return nil, fmt.Errorf("querying saved cards: %w", err)
	}
	defer rows.Close()

	var cards []payment.SavedCard
	for rows.Next() {
		var c payment.SavedCard
		var billing []byte
		if err := rows.Scan(&c.ID, &c.RegistrationID, &c.MaskedNumber, &c.Brand, &c.Holder,
			&c.ExpiryMonth, &c.ExpiryYear, &billing); err != nil {
			return nil, fmt.Errorf("scanning saved card: %w", err)
		}
		if err := json.Unmarshal(billing, &c.Billing); err != nil {
			return nil, fmt.Errorf("decoding billing for card %s: %w", c.ID, err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// SaveCards implements Vault.
func (p *Postgres) SaveCards(ctx context.Context, owner string, cards []payment.SavedCard) error {
	return p.db.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM saved_cards WHERE owner_id = $1`, owner); err != nil {
			return fmt.Errorf("clearing saved cards: %w", err)
		}

		batch := &pgx.Batch{}
		for i, c := range cards {
			billing, err := json.Marshal(c.Billing)
			if err != nil {
				return fmt.Errorf("encoding billing for card %s: %w", c.ID, err)
			}
			batch.Queue(`
				INSERT INTO saved_cards (id, owner_id, position, registration_id, masked_number,
					brand, holder, expiry_month, expiry_year, billing)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				c.ID, owner, i, c.RegistrationID, c.MaskedNumber,
				string(c.Brand), c.Holder, c.ExpiryMonth, c.ExpiryYear, billing,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting saved cards: %w", err)
		}

		p.logger.Debug("saved cards replaced", "owner", owner, "count", len(cards))
		return nil
	})
}

// AppendCard implements Appender. Writers for the same owner are serialized by a
// transaction-scoped advisory lock.
func (p *Postgres) AppendCard(ctx context.Context, owner string, card payment.SavedCard) (bool, error) {
	added := false
	err := p.db.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, owner); err != nil {
			return fmt.Errorf("locking saved cards: %w", err)
		}

		var exists bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM saved_cards
				WHERE owner_id = $1 AND masked_number = $2 AND expiry_month = $3 AND expiry_year = $4
			)`, owner, card.MaskedNumber, card.ExpiryMonth, card.ExpiryYear).Scan(&exists); err != nil {
			return fmt.Errorf("checking saved cards: %w", err)
		}
		if exists {
			return nil
		}

		billing, err := json.Marshal(card.Billing)
		if err != nil {
			return fmt.Errorf("encoding billing for card %s: %w", card.ID, err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO saved_cards (id, owner_id, position, registration_id, masked_number,
				brand, holder, expiry_month, expiry_year, billing)
			SELECT $1, $2, COALESCE(MAX(position) + 1, 0), $3, $4, $5, $6, $7, $8, $9
			FROM saved_cards WHERE owner_id = $2`,
			card.ID, owner, card.RegistrationID, card.MaskedNumber,
			string(card.Brand), card.Holder, card.ExpiryMonth, card.ExpiryYear, billing,
		); err != nil {
			return fmt.Errorf("inserting saved card: %w", err)
		}
		added = true
		return nil
	})
	return added, err
}
