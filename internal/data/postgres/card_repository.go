// Package postgres provides PostgreSQL implementations of the catalog repositories.
// Cards and categories are small relational tables keyed by owner, while records
// live in MongoDB.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/card-repayment-ledger/internal/domain/catalog"
	"github.com/card-repayment-ledger/internal/platform/persistence"
)

// uniqueViolation is the SQLSTATE raised by unique indexes
const uniqueViolation = "23505"

const cardColumns = `id, owner_id, name, bank, card_number, credit_limit, bill_day, payment_day,
		last_payment_day, color, description, is_active, created_at, updated_at`

// CardRepository implements the catalog.CardRepository interface for PostgreSQL
type CardRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewCardRepository creates a new PostgreSQL card repository
func NewCardRepository(logger *slog.Logger, db *persistence.PostgresDB) *CardRepository {
	return &CardRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// Create stores a new card. A second active card with the same name for
// one owner is rejected with ErrDuplicateName.
func (r *CardRepository) Create(ctx context.Context, card *catalog.Card) error {
	query := `
		INSERT INTO cards (` + cardColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.querier.Exec(ctx, query,
		card.ID,
		card.OwnerID,
		card.Name,
		card.Bank,
		card.CardNumber,
		card.CreditLimit,
		card.BillDay,
		card.PaymentDay,
		card.LastPaymentDay,
		card.Color,
		card.Description,
		card.IsActive,
		card.CreatedAt,
		card.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return catalog.ErrDuplicateName{Name: card.Name}
		}
		r.logger.Error("Failed to create card", "error", err)
		return fmt.Errorf("failed to create card: %w", err)
	}

	return nil
}

// GetByID retrieves an owner's card, including deactivated ones
func (r *CardRepository) GetByID(ctx context.Context, ownerID string, id uuid.UUID) (*catalog.Card, error) {
	query := `
		SELECT ` + cardColumns + `
		FROM cards
		WHERE id = $1 AND owner_id = $2
	`

	card, err := scanCard(r.querier.QueryRow(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrCardNotFound{CardID: id}
		}
		r.logger.Error("Failed to get card", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get card: %w", err)
	}

	return card, nil
}

// ListByOwner returns cards ordered by payment day, newest first within a day
func (r *CardRepository) ListByOwner(ctx context.Context, ownerID string, activeOnly bool) ([]*catalog.Card, error) {
	query := `
		SELECT ` + cardColumns + `
		FROM cards
		WHERE owner_id = $1 AND (is_active OR NOT $2)
		ORDER BY payment_day ASC, created_at DESC
	`

	rows, err := r.querier.Query(ctx, query, ownerID, activeOnly)
	if err != nil {
		r.logger.Error("Failed to list cards", "owner_id", ownerID, "error", err)
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	defer rows.Close()

	cards := make([]*catalog.Card, 0)
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			r.logger.Error("Failed to scan card row", "error", err)
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating card rows", "error", err)
		return nil, fmt.Errorf("error iterating card rows: %w", err)
	}

	return cards, nil
}

// Update overwrites the mutable fields of an active card
func (r *CardRepository) Update(ctx context.Context, card *catalog.Card) error {
	query := `
		UPDATE cards
		SET name = $1, bank = $2, card_number = $3, credit_limit = $4, bill_day = $5,
			payment_day = $6, last_payment_day = $7, color = $8, description = $9, updated_at = $10
		WHERE id = $11 AND owner_id = $12 AND is_active
	`

	result, err := r.querier.Exec(ctx, query,
		card.Name,
		card.Bank,
		card.CardNumber,
		card.CreditLimit,
		card.BillDay,
		card.PaymentDay,
		card.LastPaymentDay,
		card.Color,
		card.Description,
		card.UpdatedAt,
		card.ID,
		card.OwnerID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return catalog.ErrDuplicateName{Name: card.Name}
		}
		r.logger.Error("Failed to update card", "id", card.ID.String(), "error", err)
		return fmt.Errorf("failed to update card: %w", err)
	}

	if result.RowsAffected() == 0 {
		return catalog.ErrCardNotFound{CardID: card.ID}
	}

	return nil
}

// Deactivate soft-deletes a card; its records keep their denormalized labels
func (r *CardRepository) Deactivate(ctx context.Context, ownerID string, id uuid.UUID) error {
	query := `
		UPDATE cards
		SET is_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND owner_id = $2 AND is_active
	`

	result, err := r.querier.Exec(ctx, query, id, ownerID)
	if err != nil {
		r.logger.Error("Failed to deactivate card", "id", id.String(), "error", err)
		return fmt.Errorf("failed to deactivate card: %w", err)
	}

	if result.RowsAffected() == 0 {
		return catalog.ErrCardNotFound{CardID: id}
	}

	return nil
}

func scanCard(row pgx.Row) (*catalog.Card, error) {
	var card catalog.Card
	err := row.Scan(
		&card.ID,
		&card.OwnerID,
		&card.Name,
		&card.Bank,
		&card.CardNumber,
		&card.CreditLimit,
		&card.BillDay,
		&card.PaymentDay,
		&card.LastPaymentDay,
		&card.Color,
		&card.Description,
		&card.IsActive,
		&card.CreatedAt,
		&card.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &card, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
