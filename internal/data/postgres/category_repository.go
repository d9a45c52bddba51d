package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/card-repayment-ledger/internal/domain/catalog"
	"github.com/card-repayment-ledger/internal/platform/persistence"
)

const categoryColumns = `id, owner_id, kind, name, icon, color, description, sort_order,
		is_active, created_at, updated_at`

// CategoryRepository stores swipe and consumption types in one table keyed by kind
type CategoryRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewCategoryRepository creates a new PostgreSQL category repository
func NewCategoryRepository(logger *slog.Logger, db *persistence.PostgresDB) *CategoryRepository {
	return &CategoryRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *CategoryRepository) Create(ctx context.Context, category *catalog.Category) error {
	query := `
		INSERT INTO categories (` + categoryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.querier.Exec(ctx, query,
		category.ID,
		category.OwnerID,
		category.Kind,
		category.Name,
		category.Icon,
		category.Color,
		category.Description,
		category.SortOrder,
		category.IsActive,
		category.CreatedAt,
		category.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return catalog.ErrDuplicateName{Name: category.Name}
		}
		r.logger.Error("Failed to create category", "kind", category.Kind, "error", err)
		return fmt.Errorf("failed to create category: %w", err)
	}

	return nil
}

func (r *CategoryRepository) GetByID(ctx context.Context, ownerID string, kind catalog.Kind, id uuid.UUID) (*catalog.Category, error) {
	query := `
		SELECT ` + categoryColumns + `
		FROM categories
		WHERE id = $1 AND owner_id = $2 AND kind = $3
	`

	category, err := scanCategory(r.querier.QueryRow(ctx, query, id, ownerID, kind))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrCategoryNotFound{CategoryID: id, Kind: kind}
		}
		r.logger.Error("Failed to get category", "id", id.String(), "kind", kind, "error", err)
		return nil, fmt.Errorf("failed to get category: %w", err)
	}

	return category, nil
}

// ListByOwner returns categories of one kind ordered by sort order, then creation time
func (r *CategoryRepository) ListByOwner(ctx context.Context, ownerID string, kind catalog.Kind, activeOnly bool) ([]*catalog.Category, error) {
	query := `
		SELECT ` + categoryColumns + `
		FROM categories
		WHERE owner_id = $1 AND kind = $2 AND (is_active OR NOT $3)
		ORDER BY sort_order ASC, created_at ASC
	`

	rows, err := r.querier.Query(ctx, query, ownerID, kind, activeOnly)
	if err != nil {
		r.logger.Error("Failed to list categories", "owner_id", ownerID, "kind", kind, "error", err)
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := make([]*catalog.Category, 0)
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			r.logger.Error("Failed to scan category row", "error", err)
			return nil, fmt.Errorf("failed to scan category row: %w", err)
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category rows: %w", err)
	}

	return categories, nil
}

func (r *CategoryRepository) Update(ctx context.Context, category *catalog.Category) error {
	query := `
		UPDATE categories
		SET name = $1, icon = $2, color = $3, description = $4, sort_order = $5, updated_at = $6
		WHERE id = $7 AND owner_id = $8 AND kind = $9 AND is_active
	`

	result, err := r.querier.Exec(ctx, query,
		category.Name,
		category.Icon,
		category.Color,
		category.Description,
		category.SortOrder,
		category.UpdatedAt,
		category.ID,
		category.OwnerID,
		category.Kind,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return catalog.ErrDuplicateName{Name: category.Name}
		}
		r.logger.Error("Failed to update category", "id", category.ID.String(), "error", err)
		return fmt.Errorf("failed to update category: %w", err)
	}

	if result.RowsAffected() == 0 {
		return catalog.ErrCategoryNotFound{CategoryID: category.ID, Kind: category.Kind}
	}

	return nil
}

func (r *CategoryRepository) Deactivate(ctx context.Context, ownerID string, kind catalog.Kind, id uuid.UUID) error {
	query := `
		UPDATE categories
		SET is_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND owner_id = $2 AND kind = $3 AND is_active
	`

	result, err := r.querier.Exec(ctx, query, id, ownerID, kind)
	if err != nil {
		r.logger.Error("Failed to deactivate category", "id", id.String(), "error", err)
		return fmt.Errorf("failed to deactivate category: %w", err)
	}

	if result.RowsAffected() == 0 {
		return catalog.ErrCategoryNotFound{CategoryID: id, Kind: kind}
	}

	return nil
}

func scanCategory(row pgx.Row) (*catalog.Category, error) {
	var category catalog.Category
	err := row.Scan(
		&category.ID,
		&category.OwnerID,
		&category.Kind,
		&category.Name,
		&category.Icon,
		&category.Color,
		&category.Description,
		&category.SortOrder,
		&category.IsActive,
		&category.CreatedAt,
		&category.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &category, nil
}
