package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/card-repayment-ledger/internal/domain/catalog"
)

// CategoryServiceImpl implements the CategoryService interface for both kinds
type CategoryServiceImpl struct {
	categoryRepo catalog.CategoryRepository
	logger       *slog.Logger
}

// NewCategoryService creates a new category service
func NewCategoryService(logger *slog.Logger, categoryRepo catalog.CategoryRepository) *CategoryServiceImpl {
	return &CategoryServiceImpl{
		categoryRepo: categoryRepo,
		logger:       logger,
	}
}

func (s *CategoryServiceImpl) CreateCategory(ctx context.Context, ownerID string, kind catalog.Kind, in CategoryInput) (*catalog.Category, error) {
	category, err := catalog.NewCategory(ownerID, kind, in.Name)
	if err != nil {
		return nil, err
	}
	category.Icon = in.Icon
	if in.Color != "" {
		category.Color = in.Color
	}
	category.Description = strings.TrimSpace(in.Description)
	category.SortOrder = in.SortOrder

	if err := s.categoryRepo.Create(ctx, category); err != nil {
		return nil, err
	}

	s.logger.Info("Category created", "category_id", category.ID.String(), "kind", string(kind), "owner_id", ownerID)
	return category, nil
}

func (s *CategoryServiceImpl) ListCategories(ctx context.Context, ownerID string, kind catalog.Kind, includeInactive bool) ([]*catalog.Category, error) {
	return s.categoryRepo.ListByOwner(ctx, ownerID, kind, !includeInactive)
}

func (s *CategoryServiceImpl) UpdateCategory(ctx context.Context, ownerID string, kind catalog.Kind, id uuid.UUID, in CategoryPatch) (*catalog.Category, error) {
	category, err := s.categoryRepo.GetByID(ctx, ownerID, kind, id)
	if err != nil {
		return nil, err
	}
	if !category.IsActive {
		return nil, catalog.ErrCategoryNotFound{CategoryID: id, Kind: kind}
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, catalog.ErrEmptyName
		}
		category.Name = name
	}
	if in.Icon != nil {
		category.Icon = *in.Icon
	}
	if in.Color != nil {
		category.Color = *in.Color
	}
	if in.Description != nil {
		category.Description = strings.TrimSpace(*in.Description)
	}
	if in.SortOrder != nil {
		category.SortOrder = *in.SortOrder
	}
	category.UpdatedAt = time.Now()

	if err := s.categoryRepo.Update(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

func (s *CategoryServiceImpl) DeleteCategory(ctx context.Context, ownerID string, kind catalog.Kind, id uuid.UUID) error {
	if err := s.categoryRepo.Deactivate(ctx, ownerID, kind, id); err != nil {
		return err
	}
	s.logger.Info("Category deactivated", "category_id", id.String(), "kind", string(kind), "owner_id", ownerID)
	return nil
}
