package catalog

import (
	"context"

	"github.com/google/uuid"
)

// CardRepository defines card persistence operations
type CardRepository interface {
	Create(ctx context.Context, card *Card) error
	GetByID(ctx context.Context, ownerID string, id uuid.UUID) (*Card, error)
	// ListByOwner returns cards ordered by payment day, newest first within a day
	ListByOwner(ctx context.Context, ownerID string, activeOnly bool) ([]*Card, error)
	Update(ctx context.Context, card *Card) error
	Deactivate(ctx context.Context, ownerID string, id uuid.UUID) error
}

// CategoryRepository defines swipe and consumption type persistence operations
type CategoryRepository interface {
	Create(ctx context.Context, category *Category) error
	GetByID(ctx context.Context, ownerID string, kind Kind, id uuid.UUID) (*Category, error)
	// ListByOwner returns categories ordered by sort order, then creation time
	ListByOwner(ctx context.Context, ownerID string, kind Kind, activeOnly bool) ([]*Category, error)
	Update(ctx context.Context, category *Category) error
	Deactivate(ctx context.Context, ownerID string, kind Kind, id uuid.UUID) error
}

// ErrCardNotFound indicates missing card
type ErrCardNotFound struct {
	CardID uuid.UUID
}

func (e ErrCardNotFound) Error() string {
	return "card not found: " + e.CardID.String()
}

// Is implements the errors.Is interface for ErrCardNotFound
func (e ErrCardNotFound) Is(target error) bool {
	t, ok := target.(ErrCardNotFound)
	if !ok {
		return false
	}
	if t.CardID == uuid.Nil {
		return true
	}
	return e.CardID == t.CardID
}

// ErrCategoryNotFound indicates missing swipe or consumption type
type ErrCategoryNotFound struct {
	CategoryID uuid.UUID
	Kind       Kind
}

func (e ErrCategoryNotFound) Error() string {
	return "category not found: " + string(e.Kind) + " " + e.CategoryID.String()
}

// Is implements the errors.Is interface for ErrCategoryNotFound
func (e ErrCategoryNotFound) Is(target error) bool {
	t, ok := target.(ErrCategoryNotFound)
	if !ok {
		return false
	}
	if t.CategoryID == uuid.Nil {
		return true
	}
	return e.CategoryID == t.CategoryID
}

// ErrDuplicateName indicates a name uniqueness violation within an owner's catalog
type ErrDuplicateName struct {
	Name string
}

func (e ErrDuplicateName) Error() string {
	return "an entry with this name already exists: " + e.Name
}
