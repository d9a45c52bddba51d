package catalog

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind separates how a card was swiped from what the money was spent on
type Kind string

const (
	KindSwipe       Kind = "SWIPE"
	KindConsumption Kind = "CONSUMPTION"
)

// Valid reports whether k is a known kind
func (k Kind) Valid() bool {
	return k == KindSwipe || k == KindConsumption
}

// Category is a swipe type or a consumption type
type Category struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Kind        Kind      `json:"kind"`
	Name        string    `json:"name"`
	Icon        string    `json:"icon,omitempty"`
	Color       string    `json:"color"`
	Description string    `json:"description,omitempty"`
	SortOrder   int       `json:"sort_order"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewCategory creates an active category of the given kind
func NewCategory(ownerID string, kind Kind, name string) (*Category, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrEmptyOwner
	}
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	now := time.Now()
	return &Category{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Kind:      kind,
		Name:      name,
		Color:     DefaultColor,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
