// Package catalog holds the cards and spending categories records refer to.
package catalog

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultColor is used when a card or category is created without one
const DefaultColor = "#3B82F6"

// Common errors
var (
	ErrEmptyOwner         = errors.New("owner id cannot be empty")
	ErrEmptyName          = errors.New("name cannot be empty")
	ErrEmptyBank          = errors.New("bank cannot be empty")
	ErrEmptyCardNumber    = errors.New("card number cannot be empty")
	ErrInvalidCreditLimit = errors.New("credit limit cannot be negative")
	ErrInvalidDay         = errors.New("day of month must be between 1 and 31")
	ErrInvalidKind        = errors.New("category kind must be SWIPE or CONSUMPTION")
)

// Card represents a credit card owned by a user
type Card struct {
	ID             uuid.UUID `json:"id"`
	OwnerID        string    `json:"owner_id"`
	Name           string    `json:"name"`
	Bank           string    `json:"bank"`
	CardNumber     string    `json:"card_number"`
	CreditLimit    int64     `json:"credit_limit"` // Stored in cents/minor units
	BillDay        int       `json:"bill_day"`
	PaymentDay     int       `json:"payment_day"`
	LastPaymentDay int       `json:"last_payment_day"`
	Color          string    `json:"color"`
	Description    string    `json:"description,omitempty"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewCard creates an active card after validating the required fields
func NewCard(ownerID, name, bank, cardNumber string, creditLimit int64, billDay, paymentDay, lastPaymentDay int) (*Card, error) {
	c := &Card{
		ID:             uuid.New(),
		OwnerID:        ownerID,
		Name:           strings.TrimSpace(name),
		Bank:           strings.TrimSpace(bank),
		CardNumber:     strings.TrimSpace(cardNumber),
		CreditLimit:    creditLimit,
		BillDay:        billDay,
		PaymentDay:     paymentDay,
		LastPaymentDay: lastPaymentDay,
		Color:          DefaultColor,
		IsActive:       true,
		CreatedAt:      time.Now(),
	}
	c.UpdatedAt = c.CreatedAt

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the invariants every stored card must satisfy
func (c *Card) Validate() error {
	if strings.TrimSpace(c.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if c.Bank == "" {
		return ErrEmptyBank
	}
	if c.CardNumber == "" {
		return ErrEmptyCardNumber
	}
	if c.CreditLimit < 0 {
		return ErrInvalidCreditLimit
	}
	if !validDay(c.BillDay) || !validDay(c.PaymentDay) {
		return ErrInvalidDay
	}
	// Last payment day is optional
	if c.LastPaymentDay != 0 && !validDay(c.LastPaymentDay) {
		return ErrInvalidDay
	}
	return nil
}

// DisplayName falls back to the bank when the card has no name
func (c *Card) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Bank
}

// LastFour returns the trailing four digits of the card number
func (c *Card) LastFour() string {
	if len(c.CardNumber) <= 4 {
		return c.CardNumber
	}
	return c.CardNumber[len(c.CardNumber)-4:]
}

func validDay(d int) bool {
	return d >= 1 && d <= 31
}
