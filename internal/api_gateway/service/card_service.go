package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/card-repayment-ledger/internal/domain/catalog"
)

// CardServiceImpl implements the CardService interface
type CardServiceImpl struct {
	cardRepo catalog.CardRepository
	logger   *slog.Logger
}

// NewCardService creates a new card service
func NewCardService(logger *slog.Logger, cardRepo catalog.CardRepository) *CardServiceImpl {
	return &CardServiceImpl{
		cardRepo: cardRepo,
		logger:   logger,
	}
}

// CreateCard validates and stores a new card. Duplicate names surface as ErrDuplicateName.
func (s *CardServiceImpl) CreateCard(ctx context.Context, ownerID string, in CardInput) (*catalog.Card, error) {
	card, err := catalog.NewCard(ownerID, in.Name, in.Bank, in.CardNumber, in.CreditLimit, in.BillDay, in.PaymentDay, in.LastPaymentDay)
	if err != nil {
		return nil, err
	}
	if in.Color != "" {
		card.Color = in.Color
	}
	card.Description = strings.TrimSpace(in.Description)

	if err := s.cardRepo.Create(ctx, card); err != nil {
		return nil, err
	}

	s.logger.Info("Card created", "card_id", card.ID.String(), "owner_id", ownerID)
	return card, nil
}

// GetCard returns an owner's card, inactive ones included
func (s *CardServiceImpl) GetCard(ctx context.Context, ownerID string, id uuid.UUID) (*catalog.Card, error) {
	return s.cardRepo.GetByID(ctx, ownerID, id)
}

func (s *CardServiceImpl) ListCards(ctx context.Context, ownerID string, includeInactive bool) ([]*catalog.Card, error) {
	return s.cardRepo.ListByOwner(ctx, ownerID, !includeInactive)
}

// UpdateCard applies a partial update to an active card and re-validates it
func (s *CardServiceImpl) UpdateCard(ctx context.Context, ownerID string, id uuid.UUID, in CardPatch) (*catalog.Card, error) {
	card, err := s.cardRepo.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if !card.IsActive {
		return nil, catalog.ErrCardNotFound{CardID: id}
	}

	if in.Name != nil {
		card.Name = strings.TrimSpace(*in.Name)
	}
	if in.Bank != nil {
		card.Bank = strings.TrimSpace(*in.Bank)
	}
	if in.CardNumber != nil {
		card.CardNumber = strings.TrimSpace(*in.CardNumber)
	}
	if in.CreditLimit != nil {
		card.CreditLimit = *in.CreditLimit
	}
	if in.BillDay != nil {
		card.BillDay = *in.BillDay
	}
	if in.PaymentDay != nil {
		card.PaymentDay = *in.PaymentDay
	}
	if in.LastPaymentDay != nil {
		card.LastPaymentDay = *in.LastPaymentDay
	}
	if in.Color != nil {
		card.Color = *in.Color
	}
	if in.Description != nil {
		card.Description = strings.TrimSpace(*in.Description)
	}
	if err := card.Validate(); err != nil {
		return nil, err
	}
	card.UpdatedAt = time.Now()

	if err := s.cardRepo.Update(ctx, card); err != nil {
		return nil, err
	}
	return card, nil
}

// DeleteCard soft-deletes a card. Records keep their card snapshot.
func (s *CardServiceImpl) DeleteCard(ctx context.Context, ownerID string, id uuid.UUID) error {
	if err := s.cardRepo.Deactivate(ctx, ownerID, id); err != nil {
		return err
	}
	s.logger.Info("Card deactivated", "card_id", id.String(), "owner_id", ownerID)
	return nil
}
