// Package vault stores saved-card metadata per rider.
package vault

import (
	"context"
	"errors"
	"sync"

	"ridepay/internal/payment"
)

// ErrNotFound is returned when a saved card does not exist.
var ErrNotFound = errors.New("saved card not found")

// Vault is the card metadata store. SaveCards replaces the owner's whole list.
type Vault interface {
	Cards(ctx context.Context, owner string) ([]payment.SavedCard, error)
	SaveCards(ctx context.Context, owner string, cards []payment.SavedCard) error
}

// Appender is implemented by vaults that can add a card without racing other
// writers for the same owner.
type Appender interface {
	AppendCard(ctx context.Context, owner string, card payment.SavedCard) (bool, error)
}

// Append adds card to the owner's list unless the same card (masked number and
// expiry) is already there. It reports whether the card was added.
func Append(ctx context.Context, v Vault, owner string, card payment.SavedCard) (bool, error) {
	if a, ok := v.(Appender); ok {
		return a.AppendCard(ctx, owner, card)
	}
	cards, err := v.Cards(ctx, owner)
	if err != nil {
		return false, err
	}
	if contains(cards, card) {
		return false, nil
	}
	return true, v.SaveCards(ctx, owner, append(cards, card))
}

func contains(cards []payment.SavedCard, card payment.SavedCard) bool {
	for _, c := range cards {
		if c.MaskedNumber == card.MaskedNumber && c.ExpiryMonth == card.ExpiryMonth && c.ExpiryYear == card.ExpiryYear {
			return true
		}
	}
	return false
}

// Find returns the owner's card with the given ID.
func Find(ctx context.Context, v Vault, owner, cardID string) (payment.SavedCard, error) {
	cards, err := v.Cards(ctx, owner)
	if err != nil {
		return payment.SavedCard{}, err
	}
	for _, c := range cards {
		if c.ID == cardID {
			return c, nil
		}
	}
	return payment.SavedCard{}, ErrNotFound
}

// Memory is an in-process Vault.
type Memory struct {
	mu    sync.RWMutex
	cards map[string][]payment.SavedCard
}

var (
	_ Vault    = (*Memory)(nil)
	_ Appender = (*Memory)(nil)
)

// NewMemory creates an empty in-memory vault.
func NewMemory() *Memory {
	return &Memory{cards: make(map[string][]payment.SavedCard)}
}

// Cards implements Vault.
func (m *Memory) Cards(_ context.Context, owner string) ([]payment.SavedCard, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]payment.SavedCard(nil), m.cards[owner]...), nil
}

// SaveCards implements Vault.
func (m *Memory) SaveCards(_ context.Context, owner string, cards []payment.SavedCard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cards[owner] = append([]payment.SavedCard(nil), cards...)
	return nil
}

// AppendCard implements Appender.
func (m *Memory) AppendCard(_ context.Context, owner string, card payment.SavedCard) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if contains(m.cards[owner], card) {
		return false, nil
	}
	m.cards[owner] = append(m.cards[owner], card)
	return true, nil
}
