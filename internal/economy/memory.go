package economy

import (
	"context"
	"sync"
)

// Memory is an in-process Bank. Players it has not seen start with the
// configured starting balance.
type Memory struct {
	Formatter

	mu       sync.Mutex
	balances map[string]int64
	starting int64
}

// NewMemory returns an empty Memory bank.
func NewMemory(symbol string, startingBalance int64) *Memory {
	return &Memory{
		Formatter: Formatter{Symbol: symbol},
		balances:  make(map[string]int64),
		starting:  startingBalance,
	}
}

// SetBalance overwrites a player's balance.
func (m *Memory) SetBalance(playerID string, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[playerID] = amount
}

func (m *Memory) balanceLocked(playerID string) int64 {
	if b, ok := m.balances[playerID]; ok {
		return b
	}
	return m.starting
}

// Balance returns the player's balance.
func (m *Memory) Balance(_ context.Context, playerID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balanceLocked(playerID), nil
}

// HasBalance reports whether the player holds at least amount.
func (m *Memory) HasBalance(_ context.Context, playerID string, amount int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balanceLocked(playerID) >= amount, nil
}

// Withdraw removes amount from the player's balance.
func (m *Memory) Withdraw(_ context.Context, playerID string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.balanceLocked(playerID)
	if b < amount {
		return ErrInsufficientFunds
	}
	m.balances[playerID] = b - amount
	return nil
}

// Deposit adds amount to the player's balance.
func (m *Memory) Deposit(_ context.Context, playerID string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[playerID] = m.balanceLocked(playerID) + amount
	return nil
}
