package ledger

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// Memory is an in-process Ledger keyed by user id. It backs the
// memory-store mode and tests; the postgres-backed ledger lives in
// internal/store.
type Memory struct {
	mu       sync.Mutex
	accounts map[string]*memoryAccount
}

type memoryAccount struct {
	balance    decimal.Decimal
	totalSpent decimal.Decimal
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{accounts: make(map[string]*memoryAccount)}
}

// Seed sets the starting balance for an account, creating it if needed.
func (m *Memory) Seed(userID string, balance decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[userID] = &memoryAccount{balance: balance}
}

// AuthorizeAndDebit implements Ledger. The check and the write share
// one critical section, which is the whole point.
func (m *Memory) AuthorizeAndDebit(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct, ok := m.accounts[userID]
	if !ok {
		return decimal.Zero, ErrAccountNotFound
	}
	if acct.balance.LessThan(amount) {
		return acct.balance, ErrInsufficientFunds
	}
	acct.balance = acct.balance.Sub(amount)
	acct.totalSpent = acct.totalSpent.Add(amount)
	return acct.balance, nil
}

// Credit implements Ledger.
func (m *Memory) Credit(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct, ok := m.accounts[userID]
	if !ok {
		acct = &memoryAccount{}
		m.accounts[userID] = acct
	}
	acct.balance = acct.balance.Add(amount)
	return acct.balance, nil
}

// Balance implements Ledger.
func (m *Memory) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct, ok := m.accounts[userID]
	if !ok {
		return decimal.Zero, ErrAccountNotFound
	}
	return acct.balance, nil
}

// TotalSpent returns the cumulative spend for an account. Test helper.
func (m *Memory) TotalSpent(userID string) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct, ok := m.accounts[userID]
	if !ok {
		return decimal.Zero
	}
	return acct.totalSpent
}

var _ Ledger = (*Memory)(nil)
