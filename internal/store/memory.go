package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labelforge/labelforge/pkg/account"
	"github.com/labelforge/labelforge/pkg/batch"
	"github.com/labelforge/labelforge/pkg/label"
	"github.com/labelforge/labelforge/pkg/ledger"
	"github.com/shopspring/decimal"
)

// Memory is an in-process store used by tests and mock mode. It also
// implements ledger.Ledger against the same user records, so the
// balance a handler reads is the balance the ledger mutated.
type Memory struct {
	mu      sync.Mutex
	users   map[string]*account.User
	byEmail map[string]string
	orders  map[string][]Order
	batches map[string][]batch.Outcome
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:   make(map[string]*account.User),
		byEmail: make(map[string]string),
		orders:  make(map[string][]Order),
		batches: make(map[string][]batch.Outcome),
	}
}

// CreateUser implements Users.
func (m *Memory) CreateUser(ctx context.Context, u *account.User) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(u.Email)
	if _, ok := m.byEmail[key]; ok {
		return "", ErrEmailTaken
	}

	cp := *u
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	m.users[cp.ID] = &cp
	m.byEmail[key] = cp.ID
	return cp.ID, nil
}

// FindUserByEmail implements Users.
func (m *Memory) FindUserByEmail(ctx context.Context, email string) (*account.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m.users[id]
	return &cp, nil
}

// FindUserByID implements Users.
func (m *Memory) FindUserByID(ctx context.Context, id string) (*account.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// ListUsers implements Users.
func (m *Memory) ListUsers(ctx context.Context) ([]account.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	users := make([]account.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, *u)
	}
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

// UpdateUserRole implements Users.
func (m *Memory) UpdateUserRole(ctx context.Context, userID, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.Role = role
	return nil
}

// UpdateUserActivation implements Users.
func (m *Memory) UpdateUserActivation(ctx context.Context, userID, activation string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.Activation = activation
	return nil
}

// SetBalance implements Users.
func (m *Memory) SetBalance(ctx context.Context, userID string, balance decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.Balance = balance
	return nil
}

// DeleteUser implements Users. The email becomes free to register
// again and the user's orders and batches go with the account.
func (m *Memory) DeleteUser(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	delete(m.byEmail, strings.ToLower(u.Email))
	delete(m.users, userID)
	delete(m.orders, userID)
	delete(m.batches, userID)
	return nil
}

// UpdateServiceRate implements Users.
func (m *Memory) UpdateServiceRate(ctx context.Context, userID, serviceName, costType string, value decimal.Decimal) (map[label.Courier]account.ServiceTable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	if costType != CostStandard {
		return nil, ErrServiceNotFound
	}

	updated := false
	for courier, table := range u.Services {
		if rate, ok := table.Services[serviceName]; ok {
			rate.StandardCost = value
			table.Services[serviceName] = rate
			u.Services[courier] = table
			updated = true
		}
	}
	if !updated {
		return nil, ErrServiceNotFound
	}
	return u.Services, nil
}

// AuthorizeAndDebit implements ledger.Ledger. Check and write share
// the store lock, so concurrent debits serialize.
func (m *Memory) AuthorizeAndDebit(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return decimal.Zero, ledger.ErrAccountNotFound
	}
	if u.Balance.LessThan(amount) {
		return u.Balance, ledger.ErrInsufficientFunds
	}
	u.Balance = u.Balance.Sub(amount)
	u.TotalSpent = u.TotalSpent.Add(amount)
	return u.Balance, nil
}

// Credit implements ledger.Ledger.
func (m *Memory) Credit(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return decimal.Zero, ledger.ErrAccountNotFound
	}
	u.Balance = u.Balance.Add(amount)
	return u.Balance, nil
}

// Balance implements ledger.Ledger.
func (m *Memory) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return decimal.Zero, ledger.ErrAccountNotFound
	}
	return u.Balance, nil
}

// SaveOrder implements Orders.
func (m *Memory) SaveOrder(ctx context.Context, o *Order) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *o
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	m.orders[cp.UserID] = append(m.orders[cp.UserID], cp)
	return cp.ID, nil
}

// FindOrdersByUser implements Orders.
func (m *Memory) FindOrdersByUser(ctx context.Context, userID string) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	orders := make([]Order, len(m.orders[userID]))
	copy(orders, m.orders[userID])
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
	return orders, nil
}

// SaveBatch implements Batches.
func (m *Memory) SaveBatch(ctx context.Context, outcome *batch.Outcome) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *outcome
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	m.batches[cp.UserID] = append(m.batches[cp.UserID], cp)
	return cp.ID, nil
}

// FindBatchesByUser implements Batches.
func (m *Memory) FindBatchesByUser(ctx context.Context, userID string) ([]batch.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	batches := make([]batch.Outcome, len(m.batches[userID]))
	copy(batches, m.batches[userID])
	return batches, nil
}

var (
	_ Users         = (*Memory)(nil)
	_ Orders        = (*Memory)(nil)
	_ Batches       = (*Memory)(nil)
	_ ledger.Ledger = (*Memory)(nil)
)
