// Package store persists users, single orders and batch outcomes. It
// holds no business logic; generated artifact filenames are stored
// verbatim so downloads stay a pure filename-to-bytes lookup.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/labelforge/labelforge/pkg/account"
	"github.com/labelforge/labelforge/pkg/batch"
	"github.com/labelforge/labelforge/pkg/label"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrEmailTaken is returned when registering an email that already
	// has an account.
	ErrEmailTaken = errors.New("email already registered")

	// ErrServiceNotFound is returned when a rate update names a service
	// absent from every courier table of the user.
	ErrServiceNotFound = errors.New("service not found for this user")
)

// Order is a persisted single-shipment record.
type Order struct {
	ID             string          `json:"id"`
	UserID         string          `json:"userId"`
	Courier        label.Courier   `json:"courier"`
	ServiceName    string          `json:"service_name"`
	Image          []byte          `json:"image,omitempty"`
	TrackingNumber string          `json:"tracking_number"`
	Sender         label.Payload   `json:"sender"`
	Receiver       label.Payload   `json:"receiver"`
	Package        label.Payload   `json:"package"`
	Cost           decimal.Decimal `json:"service_cost"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Users persists accounts.
type Users interface {
	CreateUser(ctx context.Context, u *account.User) (string, error)
	FindUserByEmail(ctx context.Context, email string) (*account.User, error)
	FindUserByID(ctx context.Context, id string) (*account.User, error)

	// ListUsers returns every account, oldest first.
	ListUsers(ctx context.Context) ([]account.User, error)

	// UpdateUserRole sets the account's role.
	UpdateUserRole(ctx context.Context, userID, role string) error

	// UpdateUserActivation sets the account's activation state. A
	// blocked account keeps its data but can no longer log in.
	UpdateUserActivation(ctx context.Context, userID, activation string) error

	// SetBalance overwrites the account's balance. Administrative
	// override; normal balance movement goes through the ledger.
	SetBalance(ctx context.Context, userID string, balance decimal.Decimal) error

	// DeleteUser removes the account and its orders and batches.
	DeleteUser(ctx context.Context, userID string) error

	// UpdateServiceRate sets a cost field for a named service in every
	// courier table that carries that service. Returns the updated
	// tables, or ErrServiceNotFound when no table carries the service.
	UpdateServiceRate(ctx context.Context, userID, serviceName, costType string, value decimal.Decimal) (map[label.Courier]account.ServiceTable, error)
}

// Orders persists single-shipment records.
type Orders interface {
	SaveOrder(ctx context.Context, o *Order) (string, error)
	FindOrdersByUser(ctx context.Context, userID string) ([]Order, error)
}

// Batches persists batch outcomes.
type Batches interface {
	SaveBatch(ctx context.Context, outcome *batch.Outcome) (string, error)
	FindBatchesByUser(ctx context.Context, userID string) ([]batch.Outcome, error)
}

// CostStandard is the rate field settable through UpdateServiceRate.
const CostStandard = "standard_cost"
