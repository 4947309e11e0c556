// Package account defines user accounts and their per-courier price tables.
package account

import (
	"time"

	"github.com/labelforge/labelforge/pkg/label"
	"github.com/shopspring/decimal"
)

// Rate is the cost schedule for one service of one courier.
type Rate struct {
	StandardCost decimal.Decimal `json:"standard_cost"`
}

// ServiceTable maps service names to their rates for a single courier.
type ServiceTable struct {
	Courier  label.Courier   `json:"courier"`
	Services map[string]Rate `json:"services"`
}

// User is a platform account. Balance and TotalSpent are mutated only
// through the ledger's authorize-and-debit and credit operations.
type User struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	PasswordHash string          `json:"-"`
	Role         string          `json:"user_role"`
	Activation   string          `json:"activation"`
	Balance      decimal.Decimal `json:"balance"`
	TotalSpent   decimal.Decimal `json:"totalSpent"`

	// Services maps each courier to its service price table. Keyed by
	// courier identifier, never by position, so adding or reordering
	// couriers cannot change which table a lookup hits.
	Services map[label.Courier]ServiceTable `json:"services"`

	CreatedAt time.Time `json:"createdAt"`
}

const (
	RoleAdmin  = "admin"
	RoleClient = "client"

	ActivationAllow = "allow"
	ActivationBlock = "block"
)

// Blocked reports whether the account is blocked from logging in.
func (u *User) Blocked() bool {
	return u.Activation == ActivationBlock
}

// DefaultServices returns the price tables assigned to newly
// registered users. Costs start at zero until an admin sets rates.
func DefaultServices() map[label.Courier]ServiceTable {
	services := make(map[label.Courier]ServiceTable, 2)
	services[label.CourierUPS] = ServiceTable{
		Courier: label.CourierUPS,
		Services: map[string]Rate{
			"UPS Ground":       {},
			"UPS 2nd Day Air":  {},
			"UPS Next Day Air": {},
			"UPS 3 Day Select": {},
		},
	}
	services[label.CourierUSPS] = ServiceTable{
		Courier: label.CourierUSPS,
		Services: map[string]Rate{
			"USPS Priority":         {},
			"USPS Priority Express": {},
			"USPS First Class":      {},
			"USPS Ground Advantage": {},
		},
	}
	return services
}
