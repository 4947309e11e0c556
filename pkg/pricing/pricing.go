// Package pricing resolves per-user, per-courier, per-service shipping rates.
package pricing

import (
	"fmt"

	"github.com/labelforge/labelforge/pkg/account"
	"github.com/labelforge/labelforge/pkg/label"
	"github.com/shopspring/decimal"
)

// Resolver looks up shipping costs from a user's price tables.
// It is pure: the same (user, courier, service) always yields the same
// cost until an intervening rate update.
type Resolver struct{}

// NewResolver creates a pricing resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Price returns the standard cost of a service for the given user and
// courier. An unknown courier is an error; an unknown service name
// resolves to zero cost. The zero default mirrors how rate tables are
// provisioned: services exist per courier from registration and admins
// fill in costs, so an unpriced service is free rather than an error.
func (r *Resolver) Price(u *account.User, courier label.Courier, serviceName string) (decimal.Decimal, error) {
	table, ok := u.Services[courier]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", label.ErrCourierNotSupported, courier)
	}
	rate, ok := table.Services[serviceName]
	if !ok {
		return decimal.Zero, nil
	}
	return rate.StandardCost, nil
}

// BatchTotal sums the price of every request in the slice. Used by the
// bulk price-estimate endpoint; it performs no debits.
func (r *Resolver) BatchTotal(u *account.User, requests []label.ShipmentRequest) (decimal.Decimal, error) {
	total := decimal.Zero
	for i := range requests {
		cost, err := r.Price(u, requests[i].Courier, requests[i].ServiceName)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(cost)
	}
	return total, nil
}
