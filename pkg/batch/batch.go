// Package batch orchestrates bulk label fulfillment: per item it
// prices, debits, calls the provider and records the outcome, then
// renders artifacts and persists the batch.
package batch

import (
	"time"

	"github.com/labelforge/labelforge/pkg/artifact"
	"github.com/labelforge/labelforge/pkg/label"
	"github.com/shopspring/decimal"
)

// Status is the terminal state of one batch item.
type Status string

const (
	// StatusFulfilled means the item was debited and the provider
	// returned a label artifact.
	StatusFulfilled Status = "fulfilled"

	// StatusSkipped means the item was never debited, typically for
	// insufficient funds. The batch continues.
	StatusSkipped Status = "skipped"

	// StatusFailed means the provider call failed after the debit; the
	// debit has been credited back. The batch continues.
	StatusFailed Status = "failed"
)

// ItemResult is the outcome of one item, in submission order.
type ItemResult struct {
	Index       int                   `json:"index"`
	Request     label.ShipmentRequest `json:"request"`
	Status      Status                `json:"status"`
	Reason      string                `json:"reason,omitempty"`
	Cost        decimal.Decimal       `json:"cost"`
	Artifact    *label.Artifact       `json:"-"`
	TrackingNum string                `json:"tracking_number,omitempty"`
}

// Outcome aggregates a whole batch submission. It is created once per
// submission and immutable after the artifact writer and store finish.
type Outcome struct {
	ID             string          `json:"id,omitempty"`
	UserID         string          `json:"userId"`
	Courier        label.Courier   `json:"courier"`
	Mode           artifact.Mode   `json:"mode"`
	Items          []ItemResult    `json:"items"`
	TotalCharged   decimal.Decimal `json:"totalCharged"`
	RequestedCount int             `json:"totalCount"`
	FulfilledCount int             `json:"processedCount"`
	SkippedCount   int             `json:"skippedCount"`
	FailedCount    int             `json:"failedCount"`
	Files          artifact.Files  `json:"files"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Fulfilled returns the fulfilled items, in submission order.
func (o *Outcome) Fulfilled() []ItemResult {
	out := make([]ItemResult, 0, o.FulfilledCount)
	for _, item := range o.Items {
		if item.Status == StatusFulfilled {
			out = append(out, item)
		}
	}
	return out
}

// classifyMode decides the batch output mode once for the whole batch:
// any item carrying a source order id makes it manifest-sourced.
func classifyMode(requests []label.ShipmentRequest) artifact.Mode {
	for i := range requests {
		if requests[i].SourceOrderID() != "" {
			return artifact.ModeManifest
		}
	}
	return artifact.ModeImage
}
