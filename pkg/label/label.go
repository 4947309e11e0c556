// Package label defines the domain model for shipping-label fulfillment.
package label

import (
	"time"
)

// Courier identifies a supported courier.
type Courier string

const (
	CourierUPS  Courier = "UPS"
	CourierUSPS Courier = "USPS"
)

// Couriers lists all supported couriers.
func Couriers() []Courier {
	return []Courier{CourierUPS, CourierUSPS}
}

// Valid reports whether the courier is one of the supported couriers.
func (c Courier) Valid() bool {
	switch c {
	case CourierUPS, CourierUSPS:
		return true
	}
	return false
}

// Payload is an opaque structured bag passed through to the label
// provider. Provider schemas vary by courier, so sender, receiver and
// package descriptors are not fully typed; callers validate required
// presence only.
type Payload map[string]any

// String returns the string value for key, or "" if absent or not a string.
func (p Payload) String(key string) string {
	if p == nil {
		return ""
	}
	s, _ := p[key].(string)
	return s
}

// Has reports whether the key is present with a non-nil value.
func (p Payload) Has(key string) bool {
	if p == nil {
		return false
	}
	v, ok := p[key]
	return ok && v != nil
}

// ShipmentRequest is one label request submitted by a user. It exists
// only for the duration of a single orchestration pass.
type ShipmentRequest struct {
	Courier     Courier `json:"courier"`
	ServiceName string  `json:"service_name"`
	Sender      Payload `json:"sender"`
	Receiver    Payload `json:"receiver"`
	Package     Payload `json:"package"`
}

// SourceOrderID returns the upstream order identifier carried by the
// sender payload, if any. Its presence marks a manifest-sourced batch.
func (r *ShipmentRequest) SourceOrderID() string {
	return r.Sender.String("order_id")
}

// Validate checks required fields before any side effect occurs.
func (r *ShipmentRequest) Validate() error {
	if !r.Courier.Valid() {
		return NewValidationError("courier", "unsupported courier")
	}
	if r.ServiceName == "" {
		return NewValidationError("service_name", "service name is required")
	}
	if r.Sender == nil {
		return NewValidationError("sender", "sender is required")
	}
	if r.Receiver == nil {
		return NewValidationError("receiver", "receiver is required")
	}
	if r.Package == nil {
		return NewValidationError("package", "package is required")
	}
	return nil
}

// Artifact is the result of one successful provider call: the raw
// label image (when the courier returns one), the tracking number and
// provider-specific metadata.
type Artifact struct {
	// Image holds the decoded label image bytes. Empty for couriers
	// that return tracking data only.
	Image []byte

	TrackingNumber string

	// Meta carries provider fields we pass through untouched.
	Meta Payload

	// ShipData is the provider's shipping metadata block, if present.
	ShipData Payload

	CreatedAt time.Time
}

// HasImage reports whether the artifact carries label image bytes.
func (a *Artifact) HasImage() bool {
	return a != nil && len(a.Image) > 0
}
