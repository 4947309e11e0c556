// Package artifact renders batch outcomes into downloadable files: a
// label document for image-sourced batches and CSV manifests for
// manifest-sourced ones.
package artifact

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Mode classifies a batch's output. The classification is decided once
// per batch and applies uniformly to artifact generation.
type Mode string

const (
	// ModeImage batches produce a label document built from the label
	// images the provider returned.
	ModeImage Mode = "image"

	// ModeManifest batches (any item carrying a source order id)
	// produce tabular manifests instead.
	ModeManifest Mode = "manifest"
)

// Item is one fulfilled shipment as seen by the renderers.
type Item struct {
	OrderID        string
	OrderItemID    string
	Quantity       string
	Courier        string
	ServiceName    string
	TrackingNumber string
	ShipMethod     string
	Image          []byte
}

// Files holds the generated artifact filenames. Stored verbatim so a
// later download is a pure filename-to-bytes lookup.
type Files struct {
	LabelDoc            string `json:"pdfName,omitempty"`
	ResultManifest      string `json:"resultCSVName,omitempty"`
	AutoConfirmManifest string `json:"autoConfirmCSVName,omitempty"`
}

// Names returns the non-empty filenames.
func (f Files) Names() []string {
	var names []string
	for _, n := range []string{f.LabelDoc, f.ResultManifest, f.AutoConfirmManifest} {
		if n != "" {
			names = append(names, n)
		}
	}
	return names
}

// newToken builds the batch filename token: a second-granularity
// timestamp plus a short random suffix. The suffix keeps two batches
// generated within the same second from overwriting each other.
func newToken(now time.Time) string {
	return fmt.Sprintf("%s-%s", now.Format("20060102150405"), uuid.New().String()[:8])
}
