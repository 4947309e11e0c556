package labelexpress

import (
	"context"

	"github.com/labelforge/labelforge/pkg/label"
)

// APIClient defines the interface for Label Express API operations.
// This abstraction allows for mock implementations during testing and
// real implementations in production.
type APIClient interface {
	// CreateLabel requests a single shipping label for the courier.
	CreateLabel(ctx context.Context, courier label.Courier, req *CreateLabelRequest) (*CreateLabelResponse, error)

	// AccountInfo fetches the provider-side account information,
	// including the remaining provider balance.
	AccountInfo(ctx context.Context) (*AccountInfoResponse, error)
}

// ============================================================================
// API Request/Response Types (match Label Express REST API v1 structure)
// ============================================================================

// CreateLabelRequest represents a label creation request.
// POST /v1/{courier}/image/create
type CreateLabelRequest struct {
	APIKey      string        `json:"api_key"`
	ServiceName string        `json:"service_name"`
	Manifested  bool          `json:"manifested"`
	Sender      label.Payload `json:"sender"`
	Receiver    label.Payload `json:"receiver"`
	Package     label.Payload `json:"package"`
}

// LabelData is the payload of a successful label creation.
type LabelData struct {
	Base64EncodedImage string        `json:"base64_encoded_image,omitempty"`
	TrackingNumber     string        `json:"tracking_number"`
	Extra              label.Payload `json:"-"`
}

// CreateLabelResponse represents the label creation response.
type CreateLabelResponse struct {
	Message string        `json:"message,omitempty"`
	Data    LabelData     `json:"data"`
	Shippo  label.Payload `json:"shippo,omitempty"`
}

// AccountInfoResponse represents the provider account information.
// GET /v1/client/information
type AccountInfoResponse struct {
	Email   string  `json:"email,omitempty"`
	Balance float64 `json:"balance"`
	Plan    string  `json:"plan,omitempty"`
}

// APIError represents a structured error body from the Label Express API.
type APIError struct {
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}
