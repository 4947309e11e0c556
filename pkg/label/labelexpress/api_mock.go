package labelexpress

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/labelforge/labelforge/pkg/label"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors     bool
	SimulateNoResponse bool
	SimulateLatency    time.Duration

	OnCreateLabel func(ctx context.Context, courier label.Courier, req *CreateLabelRequest) (*CreateLabelResponse, error)
	OnAccountInfo func(ctx context.Context) (*AccountInfoResponse, error)

	// Calls counts CreateLabel invocations, including failed ones.
	Calls int
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

// mockImagePNG is a 1x1 transparent PNG used as a stand-in label image.
var mockImagePNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

// CreateLabel returns a mock label.
func (m *MockAPIClient) CreateLabel(ctx context.Context, courier label.Courier, req *CreateLabelRequest) (*CreateLabelResponse, error) {
	m.Calls++

	if m.SimulateLatency > 0 {
		time.Sleep(m.SimulateLatency)
	}

	if m.SimulateNoResponse {
		return nil, label.NewProviderError(courier, label.KindNoResponse, "simulated transport failure")
	}

	if m.SimulateErrors {
		return nil, label.NewProviderError(courier, label.KindRejected, "simulated provider rejection").
			WithStatusCode(422)
	}

	if m.OnCreateLabel != nil {
		return m.OnCreateLabel(ctx, courier, req)
	}

	tracking := fmt.Sprintf("1Z%s", uuid.New().String()[:12])
	if courier == label.CourierUSPS {
		tracking = fmt.Sprintf("94%s", uuid.New().String()[:12])
	}

	return &CreateLabelResponse{
		Data: LabelData{
			Base64EncodedImage: base64.StdEncoding.EncodeToString(mockImagePNG),
			TrackingNumber:     tracking,
		},
		Shippo: label.Payload{
			"object_id": uuid.New().String(),
			"status":    "SUCCESS",
		},
	}, nil
}

// AccountInfo returns mock provider account information.
func (m *MockAPIClient) AccountInfo(ctx context.Context) (*AccountInfoResponse, error) {
	if m.SimulateLatency > 0 {
		time.Sleep(m.SimulateLatency)
	}

	if m.SimulateErrors || m.SimulateNoResponse {
		return nil, label.NewProviderError("", label.KindRejected, "simulated provider rejection")
	}

	if m.OnAccountInfo != nil {
		return m.OnAccountInfo(ctx)
	}

	return &AccountInfoResponse{
		Email:   "mock@labelforge.test",
		Balance: 1250.00,
		Plan:    "reseller",
	}, nil
}

// Ensure MockAPIClient implements APIClient interface
var _ APIClient = (*MockAPIClient)(nil)
