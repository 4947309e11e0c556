package label_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/labelforge/labelforge/pkg/label"
)

func TestProviderError_Kinds(t *testing.T) {
	noResp := label.NewProviderError(label.CourierUPS, label.KindNoResponse, "connection refused")
	rejected := label.NewProviderError(label.CourierUSPS, label.KindRejected, "invalid address").
		WithStatusCode(422)

	assert.True(t, label.IsNoResponse(noResp))
	assert.False(t, label.IsRejected(noResp))

	assert.True(t, label.IsRejected(rejected))
	assert.False(t, label.IsNoResponse(rejected))
	assert.Equal(t, 422, rejected.StatusCode)
}

func TestProviderError_WrappedClassification(t *testing.T) {
	inner := label.NewProviderError(label.CourierUPS, label.KindNoResponse, "timeout")
	wrapped := fmt.Errorf("processing item 3: %w", inner)

	assert.True(t, label.IsNoResponse(wrapped))

	var pe *label.ProviderError
	assert.True(t, errors.As(wrapped, &pe))
	assert.Equal(t, label.CourierUPS, pe.Courier)
}

func TestProviderError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := label.NewProviderError(label.CourierUPS, label.KindNoResponse, "no response").
		WithCause(cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestValidationError(t *testing.T) {
	err := label.NewValidationError("service_name", "service name is required")
	assert.True(t, label.IsValidation(err))
	assert.Contains(t, err.Error(), "service_name")

	assert.False(t, label.IsValidation(errors.New("other")))
}

func TestShipmentRequest_Validate(t *testing.T) {
	valid := label.ShipmentRequest{
		Courier:     label.CourierUPS,
		ServiceName: "UPS Ground",
		Sender:      label.Payload{"name": "Sender"},
		Receiver:    label.Payload{"name": "Receiver"},
		Package:     label.Payload{"weight": "1"},
	}
	assert.NoError(t, valid.Validate())

	missing := valid
	missing.Sender = nil
	assert.True(t, label.IsValidation(missing.Validate()))

	badCourier := valid
	badCourier.Courier = "FEDEX"
	assert.True(t, label.IsValidation(badCourier.Validate()))

	noService := valid
	noService.ServiceName = ""
	assert.True(t, label.IsValidation(noService.Validate()))
}

func TestShipmentRequest_SourceOrderID(t *testing.T) {
	req := label.ShipmentRequest{Sender: label.Payload{"order_id": "AMZ-123"}}
	assert.Equal(t, "AMZ-123", req.SourceOrderID())

	empty := label.ShipmentRequest{Sender: label.Payload{"name": "x"}}
	assert.Empty(t, empty.SourceOrderID())
}
