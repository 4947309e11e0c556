// Package labelexpress provides integration with the Label Express
// label-generation API.
package labelexpress

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/labelforge/labelforge/pkg/label"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Config holds Label Express configuration.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	UseMock bool // When true, uses a mock API client
}

// Client is the Label Express fulfillment client. It delegates API
// calls to the underlying APIClient (mock or HTTP) and converts wire
// responses into domain artifacts.
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new Label Express client.
// If cfg.UseMock is true, it uses a mock API client for testing.
// Otherwise, it uses the real HTTP API client.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient

	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		})
	}

	return &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
		tracer:    tracer,
	}
}

// NewWithAPIClient creates a client with a custom API client.
// This is useful for injecting mock clients in tests.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	return &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
		tracer:    tracer,
	}
}

// RequestLabel performs one outbound call to the provider for a single
// shipment and returns the resulting artifact or a classified
// ProviderError.
func (c *Client) RequestLabel(ctx context.Context, req *label.ShipmentRequest) (*label.Artifact, error) {
	if c.tracer != nil {
		var span trace.Span
		ctx, span = c.tracer.Start(ctx, "labelexpress.RequestLabel",
			trace.WithAttributes(
				attribute.String("courier", string(req.Courier)),
				attribute.String("service_name", req.ServiceName),
			))
		defer span.End()
	}

	c.logger.Info("Requesting label",
		zap.String("courier", string(req.Courier)),
		zap.String("service_name", req.ServiceName),
	)

	apiReq := &CreateLabelRequest{
		APIKey:      c.config.APIKey,
		ServiceName: req.ServiceName,
		Manifested:  false,
		Sender:      req.Sender,
		Receiver:    req.Receiver,
		Package:     req.Package,
	}

	apiResp, err := c.apiClient.CreateLabel(ctx, req.Courier, apiReq)
	if err != nil {
		c.logger.Error("Label Express API error",
			zap.String("courier", string(req.Courier)),
			zap.Error(err),
		)
		return nil, err
	}

	return labelResponseToArtifact(req.Courier, apiResp)
}

// AccountInfo returns the provider-side account information.
func (c *Client) AccountInfo(ctx context.Context) (*AccountInfoResponse, error) {
	info, err := c.apiClient.AccountInfo(ctx)
	if err != nil {
		c.logger.Error("Label Express API error", zap.Error(err))
		return nil, err
	}
	return info, nil
}

// labelResponseToArtifact converts a wire response into a domain artifact.
func labelResponseToArtifact(courier label.Courier, resp *CreateLabelResponse) (*label.Artifact, error) {
	artifact := &label.Artifact{
		TrackingNumber: resp.Data.TrackingNumber,
		Meta:           resp.Data.Extra,
		ShipData:       resp.Shippo,
		CreatedAt:      time.Now(),
	}

	if resp.Data.Base64EncodedImage != "" {
		img, err := base64.StdEncoding.DecodeString(resp.Data.Base64EncodedImage)
		if err != nil {
			return nil, label.NewProviderError(courier, label.KindRejected,
				"provider returned undecodable label image").WithCause(err)
		}
		artifact.Image = img
	}

	return artifact, nil
}
