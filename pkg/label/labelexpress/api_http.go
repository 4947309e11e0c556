package labelexpress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labelforge/labelforge/pkg/label"
)

// HTTPAPIClient is the production implementation of APIClient using HTTP.
type HTTPAPIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewHTTPAPIClient creates a new HTTP-based API client for production use.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &HTTPAPIClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CreateLabel requests a label from the Label Express API.
// POST /v1/{courier}/image/create
func (c *HTTPAPIClient) CreateLabel(ctx context.Context, courier label.Courier, req *CreateLabelRequest) (*CreateLabelResponse, error) {
	if req.APIKey == "" {
		req.APIKey = c.apiKey
	}

	path := fmt.Sprintf("/v1/%s/image/create", courier)
	resp, err := c.doRequest(ctx, http.MethodPost, path, req)
	if err != nil {
		// No HTTP response at all: transport failure.
		return nil, label.NewProviderError(courier, label.KindNoResponse,
			"no response from label provider").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, c.rejectionError(courier, resp)
	}

	var result CreateLabelResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, label.NewProviderError(courier, label.KindRejected,
			"failed to decode label response").WithStatusCode(resp.StatusCode).WithCause(err)
	}

	return &result, nil
}

// AccountInfo fetches provider account information.
// GET /v1/client/information
func (c *HTTPAPIClient) AccountInfo(ctx context.Context) (*AccountInfoResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/client/information", nil)
	if err != nil {
		return nil, label.NewProviderError("", label.KindNoResponse,
			"no response from label provider").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.rejectionError("", resp)
	}

	var result AccountInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode account info response: %w", err)
	}

	return &result, nil
}

// doRequest performs an HTTP request with proper headers and authentication.
func (c *HTTPAPIClient) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("User-Agent", "labelforge/1.0")

	return c.httpClient.Do(req)
}

// rejectionError turns an error-status HTTP response into a classified
// ProviderError carrying the provider's structured message.
func (c *HTTPAPIClient) rejectionError(courier label.Courier, resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return label.NewProviderError(courier, label.KindRejected, apiErr.Message).
			WithStatusCode(resp.StatusCode).
			WithCause(&apiErr)
	}

	// Try to parse as a simple error message
	var simpleErr struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &simpleErr); err == nil {
		msg := simpleErr.Error
		if msg == "" {
			msg = simpleErr.Message
		}
		if msg != "" {
			return label.NewProviderError(courier, label.KindRejected, msg).
				WithStatusCode(resp.StatusCode)
		}
	}

	return label.NewProviderError(courier, label.KindRejected,
		fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body))).
		WithStatusCode(resp.StatusCode)
}

// Ensure HTTPAPIClient implements APIClient interface
var _ APIClient = (*HTTPAPIClient)(nil)
