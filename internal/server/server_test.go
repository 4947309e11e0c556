package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/labelforge/labelforge/internal/auth"
	"github.com/labelforge/labelforge/internal/server"
	"github.com/labelforge/labelforge/internal/store"
	"github.com/labelforge/labelforge/internal/telemetry"
	"github.com/labelforge/labelforge/pkg/account"
	"github.com/labelforge/labelforge/pkg/artifact"
	"github.com/labelforge/labelforge/pkg/batch"
	"github.com/labelforge/labelforge/pkg/label"
	"github.com/labelforge/labelforge/pkg/label/labelexpress"
	"github.com/labelforge/labelforge/pkg/pricing"
)

type testEnv struct {
	router http.Handler
	store  *store.Memory
	mock   *labelexpress.MockAPIClient
	auth   *auth.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := otelzap.New(zap.NewNop())
	mem := store.NewMemory()

	mockAPI := labelexpress.NewMockAPIClient()
	provider := labelexpress.NewWithAPIClient(labelexpress.Config{APIKey: "test-key"}, mockAPI, logger, nil)

	writer := artifact.NewWriter(t.TempDir(), logger)
	pricer := pricing.NewResolver()
	orch := batch.NewOrchestrator(pricer, mem, provider, writer, mem, logger, nil)
	authMgr := auth.NewManager("test-secret", time.Hour)

	srv := server.New(server.Config{Port: 0}, server.Deps{
		Users:        mem,
		Orders:       mem,
		Batches:      mem,
		Ledger:       mem,
		Orchestrator: orch,
		Pricer:       pricer,
		Provider:     provider,
		Writer:       writer,
		Auth:         authMgr,
	}, logger)

	return &testEnv{router: srv.Router(), store: mem, mock: mockAPI, auth: authMgr}
}

// seedUser creates a user with a funded balance and priced UPS services.
func (e *testEnv) seedUser(t *testing.T, balance int64) (string, string) {
	t.Helper()
	ctx := context.Background()

	services := account.DefaultServices()
	table := services[label.CourierUPS]
	table.Services["UPS Ground"] = account.Rate{StandardCost: decimal.NewFromInt(30)}
	services[label.CourierUPS] = table

	id, err := e.store.CreateUser(ctx, &account.User{
		Name:         "Test User",
		Email:        "test@example.com",
		PasswordHash: mustHash(t, "hunter22"),
		Role:         account.RoleClient,
		Activation:   account.ActivationAllow,
		Balance:      decimal.NewFromInt(balance),
		Services:     services,
	})
	require.NoError(t, err)

	token, err := e.auth.IssueToken(id, "test@example.com")
	require.NoError(t, err)
	return id, token
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	return hash
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func shipmentBody(serviceName string) map[string]any {
	return map[string]any{
		"courier":      "UPS",
		"service_name": serviceName,
		"sender":       map[string]any{"name": "Sender", "address1": "123 Main St"},
		"receiver":     map[string]any{"name": "Receiver", "address1": "456 Oak Ave"},
		"package":      map[string]any{"weight": "2"},
	}
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name":     "Alice",
		"email":    "alice@example.com",
		"password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Duplicate registration is rejected.
	rec = env.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name":     "Alice",
		"email":    "alice@example.com",
		"password": "hunter22",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email":    "alice@example.com",
		"password": "hunter22",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeResponse(t, rec)
	assert.NotEmpty(t, body["token"])

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email":    "alice@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegister_MissingFields(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"email": "alice@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateOrder(t *testing.T) {
	env := newTestEnv(t)
	userID, token := env.seedUser(t, 100)

	body := shipmentBody("UPS Ground")
	body["user_id"] = userID

	rec := env.do(t, http.MethodPost, "/api/orders/", token, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeResponse(t, rec)
	assert.Equal(t, "Order created successfully", resp["message"])
	data := resp["data"].(map[string]any)
	assert.NotEmpty(t, data["tracking_number"])

	// The debit is visible on the balance endpoint.
	rec = env.do(t, http.MethodGet, "/api/payment/balance/"+userID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "70", decodeResponse(t, rec)["balance"])
}

func TestCreateOrder_InsufficientBalance(t *testing.T) {
	env := newTestEnv(t)
	userID, token := env.seedUser(t, 5)

	body := shipmentBody("UPS Ground")
	body["user_id"] = userID

	rec := env.do(t, http.MethodPost, "/api/orders/", token, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Insufficient Balance", decodeResponse(t, rec)["message"])
}

func TestCreateOrder_ProviderNoResponse(t *testing.T) {
	env := newTestEnv(t)
	userID, token := env.seedUser(t, 100)
	env.mock.SimulateNoResponse = true

	body := shipmentBody("UPS Ground")
	body["user_id"] = userID

	rec := env.do(t, http.MethodPost, "/api/orders/", token, body)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	// The failed order's debit was refunded.
	rec = env.do(t, http.MethodGet, "/api/payment/balance/"+userID, token, nil)
	assert.Equal(t, "100", decodeResponse(t, rec)["balance"])
}

func TestCreateOrder_RequiresToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/orders/", "", shipmentBody("UPS Ground"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSubmitBatchAndDownload(t *testing.T) {
	env := newTestEnv(t)
	userID, token := env.seedUser(t, 100)

	rec := env.do(t, http.MethodPost, "/api/orders/bulk/"+userID, token, []map[string]any{
		shipmentBody("UPS Ground"),
		shipmentBody("UPS Ground"),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeResponse(t, rec)
	assert.Equal(t, "Bulk orders created successfully", resp["message"])
	fileName, _ := resp["fileName"].(string)
	require.NotEmpty(t, fileName)

	data := resp["data"].(map[string]any)
	assert.EqualValues(t, 2, data["totalCount"])
	assert.EqualValues(t, 2, data["processedCount"])

	// The generated file is downloadable byte-for-byte.
	rec = env.do(t, http.MethodGet, "/api/orders/download/"+fileName, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), fileName)
	assert.NotZero(t, rec.Body.Len())

	// The batch shows up in the listing.
	rec = env.do(t, http.MethodGet, "/api/orders/bulk/"+userID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var batches []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &batches))
	assert.Len(t, batches, 1)
}

func TestSubmitBatch_PartialFulfillment(t *testing.T) {
	env := newTestEnv(t)
	userID, token := env.seedUser(t, 40)

	rec := env.do(t, http.MethodPost, "/api/orders/bulk/"+userID, token, []map[string]any{
		shipmentBody("UPS Ground"),
		shipmentBody("UPS Ground"),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	data := decodeResponse(t, rec)["data"].(map[string]any)
	assert.EqualValues(t, 2, data["totalCount"])
	assert.EqualValues(t, 1, data["processedCount"])
	assert.EqualValues(t, 1, data["skippedCount"])
}

func TestDownload_UnknownFile(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedUser(t, 0)

	rec := env.do(t, http.MethodGet, "/api/orders/download/bulk-orders-missing.pdf", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTopUpAndBalance(t *testing.T) {
	env := newTestEnv(t)
	userID, token := env.seedUser(t, 10)

	rec := env.do(t, http.MethodPost, "/api/payment/top-up/"+userID, token, map[string]any{
		"amount": "25.50",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "35.5", decodeResponse(t, rec)["balance"])

	rec = env.do(t, http.MethodPost, "/api/payment/top-up/"+userID, token, map[string]any{
		"amount": "-5",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateServicePrice(t *testing.T) {
	env := newTestEnv(t)
	userID, token := env.seedUser(t, 0)

	rec := env.do(t, http.MethodPost, "/api/orders/service-price/"+userID, token, map[string]any{
		"service":  "UPS 2nd Day Air",
		"costType": "standard_cost",
		"value":    "12.40",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/orders/service-price/"+userID, token, map[string]any{
		"service":  "Pigeon Post",
		"costType": "standard_cost",
		"value":    "1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPriceEndpoints(t *testing.T) {
	env := newTestEnv(t)
	userID, token := env.seedUser(t, 0)

	rec := env.do(t, http.MethodPost, "/api/orders/price/single", token, map[string]any{
		"userId":  userID,
		"courier": "UPS",
		"service": "UPS Ground",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "30", decodeResponse(t, rec)["price"])

	rec = env.do(t, http.MethodPost, "/api/orders/price/bulk", token, map[string]any{
		"userId": userID,
		"shipments": []map[string]any{
			shipmentBody("UPS Ground"),
			shipmentBody("UPS Ground"),
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "60", decodeResponse(t, rec)["totalPrice"])
}

func TestAdminUserManagement(t *testing.T) {
	env := newTestEnv(t)
	userID, token := env.seedUser(t, 10)

	// Listing shows the seeded account.
	rec := env.do(t, http.MethodGet, "/api/auth/users/", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var users []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	require.Len(t, users, 1)
	assert.Equal(t, "test@example.com", users[0]["email"])

	// Role change round-trips.
	rec = env.do(t, http.MethodPost, "/api/auth/users/role/"+userID, token, map[string]any{
		"user_role": "admin",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/auth/users/role/"+userID, token, map[string]any{
		"user_role": "superuser",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Balance override is absolute, not additive.
	rec = env.do(t, http.MethodPost, "/api/auth/users/balance/"+userID, token, map[string]any{
		"balance": "250",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = env.do(t, http.MethodGet, "/api/payment/balance/"+userID, token, nil)
	assert.Equal(t, "250", decodeResponse(t, rec)["balance"])

	// Blocking the account shuts the login path.
	rec = env.do(t, http.MethodPost, "/api/auth/users/activation/"+userID, token, map[string]any{
		"activation": "block",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email":    "test@example.com",
		"password": "hunter22",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Account is blocked", decodeResponse(t, rec)["message"])

	// Deleting frees the email for registration again.
	rec = env.do(t, http.MethodDelete, "/api/auth/users/"+userID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/payment/balance/"+userID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name":     "Test User",
		"email":    "test@example.com",
		"password": "hunter22",
	})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestAdminRoutes_RequireToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/auth/users/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateOrder_WrappedProviderErrorCountsAsProviderError(t *testing.T) {
	env := newTestEnv(t)
	userID, token := env.seedUser(t, 100)
	env.mock.OnCreateLabel = func(ctx context.Context, courier label.Courier, req *labelexpress.CreateLabelRequest) (*labelexpress.CreateLabelResponse, error) {
		return nil, fmt.Errorf("dispatching request: %w",
			label.NewProviderError(courier, label.KindNoResponse, "timeout"))
	}

	counter := telemetry.NewMetrics().ProviderErrors.WithLabelValues("UPS", "no_response")
	before := testutil.ToFloat64(counter)

	body := shipmentBody("UPS Ground")
	body["user_id"] = userID

	rec := env.do(t, http.MethodPost, "/api/orders/", token, body)
	assert.Equal(t, http.StatusBadGateway, rec.Code, rec.Body.String())
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
