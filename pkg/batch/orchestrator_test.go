package batch_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/labelforge/labelforge/pkg/account"
	"github.com/labelforge/labelforge/pkg/artifact"
	"github.com/labelforge/labelforge/pkg/batch"
	"github.com/labelforge/labelforge/pkg/label"
	"github.com/labelforge/labelforge/pkg/label/labelexpress"
	"github.com/labelforge/labelforge/pkg/ledger"
	"github.com/labelforge/labelforge/pkg/pricing"
)

// fakeStore records the last saved outcome.
type fakeStore struct {
	saved *batch.Outcome
	err   error
}

func (s *fakeStore) SaveBatch(ctx context.Context, outcome *batch.Outcome) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.saved = outcome
	return "batch-1", nil
}

type fixture struct {
	orch   *batch.Orchestrator
	ledger *ledger.Memory
	mock   *labelexpress.MockAPIClient
	store  *fakeStore
	user   *account.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := otelzap.New(zap.NewNop())

	user := &account.User{
		ID:    "user-1",
		Name:  "Test User",
		Email: "test@example.com",
		Services: map[label.Courier]account.ServiceTable{
			label.CourierUPS: {
				Courier: label.CourierUPS,
				Services: map[string]account.Rate{
					"UPS Ground":       {StandardCost: decimal.NewFromInt(30)},
					"UPS 2nd Day Air":  {StandardCost: decimal.NewFromInt(90)},
					"UPS Next Day Air": {StandardCost: decimal.NewFromInt(10)},
				},
			},
		},
	}

	ldg := ledger.NewMemory()
	ldg.Seed(user.ID, decimal.NewFromInt(100))

	mockAPI := labelexpress.NewMockAPIClient()
	fulfiller := labelexpress.NewWithAPIClient(
		labelexpress.Config{APIKey: "test-key"},
		mockAPI,
		logger,
		nil,
	)

	store := &fakeStore{}
	writer := artifact.NewWriter(t.TempDir(), logger)
	orch := batch.NewOrchestrator(pricing.NewResolver(), ldg, fulfiller, writer, store, logger, nil)

	return &fixture{orch: orch, ledger: ldg, mock: mockAPI, store: store, user: user}
}

func ups(serviceName string) label.ShipmentRequest {
	return label.ShipmentRequest{
		Courier:     label.CourierUPS,
		ServiceName: serviceName,
		Sender:      label.Payload{"name": "Sender", "address1": "123 Main St"},
		Receiver:    label.Payload{"name": "Receiver", "address1": "456 Oak Ave"},
		Package:     label.Payload{"weight": "2"},
	}
}

func TestOrchestrator_Process_InsufficientBalanceSkipsItem(t *testing.T) {
	f := newFixture(t)

	// Balance 100 against costs 30, 90, 10: the middle item cannot be
	// covered by the 70 remaining after the first debit, but the third
	// still fits against the untouched 70.
	requests := []label.ShipmentRequest{
		ups("UPS Ground"),
		ups("UPS 2nd Day Air"),
		ups("UPS Next Day Air"),
	}

	outcome, err := f.orch.Process(context.Background(), f.user, requests)
	require.NoError(t, err)

	assert.Equal(t, 3, outcome.RequestedCount)
	assert.Equal(t, 2, outcome.FulfilledCount)
	assert.Equal(t, 1, outcome.SkippedCount)
	assert.Equal(t, 0, outcome.FailedCount)

	assert.Equal(t, batch.StatusFulfilled, outcome.Items[0].Status)
	assert.Equal(t, batch.StatusSkipped, outcome.Items[1].Status)
	assert.Equal(t, "insufficient balance", outcome.Items[1].Reason)
	assert.Equal(t, batch.StatusFulfilled, outcome.Items[2].Status)

	balance, err := f.ledger.Balance(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(60)), "got balance %s", balance)
	assert.True(t, outcome.TotalCharged.Equal(decimal.NewFromInt(40)))

	// The skipped item never reached the provider.
	assert.Equal(t, 2, f.mock.Calls)
}

func TestOrchestrator_Process_ProviderFailureRefundsDebit(t *testing.T) {
	f := newFixture(t)
	f.mock.SimulateErrors = true

	outcome, err := f.orch.Process(context.Background(), f.user, []label.ShipmentRequest{
		ups("UPS Ground"),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.FailedCount)
	assert.Equal(t, batch.StatusFailed, outcome.Items[0].Status)
	assert.Contains(t, outcome.Items[0].Reason, "rejected")
	assert.True(t, outcome.TotalCharged.IsZero())

	// The debit was credited back, so the failed item cost nothing.
	balance, err := f.ledger.Balance(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(100)), "got balance %s", balance)
}

func TestOrchestrator_Process_ItemCountsAlwaysSum(t *testing.T) {
	f := newFixture(t)
	f.mock.OnCreateLabel = func(ctx context.Context, courier label.Courier, req *labelexpress.CreateLabelRequest) (*labelexpress.CreateLabelResponse, error) {
		if req.ServiceName == "UPS Ground" {
			return nil, label.NewProviderError(courier, label.KindNoResponse, "timeout")
		}
		return &labelexpress.CreateLabelResponse{
			Data: labelexpress.LabelData{TrackingNumber: "1Z999"},
		}, nil
	}

	requests := []label.ShipmentRequest{
		ups("UPS Ground"),       // fails at the provider
		ups("UPS 2nd Day Air"),  // fulfilled
		ups("UPS Next Day Air"), // fulfilled
		ups("UPS 2nd Day Air"),  // skipped, only 0 left after the 90 debit
	}

	outcome, err := f.orch.Process(context.Background(), f.user, requests)
	require.NoError(t, err)

	assert.Equal(t, outcome.RequestedCount,
		outcome.FulfilledCount+outcome.SkippedCount+outcome.FailedCount)
	assert.Equal(t, 2, outcome.FulfilledCount)
	assert.Equal(t, 1, outcome.SkippedCount)
	assert.Equal(t, 1, outcome.FailedCount)
	assert.Len(t, outcome.Items, 4)
}

func TestOrchestrator_Process_ModeClassification(t *testing.T) {
	f := newFixture(t)

	outcome, err := f.orch.Process(context.Background(), f.user, []label.ShipmentRequest{
		ups("UPS Ground"),
	})
	require.NoError(t, err)
	assert.Equal(t, artifact.ModeImage, outcome.Mode)
	assert.NotEmpty(t, outcome.Files.LabelDoc)
	assert.Empty(t, outcome.Files.ResultManifest)

	f2 := newFixture(t)
	withOrder := ups("UPS Ground")
	withOrder.Sender["order_id"] = "114-0001"
	withOrder.Package["order_item_id"] = "item-1"
	withOrder.Package["order_item_quanity"] = "2" // upstream typo key

	outcome2, err := f2.orch.Process(context.Background(), f2.user, []label.ShipmentRequest{withOrder})
	require.NoError(t, err)
	assert.Equal(t, artifact.ModeManifest, outcome2.Mode)
	assert.Empty(t, outcome2.Files.LabelDoc)
	assert.NotEmpty(t, outcome2.Files.ResultManifest)
	assert.NotEmpty(t, outcome2.Files.AutoConfirmManifest)
}

func TestOrchestrator_Process_EmptyBatchRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.Process(context.Background(), f.user, nil)
	assert.True(t, label.IsValidation(err))
}

func TestOrchestrator_Process_InvalidItemRejectsWholeBatch(t *testing.T) {
	f := newFixture(t)

	bad := ups("UPS Ground")
	bad.Receiver = nil

	_, err := f.orch.Process(context.Background(), f.user, []label.ShipmentRequest{
		ups("UPS Ground"),
		bad,
	})
	require.Error(t, err)
	assert.True(t, label.IsValidation(err))

	// Nothing was debited for a batch that failed validation.
	balance, err := f.ledger.Balance(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(100)))
}

func TestOrchestrator_Process_StoreFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.store.err = errors.New("connection reset")

	_, err := f.orch.Process(context.Background(), f.user, []label.ShipmentRequest{
		ups("UPS Ground"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persisting batch")
}

func TestOrchestrator_Process_WriterFailureLeavesNoFiles(t *testing.T) {
	logger := otelzap.New(zap.NewNop())
	f := newFixture(t)

	dir := filepath.Join(t.TempDir(), "missing")
	writer := artifact.NewWriter(dir, logger)
	orch := batch.NewOrchestrator(pricing.NewResolver(), f.ledger,
		labelexpress.NewWithAPIClient(labelexpress.Config{}, f.mock, logger, nil),
		writer, f.store, logger, nil)

	_, err := orch.Process(context.Background(), f.user, []label.ShipmentRequest{
		ups("UPS Ground"),
	})
	require.Error(t, err)

	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
	assert.Nil(t, f.store.saved, "a failed batch must not be persisted")
}

func TestOrchestrator_Single(t *testing.T) {
	f := newFixture(t)

	req := ups("UPS Ground")
	art, cost, err := f.orch.Single(context.Background(), f.user, &req)
	require.NoError(t, err)
	assert.NotEmpty(t, art.TrackingNumber)
	assert.True(t, cost.Equal(decimal.NewFromInt(30)))

	balance, err := f.ledger.Balance(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(70)))
}

func TestOrchestrator_Single_InsufficientBalance(t *testing.T) {
	f := newFixture(t)
	f.ledger.Seed(f.user.ID, decimal.NewFromInt(5))

	req := ups("UPS Ground")
	_, _, err := f.orch.Single(context.Background(), f.user, &req)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.Equal(t, 0, f.mock.Calls)
}

func TestOrchestrator_Single_ProviderFailureRefunds(t *testing.T) {
	f := newFixture(t)
	f.mock.SimulateNoResponse = true

	req := ups("UPS Ground")
	_, _, err := f.orch.Single(context.Background(), f.user, &req)
	assert.True(t, label.IsNoResponse(err))

	balance, lerr := f.ledger.Balance(context.Background(), f.user.ID)
	require.NoError(t, lerr)
	assert.True(t, balance.Equal(decimal.NewFromInt(100)))
}
