package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/labelforge/labelforge/pkg/account"
	"github.com/labelforge/labelforge/pkg/artifact"
	"github.com/labelforge/labelforge/pkg/label"
	"github.com/labelforge/labelforge/pkg/ledger"
	"github.com/shopspring/decimal"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Pricer resolves the cost of one shipment request.
type Pricer interface {
	Price(u *account.User, courier label.Courier, serviceName string) (decimal.Decimal, error)
}

// Fulfiller performs one provider call per shipment.
type Fulfiller interface {
	RequestLabel(ctx context.Context, req *label.ShipmentRequest) (*label.Artifact, error)
}

// Writer renders a batch's fulfilled items into downloadable files.
type Writer interface {
	Write(ctx context.Context, mode artifact.Mode, items []artifact.Item) (artifact.Files, error)
}

// Store persists the batch outcome.
type Store interface {
	SaveBatch(ctx context.Context, outcome *Outcome) (string, error)
}

// Orchestrator runs the fulfillment pipeline. One batch submission is
// one sequential pass over its items: later items' debit checks depend
// on the balance left by earlier ones, so there is no intra-batch
// parallelism. The ledger guards cross-request races on its own.
type Orchestrator struct {
	pricer    Pricer
	ledger    ledger.Ledger
	fulfiller Fulfiller
	writer    Writer
	store     Store
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// NewOrchestrator wires the pipeline.
func NewOrchestrator(pricer Pricer, ldg ledger.Ledger, fulfiller Fulfiller, writer Writer, store Store, logger *otelzap.Logger, tracer trace.Tracer) *Orchestrator {
	return &Orchestrator{
		pricer:    pricer,
		ledger:    ldg,
		fulfiller: fulfiller,
		writer:    writer,
		store:     store,
		logger:    logger,
		tracer:    tracer,
	}
}

// Process runs one batch for the user. Per-item failures never abort
// the loop: insufficient funds skips the item before any debit, and a
// provider failure after the debit credits the amount back and marks
// the item failed. Artifact or store failures abort the batch with no
// filenames recorded.
func (o *Orchestrator) Process(ctx context.Context, user *account.User, requests []label.ShipmentRequest) (*Outcome, error) {
	if len(requests) == 0 {
		return nil, label.NewValidationError("shipments", "at least one shipment is required")
	}
	for i := range requests {
		if err := requests[i].Validate(); err != nil {
			return nil, fmt.Errorf("shipment %d: %w", i, err)
		}
	}

	if o.tracer != nil {
		var span trace.Span
		ctx, span = o.tracer.Start(ctx, "batch.Process",
			trace.WithAttributes(
				attribute.String("user_id", user.ID),
				attribute.Int("item_count", len(requests)),
			))
		defer span.End()
	}

	outcome := &Outcome{
		UserID:         user.ID,
		Courier:        requests[0].Courier,
		Mode:           classifyMode(requests),
		Items:          make([]ItemResult, 0, len(requests)),
		TotalCharged:   decimal.Zero,
		RequestedCount: len(requests),
		CreatedAt:      time.Now(),
	}

	for i := range requests {
		item := o.processItem(ctx, user, i, &requests[i])
		switch item.Status {
		case StatusFulfilled:
			outcome.FulfilledCount++
			outcome.TotalCharged = outcome.TotalCharged.Add(item.Cost)
		case StatusSkipped:
			outcome.SkippedCount++
		case StatusFailed:
			outcome.FailedCount++
		}
		outcome.Items = append(outcome.Items, item)
	}

	files, err := o.writer.Write(ctx, outcome.Mode, o.artifactItems(outcome))
	if err != nil {
		return nil, fmt.Errorf("rendering batch artifacts: %w", err)
	}
	outcome.Files = files

	id, err := o.store.SaveBatch(ctx, outcome)
	if err != nil {
		return nil, fmt.Errorf("persisting batch: %w", err)
	}
	outcome.ID = id

	o.logger.Info("Batch processed",
		zap.String("user_id", user.ID),
		zap.String("batch_id", outcome.ID),
		zap.Int("requested", outcome.RequestedCount),
		zap.Int("fulfilled", outcome.FulfilledCount),
		zap.Int("skipped", outcome.SkippedCount),
		zap.Int("failed", outcome.FailedCount),
		zap.String("total_charged", outcome.TotalCharged.String()),
	)
	return outcome, nil
}

// processItem runs one item through price, debit and provider call.
// The provider call never runs inside a ledger critical section.
func (o *Orchestrator) processItem(ctx context.Context, user *account.User, index int, req *label.ShipmentRequest) ItemResult {
	item := ItemResult{Index: index, Request: *req}

	cost, err := o.pricer.Price(user, req.Courier, req.ServiceName)
	if err != nil {
		item.Status = StatusSkipped
		item.Reason = err.Error()
		return item
	}
	item.Cost = cost

	if _, err := o.ledger.AuthorizeAndDebit(ctx, user.ID, cost); err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			o.logger.Info("Insufficient balance, item skipped",
				zap.String("user_id", user.ID),
				zap.Int("item", index),
			)
			item.Status = StatusSkipped
			item.Reason = "insufficient balance"
			return item
		}
		item.Status = StatusSkipped
		item.Reason = err.Error()
		return item
	}

	art, err := o.fulfiller.RequestLabel(ctx, req)
	if err != nil {
		// The debit already committed; credit it back before marking
		// the item failed so no charge dangles without a label.
		if _, crediterr := o.ledger.Credit(ctx, user.ID, cost); crediterr != nil {
			o.logger.Error("Refund after provider failure did not apply",
				zap.String("user_id", user.ID),
				zap.Int("item", index),
				zap.String("amount", cost.String()),
				zap.Error(crediterr),
			)
		}
		item.Status = StatusFailed
		item.Reason = providerReason(err)
		return item
	}

	item.Status = StatusFulfilled
	item.Artifact = art
	item.TrackingNum = art.TrackingNumber
	return item
}

// Single runs the single-order flow: price, debit, provider call, with
// the same refund-on-failure compensation. Unlike the batch flow, any
// failure surfaces directly to the caller.
func (o *Orchestrator) Single(ctx context.Context, user *account.User, req *label.ShipmentRequest) (*label.Artifact, decimal.Decimal, error) {
	if err := req.Validate(); err != nil {
		return nil, decimal.Zero, err
	}

	cost, err := o.pricer.Price(user, req.Courier, req.ServiceName)
	if err != nil {
		return nil, decimal.Zero, err
	}

	if _, err := o.ledger.AuthorizeAndDebit(ctx, user.ID, cost); err != nil {
		return nil, cost, err
	}

	art, err := o.fulfiller.RequestLabel(ctx, req)
	if err != nil {
		if _, crediterr := o.ledger.Credit(ctx, user.ID, cost); crediterr != nil {
			o.logger.Error("Refund after provider failure did not apply",
				zap.String("user_id", user.ID),
				zap.String("amount", cost.String()),
				zap.Error(crediterr),
			)
		}
		return nil, cost, err
	}

	return art, cost, nil
}

// artifactItems converts fulfilled results into renderer inputs.
func (o *Orchestrator) artifactItems(outcome *Outcome) []artifact.Item {
	fulfilled := outcome.Fulfilled()
	items := make([]artifact.Item, len(fulfilled))
	for i, res := range fulfilled {
		req := res.Request
		quantity := req.Package.String("order_item_quantity")
		if quantity == "" {
			// some upstream manifests misspell the quantity key
			quantity = req.Package.String("order_item_quanity")
		}
		items[i] = artifact.Item{
			OrderID:        req.SourceOrderID(),
			OrderItemID:    req.Package.String("order_item_id"),
			Quantity:       quantity,
			Courier:        string(req.Courier),
			ServiceName:    req.ServiceName,
			TrackingNumber: res.TrackingNum,
			ShipMethod:     req.Sender.String("ship_method"),
		}
		if res.Artifact != nil {
			items[i].Image = res.Artifact.Image
		}
	}
	return items
}

func providerReason(err error) string {
	var pe *label.ProviderError
	if errors.As(err, &pe) {
		return fmt.Sprintf("provider %s: %s", pe.Kind, pe.Message)
	}
	return err.Error()
}
