package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"

	"github.com/labelforge/labelforge/internal/auth"
	"github.com/labelforge/labelforge/internal/config"
	"github.com/labelforge/labelforge/internal/server"
	"github.com/labelforge/labelforge/internal/store"
	"github.com/labelforge/labelforge/internal/telemetry"
	"github.com/labelforge/labelforge/pkg/artifact"
	"github.com/labelforge/labelforge/pkg/batch"
	"github.com/labelforge/labelforge/pkg/label/labelexpress"
	"github.com/labelforge/labelforge/pkg/ledger"
	"github.com/labelforge/labelforge/pkg/pricing"
)

func loadConfig() (*config.Config, error) {
	return config.Load()
}

func initLogger(level string) (*otelzap.Logger, error) {
	return telemetry.NewLogger(level)
}

func initTracer(ctx context.Context, cfg *config.Config) (trace.Tracer, func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return nil, func(context.Context) error { return nil }, nil
	}
	return telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Version)
}

// initDeps wires the stores, ledger, provider client and pipeline.
func initDeps(ctx context.Context, cfg *config.Config, logger *otelzap.Logger, tracer trace.Tracer) (server.Deps, func(), error) {
	var (
		users   store.Users
		orders  store.Orders
		batches store.Batches
		ldg     ledger.Ledger
		cleanup = func() {}
	)

	if cfg.UseMemoryStore {
		mem := store.NewMemory()
		users, orders, batches, ldg = mem, mem, mem, mem
	} else {
		pg, err := store.NewPostgres(cfg.PostgresDSN)
		if err != nil {
			return server.Deps{}, nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return server.Deps{}, nil, err
		}
		users, orders, batches, ldg = pg, pg, pg, pg
		cleanup = func() { pg.Close() }
	}

	if err := os.MkdirAll(cfg.UploadsDir, 0o755); err != nil {
		cleanup()
		return server.Deps{}, nil, fmt.Errorf("creating uploads dir: %w", err)
	}

	provider := labelexpress.New(labelexpress.Config{
		APIKey:  cfg.LabelAPIKey,
		BaseURL: cfg.LabelBaseURL,
		Timeout: cfg.LabelTimeout,
		UseMock: cfg.LabelUseMock,
	}, logger, tracer)

	writer := artifact.NewWriter(cfg.UploadsDir, logger)
	pricer := pricing.NewResolver()
	orchestrator := batch.NewOrchestrator(pricer, ldg, provider, writer, batches, logger, tracer)

	deps := server.Deps{
		Users:        users,
		Orders:       orders,
		Batches:      batches,
		Ledger:       ldg,
		Orchestrator: orchestrator,
		Pricer:       pricer,
		Provider:     provider,
		Writer:       writer,
		Auth:         auth.NewManager(cfg.JWTSecret, cfg.TokenTTL),
	}
	return deps, cleanup, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.UseMemoryStore {
		return fmt.Errorf("migrate requires a postgres DSN")
	}

	pg, err := store.NewPostgres(cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer pg.Close()

	return pg.Migrate(cmd.Context())
}
