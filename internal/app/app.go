// Package app assembles the contract service from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/gezibash/arc-contract/internal/config"
	"github.com/gezibash/arc-contract/internal/contractstore"
	"github.com/gezibash/arc-contract/internal/contractstore/physical"
	"github.com/gezibash/arc-contract/internal/httpapi"
	"github.com/gezibash/arc-contract/internal/lifecycle"
	"github.com/gezibash/arc-contract/internal/observability"
	"github.com/gezibash/arc-contract/internal/policy/compiler"
	"github.com/gezibash/arc-contract/internal/policy/pdp"

	// Register contract store backends
	_ "github.com/gezibash/arc-contract/internal/contractstore/physical/badger"
	_ "github.com/gezibash/arc-contract/internal/contractstore/physical/memory"
	_ "github.com/gezibash/arc-contract/internal/contractstore/physical/postgres"
	_ "github.com/gezibash/arc-contract/internal/contractstore/physical/redis"
	_ "github.com/gezibash/arc-contract/internal/contractstore/physical/s3"
	_ "github.com/gezibash/arc-contract/internal/contractstore/physical/sqlite"
)

// App is the assembled service.
type App struct {
	Store   *contractstore.Store
	Manager *lifecycle.Manager
	Router  *gin.Engine
}

// NewContractStore opens the configured backend.
func NewContractStore(ctx context.Context, cfg config.Config, metrics *observability.Metrics) (*contractstore.Store, error) {
	backend, err := physical.New(ctx, cfg.Storage.Backend, cfg.StorageConfig(), metrics)
	if err != nil {
		return nil, fmt.Errorf("create contract backend: %w", err)
	}
	return contractstore.New(backend, metrics), nil
}

// NewCatalog returns the built-in rule catalog extended with the configured
// catalog file, if any.
func NewCatalog(cfg config.Config) (*compiler.Catalog, error) {
	return compiler.Load(cfg.Policy.Catalog)
}

// New wires storage, the policy engine, the lifecycle manager and the
// router. The store is registered for shutdown on obs.
func New(ctx context.Context, cfg config.Config, obs *observability.Observability) (*App, error) {
	store, err := NewContractStore(ctx, cfg, obs.Metrics)
	if err != nil {
		return nil, err
	}
	obs.Shutdown.Register("contractstore", func(context.Context) error {
		return store.Close()
	})

	catalog, err := NewCatalog(cfg)
	if err != nil {
		return nil, fmt.Errorf("load rule catalog: %w", err)
	}
	evaluator, err := pdp.NewDefault()
	if err != nil {
		return nil, fmt.Errorf("create evaluator: %w", err)
	}

	m := lifecycle.New(store, catalog, evaluator, obs.Metrics, cfg.LifecycleOptions())
	router := httpapi.NewRouter(m, httpapi.Options{
		ServiceName:    cfg.Observability.ServiceName,
		Metrics:        obs.Metrics,
		Logger:         obs.Logger,
		TracerProvider: obs.TracerProvider,
		CORSOrigins:    cfg.HTTP.CORSOrigins,
	})

	slog.Info("contract service assembled",
		"backend", cfg.Storage.Backend,
		"rules", len(catalog.List()),
		"extensions", evaluator.Extensions(),
	)
	return &App{Store: store, Manager: m, Router: router}, nil
}
