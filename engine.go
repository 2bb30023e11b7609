package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/surfaceguard/engine/asset"
	"github.com/surfaceguard/engine/audit"
	"github.com/surfaceguard/engine/check"
	"github.com/surfaceguard/engine/dispatch"
	"github.com/surfaceguard/engine/driver"
	"github.com/surfaceguard/engine/finding"
	"github.com/surfaceguard/engine/health"
	"github.com/surfaceguard/engine/queue"
	"github.com/surfaceguard/engine/quota"
	"github.com/surfaceguard/engine/scan"
	"github.com/surfaceguard/engine/store"
	"github.com/surfaceguard/engine/telemetry"
)

// Engine is the scan orchestration facade. It owns asset and scan
// lifecycle, dispatches accepted scans for execution, and answers result
// queries. Every operation is scoped to an owner: a resource belonging to
// someone else is indistinguishable from one that does not exist.
type Engine struct {
	store      store.Store
	gate       *quota.Gate
	driver     *driver.Driver
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
	now        func() time.Time
}

// New creates an Engine over the given store.
func New(st store.Store, opts ...Option) (*Engine, error) {
	if st == nil {
		return nil, NewConfigurationError("Engine.New", errors.New("store is required"))
	}

	cfg := &engineConfig{
		quotaLimit: quota.DefaultDailyLimit,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.tracer == nil {
		cfg.tracer = telemetry.NoopTracer()
	}
	if cfg.meter == nil {
		cfg.meter = telemetry.NoopMeter()
	}

	gate := quota.NewGate(st, cfg.quotaLimit, quota.WithNow(cfg.now))

	catalog := cfg.catalog
	if catalog == nil {
		catalog = check.Default(check.Options{
			Logger: cfg.logger,
			Gate:   gate,
			Breach: cfg.breach,
		})
	}

	drv, err := driver.New(driver.Options{
		Store:   st,
		Catalog: catalog,
		Logger:  cfg.logger,
		Tracer:  cfg.tracer,
		Meter:   cfg.meter,
		Now:     cfg.now,
	})
	if err != nil {
		return nil, NewConfigurationError("Engine.New", err)
	}

	dispatcher := dispatch.New(dispatch.Options{
		Backend:        cfg.backend,
		Runner:         drv,
		Logger:         cfg.logger,
		EnqueueTimeout: cfg.dispatchTimeout,
	})

	return &Engine{
		store:      st,
		gate:       gate,
		driver:     drv,
		dispatcher: dispatcher,
		logger:     cfg.logger,
		now:        cfg.now,
	}, nil
}

// Driver returns the execution driver, for wiring queue workers that run
// in a separate process from the facade.
func (e *Engine) Driver() *driver.Driver {
	return e.driver
}

// AddAsset validates and registers an asset for the owner.
func (e *Engine) AddAsset(ctx context.Context, ownerID string, typ asset.Type, value string) (*asset.Asset, error) {
	const op = "Engine.AddAsset"

	a, err := asset.New(ownerID, typ, value)
	if err != nil {
		return nil, NewValidationError(op, err)
	}
	if err := e.store.CreateAsset(ctx, a); err != nil {
		return nil, NewStorageError(op, err)
	}
	e.logger.Info("asset added", "owner_id", ownerID, "asset_id", a.ID, "type", typ)
	return a, nil
}

// ListAssets returns the owner's assets.
func (e *Engine) ListAssets(ctx context.Context, ownerID string) ([]*asset.Asset, error) {
	assets, err := e.store.ListAssetsByOwner(ctx, ownerID)
	if err != nil {
		return nil, NewStorageError("Engine.ListAssets", err)
	}
	return assets, nil
}

// RemoveAsset deletes one of the owner's assets.
func (e *Engine) RemoveAsset(ctx context.Context, ownerID, assetID string) error {
	const op = "Engine.RemoveAsset"

	if _, err := e.ownedAsset(ctx, op, ownerID, assetID); err != nil {
		return err
	}
	if err := e.store.DeleteAsset(ctx, assetID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NewNotFoundError(op, ErrAssetNotFound)
		}
		return NewStorageError(op, err)
	}
	return nil
}

// StartScan accepts a scan over the given assets and dispatches it for
// execution. The returned scan is already persisted in the queued state;
// execution happens asynchronously, on the queue backend when one is
// configured and in-process otherwise.
func (e *Engine) StartScan(ctx context.Context, ownerID string, assetIDs []string) (*scan.Scan, error) {
	const op = "Engine.StartScan"

	// Every referenced asset must exist and belong to the caller before
	// anything is persisted.
	for _, assetID := range assetIDs {
		if _, err := e.ownedAsset(ctx, op, ownerID, assetID); err != nil {
			return nil, err
		}
	}

	sc, err := scan.New(ownerID, assetIDs)
	if err != nil {
		return nil, NewValidationError(op, err)
	}
	if err := e.store.CreateScan(ctx, sc); err != nil {
		return nil, NewStorageError(op, err)
	}

	e.recordAudit(ctx, audit.NewEvent(ownerID, audit.ActionStartScan, "scan", sc.ID, map[string]any{
		"assets": len(assetIDs),
	}))

	e.dispatcher.Submit(ctx, queue.Job{
		JobID:       uuid.New().String(),
		ScanID:      sc.ID,
		OwnerID:     ownerID,
		SubmittedAt: e.now().UnixMilli(),
	})

	e.logger.Info("scan accepted", "owner_id", ownerID, "scan_id", sc.ID, "assets", len(assetIDs))
	return sc, nil
}

// GetScan returns one of the owner's scans.
func (e *Engine) GetScan(ctx context.Context, ownerID, scanID string) (*scan.Scan, error) {
	return e.ownedScan(ctx, "Engine.GetScan", ownerID, scanID)
}

// ListScans returns the owner's scans, newest first.
func (e *Engine) ListScans(ctx context.Context, ownerID string) ([]*scan.Scan, error) {
	scans, err := e.store.ListScansByOwner(ctx, ownerID)
	if err != nil {
		return nil, NewStorageError("Engine.ListScans", err)
	}
	return scans, nil
}

// GetFindings returns the findings of one of the owner's scans.
func (e *Engine) GetFindings(ctx context.Context, ownerID, scanID string) ([]*finding.Finding, error) {
	const op = "Engine.GetFindings"

	if _, err := e.ownedScan(ctx, op, ownerID, scanID); err != nil {
		return nil, err
	}
	findings, err := e.store.ListFindingsByScan(ctx, scanID)
	if err != nil {
		return nil, NewStorageError(op, err)
	}
	return findings, nil
}

// DeleteScan removes one of the owner's scans and all its findings. A
// deletion racing a running scan wins: the run detects the missing scan on
// its next write and aborts quietly.
func (e *Engine) DeleteScan(ctx context.Context, ownerID, scanID string) error {
	const op = "Engine.DeleteScan"

	if _, err := e.ownedScan(ctx, op, ownerID, scanID); err != nil {
		return err
	}
	if err := e.store.DeleteScan(ctx, scanID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NewNotFoundError(op, ErrScanNotFound)
		}
		return NewStorageError(op, err)
	}

	e.recordAudit(ctx, audit.NewEvent(ownerID, audit.ActionDeleteScan, "scan", scanID, nil))
	e.logger.Info("scan deleted", "owner_id", ownerID, "scan_id", scanID)
	return nil
}

// BreachLookupUsage reports the owner's breach-lookup quota consumption
// for the current UTC day.
func (e *Engine) BreachLookupUsage(ctx context.Context, ownerID string) (quota.Usage, error) {
	usage, err := e.gate.CurrentUsage(ctx, ownerID)
	if err != nil {
		return quota.Usage{}, NewStorageError("Engine.BreachLookupUsage", err)
	}
	return usage, nil
}

// AuditTrail returns the owner's audit events, newest first.
func (e *Engine) AuditTrail(ctx context.Context, ownerID string) ([]*audit.Event, error) {
	events, err := e.store.ListEventsByActor(ctx, ownerID)
	if err != nil {
		return nil, NewStorageError("Engine.AuditTrail", err)
	}
	return events, nil
}

// Health reports the state of the engine's dependencies. The queue pinger
// may be nil, which reports as degraded: the engine still works via the
// in-process fallback.
func (e *Engine) Health(ctx context.Context, queuePinger health.Pinger) health.Status {
	checks := map[string]health.Status{
		"queue": health.PingCheck(ctx, "queue", queuePinger),
		"ping":  health.BinaryCheck("ping"),
	}
	if p, ok := e.store.(health.Pinger); ok {
		checks["store"] = health.PingCheck(ctx, "store", p)
	}
	return health.Combine(checks)
}

// Wait blocks until all in-process scan runs have finished, for graceful
// shutdown.
func (e *Engine) Wait() {
	e.dispatcher.Wait()
}

// ownedScan loads a scan and verifies ownership. Missing and foreign scans
// produce the same not-found error.
func (e *Engine) ownedScan(ctx context.Context, op, ownerID, scanID string) (*scan.Scan, error) {
	sc, err := e.store.GetScan(ctx, scanID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NewNotFoundError(op, ErrScanNotFound)
		}
		return nil, NewStorageError(op, err)
	}
	if sc.OwnerID != ownerID {
		e.logger.Warn("cross-owner scan access denied", "op", op, "owner_id", ownerID, "scan_id", scanID)
		return nil, NewNotFoundError(op, ErrScanNotFound)
	}
	return sc, nil
}

// ownedAsset loads an asset and verifies ownership.
func (e *Engine) ownedAsset(ctx context.Context, op, ownerID, assetID string) (*asset.Asset, error) {
	a, err := e.store.GetAsset(ctx, assetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NewNotFoundError(op, fmt.Errorf("%w: %s", ErrAssetNotFound, assetID))
		}
		return nil, NewStorageError(op, err)
	}
	if a.OwnerID != ownerID {
		e.logger.Warn("cross-owner asset access denied", "op", op, "owner_id", ownerID, "asset_id", assetID)
		return nil, NewNotFoundError(op, fmt.Errorf("%w: %s", ErrAssetNotFound, assetID))
	}
	return a, nil
}

// recordAudit appends an audit event best-effort.
func (e *Engine) recordAudit(ctx context.Context, event *audit.Event) {
	if err := e.store.AppendEvent(ctx, event); err != nil {
		e.logger.Warn("failed to record audit event", "action", event.Action, "error", err)
	}
}
