// Package driver implements the scan execution procedure: claim the scan,
// run every catalog check against every resolvable asset, persist the
// findings atomically, score the result, and complete the scan. The same
// procedure runs behind a queue worker and behind the in-process dispatch
// fallback, so both paths behave identically.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/surfaceguard/engine/audit"
	"github.com/surfaceguard/engine/check"
	"github.com/surfaceguard/engine/finding"
	"github.com/surfaceguard/engine/scan"
	"github.com/surfaceguard/engine/score"
	"github.com/surfaceguard/engine/store"
	"github.com/surfaceguard/engine/telemetry"
)

// Options configures a Driver.
type Options struct {
	// Store is the persistence layer for scans, assets, and findings.
	Store store.Store

	// Catalog supplies the per-type check lists.
	Catalog *check.Catalog

	// Logger records run progress. Defaults to slog.Default.
	Logger *slog.Logger

	// Tracer records one span per run and one per check. Defaults to a
	// noop tracer.
	Tracer trace.Tracer

	// Meter records run counters. Defaults to a noop meter.
	Meter metric.Meter

	// Now supplies timestamps, overridable in tests. Defaults to
	// time.Now.
	Now func() time.Time
}

// Driver executes scans.
type Driver struct {
	store   store.Store
	catalog *check.Catalog
	logger  *slog.Logger
	tracer  trace.Tracer
	now     func() time.Time

	runsStarted   metric.Int64Counter
	runsCompleted metric.Int64Counter
	runsFailed    metric.Int64Counter
	findingsTotal metric.Int64Counter
}

// New creates a Driver.
func New(opts Options) (*Driver, error) {
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	if opts.Catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = telemetry.NoopTracer()
	}
	if opts.Meter == nil {
		opts.Meter = telemetry.NoopMeter()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	d := &Driver{
		store:   opts.Store,
		catalog: opts.Catalog,
		logger:  opts.Logger,
		tracer:  opts.Tracer,
		now:     opts.Now,
	}

	var err error
	if d.runsStarted, err = opts.Meter.Int64Counter("scan.runs.started"); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if d.runsCompleted, err = opts.Meter.Int64Counter("scan.runs.completed"); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if d.runsFailed, err = opts.Meter.Int64Counter("scan.runs.failed"); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if d.findingsTotal, err = opts.Meter.Int64Counter("scan.findings.recorded"); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}

	return d, nil
}

// Run executes the scan with the given id to a terminal state.
//
// The run is exactly-once per scan: the queued-to-running transition is a
// conditional update, and a second invocation for the same scan finds the
// claim already taken and returns nil without touching anything. A scan
// deleted mid-run is detected on the next write and aborted quietly.
// Any other failure, including a panicking check, marks the scan failed.
func (d *Driver) Run(ctx context.Context, scanID string) (err error) {
	ctx, span := d.tracer.Start(ctx, "scan.run",
		trace.WithAttributes(attribute.String("scan.id", scanID)))
	defer span.End()

	sc, err := d.store.GetScan(ctx, scanID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			d.logger.Info("scan vanished before run, skipping", "scan_id", scanID)
			return nil
		}
		return fmt.Errorf("failed to load scan %s: %w", scanID, err)
	}

	startedAt := d.now().UTC()
	if err := d.store.MarkRunning(ctx, scanID, startedAt); err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			d.logger.Info("scan already claimed, skipping", "scan_id", scanID, "status", sc.Status)
			return nil
		case errors.Is(err, store.ErrNotFound):
			d.logger.Info("scan vanished before run, skipping", "scan_id", scanID)
			return nil
		default:
			return fmt.Errorf("failed to claim scan %s: %w", scanID, err)
		}
	}

	d.runsStarted.Add(ctx, 1)
	d.logger.Info("scan started", "scan_id", scanID, "owner_id", sc.OwnerID, "assets", len(sc.AssetIDs))

	// A panicking check must not leave the scan stuck in running. The
	// failure write uses a detached context so cancellation cannot block
	// the cleanup either.
	defer func() {
		if r := recover(); r != nil {
			span.SetStatus(codes.Error, "panic during scan run")
			d.failScan(context.WithoutCancel(ctx), scanID)
			err = fmt.Errorf("panic during scan %s: %v", scanID, r)
			d.logger.Error("scan panicked", "scan_id", scanID, "panic", r)
		}
	}()

	findings, aborted, runErr := d.runChecks(ctx, sc)
	if runErr != nil {
		d.failScan(context.WithoutCancel(ctx), scanID)
		span.SetStatus(codes.Error, runErr.Error())
		return runErr
	}
	if aborted {
		d.logger.Info("scan deleted mid-run, aborting", "scan_id", scanID)
		return nil
	}

	if err := d.store.ReplaceFindings(ctx, scanID, findings); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			d.logger.Info("scan deleted mid-run, aborting", "scan_id", scanID)
			return nil
		}
		d.failScan(context.WithoutCancel(ctx), scanID)
		return fmt.Errorf("failed to record findings for scan %s: %w", scanID, err)
	}

	scoreValue, counts := score.ForScan(sc.AssetIDs, findings)
	completedAt := d.now().UTC()
	if err := d.store.SetResults(ctx, scanID, scoreValue, counts, completedAt); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			d.logger.Info("scan deleted mid-run, aborting", "scan_id", scanID)
			return nil
		}
		d.failScan(context.WithoutCancel(ctx), scanID)
		return fmt.Errorf("failed to complete scan %s: %w", scanID, err)
	}

	d.runsCompleted.Add(ctx, 1)
	d.findingsTotal.Add(ctx, int64(len(findings)))
	span.SetAttributes(
		attribute.Int("scan.score", scoreValue),
		attribute.Int("scan.findings", len(findings)),
	)

	d.recordAudit(ctx, sc, scoreValue, len(findings), completedAt.Sub(startedAt))

	d.logger.Info("scan completed",
		"scan_id", scanID,
		"score", scoreValue,
		"findings", len(findings),
		"duration", completedAt.Sub(startedAt))
	return nil
}

// runChecks walks every asset and its catalog checks, ticking progress
// after each check. The returned aborted flag is true when a progress
// write reveals the scan was deleted.
func (d *Driver) runChecks(ctx context.Context, sc *scan.Scan) ([]*finding.Finding, bool, error) {
	type resolved struct {
		id    string
		typ   string
		value string
	}

	// Resolve assets first so the progress total counts only runnable
	// checks. Assets deleted since the scan was queued are skipped.
	total := 0
	var targets []resolved
	var checkLists [][]check.Check
	for _, assetID := range sc.AssetIDs {
		a, err := d.store.GetAsset(ctx, assetID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				d.logger.Warn("asset missing, skipping", "scan_id", sc.ID, "asset_id", assetID)
				continue
			}
			return nil, false, fmt.Errorf("failed to load asset %s: %w", assetID, err)
		}
		checks := d.catalog.For(a.Type)
		if len(checks) == 0 {
			continue
		}
		targets = append(targets, resolved{id: a.ID, typ: a.Type.String(), value: a.Value})
		checkLists = append(checkLists, checks)
		total += len(checks)
	}

	tracker := scan.NewTracker(total)
	var findings []*finding.Finding

	for i, tgt := range targets {
		target := check.Target{
			ScanID:  sc.ID,
			OwnerID: sc.OwnerID,
			AssetID: tgt.id,
			Value:   tgt.value,
		}
		for _, c := range checkLists[i] {
			results := d.runOneCheck(ctx, c, target, tgt.typ)
			findings = append(findings, results...)

			tracker.Tick()
			if err := d.store.UpdateProgress(ctx, sc.ID, tracker.Percent()); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return nil, true, nil
				}
				return nil, false, fmt.Errorf("failed to update progress for scan %s: %w", sc.ID, err)
			}
		}
	}

	return findings, false, nil
}

// runOneCheck executes a single check under its own span. Checks report
// problems as findings, not errors, so the span only carries counts.
func (d *Driver) runOneCheck(ctx context.Context, c check.Check, target check.Target, assetType string) []*finding.Finding {
	ctx, span := d.tracer.Start(ctx, "scan.check",
		trace.WithAttributes(
			attribute.String("check.id", c.ID),
			attribute.String("asset.id", target.AssetID),
			attribute.String("asset.type", assetType),
		))
	defer span.End()

	start := d.now()
	results := c.Run(ctx, target)
	span.SetAttributes(attribute.Int("check.findings", len(results)))

	d.logger.Debug("check finished",
		"scan_id", target.ScanID,
		"check", c.ID,
		"asset_id", target.AssetID,
		"findings", len(results),
		"duration", d.now().Sub(start))
	return results
}

// failScan marks the scan failed, tolerating the races a failure path can
// lose: an already-terminal scan or a deleted one is left alone.
func (d *Driver) failScan(ctx context.Context, scanID string) {
	d.runsFailed.Add(ctx, 1)
	err := d.store.MarkFailed(ctx, scanID, d.now().UTC())
	if err != nil && !errors.Is(err, store.ErrConflict) && !errors.Is(err, store.ErrNotFound) {
		d.logger.Error("failed to mark scan failed", "scan_id", scanID, "error", err)
	}
}

// recordAudit appends the completion event. Auditing is best-effort: a
// failed append is logged and the completed scan stands.
func (d *Driver) recordAudit(ctx context.Context, sc *scan.Scan, scoreValue, findingCount int, duration time.Duration) {
	event := audit.NewEvent(sc.OwnerID, audit.ActionCompleteScan, "scan", sc.ID, map[string]any{
		"score":       scoreValue,
		"findings":    findingCount,
		"duration_ms": duration.Milliseconds(),
	})
	if err := d.store.AppendEvent(ctx, event); err != nil {
		d.logger.Warn("failed to record audit event", "scan_id", sc.ID, "error", err)
	}
}
