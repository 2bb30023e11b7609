package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surfaceguard/engine/asset"
	"github.com/surfaceguard/engine/audit"
	"github.com/surfaceguard/engine/check"
	"github.com/surfaceguard/engine/finding"
	"github.com/surfaceguard/engine/quota"
	"github.com/surfaceguard/engine/queue"
	"github.com/surfaceguard/engine/scan"
	"github.com/surfaceguard/engine/store/memstore"
)

// newTestEngine builds an engine over a fresh memstore with a deterministic
// catalog: one domain check emitting a single high finding.
func newTestEngine(t *testing.T, opts ...Option) (*Engine, *memstore.Store) {
	t.Helper()

	st := memstore.New()
	catalog := check.New(map[asset.Type][]check.Check{
		asset.TypeDomain: {
			{
				ID: "stub",
				Run: func(_ context.Context, tgt check.Target) []*finding.Finding {
					return []*finding.Finding{
						finding.New(tgt.ScanID, tgt.AssetID, "stub:hit", finding.SeverityHigh, "stub", nil, ""),
					}
				},
			},
		},
	})

	opts = append([]Option{WithCatalog(catalog)}, opts...)
	eng, err := New(st, opts...)
	require.NoError(t, err)
	return eng, st
}

func addDomain(t *testing.T, eng *Engine, ownerID, value string) *asset.Asset {
	t.Helper()
	a, err := eng.AddAsset(context.Background(), ownerID, asset.TypeDomain, value)
	require.NoError(t, err)
	return a
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)

	var engErr *Error
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, KindConfiguration, engErr.Kind)
}

func TestAddAssetRejectsInvalidValue(t *testing.T) {
	eng, _ := newTestEngine(t)

	_, err := eng.AddAsset(context.Background(), "owner-1", asset.TypeEmail, "not-an-email")
	require.Error(t, err)

	var engErr *Error
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, KindValidation, engErr.Kind)
}

func TestListAssets(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	addDomain(t, eng, "owner-1", "a.example.com")
	addDomain(t, eng, "owner-1", "b.example.com")
	addDomain(t, eng, "owner-2", "other.example.com")

	assets, err := eng.ListAssets(ctx, "owner-1")
	require.NoError(t, err)
	assert.Len(t, assets, 2)
}

func TestRemoveAsset(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	a := addDomain(t, eng, "owner-1", "example.com")

	require.NoError(t, eng.RemoveAsset(ctx, "owner-1", a.ID))

	assets, err := eng.ListAssets(ctx, "owner-1")
	require.NoError(t, err)
	assert.Empty(t, assets)
}

func TestRemoveAssetIsOwnerScoped(t *testing.T) {
	eng, _ := newTestEngine(t)
	a := addDomain(t, eng, "owner-1", "example.com")

	err := eng.RemoveAsset(context.Background(), "owner-2", a.ID)
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestStartScanRunsToCompletion(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	a := addDomain(t, eng, "owner-1", "example.com")

	sc, err := eng.StartScan(ctx, "owner-1", []string{a.ID})
	require.NoError(t, err)
	assert.Equal(t, scan.StatusQueued, sc.Status)

	// No backend is configured, so the scan runs in-process.
	eng.Wait()

	got, err := eng.GetScan(ctx, "owner-1", sc.ID)
	require.NoError(t, err)
	assert.Equal(t, scan.StatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	require.NotNil(t, got.Score)
	assert.Equal(t, 85, *got.Score)
	assert.Equal(t, 1, got.SeverityCounts.High)

	findings, err := eng.GetFindings(ctx, "owner-1", sc.ID)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "stub:hit", findings[0].CheckID)
}

func TestStartScanRejectsUnknownAsset(t *testing.T) {
	eng, _ := newTestEngine(t)

	_, err := eng.StartScan(context.Background(), "owner-1", []string{"no-such-asset"})
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestStartScanRejectsForeignAsset(t *testing.T) {
	eng, _ := newTestEngine(t)
	a := addDomain(t, eng, "owner-2", "example.com")

	_, err := eng.StartScan(context.Background(), "owner-1", []string{a.ID})
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestStartScanRejectsEmptyAssetList(t *testing.T) {
	eng, _ := newTestEngine(t)

	_, err := eng.StartScan(context.Background(), "owner-1", nil)
	require.Error(t, err)

	var engErr *Error
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, KindValidation, engErr.Kind)
}

func TestStartScanUsesBackendWhenConfigured(t *testing.T) {
	backend := &captureBackend{}
	eng, _ := newTestEngine(t, WithBackend(backend))
	ctx := context.Background()
	a := addDomain(t, eng, "owner-1", "example.com")

	sc, err := eng.StartScan(ctx, "owner-1", []string{a.ID})
	require.NoError(t, err)
	eng.Wait()

	require.Len(t, backend.jobs, 1)
	assert.Equal(t, sc.ID, backend.jobs[0].ScanID)
	assert.Equal(t, "owner-1", backend.jobs[0].OwnerID)
	assert.NotEmpty(t, backend.jobs[0].JobID)

	// The scan stays queued until a worker picks the job up.
	got, err := eng.GetScan(ctx, "owner-1", sc.ID)
	require.NoError(t, err)
	assert.Equal(t, scan.StatusQueued, got.Status)
}

func TestGetScanIsOwnerScoped(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	a := addDomain(t, eng, "owner-1", "example.com")
	sc, err := eng.StartScan(ctx, "owner-1", []string{a.ID})
	require.NoError(t, err)
	eng.Wait()

	_, err = eng.GetScan(ctx, "owner-2", sc.ID)
	assert.ErrorIs(t, err, ErrScanNotFound)

	_, err = eng.GetScan(ctx, "owner-1", "no-such-scan")
	assert.ErrorIs(t, err, ErrScanNotFound)
}

func TestGetFindingsIsOwnerScoped(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	a := addDomain(t, eng, "owner-1", "example.com")
	sc, err := eng.StartScan(ctx, "owner-1", []string{a.ID})
	require.NoError(t, err)
	eng.Wait()

	_, err = eng.GetFindings(ctx, "owner-2", sc.ID)
	assert.ErrorIs(t, err, ErrScanNotFound)
}

func TestListScansNewestFirst(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	a := addDomain(t, eng, "owner-1", "example.com")

	first, err := eng.StartScan(ctx, "owner-1", []string{a.ID})
	require.NoError(t, err)
	second, err := eng.StartScan(ctx, "owner-1", []string{a.ID})
	require.NoError(t, err)
	eng.Wait()

	scans, err := eng.ListScans(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, scans, 2)
	assert.Equal(t, second.ID, scans[0].ID)
	assert.Equal(t, first.ID, scans[1].ID)
}

func TestDeleteScanRemovesFindings(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()
	a := addDomain(t, eng, "owner-1", "example.com")
	sc, err := eng.StartScan(ctx, "owner-1", []string{a.ID})
	require.NoError(t, err)
	eng.Wait()

	require.NoError(t, eng.DeleteScan(ctx, "owner-1", sc.ID))

	_, err = eng.GetScan(ctx, "owner-1", sc.ID)
	assert.ErrorIs(t, err, ErrScanNotFound)

	findings, err := st.ListFindingsByScan(ctx, sc.ID)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestDeleteScanIsOwnerScoped(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	a := addDomain(t, eng, "owner-1", "example.com")
	sc, err := eng.StartScan(ctx, "owner-1", []string{a.ID})
	require.NoError(t, err)
	eng.Wait()

	err = eng.DeleteScan(ctx, "owner-2", sc.ID)
	assert.ErrorIs(t, err, ErrScanNotFound)

	// Still visible to its owner.
	_, err = eng.GetScan(ctx, "owner-1", sc.ID)
	assert.NoError(t, err)
}

func TestAuditTrailRecordsLifecycle(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	a := addDomain(t, eng, "owner-1", "example.com")

	sc, err := eng.StartScan(ctx, "owner-1", []string{a.ID})
	require.NoError(t, err)
	eng.Wait()
	require.NoError(t, eng.DeleteScan(ctx, "owner-1", sc.ID))

	events, err := eng.AuditTrail(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, events, 3)

	actions := make([]string, 0, len(events))
	for _, ev := range events {
		actions = append(actions, ev.Action)
	}
	assert.ElementsMatch(t, []string{
		audit.ActionStartScan,
		audit.ActionCompleteScan,
		audit.ActionDeleteScan,
	}, actions)
}

func TestBreachLookupUsage(t *testing.T) {
	eng, _ := newTestEngine(t, WithQuotaLimit(5))

	usage, err := eng.BreachLookupUsage(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 5, usage.Limit)
	assert.Equal(t, 0, usage.Count)
}

func TestBreachLookupUsageDefaultsLimit(t *testing.T) {
	eng, _ := newTestEngine(t)

	usage, err := eng.BreachLookupUsage(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Equal(t, quota.DefaultDailyLimit, usage.Limit)
}

func TestWithClock(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	backend := &captureBackend{}
	eng, _ := newTestEngine(t, WithClock(func() time.Time { return now }), WithBackend(backend))
	ctx := context.Background()
	a := addDomain(t, eng, "owner-1", "example.com")

	_, err := eng.StartScan(ctx, "owner-1", []string{a.ID})
	require.NoError(t, err)
	eng.Wait()

	require.Len(t, backend.jobs, 1)
	assert.Equal(t, now.UnixMilli(), backend.jobs[0].SubmittedAt)
}

func TestErrorFormatting(t *testing.T) {
	err := NewNotFoundError("Engine.GetScan", ErrScanNotFound)
	assert.Contains(t, err.Error(), "Engine.GetScan")
	assert.Contains(t, err.Error(), KindNotFound)
	assert.True(t, errors.Is(err, ErrScanNotFound))
}

type captureBackend struct {
	jobs []queue.Job
}

func (b *captureBackend) Enqueue(_ context.Context, job queue.Job) error {
	b.jobs = append(b.jobs, job)
	return nil
}
