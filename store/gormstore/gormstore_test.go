package gormstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surfaceguard/engine/asset"
	"github.com/surfaceguard/engine/audit"
	"github.com/surfaceguard/engine/finding"
	"github.com/surfaceguard/engine/scan"
	"github.com/surfaceguard/engine/store"
)

// setupStore opens a fresh in-memory database per test. Each database gets
// a unique name so parallel tests never share state through the SQLite
// shared cache.
func setupStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	s, err := Open(dsn)
	require.NoError(t, err)
	return s
}

func seedScan(t *testing.T, s *Store, owner string) *scan.Scan {
	t.Helper()
	sc, err := scan.New(owner, []string{"asset-1"})
	require.NoError(t, err)
	require.NoError(t, s.CreateScan(context.Background(), sc))
	return sc
}

func TestAssetRoundTrip(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	a, err := asset.New("owner-1", asset.TypeURL, "https://example.com/login")
	require.NoError(t, err)
	require.NoError(t, s.CreateAsset(ctx, a))

	got, err := s.GetAsset(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Type, got.Type)
	assert.Equal(t, a.Value, got.Value)

	_, err = s.GetAsset(ctx, "no-such-asset")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.DeleteAsset(ctx, a.ID))
	assert.ErrorIs(t, s.DeleteAsset(ctx, a.ID), store.ErrNotFound)
}

func TestScanClaimIsExactlyOnce(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	sc := seedScan(t, s, "owner-1")

	require.NoError(t, s.MarkRunning(ctx, sc.ID, time.Now().UTC()))
	assert.ErrorIs(t, s.MarkRunning(ctx, sc.ID, time.Now().UTC()), store.ErrConflict)
	assert.ErrorIs(t, s.MarkRunning(ctx, "no-such-scan", time.Now()), store.ErrNotFound)

	got, err := s.GetScan(ctx, sc.ID)
	require.NoError(t, err)
	assert.Equal(t, scan.StatusRunning, got.Status)
	require.NotNil(t, got.StartedAt)
}

func TestScanResultsRoundTrip(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	sc := seedScan(t, s, "owner-1")

	require.NoError(t, s.MarkRunning(ctx, sc.ID, time.Now().UTC()))
	require.NoError(t, s.UpdateProgress(ctx, sc.ID, 66))

	counts := finding.Counts{Critical: 1, Medium: 2}
	require.NoError(t, s.SetResults(ctx, sc.ID, 61, counts, time.Now().UTC()))

	got, err := s.GetScan(ctx, sc.ID)
	require.NoError(t, err)
	assert.Equal(t, scan.StatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	require.NotNil(t, got.Score)
	assert.Equal(t, 61, *got.Score)
	assert.Equal(t, counts, got.SeverityCounts)
	assert.Equal(t, []string{"asset-1"}, got.AssetIDs)

	assert.ErrorIs(t, s.SetResults(ctx, sc.ID, 61, counts, time.Now()), store.ErrConflict)
	assert.ErrorIs(t, s.MarkFailed(ctx, sc.ID, time.Now()), store.ErrConflict)
}

func TestUpdateProgressAfterDelete(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	sc := seedScan(t, s, "owner-1")

	require.NoError(t, s.DeleteScan(ctx, sc.ID))
	assert.ErrorIs(t, s.UpdateProgress(ctx, sc.ID, 50), store.ErrNotFound)
	assert.ErrorIs(t, s.SetResults(ctx, sc.ID, 90, finding.Counts{}, time.Now()), store.ErrNotFound)
}

func TestFindingsReplaceAndCascade(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	sc := seedScan(t, s, "owner-1")

	first := []*finding.Finding{
		finding.New(sc.ID, "asset-1", "spf:missing", finding.SeverityHigh, "SPF record missing",
			map[string]any{"txt_records": []any{"v=dkim"}}, "Publish an SPF record"),
	}
	require.NoError(t, s.ReplaceFindings(ctx, sc.ID, first))

	exempt := finding.New(sc.ID, "asset-1", "dkim:error", finding.SeverityLow, "DKIM lookup failed", nil, "").
		MarkScoringExempt()
	require.NoError(t, s.ReplaceFindings(ctx, sc.ID, []*finding.Finding{exempt}))

	got, err := s.ListFindingsByScan(ctx, sc.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "dkim:error", got[0].CheckID)
	// The exemption marker survives the JSON column round-trip.
	assert.True(t, got[0].ScoringExempt())

	require.NoError(t, s.DeleteScan(ctx, sc.ID))
	left, err := s.ListFindingsByScan(ctx, sc.ID)
	require.NoError(t, err)
	assert.Empty(t, left)
	assert.ErrorIs(t, s.ReplaceFindings(ctx, sc.ID, first), store.ErrNotFound)
}

func TestListScansByOwner(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	older, err := scan.New("owner-1", []string{"a"})
	require.NoError(t, err)
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, s.CreateScan(ctx, older))
	newer := seedScan(t, s, "owner-1")
	seedScan(t, s, "owner-2")

	got, err := s.ListScansByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, newer.ID, got[0].ID)
	assert.Equal(t, older.ID, got[1].ID)
}

func TestUsageCounter(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	count, _, err := s.GetUsage(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	n, err := s.IncrementUsage(ctx, "user-1", "2025-03-01")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.IncrementUsage(ctx, "user-1", "2025-03-01")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// A new day resets the counter.
	n, err = s.IncrementUsage(ctx, "user-1", "2025-03-02")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAuditTrail(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	e1 := audit.NewEvent("user-1", audit.ActionStartScan, "scan", "scan-1", nil)
	e1.CreatedAt = time.Now().UTC().Add(-time.Minute)
	e2 := audit.NewEvent("user-1", audit.ActionDeleteScan, "scan", "scan-1", map[string]any{"reason": "cleanup"})

	require.NoError(t, s.AppendEvent(ctx, e1))
	require.NoError(t, s.AppendEvent(ctx, e2))

	got, err := s.ListEventsByActor(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, audit.ActionDeleteScan, got[0].Action)
	assert.Equal(t, "cleanup", got[0].Details["reason"])
}

func TestPing(t *testing.T) {
	s := setupStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}
