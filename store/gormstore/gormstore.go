// Package gormstore is the SQL implementation of the store interfaces,
// built on GORM with SQLite as the default driver.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/surfaceguard/engine/asset"
	"github.com/surfaceguard/engine/audit"
	"github.com/surfaceguard/engine/finding"
	"github.com/surfaceguard/engine/scan"
	"github.com/surfaceguard/engine/store"
)

// InMemoryDSN opens a private in-memory database, used by tests.
const InMemoryDSN = "file::memory:?cache=shared"

// Store implements store.Store on a GORM database handle.
type Store struct {
	db *gorm.DB
}

// Open connects to the SQLite database at dsn, enables foreign key
// enforcement, and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db = db.Exec("PRAGMA foreign_keys = ON")
	return NewWithDB(db)
}

// NewWithDB wraps an existing GORM handle, migrating the schema. Use this
// to run the store on a driver other than SQLite.
func NewWithDB(db *gorm.DB) (*Store, error) {
	models := []any{&assetRecord{}, &scanRecord{}, &findingRecord{}, &usageRecord{}, &auditRecord{}}
	if err := db.AutoMigrate(models...); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

var _ store.Store = (*Store)(nil)

// CreateAsset persists a new asset.
func (s *Store) CreateAsset(ctx context.Context, a *asset.Asset) error {
	if err := a.Validate(); err != nil {
		return store.ErrInvalidRecord
	}
	return s.db.WithContext(ctx).Create(newAssetRecord(a)).Error
}

// GetAsset returns the asset with the given id.
func (s *Store) GetAsset(ctx context.Context, id string) (*asset.Asset, error) {
	var rec assetRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return rec.toAsset(), nil
}

// ListAssetsByOwner returns all assets owned by the given user.
func (s *Store) ListAssetsByOwner(ctx context.Context, ownerID string) ([]*asset.Asset, error) {
	var recs []assetRecord
	if err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]*asset.Asset, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].toAsset())
	}
	return out, nil
}

// DeleteAsset removes an asset.
func (s *Store) DeleteAsset(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&assetRecord{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CreateScan persists a new scan.
func (s *Store) CreateScan(ctx context.Context, sc *scan.Scan) error {
	if sc.ID == "" || !sc.Status.IsValid() {
		return store.ErrInvalidRecord
	}
	return s.db.WithContext(ctx).Create(newScanRecord(sc)).Error
}

// GetScan returns the scan with the given id.
func (s *Store) GetScan(ctx context.Context, id string) (*scan.Scan, error) {
	var rec scanRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return rec.toScan(), nil
}

// ListScansByOwner returns the owner's scans, newest first.
func (s *Store) ListScansByOwner(ctx context.Context, ownerID string) ([]*scan.Scan, error) {
	var recs []scanRecord
	if err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]*scan.Scan, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].toScan())
	}
	return out, nil
}

// MarkRunning transitions a scan from queued to running. The conditional
// UPDATE makes the claim exactly-once: a second driver pass finds zero
// rows affected and gets ErrConflict.
func (s *Store) MarkRunning(ctx context.Context, id string, startedAt time.Time) error {
	res := s.db.WithContext(ctx).Model(&scanRecord{}).
		Where("id = ? AND status = ?", id, scan.StatusQueued).
		Updates(map[string]any{"status": string(scan.StatusRunning), "started_at": startedAt})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.conflictOrNotFound(ctx, id)
	}
	return nil
}

// MarkFailed transitions a scan into the failed state unless it is already
// terminal.
func (s *Store) MarkFailed(ctx context.Context, id string, completedAt time.Time) error {
	res := s.db.WithContext(ctx).Model(&scanRecord{}).
		Where("id = ? AND status IN ?", id, []string{string(scan.StatusQueued), string(scan.StatusRunning)}).
		Updates(map[string]any{"status": string(scan.StatusFailed), "completed_at": completedAt})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.conflictOrNotFound(ctx, id)
	}
	return nil
}

// UpdateProgress sets the scan's progress percentage. Zero rows affected
// means the scan was deleted out from under the run.
func (s *Store) UpdateProgress(ctx context.Context, id string, pct int) error {
	res := s.db.WithContext(ctx).Model(&scanRecord{}).
		Where("id = ?", id).
		Update("progress", pct)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SetResults records score and counts, forces progress to 100, and
// completes the scan.
func (s *Store) SetResults(ctx context.Context, id string, scoreValue int, counts finding.Counts, completedAt time.Time) error {
	res := s.db.WithContext(ctx).Model(&scanRecord{}).
		Where("id = ? AND status = ?", id, scan.StatusRunning).
		Updates(map[string]any{
			"status":         string(scan.StatusCompleted),
			"score":          scoreValue,
			"critical_count": counts.Critical,
			"high_count":     counts.High,
			"medium_count":   counts.Medium,
			"low_count":      counts.Low,
			"progress":       100,
			"completed_at":   completedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.conflictOrNotFound(ctx, id)
	}
	return nil
}

// DeleteScan removes a scan and, via the CASCADE constraint, its findings.
func (s *Store) DeleteScan(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Explicit delete as well: not every SQLite build enforces the
		// foreign key cascade.
		if err := tx.Delete(&findingRecord{}, "scan_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&scanRecord{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

// ReplaceFindings atomically replaces the finding set of a scan inside one
// transaction.
func (s *Store) ReplaceFindings(ctx context.Context, scanID string, findings []*finding.Finding) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&scanRecord{}).Where("id = ?", scanID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return store.ErrNotFound
		}
		if err := tx.Delete(&findingRecord{}, "scan_id = ?", scanID).Error; err != nil {
			return err
		}
		if len(findings) == 0 {
			return nil
		}
		recs := make([]*findingRecord, 0, len(findings))
		for _, f := range findings {
			recs = append(recs, newFindingRecord(f))
		}
		return tx.Create(recs).Error
	})
}

// ListFindingsByScan returns all findings recorded for a scan.
func (s *Store) ListFindingsByScan(ctx context.Context, scanID string) ([]*finding.Finding, error) {
	var recs []findingRecord
	if err := s.db.WithContext(ctx).Where("scan_id = ?", scanID).Order("created_at").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]*finding.Finding, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].toFinding())
	}
	return out, nil
}

// DeleteFindingsByScan removes all findings recorded for a scan.
func (s *Store) DeleteFindingsByScan(ctx context.Context, scanID string) error {
	return s.db.WithContext(ctx).Delete(&findingRecord{}, "scan_id = ?", scanID).Error
}

// GetUsage returns the user's current (count, date) pair.
func (s *Store) GetUsage(ctx context.Context, userID string) (int, string, error) {
	var rec usageRecord
	if err := s.db.WithContext(ctx).First(&rec, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, "", nil
		}
		return 0, "", err
	}
	return rec.Count, rec.Day, nil
}

// IncrementUsage increments the user's counter for the given day inside a
// transaction, resetting first when the stored day differs.
func (s *Store) IncrementUsage(ctx context.Context, userID, day string) (int, error) {
	var newCount int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec usageRecord
		err := tx.First(&rec, "user_id = ?", userID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			rec = usageRecord{UserID: userID}
		case err != nil:
			return err
		}
		if rec.Day != day {
			rec.Day = day
			rec.Count = 0
		}
		rec.Count++
		newCount = rec.Count
		return tx.Save(&rec).Error
	})
	if err != nil {
		return 0, err
	}
	return newCount, nil
}

// AppendEvent persists an audit event.
func (s *Store) AppendEvent(ctx context.Context, e *audit.Event) error {
	rec := &auditRecord{
		ID:         e.ID,
		ActorID:    e.ActorID,
		Action:     e.Action,
		TargetType: e.TargetType,
		TargetID:   e.TargetID,
		Details:    e.Details,
		CreatedAt:  e.CreatedAt,
	}
	return s.db.WithContext(ctx).Create(rec).Error
}

// ListEventsByActor returns the actor's events, newest first.
func (s *Store) ListEventsByActor(ctx context.Context, actorID string) ([]*audit.Event, error) {
	var recs []auditRecord
	if err := s.db.WithContext(ctx).Where("actor_id = ?", actorID).Order("created_at DESC").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]*audit.Event, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].toEvent())
	}
	return out, nil
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	db, err := s.db.WithContext(ctx).DB()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

func (s *Store) conflictOrNotFound(ctx context.Context, id string) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&scanRecord{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return store.ErrConflict
}
