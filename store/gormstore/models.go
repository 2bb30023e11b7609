package gormstore

import (
	"time"

	"gorm.io/datatypes"

	"github.com/surfaceguard/engine/asset"
	"github.com/surfaceguard/engine/audit"
	"github.com/surfaceguard/engine/finding"
	"github.com/surfaceguard/engine/scan"
)

type assetRecord struct {
	ID        string `gorm:"primaryKey"`
	OwnerID   string `gorm:"index"`
	Type      string
	Value     string
	CreatedAt time.Time
}

func (assetRecord) TableName() string { return "assets" }

func (r *assetRecord) toAsset() *asset.Asset {
	return &asset.Asset{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		Type:      asset.Type(r.Type),
		Value:     r.Value,
		CreatedAt: r.CreatedAt,
	}
}

func newAssetRecord(a *asset.Asset) *assetRecord {
	return &assetRecord{
		ID:        a.ID,
		OwnerID:   a.OwnerID,
		Type:      a.Type.String(),
		Value:     a.Value,
		CreatedAt: a.CreatedAt,
	}
}

type scanRecord struct {
	ID       string `gorm:"primaryKey"`
	OwnerID  string `gorm:"index"`
	AssetIDs datatypes.JSONSlice[string]
	Status   string
	Progress int
	Score    *int

	CriticalCount int
	HighCount     int
	MediumCount   int
	LowCount      int

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	// Findings are owned by the scan: deleting the scan cascades.
	Findings []findingRecord `gorm:"foreignKey:ScanID;constraint:OnDelete:CASCADE"`
}

func (scanRecord) TableName() string { return "scans" }

func (r *scanRecord) toScan() *scan.Scan {
	return &scan.Scan{
		ID:       r.ID,
		OwnerID:  r.OwnerID,
		AssetIDs: append([]string(nil), r.AssetIDs...),
		Status:   scan.Status(r.Status),
		Progress: r.Progress,
		Score:    r.Score,
		SeverityCounts: finding.Counts{
			Critical: r.CriticalCount,
			High:     r.HighCount,
			Medium:   r.MediumCount,
			Low:      r.LowCount,
		},
		CreatedAt:   r.CreatedAt,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
	}
}

func newScanRecord(s *scan.Scan) *scanRecord {
	return &scanRecord{
		ID:            s.ID,
		OwnerID:       s.OwnerID,
		AssetIDs:      datatypes.NewJSONSlice(s.AssetIDs),
		Status:        string(s.Status),
		Progress:      s.Progress,
		Score:         s.Score,
		CriticalCount: s.SeverityCounts.Critical,
		HighCount:     s.SeverityCounts.High,
		MediumCount:   s.SeverityCounts.Medium,
		LowCount:      s.SeverityCounts.Low,
		CreatedAt:     s.CreatedAt,
		StartedAt:     s.StartedAt,
		CompletedAt:   s.CompletedAt,
	}
}

type findingRecord struct {
	ID             string `gorm:"primaryKey"`
	ScanID         string `gorm:"index"`
	AssetID        string `gorm:"index"`
	CheckID        string
	Severity       string
	Title          string
	Evidence       datatypes.JSONMap
	Recommendation string
	CreatedAt      time.Time
}

func (findingRecord) TableName() string { return "findings" }

func (r *findingRecord) toFinding() *finding.Finding {
	return &finding.Finding{
		ID:             r.ID,
		ScanID:         r.ScanID,
		AssetID:        r.AssetID,
		CheckID:        r.CheckID,
		Severity:       finding.Severity(r.Severity),
		Title:          r.Title,
		Evidence:       map[string]any(r.Evidence),
		Recommendation: r.Recommendation,
		CreatedAt:      r.CreatedAt,
	}
}

func newFindingRecord(f *finding.Finding) *findingRecord {
	return &findingRecord{
		ID:             f.ID,
		ScanID:         f.ScanID,
		AssetID:        f.AssetID,
		CheckID:        f.CheckID,
		Severity:       f.Severity.String(),
		Title:          f.Title,
		Evidence:       datatypes.JSONMap(f.Evidence),
		Recommendation: f.Recommendation,
		CreatedAt:      f.CreatedAt,
	}
}

type usageRecord struct {
	UserID string `gorm:"primaryKey"`
	Day    string
	Count  int
}

func (usageRecord) TableName() string { return "lookup_usage" }

type auditRecord struct {
	ID         string `gorm:"primaryKey"`
	ActorID    string `gorm:"index"`
	Action     string
	TargetType string
	TargetID   string
	Details    datatypes.JSONMap
	CreatedAt  time.Time
}

func (auditRecord) TableName() string { return "audit_events" }

func (r *auditRecord) toEvent() *audit.Event {
	return &audit.Event{
		ID:         r.ID,
		ActorID:    r.ActorID,
		Action:     r.Action,
		TargetType: r.TargetType,
		TargetID:   r.TargetID,
		Details:    map[string]any(r.Details),
		CreatedAt:  r.CreatedAt,
	}
}
