package score

import (
	"testing"

	"github.com/surfaceguard/engine/finding"
)

func mk(assetID string, sev finding.Severity) *finding.Finding {
	return finding.New("scan-1", assetID, "test:check", sev, "test", nil, "")
}

func TestFromFindings(t *testing.T) {
	tests := []struct {
		name       string
		findings   []*finding.Finding
		wantScore  int
		wantCounts finding.Counts
	}{
		{
			name:      "no findings is a perfect score",
			findings:  nil,
			wantScore: 100,
		},
		{
			name: "deductions accumulate",
			findings: []*finding.Finding{
				mk("a", finding.SeverityCritical),
				mk("a", finding.SeverityHigh),
				mk("a", finding.SeverityMedium),
				mk("a", finding.SeverityLow),
			},
			wantScore:  50,
			wantCounts: finding.Counts{Critical: 1, High: 1, Medium: 1, Low: 1},
		},
		{
			name: "score clamps at zero",
			findings: []*finding.Finding{
				mk("a", finding.SeverityCritical),
				mk("a", finding.SeverityCritical),
				mk("a", finding.SeverityCritical),
				mk("a", finding.SeverityCritical),
				mk("a", finding.SeverityCritical),
			},
			wantScore:  0,
			wantCounts: finding.Counts{Critical: 5},
		},
		{
			name: "exempt findings count but do not deduct",
			findings: []*finding.Finding{
				mk("a", finding.SeverityLow).MarkScoringExempt(),
				mk("a", finding.SeverityHigh),
			},
			wantScore:  85,
			wantCounts: finding.Counts{High: 1, Low: 1},
		},
		{
			name: "invalid severity is ignored entirely",
			findings: []*finding.Finding{
				mk("a", finding.Severity("bogus")),
				mk("a", finding.SeverityMedium),
			},
			wantScore:  93,
			wantCounts: finding.Counts{Medium: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, counts := FromFindings(tt.findings)
			if score != tt.wantScore {
				t.Errorf("FromFindings() score = %d, want %d", score, tt.wantScore)
			}
			if counts != tt.wantCounts {
				t.Errorf("FromFindings() counts = %+v, want %+v", counts, tt.wantCounts)
			}
		})
	}
}

func TestForScanSingleAsset(t *testing.T) {
	findings := []*finding.Finding{
		mk("a", finding.SeverityCritical),
		mk("a", finding.SeverityCritical),
	}
	score, counts := ForScan([]string{"a"}, findings)
	if score != 50 {
		t.Errorf("ForScan() score = %d, want 50", score)
	}
	if counts.Critical != 2 {
		t.Errorf("ForScan() critical count = %d, want 2", counts.Critical)
	}
}

func TestForScanMultiAssetMean(t *testing.T) {
	// Asset a: one critical => 75. Asset b: clean => 100.
	// Mean 87.5 rounds to 88; a pooled score over the same findings
	// would have been 75.
	findings := []*finding.Finding{mk("a", finding.SeverityCritical)}

	score, counts := ForScan([]string{"a", "b"}, findings)
	if score != 88 {
		t.Errorf("ForScan() score = %d, want 88", score)
	}
	if counts.Critical != 1 {
		t.Errorf("ForScan() critical count = %d, want 1", counts.Critical)
	}

	pooled, _ := ForScan([]string{"a"}, findings)
	if pooled != 75 {
		t.Errorf("ForScan() single-asset score = %d, want 75", pooled)
	}
}

func TestForScanCountsMergeAcrossAssets(t *testing.T) {
	findings := []*finding.Finding{
		mk("a", finding.SeverityHigh),
		mk("b", finding.SeverityHigh),
		mk("b", finding.SeverityLow),
	}
	score, counts := ForScan([]string{"a", "b"}, findings)
	// a: 85, b: 82 => mean 83.5 => 84
	if score != 84 {
		t.Errorf("ForScan() score = %d, want 84", score)
	}
	want := finding.Counts{High: 2, Low: 1}
	if counts != want {
		t.Errorf("ForScan() counts = %+v, want %+v", counts, want)
	}
}

func TestForScanCleanMultiAsset(t *testing.T) {
	score, counts := ForScan([]string{"a", "b", "c"}, nil)
	if score != 100 {
		t.Errorf("ForScan() score = %d, want 100", score)
	}
	if counts.Total() != 0 {
		t.Errorf("ForScan() counts total = %d, want 0", counts.Total())
	}
}
