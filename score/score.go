// Package score converts finding lists into a 0-100 risk score with
// per-severity counts, including the fairness rule for multi-asset scans.
package score

import (
	"math"

	"github.com/surfaceguard/engine/finding"
)

// FromFindings scores a pooled finding list: start at 100, subtract each
// non-exempt finding's severity deduction, clamp to [0,100]. Exempt
// findings increment their severity count but never change the score.
func FromFindings(findings []*finding.Finding) (int, finding.Counts) {
	score := 100
	var counts finding.Counts
	for _, f := range findings {
		if !f.Severity.IsValid() {
			continue
		}
		counts.Add(f.Severity)
		if f.ScoringExempt() {
			continue
		}
		score -= f.Severity.Deduction()
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, counts
}

// ForScan scores a whole scan. Single-asset scans use the pooled algorithm
// directly. Multi-asset scans partition findings by asset id, score each
// partition independently, and report the rounded arithmetic mean of the
// per-asset scores; an asset with no findings contributes 100. This keeps
// one compromised asset from dragging a clean asset's contribution below
// what its own findings justify, and keeps many clean assets from diluting
// a single bad asset's signal. Severity counts are summed across assets
// either way.
func ForScan(assetIDs []string, findings []*finding.Finding) (int, finding.Counts) {
	if len(assetIDs) <= 1 {
		return FromFindings(findings)
	}

	byAsset := make(map[string][]*finding.Finding, len(assetIDs))
	for _, f := range findings {
		byAsset[f.AssetID] = append(byAsset[f.AssetID], f)
	}

	var counts finding.Counts
	sum := 0
	for _, id := range assetIDs {
		assetScore, assetCounts := FromFindings(byAsset[id])
		sum += assetScore
		counts.Merge(assetCounts)
	}

	mean := int(math.Round(float64(sum) / float64(len(assetIDs))))
	return mean, counts
}
