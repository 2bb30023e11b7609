package scan

import "testing"

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusQueued, StatusRunning, true},
		{StatusRunning, StatusCompleted, true},
		{StatusRunning, StatusFailed, true},
		{StatusQueued, StatusCompleted, false},
		{StatusQueued, StatusFailed, false},
		{StatusCompleted, StatusRunning, false},
		{StatusFailed, StatusRunning, false},
		{StatusCompleted, StatusFailed, false},
		{StatusRunning, StatusQueued, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestStatusIsTerminal(t *testing.T) {
	if StatusQueued.IsTerminal() || StatusRunning.IsTerminal() {
		t.Error("queued/running reported terminal")
	}
	if !StatusCompleted.IsTerminal() || !StatusFailed.IsTerminal() {
		t.Error("completed/failed not reported terminal")
	}
}

func TestNewScan(t *testing.T) {
	sc, err := New("owner-1", []string{"a", "b"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if sc.ID == "" {
		t.Error("New() ID is empty")
	}
	if sc.Status != StatusQueued {
		t.Errorf("New() Status = %s, want %s", sc.Status, StatusQueued)
	}
	if sc.Progress != 0 {
		t.Errorf("New() Progress = %d, want 0", sc.Progress)
	}
	if sc.Score != nil {
		t.Error("New() Score set before completion")
	}
}

func TestNewScanRequiresAssets(t *testing.T) {
	if _, err := New("owner-1", nil); err == nil {
		t.Error("New() with no assets error = nil, want error")
	}
	if _, err := New("", []string{"a"}); err == nil {
		t.Error("New() with no owner error = nil, want error")
	}
}

func TestTrackerPercentCeiling(t *testing.T) {
	tr := NewTracker(3)
	if got := tr.Percent(); got != 0 {
		t.Errorf("Percent() before ticks = %d, want 0", got)
	}

	tr.Tick()
	if got := tr.Percent(); got != 33 {
		t.Errorf("Percent() after 1/3 = %d, want 33", got)
	}
	tr.Tick()
	if got := tr.Percent(); got != 66 {
		t.Errorf("Percent() after 2/3 = %d, want 66", got)
	}
	tr.Tick()
	if got := tr.Percent(); got != ProgressCeiling {
		t.Errorf("Percent() after 3/3 = %d, want %d (only completion reports 100)", got, ProgressCeiling)
	}

	// Over-ticking stays pinned at the ceiling.
	tr.Tick()
	if got := tr.Percent(); got != ProgressCeiling {
		t.Errorf("Percent() after over-tick = %d, want %d", got, ProgressCeiling)
	}
}

func TestTrackerZeroTotal(t *testing.T) {
	tr := NewTracker(0)
	if got := tr.Percent(); got != 0 {
		t.Errorf("Percent() with zero total = %d, want 0", got)
	}
	tr.Tick()
	if got := tr.Percent(); got != 0 {
		t.Errorf("Percent() after tick with zero total = %d, want 0", got)
	}
}
