package scan

// ProgressCeiling is the highest percentage the tracker reports. Progress
// snaps to 100 only on the final state write, so an external poller can
// never observe "100% but not completed".
const ProgressCeiling = 99

// Tracker counts completed check steps for one driver pass and converts
// them to a capped percentage. Checks within a scan run sequentially, so
// the tracker needs no synchronization.
type Tracker struct {
	total int
	done  int
}

// NewTracker creates a Tracker for a run of total steps.
func NewTracker(total int) *Tracker {
	return &Tracker{total: total}
}

// Tick records one completed check step.
func (t *Tracker) Tick() {
	t.done++
}

// Done returns the number of completed steps.
func (t *Tracker) Done() int {
	return t.done
}

// Percent returns the current completion percentage, monotonically
// increasing and capped at ProgressCeiling.
func (t *Tracker) Percent() int {
	if t.total <= 0 {
		return 0
	}
	pct := 100 * t.done / t.total
	if pct > ProgressCeiling {
		pct = ProgressCeiling
	}
	return pct
}
