// Package quota implements the per-user daily gate guarding calls to the
// rate-limited external breach lookup.
package quota

import (
	"context"
	"sync"
	"time"

	"github.com/surfaceguard/engine/store"
)

// DayLayout is the UTC day format used for usage dates.
const DayLayout = "2006-01-02"

// DefaultDailyLimit is the breach lookups allowed per user per UTC day
// when no limit is configured.
const DefaultDailyLimit = 2

// Usage reports a user's current quota consumption.
type Usage struct {
	Count int    `json:"count"`
	Limit int    `json:"limit"`
	Date  string `json:"date"`
}

// Gate admits or denies quota-limited lookups. The counter resets whenever
// the stored date differs from the current UTC day. A denied call never
// increments the counter, and denial is not an error: the caller simply
// skips the lookup.
type Gate struct {
	usage store.UsageStore
	limit int
	now   func() time.Time

	// Serializes increment-then-compare for callers in this process so two
	// concurrent scans for the same user cannot both pass the gate past
	// the limit. Cross-process safety is the usage store's job.
	mu sync.Mutex
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithNow overrides the gate's clock. Used by tests to cross day
// boundaries.
func WithNow(now func() time.Time) GateOption {
	return func(g *Gate) {
		g.now = now
	}
}

// NewGate creates a Gate over the given usage store. A non-positive limit
// falls back to DefaultDailyLimit.
func NewGate(usage store.UsageStore, limit int, opts ...GateOption) *Gate {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	g := &Gate{
		usage: usage,
		limit: limit,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Limit returns the configured daily ceiling.
func (g *Gate) Limit() int {
	return g.limit
}

// Admit reports whether the user may perform one more lookup today,
// consuming one unit of quota when admitted. Once the counter reaches the
// daily ceiling, Admit returns false without incrementing further.
func (g *Gate) Admit(ctx context.Context, userID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	day := g.today()
	count, date, err := g.usage.GetUsage(ctx, userID)
	if err != nil {
		return false, err
	}
	if date != day {
		count = 0
	}
	if count >= g.limit {
		return false, nil
	}

	newCount, err := g.usage.IncrementUsage(ctx, userID, day)
	if err != nil {
		return false, err
	}
	// A concurrent caller in another process may have raced us past the
	// ceiling between read and increment. Treat the overshoot as denied;
	// later calls deny on the read path.
	if newCount > g.limit {
		return false, nil
	}
	return true, nil
}

// CurrentUsage returns the user's consumption for the current UTC day.
func (g *Gate) CurrentUsage(ctx context.Context, userID string) (Usage, error) {
	day := g.today()
	count, date, err := g.usage.GetUsage(ctx, userID)
	if err != nil {
		return Usage{}, err
	}
	if date != day {
		count = 0
	}
	return Usage{Count: count, Limit: g.limit, Date: day}, nil
}

func (g *Gate) today() string {
	return g.now().UTC().Format(DayLayout)
}
