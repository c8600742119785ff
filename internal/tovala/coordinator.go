package tovala

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	bridge "tovala_bridge"
	"tovala_bridge/internal/logger"
)

// DefaultPollInterval is the refresh cadence when none is configured.
const DefaultPollInterval = 10 * time.Second

// Oven states as reported upstream.
const (
	StateIdle    = "idle"
	StateCooking = "cooking"
	StateUnknown = "unknown"
)

// ovenAPI is the slice of the client the coordinator depends on.
type ovenAPI interface {
	OvenStatus(ctx context.Context, ovenID string) (map[string]any, error)
	MealDetails(ctx context.Context, mealID string) *bridge.MealDetails
}

// TimerFinished is emitted exactly once when the remaining cooking time
// crosses from positive to zero between two consecutive polls.
type TimerFinished struct {
	OvenID string
	Status map[string]any
}

// Coordinator runs the fixed-cadence refresh that turns one status call into
// a normalized snapshot, maintaining the meal cache and the timer-edge
// baseline across cycles. Readers get immutable snapshots taken at the last
// successful cycle boundary.
type Coordinator struct {
	api      ovenAPI
	ovenID   string
	interval time.Duration
	notify   func(TimerFinished)
	log      *logger.Logger
	now      func() time.Time

	// cycleMu guarantees two refresh cycles never run concurrently.
	cycleMu       sync.Mutex
	lastRemaining int    // edge-detection baseline; -1 before the first cycle
	lastMealKey   string // meal id or raw barcode of the cache entry
	cachedMeal    *bridge.MealDetails

	mu       sync.RWMutex
	snapshot bridge.OvenSnapshot
	lastOK   bool

	refreshCh chan struct{}
}

// NewCoordinator builds a coordinator for one oven. notify may be nil.
func NewCoordinator(api ovenAPI, ovenID string, interval time.Duration, notify func(TimerFinished), log *logger.Logger) *Coordinator {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Coordinator{
		api:           api,
		ovenID:        ovenID,
		interval:      interval,
		notify:        notify,
		log:           log,
		now:           time.Now,
		lastRemaining: -1,
		refreshCh:     make(chan struct{}, 1),
	}
}

// OvenID returns the monitored oven id (may be empty before discovery).
func (c *Coordinator) OvenID() string { return c.ovenID }

// Snapshot returns the last known-good snapshot and whether the most recent
// refresh cycle succeeded.
func (c *Coordinator) Snapshot() (bridge.OvenSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot, c.lastOK
}

// RequestRefresh schedules an out-of-band refresh. Requests coalesce: one
// pending refresh at most.
func (c *Coordinator) RequestRefresh() {
	select {
	case c.refreshCh <- struct{}{}:
	default:
	}
}

// Run ticks at the configured interval until ctx is canceled, also draining
// out-of-band refresh requests. Cycles run on this goroutine, so ticks never
// stack.
func (c *Coordinator) Run(ctx context.Context) {
	t := time.NewTicker(c.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		case <-c.refreshCh:
		}
		if err := c.Refresh(ctx); err != nil {
			c.log.Warnw("refresh cycle failed", "err", err)
		}
	}
}

// Refresh executes one poll cycle. On a status-call failure the coordinator
// marks itself unavailable and keeps serving the previous snapshot; the meal
// cache is never cleared by a transient failure.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	if c.ovenID == "" {
		c.log.Warnw("no oven id configured yet")
		c.setResult(bridge.OvenSnapshot{UpdatedAt: c.now().UTC()})
		return nil
	}

	status, err := c.api.OvenStatus(ctx, c.ovenID)
	if err != nil {
		c.setFailed()
		return fmt.Errorf("fetch oven status: %w", err)
	}

	state, _ := status["state"].(string)
	if state == "" {
		state = StateUnknown
	}
	endTime, _ := status["estimated_end_time"].(string)

	remaining := 0
	if state == StateCooking && endTime != "" {
		remaining = c.remainingUntil(endTime)
	}

	// One-shot edge: previous reading strictly positive, this one exactly
	// zero. The -1 baseline keeps the very first cycle silent.
	if c.lastRemaining > 0 && remaining == 0 {
		c.log.Infow("timer finished", "oven_id", c.ovenID)
		if c.notify != nil {
			c.notify(TimerFinished{OvenID: c.ovenID, Status: status})
		}
	}
	c.lastRemaining = remaining

	barcode, _ := status["barcode"].(string)
	c.updateMealCache(ctx, barcode)

	snap := bridge.OvenSnapshot{
		State:            state,
		Barcode:          barcode,
		EstimatedEndTime: endTime,
		RemainingSeconds: remaining,
		Meal:             c.cachedMeal,
		Raw:              status,
		UpdatedAt:        c.now().UTC(),
	}
	if t, ok := status["temperature"].(float64); ok {
		snap.TemperatureC = &t
	}
	c.setResult(snap)
	return nil
}

// remainingUntil computes the seconds left until the upstream end time,
// clamped to zero. A parse failure yields zero rather than propagating.
func (c *Coordinator) remainingUntil(endTime string) int {
	t, err := time.Parse(time.RFC3339, endTime)
	if err != nil {
		c.log.Warnw("unparseable estimated_end_time", "value", endTime, "err", err)
		return 0
	}
	d := int(t.Sub(c.now()).Seconds())
	if d < 0 {
		return 0
	}
	return d
}

// ExtractMealID pulls the numeric catalog meal id out of an oven barcode.
// Meal barcodes look like "133A254|463|5E34BF80": the second segment is the
// meal id. Manual modes ("manual-mini-toast-4", "Bake at 400° for 15:00")
// have none.
func ExtractMealID(barcode string) string {
	parts := strings.Split(barcode, "|")
	if len(parts) < 2 {
		return ""
	}
	id := parts[1]
	if id == "" {
		return ""
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return id
}

// updateMealCache applies the cache rules for the barcode seen this cycle:
//   - new distinct meal id: fetch details and replace the cache, or keep the
//     stale entry when the fetch fails
//   - manual mode with a new barcode: key on the raw barcode, clear details
//   - no barcode (idle after a finished cook): leave the cache untouched so
//     the last meal stays visible
func (c *Coordinator) updateMealCache(ctx context.Context, barcode string) {
	if barcode == "" {
		return
	}
	mealID := ExtractMealID(barcode)
	switch {
	case mealID != "" && mealID != c.lastMealKey:
		meal := c.api.MealDetails(ctx, mealID)
		if meal == nil {
			c.log.Warnw("meal details unavailable, keeping cached entry", "meal_id", mealID)
			return
		}
		c.lastMealKey = mealID
		c.cachedMeal = meal
		c.log.Infow("meal cached", "meal_id", mealID, "title", meal.Title)
	case mealID == "" && barcode != c.lastMealKey:
		c.log.Debugw("manual cooking mode", "barcode", barcode)
		c.lastMealKey = barcode
		c.cachedMeal = nil
	}
}

func (c *Coordinator) setResult(s bridge.OvenSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = s
	c.lastOK = true
}

func (c *Coordinator) setFailed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastOK = false // previous snapshot stays in place
}
