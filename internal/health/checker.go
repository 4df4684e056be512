package health

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pingsantohq/subpub/internal/metrics"
)

const defaultTickStale = time.Minute

const (
	categoryEnginePending = "ENGINE_PENDING"
	categoryEngineStale   = "ENGINE_STALE"
	categoryEngineError   = "ENGINE_ERROR"
	categoryCheckFailing  = "CHECK_FAILING"
)

const (
	severityInfo     = "info"
	severityWarning  = "warning"
	severityCritical = "critical"
)

// Checker evaluates readiness conditions for the engine.
type Checker struct {
	metrics    *metrics.Store
	staleAfter time.Duration

	mu            sync.RWMutex
	lastTick      time.Time
	tickErr       string
	lastTickError time.Time
}

// NewChecker constructs a readiness checker bound to the provided metrics store.
func NewChecker(store *metrics.Store, staleAfter time.Duration) *Checker {
	if staleAfter <= 0 {
		staleAfter = defaultTickStale
	}
	return &Checker{
		metrics:    store,
		staleAfter: staleAfter,
	}
}

// ObserveTick records the outcome of an engine tick.
func (c *Checker) ObserveTick(ts time.Time, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.tickErr = err.Error()
		c.lastTickError = ts
		return
	}
	c.lastTick = ts
	c.tickErr = ""
	c.lastTickError = time.Time{}
}

// Live reports whether the engine has completed a tick within the stale window.
func (c *Checker) Live(now time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.lastTick.IsZero() && now.Sub(c.lastTick) <= c.staleAfter
}

// Ready evaluates all readiness conditions and returns the overall status and reasons for failure.
func (c *Checker) Ready(now time.Time) (bool, []string) {
	reasons := make([]string, 0, 3)
	categories := make([]metrics.ReadinessCategory, 0, 3)
	appendCategory := func(name, severity string) {
		categories = append(categories, metrics.ReadinessCategory{
			Name:     name,
			Severity: severity,
		})
	}

	c.mu.RLock()
	lastTick := c.lastTick
	tickErr := c.tickErr
	lastErr := c.lastTickError
	staleAfter := c.staleAfter
	c.mu.RUnlock()

	if lastTick.IsZero() {
		reasons = append(reasons, "engine has not ticked")
		appendCategory(categoryEnginePending, severityInfo)
	} else if now.Sub(lastTick) > staleAfter {
		reasons = append(reasons, fmt.Sprintf("engine tick stale (%s)", now.Sub(lastTick).Round(time.Second)))
		appendCategory(categoryEngineStale, severityWarning)
	}

	if tickErr != "" && now.Sub(lastErr) <= staleAfter {
		reasons = append(reasons, fmt.Sprintf("engine tick failed: %s", tickErr))
		appendCategory(categoryEngineError, severityCritical)
	}

	if c.metrics != nil {
		if failing := c.metrics.Snapshot().FailingChecks; failing > 0 {
			reasons = append(reasons, fmt.Sprintf("%d check(s) failing", failing))
			appendCategory(categoryCheckFailing, severityWarning)
		}
	}

	ready := len(reasons) == 0
	if c.metrics != nil {
		if ready {
			c.metrics.ObserveReadiness(true, "", nil)
		} else {
			c.metrics.ObserveReadiness(false, strings.Join(reasons, "; "), categories)
		}
	}
	if !ready {
		return false, reasons
	}
	return true, nil
}
