package ratelimit

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Service names with a daily request budget.
const (
	AniList = "anilist"
	Gemini  = "gemini"
)

// BudgetLimiter caps how many requests each named service may receive per
// day. A limit of zero or less means unlimited.
type BudgetLimiter struct {
	mu        sync.Mutex
	limits    map[string]int
	counts    map[string]int
	resetTime time.Time
	now       func() time.Time
	log       *slog.Logger
}

// NewBudgetLimiter creates a limiter with the given per-service limits.
func NewBudgetLimiter(limits map[string]int, log *slog.Logger) *BudgetLimiter {
	if log == nil {
		log = slog.Default()
	}
	l := &BudgetLimiter{
		limits: make(map[string]int, len(limits)),
		counts: make(map[string]int),
		now:    time.Now,
		log:    log,
	}
	for k, v := range limits {
		l.limits[k] = v
	}
	l.resetTime = l.now().Add(24 * time.Hour)
	return l
}

// Allow reports whether service still has budget left.
func (rl *BudgetLimiter) Allow(service string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.checkReset()

	if max := rl.limits[service]; max > 0 && rl.counts[service] >= max {
		rl.log.Warn("rate limit reached", "service", service, "used", rl.counts[service], "limit", max)
		return false
	}
	return true
}

// Use consumes one request from service's budget.
func (rl *BudgetLimiter) Use(service string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.checkReset()

	if max := rl.limits[service]; max > 0 && rl.counts[service] >= max {
		return fmt.Errorf("%s rate limit exceeded", service)
	}

	rl.counts[service]++
	rl.log.Debug("budget used", "service", service, "used", rl.counts[service], "limit", rl.limits[service])
	return nil
}

// GetStats returns current usage per service.
func (rl *BudgetLimiter) GetStats() map[string]interface{} {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	stats := map[string]interface{}{
		"reset_time": rl.resetTime,
	}
	for service, max := range rl.limits {
		stats[service+"_used"] = rl.counts[service]
		stats[service+"_limit"] = max
	}
	return stats
}

// checkReset resets counters if reset time has passed
func (rl *BudgetLimiter) checkReset() {
	if rl.now().After(rl.resetTime) {
		rl.log.Info("resetting request budgets")
		rl.counts = make(map[string]int)
		rl.resetTime = rl.now().Add(24 * time.Hour)
	}
}
