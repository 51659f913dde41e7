// Package resource governs the shared resources of the streaming engine:
// the serialized load pipeline, the resident-byte budget, and the cadence of
// background maintenance.
package resource

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MemoryBudgetBytes is the soft limit for resident texture bytes.
	// The cache may temporarily exceed it when nothing is evictable.
	MemoryBudgetBytes int64

	// MaxConcurrentLoads bounds how many load pipelines may run at once.
	// If 0, defaults to 1 (strictly serialized loads).
	MaxConcurrentLoads int64

	// MinMaintenanceInterval is the minimum spacing between maintenance
	// sweeps, regardless of how often a sweep is requested.
	// If 0, defaults to 1 second.
	MinMaintenanceInterval time.Duration
}

// Controller manages the engine's shared resources.
type Controller struct {
	// Loads
	loadSem *semaphore.Weighted

	// Memory
	memUsed atomic.Int64
	budget  atomic.Int64

	// Maintenance
	maint *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxConcurrentLoads <= 0 {
		cfg.MaxConcurrentLoads = 1
	}
	if cfg.MinMaintenanceInterval <= 0 {
		cfg.MinMaintenanceInterval = time.Second
	}

	c := &Controller{
		loadSem: semaphore.NewWeighted(cfg.MaxConcurrentLoads),
		maint:   rate.NewLimiter(rate.Every(cfg.MinMaintenanceInterval), 1),
	}
	c.budget.Store(cfg.MemoryBudgetBytes)

	return c
}

// AcquireLoad reserves a load slot, blocking until one is free or ctx is
// canceled. With the default configuration this serializes all loads, which
// keeps texture creation on a single logical context.
func (c *Controller) AcquireLoad(ctx context.Context) error {
	return c.loadSem.Acquire(ctx, 1)
}

// ReleaseLoad releases a load slot.
func (c *Controller) ReleaseLoad() {
	c.loadSem.Release(1)
}

// AddMemory records bytes becoming resident. The budget is deliberately not
// enforced here: eviction policy lives in the cache, and the policy is
// lenient about temporary overage.
func (c *Controller) AddMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	c.memUsed.Add(bytes)
}

// ReleaseMemory records bytes leaving residency.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the currently tracked resident bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// Budget returns the current memory budget in bytes.
func (c *Controller) Budget() int64 {
	return c.budget.Load()
}

// SetBudget replaces the memory budget. Takes effect on the next eviction
// evaluation; tightening at runtime is reclaimed by the maintenance sweep.
func (c *Controller) SetBudget(bytes int64) {
	c.budget.Store(bytes)
}

// OverBudget reports whether tracked usage exceeds the budget.
func (c *Controller) OverBudget() bool {
	return c.memUsed.Load() > c.budget.Load()
}

// AllowMaintenance reports whether a maintenance sweep may run now.
// Sweeps requested faster than the configured interval are dropped,
// not queued.
func (c *Controller) AllowMaintenance() bool {
	return c.maint.Allow()
}
