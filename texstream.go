package texstream

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/framelab/texstream/internal/resource"
	"github.com/framelab/texstream/internal/texcache"
)

// Engine is the streaming service facade: it composes the texture cache, the
// load scheduler, and the preload planner behind "give me a texture for
// frame N" and "the user is now at frame N".
//
// An Engine is explicitly constructed and owned by one viewing session;
// there is no process-wide instance. Lifecycle: New -> Initialize ->
// RequestTexture/SetCurrentFrame -> Destroy.
type Engine struct {
	cfg          Config
	loader       FrameLoader
	logger       *Logger
	metrics      MetricsCollector
	completionFn CompletionFunc

	rc    *resource.Controller
	cache *texcache.Cache
	sched *scheduler
	stats engineStats

	mu           sync.RWMutex // guards binder, totalFrames, currentFrame
	binder       TextureBinder
	totalFrames  int
	currentFrame int

	initialized atomic.Bool
	destroyed   atomic.Bool

	maintInterval time.Duration
	maintKick     chan struct{}
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// New creates an engine for the given frame loader and configuration.
// The engine does not load anything until Initialize binds a rendering
// context.
func New(loader FrameLoader, cfg Config, optFns ...Option) (*Engine, error) {
	if loader == nil {
		return nil, fmt.Errorf("loader must not be nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := applyOptions(optFns)

	e := &Engine{
		cfg:           cfg,
		loader:        loader,
		logger:        o.logger,
		metrics:       o.metrics,
		completionFn:  o.completionFn,
		maintInterval: o.maintenanceInterval,
		maintKick:     make(chan struct{}, 1),
	}

	e.rc = resource.NewController(resource.Config{
		MemoryBudgetBytes:      cfg.MemoryThresholdBytes,
		MinMaintenanceInterval: o.maintenanceInterval,
	})
	e.cache = texcache.New(cfg.MaxCachedTextures, e.rc, o.rawCodec, e.destroyHandle, e.logger.Logger)
	e.sched = newScheduler(e)

	return e, nil
}

// Initialize binds the GPU resource binder and the frame count, and starts
// the drain and maintenance goroutines. Must be called exactly once before
// any request.
func (e *Engine) Initialize(binder TextureBinder, totalFrames int) error {
	if e.destroyed.Load() {
		return ErrEngineClosed
	}
	if binder == nil {
		return fmt.Errorf("binder must not be nil")
	}
	if totalFrames < 0 {
		return fmt.Errorf("totalFrames must be non-negative, got %d", totalFrames)
	}
	if !e.initialized.CompareAndSwap(false, true) {
		return ErrAlreadyInitialized
	}

	e.mu.Lock()
	e.binder = binder
	e.totalFrames = totalFrames
	e.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	e.wg.Add(2)
	go e.sched.run(ctx)
	go e.maintenanceLoop(ctx)

	e.logger.Info("engine initialized",
		"total_frames", totalFrames,
		"max_cached_textures", e.cfg.MaxCachedTextures,
		"memory_threshold_bytes", e.cfg.MemoryThresholdBytes,
		"preload_radius", e.cfg.PreloadRadius,
	)
	return nil
}

// RequestTexture returns the texture for frameIndex. On a cache hit it
// returns immediately. On a miss it enqueues a background load and returns
// the current state without blocking; poll again or observe the completion
// callback. PriorityImmediate instead performs the load synchronously and
// returns only once the frame is Ready or Failed.
func (e *Engine) RequestTexture(ctx context.Context, frameIndex int, priority Priority) (Texture, error) {
	if err := e.checkServing(frameIndex); err != nil {
		return Texture{FrameIndex: frameIndex}, err
	}

	if v, ok := e.cache.Get(frameIndex); ok {
		if priority != PriorityImmediate || v.State == StateReady {
			e.metrics.RecordRequest(priority, true)
			return textureFromView(v), nil
		}
		// Immediate request for a frame already in flight: fall through
		// and wait for that load's outcome.
	} else {
		e.metrics.RecordRequest(priority, false)
	}

	if priority == PriorityImmediate {
		if err := e.sched.load(ctx, frameIndex, priority, true); err != nil {
			return Texture{FrameIndex: frameIndex, State: StateFailed}, err
		}
		if v, ok := e.cache.Peek(frameIndex); ok {
			return textureFromView(v), nil
		}
		// Completed and already evicted; the caller may re-request.
		return Texture{FrameIndex: frameIndex}, nil
	}

	e.sched.request(frameIndex, priority)
	return Texture{FrameIndex: frameIndex, State: StatePending}, nil
}

// SetCurrentFrame records the user's focus frame and enqueues preload
// requests for its neighbors within the configured radius. Frames already
// resident or in flight are skipped.
func (e *Engine) SetCurrentFrame(frameIndex int) {
	if e.destroyed.Load() || !e.initialized.Load() {
		return
	}

	e.mu.Lock()
	e.currentFrame = frameIndex
	total := e.totalFrames
	e.mu.Unlock()

	enqueued := 0
	for _, c := range planPreload(frameIndex, total, e.cfg.PreloadRadius) {
		if _, ok := e.cache.Peek(c.frame); ok {
			continue
		}
		e.sched.request(c.frame, c.priority)
		enqueued++
	}

	e.metrics.RecordPreload(enqueued)
	e.logger.LogPreload(frameIndex, enqueued)
}

// CurrentFrame returns the most recently recorded focus frame.
func (e *Engine) CurrentFrame() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.currentFrame
}

// SetMemoryThreshold adjusts the resident-byte budget at runtime. A
// tightened budget is reclaimed by the next maintenance sweep, which this
// call requests immediately.
func (e *Engine) SetMemoryThreshold(bytes int64) error {
	if bytes <= 0 {
		return fmt.Errorf("memory threshold must be positive, got %d", bytes)
	}
	e.rc.SetBudget(bytes)
	select {
	case e.maintKick <- struct{}{}:
	default:
	}
	e.logger.Info("memory threshold updated", "budget_bytes", bytes)
	return nil
}

// Rebind re-creates every resident texture through a fresh binder after a
// GPU context loss. Frames whose re-bind fails are dropped and will reload
// on their next request. Returns the number of textures rebound.
func (e *Engine) Rebind(binder TextureBinder) (int, error) {
	if e.destroyed.Load() {
		return 0, ErrEngineClosed
	}
	if !e.initialized.Load() {
		return 0, ErrNotInitialized
	}
	if binder == nil {
		return 0, fmt.Errorf("binder must not be nil")
	}

	e.mu.Lock()
	e.binder = binder
	e.mu.Unlock()

	rebound, dropped := e.cache.Rebind(func(raw []byte) (any, error) {
		return binder.CreateTexture(raw)
	})
	e.logger.Info("textures rebound", "rebound", rebound, "dropped", dropped)
	return rebound, nil
}

// Stats returns a snapshot of the engine's counters.
func (e *Engine) Stats() Stats {
	hits, misses, evictions, violations := e.cache.Counters()
	return Stats{
		Hits:             hits,
		Misses:           misses,
		ResidentBytes:    e.cache.ResidentBytes(),
		ResidentEntries:  e.cache.Len(),
		Evictions:        evictions,
		PolicyViolations: violations,
		Loads:            e.stats.loads.Load(),
		LoadFailures:     e.stats.loadFailures.Load(),
		BindFailures:     e.stats.bindFailures.Load(),
		TotalLoadNanos:   e.stats.totalLoadNanos.Load(),
		AvgLoadNanos:     e.stats.avgLoadNanos(),
	}
}

// Destroy releases every resident GPU handle, clears the queue, and stops
// the background goroutines. Idempotent; the engine cannot be reused.
func (e *Engine) Destroy() {
	if !e.destroyed.CompareAndSwap(false, true) {
		return
	}
	if e.cancel != nil {
		e.cancel()
		e.wg.Wait()
	}
	e.sched.clear()
	e.cache.Clear(ErrEngineClosed)
	e.logger.Info("engine destroyed")
}

func (e *Engine) checkServing(frameIndex int) error {
	if e.destroyed.Load() {
		return ErrEngineClosed
	}
	if !e.initialized.Load() {
		return ErrNotInitialized
	}
	e.mu.RLock()
	total := e.totalFrames
	e.mu.RUnlock()
	if frameIndex < 0 || frameIndex >= total {
		return fmt.Errorf("%w: %d (total %d)", ErrFrameOutOfRange, frameIndex, total)
	}
	return nil
}

func (e *Engine) currentBinder() TextureBinder {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.binder
}

// destroyHandle is the cache's disposal callback.
func (e *Engine) destroyHandle(handle any) {
	if b := e.currentBinder(); b != nil {
		b.DestroyTexture(handle)
	}
}

func (e *Engine) notifyCompletion(frameIndex int, err error) {
	if e.completionFn != nil {
		e.completionFn(frameIndex, err)
	}
}

func (e *Engine) maintenanceLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.maintInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-e.maintKick:
		}
		if e.rc.AllowMaintenance() {
			e.cache.EvictIfNeeded()
		}
	}
}
