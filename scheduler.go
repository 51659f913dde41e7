package texstream

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/framelab/texstream/internal/queue"
	"github.com/framelab/texstream/internal/texcache"
)

// scheduler drains the load request queue. One goroutine services requests
// in strict priority order (FIFO within a priority), coalescing duplicate
// frames through the cache's Loading placeholders and yielding between
// requests so an arbitrarily long queue cannot monopolize a thread.
type scheduler struct {
	eng    *Engine
	mu     sync.Mutex
	queue  *queue.RequestQueue
	notify chan struct{}
}

func newScheduler(eng *Engine) *scheduler {
	return &scheduler{
		eng:    eng,
		queue:  queue.New(),
		notify: make(chan struct{}, 1),
	}
}

// request enqueues a background load. A request for an already-queued frame
// re-prioritizes it (upgrade only) instead of duplicating.
func (s *scheduler) request(frame int, p Priority) {
	s.mu.Lock()
	changed := s.queue.Push(frame, int(p))
	s.mu.Unlock()
	if changed {
		s.kick()
	}
}

func (s *scheduler) kick() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *scheduler) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue.Reset()
}

func (s *scheduler) run(ctx context.Context) {
	defer s.eng.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.notify:
		}
		s.drain(ctx)
	}
}

func (s *scheduler) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		s.mu.Lock()
		req, ok := s.queue.Pop()
		s.mu.Unlock()
		if !ok {
			return
		}

		s.load(ctx, req.Frame, Priority(req.Priority), false)

		// Cooperative yield between requests.
		runtime.Gosched()
	}
}

// load runs the full pipeline for one frame: placeholder, loader, binder,
// completion. wait controls coalescing when a load for the same frame is
// already in flight: background drains skip it, Immediate callers block
// until its outcome. The returned error is for the Immediate path; the
// background path swallows it after recording.
func (s *scheduler) load(ctx context.Context, frame int, p Priority, wait bool) error {
	eng := s.eng

	done, created := eng.cache.InsertLoading(frame)
	if !created {
		if !wait {
			return nil // coalesced
		}
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		if v, ok := eng.cache.Peek(frame); ok && v.State == texcache.StateReady {
			return nil
		}
		return &LoadError{FrameIndex: frame, cause: errors.New("coalesced load failed")}
	}

	if err := eng.rc.AcquireLoad(ctx); err != nil {
		eng.cache.Fail(frame, err)
		return err
	}
	defer eng.rc.ReleaseLoad()

	start := time.Now()

	raw, err := eng.loader.LoadFrame(ctx, frame)
	if err != nil {
		lerr := &LoadError{FrameIndex: frame, cause: err}
		eng.stats.loadFailures.Add(1)
		s.fail(frame, p, time.Since(start), lerr)
		return lerr
	}

	handle, err := eng.currentBinder().CreateTexture(raw)
	if err != nil {
		berr := &BindError{FrameIndex: frame, cause: err}
		eng.stats.bindFailures.Add(1)
		s.fail(frame, p, time.Since(start), berr)
		return berr
	}

	if !eng.cache.Complete(frame, raw, handle) {
		// The cache was cleared while this load was in flight; ownership
		// of the handle never transferred.
		eng.currentBinder().DestroyTexture(handle)
		return ErrEngineClosed
	}

	elapsed := time.Since(start)
	eng.stats.recordLoad(elapsed)
	eng.metrics.RecordLoad(frame, elapsed, nil)
	eng.logger.LogLoad(frame, p, int64(len(raw)), nil)
	eng.notifyCompletion(frame, nil)
	return nil
}

func (s *scheduler) fail(frame int, p Priority, d time.Duration, err error) {
	eng := s.eng
	eng.cache.Fail(frame, err)
	eng.metrics.RecordLoad(frame, d, err)
	eng.logger.LogLoad(frame, p, 0, err)
	eng.notifyCompletion(frame, err)
}
