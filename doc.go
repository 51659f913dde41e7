// Package texstream implements the texture streaming and eviction engine for
// a multi-frame image viewer.
//
// The engine keeps a bounded, fast-access set of decoded frames resident as
// GPU textures while a user scrubs through potentially thousands of frames.
// It owns three mechanisms:
//
//   - a texture cache with strict-LRU eviction under an entry cap and a
//     resident-byte budget (internal/texcache)
//   - a priority-ordered load scheduler that deduplicates in-flight
//     requests and drains cooperatively (scheduler.go)
//   - a preload planner that requests neighbors of the current frame ahead
//     of time (preload.go)
//
// Frame decoding and GPU texture creation are external collaborators,
// consumed through the FrameLoader and TextureBinder interfaces.
//
// # Quick Start
//
//	eng, err := texstream.New(loader, texstream.Config{
//	    MaxCachedTextures:    64,
//	    PreloadRadius:        8,
//	    MemoryThresholdBytes: 256 << 20,
//	})
//	if err != nil {
//	    return err
//	}
//	if err := eng.Initialize(binder, study.NumFrames()); err != nil {
//	    return err
//	}
//	defer eng.Destroy()
//
//	// Non-blocking: returns the current state, loading in the background.
//	tex, _ := eng.RequestTexture(ctx, 42, texstream.PriorityNormal)
//	if tex.Ready() {
//	    draw(tex.Handle)
//	}
//
//	// Tell the engine where the user is; neighbors preload automatically.
//	eng.SetCurrentFrame(42)
//
// Immediate priority blocks until the frame is Ready or Failed:
//
//	tex, err := eng.RequestTexture(ctx, 42, texstream.PriorityImmediate)
//
// # Concurrency Model
//
// Background loads are serialized through a single load slot and drained by
// one goroutine in strict priority order, yielding between requests. Binder
// calls therefore never run concurrently, which matches the usual
// single-context requirement of GPU APIs. All exported methods are safe for
// concurrent use.
package texstream
