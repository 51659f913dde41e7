package texstream

import (
	"context"

	"github.com/framelab/texstream/internal/texcache"
)

// TextureHandle is an opaque reference to a GPU-resident texture, produced
// and destroyed by a TextureBinder. The engine never inspects it.
type TextureHandle = any

// FrameLoader produces raw decoded pixel data for a frame index. Latency is
// unspecified (tens to hundreds of milliseconds); the engine treats an error
// as a failed load and retains no partial state.
type FrameLoader interface {
	LoadFrame(ctx context.Context, frameIndex int) ([]byte, error)
}

// FrameLoaderFunc adapts a function to the FrameLoader interface.
type FrameLoaderFunc func(ctx context.Context, frameIndex int) ([]byte, error)

func (f FrameLoaderFunc) LoadFrame(ctx context.Context, frameIndex int) ([]byte, error) {
	return f(ctx, frameIndex)
}

// TextureBinder creates and destroys GPU textures. CreateTexture requires an
// active rendering context and may fail (context lost, texture limit).
// DestroyTexture is best-effort and must not panic.
//
// The engine issues all CreateTexture calls from one load at a time, so
// implementations need not be safe for concurrent creation.
type TextureBinder interface {
	CreateTexture(raw []byte) (TextureHandle, error)
	DestroyTexture(handle TextureHandle)
}

// Priority orders load requests. Higher priorities drain first; Immediate
// short-circuits the queue entirely and is serviced synchronously.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityImmediate
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityImmediate:
		return "immediate"
	default:
		return "unknown"
	}
}

// LoadState is the lifecycle state of a frame's cache entry:
// Pending -> Loading -> {Ready, Failed}. A Ready entry leaves residency only
// through eviction; it is never silently reloaded.
type LoadState = texcache.State

const (
	StatePending = texcache.StatePending
	StateLoading = texcache.StateLoading
	StateReady   = texcache.StateReady
	StateFailed  = texcache.StateFailed
)

// Texture is a snapshot of one frame's cache entry. The handle may be used
// for rendering within the current call chain; it must not be retained, as
// the cache remains the single point of disposal.
type Texture struct {
	FrameIndex   int
	State        LoadState
	Handle       TextureHandle
	ByteSize     int64
	LastAccessed int64
}

// Ready reports whether the texture is resident and renderable.
func (t Texture) Ready() bool { return t.State == StateReady && t.Handle != nil }

func textureFromView(v texcache.View) Texture {
	return Texture{
		FrameIndex:   v.Frame,
		State:        v.State,
		Handle:       v.Handle,
		ByteSize:     v.ByteSize,
		LastAccessed: v.LastAccessed,
	}
}

// CompletionFunc observes background load outcomes. err is nil on success.
// Called from the drain goroutine; implementations must be fast and must not
// call back into the engine synchronously.
type CompletionFunc func(frameIndex int, err error)
