package texstream_test

import (
	"bytes"
	"context"
	"fmt"
	"log"

	"github.com/framelab/texstream"
)

// exampleBinder creates opaque handles for decoded frame data. A real
// application would upload the pixels to the GPU here.
type exampleBinder struct{}

func (exampleBinder) CreateTexture(data []byte) (texstream.TextureHandle, error) {
	return fmt.Sprintf("texture(%d bytes)", len(data)), nil
}

func (exampleBinder) DestroyTexture(handle texstream.TextureHandle) {}

// Example demonstrates the basic engine lifecycle: construct, initialize,
// request a frame at immediate priority, and tear down.
func Example() {
	// Loader that synthesizes a 4 KiB frame. A real application would
	// fetch and decode image data here.
	loader := texstream.FrameLoaderFunc(func(ctx context.Context, frameIndex int) ([]byte, error) {
		return bytes.Repeat([]byte{byte(frameIndex)}, 4096), nil
	})

	engine, err := texstream.New(loader, texstream.Config{
		MaxCachedTextures:    16,
		PreloadRadius:        2,
		MemoryThresholdBytes: 1 << 20,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer engine.Destroy()

	if err := engine.Initialize(exampleBinder{}, 100); err != nil {
		log.Fatal(err)
	}

	// Immediate priority loads synchronously on the calling goroutine.
	tex, err := engine.RequestTexture(context.Background(), 42, texstream.PriorityImmediate)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("frame %d ready: %v\n", tex.FrameIndex, tex.Ready())
	fmt.Printf("handle: %v\n", tex.Handle)
	// Output:
	// frame 42 ready: true
	// handle: texture(4096 bytes)
}

// Example_stats demonstrates inspecting cache effectiveness counters.
func Example_stats() {
	loader := texstream.FrameLoaderFunc(func(ctx context.Context, frameIndex int) ([]byte, error) {
		return make([]byte, 1024), nil
	})

	engine, err := texstream.New(loader, texstream.DefaultConfig())
	if err != nil {
		log.Fatal(err)
	}
	defer engine.Destroy()

	if err := engine.Initialize(exampleBinder{}, 10); err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	engine.RequestTexture(ctx, 3, texstream.PriorityImmediate) // miss, load
	engine.RequestTexture(ctx, 3, texstream.PriorityImmediate) // hit

	stats := engine.Stats()
	fmt.Printf("hits=%d misses=%d resident=%d\n", stats.Hits, stats.Misses, stats.ResidentEntries)
	// Output: hits=1 misses=1 resident=1
}

// Example_completionFunc demonstrates observing load completion without
// polling.
func Example_completionFunc() {
	loader := texstream.FrameLoaderFunc(func(ctx context.Context, frameIndex int) ([]byte, error) {
		return make([]byte, 512), nil
	})

	engine, err := texstream.New(loader, texstream.DefaultConfig(),
		texstream.WithCompletionFunc(func(frameIndex int, err error) {
			fmt.Printf("frame %d completed (err=%v)\n", frameIndex, err)
		}),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer engine.Destroy()

	if err := engine.Initialize(exampleBinder{}, 10); err != nil {
		log.Fatal(err)
	}

	// Immediate loads run on the calling goroutine, so the callback fires
	// before RequestTexture returns.
	engine.RequestTexture(context.Background(), 7, texstream.PriorityImmediate)
	// Output: frame 7 completed (err=<nil>)
}
