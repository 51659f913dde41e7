package texstream

import (
	"errors"
	"fmt"
)

var (
	// ErrEngineClosed is returned when the engine has been destroyed.
	ErrEngineClosed = errors.New("engine closed")

	// ErrNotInitialized is returned when a request arrives before Initialize.
	ErrNotInitialized = errors.New("engine not initialized")

	// ErrAlreadyInitialized is returned by a second Initialize call.
	ErrAlreadyInitialized = errors.New("engine already initialized")

	// ErrFrameOutOfRange is returned for a frame index outside [0, totalFrames).
	ErrFrameOutOfRange = errors.New("frame index out of range")
)

// LoadError indicates the frame loader rejected or timed out.
//
// The underlying loader error can be accessed via errors.Unwrap.
type LoadError struct {
	FrameIndex int
	cause      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load frame %d: %v", e.FrameIndex, e.cause)
}

func (e *LoadError) Unwrap() error { return e.cause }

// BindError indicates GPU texture creation failed, e.g. the rendering
// context was lost or a texture limit was reached.
//
// The underlying binder error can be accessed via errors.Unwrap.
type BindError struct {
	FrameIndex int
	cause      error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind frame %d: %v", e.FrameIndex, e.cause)
}

func (e *BindError) Unwrap() error { return e.cause }
