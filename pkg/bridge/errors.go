package bridge

import "errors"

// Sentinel errors for bridge operations. Handle validation failures come
// from package handle (handle.ErrInvalidHandle, handle.ErrInaccessibleHandle).
var (
	// ErrOpenFailed is returned when no capture device or file responds.
	ErrOpenFailed = errors.New("bridge: could not open specified camera")

	// ErrNoFrame is returned when the capture session yields no frame.
	ErrNoFrame = errors.New("bridge: no frame available")

	// ErrClosed is returned by operations on a closed Bridge.
	ErrClosed = errors.New("bridge: closed")
)
