// Package frame converts decoded capture frames into host array buffers.
//
// Capture frames are stored top-to-bottom with BGR-interleaved pixels and
// rows that may be padded to an alignment boundary. Host arrays are indexed
// dimension-first and stored bottom-to-top, with RGB channel order for
// color images. The functions here translate between the two without
// touching padding bytes.
package frame

import (
	"errors"
	"fmt"
)

// ErrBadFrame is returned when a frame's geometry does not describe its data.
var ErrBadFrame = errors.New("frame: malformed frame")

// Frame is a read-only view of one decoded image owned by the capture
// library. It is only valid until the next frame is pulled from the same
// session and must not be retained.
type Frame struct {
	Width    int    // Pixels per row
	Height   int    // Rows
	Channels int    // 1 (gray) or 3 (BGR)
	Stride   int    // Bytes per row in Data, >= Width*Channels
	Data     []byte // Row 0 first
}

// RowBytes returns the number of meaningful bytes in each row.
func (f Frame) RowBytes() int {
	return f.Width * f.Channels
}

// Empty reports whether the frame has no pixels.
func (f Frame) Empty() bool {
	return f.Width == 0 || f.Height == 0
}

// Offset returns the index into Data of channel ch of pixel (row, col),
// with row counted from the top of storage.
func (f Frame) Offset(row, col, ch int) int {
	return row*f.Stride + col*f.Channels + ch
}

// Validate checks that the frame geometry is consistent with its data.
func (f Frame) Validate() error {
	if f.Width < 0 || f.Height < 0 {
		return fmt.Errorf("%w: negative size %dx%d", ErrBadFrame, f.Width, f.Height)
	}
	if f.Channels != 1 && f.Channels != 3 {
		return fmt.Errorf("%w: unsupported channel count %d", ErrBadFrame, f.Channels)
	}
	if f.Empty() {
		return nil
	}
	if f.Stride < f.RowBytes() {
		return fmt.Errorf("%w: stride %d shorter than row of %d bytes", ErrBadFrame, f.Stride, f.RowBytes())
	}
	// The last row does not need its padding present.
	need := (f.Height-1)*f.Stride + f.RowBytes()
	if len(f.Data) < need {
		return fmt.Errorf("%w: have %d bytes, need %d", ErrBadFrame, len(f.Data), need)
	}
	return nil
}

// Layout identifies the arrangement of a Buffer.
type Layout string

const (
	// LayoutGray is a native single-channel frame, flipped.
	LayoutGray Layout = "gray"
	// LayoutGrayFromBGR is luma computed from a BGR frame, flipped.
	LayoutGrayFromBGR Layout = "gray_from_bgr"
	// LayoutRGB is a BGR frame reordered to RGB triplets, flipped.
	LayoutRGB Layout = "rgb"
)

// Buffer is a host array: dimensions listed fastest-varying first, bytes
// stored bottom row first. Gray buffers have Dims [width, height]; color
// buffers have Dims [3, width, height].
type Buffer struct {
	Layout Layout `json:"layout"`
	Dims   []int  `json:"dims"`
	Data   []byte `json:"data"`
}

// Width returns the number of pixels per row.
func (b Buffer) Width() int {
	if len(b.Dims) == 3 {
		return b.Dims[1]
	}
	if len(b.Dims) == 2 {
		return b.Dims[0]
	}
	return 0
}

// Height returns the number of rows.
func (b Buffer) Height() int {
	if len(b.Dims) == 0 {
		return 0
	}
	return b.Dims[len(b.Dims)-1]
}

// Channels returns 3 for color buffers and 1 otherwise.
func (b Buffer) Channels() int {
	if len(b.Dims) == 3 {
		return b.Dims[0]
	}
	return 1
}

// Len returns the number of elements described by Dims.
func (b Buffer) Len() int {
	if len(b.Dims) == 0 {
		return 0
	}
	n := 1
	for _, d := range b.Dims {
		n *= d
	}
	return n
}

func newBuffer(layout Layout, dims ...int) Buffer {
	b := Buffer{Layout: layout, Dims: dims}
	b.Data = make([]byte, b.Len())
	return b
}
