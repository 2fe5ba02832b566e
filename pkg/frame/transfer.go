package frame

import "fmt"

// Luma weights in 1/256 units. They sum to 256 so the result of the
// weighted sum shifted right by 8 always fits in a byte.
const (
	lumaR = 77
	lumaG = 151
	lumaB = 28
)

// Luma returns the fixed-point luminance of an RGB pixel.
// The result is truncated, not rounded.
func Luma(r, g, b byte) byte {
	return byte((lumaR*uint32(r) + lumaG*uint32(g) + lumaB*uint32(b)) >> 8)
}

// Transfer converts f into a host buffer. Single-channel frames are copied
// as gray regardless of forceGray; three-channel frames become luma when
// forceGray is set and RGB otherwise.
func Transfer(f Frame, forceGray bool) (Buffer, error) {
	switch {
	case f.Channels == 1:
		return Gray(f)
	case forceGray:
		return GrayFromBGR(f)
	default:
		return RGBFromBGR(f)
	}
}

// Gray copies a single-channel frame, writing storage row h-1-i into output
// row i.
func Gray(f Frame) (Buffer, error) {
	if err := check(f, 1); err != nil {
		return Buffer{}, err
	}
	out := newBuffer(LayoutGray, f.Width, f.Height)
	if f.Empty() {
		return out, nil
	}
	w := f.Width
	for i := 0; i < f.Height; i++ {
		src := f.Offset(f.Height-1-i, 0, 0)
		copy(out.Data[i*w:(i+1)*w], f.Data[src:src+w])
	}
	return out, nil
}

// GrayFromBGR reduces a BGR frame to one luma byte per pixel, flipped
// vertically.
func GrayFromBGR(f Frame) (Buffer, error) {
	if err := check(f, 3); err != nil {
		return Buffer{}, err
	}
	out := newBuffer(LayoutGrayFromBGR, f.Width, f.Height)
	if f.Empty() {
		return out, nil
	}
	dst := 0
	for i := 0; i < f.Height; i++ {
		for x := 0; x < f.Width; x++ {
			px := f.Offset(f.Height-1-i, x, 0)
			out.Data[dst] = Luma(f.Data[px+2], f.Data[px+1], f.Data[px])
			dst++
		}
	}
	return out, nil
}

// RGBFromBGR reorders each BGR pixel to RGB, flipped vertically. The
// channel is the fastest-varying dimension of the result.
func RGBFromBGR(f Frame) (Buffer, error) {
	if err := check(f, 3); err != nil {
		return Buffer{}, err
	}
	out := newBuffer(LayoutRGB, 3, f.Width, f.Height)
	if f.Empty() {
		return out, nil
	}
	dst := 0
	for i := 0; i < f.Height; i++ {
		for x := 0; x < f.Width; x++ {
			px := f.Offset(f.Height-1-i, x, 0)
			out.Data[dst] = f.Data[px+2]
			out.Data[dst+1] = f.Data[px+1]
			out.Data[dst+2] = f.Data[px]
			dst += 3
		}
	}
	return out, nil
}

func check(f Frame, channels int) error {
	if f.Channels != channels {
		return fmt.Errorf("%w: expected %d channels, got %d", ErrBadFrame, channels, f.Channels)
	}
	return f.Validate()
}
