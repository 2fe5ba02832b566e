package opencv

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/teslashibe/go-framebridge/pkg/frame"
	"gocv.io/x/gocv"
)

// WriteImage saves a host buffer to path, undoing the vertical flip and
// converting RGB back to OpenCV's BGR. The format follows the extension.
func WriteImage(path string, buf frame.Buffer) error {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".pgm", ".ppm", ".bmp":
	default:
		return fmt.Errorf("unsupported output extension %q", ext)
	}

	w, h := buf.Width(), buf.Height()
	if w == 0 || h == 0 {
		return fmt.Errorf("empty buffer")
	}

	mt := gocv.MatTypeCV8UC1
	if buf.Channels() == 3 {
		mt = gocv.MatTypeCV8UC3
	}
	src, err := gocv.NewMatFromBytes(h, w, mt, buf.Data)
	if err != nil {
		return fmt.Errorf("mat creation failed: %w", err)
	}
	defer src.Close()

	flipped := gocv.NewMat()
	defer flipped.Close()
	gocv.Flip(src, &flipped, 0)

	out := flipped
	if buf.Channels() == 3 {
		bgr := gocv.NewMat()
		defer bgr.Close()
		gocv.CvtColor(flipped, &bgr, gocv.ColorRGBToBGR)
		out = bgr
	}

	if ok := gocv.IMWrite(path, out); !ok {
		return fmt.Errorf("failed to write image %s", path)
	}
	return nil
}
