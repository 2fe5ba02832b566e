package capture

import "strings"

// Property ids. The values are OpenCV's CAP_PROP_* numbers so they can be
// passed straight through to the capture library.
const (
	PropPosMsec     = 0
	PropPosFrames   = 1
	PropPosAviRatio = 2
	PropFrameWidth  = 3
	PropFrameHeight = 4
	PropFPS         = 5
	PropFourCC      = 6
	PropFrameCount  = 7
	PropFormat      = 8
	PropMode        = 9
	PropBrightness  = 10
	PropContrast    = 11
	PropSaturation  = 12
	PropHue         = 13
	PropGain        = 14
	PropExposure    = 15
	PropConvertRGB  = 16
)

var propNames = map[string]int{
	"pos_msec":      PropPosMsec,
	"pos_frames":    PropPosFrames,
	"pos_avi_ratio": PropPosAviRatio,
	"frame_width":   PropFrameWidth,
	"frame_height":  PropFrameHeight,
	"fps":           PropFPS,
	"fourcc":        PropFourCC,
	"frame_count":   PropFrameCount,
	"format":        PropFormat,
	"mode":          PropMode,
	"brightness":    PropBrightness,
	"contrast":      PropContrast,
	"saturation":    PropSaturation,
	"hue":           PropHue,
	"gain":          PropGain,
	"exposure":      PropExposure,
	"convert_rgb":   PropConvertRGB,
}

// PropertyID looks up a property id by name ("fps", "FRAME_WIDTH",
// "cap_prop_gain"). Names are case-insensitive.
func PropertyID(name string) (int, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.TrimPrefix(key, "cap_prop_")
	id, ok := propNames[key]
	return id, ok
}

// PropertyNames returns the known property names keyed by id.
func PropertyNames() map[int]string {
	out := make(map[int]string, len(propNames))
	for name, id := range propNames {
		out[id] = name
	}
	return out
}
