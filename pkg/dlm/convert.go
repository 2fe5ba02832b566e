package dlm

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/teslashibe/go-framebridge/pkg/capture"
	"github.com/teslashibe/go-framebridge/pkg/handle"
)

// Helper functions for argument conversion. They accept the scalar types a
// host or a JSON decoder produces.

// Int converts a scalar argument to int.
func Int(v any) (int, error) {
	switch val := v.(type) {
	case int:
		return val, nil
	case int32:
		return int(val), nil
	case int64:
		return int(val), nil
	case uint8:
		return int(val), nil
	case float32:
		return int(val), nil
	case float64:
		return int(val), nil
	case bool:
		if val {
			return 1, nil
		}
		return 0, nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return int(i), nil
		}
		if f, err := val.Float64(); err == nil {
			return int(f), nil
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: cannot convert %T to integer", ErrBadArgument, v)
}

// Float converts a scalar argument to float64.
func Float(v any) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int:
		return float64(val), nil
	case int32:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f, nil
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: cannot convert %T to double", ErrBadArgument, v)
}

// Bool treats any non-zero scalar as true.
func Bool(v any) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	i, err := Int(v)
	if err != nil {
		return false, err
	}
	return i != 0, nil
}

// PropertyID accepts a numeric id or a property name such as "fps".
func PropertyID(v any) (int, error) {
	if s, ok := v.(string); ok {
		if id, ok := capture.PropertyID(s); ok {
			return id, nil
		}
	}
	return Int(v)
}

// Record extracts a handle record from an argument. Maps are matched by
// tag name case-insensitively, as host structures uppercase their tags.
func Record(v any) (*handle.Record, error) {
	switch val := v.(type) {
	case *handle.Record:
		if val == nil {
			return nil, fmt.Errorf("%w: nil record", handle.ErrInvalidHandle)
		}
		return val, nil
	case handle.Record:
		return &val, nil
	case map[string]any:
		return recordFromMap(val)
	}
	return nil, fmt.Errorf("%w: argument is %T, not a structure", handle.ErrInvalidHandle, v)
}

func recordFromMap(m map[string]any) (*handle.Record, error) {
	rec := &handle.Record{}
	for k, v := range m {
		switch strings.ToLower(k) {
		case "name":
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%w: name is %T", handle.ErrInvalidHandle, v)
			}
			rec.Name = s
		case "camera":
			i, err := Int(v)
			if err != nil {
				return nil, fmt.Errorf("%w: camera: %v", handle.ErrInvalidHandle, err)
			}
			rec.Camera = int32(i)
		case "capture":
			u, err := uint64Arg(v)
			if err != nil {
				return nil, fmt.Errorf("%w: capture: %v", handle.ErrInvalidHandle, err)
			}
			rec.Capture = u
		}
	}
	return rec, nil
}

// writeBack copies rec's fields into the argument it was read from.
func writeBack(arg any, rec *handle.Record) {
	switch val := arg.(type) {
	case map[string]any:
		for k := range val {
			switch strings.ToLower(k) {
			case "camera":
				val[k] = rec.Camera
			case "capture":
				val[k] = rec.Capture
			}
		}
	}
}

func uint64Arg(v any) (uint64, error) {
	switch val := v.(type) {
	case uint64:
		return val, nil
	case int:
		if val >= 0 {
			return uint64(val), nil
		}
	case int64:
		if val >= 0 {
			return uint64(val), nil
		}
	case float64:
		if val >= 0 && val < math.MaxUint64 && val == math.Trunc(val) {
			return uint64(val), nil
		}
	case json.Number:
		return strconv.ParseUint(string(val), 10, 64)
	case string:
		return strconv.ParseUint(strings.TrimSpace(val), 10, 64)
	}
	return 0, fmt.Errorf("cannot convert %T to unsigned 64-bit integer", v)
}
