package dlm

import (
	"context"

	"github.com/teslashibe/go-framebridge/pkg/bridge"
)

// Routine names exported to the host.
const (
	CaptureFromCam  = "FRAMEBRIDGE_CAPTUREFROMCAM"
	CaptureFromFile = "FRAMEBRIDGE_CAPTUREFROMFILE"
	ReleaseCapture  = "FRAMEBRIDGE_RELEASECAPTURE"
	Read            = "FRAMEBRIDGE_READ"
	GetProperty     = "FRAMEBRIDGE_GETPROPERTY"
	SetProperty     = "FRAMEBRIDGE_SETPROPERTY"
)

// Load registers the bridge routines in t.
func Load(t *Table, b *bridge.Bridge) error {
	return t.Add(
		Routine{
			Name: CaptureFromCam, MinArgs: 0, MaxArgs: 1,
			Fn: func(ctx context.Context, args []any) (any, error) {
				if len(args) == 0 || args[0] == nil {
					return b.Open(ctx, nil)
				}
				camera, err := Int(args[0])
				if err != nil {
					return nil, err
				}
				return b.Open(ctx, &camera)
			},
		},
		Routine{
			Name: CaptureFromFile, MinArgs: 1, MaxArgs: 1,
			Fn: func(ctx context.Context, args []any) (any, error) {
				path, ok := args[0].(string)
				if !ok || path == "" {
					return nil, ErrBadArgument
				}
				return b.OpenFile(ctx, path)
			},
		},
		Routine{
			Name: ReleaseCapture, MinArgs: 1, MaxArgs: 1, Procedure: true,
			Fn: func(ctx context.Context, args []any) (any, error) {
				rec, err := Record(args[0])
				if err != nil {
					return nil, err
				}
				err = b.Release(rec)
				writeBack(args[0], rec)
				return nil, err
			},
		},
		Routine{
			Name: Read, MinArgs: 1, MaxArgs: 2,
			Fn: func(ctx context.Context, args []any) (any, error) {
				rec, err := Record(args[0])
				if err != nil {
					return nil, err
				}
				gray := false
				if len(args) == 2 && args[1] != nil {
					if gray, err = Bool(args[1]); err != nil {
						return nil, err
					}
				}
				return b.Read(ctx, rec, gray)
			},
		},
		Routine{
			Name: GetProperty, MinArgs: 2, MaxArgs: 2,
			Fn: func(ctx context.Context, args []any) (any, error) {
				rec, err := Record(args[0])
				if err != nil {
					return nil, err
				}
				id, err := PropertyID(args[1])
				if err != nil {
					return nil, err
				}
				return b.GetProperty(rec, id)
			},
		},
		Routine{
			Name: SetProperty, MinArgs: 3, MaxArgs: 3,
			Fn: func(ctx context.Context, args []any) (any, error) {
				rec, err := Record(args[0])
				if err != nil {
					return nil, err
				}
				id, err := PropertyID(args[1])
				if err != nil {
					return nil, err
				}
				value, err := Float(args[2])
				if err != nil {
					return nil, err
				}
				return b.SetProperty(rec, id, value)
			},
		},
	)
}
