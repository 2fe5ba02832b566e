// Package handle wraps capture sessions in tagged records that can cross
// the host boundary and be validated when they come back.
package handle

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Sentinel errors for handle validation.
var (
	// ErrInvalidHandle is returned when a record is missing or carries the
	// wrong type tag.
	ErrInvalidHandle = errors.New("handle: not a valid camera")

	// ErrInaccessibleHandle is returned when a record has the right tag but
	// its session token is zero, unknown or already released.
	ErrInaccessibleHandle = errors.New("handle: could not access camera data")
)

// Kind identifies what a record refers to.
type Kind int

const (
	// KindCamera is a capture session opened from a camera or video file.
	KindCamera Kind = iota + 1
)

// Tag returns the structure name the host sees for records of this kind.
func (k Kind) Tag() string {
	switch k {
	case KindCamera:
		return CameraTag
	default:
		return ""
	}
}

func (k Kind) String() string {
	if t := k.Tag(); t != "" {
		return t
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// CameraTag is the fixed structure name of capture records.
const CameraTag = "FRAMEBRIDGE_CAPTURE"

// RecordSize is the length of a record's binary form.
const RecordSize = 16

// Record is the host-visible form of a capture session: a named two-field
// structure {CAMERA: int32, CAPTURE: uint64}. Capture is an opaque token;
// callers must not interpret it.
type Record struct {
	Name    string `json:"name"`
	Camera  int32  `json:"camera"`
	Capture uint64 `json:"capture"`

	// pad holds the alignment bytes between Camera and Capture so that a
	// decoded record encodes back to the same bytes.
	pad [4]byte
}

// NewRecord returns a record of the given kind.
func NewRecord(kind Kind, camera int32, token uint64) *Record {
	return &Record{Name: kind.Tag(), Camera: camera, Capture: token}
}

// Validate confirms rec is tagged as kind and returns its session token.
// The token is never looked at when the tag does not match.
func Validate(rec *Record, kind Kind) (uint64, error) {
	if rec == nil {
		return 0, fmt.Errorf("%w: nil record", ErrInvalidHandle)
	}
	if rec.Name != kind.Tag() {
		return 0, fmt.Errorf("%w: got %q, want %q", ErrInvalidHandle, rec.Name, kind.Tag())
	}
	if rec.Capture == 0 {
		return 0, ErrInaccessibleHandle
	}
	return rec.Capture, nil
}

// Zero clears the session fields so a stale copy reads as closed.
func (r *Record) Zero() {
	r.Camera = 0
	r.Capture = 0
}

// MarshalBinary encodes the record as the host lays out the structure:
// little-endian int32 at offset 0, four alignment bytes, uint64 at offset 8.
// The name is not part of the payload. This form is for hosts embedding the
// package; the JSON transports carry records as objects.
func (r *Record) MarshalBinary() ([]byte, error) {
	buf := make([]byte, RecordSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(r.Camera))
	copy(buf[4:8], r.pad[:])
	binary.LittleEndian.PutUint64(buf[8:16], r.Capture)
	return buf, nil
}

// UnmarshalBinary decodes a payload produced by MarshalBinary. The name is
// left unchanged.
func (r *Record) UnmarshalBinary(data []byte) error {
	if len(data) != RecordSize {
		return fmt.Errorf("%w: payload is %d bytes, want %d", ErrInvalidHandle, len(data), RecordSize)
	}
	r.Camera = int32(binary.LittleEndian.Uint32(data[0:4]))
	copy(r.pad[:], data[4:8])
	r.Capture = binary.LittleEndian.Uint64(data[8:16])
	return nil
}
