package bridge

import "time"

// Session lifecycle event types.
const (
	EventOpened   = "opened"
	EventReleased = "released"
)

// Event describes a session being opened or released.
type Event struct {
	Type    string    `json:"type"`
	Session string    `json:"session"`
	Camera  int       `json:"camera"`
	Path    string    `json:"path,omitempty"`
	Token   uint64    `json:"token"`
	Time    time.Time `json:"time"`
}

// WithEvents calls fn for every session opened or released, including
// sessions released by Close. fn runs with the bridge locked and must not
// block or call back into the bridge.
func WithEvents(fn func(Event)) Option {
	return func(b *Bridge) {
		b.notify = fn
	}
}

func (b *Bridge) emit(typ string, s *session, token uint64) {
	if b.notify == nil {
		return
	}
	b.notify(Event{
		Type:    typ,
		Session: s.id,
		Camera:  s.camera,
		Path:    s.path,
		Token:   token,
		Time:    time.Now(),
	})
}
