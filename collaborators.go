package shellauth

import (
	"context"
	"time"
)

// SessionStore persists the current session record.
// Implementations must tolerate storage failures: errors are returned to the
// caller, never panicked, and a malformed record is reported as absent.
type SessionStore interface {
	// Save persists s. Only active identities may be saved.
	Save(ctx context.Context, s Session) error

	// Load returns the persisted session, or nil if there is none.
	// Returns nil, nil for malformed records after clearing them.
	Load(ctx context.Context) (*Session, error)

	// Clear removes the persisted session. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// FrameHandle identifies one render of the embedded frame.
type FrameHandle struct {
	// ID is unique per render.
	ID string

	// URL is the address loaded into the frame.
	URL string

	// RenderedAt is when the render was issued.
	RenderedAt time.Time
}

// Renderer displays remote content in the shell's sandboxed frame.
// It is the only contact the core has with the display.
type Renderer interface {
	// Render loads url into the frame, replacing whatever was shown.
	Render(ctx context.Context, url string) (FrameHandle, error)

	// OnLoaded registers fn to be called when a rendered frame finishes loading.
	OnLoaded(fn func(FrameHandle))
}

// Severity classifies user-visible notifications.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

// String returns the lowercase severity name.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

// Notification is a transient, dismissable message for the user.
type Notification struct {
	Severity Severity
	Title    string
	Message  string
}

// Notifier shows notifications to the user.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(Notification)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notification) {
	f(n)
}
