// Package frame implements the display collaborator for hosts that drive a
// real web view out of process. The recorder keeps the latest render and the
// host reports when it has finished loading.
package frame

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/infodancer/shellauth"
)

// ErrStaleFrame is returned by Loaded for a handle that has been replaced by
// a later render or was never issued.
var ErrStaleFrame = errors.New("frame handle is not current")

// Recorder implements shellauth.Renderer. It is safe for concurrent use.
type Recorder struct {
	now func() time.Time

	mu       sync.Mutex
	current  *shellauth.FrameHandle
	loaded   bool
	renders  int
	onLoaded []func(shellauth.FrameHandle)
}

var _ shellauth.Renderer = (*Recorder)(nil)

// NewRecorder creates a recorder with nothing rendered.
func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

// Render replaces the current frame with url and returns its handle.
func (r *Recorder) Render(ctx context.Context, url string) (shellauth.FrameHandle, error) {
	if err := ctx.Err(); err != nil {
		return shellauth.FrameHandle{}, err
	}
	h := shellauth.FrameHandle{
		ID:         uuid.NewString(),
		URL:        url,
		RenderedAt: r.now(),
	}

	r.mu.Lock()
	r.current = &h
	r.loaded = false
	r.renders++
	r.mu.Unlock()
	return h, nil
}

// OnLoaded registers fn for load signals.
func (r *Recorder) OnLoaded(fn func(shellauth.FrameHandle)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onLoaded = append(r.onLoaded, fn)
}

// Current returns the latest render and whether it has loaded.
// ok is false if nothing has been rendered.
func (r *Recorder) Current() (h shellauth.FrameHandle, loaded, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return shellauth.FrameHandle{}, false, false
	}
	return *r.current, r.loaded, true
}

// Renders returns how many renders have been issued.
func (r *Recorder) Renders() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.renders
}

// Loaded reports that the frame with id finished loading. Listeners fire
// once per handle; repeated reports for the same handle are ignored.
func (r *Recorder) Loaded(id string) error {
	r.mu.Lock()
	if r.current == nil || r.current.ID != id {
		r.mu.Unlock()
		return ErrStaleFrame
	}
	if r.loaded {
		r.mu.Unlock()
		return nil
	}
	r.loaded = true
	h := *r.current
	listeners := make([]func(shellauth.FrameHandle), len(r.onLoaded))
	copy(listeners, r.onLoaded)
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(h)
	}
	return nil
}
