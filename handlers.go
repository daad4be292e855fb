package storyboard

import (
	"context"
	"sync"
)

// Handler is an asynchronous animation step run during an entry or exit
// episode. It returns when its animation has finished. ctx is cancelled when
// the episode is superseded, the keyframe is closed, or the handler timeout
// expires; handlers should return promptly once it is done.
type Handler func(ctx context.Context, dir ScrollDirection) error

// DirectionalFunc starts an animation for dir and calls complete when it
// finishes. Only the first call to complete counts.
type DirectionalFunc func(dir ScrollDirection, complete func())

// Directional adapts fn into a Handler that waits for complete or for ctx.
// complete may be called from any goroutine, including synchronously from
// inside fn.
func Directional(fn DirectionalFunc) Handler {
	if fn == nil {
		panic("storyboard: nil directional func")
	}
	return func(ctx context.Context, dir ScrollDirection) error {
		done := make(chan struct{})
		var once sync.Once
		fn(dir, func() { once.Do(func() { close(done) }) })
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// --- Registry ---

type registeredHandler struct {
	id uint64
	fn Handler
}

type stateObserver struct {
	id uint64
	fn func(State)
}

// handlerSet keeps handlers in registration order. Each registration gets its
// own id, so registering the same function twice yields two members with two
// independent handles.
type handlerSet struct {
	items []registeredHandler
}

func (s *handlerSet) add(id uint64, fn Handler) {
	s.items = append(s.items, registeredHandler{id: id, fn: fn})
}

func (s *handlerSet) remove(id uint64) bool {
	for i := range s.items {
		if s.items[i].id == id {
			copy(s.items[i:], s.items[i+1:])
			s.items[len(s.items)-1] = registeredHandler{}
			s.items = s.items[:len(s.items)-1]
			return true
		}
	}
	return false
}

func (s *handlerSet) len() int {
	return len(s.items)
}

// snapshot copies the current members. An episode runs against its snapshot,
// so later registrations never join an episode that has already started.
func (s *handlerSet) snapshot() []registeredHandler {
	return append([]registeredHandler(nil), s.items...)
}

func (s *handlerSet) clear() {
	s.items = nil
}

// --- Handles ---

type registrationKind uint8

const (
	registrationEntry registrationKind = iota
	registrationExit
	registrationObserver
)

// Registration is the disposer returned by the keyframe registration methods.
// The zero value is inert.
type Registration struct {
	id   uint64
	kf   *Keyframe
	kind registrationKind
}

// Remove unregisters the handler or observer. Safe to call more than once.
// An episode already running keeps the handler in its snapshot.
func (r Registration) Remove() {
	if r.kf == nil {
		return
	}
	r.kf.unregister(r)
}
