package storyboard

import (
	"errors"
	"fmt"
)

// ErrInvalidRange is returned when a keyframe is configured with start >= end.
// It is a configuration error: the keyframe is never created.
var ErrInvalidRange = errors.New("storyboard: invalid scroll range")

// ErrKeyframeClosed is returned by operations on a keyframe that has been
// removed from its timeline.
var ErrKeyframeClosed = errors.New("storyboard: keyframe closed")

// Phase identifies the kind of episode a handler runs in.
type Phase uint8

const (
	PhaseEntry Phase = iota // handlers registered with RegisterEntryHandler
	PhaseExit               // handlers registered with RegisterExitHandler
)

// String returns "entry" or "exit".
func (p Phase) String() string {
	if p == PhaseExit {
		return "exit"
	}
	return "entry"
}

// HandlerError wraps a failure of a single handler within an episode. It is
// logged and reported through TransitionEvent.Err, never returned to the
// code delivering scroll samples.
type HandlerError struct {
	Keyframe string
	Phase    Phase
	Err      error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("storyboard: %s handler of keyframe %q: %v", e.Phase, e.Keyframe, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// panicError carries a recovered handler panic.
type panicError struct {
	value any
}

func (e panicError) Error() string {
	return fmt.Sprintf("handler panic: %v", e.value)
}
