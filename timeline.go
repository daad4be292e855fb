package storyboard

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTimelineLength is the scrollable extent used when none is given.
const DefaultTimelineLength = 2000.0

// TransitionType identifies a keyframe lifecycle event.
type TransitionType uint8

const (
	TransitionEnter     TransitionType = iota // keyframe became active
	TransitionEntered                         // entry episode finished
	TransitionExit                            // keyframe became inactive
	TransitionExited                          // exit episode finished; content released
	TransitionCancelled                       // an in-flight episode was superseded
)

// String returns a short lowercase name.
func (t TransitionType) String() string {
	switch t {
	case TransitionEnter:
		return "enter"
	case TransitionEntered:
		return "entered"
	case TransitionExit:
		return "exit"
	case TransitionExited:
		return "exited"
	case TransitionCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// TransitionEvent describes one keyframe lifecycle event. Enter, Exit and
// Cancelled fire on the goroutine delivering the sample; Entered and Exited
// fire from the goroutine that finished the episode.
type TransitionEvent struct {
	Type      TransitionType
	Keyframe  *Keyframe
	Name      string
	Direction ScrollDirection
	Offset    float64
	Episode   uint64
	// Err aggregates handler failures of a finished episode.
	Err error
}

// TimelineConfig configures a Timeline. Zero values select defaults.
type TimelineConfig struct {
	// Length is the scrollable extent. Defaults to DefaultTimelineLength.
	Length float64
	// OnScroll is called with every accepted sample, before keyframes.
	OnScroll func(y float64)
	// SampleThrottle is the minimum spacing of accepted samples. Zero
	// selects DefaultSampleThrottle; negative accepts every report.
	SampleThrottle time.Duration
	// Logger is shared with every keyframe that does not set its own.
	Logger *zap.Logger
}

// Timeline owns a scroll source and the keyframes sequenced by it. Every
// keyframe reads the same sample in mount order and only touches its own
// state, so evaluation order never changes the outcome.
type Timeline struct {
	id     string
	length float64
	source *ScrollSource
	log    *zap.Logger

	scrollSub Subscription

	mu        sync.Mutex
	keyframes []*Keyframe
	listeners []transitionListener
	nextID    uint64
	closed    bool
}

type transitionListener struct {
	id uint64
	fn func(TransitionEvent)
}

// NewTimeline creates a timeline with its own ScrollSource.
func NewTimeline(cfg TimelineConfig) *Timeline {
	length := cfg.Length
	if length <= 0 {
		length = DefaultTimelineLength
	}
	t := &Timeline{
		id:     uuid.NewString(),
		length: length,
		source: NewScrollSource(cfg.SampleThrottle),
	}
	t.log = loggerOrNop(cfg.Logger).With(zap.String("timeline", t.id))
	if cfg.OnScroll != nil {
		t.scrollSub = t.source.Subscribe(cfg.OnScroll)
	}
	return t
}

// ID returns the timeline's unique identifier.
func (t *Timeline) ID() string { return t.id }

// Length returns the scrollable extent.
func (t *Timeline) Length() float64 { return t.length }

// Source returns the scroll source keyframes are subscribed to.
func (t *Timeline) Source() *ScrollSource { return t.source }

// Offset returns the current scroll offset.
func (t *Timeline) Offset() float64 { return t.source.Offset() }

// AddKeyframe validates cfg, mounts a new keyframe and returns it.
// Keyframes added later are stacked above earlier ones.
func (t *Timeline) AddKeyframe(cfg KeyframeConfig) (*Keyframe, error) {
	if cfg.Logger == nil {
		cfg.Logger = t.log
	}
	kf, err := newKeyframe(t.source, cfg, t.dispatch)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		kf.Close()
		return nil, ErrKeyframeClosed
	}
	t.keyframes = append(t.keyframes, kf)
	t.mu.Unlock()

	if cfg.Range.End > t.length {
		t.log.Warn("keyframe range extends past timeline length",
			zap.String("keyframe", kf.Name()),
			zap.Float64("end", cfg.Range.End),
			zap.Float64("length", t.length))
	}
	return kf, nil
}

// Remove unmounts kf, cancelling any in-flight episode.
func (t *Timeline) Remove(kf *Keyframe) {
	t.mu.Lock()
	for i, k := range t.keyframes {
		if k == kf {
			copy(t.keyframes[i:], t.keyframes[i+1:])
			t.keyframes[len(t.keyframes)-1] = nil
			t.keyframes = t.keyframes[:len(t.keyframes)-1]
			break
		}
	}
	t.mu.Unlock()
	kf.Close()
}

// Keyframes returns the mounted keyframes in mount order.
func (t *Timeline) Keyframes() []*Keyframe {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Keyframe(nil), t.keyframes...)
}

// Rendered returns the keyframes whose content must be drawn, bottom of the
// stack first.
func (t *Timeline) Rendered() []*Keyframe {
	var out []*Keyframe
	for _, kf := range t.Keyframes() {
		if kf.IsRendering() {
			out = append(out, kf)
		}
	}
	return out
}

// Scroll reports a raw offset to the timeline's source.
func (t *Timeline) Scroll(y float64) bool {
	return t.source.Report(y)
}

// Refresh re-broadcasts the current offset to every keyframe, bypassing the
// throttle. Useful right after mounting keyframes so content covering the
// resting offset activates without a scroll.
func (t *Timeline) Refresh() {
	y := t.source.Offset()
	for _, kf := range t.Keyframes() {
		kf.update(y)
	}
}

// Wait blocks until no keyframe has an episode goroutine running.
func (t *Timeline) Wait() {
	for _, kf := range t.Keyframes() {
		kf.Wait()
	}
}

// InFlight reports whether any mounted keyframe has an episode running.
func (t *Timeline) InFlight() bool {
	for _, kf := range t.Keyframes() {
		if kf.InFlight() {
			return true
		}
	}
	return false
}

// OnTransition registers fn for the lifecycle events of every keyframe.
func (t *Timeline) OnTransition(fn func(TransitionEvent)) TransitionHandle {
	if fn == nil {
		panic("storyboard: nil transition listener")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	t.listeners = append(t.listeners, transitionListener{id: t.nextID, fn: fn})
	return TransitionHandle{id: t.nextID, tl: t}
}

// TransitionHandle removes a listener registered with OnTransition.
type TransitionHandle struct {
	id uint64
	tl *Timeline
}

// Remove unregisters the listener. Safe to call more than once.
func (h TransitionHandle) Remove() {
	if h.tl == nil {
		return
	}
	t := h.tl
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.listeners {
		if t.listeners[i].id == h.id {
			copy(t.listeners[i:], t.listeners[i+1:])
			t.listeners[len(t.listeners)-1] = transitionListener{}
			t.listeners = t.listeners[:len(t.listeners)-1]
			return
		}
	}
}

func (t *Timeline) dispatch(ev TransitionEvent) {
	t.mu.Lock()
	listeners := append([]transitionListener(nil), t.listeners...)
	t.mu.Unlock()

	t.log.Debug("transition",
		zap.String("keyframe", ev.Name),
		zap.Stringer("type", ev.Type),
		zap.Stringer("direction", ev.Direction),
		zap.Float64("offset", ev.Offset),
		zap.Uint64("episode", ev.Episode))
	for _, l := range listeners {
		l.fn(ev)
	}
}

// Close unmounts every keyframe and detaches the scroll observer.
func (t *Timeline) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	kfs := t.keyframes
	t.keyframes = nil
	t.mu.Unlock()

	for _, kf := range kfs {
		kf.Close()
	}
	t.scrollSub.Remove()
}
