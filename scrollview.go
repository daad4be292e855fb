package storyboard

import (
	"math"

	"github.com/charmbracelet/harmonica"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// Scroll physics defaults.
const (
	// DefaultDeceleration is the per-millisecond velocity retention of a
	// fling, the "fast" rate used by touch platforms.
	DefaultDeceleration = 0.99
	// DefaultOverscroll is how far past either end a drag may pull.
	DefaultOverscroll = 120.0
	// DefaultSpringFrequency and DefaultSpringDamping shape the bounce back
	// from overscroll. A damping ratio of 1 is critically damped.
	DefaultSpringFrequency = 7.0
	DefaultSpringDamping   = 1.0

	rubberBand      = 0.5
	minFlingSpeed   = 5.0 // px/s
	springRestDelta = 0.5
	springRestSpeed = 1.0
)

// GesturePhase identifies the stage of a drag gesture.
type GesturePhase uint8

const (
	GestureBegin GesturePhase = iota
	GestureUpdate
	GestureEnd
)

// GestureEvent is a vertical drag step. DeltaY is the finger movement since
// the previous event in screen pixels (positive is downward, which scrolls
// the content back toward the top). VelocityY is the release velocity in px/s
// and is only read on GestureEnd.
type GestureEvent struct {
	Phase     GesturePhase
	DeltaY    float64
	VelocityY float64
}

// ScrollViewConfig configures a ScrollView. Zero values select defaults.
type ScrollViewConfig struct {
	// ContentLength is the scrollable content height. Defaults to
	// DefaultTimelineLength.
	ContentLength float64
	// ViewportHeight is the visible height. The maximum offset is
	// ContentLength - ViewportHeight.
	ViewportHeight float64
	// Deceleration is the fraction of fling velocity kept per millisecond.
	Deceleration float64
	// Overscroll limits the rubber-band distance. Negative disables
	// overscroll entirely.
	Overscroll float64
	// SpringFrequency and SpringDamping tune the bounce back.
	SpringFrequency float64
	SpringDamping   float64
	// FPS is the frame rate the bounce spring is stepped at. Defaults to 60.
	FPS int
}

// ScrollView turns drags, wheel steps and programmatic scrolls into offsets
// and reports them to a ScrollSource once per Update. It is not safe for
// concurrent use; drive it from the frame loop.
type ScrollView struct {
	src *ScrollSource

	content    float64
	viewport   float64
	decel      float64
	overscroll float64
	spring     harmonica.Spring

	offset    float64
	velocity  float64 // fling, px/s of offset
	springVel float64
	dragging  bool
	tween     *gween.Tween

	reported     float64
	haveReported bool
}

// NewScrollView creates a view reporting to src.
func NewScrollView(src *ScrollSource, cfg ScrollViewConfig) *ScrollView {
	if src == nil {
		panic("storyboard: NewScrollView requires a source")
	}
	if cfg.ContentLength <= 0 {
		cfg.ContentLength = DefaultTimelineLength
	}
	if cfg.Deceleration <= 0 || cfg.Deceleration >= 1 {
		cfg.Deceleration = DefaultDeceleration
	}
	if cfg.Overscroll == 0 {
		cfg.Overscroll = DefaultOverscroll
	}
	if cfg.SpringFrequency <= 0 {
		cfg.SpringFrequency = DefaultSpringFrequency
	}
	if cfg.SpringDamping <= 0 {
		cfg.SpringDamping = DefaultSpringDamping
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 60
	}
	return &ScrollView{
		src:        src,
		content:    cfg.ContentLength,
		viewport:   cfg.ViewportHeight,
		decel:      cfg.Deceleration,
		overscroll: cfg.Overscroll,
		spring:     harmonica.NewSpring(harmonica.FPS(cfg.FPS), cfg.SpringFrequency, cfg.SpringDamping),
	}
}

// Offset returns the current scroll offset, which may lie outside
// [0, MaxOffset] while overscrolled.
func (v *ScrollView) Offset() float64 { return v.offset }

// Velocity returns the current fling velocity in px/s.
func (v *ScrollView) Velocity() float64 { return v.velocity }

// Dragging reports whether a drag gesture is in progress.
func (v *ScrollView) Dragging() bool { return v.dragging }

// MaxOffset returns the largest resting offset.
func (v *ScrollView) MaxOffset() float64 {
	return math.Max(0, v.content-v.viewport)
}

// SetViewportHeight updates the visible height, e.g. after a window resize.
func (v *ScrollView) SetViewportHeight(h float64) {
	v.viewport = h
}

// Settled reports whether the view is at rest inside its bounds with nothing
// left to deliver.
func (v *ScrollView) Settled() bool {
	return !v.dragging && v.tween == nil && v.velocity == 0 && v.springVel == 0 &&
		v.offset == v.clamp(v.offset) && !v.src.Pending()
}

// HandleGesture applies one drag step. Beginning a drag stops any fling,
// bounce or programmatic scroll.
func (v *ScrollView) HandleGesture(ev GestureEvent) {
	switch ev.Phase {
	case GestureBegin:
		v.dragging = true
		v.stopMotion()
		v.drag(ev.DeltaY)
	case GestureUpdate:
		if !v.dragging {
			v.dragging = true
			v.stopMotion()
		}
		v.drag(ev.DeltaY)
	case GestureEnd:
		v.drag(ev.DeltaY)
		v.dragging = false
		v.velocity = -ev.VelocityY
		if v.offset != v.clamp(v.offset) {
			// Release while overscrolled: the spring takes over.
			v.springVel = v.velocity
			v.velocity = 0
		}
	}
}

func (v *ScrollView) drag(dy float64) {
	if dy == 0 {
		return
	}
	d := -dy
	if v.overscroll < 0 {
		v.offset = v.clamp(v.offset + d)
		return
	}
	if v.outOfBounds(v.offset) || v.outOfBounds(v.offset+d) {
		d *= rubberBand
	}
	v.offset = math.Max(-v.overscroll, math.Min(v.MaxOffset()+v.overscroll, v.offset+d))
}

// ScrollBy moves the offset by dy immediately, clamped to the bounds. Used
// for wheel input.
func (v *ScrollView) ScrollBy(dy float64) {
	v.stopMotion()
	v.offset = v.clamp(v.offset + dy)
}

// ScrollTo animates the offset to y (clamped to the bounds) over duration
// seconds. A non-positive duration jumps.
func (v *ScrollView) ScrollTo(y float64, duration float32, fn ease.TweenFunc) {
	v.stopMotion()
	y = v.clamp(y)
	if duration <= 0 {
		v.offset = y
		return
	}
	if fn == nil {
		fn = ease.OutCubic
	}
	v.tween = gween.New(float32(v.offset), float32(y), duration, fn)
}

func (v *ScrollView) stopMotion() {
	v.velocity = 0
	v.springVel = 0
	v.tween = nil
}

// Update advances momentum, bounce back and programmatic scrolls by dt
// seconds, then reports the offset to the source and flushes any coalesced
// sample.
func (v *ScrollView) Update(dt float64) {
	switch {
	case v.dragging:
	case v.tween != nil:
		val, done := v.tween.Update(float32(dt))
		v.offset = float64(val)
		if done {
			v.tween = nil
		}
	case v.outOfBounds(v.offset) || v.springVel != 0:
		v.bounce()
	case v.velocity != 0:
		v.fling(dt)
	}
	v.report()
}

func (v *ScrollView) fling(dt float64) {
	next := v.offset + v.velocity*dt
	v.velocity *= math.Pow(v.decel, dt*1000)
	if math.Abs(v.velocity) < minFlingSpeed {
		v.velocity = 0
	}
	if v.outOfBounds(next) {
		if v.overscroll < 0 {
			v.offset = v.clamp(next)
			v.velocity = 0
			return
		}
		v.springVel = v.velocity
		v.velocity = 0
	}
	v.offset = next
}

func (v *ScrollView) bounce() {
	target := v.clamp(v.offset)
	v.offset, v.springVel = v.spring.Update(v.offset, v.springVel, target)
	v.offset = math.Max(-v.overscroll, math.Min(v.MaxOffset()+v.overscroll, v.offset))
	if math.Abs(v.offset-target) < springRestDelta && math.Abs(v.springVel) < springRestSpeed {
		v.offset = target
		v.springVel = 0
	}
}

func (v *ScrollView) report() {
	if !v.haveReported || v.offset != v.reported {
		v.reported = v.offset
		v.haveReported = true
		v.src.Report(v.offset)
	}
	v.src.Flush()
}

func (v *ScrollView) clamp(y float64) float64 {
	return math.Max(0, math.Min(v.MaxOffset(), y))
}

func (v *ScrollView) outOfBounds(y float64) bool {
	return y < 0 || y > v.MaxOffset()
}
