package storyboard

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// --- Constants ---

const (
	maxPointers         = 10   // pointer 0 = mouse, 1-9 = touch
	defaultDragDeadZone = 4.0  // pixels
	defaultWheelStep    = 40.0 // pixels per wheel notch
	velocitySmoothing   = 0.8  // weight of the newest sample
	releaseIdle         = 0.1  // seconds held still before a release stops dead
)

// GestureTarget receives the gestures recognized by Input. ScrollView
// implements it.
type GestureTarget interface {
	HandleGesture(GestureEvent)
	ScrollBy(dy float64)
}

// InputConfig configures an Input. Zero values select defaults.
type InputConfig struct {
	// DragDeadZone is how far a pointer must move before a drag begins.
	DragDeadZone float64
	// WheelStep is the offset change per wheel notch.
	WheelStep float64
	// DisableDevices stops polling the mouse, touches and wheel. Only
	// injected events are processed. Used for headless replays.
	DisableDevices bool
}

// --- Per-pointer state ---

type pointerState struct {
	down      bool
	dragging  bool
	startX    float64
	startY    float64
	lastX     float64
	lastY     float64
	velocityY float64 // px/s, smoothed
	idle      float64 // seconds since the last move
}

// Input turns pointer, touch and wheel input into vertical scroll gestures.
// Only one pointer drives a gesture at a time; the first to leave the drag
// dead zone wins until it is released.
type Input struct {
	pointers     [maxPointers]pointerState
	touchMap     [maxPointers]ebiten.TouchID
	touchUsed    [maxPointers]bool
	prevTouchIDs []ebiten.TouchID
	active       int

	dragDeadZone float64
	wheelStep    float64
	devices      bool

	injectQueue []syntheticEvent
}

// NewInput creates an Input.
func NewInput(cfg InputConfig) *Input {
	if cfg.DragDeadZone <= 0 {
		cfg.DragDeadZone = defaultDragDeadZone
	}
	if cfg.WheelStep <= 0 {
		cfg.WheelStep = defaultWheelStep
	}
	return &Input{
		active:       -1,
		dragDeadZone: cfg.DragDeadZone,
		wheelStep:    cfg.WheelStep,
		devices:      !cfg.DisableDevices,
	}
}

// SetDragDeadZone sets the drag threshold in pixels.
func (in *Input) SetDragDeadZone(pixels float64) {
	in.dragDeadZone = pixels
}

// Dragging reports whether a pointer is currently driving a drag.
func (in *Input) Dragging() bool {
	return in.active >= 0
}

// --- Input processing ---

// Update processes one frame of input and forwards recognized gestures to
// target. A queued synthetic event replaces device input for the frame.
func (in *Input) Update(target GestureTarget, dt float64) {
	if in.processInjected(target, dt) {
		return
	}
	if !in.devices {
		return
	}
	in.processMousePointer(target, dt)
	in.processTouchPointers(target, dt)
	in.processWheel(target)
}

func (in *Input) processMousePointer(target GestureTarget, dt float64) {
	mx, my := ebiten.CursorPosition()
	pressed := ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft)
	in.processPointer(target, 0, float64(mx), float64(my), pressed, dt)
}

// processTouchPointers handles touch input (pointers 1-9).
func (in *Input) processTouchPointers(target GestureTarget, dt float64) {
	touchIDs := ebiten.AppendTouchIDs(in.prevTouchIDs[:0])
	in.prevTouchIDs = touchIDs

	var activeSlots [maxPointers]bool
	for _, tid := range touchIDs {
		slot := in.touchSlot(tid)
		if slot < 0 {
			continue
		}
		activeSlots[slot] = true

		tx, ty := ebiten.TouchPosition(tid)
		in.processPointer(target, slot, float64(tx), float64(ty), true, dt)
	}

	// Release any touch slots that are no longer active.
	for i := 1; i < maxPointers; i++ {
		if in.touchUsed[i] && !activeSlots[i] {
			ps := &in.pointers[i]
			if ps.down {
				in.processPointer(target, i, ps.lastX, ps.lastY, false, dt)
			}
			in.touchUsed[i] = false
			in.touchMap[i] = 0
		}
	}
}

// touchSlot maps an ebiten.TouchID to a pointer slot (1-9).
// Returns the existing slot or allocates a new one. Returns -1 if full.
func (in *Input) touchSlot(tid ebiten.TouchID) int {
	for i := 1; i < maxPointers; i++ {
		if in.touchUsed[i] && in.touchMap[i] == tid {
			return i
		}
	}
	for i := 1; i < maxPointers; i++ {
		if !in.touchUsed[i] {
			in.touchUsed[i] = true
			in.touchMap[i] = tid
			return i
		}
	}
	return -1
}

func (in *Input) processWheel(target GestureTarget) {
	_, dy := ebiten.Wheel()
	in.applyWheel(target, dy)
}

// applyWheel scrolls by whole notches. Positive dy is wheel-up, toward the
// top of the content.
func (in *Input) applyWheel(target GestureTarget, dy float64) {
	if dy == 0 || in.active >= 0 {
		return
	}
	target.ScrollBy(-dy * in.wheelStep)
}

// processPointer runs the pointer state machine for a single pointer.
func (in *Input) processPointer(target GestureTarget, pointerID int, x, y float64, pressed bool, dt float64) {
	ps := &in.pointers[pointerID]

	switch {
	case pressed && !ps.down:
		*ps = pointerState{down: true, startX: x, startY: y, lastX: x, lastY: y}

	case !pressed && ps.down:
		if ps.dragging && in.active == pointerID {
			vel := ps.velocityY
			if ps.idle >= releaseIdle {
				vel = 0
			}
			target.HandleGesture(GestureEvent{Phase: GestureEnd, DeltaY: y - ps.lastY, VelocityY: vel})
			in.active = -1
		}
		ps.down = false
		ps.dragging = false

	case pressed && ps.down:
		if x == ps.lastX && y == ps.lastY {
			ps.idle += dt
			return
		}
		if !ps.dragging && in.active < 0 {
			dx := x - ps.startX
			dy := y - ps.startY
			if math.Sqrt(dx*dx+dy*dy) > in.dragDeadZone {
				ps.dragging = true
				in.active = pointerID
				target.HandleGesture(GestureEvent{Phase: GestureBegin, DeltaY: ps.lastY - ps.startY})
			}
		}
		if ps.dragging {
			if dt > 0 {
				inst := (y - ps.lastY) / dt
				ps.velocityY = velocitySmoothing*inst + (1-velocitySmoothing)*ps.velocityY
			}
			target.HandleGesture(GestureEvent{Phase: GestureUpdate, DeltaY: y - ps.lastY})
		}
		ps.idle = 0
		ps.lastX = x
		ps.lastY = y
	}
}
