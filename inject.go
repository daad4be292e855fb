package storyboard

// syntheticEvent is a single injected pointer or wheel event. Pointer events
// drive pointer 0, the same slot as the mouse.
type syntheticEvent struct {
	x, y    float64
	pressed bool
	wheel   float64
}

// InjectPress queues a pointer press at the given screen coordinates. The
// event is consumed on the next frame's Update call.
func (in *Input) InjectPress(x, y float64) {
	in.injectQueue = append(in.injectQueue, syntheticEvent{x: x, y: y, pressed: true})
}

// InjectMove queues a pointer move with the button held down. Use this
// between InjectPress and InjectRelease to simulate a drag.
func (in *Input) InjectMove(x, y float64) {
	in.injectQueue = append(in.injectQueue, syntheticEvent{x: x, y: y, pressed: true})
}

// InjectRelease queues a pointer release at the given screen coordinates.
func (in *Input) InjectRelease(x, y float64) {
	in.injectQueue = append(in.injectQueue, syntheticEvent{x: x, y: y})
}

// InjectWheel queues a wheel step of dy notches (positive is wheel-up).
func (in *Input) InjectWheel(dy float64) {
	in.injectQueue = append(in.injectQueue, syntheticEvent{wheel: dy})
}

// InjectDrag queues a full drag sequence: press at (x, fromY), linearly
// interpolated moves over frames-2 intermediate frames, and release at
// (x, toY). The total sequence consumes `frames` frames. Minimum frames is 2
// (press + release).
func (in *Input) InjectDrag(x, fromY, toY float64, frames int) {
	if frames < 2 {
		frames = 2
	}
	in.InjectPress(x, fromY)
	steps := frames - 2
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps+1)
		in.InjectMove(x, fromY+(toY-fromY)*t)
	}
	in.InjectRelease(x, toY)
}

// Pending returns the number of queued synthetic events.
func (in *Input) Pending() int {
	return len(in.injectQueue)
}

// processInjected pops one event from the inject queue and feeds it through
// the same path as device input. Returns true if an event was consumed (real
// device input is skipped for that frame).
func (in *Input) processInjected(target GestureTarget, dt float64) bool {
	if len(in.injectQueue) == 0 {
		return false
	}
	evt := in.injectQueue[0]
	copy(in.injectQueue, in.injectQueue[1:])
	in.injectQueue = in.injectQueue[:len(in.injectQueue)-1]

	if evt.wheel != 0 {
		in.applyWheel(target, evt.wheel)
		return true
	}
	in.processPointer(target, 0, evt.x, evt.y, evt.pressed, dt)
	return true
}
