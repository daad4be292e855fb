package storyboard

import "testing"

func TestInjectDrag(t *testing.T) {
	in := newHeadlessInput()
	rec := &gestureRecorder{}

	// frame 0: press at 500
	// frames 1-4: moves of -40
	// frame 5: release at 300
	in.InjectDrag(100, 500, 300, 6)
	if in.Pending() != 6 {
		t.Fatalf("expected 6 queued events, got %d", in.Pending())
	}

	for range 6 {
		in.Update(rec, frame)
	}
	if in.Pending() != 0 {
		t.Fatalf("queue not drained: %d", in.Pending())
	}

	phases := rec.phases()
	if phases[0] != GestureBegin || phases[len(phases)-1] != GestureEnd {
		t.Errorf("phases = %v", phases)
	}
	if rec.totalDelta() != -200 {
		t.Errorf("total delta = %v, want -200", rec.totalDelta())
	}
	if v := rec.gestures[len(rec.gestures)-1].VelocityY; v >= 0 {
		t.Errorf("release velocity = %v, want negative", v)
	}
}

func TestInjectDrag_MinFrames(t *testing.T) {
	in := newHeadlessInput()
	in.InjectDrag(0, 0, 100, 0)
	if in.Pending() != 2 {
		t.Errorf("expected 2 events (press+release), got %d", in.Pending())
	}
}

func TestInjectQueueOrder(t *testing.T) {
	in := newHeadlessInput()
	in.InjectPress(0, 10)
	in.InjectMove(0, 20)
	in.InjectWheel(1)
	in.InjectRelease(0, 30)

	if in.injectQueue[0].y != 10 || !in.injectQueue[0].pressed {
		t.Error("event 0 should be press at 10")
	}
	if in.injectQueue[1].y != 20 || !in.injectQueue[1].pressed {
		t.Error("event 1 should be move at 20")
	}
	if in.injectQueue[2].wheel != 1 {
		t.Error("event 2 should be a wheel step")
	}
	if in.injectQueue[3].y != 30 || in.injectQueue[3].pressed {
		t.Error("event 3 should be release at 30")
	}
}

func TestProcessInjectedInput_EmptyQueue(t *testing.T) {
	in := newHeadlessInput()
	if in.processInjected(&gestureRecorder{}, frame) {
		t.Error("expected false for empty queue")
	}
}

func TestInjectedDragScrollsView(t *testing.T) {
	v, _ := newTestView(ScrollViewConfig{})
	in := newHeadlessInput()

	in.InjectDrag(0, 600, 400, 10)
	for range 10 {
		in.Update(v, frame)
		v.Update(frame)
	}
	if v.Offset() < 200 {
		t.Errorf("Offset() = %v, want at least the dragged 200", v.Offset())
	}
	settle(v, 600)
	if !v.Settled() {
		t.Fatal("view did not settle after the fling")
	}
	if v.Offset() <= 200 {
		t.Errorf("Offset() = %v, want momentum past 200", v.Offset())
	}
}
