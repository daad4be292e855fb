package ecs

import (
	"sync"
	"testing"

	"github.com/phanxgames/storyboard"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
)

func newTimeline(t *testing.T) (*storyboard.Timeline, *storyboard.Keyframe) {
	t.Helper()
	tl := storyboard.NewTimeline(storyboard.TimelineConfig{SampleThrottle: -1})
	t.Cleanup(tl.Close)
	kf, err := tl.AddKeyframe(storyboard.KeyframeConfig{
		Name:  "intro",
		Range: storyboard.ScrollRange{Start: 100, End: 200},
	})
	if err != nil {
		t.Fatal(err)
	}
	return tl, kf
}

func TestNewDonburiSink(t *testing.T) {
	sink := NewDonburiSink(donburi.NewWorld())
	if sink == nil {
		t.Fatal("NewDonburiSink returned nil")
	}
	if sink.Flush() != 0 {
		t.Error("empty sink published events")
	}
}

func TestSinkPublishesTransitions(t *testing.T) {
	world := donburi.NewWorld()
	sink := NewDonburiSink(world)
	tl, _ := newTimeline(t)
	sink.Attach(tl)

	var received []storyboard.TransitionEvent
	TransitionEventType.Subscribe(world, func(w donburi.World, e storyboard.TransitionEvent) {
		received = append(received, e)
	})

	tl.Scroll(150)
	tl.Scroll(300)

	if n := sink.Flush(); n != 3 {
		t.Fatalf("Flush() = %d, want 3", n)
	}
	// Events are queued in the world until processed.
	if len(received) != 0 {
		t.Fatal("events delivered before ProcessEvents")
	}
	TransitionEventType.ProcessEvents(world)

	want := []storyboard.TransitionType{
		storyboard.TransitionEnter,
		storyboard.TransitionExit,
		storyboard.TransitionExited,
	}
	if len(received) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(received))
	}
	for i, typ := range want {
		if received[i].Type != typ || received[i].Name != "intro" {
			t.Errorf("event %d: %+v", i, received[i])
		}
	}
	if received[1].Direction != storyboard.ScrollBottom {
		t.Errorf("exit direction = %v, want bottom", received[1].Direction)
	}
}

func TestSinkMirrorsKeyframeState(t *testing.T) {
	world := donburi.NewWorld()
	sink := NewDonburiSink(world)
	tl, kf := newTimeline(t)
	sink.Attach(tl)

	tl.Scroll(150)
	sink.Flush()

	e, ok := sink.Entity(kf)
	if !ok {
		t.Fatal("no entity for keyframe")
	}
	data := KeyframeComponent.Get(world.Entry(e))
	if data.Name != "intro" || !data.State.Active || data.State.Progress != 0.5 {
		t.Errorf("mirrored data: %+v", data)
	}

	// State refreshes on every flush, not only on transitions.
	tl.Scroll(175)
	sink.Flush()
	if p := KeyframeComponent.Get(world.Entry(e)).State.Progress; p != 0.75 {
		t.Errorf("progress = %v, want 0.75", p)
	}

	tl.Remove(kf)
	sink.Flush()
	if world.Valid(e) {
		t.Error("entity of a removed keyframe still valid")
	}
	if _, ok := sink.Entity(kf); ok {
		t.Error("removed keyframe still mapped")
	}
}

func TestSinkDetach(t *testing.T) {
	sink := NewDonburiSink(donburi.NewWorld())
	tl, _ := newTimeline(t)
	h := sink.Attach(tl)
	h.Remove()

	tl.Scroll(150)
	if sink.Pending() != 0 {
		t.Errorf("Pending() = %d after detach", sink.Pending())
	}
}

func TestSinkConcurrentPush(t *testing.T) {
	world := donburi.NewWorld()
	sink := NewDonburiSink(world)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				sink.Push(storyboard.TransitionEvent{Type: storyboard.TransitionEnter})
			}
		}()
	}
	wg.Wait()

	var count int
	TransitionEventType.Subscribe(world, func(w donburi.World, e storyboard.TransitionEvent) {
		count++
	})
	if n := sink.Flush(); n != 400 {
		t.Fatalf("Flush() = %d, want 400", n)
	}
	events.ProcessAllEvents(world)
	if count != 400 {
		t.Errorf("delivered %d events, want 400", count)
	}
}
