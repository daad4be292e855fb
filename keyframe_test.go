package storyboard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// eventLog collects transition events from any goroutine.
type eventLog struct {
	mu     sync.Mutex
	events []TransitionEvent
}

func (l *eventLog) add(ev TransitionEvent) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) ofType(typ TransitionType) []TransitionEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []TransitionEvent
	for _, ev := range l.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// newTestTimeline returns an unthrottled timeline with a transition log.
func newTestTimeline(t *testing.T, cfg TimelineConfig) (*Timeline, *eventLog) {
	t.Helper()
	cfg.SampleThrottle = -1
	tl := NewTimeline(cfg)
	log := &eventLog{}
	tl.OnTransition(log.add)
	t.Cleanup(func() {
		tl.Close()
		tl.Wait()
	})
	return tl, log
}

func addKeyframe(t *testing.T, tl *Timeline, cfg KeyframeConfig) *Keyframe {
	t.Helper()
	kf, err := tl.AddKeyframe(cfg)
	require.NoError(t, err)
	t.Cleanup(kf.Wait)
	return kf
}

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for handler")
	}
}

func TestNewKeyframeRejectsInvalidRange(t *testing.T) {
	tests := []struct {
		name string
		rng  ScrollRange
	}{
		{"equal", ScrollRange{Start: 100, End: 100}},
		{"reversed", ScrollRange{Start: 200, End: 100}},
		{"zero", ScrollRange{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewScrollSource(-1)
			kf, err := NewKeyframe(src, KeyframeConfig{Range: tt.rng})
			if !errors.Is(err, ErrInvalidRange) {
				t.Fatalf("err = %v, want ErrInvalidRange", err)
			}
			if kf != nil {
				t.Fatal("expected nil keyframe")
			}
			if len(src.subs) != 0 {
				t.Errorf("invalid keyframe left %d subscriptions", len(src.subs))
			}
		})
	}
}

func TestNewKeyframeNilSourcePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for nil source")
		}
	}()
	_, _ = NewKeyframe(nil, KeyframeConfig{Range: ScrollRange{0, 1}})
}

func TestKeyframeActivationCycle(t *testing.T) {
	tl, log := newTestTimeline(t, TimelineConfig{Length: 2000})
	kf := addKeyframe(t, tl, KeyframeConfig{Name: "intro", Range: ScrollRange{0, 400}, MinScrollDelta: 5})

	var enters, exits []ScrollDirection
	kf.onEnter = func(d ScrollDirection) { enters = append(enters, d) }
	kf.onExit = func(d ScrollDirection) { exits = append(exits, d) }

	tl.Scroll(50)
	require.True(t, kf.IsActive())
	require.True(t, kf.IsRendering())

	tl.Scroll(450)
	require.False(t, kf.IsActive())
	require.False(t, kf.IsRendering(), "exit without handlers commits immediately")

	tl.Scroll(50)
	require.True(t, kf.IsActive())

	assert.Equal(t, []ScrollDirection{ScrollNone, ScrollTop}, enters)
	assert.Equal(t, []ScrollDirection{ScrollBottom}, exits)

	enterEvents := log.ofType(TransitionEnter)
	require.Len(t, enterEvents, 2)
	assert.Equal(t, 50.0, enterEvents[0].Offset)
	assert.Equal(t, ScrollNone, enterEvents[0].Direction)
	assert.Equal(t, ScrollTop, enterEvents[1].Direction)

	exitEvents := log.ofType(TransitionExit)
	require.Len(t, exitEvents, 1)
	assert.Equal(t, 450.0, exitEvents[0].Offset)
	assert.Equal(t, ScrollBottom, exitEvents[0].Direction)
	assert.Len(t, log.ofType(TransitionExited), 1)

	st := kf.State()
	assert.Equal(t, ScrollTop, st.EntryDirection)
	assert.Equal(t, ScrollBottom, st.ExitDirection)
}

func TestKeyframeEntryDirection(t *testing.T) {
	tests := []struct {
		name    string
		samples []float64
		want    ScrollDirection
	}{
		{"downward into range", []float64{50, 150}, ScrollBottom},
		{"upward into range", []float64{250, 150}, ScrollTop},
		{"first sample inside range", []float64{150}, ScrollNone},
		{"overscroll clamps to zero", []float64{-40, 120}, ScrollBottom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl, _ := newTestTimeline(t, TimelineConfig{})
			kf := addKeyframe(t, tl, KeyframeConfig{Range: ScrollRange{100, 200}})
			for _, y := range tt.samples {
				tl.Scroll(y)
			}
			st := kf.State()
			if !st.Active {
				t.Fatal("expected keyframe to be active")
			}
			if st.EntryDirection != tt.want {
				t.Errorf("EntryDirection = %v, want %v", st.EntryDirection, tt.want)
			}
		})
	}
}

func TestKeyframeExitDirection(t *testing.T) {
	tests := []struct {
		name    string
		samples []float64
		want    ScrollDirection
	}{
		{"above start", []float64{150, 50}, ScrollTop},
		{"past end", []float64{150, 250}, ScrollBottom},
		{"jump from start past end", []float64{100, 900}, ScrollBottom},
		{"overscroll above", []float64{150, -30}, ScrollTop},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl, _ := newTestTimeline(t, TimelineConfig{})
			kf := addKeyframe(t, tl, KeyframeConfig{Range: ScrollRange{100, 200}})
			for _, y := range tt.samples {
				tl.Scroll(y)
			}
			st := kf.State()
			if st.Active {
				t.Fatal("expected keyframe to be inactive")
			}
			if st.ExitDirection != tt.want {
				t.Errorf("ExitDirection = %v, want %v", st.ExitDirection, tt.want)
			}
		})
	}
}

func TestKeyframeDebounce(t *testing.T) {
	tl, log := newTestTimeline(t, TimelineConfig{})
	kf := addKeyframe(t, tl, KeyframeConfig{Range: ScrollRange{100.5, 300}, MinScrollDelta: 5})

	for _, y := range []float64{100, 102, 101} {
		tl.Scroll(y)
	}

	assert.False(t, kf.IsActive())
	assert.Empty(t, log.ofType(TransitionEnter))
	assert.Equal(t, 101.0, kf.State().ScrollY, "debounced samples still update the offset")
}

func TestKeyframeZeroBypassesDebounce(t *testing.T) {
	tl, _ := newTestTimeline(t, TimelineConfig{})
	kf := addKeyframe(t, tl, KeyframeConfig{Range: ScrollRange{0, 100}, MinScrollDelta: 5})

	tl.Scroll(0)
	assert.True(t, kf.IsActive(), "offset 0 is always processed")
}

func TestKeyframeDuplicateSampleIsIdempotent(t *testing.T) {
	for _, delta := range []float64{5, -1} {
		tl, log := newTestTimeline(t, TimelineConfig{})
		kf := addKeyframe(t, tl, KeyframeConfig{Range: ScrollRange{100, 200}, MinScrollDelta: delta})

		var calls atomic.Int32
		kf.RegisterEntryHandler(func(ctx context.Context, dir ScrollDirection) error {
			calls.Add(1)
			return nil
		})

		tl.Scroll(150)
		tl.Scroll(150)
		kf.Wait()

		if got := len(log.ofType(TransitionEnter)); got != 1 {
			t.Errorf("delta %v: %d enter transitions, want 1", delta, got)
		}
		if got := calls.Load(); got != 1 {
			t.Errorf("delta %v: handler ran %d times, want 1", delta, got)
		}
	}
}

func TestKeyframeProgressBounds(t *testing.T) {
	tl, _ := newTestTimeline(t, TimelineConfig{})
	rng := ScrollRange{100, 200}
	kf := addKeyframe(t, tl, KeyframeConfig{Range: rng, MinScrollDelta: -1})

	for y := -50.0; y <= 600; y += 7 {
		tl.Scroll(y)
		p := kf.Progress()
		if p < 0 || p > 1 {
			t.Fatalf("progress(%v) = %v, outside [0,1]", y, p)
		}
		if !rng.Contains(max(0, y)) && p != 0 {
			t.Fatalf("progress(%v) = %v, want 0 outside range", y, p)
		}
	}

	tl.Scroll(150)
	assert.InDelta(t, 0.5, kf.Progress(), 1e-9)
}

func TestKeyframeExitKeepsRenderingUntilHandlersFinish(t *testing.T) {
	tl, log := newTestTimeline(t, TimelineConfig{})
	kf := addKeyframe(t, tl, KeyframeConfig{Range: ScrollRange{100, 200}})

	release := make(chan struct{})
	started := make(chan struct{})
	kf.RegisterDirectionalExit(func(dir ScrollDirection, complete func()) {
		close(started)
		go func() {
			<-release
			complete()
		}()
	})

	tl.Scroll(150)
	tl.Scroll(300)
	waitClosed(t, started)

	st := kf.State()
	require.False(t, st.Active)
	require.True(t, st.Rendering, "content stays mounted during exit animation")
	require.Len(t, tl.Rendered(), 1)

	close(release)
	kf.Wait()

	assert.False(t, kf.IsRendering())
	assert.Empty(t, tl.Rendered())
	exited := log.ofType(TransitionExited)
	require.Len(t, exited, 1)
	assert.Equal(t, ScrollBottom, exited[0].Direction)
	assert.NoError(t, exited[0].Err)
}

func TestKeyframeExitCancelsPendingEntry(t *testing.T) {
	tl, log := newTestTimeline(t, TimelineConfig{})
	kf := addKeyframe(t, tl, KeyframeConfig{Range: ScrollRange{100, 200}})

	started := make(chan struct{})
	var sawCancel atomic.Bool
	kf.RegisterEntryHandler(func(ctx context.Context, dir ScrollDirection) error {
		close(started)
		<-ctx.Done()
		sawCancel.Store(errors.Is(ctx.Err(), context.Canceled))
		return ctx.Err()
	})

	tl.Scroll(150)
	waitClosed(t, started)
	tl.Scroll(300)
	kf.Wait()

	st := kf.State()
	assert.False(t, st.EntryAnimated, "superseded entry must not commit")
	assert.False(t, st.Rendering)
	assert.True(t, sawCancel.Load())
	assert.Empty(t, log.ofType(TransitionEntered))
	assert.Len(t, log.ofType(TransitionCancelled), 1)
}

func TestKeyframeStaleEntryCompletionIgnored(t *testing.T) {
	tl, _ := newTestTimeline(t, TimelineConfig{})
	kf := addKeyframe(t, tl, KeyframeConfig{Range: ScrollRange{100, 200}})

	// The entry animation ignores cancellation and reports completion late.
	var completeEntry func()
	ready := make(chan struct{})
	kf.RegisterDirectionalEntry(func(dir ScrollDirection, complete func()) {
		completeEntry = complete
		close(ready)
	})
	exitRelease := make(chan struct{})
	kf.RegisterDirectionalExit(func(dir ScrollDirection, complete func()) {
		go func() {
			<-exitRelease
			complete()
		}()
	})

	tl.Scroll(150)
	waitClosed(t, ready)
	tl.Scroll(300)

	completeEntry()
	close(exitRelease)
	kf.Wait()

	st := kf.State()
	assert.False(t, st.EntryAnimated)
	assert.False(t, st.Rendering)
}

func TestKeyframePendingEntryReplay(t *testing.T) {
	tl, log := newTestTimeline(t, TimelineConfig{})
	var enterDirs []ScrollDirection
	kf := addKeyframe(t, tl, KeyframeConfig{
		Range:   ScrollRange{100, 200},
		OnEnter: func(d ScrollDirection) { enterDirs = append(enterDirs, d) },
	})

	tl.Scroll(50)
	tl.Scroll(150)
	require.Equal(t, []ScrollDirection{ScrollBottom}, enterDirs, "plain callback fires without handlers")

	var firstCalls, secondCalls atomic.Int32
	var replayed atomic.Value
	kf.RegisterEntryHandler(func(ctx context.Context, dir ScrollDirection) error {
		firstCalls.Add(1)
		replayed.Store(dir)
		return nil
	})
	kf.RegisterEntryHandler(func(ctx context.Context, dir ScrollDirection) error {
		secondCalls.Add(1)
		return nil
	})
	kf.Wait()

	assert.Equal(t, int32(1), firstCalls.Load())
	assert.Equal(t, int32(0), secondCalls.Load())
	assert.Equal(t, ScrollBottom, replayed.Load())
	assert.True(t, kf.State().EntryAnimated)
	assert.Len(t, log.ofType(TransitionEntered), 1)
}

func TestKeyframePendingEntryReplayConcurrentRegistrants(t *testing.T) {
	tl, _ := newTestTimeline(t, TimelineConfig{})
	kf := addKeyframe(t, tl, KeyframeConfig{Range: ScrollRange{100, 200}})
	tl.Scroll(150)

	var calls atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			kf.RegisterEntryHandler(func(ctx context.Context, dir ScrollDirection) error {
				calls.Add(1)
				return nil
			})
		}()
	}
	wg.Wait()
	kf.Wait()

	assert.Equal(t, int32(1), calls.Load(), "stashed direction is replayed exactly once")
}

func TestKeyframeNoReplayAfterExit(t *testing.T) {
	tl, _ := newTestTimeline(t, TimelineConfig{})
	kf := addKeyframe(t, tl, KeyframeConfig{Range: ScrollRange{100, 200}})
	tl.Scroll(150)
	tl.Scroll(300)

	var calls atomic.Int32
	kf.RegisterEntryHandler(func(ctx context.Context, dir ScrollDirection) error {
		calls.Add(1)
		return nil
	})
	kf.Wait()
	assert.Zero(t, calls.Load())
}

func TestKeyframeHandlerFailureIsIsolated(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	tl, log := newTestTimeline(t, TimelineConfig{Logger: zap.New(core)})
	kf := addKeyframe(t, tl, KeyframeConfig{Name: "hero", Range: ScrollRange{100, 200}})

	boom := errors.New("boom")
	var okRan atomic.Bool
	kf.RegisterEntryHandler(func(ctx context.Context, dir ScrollDirection) error { return boom })
	kf.RegisterEntryHandler(func(ctx context.Context, dir ScrollDirection) error { panic("bad tween") })
	kf.RegisterEntryHandler(func(ctx context.Context, dir ScrollDirection) error {
		okRan.Store(true)
		return nil
	})

	tl.Scroll(150)
	kf.Wait()

	assert.True(t, okRan.Load())
	assert.True(t, kf.State().EntryAnimated, "bookkeeping completes despite failures")

	entered := log.ofType(TransitionEntered)
	require.Len(t, entered, 1)
	require.Error(t, entered[0].Err)
	assert.ErrorIs(t, entered[0].Err, boom)
	var herr *HandlerError
	require.ErrorAs(t, entered[0].Err, &herr)
	assert.Equal(t, "hero", herr.Keyframe)
	assert.Equal(t, PhaseEntry, herr.Phase)

	assert.Equal(t, 2, logs.FilterMessage("animation handler failed").Len())
}

func TestKeyframeHandlerTimeout(t *testing.T) {
	tl, log := newTestTimeline(t, TimelineConfig{})
	kf := addKeyframe(t, tl, KeyframeConfig{Range: ScrollRange{100, 200}, HandlerTimeout: 20 * time.Millisecond})

	// Never completes.
	kf.RegisterDirectionalExit(func(dir ScrollDirection, complete func()) {})

	tl.Scroll(150)
	tl.Scroll(300)
	kf.Wait()

	assert.False(t, kf.IsRendering(), "stalled handler must not pin the episode")
	exited := log.ofType(TransitionExited)
	require.Len(t, exited, 1)
	assert.ErrorIs(t, exited[0].Err, context.DeadlineExceeded)
}

func TestKeyframeLateRegistrationDoesNotJoinEpisode(t *testing.T) {
	tl, _ := newTestTimeline(t, TimelineConfig{})
	kf := addKeyframe(t, tl, KeyframeConfig{Range: ScrollRange{100, 200}})

	release := make(chan struct{})
	started := make(chan struct{})
	kf.RegisterEntryHandler(func(ctx context.Context, dir ScrollDirection) error {
		close(started)
		<-release
		return nil
	})

	tl.Scroll(150)
	waitClosed(t, started)

	var lateCalls atomic.Int32
	kf.RegisterEntryHandler(func(ctx context.Context, dir ScrollDirection) error {
		lateCalls.Add(1)
		return nil
	})
	close(release)
	kf.Wait()

	assert.Zero(t, lateCalls.Load())
	assert.True(t, kf.State().EntryAnimated)
}

func TestKeyframeRegistrationRemove(t *testing.T) {
	tl, _ := newTestTimeline(t, TimelineConfig{})
	kf := addKeyframe(t, tl, KeyframeConfig{Range: ScrollRange{100, 200}})

	var kept, removed atomic.Int32
	kf.RegisterEntryHandler(func(ctx context.Context, dir ScrollDirection) error {
		kept.Add(1)
		return nil
	})
	reg := kf.RegisterEntryHandler(func(ctx context.Context, dir ScrollDirection) error {
		removed.Add(1)
		return nil
	})
	reg.Remove()
	reg.Remove()

	tl.Scroll(150)
	kf.Wait()

	assert.Equal(t, int32(1), kept.Load())
	assert.Zero(t, removed.Load())
}

func TestKeyframeObserve(t *testing.T) {
	tl, _ := newTestTimeline(t, TimelineConfig{})
	kf := addKeyframe(t, tl, KeyframeConfig{Range: ScrollRange{100, 200}, MinScrollDelta: -1})

	var seen []State
	kf.Observe(func(st State) { seen = append(seen, st) })

	tl.Scroll(50)
	tl.Scroll(125)
	tl.Scroll(175)
	tl.Scroll(400)
	tl.Scroll(450)

	// 50 is not rendering; 400 commits the exit before observers run.
	require.Len(t, seen, 2)
	assert.InDelta(t, 0.25, seen[0].Progress, 1e-9)
	assert.InDelta(t, 0.75, seen[1].Progress, 1e-9)
}

func TestKeyframeCloseCancelsEpisode(t *testing.T) {
	tl, _ := newTestTimeline(t, TimelineConfig{})
	kf := addKeyframe(t, tl, KeyframeConfig{Range: ScrollRange{100, 200}})

	started := make(chan struct{})
	var cancelled atomic.Bool
	kf.RegisterEntryHandler(func(ctx context.Context, dir ScrollDirection) error {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	})

	tl.Scroll(150)
	waitClosed(t, started)
	tl.Remove(kf)
	kf.Wait()

	assert.True(t, cancelled.Load())
	assert.True(t, kf.Closed())
	assert.False(t, kf.State().EntryAnimated)
	assert.Empty(t, tl.Keyframes())

	// Inert after close.
	reg := kf.RegisterExitHandler(func(ctx context.Context, dir ScrollDirection) error { return nil })
	assert.Equal(t, Registration{}, reg)
	tl.Scroll(400)
	assert.True(t, kf.IsActive(), "closed keyframes ignore samples")
}

func TestDirectionalCompleteTwice(t *testing.T) {
	h := Directional(func(dir ScrollDirection, complete func()) {
		complete()
		complete()
	})
	if err := h(context.Background(), ScrollTop); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDirectionalHonorsContext(t *testing.T) {
	h := Directional(func(dir ScrollDirection, complete func()) {})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h(ctx, ScrollTop); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
