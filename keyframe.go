package storyboard

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultMinScrollDelta is the smallest offset change that re-evaluates
	// activation. Smaller moves are treated as sub-pixel noise.
	DefaultMinScrollDelta = 5.0

	// DefaultHandlerTimeout bounds how long one handler may hold an episode.
	DefaultHandlerTimeout = 5 * time.Second
)

// KeyframeConfig configures a Keyframe.
type KeyframeConfig struct {
	// Name identifies the keyframe in logs and transition events.
	// Defaults to "keyframe[start,end]".
	Name string
	// Range is the scroll region the keyframe is active in. Start must be
	// less than End.
	Range ScrollRange
	// MinScrollDelta debounces samples closer than this to the last
	// processed one. Zero selects DefaultMinScrollDelta; negative disables
	// debouncing.
	MinScrollDelta float64
	// OnEnter is called on every entry, before entry handlers run.
	OnEnter func(ScrollDirection)
	// OnExit is called on every exit, before exit handlers run.
	OnExit func(ScrollDirection)
	// HandlerTimeout bounds each handler. Zero selects
	// DefaultHandlerTimeout; negative waits indefinitely.
	HandlerTimeout time.Duration
	// Logger receives handler failures. Nil disables logging.
	Logger *zap.Logger
}

// State is a read-only view of a keyframe, as consumed by visual content.
type State struct {
	Active         bool
	Rendering      bool
	ScrollY        float64
	Range          ScrollRange
	EntryDirection ScrollDirection
	ExitDirection  ScrollDirection
	Progress       float64
	EntryAnimated  bool
}

// Keyframe is a region of a scroll timeline with entry and exit episodes.
//
// Samples arrive from a ScrollSource on the sampling goroutine; entry and
// exit transitions are decided there and take effect immediately. Registered
// handlers then run concurrently on episode goroutines, and the resulting
// render state is committed only if the episode is still current. Starting a
// new episode cancels the previous one.
type Keyframe struct {
	name     string
	rng      ScrollRange
	minDelta float64
	timeout  time.Duration
	onEnter  func(ScrollDirection)
	onExit   func(ScrollDirection)
	log      *zap.Logger
	sink     func(TransitionEvent)

	sub      Subscription
	ctx      context.Context
	stop     context.CancelFunc
	episodes sync.WaitGroup

	mu            sync.Mutex
	closed        bool
	active        bool
	rendering     bool
	entryDir      ScrollDirection
	exitDir       ScrollDirection
	scrollY       float64
	lastProcessed float64
	prevY         float64
	sampled       bool
	entry         handlerSet
	exit          handlerSet
	observers     []stateObserver
	nextID        uint64
	pendingEntry  ScrollDirection
	hasPending    bool
	entryAnimated bool
	gen           uint64
	cancel        context.CancelFunc
}

// NewKeyframe validates cfg and subscribes a new keyframe to src.
// It returns an error wrapping ErrInvalidRange when cfg.Range.Start >=
// cfg.Range.End. Panics if src is nil.
func NewKeyframe(src *ScrollSource, cfg KeyframeConfig) (*Keyframe, error) {
	return newKeyframe(src, cfg, nil)
}

func newKeyframe(src *ScrollSource, cfg KeyframeConfig, sink func(TransitionEvent)) (*Keyframe, error) {
	if src == nil {
		panic("storyboard: nil scroll source")
	}
	if err := cfg.Range.Validate(); err != nil {
		return nil, err
	}
	name := cfg.Name
	if name == "" {
		name = fmt.Sprintf("keyframe[%v,%v]", cfg.Range.Start, cfg.Range.End)
	}
	minDelta := cfg.MinScrollDelta
	if minDelta == 0 {
		minDelta = DefaultMinScrollDelta
	}
	timeout := cfg.HandlerTimeout
	if timeout == 0 {
		timeout = DefaultHandlerTimeout
	}

	k := &Keyframe{
		name:     name,
		rng:      cfg.Range,
		minDelta: minDelta,
		timeout:  timeout,
		onEnter:  cfg.OnEnter,
		onExit:   cfg.OnExit,
		log:      loggerOrNop(cfg.Logger).Named("keyframe").With(zap.String("keyframe", name)),
		sink:     sink,
	}
	k.ctx, k.stop = context.WithCancel(context.Background())
	k.sub = src.Subscribe(k.update)
	return k, nil
}

// Name returns the configured or derived name.
func (k *Keyframe) Name() string { return k.name }

// Range returns the keyframe's scroll range.
func (k *Keyframe) Range() ScrollRange { return k.rng }

// State returns a snapshot of the keyframe.
func (k *Keyframe) State() State {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.stateLocked()
}

// Progress returns the normalized position of the latest offset inside the
// range, or 0 while inactive.
func (k *Keyframe) Progress() float64 {
	return k.State().Progress
}

// IsActive reports whether the latest processed offset lies in the range.
func (k *Keyframe) IsActive() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.active
}

// IsRendering reports whether content must stay mounted. It remains true
// after deactivation until the exit episode commits.
func (k *Keyframe) IsRendering() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.rendering
}

func (k *Keyframe) stateLocked() State {
	var progress float64
	if k.active {
		progress = k.rng.Progress(k.scrollY)
	}
	return State{
		Active:         k.active,
		Rendering:      k.rendering,
		ScrollY:        k.scrollY,
		Range:          k.rng,
		EntryDirection: k.entryDir,
		ExitDirection:  k.exitDir,
		Progress:       progress,
		EntryAnimated:  k.entryAnimated,
	}
}

// --- Sampling ---

// update receives every accepted sample from the source.
func (k *Keyframe) update(y float64) {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return
	}
	k.scrollY = y
	after := k.step(y)
	var observers []stateObserver
	if k.rendering && len(k.observers) > 0 {
		observers = append(observers, k.observers...)
	}
	st := k.stateLocked()
	k.mu.Unlock()

	runAll(after)
	for _, o := range observers {
		o.fn(st)
	}
}

// step applies the debounce and activation rules to one sample and returns
// the callbacks to run once the lock is released.
func (k *Keyframe) step(y float64) []func() {
	if math.Abs(y-k.lastProcessed) < k.minDelta && y != 0 {
		return nil
	}
	k.lastProcessed = y

	ny := max(0, y)
	var after []func()
	if should := k.rng.Contains(ny); should != k.active {
		if should {
			after = k.enterLocked(ny)
		} else {
			after = k.exitLocked(ny)
		}
	}
	k.prevY = ny
	k.sampled = true
	return after
}

func (k *Keyframe) enterLocked(ny float64) []func() {
	dir := ScrollNone
	if k.sampled {
		if ny > k.prevY {
			dir = ScrollBottom
		} else {
			dir = ScrollTop
		}
	}

	after := k.cancelLocked()
	k.entryAnimated = false
	k.active = true
	k.rendering = true
	k.entryDir = dir

	ev := k.eventLocked(TransitionEnter, dir)
	after = append(after, func() { k.emit(ev) })
	if fn := k.onEnter; fn != nil {
		after = append(after, func() { fn(dir) })
	}

	if k.entry.len() > 0 {
		k.hasPending = false
		return append(after, k.beginLocked(PhaseEntry, dir, k.entry.snapshot())...)
	}
	k.pendingEntry = dir
	k.hasPending = true
	return after
}

func (k *Keyframe) exitLocked(ny float64) []func() {
	// Only the start edge is compared: any exit at or beyond start,
	// including a jump straight past end, counts as downward.
	dir := ScrollBottom
	if ny < k.rng.Start {
		dir = ScrollTop
	}

	after := k.cancelLocked()
	k.active = false
	k.exitDir = dir

	ev := k.eventLocked(TransitionExit, dir)
	after = append(after, func() { k.emit(ev) })
	if fn := k.onExit; fn != nil {
		after = append(after, func() { fn(dir) })
	}
	return append(after, k.beginLocked(PhaseExit, dir, k.exit.snapshot())...)
}

// --- Episodes ---

// cancelLocked invalidates the current episode token and cancels its
// handlers. Side effects already performed by handlers are not rolled back.
func (k *Keyframe) cancelLocked() []func() {
	stale := k.gen
	k.gen++
	if k.cancel == nil {
		return nil
	}
	k.cancel()
	k.cancel = nil

	ev := k.eventLocked(TransitionCancelled, ScrollNone)
	ev.Episode = stale
	return []func(){func() { k.emit(ev) }}
}

// beginLocked starts an episode for the current token. With no handlers the
// episode commits immediately; otherwise the returned callback launches the
// episode goroutine.
func (k *Keyframe) beginLocked(phase Phase, dir ScrollDirection, handlers []registeredHandler) []func() {
	gen := k.gen
	if len(handlers) == 0 {
		return k.commitLocked(phase, dir, gen, nil)
	}

	ctx, cancel := context.WithCancel(k.ctx)
	k.cancel = cancel
	k.episodes.Add(1)
	k.log.Debug("episode started",
		zap.Stringer("phase", phase),
		zap.Stringer("direction", dir),
		zap.Uint64("episode", gen),
		zap.Int("handlers", len(handlers)))

	return []func(){func() {
		go k.runEpisode(ctx, cancel, gen, phase, dir, handlers)
	}}
}

func (k *Keyframe) runEpisode(ctx context.Context, cancel context.CancelFunc, gen uint64,
	phase Phase, dir ScrollDirection, handlers []registeredHandler) {
	defer k.episodes.Done()
	defer cancel()

	err := k.runHandlers(ctx, phase, dir, gen, handlers)

	k.mu.Lock()
	if k.closed || k.gen != gen || ctx.Err() != nil {
		k.mu.Unlock()
		k.log.Debug("episode superseded", zap.Stringer("phase", phase), zap.Uint64("episode", gen))
		return
	}
	k.cancel = nil
	after := k.commitLocked(phase, dir, gen, err)
	k.mu.Unlock()

	runAll(after)
}

// commitLocked applies the bookkeeping of a finished, current episode.
func (k *Keyframe) commitLocked(phase Phase, dir ScrollDirection, gen uint64, err error) []func() {
	typ := TransitionEntered
	switch phase {
	case PhaseEntry:
		k.entryAnimated = true
	case PhaseExit:
		k.rendering = false
		k.entryAnimated = false
		k.hasPending = false
		typ = TransitionExited
	}
	ev := k.eventLocked(typ, dir)
	ev.Episode = gen
	ev.Err = err
	return []func(){func() { k.emit(ev) }}
}

// Wait blocks until every started episode goroutine has returned.
func (k *Keyframe) Wait() {
	k.episodes.Wait()
}

// InFlight reports whether an episode is running and not yet committed.
func (k *Keyframe) InFlight() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.cancel != nil
}

// --- Registration ---

// RegisterEntryHandler adds h to the entry set and returns its disposer.
// If the keyframe activated while no entry handler existed, h alone is run
// once with the stashed direction. Panics if h is nil.
func (k *Keyframe) RegisterEntryHandler(h Handler) Registration {
	if h == nil {
		panic("storyboard: nil entry handler")
	}
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return Registration{}
	}
	k.nextID++
	id := k.nextID
	k.entry.add(id, h)

	var after []func()
	if k.hasPending && k.active && !k.entryAnimated {
		dir := k.pendingEntry
		k.hasPending = false
		after = k.cancelLocked()
		after = append(after, k.beginLocked(PhaseEntry, dir, []registeredHandler{{id: id, fn: h}})...)
	}
	k.mu.Unlock()

	runAll(after)
	return Registration{id: id, kf: k, kind: registrationEntry}
}

// RegisterExitHandler adds h to the exit set and returns its disposer.
// Panics if h is nil.
func (k *Keyframe) RegisterExitHandler(h Handler) Registration {
	if h == nil {
		panic("storyboard: nil exit handler")
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return Registration{}
	}
	k.nextID++
	k.exit.add(k.nextID, h)
	return Registration{id: k.nextID, kf: k, kind: registrationExit}
}

// RegisterDirectionalEntry registers fn as an entry handler that completes
// when fn calls its complete callback.
func (k *Keyframe) RegisterDirectionalEntry(fn DirectionalFunc) Registration {
	return k.RegisterEntryHandler(Directional(fn))
}

// RegisterDirectionalExit registers fn as an exit handler that completes
// when fn calls its complete callback.
func (k *Keyframe) RegisterDirectionalExit(fn DirectionalFunc) Registration {
	return k.RegisterExitHandler(Directional(fn))
}

// Observe calls fn with the keyframe state after every sample while the
// keyframe is rendering.
func (k *Keyframe) Observe(fn func(State)) Registration {
	if fn == nil {
		panic("storyboard: nil observer")
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return Registration{}
	}
	k.nextID++
	k.observers = append(k.observers, stateObserver{id: k.nextID, fn: fn})
	return Registration{id: k.nextID, kf: k, kind: registrationObserver}
}

func (k *Keyframe) unregister(r Registration) {
	k.mu.Lock()
	defer k.mu.Unlock()
	switch r.kind {
	case registrationEntry:
		k.entry.remove(r.id)
	case registrationExit:
		k.exit.remove(r.id)
	case registrationObserver:
		for i := range k.observers {
			if k.observers[i].id == r.id {
				copy(k.observers[i:], k.observers[i+1:])
				k.observers[len(k.observers)-1] = stateObserver{}
				k.observers = k.observers[:len(k.observers)-1]
				return
			}
		}
	}
}

// --- Teardown ---

// Close detaches the keyframe from its source, cancels the in-flight
// episode and drops all registrations. Safe to call more than once.
func (k *Keyframe) Close() {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return
	}
	k.closed = true
	after := k.cancelLocked()
	k.entry.clear()
	k.exit.clear()
	k.observers = nil
	k.hasPending = false
	k.mu.Unlock()

	k.stop()
	k.sub.Remove()
	runAll(after)
}

// Closed reports whether Close has been called.
func (k *Keyframe) Closed() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.closed
}

// --- Events ---

func (k *Keyframe) eventLocked(typ TransitionType, dir ScrollDirection) TransitionEvent {
	return TransitionEvent{
		Type:      typ,
		Keyframe:  k,
		Name:      k.name,
		Direction: dir,
		Offset:    k.scrollY,
		Episode:   k.gen,
	}
}

func (k *Keyframe) emit(ev TransitionEvent) {
	if k.sink != nil {
		k.sink(ev)
	}
}

func runAll(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
