package storyboard

import (
	"sync"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// TweenGroup animates up to 4 float64 fields on a Sprite simultaneously.
// Create one via the convenience constructors (TweenPosition, TweenScale,
// TweenColor, TweenAlpha, TweenRotation) and either call Update(dt) each
// frame or hand it to an Animator. Start values are read on the first Update
// unless set with From. If the target sprite is disposed, the group stops
// immediately.
type TweenGroup struct {
	tweens   [4]*gween.Tween
	fields   [4]*float64
	to       [4]float32
	from     [4]float32
	count    int
	hasFrom  bool
	started  bool
	duration float32
	easing   ease.TweenFunc
	target   *Sprite
	Done     bool

	// OnComplete is called by an Animator once the group is done, whether it
	// finished, was stopped, or its target was disposed.
	OnComplete func()
}

func newTweenGroup(target *Sprite, duration float32, fn ease.TweenFunc, fields []*float64, to []float64) *TweenGroup {
	if fn == nil {
		fn = ease.Linear
	}
	g := &TweenGroup{count: len(fields), target: target, duration: duration, easing: fn}
	for i := range fields {
		g.fields[i] = fields[i]
		g.to[i] = float32(to[i])
	}
	return g
}

// From sets explicit start values, in field order, applied on the first
// Update instead of the fields' current values.
func (g *TweenGroup) From(values ...float64) *TweenGroup {
	for i := 0; i < g.count && i < len(values); i++ {
		g.from[i] = float32(values[i])
	}
	g.hasFrom = true
	return g
}

// Update advances all tweens by dt seconds and writes values to the target
// fields. If the target sprite has been disposed, Done is set to true and no
// writes occur.
func (g *TweenGroup) Update(dt float32) {
	if g.Done {
		return
	}

	if g.target != nil && g.target.IsDisposed() {
		g.Done = true
		return
	}

	if !g.started {
		for i := 0; i < g.count; i++ {
			begin := float32(*g.fields[i])
			if g.hasFrom {
				begin = g.from[i]
			}
			g.tweens[i] = gween.New(begin, g.to[i], g.duration, g.easing)
		}
		g.started = true
	}

	allDone := true
	for i := 0; i < g.count; i++ {
		val, finished := g.tweens[i].Update(dt)
		*g.fields[i] = float64(val)
		if !finished {
			allDone = false
		}
	}
	g.Done = allDone
}

// TweenPosition creates a TweenGroup that animates s.X and s.Y to the given
// target coordinates over the specified duration using the easing function.
func TweenPosition(s *Sprite, toX, toY float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	return newTweenGroup(s, duration, fn, []*float64{&s.X, &s.Y}, []float64{toX, toY})
}

// TweenScale creates a TweenGroup that animates s.ScaleX and s.ScaleY.
func TweenScale(s *Sprite, toSX, toSY float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	return newTweenGroup(s, duration, fn, []*float64{&s.ScaleX, &s.ScaleY}, []float64{toSX, toSY})
}

// TweenColor creates a TweenGroup that animates all four components of
// s.Color to the target color.
func TweenColor(s *Sprite, to Color, duration float32, fn ease.TweenFunc) *TweenGroup {
	return newTweenGroup(s, duration, fn,
		[]*float64{&s.Color.R, &s.Color.G, &s.Color.B, &s.Color.A},
		[]float64{to.R, to.G, to.B, to.A})
}

// TweenAlpha creates a TweenGroup that animates s.Alpha.
func TweenAlpha(s *Sprite, to float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	return newTweenGroup(s, duration, fn, []*float64{&s.Alpha}, []float64{to})
}

// TweenRotation creates a TweenGroup that animates s.Rotation.
func TweenRotation(s *Sprite, to float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	return newTweenGroup(s, duration, fn, []*float64{&s.Rotation}, []float64{to})
}

// --- Animator ---

// Animator advances a set of tween groups from the frame loop. Groups may be
// started from any goroutine (typically an episode handler); sprite fields
// are only written inside Update, on the goroutine that calls it.
type Animator struct {
	mu     sync.Mutex
	groups []*TweenGroup
	done   []*TweenGroup
}

// NewAnimator creates an empty animator.
func NewAnimator() *Animator {
	return &Animator{}
}

// Start schedules g. It begins moving on the next Update.
func (a *Animator) Start(g *TweenGroup) *TweenGroup {
	a.mu.Lock()
	a.groups = append(a.groups, g)
	a.mu.Unlock()
	return g
}

// Len returns the number of running groups.
func (a *Animator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.groups)
}

// Update advances every group by dt seconds, drops finished groups and then
// calls their OnComplete callbacks outside the lock.
func (a *Animator) Update(dt float32) {
	a.mu.Lock()
	live := a.groups[:0]
	for _, g := range a.groups {
		g.Update(dt)
		if g.Done {
			a.done = append(a.done, g)
		} else {
			live = append(live, g)
		}
	}
	for i := len(live); i < len(a.groups); i++ {
		a.groups[i] = nil
	}
	a.groups = live
	finished := a.done
	a.done = nil
	a.mu.Unlock()

	for _, g := range finished {
		if g.OnComplete != nil {
			g.OnComplete()
		}
	}
}

// Stop ends every group animating s, leaving its fields where they are.
// Their OnComplete callbacks run on the next Update.
func (a *Animator) Stop(s *Sprite) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, g := range a.groups {
		if g.target == s {
			g.Done = true
		}
	}
}

// --- Directional presets ---

// SlideIn returns an entry animation that moves s to (restX, restY) from
// distance pixels below when scrolling down, above when scrolling up, fading
// it in at the same time. Without a direction it only fades.
func (a *Animator) SlideIn(s *Sprite, restX, restY, distance float64, duration float32, fn ease.TweenFunc) DirectionalFunc {
	return func(dir ScrollDirection, complete func()) {
		fromY := restY
		switch dir {
		case ScrollBottom:
			fromY = restY + distance
		case ScrollTop:
			fromY = restY - distance
		}
		g := newTweenGroup(s, duration, fn,
			[]*float64{&s.X, &s.Y, &s.Alpha},
			[]float64{restX, restY, 1}).From(restX, fromY, 0)
		g.OnComplete = complete
		a.Start(g)
	}
}

// SlideOut returns an exit animation that moves s away from (restX, restY)
// in the scroll direction while fading it out.
func (a *Animator) SlideOut(s *Sprite, restX, restY, distance float64, duration float32, fn ease.TweenFunc) DirectionalFunc {
	return func(dir ScrollDirection, complete func()) {
		toY := restY
		switch dir {
		case ScrollBottom:
			toY = restY - distance
		case ScrollTop:
			toY = restY + distance
		}
		g := newTweenGroup(s, duration, fn,
			[]*float64{&s.X, &s.Y, &s.Alpha},
			[]float64{restX, toY, 0}).From(restX, restY, 1)
		g.OnComplete = complete
		a.Start(g)
	}
}

// FadeIn returns an entry animation that fades s from transparent to opaque.
func (a *Animator) FadeIn(s *Sprite, duration float32, fn ease.TweenFunc) DirectionalFunc {
	return func(_ ScrollDirection, complete func()) {
		g := TweenAlpha(s, 1, duration, fn).From(0)
		g.OnComplete = complete
		a.Start(g)
	}
}

// FadeOut returns an exit animation that fades s out from its current alpha.
func (a *Animator) FadeOut(s *Sprite, duration float32, fn ease.TweenFunc) DirectionalFunc {
	return func(_ ScrollDirection, complete func()) {
		g := TweenAlpha(s, 0, duration, fn)
		g.OnComplete = complete
		a.Start(g)
	}
}
