package storyboard

import (
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"go.uber.org/zap"
)

// StageConfig configures a Stage. Zero values select defaults.
type StageConfig struct {
	// Width and Height are the logical screen size. Default 640x480.
	Width, Height int
	// ClearColor fills the screen before layers are drawn. The zero value
	// leaves the screen as ebiten provides it.
	ClearColor Color
	Input      InputConfig
	// View configures the scroll view. ContentLength defaults to the
	// timeline length and ViewportHeight to Height.
	View ScrollViewConfig
	// OnTransition, if set, is registered on the timeline before the stage
	// is returned.
	OnTransition func(TransitionEvent)
	Logger       *zap.Logger
}

// Stage is an ebiten.Game that sequences a Timeline. Each frame it reads
// input, advances the scroll view (which reports offsets to the timeline),
// advances tweens, then draws the layers of every rendering keyframe in
// mount order so later keyframes overlap earlier ones.
//
// Throttling of the timeline's source runs on frame time, so replays at a
// fixed dt are deterministic.
type Stage struct {
	timeline *Timeline
	view     *ScrollView
	input    *Input
	animator *Animator
	log      *zap.Logger

	width, height int
	clearColor    Color

	layersMu sync.Mutex
	layers   map[*Keyframe]Layer

	updateFunc func(dt float64)
	runner     *ScriptRunner
	fps        *fpsOverlay

	frame   uint64
	elapsed time.Duration
}

// NewStage creates a stage for tl.
func NewStage(tl *Timeline, cfg StageConfig) *Stage {
	if tl == nil {
		panic("storyboard: NewStage requires a timeline")
	}
	if cfg.Width <= 0 {
		cfg.Width = 640
	}
	if cfg.Height <= 0 {
		cfg.Height = 480
	}
	if cfg.View.ContentLength <= 0 {
		cfg.View.ContentLength = tl.Length()
	}
	if cfg.View.ViewportHeight <= 0 {
		cfg.View.ViewportHeight = float64(cfg.Height)
	}

	s := &Stage{
		timeline:   tl,
		view:       NewScrollView(tl.Source(), cfg.View),
		input:      NewInput(cfg.Input),
		animator:   NewAnimator(),
		log:        loggerOrNop(cfg.Logger).Named("stage"),
		width:      cfg.Width,
		height:     cfg.Height,
		clearColor: cfg.ClearColor,
		layers:     make(map[*Keyframe]Layer),
	}
	tl.Source().SetClock(s.now)
	if cfg.OnTransition != nil {
		tl.OnTransition(cfg.OnTransition)
	}
	return s
}

// Timeline returns the sequenced timeline.
func (s *Stage) Timeline() *Timeline { return s.timeline }

// View returns the scroll view.
func (s *Stage) View() *ScrollView { return s.view }

// Input returns the input handler, for injecting synthetic events.
func (s *Stage) Input() *Input { return s.input }

// Animator returns the stage's tween animator.
func (s *Stage) Animator() *Animator { return s.animator }

// Frame returns the number of frames stepped so far.
func (s *Stage) Frame() uint64 { return s.frame }

// now is the frame clock handed to the timeline's source.
func (s *Stage) now() time.Time {
	return time.Unix(0, 0).Add(s.elapsed)
}

// SetLayer attaches the content drawn while kf renders. A nil layer detaches.
func (s *Stage) SetLayer(kf *Keyframe, l Layer) {
	s.layersMu.Lock()
	defer s.layersMu.Unlock()
	if l == nil {
		delete(s.layers, kf)
		return
	}
	s.layers[kf] = l
}

// Layer returns the layer attached to kf, if any.
func (s *Stage) Layer(kf *Keyframe) (Layer, bool) {
	s.layersMu.Lock()
	defer s.layersMu.Unlock()
	l, ok := s.layers[kf]
	return l, ok
}

// SetUpdateFunc sets a callback called once per frame after the stage has
// advanced.
func (s *Stage) SetUpdateFunc(fn func(dt float64)) {
	s.updateFunc = fn
}

// SetScript attaches a script runner. Its step method runs at the start of
// every frame, before input is processed.
func (s *Stage) SetScript(r *ScriptRunner) {
	s.runner = r
}

// SetShowFPS toggles the FPS/TPS overlay.
func (s *Stage) SetShowFPS(show bool) {
	if show && s.fps == nil {
		s.fps = &fpsOverlay{}
	} else if !show {
		s.fps = nil
	}
}

// Step advances the stage by dt seconds without drawing.
func (s *Stage) Step(dt float64) {
	s.frame++
	s.elapsed += time.Duration(dt * float64(time.Second))

	if s.runner != nil {
		s.runner.step(s)
	}
	s.input.Update(s.view, dt)
	s.view.Update(dt)
	s.animator.Update(float32(dt))
	if s.fps != nil {
		s.fps.update(dt)
	}
	if s.updateFunc != nil {
		s.updateFunc(dt)
	}
}

// Update implements ebiten.Game.
func (s *Stage) Update() error {
	s.Step(1.0 / float64(ebiten.TPS()))
	return nil
}

// Draw implements ebiten.Game.
func (s *Stage) Draw(screen *ebiten.Image) {
	if s.clearColor != (Color{}) {
		screen.Fill(s.clearColor.toRGBA())
	}
	for _, kf := range s.timeline.Rendered() {
		if l, ok := s.Layer(kf); ok {
			l.Draw(screen, kf.State())
		}
	}
	if s.fps != nil {
		s.fps.draw(screen)
	}
}

// Layout implements ebiten.Game with a fixed logical size.
func (s *Stage) Layout(_, _ int) (int, int) {
	return s.width, s.height
}

// Close closes the timeline and waits for in-flight episodes.
func (s *Stage) Close() {
	kfs := s.timeline.Keyframes()
	s.timeline.Close()
	for _, kf := range kfs {
		kf.Wait()
	}
	s.log.Debug("stage closed", zap.Uint64("frames", s.frame))
}
