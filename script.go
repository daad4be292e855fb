package storyboard

import (
	"fmt"
	"os"
	"time"

	"github.com/tanema/gween/ease"
	"gopkg.in/yaml.v3"
)

// Script actions.
const (
	ActionDrag   = "drag"
	ActionWheel  = "wheel"
	ActionScroll = "scroll"
	ActionJump   = "jump"
	ActionWait   = "wait"
	ActionSettle = "settle"
	ActionMark   = "mark"
)

const defaultSettleFrames = 600

// ScriptStep is a single action in a replay script.
type ScriptStep struct {
	Action string `yaml:"action"`
	Label  string `yaml:"label,omitempty"`
	// X is the horizontal pointer position of a drag.
	X     float64 `yaml:"x,omitempty"`
	FromY float64 `yaml:"fromY,omitempty"`
	ToY   float64 `yaml:"toY,omitempty"`
	// Y is the target offset of scroll and jump.
	Y        float64  `yaml:"y,omitempty"`
	Notches  float64  `yaml:"notches,omitempty"`
	Duration Duration `yaml:"duration,omitempty"`
	Ease     string   `yaml:"ease,omitempty"`
	Frames   int      `yaml:"frames,omitempty"`
}

// Script is a scripted interaction with a stage. JSON is accepted as well,
// being a subset of YAML.
type Script struct {
	Name  string       `yaml:"name,omitempty"`
	FPS   int          `yaml:"fps,omitempty"`
	Steps []ScriptStep `yaml:"steps"`
}

// Mark records the stage state when a mark step ran.
type Mark struct {
	Label  string
	Frame  uint64
	Offset float64
	Active []string
}

var easings = map[string]ease.TweenFunc{
	"":          ease.OutCubic,
	"linear":    ease.Linear,
	"inQuad":    ease.InQuad,
	"outQuad":   ease.OutQuad,
	"inOutQuad": ease.InOutQuad,
	"inCubic":   ease.InCubic,
	"outCubic":  ease.OutCubic,
	"outBack":   ease.OutBack,
	"outBounce": ease.OutBounce,
}

// LoadScript reads and parses a script file.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := ParseScript(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScript decodes and checks a script.
func ParseScript(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if len(s.Steps) == 0 {
		return nil, fmt.Errorf("parse script: no steps")
	}
	for i, st := range s.Steps {
		switch st.Action {
		case ActionDrag, ActionWheel, ActionScroll, ActionJump, ActionWait, ActionSettle, ActionMark:
		default:
			return nil, fmt.Errorf("parse script: step %d: unknown action %q", i, st.Action)
		}
		if _, ok := easings[st.Ease]; !ok {
			return nil, fmt.Errorf("parse script: step %d: unknown ease %q", i, st.Ease)
		}
	}
	return &s, nil
}

// ScriptRunner sequences script steps across stage frames. Attach it with
// Stage.SetScript.
type ScriptRunner struct {
	steps      []ScriptStep
	cursor     int
	waitCount  int
	settleLeft int
	settling   bool
	timedOut   []string
	marks      []Mark
	done       bool

	// OnMark, if set, is called for every mark step.
	OnMark func(Mark)
}

// NewScriptRunner creates a runner for s.
func NewScriptRunner(s *Script) *ScriptRunner {
	return &ScriptRunner{steps: s.Steps}
}

// Done reports whether all steps have been executed.
func (r *ScriptRunner) Done() bool {
	return r.done
}

// Marks returns the marks recorded so far.
func (r *ScriptRunner) Marks() []Mark {
	return r.marks
}

// TimedOut returns the labels of settle steps that gave up before the stage
// came to rest.
func (r *ScriptRunner) TimedOut() []string {
	return r.timedOut
}

// step advances the runner by one frame. Called from Stage.Step.
func (r *ScriptRunner) step(s *Stage) {
	if r.done {
		return
	}
	// Wait for pending injections to drain before advancing.
	if s.input.Pending() > 0 {
		return
	}
	if r.waitCount > 0 {
		r.waitCount--
		return
	}
	if r.settling {
		if !r.atRest(s) {
			if r.settleLeft > 0 {
				r.settleLeft--
				return
			}
			r.timedOut = append(r.timedOut, r.steps[r.cursor-1].Label)
		}
		r.settling = false
	}
	if r.cursor >= len(r.steps) {
		r.done = true
		return
	}

	st := r.steps[r.cursor]
	r.cursor++

	switch st.Action {
	case ActionDrag:
		s.input.InjectDrag(st.X, st.FromY, st.ToY, st.Frames)
	case ActionWheel:
		s.input.InjectWheel(st.Notches)
	case ActionScroll:
		s.view.ScrollTo(st.Y, float32(st.Duration.Std().Seconds()), easings[st.Ease])
	case ActionJump:
		s.view.ScrollTo(st.Y, 0, nil)
	case ActionWait:
		if st.Frames > 0 {
			r.waitCount = st.Frames - 1 // this frame counts as one
		}
	case ActionSettle:
		r.settling = true
		r.settleLeft = st.Frames
		if r.settleLeft <= 0 {
			r.settleLeft = defaultSettleFrames
		}
	case ActionMark:
		m := Mark{Label: st.Label, Frame: s.frame, Offset: s.view.Offset()}
		for _, kf := range s.timeline.Keyframes() {
			if kf.IsActive() {
				m.Active = append(m.Active, kf.Name())
			}
		}
		r.marks = append(r.marks, m)
		if r.OnMark != nil {
			r.OnMark(m)
		}
	}

	if r.cursor >= len(r.steps) && r.waitCount == 0 && !r.settling && s.input.Pending() == 0 {
		r.done = true
	}
}

// atRest reports whether nothing is moving: the view has settled, no tween
// is running and no keyframe has an episode in flight.
func (r *ScriptRunner) atRest(s *Stage) bool {
	return s.view.Settled() && s.animator.Len() == 0 && !s.timeline.InFlight()
}

// Replay steps st at a fixed rate until the runner finishes or maxFrames
// frames have passed. It returns the number of frames stepped. Frames are
// stepped as fast as possible, except that while an episode is in flight
// each frame also yields a millisecond of wall time to the handler
// goroutines.
func Replay(st *Stage, r *ScriptRunner, fps, maxFrames int) int {
	if fps <= 0 {
		fps = 60
	}
	st.SetScript(r)
	dt := 1.0 / float64(fps)
	n := 0
	for !r.Done() && n < maxFrames {
		st.Step(dt)
		n++
		if st.timeline.InFlight() {
			time.Sleep(time.Millisecond)
		}
	}
	return n
}
