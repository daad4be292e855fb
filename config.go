package storyboard

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tanema/gween/ease"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that reads and writes Go duration strings
// ("250ms", "2s") in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Animation names accepted by KeyframeSpec.Animation.
const (
	AnimationNone  = "none"
	AnimationFade  = "fade"
	AnimationSlide = "slide"
)

// Board is a declarative storyboard: a timeline and the keyframes mounted on
// it, each drawn as a colored card.
type Board struct {
	Name           string         `yaml:"name"`
	Length         float64        `yaml:"length,omitempty"`
	SampleThrottle Duration       `yaml:"sampleThrottle,omitempty"`
	Viewport       Viewport       `yaml:"viewport,omitempty"`
	Background     string         `yaml:"background,omitempty"`
	Keyframes      []KeyframeSpec `yaml:"keyframes"`
}

// Viewport is the logical screen size of a board.
type Viewport struct {
	Width  int `yaml:"width,omitempty"`
	Height int `yaml:"height,omitempty"`
}

// KeyframeSpec describes one keyframe of a board.
type KeyframeSpec struct {
	Name           string   `yaml:"name"`
	Start          float64  `yaml:"start"`
	End            float64  `yaml:"end"`
	MinScrollDelta float64  `yaml:"minScrollDelta,omitempty"`
	HandlerTimeout Duration `yaml:"handlerTimeout,omitempty"`
	Color          string   `yaml:"color,omitempty"`
	Animation      string   `yaml:"animation,omitempty"`
	Duration       Duration `yaml:"duration,omitempty"`
	Distance       float64  `yaml:"distance,omitempty"`
	Parallax       float64  `yaml:"parallax,omitempty"`
}

// Range returns the keyframe's scroll range.
func (k KeyframeSpec) Range() ScrollRange {
	return ScrollRange{Start: k.Start, End: k.End}
}

// LoadBoard reads and validates a board file.
func LoadBoard(path string) (*Board, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	b, err := ParseBoard(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// ParseBoard decodes and validates a YAML board.
func ParseBoard(data []byte) (*Board, error) {
	var b Board
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse board: %w", err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// WriteBoard writes b to path as YAML.
func WriteBoard(b *Board, path string) error {
	data, err := yaml.Marshal(b)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports every problem in the board at once.
func (b *Board) Validate() error {
	var err error
	if len(b.Keyframes) == 0 {
		err = multierr.Append(err, errors.New("board has no keyframes"))
	}
	if b.Length < 0 {
		err = multierr.Append(err, fmt.Errorf("negative length %v", b.Length))
	}
	if b.Background != "" {
		if _, cerr := ParseColor(b.Background); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("background: %w", cerr))
		}
	}
	seen := make(map[string]bool, len(b.Keyframes))
	for i, k := range b.Keyframes {
		label := k.Name
		if label == "" {
			label = fmt.Sprintf("#%d", i)
		}
		if k.Name != "" {
			if seen[k.Name] {
				err = multierr.Append(err, fmt.Errorf("keyframe %s: duplicate name", label))
			}
			seen[k.Name] = true
		}
		if rerr := k.Range().Validate(); rerr != nil {
			err = multierr.Append(err, fmt.Errorf("keyframe %s: %w", label, rerr))
		}
		if k.Color != "" {
			if _, cerr := ParseColor(k.Color); cerr != nil {
				err = multierr.Append(err, fmt.Errorf("keyframe %s: %w", label, cerr))
			}
		}
		switch k.Animation {
		case "", AnimationNone, AnimationFade, AnimationSlide:
		default:
			err = multierr.Append(err, fmt.Errorf("keyframe %s: unknown animation %q", label, k.Animation))
		}
	}
	return err
}

// Timeline builds a timeline with every keyframe of the board mounted, in
// board order.
func (b *Board) Timeline(logger *zap.Logger) (*Timeline, []*Keyframe, error) {
	tl := NewTimeline(TimelineConfig{
		Length:         b.Length,
		SampleThrottle: b.SampleThrottle.Std(),
		Logger:         logger,
	})
	kfs := make([]*Keyframe, 0, len(b.Keyframes))
	for _, k := range b.Keyframes {
		kf, err := tl.AddKeyframe(KeyframeConfig{
			Name:           k.Name,
			Range:          k.Range(),
			MinScrollDelta: k.MinScrollDelta,
			HandlerTimeout: k.HandlerTimeout.Std(),
		})
		if err != nil {
			tl.Close()
			return nil, nil, fmt.Errorf("keyframe %q: %w", k.Name, err)
		}
		kfs = append(kfs, kf)
	}
	return tl, kfs, nil
}

// Stage builds the board's timeline and a stage drawing every keyframe as a
// card. Cards with an animation get directional entry and exit handlers
// driven by the stage's animator.
func (b *Board) Stage(cfg StageConfig) (*Stage, error) {
	tl, kfs, err := b.Timeline(cfg.Logger)
	if err != nil {
		return nil, err
	}
	if cfg.Width <= 0 {
		cfg.Width = b.Viewport.Width
	}
	if cfg.Height <= 0 {
		cfg.Height = b.Viewport.Height
	}
	if b.Background != "" {
		cfg.ClearColor, _ = ParseColor(b.Background)
	}
	st := NewStage(tl, cfg)

	for i, kf := range kfs {
		st.SetLayer(kf, b.card(st, kf, b.Keyframes[i], i))
	}
	tl.Refresh()
	return st, nil
}

var cardPalette = []Color{
	{0.88, 0.35, 0.28, 1},
	{0.95, 0.70, 0.25, 1},
	{0.30, 0.69, 0.55, 1},
	{0.28, 0.52, 0.85, 1},
	{0.60, 0.40, 0.80, 1},
}

func (b *Board) card(st *Stage, kf *Keyframe, k KeyframeSpec, i int) Layer {
	c := cardPalette[i%len(cardPalette)]
	if k.Color != "" {
		c, _ = ParseColor(k.Color)
	}
	const margin = 40.0
	w := float64(st.width) - 2*margin
	h := float64(st.height) - 3*margin
	restX, restY := margin, margin+float64(i%4)*8

	s := NewRect(k.Name, w, h, c)
	s.X, s.Y = restX, restY

	dur := float32(k.Duration.Std().Seconds())
	if dur <= 0 {
		dur = 0.4
	}
	dist := k.Distance
	if dist == 0 {
		dist = 120
	}
	a := st.Animator()
	switch k.Animation {
	case AnimationFade:
		s.Alpha = 0
		kf.RegisterDirectionalEntry(a.FadeIn(s, dur, ease.OutCubic))
		kf.RegisterDirectionalExit(a.FadeOut(s, dur, ease.InCubic))
	case AnimationSlide:
		s.Alpha = 0
		kf.RegisterDirectionalEntry(a.SlideIn(s, restX, restY, dist, dur, ease.OutCubic))
		kf.RegisterDirectionalExit(a.SlideOut(s, restX, restY, dist, dur, ease.InCubic))
	}

	l := NewSpriteLayer(s)
	l.Parallax = k.Parallax
	return l
}

// ParseColor parses "#rrggbb" or "#rrggbbaa".
func ParseColor(s string) (Color, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 && len(hex) != 8 {
		return Color{}, fmt.Errorf("invalid color %q", s)
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q", s)
	}
	return Color{
		R: float64(v>>24&0xff) / 255,
		G: float64(v>>16&0xff) / 255,
		B: float64(v>>8&0xff) / 255,
		A: float64(v&0xff) / 255,
	}, nil
}
