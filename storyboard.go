package storyboard

import (
	"fmt"
	"image/color"
)

// ScrollDirection records which way the scroll offset moved at a transition.
type ScrollDirection uint8

const (
	ScrollNone   ScrollDirection = iota // initial value, or entry without a previous sample
	ScrollTop                           // offset decreased (user scrolled upward)
	ScrollBottom                        // offset increased (user scrolled downward)
)

// String returns "none", "top" or "bottom".
func (d ScrollDirection) String() string {
	switch d {
	case ScrollTop:
		return "top"
	case ScrollBottom:
		return "bottom"
	default:
		return "none"
	}
}

// ScrollRange is the region of the scroll axis a Keyframe is active in.
// Both ends are inclusive. Start must be strictly less than End.
type ScrollRange struct {
	Start, End float64
}

// Validate reports ErrInvalidRange when Start >= End.
func (r ScrollRange) Validate() error {
	if r.Start >= r.End {
		return fmt.Errorf("%w: start (%v) must be less than end (%v)", ErrInvalidRange, r.Start, r.End)
	}
	return nil
}

// Contains reports whether y lies inside [Start, End].
func (r ScrollRange) Contains(y float64) bool {
	return y >= r.Start && y <= r.End
}

// Length returns End - Start.
func (r ScrollRange) Length() float64 {
	return r.End - r.Start
}

// Progress maps y to its normalized position inside the range, clamped to
// [0, 1]. Negative offsets (overscroll) are treated as 0. Degenerate ranges
// always yield 0.
func (r ScrollRange) Progress(y float64) float64 {
	span := r.End - r.Start
	if span <= 0 {
		return 0
	}
	raw := (max(0, y) - r.Start) / span
	return min(1, max(0, raw))
}

// Color represents an RGBA color with components in [0, 1]. Not premultiplied.
type Color struct {
	R, G, B, A float64
}

// ColorWhite is the default tint (no color modification).
var ColorWhite = Color{1, 1, 1, 1}

// toRGBA converts to a premultiplied color.RGBA.
func (c Color) toRGBA() color.RGBA {
	a := clamp01(c.A)
	return color.RGBA{
		R: uint8(clamp01(c.R)*a*255 + 0.5),
		G: uint8(clamp01(c.G)*a*255 + 0.5),
		B: uint8(clamp01(c.B)*a*255 + 0.5),
		A: uint8(a*255 + 0.5),
	}
}

// Vec2 is a 2D vector used for positions and offsets.
type Vec2 struct {
	X, Y float64
}

func clamp01(v float64) float64 {
	return min(1, max(0, v))
}
