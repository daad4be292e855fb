package storyboard

import (
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// --- Sprite ---

// Sprite is a drawable element of a keyframe's content. Fields are plain
// values so TweenGroups can animate them in place.
type Sprite struct {
	Name  string
	Image *ebiten.Image

	X, Y           float64
	ScaleX, ScaleY float64
	Rotation       float64
	// PivotX and PivotY are the transform origin as a fraction of the image
	// size. (0.5, 0.5) rotates and scales around the center.
	PivotX, PivotY float64
	Alpha          float64
	Color          Color
	Visible        bool

	solid    bool
	disposed bool
}

// NewSprite creates a visible sprite at the origin with unit scale.
func NewSprite(name string, img *ebiten.Image) *Sprite {
	return &Sprite{
		Name:    name,
		Image:   img,
		ScaleX:  1,
		ScaleY:  1,
		Alpha:   1,
		Color:   ColorWhite,
		Visible: true,
	}
}

// NewRect creates a solid rectangle sprite of the given size. It is drawn by
// stretching a shared 1x1 white image.
func NewRect(name string, w, h float64, c Color) *Sprite {
	s := NewSprite(name, nil)
	s.ScaleX = w
	s.ScaleY = h
	s.Color = c
	s.solid = true
	return s
}

// Dispose marks the sprite as dead. Tweens targeting it stop on their next
// update and it is no longer drawn.
func (s *Sprite) Dispose() {
	s.disposed = true
	s.Image = nil
}

// IsDisposed returns true if this sprite has been disposed.
func (s *Sprite) IsDisposed() bool {
	return s.disposed
}

func (s *Sprite) image() *ebiten.Image {
	if s.Image != nil {
		return s.Image
	}
	if s.solid {
		return ensureWhitePixel()
	}
	return nil
}

// geoM returns the sprite's local-to-screen transform, shifted vertically by dy.
func (s *Sprite) geoM(w, h int, dy float64) ebiten.GeoM {
	var m ebiten.GeoM
	m.Translate(-s.PivotX*float64(w), -s.PivotY*float64(h))
	m.Scale(s.ScaleX, s.ScaleY)
	if s.Rotation != 0 {
		m.Rotate(s.Rotation)
	}
	m.Translate(s.X, s.Y+dy)
	return m
}

// Draw renders the sprite onto dst, offset vertically by dy.
func (s *Sprite) Draw(dst *ebiten.Image, dy float64) {
	if s.disposed || !s.Visible || s.Alpha <= 0 {
		return
	}
	img := s.image()
	if img == nil {
		return
	}
	b := img.Bounds()
	var op ebiten.DrawImageOptions
	op.GeoM = s.geoM(b.Dx(), b.Dy(), dy)
	a := float32(s.Color.A * clamp01(s.Alpha))
	op.ColorScale.Scale(float32(s.Color.R)*a, float32(s.Color.G)*a, float32(s.Color.B)*a, a)
	dst.DrawImage(img, &op)
}

// --- White pixel singleton (only touched from the draw goroutine) ---

var whitePixelImage *ebiten.Image

func ensureWhitePixel() *ebiten.Image {
	if whitePixelImage == nil {
		whitePixelImage = ebiten.NewImage(1, 1)
		whitePixelImage.Fill(color.RGBA{R: 255, G: 255, B: 255, A: 255})
	}
	return whitePixelImage
}

// --- Layers ---

// Layer draws the content attached to one keyframe. The stage calls Draw for
// every rendered keyframe, in mount order, with the keyframe's current state.
type Layer interface {
	Draw(dst *ebiten.Image, st State)
}

// LayerFunc adapts a plain function to the Layer interface.
type LayerFunc func(dst *ebiten.Image, st State)

// Draw calls f(dst, st).
func (f LayerFunc) Draw(dst *ebiten.Image, st State) { f(dst, st) }

// SpriteLayer draws a list of sprites. Parallax shifts them up by
// Parallax*progress pixels as the keyframe range is scrolled through.
type SpriteLayer struct {
	Sprites  []*Sprite
	Parallax float64
}

// NewSpriteLayer creates a layer drawing the given sprites in order.
func NewSpriteLayer(sprites ...*Sprite) *SpriteLayer {
	return &SpriteLayer{Sprites: sprites}
}

// Add appends sprites to the layer.
func (l *SpriteLayer) Add(sprites ...*Sprite) {
	l.Sprites = append(l.Sprites, sprites...)
}

// Offset returns the vertical shift applied at the given progress.
func (l *SpriteLayer) Offset(progress float64) float64 {
	if l.Parallax == 0 {
		return 0
	}
	return -math.Round(l.Parallax * clamp01(progress))
}

// Draw renders every sprite with the parallax offset for st.Progress.
func (l *SpriteLayer) Draw(dst *ebiten.Image, st State) {
	dy := l.Offset(st.Progress)
	for _, s := range l.Sprites {
		s.Draw(dst, dy)
	}
}
