package services

import (
	"errors"
	"math"
)

// ErrBadImageSize — у изображения нулевая или отрицательная сторона.
var ErrBadImageSize = errors.New("image has no area")

// PageGeometry — размеры страницы в пунктах. Один пиксель изображения считается одним пунктом.
type PageGeometry struct {
	Width      float64
	Height     float64
	Margin     float64
	MetaHeight float64
	Gap        float64
}

// A4 — страница A4 при 72 dpi с полями 36pt и блоком метаданных сверху.
var A4 = PageGeometry{
	Width:      595.28,
	Height:     841.89,
	Margin:     36,
	MetaHeight: 80,
	Gap:        12,
}

// Placement — положение и размер изображения на странице.
type Placement struct {
	X, Y  float64
	W, H  float64
	Scale float64
}

// UsableWidth — ширина области печати.
func (g PageGeometry) UsableWidth() float64 {
	return g.Width - 2*g.Margin
}

// UsableHeight — высота, оставшаяся под изображение после блока метаданных.
func (g PageGeometry) UsableHeight() float64 {
	return g.Height - 2*g.Margin - g.MetaHeight - g.Gap
}

// Place вписывает изображение w×h в область под блоком метаданных.
//
// Масштаб s = min(usableW/w, usableH/h, 1): пропорции сохраняются, изображение
// не обрезается и никогда не увеличивается. По горизонтали изображение центрируется.
func (g PageGeometry) Place(w, h int) (Placement, error) {
	if w <= 0 || h <= 0 {
		return Placement{}, ErrBadImageSize
	}
	uw, uh := g.UsableWidth(), g.UsableHeight()
	if uw <= 0 || uh <= 0 {
		return Placement{}, errors.New("page leaves no room for an image")
	}

	s := math.Min(1, math.Min(uw/float64(w), uh/float64(h)))
	pw, ph := float64(w)*s, float64(h)*s
	return Placement{
		X:     g.Margin + (uw-pw)/2,
		Y:     g.Margin + g.MetaHeight + g.Gap,
		W:     pw,
		H:     ph,
		Scale: s,
	}, nil
}
