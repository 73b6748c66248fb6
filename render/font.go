package render

import (
	"image/color"

	"gocv.io/x/gocv"
)

// Alignment positions a label horizontally against its box
type Alignment int

const (
	Left Alignment = iota + 1
	Center
	Right
)

// Padding is the space in pixels kept around label text
type Padding struct {
	Left, Right, Top, Bottom int
}

// Font holds the gocv text settings for ROI labels
type Font struct {
	Face      gocv.HersheyFont
	Scale     float64
	Color     color.RGBA
	Thickness int
	LineType  gocv.LineType
	Pad       Padding
	Align     Alignment
}

// DefaultFont is a small plain face in black on the box colour
func DefaultFont() Font {
	return Font{
		Face:      gocv.FontHersheyPlain,
		Scale:     0.8,
		Color:     Black,
		Thickness: 1,
		LineType:  gocv.LineAA,
		Pad:       Padding{Left: 2, Right: 2, Top: 2, Bottom: 3},
		Align:     Left,
	}
}

// Scaled returns f sized for an image of the given height, microscopy frames
// are often only a few hundred pixels high
func (f Font) Scaled(height int) Font {

	if height <= 0 {
		return f
	}

	f.Scale = f.Scale * float64(height) / 512

	if f.Scale < 0.4 {
		f.Scale = 0.4
	}

	return f
}
