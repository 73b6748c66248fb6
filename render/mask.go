package render

import (
	"fmt"
	"image/color"

	"gocv.io/x/gocv"
)

// MaskOverlay blends the pixels of plane at or above threshold onto the BGR
// img in clr with alpha transparency.  The plane must match the image size.
func MaskOverlay(img *gocv.Mat, plane []float32, threshold float32,
	clr color.RGBA, alpha float32) error {

	width := img.Cols()
	height := img.Rows()

	if len(plane) != width*height {
		return fmt.Errorf("mask plane has %d pixels, image is %dx%d", len(plane), width, height)
	}

	// pixel access over CGO is slow so the bytes are blended in Go and
	// copied back
	data := img.ToBytes()

	for idx, v := range plane {

		if v < threshold {
			continue
		}

		pos := idx * 3
		b, g, r := data[pos+0], data[pos+1], data[pos+2]

		data[pos+0] = uint8(float32(b)*(1-alpha) + float32(clr.B)*alpha)
		data[pos+1] = uint8(float32(g)*(1-alpha) + float32(clr.G)*alpha)
		data[pos+2] = uint8(float32(r)*(1-alpha) + float32(clr.R)*alpha)
	}

	tmp, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC3, data)

	if err != nil {
		return fmt.Errorf("error creating overlay Mat: %w", err)
	}

	defer tmp.Close()
	tmp.CopyTo(img)

	return nil
}
