package render

import (
	"fmt"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/floats"

	"github.com/swdee/go-maskflow"
)

// FrameMat converts a [h, w] grayscale frame into an 8-bit BGR Mat,
// stretching the frame's value range onto 0..255.  The caller must Close the
// returned Mat.
func FrameMat(frame *maskflow.Tensor) (gocv.Mat, error) {

	if frame.Rank() != 2 {
		return gocv.NewMat(), fmt.Errorf("frame shape %v, want [h, w]", frame.Shape())
	}

	h, w := frame.Dim(0), frame.Dim(1)
	vals := make([]float64, 0, frame.Len())

	for _, v := range frame.Float32s() {
		vals = append(vals, float64(v))
	}

	lo, hi := 0.0, 0.0

	if len(vals) > 0 {
		lo, hi = floats.Min(vals), floats.Max(vals)
	}

	scale := 0.0

	if hi > lo {
		scale = 255 / (hi - lo)
	}

	bgr := make([]byte, len(vals)*3)

	for i, v := range vals {
		g := byte((v - lo) * scale)
		bgr[i*3+0] = g
		bgr[i*3+1] = g
		bgr[i*3+2] = g
	}

	return gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC3, bgr)
}
