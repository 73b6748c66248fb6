package maskflow

import "fmt"

// MaskVolume stacks every instance mask of a sequence along one time axis.
// Plane i belongs to the detection in row i of the DetectionTable.
type MaskVolume struct {
	// Name describes the source, "Masks of <sequence>"
	Name   string
	width  int
	height int
	planes [][]float32
}

// MaskName returns the volume name used for a sequence
func MaskName(sequence string) string {
	return "Masks of " + sequence
}

// BuildMaskVolume flattens the [n, height, width] mask tensor of every frame
// into a single volume in frame order then within-frame order.  A nil volume
// is returned when no frame has any plane.
func BuildMaskVolume(name string, masks []*Tensor) (*MaskVolume, error) {

	v := &MaskVolume{Name: name}

	for frame, m := range masks {

		if m.Rank() != 3 {
			return nil, fmt.Errorf("%w: frame %d masks shape %v, want [n, h, w]",
				ErrShapeMismatch, frame, m.Shape())
		}

		n, h, w := m.Dim(0), m.Dim(1), m.Dim(2)

		if n == 0 {
			continue
		}

		if len(v.planes) == 0 {
			v.width, v.height = w, h

		} else if w != v.width || h != v.height {
			return nil, fmt.Errorf("%w: frame %d masks are %dx%d, volume is %dx%d",
				ErrShapeMismatch, frame, w, h, v.width, v.height)
		}

		data := m.Float32s()
		size := w * h

		for i := 0; i < n; i++ {
			v.planes = append(v.planes, data[i*size:(i+1)*size])
		}
	}

	if len(v.planes) == 0 {
		return nil, nil
	}

	return v, nil
}

// Len returns the number of planes in the volume
func (v *MaskVolume) Len() int {
	return len(v.planes)
}

// Width returns the plane width in pixels
func (v *MaskVolume) Width() int {
	return v.width
}

// Height returns the plane height in pixels
func (v *MaskVolume) Height() int {
	return v.height
}

// Plane returns plane i as row-major values
func (v *MaskVolume) Plane(i int) []float32 {
	return v.planes[i]
}

// At returns the value of plane i at column x and row y
func (v *MaskVolume) At(i, x, y int) float32 {
	return v.planes[i][y*v.width+x]
}
