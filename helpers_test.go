package maskflow

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/swdee/go-maskflow/params"
)

// fakeEngine runs fn for every inference call
type fakeEngine struct {
	fn     func(in map[string]*Tensor) (map[string]*Tensor, error)
	calls  atomic.Int32
	closed atomic.Bool
}

func (f *fakeEngine) Infer(in map[string]*Tensor) (map[string]*Tensor, error) {
	f.calls.Add(1)
	return f.fn(in)
}

func (f *fakeEngine) Close() error {
	f.closed.Store(true)
	return nil
}

// fakeFrame scripts what the postprocessing stage returns for one frame
type fakeFrame struct {
	boxes    [][4]int32
	classIDs []int32
	scores   []float32
	// masks holds one height*width plane per box
	masks [][]float32
}

func testParams() *params.Parameters {
	return &params.Parameters{
		ClassNames:        []string{"BG", "microtubule", "vesicle"},
		ClassIDs:          []float64{0, 1, 2},
		ImageMinDimension: 2,
		ImageMaxDimension: 16,
		MeanPixels:        []float64{0},
		BackboneStrides:   []int{4, 8},
		RPNAnchorScales:   []int{8, 16},
		RPNAnchorRatios:   []float64{0.5, 1, 2},
		RPNAnchorStride:   1,
	}
}

// frameTensor returns an h x w plane filled with the frame index so the fake
// postprocessing stage can tell frames apart
func frameTensor(frame, h, w int) *Tensor {
	data := make([]float32, h*w)

	for i := range data {
		data[i] = float32(frame)
	}

	t, _ := NewFloat32Tensor([]int{h, w}, data)
	return t
}

func mustTensor(t *Tensor, err error) *Tensor {
	if err != nil {
		panic(err)
	}
	return t
}

// fakeStages returns the three stage engines of a model whose postprocessing
// output for frame i is frames[i]
func fakeStages(h, w int, frames map[int]fakeFrame) (pre, det, post *fakeEngine) {

	pre = &fakeEngine{fn: func(in map[string]*Tensor) (map[string]*Tensor, error) {
		for _, name := range preprocessIO.Inputs {
			if _, ok := in[name]; !ok {
				return nil, fmt.Errorf("missing input %s", name)
			}
		}

		return map[string]*Tensor{
			"molded_image":   in["input_image"],
			"image_metadata": mustTensor(NewFloat32Tensor([]int{14}, make([]float32, 14))),
			"window":         mustTensor(NewInt32Tensor([]int{4}, []int32{0, 0, int32(h), int32(w)})),
			"anchors":        mustTensor(NewFloat32Tensor([]int{2, 4}, make([]float32, 8))),
		}, nil
	}}

	det = &fakeEngine{fn: func(in map[string]*Tensor) (map[string]*Tensor, error) {
		img := in["input_image"]

		if img == nil || img.Rank() != 3 || img.Dim(0) != 1 {
			return nil, errors.New("input_image must be batched")
		}

		dummy := mustTensor(NewFloat32Tensor([]int{1, 1}, []float32{0}))

		return map[string]*Tensor{
			"output_detections": img,
			"output_mrcnn_class": dummy,
			"output_mrcnn_bbox":  dummy,
			"output_mrcnn_mask":  dummy,
			"output_rois":        dummy,
		}, nil
	}}

	post = &fakeEngine{fn: func(in map[string]*Tensor) (map[string]*Tensor, error) {
		orig := in["original_image_shape"].Int64s()

		if len(orig) != 3 || orig[0] != int64(h) || orig[1] != int64(w) || orig[2] != 1 {
			return nil, fmt.Errorf("unexpected original_image_shape %v", orig)
		}

		frame := int(in["detections"].Float32s()[0])
		f := frames[frame]
		n := len(f.boxes)

		rois := make([]int32, 0, n*4)
		for _, b := range f.boxes {
			rois = append(rois, b[:]...)
		}

		masks := make([]float32, 0, n*h*w)
		for _, m := range f.masks {
			masks = append(masks, m...)
		}

		return map[string]*Tensor{
			"rois":      mustTensor(NewInt32Tensor([]int{n, 4}, rois)),
			"class_ids": mustTensor(NewInt32Tensor([]int{n}, f.classIDs)),
			"scores":    mustTensor(NewFloat32Tensor([]int{n}, f.scores)),
			"masks":     mustTensor(NewFloat32Tensor([]int{n, h, w}, masks)),
		}, nil
	}}

	return pre, det, post
}

// fakeModel builds a Model from fakeStages
func fakeModel(h, w int, frames map[int]fakeFrame) *Model {
	pre, det, post := fakeStages(h, w, frames)
	return NewModel(testParams(), pre, det, post)
}

// plane returns an h x w plane with value at the listed (x, y) pixels
func plane(h, w int, value float32, pixels ...[2]int) []float32 {
	p := make([]float32, h*w)

	for _, px := range pixels {
		p[px[1]*w+px[0]] = value
	}

	return p
}
