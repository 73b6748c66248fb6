package maskflow

import (
	"fmt"
	"sync"
)

// FrameShape records a frame's shape before and after preprocessing so the
// postprocessing graph can map detections back to the original image
type FrameShape struct {
	// Original is [height, width, 1] of the input plane
	Original []int
	// Image is the shape of the molded image
	Image []int
}

// OriginalTensor returns the original shape as an int64 tensor
func (s FrameShape) OriginalTensor() *Tensor {
	return shapeTensor(s.Original)
}

// ImageTensor returns the molded image shape as an int64 tensor
func (s FrameShape) ImageTensor() *Tensor {
	return shapeTensor(s.Image)
}

func shapeTensor(shape []int) *Tensor {
	data := make([]int64, len(shape))

	for i, d := range shape {
		data[i] = int64(d)
	}

	return &Tensor{shape: []int{len(shape)}, dtype: Int64, i64: data}
}

// ShapeBookkeeper keeps the FrameShape of every preprocessed frame.  It is
// safe for concurrent use.
type ShapeBookkeeper struct {
	mu     sync.RWMutex
	shapes map[int]FrameShape
}

// NewShapeBookkeeper returns an empty bookkeeper
func NewShapeBookkeeper() *ShapeBookkeeper {
	return &ShapeBookkeeper{shapes: make(map[int]FrameShape)}
}

// Record stores the shapes for frame, replacing any earlier entry
func (b *ShapeBookkeeper) Record(frame int, input, molded *Tensor) FrameShape {

	s := FrameShape{
		Original: []int{input.Dim(0), input.Dim(1), 1},
		Image:    molded.Shape(),
	}

	b.mu.Lock()
	b.shapes[frame] = s
	b.mu.Unlock()

	return s
}

// Get returns the recorded shapes for frame
func (b *ShapeBookkeeper) Get(frame int) (FrameShape, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s, ok := b.shapes[frame]

	if !ok {
		return FrameShape{}, fmt.Errorf("no shape recorded for frame %d", frame)
	}

	return s, nil
}

// Len returns the number of frames recorded
func (b *ShapeBookkeeper) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.shapes)
}
