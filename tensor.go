package maskflow

import (
	"fmt"
	"strings"
)

// DType is the element type stored in a Tensor
type DType int

const (
	Float32 DType = iota
	Float16
	Int32
	Int64
	Uint8
)

// String returns a readable description of the DType
func (t DType) String() string {
	switch t {
	case Float32:
		return "FP32"
	case Float16:
		return "FP16"
	case Int32:
		return "INT32"
	case Int64:
		return "INT64"
	case Uint8:
		return "UINT8"
	default:
		return "UNKNOW"
	}
}

// Tensor is a dense row-major n-dimensional array passed to and returned
// from the inference stages
type Tensor struct {
	shape []int
	dtype DType
	f32   []float32
	f16   []uint16
	i32   []int32
	i64   []int64
	u8    []uint8
}

// elements returns the number of elements described by shape
func elements(shape []int) int {
	n := 1

	for _, d := range shape {
		n *= d
	}

	return n
}

func checkShape(shape []int, n int) error {

	for _, d := range shape {
		if d < 0 {
			return fmt.Errorf("negative dimension in shape %v", shape)
		}
	}

	if elements(shape) != n {
		return fmt.Errorf("shape %v needs %d elements, got %d", shape, elements(shape), n)
	}

	return nil
}

// NewFloat32Tensor wraps data as a float32 tensor of the given shape
func NewFloat32Tensor(shape []int, data []float32) (*Tensor, error) {
	if err := checkShape(shape, len(data)); err != nil {
		return nil, err
	}

	return &Tensor{shape: copyShape(shape), dtype: Float32, f32: data}, nil
}

// NewFloat16Tensor wraps raw IEEE 754 half precision bits as a tensor
func NewFloat16Tensor(shape []int, bits []uint16) (*Tensor, error) {
	if err := checkShape(shape, len(bits)); err != nil {
		return nil, err
	}

	return &Tensor{shape: copyShape(shape), dtype: Float16, f16: bits}, nil
}

// NewInt32Tensor wraps data as an int32 tensor of the given shape
func NewInt32Tensor(shape []int, data []int32) (*Tensor, error) {
	if err := checkShape(shape, len(data)); err != nil {
		return nil, err
	}

	return &Tensor{shape: copyShape(shape), dtype: Int32, i32: data}, nil
}

// NewInt64Tensor wraps data as an int64 tensor of the given shape
func NewInt64Tensor(shape []int, data []int64) (*Tensor, error) {
	if err := checkShape(shape, len(data)); err != nil {
		return nil, err
	}

	return &Tensor{shape: copyShape(shape), dtype: Int64, i64: data}, nil
}

// NewUint8Tensor wraps data as a uint8 tensor of the given shape
func NewUint8Tensor(shape []int, data []uint8) (*Tensor, error) {
	if err := checkShape(shape, len(data)); err != nil {
		return nil, err
	}

	return &Tensor{shape: copyShape(shape), dtype: Uint8, u8: data}, nil
}

// ScalarInt32 returns a rank 0 int32 tensor
func ScalarInt32(v int32) *Tensor {
	return &Tensor{shape: []int{}, dtype: Int32, i32: []int32{v}}
}

// ScalarFloat32 returns a rank 0 float32 tensor
func ScalarFloat32(v float32) *Tensor {
	return &Tensor{shape: []int{}, dtype: Float32, f32: []float32{v}}
}

func copyShape(shape []int) []int {
	out := make([]int, len(shape))
	copy(out, shape)
	return out
}

// Type returns the element type of the tensor
func (t *Tensor) Type() DType {
	return t.dtype
}

// Shape returns a copy of the tensor dimensions
func (t *Tensor) Shape() []int {
	return copyShape(t.shape)
}

// Rank returns the number of dimensions
func (t *Tensor) Rank() int {
	return len(t.shape)
}

// Dim returns the size of dimension i, or 0 if i is out of range
func (t *Tensor) Dim(i int) int {
	if i < 0 || i >= len(t.shape) {
		return 0
	}
	return t.shape[i]
}

// Len returns the total number of elements
func (t *Tensor) Len() int {
	return elements(t.shape)
}

// Float32s returns the tensor data as float32 values, converting from the
// stored type when needed.  Float32 data is returned without a copy.
func (t *Tensor) Float32s() []float32 {

	switch t.dtype {
	case Float32:
		return t.f32

	case Float16:
		out := make([]float32, len(t.f16))
		for i, b := range t.f16 {
			out[i] = f16LookupTable[b]
		}
		return out

	case Int32:
		out := make([]float32, len(t.i32))
		for i, v := range t.i32 {
			out[i] = float32(v)
		}
		return out

	case Int64:
		out := make([]float32, len(t.i64))
		for i, v := range t.i64 {
			out[i] = float32(v)
		}
		return out

	case Uint8:
		out := make([]float32, len(t.u8))
		for i, v := range t.u8 {
			out[i] = float32(v)
		}
		return out
	}

	return nil
}

// Int32s returns the tensor data as int32 values.  Floating point values are
// truncated toward zero.
func (t *Tensor) Int32s() []int32 {

	switch t.dtype {
	case Int32:
		return t.i32

	case Int64:
		out := make([]int32, len(t.i64))
		for i, v := range t.i64 {
			out[i] = int32(v)
		}
		return out

	case Uint8:
		out := make([]int32, len(t.u8))
		for i, v := range t.u8 {
			out[i] = int32(v)
		}
		return out
	}

	fl := t.Float32s()
	out := make([]int32, len(fl))

	for i, v := range fl {
		out[i] = int32(v)
	}

	return out
}

// Int64s returns the tensor data as int64 values
func (t *Tensor) Int64s() []int64 {
	if t.dtype == Int64 {
		return t.i64
	}

	i32 := t.Int32s()
	out := make([]int64, len(i32))

	for i, v := range i32 {
		out[i] = int64(v)
	}

	return out
}

// Uint16Bits returns the raw half precision bits of a Float16 tensor
func (t *Tensor) Uint16Bits() []uint16 {
	return t.f16
}

// Uint8s returns the data of a Uint8 tensor
func (t *Tensor) Uint8s() []uint8 {
	return t.u8
}

// ExpandDims returns a tensor sharing the same data with a dimension of size
// one inserted at axis
func (t *Tensor) ExpandDims(axis int) (*Tensor, error) {

	if axis < 0 || axis > len(t.shape) {
		return nil, fmt.Errorf("axis %d out of range for rank %d", axis, len(t.shape))
	}

	shape := make([]int, 0, len(t.shape)+1)
	shape = append(shape, t.shape[:axis]...)
	shape = append(shape, 1)
	shape = append(shape, t.shape[axis:]...)

	out := *t
	out.shape = shape

	return &out, nil
}

// String returns the tensor type and shape formatted as a string
func (t *Tensor) String() string {
	dims := make([]string, len(t.shape))

	for i, d := range t.shape {
		dims[i] = fmt.Sprintf("%d", d)
	}

	return fmt.Sprintf("%s[%s]", t.dtype.String(), strings.Join(dims, ", "))
}
