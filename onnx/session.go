// Package onnx runs the model stage graphs with the onnxruntime shared
// library.
package onnx

import (
	"encoding/binary"
	"fmt"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/swdee/go-maskflow"
)

var initMu sync.Mutex

// Init loads the onnxruntime shared library at libPath, an empty path leaves
// the library default, and initializes the runtime environment.  Calling
// Init again after a successful call is a no-op.
func Init(libPath string) error {

	initMu.Lock()
	defer initMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}

	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("error initializing onnxruntime: %w", err)
	}

	return nil
}

// Shutdown destroys the runtime environment
func Shutdown() error {

	initMu.Lock()
	defer initMu.Unlock()

	if !ort.IsInitialized() {
		return nil
	}

	return ort.DestroyEnvironment()
}

// Session is one loaded stage graph
type Session struct {
	path    string
	inputs  []string
	outputs []string
	session *ort.DynamicAdvancedSession
}

// Open loads the graph at path with the given input and output names.  It
// satisfies maskflow.Opener.
func Open(path string, inputs, outputs []string) (maskflow.Engine, error) {

	options, err := ort.NewSessionOptions()

	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}

	defer options.Destroy()

	// the pool runs one session per worker, each kept to a small share of
	// the cores
	threads := runtime.NumCPU() / 2

	if threads < 1 {
		threads = 1
	}

	if err := options.SetIntraOpNumThreads(threads); err != nil {
		return nil, fmt.Errorf("error setting intra op threads: %w", err)
	}

	sess, err := ort.NewDynamicAdvancedSession(path, inputs, outputs, options)

	if err != nil {
		return nil, fmt.Errorf("error creating session for %s: %w", path, err)
	}

	return &Session{
		path:    path,
		inputs:  inputs,
		outputs: outputs,
		session: sess,
	}, nil
}

// Infer runs the graph.  Every declared input must be present, outputs are
// allocated by the runtime and copied out.
func (s *Session) Infer(in map[string]*maskflow.Tensor) (map[string]*maskflow.Tensor, error) {

	inputs := make([]ort.Value, len(s.inputs))
	outputs := make([]ort.Value, len(s.outputs))

	defer func() {
		for _, v := range inputs {
			if v != nil {
				v.Destroy()
			}
		}

		for _, v := range outputs {
			if v != nil {
				v.Destroy()
			}
		}
	}()

	for i, name := range s.inputs {

		t, ok := in[name]

		if !ok {
			return nil, fmt.Errorf("missing input tensor %q", name)
		}

		v, err := toValue(t)

		if err != nil {
			return nil, fmt.Errorf("input %q: %w", name, err)
		}

		inputs[i] = v
	}

	if err := s.session.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("error running %s: %w", s.path, err)
	}

	out := make(map[string]*maskflow.Tensor, len(s.outputs))

	for i, name := range s.outputs {

		t, err := fromValue(outputs[i])

		if err != nil {
			return nil, fmt.Errorf("output %q: %w", name, err)
		}

		out[name] = t
	}

	return out, nil
}

// Close releases the session
func (s *Session) Close() error {
	return s.session.Destroy()
}

// toShape converts dims, scalars are passed as a single element vector
func toShape(dims []int) ort.Shape {

	if len(dims) == 0 {
		return ort.NewShape(1)
	}

	shape := make(ort.Shape, len(dims))

	for i, d := range dims {
		shape[i] = int64(d)
	}

	return shape
}

func fromShape(shape ort.Shape) []int {
	dims := make([]int, len(shape))

	for i, d := range shape {
		dims[i] = int(d)
	}

	return dims
}

// toValue copies t into a runtime tensor
func toValue(t *maskflow.Tensor) (ort.Value, error) {

	shape := toShape(t.Shape())

	switch t.Type() {
	case maskflow.Float32:
		return ort.NewTensor(shape, append([]float32(nil), t.Float32s()...))

	case maskflow.Int32:
		return ort.NewTensor(shape, append([]int32(nil), t.Int32s()...))

	case maskflow.Int64:
		return ort.NewTensor(shape, append([]int64(nil), t.Int64s()...))

	case maskflow.Uint8:
		return ort.NewTensor(shape, append([]uint8(nil), t.Uint8s()...))

	case maskflow.Float16:
		bits := t.Uint16Bits()
		raw := make([]byte, 2*len(bits))

		for i, b := range bits {
			binary.LittleEndian.PutUint16(raw[2*i:], b)
		}

		return ort.NewCustomDataTensor(shape, raw, ort.TensorElementDataTypeFloat16)
	}

	return nil, fmt.Errorf("unsupported tensor type %v", t.Type())
}

// fromValue copies a runtime allocated output into a Tensor
func fromValue(v ort.Value) (*maskflow.Tensor, error) {

	if v == nil {
		return nil, fmt.Errorf("output not allocated")
	}

	dims := fromShape(v.GetShape())

	switch tv := v.(type) {
	case *ort.Tensor[float32]:
		return maskflow.NewFloat32Tensor(dims, append([]float32(nil), tv.GetData()...))

	case *ort.Tensor[int32]:
		return maskflow.NewInt32Tensor(dims, append([]int32(nil), tv.GetData()...))

	case *ort.Tensor[int64]:
		return maskflow.NewInt64Tensor(dims, append([]int64(nil), tv.GetData()...))

	case *ort.Tensor[uint8]:
		return maskflow.NewUint8Tensor(dims, append([]uint8(nil), tv.GetData()...))

	case *ort.CustomDataTensor:
		// half precision is the only custom type the graphs emit
		raw := tv.GetData()
		bits := make([]uint16, len(raw)/2)

		for i := range bits {
			bits[i] = binary.LittleEndian.Uint16(raw[2*i:])
		}

		return maskflow.NewFloat16Tensor(dims, bits)
	}

	return nil, fmt.Errorf("unsupported output type %T", v)
}
