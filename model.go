package maskflow

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/swdee/go-maskflow/params"
)

// Model is a loaded model bundle, the three stage engines plus the bundled
// parameters
type Model struct {
	// Dir is the unpacked bundle directory
	Dir string
	// Params are the values read from parameters.yml
	Params *params.Parameters

	preprocess  Engine
	detect      Engine
	postprocess Engine

	// constants are the parameter tensors fed to every preprocess call
	constants map[string]*Tensor
}

// LoadModel reads the parameter file in dir and opens the three stage graphs
// with open
func LoadModel(dir string, open Opener) (*Model, error) {

	p, err := params.Load(filepath.Join(dir, params.FileName))

	if err != nil {
		return nil, &ConfigError{Op: "load parameters", Err: err}
	}

	m := &Model{
		Dir:       dir,
		Params:    p,
		constants: parameterTensors(p),
	}

	engines := []*Engine{&m.preprocess, &m.detect, &m.postprocess}

	for i, st := range Stages() {
		eng, err := open(filepath.Join(dir, st.Graph), st.Inputs, st.Outputs)

		if err != nil {
			// close any engines opened before receiving the error
			m.Close()
			return nil, &ConfigError{
				Op:  fmt.Sprintf("open %s graph", st.Stage),
				Err: err,
			}
		}

		*engines[i] = eng
	}

	return m, nil
}

// NewModel assembles a Model from already opened engines
func NewModel(p *params.Parameters, preprocess, detect, postprocess Engine) *Model {
	return &Model{
		Params:      p,
		preprocess:  preprocess,
		detect:      detect,
		postprocess: postprocess,
		constants:   parameterTensors(p),
	}
}

// Close releases all stage engines
func (m *Model) Close() error {

	var errs []error

	for _, eng := range []Engine{m.preprocess, m.detect, m.postprocess} {
		if eng == nil {
			continue
		}

		if err := eng.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// parameterTensors converts the bundle parameters to the constant inputs of
// the preprocessing graph
func parameterTensors(p *params.Parameters) map[string]*Tensor {

	classIDs := make([]int32, len(p.ClassIDs))

	for i, v := range p.ClassIDs {
		classIDs[i] = int32(v)
	}

	return map[string]*Tensor{
		"class_ids":           vectorInt32(classIDs),
		"image_min_dimension": ScalarInt32(int32(p.ImageMinDimension)),
		"image_max_dimension": ScalarInt32(int32(p.ImageMaxDimension)),
		"minimum_scale":       ScalarFloat32(float32(p.MinimumScale)),
		"mean_pixels":         vectorFloat32(p.MeanPixels),
		"backbone_strides":    vectorInt32(intsToInt32(p.BackboneStrides)),
		"rpn_anchor_scales":   vectorInt32(intsToInt32(p.RPNAnchorScales)),
		"rpn_anchor_ratios":   vectorFloat32(p.RPNAnchorRatios),
		"rpn_anchor_stride":   ScalarInt32(int32(p.RPNAnchorStride)),
	}
}

func intsToInt32(in []int) []int32 {
	out := make([]int32, len(in))

	for i, v := range in {
		out[i] = int32(v)
	}

	return out
}

func vectorInt32(data []int32) *Tensor {
	return &Tensor{shape: []int{len(data)}, dtype: Int32, i32: data}
}

func vectorFloat32(in []float64) *Tensor {
	data := make([]float32, len(in))

	for i, v := range in {
		data[i] = float32(v)
	}

	return &Tensor{shape: []int{len(data)}, dtype: Float32, f32: data}
}
