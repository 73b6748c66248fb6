// Package params reads the parameters.yml file bundled with a model.  The
// values feed the preprocessing graph and resolve class labels.
package params

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// FileName is the name of the parameter file inside a model bundle
const FileName = "parameters.yml"

var (
	// ErrInvalid is wrapped by every validation failure
	ErrInvalid = errors.New("invalid model parameters")
	// ErrUnknownClass is returned when a class id has no label
	ErrUnknownClass = errors.New("unknown class id")
)

// Parameters are the model configuration values bundled with the graphs
type Parameters struct {
	// ClassNames are the labels indexed by class id, index 0 is usually
	// the background class
	ClassNames []string `yaml:"class_names"`
	// ClassIDs are the ids of the classes the model was trained on
	ClassIDs []float64 `yaml:"class_ids"`
	// ImageMinDimension and ImageMaxDimension bound the resized image
	ImageMinDimension int `yaml:"image_min_dimension"`
	ImageMaxDimension int `yaml:"image_max_dimension"`
	// MinimumScale is the smallest up scaling applied when resizing
	MinimumScale float64 `yaml:"minimum_scale"`
	// MeanPixels are subtracted from the image per channel
	MeanPixels []float64 `yaml:"mean_pixels"`
	// BackboneStrides are the strides of each feature pyramid level
	BackboneStrides []int `yaml:"backbone_strides"`
	// RPNAnchorScales has one anchor side length per stride
	RPNAnchorScales []int `yaml:"rpn_anchor_scales"`
	// RPNAnchorRatios are the width/height ratios of the anchors
	RPNAnchorRatios []float64 `yaml:"rpn_anchor_ratios"`
	// RPNAnchorStride is the anchor stride on the feature map
	RPNAnchorStride int `yaml:"rpn_anchor_stride"`
}

// Load reads and validates the parameter file at path
func Load(path string) (*Parameters, error) {

	f, err := os.Open(path)

	if err != nil {
		return nil, fmt.Errorf("error opening parameter file: %w", err)
	}

	defer f.Close()

	return Parse(f)
}

// Parse decodes and validates YAML parameters from r
func Parse(r io.Reader) (*Parameters, error) {

	p := &Parameters{}

	if err := yaml.NewDecoder(r).Decode(p); err != nil {
		return nil, fmt.Errorf("error decoding parameters: %w", err)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return p, nil
}

// Validate checks the parameters are usable by the preprocessing graph
func (p *Parameters) Validate() error {

	switch {
	case len(p.ClassNames) == 0:
		return fmt.Errorf("%w: class_names is empty", ErrInvalid)

	case p.ImageMinDimension <= 0:
		return fmt.Errorf("%w: image_min_dimension must be positive", ErrInvalid)

	case p.ImageMaxDimension <= 0:
		return fmt.Errorf("%w: image_max_dimension must be positive", ErrInvalid)

	case p.ImageMinDimension > p.ImageMaxDimension:
		return fmt.Errorf("%w: image_min_dimension %d is greater than image_max_dimension %d",
			ErrInvalid, p.ImageMinDimension, p.ImageMaxDimension)

	case len(p.BackboneStrides) == 0:
		return fmt.Errorf("%w: backbone_strides is empty", ErrInvalid)

	case len(p.RPNAnchorScales) != len(p.BackboneStrides):
		return fmt.Errorf("%w: %d rpn_anchor_scales for %d backbone_strides",
			ErrInvalid, len(p.RPNAnchorScales), len(p.BackboneStrides))

	case len(p.RPNAnchorRatios) == 0:
		return fmt.Errorf("%w: rpn_anchor_ratios is empty", ErrInvalid)

	case p.RPNAnchorStride <= 0:
		return fmt.Errorf("%w: rpn_anchor_stride must be positive", ErrInvalid)
	}

	return nil
}

// Label returns the class name for a class id
func (p *Parameters) Label(classID int) (string, error) {
	if classID < 0 || classID >= len(p.ClassNames) {
		return "", fmt.Errorf("%w: %d (model has %d classes)", ErrUnknownClass,
			classID, len(p.ClassNames))
	}

	return p.ClassNames[classID], nil
}
