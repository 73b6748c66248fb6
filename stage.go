package maskflow

import "fmt"

// PreprocessOutput holds the tensors produced by the preprocessing graph
type PreprocessOutput struct {
	// MoldedImage is the resized and padded image
	MoldedImage *Tensor
	// ImageMetadata packs the original shape, window and scale for the
	// detection graph
	ImageMetadata *Tensor
	// Window is the (y1, x1, y2, x2) area of the molded image holding the
	// original image
	Window *Tensor
	// Anchors are the normalized anchor boxes for all pyramid levels
	Anchors *Tensor
}

// DetectOutput holds the tensors produced by the detection graph
type DetectOutput struct {
	Detections *Tensor
	MRCNNClass *Tensor
	MRCNNBBox  *Tensor
	MRCNNMask  *Tensor
	ROIs       *Tensor
}

// PostprocessOutput holds the final detections of one frame in original
// image coordinates
type PostprocessOutput struct {
	// ROIs are int boxes of shape [n, 4] as (y1, x1, y2, x2)
	ROIs *Tensor
	// ClassIDs has shape [n]
	ClassIDs *Tensor
	// Scores has shape [n]
	Scores *Tensor
	// Masks has shape [n, height, width], one plane per detection
	Masks *Tensor
}

// lookup returns the named outputs in order or a StageError naming the first
// one missing
func lookup(stage Stage, frame int, out map[string]*Tensor, names []string) ([]*Tensor, error) {

	res := make([]*Tensor, len(names))

	for i, name := range names {
		t, ok := out[name]

		if !ok || t == nil {
			return nil, &StageError{
				Stage: stage,
				Frame: frame,
				Err:   fmt.Errorf("%w: %s", ErrMissingOutput, name),
			}
		}

		res[i] = t
	}

	return res, nil
}

func newPreprocessOutput(frame int, out map[string]*Tensor) (*PreprocessOutput, error) {

	t, err := lookup(StagePreprocess, frame, out, preprocessIO.Outputs)

	if err != nil {
		return nil, err
	}

	return &PreprocessOutput{
		MoldedImage:   t[0],
		ImageMetadata: t[1],
		Window:        t[2],
		Anchors:       t[3],
	}, nil
}

func newDetectOutput(frame int, out map[string]*Tensor) (*DetectOutput, error) {

	t, err := lookup(StageDetect, frame, out, detectIO.Outputs)

	if err != nil {
		return nil, err
	}

	return &DetectOutput{
		Detections: t[0],
		MRCNNClass: t[1],
		MRCNNBBox:  t[2],
		MRCNNMask:  t[3],
		ROIs:       t[4],
	}, nil
}

func newPostprocessOutput(frame int, out map[string]*Tensor) (*PostprocessOutput, error) {

	t, err := lookup(StagePostprocess, frame, out, postprocessIO.Outputs)

	if err != nil {
		return nil, err
	}

	p := &PostprocessOutput{
		ROIs:     t[0],
		ClassIDs: t[1],
		Scores:   t[2],
		Masks:    t[3],
	}

	if err := p.validate(); err != nil {
		return nil, &StageError{Stage: StagePostprocess, Frame: frame, Err: err}
	}

	return p, nil
}

// validate checks all outputs agree on the detection count
func (p *PostprocessOutput) validate() error {

	n := p.ROIs.Dim(0)

	switch {
	case p.ROIs.Rank() != 2 || p.ROIs.Dim(1) != 4:
		return fmt.Errorf("%w: rois shape %v, want [n, 4]", ErrShapeMismatch, p.ROIs.Shape())

	case p.ClassIDs.Rank() != 1 || p.ClassIDs.Dim(0) != n:
		return fmt.Errorf("%w: class_ids shape %v, want [%d]", ErrShapeMismatch, p.ClassIDs.Shape(), n)

	case p.Scores.Rank() != 1 || p.Scores.Dim(0) != n:
		return fmt.Errorf("%w: scores shape %v, want [%d]", ErrShapeMismatch, p.Scores.Shape(), n)

	case p.Masks.Rank() != 3 || p.Masks.Dim(0) != n:
		return fmt.Errorf("%w: masks shape %v, want [%d, h, w]", ErrShapeMismatch, p.Masks.Shape(), n)
	}

	return nil
}

// Count returns the number of detections in the frame
func (p *PostprocessOutput) Count() int {
	return p.ROIs.Dim(0)
}
