package maskflow

import (
	"fmt"
	"log/slog"

	"github.com/swdee/go-maskflow/lgr"
)

// FrameResult holds the outputs of all three stages for one frame
type FrameResult struct {
	Frame       int
	Shape       FrameShape
	Preprocess  *PreprocessOutput
	Detect      *DetectOutput
	Postprocess *PostprocessOutput
}

// FramePipeline runs the preprocess, detect and postprocess stages of a
// Model for single frames.  Frames are independent so separate pipelines
// sharing one ShapeBookkeeper may run concurrently.
type FramePipeline struct {
	model  *Model
	shapes *ShapeBookkeeper
}

// NewFramePipeline returns a pipeline running model and recording frame
// shapes in shapes
func NewFramePipeline(model *Model, shapes *ShapeBookkeeper) *FramePipeline {
	return &FramePipeline{model: model, shapes: shapes}
}

// Preprocess resizes and pads a 2-D image plane and generates its anchors
func (p *FramePipeline) Preprocess(frame int, img *Tensor) (*PreprocessOutput, error) {

	if img.Rank() != 2 {
		return nil, &StageError{
			Stage: StagePreprocess,
			Frame: frame,
			Err:   fmt.Errorf("%w: expected a 2-D plane, got %v", ErrInvalidInput, img.Shape()),
		}
	}

	inputs := make(map[string]*Tensor, len(preprocessIO.Inputs))

	for name, t := range p.model.constants {
		inputs[name] = t
	}

	inputs["input_image"] = img
	inputs["original_image_height"] = ScalarInt32(int32(img.Dim(0)))
	inputs["original_image_width"] = ScalarInt32(int32(img.Dim(1)))

	out, err := p.model.preprocess.Infer(inputs)

	if err != nil {
		return nil, &StageError{Stage: StagePreprocess, Frame: frame, Err: err}
	}

	pre, err := newPreprocessOutput(frame, out)

	if err != nil {
		return nil, err
	}

	shape := p.shapes.Record(frame, img, pre.MoldedImage)

	lgr.Logger.Debug("preprocessed frame",
		slog.Int("frame", frame),
		slog.String("molded_image", pre.MoldedImage.String()),
		slog.String("anchors", pre.Anchors.String()),
		slog.Any("original_shape", shape.Original),
	)

	return pre, nil
}

// Detect runs the detection graph on a preprocessed frame.  Every input gets
// a leading batch dimension.
func (p *FramePipeline) Detect(frame int, pre *PreprocessOutput) (*DetectOutput, error) {

	inputs := make(map[string]*Tensor, len(detectIO.Inputs))
	feed := map[string]*Tensor{
		"input_image":      pre.MoldedImage,
		"input_image_meta": pre.ImageMetadata,
		"input_anchors":    pre.Anchors,
	}

	for name, t := range feed {
		batched, err := t.ExpandDims(0)

		if err != nil {
			return nil, &StageError{Stage: StageDetect, Frame: frame, Err: err}
		}

		inputs[name] = batched
	}

	out, err := p.model.detect.Infer(inputs)

	if err != nil {
		return nil, &StageError{Stage: StageDetect, Frame: frame, Err: err}
	}

	det, err := newDetectOutput(frame, out)

	if err != nil {
		return nil, err
	}

	lgr.Logger.Debug("detected frame",
		slog.Int("frame", frame),
		slog.String("detections", det.Detections.String()),
		slog.String("mrcnn_mask", det.MRCNNMask.String()),
	)

	return det, nil
}

// Postprocess maps raw detections of a frame back to original image
// coordinates and produces full size masks
func (p *FramePipeline) Postprocess(frame int, det *DetectOutput,
	pre *PreprocessOutput) (*PostprocessOutput, error) {

	shape, err := p.shapes.Get(frame)

	if err != nil {
		return nil, &StageError{Stage: StagePostprocess, Frame: frame, Err: err}
	}

	inputs := map[string]*Tensor{
		"detections":           det.Detections,
		"mrcnn_mask":           det.MRCNNMask,
		"original_image_shape": shape.OriginalTensor(),
		"image_shape":          shape.ImageTensor(),
		"window":               pre.Window,
	}

	out, err := p.model.postprocess.Infer(inputs)

	if err != nil {
		return nil, &StageError{Stage: StagePostprocess, Frame: frame, Err: err}
	}

	post, err := newPostprocessOutput(frame, out)

	if err != nil {
		return nil, err
	}

	lgr.Logger.Debug("postprocessed frame",
		slog.Int("frame", frame),
		slog.Int("detections", post.Count()),
		slog.String("masks", post.Masks.String()),
	)

	return post, nil
}

// RunFrame runs all three stages on one frame in order
func (p *FramePipeline) RunFrame(frame int, img *Tensor) (*FrameResult, error) {

	pre, err := p.Preprocess(frame, img)

	if err != nil {
		return nil, err
	}

	det, err := p.Detect(frame, pre)

	if err != nil {
		return nil, err
	}

	post, err := p.Postprocess(frame, det, pre)

	if err != nil {
		return nil, err
	}

	shape, _ := p.shapes.Get(frame)

	return &FrameResult{
		Frame:       frame,
		Shape:       shape,
		Preprocess:  pre,
		Detect:      det,
		Postprocess: post,
	}, nil
}
