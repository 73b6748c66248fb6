package maskflow

// Engine runs one inference graph.  Given named input tensors it returns named
// output tensors.  An Engine is used by one goroutine at a time.
type Engine interface {
	Infer(inputs map[string]*Tensor) (map[string]*Tensor, error)
	Close() error
}

// Opener creates an Engine for the graph file at path that accepts the named
// inputs and produces the named outputs
type Opener func(path string, inputs, outputs []string) (Engine, error)

// StageIO lists the tensor names consumed and produced by a stage graph
type StageIO struct {
	Stage   Stage
	Graph   string
	Inputs  []string
	Outputs []string
}

var (
	preprocessIO = StageIO{
		Stage: StagePreprocess,
		Graph: "preprocessing_graph.onnx",
		Inputs: []string{
			"input_image", "original_image_height", "original_image_width",
			"class_ids", "image_min_dimension", "image_max_dimension",
			"minimum_scale", "mean_pixels", "backbone_strides",
			"rpn_anchor_scales", "rpn_anchor_ratios", "rpn_anchor_stride",
		},
		Outputs: []string{"molded_image", "image_metadata", "window", "anchors"},
	}

	detectIO = StageIO{
		Stage:  StageDetect,
		Graph:  "maskrcnn.onnx",
		Inputs: []string{"input_image", "input_image_meta", "input_anchors"},
		Outputs: []string{
			"output_detections", "output_mrcnn_class", "output_mrcnn_bbox",
			"output_mrcnn_mask", "output_rois",
		},
	}

	postprocessIO = StageIO{
		Stage: StagePostprocess,
		Graph: "postprocessing.onnx",
		Inputs: []string{
			"detections", "mrcnn_mask", "original_image_shape", "image_shape", "window",
		},
		Outputs: []string{"rois", "class_ids", "scores", "masks"},
	}
)

// Stages returns the I/O description of the three pipeline stages in
// execution order
func Stages() []StageIO {
	return []StageIO{preprocessIO, detectIO, postprocessIO}
}
