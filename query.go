package maskflow

import (
	"fmt"
	"io"
	"strings"
)

// Query writes the model parameters and the tensor names of every stage in
// text/human readable format
func (m *Model) Query(w io.Writer) error {

	if m.Params == nil {
		return fmt.Errorf("model has no parameters loaded")
	}

	p := m.Params

	fmt.Fprintf(w, "Model Directory: %s\n", m.Dir)
	fmt.Fprintf(w, "Classes (%d): %s\n", len(p.ClassNames), strings.Join(p.ClassNames, ", "))
	fmt.Fprintf(w, "Image Dimension: min=%d, max=%d, minimum_scale=%g\n",
		p.ImageMinDimension, p.ImageMaxDimension, p.MinimumScale)
	fmt.Fprintf(w, "Mean Pixels: %v\n", p.MeanPixels)
	fmt.Fprintf(w, "Anchors: strides=%v, scales=%v, ratios=%v, stride=%d\n",
		p.BackboneStrides, p.RPNAnchorScales, p.RPNAnchorRatios, p.RPNAnchorStride)

	for _, st := range Stages() {
		fmt.Fprintf(w, "Stage %s (%s):\n", st.Stage, st.Graph)
		fmt.Fprintf(w, "  Input tensors: %s\n", strings.Join(st.Inputs, ", "))
		fmt.Fprintf(w, "  Output tensors: %s\n", strings.Join(st.Outputs, ", "))
	}

	return nil
}
