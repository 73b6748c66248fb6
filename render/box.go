package render

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// boxLabel defines where the ROI label should be rendered on the source
// image
type boxLabel struct {
	rect    image.Rectangle
	clr     color.RGBA
	text    string
	textPos image.Point
}

// ROIBoxes renders the bounding boxes of rois with a label above each.
// Tracked ROIs are labelled with their object id, untracked ones with their
// score.
func ROIBoxes(img *gocv.Mat, rois []ROI, font Font, lineThickness int) {

	labels := make([]boxLabel, 0, len(rois))

	for _, r := range rois {

		gocv.Rectangle(img, r.Rect, r.Color, lineThickness)

		text := fmt.Sprintf("%s %.2f", r.Label, r.Score)

		if r.Colored {
			text = fmt.Sprintf("%s %d", r.Label, r.ObjectID)
		}

		labels = append(labels, placeLabel(r.Rect, r.Color, text, font, lineThickness))
	}

	// labels are drawn last so boxes of neighbouring objects never cover them
	for _, l := range labels {
		gocv.Rectangle(img, l.rect, l.clr, -1)

		gocv.PutTextWithParams(img, l.text, l.textPos,
			font.Face, font.Scale, font.Color, font.Thickness,
			font.LineType, false)
	}
}

// placeLabel aligns the label text to the top edge of box
func placeLabel(box image.Rectangle, clr color.RGBA, text string, font Font,
	lineThickness int) boxLabel {

	size := gocv.GetTextSize(text, font.Face, font.Scale, font.Thickness)

	var centerX int

	switch font.Align {
	case Center:
		centerX = (box.Min.X + box.Max.X) / 2

	case Right:
		centerX = box.Max.X - (size.X / 2) - font.Pad.Right + (lineThickness / 2)

	case Left:
		fallthrough
	default:
		centerX = box.Min.X + (size.X / 2) + font.Pad.Left - (lineThickness / 2)
	}

	return boxLabel{
		rect: image.Rect(centerX-size.X/2-font.Pad.Left,
			box.Min.Y-size.Y-font.Pad.Top-font.Pad.Bottom,
			centerX+size.X/2+font.Pad.Right, box.Min.Y),
		clr:     clr,
		text:    text,
		textPos: image.Pt(centerX-size.X/2, box.Min.Y-font.Pad.Bottom),
	}
}
