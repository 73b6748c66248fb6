package render

import (
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"github.com/swdee/go-maskflow/tracker"
)

// TrailStyle defines the parameters used for rendering the trail style
type TrailStyle struct {
	// LineSame draws the trail line in the object colour, otherwise
	// LineColor is used
	LineSame      bool
	LineColor     color.RGBA
	LineThickness int
	// CircleSame draws the current position in the object colour, otherwise
	// CircleColor is used
	CircleSame   bool
	CircleColor  color.RGBA
	CircleRadius int
}

// DefaultTrailStyle returns default trail style settings
func DefaultTrailStyle() TrailStyle {
	return TrailStyle{
		LineSame:      true,
		LineColor:     Yellow,
		LineThickness: 1,
		CircleSame:    true,
		CircleColor:   Pink,
		CircleRadius:  2,
	}
}

// TrailPoints returns the rounded centroids of the spots of t up to and
// including frame
func TrailPoints(t tracker.Track, frame int) []image.Point {
	var pts []image.Point

	for _, s := range t.Spots {
		if s.Frame > frame {
			break
		}

		pts = append(pts, image.Pt(int(math.Round(s.X)), int(math.Round(s.Y))))
	}

	return pts
}

// Trails draws the path of every track up to frame on img, with a circle on
// the most recent position
func Trails(img *gocv.Mat, tracks []tracker.Track, c *Colorizer, frame int,
	style TrailStyle) {

	for _, t := range tracks {

		pts := TrailPoints(t, frame)

		if len(pts) == 0 {
			continue
		}

		objClr := c.Color(t.ObjectID)
		lineClr := objClr
		circleClr := objClr

		if !style.LineSame {
			lineClr = style.LineColor
		}

		if !style.CircleSame {
			circleClr = style.CircleColor
		}

		for i := 1; i < len(pts); i++ {
			gocv.Line(img, pts[i-1], pts[i], lineClr, style.LineThickness)
		}

		// only tracks present on this frame get a position marker
		if last := t.Spots[len(pts)-1]; last.Frame == frame {
			gocv.Circle(img, pts[len(pts)-1], style.CircleRadius, circleClr, -1)
		}
	}
}
