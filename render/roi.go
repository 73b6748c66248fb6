package render

import (
	"fmt"
	"image"
	"image/color"
	"strconv"

	"github.com/swdee/go-maskflow"
)

// ROI is a region of interest for one detection, ready for overlay drawing
type ROI struct {
	// Name is "BBox-<id>-Score-<score>-ClassID-<class id>-Frame-<frame>"
	Name string
	// Position is the 1-based frame the ROI is shown on
	Position int
	Rect     image.Rectangle
	Label    string
	Score    float32
	ObjectID int
	Color    color.RGBA
	// Colored is false when the table has not been tracked
	Colored bool
}

// ROIs returns one ROI per detection of table.  Tracked tables are coloured
// by object id through c, untracked ones are drawn Yellow.
func ROIs(table *maskflow.DetectionTable, c *Colorizer) []ROI {

	out := make([]ROI, 0, table.Len())
	tracked := table.HasObjectIDs() && c != nil

	for _, d := range table.Rows() {

		r := ROI{
			Name: fmt.Sprintf("BBox-%d-Score-%s-ClassID-%d-Frame-%d", d.ID,
				strconv.FormatFloat(float64(d.Score), 'f', -1, 32), d.ClassID, d.Frame),
			Position: d.Frame + 1,
			Rect:     image.Rect(d.X, d.Y, d.X+d.Width, d.Y+d.Height),
			Label:    d.ClassLabel,
			Score:    d.Score,
			ObjectID: d.ObjectID,
			Color:    Yellow,
		}

		if tracked {
			r.Color = c.Color(d.ObjectID)
			r.Colored = true
		}

		out = append(out, r)
	}

	return out
}

// ForFrame returns the ROIs shown on the 0-based frame
func ForFrame(rois []ROI, frame int) []ROI {
	var out []ROI

	for _, r := range rois {
		if r.Position == frame+1 {
			out = append(out, r)
		}
	}

	return out
}
