package tracker

import (
	"fmt"
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/swdee/go-maskflow"
	"github.com/swdee/go-maskflow/lgr"
)

// DefaultThreshold is the mask value at or above which a pixel is foreground
const DefaultThreshold = 0.5

// Spot is the representative point of one mask plane, the centroid of its
// largest 8-connected region
type Spot struct {
	// ID is the detection id the plane belongs to
	ID    int
	Frame int
	X     float64
	Y     float64
	// Size is the pixel count of the region
	Size int
}

// ExtractSpots reduces every plane of vol to a Spot.  Plane i is paired with
// row i of table.  Planes without foreground pixels produce no Spot.
func ExtractSpots(vol *maskflow.MaskVolume, table *maskflow.DetectionTable,
	threshold float32) ([]Spot, error) {

	if vol == nil {
		if table.Len() != 0 {
			return nil, fmt.Errorf("no mask volume for %d detections", table.Len())
		}

		return nil, nil
	}

	if vol.Len() != table.Len() {
		return nil, fmt.Errorf("mask volume has %d planes, table has %d rows",
			vol.Len(), table.Len())
	}

	spots := make([]Spot, 0, vol.Len())

	for i := 0; i < vol.Len(); i++ {

		spot, ok, err := largestRegion(vol.Plane(i), vol.Width(), vol.Height(), threshold)

		if err != nil {
			return nil, fmt.Errorf("plane %d: %w", i, err)
		}

		if !ok {
			lgr.Logger.Warn("mask plane has no foreground",
				slog.Int("plane", i),
				slog.Int("frame", table.Row(i).Frame),
			)
			continue
		}

		spot.ID = i
		spot.Frame = table.Row(i).Frame
		spots = append(spots, spot)
	}

	return spots, nil
}

// largestRegion labels the binarized plane and returns the centroid and area
// of the biggest component.  Ties go to the lowest label, which is the first
// region met in raster order.
func largestRegion(plane []float32, width, height int, threshold float32) (Spot, bool, error) {

	bin := make([]byte, len(plane))
	fg := false

	for i, v := range plane {
		if v >= threshold {
			bin[i] = 1
			fg = true
		}
	}

	if !fg {
		return Spot{}, false, nil
	}

	src, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8U, bin)

	if err != nil {
		return Spot{}, false, fmt.Errorf("error creating mask Mat: %w", err)
	}

	defer src.Close()

	labels := gocv.NewMat()
	defer labels.Close()
	stats := gocv.NewMat()
	defer stats.Close()
	centroids := gocv.NewMat()
	defer centroids.Close()

	n := gocv.ConnectedComponentsWithStatsWithParams(src, &labels, &stats,
		&centroids, 8, gocv.MatTypeCV32S, gocv.CCL_DEFAULT)

	best := -1
	bestArea := 0

	// label 0 is the background
	for label := 1; label < n; label++ {
		area := int(stats.GetIntAt(label, int(gocv.CC_STAT_AREA)))

		if area > bestArea {
			best = label
			bestArea = area
		}
	}

	if best < 0 {
		return Spot{}, false, nil
	}

	return Spot{
		X:    centroids.GetDoubleAt(best, 0),
		Y:    centroids.GetDoubleAt(best, 1),
		Size: bestArea,
	}, true, nil
}
