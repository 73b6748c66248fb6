package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swdee/go-maskflow"
)

const (
	planeW = 8
	planeH = 6
)

// planeWith returns a planeH x planeW plane with the given (x, y) pixels set
// to 1
func planeWith(pixels ...[2]int) []float32 {
	p := make([]float32, planeW*planeH)

	for _, px := range pixels {
		p[px[1]*planeW+px[0]] = 1
	}

	return p
}

// square returns the pixels of a side x side block with top left (x, y)
func square(x, y, side int) [][2]int {
	var out [][2]int

	for dy := 0; dy < side; dy++ {
		for dx := 0; dx < side; dx++ {
			out = append(out, [2]int{x + dx, y + dy})
		}
	}

	return out
}

// volumeOf builds a volume and a table with one detection per plane, plane
// i belonging to frames[i]
func volumeOf(t *testing.T, frames []int, planes ...[]float32) (*maskflow.MaskVolume, *maskflow.DetectionTable) {
	t.Helper()

	var (
		masks []*maskflow.Tensor
		rows  []maskflow.Detection
	)

	for i, p := range planes {
		m, err := maskflow.NewFloat32Tensor([]int{1, planeH, planeW}, p)
		require.NoError(t, err)
		masks = append(masks, m)

		rows = append(rows, maskflow.Detection{ID: i, Frame: frames[i], ClassID: 1, ClassLabel: "microtubule"})
	}

	vol, err := maskflow.BuildMaskVolume(maskflow.MaskName("test"), masks)
	require.NoError(t, err)

	table, err := maskflow.NewDetectionTable(rows)
	require.NoError(t, err)

	return vol, table
}

func TestExtractSpotsLargestRegion(t *testing.T) {
	// a 4 pixel block and a disjoint 9 pixel block
	pixels := append(square(0, 0, 2), square(4, 2, 3)...)

	vol, table := volumeOf(t, []int{0}, planeWith(pixels...))

	spots, err := ExtractSpots(vol, table, DefaultThreshold)
	require.NoError(t, err)
	require.Len(t, spots, 1)

	assert.Equal(t, 0, spots[0].ID)
	assert.Equal(t, 9, spots[0].Size)
	assert.InDelta(t, 5.0, spots[0].X, 1e-9)
	assert.InDelta(t, 3.0, spots[0].Y, 1e-9)
}

func TestExtractSpotsTieGoesToFirstRegion(t *testing.T) {
	pixels := append(square(5, 3, 2), square(0, 0, 2)...)

	vol, table := volumeOf(t, []int{0}, planeWith(pixels...))

	spots, err := ExtractSpots(vol, table, DefaultThreshold)
	require.NoError(t, err)
	require.Len(t, spots, 1)

	assert.Equal(t, 4, spots[0].Size)
	assert.InDelta(t, 0.5, spots[0].X, 1e-9)
	assert.InDelta(t, 0.5, spots[0].Y, 1e-9)
}

func TestExtractSpotsDiagonalIsConnected(t *testing.T) {
	vol, table := volumeOf(t, []int{0}, planeWith([2]int{1, 1}, [2]int{2, 2}, [2]int{3, 3}))

	spots, err := ExtractSpots(vol, table, DefaultThreshold)
	require.NoError(t, err)
	require.Len(t, spots, 1)
	assert.Equal(t, 3, spots[0].Size)
}

func TestExtractSpotsEmptyPlaneSkipped(t *testing.T) {
	below := planeWith()
	below[0] = 0.4

	vol, table := volumeOf(t, []int{0, 1, 2},
		planeWith(square(1, 1, 2)...),
		below,
		planeWith(square(2, 1, 2)...),
	)

	spots, err := ExtractSpots(vol, table, DefaultThreshold)
	require.NoError(t, err)
	require.Len(t, spots, 2)

	assert.Equal(t, []int{0, 2}, []int{spots[0].ID, spots[1].ID})
	assert.Equal(t, []int{0, 2}, []int{spots[0].Frame, spots[1].Frame})
}

func TestExtractSpotsLengthMismatch(t *testing.T) {
	vol, _ := volumeOf(t, []int{0}, planeWith(square(0, 0, 2)...))

	table, err := maskflow.NewDetectionTable(nil)
	require.NoError(t, err)

	_, err = ExtractSpots(vol, table, DefaultThreshold)
	assert.Error(t, err)

	spots, err := ExtractSpots(nil, table, DefaultThreshold)
	require.NoError(t, err)
	assert.Empty(t, spots)
}
