package maskflow

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testH = 4
	testW = 5
)

// threeFrames has two detections in frame 0, none in frame 1 and one in
// frame 2
func threeFrames() map[int]fakeFrame {
	return map[int]fakeFrame{
		0: {
			boxes:    [][4]int32{{1, 2, 3, 5}, {0, 0, 2, 2}},
			classIDs: []int32{1, 2},
			scores:   []float32{0.9, 0.75},
			masks: [][]float32{
				plane(testH, testW, 1, [2]int{2, 1}),
				plane(testH, testW, 1, [2]int{0, 0}),
			},
		},
		1: {},
		2: {
			boxes:    [][4]int32{{2, 1, 4, 4}},
			classIDs: []int32{1},
			scores:   []float32{0.5},
			masks:    [][]float32{plane(testH, testW, 1, [2]int{3, 3})},
		},
	}
}

func testSequence(n int) Sequence {
	frames := make([]*Tensor, n)

	for i := range frames {
		frames[i] = frameTensor(i, testH, testW)
	}

	return NewSequence("stack.tif", frames...)
}

func TestDetectTable(t *testing.T) {
	pool := NewPoolFromModels(fakeModel(testH, testW, threeFrames()))
	defer pool.Close()

	table, vol, err := NewDetector(pool, DetectorOptions{}).Detect(context.Background(), testSequence(3))
	require.NoError(t, err)

	want := []Detection{
		{ID: 0, Frame: 0, ClassID: 1, ClassLabel: "microtubule", Score: 0.9, X: 2, Y: 1, Width: 3, Height: 2, ObjectID: Unassigned},
		{ID: 1, Frame: 0, ClassID: 2, ClassLabel: "vesicle", Score: 0.75, X: 0, Y: 0, Width: 2, Height: 2, ObjectID: Unassigned},
		{ID: 2, Frame: 2, ClassID: 1, ClassLabel: "microtubule", Score: 0.5, X: 1, Y: 2, Width: 3, Height: 2, ObjectID: Unassigned},
	}

	if diff := cmp.Diff(want, table.Rows()); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}

	assert.False(t, table.HasObjectIDs())

	require.NotNil(t, vol)
	assert.Equal(t, "Masks of stack.tif", vol.Name)
	assert.Equal(t, 3, vol.Len())
	assert.Equal(t, testW, vol.Width())
	assert.Equal(t, testH, vol.Height())
	assert.Equal(t, float32(1), vol.At(0, 2, 1))
	assert.Equal(t, float32(1), vol.At(1, 0, 0))
	assert.Equal(t, float32(1), vol.At(2, 3, 3))
	assert.Equal(t, float32(0), vol.At(2, 0, 0))
}

func TestDetectBoxesCoverMasks(t *testing.T) {
	frames := map[int]fakeFrame{
		0: {
			// rows 1 to 3, columns 2 to 5
			boxes:    [][4]int32{{1, 2, 3, 5}},
			classIDs: []int32{1},
			scores:   []float32{0.9},
			masks: [][]float32{plane(testH, testW, 1,
				[2]int{2, 1}, [2]int{3, 1}, [2]int{4, 1}, [2]int{2, 2}, [2]int{3, 2}, [2]int{4, 2})},
		},
		1: {
			boxes:    [][4]int32{{0, 0, 2, 1}},
			classIDs: []int32{1},
			scores:   []float32{0.8},
			masks:    [][]float32{plane(testH, testW, 1, [2]int{0, 0}, [2]int{0, 1})},
		},
	}

	pool := NewPoolFromModels(fakeModel(testH, testW, frames))
	defer pool.Close()

	table, vol, err := NewDetector(pool, DetectorOptions{}).Detect(context.Background(), testSequence(2))
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())

	for i, row := range table.Rows() {
		var sx, sy, n int

		for y := 0; y < vol.Height(); y++ {
			for x := 0; x < vol.Width(); x++ {
				if vol.At(i, x, y) > 0.5 {
					sx += x
					sy += y
					n++
				}
			}
		}

		require.NotZero(t, n)

		box := image.Rect(row.X, row.Y, row.X+row.Width, row.Y+row.Height)
		centroid := image.Pt(sx/n, sy/n)
		assert.True(t, centroid.In(box), "detection %d: centroid %v outside box %v", i, centroid, box)
	}
}

func TestDetectIDsDenseAndFrameOrdered(t *testing.T) {
	frames := make(map[int]fakeFrame)

	for f := 0; f < 12; f++ {
		n := f%3 + 1
		ff := fakeFrame{}

		for i := 0; i < n; i++ {
			ff.boxes = append(ff.boxes, [4]int32{0, int32(i), 1, int32(i + 1)})
			ff.classIDs = append(ff.classIDs, 1)
			ff.scores = append(ff.scores, 0.5)
			ff.masks = append(ff.masks, plane(testH, testW, 1, [2]int{i, 0}))
		}

		frames[f] = ff
	}

	// several workers finish frames out of order, rows must not
	pool := NewPoolFromModels(
		fakeModel(testH, testW, frames),
		fakeModel(testH, testW, frames),
		fakeModel(testH, testW, frames),
	)
	defer pool.Close()

	table, vol, err := NewDetector(pool, DetectorOptions{}).Detect(context.Background(), testSequence(12))
	require.NoError(t, err)
	require.Equal(t, 24, table.Len())
	require.Equal(t, 24, vol.Len())

	for i := 0; i < table.Len(); i++ {
		row := table.Row(i)
		assert.Equal(t, i, row.ID)

		if i > 0 {
			assert.GreaterOrEqual(t, row.Frame, table.Row(i-1).Frame)
		}

		// plane i marks pixel (x, 0) where x is the within frame index
		assert.Equal(t, float32(1), vol.At(i, row.X, 0), "plane %d", i)
	}
}

func TestDetectZeroDetections(t *testing.T) {
	empty := map[int]fakeFrame{0: {}, 1: {}}
	pool := NewPoolFromModels(fakeModel(testH, testW, empty))
	defer pool.Close()

	d := NewDetector(pool, DetectorOptions{})

	for run := 0; run < 2; run++ {
		table, vol, err := d.Detect(context.Background(), testSequence(2))
		require.NoError(t, err)
		assert.Equal(t, 0, table.Len())
		assert.Nil(t, vol)
	}
}

func TestDetectStagePassOrder(t *testing.T) {
	pre, det, post := fakeStages(testH, testW, threeFrames())

	var (
		mu    sync.Mutex
		order []Stage
	)

	record := func(stage Stage, e *fakeEngine) {
		fn := e.fn
		e.fn = func(in map[string]*Tensor) (map[string]*Tensor, error) {
			mu.Lock()
			order = append(order, stage)
			mu.Unlock()
			return fn(in)
		}
	}

	record(StagePreprocess, pre)
	record(StageDetect, det)
	record(StagePostprocess, post)

	pool := NewPoolFromModels(NewModel(testParams(), pre, det, post))
	defer pool.Close()

	_, _, err := NewDetector(pool, DetectorOptions{}).Detect(context.Background(), testSequence(3))
	require.NoError(t, err)

	want := []Stage{
		StagePreprocess, StagePreprocess, StagePreprocess,
		StageDetect, StageDetect, StageDetect,
		StagePostprocess, StagePostprocess, StagePostprocess,
	}
	assert.Equal(t, want, order)
}

func TestDetectMissingOutputIsFatal(t *testing.T) {
	pre, det, post := fakeStages(testH, testW, threeFrames())

	fn := det.fn
	det.fn = func(in map[string]*Tensor) (map[string]*Tensor, error) {
		out, err := fn(in)
		delete(out, "output_mrcnn_mask")
		return out, err
	}

	pool := NewPoolFromModels(NewModel(testParams(), pre, det, post))
	defer pool.Close()

	table, vol, err := NewDetector(pool, DetectorOptions{}).Detect(context.Background(), testSequence(3))
	require.Error(t, err)
	assert.Nil(t, table)
	assert.Nil(t, vol)

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StageDetect, stageErr.Stage)
	assert.ErrorIs(t, err, ErrMissingOutput)
	assert.Equal(t, int32(0), post.calls.Load())
}

func TestDetectEngineFailure(t *testing.T) {
	pre, det, post := fakeStages(testH, testW, threeFrames())
	post.fn = func(map[string]*Tensor) (map[string]*Tensor, error) {
		return nil, errors.New("graph exploded")
	}

	pool := NewPoolFromModels(NewModel(testParams(), pre, det, post))
	defer pool.Close()

	_, _, err := NewDetector(pool, DetectorOptions{}).Detect(context.Background(), testSequence(3))

	var stageErr *StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, StagePostprocess, stageErr.Stage)
	assert.Contains(t, err.Error(), "graph exploded")
}

func TestDetectCheckInput(t *testing.T) {
	pool := NewPoolFromModels(fakeModel(testH, testW, threeFrames()))
	defer pool.Close()

	d := NewDetector(pool, DetectorOptions{})

	tests := []struct {
		name  string
		frame *Tensor
	}{
		{"3-D plane", mustTensor(NewFloat32Tensor([]int{2, 2, 2}, make([]float32, 8)))},
		{"too wide", mustTensor(NewFloat32Tensor([]int{4, 17}, make([]float32, 68)))},
		{"too high", mustTensor(NewFloat32Tensor([]int{17, 4}, make([]float32, 68)))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := d.Detect(context.Background(), NewSequence("bad", tt.frame))

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestDetectUnknownClass(t *testing.T) {
	frames := threeFrames()
	f := frames[2]
	f.classIDs = []int32{7}
	frames[2] = f

	pool := NewPoolFromModels(fakeModel(testH, testW, frames))
	defer pool.Close()

	_, _, err := NewDetector(pool, DetectorOptions{}).Detect(context.Background(), testSequence(3))

	var cfgErr *ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestDetectProgress(t *testing.T) {
	pool := NewPoolFromModels(
		fakeModel(testH, testW, threeFrames()),
		fakeModel(testH, testW, threeFrames()),
	)
	defer pool.Close()

	var updates []Status

	d := NewDetector(pool, DetectorOptions{
		Progress: func(s Status) { updates = append(updates, s) },
	})

	_, _, err := d.Detect(context.Background(), testSequence(3))
	require.NoError(t, err)

	last := map[Stage]int{}
	final := map[Stage]bool{}

	for _, u := range updates {
		assert.Greater(t, u.Done, last[u.Stage], "progress of %s went backwards", u.Stage)
		last[u.Stage] = u.Done
		assert.Equal(t, 3, u.Total)

		if u.Done == u.Total {
			final[u.Stage] = true
		}
	}

	assert.True(t, final[StagePreprocess])
	assert.True(t, final[StageDetect])
	assert.True(t, final[StagePostprocess])
}

func TestDetectProgressReusedDetector(t *testing.T) {
	pool := NewPoolFromModels(fakeModel(testH, testW, threeFrames()))
	defer pool.Close()

	var updates []Status

	d := NewDetector(pool, DetectorOptions{
		Progress: func(s Status) { updates = append(updates, s) },
	})

	for run := 0; run < 2; run++ {
		updates = nil

		_, _, err := d.Detect(context.Background(), testSequence(3))
		require.NoError(t, err)

		final := map[Stage]bool{}

		for _, u := range updates {
			if u.Done == u.Total {
				final[u.Stage] = true
			}
		}

		assert.True(t, final[StagePreprocess], "run %d", run)
		assert.True(t, final[StageDetect], "run %d", run)
		assert.True(t, final[StagePostprocess], "run %d", run)
	}
}

func TestDetectCancelled(t *testing.T) {
	pool := NewPoolFromModels(fakeModel(testH, testW, threeFrames()))
	defer pool.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewDetector(pool, DetectorOptions{}).Detect(ctx, testSequence(3))
	assert.ErrorIs(t, err, context.Canceled)
}
