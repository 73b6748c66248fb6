package maskflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/swdee/go-maskflow/lgr"
	"github.com/swdee/go-maskflow/params"
)

// Sequence is an ordered stack of 2-D image planes
type Sequence interface {
	// Name identifies the sequence, it is used to name the mask volume
	Name() string
	// Len returns the number of frames
	Len() int
	// Frame returns plane i as a [height, width] tensor
	Frame(i int) (*Tensor, error)
}

type memSequence struct {
	name   string
	frames []*Tensor
}

// NewSequence returns an in memory Sequence over frames
func NewSequence(name string, frames ...*Tensor) Sequence {
	return &memSequence{name: name, frames: frames}
}

func (s *memSequence) Name() string { return s.name }

func (s *memSequence) Len() int { return len(s.frames) }

func (s *memSequence) Frame(i int) (*Tensor, error) {
	if i < 0 || i >= len(s.frames) {
		return nil, fmt.Errorf("frame %d out of range [0, %d)", i, len(s.frames))
	}
	return s.frames[i], nil
}

// DetectorOptions configures a Detector
type DetectorOptions struct {
	// Progress receives stage progress, may be nil
	Progress ProgressFunc
	// ProgressInterval throttles Progress, defaults to
	// DefaultProgressInterval
	ProgressInterval time.Duration
}

// Detector runs the three stage pipeline over whole sequences and assembles
// the detection table and mask volume
type Detector struct {
	pool     *Pool
	progress ProgressFunc
	interval time.Duration
}

// NewDetector returns a Detector inferring frames on the models of pool.
// Frames of a stage pass run on up to pool.Size() workers.
func NewDetector(pool *Pool, opts DetectorOptions) *Detector {

	interval := opts.ProgressInterval

	if interval <= 0 {
		interval = DefaultProgressInterval
	}

	return &Detector{
		pool:     pool,
		progress: opts.Progress,
		interval: interval,
	}
}

// Detect runs every frame of seq through preprocess, detect and postprocess.
// Each stage completes for all frames before the next stage starts.  Rows of
// the returned table follow frame order regardless of the order frames
// finish in.  When nothing is detected the table is empty and the volume is
// nil.
func (d *Detector) Detect(ctx context.Context, seq Sequence) (*DetectionTable, *MaskVolume, error) {

	p, err := d.parameters(ctx)

	if err != nil {
		return nil, nil, err
	}

	frames, err := loadFrames(seq, p)

	if err != nil {
		return nil, nil, err
	}

	n := len(frames)
	shapes := NewShapeBookkeeper()

	// every run reports its stages from zero
	progress := NewThrottle(d.progress, d.interval)

	pre := make([]*PreprocessOutput, n)
	det := make([]*DetectOutput, n)
	post := make([]*PostprocessOutput, n)

	err = d.pass(ctx, progress, StagePreprocess, n, shapes, func(pipe *FramePipeline, i int) error {
		out, err := pipe.Preprocess(i, frames[i])
		pre[i] = out
		return err
	})

	if err != nil {
		return nil, nil, err
	}

	err = d.pass(ctx, progress, StageDetect, n, shapes, func(pipe *FramePipeline, i int) error {
		out, err := pipe.Detect(i, pre[i])
		det[i] = out
		return err
	})

	if err != nil {
		return nil, nil, err
	}

	err = d.pass(ctx, progress, StagePostprocess, n, shapes, func(pipe *FramePipeline, i int) error {
		out, err := pipe.Postprocess(i, det[i], pre[i])
		post[i] = out
		return err
	})

	if err != nil {
		return nil, nil, err
	}

	total := 0

	for _, out := range post {
		total += out.Count()
	}

	lgr.Logger.Info("objects detected", slog.Int("count", total),
		slog.String("sequence", seq.Name()))

	if total == 0 {
		return &DetectionTable{}, nil, nil
	}

	table, err := BuildTable(post, p.Label)

	if err != nil {
		return nil, nil, &ConfigError{Op: "resolve class labels", Err: err}
	}

	masks := make([]*Tensor, n)

	for i, out := range post {
		masks[i] = out.Masks
	}

	vol, err := BuildMaskVolume(MaskName(seq.Name()), masks)

	if err != nil {
		return nil, nil, err
	}

	return table, vol, nil
}

// parameters returns the bundle parameters shared by the pooled models
func (d *Detector) parameters(ctx context.Context) (*params.Parameters, error) {

	m, err := d.pool.Get(ctx)

	if err != nil {
		return nil, err
	}

	defer d.pool.Return(m)

	return m.Params, nil
}

// loadFrames reads every plane of seq and checks it fits the model
func loadFrames(seq Sequence, p *params.Parameters) ([]*Tensor, error) {

	frames := make([]*Tensor, seq.Len())

	for i := range frames {
		img, err := seq.Frame(i)

		if err != nil {
			return nil, &ConfigError{Op: "read input", Err: fmt.Errorf("frame %d: %w", i, err)}
		}

		if err := checkInput(img, p.ImageMaxDimension); err != nil {
			return nil, &ConfigError{Op: "check input", Err: fmt.Errorf("frame %d: %w", i, err)}
		}

		frames[i] = img
	}

	return frames, nil
}

// checkInput rejects planes the preprocessing graph cannot resize
func checkInput(img *Tensor, maxDim int) error {

	if img.Rank() != 2 {
		return fmt.Errorf("%w: image must be 2-D, got shape %v", ErrInvalidInput, img.Shape())
	}

	if img.Dim(1) > maxDim {
		return fmt.Errorf("%w: width cannot be greater than %d pixels", ErrInvalidInput, maxDim)
	}

	if img.Dim(0) > maxDim {
		return fmt.Errorf("%w: height cannot be greater than %d pixels", ErrInvalidInput, maxDim)
	}

	return nil
}

// pass runs fn for every frame of one stage on the pooled models
func (d *Detector) pass(ctx context.Context, progress *Throttle, stage Stage, n int, shapes *ShapeBookkeeper,
	fn func(pipe *FramePipeline, frame int) error) error {

	lgr.Logger.Info("stage started", slog.String("stage", string(stage)), slog.Int("frames", n))
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.pool.Size())

	var (
		mu   sync.Mutex
		done int
	)

	for i := 0; i < n; i++ {
		frame := i

		g.Go(func() error {

			if err := gctx.Err(); err != nil {
				return err
			}

			m, err := d.pool.Get(gctx)

			if err != nil {
				return err
			}

			defer d.pool.Return(m)

			if err := fn(NewFramePipeline(m, shapes), frame); err != nil {
				return err
			}

			mu.Lock()
			done++
			progress.Update(Status{Stage: stage, Done: done, Total: n})
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		lgr.Logger.Error("stage failed", slog.String("stage", string(stage)), slog.Any("error", err))
		return err
	}

	lgr.Logger.Info("stage done", slog.String("stage", string(stage)),
		slog.Duration("elapsed", time.Since(start)))

	return nil
}
