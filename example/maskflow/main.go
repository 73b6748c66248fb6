/*
Example command that detects and tracks objects across an image sequence.

	maskflow -input ../data/cells.tif -track -csv cells.csv -overlay out/
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"gocv.io/x/gocv"
	"golang.org/x/xerrors"

	"github.com/swdee/go-maskflow"
	"github.com/swdee/go-maskflow/config"
	"github.com/swdee/go-maskflow/lgr"
	"github.com/swdee/go-maskflow/modelcache"
	"github.com/swdee/go-maskflow/onnx"
	"github.com/swdee/go-maskflow/preprocess"
	"github.com/swdee/go-maskflow/render"
	"github.com/swdee/go-maskflow/store"
	"github.com/swdee/go-maskflow/tracker"
)

var (
	info = color.New(color.FgCyan).SprintfFunc()
	good = color.New(color.FgGreen).SprintfFunc()
	bad  = color.New(color.FgRed, color.Bold).SprintfFunc()
)

type options struct {
	model   string
	name    string
	input   string
	frames  []string
	config  string
	env     string
	track   bool
	csv     string
	db      string
	overlay string
	workers int
	query   bool
}

func main() {

	var opts options

	flag.StringVar(&opts.model, "model", "", "Model name, bundle URL or zip file, overrides the config file")
	flag.StringVar(&opts.name, "name", "sequence", "Sequence name when frames are given as arguments")
	flag.StringVar(&opts.input, "input", "", "Multi page image stack, or pass single frame files as arguments")
	flag.StringVar(&opts.config, "config", "", "JSON run configuration file")
	flag.StringVar(&opts.env, "env", ".env", "Environment file with MASKFLOW_ overrides")
	flag.BoolVar(&opts.track, "track", false, "Link detections across frames into tracks")
	flag.StringVar(&opts.csv, "csv", "", "Write the detection table to this CSV file")
	flag.StringVar(&opts.db, "db", "", "Save the run to this sqlite database")
	flag.StringVar(&opts.overlay, "overlay", "", "Write annotated PNG frames to this directory")
	flag.IntVar(&opts.workers, "workers", 0, "Number of models in the inference pool, overrides the config file")
	flag.BoolVar(&opts.query, "query", false, "Print the model parameters and stage tensors then exit")

	flag.Parse()

	opts.frames = flag.Args()

	if err := run(opts); err != nil {
		lgr.Logger.Error("maskflow failed", slog.Any("error", err))
		fmt.Fprintln(os.Stderr, bad("error: %v", err))
		os.Exit(1)
	}
}

func loadConfig(opts options) (*config.RunConfig, error) {

	if err := config.LoadEnv(opts.env); err != nil {
		return nil, err
	}

	cfg := config.Empty()

	if opts.config != "" {
		var err error

		if cfg, err = config.Load(opts.config); err != nil {
			return nil, err
		}
	}

	cfg.ApplyEnv()

	if opts.model != "" {
		cfg.Model = &opts.model
	}

	if opts.workers > 0 {
		cfg.Workers = &opts.workers
	}

	return cfg, cfg.Validate()
}

func run(opts options) error {

	cfg, err := loadConfig(opts)

	if err != nil {
		return xerrors.Errorf("configuration: %w", err)
	}

	logOpts := lgr.DefaultOptions()
	logOpts.Level = cfg.GetLogLevel()
	logOpts.File = cfg.GetLogFile()

	closer, err := lgr.Init(logOpts)

	if err != nil {
		return xerrors.Errorf("logger: %w", err)
	}

	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := onnx.Init(cfg.GetORTLibrary()); err != nil {
		return xerrors.Errorf("onnxruntime: %w", err)
	}

	defer onnx.Shutdown()

	cache := modelcache.New(cfg.GetCacheDir())
	cache.Progress = func(s maskflow.Status) {
		fmt.Fprintf(os.Stderr, "\r%s", info("downloading model %3.0f%%", s.Percent()))
		if s.Done >= s.Total {
			fmt.Fprintln(os.Stderr)
		}
	}

	dir, err := cache.Dir(ctx, cfg.GetModel())

	if err != nil {
		return xerrors.Errorf("model %q: %w", cfg.GetModel(), err)
	}

	if opts.query {
		m, err := maskflow.LoadModel(dir, onnx.Open)

		if err != nil {
			return xerrors.Errorf("load model: %w", err)
		}

		defer m.Close()

		return m.Query(os.Stdout)
	}

	seq, err := readSequence(opts)

	if err != nil {
		return xerrors.Errorf("input: %w", err)
	}

	pool, err := maskflow.NewPool(cfg.GetWorkers(), dir, onnx.Open)

	if err != nil {
		return xerrors.Errorf("model pool: %w", err)
	}

	defer pool.Close()

	start := time.Now()

	detector := maskflow.NewDetector(pool, maskflow.DetectorOptions{
		Progress: func(s maskflow.Status) {
			fmt.Fprintf(os.Stderr, "\r%s", info("%-12s %3d/%d", s.Stage, s.Done, s.Total))
			if s.Done >= s.Total {
				fmt.Fprintln(os.Stderr)
			}
		},
	})

	table, vol, err := detector.Detect(ctx, seq)

	if err != nil {
		return xerrors.Errorf("detect: %w", err)
	}

	fmt.Println(good("%d detections in %d frames (%s)", table.Len(), seq.Len(),
		time.Since(start).Round(time.Millisecond)))

	var tracks []tracker.Track

	if opts.track {
		tr := &tracker.Tracker{
			Solver:    tracker.NewLAPLinker(),
			Assembler: tracker.Assembler{Merge: cfg.GetMergeTracks()},
			Params:    cfg.TrackerParams(),
			Threshold: cfg.GetMaskThreshold(),
		}

		if tracks, err = tr.Track(vol, table); err != nil {
			return xerrors.Errorf("track: %w", err)
		}

		fmt.Println(good("%d tracks", len(tracks)))
	}

	if opts.csv != "" {
		if err := writeCSV(opts.csv, table); err != nil {
			return xerrors.Errorf("csv: %w", err)
		}
	}

	if opts.db != "" {
		if err := saveRun(ctx, opts.db, cfg.GetModel(), seq, table); err != nil {
			return xerrors.Errorf("store: %w", err)
		}
	}

	if opts.overlay != "" {
		if err := writeOverlays(opts.overlay, seq, table, vol, tracks, cfg.GetMaskThreshold()); err != nil {
			return xerrors.Errorf("overlay: %w", err)
		}
	}

	return nil
}

func readSequence(opts options) (maskflow.Sequence, error) {

	if len(opts.frames) > 0 {
		return preprocess.ReadFrames(opts.name, opts.frames...)
	}

	if opts.input == "" {
		return nil, xerrors.New("no input given, use -input or pass frame files")
	}

	return preprocess.ReadStack(opts.input)
}

func writeCSV(path string, table *maskflow.DetectionTable) error {

	f, err := os.Create(path)

	if err != nil {
		return err
	}

	if err := table.WriteCSV(f); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

func saveRun(ctx context.Context, path, model string, seq maskflow.Sequence,
	table *maskflow.DetectionTable) error {

	s, err := store.Open(path)

	if err != nil {
		return err
	}

	defer s.Close()

	id, err := s.SaveRun(ctx, store.RunInfo{
		Sequence: seq.Name(),
		Model:    model,
		Frames:   seq.Len(),
	}, table)

	if err != nil {
		return err
	}

	fmt.Println(good("saved run %s", id))

	return nil
}

// writeOverlays draws the masks, boxes and trails of every frame into
// <dir>/<sequence>-<frame>.png
func writeOverlays(dir string, seq maskflow.Sequence, table *maskflow.DetectionTable,
	vol *maskflow.MaskVolume, tracks []tracker.Track, threshold float32) error {

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	lut := render.Distinct()

	if table.HasObjectIDs() {
		lut = render.Spectrum()
	}

	colorizer := render.NewColorizer(lut, table.ObjectCount())
	rois := render.ROIs(table, colorizer)

	for frame := 0; frame < seq.Len(); frame++ {

		img, err := seq.Frame(frame)

		if err != nil {
			return err
		}

		mat, err := render.FrameMat(img)

		if err != nil {
			return err
		}

		// plane i belongs to row i of the table
		for i := 0; vol != nil && i < table.Len(); i++ {
			if row := table.Row(i); row.Frame == frame {
				if err := render.MaskOverlay(&mat, vol.Plane(i), threshold,
					rois[i].Color, 0.4); err != nil {
					lgr.Logger.Warn("mask not drawn", slog.Int("detection", i), slog.Any("error", err))
				}
			}
		}

		render.ROIBoxes(&mat, render.ForFrame(rois, frame), render.DefaultFont().Scaled(mat.Rows()), 1)
		render.Trails(&mat, tracks, colorizer, frame, render.DefaultTrailStyle())

		out := filepath.Join(dir, fmt.Sprintf("%s-%04d.png", seq.Name(), frame))
		ok := gocv.IMWrite(out, mat)
		mat.Close()

		if !ok {
			return fmt.Errorf("failed to write %s", out)
		}
	}

	fmt.Println(good("wrote %d overlay frames to %s", seq.Len(), dir))

	return nil
}
