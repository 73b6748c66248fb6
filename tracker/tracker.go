package tracker

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/swdee/go-maskflow"
	"github.com/swdee/go-maskflow/lgr"
)

// Tracker links the detections of a sequence into tracks
type Tracker struct {
	Solver    Solver
	Assembler Assembler
	Params    Params
	// Threshold binarizes mask planes, zero means DefaultThreshold
	Threshold float32
}

// NewTracker returns a Tracker using the LAPLinker and default parameters
func NewTracker() *Tracker {
	return &Tracker{
		Solver:    NewLAPLinker(),
		Params:    DefaultParams(),
		Threshold: DefaultThreshold,
	}
}

// Track extracts a spot per mask plane, links the spots, assembles the
// tracks and writes their object ids into table.  Nothing is written when
// the solver fails.
func (t *Tracker) Track(vol *maskflow.MaskVolume, table *maskflow.DetectionTable) ([]Track, error) {

	start := time.Now()

	threshold := t.Threshold

	if threshold == 0 {
		threshold = DefaultThreshold
	}

	spots, err := ExtractSpots(vol, table, threshold)

	if err != nil {
		return nil, fmt.Errorf("error extracting spots: %w", err)
	}

	if len(spots) == 0 {
		table.AddObjectIDColumn()
		return nil, nil
	}

	graph, err := t.Solver.Solve(spots, t.Params)

	if err != nil {
		lgr.Logger.Error("tracking aborted", slog.Any("error", err))
		return nil, err
	}

	// a solver without links may return no graph at all
	if graph == nil {
		graph = NewLinkGraph()
	}

	tracks := t.Assembler.Assemble(spots, graph)

	if err := Annotate(table, tracks); err != nil {
		return nil, err
	}

	lgr.Logger.Info("tracking done",
		slog.Int("spots", len(spots)),
		slog.Int("links", len(graph.Links())),
		slog.Int("tracks", len(tracks)),
		slog.Duration("took", time.Since(start)),
	)

	return tracks, nil
}
