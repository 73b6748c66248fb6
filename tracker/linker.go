package tracker

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/swdee/go-maskflow/lgr"
)

const (
	// blocked is the cost of an assignment that is not allowed
	blocked = 1000.0
	// alternativeCost is the normalized cost of leaving a spot unlinked,
	// slightly above the largest allowed link cost of 1
	alternativeCost = 1.05
)

// LAPLinker links spots with two rounds of linear assignment.  The first
// round links spots of consecutive frames, the second closes gaps between
// the end of one segment and the start of another up to MaxFrameGap frames
// later.  Solve calls are serialized.
type LAPLinker struct {
	mu sync.Mutex
}

// NewLAPLinker returns a linker ready for use
func NewLAPLinker() *LAPLinker {
	return &LAPLinker{}
}

// Solve returns the graph of accepted links between spots
func (l *LAPLinker) Solve(spots []Spot, p Params) (*LinkGraph, error) {

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := p.Validate(); err != nil {
		return nil, &SolverError{Msg: err.Error(), Err: ErrInvalidParams}
	}

	graph := NewLinkGraph()
	ordered := make([]Spot, len(spots))
	copy(ordered, spots)

	seen := make(map[int]struct{}, len(spots))

	for _, s := range ordered {
		if _, dup := seen[s.ID]; dup {
			return nil, &SolverError{Msg: fmt.Sprintf("duplicate spot id %d", s.ID)}
		}

		seen[s.ID] = struct{}{}
		graph.AddSpot(s.ID)
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Frame != ordered[j].Frame {
			return ordered[i].Frame < ordered[j].Frame
		}
		return ordered[i].ID < ordered[j].ID
	})

	byFrame := make(map[int][]Spot)
	var frames []int

	for _, s := range ordered {
		if _, ok := byFrame[s.Frame]; !ok {
			frames = append(frames, s.Frame)
		}

		byFrame[s.Frame] = append(byFrame[s.Frame], s)
	}

	hasNext := make(map[int]bool)
	hasPrev := make(map[int]bool)

	// frame to frame linking
	for _, f := range frames {

		next, ok := byFrame[f+1]

		if !ok {
			continue
		}

		allow := func(a, b Spot) (float64, bool) {
			return distanceSq(a, b, p.LinkingMaxDistance)
		}

		if err := l.link(graph, byFrame[f], next, p.LinkingMaxDistance,
			allow, hasNext, hasPrev); err != nil {
			return nil, err
		}
	}

	linked := len(graph.links)

	// gap closing from segment ends to segment starts
	if p.MaxFrameGap >= 2 {

		var ends, starts []Spot

		for _, s := range ordered {
			if !hasNext[s.ID] {
				ends = append(ends, s)
			}

			if !hasPrev[s.ID] {
				starts = append(starts, s)
			}
		}

		allow := func(a, b Spot) (float64, bool) {
			gap := b.Frame - a.Frame

			if gap < 2 || gap > p.MaxFrameGap {
				return 0, false
			}

			return distanceSq(a, b, p.GapClosingMaxDistance)
		}

		if err := l.link(graph, ends, starts, p.GapClosingMaxDistance,
			allow, hasNext, hasPrev); err != nil {
			return nil, err
		}
	}

	lgr.Logger.Debug("spots linked",
		slog.Int("spots", len(spots)),
		slog.Int("frameLinks", linked),
		slog.Int("gapLinks", len(graph.links)-linked),
	)

	return graph, nil
}

// link solves one assignment between sources and targets and adds the
// accepted links to graph
func (l *LAPLinker) link(graph *LinkGraph, sources, targets []Spot, cutoff float64,
	allow func(a, b Spot) (float64, bool), hasNext, hasPrev map[int]bool) error {

	if len(sources) == 0 || len(targets) == 0 {
		return nil
	}

	cost, dist := costMatrix(sources, targets, cutoff, allow)

	sol, err := solveLAP(cost)

	if err != nil {
		return &SolverError{Msg: "linear assignment failed", Err: err}
	}

	for i, j := range sol.rowSol[:len(sources)] {

		if j < 0 || j >= len(targets) || cost.At(i, j) >= blocked {
			continue
		}

		a, b := sources[i], targets[j]

		if err := graph.AddLink(a.ID, b.ID, dist.At(i, j)); err != nil {
			return &SolverError{Msg: "link rejected", Err: err}
		}

		hasNext[a.ID] = true
		hasPrev[b.ID] = true
	}

	return nil
}

// costMatrix builds the augmented square cost matrix for n sources and m
// targets.  The top left block holds link costs normalized by cutoff², the
// diagonals of the top right and bottom left blocks the cost of no link, and
// the bottom right block the transposed allowed links at zero cost.  The
// second matrix holds the squared distances of the allowed links.
func costMatrix(sources, targets []Spot, cutoff float64,
	allow func(a, b Spot) (float64, bool)) (*mat.Dense, *mat.Dense) {

	n, m := len(sources), len(targets)
	size := n + m

	cost := mat.NewDense(size, size, nil)
	dist := mat.NewDense(n, m, nil)

	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			cost.Set(i, j, blocked)
		}
	}

	norm := cutoff * cutoff

	for i, a := range sources {
		for j, b := range targets {

			d2, ok := allow(a, b)

			if !ok {
				continue
			}

			cost.Set(i, j, d2/norm)
			cost.Set(n+j, m+i, 0)
			dist.Set(i, j, d2)
		}
	}

	for i := 0; i < n; i++ {
		cost.Set(i, m+i, alternativeCost)
	}

	for j := 0; j < m; j++ {
		cost.Set(n+j, j, alternativeCost)
	}

	return cost, dist
}

// distanceSq returns the squared distance between a and b when it is within
// cutoff
func distanceSq(a, b Spot, cutoff float64) (float64, bool) {

	d := floats.Distance([]float64{a.X, a.Y}, []float64{b.X, b.Y}, 2)

	if d > cutoff || math.IsNaN(d) {
		return 0, false
	}

	return d * d, true
}
