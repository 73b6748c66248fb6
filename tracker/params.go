package tracker

import (
	"errors"
	"fmt"
)

// Params are the distance and gap limits handed to the solver
type Params struct {
	// LinkingMaxDistance is the largest distance in pixels between spots of
	// consecutive frames that may be linked
	LinkingMaxDistance float64
	// GapClosingMaxDistance is the largest distance for a link that skips
	// frames
	GapClosingMaxDistance float64
	// MaxFrameGap is the largest frame difference a gap closing link spans
	MaxFrameGap int
}

// DefaultParams returns the default solver limits
func DefaultParams() Params {
	return Params{
		LinkingMaxDistance:    10.0,
		GapClosingMaxDistance: 10.0,
		MaxFrameGap:           3,
	}
}

// Validate checks the limits are usable
func (p Params) Validate() error {
	switch {
	case p.LinkingMaxDistance <= 0:
		return fmt.Errorf("linking max distance must be positive, got %v", p.LinkingMaxDistance)
	case p.GapClosingMaxDistance <= 0:
		return fmt.Errorf("gap closing max distance must be positive, got %v", p.GapClosingMaxDistance)
	case p.MaxFrameGap < 1:
		return fmt.Errorf("max frame gap must be at least 1, got %d", p.MaxFrameGap)
	}

	return nil
}

// Solver computes the frame to frame links between spots
type Solver interface {
	Solve(spots []Spot, p Params) (*LinkGraph, error)
}

// SolverError reports a failed or infeasible assignment
type SolverError struct {
	Msg string
	Err error
}

func (e *SolverError) Error() string {
	if e.Err == nil {
		return "solver: " + e.Msg
	}

	return fmt.Sprintf("solver: %s: %v", e.Msg, e.Err)
}

func (e *SolverError) Unwrap() error {
	return e.Err
}

// ErrInvalidParams is wrapped by a SolverError when Params fail validation
var ErrInvalidParams = errors.New("invalid solver parameters")
