package tracker

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func printLinks(g *LinkGraph) {
	fmt.Printf("Links found:\n")
	for _, l := range g.Links() {
		fmt.Printf("Spot %d linked to spot %d, d²=%.2f\n", l.A, l.B, l.Weight)
	}
}

func TestLAPLinkerFrameToFrame(t *testing.T) {
	// two objects moving right, listed out of order
	spots := []Spot{
		{ID: 0, Frame: 0, X: 10, Y: 10},
		{ID: 1, Frame: 0, X: 40, Y: 40},
		{ID: 2, Frame: 1, X: 41, Y: 40},
		{ID: 3, Frame: 1, X: 12, Y: 11},
		{ID: 4, Frame: 2, X: 14, Y: 12},
		{ID: 5, Frame: 2, X: 43, Y: 41},
	}

	g, err := NewLAPLinker().Solve(spots, DefaultParams())
	require.NoError(t, err)
	printLinks(g)

	assert.Equal(t, 6, g.Len())
	assert.Len(t, g.Links(), 4)
	assert.True(t, g.Linked(0, 3))
	assert.True(t, g.Linked(3, 4))
	assert.True(t, g.Linked(1, 2))
	assert.True(t, g.Linked(2, 5))
	assert.False(t, g.Linked(0, 2))

	links := g.Links()
	assert.InDelta(t, 5.0, links[0].Weight, 1e-9)
}

func TestLAPLinkerCutoff(t *testing.T) {
	spots := []Spot{
		{ID: 0, Frame: 0, X: 0, Y: 0},
		{ID: 1, Frame: 1, X: 30, Y: 0},
	}

	g, err := NewLAPLinker().Solve(spots, DefaultParams())
	require.NoError(t, err)

	assert.Empty(t, g.Links())
	assert.Equal(t, []int{0, 1}, g.Vertices())
}

func TestLAPLinkerGapClosing(t *testing.T) {
	// the object is missing in frames 1 and 2
	spots := []Spot{
		{ID: 0, Frame: 0, X: 10, Y: 10},
		{ID: 1, Frame: 3, X: 13, Y: 10},
		{ID: 2, Frame: 4, X: 14, Y: 10},
	}

	g, err := NewLAPLinker().Solve(spots, DefaultParams())
	require.NoError(t, err)
	printLinks(g)

	assert.True(t, g.Linked(1, 2))
	assert.True(t, g.Linked(0, 1))
	assert.Len(t, g.Links(), 2)
}

func TestLAPLinkerGapTooLong(t *testing.T) {
	spots := []Spot{
		{ID: 0, Frame: 0, X: 10, Y: 10},
		{ID: 1, Frame: 4, X: 10, Y: 10},
	}

	p := DefaultParams()

	g, err := NewLAPLinker().Solve(spots, p)
	require.NoError(t, err)
	assert.Empty(t, g.Links())

	p.MaxFrameGap = 4

	g, err = NewLAPLinker().Solve(spots, p)
	require.NoError(t, err)
	assert.True(t, g.Linked(0, 1))
}

func TestLAPLinkerInvalidParams(t *testing.T) {
	p := DefaultParams()
	p.LinkingMaxDistance = 0

	_, err := NewLAPLinker().Solve(nil, p)

	var solverErr *SolverError
	require.True(t, errors.As(err, &solverErr))
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestLAPLinkerDuplicateSpot(t *testing.T) {
	_, err := NewLAPLinker().Solve([]Spot{{ID: 1}, {ID: 1, Frame: 1}}, DefaultParams())

	var solverErr *SolverError
	assert.True(t, errors.As(err, &solverErr))
}

func TestLAPLinkerConcurrentCallsAgree(t *testing.T) {
	spots := make([]Spot, 0, 20)

	for f := 0; f < 10; f++ {
		spots = append(spots,
			Spot{ID: 2 * f, Frame: f, X: float64(f), Y: 0},
			Spot{ID: 2*f + 1, Frame: f, X: float64(f), Y: 50},
		)
	}

	linker := NewLAPLinker()
	want, err := linker.Solve(spots, DefaultParams())
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*LinkGraph, 8)

	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = linker.Solve(spots, DefaultParams())
		}(i)
	}

	wg.Wait()

	for _, g := range results {
		require.NotNil(t, g)
		assert.Equal(t, want.Links(), g.Links())
	}
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(p *Params)
		ok   bool
	}{
		{name: "defaults", mod: func(p *Params) {}, ok: true},
		{name: "negative gap distance", mod: func(p *Params) { p.GapClosingMaxDistance = -1 }},
		{name: "zero frame gap", mod: func(p *Params) { p.MaxFrameGap = 0 }},
		{name: "frame gap of one", mod: func(p *Params) { p.MaxFrameGap = 1 }, ok: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := DefaultParams()
			tc.mod(&p)

			if tc.ok {
				assert.NoError(t, p.Validate())
			} else {
				assert.Error(t, p.Validate())
			}
		})
	}
}

func TestLinkGraph(t *testing.T) {
	g := NewLinkGraph()
	g.AddSpot(3)
	g.AddSpot(1)
	g.AddSpot(2)
	g.AddSpot(1)

	require.NoError(t, g.AddLink(1, 3, 2.5))
	require.NoError(t, g.AddLink(1, 2, 1))

	assert.Error(t, g.AddLink(3, 1, 1))
	assert.Error(t, g.AddLink(1, 1, 1))
	assert.Error(t, g.AddLink(1, 9, 1))

	assert.Equal(t, 3, g.Len())
	assert.Equal(t, []int{1, 2, 3}, g.Vertices())
	assert.Equal(t, []int{2, 3}, g.Neighbors(1))
	assert.Equal(t, []int{1}, g.Neighbors(3))
	assert.True(t, g.Linked(3, 1))
	assert.False(t, g.Linked(2, 3))
	assert.Equal(t, []Link{{A: 1, B: 3, Weight: 2.5}, {A: 1, B: 2, Weight: 1}}, g.Links())
}
