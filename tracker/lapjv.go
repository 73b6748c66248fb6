package tracker

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

const (
	// LARGE is the initial column reduction value, every cost handed to the
	// solver must be smaller
	LARGE = 1000000.0
)

// assignment is the solution of a square linear assignment problem,
// rowSol[i] is the column assigned to row i and colSol[j] the row assigned
// to column j
type assignment struct {
	rowSol []int
	colSol []int
}

// solveLAP solves the dense square assignment problem given by cost using
// the Jonker-Volgenant algorithm
func solveLAP(cost *mat.Dense) (assignment, error) {

	n, c := cost.Dims()

	if n != c {
		return assignment{}, fmt.Errorf("cost matrix must be square, got %dx%d", n, c)
	}

	a := assignment{
		rowSol: make([]int, n),
		colSol: make([]int, n),
	}

	if n == 0 {
		return a, nil
	}

	if _, err := lapjvInternal(n, cost, a.rowSol, a.colSol); err != nil {
		return assignment{}, err
	}

	return a, nil
}

// lapjvInternal is the main function to solve the dense LAP
// LAPJV (Linear Assignment Problem, Jonker-Volgenant algorithm)
func lapjvInternal(n int, cost *mat.Dense, x, y []int) (int, error) {

	freeRows := make([]int, n)
	v := make([]float64, n)

	ret := ccrrtDense(n, cost, freeRows, x, y, v)

	// at most two rounds of augmenting row reduction before augmentation
	for i := 0; ret > 0 && i < 2; i++ {
		ret = carrDense(n, cost, ret, freeRows, x, y, v)
	}

	if ret > 0 {
		if err := caDense(n, cost, ret, freeRows, x, y, v); err != nil {
			return 0, err
		}

		ret = 0
	}

	return ret, nil
}

// ccrrtDense performs column-reduction and reduction transfer
func ccrrtDense(n int, cost *mat.Dense, freeRows, x, y []int, v []float64) int {

	unique := make([]bool, n)

	for i := 0; i < n; i++ {
		x[i] = -1
		v[i] = LARGE
		y[i] = 0
		unique[i] = true
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if c := cost.At(i, j); c < v[j] {
				v[j] = c
				y[j] = i
			}
		}
	}

	for j := n - 1; j >= 0; j-- {
		i := y[j]

		if x[i] < 0 {
			x[i] = j
		} else {
			unique[i] = false
			y[j] = -1
		}
	}

	nFree := 0

	for i := 0; i < n; i++ {

		if x[i] < 0 {
			freeRows[nFree] = i
			nFree++
			continue
		}

		if !unique[i] {
			continue
		}

		j := x[i]
		minVal := LARGE

		for j2 := 0; j2 < n; j2++ {
			if j2 == j {
				continue
			}

			if c := cost.At(i, j2) - v[j2]; c < minVal {
				minVal = c
			}
		}

		v[j] -= minVal
	}

	return nFree
}

// carrDense performs augmenting row reduction and returns the number of
// rows still free
func carrDense(n int, cost *mat.Dense, nFree int, freeRows, x, y []int, v []float64) int {

	current := 0
	newFree := 0
	rrCnt := 0

	for current < nFree {

		rrCnt++
		freeI := freeRows[current]
		current++

		// find the smallest and second smallest reduced cost of the row
		j1 := 0
		v1 := cost.At(freeI, 0) - v[0]
		j2 := -1
		v2 := LARGE

		for j := 1; j < n; j++ {
			c := cost.At(freeI, j) - v[j]

			if c >= v2 {
				continue
			}

			if c >= v1 {
				v2 = c
				j2 = j
			} else {
				v2 = v1
				v1 = c
				j2 = j1
				j1 = j
			}
		}

		i0 := y[j1]
		v1New := v[j1] - (v2 - v1)
		v1Lowers := v1New < v[j1]

		switch {
		case rrCnt < current*n:
			if v1Lowers {
				v[j1] = v1New
			} else if i0 >= 0 && j2 >= 0 {
				j1 = j2
				i0 = y[j2]
			}

			if i0 >= 0 {
				if v1Lowers {
					current--
					freeRows[current] = i0
				} else {
					freeRows[newFree] = i0
					newFree++
				}
			}

		case i0 >= 0:
			freeRows[newFree] = i0
			newFree++
		}

		x[freeI] = j1
		y[j1] = freeI
	}

	return newFree
}

// findDense moves the columns with minimum d[j] to the SCAN list starting at
// lo and returns the new end of the list
func findDense(n, lo int, d []float64, cols []int) int {

	hi := lo + 1
	minD := d[cols[lo]]

	for k := hi; k < n; k++ {
		j := cols[k]

		if d[j] > minD {
			continue
		}

		if d[j] < minD {
			hi = lo
			minD = d[j]
		}

		cols[k] = cols[hi]
		cols[hi] = j
		hi++
	}

	return hi
}

// scanDense scans the TODO columns trying to decrease their d using the
// columns on the SCAN list.  It returns a free column reached at minimum
// distance or -1.
func scanDense(n int, cost *mat.Dense, lo, hi *int, d []float64,
	cols, pred, y []int, v []float64) int {

	for *lo != *hi {

		j := cols[*lo]
		*lo++
		i := y[j]
		minD := d[j]
		h := cost.At(i, j) - v[j] - minD

		for k := *hi; k < n; k++ {
			j = cols[k]
			credIJ := cost.At(i, j) - v[j] - h

			if credIJ >= d[j] {
				continue
			}

			d[j] = credIJ
			pred[j] = i

			if credIJ == minD {
				if y[j] < 0 {
					return j
				}

				cols[k] = cols[*hi]
				cols[*hi] = j
				*hi++
			}
		}
	}

	return -1
}

// findPathDense runs one iteration of the modified Dijkstra shortest path
// search from row startI and returns the free column reached
func findPathDense(n int, cost *mat.Dense, startI int, y []int, v []float64, pred []int) int {

	lo, hi := 0, 0
	finalJ := -1
	nReady := 0
	cols := make([]int, n)
	d := make([]float64, n)

	for i := 0; i < n; i++ {
		cols[i] = i
		pred[i] = startI
		d[i] = cost.At(startI, i) - v[i]
	}

	for finalJ == -1 {
		// no columns left on the SCAN list
		if lo == hi {
			nReady = lo
			hi = findDense(n, lo, d, cols)

			for k := lo; k < hi; k++ {
				if j := cols[k]; y[j] < 0 {
					finalJ = j
				}
			}
		}

		if finalJ == -1 {
			finalJ = scanDense(n, cost, &lo, &hi, d, cols, pred, y, v)
		}
	}

	minD := d[cols[lo]]

	for k := 0; k < nReady; k++ {
		j := cols[k]
		v[j] += d[j] - minD
	}

	return finalJ
}

// caDense augments the solution along shortest paths for every free row
func caDense(n int, cost *mat.Dense, nFree int, freeRows, x, y []int, v []float64) error {

	pred := make([]int, n)

	for _, freeI := range freeRows[:nFree] {

		j := findPathDense(n, cost, freeI, y, v, pred)

		if j < 0 {
			return errors.New("augmentation failed: no free column reached")
		}

		if j >= n {
			return errors.New("augmentation failed: column out of range")
		}

		i := -1

		for k := 0; i != freeI; k++ {
			if k >= n {
				return errors.New("augmentation failed: path longer than matrix")
			}

			i = pred[j]
			y[j] = i
			j, x[i] = x[i], j
		}
	}

	return nil
}
