// math/array.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

import (
	gomath "math"
)

// Array2D is a dense row-major 2D array of float64 values.
type Array2D struct {
	Rows, Cols int
	Data       []float64
}

func NewArray2D(rows, cols int) Array2D {
	return Array2D{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

func (a Array2D) At(row, col int) float64 {
	return a.Data[row*a.Cols+col]
}

func (a Array2D) Set(row, col int, v float64) {
	a.Data[row*a.Cols+col] = v
}

///////////////////////////////////////////////////////////////////////////
// Bilinear sampling

// BilinearCell describes the four samples and weights that bilinear
// interpolation at a fractional position uses. Neighbours with a zero
// weight are still reported but callers may ignore them.
type BilinearCell struct {
	X0, Y0, X1, Y1 int
	Fx, Fy         float64
}

// Weights returns the weights of (X0,Y0), (X1,Y0), (X0,Y1), (X1,Y1), in
// that order.
func (c BilinearCell) Weights() [4]float64 {
	return [4]float64{
		(1 - c.Fx) * (1 - c.Fy),
		c.Fx * (1 - c.Fy),
		(1 - c.Fx) * c.Fy,
		c.Fx * c.Fy,
	}
}

// Indices returns the row-major offsets of the four samples for an array
// with the given number of columns, in the same order as Weights.
func (c BilinearCell) Indices(cols int) [4]int {
	return [4]int{
		c.Y0*cols + c.X0,
		c.Y0*cols + c.X1,
		c.Y1*cols + c.X0,
		c.Y1*cols + c.X1,
	}
}

// LocateBilinear finds the interpolation cell for the fractional position
// (x, y) in a w x h array. Positions are valid over [0, w-1] x [0, h-1];
// ok is false for NaN or anything outside of that.
func LocateBilinear(x, y float64, w, h int) (c BilinearCell, ok bool) {
	if w <= 0 || h <= 0 || !(x >= 0 && x <= float64(w-1)) || !(y >= 0 && y <= float64(h-1)) {
		return
	}

	locate := func(v float64, n int) (int, int, float64) {
		i0 := int(gomath.Floor(v))
		if i0 >= n-1 {
			if n == 1 {
				return 0, 0, 0
			}
			i0 = n - 2
		}
		return i0, i0 + 1, v - float64(i0)
	}

	c.X0, c.X1, c.Fx = locate(x, w)
	c.Y0, c.Y1, c.Fy = locate(y, h)
	return c, true
}

// Bilinear interpolates the array at the fractional position (x = column,
// y = row). NaN is returned if the position is out of bounds or if any
// sample that contributes with a non-zero weight is NaN.
func (a Array2D) Bilinear(x, y float64) float64 {
	c, ok := LocateBilinear(x, y, a.Cols, a.Rows)
	if !ok {
		return gomath.NaN()
	}

	idx, wt := c.Indices(a.Cols), c.Weights()
	var sum float64
	for i := range 4 {
		if wt[i] == 0 {
			continue
		}
		v := a.Data[idx[i]]
		if IsNaN(v) {
			return gomath.NaN()
		}
		sum += wt[i] * v
	}
	return sum
}

// BilinearHeading is like Bilinear but treats the samples as headings in
// degrees, unwrapping them around the first contributing sample so that
// interpolation across the 0/360 seam is handled correctly. The result is
// in [0,360).
func (a Array2D) BilinearHeading(x, y float64) float64 {
	c, ok := LocateBilinear(x, y, a.Cols, a.Rows)
	if !ok {
		return gomath.NaN()
	}

	idx, wt := c.Indices(a.Cols), c.Weights()
	ref := gomath.NaN()
	var sum float64
	for i := range 4 {
		if wt[i] == 0 {
			continue
		}
		v := a.Data[idx[i]]
		if IsNaN(v) {
			return gomath.NaN()
		}
		if IsNaN(ref) {
			ref = v
		} else {
			v = UnwrapHeading(v, ref)
		}
		sum += wt[i] * v
	}
	return NormalizeHeading(sum)
}
