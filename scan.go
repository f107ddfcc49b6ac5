// Copyright (c) 2020–2024 The drumscan developers. All rights reserved.
// Project site: https://github.com/mcphysics/drumscan
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package drumscan

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/floats"
)

// LargeGrid is the points-per-axis above which SquareScan warns that the
// scan will take a long time.
const LargeGrid = 15

// ScanPoint is a polar stage position.
type ScanPoint struct {
	R, A float64
}

// AngleScan configures DCVsAngle.
type AngleScan struct {
	R      float64       // radius held during the sweep
	A1, A2 float64       // first and last angle, degrees
	Steps  int           // number of angles, both ends included
	Settle time.Duration // wait after each move before acquiring

	// Channel is the m2k column averaged at each stop. Defaults to V1.
	Channel string
}

// DefaultAngleScan returns a full turn at radius 60 in 5 degree steps.
func DefaultAngleScan() AngleScan {
	return AngleScan{
		R:       60,
		A1:      0,
		A2:      355,
		Steps:   71,
		Settle:  500 * time.Millisecond,
		Channel: "V1",
	}
}

// SweepResult holds the angles actually reached and the mean voltage
// measured at each, in the order visited.
type SweepResult struct {
	Angles []float64
	Values []float64
}

// Len returns the number of measurements.
func (r *SweepResult) Len() int { return len(r.Angles) }

// GridScanResult holds the positions actually reached during SquareScan.
// Points are in visiting order, which is sorted by radius rather than by
// any raster order; callers re-sort as needed.
type GridScanResult struct {
	X, Y []float64

	// Commanded holds the polar commands in visiting order.
	Commanded []ScanPoint
}

// Len returns the number of points.
func (r *GridScanResult) Len() int { return len(r.X) }

// Rows returns the result as a 2×N array of x and y.
func (r *GridScanResult) Rows() [2][]float64 { return [2][]float64{r.X, r.Y} }

// Linspace returns n evenly spaced values from l to u inclusive. n == 1
// yields [l] and n <= 0 an empty slice.
func Linspace(l, u float64, n int) []float64 {
	switch {
	case n <= 0:
		return []float64{}
	case n == 1:
		return []float64{l}
	}
	return floats.Span(make([]float64, n), l, u)
}

// DCVsAngle steps the stage through evenly spaced angles at a fixed radius
// and records the mean DC voltage measured by the m2k at each stop.
func (s *Session) DCVsAngle(ctx context.Context, scan AngleScan) (*SweepResult, error) {
	if scan.Steps < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSteps, scan.Steps)
	}
	if s.stage == nil {
		return nil, ErrNoStage
	}
	if s.m2k == nil {
		return nil, ErrNoM2K
	}
	if scan.Channel == "" {
		scan.Channel = "V1"
	}

	res := &SweepResult{
		Angles: make([]float64, 0, scan.Steps),
		Values: make([]float64, 0, scan.Steps),
	}
	for _, a := range Linspace(scan.A1, scan.A2, scan.Steps) {
		s.logf("driving to r=%g a=%g", scan.R, a)
		_, aActual, err := s.stage.SetRA(ctx, scan.R, a)
		if err != nil {
			return nil, fmt.Errorf("moving to r=%g a=%g: %w", scan.R, a, err)
		}
		if err := s.sleep(ctx, scan.Settle); err != nil {
			return nil, fmt.Errorf("settling at a=%g: %w", a, err)
		}
		d, err := s.AcquireM2K(ctx)
		if err != nil {
			return nil, err
		}
		v, err := d.Mean(scan.Channel)
		if err != nil {
			return nil, fmt.Errorf("averaging at a=%g: %w", a, err)
		}
		res.Angles = append(res.Angles, aActual)
		res.Values = append(res.Values, v)
	}
	return res, nil
}

// GridPoints returns the polar commands for a pts×pts square grid whose
// diagonal is diag, sorted by radius. The sort keeps stage travel short on
// a polar stage; it is a heuristic and not required for correctness.
func GridPoints(st Stage, diag float64, pts int) []ScanPoint {
	maxpos := diag / math.Sqrt2
	axis := Linspace(-maxpos, maxpos, pts)

	polars := make([]ScanPoint, 0, len(axis)*len(axis))
	for _, x := range axis {
		for _, y := range axis {
			r, a := st.RA(x, y)
			polars = append(polars, ScanPoint{R: r, A: a})
		}
	}
	slices.SortStableFunc(polars, func(p, q ScanPoint) int { return cmp.Compare(p.R, q.R) })
	return polars
}

// SquareScan moves the stage over a pts×pts grid covering a square with the
// given diagonal and records the position actually reached at each point.
func (s *Session) SquareScan(ctx context.Context, diag float64, pts int) (*GridScanResult, error) {
	if pts < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPoints, pts)
	}
	res := &GridScanResult{
		X:         make([]float64, pts*pts),
		Y:         make([]float64, pts*pts),
		Commanded: []ScanPoint{},
	}
	if pts == 0 {
		return res, nil
	}
	if s.stage == nil {
		return nil, ErrNoStage
	}
	if pts > LargeGrid {
		s.logf("warning: %d points per axis means %d moves", pts, pts*pts)
	}

	res.Commanded = GridPoints(s.stage, diag, pts)
	for i, p := range res.Commanded {
		r, a, err := s.stage.SetRA(ctx, p.R, p.A)
		if err != nil {
			return nil, fmt.Errorf("moving to r=%g a=%g: %w", p.R, p.A, err)
		}
		res.X[i], res.Y[i] = s.stage.XY(r, a)
	}
	return res, nil
}
