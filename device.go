// Copyright (c) 2020–2024 The drumscan developers. All rights reserved.
// Project site: https://github.com/mcphysics/drumscan
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package drumscan

import "context"

// Stage models a polar positioning stage. Angles are in degrees.
type Stage interface {
	// SetRA drives the stage to the polar position (r, a) and returns the
	// position actually reached, which may differ from the command.
	SetRA(ctx context.Context, r, a float64) (rActual, aActual float64, err error)

	// RA converts a Cartesian position to the stage's polar coordinates.
	RA(x, y float64) (r, a float64)

	// XY converts a polar position to Cartesian coordinates.
	XY(r, a float64) (x, y float64)
}

// Acquirer is a single button-driven acquisition surface on an instrument:
// pressing the button starts a run, and the button stays engaged until the
// configured number of iterations has completed.
type Acquirer interface {
	// SetIterations sets how many acquisitions one press performs.
	SetIterations(n int) error

	// Start presses the button.
	Start(ctx context.Context) error

	// Running reports whether the button is still engaged.
	Running(ctx context.Context) (bool, error)

	// Data returns the container holding the most recent result.
	Data() *DataBox
}

// Notifier may be implemented by an Acquirer that can signal completion
// instead of being polled. The returned channel is closed when the run
// started by the last Start finishes.
type Notifier interface {
	Done() <-chan struct{}
}

// M2K is an ADALM2000 analog I/O device.
type M2K interface {
	Connect(ctx context.Context, connect bool) error

	// AI is the analog input tab. Its data holds the raw channel voltages
	// in columns V1 and V2.
	AI() Acquirer
}

// Soundcard is a sound card acquisition interface.
type Soundcard interface {
	// Input records raw samples.
	Input() Acquirer

	// Quadratures runs a frequency sweep and collects in-phase and
	// quadrature components.
	Quadratures() Acquirer
}
