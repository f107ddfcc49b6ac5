package sim

import (
	"math"
	"strconv"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/mcphysics/drumscan"
)

// Resonance is a driven damped mode, the response the quadrature sweep is
// meant to find.
type Resonance struct {
	F0        float64 // centre frequency, Hz
	Width     float64 // half width at half maximum, Hz
	Amplitude float64 // peak magnitude, V
}

// Response returns the in-phase and quadrature components at f.
func (r Resonance) Response(f float64) (x, y float64) {
	d := complex(r.F0-f, -r.Width)
	z := complex(r.Amplitude*r.Width, 0) / d
	return real(z), imag(z)
}

// Soundcard is a simulated sound card. Input records a pure tone on the
// left channel; Quadratures sweeps across a single resonance.
type Soundcard struct {
	Rate      float64
	Samples   int
	Tone      float64
	Mode      Resonance
	SweepFrom float64
	SweepTo   float64
	Steps     int

	in   *Button
	quad *Button
}

func NewSoundcard(mode Resonance, recordTime, sweepTime time.Duration) *Soundcard {
	s := &Soundcard{
		Rate:      44100,
		Samples:   4410,
		Tone:      1000,
		Mode:      mode,
		SweepFrom: mode.F0 - 10*mode.Width,
		SweepTo:   mode.F0 + 10*mode.Width,
		Steps:     101,
	}
	s.in = newButton(recordTime, s.record)
	s.quad = newButton(sweepTime, s.sweep)
	s.quad.iterations = 1
	return s
}

func (s *Soundcard) Input() drumscan.Acquirer       { return s.in }
func (s *Soundcard) Quadratures() drumscan.Acquirer { return s.quad }

func (s *Soundcard) Close() error {
	s.in.Stop()
	s.quad.Stop()
	return nil
}

func (s *Soundcard) record(d *drumscan.DataBox) {
	n := max(s.Samples, 2)
	t := floats.Span(make([]float64, n), 0, float64(n-1)/s.Rate)
	left := make([]float64, n)
	right := make([]float64, n)
	for i, ti := range t {
		left[i] = math.Sin(2 * math.Pi * s.Tone * ti)
	}
	d.SetColumn("t", t)
	d.SetColumn("Left", left)
	d.SetColumn("Right", right)
	d.SetHeader("rate", strconv.FormatFloat(s.Rate, 'g', -1, 64))
}

func (s *Soundcard) sweep(d *drumscan.DataBox) {
	f := drumscan.Linspace(s.SweepFrom, s.SweepTo, s.Steps)
	x := make([]float64, len(f))
	y := make([]float64, len(f))
	for i := range f {
		x[i], y[i] = s.Mode.Response(f[i])
	}
	d.SetColumn("f", f)
	d.SetColumn("X", x)
	d.SetColumn("Y", y)
}
