package sim

import (
	"context"
	"errors"
	"math"
	"strconv"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/mcphysics/drumscan"
)

var ErrNotConnected = errors.New("m2k not connected")

// Field is the DC voltage seen by the m2k probe as a function of the stage
// position.
type Field func(r, a float64) float64

// CosineField returns offset + amplitude·cos(a - phase) with a in degrees,
// roughly what a probe sees while orbiting an off-centre source.
func CosineField(offset, amplitude, phase float64) Field {
	return func(_, a float64) float64 {
		return offset + amplitude*math.Cos((a-phase)*math.Pi/180)
	}
}

// M2K is a simulated ADALM2000. Channel V1 follows the field at the linked
// stage's position, channel V2 reads ground; both carry gaussian noise.
type M2K struct {
	Samples    int
	SampleRate float64
	Noise      float64

	mu        sync.Mutex
	connected bool
	stage     *Stage
	field     Field
	ai        *Button
}

// NewM2K returns an m2k whose V1 reads field at st's position. st may be
// nil, in which case the field is read at the origin.
func NewM2K(st *Stage, field Field, acquireTime time.Duration) *M2K {
	m := &M2K{
		Samples:    1000,
		SampleRate: 100e3,
		Noise:      1e-3,
		stage:      st,
		field:      field,
	}
	m.ai = newButton(acquireTime, m.fill)
	m.ai.ready = m.ready
	return m
}

func (m *M2K) Connect(_ context.Context, connect bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connect
	return nil
}

func (m *M2K) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *M2K) AI() drumscan.Acquirer { return m.ai }

// Button exposes the analog input button.
func (m *M2K) Button() *Button { return m.ai }

func (m *M2K) Close() error {
	m.ai.Stop()
	return m.Connect(context.Background(), false)
}

func (m *M2K) ready() error {
	if !m.Connected() {
		return ErrNotConnected
	}
	return nil
}

func (m *M2K) fill(d *drumscan.DataBox) {
	var r, a float64
	if m.stage != nil {
		r, a = m.stage.Position()
	}
	dc := m.field(r, a)
	n := max(m.Samples, 2)

	t := floats.Span(make([]float64, n), 0, float64(n-1)/m.SampleRate)
	noise := distuv.Normal{Mu: 0, Sigma: m.Noise}
	v1 := make([]float64, n)
	v2 := make([]float64, n)
	for i := range v1 {
		v1[i] = dc + noise.Rand()
		v2[i] = noise.Rand()
	}
	d.SetColumn("t", t)
	d.SetColumn("V1", v1)
	d.SetColumn("V2", v2)
	d.SetHeader("rate", strconv.FormatFloat(m.SampleRate, 'g', -1, 64))
}
