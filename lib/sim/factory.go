package sim

import (
	"context"
	"time"

	"github.com/mcphysics/drumscan"
)

// Factory builds a linked set of simulated devices: the m2k reads its field
// at the simulated stage's position.
type Factory struct {
	MoveTime    time.Duration
	Jitter      float64
	AcquireTime time.Duration
	SweepTime   time.Duration
	Field       Field
	Mode        Resonance
	Seed        int64

	stage *Stage
}

// DefaultFactory returns quick devices suitable for a dry run.
func DefaultFactory() *Factory {
	return &Factory{
		MoveTime:    10 * time.Millisecond,
		Jitter:      0.05,
		AcquireTime: 20 * time.Millisecond,
		SweepTime:   100 * time.Millisecond,
		Field:       CosineField(0.5, 0.2, 90),
		Mode:        Resonance{F0: 440, Width: 5, Amplitude: 0.1},
		Seed:        1,
	}
}

func (f *Factory) NewStage(context.Context) (drumscan.Stage, error) {
	return f.simStage(), nil
}

func (f *Factory) NewM2K(context.Context) (drumscan.M2K, error) {
	field := f.Field
	if field == nil {
		field = CosineField(0, 0, 0)
	}
	return NewM2K(f.simStage(), field, f.AcquireTime), nil
}

func (f *Factory) NewSoundcard(context.Context) (drumscan.Soundcard, error) {
	return NewSoundcard(f.Mode, f.AcquireTime, f.SweepTime), nil
}

func (f *Factory) simStage() *Stage {
	if f.stage == nil {
		f.stage = NewStage(f.MoveTime, f.Jitter, f.Seed)
	}
	return f.stage
}
