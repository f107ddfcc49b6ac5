package sim

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/mcphysics/drumscan"
	"github.com/mcphysics/drumscan/lib/stage"
)

// Stage is a simulated polar stage. Each move takes MoveTime and lands
// within Jitter of the command on each axis.
type Stage struct {
	stage.Geometry

	MoveTime time.Duration
	Jitter   float64

	mu    sync.Mutex
	r, a  float64
	moves []drumscan.ScanPoint
	rng   *rand.Rand
}

// NewStage returns a stage at the origin using the circle geometry.
func NewStage(moveTime time.Duration, jitter float64, seed int64) *Stage {
	return &Stage{
		Geometry: stage.Circle{},
		MoveTime: moveTime,
		Jitter:   jitter,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

func (s *Stage) SetRA(ctx context.Context, r, a float64) (float64, float64, error) {
	if err := drumscan.Sleep(ctx, s.MoveTime); err != nil {
		return 0, 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moves = append(s.moves, drumscan.ScanPoint{R: r, A: a})
	if s.Jitter > 0 {
		r += s.Jitter * (2*s.rng.Float64() - 1)
		a += s.Jitter * (2*s.rng.Float64() - 1)
	}
	s.r, s.a = max(r, 0), a
	return s.r, s.a, nil
}

// Position returns where the stage is.
func (s *Stage) Position() (r, a float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r, s.a
}

// Moves returns the commanded positions, in order.
func (s *Stage) Moves() []drumscan.ScanPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]drumscan.ScanPoint(nil), s.moves...)
}
