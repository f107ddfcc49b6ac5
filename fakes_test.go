package drumscan

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"
)

// fakeStage lands each move offset by the configured error and remembers
// what it was told.
type fakeStage struct {
	mu       sync.Mutex
	dr, da   float64
	commands []ScanPoint
	failAt   int // 1-based move index that fails; 0 never fails
	closed   bool
	closeErr error
}

func (f *fakeStage) SetRA(_ context.Context, r, a float64) (float64, float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, ScanPoint{R: r, A: a})
	if f.failAt > 0 && len(f.commands) == f.failAt {
		return 0, 0, errors.New("motor stalled")
	}
	return r + f.dr, a + f.da, nil
}

func (f *fakeStage) RA(x, y float64) (float64, float64) {
	return math.Hypot(x, y), math.Atan2(y, x) * 180 / math.Pi
}

func (f *fakeStage) XY(r, a float64) (float64, float64) {
	rad := a * math.Pi / 180
	return r * math.Cos(rad), r * math.Sin(rad)
}

func (f *fakeStage) Close() error {
	f.closed = true
	return f.closeErr
}

// fakeAcquirer stays running for a fixed number of polls after Start.
type fakeAcquirer struct {
	mu         sync.Mutex
	calls      []string
	iterations []int
	polls      int
	remaining  int
	busyPolls  int
	forever    bool
	data       *DataBox
	startErr   error
	iterErr    error
}

func newFakeAcquirer(busyPolls int, col string, values ...float64) *fakeAcquirer {
	d := NewDataBox()
	d.SetColumn(col, values)
	return &fakeAcquirer{busyPolls: busyPolls, data: d}
}

func (f *fakeAcquirer) SetIterations(n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "iterations")
	f.iterations = append(f.iterations, n)
	return f.iterErr
}

func (f *fakeAcquirer) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "start")
	f.remaining = f.busyPolls
	return f.startErr
}

func (f *fakeAcquirer) Running(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.forever {
		return true, nil
	}
	if f.remaining > 0 {
		f.remaining--
		return true, nil
	}
	return false, nil
}

func (f *fakeAcquirer) Data() *DataBox { return f.data }

// notifyingAcquirer completes through Done and must never be polled.
type notifyingAcquirer struct {
	*fakeAcquirer
	done chan struct{}
}

func (n *notifyingAcquirer) Done() <-chan struct{} { return n.done }

func (n *notifyingAcquirer) Running(context.Context) (bool, error) {
	panic("polled a notifying acquirer")
}

type fakeM2K struct {
	ai         Acquirer
	connected  bool
	connectErr error
}

func (m *fakeM2K) Connect(_ context.Context, c bool) error {
	m.connected = c
	return m.connectErr
}

func (m *fakeM2K) AI() Acquirer { return m.ai }

type fakeSoundcard struct {
	in, quad Acquirer
}

func (s *fakeSoundcard) Input() Acquirer       { return s.in }
func (s *fakeSoundcard) Quadratures() Acquirer { return s.quad }

// sleepCounter records settle delays without sleeping.
type sleepCounter struct {
	mu    sync.Mutex
	calls int
	total float64
}

func (c *sleepCounter) sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.total += d.Seconds()
	return ctx.Err()
}

type fakeFactory struct {
	stage     Stage
	m2k       M2K
	soundcard Soundcard
	stageErr  error
	m2kErr    error
	scErr     error
	built     []string
}

func (f *fakeFactory) NewStage(context.Context) (Stage, error) {
	f.built = append(f.built, "stage")
	return f.stage, f.stageErr
}

func (f *fakeFactory) NewM2K(context.Context) (M2K, error) {
	f.built = append(f.built, "m2k")
	return f.m2k, f.m2kErr
}

func (f *fakeFactory) NewSoundcard(context.Context) (Soundcard, error) {
	f.built = append(f.built, "soundcard")
	return f.soundcard, f.scErr
}
