// Package sim provides in-process stand-ins for the motor stage, the m2k
// and the sound card, so that scans can be rehearsed without hardware.
package sim

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/mcphysics/drumscan"
)

var ErrRunning = errors.New("acquisition already running")

// Button is a simulated acquisition button. A press runs the configured
// number of iterations, each taking duration; zero or fewer iterations
// run until Stop.
type Button struct {
	mu         sync.Mutex
	iterations int
	duration   time.Duration
	running    bool
	done       chan struct{}
	stop       chan struct{}
	data       *drumscan.DataBox
	fill       func(d *drumscan.DataBox)
	ready      func() error
	count      int
}

func newButton(duration time.Duration, fill func(*drumscan.DataBox)) *Button {
	done := make(chan struct{})
	close(done)
	return &Button{
		duration: duration,
		done:     done,
		data:     drumscan.NewDataBox(),
		fill:     fill,
	}
}

func (b *Button) SetIterations(n int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.iterations = n
	return nil
}

func (b *Button) Start(ctx context.Context) error {
	if b.ready != nil {
		if err := b.ready(); err != nil {
			return err
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return ErrRunning
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	b.running = true
	b.done = make(chan struct{})
	b.stop = make(chan struct{})
	b.count++
	go b.run(b.iterations, b.done, b.stop)
	return nil
}

func (b *Button) run(iterations int, done, stop chan struct{}) {
	defer func() {
		b.mu.Lock()
		b.running = false
		b.mu.Unlock()
		close(done)
	}()
	t := time.NewTimer(b.duration)
	defer t.Stop()
	for i := 0; iterations <= 0 || i < iterations; i++ {
		if i > 0 {
			t.Reset(b.duration)
		}
		select {
		case <-t.C:
		case <-stop:
			return
		}
		b.fill(b.data)
		b.data.SetHeader("iteration", strconv.Itoa(i+1))
	}
}

func (b *Button) Running(context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running, nil
}

// Done is closed when the run started by the last Start finishes.
func (b *Button) Done() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done
}

func (b *Button) Data() *drumscan.DataBox { return b.data }

// Presses returns how many runs have been started.
func (b *Button) Presses() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Stop releases the button, ending any run in progress.
func (b *Button) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	if b.stop != nil {
		close(b.stop)
		b.stop = nil
	}
	done := b.done
	b.mu.Unlock()
	<-done
}
