package drumscan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireM2K(t *testing.T) {
	acq := newFakeAcquirer(3, "V1", 0.1, 0.2)
	s := NewSession(nil, &fakeM2K{ai: acq}, nil, WithPollInterval(time.Millisecond))

	d, err := s.AcquireM2K(context.Background())
	require.NoError(t, err)
	assert.Same(t, acq.data, d)
	assert.Equal(t, []string{"iterations", "start"}, acq.calls, "iterations set once, before start")
	assert.Equal(t, []int{1}, acq.iterations)
	assert.Equal(t, 4, acq.polls, "three busy polls then idle")
}

func TestAcquireSoundcard(t *testing.T) {
	in := newFakeAcquirer(1, "Left", 0, 1)
	quad := newFakeAcquirer(0, "X", 1)
	s := NewSession(nil, nil, &fakeSoundcard{in: in, quad: quad}, WithPollInterval(time.Millisecond))

	d, err := s.AcquireSoundcard(context.Background())
	require.NoError(t, err)
	assert.Same(t, in.data, d)
	assert.Equal(t, []int{1}, in.iterations)
	assert.Empty(t, quad.calls)
}

func TestSweep(t *testing.T) {
	in := newFakeAcquirer(0, "Left", 0)
	quad := newFakeAcquirer(2, "X", 1, 2)
	s := NewSession(nil, nil, &fakeSoundcard{in: in, quad: quad}, WithPollInterval(time.Millisecond))

	d, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Same(t, quad.data, d)
	assert.Equal(t, []string{"start"}, quad.calls, "sweep leaves iterations alone")
	assert.Empty(t, in.calls)
}

func TestAcquireMissingDevice(t *testing.T) {
	s := NewSession(nil, nil, nil)
	ctx := context.Background()

	_, err := s.AcquireM2K(ctx)
	assert.ErrorIs(t, err, ErrNoM2K)
	_, err = s.AcquireSoundcard(ctx)
	assert.ErrorIs(t, err, ErrNoSoundcard)
	_, err = s.Sweep(ctx)
	assert.ErrorIs(t, err, ErrNoSoundcard)
}

func TestAcquireDeviceErrors(t *testing.T) {
	boom := errors.New("boom")

	acq := newFakeAcquirer(0, "V1", 1)
	acq.iterErr = boom
	_, err := NewSession(nil, &fakeM2K{ai: acq}, nil).AcquireM2K(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"iterations"}, acq.calls, "no start after a failed setting")

	acq = newFakeAcquirer(0, "V1", 1)
	acq.startErr = boom
	_, err = NewSession(nil, &fakeM2K{ai: acq}, nil).AcquireM2K(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, acq.polls)
}

func TestWaitTimeout(t *testing.T) {
	acq := newFakeAcquirer(0, "V1", 1)
	acq.forever = true
	s := NewSession(nil, &fakeM2K{ai: acq}, nil,
		WithPollInterval(time.Millisecond),
		WithTimeout(20*time.Millisecond),
	)

	start := time.Now()
	_, err := s.AcquireM2K(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Greater(t, acq.polls, 1)
}

func TestWaitCancel(t *testing.T) {
	acq := newFakeAcquirer(0, "V1", 1)
	acq.forever = true
	s := NewSession(nil, &fakeM2K{ai: acq}, nil, WithPollInterval(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)
	_, err := s.AcquireM2K(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestWaitCallerDeadline(t *testing.T) {
	acq := newFakeAcquirer(0, "V1", 1)
	acq.forever = true
	s := NewSession(nil, &fakeM2K{ai: acq}, nil,
		WithPollInterval(time.Millisecond),
		WithTimeout(time.Minute),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := s.AcquireM2K(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrTimeout)

	// Without a session timeout the caller's deadline is still not ours.
	s = NewSession(nil, &fakeM2K{ai: acq}, nil, WithPollInterval(time.Millisecond))
	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel2()
	_, err = s.AcquireM2K(ctx2)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestWaitNotifier(t *testing.T) {
	n := &notifyingAcquirer{
		fakeAcquirer: newFakeAcquirer(0, "V1", 4),
		done:         make(chan struct{}),
	}
	time.AfterFunc(5*time.Millisecond, func() { close(n.done) })
	s := NewSession(nil, &fakeM2K{ai: n}, nil)

	d, err := s.AcquireM2K(context.Background())
	require.NoError(t, err)
	v, err := d.Mean("V1")
	require.NoError(t, err)
	assert.Equal(t, 4.0, v)
}

func TestWaitNotifierTimeout(t *testing.T) {
	n := &notifyingAcquirer{
		fakeAcquirer: newFakeAcquirer(0, "V1", 4),
		done:         make(chan struct{}),
	}
	s := NewSession(nil, &fakeM2K{ai: n}, nil, WithTimeout(5*time.Millisecond))
	_, err := s.AcquireM2K(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
}
