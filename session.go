// Copyright (c) 2020–2024 The drumscan developers. All rights reserved.
// Project site: https://github.com/mcphysics/drumscan
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package drumscan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"go.uber.org/multierr"
)

var (
	ErrNoStage       = errors.New("motor stage not set up")
	ErrNoM2K         = errors.New("m2k not set up")
	ErrNoSoundcard   = errors.New("soundcard not set up")
	ErrNoColumn      = errors.New("no such column")
	ErrTimeout       = errors.New("timed out waiting for device")
	ErrInvalidSteps  = errors.New("steps must be at least 1")
	ErrInvalidPoints = errors.New("points per axis must not be negative")
)

// DefaultPollInterval is how often a running acquisition is polled.
const DefaultPollInterval = 50 * time.Millisecond

// Session holds the devices used by the scan and acquisition operations.
// Any of the three devices may be nil, in which case the operations that
// need it return an error.
type Session struct {
	stage     Stage
	m2k       M2K
	soundcard Soundcard

	poll    time.Duration
	timeout time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
	logf    func(format string, v ...any)
}

// SessionOption applies an option to the session.
type SessionOption func(*Session)

// WithPollInterval sets how often a running acquisition is polled.
func WithPollInterval(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.poll = d
		}
	}
}

// WithTimeout bounds every wait for a device to finish. Zero means wait
// until the context is done.
func WithTimeout(d time.Duration) SessionOption { return func(s *Session) { s.timeout = d } }

// WithSleeper replaces the function used to wait for the stage to settle.
func WithSleeper(f func(ctx context.Context, d time.Duration) error) SessionOption {
	return func(s *Session) {
		if f != nil {
			s.sleep = f
		}
	}
}

// WithLogf sets the progress logger. Passing nil mutes it.
func WithLogf(f func(format string, v ...any)) SessionOption {
	return func(s *Session) {
		if f == nil {
			f = func(string, ...any) {}
		}
		s.logf = f
	}
}

// NewSession creates a session around already constructed devices.
func NewSession(stage Stage, m2k M2K, soundcard Soundcard, opts ...SessionOption) *Session {
	s := &Session{
		stage:     stage,
		m2k:       m2k,
		soundcard: soundcard,
		poll:      DefaultPollInterval,
		sleep:     Sleep,
		logf:      log.Printf,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Selection picks which devices Setup creates.
type Selection struct {
	Motors    bool
	M2K       bool
	Soundcard bool
}

// All selects every device.
func All() Selection { return Selection{Motors: true, M2K: true, Soundcard: true} }

// Factory constructs devices for Setup.
type Factory interface {
	NewStage(ctx context.Context) (Stage, error)
	NewM2K(ctx context.Context) (M2K, error)
	NewSoundcard(ctx context.Context) (Soundcard, error)
}

// Setup creates the selected devices using f and connects the m2k. Nothing
// is retried: the first failure is returned and any device already created
// is closed.
func Setup(ctx context.Context, sel Selection, f Factory, opts ...SessionOption) (*Session, error) {
	s := NewSession(nil, nil, nil, opts...)
	fail := func(err error) (*Session, error) {
		return nil, multierr.Append(err, s.Close())
	}

	if sel.Motors {
		st, err := f.NewStage(ctx)
		if err != nil {
			return fail(fmt.Errorf("creating motor stage: %w", err))
		}
		s.stage = st
	}

	if sel.Soundcard {
		sc, err := f.NewSoundcard(ctx)
		if err != nil {
			return fail(fmt.Errorf("creating soundcard: %w", err))
		}
		s.soundcard = sc
	}

	if sel.M2K {
		m, err := f.NewM2K(ctx)
		if err != nil {
			return fail(fmt.Errorf("creating m2k: %w", err))
		}
		s.m2k = m
		if err := m.Connect(ctx, true); err != nil {
			return fail(fmt.Errorf("connecting m2k: %w", err))
		}
	}

	return s, nil
}

func (s *Session) Stage() Stage         { return s.stage }
func (s *Session) M2K() M2K             { return s.m2k }
func (s *Session) Soundcard() Soundcard { return s.soundcard }

// Close closes every device that implements io.Closer.
func (s *Session) Close() error {
	var err error
	for _, d := range []any{s.stage, s.m2k, s.soundcard} {
		if c, ok := d.(io.Closer); ok {
			err = multierr.Append(err, c.Close())
		}
	}
	return err
}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
