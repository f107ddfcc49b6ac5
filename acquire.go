// Copyright (c) 2020–2024 The drumscan developers. All rights reserved.
// Project site: https://github.com/mcphysics/drumscan
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package drumscan

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// AcquireM2K takes a single acquisition on the m2k analog input and returns
// the raw voltages. The iteration count is forced to 1 so that the device
// does not keep acquiring.
func (s *Session) AcquireM2K(ctx context.Context) (*DataBox, error) {
	if s.m2k == nil {
		return nil, ErrNoM2K
	}
	return s.singleShot(ctx, "m2k", s.m2k.AI())
}

// AcquireSoundcard records a single shot from the sound card input as
// currently configured.
func (s *Session) AcquireSoundcard(ctx context.Context) (*DataBox, error) {
	if s.soundcard == nil {
		return nil, ErrNoSoundcard
	}
	return s.singleShot(ctx, "soundcard", s.soundcard.Input())
}

// Sweep runs the sound card's frequency sweep as currently configured and
// returns the quadrature data.
func (s *Session) Sweep(ctx context.Context) (*DataBox, error) {
	if s.soundcard == nil {
		return nil, ErrNoSoundcard
	}
	q := s.soundcard.Quadratures()
	if err := q.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting sweep: %w", err)
	}
	if err := s.wait(ctx, q); err != nil {
		return nil, fmt.Errorf("sweep: %w", err)
	}
	return q.Data(), nil
}

func (s *Session) singleShot(ctx context.Context, name string, acq Acquirer) (*DataBox, error) {
	if err := acq.SetIterations(1); err != nil {
		return nil, fmt.Errorf("%s: setting iterations: %w", name, err)
	}
	if err := acq.Start(ctx); err != nil {
		return nil, fmt.Errorf("%s: starting acquisition: %w", name, err)
	}
	if err := s.wait(ctx, acq); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return acq.Data(), nil
}

// wait blocks until acq finishes, ctx is done or the session timeout
// elapses. Only the session timeout is reported as ErrTimeout; a deadline
// on ctx itself comes back unchanged.
func (s *Session) wait(ctx context.Context, acq Acquirer) error {
	parent := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	err := s.waitIdle(ctx, acq)
	if errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}

func (s *Session) waitIdle(ctx context.Context, acq Acquirer) error {
	if n, ok := acq.(Notifier); ok {
		select {
		case <-n.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for {
		running, err := acq.Running(ctx)
		if err != nil {
			return err
		}
		if !running {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
