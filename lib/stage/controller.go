// Copyright (c) 2020–2024 The drumscan developers. All rights reserved.
// Project site: https://github.com/mcphysics/drumscan
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package stage talks to the stepper-motor controller of a polar
// positioning stage over a serial line.
//
// The controller speaks a newline-terminated ASCII protocol:
//
//	*IDN?      identification string
//	HOME       drive both axes to their home switches
//	MOVE r a   start a move to radius r and angle a (degrees)
//	BUSY?      1 while a move is in progress, otherwise 0
//	R?  A?     current radius and angle
package stage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gotmc/query"
)

// ErrBusyTimeout is returned when the stage keeps reporting busy after a
// move for longer than the context allows.
var ErrBusyTimeout = errors.New("stage still moving")

// Logf is the package-level diagnostic logger. It may be replaced to
// redirect or mute debug output.
var Logf = log.Printf

// Controller drives a polar stage through its motor controller.
type Controller struct {
	rw         io.ReadWriter
	r          *bufio.Reader
	mu         sync.Mutex
	geom       Geometry
	term       byte
	writeDelay time.Duration
	busyPoll   time.Duration
	identify   bool
	id         string
	debug      bool // if true, log commands and responses. Set via WithDebug().
}

// ControllerOption applies an option to the controller.
type ControllerOption func(*Controller)

// NewController creates a stage controller talking over rw, which is
// usually a serial port returned by Open.
func NewController(rw io.ReadWriter, opts ...ControllerOption) (*Controller, error) {
	c := Controller{
		rw:       rw,
		r:        bufio.NewReader(rw),
		geom:     Circle{},
		term:     '\n',
		busyPoll: 20 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(&c)
	}

	if c.geom == nil {
		return nil, errors.New("stage geometry must not be nil")
	}
	if c.identify {
		id, err := c.Identify()
		if err != nil {
			return nil, fmt.Errorf("identifying stage: %w", err)
		}
		c.id = id
		if c.debug {
			Logf("stage id %q", id)
		}
	}
	return &c, nil
}

// WithDebug causes commands and responses to be logged.
func WithDebug() ControllerOption { return func(c *Controller) { c.debug = true } }

// WithWriteDelay pauses before every write. Some controllers drop
// characters when commands arrive back to back.
func WithWriteDelay(d time.Duration) ControllerOption {
	return func(c *Controller) { c.writeDelay = d }
}

// WithGeometry sets the coordinate conversion used by RA and XY.
func WithGeometry(g Geometry) ControllerOption { return func(c *Controller) { c.geom = g } }

// WithBusyPoll sets how often BUSY? is queried while a move is running.
func WithBusyPoll(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d > 0 {
			c.busyPoll = d
		}
	}
}

// WithIdentify queries *IDN? when the controller is created, so that a
// wrong port fails early.
func WithIdentify() ControllerOption { return func(c *Controller) { c.identify = true } }

// ID returns the identification read by WithIdentify, if any.
func (c *Controller) ID() string { return c.id }

// Command sends a command to the stage, formatting it first if arguments
// are given. Leading and trailing whitespace is removed before the
// terminator is appended.
func (c *Controller) Command(format string, a ...any) error {
	cmd := format
	if a != nil {
		cmd = fmt.Sprintf(format, a...)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.write(cmd)
}

// Query sends cmd and returns the response line with surrounding whitespace
// removed.
func (c *Controller) Query(cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.write(cmd); err != nil {
		return "", fmt.Errorf("error writing command: %w", err)
	}
	s, err := c.r.ReadString(c.term)
	if err != nil && !(errors.Is(err, io.EOF) && s != "") {
		return "", fmt.Errorf("error reading response to %q: %w", cmd, err)
	}
	if c.debug {
		Logf("read data: %q", s)
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "ERR") {
		return "", fmt.Errorf("stage rejected %q: %s", cmd, s)
	}
	return s, nil
}

func (c *Controller) write(cmd string) error {
	cmd = fmt.Sprintf("%s%c", strings.TrimSpace(cmd), c.term)
	if c.debug {
		Logf("cmd %q", cmd)
	}
	if c.writeDelay > 0 {
		time.Sleep(c.writeDelay)
	}
	_, err := io.WriteString(c.rw, cmd)
	return err
}

// Identify returns the controller's identification string.
func (c *Controller) Identify() (string, error) {
	return query.String(c, "*IDN?")
}

// Busy reports whether a move is in progress.
func (c *Controller) Busy() (bool, error) {
	return query.Bool(c, "BUSY?")
}

// Position returns the current radius and angle.
func (c *Controller) Position() (r, a float64, err error) {
	r, err = query.Float64(c, "R?")
	if err != nil {
		return 0, 0, fmt.Errorf("reading radius: %w", err)
	}
	a, err = query.Float64(c, "A?")
	if err != nil {
		return 0, 0, fmt.Errorf("reading angle: %w", err)
	}
	return r, a, nil
}

// Home drives both axes to their home switches and waits for the move to
// finish.
func (c *Controller) Home(ctx context.Context) error {
	if err := c.Command("HOME"); err != nil {
		return err
	}
	return c.waitIdle(ctx)
}

// SetRA moves to radius r and angle a, waits for the move to finish and
// returns the position the stage reports.
func (c *Controller) SetRA(ctx context.Context, r, a float64) (float64, float64, error) {
	if err := c.Command("MOVE %g %g", r, a); err != nil {
		return 0, 0, err
	}
	if err := c.waitIdle(ctx); err != nil {
		return 0, 0, err
	}
	return c.Position()
}

// RA converts a Cartesian position to polar coordinates.
func (c *Controller) RA(x, y float64) (float64, float64) { return c.geom.RA(x, y) }

// XY converts a polar position to Cartesian coordinates.
func (c *Controller) XY(r, a float64) (float64, float64) { return c.geom.XY(r, a) }

func (c *Controller) waitIdle(ctx context.Context) error {
	ticker := time.NewTicker(c.busyPoll)
	defer ticker.Stop()
	for {
		busy, err := c.Busy()
		if err != nil {
			return err
		}
		if !busy {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrBusyTimeout, ctx.Err())
		}
	}
}
