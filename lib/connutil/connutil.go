// Package connutil opens the serial connection to the motor stage from
// command line flags.
package connutil

import (
	"flag"
	"log"
	"time"

	"go.bug.st/serial"

	"github.com/mcphysics/drumscan/lib/find"
	"github.com/mcphysics/drumscan/lib/stage"
)

type Conn struct {
	SerialPort string
	Baud       int
	Delay      time.Duration
	Geometry   string
	Identify   bool
	Debug      bool

	tty     string
	finderr error
}

// open is replaced in tests.
var open = func(path string, opts stage.PortOptions) (serial.Port, error) {
	return stage.Open(path, opts)
}

// AddFlags is to be called before [flag.FlagSet.Parse]. Fields already set
// become the flag defaults.
func (c *Conn) AddFlags(fs *flag.FlagSet) {
	if c.SerialPort == "" {
		c.tty, c.finderr = find.Find(find.ArduinoFilter)
		if c.finderr != nil {
			c.tty = "/dev/ttyACM0"
		}
		c.SerialPort = c.tty
	}
	if c.Baud == 0 {
		c.Baud = 115200
	}
	if c.Geometry == "" {
		c.Geometry = "circle"
	}

	fs.StringVar(&c.SerialPort, "port", c.SerialPort, "Serial port of the motor stage controller")
	fs.IntVar(&c.Baud, "baud", c.Baud, "baud rate of the motor stage controller")
	fs.DurationVar(&c.Delay, "delay", c.Delay, "delay before each stage command")
	fs.StringVar(&c.Geometry, "geometry", c.Geometry, "stage geometry")
	fs.BoolVar(&c.Identify, "identify", c.Identify, "query the stage id when connecting")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "log stage commands and responses")
}

// Setup is to be called after flags are parsed. It opens the port and
// returns the stage controller along with a cleanup function that closes
// the port.
func (c *Conn) Setup(opts ...stage.ControllerOption) (st *stage.Controller, cleanup func(), err error) {
	nocleanup := func() {}

	if c.finderr != nil && c.SerialPort == c.tty {
		// only print this if the port isn't overridden via flag
		log.Printf("locating serial port failed, guessing %s: %s", c.SerialPort, c.finderr)
	}
	log.Printf("Serial port = %s", c.SerialPort)

	geom, err := stage.ParseGeometry(c.Geometry)
	if err != nil {
		return nil, nocleanup, err
	}

	port, err := open(c.SerialPort, stage.PortOptions{BaudRate: c.Baud})
	if err != nil {
		return nil, nocleanup, err
	}

	opts = append(opts, stage.WithGeometry(geom))
	if c.Delay > 0 {
		opts = append(opts, stage.WithWriteDelay(c.Delay))
	}
	if c.Identify {
		opts = append(opts, stage.WithIdentify())
	}
	if c.Debug {
		opts = append(opts, stage.WithDebug())
	}

	st, err = stage.NewController(port, opts...)
	if err != nil {
		port.Close()
		return nil, nocleanup, err
	}

	cleanup = func() {
		// Discard any unread data on the serial port and then close.
		if err := port.ResetInputBuffer(); err != nil {
			log.Printf("error flushing serial port: %s", err)
		}
		if err := port.Close(); err != nil {
			log.Printf("error closing serial port: %s", err)
		}
	}
	return st, cleanup, nil
}
