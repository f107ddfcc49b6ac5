package stage

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func TestPortOptionsNormalize(t *testing.T) {
	tests := []struct {
		name    string
		in      PortOptions
		want    PortOptions
		wantErr bool
	}{
		{
			name: "defaults",
			want: PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "N", ReadTimeout: 30 * time.Second},
		},
		{
			name: "even parity spelled out",
			in:   PortOptions{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: " even ", ReadTimeout: time.Second},
			want: PortOptions{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: "E", ReadTimeout: time.Second},
		},
		{name: "bad data bits", in: PortOptions{DataBits: 9}, wantErr: true},
		{name: "bad stop bits", in: PortOptions{StopBits: 3}, wantErr: true},
		{name: "bad parity", in: PortOptions{Parity: "mark"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Normalize()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSerialMode(t *testing.T) {
	mode, err := PortOptions{StopBits: 2, Parity: "O"}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.OddParity,
		StopBits: serial.TwoStopBits,
	}, mode)

	_, err = PortOptions{Parity: "x"}.SerialMode()
	assert.Error(t, err)
}

func TestCircle(t *testing.T) {
	tests := []struct {
		x, y, r, a float64
	}{
		{1, 0, 1, 0},
		{0, 1, 1, 90},
		{-1, 0, 1, 180},
		{0, -1, 1, 270},
		{3, 4, 5, 53.13010235415598},
	}
	g := Circle{}
	for _, tt := range tests {
		r, a := g.RA(tt.x, tt.y)
		assert.InDelta(t, tt.r, r, 1e-12)
		assert.InDelta(t, tt.a, a, 1e-9)
		x, y := g.XY(r, a)
		assert.InDelta(t, tt.x, x, 1e-12)
		assert.InDelta(t, tt.y, y, 1e-12)
	}
	r, a := g.RA(0, 0)
	assert.Zero(t, r)
	assert.False(t, math.IsNaN(a))
}

func TestParseGeometry(t *testing.T) {
	g, err := ParseGeometry("Circle")
	require.NoError(t, err)
	assert.Equal(t, Circle{}, g)

	_, err = ParseGeometry("square")
	assert.Error(t, err)
}
