package stage

import (
	"fmt"
	"math"
	"strings"
)

// Geometry converts between the stage's polar coordinates and Cartesian
// coordinates in the plane of the sample. Angles are in degrees.
type Geometry interface {
	RA(x, y float64) (r, a float64)
	XY(r, a float64) (x, y float64)
}

// Circle is the geometry of a circular drum: the radial arm rotates about
// the centre, angles run counterclockwise from +x and are reported in
// [0, 360).
type Circle struct{}

func (Circle) RA(x, y float64) (float64, float64) {
	a := math.Atan2(y, x) * 180 / math.Pi
	if a < 0 {
		a += 360
	}
	return math.Hypot(x, y), a
}

func (Circle) XY(r, a float64) (float64, float64) {
	s, c := math.Sincos(a * math.Pi / 180)
	return r * c, r * s
}

// ParseGeometry returns the geometry with the given name.
func ParseGeometry(name string) (Geometry, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "circle", "":
		return Circle{}, nil
	default:
		return nil, fmt.Errorf("unsupported stage geometry %q", name)
	}
}
