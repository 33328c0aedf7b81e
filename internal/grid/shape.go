// Package grid projects flat variable payloads onto their coordinate axes.
//
// A payload is row-major over the variable's declared dimensions, the last
// dimension varying fastest. Only two shapes are supported: a single 2D grid
// (Axis2) and a stack of 2D grids along an outer "level" axis (Axis3).
// Values and coordinates are passed through untouched; projection is index
// arithmetic only.
package grid

import (
	"fmt"

	"github.com/rtm0/ncmet/internal/ncdump"
)

// Level is the level assigned to points of two-dimensional variables.
const Level = "0"

// UnsupportedShapeError reports a variable that is neither 2D nor 3D.
type UnsupportedShapeError struct {
	Variable string
	Dims     int
}

func (e *UnsupportedShapeError) Error() string {
	if e.Dims > 3 {
		return fmt.Sprintf("grid: more than 3 dimensions detected for %s (%d), max supported dimensions: 3", e.Variable, e.Dims)
	}
	return fmt.Sprintf("grid: %s has %d dimensions, only 2 or 3 are supported", e.Variable, e.Dims)
}

// Shape is one of Axis2 or Axis3.
type Shape interface {
	// Points returns the number of payload values the shape covers.
	Points() int
	shape()
}

// NewShape returns the shape of a variable declared over dims.
func NewShape(variable string, dims []ncdump.Dimension) (Shape, error) {
	switch len(dims) {
	case 2:
		return Axis2{A: dims[0], B: dims[1]}, nil
	case 3:
		return Axis3{Outer: dims[0], Grid: Axis2{A: dims[1], B: dims[2]}}, nil
	}
	return nil, &UnsupportedShapeError{Variable: variable, Dims: len(dims)}
}

// Axis2 is a grid over two spatial axes, A varying slowest.
type Axis2 struct {
	A ncdump.Dimension
	B ncdump.Dimension
}

func (Axis2) shape() {}

// Points returns len(A) * len(B).
func (s Axis2) Points() int {
	return len(s.A.Coords) * len(s.B.Coords)
}

// Project returns one point per payload value, tagged with granuleTime and
// the level "0".
func (s Axis2) Project(values []string, granuleTime string) ([]Point, error) {
	if len(values) != s.Points() {
		return nil, fmt.Errorf("grid: payload has %d values, %s x %s grid needs %d", len(values), s.A.Name, s.B.Name, s.Points())
	}
	return s.project(values, 0, Level, granuleTime), nil
}

// project decodes the Points() values starting at offset; value a*len(B)+b
// belongs to (A[a], B[b]).
func (s Axis2) project(values []string, offset int, level, granuleTime string) []Point {
	points := make([]Point, s.Points())
	k := 0
	for _, a := range s.A.Coords {
		for _, b := range s.B.Coords {
			points[k] = Point{
				A:     a,
				B:     b,
				Level: level,
				Time:  granuleTime,
				Value: values[offset+k],
			}
			k++
		}
	}
	return points
}

// Axis3 is a stack of Grid slices along Outer.
type Axis3 struct {
	Outer ncdump.Dimension
	Grid  Axis2
}

func (Axis3) shape() {}

// Points returns len(Outer) * Grid.Points().
func (s Axis3) Points() int {
	return len(s.Outer.Coords) * s.Grid.Points()
}

// Slices projects the payload one level at a time, in Outer order, and hands
// each slice to fn. Levels not allowed by levels are skipped without being
// projected. The slice passed to fn is not retained. Slices returns the
// number of points handed to fn.
func (s Axis3) Slices(values []string, granuleTime string, levels AllowList, fn func(level string, points []Point) error) (int, error) {
	if len(values) != s.Points() {
		return 0, fmt.Errorf("grid: payload has %d values, %s x %s x %s grid needs %d",
			len(values), s.Outer.Name, s.Grid.A.Name, s.Grid.B.Name, s.Points())
	}
	size := s.Grid.Points()
	n := 0
	for z, level := range s.Outer.Coords {
		if !levels.Allows(level) {
			continue
		}
		points := s.Grid.project(values, z*size, level, granuleTime)
		if err := fn(level, points); err != nil {
			return n, err
		}
		n += len(points)
	}
	return n, nil
}
