package grid

// Point is one observation taken at a grid location of a granule.
type Point struct {
	// Coordinates along the two spatial axes, in declaration order.
	A string
	B string

	// Level is the outer-axis coordinate of the slice the point belongs to,
	// "0" for two-dimensional variables.
	Level string
	Time  string
	Value string
}

// String renders the point as a data entry: A,B,LEVEL,TIME,VALUE.
func (p Point) String() string {
	return p.A + "," + p.B + "," + p.Level + "," + p.Time + "," + p.Value
}

// Strings renders every point with String.
func Strings(points []Point) []string {
	out := make([]string, len(points))
	for i, p := range points {
		out[i] = p.String()
	}
	return out
}
