package ncdump

import (
	"fmt"
	"strings"
)

// Dimension is a named axis of a file together with its ordered coordinate
// values. Coords[i] labels index i of every variable indexed along it.
type Dimension struct {
	Name      string
	Len       int
	Unlimited bool
	Coords    []string
}

// Attribute is a descriptive name/value pair. Values are kept as they appear
// in the dump, with string quoting removed.
type Attribute struct {
	Name   string
	Values []string
}

// Value returns the attribute values joined with commas.
func (a Attribute) Value() string {
	return strings.Join(a.Values, ",")
}

// Variable describes one declared variable.
type Variable struct {
	Name       string
	Type       string
	Dims       []string
	Attributes []Attribute

	// Points is the product of the lengths of Dims, 1 for scalars.
	Points int
}

// IsText reports whether the variable holds character data.
func (v *Variable) IsText() bool {
	return v.Type == "char" || v.Type == "string"
}

// Dump is the structured form of a file's CDL dump.
type Dump struct {
	Name       string
	Dimensions []Dimension
	Attributes []Attribute
	Variables  []Variable

	dims map[string]int
	vars map[string]int
	data map[string][]string
}

func newDump() *Dump {
	return &Dump{
		dims: make(map[string]int),
		vars: make(map[string]int),
		data: make(map[string][]string),
	}
}

// Dimension returns the dimension with the given name.
func (d *Dump) Dimension(name string) (Dimension, bool) {
	i, ok := d.dims[name]
	if !ok {
		return Dimension{}, false
	}
	return d.Dimensions[i], true
}

// IsDimension reports whether name is declared as a dimension. A variable
// with such a name is a coordinate variable.
func (d *Dump) IsDimension(name string) bool {
	_, ok := d.dims[name]
	return ok
}

// Variable returns the variable with the given name.
func (d *Dump) Variable(name string) (Variable, bool) {
	i, ok := d.vars[name]
	if !ok {
		return Variable{}, false
	}
	return d.Variables[i], true
}

// Data returns the values printed for name in the data section, if any.
func (d *Dump) Data(name string) ([]string, bool) {
	v, ok := d.data[name]
	return v, ok
}

// Description is what the orchestrator needs to know about a variable before
// projecting it.
type Description struct {
	Type       string
	Dimensions []Dimension
	Points     int
}

// Describe returns the type, ordered dimensions and point count of a declared
// variable. Callers only pass names taken from Variables, so an unknown name
// panics.
func (d *Dump) Describe(name string) Description {
	v, ok := d.Variable(name)
	if !ok {
		panic(fmt.Sprintf("ncdump: describe of undeclared variable %q", name))
	}
	desc := Description{
		Type:       v.Type,
		Dimensions: make([]Dimension, 0, len(v.Dims)),
		Points:     v.Points,
	}
	for _, n := range v.Dims {
		dim, _ := d.Dimension(n)
		desc.Dimensions = append(desc.Dimensions, dim)
	}
	return desc
}
