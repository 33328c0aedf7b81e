// Package native reads NetCDF granules in-process, without the ncdump
// utility. It renders the same CDL text ncdump prints so that the rest of the
// pipeline cannot tell the two sources apart.
package native

import (
	"context"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/rtm0/ncmet/internal/ncdump"
)

// File is an open NetCDF granule.
type File struct {
	nc   api.Group
	name string
}

// Open opens a CDF or HDF5 based NetCDF file.
func Open(path string) (*File, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("native: failed to open %s: %w", path, err)
	}
	name := filepath.Base(path)
	return &File{nc: nc, name: strings.TrimSuffix(name, filepath.Ext(name))}, nil
}

// Close closes the file.
func (f *File) Close() {
	f.nc.Close()
}

type variable struct {
	name  string
	vg    api.VarGetter
	dims  []string
	shape []int
}

func (f *File) variables() ([]variable, error) {
	var vars []variable
	for _, name := range f.nc.ListVariables() {
		vg, err := f.nc.GetVarGetter(name)
		if err != nil {
			return nil, fmt.Errorf("native: variable %s: %w", name, err)
		}
		shape, err := shapeOf(vg)
		if err != nil {
			return nil, fmt.Errorf("native: variable %s: %w", name, err)
		}
		vars = append(vars, variable{name: name, vg: vg, dims: vg.Dimensions(), shape: shape})
	}
	return vars, nil
}

// shapeOf returns the length of each dimension of vg. The outer length comes
// from Len; inner lengths are read off the first outer element. Unknown
// lengths are -1.
func shapeOf(vg api.VarGetter) ([]int, error) {
	dims := vg.Dimensions()
	if len(dims) == 0 {
		return nil, nil
	}
	shape := make([]int, len(dims))
	for i := range shape {
		shape[i] = -1
	}
	shape[0] = int(vg.Len())
	if len(dims) == 1 || shape[0] == 0 {
		return shape, nil
	}
	first, err := vg.GetSlice(0, 1)
	if err != nil {
		return nil, err
	}
	v := reflect.ValueOf(first)
	if v.Kind() != reflect.Slice || v.Len() == 0 {
		return shape, nil
	}
	v = v.Index(0)
	for i := 1; i < len(dims); i++ {
		switch v.Kind() {
		case reflect.Slice:
			shape[i] = v.Len()
			if v.Len() == 0 {
				return shape, nil
			}
			v = v.Index(0)
		case reflect.String:
			// The innermost dimension of a char variable collapses into a string.
			shape[i] = v.Len()
			return shape, nil
		default:
			return shape, nil
		}
	}
	return shape, nil
}

// Header renders the file as `ncdump -c` would: header plus the values of
// the coordinate variables.
func (f *File) Header(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	vars, err := f.variables()
	if err != nil {
		return "", err
	}

	var dimNames []string
	dimLens := make(map[string]int)
	for _, v := range vars {
		for i, d := range v.dims {
			n, seen := dimLens[d]
			if !seen {
				dimNames = append(dimNames, d)
				dimLens[d] = v.shape[i]
			} else if n < 0 {
				dimLens[d] = v.shape[i]
			}
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "netcdf %s {\n", f.name)
	if len(dimNames) > 0 {
		sb.WriteString("dimensions:\n")
		for _, d := range dimNames {
			fmt.Fprintf(&sb, "\t%s = %d ;\n", d, max(dimLens[d], 0))
		}
	}
	sb.WriteString("variables:\n")
	for _, v := range vars {
		if len(v.dims) == 0 {
			fmt.Fprintf(&sb, "\t%s %s ;\n", v.vg.Type(), v.name)
		} else {
			fmt.Fprintf(&sb, "\t%s %s(%s) ;\n", v.vg.Type(), v.name, strings.Join(v.dims, ", "))
		}
		writeAttributes(&sb, v.name, v.vg.Attributes())
	}
	if attrs := f.nc.Attributes(); attrs != nil && len(attrs.Keys()) > 0 {
		sb.WriteString("\n// global attributes:\n")
		writeAttributes(&sb, "", attrs)
	}

	sb.WriteString("data:\n")
	for _, v := range vars {
		if len(v.dims) != 1 || v.dims[0] != v.name {
			continue
		}
		if v.vg.Type() == "char" || v.vg.Type() == "string" {
			continue
		}
		values, err := v.vg.Values()
		if err != nil {
			return "", fmt.Errorf("native: variable %s: %w", v.name, err)
		}
		coords := markFill(flatten(values, nil), fillValue(v.vg))
		fmt.Fprintf(&sb, "\n %s = %s ;\n", v.name, strings.Join(coords, ", "))
	}
	sb.WriteString("}\n")
	return sb.String(), nil
}

func writeAttributes(sb *strings.Builder, owner string, attrs api.AttributeMap) {
	if attrs == nil {
		return
	}
	for _, key := range attrs.Keys() {
		val, ok := attrs.Get(key)
		if !ok {
			continue
		}
		fmt.Fprintf(sb, "\t\t%s:%s = %s ;\n", owner, key, strings.Join(attrValues(val), ", "))
	}
}

// fillValue returns the rendering of vg's fill value: its _FillValue
// attribute, or the default fill of its type.
func fillValue(vg api.VarGetter) string {
	if attrs := vg.Attributes(); attrs != nil {
		if v, ok := attrs.Get("_FillValue"); ok {
			if s := flatten(v, nil); len(s) > 0 {
				return s[0]
			}
		}
	}
	return defaultFills[vg.Type()]
}

// Extract returns the payload of variable, flattened in row-major order.
// Fill values are replaced by FillMarker, as ncdump prints them.
func (f *File) Extract(ctx context.Context, variable string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ncdump.ExtractionError{Variable: variable, Err: err}
	}
	vg, err := f.nc.GetVarGetter(variable)
	if err != nil {
		return nil, &ncdump.ExtractionError{Variable: variable, Err: err}
	}
	shape, err := shapeOf(vg)
	if err != nil {
		return nil, &ncdump.ExtractionError{Variable: variable, Err: err}
	}
	values, err := vg.Values()
	if err != nil {
		return nil, &ncdump.ExtractionError{Variable: variable, Err: err}
	}
	flat := markFill(flatten(values, nil), fillValue(vg))
	want, known := 1, true
	for _, n := range shape {
		if n < 0 {
			known = false
		}
		want *= n
	}
	if known && len(flat) != want {
		return nil, &ncdump.ExtractionError{
			Variable: variable,
			Err:      fmt.Errorf("got %d values, want %d", len(flat), want),
		}
	}
	return flat, nil
}
