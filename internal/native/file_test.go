package native

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
	"github.com/stretchr/testify/require"

	"github.com/rtm0/ncmet/internal/ncdump"
)

func attrs(t *testing.T, kv map[string]any) *util.OrderedMap {
	t.Helper()
	var keys []string
	for k := range kv {
		keys = append(keys, k)
	}
	om, err := util.NewOrderedMap(keys, kv)
	require.NoError(t, err)
	return om
}

// writeGranule writes a small classic NetCDF file with a 2D and a 3D variable.
func writeGranule(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "AIRS.2010.03.15.nc")
	cw, err := cdf.OpenWriter(path)
	require.NoError(t, err)

	add := func(name string, values any, dims []string, kv map[string]any) {
		require.NoError(t, cw.AddVar(name, api.Variable{
			Values:     values,
			Dimensions: dims,
			Attributes: attrs(t, kv),
		}))
	}
	add("level", []int32{33000, 62000}, []string{"level"}, map[string]any{"units": "Pa"})
	add("lat", []float32{10, 20, 30}, []string{"lat"}, map[string]any{"units": "degrees_north"})
	add("lon", []float32{100, 110}, []string{"lon"}, nil)
	add("temp", [][]float32{{1, 2}, {3, 4}, {5, 6.5}}, []string{"lat", "lon"}, map[string]any{"units": "K"})
	add("cloud", [][]float32{{1, -9999}, {1000000, 4}, {5, 6}}, []string{"lat", "lon"},
		map[string]any{"_FillValue": []float32{-9999}, "scale": []float64{0.5}, "valid": []int16{0, 100}})
	add("humidity", [][][]float64{
		{{1, 2}, {3, 4}, {5, 6}},
		{{7, 8}, {9, 10}, {11, 12}},
	}, []string{"level", "lat", "lon"}, nil)
	require.NoError(t, cw.Close())
	return path
}

func TestHeader(t *testing.T) {
	f, err := Open(writeGranule(t))
	require.NoError(t, err)
	defer f.Close()

	text, err := f.Header(context.Background())
	require.NoError(t, err)
	d, err := ncdump.Parse(text)
	require.NoError(t, err, text)
	require.Equal(t, "AIRS.2010.03.15", d.Name)

	lat, ok := d.Dimension("lat")
	require.True(t, ok)
	require.Equal(t, []string{"10", "20", "30"}, lat.Coords)
	level, _ := d.Dimension("level")
	require.Equal(t, []string{"33000", "62000"}, level.Coords)

	temp, ok := d.Variable("temp")
	require.True(t, ok)
	require.Equal(t, "float", temp.Type)
	require.Equal(t, []string{"lat", "lon"}, temp.Dims)
	require.Equal(t, 6, temp.Points)
	require.Equal(t, []ncdump.Attribute{{Name: "units", Values: []string{"K"}}}, temp.Attributes)

	cloud, ok := d.Variable("cloud")
	require.True(t, ok)
	attrs := make(map[string][]string)
	for _, a := range cloud.Attributes {
		attrs[a.Name] = a.Values
	}
	require.Equal(t, map[string][]string{
		"_FillValue": {"-9999.f"},
		"scale":      {"0.5"},
		"valid":      {"0s", "100s"},
	}, attrs)

	hum, ok := d.Variable("humidity")
	require.True(t, ok)
	require.Equal(t, "double", hum.Type)
	require.Equal(t, 12, hum.Points)
}

func TestExtract(t *testing.T) {
	f, err := Open(writeGranule(t))
	require.NoError(t, err)
	defer f.Close()
	ctx := context.Background()

	values, err := f.Extract(ctx, "temp")
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2", "3", "4", "5", "6.5"}, values)

	values, err = f.Extract(ctx, "humidity")
	require.NoError(t, err)
	require.Len(t, values, 12)
	require.Equal(t, "7", values[6])

	values, err = f.Extract(ctx, "cloud")
	require.NoError(t, err)
	require.Equal(t, []string{"1", "_", "1000000", "4", "5", "6"}, values)

	_, err = f.Extract(ctx, "snow")
	var eerr *ncdump.ExtractionError
	require.ErrorAs(t, err, &eerr)
	require.Equal(t, "snow", eerr.Variable)
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.nc"))
	require.Error(t, err)
}

func TestFlatten(t *testing.T) {
	require.Equal(t, []string{"0.1", "2", "-3"}, flatten([]float32{0.1, 2, -3}, nil))
	require.Equal(t, []string{"1", "2", "3", "4"}, flatten([][]int16{{1, 2}, {3, 4}}, nil))
	require.Equal(t, []string{`"AIRS"`}, flatten("AIRS", nil))
	require.Equal(t, []string{"7"}, flatten(int32(7), nil))
	require.Equal(t, []string{"255"}, flatten([]uint8{255}, nil))

	// Floats print with ncdump's significant digits, never in shortest form.
	require.Equal(t, []string{"1000000", "62000", "0.0001", "-9999", "1e+07"},
		flatten([]float32{1000000, 62000, 0.0001, -9999, 1e7}, nil))
	require.Equal(t, []string{"0.333333333333333", "1e+20"}, flatten([]float64{1.0 / 3, 1e20}, nil))
	require.Equal(t, []string{"NaNf", "-Infinity"}, flatten([]any{float32(math.NaN()), math.Inf(-1)}, nil))
}

func TestMarkFill(t *testing.T) {
	values := flatten([]float32{1, -9999, 3}, nil)
	fill := flatten([]float32{-9999}, nil)[0]
	require.Equal(t, []string{"1", "_", "3"}, markFill(values, fill))
	require.Equal(t, []string{"1", "2"}, markFill([]string{"1", "2"}, ""))
	require.Equal(t, []string{"_"}, markFill(flatten([]float32{9.96921e+36}, nil), defaultFills["float"]))
}

func TestAttrValues(t *testing.T) {
	require.Equal(t, []string{"-9999.f", "0.5f", "1.e+20f"}, attrValues([]float32{-9999, 0.5, 1e20}))
	require.Equal(t, []string{"-9999.", "0.25"}, attrValues([]float64{-9999, 0.25}))
	require.Equal(t, []string{"1b", "2s", "3", "4LL"}, attrValues([]any{int8(1), int16(2), int32(3), int64(4)}))
	require.Equal(t, []string{"5UB", "6US", "7U", "8ULL"}, attrValues([]any{uint8(5), uint16(6), uint32(7), uint64(8)}))
	require.Equal(t, []string{`"degrees_north"`}, attrValues("degrees_north"))
}
