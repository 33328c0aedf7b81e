package grid

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rtm0/ncmet/internal/ncdump"
)

const granule = "20100315T0000Z"

func dim(name string, coords ...string) ncdump.Dimension {
	return ncdump.Dimension{Name: name, Len: len(coords), Coords: coords}
}

func seq(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprint(i + 1)
	}
	return out
}

var (
	lat   = dim("lat", "10", "20", "30")
	lon   = dim("lon", "100", "110")
	level = dim("level", "33000", "62000")
)

func TestAxis2Project(t *testing.T) {
	shape, err := NewShape("temp", []ncdump.Dimension{lat, lon})
	require.NoError(t, err)
	s, ok := shape.(Axis2)
	require.True(t, ok)
	require.Equal(t, 6, s.Points())

	points, err := s.Project(seq(6), granule)
	require.NoError(t, err)
	require.Equal(t, []Point{
		{A: "10", B: "100", Level: "0", Time: granule, Value: "1"},
		{A: "10", B: "110", Level: "0", Time: granule, Value: "2"},
		{A: "20", B: "100", Level: "0", Time: granule, Value: "3"},
		{A: "20", B: "110", Level: "0", Time: granule, Value: "4"},
		{A: "30", B: "100", Level: "0", Time: granule, Value: "5"},
		{A: "30", B: "110", Level: "0", Time: granule, Value: "6"},
	}, points)
	require.Equal(t, "10,100,0,20100315T0000Z,1", points[0].String())

	_, err = s.Project(seq(5), granule)
	require.Error(t, err)
}

func TestAxis2UniqueCoordinates(t *testing.T) {
	a := dim("x", seq(7)...)
	b := dim("y", "-1", "-2", "-3", "-4")
	s := Axis2{A: a, B: b}
	points, err := s.Project(seq(28), granule)
	require.NoError(t, err)
	require.Len(t, points, 28)

	seen := make(map[[2]string]bool)
	for _, p := range points {
		key := [2]string{p.A, p.B}
		require.False(t, seen[key], "duplicate coordinate %v", key)
		seen[key] = true
		require.Equal(t, granule, p.Time)
		require.Equal(t, Level, p.Level)
	}
}

func TestAxis3Slices(t *testing.T) {
	shape, err := NewShape("humidity", []ncdump.Dimension{level, lat, lon})
	require.NoError(t, err)
	s := shape.(Axis3)
	require.Equal(t, 12, s.Points())

	var levels []string
	var all []Point
	n, err := s.Slices(seq(12), granule, nil, func(l string, points []Point) error {
		require.Len(t, points, 6)
		levels = append(levels, l)
		all = append(all, points...)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 12, n)
	require.Equal(t, []string{"33000", "62000"}, levels)
	require.Equal(t, Point{A: "10", B: "100", Level: "33000", Time: granule, Value: "1"}, all[0])
	require.Equal(t, Point{A: "10", B: "100", Level: "62000", Time: granule, Value: "7"}, all[6])
	require.Equal(t, Point{A: "30", B: "110", Level: "62000", Time: granule, Value: "12"}, all[11])
}

func TestAxis3LevelFilter(t *testing.T) {
	s := Axis3{Outer: level, Grid: Axis2{A: lat, B: lon}}
	var got []Point
	n, err := s.Slices(seq(12), granule, ParseAllowList([]string{"62000"}), func(l string, points []Point) error {
		got = append(got, points...)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 6, n)
	require.Len(t, got, 6)
	for i, p := range got {
		require.Equal(t, "62000", p.Level)
		require.Equal(t, fmt.Sprint(i+7), p.Value)
	}
}

func TestAxis3StopsOnError(t *testing.T) {
	s := Axis3{Outer: level, Grid: Axis2{A: lat, B: lon}}
	boom := errors.New("boom")
	calls := 0
	n, err := s.Slices(seq(12), granule, nil, func(string, []Point) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)
	require.Equal(t, 0, n)

	_, err = s.Slices(seq(11), granule, nil, func(string, []Point) error { return nil })
	require.Error(t, err)
}

func TestUnsupportedShape(t *testing.T) {
	for _, dims := range [][]ncdump.Dimension{
		{lat},
		{dim("time", "0"), level, lat, lon},
		nil,
	} {
		_, err := NewShape("v", dims)
		var serr *UnsupportedShapeError
		require.True(t, errors.As(err, &serr))
		require.Equal(t, len(dims), serr.Dims)
	}
	_, err := NewShape("v", []ncdump.Dimension{dim("time", "0"), level, lat, lon})
	require.Contains(t, err.Error(), "more than 3 dimensions detected")
}

func TestAllowList(t *testing.T) {
	require.True(t, ParseAllowList(nil).All())
	require.True(t, ParseAllowList([]string{"all"}).All())
	require.True(t, ParseAllowList([]string{" ALL "}).All())
	require.True(t, ParseAllowList([]string{"", " "}).All())

	l := ParseAllowList([]string{"62000", " temp"})
	require.False(t, l.All())
	require.True(t, l.Allows("62000"))
	require.True(t, l.Allows("62000.0"))
	require.True(t, l.Allows("temp"))
	require.False(t, l.Allows("33000"))
	require.False(t, l.Allows("humidity"))
}

func TestGranuleTime(t *testing.T) {
	require.Equal(t, "20100315T0000Z", GranuleTime("AIRS.2010.03.15.L3.RetStd001.v5.2.2.0.G10075151503.hdf.nc"))
	require.Equal(t, "20100315T0000Z", GranuleTime("/data/airs/AIRS.2010.03.15.nc"))
	require.True(t, ValidTime(GranuleTime("AIRS.2010.03.15.nc")))

	require.Equal(t, "T0000Z", GranuleTime("x.nc"))
	require.False(t, ValidTime(GranuleTime("x.nc")))
	require.False(t, ValidTime(GranuleTime("MERRA2_400.tavg1.nc")))
}
