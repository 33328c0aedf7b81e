package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/rtm0/ncmet/internal/extract"
	"github.com/rtm0/ncmet/internal/met"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// setFlags sets extract flags for the duration of a test.
func setFlags(t *testing.T, kv map[string]string) {
	t.Helper()
	fs := extractCmd.Flags()
	for name, v := range kv {
		name := name
		f := fs.Lookup(name)
		require.NotNil(t, f, name)
		old := f.Value.String()
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			prev := sv.GetSlice()
			t.Cleanup(func() { sv.Replace(prev) })
			require.NoError(t, sv.Replace(strings.Split(v, ",")))
			f.Changed = true
			continue
		}
		t.Cleanup(func() { fs.Set(name, old) })
		require.NoError(t, fs.Set(name, v))
	}
}

const header = `netcdf AIRS {
dimensions:
	lat = 2 ;
	lon = 2 ;
variables:
	float lat(lat) ;
	float lon(lon) ;
	float temp(lat, lon) ;
data:

 lat = 10, 20 ;

 lon = 100, 110 ;
}
`

func fakeNcdump(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake ncdump is a shell script")
	}
	dir := t.TempDir()
	h := filepath.Join(dir, "header.cdl")
	require.NoError(t, os.WriteFile(h, []byte(header), 0644))
	temp := filepath.Join(dir, "temp.cdl")
	require.NoError(t, os.WriteFile(temp, []byte(`netcdf AIRS {
dimensions:
	lat = 2 ;
	lon = 2 ;
variables:
	float temp(lat, lon) ;
data:

 temp = 1, 2, 3, 4 ;
}
`), 0644))
	script := filepath.Join(dir, "ncdump")
	require.NoError(t, os.WriteFile(script, []byte(`#!/bin/sh
case "$1" in
-c) cat '`+h+`' ;;
-v) cat '`+temp+`' ;;
esac
`), 0755))
	return script
}

func TestVersion(t *testing.T) {
	var buf bytes.Buffer
	Root.SetOut(&buf)
	defer Root.SetOut(nil)
	Root.SetArgs([]string{"version"})
	require.NoError(t, Root.Execute())
	require.Equal(t, "ncmet v"+Version+"\n", buf.String())
}

func TestExtractUsage(t *testing.T) {
	Root.SetOut(io.Discard)
	defer Root.SetOut(nil)
	Root.SetArgs([]string{"extract", t.TempDir()})
	err := Root.Execute()
	var uerr *UsageError
	require.ErrorAs(t, err, &uerr)
}

func TestExtractConfig(t *testing.T) {
	cfg, err := extractConfig("out", discard)
	require.NoError(t, err)
	require.Equal(t, "out", cfg.Output)
	require.Equal(t, extract.ReaderNcdump, cfg.Reader)
	require.Equal(t, "/usr/bin/ncdump", cfg.Ncdump)
	require.Equal(t, met.None, cfg.Codec)
	require.Equal(t, extract.DefaultDatasetID, cfg.DatasetID)
	require.True(t, cfg.Vars.All())
	require.True(t, cfg.Levels.All())
	require.Zero(t, cfg.MaxPointsPerPart)

	setFlags(t, map[string]string{
		"vars":     "temp,humidity",
		"levels":   "62000",
		"splitat":  "500",
		"compress": "ZSTD",
		"reader":   "native",
		"time":     "20100315T1200Z",
	})
	cfg, err = extractConfig("out", discard)
	require.NoError(t, err)
	require.Equal(t, []string{"temp", "humidity"}, []string(cfg.Vars))
	require.True(t, cfg.Levels.Allows("62000.0"))
	require.Equal(t, 500, cfg.MaxPointsPerPart)
	require.Equal(t, met.Zstd, cfg.Codec)
	require.Equal(t, extract.ReaderNative, cfg.Reader)
	require.Equal(t, "20100315T1200Z", cfg.Time)
}

func TestExtractConfigEnv(t *testing.T) {
	t.Setenv("NCMET_DATASETID", "9")
	cfg, err := extractConfig("out", discard)
	require.NoError(t, err)
	require.Equal(t, "9", cfg.DatasetID)
}

func TestExtractConfigInvalid(t *testing.T) {
	for name, kv := range map[string]map[string]string{
		"compress":  {"compress": "lz4"},
		"time":      {"time": "2010-03-15"},
		"maxPoints": {"maxPointsPerFile": "-1"},
	} {
		t.Run(name, func(t *testing.T) {
			setFlags(t, kv)
			_, err := extractConfig("out", discard)
			require.Error(t, err)
		})
	}
}

func TestExtractCommand(t *testing.T) {
	out := t.TempDir()
	in := t.TempDir()
	a := filepath.Join(in, "AIRS.2010.03.15.nc")
	b := filepath.Join(in, "AIRS.2010.03.16.nc")
	setFlags(t, map[string]string{
		"ncdump":      fakeNcdump(t),
		"compress":    "gzip",
		"concurrency": "2",
	})

	Root.SetOut(io.Discard)
	defer Root.SetOut(nil)
	Root.SetArgs([]string{"extract", out, a, b})
	require.NoError(t, Root.Execute())

	var buf bytes.Buffer
	require.NoError(t, inspect(context.Background(), &buf, out, []string{"AIRS.2010.03.16.nc.met.gz"}))
	require.Equal(t, `AIRS.2010.03.16.nc.met.gz:
  dataset_id = 1
  granule_filename = AIRS.2010.03.16.nc
  param_temp [3]
  data_temp [4]
`, buf.String())
}

func TestExtractAllCollectsErrors(t *testing.T) {
	base := extract.Config{
		Output: t.TempDir(),
		Ncdump: filepath.Join(t.TempDir(), "ncdump"),
		Options: extract.Options{
			Logger: discard,
		},
	}
	err := extractAll(context.Background(), discard, base, []string{"a.nc", "b.nc", "c.nc"}, 2)
	require.Error(t, err)
	for _, name := range []string{"a.nc", "b.nc", "c.nc"} {
		require.Contains(t, err.Error(), name)
	}
}
