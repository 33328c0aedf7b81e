// Package extract drives the extraction of one granule: it parses the
// granule's dump, projects every selected variable and writes the points into
// one or more metadata parts.
package extract

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rtm0/ncmet/internal/grid"
	"github.com/rtm0/ncmet/internal/met"
	"github.com/rtm0/ncmet/internal/ncdump"
)

// DefaultDatasetID is the catalog dataset id of AIRS level 3 granules.
const DefaultDatasetID = "1"

// Options configures an extraction.
type Options struct {
	DatasetID string

	// Vars and Levels restrict the variables and the outer-axis levels of 3D
	// variables that are extracted. Nil lists extract everything.
	Vars   grid.AllowList
	Levels grid.AllowList

	// MaxPointsPerPart starts a new part before a variable that would push
	// the current part over the limit. Zero means a single part.
	MaxPointsPerPart int

	// Time is the acquisition time stamped on every point. When empty it is
	// derived from the granule file name.
	Time string

	Logger *slog.Logger
}

// Part summarizes one written part.
type Part struct {
	met.Part
	Points    int
	Variables []string
}

// Variable summarizes one extracted variable.
type Variable struct {
	Name   string
	Part   int
	Points int
}

// Summary reports what an extraction wrote.
type Summary struct {
	Granule     string
	Time        string
	Parts       []Part
	Variables   []Variable
	TotalPoints int
}

// LogAttrs returns the summary in a form suitable for logging.
func (s *Summary) LogAttrs() []any {
	return []any{
		"granule", s.Granule,
		"time", s.Time,
		"parts", len(s.Parts),
		"variables", len(s.Variables),
		"totalPoints", s.TotalPoints,
	}
}

// Extractor extracts the metadata of one granule.
type Extractor struct {
	src     ncdump.Source
	granule string
	time    string
	opts    Options
	logger  *slog.Logger
}

// New returns an Extractor reading the granule at path through src.
func New(src ncdump.Source, path string, opts Options) *Extractor {
	e := &Extractor{
		src:     src,
		granule: filepath.Base(path),
		opts:    opts,
		logger:  opts.Logger,
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if e.opts.DatasetID == "" {
		e.opts.DatasetID = DefaultDatasetID
	}
	e.time = opts.Time
	if e.time == "" {
		e.time = grid.GranuleTime(e.granule)
		if !grid.ValidTime(e.time) {
			e.logger.Warn("Granule name does not encode a date", "granule", e.granule, "time", e.time)
		}
	}
	return e
}

// Identity returns the keys every part of the granule starts with.
func (e *Extractor) Identity() met.Identity {
	return met.Identity{DatasetID: e.opts.DatasetID, Granule: e.granule}
}

// Extract writes the granule's metadata with w. Any error aborts the part in
// progress; parts finished before the error are kept.
func (e *Extractor) Extract(ctx context.Context, w *met.Writer) (sum *Summary, err error) {
	text, err := e.src.Header(ctx)
	if err != nil {
		return nil, fmt.Errorf("extract: failed to dump %s: %w", e.granule, err)
	}
	d, err := ncdump.Parse(text)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("Parsed granule", "granule", e.granule,
		"dimensions", len(d.Dimensions), "attributes", len(d.Attributes), "variables", len(d.Variables))

	sum = &Summary{Granule: e.granule, Time: e.time}
	cur := Part{}
	if err := w.StartPart(ctx, 0); err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			w.Abort()
		}
	}()

	for _, v := range d.Variables {
		switch {
		case !e.opts.Vars.Allows(v.Name):
			e.logger.Debug("Skipping variable", "variable", v.Name, "reason", "filtered")
			continue
		case d.IsDimension(v.Name):
			e.logger.Debug("Skipping variable", "variable", v.Name, "reason", "coordinate")
			continue
		case v.IsText():
			e.logger.Debug("Skipping variable", "variable", v.Name, "reason", "text")
			continue
		}
		desc := d.Describe(v.Name)
		shape, err := grid.NewShape(v.Name, desc.Dimensions)
		if err != nil {
			return nil, err
		}

		limit := e.opts.MaxPointsPerPart
		if limit > 0 && cur.Points > 0 && cur.Points+desc.Points > limit {
			if err := e.finishPart(w, sum, &cur); err != nil {
				return nil, err
			}
			next := len(sum.Parts)
			if err := w.StartPart(ctx, next); err != nil {
				return nil, err
			}
			e.logger.Debug("Reached max points per part, starting a new part", "max", limit, "part", next)
		}

		e.logger.Debug("Processing variable", "variable", v.Name, "dims", v.Dims, "points", desc.Points)
		values, err := e.src.Extract(ctx, v.Name)
		if err != nil {
			return nil, err
		}
		if err := w.WriteMultiKey("param_"+v.Name, paramValues(v)); err != nil {
			return nil, err
		}
		n, err := e.writeData(w, v.Name, shape, values)
		if err != nil {
			return nil, err
		}
		cur.Points += n
		cur.Variables = append(cur.Variables, v.Name)
		sum.TotalPoints += n
		sum.Variables = append(sum.Variables, Variable{Name: v.Name, Part: len(sum.Parts), Points: n})
	}

	if err := e.finishPart(w, sum, &cur); err != nil {
		return nil, err
	}
	e.logger.Info("Extracted granule", sum.LogAttrs()...)
	return sum, nil
}

func (e *Extractor) finishPart(w *met.Writer, sum *Summary, cur *Part) error {
	if err := w.FinishPart(); err != nil {
		return err
	}
	parts := w.Parts()
	cur.Part = parts[len(parts)-1]
	sum.Parts = append(sum.Parts, *cur)
	*cur = Part{}
	return nil
}

// writeData projects values onto shape and writes them as data_<name>. 3D
// variables are written one level at a time.
func (e *Extractor) writeData(w *met.Writer, name string, shape grid.Shape, values []string) (int, error) {
	key := "data_" + name
	switch s := shape.(type) {
	case grid.Axis2:
		points, err := s.Project(values, e.time)
		if err != nil {
			return 0, &ncdump.ExtractionError{Variable: name, Err: err}
		}
		e.logger.Debug("Processing slice", "variable", name, "level", grid.Level, "points", len(points))
		return len(points), w.WriteMultiKey(key, grid.Strings(points))

	case grid.Axis3:
		if !e.opts.Levels.All() {
			for _, level := range s.Outer.Coords {
				if !e.opts.Levels.Allows(level) {
					e.logger.Debug("Skipping slice", "variable", name, "level", level)
				}
			}
		}
		var n int
		err := w.StreamMultiKey(key, func(k *met.MultiKey) error {
			var err error
			n, err = s.Slices(values, e.time, e.opts.Levels, func(level string, points []grid.Point) error {
				e.logger.Debug("Processing slice", "variable", name, "level", level, "points", len(points))
				return k.AppendBatch(grid.Strings(points))
			})
			return err
		})
		return n, err
	}
	panic(fmt.Sprintf("extract: unknown shape %T", shape))
}

// paramValues describes a variable for its param_<name> key.
func paramValues(v ncdump.Variable) []string {
	out := []string{
		"type=" + v.Type,
		"dimensions=" + strings.Join(v.Dims, ","),
		"points=" + strconv.Itoa(v.Points),
	}
	for _, a := range v.Attributes {
		out = append(out, a.Name+"="+a.Value())
	}
	return out
}
