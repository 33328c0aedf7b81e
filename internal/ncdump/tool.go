package ncdump

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Source gives access to a granule through its CDL rendering.
type Source interface {
	// Header returns the file's dump with coordinate variable data
	// included, as printed by `ncdump -c`.
	Header(ctx context.Context) (string, error)

	// Extract returns the flat payload of a variable in row-major order,
	// the last dimension varying fastest.
	Extract(ctx context.Context, variable string) ([]string, error)
}

// Tool runs the ncdump utility against one file.
type Tool struct {
	Path string
	File string
}

// NewTool checks that the ncdump executable can be found and returns a Tool
// reading file.
func NewTool(path, file string) (*Tool, error) {
	exe, err := exec.LookPath(path)
	if err != nil {
		return nil, fmt.Errorf("ncdump executable: %w", err)
	}
	return &Tool{Path: exe, File: file}, nil
}

// Header runs `ncdump -c`.
func (t *Tool) Header(ctx context.Context) (string, error) {
	return t.run(ctx, "-c", t.File)
}

// Extract runs `ncdump -v variable` and returns the values printed for it.
func (t *Tool) Extract(ctx context.Context, variable string) ([]string, error) {
	out, err := t.run(ctx, "-v", variable, t.File)
	if err != nil {
		return nil, &ExtractionError{Variable: variable, Err: err}
	}
	d, err := Parse(out)
	if err != nil {
		return nil, &ExtractionError{Variable: variable, Err: err}
	}
	return Payload(d, variable)
}

func (t *Tool) run(ctx context.Context, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.Path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("%s %s: %w", t.Path, strings.Join(args, " "), err)
		}
		return "", fmt.Errorf("%s %s: %w: %s", t.Path, strings.Join(args, " "), err, msg)
	}
	return stdout.String(), nil
}

// Payload returns the data printed for variable in d and checks that it holds
// exactly one value per declared point.
func Payload(d *Dump, variable string) ([]string, error) {
	v, ok := d.Variable(variable)
	if !ok {
		return nil, &ExtractionError{Variable: variable, Err: ErrNoVariable}
	}
	values, ok := d.Data(variable)
	if !ok {
		return nil, &ExtractionError{Variable: variable, Err: ErrNoData}
	}
	if len(values) != v.Points {
		return nil, &ExtractionError{
			Variable: variable,
			Err:      fmt.Errorf("got %d values, want %d", len(values), v.Points),
		}
	}
	return values, nil
}
