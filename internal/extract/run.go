package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"

	"github.com/rtm0/ncmet/internal/met"
	"github.com/rtm0/ncmet/internal/native"
	"github.com/rtm0/ncmet/internal/ncdump"
)

// Readers a granule can be read with.
const (
	ReaderNcdump = "ncdump"
	ReaderNative = "native"
)

// ErrNoOutput is returned when no output location is configured.
var ErrNoOutput = errors.New("extract: no output location specified")

// Config holds everything needed to extract one granule.
type Config struct {
	Input  string
	Output string

	// Reader is ReaderNcdump or ReaderNative. Ncdump is the path of the
	// ncdump executable used by ReaderNcdump.
	Reader string
	Ncdump string

	Codec met.Codec
	Options
}

// Run extracts the granule cfg.Input into cfg.Output.
func Run(ctx context.Context, cfg Config) (*Summary, error) {
	bucket, err := OpenBucket(ctx, cfg.Output)
	if err != nil {
		return nil, err
	}
	defer bucket.Close()

	src, closeSrc, err := OpenSource(cfg.Reader, cfg.Ncdump, cfg.Input)
	if err != nil {
		return nil, err
	}
	defer closeSrc()

	e := New(src, cfg.Input, cfg.Options)
	w := met.NewWriter(bucket, filepath.Base(cfg.Input), e.Identity(),
		met.WithCodec(cfg.Codec), met.WithLogger(e.logger))
	return e.Extract(ctx, w)
}

// OpenBucket opens the output location, either a blob URL such as
// s3://bucket/prefix or mem:// or an existing local directory.
func OpenBucket(ctx context.Context, output string) (*blob.Bucket, error) {
	output = strings.TrimSpace(output)
	if output == "" {
		return nil, ErrNoOutput
	}
	if strings.Contains(output, "://") {
		b, err := blob.OpenBucket(ctx, output)
		if err != nil {
			return nil, fmt.Errorf("extract: failed to open output %s: %w", output, err)
		}
		return b, nil
	}
	dir, err := filepath.Abs(os.ExpandEnv(output))
	if err != nil {
		return nil, fmt.Errorf("extract: output %s: %w", output, err)
	}
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("extract: the output directory doesn't exist: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("extract: output %s is not a directory", dir)
	}
	b, err := fileblob.OpenBucket(dir, &fileblob.Options{Metadata: fileblob.MetadataDontWrite})
	if err != nil {
		return nil, fmt.Errorf("extract: failed to open output %s: %w", dir, err)
	}
	return b, nil
}

// OpenSource returns a Source for the granule at path and a function that
// releases it.
func OpenSource(reader, ncdumpPath, path string) (ncdump.Source, func(), error) {
	switch reader {
	case "", ReaderNcdump:
		t, err := ncdump.NewTool(ncdumpPath, path)
		if err != nil {
			return nil, nil, err
		}
		return t, func() {}, nil
	case ReaderNative:
		f, err := native.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return f, f.Close, nil
	}
	return nil, nil, fmt.Errorf("extract: unknown reader %q, want %s or %s", reader, ReaderNcdump, ReaderNative)
}
