// Package met writes OODT CAS metadata documents (.met files) for granules.
//
// A granule's metadata may be split over several parts. Every part is a
// complete document that starts with the granule's identity keys, so parts
// can be catalogued independently.
package met

import (
	"bufio"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"gocloud.dev/blob"
)

var (
	// ErrNoPart is returned when writing without a started part.
	ErrNoPart = errors.New("met: no part started")
	// ErrPartOpen is returned when starting a part while another is open.
	ErrPartOpen = errors.New("met: part already started")
	// ErrKeyOpen is returned when writing while a multi-valued key is open.
	ErrKeyOpen = errors.New("met: multi-valued key is open")
)

const (
	// DatasetIDKey and GranuleKey are written at the top of every part.
	DatasetIDKey = "dataset_id"
	GranuleKey   = "granule_filename"

	header = `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
		`<cas:metadata xmlns:cas="http://oodt.jpl.nasa.gov/1.0/cas">` + "\n"
	footer = "</cas:metadata>\n"
)

// Identity is the set of keys that makes a part self-describing.
type Identity struct {
	DatasetID string
	Granule   string
}

// Part describes a finished part.
type Part struct {
	Index int
	Name  string
	Keys  int

	// Values counts the entries of all keys in the part.
	Values int
}

// Writer writes the parts of one granule's metadata into a bucket.
type Writer struct {
	bucket *blob.Bucket
	base   string
	id     Identity
	codec  Codec
	logger *slog.Logger

	cur   *part
	key   *MultiKey
	parts []Part
}

type part struct {
	info   Part
	cancel context.CancelFunc
	blob   *blob.Writer
	enc    io.WriteCloser
	buf    *bufio.Writer
}

// Option configures a Writer.
type Option func(*Writer)

// WithCodec compresses every part with c.
func WithCodec(c Codec) Option {
	return func(w *Writer) { w.codec = c }
}

// WithLogger sets the logger used for part lifecycle messages.
func WithLogger(l *slog.Logger) Option {
	return func(w *Writer) { w.logger = l }
}

// NewWriter returns a Writer that stores parts named after base in bucket.
func NewWriter(bucket *blob.Bucket, base string, id Identity, opts ...Option) *Writer {
	w := &Writer{
		bucket: bucket,
		base:   base,
		id:     id,
		codec:  None,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// PartName returns the object name of part index: base.met for the first
// part, base.<index>.met for the others, followed by the codec extension.
func PartName(base string, index int, c Codec) string {
	if index == 0 {
		return base + ".met" + c.Ext()
	}
	return fmt.Sprintf("%s.%d.met%s", base, index, c.Ext())
}

// StartPart opens part index and writes the identity keys into it.
func (w *Writer) StartPart(ctx context.Context, index int) error {
	if w.cur != nil {
		return ErrPartOpen
	}
	name := PartName(w.base, index, w.codec)
	ctx, cancel := context.WithCancel(ctx)
	bw, err := w.bucket.NewWriter(ctx, name, &blob.WriterOptions{ContentType: w.codec.ContentType()})
	if err != nil {
		cancel()
		return fmt.Errorf("met: failed to open %s: %w", name, err)
	}
	p := &part{info: Part{Index: index, Name: name}, cancel: cancel, blob: bw}
	var out io.Writer = bw
	if p.enc, err = w.codec.wrap(bw); err != nil {
		cancel()
		bw.Close()
		return fmt.Errorf("met: failed to open %s: %w", name, err)
	}
	if p.enc != nil {
		out = p.enc
	}
	p.buf = bufio.NewWriterSize(out, 64*1024)
	w.cur = p
	w.logger.Debug("Started metadata part", "name", name)

	if _, err := p.buf.WriteString(header); err != nil {
		return err
	}
	if err := w.WriteKey(DatasetIDKey, w.id.DatasetID); err != nil {
		return err
	}
	return w.WriteKey(GranuleKey, w.id.Granule)
}

func (w *Writer) writable() error {
	if w.cur == nil {
		return ErrNoPart
	}
	if w.key != nil {
		return ErrKeyOpen
	}
	return nil
}

// WriteKey writes a single-valued key.
func (w *Writer) WriteKey(name, value string) error {
	if err := w.writable(); err != nil {
		return err
	}
	if err := w.open("scalar", name); err != nil {
		return err
	}
	if err := w.value(value); err != nil {
		return err
	}
	return w.close()
}

// WriteMultiKey writes a multi-valued key in one go.
func (w *Writer) WriteMultiKey(name string, values []string) error {
	return w.StreamMultiKey(name, func(k *MultiKey) error {
		return k.AppendBatch(values)
	})
}

// OpenMultiKey starts a multi-valued key whose values are appended in
// batches. No other key can be written until the returned key is closed.
func (w *Writer) OpenMultiKey(name string) (*MultiKey, error) {
	if err := w.writable(); err != nil {
		return nil, err
	}
	if err := w.open("vector", name); err != nil {
		return nil, err
	}
	w.key = &MultiKey{w: w, name: name}
	return w.key, nil
}

// StreamMultiKey opens a multi-valued key, passes it to fn and closes it
// whether or not fn succeeds.
func (w *Writer) StreamMultiKey(name string, fn func(*MultiKey) error) error {
	k, err := w.OpenMultiKey(name)
	if err != nil {
		return err
	}
	ferr := fn(k)
	cerr := k.Close()
	if ferr != nil {
		return ferr
	}
	return cerr
}

// FinishPart completes the current part and commits it to the bucket.
func (w *Writer) FinishPart() error {
	if err := w.writable(); err != nil {
		return err
	}
	p := w.cur
	w.cur = nil
	defer p.cancel()

	_, err := p.buf.WriteString(footer)
	if err == nil {
		err = p.buf.Flush()
	}
	if err == nil && p.enc != nil {
		err = p.enc.Close()
	}
	if err != nil {
		p.discard()
		return fmt.Errorf("met: failed to write %s: %w", p.info.Name, err)
	}
	if err := p.blob.Close(); err != nil {
		return fmt.Errorf("met: failed to commit %s: %w", p.info.Name, err)
	}
	w.parts = append(w.parts, p.info)
	w.logger.Debug("Finished metadata part", "name", p.info.Name, "keys", p.info.Keys, "values", p.info.Values)
	return nil
}

// Abort discards the current part, if any, without committing it.
func (w *Writer) Abort() {
	if w.cur == nil {
		return
	}
	w.cur.discard()
	w.logger.Debug("Aborted metadata part", "name", w.cur.info.Name)
	w.cur = nil
	w.key = nil
}

// discard releases the encoder and the blob writer of a part without
// committing it. The write context is cancelled first, so whatever the encoder
// flushes on close never reaches the bucket.
func (p *part) discard() {
	p.cancel()
	if p.enc != nil {
		p.enc.Close()
		p.enc = nil
	}
	p.blob.Close()
}

// Parts returns the parts finished so far.
func (w *Writer) Parts() []Part {
	return w.parts
}

func (w *Writer) open(kind, name string) error {
	b := w.cur.buf
	b.WriteString(`  <keyval type="`)
	b.WriteString(kind)
	b.WriteString("\">\n    <key>")
	if err := xml.EscapeText(b, []byte(name)); err != nil {
		return err
	}
	_, err := b.WriteString("</key>\n")
	w.cur.info.Keys++
	return err
}

func (w *Writer) value(v string) error {
	b := w.cur.buf
	b.WriteString("    <val>")
	if err := xml.EscapeText(b, []byte(v)); err != nil {
		return err
	}
	_, err := b.WriteString("</val>\n")
	w.cur.info.Values++
	return err
}

func (w *Writer) close() error {
	_, err := w.cur.buf.WriteString("  </keyval>\n")
	return err
}

// MultiKey is an open multi-valued key.
type MultiKey struct {
	w      *Writer
	name   string
	n      int
	closed bool
}

// AppendBatch writes values to the key.
func (k *MultiKey) AppendBatch(values []string) error {
	if k.closed {
		return fmt.Errorf("met: key %s is closed", k.name)
	}
	if k.w.cur == nil {
		return ErrNoPart
	}
	for _, v := range values {
		if err := k.w.value(v); err != nil {
			return err
		}
	}
	k.n += len(values)
	return nil
}

// Len returns the number of values appended so far.
func (k *MultiKey) Len() int {
	return k.n
}

// Close ends the key. Closing twice is a no-op.
func (k *MultiKey) Close() error {
	if k.closed {
		return nil
	}
	k.closed = true
	if k.w.key != k || k.w.cur == nil {
		return nil
	}
	k.w.key = nil
	return k.w.close()
}
