package met

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"gocloud.dev/blob"
)

// Document is a decoded part.
type Document struct {
	XMLName xml.Name `xml:"metadata"`
	KeyVals []KeyVal `xml:"keyval"`
}

// KeyVal is one key of a document.
type KeyVal struct {
	Type string   `xml:"type,attr"`
	Key  string   `xml:"key"`
	Vals []string `xml:"val"`
}

// Get returns the values of key.
func (d *Document) Get(key string) ([]string, bool) {
	for _, kv := range d.KeyVals {
		if kv.Key == key {
			return kv.Vals, true
		}
	}
	return nil, false
}

// CodecOf infers the codec of a part from its name.
func CodecOf(name string) Codec {
	switch {
	case strings.HasSuffix(name, Gzip.Ext()):
		return Gzip
	case strings.HasSuffix(name, Zstd.Ext()):
		return Zstd
	}
	return None
}

// ReadPart reads and decodes the part called name from bucket.
func ReadPart(ctx context.Context, bucket *blob.Bucket, name string) (*Document, error) {
	r, err := bucket.NewReader(ctx, name, nil)
	if err != nil {
		return nil, fmt.Errorf("met: failed to open %s: %w", name, err)
	}
	defer r.Close()

	dr, err := CodecOf(name).NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("met: failed to decompress %s: %w", name, err)
	}
	defer dr.Close()

	var doc Document
	if err := xml.NewDecoder(dr).Decode(&doc); err != nil {
		return nil, fmt.Errorf("met: failed to decode %s: %w", name, err)
	}
	return &doc, nil
}
