// Package chunk implements chunked-input processing and partial-output
// persistence: large triplet or read streams are processed in bounded-
// size chunks, each chunk's partial result is persisted to a recordio
// file before memory is reclaimed, and a final deterministic merge
// combines the partial outputs by key.
package chunk

import (
	"bytes"
	"context"
	"encoding/gob"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/recordio/recordiozstd"
)

const (
	fileVersionHeader = "rnaseqchunkversion"
	fileVersion       = "RNASEQ_CHUNK_V1"
)

// Writer persists a sequence of gob-encodable partial results to a
// recordio file, one record per chunk.
type Writer struct {
	out file.File
	w   recordio.Writer
}

// NewWriter creates a Writer at path, compressed with zstd.
func NewWriter(ctx context.Context, path string) (*Writer, error) {
	recordiozstd.Init()
	out, err := file.Create(ctx, path)
	if err != nil {
		return nil, err
	}
	w := recordio.NewWriter(out.Writer(ctx), recordio.WriterOpts{
		Transformers: []string{recordiozstd.Name},
	})
	w.AddHeader(fileVersionHeader, fileVersion)
	return &Writer{out: out, w: w}, nil
}

// WriteChunk gob-encodes v and appends it as one recordio record.
func (w *Writer) WriteChunk(v interface{}) error {
	b := bytes.NewBuffer(nil)
	if err := gob.NewEncoder(b).Encode(v); err != nil {
		return err
	}
	return w.w.Append(b.Bytes())
}

// Close finishes the recordio file and closes the underlying file. It
// must be called exactly once, after writing every chunk.
func (w *Writer) Close(ctx context.Context) error {
	if err := w.w.Finish(); err != nil {
		return err
	}
	return w.out.Close(ctx)
}

// Reader reads back the chunks written by a Writer.
type Reader struct {
	in file.File
	r  recordio.Scanner
}

// NewReader opens the recordio file at path for chunk-by-chunk reading.
func NewReader(ctx context.Context, path string) (*Reader, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	recordiozstd.Init()
	r := recordio.NewScanner(in.Reader(ctx), recordio.ScannerOpts{})
	versionFound := false
	for _, kv := range r.Header() {
		if kv.Key == fileVersionHeader {
			versionFound = true
			break
		}
	}
	if !versionFound {
		log.Error.Printf("chunk: %s missing %s header; reading anyway", path, fileVersionHeader)
	}
	return &Reader{in: in, r: r}, nil
}

// Scan advances to the next chunk. It returns false at end of stream or
// on error; check Err to distinguish the two.
func (r *Reader) Scan() bool { return r.r.Scan() }

// Decode gob-decodes the current chunk into v.
//
// REQUIRES: the last call to Scan returned true.
func (r *Reader) Decode(v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(r.r.Get().([]byte))).Decode(v)
}

// Err returns the scanning error, if any.
func (r *Reader) Err() error { return r.r.Err() }

// Close closes the reader.
func (r *Reader) Close(ctx context.Context) error {
	return r.in.Close(ctx)
}
