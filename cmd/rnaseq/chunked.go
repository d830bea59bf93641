package main

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/grailbio/rnaseq/chunk"
	"github.com/grailbio/rnaseq/triplet"
)

// tripletKeySep joins a record's row and column key into one string map
// key; it must not appear in either key, which holds because row/col keys
// come from tab-separated fields and therefore never contain a tab.
const tripletKeySep = "\t"

// scanTripletsChunked is triplet.Scan's chunked counterpart: r is read in
// bounded batches of chunkSize records via chunk.ScanTriplets, each
// batch's (row, col) -> value pairs are persisted to a temporary chunk
// file before the batch is freed, and once every batch has been read, the
// partial files are read back and combined with chunk.MergeFloatMaps
// before the dense Matrix is assembled. Mirrors alignChunked's
// persist-then-merge shape for pseudoalign.
func scanTripletsChunked(ctx context.Context, r io.Reader, source string, chunkSize int) (_ *triplet.Matrix, retErr error) {
	tmpDir, err := ioutil.TempDir("", "rnaseq-triplet-chunks")
	if err != nil {
		return nil, err
	}
	// On failure the chunk files written so far are kept for inspection.
	defer func() {
		if retErr != nil {
			logWarning("chunked ingest failed; chunk files kept in %s", tmpDir)
			return
		}
		os.RemoveAll(tmpDir)
	}()

	var chunkPaths []string
	n := 0
	err = chunk.ScanTriplets(r, source, chunkSize, func(recs []triplet.Record) error {
		partial := make(map[string]float64, len(recs))
		for _, rec := range recs {
			partial[rec.Row+tripletKeySep+rec.Col] = rec.Value
		}
		path := filepath.Join(tmpDir, fmt.Sprintf("chunk-%d.rio", n))
		n++
		cw, err := chunk.NewWriter(ctx, path)
		if err != nil {
			return err
		}
		if err := cw.WriteChunk(partial); err != nil {
			cw.Close(ctx)
			return err
		}
		if err := cw.Close(ctx); err != nil {
			return err
		}
		chunkPaths = append(chunkPaths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	merged := make(map[string]float64)
	for _, path := range chunkPaths {
		cr, err := chunk.NewReader(ctx, path)
		if err != nil {
			return nil, err
		}
		for cr.Scan() {
			var partial map[string]float64
			if err := cr.Decode(&partial); err != nil {
				cr.Close(ctx)
				return nil, err
			}
			merged = chunk.MergeFloatMaps(merged, partial)
		}
		err = cr.Err()
		if cerr := cr.Close(ctx); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, err
		}
	}

	rowSet := make(map[string]bool)
	colSet := make(map[string]bool)
	for key := range merged {
		row, col := splitTripletKey(key)
		rowSet[row] = true
		colSet[col] = true
	}
	m := triplet.NewMatrix(sortedKeys(rowSet), sortedKeys(colSet))
	for key, v := range merged {
		row, col := splitTripletKey(key)
		r, _ := m.RowOf(row)
		c, _ := m.ColOf(col)
		m.Values[r][c] = v
	}
	return m, nil
}

func splitTripletKey(key string) (row, col string) {
	parts := strings.SplitN(key, tripletKeySep, 2)
	return parts[0], parts[1]
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
