package triplet

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
)

// SparseEntry is one (gene_idx, cell_idx, count) triplet from a single-cell
// input stream.
type SparseEntry struct {
	GeneIdx, CellIdx int
	Count            float64
}

// SparseStream is the fully-ingested contents of a single-cell triplet
// input: a flat list of entries plus the dense dimensions implied by the
// maximum indices observed.
type SparseStream struct {
	Entries  []SparseEntry
	NumGenes int
	NumCells int
}

// ScanSparse reads the "gene_idx\tcell_idx\tcount" stream used by the
// single-cell reducer. A header line ("gene_idx\tcell_idx\tcount") is
// detected the same way Scan detects one: if the first line's third field
// doesn't parse as a number, it is skipped.
//
// Duplicate (gene_idx, cell_idx) pairs are a fatal ingest error, per the
// sparse triplet stream invariant.
func ScanSparse(r io.Reader, source string) (*SparseStream, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, 64<<20)

	seen := make(map[[2]int]bool)
	var entries []SparseEntry
	maxGene, maxCell := -1, -1

	lineNo := 0
	first := true
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("%s:%d: expected at least 3 tab-separated fields, got %d", source, lineNo, len(fields)))
		}
		if first {
			first = false
			if _, err := strconv.ParseFloat(fields[2], 64); err != nil {
				continue
			}
		}
		gene, err := strconv.Atoi(fields[0])
		if err != nil || gene < 0 {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("%s:%d: invalid gene_idx %q", source, lineNo, fields[0]))
		}
		cell, err := strconv.Atoi(fields[1])
		if err != nil || cell < 0 {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("%s:%d: invalid cell_idx %q", source, lineNo, fields[1]))
		}
		count, err := strconv.ParseFloat(fields[2], 64)
		if err != nil || count <= 0 {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("%s:%d: invalid positive count %q", source, lineNo, fields[2]))
		}
		key := [2]int{gene, cell}
		if seen[key] {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("%s:%d: duplicate (gene_idx, cell_idx) pair (%d, %d)", source, lineNo, gene, cell))
		}
		seen[key] = true
		entries = append(entries, SparseEntry{GeneIdx: gene, CellIdx: cell, Count: count})
		if gene > maxGene {
			maxGene = gene
		}
		if cell > maxCell {
			maxCell = cell
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.E(err, source)
	}
	return &SparseStream{Entries: entries, NumGenes: maxGene + 1, NumCells: maxCell + 1}, nil
}
