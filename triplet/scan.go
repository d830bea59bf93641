package triplet

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
)

// Opts controls triplet ingest behavior.
type Opts struct {
	// RowOrder and ColOrder, if non-nil, fix the row/column ordering of the
	// assembled matrix instead of the default lexicographic order.
	RowOrder, ColOrder []string
	// DropZeroRows removes rows whose every value is zero.
	DropZeroRows bool
	// DropZeroCols removes columns whose every value is zero.
	DropZeroCols bool
}

// Record is one (row_key, col_key, value) triplet, as read from one line of
// input. Extra tab-separated fields after the third are ignored, per the
// triplet table file format.
type Record struct {
	Row, Col string
	Value    float64
}

// Scan reads a tab-separated triplet stream ("row_key\tcol_key\tvalue...")
// from r and assembles a dense Matrix. source names the input for error
// messages (typically a file path).
//
// Scan performs the two-pass algorithm of the ingest contract: the records
// are buffered once while the distinct row/column key sets are discovered,
// then the dense matrix is filled from the buffered records. The first line
// is treated as a header (and discarded) when its third field fails to
// parse as a number; otherwise it is treated as data.
func Scan(r io.Reader, source string, opts Opts) (*Matrix, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, 64<<20)

	var records []Record
	rowSet := make(map[string]bool)
	colSet := make(map[string]bool)
	seen := make(map[[2]string]bool)

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
		row, col := fields[0], fields[1]
		if first {
			first = false
			if _, err := strconv.ParseFloat(fields[2], 64); err != nil {
				// Header row: first line's 3rd field isn't numeric.
				continue
			}
		}
		value, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("%s:%d: unparseable value %q", source, lineNo, fields[2]))
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("%s:%d: non-finite value %q", source, lineNo, fields[2]))
		}
		key := [2]string{row, col}
		if seen[key] {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("%s:%d: duplicate triplet key (%s, %s)", source, lineNo, row, col))
		}
		seen[key] = true
		rowSet[row] = true
		colSet[col] = true
		records = append(records, Record{Row: row, Col: col, Value: value})
	}
	if err := sc.Err(); err != nil {
		return nil, errors.E(err, source)
	}

	rowKeys := opts.RowOrder
	if rowKeys == nil {
		rowKeys = sortedUnique(rowSet)
	}
	colKeys := opts.ColOrder
	if colKeys == nil {
		colKeys = sortedUnique(colSet)
	}
	m := NewMatrix(rowKeys, colKeys)
	for _, rec := range records {
		r, ok := m.RowOf(rec.Row)
		if !ok {
			continue // excluded by a caller-supplied RowOrder
		}
		c, ok := m.ColOf(rec.Col)
		if !ok {
			continue
		}
		m.Values[r][c] = rec.Value
	}
	if opts.DropZeroRows || opts.DropZeroCols {
		m = filterZeros(m, opts)
	}
	return m, nil
}

func filterZeros(m *Matrix, opts Opts) *Matrix {
	keepRow := make([]bool, len(m.RowKeys))
	for r := range m.RowKeys {
		keepRow[r] = true
		if opts.DropZeroRows {
			allZero := true
			for c := range m.ColKeys {
				if m.Values[r][c] != 0 {
					allZero = false
					break
				}
			}
			keepRow[r] = !allZero
		}
	}
	keepCol := make([]bool, len(m.ColKeys))
	for c := range m.ColKeys {
		keepCol[c] = true
		if opts.DropZeroCols {
			allZero := true
			for r := range m.RowKeys {
				if m.Values[r][c] != 0 {
					allZero = false
					break
				}
			}
			keepCol[c] = !allZero
		}
	}
	var newRowKeys, newColKeys []string
	for r, k := range m.RowKeys {
		if keepRow[r] {
			newRowKeys = append(newRowKeys, k)
		}
	}
	for c, k := range m.ColKeys {
		if keepCol[c] {
			newColKeys = append(newColKeys, k)
		}
	}
	out := NewMatrix(newRowKeys, newColKeys)
	nr := 0
	for r, k := range m.RowKeys {
		if !keepRow[r] {
			continue
		}
		_ = k
		nc := 0
		for c := range m.ColKeys {
			if !keepCol[c] {
				continue
			}
			out.Values[nr][nc] = m.Values[r][c]
			nc++
		}
		nr++
	}
	return out
}

// Write serializes m in the triplet count-table format:
// "gene_id\tsample_id\tcount\n" per non-header row, sorted by row then
// column key.
func Write(w io.Writer, m *Matrix, rowField, colField, valueField string) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "%s\t%s\t%s\n", rowField, colField, valueField); err != nil {
		return err
	}
	for r, rowKey := range m.RowKeys {
		for c, colKey := range m.ColKeys {
			if _, err := fmt.Fprintf(bw, "%s\t%s\t%s\n", rowKey, colKey, strconv.FormatFloat(m.Values[r][c], 'g', -1, 64)); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}
