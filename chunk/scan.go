package chunk

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/rnaseq/triplet"
)

// ScanTriplets reads a tab-separated triplet stream in bounded-size
// chunks, invoking fn once per chunk of up to chunkSize records. fn's
// error aborts processing; records from chunks preceding the failing one
// are not retried. Header detection matches triplet.Scan: the first
// line's third field is treated as a header if it doesn't parse as a
// number.
func ScanTriplets(r io.Reader, source string, chunkSize int, fn func(chunk []triplet.Record) error) error {
	if chunkSize <= 0 {
		chunkSize = 1 << 16
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, 64<<20)

	buf := make([]triplet.Record, 0, chunkSize)
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
			return errors.E(errors.Invalid, fmt.Sprintf("%s:%d: expected at least 3 tab-separated fields, got %d", source, lineNo, len(fields)))
		}
		if first {
			first = false
			if _, err := strconv.ParseFloat(fields[2], 64); err != nil {
				continue
			}
		}
		value, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return errors.E(errors.Invalid, fmt.Sprintf("%s:%d: unparseable value %q", source, lineNo, fields[2]))
		}
		buf = append(buf, triplet.Record{Row: fields[0], Col: fields[1], Value: value})
		if len(buf) >= chunkSize {
			if err := fn(buf); err != nil {
				return err
			}
			buf = make([]triplet.Record, 0, chunkSize)
		}
	}
	if err := sc.Err(); err != nil {
		return errors.E(err, source)
	}
	if len(buf) > 0 {
		if err := fn(buf); err != nil {
			return err
		}
	}
	return nil
}
