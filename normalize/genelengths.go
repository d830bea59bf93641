package normalize

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
)

// ReadGeneLengths parses a "gene_id\tlength" two-column file, as required
// by TPM normalization. A header line is skipped the same way triplet.Scan
// detects one: if the first line's second field doesn't parse as a
// number, it is discarded.
func ReadGeneLengths(r io.Reader, source string) (map[string]float64, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, 16<<20)

	out := make(map[string]float64)
	lineNo := 0
	first := true
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("%s:%d: expected at least 2 tab-separated fields, got %d", source, lineNo, len(fields)))
		}
		if first {
			first = false
			if _, err := strconv.ParseFloat(fields[1], 64); err != nil {
				continue
			}
		}
		length, err := strconv.ParseFloat(fields[1], 64)
		if err != nil || length <= 0 {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("%s:%d: invalid positive gene length %q", source, lineNo, fields[1]))
		}
		if _, dup := out[fields[0]]; dup {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("%s:%d: duplicate gene id %q", source, lineNo, fields[0]))
		}
		out[fields[0]] = length
	}
	if err := sc.Err(); err != nil {
		return nil, errors.E(err, source)
	}
	return out, nil
}
