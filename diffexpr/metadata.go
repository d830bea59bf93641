package diffexpr

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
)

// SampleInfo is one row of sample metadata.
type SampleInfo struct {
	Group     string
	Batch     string
	Replicate string
}

// ReadMetadata parses a "sample_id\tgroup[\tbatch][\treplicate]" table.
func ReadMetadata(r io.Reader, source string) (map[string]SampleInfo, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, 16<<20)

	out := make(map[string]SampleInfo)
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
			if strings.EqualFold(fields[0], "sample_id") {
				continue
			}
		}
		info := SampleInfo{Group: fields[1]}
		if len(fields) > 2 {
			info.Batch = fields[2]
		}
		if len(fields) > 3 {
			info.Replicate = fields[3]
		}
		if info.Group == "" {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("%s:%d: missing required group for sample %q", source, lineNo, fields[0]))
		}
		if _, dup := out[fields[0]]; dup {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("%s:%d: duplicate sample id %q", source, lineNo, fields[0]))
		}
		out[fields[0]] = info
	}
	if err := sc.Err(); err != nil {
		return nil, errors.E(err, source)
	}
	return out, nil
}
