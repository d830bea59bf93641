package pseudoalign

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// OpenReads wraps r with a gzip decompressor when name ends in ".gz", per
// the read FASTQ file format's auto-detection rule.
func OpenReads(r io.Reader, name string) (io.Reader, error) {
	if strings.HasSuffix(name, ".gz") {
		return gzip.NewReader(r)
	}
	return r, nil
}

// WriteAbundance serializes abundance rows as
// "transcript_id\tcount\teffective_length\ttpm".
func WriteAbundance(w io.Writer, rows []AbundanceRow) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "transcript_id\tcount\teffective_length\ttpm\n"); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintf(bw, "%s\t%s\t%d\t%s\n",
			row.TranscriptID,
			strconv.FormatFloat(row.Count, 'g', -1, 64),
			row.EffectiveLength,
			strconv.FormatFloat(row.TPM, 'g', -1, 64),
		); err != nil {
			return err
		}
	}
	return bw.Flush()
}
