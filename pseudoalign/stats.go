package pseudoalign

import (
	"bufio"
	"fmt"
	"io"
)

// Stats reports diagnostics about one Align call.
type Stats struct {
	ReadsTotal     int
	ReadsAligned   int
	ReadsUnaligned int
	ReadsTooShort  int
	Warnings       []string
}

// Merge adds the field values of two Stats and returns a new Stats.
func (s Stats) Merge(o Stats) Stats {
	s.ReadsTotal += o.ReadsTotal
	s.ReadsAligned += o.ReadsAligned
	s.ReadsUnaligned += o.ReadsUnaligned
	s.ReadsTooShort += o.ReadsTooShort
	s.Warnings = append(s.Warnings, o.Warnings...)
	return s
}

// WriteText writes a human-readable diagnostic report.
func (s *Stats) WriteText(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Total reads\t%d\n", s.ReadsTotal)
	fmt.Fprintf(bw, "Aligned reads\t%d\n", s.ReadsAligned)
	fmt.Fprintf(bw, "Unaligned reads\t%d\n", s.ReadsUnaligned)
	fmt.Fprintf(bw, "Too-short reads\t%d\n", s.ReadsTooShort)
	for _, warning := range s.Warnings {
		fmt.Fprintf(bw, "warning: %s\n", warning)
	}
	return bw.Flush()
}
