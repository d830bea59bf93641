package normalize

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Stats reports diagnostics about one Normalize call.
type Stats struct {
	Method       Method
	Genes        int
	Samples      int
	ZeroCounts   int
	DroppedCols  []string
	Reference    string // TMM reference sample, empty for other methods
	ClampedCount int    // number of size factors clamped to sizeFactorFloor
	SizeFactors  map[string]float64
	Warnings     []string
}

func (s *Stats) warnf(format string, args ...interface{}) {
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}

// WriteText writes the human-readable key/value stats report: Total
// genes, Total samples, Zero counts, and a Size Factors: block listing
// one "sample_id TAB factor" line per sample in sorted order.
func (s *Stats) WriteText(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Total genes\t%d\n", s.Genes)
	fmt.Fprintf(bw, "Total samples\t%d\n", s.Samples)
	fmt.Fprintf(bw, "Zero counts\t%d\n", s.ZeroCounts)
	fmt.Fprintf(bw, "Method\t%s\n", s.Method)
	if s.Reference != "" {
		fmt.Fprintf(bw, "Reference sample\t%s\n", s.Reference)
	}
	if len(s.DroppedCols) > 0 {
		cols := append([]string(nil), s.DroppedCols...)
		sort.Strings(cols)
		fmt.Fprintf(bw, "Dropped samples\t%s\n", strings.Join(cols, ","))
	}
	if s.ClampedCount > 0 {
		fmt.Fprintf(bw, "Clamped size factors\t%d\n", s.ClampedCount)
	}
	if len(s.SizeFactors) > 0 {
		fmt.Fprintln(bw, "Size Factors:")
		samples := make([]string, 0, len(s.SizeFactors))
		for sample := range s.SizeFactors {
			samples = append(samples, sample)
		}
		sort.Strings(samples)
		for _, sample := range samples {
			fmt.Fprintf(bw, "%s\t%v\n", sample, s.SizeFactors[sample])
		}
	}
	for _, warning := range s.Warnings {
		fmt.Fprintf(bw, "Warning\t%s\n", warning)
	}
	return bw.Flush()
}
