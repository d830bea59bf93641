package diffexpr

import (
	"bufio"
	"fmt"
	"io"
)

// Stats reports diagnostics about one Differential call.
type Stats struct {
	GenesTotal       int
	GenesTested      int
	ControlSamples   int
	TreatmentSamples int
	Alpha            float64
	Warnings         []string
}

func (s *Stats) warnf(format string, args ...interface{}) {
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}

// WriteText writes a human-readable diagnostic report.
func (s *Stats) WriteText(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Total genes\t%d\n", s.GenesTotal)
	fmt.Fprintf(bw, "Genes tested\t%d\n", s.GenesTested)
	fmt.Fprintf(bw, "Control samples\t%d\n", s.ControlSamples)
	fmt.Fprintf(bw, "Treatment samples\t%d\n", s.TreatmentSamples)
	fmt.Fprintf(bw, "Alpha\t%v\n", s.Alpha)
	for _, warning := range s.Warnings {
		fmt.Fprintf(bw, "warning: %s\n", warning)
	}
	return bw.Flush()
}
