package diffexpr

import (
	"bufio"
	"fmt"
	"io"
)

// WriteResults serializes rows in the differential output format: header
// "gene_id\tcontrol_mean\ttreatment_mean\tlog2_fold_change\tp_value\tadjusted_p_value\tsignificant",
// numeric fields in fixed scientific notation with two decimal digits of
// precision (e.g. "1.52e-3"), significant as the literal "true"/"false".
func WriteResults(w io.Writer, rows []ResultRow) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintln(bw, "gene_id\tcontrol_mean\ttreatment_mean\tlog2_fold_change\tp_value\tadjusted_p_value\tsignificant"); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintf(bw, "%s\t%s\t%s\t%s\t%s\t%s\t%t\n",
			row.GeneID,
			formatSci(row.MeanCtrl),
			formatSci(row.MeanTrt),
			formatSci(row.Log2FoldChange),
			formatSci(row.PValue),
			formatSci(row.AdjPValue),
			row.Significant,
		); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// formatSci renders v in fixed scientific notation with two decimal
// digits of mantissa precision, e.g. "1.52e-3". Go's %e always produces a
// signed exponent of at least two digits ("e-03", "e+03"); the unpadded
// form drops a '+' sign and the exponent's leading zeros.
func formatSci(v float64) string {
	s := fmt.Sprintf("%.2e", v)
	return stripExponentPadding(s)
}

// stripExponentPadding turns "1.52e-03" into "1.52e-3" and "1.52e+03"
// into "1.52e3".
func stripExponentPadding(s string) string {
	idx := -1
	for i, c := range s {
		if c == 'e' || c == 'E' {
			idx = i
			break
		}
	}
	if idx < 0 {
		return s
	}
	mantissa, exp := s[:idx], s[idx+1:]
	sign := ""
	switch {
	case len(exp) > 0 && exp[0] == '-':
		sign = "-"
		exp = exp[1:]
	case len(exp) > 0 && exp[0] == '+':
		exp = exp[1:]
	}
	for len(exp) > 1 && exp[0] == '0' {
		exp = exp[1:]
	}
	return mantissa + "e" + sign + exp
}
