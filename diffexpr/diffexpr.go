package diffexpr

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/rnaseq/triplet"
)

// ResultRow is one gene's differential expression test result.
type ResultRow struct {
	GeneID         string
	MeanCtrl       float64
	MeanTrt        float64
	Log2FoldChange float64
	PValue         float64
	AdjPValue      float64
	Significant    bool
}

// Result is the outcome of a Differential call.
type Result struct {
	Rows  []ResultRow
	Stats Stats
}

// Differential tests, for each gene in normalized, whether its mean count
// differs between the control and treatment groups named in metadata, and
// adjusts the resulting p-values with Benjamini-Hochberg.
func Differential(normalized *triplet.Matrix, metadata map[string]SampleInfo, controlLabel, treatmentLabel string, opts Opts) (*Result, error) {
	if opts.Alpha == 0 {
		opts.Alpha = DefaultOpts.Alpha
	}
	if opts.Threads <= 0 {
		opts.Threads = 1
	}
	if opts.Alpha <= 0 || opts.Alpha >= 1 {
		return nil, errors.E(errors.Precondition, fmt.Sprintf("diffexpr: alpha %v must lie in (0, 1)", opts.Alpha))
	}

	var ctrlCols, trtCols []int
	for c, sample := range normalized.ColKeys {
		info, ok := metadata[sample]
		if !ok {
			continue
		}
		switch info.Group {
		case controlLabel:
			ctrlCols = append(ctrlCols, c)
		case treatmentLabel:
			trtCols = append(trtCols, c)
		}
	}
	if len(ctrlCols) == 0 {
		return nil, errors.E(errors.Precondition, fmt.Sprintf("diffexpr: control group %q is empty", controlLabel))
	}
	if len(trtCols) == 0 {
		return nil, errors.E(errors.Precondition, fmt.Sprintf("diffexpr: treatment group %q is empty", treatmentLabel))
	}

	stats := Stats{
		GenesTotal:       normalized.NumRows(),
		ControlSamples:   len(ctrlCols),
		TreatmentSamples: len(trtCols),
		Alpha:            opts.Alpha,
	}

	n := len(ctrlCols) + len(trtCols)
	epsilon := opts.MinCount / float64(n)

	type geneResult struct {
		row ResultRow
		ok  bool
	}
	results := make([]geneResult, normalized.NumRows())

	var wg sync.WaitGroup
	work := make(chan int, normalized.NumRows())
	for r := range normalized.RowKeys {
		work <- r
	}
	close(work)
	for i := 0; i < opts.Threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range work {
				results[r] = testGene(normalized, r, ctrlCols, trtCols, epsilon, opts.MinCount)
			}
		}()
	}
	wg.Wait()

	var rows []ResultRow
	var pvalues []float64
	for _, gr := range results {
		if !gr.ok {
			continue
		}
		rows = append(rows, gr.row)
		pvalues = append(pvalues, gr.row.PValue)
	}
	stats.GenesTested = len(rows)
	if stats.GenesTested == 0 {
		return nil, errors.E(errors.Precondition, "diffexpr: no genes survived the min_count filter")
	}

	adjusted := BenjaminiHochberg(pvalues)
	for i := range rows {
		rows[i].AdjPValue = adjusted[i]
		rows[i].Significant = adjusted[i] <= opts.Alpha
	}

	return &Result{Rows: rows, Stats: stats}, nil
}

func testGene(m *triplet.Matrix, r int, ctrlCols, trtCols []int, epsilon, minCount float64) (gr struct {
	row ResultRow
	ok  bool
}) {
	meanCtrl, varCtrl := meanVariance(m, r, ctrlCols)
	meanTrt, varTrt := meanVariance(m, r, trtCols)
	nc, nt := float64(len(ctrlCols)), float64(len(trtCols))

	overallMean := (nc*meanCtrl + nt*meanTrt) / (nc + nt)
	if overallMean < minCount {
		return
	}

	var pooledVar float64
	if nc+nt-2 > 0 {
		pooledVar = ((nc-1)*varCtrl + (nt-1)*varTrt) / (nc + nt - 2)
	}
	pooledMean := overallMean
	var alpha float64
	if pooledMean > 0 {
		alpha = (pooledVar - pooledMean) / (pooledMean * pooledMean)
	}
	if alpha < 0 {
		alpha = 0
	}

	varMeanCtrl := (meanCtrl + alpha*meanCtrl*meanCtrl) / nc
	varMeanTrt := (meanTrt + alpha*meanTrt*meanTrt) / nt
	denom := math.Sqrt(varMeanCtrl + varMeanTrt)

	diff := meanTrt - meanCtrl
	var p float64
	if denom == 0 {
		if diff == 0 {
			p = 1
		} else {
			p = 0
		}
	} else {
		z := diff / denom
		p = 2 * (1 - normalCDF(math.Abs(z)))
	}

	log2fc := math.Log2((meanTrt + epsilon) / (meanCtrl + epsilon))

	gr.row = ResultRow{
		GeneID:         m.RowKeys[r],
		MeanCtrl:       meanCtrl,
		MeanTrt:        meanTrt,
		Log2FoldChange: log2fc,
		PValue:         p,
	}
	gr.ok = true
	return
}

func meanVariance(m *triplet.Matrix, r int, cols []int) (mean, variance float64) {
	n := float64(len(cols))
	var sum float64
	for _, c := range cols {
		sum += m.Values[r][c]
	}
	mean = sum / n
	if len(cols) < 2 {
		return mean, 0
	}
	var ss float64
	for _, c := range cols {
		d := m.Values[r][c] - mean
		ss += d * d
	}
	return mean, ss / (n - 1)
}

// normalCDF returns the standard normal cumulative distribution function
// at x, via the error function.
func normalCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// SortByGeneID orders rows lexicographically by gene id, a convenience for
// callers that want deterministic output ordering.
func SortByGeneID(rows []ResultRow) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].GeneID < rows[j].GeneID })
}
