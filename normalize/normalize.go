// Package normalize implements the count normalization engine: it turns a
// raw gene x sample count matrix into a normalized expression matrix using
// one of six library-size and composition-bias correction methods.
package normalize

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/rnaseq/triplet"
)

// Result is the outcome of a Normalize call.
type Result struct {
	Matrix      *triplet.Matrix
	SizeFactors map[string]float64
	Stats       Stats
}

// Normalize computes size factors for raw using method and opts, and
// returns the normalized matrix N[g,s] = raw[g,s] / SizeFactors[s].
//
// Samples whose library size is below opts.MinCount are dropped before
// size factors are computed. A matrix with zero surviving samples, zero
// genes, or any negative count is a fatal (errors.Invalid) error.
func Normalize(raw *triplet.Matrix, method Method, opts Opts) (*Result, error) {
	opts = opts.withDefaults()
	if raw.NumRows() == 0 {
		return nil, errors.E(errors.Invalid, "normalize: input matrix has no genes")
	}
	if raw.NumCols() == 0 {
		return nil, errors.E(errors.Invalid, "normalize: input matrix has no samples")
	}
	for r := range raw.RowKeys {
		for c := range raw.ColKeys {
			if v := raw.Values[r][c]; v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.E(errors.Invalid, fmt.Sprintf("normalize: negative or non-finite count %v at (%s, %s)", v, raw.RowKeys[r], raw.ColKeys[c]))
			}
		}
	}

	stats := Stats{Method: method, Genes: raw.NumRows()}
	m, dropped := dropLowCountSamples(raw, opts.MinCount)
	stats.DroppedCols = dropped
	stats.Samples = m.NumCols()
	if m.NumCols() == 0 {
		return nil, errors.E(errors.Invalid, "normalize: every sample was dropped by min_count")
	}
	for r := range m.RowKeys {
		for c := range m.ColKeys {
			if m.Values[r][c] == 0 {
				stats.ZeroCounts++
			}
		}
	}

	var sizeFactors map[string]float64
	var err error
	switch method {
	case Standard:
		sizeFactors = standardFactors(m)
	case CPM:
		sizeFactors = cpmFactors(m)
	case TPM:
		sizeFactors, err = tpmFactors(m, opts)
	case MoR:
		sizeFactors = morFactors(m, &stats)
	case TMM:
		sizeFactors, err = tmmFactors(m, opts, &stats)
	case UQ:
		sizeFactors = uqFactors(m)
	default:
		return nil, errors.E(errors.Invalid, fmt.Sprintf("normalize: unknown method %q", method))
	}
	if err != nil {
		return nil, err
	}

	for s, sf := range sizeFactors {
		if math.Abs(sf) < sizeFactorFloor {
			sizeFactors[s] = sizeFactorFloor
			stats.ClampedCount++
			stats.warnf("size factor for sample %s clamped from %v to %v", s, sf, sizeFactorFloor)
			log.Error.Printf("normalize: size factor for sample %s clamped to floor %v", s, sizeFactorFloor)
		}
	}

	var tpmLengths map[string]float64
	if method == TPM {
		tpmLengths = opts.GeneLengths
	}
	out := divideByFactor(m, sizeFactors, tpmLengths, opts)
	stats.SizeFactors = sizeFactors
	return &Result{Matrix: out, SizeFactors: sizeFactors, Stats: stats}, nil
}

func dropLowCountSamples(m *triplet.Matrix, minCount float64) (*triplet.Matrix, []string) {
	if minCount <= 0 {
		return m, nil
	}
	var keepCols []string
	var dropped []string
	for c, col := range m.ColKeys {
		if m.ColumnSum(c) >= minCount {
			keepCols = append(keepCols, col)
		} else {
			dropped = append(dropped, col)
		}
	}
	if len(dropped) == 0 {
		return m, nil
	}
	out := triplet.NewMatrix(append([]string(nil), m.RowKeys...), keepCols)
	for r := range m.RowKeys {
		oc := 0
		for c := range m.ColKeys {
			if _, ok := out.ColOf(m.ColKeys[c]); !ok {
				continue
			}
			out.Values[r][oc] = m.Values[r][c]
			oc++
		}
	}
	return out, dropped
}

// divideByFactor builds the normalized matrix. For TPM, lengths is
// non-nil and the gene-length-adjusted ratio is divided by the size
// factor rather than the raw count, per the TPM formula.
func divideByFactor(m *triplet.Matrix, sizeFactors map[string]float64, lengths map[string]float64, opts Opts) *triplet.Matrix {
	out := triplet.NewMatrix(append([]string(nil), m.RowKeys...), append([]string(nil), m.ColKeys...))

	var wg sync.WaitGroup
	work := make(chan int, len(m.ColKeys))
	for c := range m.ColKeys {
		work <- c
	}
	close(work)
	for i := 0; i < opts.Threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range work {
				sf := sizeFactors[m.ColKeys[c]]
				if lengths != nil {
					for r, gene := range m.RowKeys {
						length := lengths[gene]
						if length <= 0 {
							length = 1
						}
						out.Values[r][c] = (m.Values[r][c] / length) / sf
					}
					continue
				}
				for r := range m.RowKeys {
					out.Values[r][c] = m.Values[r][c] / sf
				}
			}
		}()
	}
	wg.Wait()
	return out
}

// sortedSampleKeys returns m's column keys in sorted order, used wherever
// a method needs deterministic sample iteration order.
func sortedSampleKeys(m *triplet.Matrix) []string {
	out := append([]string(nil), m.ColKeys...)
	sort.Strings(out)
	return out
}
