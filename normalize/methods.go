package normalize

import (
	"fmt"
	"math"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/rnaseq/triplet"
)

// standardFactors implements library-scaled normalization: SF[s] = L[s],
// so N[g,s] = X[g,s] / L[s].
func standardFactors(m *triplet.Matrix) map[string]float64 {
	out := make(map[string]float64, m.NumCols())
	for c, col := range m.ColKeys {
		out[col] = m.ColumnSum(c)
	}
	return out
}

// cpmFactors implements counts-per-million: SF[s] = L[s] / 1e6, so
// N[g,s] = 1e6 * X[g,s] / L[s].
func cpmFactors(m *triplet.Matrix) map[string]float64 {
	out := make(map[string]float64, m.NumCols())
	for c, col := range m.ColKeys {
		out[col] = m.ColumnSum(c) / 1e6
	}
	return out
}

// tpmFactors implements transcripts-per-million. For each sample s,
// R[g,s] = X[g,s] / length[g]; the reported size factor is
// SF[s] = (sum_g R[g,s]) / 1e6, so that the caller's N[g,s] = R[g,s] /
// SF[s] equals the standard TPM value.
func tpmFactors(m *triplet.Matrix, opts Opts) (map[string]float64, error) {
	if len(opts.GeneLengths) == 0 {
		return nil, errors.E(errors.Invalid, "normalize: TPM requires gene lengths")
	}
	for _, gene := range m.RowKeys {
		length, ok := opts.GeneLengths[gene]
		if !ok || length <= 0 {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("normalize: missing or non-positive gene length for %q", gene))
		}
	}
	out := make(map[string]float64, m.NumCols())
	for c, col := range m.ColKeys {
		var sumR float64
		for r, gene := range m.RowKeys {
			sumR += m.Values[r][c] / opts.GeneLengths[gene]
		}
		out[col] = sumR / 1e6
	}
	return out, nil
}

// morFactors implements the median-of-ratios method (DESeq-style).
//
// For each gene g, gm[g] is the geometric mean of X[g,s] across samples
// where X[g,s] > 0 (samples with zero count for g are skipped rather
// than zeroing the whole gene). For each sample s, SF[s] is the median,
// over genes with X[g,s] > 0 and gm[g] > 0, of X[g,s] / gm[g]. If fewer
// than minSurvivingGenesMoR genes survive for a sample, that sample's
// factor falls back to its library-scaled size with a warning.
func morFactors(m *triplet.Matrix, stats *Stats) map[string]float64 {
	gm := make([]float64, m.NumRows())
	for r := range m.RowKeys {
		var sumLog float64
		var n int
		for c := range m.ColKeys {
			if v := m.Values[r][c]; v > 0 {
				sumLog += math.Log(v)
				n++
			}
		}
		if n > 0 {
			gm[r] = math.Exp(sumLog / float64(n))
		}
	}

	libSizes := standardFactors(m)
	out := make(map[string]float64, m.NumCols())
	for c, col := range m.ColKeys {
		var ratios []float64
		for r := range m.RowKeys {
			if gm[r] <= 0 {
				continue
			}
			if v := m.Values[r][c]; v > 0 {
				ratios = append(ratios, v/gm[r])
			}
		}
		if len(ratios) < minSurvivingGenesMoR {
			stats.warnf("sample %s: only %d genes survived the MoR ratio filter, falling back to library-scaled size factor", col, len(ratios))
			out[col] = libSizes[col]
			continue
		}
		out[col] = median(ratios)
	}
	return out
}

// uqFactors implements upper-quartile normalization: SF[s] = q75[s] /
// mean(q75), where q75[s] is the 75th percentile of s's non-zero counts.
func uqFactors(m *triplet.Matrix) map[string]float64 {
	q := make(map[string]float64, m.NumCols())
	var sum float64
	for c, col := range m.ColKeys {
		var nonzero []float64
		for r := range m.RowKeys {
			if v := m.Values[r][c]; v > 0 {
				nonzero = append(nonzero, v)
			}
		}
		p := percentile(nonzero, 0.75)
		q[col] = p
		sum += p
	}
	mean := sum / float64(len(m.ColKeys))
	out := make(map[string]float64, m.NumCols())
	for _, col := range m.ColKeys {
		if mean == 0 {
			out[col] = 1
			continue
		}
		out[col] = q[col] / mean
	}
	return out
}

// tmmFactors implements trimmed mean of M-values (Robinson & Oshlack).
func tmmFactors(m *triplet.Matrix, opts Opts, stats *Stats) (map[string]float64, error) {
	libSizes := standardFactors(m)
	ref := opts.ReferenceSample
	if ref == "" {
		ref = chooseReference(m, libSizes)
	} else if _, ok := m.ColOf(ref); !ok {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("normalize: reference sample %q not present", ref))
	}
	stats.Reference = ref
	refCol, _ := m.ColOf(ref)
	refLib := libSizes[ref]

	out := make(map[string]float64, m.NumCols())
	out[ref] = 1
	for c, col := range m.ColKeys {
		if col == ref {
			continue
		}
		colLib := libSizes[col]
		type pair struct {
			m, a, w float64
		}
		var pairs []pair
		for r := range m.RowKeys {
			x := m.Values[r][c]
			y := m.Values[r][refCol]
			if x <= 0 || y <= 0 {
				continue
			}
			logX := math.Log2(x / colLib)
			logY := math.Log2(y / refLib)
			mv := logX - logY
			av := 0.5 * (logX + logY)
			variance := (colLib-x)/(colLib*x+opts.Pseudocount) + (refLib-y)/(refLib*y+opts.Pseudocount)
			weight := 0.0
			if variance > 0 {
				weight = 1 / variance
			}
			pairs = append(pairs, pair{mv, av, weight})
		}
		if len(pairs) == 0 {
			stats.warnf("sample %s: no genes shared with reference %s, falling back to library-scaled size factor", col, ref)
			out[col] = colLib
			continue
		}
		trimmed := trimByMAndA(pairs, opts.TMMTrimM, opts.TMMTrimA)
		if len(trimmed) == 0 {
			trimmed = pairs
		}
		var wSum, wmSum float64
		for _, p := range trimmed {
			wSum += p.w
			wmSum += p.w * p.m
		}
		if wSum == 0 {
			out[col] = colLib
			continue
		}
		out[col] = math.Exp2(wmSum / wSum)
	}
	return out, nil
}

func chooseReference(m *triplet.Matrix, libSizes map[string]float64) string {
	var mean float64
	for _, v := range libSizes {
		mean += v
	}
	mean /= float64(len(libSizes))
	best := ""
	bestDist := math.Inf(1)
	for _, col := range sortedSampleKeys(m) {
		d := math.Abs(libSizes[col] - mean)
		if d < bestDist {
			bestDist = d
			best = col
		}
	}
	return best
}

type mawPair = struct {
	m, a, w float64
}

func trimByMAndA(pairs []mawPair, trimM, trimA float64) []mawPair {
	n := len(pairs)
	keepM := trimRanks(n, trimM)
	keepA := trimRanks(n, trimA)

	byM := append([]int(nil), indices(n)...)
	sort.Slice(byM, func(i, j int) bool { return pairs[byM[i]].m < pairs[byM[j]].m })
	mRankOf := make([]bool, n)
	for _, idx := range byM[keepM.lo:keepM.hi] {
		mRankOf[idx] = true
	}

	byA := append([]int(nil), indices(n)...)
	sort.Slice(byA, func(i, j int) bool { return pairs[byA[i]].a < pairs[byA[j]].a })
	aRankOf := make([]bool, n)
	for _, idx := range byA[keepA.lo:keepA.hi] {
		aRankOf[idx] = true
	}

	var out []mawPair
	for i := 0; i < n; i++ {
		if mRankOf[i] && aRankOf[i] {
			out = append(out, pairs[i])
		}
	}
	return out
}

type rankRange struct{ lo, hi int }

func trimRanks(n int, trimFrac float64) rankRange {
	drop := int(math.Round(float64(n) * trimFrac / 2))
	lo, hi := drop, n-drop
	if lo > hi {
		lo, hi = 0, n
	}
	return rankRange{lo, hi}
}

func indices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func median(xs []float64) float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// percentile returns the p-th percentile (0 <= p <= 1) of xs using linear
// interpolation between closest ranks.
func percentile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
