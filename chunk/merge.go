package chunk

import "sort"

// MergeFloatMaps combines per-chunk partial totals (e.g. per-transcript
// pseudo-alignment counts, or per-sample normalization accumulators) into
// one map. Each partial map is summed in sorted key order rather than map
// iteration order, so the result does not depend on chunk or goroutine
// scheduling.
func MergeFloatMaps(partials ...map[string]float64) map[string]float64 {
	out := make(map[string]float64)
	for _, partial := range partials {
		keys := make([]string, 0, len(partial))
		for k := range partial {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out[k] += partial[k]
		}
	}
	return out
}
