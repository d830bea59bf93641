// Package pseudoalign implements the k-mer pseudo-alignment engine: it
// assigns FASTQ reads to transcript equivalence classes using a
// kmerindex.Index and emits per-transcript abundance estimates.
package pseudoalign

import "runtime"

// Opts are the configurable parameters of the Align operation.
type Opts struct {
	// MinReadLength excludes any read shorter than this (must be >= k).
	MinReadLength int
	// Threads bounds the number of goroutines used to assign reads.
	Threads int
}

// DefaultOpts holds the default parameter values. K is supplied
// separately to kmerindex.Build, so MinReadLength here defaults to 0,
// which Align and AlignReads replace with the index's K.
var DefaultOpts = Opts{
	Threads: runtime.NumCPU(),
}

func (o Opts) withDefaults(k int) Opts {
	if o.MinReadLength <= 0 {
		o.MinReadLength = k
	}
	if o.Threads <= 0 {
		o.Threads = runtime.NumCPU()
	}
	return o
}
