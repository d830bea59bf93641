package normalize

import "runtime"

// Method identifies a normalization method, per the six methods defined in
// the component design: standard (library-scaled), CPM, TPM, MoR
// (median-of-ratios), TMM (trimmed mean of M-values) and UQ
// (upper-quartile).
type Method string

const (
	Standard Method = "standard"
	CPM      Method = "cpm"
	TPM      Method = "tpm"
	MoR      Method = "mor"
	TMM      Method = "tmm"
	UQ       Method = "uq"
)

// Opts are the configurable parameters of the Normalize operation.
type Opts struct {
	// MinCount drops any sample column whose library size (column sum) is
	// below this threshold before size factors are computed.
	MinCount float64
	// Pseudocount is added to the count terms in the denominators of TMM's
	// per-gene weighted-variance estimate. It is not added to counts before
	// any log transform: MoR and TMM skip zero counts instead.
	Pseudocount float64
	// ReferenceSample overrides TMM's automatic reference-sample choice.
	ReferenceSample string
	// TMMTrimM and TMMTrimA are the fraction of genes trimmed from the
	// extremes of the M-value and A-value distributions during TMM.
	TMMTrimM float64
	TMMTrimA float64
	// GeneLengths supplies per-gene effective lengths, required by TPM.
	GeneLengths map[string]float64
	// Threads bounds the number of goroutines used for per-column and
	// per-row work. A value <= 0 means runtime.NumCPU().
	Threads int
}

// DefaultOpts holds the default parameter values.
var DefaultOpts = Opts{
	MinCount:    0,
	Pseudocount: 1,
	TMMTrimM:    0.3,
	TMMTrimA:    0.05,
	Threads:     runtime.NumCPU(),
}

func (o Opts) withDefaults() Opts {
	if o.Pseudocount == 0 {
		o.Pseudocount = DefaultOpts.Pseudocount
	}
	if o.TMMTrimM == 0 {
		o.TMMTrimM = DefaultOpts.TMMTrimM
	}
	if o.TMMTrimA == 0 {
		o.TMMTrimA = DefaultOpts.TMMTrimA
	}
	if o.Threads <= 0 {
		o.Threads = runtime.NumCPU()
	}
	return o
}

// sizeFactorFloor is the minimum size factor magnitude; factors computed
// smaller than this are clamped to it and a warning is emitted.
const sizeFactorFloor = 1e-12

// minSurvivingGenesMoR is the minimum number of genes that must survive
// the MoR ratio filter for a sample; below this, the implementation falls
// back to library-scaled size factors for that sample.
const minSurvivingGenesMoR = 3
