package main

import (
	"context"
	"fmt"
	"io"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/rnaseq/normalize"
	"github.com/grailbio/rnaseq/triplet"
	"v.io/x/lib/cmdline"
)

type normalizeFlags struct {
	input       *string
	method      *string
	output      *string
	stats       *string
	minCount    *float64
	pseudocount *float64
	geneLengths *string
	threads     *int
	chunkSize   *int
}

func newCmdNormalize() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "normalize",
		Short: "Compute per-sample size factors and emit a normalized count matrix",
	}
	flags := normalizeFlags{
		input:       cmd.Flags.String("input", "", "Input count table (gene_id, sample_id, count)"),
		method:      cmd.Flags.String("method", "", "Normalization method: library (or standard)|cpm|tpm|mor|tmm|uq"),
		output:      cmd.Flags.String("output", "", "Output normalized count table"),
		stats:       cmd.Flags.String("stats", "", "Optional stats text output path"),
		minCount:    cmd.Flags.Float64("min-count", 0, "Drop sample columns with library size below this"),
		pseudocount: cmd.Flags.Float64("pseudocount", 1, "Pseudocount used by TMM's weighted variance"),
		geneLengths: cmd.Flags.String("gene-lengths", "", "Gene lengths table, required by --method tpm"),
		threads:     cmd.Flags.Int("threads", 0, "Worker goroutines; 0 means runtime.NumCPU()"),
		chunkSize:   cmd.Flags.Int("chunk-size", 0, "Ingest the input in bounded batches of this many records, persisting each batch's partial counts before merging; 0 disables chunking"),
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		die(runNormalize(vcontext.Background(), flags))
		return nil
	})
	return cmd
}

func runNormalize(ctx context.Context, flags normalizeFlags) error {
	if *flags.input == "" || *flags.output == "" || *flags.method == "" {
		return errors.E(errors.Invalid, "normalize: --input, --method and --output are required")
	}
	method := normalize.Method(*flags.method)
	if method == "library" {
		method = normalize.Standard
	}
	switch method {
	case normalize.Standard, normalize.CPM, normalize.TPM, normalize.MoR, normalize.TMM, normalize.UQ:
	default:
		return errors.E(errors.Invalid, fmt.Sprintf("normalize: unknown --method %q", *flags.method))
	}

	var raw *triplet.Matrix
	if err := withInput(ctx, *flags.input, func(r io.Reader) error {
		var m *triplet.Matrix
		var err error
		if *flags.chunkSize > 0 {
			m, err = scanTripletsChunked(ctx, r, *flags.input, *flags.chunkSize)
		} else {
			m, err = triplet.Scan(r, *flags.input, triplet.Opts{})
		}
		if err != nil {
			return err
		}
		raw = m
		return nil
	}); err != nil {
		return err
	}

	opts := normalize.DefaultOpts
	opts.MinCount = *flags.minCount
	opts.Pseudocount = *flags.pseudocount
	if *flags.threads > 0 {
		opts.Threads = *flags.threads
	}
	if *flags.geneLengths != "" {
		if err := withInput(ctx, *flags.geneLengths, func(r io.Reader) error {
			lengths, err := normalize.ReadGeneLengths(r, *flags.geneLengths)
			if err != nil {
				return err
			}
			opts.GeneLengths = lengths
			return nil
		}); err != nil {
			return err
		}
	}

	result, err := normalize.Normalize(raw, method, opts)
	if err != nil {
		return err
	}

	if err := withOutput(ctx, *flags.output, func(w io.Writer) error {
		return triplet.Write(w, result.Matrix, "gene_id", "sample_id", "count")
	}); err != nil {
		return err
	}

	if *flags.stats != "" {
		if err := withOutput(ctx, *flags.stats, func(w io.Writer) error {
			return result.Stats.WriteText(w)
		}); err != nil {
			return err
		}
	}
	for _, warning := range result.Stats.Warnings {
		logWarning("normalize: %s", warning)
	}
	return nil
}
