package main

import (
	"context"
	"io"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/rnaseq/diffexpr"
	"github.com/grailbio/rnaseq/triplet"
	"v.io/x/lib/cmdline"
)

type differentialFlags struct {
	input     *string
	metadata  *string
	control   *string
	treatment *string
	output    *string
	stats     *string
	alpha     *float64
	minCount  *float64
	threads   *int
	chunkSize *int
}

func newCmdDifferential() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "differential",
		Short: "Test per-gene differential expression between a control and treatment group",
	}
	flags := differentialFlags{
		input:     cmd.Flags.String("input", "", "Normalized count table (gene_id, sample_id, count)"),
		metadata:  cmd.Flags.String("metadata", "", "Sample metadata table (sample_id, group, ...)"),
		control:   cmd.Flags.String("control", "", "Control group label"),
		treatment: cmd.Flags.String("treatment", "", "Treatment group label"),
		output:    cmd.Flags.String("output", "", "Output differential result table"),
		stats:     cmd.Flags.String("stats", "", "Stats text output path"),
		alpha:     cmd.Flags.Float64("alpha", diffexpr.DefaultOpts.Alpha, "Significance threshold on the adjusted p-value"),
		minCount:  cmd.Flags.Float64("min-count", diffexpr.DefaultOpts.MinCount, "Minimum overall mean count for a gene to be tested"),
		threads:   cmd.Flags.Int("threads", 0, "Worker goroutines; 0 means a single worker"),
		chunkSize: cmd.Flags.Int("chunk-size", 0, "Ingest the input in bounded batches of this many records, persisting each batch's partial counts before merging; 0 disables chunking"),
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		die(runDifferential(vcontext.Background(), flags))
		return nil
	})
	return cmd
}

func runDifferential(ctx context.Context, flags differentialFlags) error {
	if *flags.input == "" || *flags.metadata == "" || *flags.output == "" || *flags.stats == "" {
		return errors.E(errors.Invalid, "differential: --input, --metadata, --output and --stats are required")
	}
	if *flags.control == "" || *flags.treatment == "" {
		return errors.E(errors.Invalid, "differential: --control and --treatment are required")
	}

	var normalized *triplet.Matrix
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
		normalized = m
		return nil
	}); err != nil {
		return err
	}

	var metadata map[string]diffexpr.SampleInfo
	if err := withInput(ctx, *flags.metadata, func(r io.Reader) error {
		md, err := diffexpr.ReadMetadata(r, *flags.metadata)
		if err != nil {
			return err
		}
		metadata = md
		return nil
	}); err != nil {
		return err
	}

	opts := diffexpr.DefaultOpts
	opts.Alpha = *flags.alpha
	opts.MinCount = *flags.minCount
	if *flags.threads > 0 {
		opts.Threads = *flags.threads
	}

	result, err := diffexpr.Differential(normalized, metadata, *flags.control, *flags.treatment, opts)
	if err != nil {
		return err
	}
	diffexpr.SortByGeneID(result.Rows)

	if err := withOutput(ctx, *flags.output, func(w io.Writer) error {
		return diffexpr.WriteResults(w, result.Rows)
	}); err != nil {
		return err
	}

	if err := withOutput(ctx, *flags.stats, func(w io.Writer) error {
		return result.Stats.WriteText(w)
	}); err != nil {
		return err
	}
	for _, warning := range result.Stats.Warnings {
		logWarning("differential: %s", warning)
	}
	return nil
}
