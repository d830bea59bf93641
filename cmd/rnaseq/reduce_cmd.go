package main

import (
	"context"
	"io"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/rnaseq/scrna"
	"github.com/grailbio/rnaseq/triplet"
	"v.io/x/lib/cmdline"
)

type reduceFlags struct {
	input  *string
	output *string
	dim    *int
}

func newCmdReduce() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "reduce",
		Short: "Compute per-cell QC metrics and low-dimensional coordinates for a sparse cell x gene stream",
	}
	flags := reduceFlags{
		input:  cmd.Flags.String("input", "", "Sparse triplet stream (gene_idx, cell_idx, count)"),
		output: cmd.Flags.String("output", "", "Output per-cell coordinate table"),
		dim:    cmd.Flags.Int("dim", 3, "Number of coordinate dimensions"),
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		die(runReduce(vcontext.Background(), flags))
		return nil
	})
	return cmd
}

func runReduce(ctx context.Context, flags reduceFlags) error {
	if *flags.input == "" || *flags.output == "" {
		return errors.E(errors.Invalid, "reduce: --input and --output are required")
	}

	var stream *triplet.SparseStream
	if err := withInput(ctx, *flags.input, func(r io.Reader) error {
		s, err := triplet.ScanSparse(r, *flags.input)
		if err != nil {
			return err
		}
		stream = s
		return nil
	}); err != nil {
		return err
	}

	result, err := scrna.Reduce(stream, *flags.dim)
	if err != nil {
		return err
	}

	if err := withOutput(ctx, *flags.output, func(w io.Writer) error {
		return scrna.WriteCoordinates(w, result.Coordinates)
	}); err != nil {
		return err
	}
	logWarning("reduce: sparsity=%.6g total_count=%.6g cells=%d genes=%d",
		result.Global.Sparsity, result.Global.TotalCount, result.Global.NumCells, result.Global.NumGenes)
	return nil
}
