package main

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/rnaseq/chunk"
	"github.com/grailbio/rnaseq/encoding/fasta"
	"github.com/grailbio/rnaseq/encoding/fastq"
	"github.com/grailbio/rnaseq/kmerindex"
	"github.com/grailbio/rnaseq/pseudoalign"
	"v.io/x/lib/cmdline"
)

type pseudoalignFlags struct {
	transcripts *string
	reads       *string
	k           *int
	output      *string
	threads     *int
	chunkSize   *int
}

func newCmdPseudoalign() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "pseudoalign",
		Short: "Pseudo-align FASTQ reads to a transcript FASTA and emit per-transcript abundances",
	}
	flags := pseudoalignFlags{
		transcripts: cmd.Flags.String("transcripts", "", "Transcript FASTA"),
		reads:       cmd.Flags.String("reads", "", "Read FASTQ, optionally gzip-compressed (.gz suffix)"),
		k:           cmd.Flags.Int("k", 31, "K-mer length; must be odd"),
		output:      cmd.Flags.String("output", "", "Output abundance table"),
		threads:     cmd.Flags.Int("threads", 0, "Worker goroutines; 0 means runtime.NumCPU()"),
		chunkSize:   cmd.Flags.Int("chunk-size", 0, "Process reads in bounded batches of this size, persisting each batch's partial counts before merging; 0 disables chunking"),
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		die(runPseudoalign(vcontext.Background(), flags))
		return nil
	})
	return cmd
}

func runPseudoalign(ctx context.Context, flags pseudoalignFlags) error {
	if *flags.transcripts == "" || *flags.reads == "" || *flags.output == "" {
		return errors.E(errors.Invalid, "pseudoalign: --transcripts, --reads and --output are required")
	}

	var idx *kmerindex.Index
	if err := withInput(ctx, *flags.transcripts, func(r io.Reader) error {
		fa, err := fasta.New(r, fasta.OptClean)
		if err != nil {
			return err
		}
		built, warnings, err := kmerindex.Build(fa, *flags.k)
		if err != nil {
			return err
		}
		for _, w := range warnings {
			logWarning("pseudoalign: %s", w)
		}
		idx = built
		return nil
	}); err != nil {
		return err
	}

	opts := pseudoalign.DefaultOpts
	if *flags.threads > 0 {
		opts.Threads = *flags.threads
	}

	var result *pseudoalign.Result
	if err := withInput(ctx, *flags.reads, func(r io.Reader) error {
		reads, err := pseudoalign.OpenReads(r, *flags.reads)
		if err != nil {
			return err
		}
		var res *pseudoalign.Result
		if *flags.chunkSize > 0 {
			res, err = alignChunked(ctx, idx, reads, opts, *flags.chunkSize)
		} else {
			res, err = pseudoalign.Align(idx, reads, opts)
		}
		if err != nil {
			return err
		}
		result = res
		return nil
	}); err != nil {
		return err
	}

	if err := withOutput(ctx, *flags.output, func(w io.Writer) error {
		return pseudoalign.WriteAbundance(w, result.Abundances)
	}); err != nil {
		return err
	}
	for _, warning := range result.Stats.Warnings {
		logWarning("pseudoalign: %s", warning)
	}
	logWarning("pseudoalign: %d reads total, %d aligned, %d unaligned, %d too short",
		result.Stats.ReadsTotal, result.Stats.ReadsAligned, result.Stats.ReadsUnaligned, result.Stats.ReadsTooShort)
	return nil
}

// alignChunked pseudo-aligns r in bounded batches of chunkSize reads: each
// batch is aligned independently and its partial per-transcript counts are
// persisted to a temporary chunk file before the batch's reads are freed,
// per the chunked-processing model. Once every batch is processed, the
// partial counts are read back and merged by transcript name in sorted
// order, and final TPM values are recomputed from the merged totals.
func alignChunked(ctx context.Context, idx *kmerindex.Index, r io.Reader, opts pseudoalign.Opts, chunkSize int) (_ *pseudoalign.Result, retErr error) {
	tmpDir, err := ioutil.TempDir("", "rnaseq-pseudoalign-chunks")
	if err != nil {
		return nil, err
	}
	// On failure the chunk files written so far are kept for inspection.
	defer func() {
		if retErr != nil {
			logWarning("pseudoalign: chunked run failed; chunk files kept in %s", tmpDir)
			return
		}
		os.RemoveAll(tmpDir)
	}()

	sc := fastq.NewScanner(r, fastq.Seq)
	var rec fastq.Read
	var totalStats pseudoalign.Stats
	var chunkPaths []string
	for n := 0; ; n++ {
		batch := make([]string, 0, chunkSize)
		for len(batch) < chunkSize && sc.Scan(&rec) {
			batch = append(batch, rec.Seq)
		}
		if len(batch) == 0 {
			break
		}
		res, err := pseudoalign.AlignReads(idx, batch, opts)
		if err != nil {
			return nil, err
		}
		totalStats = totalStats.Merge(res.Stats)

		partial := make(map[string]float64)
		for _, row := range res.Abundances {
			if row.Count > 0 {
				partial[row.TranscriptID] = row.Count
			}
		}
		path := filepath.Join(tmpDir, fmt.Sprintf("chunk-%d.rio", n))
		cw, err := chunk.NewWriter(ctx, path)
		if err != nil {
			return nil, err
		}
		if err := cw.WriteChunk(partial); err != nil {
			cw.Close(ctx)
			return nil, err
		}
		if err := cw.Close(ctx); err != nil {
			return nil, err
		}
		chunkPaths = append(chunkPaths, path)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	merged := make(map[string]float64)
	for _, path := range chunkPaths {
		cr, err := chunk.NewReader(ctx, path)
		if err != nil {
			return nil, err
		}
		for cr.Scan() {
			var partial map[string]float64
			if err := cr.Decode(&partial); err != nil {
				cr.Close(ctx)
				return nil, err
			}
			merged = chunk.MergeFloatMaps(merged, partial)
		}
		err = cr.Err()
		if cerr := cr.Close(ctx); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, err
		}
	}

	return &pseudoalign.Result{Abundances: pseudoalign.AbundanceFromCounts(idx, merged), Stats: totalStats}, nil
}
