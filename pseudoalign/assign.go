package pseudoalign

import (
	"io"
	"sort"
	"sync"

	"github.com/grailbio/rnaseq/encoding/fastq"
	"github.com/grailbio/rnaseq/kmerindex"
)

// readAssignment is the outcome of pseudo-aligning a single read: the
// sorted equivalence class of compatible transcripts, and the fraction
// assigned to each (always 1/len(Transcripts) when non-empty).
type readAssignment struct {
	transcripts []kmerindex.TranscriptID
	fraction    float64
}

// assignRead computes the equivalence class for one read's sequence: the
// intersection of the transcript sets hit by each of its canonical
// k-mers, ignoring k-mers with no hit. If the intersection is empty, it
// falls back to the transcripts appearing in a majority of the read's
// k-mer hits. If that is also empty, the read is unaligned.
func assignRead(idx *kmerindex.Index, seq string) readAssignment {
	var hitSets [][]kmerindex.TranscriptID
	counts := make(map[kmerindex.TranscriptID]int)
	kmerindex.CanonicalKmersOf(seq, idx.K, func(km kmerindex.Kmer) {
		ids, ok := idx.Lookup(km)
		if !ok {
			return
		}
		hitSets = append(hitSets, ids)
		for _, id := range ids {
			counts[id]++
		}
	})
	if len(hitSets) == 0 {
		return readAssignment{}
	}

	class := intersect(hitSets)
	if len(class) == 0 {
		class = majority(counts, len(hitSets))
	}
	if len(class) == 0 {
		return readAssignment{}
	}
	sort.Slice(class, func(i, j int) bool { return class[i] < class[j] })
	return readAssignment{transcripts: class, fraction: 1 / float64(len(class))}
}

// intersect returns the intersection of a list of transcript-id sets, as
// produced by kmerindex.Index.Lookup: a transcript survives only if it
// appears in every set (a k-mer's set counts once even if a transcript
// happens to repeat within it).
func intersect(sets [][]kmerindex.TranscriptID) []kmerindex.TranscriptID {
	if len(sets) == 0 {
		return nil
	}
	counts := make(map[kmerindex.TranscriptID]int)
	for _, set := range sets {
		seen := make(map[kmerindex.TranscriptID]bool, len(set))
		for _, id := range set {
			if !seen[id] {
				seen[id] = true
				counts[id]++
			}
		}
	}
	var out []kmerindex.TranscriptID
	for id, c := range counts {
		if c == len(sets) {
			out = append(out, id)
		}
	}
	return out
}

// majority returns the transcripts that appear in strictly more than half
// of totalKmers k-mer hits.
func majority(counts map[kmerindex.TranscriptID]int, totalKmers int) []kmerindex.TranscriptID {
	var out []kmerindex.TranscriptID
	for id, c := range counts {
		if 2*c > totalKmers {
			out = append(out, id)
		}
	}
	return out
}

// Result is the outcome of an Align call.
type Result struct {
	Abundances []AbundanceRow
	Stats      Stats
}

// AbundanceRow is one transcript's abundance estimate.
type AbundanceRow struct {
	TranscriptID    string
	Count           float64
	EffectiveLength int
	TPM             float64
}

// Align reads FASTQ records from r and pseudo-aligns each to idx,
// producing per-transcript abundance estimates.
func Align(idx *kmerindex.Index, r io.Reader, opts Opts) (*Result, error) {
	sc := fastq.NewScanner(r, fastq.Seq)
	var rec fastq.Read
	var seqs []string
	for sc.Scan(&rec) {
		seqs = append(seqs, rec.Seq)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return AlignReads(idx, seqs, opts)
}

// AlignReads pseudo-aligns an already-parsed slice of read sequences
// against idx, producing per-transcript abundance estimates. Counting
// proceeds in two phases: reads are assigned to equivalence classes in
// parallel (a pure function of each read's own sequence), then a single
// serial pass merges the per-read fractional assignments in read order,
// so the final counts are identical regardless of how many threads were
// used. Align and the chunked CLI path both funnel through this, the
// former over a whole FASTQ stream, the latter once per bounded batch of
// reads.
func AlignReads(idx *kmerindex.Index, seqs []string, opts Opts) (*Result, error) {
	opts = opts.withDefaults(idx.K)

	assignments := make([]readAssignment, len(seqs))
	tooShort := make([]bool, len(seqs))

	var wg sync.WaitGroup
	work := make(chan int, len(seqs))
	for i := range seqs {
		work <- i
	}
	close(work)
	for t := 0; t < opts.Threads; t++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				if len(seqs[i]) < opts.MinReadLength {
					tooShort[i] = true
					continue
				}
				assignments[i] = assignRead(idx, seqs[i])
			}
		}()
	}
	wg.Wait()

	counts := make([]float64, len(idx.Transcripts))
	var stats Stats
	stats.ReadsTotal = len(seqs)
	for i := range seqs {
		if tooShort[i] {
			stats.ReadsTooShort++
			continue
		}
		a := assignments[i]
		if len(a.transcripts) == 0 {
			stats.ReadsUnaligned++
			continue
		}
		stats.ReadsAligned++
		for _, id := range a.transcripts {
			counts[id] += a.fraction
		}
	}

	rows := abundance(idx, counts)
	return &Result{Abundances: rows, Stats: stats}, nil
}

// AbundanceFromCounts recomputes TPM-normalized abundance rows from a
// transcript-name-keyed count map, such as the merged output of several
// AlignReads batches. Every transcript in idx appears in the result, with
// a zero count if absent from named.
func AbundanceFromCounts(idx *kmerindex.Index, named map[string]float64) []AbundanceRow {
	byName := make(map[string]int, len(idx.Transcripts))
	for i, t := range idx.Transcripts {
		byName[t.Name] = i
	}
	counts := make([]float64, len(idx.Transcripts))
	for name, c := range named {
		if i, ok := byName[name]; ok {
			counts[i] = c
		}
	}
	return abundance(idx, counts)
}

// abundance converts raw per-transcript counts into length-normalized
// TPM values: rate[t] = count[t] / effective_length[t];
// tpm[t] = 1e6 * rate[t] / sum(rate).
func abundance(idx *kmerindex.Index, counts []float64) []AbundanceRow {
	rates := make([]float64, len(counts))
	var sumRate float64
	for i, c := range counts {
		length := idx.Transcripts[i].Length
		if length <= 0 {
			length = 1
		}
		rates[i] = c / float64(length)
		sumRate += rates[i]
	}
	rows := make([]AbundanceRow, len(counts))
	for i := range counts {
		var tpm float64
		if counts[i] > 0 && sumRate > 0 {
			tpm = 1e6 * rates[i] / sumRate
		}
		rows[i] = AbundanceRow{
			TranscriptID:    idx.Transcripts[i].Name,
			Count:           counts[i],
			EffectiveLength: idx.Transcripts[i].Length,
			TPM:             tpm,
		}
	}
	return rows
}
