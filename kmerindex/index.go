package kmerindex

import (
	"fmt"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/rnaseq/encoding/fasta"
)

// TranscriptID is a dense, zero-based index into an Index's Transcripts
// list.
type TranscriptID int32

// Transcript describes one transcript record from the index's source
// FASTA.
type Transcript struct {
	Name   string
	Length int
}

// Index maps canonical k-mers to the sorted, duplicate-free set of
// transcripts they occur in.
type Index struct {
	K           int
	Transcripts []Transcript
	table       map[Kmer][]TranscriptID
}

const (
	minK = 15
	maxK = 63
)

// Build constructs an Index from every sequence in fa, using a k-mer
// length of k. k must be odd and in [15, 63].
//
// Transcripts shorter than k contribute no k-mers and are skipped with a
// warning; if this leaves the index completely empty, Build fails (the
// index would be useless for every read).
func Build(fa fasta.Fasta, k int) (idx *Index, warnings []string, err error) {
	if k%2 == 0 || k < minK || k > maxK {
		return nil, nil, errors.E(errors.Invalid, fmt.Sprintf("kmerindex: k=%d must be odd and in [%d, %d]", k, minK, maxK))
	}

	idx = &Index{K: k, table: make(map[Kmer][]TranscriptID)}
	seen := make(map[Kmer]map[TranscriptID]bool)

	var tErr error
	err = fa.ForEach(func(seqName, seq string) error {
		id := TranscriptID(len(idx.Transcripts))
		idx.Transcripts = append(idx.Transcripts, Transcript{Name: seqName, Length: len(seq)})
		if len(seq) < k {
			warnings = append(warnings, fmt.Sprintf("kmerindex: transcript %s (length %d) is shorter than k=%d, contributes no k-mers", seqName, len(seq), k))
			return nil
		}
		kz := newKmerizer(k)
		kz.Reset(seq)
		for kz.Scan() {
			km := kz.Get().canonical()
			set, ok := seen[km]
			if !ok {
				set = make(map[TranscriptID]bool, 1)
				seen[km] = set
			}
			set[id] = true
		}
		return tErr
	})
	if err != nil {
		return nil, nil, err
	}

	for km, set := range seen {
		ids := make([]TranscriptID, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		idx.table[km] = ids
	}
	if len(idx.table) == 0 {
		return nil, nil, errors.E(errors.Precondition, fmt.Sprintf("kmerindex: no transcript is at least k=%d bases long", k))
	}
	return idx, warnings, nil
}

// Lookup returns the transcript set for a canonical k-mer, and whether it
// was found.
func (idx *Index) Lookup(canonical Kmer) ([]TranscriptID, bool) {
	ids, ok := idx.table[canonical]
	return ids, ok
}

// CanonicalKmersOf returns the canonical k-mer at every position of seq
// that doesn't contain an ambiguous base, calling fn once per k-mer. It is
// shared by index build (internally) and read assignment.
func CanonicalKmersOf(seq string, k int, fn func(Kmer)) {
	kz := newKmerizer(k)
	kz.Reset(seq)
	for kz.Scan() {
		fn(kz.Get().canonical())
	}
}
