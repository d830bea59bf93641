// Package kmerindex builds a canonical-k-mer -> transcript-set index from a
// transcript FASTA, for use by the pseudo-alignment engine.
package kmerindex

import (
	"github.com/grailbio/base/simd"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/grailbio/rnaseq/biosimd"
)

const invalidKmerBits = uint8(255)

var (
	asciiToKmerMap                  [256]uint8
	asciiToReverseComplementKmerMap [256]uint8
)

func init() {
	for i := range asciiToKmerMap {
		asciiToKmerMap[i] = invalidKmerBits
		asciiToReverseComplementKmerMap[i] = invalidKmerBits
	}
	asciiToKmerMap['A'] = 0
	asciiToKmerMap['a'] = 0
	asciiToKmerMap['C'] = 1
	asciiToKmerMap['c'] = 1
	asciiToKmerMap['G'] = 2
	asciiToKmerMap['g'] = 2
	asciiToKmerMap['T'] = 3
	asciiToKmerMap['t'] = 3

	asciiToReverseComplementKmerMap['A'] = 3
	asciiToReverseComplementKmerMap['a'] = 3
	asciiToReverseComplementKmerMap['C'] = 2
	asciiToReverseComplementKmerMap['c'] = 2
	asciiToReverseComplementKmerMap['G'] = 1
	asciiToReverseComplementKmerMap['g'] = 1
	asciiToReverseComplementKmerMap['T'] = 0
	asciiToReverseComplementKmerMap['t'] = 0
}

// Kmer is a compact 2-bit-per-base encoding of a nucleotide word, up to 32
// bases long.
type Kmer uint64

// invalidKmer is a sentinel value: no valid k-mer ever equals it, since a
// real k-mer's unused high bits are always masked to zero.
const invalidKmer = Kmer(0xffffffffffffffff)

// Canonical returns the lexicographically smaller of a k-mer and its
// reverse complement, per the canonicalization rule shared by index build
// and read assignment.
func Canonical(forward, reverseComplement Kmer) Kmer {
	if forward < reverseComplement {
		return forward
	}
	return reverseComplement
}

type kmerAtPos struct {
	pos                        int
	forward, reverseComplement Kmer
}

func (k kmerAtPos) canonical() Kmer { return Canonical(k.forward, k.reverseComplement) }

// kmerizer incrementally scans a sequence for overlapping k-mers, using a
// fast path that shifts in one base at a time when possible and falling
// back to a full re-encode after a run containing an ambiguous (non-ACGT)
// base.
type kmerizer struct {
	kmerLength int
	tmpSeq     []byte
	mask       Kmer // low 2*kmerLength bits set

	seq string
	si  int
	cur kmerAtPos
}

func newKmerizer(kmerLength int) *kmerizer {
	return &kmerizer{
		kmerLength: kmerLength,
		mask:       ^(Kmer(0xffffffffffffffff) << Kmer(kmerLength*2)),
	}
}

func asciiToKmer(seq string) Kmer {
	var k Kmer
	for _, ch := range []byte(seq) {
		b := asciiToKmerMap[ch]
		if b == invalidKmerBits {
			return invalidKmer
		}
		k = (k << 2) | Kmer(b)
	}
	return k
}

func nextAmbiguousPosition(seq string, si int) int {
	for i := si; i < len(seq); i++ {
		if asciiToKmerMap[seq[i]] == invalidKmerBits {
			return i
		}
	}
	return len(seq)
}

func (k *kmerizer) Reset(seq string) {
	k.seq = seq
	k.si = 0
}

func (k *kmerizer) Scan() bool {
	if k.si > 0 && k.si+k.kmerLength <= len(k.seq) {
		nextCh := k.seq[k.si+k.kmerLength-1]
		if bits := asciiToKmerMap[nextCh]; bits != invalidKmerBits {
			k.cur.pos = k.si
			k.cur.forward = ((k.cur.forward << 2) | Kmer(bits)) & k.mask
			shift := (Kmer(k.kmerLength) - 1) * 2
			k.cur.reverseComplement = (k.cur.reverseComplement >> 2) | (Kmer(asciiToReverseComplementKmerMap[nextCh]) << shift)
			k.si++
			return true
		}
	}

	for k.si+k.kmerLength <= len(k.seq) {
		forwardStr := k.seq[k.si : k.si+k.kmerLength]
		forwardKmer := asciiToKmer(forwardStr)
		if forwardKmer == invalidKmer {
			k.si = nextAmbiguousPosition(k.seq, k.si) + 1
			continue
		}
		simd.ResizeUnsafe(&k.tmpSeq, k.kmerLength)
		biosimd.ReverseComp8NoValidate(k.tmpSeq, gunsafe.StringToBytes(forwardStr))
		reverseKmer := asciiToKmer(gunsafe.BytesToString(k.tmpSeq))
		if reverseKmer == invalidKmer {
			panic("reverse complement of a valid forward k-mer must be valid")
		}
		k.cur = kmerAtPos{pos: k.si, forward: forwardKmer, reverseComplement: reverseKmer}
		k.si++
		return true
	}
	return false
}

func (k *kmerizer) Get() kmerAtPos { return k.cur }
