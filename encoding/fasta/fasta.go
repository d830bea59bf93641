// Package fasta contains code for parsing transcript FASTA files used as
// input to the k-mer index build. FASTA files consist of a number of named
// sequences that may be interrupted by newlines. For example:
//
// >transcript1
// ACGTAC
// GAGGAC
// GCG
// >transcript2
// ACGT
// ACGT
//
// Sequence names (transcript ids) are defined to be the stretch of
// characters excluding spaces immediately after '>'. Any text appearing
// after a space is ignored.
package fasta

import (
	"bufio"
	"io"
	"strings"

	"github.com/grailbio/base/unsafe"
	"github.com/grailbio/rnaseq/biosimd"
	"github.com/pkg/errors"
)

const (
	mib            = 1024 * 1024
	bufferInitSize = 300 * mib
)

// Fasta represents parsed FASTA data, a set of named transcript sequences.
type Fasta interface {
	// Get returns a substring of the given sequence name at the given
	// coordinates, treated as a 0-based half-open interval [start, end).
	Get(seqName string, start, end uint64) (string, error)

	// Len returns the length of the given sequence.
	Len(seqName string) (uint64, error)

	// SeqNames returns the names of all sequences, in order of appearance.
	SeqNames() []string

	// ForEach calls fn once per sequence, in order of appearance. Iteration
	// stops at the first error returned by fn.
	ForEach(fn func(seqName, seq string) error) error
}

type opts struct {
	Clean bool
}

// Opt is an optional argument to New.
type Opt func(*opts)

// OptClean specifies that returned FASTA sequences should be upper-cased
// and have non-ACGTN bytes replaced with N, as described in
// biosimd.CleanASCIISeq*.
func OptClean(o *opts) { o.Clean = true }

func makeOpts(userOpts ...Opt) opts {
	var parsedOpts opts
	for _, userOpt := range userOpts {
		userOpt(&parsedOpts)
	}
	return parsedOpts
}

type fasta struct {
	seqs     map[string]string
	seqNames []string
}

var validBase [256]bool

func init() {
	for _, b := range []byte("ACGTNacgtn") {
		validBase[b] = true
	}
}

// indexInvalidBase returns the offset of the first byte in s outside
// {A,C,G,T,N,a,c,g,t,n}, or -1 if s is entirely valid.
func indexInvalidBase(s string) int {
	for i := 0; i < len(s); i++ {
		if !validBase[s[i]] {
			return i
		}
	}
	return -1
}

// New creates a new Fasta that holds all the FASTA data from the given
// reader in memory.
func New(r io.Reader, userOpts ...Opt) (Fasta, error) {
	parsedOpts := makeOpts(userOpts...)
	f := &fasta{seqs: make(map[string]string)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, bufferInitSize)
	var seqName string
	var seq strings.Builder
	haveSeq := false
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' { // Start a new sequence.
			if haveSeq {
				f.seqs[seqName] = seq.String()
				f.seqNames = append(f.seqNames, seqName)
				seq.Reset()
			}
			seqName = strings.Split(line[1:], " ")[0]
			if seqName == "" {
				return nil, errors.Errorf("malformed FASTA file: empty sequence name")
			}
			haveSeq = true
		} else {
			if !haveSeq {
				return nil, errors.Errorf("malformed FASTA file: sequence data before header")
			}
			seq.WriteString(line)
		}
	}
	if scanner.Err() != nil {
		return nil, errors.Wrap(scanner.Err(), "couldn't read FASTA data")
	}
	if !haveSeq {
		return nil, errors.Errorf("empty FASTA file")
	}
	f.seqs[seqName] = seq.String()
	f.seqNames = append(f.seqNames, seqName)
	for name, s := range f.seqs {
		if i := indexInvalidBase(s); i >= 0 {
			return nil, errors.Errorf("invalid nucleotide character %q in sequence %s at offset %d", s[i], name, i)
		}
	}
	if parsedOpts.Clean {
		for seqName := range f.seqs {
			biosimd.CleanASCIISeqInplace(unsafe.StringToBytes(f.seqs[seqName]))
		}
	}
	return f, nil
}

// Get implements Fasta.Get().
func (f *fasta) Get(seqName string, start, end uint64) (string, error) {
	s, ok := f.seqs[seqName]
	if !ok {
		return "", errors.Errorf("sequence not found: %s", seqName)
	}
	if end <= start {
		return "", errors.Errorf("start must be less than end")
	}
	if end > uint64(len(s)) {
		return "", errors.Errorf("invalid query range %d - %d for sequence %s with length %d",
			start, end, seqName, len(s))
	}
	return s[start:end], nil
}

// Len implements Fasta.Len().
func (f *fasta) Len(seq string) (uint64, error) {
	s, ok := f.seqs[seq]
	if !ok {
		return 0, errors.Errorf("sequence not found: %s", seq)
	}
	return uint64(len(s)), nil
}

// SeqNames implements Fasta.SeqNames().
func (f *fasta) SeqNames() []string {
	return f.seqNames
}

// ForEach implements Fasta.ForEach().
func (f *fasta) ForEach(fn func(seqName, seq string) error) error {
	for _, name := range f.seqNames {
		if err := fn(name, f.seqs[name]); err != nil {
			return err
		}
	}
	return nil
}
