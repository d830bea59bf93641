// Package scrna implements the sparse single-cell reducer: per-cell and
// per-gene QC metrics plus low-dimensional cell coordinates via truncated
// SVD, from a sparse (gene_idx, cell_idx, count) triplet stream.
package scrna

import "github.com/grailbio/rnaseq/triplet"

// CellQC holds per-cell quality-control metrics.
type CellQC struct {
	TotalCount    float64
	GenesDetected int
	Sparsity      float64
}

// GeneQC holds per-gene quality-control metrics.
type GeneQC struct {
	TotalCount    float64
	CellsDetected int
}

// GlobalQC holds dataset-wide quality-control metrics.
type GlobalQC struct {
	Sparsity   float64
	TotalCount float64
	EntryCount int
	NumGenes   int
	NumCells   int
}

// QC computes per-cell, per-gene, and global QC metrics from a sparse
// triplet stream, per the metric definitions of the single-cell reducer
// component.
func QC(s *triplet.SparseStream) (cells []CellQC, genes []GeneQC, global GlobalQC) {
	cells = make([]CellQC, s.NumCells)
	genes = make([]GeneQC, s.NumGenes)

	var totalCount float64
	for _, e := range s.Entries {
		cells[e.CellIdx].TotalCount += e.Count
		cells[e.CellIdx].GenesDetected++
		genes[e.GeneIdx].TotalCount += e.Count
		genes[e.GeneIdx].CellsDetected++
		totalCount += e.Count
	}
	totalEntries := float64(s.NumGenes) * float64(s.NumCells)
	for c := range cells {
		if totalEntries > 0 {
			cells[c].Sparsity = 1 - float64(cells[c].GenesDetected)/float64(s.NumGenes)
		}
	}

	global = GlobalQC{
		TotalCount: totalCount,
		EntryCount: len(s.Entries),
		NumGenes:   s.NumGenes,
		NumCells:   s.NumCells,
	}
	if totalEntries > 0 {
		global.Sparsity = 1 - float64(len(s.Entries))/totalEntries
	}
	return cells, genes, global
}
