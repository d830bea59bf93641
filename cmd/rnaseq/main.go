// Command rnaseq bundles the count normalization, differential
// expression, k-mer pseudo-alignment and sparse single-cell reduction
// engines behind one CLI, each as its own subcommand.
package main

import (
	"log"

	"github.com/grailbio/base/grail"
	"v.io/x/lib/cmdline"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	cleanup := grail.Init()
	defer cleanup()

	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(&cmdline.Command{
		Name:  "rnaseq",
		Short: "RNA-seq count normalization, differential expression, pseudo-alignment and single-cell reduction",
		Children: []*cmdline.Command{
			newCmdNormalize(),
			newCmdDifferential(),
			newCmdPseudoalign(),
			newCmdReduce(),
		},
	})
}
