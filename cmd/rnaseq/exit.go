package main

import (
	"os"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// exitCode classifies err into the exit code taxonomy: 2 for an
// input-format error, 3 for a semantic/algorithmic failure, 1 for
// anything else (I/O, internal).
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(errors.Invalid, err):
		return 2
	case errors.Is(errors.Precondition, err):
		return 3
	default:
		return 1
	}
}

// die logs err and exits with the code its Kind maps to.
func die(err error) {
	if err == nil {
		return
	}
	log.Error.Printf("rnaseq: %v", err)
	os.Exit(exitCode(err))
}
