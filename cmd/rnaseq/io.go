package main

import (
	"context"
	"io"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
)

// withInput opens path and calls fn with a reader over its contents,
// closing the file afterward regardless of fn's outcome.
func withInput(ctx context.Context, path string, fn func(io.Reader) error) error {
	f, err := file.Open(ctx, path)
	if err != nil {
		return err
	}
	err = fn(f.Reader(ctx))
	if cerr := f.Close(ctx); err == nil {
		err = cerr
	}
	return err
}

// withOutput creates path and calls fn with a writer over it, closing the
// file afterward regardless of fn's outcome.
func withOutput(ctx context.Context, path string, fn func(io.Writer) error) error {
	f, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	err = fn(f.Writer(ctx))
	if cerr := f.Close(ctx); err == nil {
		err = cerr
	}
	return err
}

// logWarning writes a formatted warning to the standard error side
// channel, per the warnings-don't-affect-exit-code propagation rule.
func logWarning(format string, args ...interface{}) {
	log.Error.Printf(format, args...)
}
