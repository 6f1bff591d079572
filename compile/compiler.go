// Package compile runs a toolchain against one in-memory source unit and
// returns the captured artifacts.
package compile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/hashicorp/go-multierror"
	"github.com/risor-io/scripting/artifact"
	"github.com/risor-io/scripting/toolchain"
)

// ErrCompilationFailed is returned when the toolchain reports one or more
// error diagnostics.
var ErrCompilationFailed = errors.New("compilation failed")

// BaselineOptions are passed to the toolchain on every compilation: warnings
// are visible, debug metadata is omitted and deprecations are flagged.
var BaselineOptions = toolchain.Options{
	Lint:        true,
	StripDebug:  true,
	Deprecation: true,
}

// Failure describes a failed compilation. It wraps ErrCompilationFailed, and
// its Diagnostics hold every error diagnostic as a multierror.
type Failure struct {
	Unit        string
	Diagnostics *multierror.Error
}

// Error reports the number of error diagnostics. Callers add the unit name.
func (f *Failure) Error() string {
	n := 0
	if f.Diagnostics != nil {
		n = len(f.Diagnostics.Errors)
	}
	if n == 1 {
		return fmt.Sprintf("%s: 1 error", ErrCompilationFailed)
	}
	return fmt.Sprintf("%s: %d errors", ErrCompilationFailed, n)
}

// Unwrap exposes ErrCompilationFailed and the individual diagnostics.
func (f *Failure) Unwrap() []error {
	errs := []error{ErrCompilationFailed}
	if f.Diagnostics != nil {
		errs = append(errs, f.Diagnostics.Errors...)
	}
	return errs
}

// Request describes one compilation.
type Request struct {
	// Filename is the virtual file name of the source.
	Filename string
	// Source is the source text.
	Source string
	// Diagnostics receives one line per diagnostic. It may be nil.
	Diagnostics io.Writer
	// SourcePath optionally lists directories holding imported sources.
	SourcePath string
	// ModulePath optionally lists directories holding precompiled artifacts
	// and modules resolved at load time.
	ModulePath string
}

// Compiler invokes a toolchain on in-memory sources. The toolchain handle is
// the only state shared between calls, so a Compiler is safe for concurrent
// use as long as its toolchain is.
type Compiler struct {
	tc toolchain.Toolchain
}

// New returns a Compiler that uses the given toolchain.
func New(tc toolchain.Toolchain) *Compiler {
	return &Compiler{tc: tc}
}

// Toolchain returns the toolchain handle.
func (c *Compiler) Toolchain() toolchain.Toolchain {
	return c.tc
}

// Compile compiles the request's source and returns the captured artifacts.
// Every diagnostic is written to the request's Diagnostics writer. When
// compilation fails the returned error is a *Failure and no artifacts are
// returned.
func (c *Compiler) Compile(ctx context.Context, req Request) (*artifact.Map, error) {
	unitName := toolchain.UnitName(req.Filename)
	opts := BaselineOptions
	opts.SourcePath = req.SourcePath
	opts.ModulePath = req.ModulePath
	task := toolchain.Task{
		Units:   toolchain.SplitSource(req.Filename, req.Source),
		Options: opts,
	}

	store := artifact.NewStore(moduleFS(req.ModulePath))
	defer store.Close()

	var diags toolchain.Collector
	ok, err := c.tc.Compile(ctx, task, &diags, store)
	emit(req.Diagnostics, diags.Diagnostics())
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", unitName, err)
	}
	if !ok || diags.HasErrors() {
		var merr *multierror.Error
		for _, d := range diags.Errors() {
			merr = multierror.Append(merr, d)
		}
		return nil, &Failure{Unit: unitName, Diagnostics: merr}
	}
	artifacts := store.Map()
	if err := store.Close(); err != nil {
		return nil, fmt.Errorf("compile %s: %w", unitName, err)
	}
	return artifacts, nil
}

func emit(w io.Writer, diags []toolchain.Diagnostic) {
	if w == nil {
		return
	}
	for _, d := range diags {
		fmt.Fprintln(w, d.String())
	}
}

// moduleFS searches every directory on the module path for precompiled
// artifacts. It is nil when the module path is empty.
func moduleFS(modulePath string) fs.FS {
	if dirs := artifact.ModulePath(modulePath); len(dirs) > 0 {
		return dirs
	}
	return nil
}
