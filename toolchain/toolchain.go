// Package toolchain defines the contract between the compiler adapter and a
// concrete compiler, and provides the Risor implementation of it.
package toolchain

import (
	"context"
	"io"
	"path"
	"strings"

	"golang.org/x/tools/txtar"
)

// SourceExt is the extension of Risor source files.
const SourceExt = ".risor"

// SourceUnit is one piece of source text handed to the toolchain.
type SourceUnit struct {
	// Name is the unit name, which is the file name without its extension.
	Name string
	// Filename is the virtual file name used in diagnostics.
	Filename string
	// Source is the source text.
	Source string
}

// Options control a compilation.
type Options struct {
	// Lint makes warnings visible.
	Lint bool
	// StripDebug omits debug metadata, such as embedded source text, from
	// the artifacts.
	StripDebug bool
	// Deprecation reports uses of deprecated names.
	Deprecation bool
	// SourcePath lists directories searched for the source of imported
	// modules, separated by the OS path list separator.
	SourcePath string
	// ModulePath lists directories that hold dependencies resolved at load
	// time. The toolchain only passes it through.
	ModulePath string
}

// Task is one compilation request.
type Task struct {
	Units   []SourceUnit
	Options Options
}

// ArtifactSink receives compiled artifacts. Writes are captured by the sink,
// and reads of artifacts the sink does not hold go to its fallback.
type ArtifactSink interface {
	Create(name string) (io.WriteCloser, error)
	Open(name string) (io.ReadCloser, error)
}

// Toolchain compiles source units into artifacts.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Verdict: the bool result is false when any error diagnostic was reported.
//     A non-nil error means the toolchain itself failed, for example because
//     the sink rejected a write.
//   - Output: artifacts are written to the sink only when the verdict is true.
type Toolchain interface {
	Compile(ctx context.Context, task Task, diag DiagnosticListener, out ArtifactSink) (bool, error)
}

// UnitName derives a unit name from a virtual file name.
func UnitName(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

// SplitSource turns source text into source units. Text in txtar form
// ("-- Name.risor --" headers) yields one unit per file, and any text ahead of
// the first header becomes a unit named after filename. Plain text yields a
// single unit.
func SplitSource(filename, source string) []SourceUnit {
	primary := SourceUnit{
		Name:     UnitName(filename),
		Filename: filename,
		Source:   source,
	}
	archive := txtar.Parse([]byte(source))
	if len(archive.Files) == 0 {
		return []SourceUnit{primary}
	}
	var units []SourceUnit
	if strings.TrimSpace(string(archive.Comment)) != "" {
		primary.Source = string(archive.Comment)
		units = append(units, primary)
	}
	for _, f := range archive.Files {
		units = append(units, SourceUnit{
			Name:     UnitName(f.Name),
			Filename: f.Name,
			Source:   string(f.Data),
		})
	}
	return units
}
