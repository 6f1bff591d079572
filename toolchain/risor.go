package toolchain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/risor-io/risor/ast"
	"github.com/risor-io/risor/compiler"
	"github.com/risor-io/risor/parser"
	"github.com/risor-io/risor/token"
)

// Risor compiles Risor source with the Risor parser and compiler. Each unit
// becomes one artifact holding its marshalled bytecode.
type Risor struct {
	// GlobalNames are the names the compiled code may reference as globals.
	GlobalNames []string
	// Deprecated maps deprecated global names to a hint shown in the warning.
	Deprecated map[string]string
}

// NewRisor returns a Risor toolchain that compiles against the given globals.
func NewRisor(globalNames []string) *Risor {
	names := make([]string, len(globalNames))
	copy(names, globalNames)
	sort.Strings(names)
	return &Risor{GlobalNames: names}
}

type compiledUnit struct {
	name string
	data []byte
}

// Compile parses and compiles every unit in the task. Imports that name a
// file on the source path are compiled into additional artifacts. Imports
// that are not on the source path but can be opened from the sink, such as
// precompiled modules on the module path, are copied into the output.
func (r *Risor) Compile(ctx context.Context, task Task, diag DiagnosticListener, out ArtifactSink) (bool, error) {
	if len(task.Units) == 0 {
		diag.Report(Diagnostic{Severity: SeverityError, Message: "no source units"})
		return false, nil
	}
	queue := make([]SourceUnit, len(task.Units))
	copy(queue, task.Units)
	queued := map[string]bool{}
	for _, u := range queue {
		queued[u.Name] = true
	}

	ok := true
	seen := map[string]bool{}
	var results []compiledUnit
	for i := 0; i < len(queue); i++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		u := queue[i]
		if seen[u.Name] {
			diag.Report(Diagnostic{
				Severity: SeverityError,
				Message:  fmt.Sprintf("duplicate unit %q", u.Name),
				Position: &Position{File: u.Filename},
			})
			ok = false
			continue
		}
		seen[u.Name] = true

		program, err := parser.Parse(ctx, u.Source, parser.WithFile(u.Filename))
		if err != nil {
			diag.Report(Diagnostic{
				Severity: SeverityError,
				Message:  err.Error(),
				Position: errorPosition(u.Filename, err),
			})
			ok = false
			continue
		}
		if task.Options.Lint {
			r.lint(u, program, diag)
		}
		if task.Options.Deprecation {
			r.deprecations(u, program, diag)
		}
		data, err := r.compileProgram(program, task.Options.StripDebug)
		if err != nil {
			diag.Report(Diagnostic{
				Severity: SeverityError,
				Message:  err.Error(),
				Position: errorPosition(u.Filename, err),
			})
			ok = false
			continue
		}
		results = append(results, compiledUnit{name: u.Name, data: data})

		for _, dep := range ImportedModules(program) {
			if queued[dep] {
				continue
			}
			if src, filename, found := findSource(task.Options.SourcePath, dep); found {
				queued[dep] = true
				queue = append(queue, SourceUnit{Name: dep, Filename: filename, Source: src})
				diag.Report(Diagnostic{
					Severity: SeverityNote,
					Message:  fmt.Sprintf("compiling imported module %q from source path", dep),
					Position: &Position{File: filename},
				})
				continue
			}
			data, found, err := openPrecompiled(out, dep)
			if !found {
				continue
			}
			queued[dep] = true
			if err != nil {
				diag.Report(Diagnostic{
					Severity: SeverityError,
					Message:  fmt.Sprintf("precompiled module %q: %v", dep, err),
					Position: &Position{File: u.Filename},
				})
				ok = false
				continue
			}
			results = append(results, compiledUnit{name: dep, data: data})
			diag.Report(Diagnostic{
				Severity: SeverityNote,
				Message:  fmt.Sprintf("using precompiled module %q", dep),
				Position: &Position{File: u.Filename},
			})
		}
	}
	if !ok {
		return false, nil
	}
	for _, c := range results {
		w, err := out.Create(c.name)
		if err != nil {
			return false, fmt.Errorf("create artifact %q: %w", c.name, err)
		}
		if _, err := w.Write(c.data); err != nil {
			w.Close()
			return false, fmt.Errorf("write artifact %q: %w", c.name, err)
		}
		if err := w.Close(); err != nil {
			return false, fmt.Errorf("close artifact %q: %w", c.name, err)
		}
	}
	return true, nil
}

func (r *Risor) compileProgram(program *ast.Program, stripDebug bool) ([]byte, error) {
	code, err := compiler.Compile(program, compiler.WithGlobalNames(r.GlobalNames))
	if err != nil {
		return nil, err
	}
	data, err := compiler.MarshalCode(code)
	if err != nil {
		return nil, fmt.Errorf("marshal code: %w", err)
	}
	if stripDebug {
		return stripSource(data)
	}
	return data, nil
}

// lint warns about top-level entry functions that do not take exactly one
// parameter, since they are skipped when looking for an entry point.
func (r *Risor) lint(u SourceUnit, program *ast.Program, diag DiagnosticListener) {
	for _, stmt := range program.Statements() {
		fn, ok := stmt.(*ast.Func)
		if !ok || fn.Name() == nil {
			continue
		}
		name := fn.Name().Literal()
		if name != "main" && name != "setScriptContext" {
			continue
		}
		params := len(fn.Parameters())
		if params == 1 {
			continue
		}
		diag.Report(Diagnostic{
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("func %s takes %d parameters and will not be used as an entry point", name, params),
			Position: tokenPosition(u.Filename, fn.Name().Token()),
		})
	}
}

// deprecations reports the first reference to each deprecated name.
func (r *Risor) deprecations(u SourceUnit, program *ast.Program, diag DiagnosticListener) {
	if len(r.Deprecated) == 0 {
		return
	}
	first := map[string]token.Position{}
	Inspect(program, func(node ast.Node) bool {
		ident, ok := node.(*ast.Ident)
		if !ok {
			return true
		}
		name := ident.Literal()
		if _, deprecated := r.Deprecated[name]; !deprecated {
			return true
		}
		pos := ident.Token().StartPosition
		if prev, found := first[name]; !found || before(pos, prev) {
			first[name] = pos
		}
		return true
	})
	names := make([]string, 0, len(first))
	for name := range first {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return before(first[names[i]], first[names[j]])
	})
	for _, name := range names {
		msg := fmt.Sprintf("%s is deprecated", name)
		if hint := r.Deprecated[name]; hint != "" {
			msg += ": " + hint
		}
		pos := first[name]
		diag.Report(Diagnostic{
			Severity: SeverityWarning,
			Message:  msg,
			Position: &Position{File: u.Filename, Line: pos.LineNumber(), Column: pos.ColumnNumber()},
		})
	}
}

func before(a, b token.Position) bool {
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.Column < b.Column
}

// ImportedModules returns the module names a program imports, in the form
// the Risor VM passes them to its importer. For "from a import b" both
// "a/b" and "a" are candidates.
func ImportedModules(program *ast.Program) []string {
	var names []string
	seen := map[string]bool{}
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	Inspect(program, func(node ast.Node) bool {
		switch n := node.(type) {
		case *ast.Import:
			if n.Path() != nil {
				add(n.Path().Value())
			}
			return false
		case *ast.FromImport:
			var parents []string
			for _, p := range n.Parents() {
				parents = append(parents, p.Literal())
			}
			from := filepath.Join(parents...)
			for _, im := range n.Imports() {
				if im.Path() != nil {
					add(filepath.Join(from, im.Path().Value()))
				}
			}
			add(from)
			return false
		}
		return true
	})
	return names
}

func findSource(sourcePath, name string) (string, string, bool) {
	for _, dir := range filepath.SplitList(sourcePath) {
		if dir == "" {
			continue
		}
		filename := filepath.Join(dir, name+SourceExt)
		data, err := os.ReadFile(filename)
		if err == nil {
			return string(data), filename, true
		}
	}
	return "", "", false
}

// openPrecompiled reads a dependency through the sink's fallback. The bool
// result reports whether the sink had anything under the name.
func openPrecompiled(out ArtifactSink, name string) ([]byte, bool, error) {
	rc, err := out.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
			return nil, false, nil
		}
		return nil, true, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, true, err
	}
	if _, err := compiler.UnmarshalCode(data); err != nil {
		return nil, true, err
	}
	return data, true, nil
}

// stripSource removes embedded source text from a marshalled code object.
func stripSource(data []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("strip debug metadata: %w", err)
	}
	dropKey(doc, "source")
	return json.Marshal(doc)
}

func dropKey(v any, key string) {
	switch v := v.(type) {
	case map[string]any:
		delete(v, key)
		for _, child := range v {
			dropKey(child, key)
		}
	case []any:
		for _, child := range v {
			dropKey(child, key)
		}
	}
}

func tokenPosition(filename string, tok token.Token) *Position {
	return &Position{
		File:   filename,
		Line:   tok.StartPosition.LineNumber(),
		Column: tok.StartPosition.ColumnNumber(),
	}
}

// errorPosition extracts the start position of a parser error.
func errorPosition(filename string, err error) *Position {
	var perr parser.ParserError
	if errors.As(err, &perr) {
		pos := perr.StartPosition()
		return &Position{File: filename, Line: pos.LineNumber(), Column: pos.ColumnNumber()}
	}
	return &Position{File: filename}
}
