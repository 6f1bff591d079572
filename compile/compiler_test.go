package compile

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/risor-io/scripting/artifact"
	"github.com/risor-io/scripting/toolchain"
	"github.com/stretchr/testify/require"
)

type recordingToolchain struct {
	mu    sync.Mutex
	tasks []toolchain.Task
	diags []toolchain.Diagnostic
	fail  bool
	err   error
}

func (r *recordingToolchain) Compile(ctx context.Context, task toolchain.Task, diag toolchain.DiagnosticListener, out toolchain.ArtifactSink) (bool, error) {
	r.mu.Lock()
	r.tasks = append(r.tasks, task)
	r.mu.Unlock()
	for _, d := range r.diags {
		diag.Report(d)
	}
	if r.err != nil {
		return false, r.err
	}
	if r.fail {
		return false, nil
	}
	for _, u := range task.Units {
		w, err := out.Create(u.Name)
		if err != nil {
			return false, err
		}
		w.Write([]byte(u.Source))
		w.Close()
	}
	return true, nil
}

func TestCompilePassesBaselineOptions(t *testing.T) {
	tc := &recordingToolchain{}
	c := New(tc)
	m, err := c.Compile(context.Background(), Request{
		Filename:   "Main.risor",
		Source:     "1 + 1",
		SourcePath: "/src",
		ModulePath: "/mods",
	})
	require.Nil(t, err)
	require.Equal(t, []string{"Main"}, m.Names())

	require.Len(t, tc.tasks, 1)
	task := tc.tasks[0]
	require.Len(t, task.Units, 1)
	require.Equal(t, toolchain.SourceUnit{Name: "Main", Filename: "Main.risor", Source: "1 + 1"}, task.Units[0])
	require.True(t, task.Options.Lint)
	require.True(t, task.Options.StripDebug)
	require.True(t, task.Options.Deprecation)
	require.Equal(t, "/src", task.Options.SourcePath)
	require.Equal(t, "/mods", task.Options.ModulePath)
}

func TestCompileFailureWritesDiagnostics(t *testing.T) {
	tc := &recordingToolchain{
		fail: true,
		diags: []toolchain.Diagnostic{
			{Severity: toolchain.SeverityWarning, Message: "first"},
			{Severity: toolchain.SeverityError, Message: "second", Position: &toolchain.Position{File: "Main.risor", Line: 3, Column: 7}},
		},
	}
	var sink bytes.Buffer
	m, err := New(tc).Compile(context.Background(), Request{
		Filename:    "Main.risor",
		Source:      "broken",
		Diagnostics: &sink,
	})
	require.Nil(t, m)
	require.True(t, errors.Is(err, ErrCompilationFailed))

	var failure *Failure
	require.True(t, errors.As(err, &failure))
	require.Equal(t, "Main", failure.Unit)
	require.Len(t, failure.Diagnostics.Errors, 1)

	lines := strings.Split(strings.TrimSpace(sink.String()), "\n")
	require.Equal(t, []string{"warning: first", "Main.risor:3:7: error: second"}, lines)
}

func TestCompileForwardsWarningsOnSuccess(t *testing.T) {
	tc := &recordingToolchain{
		diags: []toolchain.Diagnostic{{Severity: toolchain.SeverityWarning, Message: "careful"}},
	}
	var sink bytes.Buffer
	m, err := New(tc).Compile(context.Background(), Request{Filename: "Main.risor", Source: "1", Diagnostics: &sink})
	require.Nil(t, err)
	require.Equal(t, 1, m.Len())
	require.Equal(t, "warning: careful\n", sink.String())
}

func TestCompileToolchainError(t *testing.T) {
	boom := errors.New("boom")
	_, err := New(&recordingToolchain{err: boom}).Compile(context.Background(), Request{Filename: "Main.risor", Source: "1"})
	require.True(t, errors.Is(err, boom))
	require.False(t, errors.Is(err, ErrCompilationFailed))
}

func TestCompileRisorSyntaxError(t *testing.T) {
	var sink bytes.Buffer
	c := New(toolchain.NewRisor([]string{"print", "len"}))
	m, err := c.Compile(context.Background(), Request{
		Filename:    "Main.risor",
		Source:      "func main(a) { print(len(a) }",
		Diagnostics: &sink,
	})
	require.Nil(t, m)
	require.True(t, errors.Is(err, ErrCompilationFailed))
	require.Contains(t, sink.String(), "error")
}

func TestCompileConcurrentCalls(t *testing.T) {
	c := New(toolchain.NewRisor([]string{"print", "len"}))
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := c.Compile(context.Background(), Request{
				Filename: "Main.risor",
				Source:   "func main(args) { print(len(args)) }",
			})
			if err == nil && !m.Has("Main") {
				err = errors.New("missing artifact")
			}
			errs[i] = err
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.Nil(t, err)
	}
}

func TestCompileUsesPrecompiledModuleFromModulePath(t *testing.T) {
	tc := toolchain.NewRisor([]string{"print", "len"})
	lib, err := New(tc).Compile(context.Background(), Request{
		Filename: "lib.risor",
		Source:   "func answer() { return 42 }",
	})
	require.Nil(t, err)
	data, ok := lib.Get("lib")
	require.True(t, ok)

	empty, second := t.TempDir(), t.TempDir()
	require.Nil(t, os.WriteFile(filepath.Join(second, "lib"+artifact.Ext), data, 0o644))

	var sink bytes.Buffer
	m, err := New(tc).Compile(context.Background(), Request{
		Filename:    "Main.risor",
		Source:      "import lib\nfunc main(args) { print(lib.answer()) }",
		Diagnostics: &sink,
		ModulePath:  strings.Join([]string{empty, second}, string(os.PathListSeparator)),
	})
	require.Nil(t, err)
	require.Equal(t, []string{"Main", "lib"}, m.Names())
	require.Contains(t, sink.String(), `using precompiled module "lib"`)
}

func TestFailureMessage(t *testing.T) {
	_, err := New(&recordingToolchain{
		fail:  true,
		diags: []toolchain.Diagnostic{{Severity: toolchain.SeverityError, Message: "bad"}},
	}).Compile(context.Background(), Request{Filename: "unnamed1.risor", Source: "x"})
	require.EqualError(t, err, "compilation failed: 1 error")
}
