package toolchain

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/risor-io/risor/compiler"
	"github.com/risor-io/risor/parser"
	"github.com/risor-io/scripting/artifact"
	"github.com/stretchr/testify/require"
)

var testGlobals = []string{"len", "print"}

func compileTask(t *testing.T, tc Toolchain, task Task) (bool, *Collector, *artifact.Map) {
	t.Helper()
	store := artifact.NewStore(nil)
	defer store.Close()
	var diags Collector
	ok, err := tc.Compile(context.Background(), task, &diags, store)
	require.Nil(t, err)
	return ok, &diags, store.Map()
}

func TestRisorCompilesUnit(t *testing.T) {
	ok, diags, m := compileTask(t, NewRisor(testGlobals), Task{
		Units: []SourceUnit{{Name: "Main", Filename: "Main.risor", Source: `func main(args) { print(len(args)) }`}},
	})
	require.True(t, ok)
	require.False(t, diags.HasErrors())
	require.Equal(t, []string{"Main"}, m.Names())

	data, _ := m.Get("Main")
	code, err := compiler.UnmarshalCode(data)
	require.Nil(t, err)
	require.NotNil(t, code)
}

func TestRisorSyntaxError(t *testing.T) {
	ok, diags, m := compileTask(t, NewRisor(testGlobals), Task{
		Units: []SourceUnit{{Name: "Main", Filename: "Main.risor", Source: `func main(args) { print(len(args) }`}},
	})
	require.False(t, ok)
	require.True(t, diags.HasErrors())
	require.Equal(t, 0, m.Len())
	errs := diags.Errors()
	require.Equal(t, "Main.risor", errs[0].Position.File)
}

func TestRisorUndefinedGlobal(t *testing.T) {
	ok, diags, _ := compileTask(t, NewRisor(testGlobals), Task{
		Units: []SourceUnit{{Name: "Main", Filename: "Main.risor", Source: `func main(args) { undefined_thing(args) }`}},
	})
	require.False(t, ok)
	require.True(t, diags.HasErrors())
}

func TestRisorNoUnits(t *testing.T) {
	ok, diags, _ := compileTask(t, NewRisor(testGlobals), Task{})
	require.False(t, ok)
	require.Len(t, diags.Errors(), 1)
	require.Equal(t, "no source units", diags.Errors()[0].Message)
}

func TestRisorDuplicateUnits(t *testing.T) {
	ok, diags, m := compileTask(t, NewRisor(testGlobals), Task{
		Units: []SourceUnit{
			{Name: "Main", Filename: "Main.risor", Source: `1`},
			{Name: "Main", Filename: "other/Main.risor", Source: `2`},
		},
	})
	require.False(t, ok)
	require.True(t, diags.HasErrors())
	require.Equal(t, 0, m.Len())
}

func TestRisorLintWarnsOnEntryArity(t *testing.T) {
	ok, diags, _ := compileTask(t, NewRisor(testGlobals), Task{
		Units:   []SourceUnit{{Name: "Main", Filename: "Main.risor", Source: "\nfunc main(a, b) { print(a, b) }"}},
		Options: Options{Lint: true},
	})
	require.True(t, ok)
	all := diags.Diagnostics()
	require.Len(t, all, 1)
	require.Equal(t, SeverityWarning, all[0].Severity)
	require.Contains(t, all[0].Message, "func main takes 2 parameters")
	require.Equal(t, 2, all[0].Position.Line)
}

func TestRisorDeprecations(t *testing.T) {
	tc := NewRisor(testGlobals)
	tc.Deprecated = map[string]string{"len": "use size instead"}
	ok, diags, _ := compileTask(t, tc, Task{
		Units:   []SourceUnit{{Name: "Main", Filename: "Main.risor", Source: `func main(args) { print(len(args)) }`}},
		Options: Options{Deprecation: true},
	})
	require.True(t, ok)
	all := diags.Diagnostics()
	require.Len(t, all, 1)
	require.Equal(t, "len is deprecated: use size instead", all[0].Message)
}

func TestRisorCompilesImportsFromSourcePath(t *testing.T) {
	dir := t.TempDir()
	require.Nil(t, os.WriteFile(filepath.Join(dir, "helper.risor"), []byte(`func greet() { return "hi" }`), 0o644))

	ok, diags, m := compileTask(t, NewRisor(testGlobals), Task{
		Units: []SourceUnit{{Name: "Main", Filename: "Main.risor", Source: "import helper\nfunc main(args) { print(helper.greet()) }"}},
		Options: Options{SourcePath: dir},
	})
	require.True(t, ok, "%v", diags.Diagnostics())
	require.Equal(t, []string{"Main", "helper"}, m.Names())
}

func TestRisorStripDebug(t *testing.T) {
	source := `func main(args) { print("a distinctive marker") }`
	ok, _, m := compileTask(t, NewRisor(testGlobals), Task{
		Units:   []SourceUnit{{Name: "Main", Filename: "Main.risor", Source: source}},
		Options: Options{StripDebug: true},
	})
	require.True(t, ok)
	data, _ := m.Get("Main")
	require.False(t, strings.Contains(string(data), `"source"`))
	_, err := compiler.UnmarshalCode(data)
	require.Nil(t, err)
}

func TestSplitSource(t *testing.T) {
	units := SplitSource("script.risor", "print(1)")
	require.Equal(t, []SourceUnit{{Name: "script", Filename: "script.risor", Source: "print(1)"}}, units)

	units = SplitSource("script.risor", "print(1)\n-- Main.risor --\nfunc main(a) {}\n-- util.risor --\nfunc f() {}\n")
	require.Len(t, units, 3)
	require.Equal(t, "script", units[0].Name)
	require.Equal(t, "Main", units[1].Name)
	require.Equal(t, "util", units[2].Name)
	require.Equal(t, "func f() {}\n", units[2].Source)

	units = SplitSource("script.risor", "-- Main.risor --\nfunc main(a) {}\n")
	require.Len(t, units, 1)
	require.Equal(t, "Main", units[0].Name)
}

func TestUnitName(t *testing.T) {
	require.Equal(t, "Main", UnitName("Main.risor"))
	require.Equal(t, "Main", UnitName("dir/sub/Main.risor"))
	require.Equal(t, "Main", UnitName(`dir\Main.risor`))
	require.Equal(t, "noext", UnitName("noext"))
}

func TestRisorImportInStringIsNotADependency(t *testing.T) {
	dir := t.TempDir()
	require.Nil(t, os.WriteFile(filepath.Join(dir, "broken.risor"), []byte("func ("), 0o644))

	ok, diags, m := compileTask(t, NewRisor(testGlobals), Task{
		Units: []SourceUnit{{
			Name:     "Main",
			Filename: "Main.risor",
			Source:   "msg := `\nimport broken\n`\nfunc main(a) { print(len(msg)) }",
		}},
		Options: Options{SourcePath: dir},
	})
	require.True(t, ok, "%v", diags.Diagnostics())
	require.Empty(t, diags.Diagnostics())
	require.Equal(t, []string{"Main"}, m.Names())
}

func TestRisorDeprecationsIgnoreStrings(t *testing.T) {
	tc := NewRisor(testGlobals)
	tc.Deprecated = map[string]string{"keys": "use something else", "len": ""}
	ok, diags, _ := compileTask(t, tc, Task{
		Units: []SourceUnit{{
			Name:     "Main",
			Filename: "Main.risor",
			Source:   "func main(args) {\n\tprint(\"keys\")\n\treturn len(args)\n}",
		}},
		Options: Options{Deprecation: true},
	})
	require.True(t, ok)
	all := diags.Diagnostics()
	require.Len(t, all, 1)
	require.Equal(t, "len is deprecated", all[0].Message)
	require.Equal(t, 3, all[0].Position.Line)
}

func TestRisorLintIgnoresNestedFunctions(t *testing.T) {
	ok, diags, _ := compileTask(t, NewRisor(testGlobals), Task{
		Units: []SourceUnit{{
			Name:     "Main",
			Filename: "Main.risor",
			Source:   "func outer() {\n\tfunc main() { return 1 }\n\treturn main()\n}",
		}},
		Options: Options{Lint: true},
	})
	require.True(t, ok, "%v", diags.Diagnostics())
	require.Empty(t, diags.Diagnostics())
}

func TestRisorSyntaxErrorPosition(t *testing.T) {
	ok, diags, _ := compileTask(t, NewRisor(testGlobals), Task{
		Units: []SourceUnit{{Name: "Main", Filename: "Main.risor", Source: "x := 1\ny := (\n"}},
	})
	require.False(t, ok)
	errs := diags.Errors()
	require.Len(t, errs, 1)
	require.Equal(t, "Main.risor", errs[0].Position.File)
	require.Greater(t, errs[0].Position.Line, 1)
}

func TestImportedModules(t *testing.T) {
	program, err := parser.Parse(context.Background(), `
import util
import "pkg/strutil" as su
from lib import helper
func f() {
	import inner
	return inner
}
`)
	require.Nil(t, err)
	require.Equal(t, []string{"util", "pkg/strutil", "lib/helper", "lib", "inner"}, ImportedModules(program))
}

func precompiled(t *testing.T, name, source string) []byte {
	t.Helper()
	ok, diags, m := compileTask(t, NewRisor(testGlobals), Task{
		Units: []SourceUnit{{Name: name, Filename: name + SourceExt, Source: source}},
	})
	require.True(t, ok, "%v", diags.Diagnostics())
	data, _ := m.Get(name)
	return data
}

func TestRisorUsesPrecompiledModules(t *testing.T) {
	data := precompiled(t, "helper", `func greet() { return "hi" }`)
	store := artifact.NewStore(fstest.MapFS{
		"helper" + artifact.Ext: &fstest.MapFile{Data: data},
	})
	defer store.Close()

	var diags Collector
	ok, err := NewRisor(testGlobals).Compile(context.Background(), Task{
		Units: []SourceUnit{{Name: "Main", Filename: "Main.risor", Source: "import helper\nfunc main(args) { print(helper.greet()) }"}},
	}, &diags, store)
	require.Nil(t, err)
	require.True(t, ok, "%v", diags.Diagnostics())

	m := store.Map()
	require.Equal(t, []string{"Main", "helper"}, m.Names())
	got, _ := m.Get("helper")
	require.Equal(t, data, got)
	require.Contains(t, diags.Diagnostics()[0].Message, `using precompiled module "helper"`)
}

func TestRisorRejectsCorruptPrecompiledModule(t *testing.T) {
	store := artifact.NewStore(fstest.MapFS{
		"helper" + artifact.Ext: &fstest.MapFile{Data: []byte("not bytecode")},
	})
	defer store.Close()

	var diags Collector
	ok, err := NewRisor(testGlobals).Compile(context.Background(), Task{
		Units: []SourceUnit{{Name: "Main", Filename: "Main.risor", Source: "import helper\nfunc main(args) { print(helper.greet()) }"}},
	}, &diags, store)
	require.Nil(t, err)
	require.False(t, ok)
	require.Equal(t, 0, store.Map().Len())
	require.Contains(t, diags.Errors()[0].Message, `precompiled module "helper"`)
}
