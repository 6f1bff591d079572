package scripting

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/risor-io/risor/arg"
	"github.com/risor-io/risor/builtins"
	modFmt "github.com/risor-io/risor/modules/fmt"
	modMath "github.com/risor-io/risor/modules/math"
	modRand "github.com/risor-io/risor/modules/rand"
	modRegexp "github.com/risor-io/risor/modules/regexp"
	modStrings "github.com/risor-io/risor/modules/strings"
	modTime "github.com/risor-io/risor/modules/time"
	"github.com/risor-io/risor/object"
	"github.com/risor-io/scripting/entry"
)

// DefaultGlobals returns the globals scripts are compiled against unless
// the engine is built WithoutDefaultGlobals: the Risor builtins, a few
// standard modules and the output builtins.
func DefaultGlobals() map[string]any {
	globals := map[string]any{}
	for k, v := range builtins.Builtins() {
		globals[k] = v
	}
	modules := map[string]object.Object{
		"fmt":     modFmt.Module(),
		"math":    modMath.Module(),
		"rand":    modRand.Module(),
		"regexp":  modRegexp.Module(),
		"strings": modStrings.Module(),
		"time":    modTime.Module(),
	}
	for k, v := range modules {
		globals[k] = v
	}
	for k, v := range OutputBuiltins() {
		globals[k] = v
	}
	return globals
}

// OutputBuiltins returns print, printf and eprint. They write to the
// ScriptContext carried by the calling context, or to the process streams
// when there is none. The engine always adds them.
func OutputBuiltins() map[string]object.Object {
	return map[string]object.Object{
		"print":  object.NewBuiltin("print", Print),
		"printf": object.NewBuiltin("printf", Printf),
		"eprint": object.NewBuiltin("eprint", Eprint),
	}
}

func stdout(ctx context.Context) io.Writer {
	if sc, ok := GetScriptContext(ctx); ok {
		if w := sc.Writer(); w != nil {
			return w
		}
	}
	return os.Stdout
}

func stderr(ctx context.Context) io.Writer {
	if sc, ok := GetScriptContext(ctx); ok {
		if w := sc.ErrorWriter(); w != nil {
			return w
		}
	}
	return os.Stderr
}

func printableArgs(args []object.Object) []any {
	values := make([]any, 0, len(args))
	for _, a := range args {
		switch a := a.(type) {
		case *object.String:
			values = append(values, a.Value())
		default:
			values = append(values, a.Inspect())
		}
	}
	return values
}

// Print writes its arguments separated by spaces and a newline.
func Print(ctx context.Context, args ...object.Object) object.Object {
	if _, err := fmt.Fprintln(stdout(ctx), printableArgs(args)...); err != nil {
		return object.NewError(err)
	}
	return object.Nil
}

// Eprint is Print for the error writer.
func Eprint(ctx context.Context, args ...object.Object) object.Object {
	if _, err := fmt.Fprintln(stderr(ctx), printableArgs(args)...); err != nil {
		return object.NewError(err)
	}
	return object.Nil
}

// Printf formats according to a format string.
func Printf(ctx context.Context, args ...object.Object) object.Object {
	if len(args) < 1 {
		return object.Errorf("type error: printf() takes 1 or more arguments (%d given)", len(args))
	}
	format, err := object.AsString(args[0])
	if err != nil {
		return err
	}
	var values []any
	for _, a := range args[1:] {
		values = append(values, object.PrintableValue(a))
	}
	if _, err := fmt.Fprintf(stdout(ctx), format, values...); err != nil {
		return object.NewError(err)
	}
	return object.Nil
}

// contextModule is the script-side view of a ScriptContext. It is passed to
// a unit's setScriptContext function.
func contextModule(sc *ScriptContext) *object.Module {
	var m *object.Module
	get := func(ctx context.Context, args ...object.Object) object.Object {
		if err := arg.Require("context.get", 1, args); err != nil {
			return err
		}
		name, err := object.AsString(args[0])
		if err != nil {
			return err
		}
		v, ok := sc.Attribute(name)
		if !ok {
			return object.Nil
		}
		if _, self := v.(*ScriptContext); self {
			return m
		}
		return object.FromGoType(v)
	}
	set := func(ctx context.Context, args ...object.Object) object.Object {
		if err := arg.Require("context.set", 2, args); err != nil {
			return err
		}
		name, err := object.AsString(args[0])
		if err != nil {
			return err
		}
		sc.SetAttribute(name, args[1].Interface(), EngineScope)
		return object.Nil
	}
	arguments := func(ctx context.Context, args ...object.Object) object.Object {
		if err := arg.Require("context.arguments", 0, args); err != nil {
			return err
		}
		return entry.Args(sc.Arguments())
	}
	m = object.NewBuiltinsModule("context", map[string]object.Object{
		"get":       object.NewBuiltin("get", get),
		"set":       object.NewBuiltin("set", set),
		"arguments": object.NewBuiltin("arguments", arguments),
		"filename":  object.NewString(sc.StringAttribute(KeyFilename)),
	})
	return m
}
