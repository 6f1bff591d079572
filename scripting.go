// Package scripting compiles Risor source entirely in memory, loads the
// result into an isolated namespace and runs its entry point.
//
// A call moves through the states compiled, loaded, entry resolved and
// invoked, or stops as failed. Failures are returned as *Error with a Kind
// naming the stage.
package scripting

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/gofrs/uuid"
	"github.com/risor-io/risor/object"
	"github.com/risor-io/scripting/compile"
	"github.com/risor-io/scripting/config"
	"github.com/risor-io/scripting/entry"
	"github.com/risor-io/scripting/loader"
	"github.com/risor-io/scripting/toolchain"
	"github.com/rs/zerolog"
)

// Engine evaluates scripts. It is safe for concurrent use: each call builds
// its own artifacts, namespace and VMs, and the engine only shares its
// toolchain, root namespace and counter between calls.
type Engine struct {
	compiler       *compile.Compiler
	root           *loader.Namespace
	logger         zerolog.Logger
	config         *config.Config
	context        *ScriptContext
	allowNonPublic bool

	// counter numbers synthetic file names.
	counter atomic.Uint64
}

// Result is the outcome of one evaluation.
type Result struct {
	// ID identifies the evaluation in log output.
	ID uuid.UUID
	// Unit is the selected unit. It is nil when the source produced no
	// units.
	Unit *loader.Unit
	// Invoked reports whether the unit's main entry ran.
	Invoked bool
	// Value is the value returned by main.
	Value object.Object
}

// New returns an Engine configured by the given options.
func New(opts ...Option) (*Engine, error) {
	o := &options{
		globals:    map[string]any{},
		deprecated: map[string]string{},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}

	globals := map[string]any{}
	if o.withoutDefaultGlobals {
		for k, v := range OutputBuiltins() {
			globals[k] = v
		}
	} else {
		globals = DefaultGlobals()
	}
	for k, v := range o.globals {
		if v == nil {
			return nil, fmt.Errorf("global %q is nil", k)
		}
		globals[k] = v
	}
	root := loader.NewRoot(globals)

	tc := o.toolchain
	if tc == nil {
		risor := toolchain.NewRisor(root.Globals())
		risor.Deprecated = o.deprecated
		tc = risor
	}
	cfg := o.config
	if cfg == nil {
		cfg = config.Default()
	}
	allow := cfg.AllowNonPublic
	if o.allowNonPublic != nil {
		allow = *o.allowNonPublic
	}
	sc := o.context
	if sc == nil {
		sc = NewScriptContext()
	}
	return &Engine{
		compiler:       compile.New(tc),
		root:           root,
		logger:         o.logger,
		config:         cfg,
		context:        sc,
		allowNonPublic: allow,
	}, nil
}

// Root returns the namespace every evaluation's namespace is chained to
// unless the script context names another parent.
func (e *Engine) Root() *loader.Namespace {
	return e.root
}

// Context returns the script context used when a call passes nil.
func (e *Engine) Context() *ScriptContext {
	return e.context
}

// Eval compiles src, loads it and runs the selected unit's entry point.
func (e *Engine) Eval(ctx context.Context, src string, sc *ScriptContext) (*Result, error) {
	sc = e.scriptContext(sc)
	id, log := e.newCall()
	cs, err := e.compile(ctx, log, src, sc)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, id, log, cs.ns, sc)
}

// EvalReader is Eval for source read from r.
func (e *Engine) EvalReader(ctx context.Context, r io.Reader, sc *ScriptContext) (*Result, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	return e.Eval(ctx, string(src), sc)
}

// Compile compiles and loads src without running it.
func (e *Engine) Compile(ctx context.Context, src string, sc *ScriptContext) (*CompiledScript, error) {
	sc = e.scriptContext(sc)
	_, log := e.newCall()
	return e.compile(ctx, log, src, sc)
}

// CompileReader is Compile for source read from r.
func (e *Engine) CompileReader(ctx context.Context, r io.Reader, sc *ScriptContext) (*CompiledScript, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	return e.Compile(ctx, string(src), sc)
}

func (e *Engine) newCall() (uuid.UUID, zerolog.Logger) {
	id := uuid.Must(uuid.NewV4())
	return id, e.logger.With().Str("eval_id", id.String()).Logger()
}

func (e *Engine) scriptContext(sc *ScriptContext) *ScriptContext {
	if sc == nil {
		return e.context
	}
	return sc
}

func (e *Engine) compile(ctx context.Context, log zerolog.Logger, src string, sc *ScriptContext) (*CompiledScript, error) {
	filename := e.filename(sc)
	unit := toolchain.UnitName(filename)
	modulePath := setting(sc, KeyModulePath, e.config.ModulePath)

	artifacts, err := e.compiler.Compile(ctx, compile.Request{
		Filename:    filename,
		Source:      src,
		Diagnostics: sc.ErrorWriter(),
		SourcePath:  setting(sc, KeySourcePath, e.config.SourcePath),
		ModulePath:  modulePath,
	})
	if err != nil {
		log.Debug().Str("unit", unit).Err(err).Msg("failed")
		return nil, newError(KindCompilation, unit, err)
	}
	log.Debug().Str("unit", unit).Int("artifacts", artifacts.Len()).Msg("compiled")

	ns := loader.New(artifacts, modulePath, e.parent(sc))
	log.Debug().Strs("units", artifacts.Names()).Msg("loaded")
	return &CompiledScript{engine: e, filename: filename, ns: ns}, nil
}

func (e *Engine) run(ctx context.Context, id uuid.UUID, log zerolog.Logger, ns *loader.Namespace, sc *ScriptContext) (*Result, error) {
	sc.SetAttribute(KeyContext, sc, EngineScope)
	ctx = WithScriptContext(ctx, sc)

	units, err := ns.ResolveAll(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("failed")
		return nil, newError(KindResolution, "", err)
	}
	designated := setting(sc, KeyMainUnit, e.config.MainUnit)
	unit, ok, err := entry.SelectUnit(ctx, ns, units, designated)
	if err != nil {
		log.Debug().Str("unit", designated).Err(err).Msg("failed")
		return nil, selectError(unit, designated, err)
	}
	result := &Result{ID: id, Unit: unit}
	if unit == nil {
		log.Debug().Msg("no units")
		return result, nil
	}
	if !ok {
		log.Debug().Str("unit", unit.Name()).Msg("no entry")
		return result, nil
	}
	log.Debug().Str("unit", unit.Name()).Msg("entry resolved")

	policy := entry.Policy{AllowNonPublic: e.allowNonPublic}
	value, err := entry.Invoke(ctx, unit, contextModule(sc), sc.Arguments(), policy)
	if err != nil {
		log.Debug().Str("unit", unit.Name()).Err(err).Msg("failed")
		return nil, newError(KindInvocation, unit.Name(), err)
	}
	log.Debug().Str("unit", unit.Name()).Msg("invoked")
	result.Invoked = true
	result.Value = value
	return result, nil
}

func selectError(unit *loader.Unit, designated string, err error) error {
	name := designated
	if unit != nil {
		name = unit.Name()
	}
	if errors.Is(err, entry.ErrNoEntry) {
		return newError(KindNoEntry, name, err)
	}
	return newError(KindResolution, name, err)
}

func (e *Engine) filename(sc *ScriptContext) string {
	if name := setting(sc, KeyFilename, e.config.Filename); name != "" {
		return name
	}
	return fmt.Sprintf("unnamed%d%s", e.counter.Add(1), toolchain.SourceExt)
}

func (e *Engine) parent(sc *ScriptContext) *loader.Namespace {
	v, _ := sc.Attribute(KeyParentNamespace)
	if ns, ok := v.(*loader.Namespace); ok && ns != nil {
		return ns
	}
	return e.root
}

func setting(sc *ScriptContext, key, fallback string) string {
	if s := sc.StringAttribute(key); s != "" {
		return s
	}
	return fallback
}
