package scripting

import (
	"context"
	"sync"

	"github.com/risor-io/scripting/artifact"
	"github.com/risor-io/scripting/loader"
)

// CompiledScript is a compiled and loaded script that can be run many times.
// Runs share the script's namespace, so module-level state persists between
// them. Concurrent calls to Eval are serialized.
type CompiledScript struct {
	engine   *Engine
	filename string
	ns       *loader.Namespace
	mu       sync.Mutex
}

// Filename returns the virtual file name the script was compiled under.
func (cs *CompiledScript) Filename() string {
	return cs.filename
}

// Namespace returns the namespace holding the script's units.
func (cs *CompiledScript) Namespace() *loader.Namespace {
	return cs.ns
}

// Artifacts returns the compiled artifacts.
func (cs *CompiledScript) Artifacts() *artifact.Map {
	return cs.ns.Artifacts()
}

// Engine returns the engine that compiled the script.
func (cs *CompiledScript) Engine() *Engine {
	return cs.engine
}

// Eval runs the script with the given context, or the engine's default
// context when sc is nil.
func (cs *CompiledScript) Eval(ctx context.Context, sc *ScriptContext) (*Result, error) {
	e := cs.engine
	sc = e.scriptContext(sc)
	id, log := e.newCall()
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return e.run(ctx, id, log, cs.ns, sc)
}
